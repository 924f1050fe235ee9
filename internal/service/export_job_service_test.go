package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flightline-dev/flightline-api/internal/models"
	"github.com/flightline-dev/flightline-api/internal/repository"
	appErrors "github.com/flightline-dev/flightline-api/pkg/errors"
	"github.com/flightline-dev/flightline-api/pkg/jobs"
)

type mockExportStore struct {
	jobs    map[string]*models.ExportJob
	updates []repository.UpdateExportJobParams
}

func newMockExportStore() *mockExportStore {
	return &mockExportStore{jobs: make(map[string]*models.ExportJob)}
}

func (m *mockExportStore) Create(ctx context.Context, job *models.ExportJob) error {
	if job.ID == "" {
		job.ID = "job-1"
	}
	m.jobs[job.ID] = job
	return nil
}

func (m *mockExportStore) GetByID(ctx context.Context, id string) (*models.ExportJob, error) {
	job, ok := m.jobs[id]
	if !ok {
		return nil, errors.New("not found")
	}
	return job, nil
}

func (m *mockExportStore) Update(ctx context.Context, id string, params repository.UpdateExportJobParams) error {
	m.updates = append(m.updates, params)
	job := m.jobs[id]
	if params.Status != nil {
		job.Status = *params.Status
	}
	if params.Progress != nil {
		job.Progress = *params.Progress
	}
	if params.ResultURL != nil {
		job.ResultURL = params.ResultURL
	}
	if params.ErrorMessage != nil {
		job.ErrorMessage = params.ErrorMessage
	}
	return nil
}

func (m *mockExportStore) ListQueued(ctx context.Context, limit int) ([]models.ExportJob, error) {
	var queued []models.ExportJob
	for _, job := range m.jobs {
		if job.Status == models.ExportStatusQueued {
			queued = append(queued, *job)
		}
	}
	return queued, nil
}

func (m *mockExportStore) ListFinishedBefore(ctx context.Context, cutoff time.Time, limit int) ([]models.ExportJob, error) {
	return nil, nil
}

type mockDispatcher struct {
	enqueued []jobs.Job
	err      error
}

func (m *mockDispatcher) Enqueue(job jobs.Job) error {
	if m.err != nil {
		return m.err
	}
	m.enqueued = append(m.enqueued, job)
	return nil
}

type stubGenerator struct {
	result *ExportResult
	err    error
}

func (s *stubGenerator) Generate(ctx context.Context, job *models.ExportJob) (*ExportResult, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.result, nil
}

func invoiceExportRequest() CreateExportRequest {
	invoiceID := "invoice-1"
	return CreateExportRequest{
		Type:      models.ExportTypeInvoice,
		InvoiceID: &invoiceID,
		Format:    models.ExportFormatPDF,
	}
}

func TestCreateJobQueuesExport(t *testing.T) {
	store := newMockExportStore()
	queue := &mockDispatcher{}
	svc := NewExportJobService(store, queue, nil, nil, ExportJobServiceConfig{})

	resp, err := svc.CreateJob(context.Background(), invoiceExportRequest(), "user-1")
	require.NoError(t, err)
	assert.Equal(t, models.ExportStatusQueued, resp.Status)
	require.Len(t, queue.enqueued, 1)
	assert.Equal(t, resp.ID, queue.enqueued[0].ID)
	assert.Equal(t, "user-1", store.jobs[resp.ID].CreatedBy)
}

func TestCreateJobValidatesByType(t *testing.T) {
	svc := NewExportJobService(newMockExportStore(), &mockDispatcher{}, nil, nil, ExportJobServiceConfig{})
	ctx := context.Background()

	_, err := svc.CreateJob(ctx, CreateExportRequest{Type: models.ExportTypeInvoice, Format: models.ExportFormatPDF}, "user-1")
	require.Error(t, err, "invoice exports need an invoice id")

	_, err = svc.CreateJob(ctx, CreateExportRequest{Type: models.ExportTypeStatement, Format: models.ExportFormatCSV}, "user-1")
	require.Error(t, err, "statement exports need a student id")

	req := invoiceExportRequest()
	req.Format = "xlsx"
	_, err = svc.CreateJob(ctx, req, "user-1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestCreateJobMarksFailedWhenEnqueueFails(t *testing.T) {
	store := newMockExportStore()
	queue := &mockDispatcher{err: errors.New("queue full")}
	svc := NewExportJobService(store, queue, nil, nil, ExportJobServiceConfig{})

	_, err := svc.CreateJob(context.Background(), invoiceExportRequest(), "user-1")
	require.Error(t, err)
	require.Len(t, store.jobs, 1)
	for _, job := range store.jobs {
		assert.Equal(t, models.ExportStatusFailed, job.Status)
	}
}

func TestGetStatusEnforcesOwnership(t *testing.T) {
	store := newMockExportStore()
	store.jobs["job-1"] = &models.ExportJob{ID: "job-1", Status: models.ExportStatusFinished, CreatedBy: "user-1"}
	svc := NewExportJobService(store, &mockDispatcher{}, nil, nil, ExportJobServiceConfig{})
	ctx := context.Background()

	_, err := svc.GetStatus(ctx, "job-1", "someone-else", models.RoleStudent)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)

	status, err := svc.GetStatus(ctx, "job-1", "someone-else", models.RoleAdmin)
	require.NoError(t, err, "admins see every job")
	assert.Equal(t, models.ExportStatusFinished, status.Status)

	status, err = svc.GetStatus(ctx, "job-1", "user-1", models.RoleStudent)
	require.NoError(t, err)
	assert.Equal(t, "job-1", status.ID)
}

func TestRecoverPendingJobsRequeues(t *testing.T) {
	store := newMockExportStore()
	store.jobs["job-1"] = &models.ExportJob{ID: "job-1", Type: models.ExportTypeStatement, Status: models.ExportStatusQueued}
	store.jobs["job-2"] = &models.ExportJob{ID: "job-2", Type: models.ExportTypeInvoice, Status: models.ExportStatusFinished}
	queue := &mockDispatcher{}
	svc := NewExportJobService(store, queue, nil, nil, ExportJobServiceConfig{})

	svc.RecoverPendingJobs(context.Background())
	require.Len(t, queue.enqueued, 1)
	assert.Equal(t, "job-1", queue.enqueued[0].ID)
}

func TestWorkerFinishesJob(t *testing.T) {
	store := newMockExportStore()
	store.jobs["job-1"] = &models.ExportJob{ID: "job-1", Status: models.ExportStatusQueued}
	gen := &stubGenerator{result: &ExportResult{URL: "/api/v1/exports/download/tok123"}}
	worker := NewExportWorker(store, gen, 3, nil)

	err := worker.Handle(context.Background(), jobs.Job{ID: "job-1", Attempt: 1})
	require.NoError(t, err)
	job := store.jobs["job-1"]
	assert.Equal(t, models.ExportStatusFinished, job.Status)
	assert.Equal(t, 100, job.Progress)
	require.NotNil(t, job.ResultURL)
	assert.Equal(t, "/api/v1/exports/download/tok123", *job.ResultURL)
}

func TestWorkerRequeuesUntilRetryLimit(t *testing.T) {
	store := newMockExportStore()
	store.jobs["job-1"] = &models.ExportJob{ID: "job-1", Status: models.ExportStatusQueued}
	gen := &stubGenerator{err: errors.New("render failed")}
	worker := NewExportWorker(store, gen, 3, nil)
	ctx := context.Background()

	err := worker.Handle(ctx, jobs.Job{ID: "job-1", Attempt: 1})
	require.Error(t, err)
	assert.Equal(t, models.ExportStatusQueued, store.jobs["job-1"].Status, "early failures re-queue")

	err = worker.Handle(ctx, jobs.Job{ID: "job-1", Attempt: 3})
	require.Error(t, err)
	assert.Equal(t, models.ExportStatusFailed, store.jobs["job-1"].Status, "the final attempt fails the job")
	require.NotNil(t, store.jobs["job-1"].ErrorMessage)
	assert.Equal(t, "render failed", *store.jobs["job-1"].ErrorMessage)
}
