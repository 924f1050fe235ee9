package service

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/flightline-dev/flightline-api/internal/models"
	"github.com/flightline-dev/flightline-api/pkg/export"
	"github.com/flightline-dev/flightline-api/pkg/storage"
)

type invoiceReader interface {
	FindByID(ctx context.Context, id string) (*models.Invoice, error)
}

type transactionReader interface {
	ListTransactions(ctx context.Context, filter models.TransactionFilter) ([]models.Transaction, int, error)
}

type fileStorage interface {
	Save(filename string, data []byte) (string, error)
	Open(filename string) (*os.File, error)
	Delete(filename string) error
	CleanupOlderThan(ttl time.Duration) ([]string, error)
}

type csvRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

type pdfRenderer interface {
	Render(data export.Dataset, title string) ([]byte, error)
}

// ExportConfig tunes export generation.
type ExportConfig struct {
	APIPrefix string
	ResultTTL time.Duration
}

// ExportResult captures successful generation metadata.
type ExportResult struct {
	RelativePath string
	Token        string
	URL          string
	Format       models.ExportFormat
	ExpiresAt    time.Time
}

// ExportService renders invoice documents and account statements and
// persists the resulting files.
type ExportService struct {
	invoices invoiceReader
	ledger   transactionReader
	storage  fileStorage
	csv      csvRenderer
	pdf      pdfRenderer
	signer   *storage.SignedURLSigner
	logger   *zap.Logger
	cfg      ExportConfig
}

// NewExportService constructs an ExportService.
func NewExportService(invoices invoiceReader, ledger transactionReader, files fileStorage, signer *storage.SignedURLSigner, cfg ExportConfig, logger *zap.Logger, csv csvRenderer, pdf pdfRenderer) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ResultTTL <= 0 {
		cfg.ResultTTL = 24 * time.Hour
	}
	if csv == nil {
		csv = export.NewCSVExporter()
	}
	if pdf == nil {
		pdf = export.NewPDFExporter()
	}
	return &ExportService{
		invoices: invoices,
		ledger:   ledger,
		storage:  files,
		csv:      csv,
		pdf:      pdf,
		signer:   signer,
		logger:   logger,
		cfg:      cfg,
	}
}

// Generate builds the dataset for a job and stores the rendered file.
func (s *ExportService) Generate(ctx context.Context, job *models.ExportJob) (*ExportResult, error) {
	if job == nil {
		return nil, fmt.Errorf("job nil")
	}
	dataset, title, err := s.buildDataset(ctx, job)
	if err != nil {
		return nil, err
	}

	var payload []byte
	switch job.Params.Format {
	case models.ExportFormatCSV:
		payload, err = s.csv.Render(dataset)
	case models.ExportFormatPDF:
		payload, err = s.pdf.Render(dataset, title)
	default:
		err = fmt.Errorf("unsupported format %s", job.Params.Format)
	}
	if err != nil {
		return nil, err
	}

	filename := s.buildFilename(job)
	relPath, err := s.storage.Save(filename, payload)
	if err != nil {
		return nil, err
	}

	token, expiresAt, err := s.signer.Generate(job.ID, relPath)
	if err != nil {
		return nil, err
	}
	prefix := strings.TrimRight(s.cfg.APIPrefix, "/")
	if prefix == "" {
		prefix = "/api/v1"
	}
	signedURL := fmt.Sprintf("%s/exports/download/%s", prefix, token)

	return &ExportResult{
		RelativePath: relPath,
		Token:        token,
		URL:          signedURL,
		Format:       job.Params.Format,
		ExpiresAt:    expiresAt,
	}, nil
}

// RenderInvoicePDF renders the invoice document in memory for an inline
// download, without touching storage or the job queue.
func (s *ExportService) RenderInvoicePDF(ctx context.Context, invoiceID string) ([]byte, string, error) {
	id := invoiceID
	dataset, title, err := s.buildInvoiceDataset(ctx, models.ExportJobParams{InvoiceID: &id})
	if err != nil {
		return nil, "", err
	}
	payload, err := s.pdf.Render(dataset, title)
	if err != nil {
		return nil, "", err
	}
	filename := fmt.Sprintf("invoice_%s.pdf", sanitizeFilename(invoiceID))
	return payload, filename, nil
}

// ParseToken validates download token metadata.
func (s *ExportService) ParseToken(token string, allowExpired bool) (jobID, relPath string, expiresAt time.Time, err error) {
	return s.signer.Parse(token, allowExpired)
}

// Open returns a handle to the stored file.
func (s *ExportService) Open(relPath string) (*os.File, error) {
	return s.storage.Open(relPath)
}

// Delete removes a stored export file.
func (s *ExportService) Delete(relPath string) error {
	return s.storage.Delete(relPath)
}

// Cleanup removes files older than ttl (defaults to the configured
// ResultTTL when ttl <= 0).
func (s *ExportService) Cleanup(ttl time.Duration) ([]string, error) {
	if ttl <= 0 {
		ttl = s.cfg.ResultTTL
	}
	return s.storage.CleanupOlderThan(ttl)
}

func (s *ExportService) buildFilename(job *models.ExportJob) string {
	timestamp := time.Now().UTC().Format("20060102_150405")
	return fmt.Sprintf("%s_%s_%s.%s", job.Type, sanitizeFilename(job.Params.StudentID), timestamp, job.Params.Format)
}

func sanitizeFilename(raw string) string {
	if raw == "" {
		return "na"
	}
	replacer := strings.NewReplacer(" ", "_", "/", "-", "\\", "-", ":", "-", "..", ".", "__", "_")
	result := replacer.Replace(raw)
	if len(result) > 100 {
		return result[:100]
	}
	return result
}

func (s *ExportService) buildDataset(ctx context.Context, job *models.ExportJob) (export.Dataset, string, error) {
	switch job.Type {
	case models.ExportTypeInvoice:
		return s.buildInvoiceDataset(ctx, job.Params)
	case models.ExportTypeStatement:
		return s.buildStatementDataset(ctx, job.Params)
	default:
		return export.Dataset{}, "", fmt.Errorf("unsupported export type %s", job.Type)
	}
}

func (s *ExportService) buildInvoiceDataset(ctx context.Context, params models.ExportJobParams) (export.Dataset, string, error) {
	if params.InvoiceID == nil || *params.InvoiceID == "" {
		return export.Dataset{}, "", fmt.Errorf("invoice export requires invoiceId")
	}
	invoice, err := s.invoices.FindByID(ctx, *params.InvoiceID)
	if err != nil {
		return export.Dataset{}, "", fmt.Errorf("load invoice: %w", err)
	}

	headers := []string{"Description", "Quantity", "Rate", "Amount"}
	rows := make([]map[string]string, 0, len(invoice.LineItems)+1)
	for _, item := range invoice.LineItems {
		rows = append(rows, map[string]string{
			"Description": item.Description,
			"Quantity":    item.Quantity.String(),
			"Rate":        item.Rate.StringFixed(2),
			"Amount":      item.Amount.StringFixed(2),
		})
	}
	rows = append(rows, map[string]string{
		"Description": "Total due " + invoice.DueDate.Format("2006-01-02"),
		"Amount":      invoice.TotalAmount.StringFixed(2),
	})
	title := fmt.Sprintf("Invoice %s", invoice.Number)
	return export.Dataset{Headers: headers, Rows: rows}, title, nil
}

func (s *ExportService) buildStatementDataset(ctx context.Context, params models.ExportJobParams) (export.Dataset, string, error) {
	if params.StudentID == "" {
		return export.Dataset{}, "", fmt.Errorf("statement export requires studentId")
	}
	filter := models.TransactionFilter{StudentID: params.StudentID, PageSize: 10000}
	if params.From != nil {
		from, err := time.Parse("2006-01-02", *params.From)
		if err != nil {
			return export.Dataset{}, "", fmt.Errorf("invalid from date: %w", err)
		}
		filter.From = &from
	}
	if params.To != nil {
		to, err := time.Parse("2006-01-02", *params.To)
		if err != nil {
			return export.Dataset{}, "", fmt.Errorf("invalid to date: %w", err)
		}
		filter.To = &to
	}
	txns, _, err := s.ledger.ListTransactions(ctx, filter)
	if err != nil {
		return export.Dataset{}, "", fmt.Errorf("load transactions: %w", err)
	}

	headers := []string{"Date", "Type", "Description", "Amount", "Balance"}
	rows := make([]map[string]string, 0, len(txns))
	for _, txn := range txns {
		rows = append(rows, map[string]string{
			"Date":        txn.CreatedAt.Format("2006-01-02 15:04"),
			"Type":        string(txn.Type),
			"Description": txn.Description,
			"Amount":      txn.Signed().StringFixed(2),
			"Balance":     txn.BalanceAfter.StringFixed(2),
		})
	}
	title := "Account Statement"
	return export.Dataset{Headers: headers, Rows: rows}, title, nil
}
