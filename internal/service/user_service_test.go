package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/flightline-dev/flightline-api/internal/models"
	appErrors "github.com/flightline-dev/flightline-api/pkg/errors"
)

type userRepoStub struct {
	users     map[string]*models.User
	listErr   error
	auditLogs []*models.AuditLog
}

func newUserRepoStub(seed ...*models.User) *userRepoStub {
	stub := &userRepoStub{users: make(map[string]*models.User)}
	for _, u := range seed {
		stub.users[u.ID] = u
	}
	return stub
}

func (m *userRepoStub) List(ctx context.Context, filter models.UserFilter) ([]models.User, int, error) {
	if m.listErr != nil {
		return nil, 0, m.listErr
	}
	var users []models.User
	for _, u := range m.users {
		users = append(users, *u)
	}
	return users, len(users), nil
}

func (m *userRepoStub) FindByID(ctx context.Context, id string) (*models.User, error) {
	if user, ok := m.users[id]; ok {
		clone := *user
		return &clone, nil
	}
	return nil, sql.ErrNoRows
}

func (m *userRepoStub) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	for _, u := range m.users {
		if u.Email == email {
			clone := *u
			return &clone, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *userRepoStub) Create(ctx context.Context, user *models.User) error {
	clone := *user
	m.users[user.ID] = &clone
	return nil
}

func (m *userRepoStub) Update(ctx context.Context, user *models.User) error {
	clone := *user
	m.users[user.ID] = &clone
	return nil
}

func (m *userRepoStub) Delete(ctx context.Context, id string) error {
	user, ok := m.users[id]
	if !ok {
		return sql.ErrNoRows
	}
	user.Active = false
	return nil
}

func (m *userRepoStub) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	m.auditLogs = append(m.auditLogs, log)
	return nil
}

func TestListUsersDefaultsPagination(t *testing.T) {
	repo := newUserRepoStub(&models.User{ID: "1", Email: "a@flightline.test"})
	svc := NewUserService(repo, validator.New(), zap.NewNop())

	users, pagination, err := svc.List(context.Background(), models.UserFilter{})
	require.NoError(t, err)
	assert.Len(t, users, 1)
	assert.Equal(t, 1, pagination.Page)
	assert.Equal(t, 20, pagination.PageSize)
	assert.Equal(t, 1, pagination.TotalCount)
}

func TestCreateUserLowercasesEmail(t *testing.T) {
	repo := newUserRepoStub()
	svc := NewUserService(repo, validator.New(), zap.NewNop())

	user, err := svc.Create(context.Background(), CreateUserRequest{
		Email:    "NEW.STUDENT@FLIGHTLINE.TEST",
		FullName: "New Student",
		Password: "hunter2x",
		Role:     models.RoleStudent,
		Active:   true,
	}, "actor", models.LoginRequest{})
	require.NoError(t, err)
	assert.Equal(t, "new.student@flightline.test", user.Email)
	assert.NotEqual(t, "hunter2x", user.PasswordHash)
	require.Len(t, repo.auditLogs, 1)
	assert.Equal(t, models.AuditActionUserCreate, repo.auditLogs[0].Action)
}

func TestCreateUserDuplicateEmail(t *testing.T) {
	repo := newUserRepoStub(&models.User{ID: "1", Email: "taken@flightline.test"})
	svc := NewUserService(repo, validator.New(), zap.NewNop())

	_, err := svc.Create(context.Background(), CreateUserRequest{
		Email:    "Taken@flightline.test",
		FullName: "Imposter",
		Password: "hunter2x",
		Role:     models.RoleStudent,
	}, "actor", models.LoginRequest{})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestUpdateUserChangesRoleAndActive(t *testing.T) {
	repo := newUserRepoStub(&models.User{ID: "1", Email: "a@flightline.test", FullName: "Old Name", Role: models.RoleInstructor, Active: true})
	svc := NewUserService(repo, validator.New(), zap.NewNop())

	inactive := false
	user, err := svc.Update(context.Background(), "1", UpdateUserRequest{FullName: "New Name", Role: models.RoleAdmin, Active: &inactive}, "actor", models.LoginRequest{})
	require.NoError(t, err)
	assert.Equal(t, models.RoleAdmin, user.Role)
	assert.False(t, user.Active)
	require.Len(t, repo.auditLogs, 1)
	assert.NotEmpty(t, repo.auditLogs[0].OldValues, "role changes must capture the previous state")
}

func TestUpdateUserNotFound(t *testing.T) {
	svc := NewUserService(newUserRepoStub(), validator.New(), zap.NewNop())
	_, err := svc.Update(context.Background(), "ghost", UpdateUserRequest{FullName: "X", Role: models.RoleStudent}, "actor", models.LoginRequest{})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestDeleteUserDeactivates(t *testing.T) {
	repo := newUserRepoStub(&models.User{ID: "1", Email: "a@flightline.test", Role: models.RoleInstructor, Active: true})
	svc := NewUserService(repo, validator.New(), zap.NewNop())

	err := svc.Delete(context.Background(), "1", "actor", models.LoginRequest{})
	require.NoError(t, err)
	assert.False(t, repo.users["1"].Active)
	require.Len(t, repo.auditLogs, 1)
	assert.Equal(t, models.AuditActionUserDelete, repo.auditLogs[0].Action)
}
