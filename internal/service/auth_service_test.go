package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/flightline-dev/flightline-api/internal/models"
	appErrors "github.com/flightline-dev/flightline-api/pkg/errors"
)

type authRepoStub struct {
	userByEmail         *models.User
	userByID            *models.User
	findByEmailErr      error
	findByIDErr         error
	sessions            map[string]*models.RefreshToken
	findRefreshErr      error
	createRefreshErr    error
	revokeRefreshErr    error
	revokeUserTokensErr error
	updatePasswordErr   error
	auditLogs           []*models.AuditLog
	lastLoginUpdated    bool
}

func (m *authRepoStub) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	if m.findByEmailErr != nil {
		return nil, m.findByEmailErr
	}
	if m.userByEmail == nil {
		return nil, sql.ErrNoRows
	}
	return m.userByEmail, nil
}

func (m *authRepoStub) FindByID(ctx context.Context, id string) (*models.User, error) {
	if m.findByIDErr != nil {
		return nil, m.findByIDErr
	}
	if m.userByID != nil {
		return m.userByID, nil
	}
	if m.userByEmail == nil {
		return nil, sql.ErrNoRows
	}
	return m.userByEmail, nil
}

func (m *authRepoStub) UpdateLastLogin(ctx context.Context, id string, ts time.Time) error {
	m.lastLoginUpdated = true
	return nil
}

func (m *authRepoStub) UpdatePassword(ctx context.Context, id, passwordHash string, updatedAt time.Time) error {
	if m.updatePasswordErr != nil {
		return m.updatePasswordErr
	}
	if m.userByEmail != nil && m.userByEmail.ID == id {
		m.userByEmail.PasswordHash = passwordHash
	}
	return nil
}

func (m *authRepoStub) RevokeUserRefreshTokens(ctx context.Context, userID string) error {
	return m.revokeUserTokensErr
}

func (m *authRepoStub) CreateRefreshToken(ctx context.Context, token *models.RefreshToken) error {
	if m.createRefreshErr != nil {
		return m.createRefreshErr
	}
	if m.sessions == nil {
		m.sessions = make(map[string]*models.RefreshToken)
	}
	m.sessions[token.Token] = token
	return nil
}

func (m *authRepoStub) FindRefreshToken(ctx context.Context, token string) (*models.RefreshToken, error) {
	if m.findRefreshErr != nil {
		return nil, m.findRefreshErr
	}
	rt, ok := m.sessions[token]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return rt, nil
}

func (m *authRepoStub) RevokeRefreshToken(ctx context.Context, id string, revokedAt time.Time) error {
	if m.revokeRefreshErr != nil {
		return m.revokeRefreshErr
	}
	for _, token := range m.sessions {
		if token.ID == id {
			token.Revoked = true
			token.RevokedAt = &revokedAt
		}
	}
	return nil
}

func (m *authRepoStub) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	m.auditLogs = append(m.auditLogs, log)
	return nil
}

func newAuthService(repo *authRepoStub) *AuthService {
	return NewAuthService(repo, validator.New(), zap.NewNop(), AuthConfig{
		AccessTokenSecret:  "secret",
		AccessTokenExpiry:  time.Hour,
		RefreshTokenExpiry: 24 * time.Hour,
	})
}

func hashOf(t *testing.T, password string) string {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	return string(hash)
}

func TestLoginOpensSession(t *testing.T) {
	repo := &authRepoStub{userByEmail: &models.User{
		ID:           "u1",
		Email:        "chief@flightline.test",
		PasswordHash: hashOf(t, "correct horse"),
		Active:       true,
		Role:         models.RoleAdmin,
	}}
	svc := newAuthService(repo)

	res, err := svc.Login(context.Background(), models.LoginRequest{Email: "chief@flightline.test", Password: "correct horse"})
	require.NoError(t, err)
	assert.NotEmpty(t, res.AccessToken)
	assert.NotEmpty(t, res.RefreshToken)
	assert.True(t, repo.lastLoginUpdated)
	require.Len(t, repo.auditLogs, 1)
	assert.Equal(t, models.AuditActionLogin, repo.auditLogs[0].Action)
}

func TestLoginWrongPasswordDoesNotLeakAccountState(t *testing.T) {
	repo := &authRepoStub{userByEmail: &models.User{
		ID:           "u1",
		Email:        "chief@flightline.test",
		PasswordHash: hashOf(t, "correct horse"),
		Active:       true,
	}}
	svc := newAuthService(repo)

	_, err := svc.Login(context.Background(), models.LoginRequest{Email: "chief@flightline.test", Password: "wrong"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidCredentials.Code, appErrors.FromError(err).Code)

	// Unknown email must produce the same error code.
	_, err = svc.Login(context.Background(), models.LoginRequest{Email: "nobody@flightline.test", Password: "wrong"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidCredentials.Code, appErrors.FromError(err).Code)
}

func TestLoginInactiveAccount(t *testing.T) {
	repo := &authRepoStub{userByEmail: &models.User{
		ID:           "u1",
		Email:        "gone@flightline.test",
		PasswordHash: hashOf(t, "pw"),
		Active:       false,
	}}
	svc := newAuthService(repo)

	_, err := svc.Login(context.Background(), models.LoginRequest{Email: "gone@flightline.test", Password: "pw"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInactiveAccount.Code, appErrors.FromError(err).Code)
}

func TestRefreshRotatesToken(t *testing.T) {
	user := &models.User{ID: "u1", Email: "cfi@flightline.test", PasswordHash: "hash", Active: true, Role: models.RoleInstructor}
	repo := &authRepoStub{
		userByEmail: user,
		userByID:    user,
		sessions: map[string]*models.RefreshToken{
			"old-token": {ID: "rt1", UserID: user.ID, Token: "old-token", ExpiresAt: time.Now().Add(time.Hour)},
		},
	}
	svc := newAuthService(repo)

	res, err := svc.RefreshToken(context.Background(), models.RefreshTokenRequest{RefreshToken: "old-token"})
	require.NoError(t, err)
	assert.NotEmpty(t, res.AccessToken)
	assert.NotEqual(t, "old-token", res.RefreshToken)
	assert.True(t, repo.sessions["old-token"].Revoked, "the used token must not be replayable")
}

func TestRefreshRejectsExpiredToken(t *testing.T) {
	user := &models.User{ID: "u1", Active: true}
	repo := &authRepoStub{
		userByID: user,
		sessions: map[string]*models.RefreshToken{
			"stale": {ID: "rt1", UserID: user.ID, Token: "stale", ExpiresAt: time.Now().Add(-time.Minute)},
		},
	}
	svc := newAuthService(repo)

	_, err := svc.RefreshToken(context.Background(), models.RefreshTokenRequest{RefreshToken: "stale"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrUnauthorized.Code, appErrors.FromError(err).Code)
}

func TestLogoutRejectsForeignToken(t *testing.T) {
	repo := &authRepoStub{
		sessions: map[string]*models.RefreshToken{
			"theirs": {ID: "rt1", UserID: "other-user", Token: "theirs", ExpiresAt: time.Now().Add(time.Hour)},
		},
	}
	svc := newAuthService(repo)

	err := svc.Logout(context.Background(), "theirs", "u1", models.LoginRequest{})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
	assert.False(t, repo.sessions["theirs"].Revoked)
}

func TestChangePasswordRevokesSessions(t *testing.T) {
	oldHash := hashOf(t, "old password")
	repo := &authRepoStub{userByEmail: &models.User{ID: "u1", PasswordHash: oldHash, Active: true}}
	svc := newAuthService(repo)

	err := svc.ChangePassword(context.Background(), "u1", models.ChangePasswordRequest{OldPassword: "old password", NewPassword: "new password"})
	require.NoError(t, err)
	assert.NotEqual(t, oldHash, repo.userByEmail.PasswordHash)
	require.Len(t, repo.auditLogs, 1)
	assert.Equal(t, models.AuditActionPasswordChange, repo.auditLogs[0].Action)
}

func TestChangePasswordWrongOld(t *testing.T) {
	repo := &authRepoStub{userByEmail: &models.User{ID: "u1", PasswordHash: hashOf(t, "real"), Active: true}}
	svc := newAuthService(repo)

	err := svc.ChangePassword(context.Background(), "u1", models.ChangePasswordRequest{OldPassword: "guess", NewPassword: "new password"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestValidateTokenRoundTrip(t *testing.T) {
	svc := newAuthService(&authRepoStub{})
	user := &models.User{ID: "u1", Email: "cfi@flightline.test", Role: models.RoleInstructor}

	token, _, err := svc.signAccessToken(user)
	require.NoError(t, err)

	claims, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, user.ID, claims.UserID)
	assert.Equal(t, models.RoleInstructor, claims.Role)
}

func TestValidateTokenRejectsGarbage(t *testing.T) {
	svc := newAuthService(&authRepoStub{})
	_, err := svc.ValidateToken("not.a.jwt")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrUnauthorized.Code, appErrors.FromError(err).Code)
}
