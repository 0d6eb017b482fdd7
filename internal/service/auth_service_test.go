package service

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/whistleblower-api/internal/models"
	appErrors "github.com/noah-isme/whistleblower-api/pkg/errors"
)

type mockAuthRepo struct {
	users            map[string]*models.User
	countErr         error
	createErr        error
	auditLogs        []*models.AuditLog
	lastLoginUpdated bool
}

func newMockAuthRepo() *mockAuthRepo {
	return &mockAuthRepo{users: map[string]*models.User{}}
}

func (m *mockAuthRepo) FindByUsername(ctx context.Context, username string) (*models.User, error) {
	if u, ok := m.users[username]; ok {
		return u, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockAuthRepo) FindByID(ctx context.Context, id string) (*models.User, error) {
	for _, u := range m.users {
		if u.ID == id {
			return u, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *mockAuthRepo) Count(ctx context.Context) (int, error) {
	return len(m.users), m.countErr
}

func (m *mockAuthRepo) Create(ctx context.Context, user *models.User) error {
	if m.createErr != nil {
		return m.createErr
	}
	user.ID = "user-" + user.Username
	m.users[user.Username] = user
	return nil
}

func (m *mockAuthRepo) UpdateLastLogin(ctx context.Context, id string, ts time.Time) error {
	m.lastLoginUpdated = true
	return nil
}

func (m *mockAuthRepo) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	m.auditLogs = append(m.auditLogs, log)
	return nil
}

func newTestAuthService(repo *mockAuthRepo) *AuthService {
	return NewAuthService(repo, nil, nil, AuthConfig{AccessTokenSecret: "secret", AccessTokenExpiry: time.Hour, Issuer: "test"})
}

func TestRegisterBootstrapAllowedWhenNoUsers(t *testing.T) {
	repo := newMockAuthRepo()
	svc := newTestAuthService(repo)

	info, err := svc.Register(context.Background(), models.RegisterRequest{Username: "  alice ", Password: "password123"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "alice", info.Username)
	assert.Equal(t, models.RoleAdmin, info.Role)
	require.NoError(t, bcrypt.CompareHashAndPassword([]byte(repo.users["alice"].PasswordHash), []byte("password123")))
	require.Len(t, repo.auditLogs, 1)
	assert.Nil(t, repo.auditLogs[0].UserID)
}

func TestRegisterRequiresAdminAfterBootstrap(t *testing.T) {
	repo := newMockAuthRepo()
	repo.users["root"] = &models.User{ID: "admin-1", Username: "root", Role: models.RoleAdmin}
	svc := newTestAuthService(repo)

	_, err := svc.Register(context.Background(), models.RegisterRequest{Username: "bob", Password: "password123"}, nil)
	assert.ErrorIs(t, err, appErrors.ErrUnauthorized)

	info, err := svc.Register(context.Background(), models.RegisterRequest{Username: "bob", Password: "password123"}, adminClaims())
	require.NoError(t, err)
	assert.Equal(t, "bob", info.Username)
}

func TestRegisterValidationAndConflict(t *testing.T) {
	repo := newMockAuthRepo()
	svc := newTestAuthService(repo)

	_, err := svc.Register(context.Background(), models.RegisterRequest{Username: "ab", Password: "password123"}, nil)
	assert.ErrorIs(t, err, appErrors.ErrValidation)
	_, err = svc.Register(context.Background(), models.RegisterRequest{Username: "alice", Password: "short"}, nil)
	assert.ErrorIs(t, err, appErrors.ErrValidation)

	_, err = svc.Register(context.Background(), models.RegisterRequest{Username: "alice", Password: "password123"}, nil)
	require.NoError(t, err)
	_, err = svc.Register(context.Background(), models.RegisterRequest{Username: "alice", Password: "password456"}, adminClaims())
	assert.ErrorIs(t, err, appErrors.ErrConflict)
}

func TestRegisterMapsUniqueViolation(t *testing.T) {
	repo := newMockAuthRepo()
	repo.createErr = &pq.Error{Code: "23505"}
	svc := newTestAuthService(repo)

	_, err := svc.Register(context.Background(), models.RegisterRequest{Username: "alice", Password: "password123"}, adminClaims())
	assert.ErrorIs(t, err, appErrors.ErrConflict)
}

func TestLoginAndValidateToken(t *testing.T) {
	repo := newMockAuthRepo()
	svc := newTestAuthService(repo)
	_, err := svc.Register(context.Background(), models.RegisterRequest{Username: "alice", Password: "password123"}, nil)
	require.NoError(t, err)

	resp, err := svc.Login(context.Background(), models.LoginRequest{Username: "alice", Password: "password123"})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.AccessToken)
	assert.Equal(t, int64(3600), resp.ExpiresIn)
	assert.True(t, repo.lastLoginUpdated)

	claims, err := svc.ValidateToken(resp.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "user-alice", claims.UserID)
	assert.Equal(t, models.RoleAdmin, claims.Role)

	me, err := svc.Me(context.Background(), claims)
	require.NoError(t, err)
	assert.Equal(t, "alice", me.Username)
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	repo := newMockAuthRepo()
	svc := newTestAuthService(repo)
	_, err := svc.Register(context.Background(), models.RegisterRequest{Username: "alice", Password: "password123"}, nil)
	require.NoError(t, err)

	_, err = svc.Login(context.Background(), models.LoginRequest{Username: "alice", Password: "wrong-password"})
	assert.ErrorIs(t, err, appErrors.ErrInvalidCredentials)
	_, err = svc.Login(context.Background(), models.LoginRequest{Username: "nobody", Password: "password123"})
	assert.ErrorIs(t, err, appErrors.ErrInvalidCredentials)
}

func TestValidateTokenRejectsForeignSecret(t *testing.T) {
	repo := newMockAuthRepo()
	issuer := NewAuthService(repo, nil, nil, AuthConfig{AccessTokenSecret: "other", Issuer: "test"})
	_, err := issuer.Register(context.Background(), models.RegisterRequest{Username: "alice", Password: "password123"}, nil)
	require.NoError(t, err)
	resp, err := issuer.Login(context.Background(), models.LoginRequest{Username: "alice", Password: "password123"})
	require.NoError(t, err)

	_, err = newTestAuthService(repo).ValidateToken(resp.AccessToken)
	assert.True(t, errors.Is(err, appErrors.ErrUnauthorized))
}
