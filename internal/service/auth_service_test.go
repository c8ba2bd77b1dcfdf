package service

import (
	"context"
	"sync"
	"testing"

	"github.com/pisync/server/internal/models"
	"github.com/pisync/server/internal/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeUserStore struct {
	mu    sync.Mutex
	users map[string]*models.User // by email
}

func newFakeUserStore() *fakeUserStore {
	return &fakeUserStore{users: make(map[string]*models.User)}
}

func (s *fakeUserStore) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u, ok := s.users[email]; ok {
		copied := *u
		return &copied, nil
	}
	return nil, repository.ErrUserNotFound
}

func (s *fakeUserStore) Create(ctx context.Context, user *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *user
	s.users[user.Email] = &copied
	return nil
}

func TestAuth_RegisterAndLogin(t *testing.T) {
	svc := NewAuthService(newFakeUserStore(), "test-secret")

	err := svc.Register(context.Background(), "alice", "alice@example.com", "hunter22", models.RoleUser)
	require.NoError(t, err)

	token, err := svc.Login(context.Background(), "alice@example.com", "hunter22")
	require.NoError(t, err)
	require.NotEmpty(t, token)

	claims, err := svc.VerifyToken(token)
	require.NoError(t, err)
	assert.Equal(t, "alice", claims.Username)
	assert.Equal(t, models.RoleUser, claims.Role)
	assert.NotEmpty(t, claims.Subject)
}

func TestAuth_DuplicateEmailIsConflict(t *testing.T) {
	svc := NewAuthService(newFakeUserStore(), "test-secret")

	require.NoError(t, svc.Register(context.Background(), "alice", "alice@example.com", "hunter22", models.RoleUser))
	err := svc.Register(context.Background(), "alice2", "alice@example.com", "other", models.RoleUser)
	assert.ErrorIs(t, err, ErrConflict)
}

func TestAuth_InvalidCredentials(t *testing.T) {
	svc := NewAuthService(newFakeUserStore(), "test-secret")
	require.NoError(t, svc.Register(context.Background(), "alice", "alice@example.com", "hunter22", models.RoleUser))

	// Wrong password and unknown email are indistinguishable
	_, err := svc.Login(context.Background(), "alice@example.com", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = svc.Login(context.Background(), "nobody@example.com", "hunter22")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestAuth_VerifyRejectsForeignToken(t *testing.T) {
	issuer := NewAuthService(newFakeUserStore(), "secret-a")
	verifier := NewAuthService(newFakeUserStore(), "secret-b")

	require.NoError(t, issuer.Register(context.Background(), "alice", "alice@example.com", "hunter22", models.RoleUser))
	token, err := issuer.Login(context.Background(), "alice@example.com", "hunter22")
	require.NoError(t, err)

	_, err = verifier.VerifyToken(token)
	assert.Error(t, err)
}

func TestAuth_Validation(t *testing.T) {
	svc := NewAuthService(newFakeUserStore(), "test-secret")

	err := svc.Register(context.Background(), "", "a@b.c", "pw", models.RoleUser)
	assert.ErrorIs(t, err, ErrValidation)

	err = svc.Register(context.Background(), "alice", "a@b.c", "pw", models.UserRole("root"))
	assert.ErrorIs(t, err, ErrValidation)

	_, err = svc.Login(context.Background(), "", "pw")
	assert.ErrorIs(t, err, ErrValidation)
}
