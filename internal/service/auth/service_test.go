package auth

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wellmom/wellmom-api/internal/config"
	"github.com/wellmom/wellmom-api/internal/model"
	"github.com/wellmom/wellmom-api/internal/repository"
	apperrors "github.com/wellmom/wellmom-api/pkg/errors"
	"github.com/wellmom/wellmom-api/pkg/security"
)

type fakeUserRepo struct {
	byEmail   map[string]*model.User
	lastLogin map[uuid.UUID]time.Time
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{
		byEmail:   make(map[string]*model.User),
		lastLogin: make(map[uuid.UUID]time.Time),
	}
}

func (r *fakeUserRepo) Create(_ context.Context, user *model.User) error {
	key := strings.ToLower(user.Email)
	if _, exists := r.byEmail[key]; exists {
		return repository.ErrDuplicate
	}
	user.ID = uuid.New()
	r.byEmail[key] = user
	return nil
}

func (r *fakeUserRepo) Get(_ context.Context, id uuid.UUID) (*model.User, error) {
	for _, u := range r.byEmail {
		if u.ID == id {
			return u, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *fakeUserRepo) GetByEmail(_ context.Context, email string) (*model.User, error) {
	u, ok := r.byEmail[strings.ToLower(email)]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return u, nil
}

func (r *fakeUserRepo) Update(_ context.Context, user *model.User) error {
	r.byEmail[strings.ToLower(user.Email)] = user
	return nil
}

func (r *fakeUserRepo) UpdateLastLogin(_ context.Context, id uuid.UUID, at time.Time) error {
	r.lastLogin[id] = at
	return nil
}

func newTestService() (*Service, *fakeUserRepo) {
	repo := newFakeUserRepo()
	cfg := config.JWTConfig{Secret: "test-secret", ExpiryHours: 1}
	return NewService(repo, security.NewBcryptHasher(4), cfg), repo
}

func registerRequest() *RegisterRequest {
	return &RegisterRequest{
		Email:    "Siti@Example.COM",
		Password: "rahasia-123",
		Name:     "Siti",
		Role:     model.RoleMother,
	}
}

func TestRegisterNormalizesEmail(t *testing.T) {
	svc, _ := newTestService()

	user, err := svc.Register(context.Background(), registerRequest())
	require.NoError(t, err)

	assert.Equal(t, "siti@example.com", user.Email)
	assert.Equal(t, model.RoleMother, user.Role)
	assert.True(t, user.Active)
	assert.NotEqual(t, "rahasia-123", user.PasswordHash)
}

func TestRegisterRejectsDuplicateEmail(t *testing.T) {
	svc, _ := newTestService()

	_, err := svc.Register(context.Background(), registerRequest())
	require.NoError(t, err)

	_, err = svc.Register(context.Background(), registerRequest())
	assert.True(t, apperrors.Is(err, apperrors.ErrBadRequest))
}

func TestRegisterRejectsShortPassword(t *testing.T) {
	svc, _ := newTestService()

	req := registerRequest()
	req.Password = "pendek"
	_, err := svc.Register(context.Background(), req)
	assert.True(t, apperrors.Is(err, apperrors.ErrBadRequest))
}

func TestLoginIssuesValidToken(t *testing.T) {
	svc, repo := newTestService()

	user, err := svc.Register(context.Background(), registerRequest())
	require.NoError(t, err)

	resp, err := svc.Login(context.Background(), &LoginRequest{
		Email:    "siti@example.com",
		Password: "rahasia-123",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.Token)
	assert.True(t, resp.ExpiresAt.After(time.Now()))

	claims, err := svc.ValidateToken(resp.Token)
	require.NoError(t, err)
	assert.Equal(t, user.ID, claims.UserID)
	assert.Equal(t, model.RoleMother, claims.Role)

	_, recorded := repo.lastLogin[user.ID]
	assert.True(t, recorded)
}

func TestLoginRejectsWrongPassword(t *testing.T) {
	svc, _ := newTestService()

	_, err := svc.Register(context.Background(), registerRequest())
	require.NoError(t, err)

	_, err = svc.Login(context.Background(), &LoginRequest{
		Email:    "siti@example.com",
		Password: "salah-semua",
	})
	assert.True(t, apperrors.Is(err, apperrors.ErrUnauthorized))
}

func TestLoginRejectsUnknownEmail(t *testing.T) {
	svc, _ := newTestService()

	_, err := svc.Login(context.Background(), &LoginRequest{
		Email:    "tidak@ada.com",
		Password: "rahasia-123",
	})
	assert.True(t, apperrors.Is(err, apperrors.ErrUnauthorized))
}

func TestLoginRejectsDeactivatedAccount(t *testing.T) {
	svc, repo := newTestService()

	user, err := svc.Register(context.Background(), registerRequest())
	require.NoError(t, err)
	user.Active = false
	require.NoError(t, repo.Update(context.Background(), user))

	_, err = svc.Login(context.Background(), &LoginRequest{
		Email:    "siti@example.com",
		Password: "rahasia-123",
	})
	assert.True(t, apperrors.Is(err, apperrors.ErrUnauthorized))
}

func TestValidateTokenRejectsTampering(t *testing.T) {
	svc, _ := newTestService()

	_, err := svc.Register(context.Background(), registerRequest())
	require.NoError(t, err)

	resp, err := svc.Login(context.Background(), &LoginRequest{
		Email:    "siti@example.com",
		Password: "rahasia-123",
	})
	require.NoError(t, err)

	tampered := resp.Token[:len(resp.Token)-2] + "xx"
	_, err = svc.ValidateToken(tampered)
	assert.True(t, apperrors.Is(err, apperrors.ErrUnauthorized))
}
