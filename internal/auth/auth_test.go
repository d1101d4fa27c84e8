package auth

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"admissions-portal/internal/config"
	"admissions-portal/internal/helper"
	"admissions-portal/internal/models"
)

type memStore struct {
	admins map[string]models.AdminProfile
}

func (m *memStore) AdminByEmail(_ context.Context, email string) (models.AdminProfile, error) {
	a, ok := m.admins[email]
	if !ok {
		return a, ErrNotFound
	}
	return a, nil
}

func (m *memStore) CreateAdmin(_ context.Context, a *models.AdminProfile) error {
	if _, ok := m.admins[a.Email]; ok {
		return ErrEmailTaken
	}
	a.ID = int64(len(m.admins) + 1)
	m.admins[a.Email] = *a
	return nil
}

type fakeCaptcha struct {
	enabled bool
	score   float64
	err     error
}

func (f fakeCaptcha) Enabled() bool { return f.enabled }

func (f fakeCaptcha) Verify(context.Context, string) (bool, float64, error) {
	return f.err == nil, f.score, f.err
}

func newService(t *testing.T, captcha CaptchaVerifier) (*Service, *memStore) {
	t.Helper()
	store := &memStore{admins: map[string]models.AdminProfile{}}
	svc := NewService(store, config.NewJWT("secret"), captcha, nil)
	_, err := svc.CreateAdmin(context.Background(), NewAdmin{
		Email: " Desk@School.example ", Password: "hunter22", FullName: "Front Desk",
		Role: "admin", Permissions: models.Permissions{AccessQueue: true},
	})
	require.NoError(t, err)
	return svc, store
}

func TestLoginIssuesToken(t *testing.T) {
	svc, _ := newService(t, nil)

	resp, err := svc.Login(context.Background(), models.LoginRequest{Email: "desk@school.example", Password: "hunter22"})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.Token)
	assert.Equal(t, models.RoleAdmin, resp.User.Role)

	claims, err := config.NewJWT("secret").ValidateToken(resp.Token)
	require.NoError(t, err)
	assert.Equal(t, resp.User.ID, claims.UserID)
	assert.True(t, claims.Permissions.AccessQueue)
}

func TestLoginRejections(t *testing.T) {
	svc, store := newService(t, nil)
	ctx := context.Background()

	_, err := svc.Login(ctx, models.LoginRequest{Email: "desk@school.example", Password: "wrong"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = svc.Login(ctx, models.LoginRequest{Email: "nobody@school.example", Password: "hunter22"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	a := store.admins["desk@school.example"]
	a.IsBanned = true
	store.admins[a.Email] = a
	_, err = svc.Login(ctx, models.LoginRequest{Email: "desk@school.example", Password: "hunter22"})
	assert.ErrorIs(t, err, helper.ErrUserBanned)
}

func TestLoginRecaptcha(t *testing.T) {
	ctx := context.Background()
	req := models.LoginRequest{Email: "desk@school.example", Password: "hunter22"}

	svc, _ := newService(t, fakeCaptcha{enabled: true, score: 0.9})
	_, err := svc.Login(ctx, req)
	assert.ErrorIs(t, err, ErrCaptchaRequired)

	req.RecaptchaToken = "tok"
	_, err = svc.Login(ctx, req)
	assert.NoError(t, err)

	svc, _ = newService(t, fakeCaptcha{enabled: true, score: 0.2})
	_, err = svc.Login(ctx, req)
	assert.ErrorIs(t, err, ErrCaptchaRejected)

	svc, _ = newService(t, fakeCaptcha{enabled: true, err: errors.New("timeout")})
	_, err = svc.Login(ctx, req)
	assert.ErrorContains(t, err, "timeout")
}

func TestCreateAdminValidates(t *testing.T) {
	svc, _ := newService(t, nil)
	ctx := context.Background()

	_, err := svc.CreateAdmin(ctx, NewAdmin{Email: "x@y.z", Password: "pw", Role: "owner"})
	assert.Error(t, err)

	_, err = svc.CreateAdmin(ctx, NewAdmin{Email: "desk@school.example", Password: "pw", Role: "ADMIN"})
	assert.ErrorIs(t, err, ErrEmailTaken)
}
