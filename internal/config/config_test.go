package config

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"admissions-portal/internal/models"
)

func TestJWTRoundTrip(t *testing.T) {
	j := NewJWT("s3cret")
	admin := models.AdminProfile{
		ID: 7, Email: "ops@school.example", FullName: "Ops", Role: models.RoleAdmin,
		Permissions: models.Permissions{AccessQueue: true},
	}

	tok, err := j.GenerateToken(admin)
	require.NoError(t, err)

	claims, err := j.ValidateToken(tok)
	require.NoError(t, err)
	assert.Equal(t, int64(7), claims.UserID)
	assert.Equal(t, models.RoleAdmin, claims.Role)
	assert.True(t, claims.Permissions.AccessQueue)
	assert.False(t, claims.Permissions.AccessRoot)

	_, err = NewJWT("other").ValidateToken(tok)
	assert.Error(t, err)
}

func TestJWTExpiry(t *testing.T) {
	j := NewJWT("s3cret")
	j.now = func() time.Time { return time.Now().Add(-25 * time.Hour) }
	tok, err := j.GenerateToken(models.AdminProfile{ID: 1})
	require.NoError(t, err)

	_, err = NewJWT("s3cret").ValidateToken(tok)
	assert.Error(t, err)
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "x")
	t.Setenv("DB_DSN", "")
	t.Setenv("DB_USER", "portal")
	t.Setenv("DB_PASSWORD", "pw")
	t.Setenv("DB_HOST", "db")
	t.Setenv("DB_PORT", "")
	t.Setenv("DB_NAME", "adm")
	t.Setenv("SMS_WORKER_INTERVAL", "5s")
	t.Setenv("REMINDER_SWEEP_INTERVAL", "garbage")
	t.Setenv("ARKESEL_SENDER_ID", "")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "portal:pw@tcp(db:3306)/adm?parseTime=true&loc=UTC&charset=utf8mb4", cfg.DB.ConnString())
	assert.Equal(t, 5*time.Second, cfg.SMSWorkerInterval)
	assert.Equal(t, time.Minute, cfg.ReminderSweepInterval)
	assert.Equal(t, "GH_SCHOOLS", cfg.ArkeselSenderID)

	t.Setenv("JWT_SECRET", "")
	_, err = Load()
	assert.Error(t, err)
}

func TestRecaptchaVerify(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "key", r.PostForm.Get("secret"))
		if r.PostForm.Get("response") == "good" {
			_, _ = w.Write([]byte(`{"success":true,"score":0.9,"action":"login"}`))
			return
		}
		_, _ = w.Write([]byte(`{"success":false,"score":0.1}`))
	}))
	defer srv.Close()

	r := NewRecaptcha("key")
	r.endpoint = srv.URL
	assert.True(t, r.Enabled())

	ok, score, err := r.Verify(context.Background(), "good")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 0.9, score)

	ok, _, err = r.Verify(context.Background(), "bad")
	require.NoError(t, err)
	assert.False(t, ok)

	assert.False(t, NewRecaptcha("").Enabled())
}
