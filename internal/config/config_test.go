package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_RequiresJWTSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "JWT_SECRET")
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "s3cret")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "5000", cfg.Port)
	assert.Equal(t, "mongodb://localhost:27017/project_updates", cfg.MongoURI)
	assert.Equal(t, 7*24*time.Hour, cfg.JWTTTL)
	assert.Equal(t, 10*time.Minute, cfg.OTPTTL)
	assert.Equal(t, 50*time.Minute, cfg.OTPResendCooldown)
	assert.Equal(t, []string{"http://localhost:5173"}, cfg.AllowedOrigins)
	assert.Equal(t, int64(10<<20), cfg.MaxUploadBytes)
	assert.False(t, cfg.IsProduction())
	assert.False(t, cfg.SMTPConfigured())
}

func TestLoad_MongoURIPrecedence(t *testing.T) {
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("MONGO_URI", "mongodb://legacy:27017/feed")
	t.Setenv("MONGODB_URI", "mongodb://primary:27017/feed")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "mongodb://primary:27017/feed", cfg.MongoURI)
}

func TestLoad_GmailShortcut(t *testing.T) {
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("EMAIL_USER", "team@example.com")
	t.Setenv("EMAIL_APP_PASSWORD", "app-pass")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "smtp.gmail.com", cfg.SMTPHost)
	assert.Equal(t, "team@example.com", cfg.SMTPUsername)
	assert.Equal(t, "team@example.com", cfg.SMTPFrom)
	assert.True(t, cfg.SMTPConfigured())
}

func TestLoad_AllowedOrigins(t *testing.T) {
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("ENV", "Production")
	t.Setenv("HOST", "https://api.buildlog.dev")
	t.Setenv("ALLOWED_ORIGINS", " https://app.buildlog.dev ,https://app.buildlog.dev,")

	cfg, err := Load()
	require.NoError(t, err)
	assert.True(t, cfg.IsProduction())
	assert.Equal(t, []string{
		"https://app.buildlog.dev",
		"https://buildlog.dev",
		"https://www.buildlog.dev",
	}, cfg.AllowedOrigins)
}

func TestLoad_RejectsUnknownMediaBackend(t *testing.T) {
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("MEDIA_BACKEND", "ftp")

	_, err := Load()
	assert.Error(t, err)
}

func TestHostDomain(t *testing.T) {
	tests := []struct {
		host string
		want string
	}{
		{"http://localhost:5000", ""},
		{"https://api.buildlog.dev/v1", "buildlog.dev"},
		{"buildlog.dev", ""},
		{"https://backend.eu.buildlog.dev:443", "eu.buildlog.dev"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, hostDomain(tt.host), tt.host)
	}
}
