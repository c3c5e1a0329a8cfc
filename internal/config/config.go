package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	Environment string `env:"ENV" envDefault:"development"` // ENV: production, development, etc.
	Port        string `env:"PORT" envDefault:"5000"`
	Host        string `env:"HOST" envDefault:"http://localhost:5000"`

	MongoURI       string `env:"MONGODB_URI"`
	LegacyMongoURI string `env:"MONGO_URI" envDefault:"mongodb://localhost:27017/project_updates"`
	RedisURI       string `env:"REDIS_URI"`    // empty disables Redis-backed fan-out, locks, cache and limiter
	PostgresURI    string `env:"POSTGRES_URI"` // empty disables the auth audit log

	JWTSecret string        `env:"JWT_SECRET,required,notEmpty"`
	JWTTTL    time.Duration `env:"JWT_TTL" envDefault:"168h"`

	// AllowedHost enables the production Host header check, e.g. api.example.com.
	AllowedHost    string   `env:"ALLOWED_HOST"`
	FrontendURL    string   `env:"FRONTEND_URL" envDefault:"http://localhost:5173"`
	AllowedOrigins []string `env:"ALLOWED_ORIGINS" envSeparator:","`

	MediaBackend        string `env:"MEDIA_BACKEND" envDefault:"cloudinary"` // cloudinary, minio or local
	CloudinaryName      string `env:"CLOUDINARY_CLOUD_NAME"`
	CloudinaryAPIKey    string `env:"CLOUDINARY_API_KEY"`
	CloudinaryAPISecret string `env:"CLOUDINARY_API_SECRET"`
	CloudinaryFolder    string `env:"CLOUDINARY_FOLDER" envDefault:"project_updates"`
	MinioEndpoint       string `env:"MINIO_ENDPOINT"`
	MinioAccessKey      string `env:"MINIO_ACCESS_KEY"`
	MinioSecretKey      string `env:"MINIO_SECRET_KEY"`
	MinioBucket         string `env:"MINIO_BUCKET" envDefault:"media"`
	MinioUseSSL         bool   `env:"MINIO_USE_SSL" envDefault:"false"`
	MinioPublicURL      string `env:"MINIO_PUBLIC_URL"`
	UploadDir           string `env:"UPLOAD_DIR" envDefault:"uploads"`
	MaxUploadBytes      int64  `env:"MAX_UPLOAD_BYTES" envDefault:"10485760"`

	SMTPHost     string `env:"SMTP_HOST"`
	SMTPPort     int    `env:"SMTP_PORT" envDefault:"587"`
	SMTPUsername string `env:"SMTP_USERNAME"`
	SMTPPassword string `env:"SMTP_PASSWORD"`
	SMTPFrom     string `env:"SMTP_FROM"`
	// Gmail app-password shortcut, kept for existing deployments.
	EmailUser        string `env:"EMAIL_USER"`
	EmailAppPassword string `env:"EMAIL_APP_PASSWORD"`

	OTPTTL            time.Duration `env:"OTP_TTL" envDefault:"10m"`
	OTPResendCooldown time.Duration `env:"OTP_RESEND_COOLDOWN" envDefault:"50m"`
	OTPSweepSchedule  string        `env:"OTP_SWEEP_SCHEDULE" envDefault:"@every 1m"`

	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"console"`
}

// Load reads the process environment. It fails when JWT_SECRET is missing so the
// server never signs sessions with a guessable fallback key.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	cfg.Environment = strings.ToLower(strings.TrimSpace(cfg.Environment))
	if cfg.MongoURI == "" {
		cfg.MongoURI = cfg.LegacyMongoURI
	}

	if cfg.SMTPHost == "" && cfg.EmailUser != "" {
		cfg.SMTPHost = "smtp.gmail.com"
		cfg.SMTPUsername = cfg.EmailUser
		cfg.SMTPPassword = cfg.EmailAppPassword
	}
	if cfg.SMTPFrom == "" {
		cfg.SMTPFrom = cfg.SMTPUsername
	}

	// CORS: ALLOWED_ORIGINS wins, otherwise the frontend URL
	cfg.AllowedOrigins = parseOrigins(strings.Join(cfg.AllowedOrigins, ","))
	if len(cfg.AllowedOrigins) == 0 {
		cfg.AllowedOrigins = parseOrigins(cfg.FrontendURL)
	}
	if h := hostDomain(cfg.Host); h != "" && cfg.IsProduction() {
		for _, origin := range []string{"https://" + h, "https://www." + h} {
			if !containsOrigin(cfg.AllowedOrigins, origin) {
				cfg.AllowedOrigins = append(cfg.AllowedOrigins, origin)
			}
		}
	}

	switch cfg.MediaBackend {
	case "cloudinary", "minio", "local":
	default:
		return nil, fmt.Errorf("config: unknown MEDIA_BACKEND %q", cfg.MediaBackend)
	}
	if cfg.MaxUploadBytes <= 0 {
		return nil, errors.New("config: MAX_UPLOAD_BYTES must be positive")
	}

	return cfg, nil
}

// hostDomain strips scheme, port, path and the first label from HOST
// (backend.example.com -> example.com). Localhost yields "".
func hostDomain(host string) string {
	for _, prefix := range []string{"https://", "http://"} {
		host = strings.TrimPrefix(host, prefix)
	}
	if idx := strings.Index(host, "/"); idx != -1 {
		host = host[:idx]
	}
	if idx := strings.Index(host, ":"); idx != -1 {
		host = host[:idx]
	}
	host = strings.TrimSpace(host)
	if host == "" || host == "localhost" {
		return ""
	}
	parts := strings.Split(host, ".")
	if len(parts) < 3 {
		return ""
	}
	return strings.Join(parts[1:], ".")
}

func parseOrigins(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part != "" && !containsOrigin(out, part) {
			out = append(out, part)
		}
	}
	return out
}

func containsOrigin(list []string, o string) bool {
	o = strings.TrimSpace(strings.ToLower(o))
	for _, v := range list {
		if strings.TrimSpace(strings.ToLower(v)) == o {
			return true
		}
	}
	return false
}

// IsProduction returns true when ENV is set to "production".
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// SMTPConfigured reports whether outgoing mail can be sent.
func (c *Config) SMTPConfigured() bool {
	return c.SMTPHost != "" && c.SMTPFrom != ""
}

// CloudinaryConfigured reports whether all Cloudinary credentials are present.
func (c *Config) CloudinaryConfigured() bool {
	return c.CloudinaryName != "" && c.CloudinaryAPIKey != "" && c.CloudinaryAPISecret != ""
}
