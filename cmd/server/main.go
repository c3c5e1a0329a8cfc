package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/AnshRaj112/buildlog-backend/internal/config"
	"github.com/AnshRaj112/buildlog-backend/internal/database"
	"github.com/AnshRaj112/buildlog-backend/internal/logger"
	"github.com/AnshRaj112/buildlog-backend/internal/repository/mongostore"
	"github.com/AnshRaj112/buildlog-backend/internal/repository/postgres"
	"github.com/AnshRaj112/buildlog-backend/internal/routes"
	"github.com/AnshRaj112/buildlog-backend/internal/services"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const shutdownTimeout = 10 * time.Second

func main() {
	envErr := godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		// Logger is not configured yet; the default zerolog logger still writes to stderr.
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	logger.Init(cfg.LogLevel, cfg.LogFormat)
	if envErr != nil {
		log.Info().Msg("No .env file found, using process environment")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		log.Fatal().Err(err).Msg("Server stopped")
	}
}

func run(ctx context.Context, cfg *config.Config) error {
	mongo, err := database.Connect(ctx, cfg.MongoURI)
	if err != nil {
		return fmt.Errorf("connect mongodb: %w", err)
	}
	defer func() {
		if err := mongo.Disconnect(); err != nil {
			log.Warn().Err(err).Msg("MongoDB disconnect failed")
		}
	}()
	if err := mongostore.EnsureIndexes(ctx, mongo.DB); err != nil {
		log.Warn().Err(err).Msg("⚠️  Failed to ensure MongoDB indexes")
	} else {
		log.Info().Msg("✅ MongoDB indexes ensured")
	}
	store := mongostore.NewStore(mongo.DB)

	var rdb *redis.Client
	if cfg.RedisURI != "" {
		if rdb, err = database.ConnectRedis(ctx, cfg.RedisURI); err != nil {
			return fmt.Errorf("connect redis: %w", err)
		}
		defer rdb.Close()
	} else {
		log.Warn().Msg("REDIS_URI not set: realtime fan-out, locks and cache are local to this instance")
	}

	var audit services.AuditLog = services.NopAudit{}
	if cfg.PostgresURI != "" {
		pg, err := database.ConnectPostgres(ctx, cfg.PostgresURI)
		if err != nil {
			return fmt.Errorf("connect postgres: %w", err)
		}
		defer pg.Close()
		audit = services.NewAuditRecorder(postgres.NewAuditRepository(pg))
	} else {
		log.Info().Msg("POSTGRES_URI not set: auth audit log disabled")
	}

	sessions, err := services.NewSessionIssuer(cfg.JWTSecret, cfg.JWTTTL)
	if err != nil {
		return err
	}

	media, err := mediaStore(ctx, cfg)
	if err != nil {
		return err
	}
	mailer, err := otpMailer(cfg)
	if err != nil {
		return err
	}

	hub := services.NewHub(0)
	defer hub.Close()
	var (
		notifier services.Notifier = hub
		locker   services.Locker   = services.NewLocalLocker()
		cache    services.Cache    = services.NopCache{}
	)
	if rdb != nil {
		rn := services.NewRedisNotifier(rdb, hub)
		rn.Start(ctx)
		notifier = rn
		locker = services.NewRedisLocker(rdb, 0)
		cache = services.NewRedisCache(rdb, 0)
	}

	policy := services.OTPPolicy{TTL: cfg.OTPTTL, ResendCooldown: cfg.OTPResendCooldown}
	svc := routes.Services{
		Sessions: sessions,
		Notifier: notifier,
		Auth:     services.NewAuthService(store.Users, sessions, mailer, audit, policy),
		Users:    services.NewUserService(store.Users, media, cache),
		Follows:  services.NewFollowService(store.Users, locker, notifier, cache),
		Votes:    services.NewVoteService(store.Posts),
		Posts:    services.NewPostService(store, media),
		Projects: services.NewProjectService(store, media),
		Stories:  services.NewStoryService(store, media),
		Chats:    services.NewChatService(store, notifier),
	}

	sweeper, err := services.NewOTPSweeper(store.Users, cfg.OTPSweepSchedule)
	if err != nil {
		return err
	}
	sweeper.Start()
	log.Info().Str("schedule", cfg.OTPSweepSchedule).Msg("✅ OTP sweep scheduled")

	router := routes.NewRouter(ctx, svc, routes.Options{
		AllowedOrigins: cfg.AllowedOrigins,
		Production:     cfg.IsProduction(),
		AllowedHost:    cfg.AllowedHost,
		UploadDir:      cfg.UploadDir,
		MaxUploadBytes: cfg.MaxUploadBytes,
		Redis:          rdb,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	serveErr := make(chan error, 1)
	go func() {
		log.Info().Str("port", cfg.Port).Str("env", cfg.Environment).Msg("🚀 Server running")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		return err
	case <-ctx.Done():
	}

	log.Info().Msg("Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	sweeper.Stop(shutdownCtx)
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

// mediaStore picks the configured backend and puts local disk behind it.
func mediaStore(ctx context.Context, cfg *config.Config) (services.MediaStore, error) {
	local := services.NewLocalStore(cfg.UploadDir)
	switch cfg.MediaBackend {
	case "cloudinary":
		if !cfg.CloudinaryConfigured() {
			log.Warn().Msg("Cloudinary credentials not found, media is stored locally")
			return local, nil
		}
		cld, err := services.NewCloudinaryStore(cfg.CloudinaryName, cfg.CloudinaryAPIKey, cfg.CloudinaryAPISecret, cfg.CloudinaryFolder)
		if err != nil {
			return nil, fmt.Errorf("cloudinary: %w", err)
		}
		log.Info().Msg("✅ Cloudinary media store initialized")
		return &services.FallbackStore{Primary: cld, Fallback: local}, nil
	case "minio":
		mc, err := services.NewMinioStore(cfg.MinioEndpoint, cfg.MinioAccessKey, cfg.MinioSecretKey, cfg.MinioBucket, cfg.MinioUseSSL, cfg.MinioPublicURL)
		if err != nil {
			return nil, fmt.Errorf("minio: %w", err)
		}
		if err := mc.EnsureBucket(ctx); err != nil {
			log.Warn().Err(err).Str("bucket", cfg.MinioBucket).Msg("MinIO bucket check failed, uploads will fall back to local disk")
		}
		log.Info().Str("endpoint", cfg.MinioEndpoint).Msg("✅ MinIO media store initialized")
		return &services.FallbackStore{Primary: mc, Fallback: local}, nil
	default:
		return local, nil
	}
}

func otpMailer(cfg *config.Config) (services.Mailer, error) {
	if cfg.SMTPConfigured() {
		return services.NewSMTPMailer(services.SMTPConfig{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.SMTPUsername,
			Password: cfg.SMTPPassword,
			From:     cfg.SMTPFrom,
		}, cfg.OTPTTL), nil
	}
	if cfg.IsProduction() {
		return nil, errors.New("SMTP is not configured; set SMTP_HOST and SMTP_FROM (or EMAIL_USER)")
	}
	log.Warn().Msg("SMTP not configured: OTP codes are written to the log")
	return services.LogMailer{}, nil
}
