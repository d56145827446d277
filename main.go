package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"kelasin/chat/internal/audit"
	"kelasin/chat/internal/chat"
	"kelasin/chat/internal/config"
	"kelasin/chat/internal/database"
	"kelasin/chat/internal/handlers"
	"kelasin/chat/internal/middleware"
	"kelasin/chat/internal/routes"
	"kelasin/chat/internal/seed"
	"kelasin/chat/internal/storage"
	"kelasin/chat/internal/store"
	"kelasin/chat/internal/utils"
	ws "kelasin/chat/internal/websocket"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	cfg := config.Load()

	// Human readable logs in development, JSON otherwise
	if cfg.IsDevelopment() {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	}
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if cfg.IsDevelopment() {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}

	utils.SetJWTSecret(cfg.JWTSecret)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Store: PostgreSQL when configured, in-memory demo data otherwise
	var st store.ChatStore
	if cfg.DatabaseURL != "" {
		if err := database.Connect(ctx, cfg.DatabaseURL, database.PoolOptions{MaxConns: cfg.DBMaxConns}); err != nil {
			log.Fatal().Err(err).Msg("failed to connect to database")
		}
		defer database.Close()

		if err := database.Migrate(ctx); err != nil {
			log.Fatal().Err(err).Msg("failed to run migrations")
		}
		st = store.NewPostgresStore(database.Pool)
	} else {
		mem := store.NewMemoryStore()
		res, err := seed.Run(ctx, mem, seed.DefaultOptions())
		if err != nil {
			log.Fatal().Err(err).Msg("failed to seed memory store")
		}
		log.Warn().
			Str("login", res.Users[0].Email).
			Str("password", seed.DefaultPassword).
			Msg("DATABASE_URL not set, using in-memory store with demo data")
		st = mem
	}

	// Attachments: MinIO/S3 when configured, local directory otherwise
	baseURL := cfg.PublicBaseURL
	if baseURL == "" {
		baseURL = "http://localhost:" + cfg.Port
	}
	local := storage.NewLocalStorage(cfg.UploadDir, baseURL)
	var files storage.Storage = local
	var remote storage.Presigner
	if cfg.S3.Endpoint != "" {
		s3, err := storage.NewS3Storage(storage.S3Config{
			Endpoint:  cfg.S3.Endpoint,
			AccessKey: cfg.S3.AccessKey,
			SecretKey: cfg.S3.SecretKey,
			UseSSL:    cfg.S3.UseSSL,
			Bucket:    cfg.S3.Bucket,
			Region:    cfg.S3.Region,
			BaseURL:   baseURL,
		})
		if err != nil {
			log.Fatal().Err(err).Msg("failed to create S3 client")
		}
		if err := s3.EnsureBucket(ctx); err != nil {
			log.Fatal().Err(err).Str("bucket", cfg.S3.Bucket).Msg("failed to prepare bucket")
		}
		files, remote, local = s3, s3, nil
		log.Info().Str("endpoint", cfg.S3.Endpoint).Msg("attachments stored in S3")
	}

	// Audit log
	var pub audit.Publisher = audit.Nop{}
	if len(cfg.KafkaBrokers) > 0 {
		pub = audit.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic)
		log.Info().Strs("brokers", cfg.KafkaBrokers).Str("topic", cfg.KafkaTopic).Msg("audit log enabled")
	}
	defer pub.Close()

	service := chat.NewService(st, files, pub, log.With().Str("component", "chat").Logger())

	// Cross-instance fanout
	var fanout ws.Fanout
	if cfg.RedisURL != "" {
		rf, err := ws.NewRedisFanout(ctx, cfg.RedisURL)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to redis")
		}
		defer rf.Close()
		fanout = rf
		log.Info().Msg("redis fanout enabled")
	}

	hub := ws.NewHub(service, fanout, log.With().Str("component", "hub").Logger())
	go hub.Run(ctx)

	limits := middleware.DefaultLimits()
	limits.Auth.Max = cfg.AuthLimit
	limits.Read.Max = cfg.ReadLimit
	limits.Upload.Max = cfg.UploadLimit

	h := &handlers.Handler{
		Service:       service,
		Store:         st,
		Files:         files,
		Local:         local,
		Remote:        remote,
		Hub:           hub,
		Logger:        log.With().Str("component", "http").Logger(),
		SocketRate:    cfg.SocketRate,
		SocketBurst:   cfg.SocketBurst,
		SecureCookies: !cfg.IsDevelopment(),
		Limits:        limits,
	}

	// Initialize Fiber app
	app := fiber.New(fiber.Config{
		AppName:   "Kelasin Chat API v1.0",
		BodyLimit: handlers.MaxFileSize + 1024*1024,
	})

	// Middleware
	app.Use(logger.New())
	app.Use(middleware.Metrics)
	app.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.CORSOrigins,
		AllowCredentials: true,
	}))

	routes.SetupRoutes(app, h)

	go func() {
		<-ctx.Done()
		log.Info().Msg("shutting down")
		if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
			log.Error().Err(err).Msg("shutdown failed")
		}
	}()

	log.Info().Str("port", cfg.Port).Msg("server starting")
	if err := app.Listen(":" + cfg.Port); err != nil {
		log.Fatal().Err(err).Msg("server stopped")
	}
	st.Close()
}
