package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"proofdeck/api/internal/app"
	"proofdeck/api/internal/blob"
	"proofdeck/api/internal/compress"
	"proofdeck/api/internal/config"
	"proofdeck/api/internal/notify"
	"proofdeck/api/internal/ratelimit"
	"proofdeck/api/internal/retention"
	"proofdeck/api/internal/search"
	"proofdeck/api/internal/store"
)

func main() {
	cfg := config.Load()
	ctx := context.Background()

	db, err := store.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("database connection failed: %v", err)
	}
	defer db.Close()

	if err := store.ApplyMigrations(ctx, db, cfg.MigrationsDir); err != nil {
		log.Fatalf("migrations failed: %v", err)
	}

	dataStore := store.NewPostgresStore(db)

	blobStore, err := blob.NewStore(ctx, blob.Config{
		Endpoint:  cfg.MinioEndpoint,
		AccessKey: cfg.MinioAccessKey,
		SecretKey: cfg.MinioSecretKey,
		Bucket:    cfg.MinioBucket,
		UseSSL:    cfg.MinioUseSSL,
	})
	if err != nil {
		log.Fatalf("object store connection failed: %v", err)
	}

	var limiter ratelimit.Limiter
	if strings.TrimSpace(cfg.RedisURL) != "" {
		redisLimiter, err := ratelimit.NewRedisLimiter(cfg.RedisURL, cfg.RateLimitPerHr, time.Hour)
		if err != nil {
			log.Fatalf("redis connection failed: %v", err)
		}
		defer redisLimiter.Close()
		limiter = redisLimiter
		log.Printf("Using Redis for public action rate limiting")
	} else {
		limiter = ratelimit.NewMemoryLimiter(cfg.RateLimitPerHr, time.Hour)
		log.Printf("Using in-memory public action rate limiting")
	}

	pgComments := search.NewPgComments(db)
	var meiliClient *search.Meili
	if strings.TrimSpace(cfg.MeiliURL) != "" {
		meiliClient = search.NewMeili(cfg.MeiliURL, cfg.MeiliMasterKey)
	}
	searchService := search.NewService(meiliClient, pgComments)
	if meiliClient != nil {
		defer meiliClient.Close()
	}

	emailService := notify.NewEmail(notify.EmailConfig{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		Username: cfg.SMTPUsername,
		Password: cfg.SMTPPassword,
		From:     cfg.SMTPFrom,
		FromName: cfg.SMTPFromName,
	})
	sink := notify.NewSink(emailService, cfg.AgencyEmail)

	compressor := compress.NewClient(cfg.CompressorURL, cfg.CompressorTimeout)

	service := app.New(cfg, dataStore, blobStore, compressor, limiter, sink, searchService)
	httpServer := app.NewHTTPServer(service, cfg.CORSOrigin, cfg.MaxUploadBytes)

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/", httpServer.Handler())

	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	sweepCtx, stopSweeper := context.WithCancel(ctx)
	sweeper := retention.New(dataStore, blobStore, cfg.TokenWindow, cfg.SweepInterval, cfg.SweepStartDelay)
	go sweeper.Run(sweepCtx)

	go func() {
		log.Printf("Proofdeck API listening on %s", cfg.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server failed: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	stopSweeper()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown error: %v", err)
	}
}
