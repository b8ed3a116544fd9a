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

	"resumelab/api/internal/app"
	"resumelab/api/internal/artifact"
	"resumelab/api/internal/collab"
	"resumelab/api/internal/config"
	"resumelab/api/internal/export"
	"resumelab/api/internal/metrics"
	"resumelab/api/internal/redisstore"
	"resumelab/api/internal/revision"
	"resumelab/api/internal/store"
)

func main() {
	cfg := config.Load()
	ctx := context.Background()

	analyses, closeStore := openAnalysisStore(ctx, cfg)
	defer closeStore()

	artifacts := openArtifactStore(ctx, cfg)

	if err := os.MkdirAll(cfg.RevisionsDir, 0o755); err != nil {
		log.Fatalf("failed to create revisions dir: %v", err)
	}
	revisions := revision.New(cfg.RevisionsDir)
	evaluator := collab.NewEvaluator(cfg.EvaluatorURL, cfg.EvaluatorTimeout)

	exportPage, err := export.ParsePage(cfg.ExportPageSize)
	if err != nil {
		log.Fatalf("invalid EXPORT_PAGE_SIZE: %v", err)
	}

	service := app.New(analyses, artifacts, evaluator, revisions).
		WithMetrics(metrics.New()).
		WithExportPage(exportPage).
		WithFlightTimeout(cfg.EvaluatorTimeout + 30*time.Second)

	httpServer := app.NewHTTPServer(service, cfg.CORSOrigin, cfg.MaxUploadBytes)
	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           httpServer.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      cfg.EvaluatorTimeout + 45*time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Printf("ResumeLab API listening on %s (analysis backend: %s)", cfg.Addr, cfg.AnalysisBackend)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server failed: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown error: %v", err)
	}
}

func openAnalysisStore(ctx context.Context, cfg config.Config) (app.AnalysisStore, func()) {
	switch cfg.AnalysisBackend {
	case config.BackendMemory:
		log.Printf("Using in-memory analysis store; records are lost on restart")
		return store.NewMemoryStore(), func() {}
	case config.BackendRedis:
		log.Printf("Using Redis for analysis records")
		redisStore, err := redisstore.New(cfg.RedisURL)
		if err != nil {
			log.Fatalf("redis connection failed: %v", err)
		}
		return redisStore, func() { _ = redisStore.Close() }
	case config.BackendPostgres:
		db, err := store.Open(ctx, cfg.DatabaseURL, store.PoolOptions{})
		if err != nil {
			log.Fatalf("database connection failed: %v", err)
		}
		if err := store.ApplyMigrations(ctx, db, cfg.MigrationsDir); err != nil {
			log.Fatalf("migrations failed: %v", err)
		}
		log.Printf("Using PostgreSQL for analysis records")
		return store.NewPostgresStore(db), func() { _ = db.Close() }
	default:
		log.Fatalf("unknown ANALYSIS_BACKEND %q (want postgres, redis or memory)", cfg.AnalysisBackend)
		return nil, nil
	}
}

func openArtifactStore(ctx context.Context, cfg config.Config) app.ArtifactStore {
	if strings.TrimSpace(cfg.MinioEndpoint) != "" {
		minioStore, err := artifact.NewMinioStore(ctx, artifact.MinioConfig{
			Endpoint:  cfg.MinioEndpoint,
			AccessKey: cfg.MinioAccessKey,
			SecretKey: cfg.MinioSecretKey,
			Bucket:    cfg.MinioBucket,
			UseSSL:    cfg.MinioUseSSL,
		})
		if err != nil {
			log.Fatalf("minio connection failed: %v", err)
		}
		log.Printf("Using MinIO bucket %s for uploads", cfg.MinioBucket)
		return minioStore
	}
	fileStore, err := artifact.NewFileStore(cfg.UploadDir)
	if err != nil {
		log.Fatalf("failed to create upload dir: %v", err)
	}
	return fileStore
}
