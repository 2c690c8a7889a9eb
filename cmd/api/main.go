package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"casino-platform/internal/audit"
	"casino-platform/internal/auth"
	"casino-platform/internal/clientinfo"
	"casino-platform/internal/config"
	"casino-platform/internal/httpapi"
	"casino-platform/internal/reporting"
	"casino-platform/internal/retention"
	"casino-platform/pkg/logger"
	"casino-platform/pkg/utils"

	"github.com/gin-gonic/gin"
	_ "github.com/jackc/pgx/v5/stdlib"
)

func main() {
	// Root context that cancels on shutdown
	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", "err", err)
		os.Exit(1)
	}

	log := logger.New(cfg.App.Env)
	slog.SetDefault(log)
	rootCtx = logger.With(rootCtx, log)

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	authManager, err := auth.NewManager(cfg.Auth)
	if err != nil {
		log.Error("auth init failed", "err", err)
		os.Exit(1)
	}

	db, err := utils.OpenPostgres(rootCtx, "pgx", cfg.PostgresDSN(), utils.PostgresPoolConfig{})
	if err != nil {
		log.Error("postgres init failed", "err", err)
		os.Exit(1)
	}
	defer db.Close()

	rdb, err := utils.OpenRedis(rootCtx, utils.RedisConfig{Addr: cfg.RedisAddr()})
	if err != nil {
		log.Error("redis init failed", "err", err)
		os.Exit(1)
	}
	defer rdb.Close()

	eventRepo := audit.NewPostgresRepo(db)
	policyRepo := retention.NewPostgresRepo(db)
	reportRepo := reporting.NewPostgresRepo(db)
	for name, m := range map[string]interface{ Migrate(context.Context) error }{
		"audit_events":       eventRepo,
		"retention_policies": policyRepo,
		"audit_reports":      reportRepo,
	} {
		if err := m.Migrate(rootCtx); err != nil {
			log.Error("schema migration failed", "table", name, "err", err)
			os.Exit(1)
		}
	}

	cache := utils.NewRedisCache(rdb, "audit:")
	collector := clientinfo.NewCollector(clientinfo.Options{
		IPLookupURL:  cfg.ClientInfo.IPLookupURL,
		GeoLookupURL: cfg.ClientInfo.GeoLookupURL,
		Timeout:      cfg.ClientInfo.Timeout,
		CacheTTL:     cfg.ClientInfo.CacheTTL,
		RPS:          cfg.ClientInfo.RPS,
		Cache:        cache,
		Sessions:     clientinfo.NewRedisSessionStore(cache, 12*time.Hour),
		Logger:       log,
	})

	errs := audit.NewErrorState()
	auditLogger := audit.NewLogger(eventRepo, collector, errs)
	batcher := audit.NewBatcher(auditLogger, audit.BatcherOptions{
		Interval:      cfg.Audit.BatchInterval,
		BatchSize:     cfg.Audit.BatchSize,
		QueueCapacity: cfg.Audit.QueueCapacity,
		Logger:        log,
	})

	retentionOpts := retention.Options{
		Locker: utils.NewRedisLocker(rdb, ""),
		Audit:  auditLogger,
	}
	if cfg.Retention.ArchiveBucket != "" {
		archiver, err := retention.NewS3ArchiverFromEnv(rootCtx, cfg.Retention.ArchiveRegion, cfg.Retention.ArchiveBucket, cfg.Retention.ArchivePrefix)
		if err != nil {
			log.Error("archive init failed", "err", err)
			os.Exit(1)
		}
		retentionOpts.Archiver = archiver
	}
	retentionSvc := retention.NewService(policyRepo, eventRepo, errs, retentionOpts)
	auditLogger.SetExpiryResolver(retentionSvc)

	scheduler, err := retention.NewScheduler(retentionSvc, cfg.Retention.Schedule, log)
	if err != nil {
		log.Error("retention scheduler init failed", "err", err)
		os.Exit(1)
	}

	h := httpapi.Handlers{
		Auth:      authManager,
		Batcher:   batcher,
		Audit:     audit.NewService(eventRepo, errs),
		Retention: retentionSvc,
		Reports:   reporting.NewService(reportRepo, auditLogger, errs),
		Errors:    errs,
	}

	// Gin router
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(logger.Middleware(log))
	ready := func(ctx context.Context) error {
		return utils.HealthCheck(ctx, db, 2*time.Second)
	}
	registerRoutes(r, h, auth.RequireAccessToken(authManager), ready, cfg.IsProduction())

	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	batchDone := make(chan struct{})
	go func() {
		defer close(batchDone)
		batcher.Run(rootCtx)
	}()
	scheduler.Start(rootCtx)

	go func() {
		log.Info("api listening", "addr", srv.Addr, "env", cfg.App.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server failed", "err", err)
			stop()
		}
	}()

	<-rootCtx.Done()
	log.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("http shutdown failed", "err", err)
	}
	if err := scheduler.Stop(shutdownCtx); err != nil {
		log.Error("retention scheduler stop failed", "err", err)
	}
	<-batchDone
	if err := batcher.Flush(shutdownCtx); err != nil {
		log.Error("audit flush failed", "err", err, "pending", batcher.Pending())
	}
}
