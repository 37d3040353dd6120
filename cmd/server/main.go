package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/neurotrace/neurotrace-api/internal/classifier"
	"github.com/neurotrace/neurotrace-api/internal/config"
	v1 "github.com/neurotrace/neurotrace-api/internal/handler/v1"
	"github.com/neurotrace/neurotrace-api/internal/repository"
	"github.com/neurotrace/neurotrace-api/internal/service"
	"github.com/neurotrace/neurotrace-api/pkg/auth"
	"github.com/neurotrace/neurotrace-api/pkg/database"
	"github.com/neurotrace/neurotrace-api/pkg/logger"
	"github.com/neurotrace/neurotrace-api/pkg/metrics"
	"github.com/neurotrace/neurotrace-api/pkg/tracer"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load configuration: " + err.Error())
	}

	log, err := logger.New(cfg.Log)
	if err != nil {
		panic("failed to initialize logger: " + err.Error())
	}
	defer log.Sync() //nolint:errcheck

	log.Info("starting neurotrace-api",
		zap.String("environment", cfg.App.Environment),
		zap.String("version", cfg.App.Version),
	)

	if cfg.Tracing.Enabled {
		tp, err := tracer.Init(cfg.Tracing)
		if err != nil {
			log.Fatal("failed to initialize tracer", zap.Error(err))
		}
		defer func() {
			if err := tp.Shutdown(context.Background()); err != nil {
				log.Warn("tracer shutdown failed", zap.Error(err))
			}
		}()
	}

	db, err := database.Connect(cfg.Database)
	if err != nil {
		log.Fatal("failed to connect to database", zap.Error(err))
	}
	if err := database.Migrate(db, log); err != nil {
		log.Fatal("failed to run migrations", zap.Error(err))
	}

	collector := metrics.NewCollector("neurotrace")
	jwtManager := auth.NewJWTManager(cfg.JWT)

	patientRepo := repository.NewPatientRepository(db)
	visitRepo := repository.NewVisitRepository(db)
	userRepo := repository.NewUserRepository(db)
	auditRepo := repository.NewAuditRepository(db)

	auditSvc := service.NewAuditService(auditRepo, collector, log)
	authSvc := service.NewAuthService(userRepo, jwtManager, log)
	patientSvc := service.NewPatientService(patientRepo, auditSvc, collector, log)
	classifierClient := classifier.NewClient(cfg.Classifier, log)
	visitSvc := service.NewVisitService(visitRepo, patientRepo, classifierClient, auditSvc, collector, cfg.Storage, log)
	analyticsSvc := service.NewAnalyticsService(visitRepo, patientRepo, log)
	exportSvc := service.NewExportService(visitRepo, patientRepo, auditSvc, log)

	router := v1.NewRouter(v1.Handlers{
		Auth:      v1.NewAuthHandler(authSvc),
		Patient:   v1.NewPatientHandler(patientSvc),
		Visit:     v1.NewVisitHandler(visitSvc, cfg.Storage.MaxUploadBytes),
		Analytics: v1.NewAnalyticsHandler(analyticsSvc),
		Export:    v1.NewExportHandler(exportSvc),
	}, jwtManager, collector, log, cfg.CORS.AllowedOrigins)

	srv := &http.Server{
		Addr:         cfg.Server.Address(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		log.Info("http server listening", zap.String("address", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("http server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error("graceful shutdown failed", zap.Error(err))
	}

	// Flush buffered audit entries before the process exits.
	auditSvc.Shutdown()

	log.Info("server stopped")
}
