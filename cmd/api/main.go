package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/knowwell/portal-api/internal/assets"
	"github.com/knowwell/portal-api/internal/config"
	"github.com/knowwell/portal-api/internal/handler"
	authhandler "github.com/knowwell/portal-api/internal/handler/auth"
	drughandler "github.com/knowwell/portal-api/internal/handler/drug"
	healthhandler "github.com/knowwell/portal-api/internal/handler/health"
	patienthandler "github.com/knowwell/portal-api/internal/handler/patient"
	requesthandler "github.com/knowwell/portal-api/internal/handler/request"
	viewerhandler "github.com/knowwell/portal-api/internal/handler/viewer"
	"github.com/knowwell/portal-api/internal/middleware"
	"github.com/knowwell/portal-api/internal/repository/postgres"
	"github.com/knowwell/portal-api/internal/router"
	auditService "github.com/knowwell/portal-api/internal/service/audit"
	authService "github.com/knowwell/portal-api/internal/service/auth"
	contentService "github.com/knowwell/portal-api/internal/service/content"
	drugService "github.com/knowwell/portal-api/internal/service/drug"
	patientService "github.com/knowwell/portal-api/internal/service/patient"
	workflowService "github.com/knowwell/portal-api/internal/service/workflow"
	"github.com/knowwell/portal-api/pkg/auth"
	"github.com/knowwell/portal-api/pkg/logger"
	"github.com/knowwell/portal-api/pkg/metrics"
	"github.com/knowwell/portal-api/pkg/security"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	appLogger := logger.NewLogger(nil)
	appMetrics := metrics.NewMetrics("knowwell", "api")

	db, err := postgres.NewDB(cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	// Repositories
	doctorRepo := postgres.NewDoctorRepository(db)
	patientRepo := postgres.NewPatientRepository(db)
	drugRepo := postgres.NewDrugRepository(db)
	medicationRepo := postgres.NewMedicationRepository(db)
	outboxRepo := postgres.NewOutboxRepository(db)
	auditRepo := postgres.NewAuditRepository(db)

	// Services
	hasher := security.NewBcryptHasher(0)
	tokenExpiry := time.Duration(cfg.JWT.ExpiryHours) * time.Hour
	jwtSvc := auth.NewJWTService(cfg.JWT.Secret, tokenExpiry)
	auditor := auditService.NewService(auditRepo, appLogger)
	authSvc := authService.NewService(doctorRepo, patientRepo, jwtSvc, hasher, auditor, tokenExpiry)
	patientSvc := patientService.NewService(patientRepo, medicationRepo, drugRepo, outboxRepo, hasher, auditor, appLogger)
	drugSvc := drugService.NewService(drugRepo)
	workflowSvc := workflowService.NewService(medicationRepo, patientRepo, outboxRepo, auditor, appMetrics, appLogger)

	assetResolver := assets.NewStorageResolver(assets.Config{
		BaseURL:        cfg.Assets.BaseURL,
		RequestTimeout: cfg.Assets.RequestTimeout,
		CacheTTL:       cfg.Assets.CacheTTL,
	}, appMetrics)
	contentResolver := contentService.NewResolver(assetResolver, appLogger)

	// Handlers
	handler.RegisterValidators()
	authMiddleware := middleware.NewAuthMiddleware(authSvc)
	authHandler := authhandler.NewHandler(authSvc)
	patientHandler := patienthandler.NewHandler(patientSvc)
	drugHandler := drughandler.NewHandler(drugSvc)
	requestHandler := requesthandler.NewHandler(workflowSvc)
	viewerHandler := viewerhandler.NewHandler(patientSvc, drugSvc, workflowSvc, contentResolver)
	healthHandler := healthhandler.NewHandler(db)

	r := router.NewRouter(
		authMiddleware,
		authHandler,
		patientHandler,
		drugHandler,
		requestHandler,
		viewerHandler,
		healthHandler,
		router.RouterConfig{
			RateLimit:     100,
			RateBurst:     200,
			CORSConfig:    middleware.DefaultCORSConfig(),
			MetricsPrefix: "knowwell_http",
			Timeout:       time.Duration(cfg.Server.TimeoutSeconds) * time.Second,
		},
	)
	r.Setup()

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: r.Engine(),
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("failed to start server")
		}
	}()
	log.Info().Int("port", cfg.Server.Port).Msg("server started")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server exited properly")
}
