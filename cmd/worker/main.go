package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/rs/zerolog/log"

	"github.com/knowwell/portal-api/internal/config"
	"github.com/knowwell/portal-api/internal/notification"
	"github.com/knowwell/portal-api/internal/repository/postgres"
	appworker "github.com/knowwell/portal-api/internal/worker"
	"github.com/knowwell/portal-api/pkg/logger"
	"github.com/knowwell/portal-api/pkg/messaging/redis"
	"github.com/knowwell/portal-api/pkg/metrics"
	"github.com/knowwell/portal-api/pkg/worker"
)

// WorkerConfig holds the knobs specific to this binary. They come from the
// environment so deployments can tune the drain rate without touching the
// shared config file.
type WorkerConfig struct {
	BatchSize        int           `envconfig:"WORKER_BATCH_SIZE" default:"50"`
	PollInterval     time.Duration `envconfig:"WORKER_POLL_INTERVAL" default:"2s"`
	RetryAttempts    int           `envconfig:"WORKER_RETRY_ATTEMPTS" default:"3"`
	RetryDelay       time.Duration `envconfig:"WORKER_RETRY_DELAY" default:"1s"`
	CleanupInterval  time.Duration `envconfig:"WORKER_CLEANUP_INTERVAL" default:"1h"`
	CleanupRetention time.Duration `envconfig:"WORKER_CLEANUP_RETENTION" default:"2160h"`
	HealthPort       string        `envconfig:"WORKER_HEALTH_PORT" default:"8081"`
}

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	var workerCfg WorkerConfig
	if err := envconfig.Process("", &workerCfg); err != nil {
		log.Fatal().Err(err).Msg("failed to process worker environment")
	}

	appLogger := logger.NewLogger(nil)
	appMetrics := metrics.NewMetrics("knowwell", "worker")

	db, err := postgres.NewDB(cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	broker, err := redis.NewRedisBroker(redis.Config{
		URL:          cfg.Redis.URL,
		MaxRetries:   cfg.Redis.MaxRetries,
		RetryBackoff: cfg.Redis.RetryBackoff,
		PoolSize:     cfg.Redis.PoolSize,
		MinIdleConns: cfg.Redis.MinIdleConns,
	}, &log.Logger)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create Redis broker")
	}
	defer broker.Close()

	outboxRepo := postgres.NewOutboxRepository(db)
	patientRepo := postgres.NewPatientRepository(db)
	auditRepo := postgres.NewAuditRepository(db)

	processor := worker.NewOutboxProcessor(outboxRepo, broker, worker.OutboxProcessorConfig{
		BatchSize:     workerCfg.BatchSize,
		PollInterval:  workerCfg.PollInterval,
		RetryAttempts: workerCfg.RetryAttempts,
		RetryDelay:    workerCfg.RetryDelay,
	}, appLogger, appMetrics)

	notifySvc := notification.NewService(notification.Config{
		Host:        cfg.SMTP.Host,
		Port:        cfg.SMTP.Port,
		Username:    cfg.SMTP.Username,
		Password:    cfg.SMTP.Password,
		From:        cfg.SMTP.From,
		DoctorInbox: cfg.SMTP.DoctorInbox,
	})
	notifier := appworker.NewNotifier(broker, notifySvc, patientRepo, appLogger)
	cleanup := appworker.NewCleanup(outboxRepo, auditRepo, workerCfg.CleanupInterval, workerCfg.CleanupRetention, appLogger)

	startHealthServer(workerCfg.HealthPort, appLogger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		appLogger.Info("shutting down...")
		cancel()
	}()

	var wg sync.WaitGroup
	wg.Add(3)
	go func() {
		defer wg.Done()
		processor.Start(ctx)
	}()
	go func() {
		defer wg.Done()
		if err := notifier.Start(ctx); err != nil {
			appLogger.Error(err, "notifier stopped")
			cancel()
		}
	}()
	go func() {
		defer wg.Done()
		cleanup.Start(ctx)
	}()
	wg.Wait()
}

func startHealthServer(port string, appLogger *logger.Logger) {
	mux := http.NewServeMux()
	mux.HandleFunc("/health/live", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/health/ready", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	go func() {
		if err := http.ListenAndServe(":"+port, mux); err != nil {
			appLogger.Error(err, "health check server failed")
		}
	}()
}
