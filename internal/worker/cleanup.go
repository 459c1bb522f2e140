package worker

import (
	"context"
	"time"

	"github.com/knowwell/portal-api/internal/repository"
	"github.com/knowwell/portal-api/pkg/logger"
)

// Cleanup prunes processed outbox events and old audit logs on an interval.
type Cleanup struct {
	outboxRepo repository.OutboxRepository
	auditRepo  repository.AuditRepository
	interval   time.Duration
	retention  time.Duration
	logger     *logger.Logger
}

func NewCleanup(
	outboxRepo repository.OutboxRepository,
	auditRepo repository.AuditRepository,
	interval, retention time.Duration,
	logger *logger.Logger,
) *Cleanup {
	if interval <= 0 {
		interval = time.Hour
	}
	if retention <= 0 {
		retention = 90 * 24 * time.Hour
	}
	return &Cleanup{
		outboxRepo: outboxRepo,
		auditRepo:  auditRepo,
		interval:   interval,
		retention:  retention,
		logger:     logger,
	}
}

func (c *Cleanup) Start(ctx context.Context) {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			c.logger.Info("shutting down cleanup worker")
			return
		case <-ticker.C:
			c.run(ctx)
		}
	}
}

func (c *Cleanup) run(ctx context.Context) {
	cutoff := time.Now().Add(-c.retention)

	if n, err := c.outboxRepo.DeleteProcessedBefore(ctx, cutoff); err != nil {
		c.logger.Error(err, "failed to prune outbox events")
	} else if n > 0 {
		c.logger.Info("pruned outbox events", "count", n)
	}

	if n, err := c.auditRepo.DeleteBefore(ctx, cutoff); err != nil {
		c.logger.Error(err, "failed to prune audit logs")
	} else if n > 0 {
		c.logger.Info("pruned audit logs", "count", n)
	}
}
