package audit

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"

	"github.com/knowwell/portal-api/internal/model"
	"github.com/knowwell/portal-api/internal/repository"
	"github.com/knowwell/portal-api/pkg/logger"
)

// LogOptions carries optional audit payload.
type LogOptions struct {
	Changes interface{}
}

// Service records audit entries. Failures are logged, never propagated: an
// audit miss must not fail the operation being audited.
type Service struct {
	repo   repository.AuditRepository
	logger *logger.Logger
}

func NewService(repo repository.AuditRepository, logger *logger.Logger) *Service {
	return &Service{repo: repo, logger: logger}
}

func (s *Service) Log(ctx context.Context, actorID uuid.UUID, actorType, action, entityType string, entityID uuid.UUID, opts *LogOptions) {
	entry := &model.AuditLog{
		ActorID:    actorID,
		ActorType:  actorType,
		Action:     action,
		EntityType: entityType,
		EntityID:   entityID,
	}

	if opts != nil && opts.Changes != nil {
		changes, err := json.Marshal(opts.Changes)
		if err != nil {
			s.logger.Error(err, "failed to marshal audit changes")
		} else {
			entry.Changes = changes
		}
	}

	if err := s.repo.Create(ctx, entry); err != nil {
		s.logger.Error(err, "failed to write audit log",
			"action", action, "entity_type", entityType)
	}
}
