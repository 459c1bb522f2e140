package drug

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"

	"github.com/knowwell/portal-api/internal/model"
	"github.com/knowwell/portal-api/internal/repository"
	apperrors "github.com/knowwell/portal-api/pkg/errors"
)

// Service exposes the shared drug catalog. Content authoring happens out of
// band; the portal only reads.
type Service interface {
	GetDrug(ctx context.Context, id uuid.UUID) (*model.Drug, error)
	ListDrugs(ctx context.Context) ([]*model.Drug, error)
}

type service struct {
	repo repository.DrugRepository
}

func NewService(repo repository.DrugRepository) Service {
	return &service{repo: repo}
}

func (s *service) GetDrug(ctx context.Context, id uuid.UUID) (*model.Drug, error) {
	drug, err := s.repo.Get(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NotFound("drug", err)
	}
	if err != nil {
		return nil, apperrors.Persistence("get drug", err)
	}
	if err := drug.DecodeDocument(); err != nil {
		return nil, apperrors.Internal(err)
	}
	return drug, nil
}

func (s *service) ListDrugs(ctx context.Context) ([]*model.Drug, error) {
	drugs, err := s.repo.List(ctx)
	if err != nil {
		return nil, apperrors.Persistence("list drugs", err)
	}
	for _, drug := range drugs {
		if err := drug.DecodeDocument(); err != nil {
			return nil, apperrors.Internal(err)
		}
	}
	return drugs, nil
}
