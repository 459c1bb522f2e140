package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/knowwell/portal-api/internal/model"
	"github.com/knowwell/portal-api/internal/repository"
)

type drugRepository struct {
	db *sqlx.DB
}

func NewDrugRepository(db *sqlx.DB) repository.DrugRepository {
	return &drugRepository{db: db}
}

func (r *drugRepository) Get(ctx context.Context, id uuid.UUID) (*model.Drug, error) {
	query := `SELECT * FROM drugs WHERE id = $1`
	var drug model.Drug
	err := r.db.GetContext(ctx, &drug, query, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get drug: %w", err)
	}
	return &drug, nil
}

func (r *drugRepository) GetBySlug(ctx context.Context, slug string) (*model.Drug, error) {
	query := `SELECT * FROM drugs WHERE slug = $1`
	var drug model.Drug
	err := r.db.GetContext(ctx, &drug, query, slug)
	if err != nil {
		return nil, fmt.Errorf("failed to get drug by slug: %w", err)
	}
	return &drug, nil
}

func (r *drugRepository) List(ctx context.Context) ([]*model.Drug, error) {
	query := `SELECT * FROM drugs ORDER BY title`
	var drugs []*model.Drug
	err := r.db.SelectContext(ctx, &drugs, query)
	return drugs, err
}
