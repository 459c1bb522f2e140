package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/knowwell/portal-api/internal/model"
	"github.com/knowwell/portal-api/internal/repository"
)

type patientRepository struct {
	db *sqlx.DB
}

func NewPatientRepository(db *sqlx.DB) repository.PatientRepository {
	return &patientRepository{db: db}
}

func (r *patientRepository) Create(ctx context.Context, patient *model.Patient) error {
	query := `
		INSERT INTO patients (id, code, fiscal_code, secret_code_hash, contact_email, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	patient.CreatedAt = time.Now()
	patient.UpdatedAt = time.Now()

	_, err := r.db.ExecContext(ctx, query,
		patient.ID,
		patient.Code,
		patient.FiscalCode,
		patient.SecretCodeHash,
		patient.ContactEmail,
		patient.CreatedAt,
		patient.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create patient: %w", err)
	}
	return nil
}

func (r *patientRepository) Get(ctx context.Context, id uuid.UUID) (*model.Patient, error) {
	query := `SELECT * FROM patients WHERE id = $1`
	var patient model.Patient
	err := r.db.GetContext(ctx, &patient, query, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get patient: %w", err)
	}
	return &patient, nil
}

func (r *patientRepository) GetByCode(ctx context.Context, code string) (*model.Patient, error) {
	query := `SELECT * FROM patients WHERE code = $1`
	var patient model.Patient
	err := r.db.GetContext(ctx, &patient, query, code)
	if err != nil {
		return nil, fmt.Errorf("failed to get patient by code: %w", err)
	}
	return &patient, nil
}

func (r *patientRepository) GetByFiscalCode(ctx context.Context, fiscalCode string) (*model.Patient, error) {
	query := `SELECT * FROM patients WHERE fiscal_code = $1`
	var patient model.Patient
	err := r.db.GetContext(ctx, &patient, query, fiscalCode)
	if err != nil {
		return nil, fmt.Errorf("failed to get patient by fiscal code: %w", err)
	}
	return &patient, nil
}

func (r *patientRepository) Update(ctx context.Context, patient *model.Patient) error {
	query := `
		UPDATE patients
		SET fiscal_code = $1, secret_code_hash = $2, contact_email = $3, updated_at = $4
		WHERE id = $5
	`
	_, err := r.db.ExecContext(ctx, query,
		patient.FiscalCode,
		patient.SecretCodeHash,
		patient.ContactEmail,
		time.Now(),
		patient.ID,
	)
	return err
}

func (r *patientRepository) Delete(ctx context.Context, id uuid.UUID) error {
	query := `DELETE FROM patients WHERE id = $1`
	_, err := r.db.ExecContext(ctx, query, id)
	return err
}

func (r *patientRepository) List(ctx context.Context) ([]*model.Patient, error) {
	query := `SELECT * FROM patients ORDER BY code`
	var patients []*model.Patient
	err := r.db.SelectContext(ctx, &patients, query)
	return patients, err
}
