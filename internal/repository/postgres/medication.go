package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/knowwell/portal-api/internal/model"
	"github.com/knowwell/portal-api/internal/repository"
)

type medicationRepository struct {
	db *sqlx.DB
}

func NewMedicationRepository(db *sqlx.DB) repository.MedicationRepository {
	return &medicationRepository{db: db}
}

func (r *medicationRepository) Create(ctx context.Context, record *model.MedicationRecord) error {
	query := `
		INSERT INTO medication_records (
			id, patient_id, drug_id, title, current_level, highest_approved_level,
			pending_request, details_recap, dose_times, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	record.CreatedAt = time.Now()
	record.UpdatedAt = time.Now()

	_, err := r.db.ExecContext(ctx, query,
		record.ID,
		record.PatientID,
		record.DrugID,
		record.Title,
		record.CurrentLevel,
		record.HighestApprovedLevel,
		record.PendingRequestJSON,
		record.DetailsRecapJSON,
		record.DoseTimesJSON,
		record.CreatedAt,
		record.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create medication record: %w", err)
	}
	return nil
}

func (r *medicationRepository) Get(ctx context.Context, patientID, drugID uuid.UUID) (*model.MedicationRecord, error) {
	query := `SELECT * FROM medication_records WHERE patient_id = $1 AND drug_id = $2`
	var record model.MedicationRecord
	err := r.db.GetContext(ctx, &record, query, patientID, drugID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get medication record: %w", err)
	}
	return &record, nil
}

func (r *medicationRepository) Update(ctx context.Context, record *model.MedicationRecord) error {
	query := `
		UPDATE medication_records
		SET current_level = $1, highest_approved_level = $2, pending_request = $3,
			details_recap = $4, dose_times = $5, updated_at = $6
		WHERE patient_id = $7 AND drug_id = $8
	`
	_, err := r.db.ExecContext(ctx, query,
		record.CurrentLevel,
		record.HighestApprovedLevel,
		record.PendingRequestJSON,
		record.DetailsRecapJSON,
		record.DoseTimesJSON,
		time.Now(),
		record.PatientID,
		record.DrugID,
	)
	if err != nil {
		return fmt.Errorf("failed to update medication record: %w", err)
	}
	return nil
}

func (r *medicationRepository) Delete(ctx context.Context, patientID, drugID uuid.UUID) error {
	query := `DELETE FROM medication_records WHERE patient_id = $1 AND drug_id = $2`
	_, err := r.db.ExecContext(ctx, query, patientID, drugID)
	return err
}

func (r *medicationRepository) DeleteByPatient(ctx context.Context, patientID uuid.UUID) error {
	query := `DELETE FROM medication_records WHERE patient_id = $1`
	_, err := r.db.ExecContext(ctx, query, patientID)
	return err
}

func (r *medicationRepository) ListByPatient(ctx context.Context, patientID uuid.UUID) ([]*model.MedicationRecord, error) {
	query := `SELECT * FROM medication_records WHERE patient_id = $1 ORDER BY title`
	var records []*model.MedicationRecord
	err := r.db.SelectContext(ctx, &records, query, patientID)
	return records, err
}

// ListPending returns every record across all patients whose embedded
// request is in the pending state.
func (r *medicationRepository) ListPending(ctx context.Context) ([]*model.MedicationRecord, error) {
	query := `
		SELECT * FROM medication_records
		WHERE pending_request->>'status' = 'pending'
		ORDER BY updated_at ASC
	`
	var records []*model.MedicationRecord
	err := r.db.SelectContext(ctx, &records, query)
	return records, err
}

func (r *medicationRepository) CountByPatient(ctx context.Context, patientID uuid.UUID) (int, int, error) {
	query := `
		SELECT COUNT(*) AS total,
			COUNT(*) FILTER (WHERE pending_request->>'status' = 'pending') AS pending
		FROM medication_records
		WHERE patient_id = $1
	`
	var counts struct {
		Total   int `db:"total"`
		Pending int `db:"pending"`
	}
	if err := r.db.GetContext(ctx, &counts, query, patientID); err != nil {
		return 0, 0, fmt.Errorf("failed to count medication records: %w", err)
	}
	return counts.Total, counts.Pending, nil
}
