package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/knowwell/portal-api/internal/model"
)

// All repository interfaces in one file
type (
	// DoctorRepository handles dashboard user lookup
	DoctorRepository interface {
		Create(ctx context.Context, doctor *model.Doctor) error
		Get(ctx context.Context, id uuid.UUID) (*model.Doctor, error)
		GetByEmail(ctx context.Context, email string) (*model.Doctor, error)
	}

	PatientRepository interface {
		Create(ctx context.Context, patient *model.Patient) error
		Get(ctx context.Context, id uuid.UUID) (*model.Patient, error)
		GetByCode(ctx context.Context, code string) (*model.Patient, error)
		GetByFiscalCode(ctx context.Context, fiscalCode string) (*model.Patient, error)
		Update(ctx context.Context, patient *model.Patient) error
		Delete(ctx context.Context, id uuid.UUID) error
		List(ctx context.Context) ([]*model.Patient, error)
	}

	// MedicationRepository is the record store for per-patient medication
	// documents, keyed by (patient, drug).
	MedicationRepository interface {
		Create(ctx context.Context, record *model.MedicationRecord) error
		Get(ctx context.Context, patientID, drugID uuid.UUID) (*model.MedicationRecord, error)
		Update(ctx context.Context, record *model.MedicationRecord) error
		Delete(ctx context.Context, patientID, drugID uuid.UUID) error
		DeleteByPatient(ctx context.Context, patientID uuid.UUID) error
		ListByPatient(ctx context.Context, patientID uuid.UUID) ([]*model.MedicationRecord, error)
		ListPending(ctx context.Context) ([]*model.MedicationRecord, error)
		CountByPatient(ctx context.Context, patientID uuid.UUID) (total, pending int, err error)
	}

	// DrugRepository is the read-only catalog of shared drug content
	// documents.
	DrugRepository interface {
		Get(ctx context.Context, id uuid.UUID) (*model.Drug, error)
		GetBySlug(ctx context.Context, slug string) (*model.Drug, error)
		List(ctx context.Context) ([]*model.Drug, error)
	}

	OutboxRepository interface {
		Create(ctx context.Context, event *model.OutboxEvent) error
		GetPendingWithLock(ctx context.Context, limit int) ([]*model.OutboxEvent, error)
		UpdateStatus(ctx context.Context, id uuid.UUID, status model.OutboxStatus, errorMessage *string) error
		DeleteProcessedBefore(ctx context.Context, before time.Time) (int64, error)
	}

	AuditRepository interface {
		Create(ctx context.Context, entry *model.AuditLog) error
		DeleteBefore(ctx context.Context, before time.Time) (int64, error)
	}
)
