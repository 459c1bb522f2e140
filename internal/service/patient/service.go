package patient

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/knowwell/portal-api/internal/model"
	"github.com/knowwell/portal-api/internal/repository"
	"github.com/knowwell/portal-api/internal/service/audit"
	apperrors "github.com/knowwell/portal-api/pkg/errors"
	"github.com/knowwell/portal-api/pkg/logger"
	"github.com/knowwell/portal-api/pkg/messaging"
	"github.com/knowwell/portal-api/pkg/security"
)

// Service covers the doctor-facing patient and prescription management:
// registering a patient with their initial medications, editing the
// prescription recap, and removing patients or single medications.
type Service interface {
	CreatePatient(ctx context.Context, doctorID uuid.UUID, req *model.CreatePatientRequest) (*model.Patient, error)
	GetPatient(ctx context.Context, id uuid.UUID) (*model.Patient, error)
	ListPatients(ctx context.Context) ([]*model.PatientSummary, error)
	UpdatePatient(ctx context.Context, doctorID, id uuid.UUID, req *model.UpdatePatientRequest) (*model.Patient, error)
	DeletePatient(ctx context.Context, doctorID, id uuid.UUID) error
	AddMedication(ctx context.Context, doctorID, patientID uuid.UUID, req *model.CreateMedicationRequest) (*model.MedicationRecord, error)
	UpdateMedication(ctx context.Context, doctorID, patientID, drugID uuid.UUID, req *model.UpdateMedicationRequest) (*model.MedicationRecord, error)
	RemoveMedication(ctx context.Context, doctorID, patientID, drugID uuid.UUID) error
	ListMedications(ctx context.Context, patientID uuid.UUID) ([]*model.MedicationRecord, error)
}

type service struct {
	repo           repository.PatientRepository
	medicationRepo repository.MedicationRepository
	drugRepo       repository.DrugRepository
	outboxRepo     repository.OutboxRepository
	hasher         security.Hasher
	auditor        *audit.Service
	logger         *logger.Logger
}

func NewService(
	repo repository.PatientRepository,
	medicationRepo repository.MedicationRepository,
	drugRepo repository.DrugRepository,
	outboxRepo repository.OutboxRepository,
	hasher security.Hasher,
	auditor *audit.Service,
	logger *logger.Logger,
) Service {
	return &service{
		repo:           repo,
		medicationRepo: medicationRepo,
		drugRepo:       drugRepo,
		outboxRepo:     outboxRepo,
		hasher:         hasher,
		auditor:        auditor,
		logger:         logger,
	}
}

func (s *service) CreatePatient(ctx context.Context, doctorID uuid.UUID, req *model.CreatePatientRequest) (*model.Patient, error) {
	secretHash, err := s.hasher.Hash(req.SecretCode)
	if err != nil {
		return nil, apperrors.BadRequest("invalid secret code", err)
	}

	patient := &model.Patient{
		Base:           model.Base{ID: uuid.New()},
		Code:           req.Code,
		FiscalCode:     req.FiscalCode,
		SecretCodeHash: secretHash,
		ContactEmail:   req.ContactEmail,
	}
	if err := s.repo.Create(ctx, patient); err != nil {
		return nil, apperrors.Persistence("create patient", err)
	}

	for i := range req.Medications {
		if _, err := s.AddMedication(ctx, doctorID, patient.ID, &req.Medications[i]); err != nil {
			return nil, err
		}
	}

	s.auditor.Log(ctx, doctorID, "doctor", "create", "patient", patient.ID, &audit.LogOptions{
		Changes: map[string]interface{}{"code": patient.Code},
	})
	s.emitEvent(ctx, messaging.ChannelPatientCreated, patient)

	return patient, nil
}

func (s *service) GetPatient(ctx context.Context, id uuid.UUID) (*model.Patient, error) {
	patient, err := s.repo.Get(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NotFound("patient", err)
	}
	if err != nil {
		return nil, apperrors.Persistence("get patient", err)
	}
	return patient, nil
}

func (s *service) ListPatients(ctx context.Context) ([]*model.PatientSummary, error) {
	patients, err := s.repo.List(ctx)
	if err != nil {
		return nil, apperrors.Persistence("list patients", err)
	}

	summaries := make([]*model.PatientSummary, 0, len(patients))
	for _, patient := range patients {
		total, pending, err := s.medicationRepo.CountByPatient(ctx, patient.ID)
		if err != nil {
			return nil, apperrors.Persistence("count medications", err)
		}
		summaries = append(summaries, &model.PatientSummary{
			ID:              patient.ID,
			Code:            patient.Code,
			FiscalCode:      patient.FiscalCode,
			MedicationCount: total,
			PendingRequests: pending,
		})
	}
	return summaries, nil
}

func (s *service) UpdatePatient(ctx context.Context, doctorID, id uuid.UUID, req *model.UpdatePatientRequest) (*model.Patient, error) {
	patient, err := s.GetPatient(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.FiscalCode != nil {
		patient.FiscalCode = *req.FiscalCode
	}
	if req.ContactEmail != nil {
		patient.ContactEmail = *req.ContactEmail
	}
	if req.SecretCode != nil {
		hash, err := s.hasher.Hash(*req.SecretCode)
		if err != nil {
			return nil, apperrors.BadRequest("invalid secret code", err)
		}
		patient.SecretCodeHash = hash
	}

	if err := s.repo.Update(ctx, patient); err != nil {
		return nil, apperrors.Persistence("update patient", err)
	}

	s.auditor.Log(ctx, doctorID, "doctor", "update", "patient", patient.ID, nil)
	return patient, nil
}

func (s *service) DeletePatient(ctx context.Context, doctorID, id uuid.UUID) error {
	patient, err := s.GetPatient(ctx, id)
	if err != nil {
		return err
	}

	if err := s.medicationRepo.DeleteByPatient(ctx, id); err != nil {
		return apperrors.Persistence("delete patient medications", err)
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return apperrors.Persistence("delete patient", err)
	}

	s.auditor.Log(ctx, doctorID, "doctor", "delete", "patient", id, nil)
	s.emitEvent(ctx, messaging.ChannelPatientDeleted, patient)
	return nil
}

// AddMedication prescribes a drug to a patient. The record starts at the
// chosen level with that level as its approved ceiling and no live request.
func (s *service) AddMedication(ctx context.Context, doctorID, patientID uuid.UUID, req *model.CreateMedicationRequest) (*model.MedicationRecord, error) {
	drugID, err := uuid.Parse(req.DrugID)
	if err != nil {
		return nil, apperrors.BadRequest("invalid drug ID", err)
	}

	drug, err := s.drugRepo.Get(ctx, drugID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NotFound("drug", err)
	}
	if err != nil {
		return nil, apperrors.Persistence("get drug", err)
	}

	level := model.LevelBasic
	if req.KnowledgeLevel != "" {
		if level, err = model.ParseKnowledgeLevel(req.KnowledgeLevel); err != nil {
			return nil, apperrors.BadRequest("invalid knowledge level", err)
		}
	}

	record := &model.MedicationRecord{
		Base:                 model.Base{ID: uuid.New()},
		PatientID:            patientID,
		DrugID:               drugID,
		Title:                drug.Title,
		CurrentLevel:         level,
		HighestApprovedLevel: level,
		DetailsRecap: model.DetailsRecap{
			Dosage:   req.Dosage,
			Modality: req.Modality,
		},
		DoseTimes: nonEmpty(req.DoseTimes),
	}
	if err := record.EncodeDocument(); err != nil {
		return nil, apperrors.Internal(err)
	}

	if err := s.medicationRepo.Create(ctx, record); err != nil {
		return nil, apperrors.Persistence("create medication record", err)
	}

	s.auditor.Log(ctx, doctorID, "doctor", "create", "medication_record", record.ID, &audit.LogOptions{
		Changes: record.DetailsRecap,
	})
	return record, nil
}

func (s *service) UpdateMedication(ctx context.Context, doctorID, patientID, drugID uuid.UUID, req *model.UpdateMedicationRequest) (*model.MedicationRecord, error) {
	record, err := s.medicationRepo.Get(ctx, patientID, drugID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NotFound("medication record", err)
	}
	if err != nil {
		return nil, apperrors.Persistence("get medication record", err)
	}
	if err := record.DecodeDocument(); err != nil {
		return nil, apperrors.Internal(err)
	}

	if req.Dosage != nil {
		record.DetailsRecap.Dosage = *req.Dosage
	}
	if req.Modality != nil {
		record.DetailsRecap.Modality = *req.Modality
	}
	if req.DoseTimes != nil {
		record.DoseTimes = nonEmpty(req.DoseTimes)
	}

	if err := record.EncodeDocument(); err != nil {
		return nil, apperrors.Internal(err)
	}
	if err := s.medicationRepo.Update(ctx, record); err != nil {
		return nil, apperrors.Persistence("update medication record", err)
	}

	s.auditor.Log(ctx, doctorID, "doctor", "update", "medication_record", record.ID, &audit.LogOptions{
		Changes: record.DetailsRecap,
	})
	return record, nil
}

func (s *service) RemoveMedication(ctx context.Context, doctorID, patientID, drugID uuid.UUID) error {
	record, err := s.medicationRepo.Get(ctx, patientID, drugID)
	if errors.Is(err, sql.ErrNoRows) {
		return apperrors.NotFound("medication record", err)
	}
	if err != nil {
		return apperrors.Persistence("get medication record", err)
	}

	if err := s.medicationRepo.Delete(ctx, patientID, drugID); err != nil {
		return apperrors.Persistence("delete medication record", err)
	}

	s.auditor.Log(ctx, doctorID, "doctor", "delete", "medication_record", record.ID, nil)
	return nil
}

func (s *service) ListMedications(ctx context.Context, patientID uuid.UUID) ([]*model.MedicationRecord, error) {
	records, err := s.medicationRepo.ListByPatient(ctx, patientID)
	if err != nil {
		return nil, apperrors.Persistence("list medication records", err)
	}
	for _, record := range records {
		if err := record.DecodeDocument(); err != nil {
			return nil, apperrors.Internal(err)
		}
	}
	return records, nil
}

func (s *service) emitEvent(ctx context.Context, channel string, patient *model.Patient) {
	payload, err := json.Marshal(map[string]interface{}{
		"patient_id": patient.ID,
		"code":       patient.Code,
		"at":         time.Now().UTC(),
	})
	if err != nil {
		s.logger.Error(err, "failed to marshal patient event")
		return
	}
	if err := s.outboxRepo.Create(ctx, &model.OutboxEvent{Channel: channel, Payload: payload}); err != nil {
		s.logger.Error(err, "failed to create outbox event", "channel", channel)
	}
}

func nonEmpty(times []string) []string {
	out := make([]string, 0, len(times))
	for _, t := range times {
		if t != "" {
			out = append(out, t)
		}
	}
	return out
}
