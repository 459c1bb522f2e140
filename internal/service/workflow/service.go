package workflow

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/knowwell/portal-api/internal/model"
	"github.com/knowwell/portal-api/internal/repository"
	"github.com/knowwell/portal-api/internal/service/audit"
	apperrors "github.com/knowwell/portal-api/pkg/errors"
	"github.com/knowwell/portal-api/pkg/logger"
	"github.com/knowwell/portal-api/pkg/messaging"
	"github.com/knowwell/portal-api/pkg/metrics"
)

// Service mediates every knowledge-level transition on a medication record.
//
// The request field of a record moves through
//
//	none -> pending -> accepted/denied -> none
//
// Only ResolveRequest may take a request out of pending. A terminal request
// is cleared either by AcknowledgeResolution (the viewer confirming it has
// shown the outcome to the patient) or by the next free level change.
type Service interface {
	RequestLevelChange(ctx context.Context, patientID, drugID uuid.UUID, requested model.KnowledgeLevel) (*model.LevelChangeResult, error)
	ResolveRequest(ctx context.Context, doctorID, patientID, drugID uuid.UUID, approve bool, message string) (*model.MedicationRecord, error)
	AcknowledgeResolution(ctx context.Context, patientID, drugID uuid.UUID) (*model.MedicationRecord, error)
	ListPendingRequests(ctx context.Context) ([]*model.RequestSummary, error)
}

type service struct {
	medicationRepo repository.MedicationRepository
	patientRepo    repository.PatientRepository
	outboxRepo     repository.OutboxRepository
	auditor        *audit.Service
	metrics        *metrics.Metrics
	logger         *logger.Logger
}

func NewService(
	medicationRepo repository.MedicationRepository,
	patientRepo repository.PatientRepository,
	outboxRepo repository.OutboxRepository,
	auditor *audit.Service,
	m *metrics.Metrics,
	logger *logger.Logger,
) Service {
	return &service{
		medicationRepo: medicationRepo,
		patientRepo:    patientRepo,
		outboxRepo:     outboxRepo,
		auditor:        auditor,
		metrics:        m,
		logger:         logger,
	}
}

// RequestLevelChange applies a level switch immediately when the requested
// level is within the patient's approved ceiling, and otherwise files a
// pending request for the doctor. The record is left untouched on any
// refusal.
func (s *service) RequestLevelChange(ctx context.Context, patientID, drugID uuid.UUID, requested model.KnowledgeLevel) (*model.LevelChangeResult, error) {
	if !requested.Valid() {
		return nil, apperrors.BadRequest(fmt.Sprintf("unknown knowledge level %q", requested), nil)
	}

	record, err := s.loadRecord(ctx, patientID, drugID)
	if err != nil {
		return nil, err
	}

	if record.PendingRequest.IsPending() {
		s.metrics.LevelRequestsRefused.Inc()
		return nil, apperrors.Conflict("a knowledge-level request is already pending for this medication", nil)
	}

	if requested.Rank() <= record.HighestApprovedLevel.Rank() {
		// Free path: at or below the historical ceiling. A leftover
		// accepted/denied request is cleared here.
		record.CurrentLevel = requested
		record.PendingRequest = model.PendingRequest{}
		if err := s.persist(ctx, record); err != nil {
			return nil, err
		}

		s.metrics.LevelChangesFree.Inc()
		s.auditor.Log(ctx, patientID, "patient", "level_change", "medication_record", record.ID, &audit.LogOptions{
			Changes: map[string]interface{}{"current_level": requested},
		})

		return &model.LevelChangeResult{CurrentLevel: requested, RequestPending: false}, nil
	}

	record.PendingRequest = model.PendingRequest{
		RequestedLevel: requested,
		Status:         model.RequestStatusPending,
	}
	if err := s.persist(ctx, record); err != nil {
		return nil, err
	}

	s.metrics.LevelRequestsCreated.Inc()
	s.auditor.Log(ctx, patientID, "patient", "level_request", "medication_record", record.ID, &audit.LogOptions{
		Changes: record.PendingRequest,
	})
	s.emitRequestEvent(ctx, messaging.ChannelRequestCreated, record, "")

	return &model.LevelChangeResult{CurrentLevel: record.CurrentLevel, RequestPending: true}, nil
}

// ResolveRequest adjudicates the pending request on a record. Approval
// raises the current level to the requested one and lifts the ceiling; the
// ceiling never moves down. Both outcomes require an explanation for the
// patient.
func (s *service) ResolveRequest(ctx context.Context, doctorID, patientID, drugID uuid.UUID, approve bool, message string) (*model.MedicationRecord, error) {
	if message == "" {
		return nil, apperrors.BadRequest("a message explaining the decision is required", nil)
	}

	record, err := s.loadRecord(ctx, patientID, drugID)
	if err != nil {
		return nil, err
	}

	if !record.PendingRequest.IsPending() {
		return nil, apperrors.InvalidState("no pending request to resolve for this medication", nil)
	}

	requested := record.PendingRequest.RequestedLevel
	outcome := model.RequestStatusDenied
	channel := messaging.ChannelRequestDenied
	if approve {
		record.CurrentLevel = requested
		record.HighestApprovedLevel = model.MaxLevel(record.HighestApprovedLevel, requested)
		outcome = model.RequestStatusAccepted
		channel = messaging.ChannelRequestApproved
	}
	record.PendingRequest = model.PendingRequest{
		RequestedLevel: requested,
		Status:         outcome,
		Message:        message,
	}

	if err := s.persist(ctx, record); err != nil {
		return nil, err
	}

	s.metrics.RequestsResolved.WithLabelValues(string(outcome)).Inc()
	s.auditor.Log(ctx, doctorID, "doctor", "request_"+string(outcome), "medication_record", record.ID, &audit.LogOptions{
		Changes: record.PendingRequest,
	})
	s.emitRequestEvent(ctx, channel, record, message)

	return record, nil
}

// AcknowledgeResolution clears a resolved request back to the empty state
// once the viewer has shown the doctor's decision to the patient.
func (s *service) AcknowledgeResolution(ctx context.Context, patientID, drugID uuid.UUID) (*model.MedicationRecord, error) {
	record, err := s.loadRecord(ctx, patientID, drugID)
	if err != nil {
		return nil, err
	}

	if !record.PendingRequest.IsResolved() {
		return nil, apperrors.InvalidState("no resolved request to acknowledge for this medication", nil)
	}

	record.PendingRequest = model.PendingRequest{}
	if err := s.persist(ctx, record); err != nil {
		return nil, err
	}

	return record, nil
}

// ListPendingRequests returns every pending request across all patients for
// the doctor's requests-management screen.
func (s *service) ListPendingRequests(ctx context.Context) ([]*model.RequestSummary, error) {
	records, err := s.medicationRepo.ListPending(ctx)
	if err != nil {
		return nil, apperrors.Persistence("list pending requests", err)
	}

	codes := make(map[uuid.UUID]string)
	summaries := make([]*model.RequestSummary, 0, len(records))
	for _, record := range records {
		if err := record.DecodeDocument(); err != nil {
			return nil, apperrors.Internal(err)
		}

		code, ok := codes[record.PatientID]
		if !ok {
			patient, err := s.patientRepo.Get(ctx, record.PatientID)
			if err != nil {
				s.logger.Error(err, "failed to load patient for request summary",
					"patient_id", record.PatientID.String())
				code = record.PatientID.String()
			} else {
				code = patient.Code
			}
			codes[record.PatientID] = code
		}

		summaries = append(summaries, &model.RequestSummary{
			PatientID:      record.PatientID,
			PatientCode:    code,
			DrugID:         record.DrugID,
			MedicationName: record.Title,
			CurrentLevel:   record.CurrentLevel,
			RequestedLevel: record.PendingRequest.RequestedLevel,
		})
	}

	return summaries, nil
}

func (s *service) loadRecord(ctx context.Context, patientID, drugID uuid.UUID) (*model.MedicationRecord, error) {
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
	return record, nil
}

func (s *service) persist(ctx context.Context, record *model.MedicationRecord) error {
	if err := record.EncodeDocument(); err != nil {
		return apperrors.Internal(err)
	}
	if err := s.medicationRepo.Update(ctx, record); err != nil {
		return apperrors.Persistence("update medication record", err)
	}
	return nil
}

// emitRequestEvent writes a domain event to the outbox. Event loss is logged
// rather than failing the workflow operation that produced it.
func (s *service) emitRequestEvent(ctx context.Context, channel string, record *model.MedicationRecord, message string) {
	code := ""
	if patient, err := s.patientRepo.Get(ctx, record.PatientID); err == nil {
		code = patient.Code
	}

	payload, err := json.Marshal(model.RequestEvent{
		PatientID:      record.PatientID,
		PatientCode:    code,
		DrugID:         record.DrugID,
		MedicationName: record.Title,
		RequestedLevel: record.PendingRequest.RequestedLevel,
		Message:        message,
	})
	if err != nil {
		s.logger.Error(err, "failed to marshal request event")
		return
	}

	if err := s.outboxRepo.Create(ctx, &model.OutboxEvent{Channel: channel, Payload: payload}); err != nil {
		s.logger.Error(err, "failed to create outbox event", "channel", channel)
	}
}
