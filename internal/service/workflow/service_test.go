package workflow

import (
	"context"
	"database/sql"
	"encoding/json"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/knowwell/portal-api/internal/model"
	"github.com/knowwell/portal-api/internal/service/audit"
	apperrors "github.com/knowwell/portal-api/pkg/errors"
	"github.com/knowwell/portal-api/pkg/logger"
	"github.com/knowwell/portal-api/pkg/metrics"
)

// promauto registers on the default registry, so the package shares one
// metrics instance across tests.
var testMetrics = metrics.NewMetrics("test", "workflow")

type recordKey struct {
	patientID uuid.UUID
	drugID    uuid.UUID
}

type fakeMedicationRepo struct {
	records map[recordKey]*model.MedicationRecord
	updates int
}

func newFakeMedicationRepo() *fakeMedicationRepo {
	return &fakeMedicationRepo{records: make(map[recordKey]*model.MedicationRecord)}
}

func (f *fakeMedicationRepo) put(record *model.MedicationRecord) {
	clone := *record
	f.records[recordKey{record.PatientID, record.DrugID}] = &clone
}

func (f *fakeMedicationRepo) Create(_ context.Context, record *model.MedicationRecord) error {
	f.put(record)
	return nil
}

func (f *fakeMedicationRepo) Get(_ context.Context, patientID, drugID uuid.UUID) (*model.MedicationRecord, error) {
	record, ok := f.records[recordKey{patientID, drugID}]
	if !ok {
		return nil, sql.ErrNoRows
	}
	clone := *record
	return &clone, nil
}

func (f *fakeMedicationRepo) Update(_ context.Context, record *model.MedicationRecord) error {
	f.updates++
	f.put(record)
	return nil
}

func (f *fakeMedicationRepo) Delete(_ context.Context, patientID, drugID uuid.UUID) error {
	delete(f.records, recordKey{patientID, drugID})
	return nil
}

func (f *fakeMedicationRepo) DeleteByPatient(_ context.Context, patientID uuid.UUID) error {
	for key := range f.records {
		if key.patientID == patientID {
			delete(f.records, key)
		}
	}
	return nil
}

func (f *fakeMedicationRepo) ListByPatient(_ context.Context, patientID uuid.UUID) ([]*model.MedicationRecord, error) {
	var out []*model.MedicationRecord
	for key, record := range f.records {
		if key.patientID == patientID {
			clone := *record
			out = append(out, &clone)
		}
	}
	return out, nil
}

func (f *fakeMedicationRepo) ListPending(_ context.Context) ([]*model.MedicationRecord, error) {
	var out []*model.MedicationRecord
	for _, record := range f.records {
		var req model.PendingRequest
		if len(record.PendingRequestJSON) > 0 {
			if err := json.Unmarshal(record.PendingRequestJSON, &req); err != nil {
				return nil, err
			}
		}
		if req.IsPending() {
			clone := *record
			out = append(out, &clone)
		}
	}
	return out, nil
}

func (f *fakeMedicationRepo) CountByPatient(_ context.Context, patientID uuid.UUID) (int, int, error) {
	records, _ := f.ListByPatient(context.Background(), patientID)
	pending, _ := f.ListPending(context.Background())
	n := 0
	for _, record := range pending {
		if record.PatientID == patientID {
			n++
		}
	}
	return len(records), n, nil
}

type fakePatientRepo struct {
	patients map[uuid.UUID]*model.Patient
}

func newFakePatientRepo() *fakePatientRepo {
	return &fakePatientRepo{patients: make(map[uuid.UUID]*model.Patient)}
}

func (f *fakePatientRepo) Create(_ context.Context, patient *model.Patient) error {
	f.patients[patient.ID] = patient
	return nil
}

func (f *fakePatientRepo) Get(_ context.Context, id uuid.UUID) (*model.Patient, error) {
	patient, ok := f.patients[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return patient, nil
}

func (f *fakePatientRepo) GetByCode(_ context.Context, code string) (*model.Patient, error) {
	for _, patient := range f.patients {
		if patient.Code == code {
			return patient, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (f *fakePatientRepo) GetByFiscalCode(_ context.Context, fiscalCode string) (*model.Patient, error) {
	for _, patient := range f.patients {
		if patient.FiscalCode == fiscalCode {
			return patient, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (f *fakePatientRepo) Update(_ context.Context, patient *model.Patient) error {
	f.patients[patient.ID] = patient
	return nil
}

func (f *fakePatientRepo) Delete(_ context.Context, id uuid.UUID) error {
	delete(f.patients, id)
	return nil
}

func (f *fakePatientRepo) List(_ context.Context) ([]*model.Patient, error) {
	var out []*model.Patient
	for _, patient := range f.patients {
		out = append(out, patient)
	}
	return out, nil
}

type fakeOutboxRepo struct {
	events []*model.OutboxEvent
}

func (f *fakeOutboxRepo) Create(_ context.Context, event *model.OutboxEvent) error {
	f.events = append(f.events, event)
	return nil
}

func (f *fakeOutboxRepo) GetPendingWithLock(_ context.Context, limit int) ([]*model.OutboxEvent, error) {
	if len(f.events) > limit {
		return f.events[:limit], nil
	}
	return f.events, nil
}

func (f *fakeOutboxRepo) UpdateStatus(_ context.Context, _ uuid.UUID, _ model.OutboxStatus, _ *string) error {
	return nil
}

func (f *fakeOutboxRepo) DeleteProcessedBefore(_ context.Context, _ time.Time) (int64, error) {
	return 0, nil
}

type fakeAuditRepo struct {
	entries []*model.AuditLog
}

func (f *fakeAuditRepo) Create(_ context.Context, entry *model.AuditLog) error {
	f.entries = append(f.entries, entry)
	return nil
}

func (f *fakeAuditRepo) DeleteBefore(_ context.Context, _ time.Time) (int64, error) {
	return 0, nil
}

type fixture struct {
	svc        Service
	medication *fakeMedicationRepo
	patients   *fakePatientRepo
	outbox     *fakeOutboxRepo
	patientID  uuid.UUID
	drugID     uuid.UUID
}

func newFixture(t *testing.T, record *model.MedicationRecord) *fixture {
	t.Helper()

	log := logger.NewLogger(&logger.Config{Level: logger.ErrorLevel, Output: io.Discard})
	medicationRepo := newFakeMedicationRepo()
	patientRepo := newFakePatientRepo()
	outboxRepo := &fakeOutboxRepo{}
	auditor := audit.NewService(&fakeAuditRepo{}, log)

	patientID := uuid.New()
	drugID := uuid.New()
	patientRepo.patients[patientID] = &model.Patient{
		Base: model.Base{ID: patientID},
		Code: "PAT-001",
	}

	if record != nil {
		record.PatientID = patientID
		record.DrugID = drugID
		require.NoError(t, record.EncodeDocument())
		medicationRepo.put(record)
	}

	return &fixture{
		svc:        NewService(medicationRepo, patientRepo, outboxRepo, auditor, testMetrics, log),
		medication: medicationRepo,
		patients:   patientRepo,
		outbox:     outboxRepo,
		patientID:  patientID,
		drugID:     drugID,
	}
}

func (f *fixture) record(t *testing.T) *model.MedicationRecord {
	t.Helper()
	record, err := f.medication.Get(context.Background(), f.patientID, f.drugID)
	require.NoError(t, err)
	require.NoError(t, record.DecodeDocument())
	return record
}

func baseRecord() *model.MedicationRecord {
	return &model.MedicationRecord{
		Base:                 model.Base{ID: uuid.New()},
		Title:                "Aspirin",
		CurrentLevel:         model.LevelBasic,
		HighestApprovedLevel: model.LevelBasic,
	}
}

func TestRequestLevelChangeWithinCeilingIsImmediate(t *testing.T) {
	record := baseRecord()
	record.CurrentLevel = model.LevelIntermediate
	record.HighestApprovedLevel = model.LevelExpert
	f := newFixture(t, record)

	result, err := f.svc.RequestLevelChange(context.Background(), f.patientID, f.drugID, model.LevelExpert)
	require.NoError(t, err)
	assert.Equal(t, model.LevelExpert, result.CurrentLevel)
	assert.False(t, result.RequestPending)

	stored := f.record(t)
	assert.Equal(t, model.LevelExpert, stored.CurrentLevel)
	assert.Equal(t, model.LevelExpert, stored.HighestApprovedLevel)
	assert.Equal(t, model.RequestStatusNone, stored.PendingRequest.Status)
	assert.Empty(t, f.outbox.events, "free changes must not emit request events")
}

func TestRequestLevelChangeDowngradeIsAlwaysFree(t *testing.T) {
	record := baseRecord()
	record.CurrentLevel = model.LevelExpert
	record.HighestApprovedLevel = model.LevelExpert
	f := newFixture(t, record)

	result, err := f.svc.RequestLevelChange(context.Background(), f.patientID, f.drugID, model.LevelBasic)
	require.NoError(t, err)
	assert.Equal(t, model.LevelBasic, result.CurrentLevel)
	assert.False(t, result.RequestPending)

	stored := f.record(t)
	assert.Equal(t, model.LevelBasic, stored.CurrentLevel)
	// The ceiling never moves down.
	assert.Equal(t, model.LevelExpert, stored.HighestApprovedLevel)
}

func TestRequestLevelChangeAboveCeilingFilesRequest(t *testing.T) {
	f := newFixture(t, baseRecord())

	result, err := f.svc.RequestLevelChange(context.Background(), f.patientID, f.drugID, model.LevelExpert)
	require.NoError(t, err)
	assert.True(t, result.RequestPending)
	assert.Equal(t, model.LevelBasic, result.CurrentLevel, "level must not change until approval")

	stored := f.record(t)
	assert.Equal(t, model.LevelBasic, stored.CurrentLevel)
	assert.Equal(t, model.RequestStatusPending, stored.PendingRequest.Status)
	assert.Equal(t, model.LevelExpert, stored.PendingRequest.RequestedLevel)

	require.Len(t, f.outbox.events, 1)
	var ev model.RequestEvent
	require.NoError(t, json.Unmarshal(f.outbox.events[0].Payload, &ev))
	assert.Equal(t, "PAT-001", ev.PatientCode)
	assert.Equal(t, model.LevelExpert, ev.RequestedLevel)
}

func TestRequestLevelChangeRefusedWhilePending(t *testing.T) {
	record := baseRecord()
	record.PendingRequest = model.PendingRequest{
		RequestedLevel: model.LevelExpert,
		Status:         model.RequestStatusPending,
	}
	f := newFixture(t, record)

	_, err := f.svc.RequestLevelChange(context.Background(), f.patientID, f.drugID, model.LevelBasic)
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrConflict, apperrors.CodeOf(err))

	stored := f.record(t)
	assert.Equal(t, model.LevelBasic, stored.CurrentLevel)
	assert.Equal(t, model.RequestStatusPending, stored.PendingRequest.Status)
	assert.Zero(t, f.medication.updates, "a refused change must not touch the record")
}

func TestRequestLevelChangeClearsResolvedRequest(t *testing.T) {
	record := baseRecord()
	record.HighestApprovedLevel = model.LevelIntermediate
	record.PendingRequest = model.PendingRequest{
		RequestedLevel: model.LevelExpert,
		Status:         model.RequestStatusDenied,
		Message:        "not yet",
	}
	f := newFixture(t, record)

	result, err := f.svc.RequestLevelChange(context.Background(), f.patientID, f.drugID, model.LevelIntermediate)
	require.NoError(t, err)
	assert.False(t, result.RequestPending)

	stored := f.record(t)
	assert.Equal(t, model.RequestStatusNone, stored.PendingRequest.Status)
	assert.Empty(t, stored.PendingRequest.Message)
}

func TestRequestLevelChangeRejectsUnknownLevel(t *testing.T) {
	f := newFixture(t, baseRecord())

	_, err := f.svc.RequestLevelChange(context.Background(), f.patientID, f.drugID, "guru")
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrBadRequest, apperrors.CodeOf(err))
}

func TestRequestLevelChangeUnknownRecord(t *testing.T) {
	f := newFixture(t, nil)

	_, err := f.svc.RequestLevelChange(context.Background(), f.patientID, f.drugID, model.LevelExpert)
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrNotFound, apperrors.CodeOf(err))
}

func TestResolveRequestApprove(t *testing.T) {
	record := baseRecord()
	record.PendingRequest = model.PendingRequest{
		RequestedLevel: model.LevelExpert,
		Status:         model.RequestStatusPending,
	}
	f := newFixture(t, record)

	resolved, err := f.svc.ResolveRequest(context.Background(), uuid.New(), f.patientID, f.drugID, true, "you are ready")
	require.NoError(t, err)
	assert.Equal(t, model.LevelExpert, resolved.CurrentLevel)
	assert.Equal(t, model.LevelExpert, resolved.HighestApprovedLevel)
	assert.Equal(t, model.RequestStatusAccepted, resolved.PendingRequest.Status)
	assert.Equal(t, "you are ready", resolved.PendingRequest.Message)

	require.Len(t, f.outbox.events, 1)
}

func TestResolveRequestDenyLeavesLevelsUntouched(t *testing.T) {
	record := baseRecord()
	record.CurrentLevel = model.LevelIntermediate
	record.HighestApprovedLevel = model.LevelIntermediate
	record.PendingRequest = model.PendingRequest{
		RequestedLevel: model.LevelExpert,
		Status:         model.RequestStatusPending,
	}
	f := newFixture(t, record)

	resolved, err := f.svc.ResolveRequest(context.Background(), uuid.New(), f.patientID, f.drugID, false, "talk to me first")
	require.NoError(t, err)
	assert.Equal(t, model.LevelIntermediate, resolved.CurrentLevel)
	assert.Equal(t, model.LevelIntermediate, resolved.HighestApprovedLevel)
	assert.Equal(t, model.RequestStatusDenied, resolved.PendingRequest.Status)
	assert.Equal(t, model.LevelExpert, resolved.PendingRequest.RequestedLevel)
}

func TestResolveRequestRequiresMessage(t *testing.T) {
	record := baseRecord()
	record.PendingRequest = model.PendingRequest{
		RequestedLevel: model.LevelExpert,
		Status:         model.RequestStatusPending,
	}
	f := newFixture(t, record)

	_, err := f.svc.ResolveRequest(context.Background(), uuid.New(), f.patientID, f.drugID, true, "")
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrBadRequest, apperrors.CodeOf(err))
}

func TestResolveRequestWithoutPendingRequest(t *testing.T) {
	f := newFixture(t, baseRecord())

	_, err := f.svc.ResolveRequest(context.Background(), uuid.New(), f.patientID, f.drugID, true, "nothing to do")
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrInvalidState, apperrors.CodeOf(err))
}

func TestResolveRequestApproveNeverLowersCeiling(t *testing.T) {
	record := baseRecord()
	record.CurrentLevel = model.LevelBasic
	record.HighestApprovedLevel = model.LevelExpert
	record.PendingRequest = model.PendingRequest{
		RequestedLevel: model.LevelIntermediate,
		Status:         model.RequestStatusPending,
	}
	f := newFixture(t, record)

	resolved, err := f.svc.ResolveRequest(context.Background(), uuid.New(), f.patientID, f.drugID, true, "ok")
	require.NoError(t, err)
	assert.Equal(t, model.LevelIntermediate, resolved.CurrentLevel)
	assert.Equal(t, model.LevelExpert, resolved.HighestApprovedLevel)
}

func TestAcknowledgeResolution(t *testing.T) {
	record := baseRecord()
	record.PendingRequest = model.PendingRequest{
		RequestedLevel: model.LevelExpert,
		Status:         model.RequestStatusAccepted,
		Message:        "granted",
	}
	f := newFixture(t, record)

	acked, err := f.svc.AcknowledgeResolution(context.Background(), f.patientID, f.drugID)
	require.NoError(t, err)
	assert.Equal(t, model.RequestStatusNone, acked.PendingRequest.Status)

	stored := f.record(t)
	assert.Equal(t, model.RequestStatusNone, stored.PendingRequest.Status)
}

func TestAcknowledgeResolutionRequiresResolvedRequest(t *testing.T) {
	record := baseRecord()
	record.PendingRequest = model.PendingRequest{
		RequestedLevel: model.LevelExpert,
		Status:         model.RequestStatusPending,
	}
	f := newFixture(t, record)

	_, err := f.svc.AcknowledgeResolution(context.Background(), f.patientID, f.drugID)
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrInvalidState, apperrors.CodeOf(err))

	_, err = f.svc.AcknowledgeResolution(context.Background(), f.patientID, f.drugID)
	require.Error(t, err)
}

func TestListPendingRequests(t *testing.T) {
	record := baseRecord()
	record.PendingRequest = model.PendingRequest{
		RequestedLevel: model.LevelExpert,
		Status:         model.RequestStatusPending,
	}
	f := newFixture(t, record)

	// A second record without a pending request should not show up.
	quiet := baseRecord()
	quiet.PatientID = f.patientID
	quiet.DrugID = uuid.New()
	quiet.Title = "Ibuprofen"
	require.NoError(t, quiet.EncodeDocument())
	f.medication.put(quiet)

	summaries, err := f.svc.ListPendingRequests(context.Background())
	require.NoError(t, err)
	require.Len(t, summaries, 1)
	assert.Equal(t, "PAT-001", summaries[0].PatientCode)
	assert.Equal(t, "Aspirin", summaries[0].MedicationName)
	assert.Equal(t, model.LevelExpert, summaries[0].RequestedLevel)
	assert.Equal(t, model.LevelBasic, summaries[0].CurrentLevel)
}

func TestRequestLifecycleEndToEnd(t *testing.T) {
	f := newFixture(t, baseRecord())
	ctx := context.Background()

	// Patient asks for expert content and gets queued.
	result, err := f.svc.RequestLevelChange(ctx, f.patientID, f.drugID, model.LevelExpert)
	require.NoError(t, err)
	assert.True(t, result.RequestPending)

	// Doctor approves.
	_, err = f.svc.ResolveRequest(ctx, uuid.New(), f.patientID, f.drugID, true, "approved")
	require.NoError(t, err)

	// Viewer shows the outcome and acknowledges it.
	_, err = f.svc.AcknowledgeResolution(ctx, f.patientID, f.drugID)
	require.NoError(t, err)

	// Expert is now below the ceiling, so moving around is free.
	result, err = f.svc.RequestLevelChange(ctx, f.patientID, f.drugID, model.LevelBasic)
	require.NoError(t, err)
	assert.False(t, result.RequestPending)

	result, err = f.svc.RequestLevelChange(ctx, f.patientID, f.drugID, model.LevelExpert)
	require.NoError(t, err)
	assert.False(t, result.RequestPending)
	assert.Equal(t, model.LevelExpert, result.CurrentLevel)
}
