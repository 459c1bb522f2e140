package model

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// RequestStatus is the lifecycle state of a knowledge-level upgrade request.
// A record holds at most one live request; a terminal (accepted/denied)
// request stays on the record until the patient acknowledges the outcome or
// performs a free level change.
type RequestStatus string

const (
	RequestStatusNone     RequestStatus = ""
	RequestStatusPending  RequestStatus = "pending"
	RequestStatusAccepted RequestStatus = "accepted"
	RequestStatusDenied   RequestStatus = "denied"
)

// PendingRequest is a patient-initiated, doctor-adjudicated ask to raise the
// knowledge-level ceiling for one medication.
type PendingRequest struct {
	RequestedLevel KnowledgeLevel `json:"requested_level"`
	Status         RequestStatus  `json:"status"`
	Message        string         `json:"message"`
}

// IsPending reports whether the request blocks further level changes.
func (r PendingRequest) IsPending() bool {
	return r.Status == RequestStatusPending
}

// IsResolved reports whether the request carries a doctor's decision.
func (r PendingRequest) IsResolved() bool {
	return r.Status == RequestStatusAccepted || r.Status == RequestStatusDenied
}

// DetailsRecap holds the prescription summary shown on the viewer card.
type DetailsRecap struct {
	Dosage   string `json:"dosage"`
	Modality string `json:"modality"`
}

// MedicationRecord is the per-patient, per-drug document: dosage, schedule
// and knowledge-level state. The drug content itself is shared and reached
// through DrugID.
type MedicationRecord struct {
	Base
	PatientID            uuid.UUID       `db:"patient_id" json:"patient_id"`
	DrugID               uuid.UUID       `db:"drug_id" json:"drug_id"`
	Title                string          `db:"title" json:"title"`
	CurrentLevel         KnowledgeLevel  `db:"current_level" json:"current_level"`
	HighestApprovedLevel KnowledgeLevel  `db:"highest_approved_level" json:"highest_approved_level"`
	PendingRequestJSON   json.RawMessage `db:"pending_request" json:"-"`
	DetailsRecapJSON     json.RawMessage `db:"details_recap" json:"-"`
	DoseTimesJSON        json.RawMessage `db:"dose_times" json:"-"`
	PendingRequest       PendingRequest  `json:"pending_request"`
	DetailsRecap         DetailsRecap    `json:"details_recap"`
	DoseTimes            []string        `json:"dose_times"`
}

// DecodeDocument unpacks the jsonb columns into their typed fields.
func (m *MedicationRecord) DecodeDocument() error {
	if len(m.PendingRequestJSON) > 0 {
		if err := json.Unmarshal(m.PendingRequestJSON, &m.PendingRequest); err != nil {
			return fmt.Errorf("failed to decode pending request: %w", err)
		}
	}
	if len(m.DetailsRecapJSON) > 0 {
		if err := json.Unmarshal(m.DetailsRecapJSON, &m.DetailsRecap); err != nil {
			return fmt.Errorf("failed to decode details recap: %w", err)
		}
	}
	if len(m.DoseTimesJSON) > 0 {
		if err := json.Unmarshal(m.DoseTimesJSON, &m.DoseTimes); err != nil {
			return fmt.Errorf("failed to decode dose times: %w", err)
		}
	}
	return nil
}

// EncodeDocument packs the typed fields back into the jsonb columns.
func (m *MedicationRecord) EncodeDocument() error {
	var err error
	if m.PendingRequestJSON, err = json.Marshal(m.PendingRequest); err != nil {
		return fmt.Errorf("failed to encode pending request: %w", err)
	}
	if m.DetailsRecapJSON, err = json.Marshal(m.DetailsRecap); err != nil {
		return fmt.Errorf("failed to encode details recap: %w", err)
	}
	if m.DoseTimes == nil {
		m.DoseTimes = []string{}
	}
	if m.DoseTimesJSON, err = json.Marshal(m.DoseTimes); err != nil {
		return fmt.Errorf("failed to encode dose times: %w", err)
	}
	return nil
}

// CreateMedicationRequest is the doctor-facing payload for prescribing a
// drug to a patient.
type CreateMedicationRequest struct {
	DrugID         string   `json:"drug_id" binding:"required,uuid"`
	Dosage         string   `json:"dosage" binding:"required"`
	Modality       string   `json:"modality" binding:"required"`
	DoseTimes      []string `json:"dose_times" binding:"required,min=1"`
	KnowledgeLevel string   `json:"knowledge_level" binding:"omitempty,knowledgelevel"`
}

// UpdateMedicationRequest edits the prescription recap, not the level state.
type UpdateMedicationRequest struct {
	Dosage    *string  `json:"dosage"`
	Modality  *string  `json:"modality"`
	DoseTimes []string `json:"dose_times"`
}

// LevelChangeRequest is the viewer payload for switching or requesting a
// knowledge level.
type LevelChangeRequest struct {
	Level string `json:"level" binding:"required,knowledgelevel"`
}

// LevelChangeResult reports the outcome of a level change attempt.
type LevelChangeResult struct {
	CurrentLevel   KnowledgeLevel `json:"current_level"`
	RequestPending bool           `json:"request_pending"`
}

// ResolveRequestPayload is the doctor-facing payload for adjudicating a
// pending request.
type ResolveRequestPayload struct {
	Approve bool   `json:"approve"`
	Message string `json:"message" binding:"required"`
}

// RequestSummary is one row of the doctor's requests-management screen.
type RequestSummary struct {
	PatientID      uuid.UUID      `json:"patient_id"`
	PatientCode    string         `json:"patient_code"`
	DrugID         uuid.UUID      `json:"drug_id"`
	MedicationName string         `json:"medication_name"`
	CurrentLevel   KnowledgeLevel `json:"current_level"`
	RequestedLevel KnowledgeLevel `json:"requested_level"`
}
