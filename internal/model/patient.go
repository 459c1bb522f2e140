package model

import (
	"github.com/google/uuid"
)

// Patient identifies a viewer user. Patients do not have email/password
// accounts; they log in with a fiscal code plus a doctor-assigned secret
// code. Code is the short human-facing identifier shown on the dashboard.
type Patient struct {
	Base
	Code           string `db:"code" json:"code"`
	FiscalCode     string `db:"fiscal_code" json:"fiscal_code"`
	SecretCodeHash string `db:"secret_code_hash" json:"-"`
	ContactEmail   string `db:"contact_email" json:"contact_email,omitempty"`
}

// CreatePatientRequest registers a patient together with their initial
// medications, mirroring the dashboard's add-patient form.
type CreatePatientRequest struct {
	Code         string                    `json:"code" binding:"required"`
	FiscalCode   string                    `json:"fiscal_code" binding:"required"`
	SecretCode   string                    `json:"secret_code" binding:"required,min=6"`
	ContactEmail string                    `json:"contact_email" binding:"omitempty,email"`
	Medications  []CreateMedicationRequest `json:"medications" binding:"required,min=1,dive"`
}

// UpdatePatientRequest edits patient identity fields.
type UpdatePatientRequest struct {
	FiscalCode   *string `json:"fiscal_code"`
	SecretCode   *string `json:"secret_code" binding:"omitempty,min=6"`
	ContactEmail *string `json:"contact_email" binding:"omitempty,email"`
}

// PatientLoginRequest is the viewer login payload.
type PatientLoginRequest struct {
	FiscalCode string `json:"fiscal_code" binding:"required"`
	SecretCode string `json:"secret_code" binding:"required"`
}

// PatientSummary is one row of the dashboard patient list.
type PatientSummary struct {
	ID              uuid.UUID `json:"id"`
	Code            string    `json:"code"`
	FiscalCode      string    `json:"fiscal_code"`
	MedicationCount int       `json:"medication_count"`
	PendingRequests int       `json:"pending_requests"`
}
