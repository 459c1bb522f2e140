package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type OutboxStatus string

const (
	OutboxStatusPending   OutboxStatus = "pending"
	OutboxStatusProcessed OutboxStatus = "processed"
	OutboxStatusFailed    OutboxStatus = "failed"
)

// OutboxEvent is a domain event persisted in the same store as the change
// that produced it, relayed to the broker by the worker binary.
type OutboxEvent struct {
	ID           uuid.UUID       `db:"id" json:"id"`
	Channel      string          `db:"channel" json:"channel"`
	Payload      json.RawMessage `db:"payload" json:"payload"`
	Status       OutboxStatus    `db:"status" json:"status"`
	ErrorMessage *string         `db:"error_message" json:"error_message,omitempty"`
	CreatedAt    time.Time       `db:"created_at" json:"created_at"`
	ProcessedAt  *time.Time      `db:"processed_at" json:"processed_at,omitempty"`
	UpdatedAt    time.Time       `db:"updated_at" json:"updated_at"`
	RetryCount   int             `db:"retry_count" json:"retry_count"`
}

// RequestEvent is the payload published on the request channels.
type RequestEvent struct {
	PatientID      uuid.UUID      `json:"patient_id"`
	PatientCode    string         `json:"patient_code"`
	DrugID         uuid.UUID      `json:"drug_id"`
	MedicationName string         `json:"medication_name"`
	RequestedLevel KnowledgeLevel `json:"requested_level"`
	Message        string         `json:"message,omitempty"`
}
