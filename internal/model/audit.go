package model

import "time"

// Audit event types emitted by the lifecycle engine. Events are append-only:
// once written they are never updated or deleted.
const (
	EventTokenProvision        = "token_provision"
	EventTokenValidated        = "token_validated"
	EventTokenValidationFailed = "token_validation_failed"
	EventTokenRefreshed        = "token_refreshed"
	EventTokenRevoked          = "token_revoked"
)

// AuditEvent records one significant token operation.
type AuditEvent struct {
	EventID      string    `json:"event_id" db:"event_id"`
	EventType    string    `json:"event_type" db:"event_type"`
	TokenID      string    `json:"token_id,omitempty" db:"token_id"`
	SubjectID    string    `json:"subject_id,omitempty" db:"subject_id"`
	ServiceName  string    `json:"service_name,omitempty" db:"service_name"`
	Success      bool      `json:"success" db:"success"`
	ErrorMessage string    `json:"error_message,omitempty" db:"error_message"`
	Timestamp    time.Time `json:"timestamp" db:"timestamp"`
}
