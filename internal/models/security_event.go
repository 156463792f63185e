package models

import (
	"database/sql/driver"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Event types for security logging
const (
	SecurityEventFailedLogin     = "failed_login"
	SecurityEventAccountLocked   = "account_locked"
	SecurityEventAccountUnlocked = "account_unlocked"
	SecurityEventSuspiciousLogin = "suspicious_login"
)

// Severity levels
const (
	SeverityLow      = "low"
	SeverityMedium   = "medium"
	SeverityHigh     = "high"
	SeverityCritical = "critical"
)

type SecurityEvent struct {
	ID        uuid.UUID    `db:"id"`
	EventType string       `db:"event_type"`
	Severity  string       `db:"severity"`
	Email     *string      `db:"email"`
	UserID    *string      `db:"user_id"`
	IPAddress *string      `db:"ip_address"`
	UserAgent *string      `db:"user_agent"`
	Details   EventDetails `db:"details"`
	CreatedAt time.Time    `db:"created_at"`
}

// EventDetails holds additional context for security events
type EventDetails map[string]interface{}

// Scan implements sql.Scanner for JSONB
func (ed *EventDetails) Scan(value interface{}) error {
	if value == nil {
		*ed = make(EventDetails)
		return nil
	}

	bytes, ok := value.([]byte)
	if !ok {
		return ErrBadRequest
	}

	var m map[string]interface{}
	if err := json.Unmarshal(bytes, &m); err != nil {
		return err
	}
	*ed = EventDetails(m)
	return nil
}

// Value implements driver.Valuer for JSONB
func (ed EventDetails) Value() (driver.Value, error) {
	if ed == nil {
		return nil, nil
	}
	return json.Marshal(ed)
}

// MarshalJSON implements json.Marshaler
func (ed EventDetails) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]interface{}(ed))
}

// UnmarshalJSON implements json.Unmarshaler
func (ed *EventDetails) UnmarshalJSON(data []byte) error {
	var m map[string]interface{}
	if err := json.Unmarshal(data, &m); err != nil {
		return err
	}
	*ed = EventDetails(m)
	return nil
}
