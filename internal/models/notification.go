package models

import (
	"database/sql/driver"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Notification categories
const (
	NotificationTypeContent      = "content"      // New article or magazine issue published
	NotificationTypeSubscription = "subscription" // Newsletter and subscriber lifecycle
	NotificationTypeSystem       = "system"
	NotificationTypeSecurity     = "security"
)

type Notification struct {
	ID        uuid.UUID        `db:"id"`
	UserID    string           `db:"user_id"`
	Type      string           `db:"type"`
	Title     string           `db:"title"`
	Message   string           `db:"message"`
	Data      NotificationData `db:"data"`
	Read      bool             `db:"read"`
	ReadAt    *time.Time       `db:"read_at"`
	CreatedAt time.Time        `db:"created_at"`
}

// NotificationData holds payload context delivered alongside a notification
type NotificationData map[string]interface{}

// Scan implements sql.Scanner for JSONB
func (nd *NotificationData) Scan(value interface{}) error {
	if value == nil {
		*nd = make(NotificationData)
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
	*nd = NotificationData(m)
	return nil
}

// Value implements driver.Valuer for JSONB
func (nd NotificationData) Value() (driver.Value, error) {
	if nd == nil {
		return nil, nil
	}
	return json.Marshal(nd)
}
