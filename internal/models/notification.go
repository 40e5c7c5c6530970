package models

import "time"

// Notification is a user-facing in-app message.
type Notification struct {
	ID           int64     `json:"id" db:"id"`
	UserID       string    `json:"user_id" db:"user_id"`
	Titre        string    `json:"titre" db:"titre"`
	Message      string    `json:"message" db:"message"`
	Type         string    `json:"type" db:"type"`
	Lu           bool      `json:"lu" db:"lu"`
	DateCreation time.Time `json:"date_creation" db:"date_creation"`
}

const (
	NotificationInfo     = "info"
	NotificationWarning  = "warning"
	NotificationSecurity = "security"
)
