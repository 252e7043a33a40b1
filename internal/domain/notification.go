package domain

import (
	"time"

	"github.com/google/uuid"
)

// NotificationType classifies a Notification.
type NotificationType string

const (
	NotificationAdded    NotificationType = "added"
	NotificationUpdated  NotificationType = "updated"
	NotificationDeleted  NotificationType = "deleted"
	NotificationApproved NotificationType = "approved"
	// NotificationUpdateAttempt reports an admin write that did not go through.
	NotificationUpdateAttempt NotificationType = "update attempt"
)

// AttemptAction names the write a FailedAttempt was trying.
type AttemptAction string

const (
	AttemptUpdate  AttemptAction = "update"
	AttemptApprove AttemptAction = "approve"
)

// FailedAttempt records an edit or approval of a request that failed.
// Reason is a short error class such as "conflict" or "unavailable".
type FailedAttempt struct {
	Action        AttemptAction
	RequestID     string
	RequesterName string
	Reason        string
	By            string
	At            time.Time
}

// Notification is a human-readable activity entry pushed to clients.
type Notification struct {
	ID         uuid.UUID        `json:"id"`
	Type       NotificationType `json:"type"`
	Collection string           `json:"collection,omitempty"`
	DocumentID string           `json:"document_id,omitempty"`
	Details    string           `json:"details"`
	Timestamp  time.Time        `json:"timestamp"`
}

// Principal is the authenticated caller as asserted by the identity provider.
type Principal struct {
	Subject string `json:"sub"`
	Email   string `json:"email"`
	Admin   bool   `json:"admin"`
}

// Name identifies the principal in logs and events.
func (p Principal) Name() string {
	if p.Email != "" {
		return p.Email
	}
	return p.Subject
}
