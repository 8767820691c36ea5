package domain

import (
	"time"

	"github.com/google/uuid"
)

// NotificationStatus is the lifecycle of a nudge.
type NotificationStatus string

const (
	NotificationPending   NotificationStatus = "pending"
	NotificationSent      NotificationStatus = "sent"
	NotificationDismissed NotificationStatus = "dismissed"
)

// Notification is an at-most-one nudge tied to a PlanEntry's predicted
// start (spec §3, §4.4). The uniqueness of (user, task_id, plan_id) among
// non-dismissed rows is the system's at-most-once guarantee and MUST be
// enforced by the store via a conditional insert, not by this type.
type Notification struct {
	ID          uuid.UUID          `json:"id" db:"id"`
	User        string             `json:"user" db:"user_id"`
	TaskID      uuid.UUID          `json:"task_id" db:"task_id"`
	PlanID      uuid.UUID          `json:"plan_id" db:"plan_id"`
	Type        string             `json:"type" db:"type"`
	Message     string             `json:"message" db:"message"`
	ScheduledAt time.Time          `json:"scheduled_at" db:"scheduled_at"`
	SentAt      *time.Time         `json:"sent_at,omitempty" db:"sent_at"`
	Status      NotificationStatus `json:"status" db:"status"`
}

// NewReservedNotification builds the row a reservation attempt tries to
// insert. Callers must go through the store's conditional insert so that a
// row already present in a non-dismissed state makes the insert fail.
func NewReservedNotification(user string, taskID, planID uuid.UUID, nudgeType, message string, scheduledAt time.Time) *Notification {
	return &Notification{
		ID:          uuid.New(),
		User:        user,
		TaskID:      taskID,
		PlanID:      planID,
		Type:        nudgeType,
		Message:     message,
		ScheduledAt: scheduledAt,
		Status:      NotificationPending,
	}
}

// MarkSent transitions pending -> sent, stamping SentAt.
func (n *Notification) MarkSent(at time.Time) {
	n.Status = NotificationSent
	n.SentAt = &at
}

// Dismiss transitions pending|sent -> dismissed. It is a no-op (returns
// false) if the notification is already dismissed.
func (n *Notification) Dismiss() bool {
	if n.Status == NotificationDismissed {
		return false
	}
	n.Status = NotificationDismissed
	return true
}
