package domain

import (
	"time"

	"github.com/google/uuid"
)

// Reminder is a time-anchored item that the Planner never places on a day's
// plan unless a user explicitly promotes it to a Task (spec §3).
type Reminder struct {
	ID          uuid.UUID `json:"id" db:"id"`
	User        string    `json:"user" db:"user_id"`
	Source      Source    `json:"source" db:"source"`
	Title       string    `json:"title" db:"title"`
	Description string    `json:"description,omitempty" db:"description"`
	Start       time.Time `json:"start" db:"start_at"`
	End         time.Time `json:"end" db:"end_at"`
	IsAllDay    bool      `json:"is_all_day" db:"is_all_day"`
	ExternalID  string    `json:"external_id,omitempty" db:"external_id"`
	RawPayload  []byte    `json:"raw_payload,omitempty" db:"raw_payload"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time `json:"updated_at" db:"updated_at"`
}

// PromoteToTask converts a reminder into a manually-promoted task, carrying
// its time range and title forward. The caller persists the returned Task
// and leaves the Reminder row as-is (reminders are not deleted on promotion).
func (r *Reminder) PromoteToTask() *Task {
	t := NewTask(r.User, r.Source, r.Title, r.Start, r.End)
	t.Description = r.Description
	t.ExternalID = r.ExternalID
	return t
}
