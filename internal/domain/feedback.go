package domain

import (
	"time"

	"github.com/google/uuid"
)

// FeedbackAction is the user action a TaskFeedback record captures.
type FeedbackAction string

const (
	FeedbackDone    FeedbackAction = "done"
	FeedbackSnoozed FeedbackAction = "snoozed"
)

// TaskFeedback is an append-only record of a done/snooze action (spec §3).
type TaskFeedback struct {
	ID                    uuid.UUID      `json:"id" db:"id"`
	User                  string         `json:"user" db:"user_id"`
	TaskID                uuid.UUID      `json:"task_id" db:"task_id"`
	PlanID                *uuid.UUID     `json:"plan_id,omitempty" db:"plan_id"`
	Action                FeedbackAction `json:"action" db:"action"`
	SnoozeDurationMinutes int            `json:"snooze_duration_minutes,omitempty" db:"snooze_duration_minutes"`
	At                    time.Time      `json:"at" db:"at"`
}

// NewDoneFeedback records a "done" action.
func NewDoneFeedback(user string, taskID uuid.UUID, planID *uuid.UUID, at time.Time) *TaskFeedback {
	return &TaskFeedback{ID: uuid.New(), User: user, TaskID: taskID, PlanID: planID, Action: FeedbackDone, At: at}
}

// NewSnoozeFeedback records a "snoozed" action with its duration.
func NewSnoozeFeedback(user string, taskID uuid.UUID, planID *uuid.UUID, minutes int, at time.Time) *TaskFeedback {
	return &TaskFeedback{
		ID: uuid.New(), User: user, TaskID: taskID, PlanID: planID,
		Action: FeedbackSnoozed, SnoozeDurationMinutes: minutes, At: at,
	}
}

// EnergyLevel is the user's self-reported energy for a date (spec §3).
type EnergyLevel struct {
	User  string `json:"user" db:"user_id"`
	Date  string `json:"date" db:"energy_date"`
	Level int    `json:"level" db:"level" validate:"min=1,max=5"`
}

// DefaultEnergyLevel is used when no EnergyLevel row exists for the day (§4.3).
const DefaultEnergyLevel = 3
