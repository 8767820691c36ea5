package domain

import (
	"time"

	"github.com/google/uuid"
)

// PlanStatus is the lifecycle state of a DailyPlan.
type PlanStatus string

const (
	PlanStatusActive    PlanStatus = "active"
	PlanStatusCompleted PlanStatus = "completed"
	PlanStatusCancelled PlanStatus = "cancelled"
)

// EntryStatus is the denormalized per-PlanEntry state driven by feedback.
type EntryStatus string

const (
	EntryStatusPending EntryStatus = "pending"
	EntryStatusDone    EntryStatus = "done"
	EntryStatusSnoozed EntryStatus = "snoozed"
)

// PlanEntry is one scheduled task within a DailyPlan.
type PlanEntry struct {
	TaskID         uuid.UUID `json:"task_id"`
	Title          string    `json:"title"`
	PredictedStart time.Time `json:"predicted_start"`
	PredictedEnd   time.Time `json:"predicted_end"`
	PriorityScore  float64   `json:"priority_score"`
	IsCritical     bool      `json:"is_critical"`
	IsUrgent       bool      `json:"is_urgent"`
	ActionPlan     []string  `json:"action_plan,omitempty"`
	Status         EntryStatus `json:"status"`
}

// DailyPlan is the ordered schedule for a user on a specific date.
type DailyPlan struct {
	ID          uuid.UUID   `json:"id" db:"id"`
	User        string      `json:"user" db:"user_id"`
	Date        string      `json:"date" db:"plan_date"` // YYYY-MM-DD in the user's local zone
	Status      PlanStatus  `json:"status" db:"status"`
	EnergyLevel *int        `json:"energy_level,omitempty" db:"energy_level"`
	Tasks       []PlanEntry `json:"tasks" db:"-"`
	GeneratedAt time.Time   `json:"generated_at" db:"generated_at"`
}

// NewDailyPlan builds an active plan ready to be persisted.
func NewDailyPlan(user, date string, energyLevel *int, entries []PlanEntry) *DailyPlan {
	return &DailyPlan{
		ID:          uuid.New(),
		User:        user,
		Date:        date,
		Status:      PlanStatusActive,
		EnergyLevel: energyLevel,
		Tasks:       entries,
		GeneratedAt: time.Now(),
	}
}

// FindEntry returns a pointer to the entry for taskID, or nil.
func (p *DailyPlan) FindEntry(taskID uuid.UUID) *PlanEntry {
	for i := range p.Tasks {
		if p.Tasks[i].TaskID == taskID {
			return &p.Tasks[i]
		}
	}
	return nil
}

var planStatusTransitions = map[PlanStatus][]PlanStatus{
	PlanStatusActive:    {PlanStatusCompleted, PlanStatusCancelled},
	PlanStatusCompleted: {},
	PlanStatusCancelled: {},
}

// UpdateStatus applies an explicit user-requested plan status transition (§4.3).
func (p *DailyPlan) UpdateStatus(status PlanStatus) error {
	allowed := planStatusTransitions[p.Status]
	for _, a := range allowed {
		if a == status {
			p.Status = status
			return nil
		}
	}
	return NewError(KindInvalidRequest, ErrInvalidStatusTransitionForPlan)
}
