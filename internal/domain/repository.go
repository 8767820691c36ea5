package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// TaskStore is the transactional store contract for Task rows (spec §6).
// Implementations MUST enforce the (user, source, external_id) uniqueness
// invariant of §3 on UpsertByExternalID.
type TaskStore interface {
	// UpsertByExternalID inserts or updates a task keyed by (user, source,
	// external_id). When updating, the caller-controlled flags
	// (is_critical, is_urgent, is_completed, completed_at) are preserved
	// from the existing row per the Persist-stage update policy (§4.2);
	// wasNew reports whether the row was freshly inserted.
	UpsertByExternalID(ctx context.Context, task *Task) (wasNew bool, err error)
	Get(ctx context.Context, user string, id uuid.UUID) (*Task, error)
	GetByExternalID(ctx context.Context, user string, source Source, externalID string) (*Task, error)
	Update(ctx context.Context, task *Task) error
	ListByUserAndWindow(ctx context.Context, user string, from, to time.Time) ([]*Task, error)
	ListBySyncStatus(ctx context.Context, user string, source Source, status SyncStatus) ([]*Task, error)
	ListUpdatedSince(ctx context.Context, user string, source Source, since time.Time) ([]*Task, error)
}

// ReminderStore is the store contract for Reminder rows.
type ReminderStore interface {
	Upsert(ctx context.Context, r *Reminder) (wasNew bool, err error)
	Get(ctx context.Context, user string, id uuid.UUID) (*Reminder, error)
}

// PlanStore is the store contract for DailyPlan rows (spec §3, §4.3).
type PlanStore interface {
	// Replace atomically replaces the plan for (user, date), leaving plans
	// for other dates untouched.
	Replace(ctx context.Context, plan *DailyPlan) error
	Get(ctx context.Context, user, date string) (*DailyPlan, error)
	Save(ctx context.Context, plan *DailyPlan) error
	ListActiveForDate(ctx context.Context, date string) ([]*DailyPlan, error)
}

// EnergyStore is the store contract for EnergyLevel rows.
type EnergyStore interface {
	Set(ctx context.Context, e *EnergyLevel) error
	Get(ctx context.Context, user, date string) (*EnergyLevel, error)
}

// FeedbackStore is the append-only store contract for TaskFeedback.
type FeedbackStore interface {
	Append(ctx context.Context, f *TaskFeedback) error
	ListSince(ctx context.Context, user string, since time.Time) ([]*TaskFeedback, error)
}

// NotificationStore is the store contract for Notification rows. Reserve is
// the core's at-most-once primitive (spec §4.4, §8) and MUST be a single
// atomic "insert if no non-dismissed row exists for (user, task, plan)"
// operation, not a read followed by a write.
type NotificationStore interface {
	Reserve(ctx context.Context, n *Notification) error // returns ErrReservationExists on conflict
	MarkSent(ctx context.Context, id uuid.UUID, at time.Time) error
	Dismiss(ctx context.Context, user string, id uuid.UUID) error
	Get(ctx context.Context, user string, id uuid.UUID) (*Notification, error)
	List(ctx context.Context, user string, status NotificationStatus, limit int) ([]*Notification, error)
}

// DependencyStore is the store contract for TaskDependency edges.
type DependencyStore interface {
	Insert(ctx context.Context, d TaskDependency) error
	AdjacencyForUser(ctx context.Context, user string) (map[uuid.UUID][]uuid.UUID, error)
	OpenBlockers(ctx context.Context, task uuid.UUID) ([]uuid.UUID, error)
}

// CredentialStore is the store contract for ProviderCredential rows.
type CredentialStore interface {
	Get(ctx context.Context, user string, provider Provider) (*ProviderCredential, error)
	Upsert(ctx context.Context, c *ProviderCredential) error
}
