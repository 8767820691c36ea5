package domain

import (
	"bytes"
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"slices"
	"time"

	"github.com/google/uuid"
)

// Source identifies which external system a Task was derived from.
type Source string

const (
	SourceCalendar    Source = "calendar"
	SourceMail        Source = "mail"
	SourceTaskManager Source = "task_manager"
	SourceManual      Source = "manual"
)

// Priority is the coarse priority bucket assigned by extraction or the user.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityNormal Priority = "normal"
	PriorityHigh   Priority = "high"
)

// SyncStatus tracks where a task stands relative to its external counterpart.
type SyncStatus string

const (
	SyncStatusSynced   SyncStatus = "synced"
	SyncStatusPending  SyncStatus = "pending"
	SyncStatusConflict SyncStatus = "conflict"
	SyncStatusError    SyncStatus = "error"
)

// SyncDirection describes which way a task is allowed to flow during sync.
type SyncDirection string

const (
	SyncDirectionInbound       SyncDirection = "inbound"
	SyncDirectionOutbound      SyncDirection = "outbound"
	SyncDirectionBidirectional SyncDirection = "bidirectional"
)

// Task is the normalized unit of work (spec §3).
type Task struct {
	ID          uuid.UUID `json:"id" db:"id"`
	User        string    `json:"user" db:"user_id"`
	Source      Source    `json:"source" db:"source"`
	Title       string    `json:"title" db:"title" validate:"required"`
	Description string    `json:"description,omitempty" db:"description"`
	Start       time.Time `json:"start" db:"start_at"`
	End         time.Time `json:"end" db:"end_at"`
	Attendees   []string  `json:"attendees,omitempty" db:"-"`
	Location    string    `json:"location,omitempty" db:"location"`
	Recurrence  string    `json:"recurrence,omitempty" db:"recurrence"`

	Priority    Priority `json:"priority" db:"priority"`
	IsCritical  bool     `json:"is_critical" db:"is_critical"`
	IsUrgent    bool     `json:"is_urgent" db:"is_urgent"`
	IsSpam      bool     `json:"is_spam" db:"is_spam"`
	SpamReason  string   `json:"spam_reason,omitempty" db:"spam_reason"`
	SpamScore   float64  `json:"spam_score,omitempty" db:"spam_score"`

	IsCompleted bool       `json:"is_completed" db:"is_completed"`
	CompletedAt *time.Time `json:"completed_at,omitempty" db:"completed_at"`

	RawPayload []byte `json:"raw_payload,omitempty" db:"raw_payload"`

	ExternalID        string        `json:"external_id,omitempty" db:"external_id"`
	SyncStatus        SyncStatus    `json:"sync_status" db:"sync_status"`
	SyncDirection     SyncDirection `json:"sync_direction" db:"sync_direction"`
	LastSyncedAt      *time.Time    `json:"last_synced_at,omitempty" db:"last_synced_at"`
	ExternalUpdatedAt *time.Time    `json:"external_updated_at,omitempty" db:"external_updated_at"`
	SyncError         string        `json:"sync_error,omitempty" db:"sync_error"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// NewTask builds a Task with generated ID and timestamps, defaulting the
// sync bookkeeping fields the way a freshly ingested or manually created
// task would have them.
func NewTask(user string, source Source, title string, start, end time.Time) *Task {
	now := time.Now()
	return &Task{
		ID:            uuid.New(),
		User:          user,
		Source:        source,
		Title:         title,
		Start:         start,
		End:           end,
		Priority:      PriorityNormal,
		SyncStatus:    SyncStatusSynced,
		SyncDirection: SyncDirectionInbound,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

// Validate enforces the invariants of spec §3 that struct tags can't express.
func (t *Task) Validate() error {
	if t.End.Before(t.Start) {
		return ErrInvalidTimeRange
	}
	if t.IsCompleted && t.CompletedAt == nil {
		return NewError(KindInvalidRequest, errTaskCompletedWithoutTimestamp)
	}
	if t.SyncStatus == SyncStatusConflict {
		if t.ExternalUpdatedAt == nil || t.LastSyncedAt == nil || !t.ExternalUpdatedAt.After(*t.LastSyncedAt) {
			return NewError(KindInvalidRequest, errConflictWithoutNewerExternal)
		}
	}
	return nil
}

var (
	errTaskCompletedWithoutTimestamp = errors.New("is_completed requires completed_at")
	errConflictWithoutNewerExternal  = errors.New("conflict status requires external_updated_at > last_synced_at")
)

// SetCompleted applies the completion invariant: clearing completion always
// clears completed_at too.
func (t *Task) SetCompleted(completed bool, at time.Time) {
	t.IsCompleted = completed
	if completed {
		t.CompletedAt = &at
	} else {
		t.CompletedAt = nil
	}
	t.UpdatedAt = at
}

// ContentEquals reports whether the extracted content of t matches other,
// ignoring bookkeeping fields (id, timestamps, sync/user-controlled flags).
// Ingestion idempotence (spec §8) uses this to skip the updated_at write
// when a re-ingested item carries no new information.
func (t *Task) ContentEquals(other *Task) bool {
	if other == nil {
		return false
	}
	return t.Title == other.Title &&
		t.Description == other.Description &&
		t.Start.Equal(other.Start) &&
		t.End.Equal(other.End) &&
		t.Location == other.Location &&
		t.Recurrence == other.Recurrence &&
		t.Priority == other.Priority &&
		t.IsSpam == other.IsSpam &&
		t.SpamReason == other.SpamReason &&
		t.SpamScore == other.SpamScore &&
		bytes.Equal(t.RawPayload, other.RawPayload) &&
		slices.Equal(t.Attendees, other.Attendees)
}

// DeterministicID derives a stable id for provider items that carry no
// external id, hashing (source, title, start, end, user) per spec §4.2.
func DeterministicID(user string, source Source, title string, start, end time.Time) uuid.UUID {
	h := sha256.New()
	h.Write([]byte(user))
	h.Write([]byte{0})
	h.Write([]byte(source))
	h.Write([]byte{0})
	h.Write([]byte(title))
	h.Write([]byte{0})
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, uint64(start.UnixNano()))
	h.Write(buf)
	binary.BigEndian.PutUint64(buf, uint64(end.UnixNano()))
	h.Write(buf)
	sum := h.Sum(nil)
	var id uuid.UUID
	copy(id[:], sum[:16])
	// Mark as version 4 / variant 10 so it remains a well-formed UUID even
	// though it is content-derived rather than random.
	id[6] = (id[6] & 0x0f) | 0x40
	id[8] = (id[8] & 0x3f) | 0x80
	return id
}
