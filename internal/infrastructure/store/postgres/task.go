package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/saan/taskflow-agent/internal/domain"
)

// TaskStore implements domain.TaskStore over Postgres.
type TaskStore struct {
	db *sqlx.DB
}

func NewTaskStore(db *sqlx.DB) *TaskStore { return &TaskStore{db: db} }

// UpsertByExternalID relies on a unique index on (user_id, source,
// external_id) and an INSERT ... ON CONFLICT DO UPDATE that preserves the
// caller-controlled flags from the existing row, matching the in-memory
// store's preservation behavior exactly.
func (s *TaskStore) UpsertByExternalID(ctx context.Context, task *domain.Task) (bool, error) {
	if task.ID == uuid.Nil {
		task.ID = uuid.New()
	}
	query := `
		INSERT INTO tasks (
			id, user_id, source, title, description, start_at, end_at, location,
			recurrence, priority, is_critical, is_urgent, is_spam, spam_reason,
			spam_score, is_completed, completed_at, raw_payload, external_id,
			sync_status, sync_direction, last_synced_at, external_updated_at,
			sync_error, created_at, updated_at
		) VALUES (
			:id, :user_id, :source, :title, :description, :start_at, :end_at, :location,
			:recurrence, :priority, :is_critical, :is_urgent, :is_spam, :spam_reason,
			:spam_score, :is_completed, :completed_at, :raw_payload, :external_id,
			:sync_status, :sync_direction, :last_synced_at, :external_updated_at,
			:sync_error, :created_at, :updated_at
		)
		ON CONFLICT (user_id, source, external_id) WHERE external_id != '' DO UPDATE SET
			title = EXCLUDED.title,
			description = EXCLUDED.description,
			start_at = EXCLUDED.start_at,
			end_at = EXCLUDED.end_at,
			location = EXCLUDED.location,
			recurrence = EXCLUDED.recurrence,
			priority = EXCLUDED.priority,
			is_spam = EXCLUDED.is_spam,
			spam_reason = EXCLUDED.spam_reason,
			spam_score = EXCLUDED.spam_score,
			raw_payload = EXCLUDED.raw_payload,
			sync_status = EXCLUDED.sync_status,
			sync_direction = EXCLUDED.sync_direction,
			external_updated_at = EXCLUDED.external_updated_at,
			sync_error = EXCLUDED.sync_error,
			-- Ingestion idempotence (spec §8): only advance updated_at when the
			-- extracted content actually differs from what's already stored.
			updated_at = CASE WHEN
				tasks.title IS NOT DISTINCT FROM EXCLUDED.title AND
				tasks.description IS NOT DISTINCT FROM EXCLUDED.description AND
				tasks.start_at = EXCLUDED.start_at AND
				tasks.end_at = EXCLUDED.end_at AND
				tasks.location IS NOT DISTINCT FROM EXCLUDED.location AND
				tasks.recurrence IS NOT DISTINCT FROM EXCLUDED.recurrence AND
				tasks.priority = EXCLUDED.priority AND
				tasks.is_spam = EXCLUDED.is_spam AND
				tasks.spam_reason IS NOT DISTINCT FROM EXCLUDED.spam_reason AND
				tasks.spam_score = EXCLUDED.spam_score AND
				tasks.raw_payload IS NOT DISTINCT FROM EXCLUDED.raw_payload
			THEN tasks.updated_at ELSE EXCLUDED.updated_at END
		RETURNING id, is_critical, is_urgent, is_completed, completed_at, updated_at, (xmax = 0) AS was_new
	`
	rows, err := s.db.NamedQueryContext(ctx, query, task)
	if err != nil {
		return false, fmt.Errorf("upsert task: %w", err)
	}
	defer rows.Close()

	var wasNew bool
	if rows.Next() {
		var ret struct {
			ID          uuid.UUID  `db:"id"`
			IsCritical  bool       `db:"is_critical"`
			IsUrgent    bool       `db:"is_urgent"`
			IsCompleted bool       `db:"is_completed"`
			CompletedAt *time.Time `db:"completed_at"`
			UpdatedAt   time.Time  `db:"updated_at"`
			WasNew      bool       `db:"was_new"`
		}
		if err := rows.StructScan(&ret); err != nil {
			return false, fmt.Errorf("scan upsert result: %w", err)
		}
		task.ID = ret.ID
		task.IsCritical = ret.IsCritical
		task.IsUrgent = ret.IsUrgent
		task.IsCompleted = ret.IsCompleted
		task.CompletedAt = ret.CompletedAt
		task.UpdatedAt = ret.UpdatedAt
		wasNew = ret.WasNew
	}
	return wasNew, nil
}

func (s *TaskStore) Get(ctx context.Context, user string, id uuid.UUID) (*domain.Task, error) {
	var t domain.Task
	err := s.db.GetContext(ctx, &t, `SELECT * FROM tasks WHERE user_id = $1 AND id = $2`, user, id)
	if err == sql.ErrNoRows {
		return nil, domain.NewError(domain.KindNotFound, domain.ErrTaskNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get task: %w", err)
	}
	return &t, nil
}

func (s *TaskStore) GetByExternalID(ctx context.Context, user string, source domain.Source, externalID string) (*domain.Task, error) {
	var t domain.Task
	err := s.db.GetContext(ctx, &t,
		`SELECT * FROM tasks WHERE user_id = $1 AND source = $2 AND external_id = $3`,
		user, source, externalID)
	if err == sql.ErrNoRows {
		return nil, domain.NewError(domain.KindNotFound, domain.ErrTaskNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get task by external id: %w", err)
	}
	return &t, nil
}

func (s *TaskStore) Update(ctx context.Context, task *domain.Task) error {
	query := `
		UPDATE tasks SET
			title = :title, description = :description, start_at = :start_at, end_at = :end_at,
			location = :location, recurrence = :recurrence, priority = :priority,
			is_critical = :is_critical, is_urgent = :is_urgent, is_spam = :is_spam,
			spam_reason = :spam_reason, spam_score = :spam_score,
			is_completed = :is_completed, completed_at = :completed_at,
			sync_status = :sync_status, sync_direction = :sync_direction,
			last_synced_at = :last_synced_at, external_updated_at = :external_updated_at,
			sync_error = :sync_error, updated_at = :updated_at
		WHERE id = :id AND user_id = :user_id
	`
	res, err := s.db.NamedExecContext(ctx, query, task)
	if err != nil {
		return fmt.Errorf("update task: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.NewError(domain.KindNotFound, domain.ErrTaskNotFound)
	}
	return nil
}

func (s *TaskStore) ListByUserAndWindow(ctx context.Context, user string, from, to time.Time) ([]*domain.Task, error) {
	var out []*domain.Task
	err := s.db.SelectContext(ctx, &out,
		`SELECT * FROM tasks WHERE user_id = $1 AND start_at < $3 AND end_at > $2 ORDER BY start_at`,
		user, from, to)
	if err != nil {
		return nil, fmt.Errorf("list tasks by window: %w", err)
	}
	return out, nil
}

func (s *TaskStore) ListBySyncStatus(ctx context.Context, user string, source domain.Source, status domain.SyncStatus) ([]*domain.Task, error) {
	var out []*domain.Task
	err := s.db.SelectContext(ctx, &out,
		`SELECT * FROM tasks WHERE user_id = $1 AND source = $2 AND sync_status = $3 ORDER BY updated_at`,
		user, source, status)
	if err != nil {
		return nil, fmt.Errorf("list tasks by sync status: %w", err)
	}
	return out, nil
}

func (s *TaskStore) ListUpdatedSince(ctx context.Context, user string, source domain.Source, since time.Time) ([]*domain.Task, error) {
	var out []*domain.Task
	err := s.db.SelectContext(ctx, &out,
		`SELECT * FROM tasks WHERE user_id = $1 AND source = $2 AND updated_at > $3 ORDER BY updated_at`,
		user, source, since)
	if err != nil {
		return nil, fmt.Errorf("list tasks updated since: %w", err)
	}
	return out, nil
}
