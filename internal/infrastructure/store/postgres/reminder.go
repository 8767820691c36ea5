package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/saan/taskflow-agent/internal/domain"
)

// ReminderStore implements domain.ReminderStore over Postgres.
type ReminderStore struct {
	db *sqlx.DB
}

func NewReminderStore(db *sqlx.DB) *ReminderStore { return &ReminderStore{db: db} }

func (s *ReminderStore) Upsert(ctx context.Context, r *domain.Reminder) (bool, error) {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	query := `
		INSERT INTO reminders (
			id, user_id, source, title, description, start_at, end_at, is_all_day,
			external_id, raw_payload, created_at, updated_at
		) VALUES (
			:id, :user_id, :source, :title, :description, :start_at, :end_at, :is_all_day,
			:external_id, :raw_payload, :created_at, :updated_at
		)
		ON CONFLICT (user_id, source, external_id) WHERE external_id != '' DO UPDATE SET
			title = EXCLUDED.title,
			description = EXCLUDED.description,
			start_at = EXCLUDED.start_at,
			end_at = EXCLUDED.end_at,
			is_all_day = EXCLUDED.is_all_day,
			raw_payload = EXCLUDED.raw_payload,
			updated_at = EXCLUDED.updated_at
		RETURNING id, (xmax = 0) AS was_new
	`
	rows, err := s.db.NamedQueryContext(ctx, query, r)
	if err != nil {
		return false, fmt.Errorf("upsert reminder: %w", err)
	}
	defer rows.Close()

	var wasNew bool
	if rows.Next() {
		var ret struct {
			ID     uuid.UUID `db:"id"`
			WasNew bool      `db:"was_new"`
		}
		if err := rows.StructScan(&ret); err != nil {
			return false, fmt.Errorf("scan reminder upsert: %w", err)
		}
		r.ID = ret.ID
		wasNew = ret.WasNew
	}
	return wasNew, nil
}

func (s *ReminderStore) Get(ctx context.Context, user string, id uuid.UUID) (*domain.Reminder, error) {
	var r domain.Reminder
	err := s.db.GetContext(ctx, &r, `SELECT * FROM reminders WHERE user_id = $1 AND id = $2`, user, id)
	if err == sql.ErrNoRows {
		return nil, domain.NewError(domain.KindNotFound, domain.ErrTaskNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get reminder: %w", err)
	}
	return &r, nil
}
