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

// EnergyStore implements domain.EnergyStore over Postgres.
type EnergyStore struct {
	db *sqlx.DB
}

func NewEnergyStore(db *sqlx.DB) *EnergyStore { return &EnergyStore{db: db} }

func (s *EnergyStore) Set(ctx context.Context, e *domain.EnergyLevel) error {
	query := `
		INSERT INTO energy_levels (user_id, energy_date, level)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id, energy_date) DO UPDATE SET level = EXCLUDED.level
	`
	_, err := s.db.ExecContext(ctx, query, e.User, e.Date, e.Level)
	if err != nil {
		return fmt.Errorf("set energy level: %w", err)
	}
	return nil
}

func (s *EnergyStore) Get(ctx context.Context, user, date string) (*domain.EnergyLevel, error) {
	var e domain.EnergyLevel
	err := s.db.GetContext(ctx, &e,
		`SELECT user_id, energy_date, level FROM energy_levels WHERE user_id = $1 AND energy_date = $2`,
		user, date)
	if err == sql.ErrNoRows {
		return nil, domain.NewError(domain.KindNotFound, nil)
	}
	if err != nil {
		return nil, fmt.Errorf("get energy level: %w", err)
	}
	return &e, nil
}

// FeedbackStore implements domain.FeedbackStore over Postgres.
type FeedbackStore struct {
	db *sqlx.DB
}

func NewFeedbackStore(db *sqlx.DB) *FeedbackStore { return &FeedbackStore{db: db} }

func (s *FeedbackStore) Append(ctx context.Context, f *domain.TaskFeedback) error {
	if f.ID == uuid.Nil {
		f.ID = uuid.New()
	}
	query := `
		INSERT INTO task_feedback (id, user_id, task_id, plan_id, action, snooze_duration_minutes, at)
		VALUES (:id, :user_id, :task_id, :plan_id, :action, :snooze_duration_minutes, :at)
	`
	_, err := s.db.NamedExecContext(ctx, query, f)
	if err != nil {
		return fmt.Errorf("append feedback: %w", err)
	}
	return nil
}

func (s *FeedbackStore) ListSince(ctx context.Context, user string, since time.Time) ([]*domain.TaskFeedback, error) {
	var out []*domain.TaskFeedback
	err := s.db.SelectContext(ctx, &out,
		`SELECT * FROM task_feedback WHERE user_id = $1 AND at > $2 ORDER BY at`, user, since)
	if err != nil {
		return nil, fmt.Errorf("list feedback since: %w", err)
	}
	return out, nil
}
