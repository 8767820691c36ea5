package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/saan/taskflow-agent/internal/domain"
)

// PlanStore implements domain.PlanStore over Postgres. The ordered task list
// is stored as a jsonb column; the plan's identity column stays (user_id,
// plan_date) so Replace can be a single atomic upsert.
type PlanStore struct {
	db *sqlx.DB
}

func NewPlanStore(db *sqlx.DB) *PlanStore { return &PlanStore{db: db} }

type planRow struct {
	ID          uuid.UUID       `db:"id"`
	User        string          `db:"user_id"`
	Date        string          `db:"plan_date"`
	Status      string          `db:"status"`
	EnergyLevel *int            `db:"energy_level"`
	Tasks       json.RawMessage `db:"tasks"`
	GeneratedAt time.Time       `db:"generated_at"`
}

func (s *PlanStore) Replace(ctx context.Context, plan *domain.DailyPlan) error {
	tasksJSON, err := json.Marshal(plan.Tasks)
	if err != nil {
		return fmt.Errorf("marshal plan tasks: %w", err)
	}
	query := `
		INSERT INTO daily_plans (id, user_id, plan_date, status, energy_level, tasks, generated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (user_id, plan_date) DO UPDATE SET
			id = EXCLUDED.id,
			status = EXCLUDED.status,
			energy_level = EXCLUDED.energy_level,
			tasks = EXCLUDED.tasks,
			generated_at = EXCLUDED.generated_at
	`
	_, err = s.db.ExecContext(ctx, query,
		plan.ID, plan.User, plan.Date, plan.Status, plan.EnergyLevel, tasksJSON, plan.GeneratedAt)
	if err != nil {
		return fmt.Errorf("replace daily plan: %w", err)
	}
	return nil
}

func (s *PlanStore) Save(ctx context.Context, plan *domain.DailyPlan) error {
	return s.Replace(ctx, plan)
}

func (s *PlanStore) Get(ctx context.Context, user, date string) (*domain.DailyPlan, error) {
	var row planRow
	err := s.db.GetContext(ctx, &row,
		`SELECT id, user_id, plan_date, status, energy_level, tasks, generated_at FROM daily_plans WHERE user_id = $1 AND plan_date = $2`,
		user, date)
	if err == sql.ErrNoRows {
		return nil, domain.NewError(domain.KindNotFound, domain.ErrPlanNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get daily plan: %w", err)
	}
	return rowToPlan(row)
}

func (s *PlanStore) ListActiveForDate(ctx context.Context, date string) ([]*domain.DailyPlan, error) {
	var rows []planRow
	err := s.db.SelectContext(ctx, &rows,
		`SELECT id, user_id, plan_date, status, energy_level, tasks, generated_at FROM daily_plans WHERE plan_date = $1 AND status = $2`,
		date, domain.PlanStatusActive)
	if err != nil {
		return nil, fmt.Errorf("list active plans: %w", err)
	}
	out := make([]*domain.DailyPlan, 0, len(rows))
	for _, r := range rows {
		p, err := rowToPlan(r)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

func rowToPlan(row planRow) (*domain.DailyPlan, error) {
	var entries []domain.PlanEntry
	if len(row.Tasks) > 0 {
		if err := json.Unmarshal(row.Tasks, &entries); err != nil {
			return nil, fmt.Errorf("unmarshal plan tasks: %w", err)
		}
	}
	plan := &domain.DailyPlan{
		ID:          row.ID,
		User:        row.User,
		Date:        row.Date,
		Status:      domain.PlanStatus(row.Status),
		EnergyLevel: row.EnergyLevel,
		Tasks:       entries,
		GeneratedAt: row.GeneratedAt,
	}
	return plan, nil
}
