package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/saan/taskflow-agent/internal/domain"
)

// DependencyStore implements domain.DependencyStore over Postgres.
type DependencyStore struct {
	db *sqlx.DB
}

func NewDependencyStore(db *sqlx.DB) *DependencyStore { return &DependencyStore{db: db} }

// Insert enforces spec §3's acyclic-graph invariant on insert: it loads the
// current adjacency for the task's owner inside a transaction, validates the
// candidate edge against it, and only then writes the row, so a self-loop
// or cycle is rejected rather than silently accepted.
func (s *DependencyStore) Insert(ctx context.Context, d domain.TaskDependency) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin dependency insert: %w", err)
	}
	defer tx.Rollback()

	var user string
	if err := tx.GetContext(ctx, &user, `SELECT user_id FROM tasks WHERE id = $1`, d.Task); err != nil {
		return fmt.Errorf("look up dependency owner: %w", err)
	}

	rows, err := tx.QueryxContext(ctx, `
		SELECT d.task_id, d.blocked_by_task_id
		FROM task_dependencies d
		JOIN tasks t ON t.id = d.task_id
		WHERE t.user_id = $1
	`, user)
	if err != nil {
		return fmt.Errorf("query dependency adjacency: %w", err)
	}
	existing := make(map[uuid.UUID][]uuid.UUID)
	for rows.Next() {
		var task, blockedBy uuid.UUID
		if err := rows.Scan(&task, &blockedBy); err != nil {
			rows.Close()
			return fmt.Errorf("scan dependency row: %w", err)
		}
		existing[task] = append(existing[task], blockedBy)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return fmt.Errorf("scan dependency rows: %w", err)
	}
	rows.Close()

	if err := domain.ValidateNewDependency(existing, d.Task, d.BlockedBy); err != nil {
		return domain.NewError(domain.KindInvalidRequest, err)
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO task_dependencies (task_id, blocked_by_task_id, type) VALUES ($1, $2, $3)`,
		d.Task, d.BlockedBy, d.Type); err != nil {
		return fmt.Errorf("insert dependency: %w", err)
	}
	return tx.Commit()
}

func (s *DependencyStore) AdjacencyForUser(ctx context.Context, user string) (map[uuid.UUID][]uuid.UUID, error) {
	rows, err := s.db.QueryxContext(ctx, `
		SELECT d.task_id, d.blocked_by_task_id
		FROM task_dependencies d
		JOIN tasks t ON t.id = d.task_id
		WHERE t.user_id = $1
	`, user)
	if err != nil {
		return nil, fmt.Errorf("query dependency adjacency: %w", err)
	}
	defer rows.Close()

	out := make(map[uuid.UUID][]uuid.UUID)
	for rows.Next() {
		var task, blockedBy uuid.UUID
		if err := rows.Scan(&task, &blockedBy); err != nil {
			return nil, fmt.Errorf("scan dependency row: %w", err)
		}
		out[task] = append(out[task], blockedBy)
	}
	return out, rows.Err()
}

func (s *DependencyStore) OpenBlockers(ctx context.Context, task uuid.UUID) ([]uuid.UUID, error) {
	var out []uuid.UUID
	err := s.db.SelectContext(ctx, &out, `
		SELECT d.blocked_by_task_id
		FROM task_dependencies d
		JOIN tasks bt ON bt.id = d.blocked_by_task_id
		WHERE d.task_id = $1 AND bt.is_completed = false
	`, task)
	if err != nil {
		return nil, fmt.Errorf("list open blockers: %w", err)
	}
	return out, nil
}

// CredentialStore implements domain.CredentialStore over Postgres.
type CredentialStore struct {
	db *sqlx.DB
}

func NewCredentialStore(db *sqlx.DB) *CredentialStore { return &CredentialStore{db: db} }

func (s *CredentialStore) Get(ctx context.Context, user string, provider domain.Provider) (*domain.ProviderCredential, error) {
	var c domain.ProviderCredential
	err := s.db.GetContext(ctx, &c,
		`SELECT * FROM provider_credentials WHERE user_id = $1 AND provider = $2`, user, provider)
	if err == sql.ErrNoRows {
		return nil, domain.NewError(domain.KindNotFound, domain.ErrCredentialNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get credential: %w", err)
	}
	return &c, nil
}

func (s *CredentialStore) Upsert(ctx context.Context, c *domain.ProviderCredential) error {
	query := `
		INSERT INTO provider_credentials (user_id, provider, access_token, refresh_token, expiry, status, updated_at)
		VALUES (:user_id, :provider, :access_token, :refresh_token, :expiry, :status, :updated_at)
		ON CONFLICT (user_id, provider) DO UPDATE SET
			access_token = EXCLUDED.access_token,
			refresh_token = EXCLUDED.refresh_token,
			expiry = EXCLUDED.expiry,
			status = EXCLUDED.status,
			updated_at = EXCLUDED.updated_at
	`
	_, err := s.db.NamedExecContext(ctx, query, c)
	if err != nil {
		return fmt.Errorf("upsert credential: %w", err)
	}
	return nil
}
