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

// NotificationStore implements domain.NotificationStore over Postgres.
// Reserve relies on a partial unique index on (user_id, task_id, plan_id)
// WHERE status <> 'dismissed' and an INSERT ... ON CONFLICT DO NOTHING: the
// at-most-once guarantee comes from the database, not from application-level
// locking.
type NotificationStore struct {
	db *sqlx.DB
}

func NewNotificationStore(db *sqlx.DB) *NotificationStore { return &NotificationStore{db: db} }

func (s *NotificationStore) Reserve(ctx context.Context, n *domain.Notification) error {
	if n.ID == uuid.Nil {
		n.ID = uuid.New()
	}
	query := `
		INSERT INTO notifications (id, user_id, task_id, plan_id, type, message, scheduled_at, status)
		VALUES (:id, :user_id, :task_id, :plan_id, :type, :message, :scheduled_at, :status)
		ON CONFLICT ON CONSTRAINT notifications_active_uniq DO NOTHING
	`
	res, err := s.db.NamedExecContext(ctx, query, n)
	if err != nil {
		return fmt.Errorf("reserve notification: %w", err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return domain.ErrReservationExists
	}
	return nil
}

func (s *NotificationStore) MarkSent(ctx context.Context, id uuid.UUID, at time.Time) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE notifications SET status = $1, sent_at = $2 WHERE id = $3 AND status = $4`,
		domain.NotificationSent, at, id, domain.NotificationPending)
	if err != nil {
		return fmt.Errorf("mark notification sent: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.NewError(domain.KindNotFound, domain.ErrNotificationNotFound)
	}
	return nil
}

func (s *NotificationStore) Dismiss(ctx context.Context, user string, id uuid.UUID) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE notifications SET status = $1 WHERE id = $2 AND user_id = $3`,
		domain.NotificationDismissed, id, user)
	if err != nil {
		return fmt.Errorf("dismiss notification: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.NewError(domain.KindNotFound, domain.ErrNotificationNotFound)
	}
	return nil
}

func (s *NotificationStore) Get(ctx context.Context, user string, id uuid.UUID) (*domain.Notification, error) {
	var n domain.Notification
	err := s.db.GetContext(ctx, &n, `SELECT * FROM notifications WHERE user_id = $1 AND id = $2`, user, id)
	if err == sql.ErrNoRows {
		return nil, domain.NewError(domain.KindNotFound, domain.ErrNotificationNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get notification: %w", err)
	}
	return &n, nil
}

func (s *NotificationStore) List(ctx context.Context, user string, status domain.NotificationStatus, limit int) ([]*domain.Notification, error) {
	var out []*domain.Notification
	var err error
	if status == "" {
		err = s.db.SelectContext(ctx, &out,
			`SELECT * FROM notifications WHERE user_id = $1 ORDER BY scheduled_at LIMIT $2`, user, nullableLimit(limit))
	} else {
		err = s.db.SelectContext(ctx, &out,
			`SELECT * FROM notifications WHERE user_id = $1 AND status = $2 ORDER BY scheduled_at LIMIT $3`,
			user, status, nullableLimit(limit))
	}
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	return out, nil
}

func nullableLimit(limit int) int64 {
	if limit <= 0 {
		return 1 << 62
	}
	return int64(limit)
}
