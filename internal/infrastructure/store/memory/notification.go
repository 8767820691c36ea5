package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/saan/taskflow-agent/internal/domain"
)

type notifKey struct {
	user string
	task uuid.UUID
	plan uuid.UUID
}

// NotificationStore is an in-memory domain.NotificationStore. Reserve holds
// the package mutex for its entire check-then-insert, which is what makes it
// a correct at-most-once primitive under concurrent goroutines — the
// postgres adapter gets the same guarantee from a unique index instead.
type NotificationStore struct {
	mu       sync.Mutex
	byID     map[uuid.UUID]*domain.Notification
	reserved map[notifKey]uuid.UUID // non-dismissed reservations only
}

func NewNotificationStore() *NotificationStore {
	return &NotificationStore{
		byID:     make(map[uuid.UUID]*domain.Notification),
		reserved: make(map[notifKey]uuid.UUID),
	}
}

func (s *NotificationStore) Reserve(ctx context.Context, n *domain.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := notifKey{n.User, n.TaskID, n.PlanID}
	if _, ok := s.reserved[key]; ok {
		return domain.ErrReservationExists
	}
	if n.ID == uuid.Nil {
		n.ID = uuid.New()
	}
	cp := *n
	s.byID[n.ID] = &cp
	s.reserved[key] = n.ID
	return nil
}

func (s *NotificationStore) MarkSent(ctx context.Context, id uuid.UUID, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.byID[id]
	if !ok {
		return domain.NewError(domain.KindNotFound, domain.ErrNotificationNotFound)
	}
	n.MarkSent(at)
	return nil
}

func (s *NotificationStore) Dismiss(ctx context.Context, user string, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.byID[id]
	if !ok || n.User != user {
		return domain.NewError(domain.KindNotFound, domain.ErrNotificationNotFound)
	}
	n.Dismiss()
	delete(s.reserved, notifKey{n.User, n.TaskID, n.PlanID})
	return nil
}

func (s *NotificationStore) Get(ctx context.Context, user string, id uuid.UUID) (*domain.Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.byID[id]
	if !ok || n.User != user {
		return nil, domain.NewError(domain.KindNotFound, domain.ErrNotificationNotFound)
	}
	cp := *n
	return &cp, nil
}

func (s *NotificationStore) List(ctx context.Context, user string, status domain.NotificationStatus, limit int) ([]*domain.Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*domain.Notification
	for _, n := range s.byID {
		if n.User != user {
			continue
		}
		if status != "" && n.Status != status {
			continue
		}
		cp := *n
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ScheduledAt.Before(out[j].ScheduledAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
