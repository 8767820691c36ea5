package memory

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/saan/taskflow-agent/internal/domain"
)

type ReminderStore struct {
	mu   sync.Mutex
	byID map[uuid.UUID]*domain.Reminder
	byExt map[taskKey]uuid.UUID
}

func NewReminderStore() *ReminderStore {
	return &ReminderStore{byID: make(map[uuid.UUID]*domain.Reminder), byExt: make(map[taskKey]uuid.UUID)}
}

func (s *ReminderStore) Upsert(ctx context.Context, r *domain.Reminder) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r.ExternalID == "" {
		if r.ID == uuid.Nil {
			r.ID = uuid.New()
		}
		cp := *r
		s.byID[r.ID] = &cp
		return true, nil
	}
	key := taskKey{r.User, r.Source, r.ExternalID}
	if id, ok := s.byExt[key]; ok {
		r.ID = id
		cp := *r
		s.byID[id] = &cp
		return false, nil
	}
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	s.byExt[key] = r.ID
	cp := *r
	s.byID[r.ID] = &cp
	return true, nil
}

func (s *ReminderStore) Get(ctx context.Context, user string, id uuid.UUID) (*domain.Reminder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.byID[id]
	if !ok || r.User != user {
		return nil, domain.NewError(domain.KindNotFound, domain.ErrTaskNotFound)
	}
	cp := *r
	return &cp, nil
}
