package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/saan/taskflow-agent/internal/domain"
)

type energyKey struct {
	user string
	date string
}

// EnergyStore is an in-memory domain.EnergyStore.
type EnergyStore struct {
	mu   sync.Mutex
	byKey map[energyKey]*domain.EnergyLevel
}

func NewEnergyStore() *EnergyStore {
	return &EnergyStore{byKey: make(map[energyKey]*domain.EnergyLevel)}
}

func (s *EnergyStore) Set(ctx context.Context, e *domain.EnergyLevel) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *e
	s.byKey[energyKey{e.User, e.Date}] = &cp
	return nil
}

func (s *EnergyStore) Get(ctx context.Context, user, date string) (*domain.EnergyLevel, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.byKey[energyKey{user, date}]
	if !ok {
		return nil, domain.NewError(domain.KindNotFound, nil)
	}
	cp := *e
	return &cp, nil
}

// FeedbackStore is an in-memory, append-only domain.FeedbackStore.
type FeedbackStore struct {
	mu   sync.Mutex
	byUser map[string][]*domain.TaskFeedback
}

func NewFeedbackStore() *FeedbackStore {
	return &FeedbackStore{byUser: make(map[string][]*domain.TaskFeedback)}
}

func (s *FeedbackStore) Append(ctx context.Context, f *domain.TaskFeedback) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *f
	s.byUser[f.User] = append(s.byUser[f.User], &cp)
	return nil
}

func (s *FeedbackStore) ListSince(ctx context.Context, user string, since time.Time) ([]*domain.TaskFeedback, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*domain.TaskFeedback
	for _, f := range s.byUser[user] {
		if f.At.After(since) {
			cp := *f
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].At.Before(out[j].At) })
	return out, nil
}
