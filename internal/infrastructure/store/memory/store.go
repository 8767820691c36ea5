// Package memory provides in-process reference implementations of the
// internal/domain store interfaces, used by component tests in place of the
// postgres adapter. Every invariant the postgres adapter enforces via SQL
// constraints (uniqueness, conditional insert) is enforced here with a mutex
// and a map so tests exercise the same contract.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/saan/taskflow-agent/internal/domain"
)

type taskKey struct {
	user   string
	source domain.Source
	ext    string
}

// TaskStore is an in-memory domain.TaskStore.
type TaskStore struct {
	mu      sync.Mutex
	byID    map[uuid.UUID]*domain.Task
	byExtID map[taskKey]uuid.UUID
}

func NewTaskStore() *TaskStore {
	return &TaskStore{byID: make(map[uuid.UUID]*domain.Task), byExtID: make(map[taskKey]uuid.UUID)}
}

func clone(t *domain.Task) *domain.Task {
	cp := *t
	return &cp
}

func (s *TaskStore) UpsertByExternalID(ctx context.Context, task *domain.Task) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if task.ExternalID == "" {
		if task.ID == uuid.Nil {
			task.ID = uuid.New()
		}
		s.byID[task.ID] = clone(task)
		return true, nil
	}
	key := taskKey{task.User, task.Source, task.ExternalID}
	if id, ok := s.byExtID[key]; ok {
		existing := s.byID[id]
		task.ID = id
		// Preserve caller-controlled flags per the Persist-stage update policy.
		task.IsCritical = existing.IsCritical
		task.IsUrgent = existing.IsUrgent
		task.IsCompleted = existing.IsCompleted
		task.CompletedAt = existing.CompletedAt
		// Ingestion idempotence (spec §8): no updated_at bump when nothing
		// about the extracted content actually changed.
		if task.ContentEquals(existing) {
			task.UpdatedAt = existing.UpdatedAt
		}
		s.byID[id] = clone(task)
		return false, nil
	}
	if task.ID == uuid.Nil {
		task.ID = uuid.New()
	}
	s.byExtID[key] = task.ID
	s.byID[task.ID] = clone(task)
	return true, nil
}

func (s *TaskStore) Get(ctx context.Context, user string, id uuid.UUID) (*domain.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.byID[id]
	if !ok || t.User != user {
		return nil, domain.ErrTaskNotFound
	}
	return clone(t), nil
}

func (s *TaskStore) GetByExternalID(ctx context.Context, user string, source domain.Source, externalID string) (*domain.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.byExtID[taskKey{user, source, externalID}]
	if !ok {
		return nil, domain.ErrTaskNotFound
	}
	return clone(s.byID[id]), nil
}

func (s *TaskStore) Update(ctx context.Context, task *domain.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byID[task.ID]; !ok {
		return domain.ErrTaskNotFound
	}
	s.byID[task.ID] = clone(task)
	return nil
}

func (s *TaskStore) ListByUserAndWindow(ctx context.Context, user string, from, to time.Time) ([]*domain.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*domain.Task
	for _, t := range s.byID {
		if t.User != user {
			continue
		}
		if t.Start.Before(to) && t.End.After(from) {
			out = append(out, clone(t))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Start.Before(out[j].Start) })
	return out, nil
}

func (s *TaskStore) ListBySyncStatus(ctx context.Context, user string, source domain.Source, status domain.SyncStatus) ([]*domain.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*domain.Task
	for _, t := range s.byID {
		if t.User == user && t.Source == source && t.SyncStatus == status {
			out = append(out, clone(t))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.Before(out[j].UpdatedAt) })
	return out, nil
}

func (s *TaskStore) ListUpdatedSince(ctx context.Context, user string, source domain.Source, since time.Time) ([]*domain.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*domain.Task
	for _, t := range s.byID {
		if t.User == user && t.Source == source && t.UpdatedAt.After(since) {
			out = append(out, clone(t))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.Before(out[j].UpdatedAt) })
	return out, nil
}
