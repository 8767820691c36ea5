package memory

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/saan/taskflow-agent/internal/domain"
)

// DependencyStore is an in-memory domain.DependencyStore.
type DependencyStore struct {
	mu    sync.Mutex
	edges map[uuid.UUID][]uuid.UUID // task -> blocked_by
}

func NewDependencyStore() *DependencyStore {
	return &DependencyStore{edges: make(map[uuid.UUID][]uuid.UUID)}
}

func (s *DependencyStore) Insert(ctx context.Context, d domain.TaskDependency) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := domain.ValidateNewDependency(s.edges, d.Task, d.BlockedBy); err != nil {
		return domain.NewError(domain.KindInvalidRequest, err)
	}
	s.edges[d.Task] = append(s.edges[d.Task], d.BlockedBy)
	return nil
}

func (s *DependencyStore) AdjacencyForUser(ctx context.Context, user string) (map[uuid.UUID][]uuid.UUID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[uuid.UUID][]uuid.UUID, len(s.edges))
	for k, v := range s.edges {
		cp := make([]uuid.UUID, len(v))
		copy(cp, v)
		out[k] = cp
	}
	return out, nil
}

func (s *DependencyStore) OpenBlockers(ctx context.Context, task uuid.UUID) ([]uuid.UUID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := make([]uuid.UUID, len(s.edges[task]))
	copy(cp, s.edges[task])
	return cp, nil
}

// CredentialStore is an in-memory domain.CredentialStore.
type CredentialStore struct {
	mu   sync.Mutex
	byKey map[string]map[domain.Provider]*domain.ProviderCredential
}

func NewCredentialStore() *CredentialStore {
	return &CredentialStore{byKey: make(map[string]map[domain.Provider]*domain.ProviderCredential)}
}

func (s *CredentialStore) Get(ctx context.Context, user string, provider domain.Provider) (*domain.ProviderCredential, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.byKey[user]
	if !ok {
		return nil, domain.NewError(domain.KindNotFound, domain.ErrCredentialNotFound)
	}
	c, ok := m[provider]
	if !ok {
		return nil, domain.NewError(domain.KindNotFound, domain.ErrCredentialNotFound)
	}
	cp := *c
	return &cp, nil
}

func (s *CredentialStore) Upsert(ctx context.Context, c *domain.ProviderCredential) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.byKey[c.User]
	if !ok {
		m = make(map[domain.Provider]*domain.ProviderCredential)
		s.byKey[c.User] = m
	}
	cp := *c
	m[c.Provider] = &cp
	return nil
}
