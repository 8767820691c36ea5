package provider

import (
	"context"
	"fmt"
	"sync"

	"github.com/saan/taskflow-agent/internal/domain"
)

// StubClient is an in-memory Client/TaskManagerClient for tests: List
// replays a fixed, pre-paginated sequence of items; Create/Update/
// Complete/Delete record calls against an in-memory item map.
type StubClient struct {
	mu     sync.Mutex
	Pages  []Page // consumed in order, keyed by call count
	listAt int

	Items    map[string]RawItem
	Deleted  map[string]bool
	Completed map[string]bool
	nextID   int
}

func NewStubClient(pages ...Page) *StubClient {
	return &StubClient{
		Pages:     pages,
		Items:     make(map[string]RawItem),
		Deleted:   make(map[string]bool),
		Completed: make(map[string]bool),
	}
}

func (s *StubClient) List(ctx context.Context, window Window, cursor string) (Page, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listAt >= len(s.Pages) {
		return Page{}, nil
	}
	p := s.Pages[s.listAt]
	s.listAt++
	return p, nil
}

func (s *StubClient) Create(ctx context.Context, item RawItem) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	id := fmt.Sprintf("stub-%d", s.nextID)
	item.ExternalID = id
	s.Items[id] = item
	return id, nil
}

func (s *StubClient) Update(ctx context.Context, externalID string, item RawItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	item.ExternalID = externalID
	s.Items[externalID] = item
	return nil
}

func (s *StubClient) Complete(ctx context.Context, externalID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Completed[externalID] = true
	return nil
}

func (s *StubClient) Delete(ctx context.Context, externalID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Deleted[externalID] = true
	return nil
}

// StubFactory always returns the same pre-built clients, ignoring credential
// state except to surface AuthRequired when the credential is revoked.
type StubFactory struct {
	Client     Client
	TaskClient TaskManagerClient
}

func (f *StubFactory) For(ctx context.Context, cred *domain.ProviderCredential) (Client, error) {
	if cred.Status == domain.CredentialRevoked {
		return nil, domain.NewError(domain.KindAuthRequired, domain.ErrCredentialRevoked)
	}
	return f.Client, nil
}

func (f *StubFactory) ForTaskManager(ctx context.Context, cred *domain.ProviderCredential) (TaskManagerClient, error) {
	if cred.Status == domain.CredentialRevoked {
		return nil, domain.NewError(domain.KindAuthRequired, domain.ErrCredentialRevoked)
	}
	return f.TaskClient, nil
}
