// Package provider defines the ProviderClient collaborator (spec §6): the
// calendar/mail/task-manager clients the Ingestion and Sync components
// fetch from and, for the task manager, write back to. Pagination and
// create/update/complete/delete shapes follow the loyverse integration's
// connector.Client (rest pagination via cursor, context-first methods).
package provider

import (
	"context"
	"time"

	"github.com/saan/taskflow-agent/internal/domain"
)

// RawItem is an unopinionated provider payload plus the metadata the
// Extractor and Sync Engine need regardless of source.
type RawItem struct {
	ExternalID        string
	ExternalUpdatedAt time.Time
	Payload           []byte // opaque, source-specific JSON
}

// Page is one page of a provider list call.
type Page struct {
	Items      []RawItem
	NextCursor string // "" => no more pages
}

// Window bounds a fetch by time range (calendar/mail) — unused by the
// task-manager's "all open items" listing.
type Window struct {
	From, To time.Time
}

// Client is the read (and, for the task manager, write) contract every
// provider implements.
type Client interface {
	List(ctx context.Context, window Window, cursor string) (Page, error)
}

// TaskManagerClient extends Client with the task-manager's CRUD surface
// used by the Sync Engine's push and conflict-resolution paths (spec §4.5).
type TaskManagerClient interface {
	Client
	Create(ctx context.Context, item RawItem) (externalID string, err error)
	Update(ctx context.Context, externalID string, item RawItem) error
	Complete(ctx context.Context, externalID string) error
	Delete(ctx context.Context, externalID string) error
}

// Factory resolves the right client for a (user, provider) pair once a
// valid credential is in hand; concrete wiring (HTTP base URL, OAuth
// token attachment) lives outside the core per spec §1.
type Factory interface {
	For(ctx context.Context, cred *domain.ProviderCredential) (Client, error)
	ForTaskManager(ctx context.Context, cred *domain.ProviderCredential) (TaskManagerClient, error)
}
