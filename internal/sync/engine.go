// Package sync implements C5: bidirectional reconciliation between the
// normalized Task store and an external task-manager provider (spec §4.5).
package sync

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/saan/taskflow-agent/internal/domain"
	"github.com/saan/taskflow-agent/internal/infrastructure/clock"
	"github.com/saan/taskflow-agent/internal/infrastructure/events"
	"github.com/saan/taskflow-agent/internal/infrastructure/provider"
	"github.com/saan/taskflow-agent/pkg/logger"
)

const retryFloorDefault = 5 * time.Minute
const retryCeiling = time.Hour

// Engine is C5.
type Engine struct {
	Credentials domain.CredentialStore
	Tasks       domain.TaskStore
	Factory     provider.Factory
	Events      events.Publisher
	Clock       clock.Clock
	Log         logger.Logger

	RetryFloor   time.Duration
	RetryCeiling time.Duration

	lastAttempt  map[uuid.UUID]time.Time
	attemptCount map[uuid.UUID]int
}

func (e *Engine) retryFloor() time.Duration {
	if e.RetryFloor > 0 {
		return e.RetryFloor
	}
	return retryFloorDefault
}

func (e *Engine) retryCeiling() time.Duration {
	if e.RetryCeiling > 0 {
		return e.RetryCeiling
	}
	return retryCeiling
}

// backoffFor returns the floor doubled once per consecutive failure,
// capped at retryCeiling: attempt 1 waits the floor, attempt 2 waits 2x,
// attempt 3 waits 4x, and so on until the ceiling.
func (e *Engine) backoffFor(attempts int) time.Duration {
	d := e.retryFloor()
	for i := 1; i < attempts; i++ {
		d *= 2
		if d >= e.retryCeiling() {
			return e.retryCeiling()
		}
	}
	return d
}

// Summary is the status surface named in spec §4.5.
type Summary struct {
	Connected      bool                          `json:"connected"`
	LastSync       *time.Time                    `json:"last_sync,omitempty"`
	SyncStatus     domain.SyncStatus             `json:"sync_status"`
	StatusCounts   map[domain.SyncStatus]int     `json:"status_counts"`
	ConflictsCount int                           `json:"conflicts_count"`
	ErrorsCount    int                           `json:"errors_count"`
}

// Run executes one full sync cycle for (user, task-manager): fetch remote
// changes, push local changes, handle deletions (spec §4.5 steps 1-3).
func (e *Engine) Run(ctx context.Context, user string) (*Summary, error) {
	cred, err := e.Credentials.Get(ctx, user, domain.ProviderTaskManager)
	if err != nil {
		return nil, domain.NewError(domain.KindAuthRequired, domain.ErrCredentialNotFound)
	}
	if cred.Status == domain.CredentialRevoked {
		return nil, domain.NewError(domain.KindAuthRequired, domain.ErrCredentialRevoked)
	}

	client, err := e.Factory.ForTaskManager(ctx, cred)
	if err != nil {
		return nil, domain.NewError(domain.KindAuthRequired, err)
	}

	if err := e.fetchRemoteChanges(ctx, user, client); err != nil {
		return nil, err
	}
	if err := e.pushLocalChanges(ctx, user, client); err != nil {
		return nil, err
	}

	return e.summarize(ctx, user)
}

// fetchRemoteChanges implements spec §4.5 step 1: for each remote item,
// create if unseen, overwrite-if-unchanged, or mark conflict.
func (e *Engine) fetchRemoteChanges(ctx context.Context, user string, client provider.TaskManagerClient) error {
	page, err := client.List(ctx, provider.Window{}, "")
	if err != nil {
		return domain.NewError(domain.KindTransient, err)
	}

	for _, item := range page.Items {
		if err := e.reconcileRemoteItem(ctx, user, item); err != nil {
			if e.Log != nil {
				e.Log.WithField("external_id", item.ExternalID).WithField("error", err.Error()).Warn("sync: failed to reconcile remote item")
			}
		}
	}
	return nil
}

func (e *Engine) reconcileRemoteItem(ctx context.Context, user string, item provider.RawItem) error {
	now := e.Clock.Now()
	local, err := e.Tasks.GetByExternalID(ctx, user, domain.SourceTaskManager, item.ExternalID)
	if err != nil {
		// No local task carries this external_id: create inbound.
		title, due := titleAndDueFromPayload(item.Payload)
		start, end := now, now.Add(time.Hour)
		if due != nil {
			end = *due
			start = end.Add(-time.Hour)
		}
		t := domain.NewTask(user, domain.SourceTaskManager, title, start, end)
		t.RawPayload = item.Payload
		t.ExternalID = item.ExternalID
		t.ExternalUpdatedAt = &item.ExternalUpdatedAt
		t.SyncDirection = domain.SyncDirectionInbound
		t.SyncStatus = domain.SyncStatusSynced
		t.LastSyncedAt = &now
		_, err := e.Tasks.UpsertByExternalID(ctx, t)
		return err
	}

	if remoteIsDeletion(item) {
		local.SetCompleted(true, now)
		local.SyncStatus = domain.SyncStatusSynced
		local.LastSyncedAt = &now
		return e.Tasks.Update(ctx, local)
	}

	lastSynced := local.LastSyncedAt
	localChangedSinceSync := lastSynced == nil || local.UpdatedAt.After(*lastSynced)
	remoteChangedSinceSync := lastSynced == nil || item.ExternalUpdatedAt.After(*lastSynced)

	switch {
	case !localChangedSinceSync:
		local.RawPayload = item.Payload
		local.ExternalUpdatedAt = &item.ExternalUpdatedAt
		local.SyncStatus = domain.SyncStatusSynced
		local.LastSyncedAt = &now
		local.SyncError = ""
		return e.Tasks.Update(ctx, local)
	case remoteChangedSinceSync:
		local.SyncStatus = domain.SyncStatusConflict
		local.ExternalUpdatedAt = &item.ExternalUpdatedAt
		return e.Tasks.Update(ctx, local)
	default:
		return nil
	}
}

func remoteIsDeletion(item provider.RawItem) bool {
	return len(item.Payload) == 0
}

// taskManagerPayload mirrors extractor.TaskManagerPayload's JSON shape; the
// Sync Engine decodes the same wire format the provider sends the
// Extractor, without going through NLP classification (spec §4.5 treats
// remote items as already-structured task-manager data, not freeform text).
type taskManagerPayload struct {
	Title string     `json:"title"`
	Due   *time.Time `json:"due,omitempty"`
}

func titleAndDueFromPayload(raw []byte) (title string, due *time.Time) {
	var p taskManagerPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return "", nil
	}
	return p.Title, p.Due
}

// pushLocalChanges implements spec §4.5 step 2: push pending local
// mutations outbound, respecting the errored-task retry floor.
func (e *Engine) pushLocalChanges(ctx context.Context, user string, client provider.TaskManagerClient) error {
	pending, err := e.Tasks.ListBySyncStatus(ctx, user, domain.SourceTaskManager, domain.SyncStatusPending)
	if err != nil {
		return domain.NewError(domain.KindTransient, err)
	}
	errored, err := e.Tasks.ListBySyncStatus(ctx, user, domain.SourceTaskManager, domain.SyncStatusError)
	if err != nil {
		return domain.NewError(domain.KindTransient, err)
	}

	now := e.Clock.Now()
	for _, t := range errored {
		if !e.readyForRetry(t.ID, now) {
			continue
		}
		pending = append(pending, t)
	}

	for _, t := range pending {
		e.pushOne(ctx, client, t, now)
	}
	return nil
}

// readyForRetry enforces spec §4.5's capped exponential retry floor: a
// default 5m floor that doubles per consecutive failure, capped at 1h.
func (e *Engine) readyForRetry(taskID uuid.UUID, now time.Time) bool {
	if e.lastAttempt == nil {
		return true
	}
	last, ok := e.lastAttempt[taskID]
	if !ok {
		return true
	}
	return now.Sub(last) >= e.backoffFor(e.attemptCount[taskID])
}

func (e *Engine) pushOne(ctx context.Context, client provider.TaskManagerClient, t *domain.Task, now time.Time) {
	if e.lastAttempt == nil {
		e.lastAttempt = make(map[uuid.UUID]time.Time)
	}
	if e.attemptCount == nil {
		e.attemptCount = make(map[uuid.UUID]int)
	}
	e.lastAttempt[t.ID] = now

	item := provider.RawItem{ExternalID: t.ExternalID, Payload: t.RawPayload, ExternalUpdatedAt: now}
	var err error
	if t.IsCompleted {
		err = client.Complete(ctx, t.ExternalID)
	} else if t.ExternalID == "" {
		var externalID string
		externalID, err = client.Create(ctx, item)
		if err == nil {
			t.ExternalID = externalID
		}
	} else {
		err = client.Update(ctx, t.ExternalID, item)
	}

	if err != nil {
		e.attemptCount[t.ID]++
		t.SyncStatus = domain.SyncStatusError
		t.SyncError = err.Error()
		if updErr := e.Tasks.Update(ctx, t); updErr != nil && e.Log != nil {
			e.Log.WithField("error", updErr.Error()).Warn("sync: failed to record push error")
		}
		return
	}

	delete(e.lastAttempt, t.ID)
	delete(e.attemptCount, t.ID)
	t.SyncStatus = domain.SyncStatusSynced
	t.SyncError = ""
	t.LastSyncedAt = &now
	if updErr := e.Tasks.Update(ctx, t); updErr != nil && e.Log != nil {
		e.Log.WithField("error", updErr.Error()).Warn("sync: failed to record push success")
	}
	if e.Events != nil {
		_ = e.Events.Publish(ctx, events.Event{Type: events.TaskSynced, User: t.User, Key: t.ID.String(), At: now})
	}
}

// Resolve implements spec §4.5 step 4's user-driven conflict resolution.
// "external" re-fetches the current remote item to overwrite the local side;
// the public operation signature (spec §6) carries only the choice, not a
// caller-supplied snapshot.
func (e *Engine) Resolve(ctx context.Context, user string, taskID uuid.UUID, choice string) error {
	t, err := e.Tasks.Get(ctx, user, taskID)
	if err != nil {
		return domain.NewError(domain.KindNotFound, err)
	}
	if t.SyncStatus != domain.SyncStatusConflict {
		return domain.NewError(domain.KindInvalidRequest, fmt.Errorf("task %s is not in conflict", taskID))
	}

	now := e.Clock.Now()
	switch choice {
	case "local":
		t.SyncStatus = domain.SyncStatusPending
	case "external":
		item, err := e.fetchRemoteSnapshot(ctx, user, t.ExternalID)
		if err != nil {
			return err
		}
		t.RawPayload = item.Payload
		t.ExternalUpdatedAt = &item.ExternalUpdatedAt
		t.SyncStatus = domain.SyncStatusSynced
		t.LastSyncedAt = &now
	default:
		return domain.NewError(domain.KindInvalidRequest, fmt.Errorf("unknown resolution choice %q", choice))
	}
	t.SyncError = ""
	if err := e.Tasks.Update(ctx, t); err != nil {
		return domain.NewError(domain.KindTransient, err)
	}
	return nil
}

func (e *Engine) fetchRemoteSnapshot(ctx context.Context, user, externalID string) (*provider.RawItem, error) {
	cred, err := e.Credentials.Get(ctx, user, domain.ProviderTaskManager)
	if err != nil {
		return nil, domain.NewError(domain.KindAuthRequired, domain.ErrCredentialNotFound)
	}
	client, err := e.Factory.ForTaskManager(ctx, cred)
	if err != nil {
		return nil, domain.NewError(domain.KindAuthRequired, err)
	}
	page, err := client.List(ctx, provider.Window{}, "")
	if err != nil {
		return nil, domain.NewError(domain.KindTransient, err)
	}
	for i := range page.Items {
		if page.Items[i].ExternalID == externalID {
			return &page.Items[i], nil
		}
	}
	return nil, domain.NewError(domain.KindNotFound, fmt.Errorf("remote item %s not found", externalID))
}

func (e *Engine) summarize(ctx context.Context, user string) (*Summary, error) {
	statuses := []domain.SyncStatus{domain.SyncStatusSynced, domain.SyncStatusPending, domain.SyncStatusConflict, domain.SyncStatusError}
	counts := make(map[domain.SyncStatus]int, len(statuses))
	for _, s := range statuses {
		tasks, err := e.Tasks.ListBySyncStatus(ctx, user, domain.SourceTaskManager, s)
		if err != nil {
			return nil, domain.NewError(domain.KindTransient, err)
		}
		counts[s] = len(tasks)
	}

	overall := domain.SyncStatusSynced
	switch {
	case counts[domain.SyncStatusConflict] > 0:
		overall = domain.SyncStatusConflict
	case counts[domain.SyncStatusError] > 0:
		overall = domain.SyncStatusError
	case counts[domain.SyncStatusPending] > 0:
		overall = domain.SyncStatusPending
	}

	now := e.Clock.Now()
	return &Summary{
		Connected:      true,
		LastSync:       &now,
		SyncStatus:     overall,
		StatusCounts:   counts,
		ConflictsCount: counts[domain.SyncStatusConflict],
		ErrorsCount:    counts[domain.SyncStatusError],
	}, nil
}
