package sync

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saan/taskflow-agent/internal/domain"
	"github.com/saan/taskflow-agent/internal/infrastructure/clock"
	"github.com/saan/taskflow-agent/internal/infrastructure/provider"
	memorystore "github.com/saan/taskflow-agent/internal/infrastructure/store/memory"
	"github.com/saan/taskflow-agent/pkg/logger"
)

func newTestEngine(t *testing.T, client provider.TaskManagerClient, now time.Time) (*Engine, domain.TaskStore) {
	t.Helper()
	creds := memorystore.NewCredentialStore()
	require.NoError(t, creds.Upsert(context.Background(), &domain.ProviderCredential{
		User: "u1", Provider: domain.ProviderTaskManager, Status: domain.CredentialActive,
	}))
	tasks := memorystore.NewTaskStore()
	return &Engine{
		Credentials: creds,
		Tasks:       tasks,
		Factory:     &provider.StubFactory{TaskClient: client},
		Clock:       clock.NewFake(now),
		Log:         logger.NewLogger("error", "text"),
	}, tasks
}

func TestRun_ConflictThenResolveLocal(t *testing.T) {
	now := time.Now()
	lastSynced := now.Add(-time.Hour)

	client := provider.NewStubClient(provider.Page{})
	engine, tasks := newTestEngine(t, client, now)

	local := domain.NewTask("u1", domain.SourceTaskManager, "A", now, now.Add(time.Hour))
	local.ExternalID = "T1"
	local.SyncStatus = domain.SyncStatusPending
	local.LastSyncedAt = &lastSynced
	local.UpdatedAt = now.Add(-10 * time.Minute) // local change since last sync
	_, err := tasks.UpsertByExternalID(context.Background(), local)
	require.NoError(t, err)

	remotePayload := []byte(`{"title":"B"}`)
	client.Items["T1"] = provider.RawItem{ExternalID: "T1", Payload: remotePayload, ExternalUpdatedAt: now.Add(-5 * time.Minute)}
	client.Pages = []provider.Page{{Items: []provider.RawItem{
		{ExternalID: "T1", Payload: remotePayload, ExternalUpdatedAt: now.Add(-5 * time.Minute)},
	}}}

	_, err = engine.Run(context.Background(), "u1")
	require.NoError(t, err)

	after, err := tasks.GetByExternalID(context.Background(), "u1", domain.SourceTaskManager, "T1")
	require.NoError(t, err)
	assert.Equal(t, domain.SyncStatusConflict, after.SyncStatus)

	require.NoError(t, engine.Resolve(context.Background(), "u1", after.ID, "local"))

	afterResolve, err := tasks.GetByExternalID(context.Background(), "u1", domain.SourceTaskManager, "T1")
	require.NoError(t, err)
	assert.Equal(t, domain.SyncStatusPending, afterResolve.SyncStatus)

	_, err = engine.Run(context.Background(), "u1")
	require.NoError(t, err)

	final, err := tasks.GetByExternalID(context.Background(), "u1", domain.SourceTaskManager, "T1")
	require.NoError(t, err)
	assert.Equal(t, domain.SyncStatusSynced, final.SyncStatus)
	assert.Contains(t, client.Items, "T1")
	assert.NotNil(t, final.LastSyncedAt)
}

func TestResolve_ExternalOverwritesLocalFromLiveRemote(t *testing.T) {
	now := time.Now()
	lastSynced := now.Add(-time.Hour)

	client := provider.NewStubClient()
	engine, tasks := newTestEngine(t, client, now)

	local := domain.NewTask("u1", domain.SourceTaskManager, "A", now, now.Add(time.Hour))
	local.ExternalID = "T1"
	local.SyncStatus = domain.SyncStatusConflict
	local.LastSyncedAt = &lastSynced
	local.UpdatedAt = now.Add(-10 * time.Minute)
	local.ExternalUpdatedAt = &now
	_, err := tasks.UpsertByExternalID(context.Background(), local)
	require.NoError(t, err)

	remotePayload := []byte(`{"title":"B"}`)
	client.Pages = []provider.Page{{Items: []provider.RawItem{
		{ExternalID: "T1", Payload: remotePayload, ExternalUpdatedAt: now},
	}}}

	require.NoError(t, engine.Resolve(context.Background(), "u1", local.ID, "external"))

	after, err := tasks.GetByExternalID(context.Background(), "u1", domain.SourceTaskManager, "T1")
	require.NoError(t, err)
	assert.Equal(t, domain.SyncStatusSynced, after.SyncStatus)
	assert.Equal(t, remotePayload, after.RawPayload)
	assert.NotNil(t, after.LastSyncedAt)
}

func TestRun_UnchangedLocalOverwrittenFromRemote(t *testing.T) {
	now := time.Now()
	lastSynced := now.Add(-time.Hour)

	client := provider.NewStubClient()
	engine, tasks := newTestEngine(t, client, now)

	local := domain.NewTask("u1", domain.SourceTaskManager, "A", now, now.Add(time.Hour))
	local.ExternalID = "T1"
	local.SyncStatus = domain.SyncStatusSynced
	local.LastSyncedAt = &lastSynced
	local.UpdatedAt = lastSynced // unchanged since last sync
	_, err := tasks.UpsertByExternalID(context.Background(), local)
	require.NoError(t, err)

	remotePayload := []byte(`{"title":"B"}`)
	client.Pages = []provider.Page{{Items: []provider.RawItem{
		{ExternalID: "T1", Payload: remotePayload, ExternalUpdatedAt: now.Add(-5 * time.Minute)},
	}}}

	_, err = engine.Run(context.Background(), "u1")
	require.NoError(t, err)

	after, err := tasks.GetByExternalID(context.Background(), "u1", domain.SourceTaskManager, "T1")
	require.NoError(t, err)
	assert.Equal(t, domain.SyncStatusSynced, after.SyncStatus)
	assert.Equal(t, remotePayload, after.RawPayload)
}

func TestRun_PushesPendingLocalChange(t *testing.T) {
	now := time.Now()
	client := provider.NewStubClient()
	engine, tasks := newTestEngine(t, client, now)

	local := domain.NewTask("u1", domain.SourceTaskManager, "New task", now, now.Add(time.Hour))
	local.SyncStatus = domain.SyncStatusPending
	_, err := tasks.UpsertByExternalID(context.Background(), local)
	require.NoError(t, err)

	_, err = engine.Run(context.Background(), "u1")
	require.NoError(t, err)

	updated, err := tasks.Get(context.Background(), "u1", local.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.SyncStatusSynced, updated.SyncStatus)
	assert.NotEmpty(t, updated.ExternalID)
}

func TestRun_AuthRequiredOnRevokedCredential(t *testing.T) {
	client := provider.NewStubClient()
	engine, _ := newTestEngine(t, client, time.Now())
	require.NoError(t, engine.Credentials.Upsert(context.Background(), &domain.ProviderCredential{
		User: "u1", Provider: domain.ProviderTaskManager, Status: domain.CredentialRevoked,
	}))

	_, err := engine.Run(context.Background(), "u1")
	assert.Equal(t, domain.KindAuthRequired, domain.KindOf(err))
}

func TestRun_RemoteDeletionCompletesLocalTask(t *testing.T) {
	now := time.Now()
	lastSynced := now.Add(-time.Hour)
	client := provider.NewStubClient()
	engine, tasks := newTestEngine(t, client, now)

	local := domain.NewTask("u1", domain.SourceTaskManager, "A", now, now.Add(time.Hour))
	local.ExternalID = "T1"
	local.SyncStatus = domain.SyncStatusSynced
	local.LastSyncedAt = &lastSynced
	_, err := tasks.UpsertByExternalID(context.Background(), local)
	require.NoError(t, err)

	client.Pages = []provider.Page{{Items: []provider.RawItem{
		{ExternalID: "T1", Payload: nil, ExternalUpdatedAt: now},
	}}}

	_, err = engine.Run(context.Background(), "u1")
	require.NoError(t, err)

	after, err := tasks.GetByExternalID(context.Background(), "u1", domain.SourceTaskManager, "T1")
	require.NoError(t, err)
	assert.True(t, after.IsCompleted)
}
