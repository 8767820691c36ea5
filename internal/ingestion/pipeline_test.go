package ingestion

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saan/taskflow-agent/internal/domain"
	"github.com/saan/taskflow-agent/internal/extractor"
	"github.com/saan/taskflow-agent/internal/infrastructure/clock"
	"github.com/saan/taskflow-agent/internal/infrastructure/config"
	"github.com/saan/taskflow-agent/internal/infrastructure/lock"
	"github.com/saan/taskflow-agent/internal/infrastructure/provider"
	"github.com/saan/taskflow-agent/internal/infrastructure/ratelimit"
	memorystore "github.com/saan/taskflow-agent/internal/infrastructure/store/memory"
	"github.com/saan/taskflow-agent/pkg/logger"
)

func calendarItem(t *testing.T, id, title string, start time.Time, cancelled bool) provider.RawItem {
	t.Helper()
	payload, err := json.Marshal(map[string]any{
		"title": title, "start": start, "end": start.Add(30 * time.Minute), "cancelled": cancelled,
	})
	require.NoError(t, err)
	return provider.RawItem{ExternalID: id, ExternalUpdatedAt: start, Payload: payload}
}

func newTestPipeline(t *testing.T, client provider.Client) (*Pipeline, *memorystore.TaskStore) {
	t.Helper()
	creds := memorystore.NewCredentialStore()
	require.NoError(t, creds.Upsert(context.Background(), &domain.ProviderCredential{
		User: "u1", Provider: domain.ProviderCalendar, Expiry: time.Now().Add(24 * time.Hour), Status: domain.CredentialActive,
	}))
	tasks := memorystore.NewTaskStore()
	log := logger.NewLogger("error", "text")
	return &Pipeline{
		Credentials: creds,
		Factory:     &provider.StubFactory{Client: client},
		Extractor:   extractor.New(nil, log),
		Tasks:       tasks,
		Reminders:   memorystore.NewReminderStore(),
		Locks:       lock.NewInMemory(),
		Limits:      ratelimit.NewRegistry(nil),
		Clock:       clock.Real{},
		Metrics:     NewMetrics(),
		Log:         log,
		Windows:     map[domain.Source]config.IngestWindow{domain.SourceCalendar: {Past: 30 * 24 * time.Hour, Future: 90 * 24 * time.Hour}},
		RunTimeout:  time.Minute,
		StageTimeout: time.Minute,
	}, tasks
}

func TestRun_CalendarFirstRun(t *testing.T) {
	now := time.Now()
	client := provider.NewStubClient(provider.Page{Items: []provider.RawItem{
		calendarItem(t, "E1", "Project sync", now, false),
		calendarItem(t, "E2", "Recurring standup", now.Add(2*time.Hour), false),
		calendarItem(t, "E3", "Cancelled thing", now.Add(4*time.Hour), true),
	}})
	p, tasks := newTestPipeline(t, client)

	report, err := p.Run(context.Background(), "u1", domain.SourceCalendar)
	require.NoError(t, err)

	assert.Equal(t, 3, report.Fetched)
	assert.Equal(t, 2, report.Extracted)
	assert.Equal(t, 1, report.SkippedOther)
	assert.Equal(t, 2, report.PersistedNew)

	t1, err := tasks.GetByExternalID(context.Background(), "u1", domain.SourceCalendar, "E1")
	require.NoError(t, err)
	assert.Equal(t, domain.SyncStatusSynced, t1.SyncStatus)
}

func TestRun_Idempotent(t *testing.T) {
	now := time.Now()
	client := provider.NewStubClient(
		provider.Page{Items: []provider.RawItem{calendarItem(t, "E1", "Project sync", now, false)}},
		provider.Page{Items: []provider.RawItem{calendarItem(t, "E1", "Project sync", now, false)}},
	)
	p, _ := newTestPipeline(t, client)

	_, err := p.Run(context.Background(), "u1", domain.SourceCalendar)
	require.NoError(t, err)
	report2, err := p.Run(context.Background(), "u1", domain.SourceCalendar)
	require.NoError(t, err)

	assert.Equal(t, 0, report2.PersistedNew)
	assert.Equal(t, 1, report2.PersistedUpdate)
}

func TestRun_PreservesUserSettableFlagsAcrossReingest(t *testing.T) {
	now := time.Now()
	client := provider.NewStubClient(provider.Page{Items: []provider.RawItem{calendarItem(t, "E1", "Project sync", now, false)}})
	p, tasks := newTestPipeline(t, client)

	_, err := p.Run(context.Background(), "u1", domain.SourceCalendar)
	require.NoError(t, err)

	stored, err := tasks.GetByExternalID(context.Background(), "u1", domain.SourceCalendar, "E1")
	require.NoError(t, err)
	stored.IsCritical = true
	require.NoError(t, tasks.Update(context.Background(), stored))

	client2 := provider.NewStubClient(provider.Page{Items: []provider.RawItem{calendarItem(t, "E1", "Project sync (renamed)", now, false)}})
	p.Factory = &provider.StubFactory{Client: client2}

	_, err = p.Run(context.Background(), "u1", domain.SourceCalendar)
	require.NoError(t, err)

	after, err := tasks.GetByExternalID(context.Background(), "u1", domain.SourceCalendar, "E1")
	require.NoError(t, err)
	assert.True(t, after.IsCritical)
}

func TestRun_RejectsConcurrentRunForSamePair(t *testing.T) {
	now := time.Now()
	client := provider.NewStubClient(provider.Page{Items: []provider.RawItem{calendarItem(t, "E1", "Project sync", now, false)}})
	p, _ := newTestPipeline(t, client)

	key := busyKey("u1", domain.SourceCalendar)
	acquired, err := p.Locks.TryAcquire(context.Background(), key, time.Minute)
	require.NoError(t, err)
	require.True(t, acquired)

	_, err = p.Run(context.Background(), "u1", domain.SourceCalendar)
	assert.Equal(t, domain.KindBusy, domain.KindOf(err))
}

func TestRun_AuthRequiredOnRevokedCredential(t *testing.T) {
	client := provider.NewStubClient()
	p, _ := newTestPipeline(t, client)
	require.NoError(t, p.Credentials.Upsert(context.Background(), &domain.ProviderCredential{
		User: "u1", Provider: domain.ProviderCalendar, Status: domain.CredentialRevoked,
	}))

	_, err := p.Run(context.Background(), "u1", domain.SourceCalendar)
	assert.Equal(t, domain.KindAuthRequired, domain.KindOf(err))
}
