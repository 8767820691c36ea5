package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saan/taskflow-agent/internal/domain"
)

func TestUpsertByExternalID_UnchangedContentDoesNotBumpUpdatedAt(t *testing.T) {
	store := NewTaskStore()
	start := time.Date(2026, 8, 3, 9, 0, 0, 0, time.UTC)

	first := domain.NewTask("u1", domain.SourceCalendar, "Standup", start, start.Add(time.Hour))
	first.ExternalID = "ext-1"
	_, err := store.UpsertByExternalID(context.Background(), first)
	require.NoError(t, err)
	firstUpdatedAt := first.UpdatedAt

	time.Sleep(2 * time.Millisecond)

	second := domain.NewTask("u1", domain.SourceCalendar, "Standup", start, start.Add(time.Hour))
	second.ExternalID = "ext-1"
	wasNew, err := store.UpsertByExternalID(context.Background(), second)
	require.NoError(t, err)
	assert.False(t, wasNew)
	assert.True(t, second.UpdatedAt.Equal(firstUpdatedAt), "updated_at must not change when content is unchanged")

	time.Sleep(2 * time.Millisecond)

	third := domain.NewTask("u1", domain.SourceCalendar, "Standup (moved)", start, start.Add(time.Hour))
	third.ExternalID = "ext-1"
	_, err = store.UpsertByExternalID(context.Background(), third)
	require.NoError(t, err)
	assert.True(t, third.UpdatedAt.After(firstUpdatedAt), "updated_at must advance when content changes")
}

func TestDependencyStoreInsert_RejectsSelfAndCyclicEdges(t *testing.T) {
	store := NewDependencyStore()
	a, b, c := uuid.New(), uuid.New(), uuid.New()

	require.NoError(t, store.Insert(context.Background(), domain.TaskDependency{Task: b, BlockedBy: a}))
	require.NoError(t, store.Insert(context.Background(), domain.TaskDependency{Task: c, BlockedBy: b}))

	err := store.Insert(context.Background(), domain.TaskDependency{Task: a, BlockedBy: a})
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrSelfDependency))

	err = store.Insert(context.Background(), domain.TaskDependency{Task: a, BlockedBy: c})
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrCyclicDependency))
}
