package nudger

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saan/taskflow-agent/internal/domain"
	"github.com/saan/taskflow-agent/internal/infrastructure/clock"
	"github.com/saan/taskflow-agent/internal/infrastructure/lock"
	"github.com/saan/taskflow-agent/internal/infrastructure/smtp"
	memorystore "github.com/saan/taskflow-agent/internal/infrastructure/store/memory"
	"github.com/saan/taskflow-agent/pkg/logger"
)

func newTestNudger(now time.Time) (*Nudger, domain.PlanStore, domain.NotificationStore, *smtp.Stub) {
	mailer := smtp.NewStub()
	n := &Nudger{
		Plans:         memorystore.NewPlanStore(),
		Notifications: memorystore.NewNotificationStore(),
		Locks:         lock.NewInMemory(),
		Clock:         clock.NewFake(now),
		Mailer:        mailer,
		ResolveEmail:  func(ctx context.Context, user string) (string, bool) { return "user@example.com", true },
		Log:           logger.NewLogger("error", "text"),
		EmailFrom:     "agent@example.com",
	}
	return n, n.Plans, n.Notifications, mailer
}

func seedPlan(t *testing.T, store domain.PlanStore, user string, now time.Time, critical, urgent bool) (*domain.DailyPlan, uuid.UUID) {
	t.Helper()
	taskID := uuid.New()
	plan := domain.NewDailyPlan(user, now.Format("2006-01-02"), nil, []domain.PlanEntry{
		{TaskID: taskID, Title: "Ship the report", PredictedStart: now, PredictedEnd: now.Add(time.Hour), IsCritical: critical, IsUrgent: urgent, Status: domain.EntryStatusPending},
	})
	require.NoError(t, store.Replace(context.Background(), plan))
	return plan, taskID
}

func TestTick_ReservesAndSendsForDueEntry(t *testing.T) {
	now := time.Now()
	n, _, notifications, mailer := newTestNudger(now)
	_, taskID := seedPlan(t, n.Plans, "u1", now, false, false)

	n.Tick(context.Background())

	notifs, err := notifications.List(context.Background(), "u1", domain.NotificationSent, 10)
	require.NoError(t, err)
	require.Len(t, notifs, 1)
	assert.Equal(t, taskID, notifs[0].TaskID)
	assert.Contains(t, notifs[0].Message, "Ship the report")
	require.Len(t, mailer.Sent, 1)
	assert.Equal(t, "user@example.com", mailer.Sent[0].To)
}

func TestTick_MessageFormatByCriticality(t *testing.T) {
	now := time.Now()

	nCritical, _, notifCritical, _ := newTestNudger(now)
	seedPlan(t, nCritical.Plans, "u1", now, true, false)
	nCritical.Tick(context.Background())
	list, _ := notifCritical.List(context.Background(), "u1", domain.NotificationSent, 10)
	require.Len(t, list, 1)
	assert.Contains(t, list[0].Message, "CRITICAL")

	nUrgent, _, notifUrgent, _ := newTestNudger(now)
	seedPlan(t, nUrgent.Plans, "u1", now, false, true)
	nUrgent.Tick(context.Background())
	list, _ = notifUrgent.List(context.Background(), "u1", domain.NotificationSent, 10)
	require.Len(t, list, 1)
	assert.Contains(t, list[0].Message, "URGENT")
}

func TestTick_DoesNotDuplicateAcrossTicks(t *testing.T) {
	now := time.Now()
	n, _, notifications, mailer := newTestNudger(now)
	seedPlan(t, n.Plans, "u1", now, false, false)

	n.Tick(context.Background())
	n.Tick(context.Background())

	notifs, err := notifications.List(context.Background(), "u1", "", 10)
	require.NoError(t, err)
	assert.Len(t, notifs, 1)
	assert.Len(t, mailer.Sent, 1)
}

func TestTick_SkipsEntryOutsideWindow(t *testing.T) {
	now := time.Now()
	n, _, notifications, _ := newTestNudger(now)
	seedPlan(t, n.Plans, "u1", now.Add(time.Hour), false, false)

	n.Tick(context.Background())

	notifs, err := notifications.List(context.Background(), "u1", "", 10)
	require.NoError(t, err)
	assert.Len(t, notifs, 0)
}

func TestDismiss_AllowsReservationAgain(t *testing.T) {
	now := time.Now()
	n, _, notifications, _ := newTestNudger(now)
	_, taskID := seedPlan(t, n.Plans, "u1", now, false, false)

	n.Tick(context.Background())
	list, err := notifications.List(context.Background(), "u1", "", 10)
	require.NoError(t, err)
	require.Len(t, list, 1)

	require.NoError(t, n.Dismiss(context.Background(), "u1", list[0].ID))

	// a new plan generation creates a fresh PlanID; the at-most-once guard
	// keys on (user, task, plan), so a reservation for the same task under
	// the new plan id succeeds.
	notification := domain.NewReservedNotification("u1", taskID, uuid.New(), "task_start", "hi", now)
	require.NoError(t, notifications.Reserve(context.Background(), notification))
}

func TestReserve_AtMostOnceUnderConcurrency(t *testing.T) {
	store := memorystore.NewNotificationStore()
	user, taskID, planID := "u1", uuid.New(), uuid.New()

	const attempts = 100
	var wg sync.WaitGroup
	successes := make([]bool, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			n := domain.NewReservedNotification(user, taskID, planID, "task_start", "hi", time.Now())
			successes[i] = store.Reserve(context.Background(), n) == nil
		}(i)
	}
	wg.Wait()

	count := 0
	for _, ok := range successes {
		if ok {
			count++
		}
	}
	assert.Equal(t, 1, count)
}
