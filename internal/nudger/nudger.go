// Package nudger implements C4: the recurrent scheduler that scans active
// plans and emits at-most-one notification per scheduled task start
// (spec §4.4).
package nudger

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/saan/taskflow-agent/internal/domain"
	"github.com/saan/taskflow-agent/internal/infrastructure/clock"
	"github.com/saan/taskflow-agent/internal/infrastructure/lock"
	"github.com/saan/taskflow-agent/internal/infrastructure/smtp"
	"github.com/saan/taskflow-agent/pkg/logger"
)

const tickLockKey = "nudger:tick"

// EmailAddressResolver looks up a user's email for best-effort delivery.
// Returns ("", false) when the user has none on file or email is disabled
// for them.
type EmailAddressResolver func(ctx context.Context, user string) (address string, enabled bool)

// Nudger is C4.
type Nudger struct {
	Plans         domain.PlanStore
	Notifications domain.NotificationStore
	Locks         lock.Locker
	Clock         clock.Clock
	Mailer        smtp.Sender
	ResolveEmail  EmailAddressResolver
	Log           logger.Logger

	TickInterval    time.Duration
	NudgeLookahead  time.Duration
	NudgeGrace      time.Duration
	PerUserBudget   time.Duration
	TickOuterBudget time.Duration
	EmailFrom       string

	stop chan struct{}
}

func (n *Nudger) lookahead() time.Duration {
	if n.NudgeLookahead > 0 {
		return n.NudgeLookahead
	}
	return 5 * time.Minute
}

func (n *Nudger) grace() time.Duration {
	if n.NudgeGrace > 0 {
		return n.NudgeGrace
	}
	return time.Minute
}

func (n *Nudger) perUserBudget() time.Duration {
	if n.PerUserBudget > 0 {
		return n.PerUserBudget
	}
	return 10 * time.Second
}

func (n *Nudger) tickOuterBudget() time.Duration {
	if n.TickOuterBudget > 0 {
		return n.TickOuterBudget
	}
	interval := n.TickInterval
	if interval <= 0 {
		interval = 2 * time.Minute
	}
	budget := interval - 15*time.Second
	if budget <= 0 {
		return interval
	}
	return budget
}

// Run drives the ticker loop until ctx is cancelled or Stop is called,
// mirroring the teacher's OutboxWorker.run ticker-plus-select shape.
func (n *Nudger) Run(ctx context.Context) {
	interval := n.TickInterval
	if interval <= 0 {
		interval = 2 * time.Minute
	}
	ticker := n.Clock.NewTicker(interval)
	defer ticker.Stop()
	n.stop = make(chan struct{})

	for {
		select {
		case <-ctx.Done():
			return
		case <-n.stop:
			return
		case <-ticker.C():
			n.Tick(ctx)
		}
	}
}

// Stop ends a running Run loop.
func (n *Nudger) Stop() {
	if n.stop != nil {
		close(n.stop)
	}
}

// Tick runs one scan of all active plans. Ticks never overlap: a tick that
// finds one already in flight (its own lock still held) returns immediately
// (spec §4.4: "the job may run concurrently with foreground workflows but
// is itself serialized").
func (n *Nudger) Tick(ctx context.Context) {
	acquired, err := n.Locks.TryAcquire(ctx, tickLockKey, n.tickOuterBudget())
	if err != nil || !acquired {
		return
	}
	defer n.Locks.Release(ctx, tickLockKey)

	tickCtx, cancel := context.WithTimeout(ctx, n.tickOuterBudget())
	defer cancel()

	now := n.Clock.Now()
	date := now.Format("2006-01-02")
	plans, err := n.Plans.ListActiveForDate(tickCtx, date)
	if err != nil {
		if n.Log != nil {
			n.Log.WithField("error", err.Error()).Warn("nudger: failed to list active plans")
		}
		return
	}

	for _, plan := range plans {
		select {
		case <-tickCtx.Done():
			return
		default:
		}
		n.processUser(tickCtx, plan, now)
	}
}

// processUser handles one user's plan under its own per-user budget (§4.4).
func (n *Nudger) processUser(ctx context.Context, plan *domain.DailyPlan, now time.Time) {
	userCtx, cancel := context.WithTimeout(ctx, n.perUserBudget())
	defer cancel()

	entries := dueEntries(plan.Tasks, now, n.grace(), n.lookahead())
	for _, e := range entries {
		select {
		case <-userCtx.Done():
			return
		default:
		}
		n.nudge(userCtx, plan, e)
	}
}

// dueEntries selects pending entries whose predicted_start falls in
// [now-grace, now+lookahead], in predicted_start order (spec §4.4 steps 1
// and "within a plan, entries are processed in predicted_start order").
func dueEntries(entries []domain.PlanEntry, now time.Time, grace, lookahead time.Duration) []domain.PlanEntry {
	lower := now.Add(-grace)
	upper := now.Add(lookahead)
	var out []domain.PlanEntry
	for _, e := range entries {
		if e.Status != domain.EntryStatusPending {
			continue
		}
		if e.PredictedStart.Before(lower) || e.PredictedStart.After(upper) {
			continue
		}
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PredictedStart.Before(out[j].PredictedStart) })
	return out
}

// nudge reserves, composes, and delivers one notification for entry. A
// failed reservation (another tick, or a prior delivery, already holds the
// row) is a silent no-op — the at-most-once guarantee, not an error.
func (n *Nudger) nudge(ctx context.Context, plan *domain.DailyPlan, entry domain.PlanEntry) {
	message := composeMessage(entry)
	notification := domain.NewReservedNotification(plan.User, entry.TaskID, plan.ID, "task_start", message, entry.PredictedStart)

	if err := n.Notifications.Reserve(ctx, notification); err != nil {
		return
	}

	if err := n.Notifications.MarkSent(ctx, notification.ID, n.Clock.Now()); err != nil {
		if n.Log != nil {
			n.Log.WithField("error", err.Error()).Warn("nudger: failed to mark notification sent")
		}
		return
	}

	n.deliverEmail(ctx, plan.User, entry, message)
}

// deliverEmail is best-effort: failure is logged only and never reverts the
// sent state (spec §4.4 step 4).
func (n *Nudger) deliverEmail(ctx context.Context, user string, entry domain.PlanEntry, message string) {
	if n.Mailer == nil || n.ResolveEmail == nil {
		return
	}
	addr, enabled := n.ResolveEmail(ctx, user)
	if !enabled || addr == "" {
		return
	}
	subject := fmt.Sprintf("Reminder: %s", entry.Title)
	if err := n.Mailer.Send(ctx, n.EmailFrom, addr, subject, "", message); err != nil {
		if n.Log != nil {
			n.Log.WithField("user", user).WithField("error", err.Error()).Warn("nudger: email delivery failed")
		}
	}
}

// composeMessage implements spec §4.4 step 3's exact format strings.
func composeMessage(entry domain.PlanEntry) string {
	switch {
	case entry.IsCritical:
		return fmt.Sprintf("\U0001F534 CRITICAL: %s is starting now", entry.Title)
	case entry.IsUrgent:
		return fmt.Sprintf("⚠️ URGENT: %s is starting now", entry.Title)
	default:
		return fmt.Sprintf("\U0001F4CB %s is starting now", entry.Title)
	}
}

// Dismiss transitions a notification pending|sent -> dismissed (§4.4).
func (n *Nudger) Dismiss(ctx context.Context, user string, id uuid.UUID) error {
	return n.Notifications.Dismiss(ctx, user, id)
}
