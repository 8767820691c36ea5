package nudger

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/saan/taskflow-agent/internal/domain"
	"github.com/saan/taskflow-agent/internal/infrastructure/clock"
)

// Feedback wires the mark_done/snooze operations of spec §4.4's "Feedback
// ingestion" paragraph. It is a separate struct from Nudger because these
// are foreground, caller-invoked operations, not part of the tick loop.
type Feedback struct {
	Tasks    domain.TaskStore
	Plans    domain.PlanStore
	Feedback domain.FeedbackStore
	Clock    clock.Clock
}

// MarkDone sets the task completed, records a TaskFeedback, and transitions
// the plan entry's denormalized status to done.
func (f *Feedback) MarkDone(ctx context.Context, user string, taskID uuid.UUID, planDate string) error {
	task, err := f.Tasks.Get(ctx, user, taskID)
	if err != nil {
		return domain.NewError(domain.KindNotFound, err)
	}
	now := f.Clock.Now()
	task.SetCompleted(true, now)
	if err := f.Tasks.Update(ctx, task); err != nil {
		return domain.NewError(domain.KindTransient, err)
	}

	var planID *uuid.UUID
	if planDate != "" {
		if plan, err := f.Plans.Get(ctx, user, planDate); err == nil {
			if entry := plan.FindEntry(taskID); entry != nil {
				entry.Status = domain.EntryStatusDone
				if err := f.Plans.Save(ctx, plan); err != nil {
					return domain.NewError(domain.KindTransient, err)
				}
			}
			planID = &plan.ID
		}
	}

	if err := f.Feedback.Append(ctx, domain.NewDoneFeedback(user, taskID, planID, now)); err != nil {
		return domain.NewError(domain.KindTransient, err)
	}
	return nil
}

// Snooze records feedback and shifts the plan entry's predicted_start by
// minutes, capped to end of day. The existing notification reservation for
// this fire is left in place, so no duplicate nudge is created (§4.4 step
// "Feedback ingestion").
func (f *Feedback) Snooze(ctx context.Context, user string, taskID uuid.UUID, planDate string, minutes int) error {
	now := f.Clock.Now()

	var planID *uuid.UUID
	if planDate != "" {
		plan, err := f.Plans.Get(ctx, user, planDate)
		if err != nil {
			return domain.NewError(domain.KindNotFound, err)
		}
		entry := plan.FindEntry(taskID)
		if entry == nil {
			return domain.NewError(domain.KindNotFound, domain.ErrTaskNotFound)
		}
		entry.Status = domain.EntryStatusSnoozed
		dayEnd := endOfDay(entry.PredictedStart)
		shifted := entry.PredictedStart.Add(time.Duration(minutes) * time.Minute)
		if shifted.After(dayEnd) {
			shifted = dayEnd
		}
		shift := shifted.Sub(entry.PredictedStart)
		entry.PredictedStart = shifted
		entry.PredictedEnd = entry.PredictedEnd.Add(shift)
		if err := f.Plans.Save(ctx, plan); err != nil {
			return domain.NewError(domain.KindTransient, err)
		}
		planID = &plan.ID
	}

	if err := f.Feedback.Append(ctx, domain.NewSnoozeFeedback(user, taskID, planID, minutes, now)); err != nil {
		return domain.NewError(domain.KindTransient, err)
	}
	return nil
}

func endOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 23, 59, 59, 0, t.Location())
}
