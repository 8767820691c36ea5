package planner

import (
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/saan/taskflow-agent/internal/domain"
)

// candidate is one task being scored and scheduled for a day's plan.
type candidate struct {
	task           *domain.Task
	score          float64
	predictedStart time.Time
	predictedEnd   time.Time
	deferred       bool // pushed to end of day by an open blocker
}

// filterCandidates implements spec §4.3 step 1: tasks whose start falls on
// date in the user's local day, with spam excluded and open-blocker
// dependents pushed to the end of the day (or dropped if that would miss
// their own deadline).
func filterCandidates(tasks []*domain.Task, loc *time.Location, date string, openBlockers map[uuid.UUID][]uuid.UUID) []candidate {
	dayStart, dayEnd, ok := dayBounds(date, loc)
	if !ok {
		return nil
	}

	var out []candidate
	for _, t := range tasks {
		if t.IsSpam {
			continue
		}
		if t.Start.Before(dayStart) || !t.Start.Before(dayEnd) {
			continue
		}
		c := candidate{task: t, predictedStart: t.Start, predictedEnd: t.End}
		if blockers := openBlockers[t.ID]; len(blockers) > 0 {
			deferredStart := dayEnd.Add(-30 * time.Minute)
			if deferredStart.Before(t.End) {
				// deferring would violate the task's own deadline — drop it
				continue
			}
			c.deferred = true
			shift := deferredStart.Sub(c.predictedStart)
			c.predictedStart = deferredStart
			c.predictedEnd = t.End.Add(shift)
		}
		out = append(out, c)
	}
	return out
}

func dayBounds(date string, loc *time.Location) (start, end time.Time, ok bool) {
	t, err := time.ParseInLocation("2006-01-02", date, loc)
	if err != nil {
		return time.Time{}, time.Time{}, false
	}
	return t, t.Add(24 * time.Hour), true
}

// scoreAndOrder applies the priority-score formula and the tie-break rule
// of spec §4.3 step 2: earlier original start time, then stable task id.
func scoreAndOrder(cands []candidate, userEnergy int, dayStart, dayEnd int64) {
	for i := range cands {
		cands[i].score = priorityScore(cands[i].task, userEnergy, dayStart, dayEnd)
	}
	sort.SliceStable(cands, func(i, j int) bool {
		if cands[i].score != cands[j].score {
			return cands[i].score > cands[j].score
		}
		if !cands[i].task.Start.Equal(cands[j].task.Start) {
			return cands[i].task.Start.Before(cands[j].task.Start)
		}
		return cands[i].task.ID.String() < cands[j].task.ID.String()
	})
}

// snoozeRateByHour buckets feedback by the hour-of-day of the fed-back
// task's original start and returns the snooze rate per bucket, used by
// spec §4.3 step 3's learned adjustment.
func snoozeRateByHour(feedback []*domain.TaskFeedback, tasksByID map[uuid.UUID]*domain.Task, loc *time.Location) map[int]hourStat {
	stats := make(map[int]hourStat)
	for _, f := range feedback {
		task, ok := tasksByID[f.TaskID]
		if !ok {
			continue
		}
		hour := task.Start.In(loc).Hour()
		s := stats[hour]
		s.total++
		if f.Action == domain.FeedbackSnoozed {
			s.snoozed++
		}
		stats[hour] = s
	}
	return stats
}

type hourStat struct {
	total   int
	snoozed int
}

func (s hourStat) rate() float64 {
	if s.total == 0 {
		return 0
	}
	return float64(s.snoozed) / float64(s.total)
}

// applyLearnedAdjustment shifts predictedStart by +1h, capped to the
// working window, when the candidate's hour bucket has a snooze rate >= 0.5
// with at least 4 samples (spec §4.3 step 3).
func applyLearnedAdjustment(c *candidate, stats map[int]hourStat, loc *time.Location, window domain.WorkingWindow) {
	hour := c.task.Start.In(loc).Hour()
	s := stats[hour]
	if s.total < 4 || s.rate() < 0.5 {
		return
	}
	dur := c.predictedEnd.Sub(c.predictedStart)
	c.predictedStart = window.Clamp(c.predictedStart.Add(time.Hour))
	c.predictedEnd = c.predictedStart.Add(dur)
}
