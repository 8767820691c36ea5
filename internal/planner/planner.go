// Package planner implements C3: turning a user's tasks for a day into an
// ordered DailyPlan (spec §4.3).
package planner

import (
	"context"
	"encoding/json"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/saan/taskflow-agent/internal/domain"
	"github.com/saan/taskflow-agent/internal/infrastructure/llm"
	"github.com/saan/taskflow-agent/pkg/logger"
)

const feedbackWindow = 14 * 24 * time.Hour

// Planner is C3.
type Planner struct {
	Tasks        domain.TaskStore
	Plans        domain.PlanStore
	Energy       domain.EnergyStore
	Feedback     domain.FeedbackStore
	Dependencies domain.DependencyStore
	Chatter      llm.Chatter
	Log          logger.Logger
	RetryBudget  int
	Window       domain.WorkingWindow

	// PromotionalPatterns is the configurable title-match safety net of
	// spec §4.3 step 5, checked case-insensitively as substrings.
	PromotionalPatterns []string
}

func (p *Planner) retryBudget() int {
	if p.RetryBudget > 0 {
		return p.RetryBudget
	}
	return 1
}

func (p *Planner) window() domain.WorkingWindow {
	if p.Window.End > p.Window.Start {
		return p.Window
	}
	return domain.DefaultWorkingWindow
}

// Generate builds and atomically replaces the DailyPlan for (user, date) per
// spec §4.3's six-step pipeline. loc is the user's local timezone.
func (p *Planner) Generate(ctx context.Context, user, date string, loc *time.Location) (*domain.DailyPlan, error) {
	dayStart, dayEnd, ok := dayBounds(date, loc)
	if !ok {
		return nil, domain.NewError(domain.KindInvalidRequest, domain.ErrInvalidPlanDate)
	}

	tasks, err := p.Tasks.ListByUserAndWindow(ctx, user, dayStart, dayEnd)
	if err != nil {
		return nil, domain.NewError(domain.KindTransient, err)
	}

	adjacency, err := p.Dependencies.AdjacencyForUser(ctx, user)
	if err != nil {
		return nil, domain.NewError(domain.KindTransient, err)
	}
	openBlockers := openBlockersByTask(tasks, adjacency)

	cands := filterCandidates(tasks, loc, date, openBlockers)

	energyLevel := domain.DefaultEnergyLevel
	if e, err := p.Energy.Get(ctx, user, date); err == nil && e != nil {
		energyLevel = e.Level
	}

	scoreAndOrder(cands, energyLevel, dayStart.Unix(), dayEnd.Unix())

	feedback, err := p.Feedback.ListSince(ctx, user, p.clockNow().Add(-feedbackWindow))
	if err != nil {
		return nil, domain.NewError(domain.KindTransient, err)
	}
	tasksByID := make(map[uuid.UUID]*domain.Task, len(tasks))
	for _, t := range tasks {
		tasksByID[t.ID] = t
	}
	stats := snoozeRateByHour(feedback, tasksByID, loc)
	window := p.window()
	for i := range cands {
		applyLearnedAdjustment(&cands[i], stats, loc, window)
	}

	entries := p.compose(ctx, cands)
	entries = filterPromotional(entries, tasksByID, p.PromotionalPatterns)

	energyPtr := &energyLevel
	plan := domain.NewDailyPlan(user, date, energyPtr, entries)
	if err := p.Plans.Replace(ctx, plan); err != nil {
		return nil, domain.NewError(domain.KindTransient, err)
	}
	return plan, nil
}

func (p *Planner) clockNow() time.Time { return time.Now() }

// openBlockersByTask filters each candidate task's blocked_by set down to
// blockers that are not yet completed (spec §4.3 step 1).
func openBlockersByTask(tasks []*domain.Task, adjacency map[uuid.UUID][]uuid.UUID) map[uuid.UUID][]uuid.UUID {
	completed := make(map[uuid.UUID]bool)
	for _, t := range tasks {
		if t.IsCompleted {
			completed[t.ID] = true
		}
	}
	out := make(map[uuid.UUID][]uuid.UUID)
	for task, blockers := range adjacency {
		var open []uuid.UUID
		for _, b := range blockers {
			if !completed[b] {
				open = append(open, b)
			}
		}
		if len(open) > 0 {
			out[task] = open
		}
	}
	return out
}

// compose builds the final ordered PlanEntry list: an LLM is asked to
// produce per-task action steps, schema-validated; transient LLM errors are
// retried up to the retry budget, a response that fails validation is not
// retried, and any failure falls back to the deterministic scored order
// with no action plan text (spec §4.3 step 4).
func (p *Planner) compose(ctx context.Context, cands []candidate) []domain.PlanEntry {
	actionPlans := p.composeActionPlans(ctx, cands)
	entries := make([]domain.PlanEntry, 0, len(cands))
	for i, c := range cands {
		entries = append(entries, domain.PlanEntry{
			TaskID:         c.task.ID,
			Title:          c.task.Title,
			PredictedStart: c.predictedStart,
			PredictedEnd:   c.predictedEnd,
			PriorityScore:  c.score,
			IsCritical:     c.task.IsCritical,
			IsUrgent:       c.task.IsUrgent,
			ActionPlan:     actionPlans[i],
			Status:         domain.EntryStatusPending,
		})
	}
	return entries
}

type actionPlanResponse struct {
	Plans [][]string `json:"plans"`
}

// composeActionPlans asks the LLM for a short action-step list per
// candidate, in score order, validated against a schema requiring one
// "plans" array of string arrays with one entry per candidate; degrades to
// nil (no action plan) per candidate when the call still fails after
// chatWithRetry, or at once when the response fails that check.
func (p *Planner) composeActionPlans(ctx context.Context, cands []candidate) [][]string {
	fallback := make([][]string, len(cands))
	if p.Chatter == nil || len(cands) == 0 {
		return fallback
	}

	req := actionPlanRequest(cands)
	resp, err := p.chatWithRetry(ctx, req)
	if err != nil {
		if p.Log != nil {
			p.Log.WithField("error", err.Error()).Warn("plan composition llm call failed, using fallback action plans")
		}
		return fallback
	}

	raw, err := json.Marshal(resp.JSON)
	if err != nil {
		return fallback
	}
	var parsed actionPlanResponse
	if err := json.Unmarshal(raw, &parsed); err != nil || len(parsed.Plans) != len(cands) {
		if p.Log != nil {
			p.Log.Warn("plan composition response failed schema validation, using fallback action plans")
		}
		return fallback
	}
	return parsed.Plans
}

func actionPlanRequest(cands []candidate) llm.ChatRequest {
	titles := make([]string, len(cands))
	for i, c := range cands {
		titles[i] = c.task.Title
	}
	titlesJSON, _ := json.Marshal(titles)
	return llm.ChatRequest{
		Messages: []llm.Message{
			{Role: "system", Content: "Break each task title into 1-3 short concrete action steps. Respond as JSON: {\"plans\": [[\"step\", ...], ...]}, one entry per input title, same order."},
			{Role: "user", Content: string(titlesJSON)},
		},
		ResponseSchema: &llm.Schema{Name: "action_plans", Required: []string{"plans"}},
	}
}

func (p *Planner) chatWithRetry(ctx context.Context, req llm.ChatRequest) (*llm.ChatResponse, error) {
	var lastErr error
	budget := p.retryBudget()
	for attempt := 0; attempt <= budget; attempt++ {
		resp, err := p.Chatter.Chat(ctx, req)
		if err == nil {
			return resp, nil
		}
		lastErr = err
		if err != llm.ErrRateLimited && err != llm.ErrTransient {
			return nil, err
		}
		if attempt == budget {
			break
		}
		backoff := time.Duration(math.Pow(2, float64(attempt))) * 100 * time.Millisecond
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(backoff):
		}
	}
	return nil, lastErr
}

// filterPromotional drops entries whose title matches a configurable
// promotional pattern, a final guard against promotional mail leaking into
// a plan (spec §4.3 step 5) even if it slipped past C1's spam threshold.
func filterPromotional(entries []domain.PlanEntry, tasksByID map[uuid.UUID]*domain.Task, patterns []string) []domain.PlanEntry {
	if len(patterns) == 0 {
		return entries
	}
	lower := make([]string, len(patterns))
	for i, pat := range patterns {
		lower[i] = strings.ToLower(pat)
	}
	out := entries[:0]
	for _, e := range entries {
		t, ok := tasksByID[e.TaskID]
		if !ok {
			out = append(out, e)
			continue
		}
		title := strings.ToLower(t.Title)
		matched := false
		for _, pat := range lower {
			if pat != "" && strings.Contains(title, pat) {
				matched = true
				break
			}
		}
		if !matched {
			out = append(out, e)
		}
	}
	return out
}
