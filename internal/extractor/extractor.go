// Package extractor implements C1: turning one raw provider item into a
// normalized Task, a Reminder, or a Skip outcome (spec §4.1).
package extractor

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/saan/taskflow-agent/internal/domain"
	"github.com/saan/taskflow-agent/internal/infrastructure/llm"
	"github.com/saan/taskflow-agent/internal/infrastructure/provider"
	"github.com/saan/taskflow-agent/pkg/logger"
)

// Outcome tags which of the three normalized results Extract produced.
type Outcome string

const (
	OutcomeTask     Outcome = "task"
	OutcomeReminder Outcome = "reminder"
	OutcomeSkip     Outcome = "skip"
)

// Result is the NormalizedItem of spec §4.1: exactly one of Task/Reminder is
// set when Outcome is OutcomeTask/OutcomeReminder; SkipReason is set when
// Outcome is OutcomeSkip.
type Result struct {
	Outcome    Outcome
	Task       *domain.Task
	Reminder   *domain.Reminder
	SkipReason string
}

// Extractor is C1. Chatter may be nil, in which case every classification
// step degrades straight to its rule-based fallback.
type Extractor struct {
	chatter       llm.Chatter
	log           logger.Logger
	spamThreshold float64
	retryBudget   int
	now           func() time.Time
}

// Option configures an Extractor.
type Option func(*Extractor)

func WithSpamThreshold(t float64) Option { return func(e *Extractor) { e.spamThreshold = t } }
func WithRetryBudget(n int) Option       { return func(e *Extractor) { e.retryBudget = n } }
func WithClock(now func() time.Time) Option {
	return func(e *Extractor) { e.now = now }
}

func New(chatter llm.Chatter, log logger.Logger, opts ...Option) *Extractor {
	e := &Extractor{chatter: chatter, log: log, spamThreshold: 0.7, retryBudget: 1, now: time.Now}
	for _, o := range opts {
		o(e)
	}
	return e
}

func (e *Extractor) clockNow() time.Time { return e.now() }

// Extract dispatches on source per spec §4.1 step 1. Per-item failures are
// isolated: this never returns an error for a malformed payload, it returns
// Result{Outcome: OutcomeSkip} instead, so the pipeline can keep going.
func (e *Extractor) Extract(ctx context.Context, user string, source domain.Source, item provider.RawItem) *Result {
	switch source {
	case domain.SourceCalendar:
		return e.extractCalendar(ctx, user, item)
	case domain.SourceMail:
		return e.extractMail(ctx, user, item)
	case domain.SourceTaskManager:
		return e.extractTaskManager(ctx, user, item)
	default:
		return &Result{Outcome: OutcomeSkip, SkipReason: fmt.Sprintf("extraction_failed: unsupported source %q", source)}
	}
}

func (e *Extractor) extractCalendar(ctx context.Context, user string, item provider.RawItem) *Result {
	var payload CalendarPayload
	if err := json.Unmarshal(item.Payload, &payload); err != nil {
		return &Result{Outcome: OutcomeSkip, SkipReason: "extraction_failed: " + err.Error()}
	}
	if payload.Cancelled {
		return &Result{Outcome: OutcomeSkip, SkipReason: "cancelled"}
	}

	if payload.AllDay {
		r := &domain.Reminder{
			User:       user,
			Source:     domain.SourceCalendar,
			Title:      payload.Title,
			Start:      payload.Start,
			End:        payload.End,
			IsAllDay:   true,
			ExternalID: item.ExternalID,
			RawPayload: item.Payload,
		}
		return &Result{Outcome: OutcomeReminder, Reminder: r}
	}

	nlp := e.extractNLP(ctx, payload.Title, "", &payload.Start)
	priority, critical, urgent := nlp.Priority, nlp.IsCritical, nlp.IsUrgent
	if priority == "" {
		priority = domain.PriorityNormal
	}

	t := domain.NewTask(user, domain.SourceCalendar, payload.Title, payload.Start, payload.End)
	t.Attendees = payload.Attendees
	t.Location = payload.Location
	t.Recurrence = payload.Recurrence
	t.Priority = priority
	t.IsCritical = critical
	t.IsUrgent = urgent
	t.RawPayload = item.Payload
	t.ExternalID = item.ExternalID
	t.ExternalUpdatedAt = nonZeroTimePtr(item.ExternalUpdatedAt)
	return &Result{Outcome: OutcomeTask, Task: t}
}

func (e *Extractor) extractMail(ctx context.Context, user string, item provider.RawItem) *Result {
	var payload MailPayload
	if err := json.Unmarshal(item.Payload, &payload); err != nil {
		return &Result{Outcome: OutcomeSkip, SkipReason: "extraction_failed: " + err.Error()}
	}
	if !isActionableMail(payload) {
		return &Result{Outcome: OutcomeSkip, SkipReason: "not_actionable"}
	}

	verdict := e.classifySpam(ctx, payload)
	nlp := e.extractNLP(ctx, payload.Subject, payload.Body, nil)

	start := payload.At
	if start.IsZero() {
		start = e.clockNow()
	}
	end := start.Add(30 * time.Minute)

	t := domain.NewTask(user, domain.SourceMail, firstNonEmpty(nlp.Title, payload.Subject), start, end)
	t.Description = payload.Body
	t.Priority = nlp.Priority
	t.IsCritical = nlp.IsCritical
	t.IsUrgent = nlp.IsUrgent
	t.IsSpam = verdict.IsSpam
	t.SpamReason = verdict.Reason
	t.SpamScore = verdict.Score
	t.RawPayload = item.Payload
	t.ExternalID = item.ExternalID
	t.ExternalUpdatedAt = nonZeroTimePtr(item.ExternalUpdatedAt)
	return &Result{Outcome: OutcomeTask, Task: t}
}

func (e *Extractor) extractTaskManager(ctx context.Context, user string, item provider.RawItem) *Result {
	var payload TaskManagerPayload
	if err := json.Unmarshal(item.Payload, &payload); err != nil {
		return &Result{Outcome: OutcomeSkip, SkipReason: "extraction_failed: " + err.Error()}
	}

	nlp := e.extractNLP(ctx, payload.Title, payload.Description, payload.Due)
	priority, critical, urgent := nlp.Priority, nlp.IsCritical, nlp.IsUrgent
	if priority == "" {
		priority = domain.PriorityNormal
	}
	if payload.Priority != "" && validPriority(payload.Priority) {
		priority = domain.Priority(payload.Priority)
	}

	start := e.clockNow()
	end := start.Add(time.Hour)
	if payload.Due != nil {
		end = *payload.Due
		start = end.Add(-time.Hour)
	}

	t := domain.NewTask(user, domain.SourceTaskManager, firstNonEmpty(nlp.Title, payload.Title), start, end)
	t.Description = payload.Description
	t.Priority = priority
	t.IsCritical = critical
	t.IsUrgent = urgent
	t.RawPayload = item.Payload
	t.ExternalID = item.ExternalID
	t.ExternalUpdatedAt = nonZeroTimePtr(item.ExternalUpdatedAt)
	if payload.Completed {
		t.SetCompleted(true, e.clockNow())
	}
	return &Result{Outcome: OutcomeTask, Task: t}
}

func isActionableMail(m MailPayload) bool {
	return strings.TrimSpace(m.Subject) != ""
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

func nonZeroTimePtr(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

// chatWithRetry applies the bounded exponential-backoff retry named in spec
// §4.1 ("An LLM 429/5xx triggers bounded retry with exponential backoff").
// It gives up — returning the error to the caller, which degrades to its
// rule-based fallback — once the retry budget is exhausted.
func (e *Extractor) chatWithRetry(ctx context.Context, req llm.ChatRequest) (*llm.ChatResponse, error) {
	var lastErr error
	for attempt := 0; attempt <= e.retryBudget; attempt++ {
		resp, err := e.chatter.Chat(ctx, req)
		if err == nil {
			return resp, nil
		}
		lastErr = err
		if err != llm.ErrRateLimited && err != llm.ErrTransient {
			return nil, err
		}
		if attempt == e.retryBudget {
			break
		}
		backoff := time.Duration(math.Pow(2, float64(attempt))) * 100 * time.Millisecond
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(backoff):
		}
	}
	if e.log != nil {
		e.log.WithField("error", lastErr.Error()).Warn("llm call exhausted retry budget, falling back to rules")
	}
	return nil, lastErr
}
