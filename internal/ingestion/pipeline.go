// Package ingestion implements C2: the five-stage per-source ingest
// workflow Auth -> Fetch -> Extract -> Persist -> Encode (spec §4.2).
package ingestion

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/saan/taskflow-agent/internal/domain"
	"github.com/saan/taskflow-agent/internal/extractor"
	"github.com/saan/taskflow-agent/internal/infrastructure/clock"
	"github.com/saan/taskflow-agent/internal/infrastructure/config"
	"github.com/saan/taskflow-agent/internal/infrastructure/embedding"
	"github.com/saan/taskflow-agent/internal/infrastructure/events"
	"github.com/saan/taskflow-agent/internal/infrastructure/lock"
	"github.com/saan/taskflow-agent/internal/infrastructure/provider"
	"github.com/saan/taskflow-agent/internal/infrastructure/ratelimit"
	"github.com/saan/taskflow-agent/internal/infrastructure/vectorstore"
	"github.com/saan/taskflow-agent/pkg/logger"
)

// Pipeline runs one (user, source) ingest to completion.
type Pipeline struct {
	Credentials domain.CredentialStore
	Factory     provider.Factory
	Extractor   *extractor.Extractor
	Tasks       domain.TaskStore
	Reminders   domain.ReminderStore
	Embedder    embedding.Embedder
	Vectors     vectorstore.VectorStore
	Events      events.Publisher
	Limits      *ratelimit.Registry
	Locks       lock.Locker
	Clock       clock.Clock
	Metrics     *Metrics
	Log         logger.Logger

	Windows      map[domain.Source]config.IngestWindow
	StageTimeout time.Duration
	RunTimeout   time.Duration
	CallTimeout  time.Duration
}

func providerForSource(source domain.Source) domain.Provider {
	switch source {
	case domain.SourceCalendar:
		return domain.ProviderCalendar
	case domain.SourceMail:
		return domain.ProviderMail
	case domain.SourceTaskManager:
		return domain.ProviderTaskManager
	default:
		return domain.Provider(source)
	}
}

func busyKey(user string, source domain.Source) string {
	return fmt.Sprintf("ingest:%s:%s", user, source)
}

// Run executes the staged pipeline for (user, source), enforcing the
// per-(user, source) Busy guard of spec §4.2's concurrency note.
func (p *Pipeline) Run(ctx context.Context, user string, source domain.Source) (*RunReport, error) {
	acquired, err := p.Locks.TryAcquire(ctx, busyKey(user, source), p.runTimeout())
	if err != nil {
		return nil, domain.NewError(domain.KindTransient, err)
	}
	if !acquired {
		return nil, domain.NewError(domain.KindBusy, domain.ErrPipelineBusy)
	}
	defer p.Locks.Release(ctx, busyKey(user, source))

	runCtx, cancel := context.WithTimeout(ctx, p.runTimeout())
	defer cancel()

	report := &RunReport{}
	log := p.Log.WithField("user", user).WithField("source", string(source))

	cred, err := p.auth(runCtx, user, source)
	if err != nil {
		p.Metrics.record(report, true)
		return report, err
	}

	items, err := p.fetch(runCtx, cred, source)
	if err != nil {
		p.Metrics.record(report, true)
		return report, err
	}
	report.Fetched = len(items)

	tasks, reminders := p.extract(runCtx, user, source, items, report)
	report.Extracted = len(tasks) + len(reminders)

	p.persist(runCtx, tasks, reminders, report)

	// Encode runs in the background relative to the caller's deadline
	// (spec §4.2: "asynchronously computes embeddings"), but this call
	// waits for it so the RunReport's encoded count is accurate; its
	// failure never fails the run (§4.2: "Encoding failure is non-fatal").
	report.Encoded = p.encode(context.Background(), user, tasks)

	p.Metrics.record(report, false)
	log.WithField("fetched", report.Fetched).WithField("persisted_new", report.PersistedNew).Info("ingest run complete")
	return report, nil
}

func (p *Pipeline) runTimeout() time.Duration {
	if p.RunTimeout > 0 {
		return p.RunTimeout
	}
	return 10 * time.Minute
}

func (p *Pipeline) stageTimeout() time.Duration {
	if p.StageTimeout > 0 {
		return p.StageTimeout
	}
	return 2 * time.Minute
}

// auth implements the Auth stage: load and, if needed, refresh the
// credential. Failure here is terminal (spec §4.2).
func (p *Pipeline) auth(ctx context.Context, user string, source domain.Source) (*domain.ProviderCredential, error) {
	ctx, cancel := context.WithTimeout(ctx, p.stageTimeout())
	defer cancel()

	cred, err := p.Credentials.Get(ctx, user, providerForSource(source))
	if err != nil {
		if errors.Is(err, domain.ErrCredentialNotFound) || domain.KindOf(err) == domain.KindNotFound {
			return nil, domain.NewError(domain.KindAuthRequired, domain.ErrCredentialNotFound)
		}
		return nil, domain.NewError(domain.KindTransient, err)
	}
	if cred.Status == domain.CredentialRevoked {
		return nil, domain.NewError(domain.KindAuthRequired, domain.ErrCredentialRevoked)
	}
	if cred.NeedsRefresh(p.Clock.Now(), 5*time.Minute) {
		// Refresh is modeled as an external collaborator responsibility in
		// this spec (§1); a credential that needs refreshing is treated as
		// a refresh failure before the Factory is asked for a client.
		return nil, domain.NewError(domain.KindAuthRequired, domain.ErrCredentialRevoked)
	}
	return cred, nil
}

// fetch drains every page within the configured window, respecting the
// per-(user, provider) rate limiter (spec §4.2, §5).
func (p *Pipeline) fetch(ctx context.Context, cred *domain.ProviderCredential, source domain.Source) ([]provider.RawItem, error) {
	ctx, cancel := context.WithTimeout(ctx, p.stageTimeout())
	defer cancel()

	client, err := p.Factory.For(ctx, cred)
	if err != nil {
		return nil, domain.NewError(domain.KindAuthRequired, err)
	}

	window := p.windowFor(source)
	var items []provider.RawItem
	cursor := ""
	for {
		if err := p.Limits.Wait(ctx, cred.User, providerForSource(source)); err != nil {
			return nil, domain.NewError(domain.KindRateLimited, err)
		}
		page, err := client.List(ctx, window, cursor)
		if err != nil {
			if domain.KindOf(err) == domain.KindAuthRequired {
				return nil, err
			}
			return nil, domain.NewError(domain.KindTransient, err)
		}
		items = append(items, page.Items...)
		if page.NextCursor == "" {
			break
		}
		cursor = page.NextCursor
	}
	return items, nil
}

func (p *Pipeline) windowFor(source domain.Source) provider.Window {
	w, ok := p.Windows[source]
	if !ok {
		return provider.Window{}
	}
	now := p.Clock.Now()
	return provider.Window{From: now.Add(-w.Past), To: now.Add(w.Future)}
}

// extract runs C1 over every fetched item, isolating per-item failures
// (spec §4.2: "Item failures are recorded but do not abort the stage").
func (p *Pipeline) extract(ctx context.Context, user string, source domain.Source, items []provider.RawItem, report *RunReport) ([]*domain.Task, []*domain.Reminder) {
	var tasks []*domain.Task
	var reminders []*domain.Reminder
	for _, item := range items {
		result := p.Extractor.Extract(ctx, user, source, item)
		switch result.Outcome {
		case extractor.OutcomeTask:
			tasks = append(tasks, result.Task)
		case extractor.OutcomeReminder:
			reminders = append(reminders, result.Reminder)
		case extractor.OutcomeSkip:
			if result.Task != nil && result.Task.IsSpam {
				report.SkippedSpam++
			} else {
				report.SkippedOther++
			}
			report.addError(fmt.Sprintf("%s: %s", item.ExternalID, result.SkipReason))
		}
	}
	for _, t := range tasks {
		if t.IsSpam {
			report.SkippedSpam++
		}
	}
	return tasks, reminders
}

// persist implements the Persist stage's upsert-by-external-id semantics.
func (p *Pipeline) persist(ctx context.Context, tasks []*domain.Task, reminders []*domain.Reminder, report *RunReport) {
	ctx, cancel := context.WithTimeout(ctx, p.stageTimeout())
	defer cancel()

	for _, t := range tasks {
		wasNew, err := p.Tasks.UpsertByExternalID(ctx, t)
		if err != nil {
			report.addError("persist: " + err.Error())
			continue
		}
		if wasNew {
			report.PersistedNew++
		} else {
			report.PersistedUpdate++
		}
	}
	for _, r := range reminders {
		if _, err := p.Reminders.Upsert(ctx, r); err != nil {
			report.addError("persist reminder: " + err.Error())
		}
	}
}

// encode implements the Encode stage: best-effort embedding + vector
// upsert, plus a best-effort domain-event publish. Never returns an error
// to the caller — failures are logged only (spec §4.2, §7).
func (p *Pipeline) encode(ctx context.Context, user string, tasks []*domain.Task) int {
	if p.Embedder == nil || p.Vectors == nil {
		return 0
	}
	ctx, cancel := context.WithTimeout(ctx, p.stageTimeout())
	defer cancel()

	encoded := 0
	for _, t := range tasks {
		if t.IsSpam {
			continue
		}
		vec, err := p.Embedder.Embed(ctx, t.Title+" "+t.Description)
		if err != nil {
			p.Log.WithField("task", t.ID).WithField("error", err.Error()).Warn("embedding failed, skipping encode")
			continue
		}
		if err := p.Vectors.Upsert(ctx, vectorstore.Record{
			TaskID:    t.ID,
			Embedding: vec,
			Metadata:  map[string]string{"user": user, "source": string(t.Source)},
		}); err != nil {
			p.Log.WithField("task", t.ID).WithField("error", err.Error()).Warn("vector upsert failed")
			continue
		}
		encoded++
		if p.Events != nil {
			_ = p.Events.Publish(ctx, events.Event{Type: events.TaskEncoded, User: user, Key: t.ID.String(), At: p.Clock.Now()})
		}
	}
	return encoded
}
