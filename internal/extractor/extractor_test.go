package extractor

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/saan/taskflow-agent/internal/domain"
	"github.com/saan/taskflow-agent/internal/infrastructure/llm"
	"github.com/saan/taskflow-agent/internal/infrastructure/provider"
	"github.com/saan/taskflow-agent/pkg/logger"
)

func marshal(t *testing.T, v any) []byte {
	t.Helper()
	b, err := json.Marshal(v)
	assert.NoError(t, err)
	return b
}

func TestExtract_CalendarCancelledIsSkipped(t *testing.T) {
	e := New(nil, logger.NewLogger("error", "text"))
	payload := CalendarPayload{Title: "Project sync", Start: time.Now(), End: time.Now().Add(30 * time.Minute), Cancelled: true}
	result := e.Extract(context.Background(), "u1", domain.SourceCalendar, provider.RawItem{ExternalID: "E3", Payload: marshal(t, payload)})

	assert.Equal(t, OutcomeSkip, result.Outcome)
	assert.Equal(t, "cancelled", result.SkipReason)
}

func TestExtract_CalendarAllDayIsReminder(t *testing.T) {
	e := New(nil, logger.NewLogger("error", "text"))
	start := time.Now()
	payload := CalendarPayload{Title: "Company holiday", Start: start, End: start.Add(24 * time.Hour), AllDay: true}
	result := e.Extract(context.Background(), "u1", domain.SourceCalendar, provider.RawItem{ExternalID: "H1", Payload: marshal(t, payload)})

	assert.Equal(t, OutcomeReminder, result.Outcome)
	assert.True(t, result.Reminder.IsAllDay)
	assert.Equal(t, "Company holiday", result.Reminder.Title)
}

func TestExtract_CalendarTimedEventIsTask(t *testing.T) {
	e := New(nil, logger.NewLogger("error", "text"))
	start := time.Now()
	payload := CalendarPayload{
		Title: "Project sync", Start: start, End: start.Add(30 * time.Minute),
		Attendees: []string{"a@x"},
	}
	result := e.Extract(context.Background(), "u1", domain.SourceCalendar, provider.RawItem{ExternalID: "E1", Payload: marshal(t, payload)})

	assert.Equal(t, OutcomeTask, result.Outcome)
	assert.Equal(t, domain.SourceCalendar, result.Task.Source)
	assert.Equal(t, domain.SyncStatusSynced, result.Task.SyncStatus)
	assert.Equal(t, []string{"a@x"}, result.Task.Attendees)
}

func TestExtract_MailSpamByProviderLabel(t *testing.T) {
	e := New(nil, logger.NewLogger("error", "text"))
	payload := MailPayload{Subject: "50% off membership!", Labels: []string{"PROMOTIONS"}, At: time.Now()}
	result := e.Extract(context.Background(), "u1", domain.SourceMail, provider.RawItem{ExternalID: "M1", Payload: marshal(t, payload)})

	assert.Equal(t, OutcomeTask, result.Outcome)
	assert.True(t, result.Task.IsSpam)
	assert.NotEmpty(t, result.Task.SpamReason)
}

func TestExtract_MailNotActionableIsSkipped(t *testing.T) {
	e := New(nil, logger.NewLogger("error", "text"))
	payload := MailPayload{Subject: "", At: time.Now()}
	result := e.Extract(context.Background(), "u1", domain.SourceMail, provider.RawItem{ExternalID: "M2", Payload: marshal(t, payload)})

	assert.Equal(t, OutcomeSkip, result.Outcome)
}

func TestExtract_PriorityHighOnUrgentKeyword(t *testing.T) {
	e := New(nil, logger.NewLogger("error", "text"))
	payload := TaskManagerPayload{Title: "URGENT: finish the report"}
	result := e.Extract(context.Background(), "u1", domain.SourceTaskManager, provider.RawItem{ExternalID: "T1", Payload: marshal(t, payload)})

	assert.Equal(t, OutcomeTask, result.Outcome)
	assert.Equal(t, domain.PriorityHigh, result.Task.Priority)
}

func TestExtract_PriorityLowOnFYIKeyword(t *testing.T) {
	e := New(nil, logger.NewLogger("error", "text"))
	payload := TaskManagerPayload{Title: "FYI only, optional reading"}
	result := e.Extract(context.Background(), "u1", domain.SourceTaskManager, provider.RawItem{ExternalID: "T2", Payload: marshal(t, payload)})

	assert.Equal(t, OutcomeTask, result.Outcome)
	assert.Equal(t, domain.PriorityLow, result.Task.Priority)
}

func TestExtract_SpamFallsBackToRulesOnLLMError(t *testing.T) {
	stub := &llm.StubChatter{Errs: []error{llm.ErrTransient, llm.ErrTransient}}
	e := New(stub, logger.NewLogger("error", "text"), WithRetryBudget(1))
	payload := MailPayload{Subject: "Meet tomorrow at 3pm", At: time.Now()}
	result := e.Extract(context.Background(), "u1", domain.SourceMail, provider.RawItem{ExternalID: "M3", Payload: marshal(t, payload)})

	assert.Equal(t, OutcomeTask, result.Outcome)
	assert.False(t, result.Task.IsSpam)
	// two spam-classification attempts (retry budget 1), then one NLP
	// extraction call that gets a zero response and falls back to rules
	assert.Equal(t, 3, stub.Calls())
}

func TestExtract_MalformedPayloadIsSkippedNotFatal(t *testing.T) {
	e := New(nil, logger.NewLogger("error", "text"))
	result := e.Extract(context.Background(), "u1", domain.SourceCalendar, provider.RawItem{ExternalID: "Bad", Payload: []byte("not json")})

	assert.Equal(t, OutcomeSkip, result.Outcome)
	assert.Contains(t, result.SkipReason, "extraction_failed")
}
