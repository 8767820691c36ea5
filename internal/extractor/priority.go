package extractor

import (
	"context"
	"encoding/json"
	"regexp"
	"strings"
	"time"

	"github.com/saan/taskflow-agent/internal/domain"
	"github.com/saan/taskflow-agent/internal/infrastructure/llm"
)

var (
	reHighSignal = regexp.MustCompile(`(?i)\b(urgent|asap|critical)\b`)
	reLowSignal  = regexp.MustCompile(`(?i)\b(fyi|optional)\b`)
	reDeadline   = regexp.MustCompile(`(?i)\beod\b|\bby\s+\d{1,2}([:/]\d{1,2})?\b`)
)

// nlpResult is what either the LLM or the regex fallback produces from free
// text (spec §4.1 step 3): the structural fields (start/end) never come
// from here, only title/priority/critical/urgent hints.
type nlpResult struct {
	Title      string
	Priority   domain.Priority
	IsCritical bool
	IsUrgent   bool
}

// extractNLP tries an LLM call with a required schema; on any failure it
// falls back to the regex/keyword rule path, never leaving the item
// without a priority classification.
func (e *Extractor) extractNLP(ctx context.Context, title, body string, deadline *time.Time) nlpResult {
	if e.chatter != nil {
		if r, ok := e.extractNLPWithLLM(ctx, title, body); ok {
			return r
		}
	}
	return e.extractNLPWithRules(title, body, deadline)
}

func (e *Extractor) extractNLPWithLLM(ctx context.Context, title, body string) (nlpResult, bool) {
	text, _ := json.Marshal(map[string]string{"title": title, "body": body})
	req := llm.ChatRequest{
		Messages: []llm.Message{
			{Role: "system", Content: "Extract a concise title and priority (low, normal, high) from this item. Respond with JSON {title, priority, is_critical, is_urgent}."},
			{Role: "user", Content: string(text)},
		},
		ResponseSchema: &llm.Schema{Name: "nlp_extraction", Required: []string{"title", "priority"}},
	}
	resp, err := e.chatWithRetry(ctx, req)
	if err != nil || resp == nil || resp.JSON == nil {
		return nlpResult{}, false
	}
	t, _ := resp.JSON["title"].(string)
	p, _ := resp.JSON["priority"].(string)
	if t == "" || !validPriority(p) {
		return nlpResult{}, false
	}
	critical, _ := resp.JSON["is_critical"].(bool)
	urgent, _ := resp.JSON["is_urgent"].(bool)
	return nlpResult{Title: t, Priority: domain.Priority(p), IsCritical: critical, IsUrgent: urgent}, true
}

func validPriority(p string) bool {
	switch domain.Priority(p) {
	case domain.PriorityLow, domain.PriorityNormal, domain.PriorityHigh:
		return true
	}
	return false
}

// extractNLPWithRules implements the regex/keyword fallback named in spec
// §4.1 step 3: urgent|asap|critical|eod|by <date>, plus a 24h deadline
// window per step 4.
func (e *Extractor) extractNLPWithRules(title, body string, deadline *time.Time) nlpResult {
	text := title + " " + body
	r := nlpResult{Title: strings.TrimSpace(title), Priority: domain.PriorityNormal}

	switch {
	case reHighSignal.MatchString(text) || reDeadline.MatchString(text):
		r.Priority = domain.PriorityHigh
	case reLowSignal.MatchString(text):
		r.Priority = domain.PriorityLow
	}
	if deadline != nil && !deadline.IsZero() && e.clockNow().Add(24*time.Hour).After(*deadline) {
		r.Priority = domain.PriorityHigh
	}
	return r
}
