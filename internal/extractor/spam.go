package extractor

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/saan/taskflow-agent/internal/infrastructure/llm"
)

// spamVerdict is the fused result of the rule and LLM spam paths.
type spamVerdict struct {
	IsSpam bool
	Reason string
	Score  float64
}

var promotionalLabels = map[string]bool{
	"promotions": true,
	"promotional": true,
	"marketing":  true,
	"bulk":       true,
}

var promotionalPhrases = []string{
	"% off", "unsubscribe", "limited time offer", "act now", "click here to claim",
}

// classifySpam fuses provider labels, promotional-phrase rules, and an
// optional LLM score (spec §4.1 step 2). The sender address is not examined. A hard rule match always wins regardless of
// what the LLM says — the spec requires the rule path as a hard override.
// LLM failure degrades to rules-only, never aborts extraction.
func (e *Extractor) classifySpam(ctx context.Context, mail MailPayload) spamVerdict {
	rule, ruleScore, ruleHit := ruleSpamScore(mail)
	if ruleHit {
		return spamVerdict{IsSpam: true, Reason: rule, Score: ruleScore}
	}

	if e.chatter == nil {
		return spamVerdict{IsSpam: ruleScore >= e.spamThreshold, Reason: rule, Score: ruleScore}
	}

	resp, err := e.chatWithRetry(ctx, spamPrompt(mail))
	if err != nil || resp == nil || resp.JSON == nil {
		return spamVerdict{IsSpam: ruleScore >= e.spamThreshold, Reason: rule, Score: ruleScore}
	}

	llmScore, _ := resp.JSON["score"].(float64)
	llmIsSpam, _ := resp.JSON["is_spam"].(bool)
	llmReason, _ := resp.JSON["reason"].(string)

	score := llmScore
	if score < ruleScore {
		score = ruleScore
	}
	reason := llmReason
	if reason == "" {
		reason = rule
	}
	return spamVerdict{IsSpam: llmIsSpam || score >= e.spamThreshold, Reason: reason, Score: score}
}

// ruleSpamScore applies provider-label and subject/body promotional-phrase
// heuristics; it does not look at the sender or its domain. The bool return
// reports a hard-rule hit (label-based), distinct from a soft score under
// threshold.
func ruleSpamScore(mail MailPayload) (reason string, score float64, hardHit bool) {
	for _, l := range mail.Labels {
		if promotionalLabels[strings.ToLower(l)] {
			return "provider_label:" + l, 1.0, true
		}
	}
	lowered := strings.ToLower(mail.Subject + " " + mail.Body)
	hits := 0
	for _, p := range promotionalPhrases {
		if strings.Contains(lowered, p) {
			hits++
		}
	}
	if hits == 0 {
		return "", 0, false
	}
	score = float64(hits) / float64(len(promotionalPhrases))
	if score > 1 {
		score = 1
	}
	return "phrase_match", score, false
}

func spamPrompt(mail MailPayload) llm.ChatRequest {
	body, _ := json.Marshal(mail)
	return llm.ChatRequest{
		Messages: []llm.Message{
			{Role: "system", Content: "Classify whether this email is spam/promotional. Respond with JSON {is_spam, reason, score}."},
			{Role: "user", Content: string(body)},
		},
		ResponseSchema: &llm.Schema{Name: "spam_classification", Required: []string{"is_spam", "reason", "score"}},
	}
}
