// Package llm defines the Chatter collaborator (spec §6, §9): the LLM
// provider the core calls for spam classification, NLP extraction, and plan
// composition. No part of the core ever touches the raw response text —
// every call site either validates against a schema or falls back to a
// deterministic rule path.
package llm

import (
	"context"
	"errors"
)

// ErrRateLimited and ErrTransient let callers distinguish retryable
// failures from a hard InvalidRequest, per spec §6's collaborator contract.
var (
	ErrRateLimited   = errors.New("llm: rate limited")
	ErrTransient     = errors.New("llm: transient failure")
	ErrInvalidSchema = errors.New("llm: response did not match the requested schema")
)

// Message is one turn of a chat-style request.
type Message struct {
	Role    string // "system" | "user" | "assistant"
	Content string
}

// ChatRequest bundles the conversation and an optional JSON schema the
// response must validate against.
type ChatRequest struct {
	Messages       []Message
	ResponseSchema *Schema // nil => free-text response
}

// Schema is a minimal JSON-schema-shaped description used to validate LLM
// JSON responses at the boundary (spec §9: "dynamically-typed LLM responses
// map to a validated schema at the boundary").
type Schema struct {
	Name     string
	Required []string
}

// ChatResponse carries either free text or decoded JSON, never both.
type ChatResponse struct {
	Text string
	JSON map[string]any
}

// Chatter is the capability interface the core depends on (spec §9).
type Chatter interface {
	Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error)
}
