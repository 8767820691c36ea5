package llm

import "context"

// StubChatter is a deterministic, in-process Chatter for tests and for the
// "LLM unavailable, degrade gracefully" paths exercised in the suite. It
// mirrors the teacher's infrastructure/client pattern (interface +
// constructor + context-first methods) applied to a collaborator that has
// no HTTP body of its own.
type StubChatter struct {
	// The Nth call to Chat returns Errs[N] when that entry exists and is
	// non-nil, otherwise Responses[N] when it exists, otherwise a
	// zero-value response.
	Responses []ChatResponse
	Errs      []error
	calls     int
}

func NewStubChatter() *StubChatter { return &StubChatter{} }

func (s *StubChatter) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}
	i := s.calls
	s.calls++
	if i < len(s.Errs) && s.Errs[i] != nil {
		return nil, s.Errs[i]
	}
	if i < len(s.Responses) {
		r := s.Responses[i]
		return &r, nil
	}
	return &ChatResponse{}, nil
}

// Calls reports how many times Chat has been invoked.
func (s *StubChatter) Calls() int { return s.calls }
