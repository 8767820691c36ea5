// Package smtp defines the SMTP collaborator (spec §6): best-effort email
// delivery for the Nudger. Failures are logged, never propagated as a
// workflow failure (spec §7: email failures never fail their parent).
package smtp

import "context"

// Sender is the capability interface the Nudger depends on.
type Sender interface {
	Send(ctx context.Context, from, to, subject, html, text string) error
}

// Stub records every send for assertions in tests and never fails unless
// Err is set.
type Stub struct {
	Sent []Message
	Err  error
}

type Message struct {
	From, To, Subject, HTML, Text string
}

func NewStub() *Stub { return &Stub{} }

func (s *Stub) Send(ctx context.Context, from, to, subject, html, text string) error {
	if s.Err != nil {
		return s.Err
	}
	s.Sent = append(s.Sent, Message{from, to, subject, html, text})
	return nil
}
