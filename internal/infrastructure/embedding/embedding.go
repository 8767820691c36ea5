// Package embedding defines the Embedder collaborator (spec §6), used only
// by the Ingestion Pipeline's Encode stage.
package embedding

import "context"

// Embedder turns text into a vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Stub is a deterministic in-process Embedder for tests: it hashes the
// input into a small fixed-size vector so identical text always embeds
// identically, without depending on a real model.
type Stub struct{ Dim int }

func NewStub(dim int) *Stub {
	if dim <= 0 {
		dim = 8
	}
	return &Stub{Dim: dim}
}

func (s *Stub) Embed(ctx context.Context, text string) ([]float32, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}
	vec := make([]float32, s.Dim)
	for i, r := range text {
		vec[i%s.Dim] += float32(r%97) / 97.0
	}
	return vec, nil
}
