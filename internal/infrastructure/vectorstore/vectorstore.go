// Package vectorstore defines the VectorStore collaborator (spec §6): the
// core only writes to it, via upsert after the Encode stage; consumers
// outside this spec query it for semantic similarity.
package vectorstore

import (
	"context"
	"math"
	"sync"

	"github.com/google/uuid"
)

// Record is what the Encode stage upserts per task.
type Record struct {
	TaskID    uuid.UUID
	Embedding []float32
	Metadata  map[string]string
}

// VectorStore is the write-side contract the core depends on.
type VectorStore interface {
	Upsert(ctx context.Context, r Record) error
	Query(ctx context.Context, embedding []float32, k int) ([]Record, error)
}

// InMemory is a reference VectorStore for tests: brute-force cosine
// similarity over whatever has been upserted.
type InMemory struct {
	mu      sync.Mutex
	records map[uuid.UUID]Record
}

func NewInMemory() *InMemory {
	return &InMemory{records: make(map[uuid.UUID]Record)}
}

func (m *InMemory) Upsert(ctx context.Context, r Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[r.TaskID] = r
	return nil
}

func (m *InMemory) Query(ctx context.Context, embedding []float32, k int) ([]Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	type scored struct {
		r     Record
		score float64
	}
	var all []scored
	for _, r := range m.records {
		all = append(all, scored{r, cosine(embedding, r.Embedding)})
	}
	// simple selection sort for the top-k; record counts here are small
	for i := 0; i < len(all) && i < k; i++ {
		best := i
		for j := i + 1; j < len(all); j++ {
			if all[j].score > all[best].score {
				best = j
			}
		}
		all[i], all[best] = all[best], all[i]
	}
	if k > len(all) {
		k = len(all)
	}
	out := make([]Record, k)
	for i := 0; i < k; i++ {
		out[i] = all[i].r
	}
	return out, nil
}

func cosine(a, b []float32) float64 {
	if len(a) == 0 || len(b) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
