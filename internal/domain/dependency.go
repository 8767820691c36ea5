package domain

import "github.com/google/uuid"

// DependencyType classifies the edge between two tasks.
type DependencyType string

const (
	DependencyBlocks    DependencyType = "blocks"
	DependencyDependsOn DependencyType = "depends_on"
	DependencyRelatedTo DependencyType = "related_to"
)

// TaskDependency is a directed edge: Task depends on (is blocked by) BlockedBy.
type TaskDependency struct {
	Task      uuid.UUID      `json:"task" db:"task_id"`
	BlockedBy uuid.UUID      `json:"blocked_by" db:"blocked_by_task_id"`
	Type      DependencyType `json:"type" db:"type"`
}

// ValidateNewDependency checks the structural invariants of spec §3 before a
// dependency is inserted: no self-loops, and the resulting graph must stay
// acyclic. existing is the adjacency (task -> its blocked_by set) already in
// the store, not including the candidate edge.
func ValidateNewDependency(existing map[uuid.UUID][]uuid.UUID, task, blockedBy uuid.UUID) error {
	if task == blockedBy {
		return ErrSelfDependency
	}
	// A new edge task -> blockedBy creates a cycle iff blockedBy can already
	// reach task by following existing blocked_by edges.
	visited := make(map[uuid.UUID]bool)
	var reaches func(uuid.UUID) bool
	reaches = func(n uuid.UUID) bool {
		if n == task {
			return true
		}
		if visited[n] {
			return false
		}
		visited[n] = true
		for _, next := range existing[n] {
			if reaches(next) {
				return true
			}
		}
		return false
	}
	if reaches(blockedBy) {
		return ErrCyclicDependency
	}
	return nil
}
