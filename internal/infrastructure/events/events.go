// Package events publishes best-effort domain events for downstream
// consumers outside this spec's scope, adapted from the teacher's
// outbox/Kafka publisher (internal/infrastructure/event + events/kafka.go)
// but simplified to direct best-effort publish: the Encode stage and the
// Nudger are themselves already non-fatal-on-failure per spec §7, so a
// durable outbox table buys nothing an in-process retry-less publish
// doesn't already cover for this domain.
package events

import (
	"context"
	"encoding/json"
	"time"
)

// Type enumerates the event kinds this module emits.
type Type string

const (
	TaskPersisted    Type = "task.persisted"
	TaskEncoded      Type = "task.encoded"
	TaskSynced       Type = "task.synced"
	NotificationSent Type = "notification.sent"
)

// Event is the envelope published to Kafka.
type Event struct {
	Type      Type            `json:"type"`
	User      string          `json:"user"`
	Key       string          `json:"key"` // task id / notification id, used as the Kafka partition key
	At        time.Time       `json:"at"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

// Publisher is the capability interface components depend on.
type Publisher interface {
	Publish(ctx context.Context, e Event) error
	Close() error
}
