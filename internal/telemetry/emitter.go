package telemetry

import (
	"context"
	"time"
)

// Event is one application telemetry event (e.g. an HTTP request or a
// handler failure). Metadata is free-form JSON.
type Event struct {
	RequestID string
	EventType string
	Source    string
	Metadata  []byte
	CreatedAt time.Time
}

// EventEmitter emits telemetry events (e.g. to OTel Logs). Best-effort;
// callers log and ignore errors.
type EventEmitter interface {
	Emit(ctx context.Context, event *Event) error
}
