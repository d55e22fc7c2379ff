// Package eventstream defines the telemetry events the relay emits after
// every generation, and the Publisher interface backends implement.
package eventstream

import (
	"time"

	"github.com/google/uuid"

	"github.com/papercomputeco/scribe/pkg/llm"
)

const (
	// SchemaVersionV1 is the first version of the event payload schema.
	SchemaVersionV1 = 1

	// EventTypeGenerationFinished is emitted once a relayed stream reaches a
	// terminal outcome.
	EventTypeGenerationFinished = "scribe.generation.finished"
)

// GenerationEvent is a transport-neutral record of one relayed generation.
type GenerationEvent struct {
	SchemaVersion int         `json:"schema_version"`
	EventType     string      `json:"event_type"`
	EventID       string      `json:"event_id"`
	EmittedAt     time.Time   `json:"emitted_at"`
	Source        EventSource `json:"source"`
	Request       RequestMeta `json:"request"`
	Result        ResultMeta  `json:"result"`
}

// EventSource identifies the upstream that produced the text.
type EventSource struct {
	Provider string `json:"provider"`
	Model    string `json:"model,omitempty"`
}

// RequestMeta captures request lifecycle metadata for the event.
type RequestMeta struct {
	RequestID   string    `json:"request_id"`
	Input       string    `json:"input"`
	Mode        string    `json:"mode"`
	StartedAt   time.Time `json:"started_at"`
	CompletedAt time.Time `json:"completed_at"`
	DurationMs  int64     `json:"duration_ms"`
	HTTPStatus  int       `json:"http_status"`
}

// ResultMeta summarizes what was relayed.
type ResultMeta struct {
	// Outcome is "completed" or "failed".
	Outcome   string     `json:"outcome"`
	Error     string     `json:"error,omitempty"`
	Fragments int        `json:"fragments"`
	Bytes     int        `json:"bytes"`
	Usage     *llm.Usage `json:"usage,omitempty"`
}

// NewGenerationEvent returns an event with its envelope fields filled in.
func NewGenerationEvent(emittedAt time.Time) *GenerationEvent {
	return &GenerationEvent{
		SchemaVersion: SchemaVersionV1,
		EventType:     EventTypeGenerationFinished,
		EventID:       uuid.NewString(),
		EmittedAt:     emittedAt.UTC(),
	}
}
