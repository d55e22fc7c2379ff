package relay

import (
	"time"

	"github.com/papercomputeco/scribe/pkg/eventstream"
	"github.com/papercomputeco/scribe/pkg/frame"
	"github.com/papercomputeco/scribe/pkg/llm"
	"github.com/papercomputeco/scribe/relay/worker"
)

// generation is the request-scoped state reported in telemetry.
type generation struct {
	requestID string
	input     string
	mode      frame.Mode
	started   time.Time
	status    int
}

// publish enqueues the telemetry event for a finished generation. It never
// blocks: a full queue drops the event.
func (s *Server) publish(gen *generation, outcome frame.Outcome, fragments, bytes int, usage *llm.Usage) {
	now := time.Now()

	ev := eventstream.NewGenerationEvent(now)
	ev.Source = eventstream.EventSource{
		Provider: s.provider.Name(),
		Model:    s.config.Model,
	}
	ev.Request = eventstream.RequestMeta{
		RequestID:   gen.requestID,
		Input:       gen.input,
		Mode:        string(gen.mode),
		StartedAt:   gen.started.UTC(),
		CompletedAt: now.UTC(),
		DurationMs:  now.Sub(gen.started).Milliseconds(),
		HTTPStatus:  gen.status,
	}
	ev.Result = eventstream.ResultMeta{
		Outcome:   outcome.State.String(),
		Fragments: fragments,
		Bytes:     bytes,
		Usage:     usage,
	}
	if outcome.Err != nil {
		ev.Result.Error = outcome.Err.Error()
	}

	s.workerPool.Enqueue(worker.Job{Event: ev})
}
