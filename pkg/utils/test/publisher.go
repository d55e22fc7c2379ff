package testutils

import (
	"context"
	"sync"

	"github.com/papercomputeco/scribe/pkg/eventstream"
)

// RecordingPublisher is an eventstream.Publisher that keeps every event.
type RecordingPublisher struct {
	mu     sync.Mutex
	events []*eventstream.GenerationEvent
	closed bool

	// FailWith is returned by PublishGeneration when set.
	FailWith error
}

// NewRecordingPublisher creates an empty RecordingPublisher.
func NewRecordingPublisher() *RecordingPublisher {
	return &RecordingPublisher{}
}

func (r *RecordingPublisher) PublishGeneration(_ context.Context, event *eventstream.GenerationEvent) error {
	if event == nil {
		return eventstream.ErrNilGenerationEvent
	}
	if r.FailWith != nil {
		return r.FailWith
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return nil
}

func (r *RecordingPublisher) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	return nil
}

// Events returns a copy of the published events.
func (r *RecordingPublisher) Events() []*eventstream.GenerationEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*eventstream.GenerationEvent(nil), r.events...)
}

// Closed reports whether Close was called.
func (r *RecordingPublisher) Closed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closed
}
