// Package document holds the text a client reassembles from a relayed
// stream, together with where that stream is in its lifecycle.
package document

import (
	"strings"
	"sync"
)

// State is the lifecycle position of a document as seen by its reader.
type State int

const (
	// NotStarted means no request has been made yet.
	NotStarted State = iota

	// Streaming means fragments may still arrive.
	Streaming

	// Complete means the stream ended cleanly; the text is whole.
	Complete

	// Partial means the stream broke after some text arrived. The text is
	// kept but must not be presented as complete.
	Partial

	// Failed means the request failed before any text arrived.
	Failed
)

func (s State) String() string {
	switch s {
	case NotStarted:
		return "not-started"
	case Streaming:
		return "streaming"
	case Complete:
		return "complete"
	case Partial:
		return "partial"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further fragments will be appended.
func (s State) Terminal() bool {
	return s == Complete || s == Partial || s == Failed
}

// Document is a single growing text value. It is mutated only by ordered
// appends and is safe for one writer and any number of readers.
type Document struct {
	mu        sync.RWMutex
	text      strings.Builder
	fragments int
	state     State
	err       error
}

// New returns an empty document that has not started.
func New() *Document {
	return &Document{}
}

// Start resets the document for a new request and marks it streaming.
func (d *Document) Start() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.text.Reset()
	d.fragments = 0
	d.state = Streaming
	d.err = nil
}

// Reset empties the document and returns it to NotStarted.
func (d *Document) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.text.Reset()
	d.fragments = 0
	d.state = NotStarted
	d.err = nil
}

// Append adds the next fragment. Empty fragments and appends after the
// document reached a terminal state are ignored. The first append on a
// document that was never started starts it.
func (d *Document) Append(fragment string) {
	if fragment == "" {
		return
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.state.Terminal() {
		return
	}
	d.state = Streaming
	d.text.WriteString(fragment)
	d.fragments++
}

// Complete marks the document whole.
func (d *Document) Complete() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.state.Terminal() {
		return
	}
	d.state = Complete
}

// Fail ends the document with err. It becomes Partial if any text arrived,
// Failed otherwise.
func (d *Document) Fail(err error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.state.Terminal() {
		return
	}
	d.err = err
	if d.text.Len() > 0 {
		d.state = Partial
	} else {
		d.state = Failed
	}
}

// Text returns the text accumulated so far.
func (d *Document) Text() string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.text.String()
}

// State returns the current lifecycle state.
func (d *Document) State() State {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.state
}

// Err returns the reason the document did not complete, if any.
func (d *Document) Err() error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.err
}

// Fragments returns how many fragments were appended.
func (d *Document) Fragments() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.fragments
}
