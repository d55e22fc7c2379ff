// Package sse provides the Server-Sent Events primitives used by scribe.
//
// It covers both directions of the wire: encoding text fragments into
// self-delimited "data:" event blocks, reconstructing fragment text from a
// complete block, and a streaming Reader for parsing the SSE responses of
// upstream LLM providers.
//
// Wire format:
// https://html.spec.whatwg.org/multipage/server-sent-events.html
package sse

// Event represents a single parsed SSE event, delimited by a blank line
// in the upstream byte stream.
type Event struct {
	// Type is the SSE event type from the "event:" field.
	// An empty string means the default "message" type per the SSE spec.
	Type string

	// Data is the concatenated contents of all "data:" lines for this event,
	// joined with "\n".
	Data string

	// ID is the last event ID from the "id:" field, if present.
	ID string
}
