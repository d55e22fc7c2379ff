// Package frame implements the wire protocol between the relay and its
// clients. An Encoder turns an ordered stream of text fragments into writes
// on a sink, and a Decoder turns arbitrarily chunked bytes back into the same
// fragments.
//
// The two sides share nothing but the bytes on the wire and the block
// helpers in pkg/sse.
package frame

import (
	"fmt"
	"mime"
	"strings"
)

// Mode is the framing used for one response. It is chosen once per request.
type Mode string

const (
	// Raw writes fragment bytes verbatim with no delimiters.
	Raw Mode = "raw"

	// EventStream wraps every fragment in a "data:" block terminated by a
	// blank line.
	EventStream Mode = "event-stream"
)

const (
	rawContentType         = "text/plain; charset=utf-8"
	eventStreamContentType = "text/event-stream"
)

// Modes returns all supported framing modes.
func Modes() []Mode {
	return []Mode{Raw, EventStream}
}

// ParseMode validates a mode name. The empty string is rejected so callers
// decide their own default.
func ParseMode(s string) (Mode, error) {
	switch m := Mode(strings.ToLower(strings.TrimSpace(s))); m {
	case Raw, EventStream:
		return m, nil
	default:
		return "", fmt.Errorf("unknown framing mode %q (supported: %v)", s, Modes())
	}
}

// ContentType is the response Content-Type announced for the mode.
func (m Mode) ContentType() string {
	if m == EventStream {
		return eventStreamContentType
	}
	return rawContentType
}

// ModeFromContentType picks the decoding mode for a response. Anything that
// is not an event stream is read as raw text.
func ModeFromContentType(contentType string) Mode {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err == nil && mediaType == eventStreamContentType {
		return EventStream
	}
	return Raw
}

func (m Mode) String() string {
	return string(m)
}
