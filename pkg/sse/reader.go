package sse

import (
	"bufio"
	"io"
	"strings"
)

const (
	initialLineBuffer = 64 * 1024
	maxLineBuffer     = 1024 * 1024
)

// Reader parses SSE events from an upstream provider response body.
//
// When built with NewTeeReader every raw line is also copied verbatim to a
// destination writer, which is handy for capturing the exact upstream
// framing in tests and debug logs.
type Reader struct {
	scanner *bufio.Scanner
	tee     io.Writer

	// current accumulates fields for the event being built.
	current  Event
	hasData  bool
	dataSeen bool
}

// NewReader returns a Reader that parses SSE events from src.
func NewReader(src io.Reader) *Reader {
	return NewTeeReader(src, nil)
}

// NewTeeReader returns a Reader that parses SSE events from src and writes
// every raw line through to tee. A nil tee disables copying.
func NewTeeReader(src io.Reader, tee io.Writer) *Reader {
	scanner := bufio.NewScanner(src)
	scanner.Buffer(make([]byte, initialLineBuffer), maxLineBuffer)

	return &Reader{
		scanner: scanner,
		tee:     tee,
	}
}

// Next blocks until a complete event is available (terminated by a blank
// line) and returns it. Next returns nil, nil once the source is exhausted.
// An event still in progress when the source ends is yielded as well.
func (r *Reader) Next() (*Event, error) {
	for r.scanner.Scan() {
		raw := r.scanner.Text()

		if r.tee != nil {
			// bufio.Scanner strips the newline, reinsert it for the copy.
			if _, err := io.WriteString(r.tee, raw+"\n"); err != nil {
				return nil, err
			}
		}

		switch {
		case raw == "":
			if r.hasData {
				return r.take(), nil
			}
			// Leading blank lines and keep-alive newlines.
		case strings.HasPrefix(raw, ":"):
			// Comment line.
		default:
			r.parseLine(raw)
		}
	}

	if err := r.scanner.Err(); err != nil {
		return nil, err
	}

	if r.hasData {
		return r.take(), nil
	}

	return nil, nil
}

// parseLine accumulates one "field:value" line into the current event.
// A single space after the colon is optional and stripped. A line without
// a colon is a field name with an empty value.
func (r *Reader) parseLine(line string) {
	field, value, _ := strings.Cut(line, ":")
	value = strings.TrimPrefix(value, " ")

	switch field {
	case "data":
		if r.dataSeen {
			r.current.Data += "\n"
		}
		r.current.Data += value
		r.dataSeen = true
		r.hasData = true
	case "event":
		r.current.Type = value
		r.hasData = true
	case "id":
		r.current.ID = value
		r.hasData = true
	default:
		// "retry" and unknown fields are ignored.
	}
}

func (r *Reader) take() *Event {
	ev := r.current
	r.current = Event{}
	r.hasData = false
	r.dataSeen = false
	return &ev
}
