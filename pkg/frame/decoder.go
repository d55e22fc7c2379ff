package frame

import (
	"bytes"
	"strings"
	"unicode/utf8"

	"github.com/papercomputeco/scribe/pkg/sse"
)

// Decoder reassembles fragments from a byte stream chunked at arbitrary
// boundaries. A Decoder belongs to one stream and is not safe for
// concurrent use.
type Decoder struct {
	mode Mode

	// buf holds bytes not yet resolved into a fragment: an incomplete event
	// block, or in raw mode an incomplete trailing UTF-8 sequence.
	buf []byte

	// scanned is how much of buf has already been searched for a block
	// delimiter, so a long block arriving in small chunks is scanned once.
	scanned int
	dropped int
}

var delimiter = []byte(sse.Delimiter)

// NewDecoder creates a Decoder for mode.
func NewDecoder(mode Mode) *Decoder {
	return &Decoder{mode: mode}
}

// Feed consumes the next chunk and returns every fragment it completes, in
// order.
func (d *Decoder) Feed(chunk []byte) []string {
	if len(chunk) == 0 {
		return nil
	}
	if d.mode == EventStream {
		return d.feedEventStream(chunk)
	}
	return d.feedRaw(chunk)
}

// Flush resolves whatever is still buffered at end of stream. A second call
// returns nothing.
func (d *Decoder) Flush() []string {
	rest := string(d.buf)
	d.buf = nil
	d.scanned = 0

	if d.mode != EventStream {
		if rest == "" {
			return nil
		}
		return []string{rest}
	}

	if strings.TrimSpace(rest) == "" {
		return nil
	}
	return d.decodeBlock(rest, nil)
}

// Dropped returns how many event blocks carried no data and were skipped.
func (d *Decoder) Dropped() int {
	return d.dropped
}

// Buffered returns the number of bytes waiting for more input.
func (d *Decoder) Buffered() int {
	return len(d.buf)
}

func (d *Decoder) feedEventStream(chunk []byte) []string {
	d.buf = append(d.buf, chunk...)

	var out []string
	start := 0
	for {
		// A delimiter may straddle the previous chunk boundary.
		from := max(start, d.scanned-len(delimiter)+1)
		i := bytes.Index(d.buf[from:], delimiter)
		if i < 0 {
			break
		}
		end := from + i
		out = d.decodeBlock(string(d.buf[start:end]), out)
		start = end + len(delimiter)
	}

	if start > 0 {
		d.buf = d.buf[:copy(d.buf, d.buf[start:])]
	}
	d.scanned = len(d.buf)
	return out
}

func (d *Decoder) decodeBlock(block string, out []string) []string {
	text, ok := sse.DataFromBlock(block)
	if !ok {
		d.dropped++
		return out
	}
	if text == "" {
		return out
	}
	return append(out, text)
}

// feedRaw emits the chunk verbatim except for a trailing partial UTF-8
// sequence, which waits for the bytes that complete it.
func (d *Decoder) feedRaw(chunk []byte) []string {
	text := string(append(d.buf, chunk...))
	cut := incompleteSuffix(text)
	d.buf = append(d.buf[:0], text[len(text)-cut:]...)
	text = text[:len(text)-cut]

	if text == "" {
		return nil
	}
	return []string{text}
}

// incompleteSuffix returns the length of a trailing UTF-8 sequence that was
// started but not finished. Invalid bytes are not held back.
func incompleteSuffix(s string) int {
	for i := 1; i < utf8.UTFMax && i <= len(s); i++ {
		c := s[len(s)-i]
		if !utf8.RuneStart(c) {
			continue
		}
		if utf8.FullRuneInString(s[len(s)-i:]) {
			return 0
		}
		return i
	}
	return 0
}
