package llm

import (
	"context"
	"strings"
)

// StreamChunk is one unit pushed by an upstream generation: a text fragment,
// a terminal error, or the final usage report.
//
// Providers close their channel after the last chunk. A chunk carrying Err
// is always the last one sent.
type StreamChunk struct {
	// Text is the next fragment of generated text. It may be empty.
	Text string

	// Err is set when the generation failed.
	Err error

	// Usage metrics (typically only present on the final chunk)
	Usage *Usage

	// StopReason reported by the provider (only present on the final chunk)
	StopReason string
}

// Send delivers chunk on ch unless ctx is done first. It returns false when
// the consumer has gone away and the producer should stop.
func Send(ctx context.Context, ch chan<- StreamChunk, chunk StreamChunk) bool {
	select {
	case <-ctx.Done():
		return false
	case ch <- chunk:
		return true
	}
}

// Collect drains a stream into a single string. It returns the text gathered
// so far together with the first error seen.
func Collect(ctx context.Context, chunks <-chan StreamChunk) (string, error) {
	var text strings.Builder
	for {
		select {
		case <-ctx.Done():
			return text.String(), ctx.Err()
		case chunk, ok := <-chunks:
			if !ok {
				return text.String(), nil
			}
			if chunk.Err != nil {
				return text.String(), chunk.Err
			}
			text.WriteString(chunk.Text)
		}
	}
}
