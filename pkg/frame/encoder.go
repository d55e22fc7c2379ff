package frame

import (
	"context"
	"errors"
	"log/slog"

	"github.com/papercomputeco/scribe/pkg/llm"
	"github.com/papercomputeco/scribe/pkg/logger"
	"github.com/papercomputeco/scribe/pkg/sse"
)

// Sink is the destination of encoded frames, typically an HTTP response
// body. Close and CloseWithError are single-shot: once either has been
// called, every further call returns an error and writes nothing.
type Sink interface {
	Write(p []byte) (int, error)
	Close() error
	CloseWithError(err error) error
}

// Encode returns the wire unit for one fragment. Each unit is complete and
// self-delimited, so a transport may re-chunk it freely.
func Encode(mode Mode, fragment string) []byte {
	if mode == EventStream {
		return []byte(sse.EncodeData(fragment))
	}
	return []byte(fragment)
}

// Encoder writes a fragment stream to a Sink in a fixed Mode.
type Encoder struct {
	mode    Mode
	sink    Sink
	logger  *slog.Logger
	tracker OutcomeTracker

	fragments int
	bytes     int
	usage     *llm.Usage
}

// NewEncoder creates an Encoder writing to sink. A nil logger discards.
func NewEncoder(mode Mode, sink Sink, log *slog.Logger) *Encoder {
	if log == nil {
		log = logger.Nop()
	}
	return &Encoder{
		mode:   mode,
		sink:   sink,
		logger: log,
	}
}

// Write encodes fragment and writes it to the sink as a single write.
// Empty fragments are skipped.
func (e *Encoder) Write(fragment string) error {
	if fragment == "" {
		return nil
	}

	unit := Encode(e.mode, fragment)
	n, err := e.sink.Write(unit)
	e.bytes += n
	if err != nil {
		return err
	}
	e.fragments++
	return nil
}

// Run consumes chunks until the stream ends, fails, or ctx is done, and
// returns the terminal outcome. It blocks on the channel between fragments.
//
// A closed channel completes the stream. An error chunk or a done ctx fails
// it: event streams get a best-effort comment carrying the reason, then the
// sink is closed with the error. A failed write means the reader is gone;
// Run stops immediately so the caller can cancel the upstream.
func (e *Encoder) Run(ctx context.Context, chunks <-chan llm.StreamChunk) Outcome {
	for {
		select {
		case <-ctx.Done():
			e.Fail(Wrap(ErrUpstreamFailure, ctx.Err()))
			return e.Outcome()

		case chunk, ok := <-chunks:
			if !ok {
				// A producer that stopped because ctx ended did not finish.
				if err := ctx.Err(); err != nil {
					e.Fail(Wrap(ErrUpstreamFailure, err))
					return e.Outcome()
				}
				e.Complete()
				return e.Outcome()
			}
			if !e.Push(chunk) {
				return e.Outcome()
			}
		}
	}
}

// Push handles a single chunk and reports whether the stream is still
// active afterwards. Run calls it for every received chunk; callers that
// consumed a chunk ahead of Run hand it over here first.
func (e *Encoder) Push(chunk llm.StreamChunk) bool {
	if chunk.Err != nil {
		e.Fail(Wrap(ErrUpstreamFailure, chunk.Err))
		return false
	}
	if chunk.Usage != nil {
		e.usage = chunk.Usage
	}
	if err := e.Write(chunk.Text); err != nil {
		e.abandon(err)
		return false
	}
	return true
}

// Complete closes the sink and records a completed stream.
func (e *Encoder) Complete() {
	if !e.tracker.Complete() {
		return
	}
	if err := e.sink.Close(); err != nil {
		e.logger.Debug("closing sink", "error", err)
	}
}

// Fail terminates the stream with err unless it already ended, in which case
// the failure is dropped.
func (e *Encoder) Fail(err error) {
	if !e.tracker.Fail(err) {
		e.logger.Debug("dropping failure after stream ended", "error", err)
		return
	}

	if e.mode == EventStream {
		diagnostic := sse.EncodeComment("error: " + err.Error())
		if _, werr := e.sink.Write([]byte(diagnostic)); werr != nil {
			e.logger.Debug("writing error diagnostic", "error", werr)
		}
	}

	if cerr := e.sink.CloseWithError(err); cerr != nil {
		e.logger.Debug("closing sink with error", "error", cerr)
	}
}

// abandon records a transport failure after the reader went away. There is
// nobody left to send a diagnostic to.
func (e *Encoder) abandon(err error) {
	if !e.tracker.Fail(Wrap(ErrTransportFailure, err)) {
		return
	}
	if cerr := e.sink.CloseWithError(err); cerr != nil && !errors.Is(cerr, err) {
		e.logger.Debug("closing abandoned sink", "error", cerr)
	}
}

// Outcome returns the stream outcome so far.
func (e *Encoder) Outcome() Outcome {
	return e.tracker.Outcome()
}

// Fragments returns the number of fragments written.
func (e *Encoder) Fragments() int {
	return e.fragments
}

// Bytes returns the number of encoded bytes accepted by the sink.
func (e *Encoder) Bytes() int {
	return e.bytes
}

// Usage returns the last usage report seen on the stream, if any.
func (e *Encoder) Usage() *llm.Usage {
	return e.usage
}
