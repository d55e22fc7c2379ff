package client

import (
	"errors"
	"io"
	"iter"
	"log/slog"

	"github.com/papercomputeco/scribe/pkg/document"
	"github.com/papercomputeco/scribe/pkg/frame"
)

const readBufferSize = 4 * 1024

// ErrStreamClosed is the failure recorded when a stream is closed before
// its body ended.
var ErrStreamClosed = errors.New("stream closed before it ended")

// Stream reassembles one relayed response. Call Next until it returns
// false, then check Err. A Stream is read by one goroutine; its Doc may be
// read concurrently from others.
type Stream struct {
	body      io.ReadCloser
	dec       *frame.Decoder
	doc       *document.Document
	mode      frame.Mode
	requestID string
	logger    *slog.Logger

	buf     []byte
	pending []string
	current string

	// ended is set once the body reported EOF or an error; err holds the
	// latter. The outcome is settled after pending has been drained so no
	// decoded text is lost.
	ended   bool
	err     error
	tracker frame.OutcomeTracker
}

func newStream(body io.ReadCloser, mode frame.Mode, requestID string, log *slog.Logger) *Stream {
	doc := document.New()
	doc.Start()

	return &Stream{
		body:      body,
		dec:       frame.NewDecoder(mode),
		doc:       doc,
		mode:      mode,
		requestID: requestID,
		logger:    log,
		buf:       make([]byte, readBufferSize),
	}
}

// Next blocks until the next increment of text is available and appends it
// to the document. It returns false once the stream has ended.
func (s *Stream) Next() bool {
	for len(s.pending) == 0 {
		if s.ended {
			s.settle()
			return false
		}
		s.read()
	}

	s.current = s.pending[0]
	s.pending = s.pending[1:]
	s.doc.Append(s.current)
	return true
}

// read pulls one chunk from the body into the decoder.
func (s *Stream) read() {
	n, err := s.body.Read(s.buf)
	if n > 0 {
		s.pending = append(s.pending, s.dec.Feed(s.buf[:n])...)
	}

	switch {
	case err == nil:
	case errors.Is(err, io.EOF):
		s.pending = append(s.pending, s.dec.Flush()...)
		s.ended = true
	default:
		// A broken body may end mid-block; whatever is buffered is not
		// trustworthy and is discarded.
		s.err = frame.Wrap(frame.ErrTransportFailure, err)
		s.ended = true
	}
}

// settle records the outcome once and releases the body.
func (s *Stream) settle() {
	var settled bool
	if s.err != nil {
		settled = s.tracker.Fail(s.err)
		s.doc.Fail(s.err)
	} else {
		settled = s.tracker.Complete()
		s.doc.Complete()
	}
	if !settled {
		return
	}

	if err := s.body.Close(); err != nil {
		s.logger.Debug("closing response body", "error", err)
	}

	s.logger.Debug("stream ended",
		"state", s.doc.State().String(),
		"fragments", s.doc.Fragments(),
		"dropped_blocks", s.dec.Dropped(),
	)
}

// Text returns the increment produced by the last call to Next.
func (s *Stream) Text() string {
	return s.current
}

// Document returns all text received so far.
func (s *Stream) Document() string {
	return s.doc.Text()
}

// Doc returns the document being assembled, for readers on other
// goroutines.
func (s *Stream) Doc() *document.Document {
	return s.doc
}

// Err returns the failure that ended the stream, if any.
func (s *Stream) Err() error {
	return s.err
}

// Outcome returns the terminal outcome, or an Active one while the stream
// is still being read.
func (s *Stream) Outcome() frame.Outcome {
	return s.tracker.Outcome()
}

// State returns the document's lifecycle state.
func (s *Stream) State() document.State {
	return s.doc.State()
}

// Mode returns the framing the relay answered with.
func (s *Stream) Mode() frame.Mode {
	return s.mode
}

// RequestID returns the id the relay assigned to the generation.
func (s *Stream) RequestID() string {
	return s.requestID
}

// Close releases the response. Closing a stream that has not ended marks
// it failed with ErrStreamClosed.
func (s *Stream) Close() error {
	if s.err == nil && (!s.ended || len(s.pending) > 0) {
		s.err = frame.Wrap(frame.ErrTransportFailure, ErrStreamClosed)
	}
	s.ended = true
	s.pending = nil
	s.settle()
	return nil
}

// Increments returns an iterator over the stream's increments. A failure is
// yielded last, with empty text. Stopping early closes the stream.
func (s *Stream) Increments() iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		defer s.Close()

		for s.Next() {
			if !yield(s.Text(), nil) {
				return
			}
		}
		if err := s.Err(); err != nil {
			yield("", err)
		}
	}
}
