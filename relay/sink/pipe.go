// Package sink adapts an io.Pipe to the single-shot frame.Sink contract used
// by the relay to stream a response body through fasthttp.
package sink

import (
	"errors"
	"io"
	"sync"
)

// ErrClosed is returned by writes and closes after the pipe has been closed.
var ErrClosed = errors.New("sink: closed")

// Pipe is the writing half of a streamed response body. The reading half is
// handed to fasthttp, which flushes every chunk to the connection as soon as
// it is read.
//
// Closing the writer cleanly ends the chunked body with its terminating
// chunk. Closing it with an error aborts the body without that chunk, which
// clients observe as an unexpected EOF.
type Pipe struct {
	mu     sync.Mutex
	pw     *io.PipeWriter
	closed bool
}

// New returns a Pipe and the reader to install as the response body stream.
func New() (*Pipe, *io.PipeReader) {
	pr, pw := io.Pipe()
	return &Pipe{pw: pw}, pr
}

// Write blocks until the reader has consumed p or gone away. A failed write
// marks the pipe closed since the reader never comes back.
func (p *Pipe) Write(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return 0, ErrClosed
	}

	n, err := p.pw.Write(b)
	if err != nil {
		p.closed = true
		return n, err
	}
	return n, nil
}

// Close ends the body cleanly.
func (p *Pipe) Close() error {
	return p.CloseWithError(nil)
}

// CloseWithError ends the body. A non-nil err aborts it. Only the first call
// has any effect.
func (p *Pipe) CloseWithError(err error) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return ErrClosed
	}
	p.closed = true

	if err == nil {
		return p.pw.Close()
	}
	return p.pw.CloseWithError(err)
}

// Closed reports whether the pipe has been closed or broken.
func (p *Pipe) Closed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}
