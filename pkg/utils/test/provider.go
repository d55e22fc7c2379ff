package testutils

import (
	"context"
	"sync"
	"time"

	"github.com/papercomputeco/scribe/pkg/llm"
)

// FakeProvider is a scripted provider.Provider. It streams Fragments in
// order, then ends with Err if set.
type FakeProvider struct {
	Fragments []string

	// Err is sent as the final chunk after all fragments.
	Err error

	// StartErr is returned by Stream itself, before any chunk.
	StartErr error

	// Delay is slept before each fragment.
	Delay time.Duration

	// Hang keeps the stream open after the fragments until ctx is done.
	Hang bool

	mu       sync.Mutex
	requests []*llm.GenerateRequest
	stopped  chan struct{}
}

// NewFakeProvider creates a FakeProvider streaming fragments.
func NewFakeProvider(fragments ...string) *FakeProvider {
	return &FakeProvider{Fragments: fragments}
}

func (f *FakeProvider) Name() string {
	return "fake"
}

func (f *FakeProvider) Stream(ctx context.Context, req *llm.GenerateRequest) (<-chan llm.StreamChunk, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	stopped := make(chan struct{})
	f.stopped = stopped
	f.mu.Unlock()

	if f.StartErr != nil {
		close(stopped)
		return nil, f.StartErr
	}

	ch := make(chan llm.StreamChunk)
	go func() {
		defer close(stopped)
		defer close(ch)

		for _, frag := range f.Fragments {
			if f.Delay > 0 {
				select {
				case <-ctx.Done():
					return
				case <-time.After(f.Delay):
				}
			}
			if !llm.Send(ctx, ch, llm.StreamChunk{Text: frag}) {
				return
			}
		}

		if f.Hang {
			<-ctx.Done()
			return
		}
		if f.Err != nil {
			llm.Send(ctx, ch, llm.StreamChunk{Err: f.Err})
		}
	}()

	return ch, nil
}

// Requests returns every request passed to Stream.
func (f *FakeProvider) Requests() []*llm.GenerateRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*llm.GenerateRequest(nil), f.requests...)
}

// Stopped is closed once the most recent stream's producer has exited.
func (f *FakeProvider) Stopped() <-chan struct{} {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stopped
}
