package frame_test

import (
	"errors"
	"sync"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/scribe/pkg/frame"
)

var _ = Describe("OutcomeTracker", func() {
	It("starts active", func() {
		var t frame.OutcomeTracker
		Expect(t.Outcome().State).To(Equal(frame.Active))
		Expect(t.Outcome().Terminal()).To(BeFalse())
	})

	It("keeps the first transition", func() {
		var t frame.OutcomeTracker
		Expect(t.Complete()).To(BeTrue())
		Expect(t.Fail(errors.New("late"))).To(BeFalse())
		Expect(t.Outcome()).To(Equal(frame.Outcome{State: frame.Completed}))
	})

	It("records the failure reason", func() {
		var t frame.OutcomeTracker
		boom := errors.New("boom")
		Expect(t.Fail(boom)).To(BeTrue())
		Expect(t.Complete()).To(BeFalse())
		Expect(t.Outcome().State).To(Equal(frame.Failed))
		Expect(t.Outcome().Err).To(MatchError(boom))
	})

	It("lets exactly one of many concurrent callers win", func() {
		var (
			t    frame.OutcomeTracker
			wg   sync.WaitGroup
			mu   sync.Mutex
			wins int
		)
		for i := range 50 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				var won bool
				if i%2 == 0 {
					won = t.Complete()
				} else {
					won = t.Fail(errors.New("x"))
				}
				if won {
					mu.Lock()
					wins++
					mu.Unlock()
				}
			}()
		}
		wg.Wait()
		Expect(wins).To(Equal(1))
	})

	It("names its states", func() {
		Expect(frame.Active.String()).To(Equal("active"))
		Expect(frame.Completed.String()).To(Equal("completed"))
		Expect(frame.Failed.String()).To(Equal("failed"))
	})
})
