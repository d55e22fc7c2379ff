package kafka_test

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	kafkago "github.com/segmentio/kafka-go"

	"github.com/papercomputeco/scribe/pkg/eventstream"
	"github.com/papercomputeco/scribe/pkg/eventstream/kafka"
)

type fakeWriter struct {
	messages []kafkago.Message
	err      error
	closed   bool
}

func (f *fakeWriter) WriteMessages(_ context.Context, msgs ...kafkago.Message) error {
	if f.err != nil {
		return f.err
	}
	f.messages = append(f.messages, msgs...)
	return nil
}

func (f *fakeWriter) Close() error {
	f.closed = true
	return nil
}

var _ = Describe("Publisher", func() {
	var (
		w *fakeWriter
		p *kafka.Publisher
	)

	BeforeEach(func() {
		w = &fakeWriter{}
		p = kafka.NewPublisherWithWriter(w, "scribe.generations")
	})

	It("requires brokers", func() {
		_, err := kafka.NewPublisher(kafka.Config{})
		Expect(err).To(MatchError(kafka.ErrNoBrokers))
	})

	It("builds a writer without dialing", func() {
		pub, err := kafka.NewPublisher(kafka.Config{Brokers: []string{"localhost:9092"}})
		Expect(err).NotTo(HaveOccurred())
		Expect(pub.Close()).To(Succeed())
	})

	It("writes the event as a JSON message keyed by request id", func() {
		event := eventstream.NewGenerationEvent(time.Unix(1735689600, 0))
		event.Request.RequestID = "req-42"
		event.Result.Outcome = "completed"

		Expect(p.PublishGeneration(context.Background(), event)).To(Succeed())
		Expect(w.messages).To(HaveLen(1))

		msg := w.messages[0]
		Expect(string(msg.Key)).To(Equal("req-42"))
		Expect(msg.Headers).To(ContainElement(kafkago.Header{Key: "event_type", Value: []byte("scribe.generation.finished")}))

		var decoded eventstream.GenerationEvent
		Expect(json.Unmarshal(msg.Value, &decoded)).To(Succeed())
		Expect(decoded.Result.Outcome).To(Equal("completed"))
	})

	It("rejects nil events", func() {
		Expect(p.PublishGeneration(context.Background(), nil)).To(MatchError(eventstream.ErrNilGenerationEvent))
	})

	It("wraps writer errors", func() {
		w.err = errors.New("leader not available")
		err := p.PublishGeneration(context.Background(), eventstream.NewGenerationEvent(time.Now()))
		Expect(err).To(MatchError(ContainSubstring("leader not available")))
		Expect(err).To(MatchError(ContainSubstring("scribe.generations")))
	})

	It("closes the writer", func() {
		Expect(p.Close()).To(Succeed())
		Expect(w.closed).To(BeTrue())
	})
})
