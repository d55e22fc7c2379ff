package frame_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/scribe/pkg/frame"
)

var _ = Describe("Mode", func() {
	DescribeTable("ParseMode accepts known modes",
		func(in string, expected frame.Mode) {
			m, err := frame.ParseMode(in)
			Expect(err).NotTo(HaveOccurred())
			Expect(m).To(Equal(expected))
		},
		Entry("raw", "raw", frame.Raw),
		Entry("event-stream", "event-stream", frame.EventStream),
		Entry("mixed case and padding", "  Event-Stream ", frame.EventStream),
	)

	It("rejects unknown and empty modes", func() {
		_, err := frame.ParseMode("ndjson")
		Expect(err).To(MatchError(ContainSubstring("unknown framing mode")))
		_, err = frame.ParseMode("")
		Expect(err).To(HaveOccurred())
	})

	It("announces a content type per mode", func() {
		Expect(frame.Raw.ContentType()).To(Equal("text/plain; charset=utf-8"))
		Expect(frame.EventStream.ContentType()).To(Equal("text/event-stream"))
	})

	DescribeTable("ModeFromContentType",
		func(ct string, expected frame.Mode) {
			Expect(frame.ModeFromContentType(ct)).To(Equal(expected))
		},
		Entry("event stream", "text/event-stream", frame.EventStream),
		Entry("event stream with params", "text/event-stream; charset=utf-8", frame.EventStream),
		Entry("plain text", "text/plain; charset=utf-8", frame.Raw),
		Entry("missing", "", frame.Raw),
		Entry("garbage", ";;;", frame.Raw),
	)
})
