package sse_test

import (
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/scribe/pkg/sse"
)

var _ = Describe("Event blocks", func() {
	Describe("EncodeData", func() {
		It("prefixes each line and terminates the block with a blank line", func() {
			Expect(sse.EncodeData("Hello\nWorld")).To(Equal("data: Hello\ndata: World\n\n"))
		})

		It("prefixes empty lines produced by adjacent newlines", func() {
			Expect(sse.EncodeData("a\n\nb")).To(Equal("data: a\ndata: \ndata: b\n\n"))
		})

		It("never contains a delimiter before its end", func() {
			block := sse.EncodeData("x\n\n\n\ny\n")
			Expect(strings.Index(block, sse.Delimiter)).To(Equal(len(block) - len(sse.Delimiter)))
		})
	})

	Describe("EncodeComment", func() {
		It("produces a block without data lines", func() {
			block := sse.EncodeComment("error: boom")
			Expect(block).To(Equal(": error: boom\n\n"))

			_, ok := sse.DataFromBlock(strings.TrimSuffix(block, sse.Delimiter))
			Expect(ok).To(BeFalse())
		})
	})

	Describe("DataFromBlock", func() {
		It("reconstructs multi-line text", func() {
			text, ok := sse.DataFromBlock("data: Hello\ndata: World")
			Expect(ok).To(BeTrue())
			Expect(text).To(Equal("Hello\nWorld"))
		})

		It("keeps only data lines", func() {
			text, ok := sse.DataFromBlock("event: delta\nid: 7\ndata: kept")
			Expect(ok).To(BeTrue())
			Expect(text).To(Equal("kept"))
		})

		It("reports blocks with no data lines", func() {
			_, ok := sse.DataFromBlock(": just a comment")
			Expect(ok).To(BeFalse())
		})

		It("inverts EncodeData", func() {
			for _, text := range []string{"plain", "two\nlines", "\n", "trailing\n", "\n\nleading", "a\r\nb"} {
				got, ok := sse.DataFromBlock(strings.TrimSuffix(sse.EncodeData(text), sse.Delimiter))
				Expect(ok).To(BeTrue())
				Expect(got).To(Equal(text))
			}
		})
	})
})
