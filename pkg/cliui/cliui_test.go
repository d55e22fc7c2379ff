package cliui_test

import (
	"bytes"
	"errors"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/scribe/pkg/cliui"
)

var _ = Describe("FormatDuration", func() {
	It("uses milliseconds below a second", func() {
		Expect(cliui.FormatDuration(12 * time.Millisecond)).To(Equal("12ms"))
	})

	It("uses tenths of seconds above a second", func() {
		Expect(cliui.FormatDuration(3200 * time.Millisecond)).To(Equal("3.2s"))
	})
})

var _ = Describe("Step", func() {
	It("prints the message with a success mark", func() {
		var buf bytes.Buffer
		err := cliui.Step(&buf, "Loading prompt", func() error { return nil })
		Expect(err).NotTo(HaveOccurred())
		Expect(buf.String()).To(ContainSubstring("Loading prompt"))
		Expect(buf.String()).To(ContainSubstring(cliui.SuccessMark))
	})

	It("returns the error from fn and prints a fail mark", func() {
		var buf bytes.Buffer
		boom := errors.New("boom")
		err := cliui.Step(&buf, "Connecting", func() error { return boom })
		Expect(err).To(MatchError(boom))
		Expect(buf.String()).To(ContainSubstring(cliui.FailMark))
	})

	It("ends with the result line once fn returns", func() {
		var buf bytes.Buffer
		err := cliui.Step(&buf, "Fetching", func() error {
			time.Sleep(3 * cliui.SpinnerInterval)
			return nil
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(buf.String()).To(HaveSuffix("\n"))
		Expect(buf.String()).To(ContainSubstring(cliui.SuccessMark + " Fetching "))
	})
})

var _ = Describe("Mark", func() {
	It("marks success and failure", func() {
		Expect(cliui.Mark(nil)).To(Equal(cliui.SuccessMark))
		Expect(cliui.Mark(errors.New("boom"))).To(Equal(cliui.FailMark))
	})
})

var _ = Describe("RenderMarkdown", func() {
	It("renders markdown text", func() {
		out, err := cliui.RenderMarkdown("# Cats\n\nCats are great.", 60)
		Expect(err).NotTo(HaveOccurred())
		Expect(out).To(ContainSubstring("Cats are great."))
	})
})
