package generatecmder

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net"
	"net/http"

	tea "charm.land/bubbletea/v2"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/scribe/pkg/client"
	"github.com/papercomputeco/scribe/pkg/document"
	"github.com/papercomputeco/scribe/pkg/frame"
	"github.com/papercomputeco/scribe/pkg/logger"
	testutils "github.com/papercomputeco/scribe/pkg/utils/test"
	"github.com/papercomputeco/scribe/relay"
)

func startRelay(prov *testutils.FakeProvider) string {
	s, err := relay.New(relay.Config{Mode: frame.EventStream}, prov, logger.Nop())
	Expect(err).NotTo(HaveOccurred())

	l, err := net.Listen("tcp", "127.0.0.1:0")
	Expect(err).NotTo(HaveOccurred())
	go func() {
		_ = s.RunWithListener(l)
	}()
	DeferCleanup(s.Close)

	return "http://" + l.Addr().String()
}

func newTestClient(target string) *client.Client {
	cl, err := client.New(client.Config{
		Target:     target,
		HTTPClient: &http.Client{Transport: &http.Transport{DisableKeepAlives: true}},
	})
	Expect(err).NotTo(HaveOccurred())
	return cl
}

var _ = Describe("NewGenerateCmd", func() {
	It("requires a topic", func() {
		cmd := NewGenerateCmd()
		cmd.SetArgs([]string{})
		cmd.SetOut(io.Discard)
		cmd.SetErr(io.Discard)
		Expect(cmd.Execute()).NotTo(Succeed())
	})

	It("registers target and mode flags", func() {
		cmd := NewGenerateCmd()
		Expect(cmd.Flags().Lookup("target").DefValue).To(Equal("http://localhost:8080"))
		Expect(cmd.Flags().Lookup("mode").DefValue).To(BeEmpty())
		Expect(cmd.Flags().Lookup("plain")).NotTo(BeNil())
	})
})

var _ = Describe("generateCommander", func() {
	Describe("runPlain", func() {
		It("writes increments as they arrive", func() {
			target := startRelay(testutils.NewFakeProvider("Cats ", "are ", "great."))

			var out bytes.Buffer
			c := &generateCommander{input: "cats", logger: logger.Nop()}
			Expect(c.runPlain(context.Background(), newTestClient(target), &out)).To(Succeed())
			Expect(out.String()).To(Equal("Cats are great.\n"))
		})

		It("keeps partial text and reports the article incomplete", func() {
			prov := testutils.NewFakeProvider("Cats ", "are ")
			prov.Err = io.ErrUnexpectedEOF
			target := startRelay(prov)

			var out bytes.Buffer
			c := &generateCommander{input: "cats", logger: logger.Nop()}
			err := c.runPlain(context.Background(), newTestClient(target), &out)
			Expect(err).To(MatchError(ContainSubstring("article incomplete after 2 fragments")))
			Expect(out.String()).To(HavePrefix("Cats are "))
		})

		It("describes a relay error status", func() {
			prov := testutils.NewFakeProvider()
			prov.StartErr = errors.New("model not found")
			target := startRelay(prov)

			c := &generateCommander{input: "cats", logger: logger.Nop()}
			err := c.runPlain(context.Background(), newTestClient(target), io.Discard)
			Expect(err).To(MatchError(ContainSubstring("relay answered 500")))
			Expect(err).To(MatchError(ContainSubstring("model not found")))
		})

		It("describes an unreachable relay", func() {
			l, err := net.Listen("tcp", "127.0.0.1:0")
			Expect(err).NotTo(HaveOccurred())
			target := "http://" + l.Addr().String()
			Expect(l.Close()).To(Succeed())

			c := &generateCommander{input: "cats", logger: logger.Nop()}
			err = c.runPlain(context.Background(), newTestClient(target), io.Discard)
			Expect(err).To(MatchError(ContainSubstring("could not reach relay")))
		})
	})
})

var _ = Describe("generateModel", func() {
	var m generateModel

	BeforeEach(func() {
		m = newGenerateModel(context.Background(), nil, "cats")
		DeferCleanup(m.cancel)
	})

	update := func(msg tea.Msg) (generateModel, tea.Cmd) {
		next, cmd := m.Update(msg)
		return next.(generateModel), cmd
	}

	It("shows a spinner while generating", func() {
		Expect(m.render()).To(ContainSubstring("Generating…"))
		Expect(m.render()).To(ContainSubstring("cats"))
	})

	It("tracks the window size", func() {
		m, _ = update(tea.WindowSizeMsg{Width: 40, Height: 10})
		Expect(m.width).To(Equal(40))
		Expect(m.height).To(Equal(10))
	})

	It("shows an error banner when the request fails", func() {
		m, cmd := update(streamEndedMsg{err: errors.New("connection refused")})
		Expect(cmd).NotTo(BeNil())
		Expect(m.done).To(BeTrue())
		Expect(m.doc.State()).To(Equal(document.Failed))
		Expect(m.render()).To(ContainSubstring("Error: connection refused"))
	})

	It("quits and records a cancellation on q", func() {
		m, cmd := update(tea.KeyPressMsg{Code: 'q', Text: "q"})
		Expect(cmd).NotTo(BeNil())
		Expect(m.err).To(MatchError(errCancelled))
		Expect(m.ctx.Err()).To(HaveOccurred())
	})

	It("shows only the tail of a long article", func() {
		m, _ = update(tea.WindowSizeMsg{Width: 40, Height: 6})
		for _, line := range []string{"one\n", "two\n", "three\n", "four\n", "five"} {
			m.doc.Append(line)
		}
		out := m.render()
		Expect(out).To(ContainSubstring("five"))
		Expect(out).NotTo(ContainSubstring("one"))
	})

	It("stops ticking once done", func() {
		m, _ = update(streamEndedMsg{})
		_, cmd := update(tickMsg{})
		Expect(cmd).To(BeNil())
	})
})
