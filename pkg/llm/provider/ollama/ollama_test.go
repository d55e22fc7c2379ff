package ollama_test

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/scribe/pkg/llm"
	"github.com/papercomputeco/scribe/pkg/llm/provider/ollama"
)

var _ = Describe("Ollama Provider", func() {
	var (
		server   *httptest.Server
		lines    []string
		received map[string]any
		ctx      context.Context
		cancel   context.CancelFunc
		p        *ollama.Provider
	)

	BeforeEach(func() {
		lines = nil
		received = nil
		ctx, cancel = context.WithCancel(context.Background())
		server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer GinkgoRecover()
			Expect(r.URL.Path).To(Equal("/api/chat"))
			body, _ := io.ReadAll(r.Body)
			Expect(json.Unmarshal(body, &received)).To(Succeed())

			w.Header().Set("Content-Type", "application/x-ndjson")
			for _, l := range lines {
				fmt.Fprintln(w, l)
				w.(http.Flusher).Flush()
			}
		}))
		p = ollama.New(ollama.Config{BaseURL: server.URL})
	})

	AfterEach(func() {
		cancel()
		server.Close()
	})

	req := &llm.GenerateRequest{
		Model:     "llama3.2",
		System:    "You write articles.",
		Messages:  []llm.Message{llm.NewUserMessage("cats")},
		MaxTokens: 128,
	}

	It("returns 'ollama' as its name", func() {
		Expect(p.Name()).To(Equal("ollama"))
	})

	It("streams message content until done", func() {
		lines = []string{
			`{"model":"llama3.2","message":{"role":"assistant","content":"Cats "},"done":false}`,
			`{"model":"llama3.2","message":{"role":"assistant","content":"are great."},"done":false}`,
			`{"model":"llama3.2","message":{"role":"assistant","content":""},"done":true,"done_reason":"stop","prompt_eval_count":7,"eval_count":3}`,
		}

		chunks, err := p.Stream(ctx, req)
		Expect(err).NotTo(HaveOccurred())

		var (
			text string
			last llm.StreamChunk
		)
		for c := range chunks {
			Expect(c.Err).NotTo(HaveOccurred())
			text += c.Text
			last = c
		}
		Expect(text).To(Equal("Cats are great."))
		Expect(last.StopReason).To(Equal("stop"))
		Expect(last.Usage.TotalTokens).To(Equal(10))
	})

	It("maps the request onto ollama options", func() {
		lines = []string{`{"message":{"content":""},"done":true}`}

		chunks, err := p.Stream(ctx, req)
		Expect(err).NotTo(HaveOccurred())
		_, err = llm.Collect(ctx, chunks)
		Expect(err).NotTo(HaveOccurred())

		Expect(received["stream"]).To(BeTrue())
		Expect(received["options"]).To(HaveKeyWithValue("num_predict", BeNumerically("==", 128)))
		Expect(received["messages"]).To(HaveLen(2))
	})

	It("ends with an error chunk on an in-band error", func() {
		lines = []string{
			`{"message":{"content":"Partial"},"done":false}`,
			`{"error":"model crashed"}`,
		}

		chunks, err := p.Stream(ctx, req)
		Expect(err).NotTo(HaveOccurred())

		text, err := llm.Collect(ctx, chunks)
		Expect(text).To(Equal("Partial"))
		Expect(err).To(MatchError(ContainSubstring("model crashed")))
	})

	It("treats a stream cut before done as a failure", func() {
		lines = []string{`{"message":{"content":"Partial"},"done":false}`}

		chunks, err := p.Stream(ctx, req)
		Expect(err).NotTo(HaveOccurred())

		_, err = llm.Collect(ctx, chunks)
		Expect(err).To(MatchError(ContainSubstring("before done")))
	})

	It("fails before streaming when the model is missing", func() {
		server.Close()
		server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			http.Error(w, `{"error":"model 'nope' not found"}`, http.StatusNotFound)
		}))
		p = ollama.New(ollama.Config{BaseURL: server.URL})

		_, err := p.Stream(ctx, req)
		Expect(err).To(MatchError(ContainSubstring("not found")))
	})
})
