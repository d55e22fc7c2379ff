package relay

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/scribe/pkg/frame"
	"github.com/papercomputeco/scribe/pkg/logger"
	"github.com/papercomputeco/scribe/pkg/prompt"
	testutils "github.com/papercomputeco/scribe/pkg/utils/test"
	"github.com/papercomputeco/scribe/relay/header"
)

var _ = Describe("Relay", func() {
	var prov *testutils.FakeProvider

	BeforeEach(func() {
		prov = testutils.NewFakeProvider("Cats ", "are ", "great.")
	})

	Describe("New", func() {
		It("requires a provider", func() {
			_, err := New(Config{}, nil, nil)
			Expect(err).To(MatchError(ContainSubstring("provider is required")))
		})

		It("rejects an unknown framing mode", func() {
			_, err := New(Config{Mode: "xml"}, prov, logger.Nop())
			Expect(err).To(HaveOccurred())
		})

		It("defaults to raw framing and the local UI origins", func() {
			s := newTestServer(Config{}, prov)
			Expect(s.config.Mode).To(Equal(frame.Raw))
			Expect(s.config.AllowedOrigins).To(Equal(DefaultAllowedOrigins))
		})
	})

	Describe("request handling", func() {
		var s *Server

		BeforeEach(func() {
			s = newTestServer(Config{}, prov)
		})

		AfterEach(func() {
			Expect(s.Close()).To(Succeed())
		})

		It("answers ping", func() {
			resp, err := s.server.Test(httptest.NewRequest(http.MethodGet, "/ping", nil))
			Expect(err).NotTo(HaveOccurred())
			body, _ := io.ReadAll(resp.Body)
			Expect(string(body)).To(Equal("pong"))
		})

		It("serves through the net/http handler", func() {
			rec := httptest.NewRecorder()
			s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ping", nil))
			Expect(rec.Code).To(Equal(http.StatusOK))
			Expect(rec.Body.String()).To(Equal("pong"))
		})

		DescribeTable("rejects a bad body with 400 and never calls the provider",
			func(body, message string) {
				req := httptest.NewRequest(http.MethodPost, "/generate", strings.NewReader(body))
				req.Header.Set("Content-Type", "application/json")

				resp, err := s.server.Test(req)
				Expect(err).NotTo(HaveOccurred())
				Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
				Expect(resp.Header.Get("Content-Type")).To(HavePrefix("text/plain"))

				b, _ := io.ReadAll(resp.Body)
				Expect(string(b)).To(Equal(message))
				Expect(prov.Requests()).To(BeEmpty())
			},
			Entry("empty input", `{"input":""}`, msgInvalidInput),
			Entry("blank input", `{"input":"   "}`, msgInvalidInput),
			Entry("missing input", `{}`, msgInvalidInput),
			Entry("non-string input", `{"input":42}`, msgInvalidInput),
			Entry("malformed JSON", `{"input":`, msgInvalidJSON),
		)

		It("rejects an unknown mode override", func() {
			req := httptest.NewRequest(http.MethodPost, "/generate?mode=xml", strings.NewReader(`{"input":"cats"}`))
			resp, err := s.server.Test(req)
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
			Expect(prov.Requests()).To(BeEmpty())
		})

		It("answers a bare OPTIONS with an empty 200", func() {
			resp, err := s.server.Test(httptest.NewRequest(http.MethodOptions, "/generate", nil))
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			b, _ := io.ReadAll(resp.Body)
			Expect(b).To(BeEmpty())
		})

		It("answers a CORS preflight from an allowed origin with an empty 200", func() {
			req := httptest.NewRequest(http.MethodOptions, "/generate", nil)
			req.Header.Set(fiber.HeaderOrigin, "http://localhost:5173")
			req.Header.Set(fiber.HeaderAccessControlRequestMethod, http.MethodPost)

			resp, err := s.server.Test(req)
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			Expect(resp.Header.Get(fiber.HeaderAccessControlAllowOrigin)).To(Equal("http://localhost:5173"))
			Expect(resp.Header.Get(fiber.HeaderAccessControlAllowCredentials)).To(Equal("true"))
			b, _ := io.ReadAll(resp.Body)
			Expect(b).To(BeEmpty())
		})

		It("does not allow other origins", func() {
			req := httptest.NewRequest(http.MethodOptions, "/generate", nil)
			req.Header.Set(fiber.HeaderOrigin, "http://evil.example")
			req.Header.Set(fiber.HeaderAccessControlRequestMethod, http.MethodPost)

			resp, err := s.server.Test(req)
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.Header.Get(fiber.HeaderAccessControlAllowOrigin)).To(BeEmpty())
		})

		It("reports an upstream failure before the first fragment as a 500", func() {
			prov.Fragments = nil
			prov.Err = errors.New("model overloaded")

			req := httptest.NewRequest(http.MethodPost, "/generate", strings.NewReader(`{"input":"cats"}`))
			resp, err := s.server.Test(req)
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(http.StatusInternalServerError))
			b, _ := io.ReadAll(resp.Body)
			Expect(string(b)).To(ContainSubstring("model overloaded"))
		})

		It("reports a provider that cannot start as a 500", func() {
			prov.StartErr = errors.New("no credentials")

			req := httptest.NewRequest(http.MethodPost, "/generate", strings.NewReader(`{"input":"cats"}`))
			resp, err := s.server.Test(req)
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(http.StatusInternalServerError))
		})

		It("answers an upstream that produced nothing with an empty 200", func() {
			prov.Fragments = []string{"", ""}

			req := httptest.NewRequest(http.MethodPost, "/generate", strings.NewReader(`{"input":"cats"}`))
			resp, err := s.server.Test(req)
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			b, _ := io.ReadAll(resp.Body)
			Expect(b).To(BeEmpty())
		})

		It("renders the prompt for the trimmed input", func() {
			tmpl, err := prompt.Parse("test", `{{define "user"}}About {{.UserInput}}{{end}}`)
			Expect(err).NotTo(HaveOccurred())
			s.prompts = prompt.Static{T: tmpl}
			s.config.Model = "test-model"

			req := httptest.NewRequest(http.MethodPost, "/generate", strings.NewReader(`{"input":"  cats \n"}`))
			resp, err := s.server.Test(req)
			Expect(err).NotTo(HaveOccurred())
			_, _ = io.ReadAll(resp.Body)

			reqs := prov.Requests()
			Expect(reqs).To(HaveLen(1))
			Expect(reqs[0].Subject).To(Equal("cats"))
			Expect(reqs[0].Model).To(Equal("test-model"))
			Expect(reqs[0].Messages[0].Content).To(Equal("About cats"))
		})
	})

	Describe("streaming", func() {
		var (
			s    *Server
			base string
			pub  *testutils.RecordingPublisher
			cfg  Config
		)

		BeforeEach(func() {
			pub = testutils.NewRecordingPublisher()
			cfg = Config{Publisher: pub}
		})

		JustBeforeEach(func() {
			s, base = startTestServer(cfg, prov)
		})

		AfterEach(func() {
			Expect(s.Close()).To(Succeed())
		})

		It("relays raw fragments as plain text", func() {
			resp := postJSON(base+"/generate", `{"input":"cats"}`)
			defer resp.Body.Close()

			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			Expect(resp.Header.Get("Content-Type")).To(Equal("text/plain; charset=utf-8"))

			_, err := uuid.Parse(resp.Header.Get(header.RequestIDHeader))
			Expect(err).NotTo(HaveOccurred())

			body, err := io.ReadAll(resp.Body)
			Expect(err).NotTo(HaveOccurred())
			Expect(string(body)).To(Equal("Cats are great."))
		})

		It("serves the legacy route", func() {
			resp := postJSON(base+"/generate-wikipedia-article", `{"input":"cats"}`)
			defer resp.Body.Close()

			body, err := io.ReadAll(resp.Body)
			Expect(err).NotTo(HaveOccurred())
			Expect(string(body)).To(Equal("Cats are great."))
		})

		It("echoes a client supplied request id", func() {
			id := uuid.NewString()
			req, err := http.NewRequest(http.MethodPost, base+"/generate", strings.NewReader(`{"input":"cats"}`))
			Expect(err).NotTo(HaveOccurred())
			req.Header.Set(header.RequestIDHeader, id)

			resp, err := testClient.Do(req)
			Expect(err).NotTo(HaveOccurred())
			defer resp.Body.Close()
			_, _ = io.ReadAll(resp.Body)

			Expect(resp.Header.Get(header.RequestIDHeader)).To(Equal(id))
		})

		Context("event-stream mode", func() {
			BeforeEach(func() {
				prov.Fragments = []string{"Hello\nWorld"}
				cfg.Mode = frame.EventStream
			})

			It("frames every fragment as a data block", func() {
				resp := postJSON(base+"/generate", `{"input":"greeting"}`)
				defer resp.Body.Close()

				Expect(resp.Header.Get("Content-Type")).To(Equal("text/event-stream"))
				Expect(resp.Header.Get("Cache-Control")).To(Equal("no-cache"))
				Expect(resp.Header.Get("X-Accel-Buffering")).To(Equal("no"))

				body, err := io.ReadAll(resp.Body)
				Expect(err).NotTo(HaveOccurred())
				Expect(string(body)).To(Equal("data: Hello\ndata: World\n\n"))

				d := frame.NewDecoder(frame.EventStream)
				got := append(d.Feed(body), d.Flush()...)
				Expect(got).To(Equal([]string{"Hello\nWorld"}))
			})

			It("can be overridden per request", func() {
				prov.Fragments = []string{"A", "B"}

				resp := postJSON(base+"/generate?mode=raw", `{"input":"letters"}`)
				defer resp.Body.Close()

				body, err := io.ReadAll(resp.Body)
				Expect(err).NotTo(HaveOccurred())
				Expect(resp.Header.Get("Content-Type")).To(HavePrefix("text/plain"))
				Expect(string(body)).To(Equal("AB"))
			})

			It("writes a diagnostic and aborts the body on a mid-stream failure", func() {
				prov.Fragments = []string{"Partial"}
				prov.Err = errors.New("connection reset by upstream")

				resp := postJSON(base+"/generate", `{"input":"cats"}`)
				defer resp.Body.Close()

				Expect(resp.StatusCode).To(Equal(http.StatusOK))
				body, err := io.ReadAll(resp.Body)
				Expect(err).To(MatchError(io.ErrUnexpectedEOF))
				Expect(string(body)).To(HavePrefix("data: Partial\n\n"))
				Expect(string(body)).To(ContainSubstring(": error: "))

				d := frame.NewDecoder(frame.EventStream)
				got := append(d.Feed(body), d.Flush()...)
				Expect(got).To(Equal([]string{"Partial"}))
			})
		})

		It("aborts a raw body on a mid-stream failure", func() {
			prov.Fragments = []string{"Partial"}
			prov.Err = errors.New("connection reset by upstream")

			resp := postJSON(base+"/generate", `{"input":"cats"}`)
			defer resp.Body.Close()

			body, err := io.ReadAll(resp.Body)
			Expect(err).To(MatchError(io.ErrUnexpectedEOF))
			Expect(string(body)).To(Equal("Partial"))
		})

		It("stops the upstream when the client goes away", func() {
			prov.Fragments = make([]string, 5000)
			for i := range prov.Fragments {
				prov.Fragments[i] = "word "
			}
			prov.Delay = time.Millisecond

			resp := postJSON(base+"/generate", `{"input":"cats"}`)
			buf := make([]byte, 5)
			_, err := io.ReadFull(resp.Body, buf)
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.Body.Close()).To(Succeed())

			Eventually(prov.Stopped(), 5*time.Second).Should(BeClosed())
			Eventually(pub.Events, 5*time.Second).Should(ContainElement(
				HaveField("Result.Outcome", "failed"),
			))
		})

		Context("with an upstream timeout", func() {
			BeforeEach(func() {
				prov.Fragments = []string{"A"}
				prov.Hang = true
				cfg.UpstreamTimeout = 100 * time.Millisecond
			})

			It("fails the stream once the deadline passes", func() {
				resp := postJSON(base+"/generate", `{"input":"cats"}`)
				defer resp.Body.Close()

				body, err := io.ReadAll(resp.Body)
				Expect(err).To(MatchError(io.ErrUnexpectedEOF))
				Expect(string(body)).To(Equal("A"))
				Eventually(prov.Stopped()).Should(BeClosed())
			})
		})

		It("publishes a telemetry event per generation", func() {
			resp := postJSON(base+"/generate", `{"input":" cats "}`)
			_, _ = io.ReadAll(resp.Body)
			resp.Body.Close()

			Eventually(pub.Events).Should(HaveLen(1))
			ev := pub.Events()[0]
			Expect(ev.Request.RequestID).To(Equal(resp.Header.Get(header.RequestIDHeader)))
			Expect(ev.Request.Input).To(Equal("cats"))
			Expect(ev.Request.Mode).To(Equal("raw"))
			Expect(ev.Request.HTTPStatus).To(Equal(http.StatusOK))
			Expect(ev.Source.Provider).To(Equal("fake"))
			Expect(ev.Result.Outcome).To(Equal("completed"))
			Expect(ev.Result.Fragments).To(Equal(3))
			Expect(ev.Result.Bytes).To(Equal(len("Cats are great.")))
		})

		It("publishes a failed event for a pre-stream failure", func() {
			prov.Fragments = nil
			prov.Err = errors.New("model overloaded")

			resp := postJSON(base+"/generate", `{"input":"cats"}`)
			_, _ = io.ReadAll(resp.Body)
			resp.Body.Close()

			Eventually(pub.Events).Should(HaveLen(1))
			ev := pub.Events()[0]
			Expect(ev.Request.HTTPStatus).To(Equal(http.StatusInternalServerError))
			Expect(ev.Result.Outcome).To(Equal("failed"))
			Expect(ev.Result.Error).To(ContainSubstring("model overloaded"))
		})
	})

	Describe("Close", func() {
		It("ends live streams and stops their upstream", func() {
			prov.Fragments = []string{"Cats "}
			prov.Hang = true
			pub := testutils.NewRecordingPublisher()
			s, base := startTestServer(Config{Publisher: pub}, prov)

			resp := postJSON(base+"/generate", `{"input":"cats"}`)
			defer resp.Body.Close()
			buf := make([]byte, 5)
			_, err := io.ReadFull(resp.Body, buf)
			Expect(err).NotTo(HaveOccurred())

			closed := make(chan error, 1)
			go func() {
				closed <- s.Close()
			}()

			Eventually(closed, 5*time.Second).Should(Receive(BeNil()))
			Eventually(prov.Stopped()).Should(BeClosed())

			_, err = io.ReadAll(resp.Body)
			Expect(err).To(HaveOccurred())

			Expect(pub.Closed()).To(BeTrue())
			Expect(pub.Events()).To(ContainElement(HaveField("Result.Outcome", "failed")))
		})
	})
})
