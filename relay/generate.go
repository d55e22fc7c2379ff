package relay

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/papercomputeco/scribe/pkg/frame"
	"github.com/papercomputeco/scribe/pkg/llm"
	"github.com/papercomputeco/scribe/pkg/prompt"
	"github.com/papercomputeco/scribe/pkg/utils"
	"github.com/papercomputeco/scribe/relay/sink"
)

const (
	msgInvalidInput = "Missing or invalid 'input'"
	msgInvalidJSON  = "Invalid JSON body"

	inputPreviewLen = 80
)

var errMissingInput = errors.New("missing or invalid input")

// generateRequest is the body of POST /generate. Input is decoded loosely so
// a non-string value can be told apart from malformed JSON.
type generateRequest struct {
	Input any `json:"input"`
}

// handleGenerate starts a generation for the posted concept and streams it
// back.
//
// Headers are committed only once the first fragment has arrived, so a
// generation that fails before producing anything still gets a proper 500.
// After that the status is fixed and failures can only be signalled by
// aborting the body.
func (s *Server) handleGenerate(c *fiber.Ctx) error {
	startTime := time.Now()
	requestID := s.headerHandler.SetRequestID(c)
	log := s.logger.With("request_id", requestID)

	input, err := parseInput(c.Body())
	if err != nil {
		log.Debug("rejected generate request", "error", err)
		msg := msgInvalidInput
		if !errors.Is(err, errMissingInput) {
			msg = msgInvalidJSON
		}
		return sendText(c, fiber.StatusBadRequest, msg)
	}

	mode := s.config.Mode
	if q := c.Query("mode"); q != "" {
		mode, err = frame.ParseMode(q)
		if err != nil {
			return sendText(c, fiber.StatusBadRequest, err.Error())
		}
	}

	gen := &generation{
		requestID: requestID,
		input:     input,
		mode:      mode,
		started:   startTime,
	}
	log = log.With("mode", mode, "input", utils.Truncate(input, inputPreviewLen))

	req, err := s.buildRequest(input)
	if err != nil {
		log.Error("failed to render prompt", "error", err)
		return sendText(c, fiber.StatusInternalServerError, "failed to render prompt")
	}

	// Use the server's base context instead of c.Context() because fasthttp
	// recycles its RequestCtx after the handler returns, but the stream is
	// relayed from a separate goroutine long after that.
	ctx, cancel := s.generationContext()

	chunks, err := s.provider.Stream(ctx, req)
	if err != nil {
		cancel()
		return s.failBeforeStream(c, log, gen, err)
	}

	first, ok := awaitFirst(ctx, chunks)
	if first.Err != nil {
		cancel()
		return s.failBeforeStream(c, log, gen, first.Err)
	}

	s.headerHandler.SetStreamHeaders(c, mode)
	gen.status = fiber.StatusOK

	if !ok {
		// The upstream finished without producing any text.
		cancel()
		log.Info("generation finished empty", "duration", time.Since(startTime))
		s.publish(gen, frame.Outcome{State: frame.Completed}, 0, 0, nil)
		c.Status(fiber.StatusOK)
		return nil
	}

	// Use io.Pipe + SetBodyStream: pipe writes block until fasthttp has read
	// the chunk, and fasthttp flushes every chunk it reads to the socket.
	// The unknown size (-1) selects chunked transfer encoding.
	pipe, pr := sink.New()
	c.Context().Response.SetBodyStream(pr, -1)

	s.streams.Go(func() {
		s.relay(ctx, cancel, log, gen, pipe, first, chunks)
	})

	return nil
}

// relay drives the encoder until the stream reaches a terminal outcome.
// Cancelling ctx on return stops the upstream when the client went away.
func (s *Server) relay(ctx context.Context, cancel context.CancelFunc, log *slog.Logger, gen *generation, pipe *sink.Pipe, first llm.StreamChunk, chunks <-chan llm.StreamChunk) {
	defer cancel()

	enc := frame.NewEncoder(gen.mode, pipe, log)

	if enc.Push(first) {
		enc.Run(ctx, chunks)
	}
	outcome := enc.Outcome()

	attrs := []any{
		"outcome", outcome.State.String(),
		"fragments", enc.Fragments(),
		"bytes", enc.Bytes(),
		"duration", time.Since(gen.started),
	}
	if outcome.Err != nil {
		log.Warn("generation failed mid-stream", append(attrs, "error", outcome.Err)...)
	} else {
		log.Info("generation finished", attrs...)
	}

	s.publish(gen, outcome, enc.Fragments(), enc.Bytes(), enc.Usage())
}

// failBeforeStream reports a failure that happened before any body byte
// was committed.
func (s *Server) failBeforeStream(c *fiber.Ctx, log *slog.Logger, gen *generation, err error) error {
	log.Error("generation failed before streaming", "error", err)

	gen.status = fiber.StatusInternalServerError
	s.publish(gen, frame.Outcome{
		State: frame.Failed,
		Err:   frame.Wrap(frame.ErrUpstreamFailure, err),
	}, 0, 0, nil)

	return sendText(c, fiber.StatusInternalServerError, err.Error())
}

func (s *Server) buildRequest(input string) (*llm.GenerateRequest, error) {
	rendered, err := s.prompts.Current().Render(prompt.Params{UserInput: input})
	if err != nil {
		return nil, err
	}

	return &llm.GenerateRequest{
		Model:     s.config.Model,
		System:    rendered.System,
		Messages:  []llm.Message{llm.NewUserMessage(rendered.User)},
		Subject:   input,
		MaxTokens: s.config.MaxTokens,
	}, nil
}

func (s *Server) generationContext() (context.Context, context.CancelFunc) {
	if s.config.UpstreamTimeout > 0 {
		return context.WithTimeout(s.baseCtx, s.config.UpstreamTimeout)
	}
	return context.WithCancel(s.baseCtx)
}

// awaitFirst blocks until the stream produces text or fails, skipping empty
// chunks. ok is false when the stream ended without either.
func awaitFirst(ctx context.Context, chunks <-chan llm.StreamChunk) (chunk llm.StreamChunk, ok bool) {
	for {
		select {
		case <-ctx.Done():
			return llm.StreamChunk{Err: ctx.Err()}, true
		case chunk, open := <-chunks:
			if !open {
				return llm.StreamChunk{}, false
			}
			if chunk.Err != nil || chunk.Text != "" {
				return chunk, true
			}
		}
	}
}

// parseInput extracts the trimmed concept from a request body.
func parseInput(body []byte) (string, error) {
	var req generateRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return "", frame.Wrap(frame.ErrInvalidInput, err)
	}

	input, ok := req.Input.(string)
	if !ok {
		return "", frame.Wrap(frame.ErrInvalidInput, errMissingInput)
	}
	input = strings.TrimSpace(input)
	if input == "" {
		return "", frame.Wrap(frame.ErrInvalidInput, errMissingInput)
	}

	return input, nil
}

func sendText(c *fiber.Ctx, status int, msg string) error {
	c.Set(fiber.HeaderContentType, fiber.MIMETextPlainCharsetUTF8)
	return c.Status(status).SendString(msg)
}
