// Package header sets the response headers of the scribe relay.
//
// The relay sits between a client and an upstream LLM like so:
//
//	Client <--> Relay <--> Upstream LLM
//
// and the client leg is a long-lived streamed body whose headers must keep
// intermediaries from buffering it.
package header

import (
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/papercomputeco/scribe/pkg/frame"
)

// RequestIDHeader carries the id used to correlate logs and telemetry for
// one generation.
const RequestIDHeader = "X-Request-Id"

// eventStreamHeaders are set on event-stream responses in addition to the
// Content-Type.
var eventStreamHeaders = map[string]string{
	// Clients must not cache or revalidate a live stream.
	fiber.HeaderCacheControl: "no-cache",

	// The stream ends when the connection does; ask for it to stay open.
	fiber.HeaderConnection: "keep-alive",

	// nginx buffers proxied responses by default, which would hold tokens
	// back until the buffer fills.
	"X-Accel-Buffering": "no",
}

// Handler manages headers on relay responses.
type Handler struct{}

// NewHandler creates a new header Handler.
func NewHandler() *Handler {
	return &Handler{}
}

// SetStreamHeaders commits the headers for a streamed body in mode.
func (h *Handler) SetStreamHeaders(c *fiber.Ctx, mode frame.Mode) {
	c.Set(fiber.HeaderContentType, mode.ContentType())
	if mode != frame.EventStream {
		return
	}
	for k, v := range eventStreamHeaders {
		c.Set(k, v)
	}
}

// SetRequestID echoes a well-formed request id sent by the client, or
// assigns a fresh one, and returns it.
func (h *Handler) SetRequestID(c *fiber.Ctx) string {
	id := c.Get(RequestIDHeader)
	if _, err := uuid.Parse(id); err != nil {
		id = uuid.NewString()
	}
	c.Set(RequestIDHeader, id)
	return id
}
