// Package client requests a generation from a scribe relay and reassembles
// the streamed response into a document, one increment at a time.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/papercomputeco/scribe/pkg/frame"
	"github.com/papercomputeco/scribe/pkg/logger"
	"github.com/papercomputeco/scribe/pkg/utils"
)

const (
	// DefaultTarget is the relay address used when none is configured.
	DefaultTarget = "http://localhost:8080"

	defaultPath = "/generate"

	// requestIDHeader is set by the relay on every response.
	requestIDHeader = "X-Request-Id"

	// maxErrorBody bounds how much of a non-2xx body is read into an error.
	maxErrorBody = 64 * 1024
)

// ErrEmptyInput is returned, wrapped in frame.ErrInvalidInput, when the
// input is blank after trimming. No request is made.
var ErrEmptyInput = errors.New("input is empty")

// StatusError is returned by Generate when the relay answers with a non-2xx
// status before streaming. Kind is frame.ErrInvalidInput for a 400 and
// frame.ErrUpstreamFailure otherwise.
type StatusError struct {
	StatusCode int
	Message    string
	Kind       error
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("relay returned status %d", e.StatusCode)
	}
	return fmt.Sprintf("relay returned status %d: %s", e.StatusCode, e.Message)
}

func (e *StatusError) Unwrap() error {
	return e.Kind
}

// Config configures a Client.
type Config struct {
	// Target is the base URL of the relay (e.g., "http://localhost:8080").
	Target string

	// Path is the generate route. Defaults to "/generate".
	Path string

	// Mode asks the relay for a framing other than its configured default.
	// Empty leaves the choice to the relay.
	Mode frame.Mode

	HTTPClient *http.Client
	Logger     *slog.Logger
}

// Client talks to one relay.
type Client struct {
	endpoint   string
	httpClient *http.Client
	logger     *slog.Logger
}

// New creates a Client.
func New(c Config) (*Client, error) {
	target := c.Target
	if target == "" {
		target = DefaultTarget
	}
	path := c.Path
	if path == "" {
		path = defaultPath
	}

	u, err := url.Parse(strings.TrimRight(target, "/") + path)
	if err != nil {
		return nil, fmt.Errorf("invalid relay target %q: %w", target, err)
	}
	if c.Mode != "" {
		if _, err := frame.ParseMode(string(c.Mode)); err != nil {
			return nil, err
		}
		q := u.Query()
		q.Set("mode", string(c.Mode))
		u.RawQuery = q.Encode()
	}

	httpClient := c.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{
			// LLM responses can be slow
			Timeout: 5 * time.Minute,
		}
	}

	log := c.Logger
	if log == nil {
		log = logger.Nop()
	}

	return &Client{
		endpoint:   u.String(),
		httpClient: httpClient,
		logger:     log,
	}, nil
}

// Generate starts a generation for input and returns the stream of its
// text. Errors before the first body byte are returned here: invalid input,
// a failed connection, or a non-2xx status. Everything after that is
// reported by the Stream.
//
// The stream must be closed by the caller.
func (c *Client) Generate(ctx context.Context, input string) (*Stream, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return nil, frame.Wrap(frame.ErrInvalidInput, ErrEmptyInput)
	}

	body, err := json.Marshal(map[string]string{"input": input})
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	c.logger.Debug("sending generate request", "target", c.endpoint, "input", utils.Truncate(input, 80))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, frame.Wrap(frame.ErrTransportFailure, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))

		kind := frame.ErrUpstreamFailure
		if resp.StatusCode == http.StatusBadRequest {
			kind = frame.ErrInvalidInput
		}
		return nil, &StatusError{
			StatusCode: resp.StatusCode,
			Message:    strings.TrimSpace(string(msg)),
			Kind:       kind,
		}
	}

	mode := frame.ModeFromContentType(resp.Header.Get("Content-Type"))
	requestID := resp.Header.Get(requestIDHeader)

	c.logger.Debug("streaming response",
		"request_id", requestID,
		"mode", mode,
	)

	return newStream(resp.Body, mode, requestID, c.logger.With("request_id", requestID)), nil
}
