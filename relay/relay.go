// Package relay provides the HTTP server that streams a generation from an
// upstream LLM to a client as it is produced.
package relay

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"

	"github.com/gofiber/adaptor/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/cors"

	"github.com/papercomputeco/scribe/api/mcp"
	"github.com/papercomputeco/scribe/pkg/eventstream/nop"
	"github.com/papercomputeco/scribe/pkg/frame"
	"github.com/papercomputeco/scribe/pkg/llm/provider"
	"github.com/papercomputeco/scribe/pkg/prompt"
	"github.com/papercomputeco/scribe/relay/header"
	"github.com/papercomputeco/scribe/relay/worker"
)

const (
	generatePath = "/generate"

	// legacyGeneratePath is the route used by the first browser client.
	legacyGeneratePath = "/generate-wikipedia-article"

	mcpPath  = "/mcp"
	pingPath = "/ping"
)

// Server is the scribe relay. It turns one POSTed concept into an upstream
// generation and relays the fragments to the caller in the configured
// framing, enqueueing a telemetry event per request on its worker pool.
type Server struct {
	config        Config
	provider      provider.Provider
	prompts       prompt.Source
	workerPool    *worker.Pool
	logger        *slog.Logger
	server        *fiber.App
	headerHandler *header.Handler

	// baseCtx parents every generation; Close cancels it.
	baseCtx         context.Context
	stopGenerations context.CancelFunc

	// streams tracks relay goroutines still writing a body.
	streams sync.WaitGroup
}

// New creates a new relay Server for prov.
func New(config Config, prov provider.Provider, logger *slog.Logger) (*Server, error) {
	if prov == nil {
		return nil, errors.New("provider is required")
	}
	if logger == nil {
		return nil, errors.New("logger is required")
	}

	if config.Mode == "" {
		config.Mode = frame.Raw
	}
	if _, err := frame.ParseMode(string(config.Mode)); err != nil {
		return nil, err
	}
	if len(config.AllowedOrigins) == 0 {
		config.AllowedOrigins = DefaultAllowedOrigins
	}

	prompts := config.Prompts
	if prompts == nil {
		prompts = prompt.Static{T: prompt.Default()}
	}

	publisher := config.Publisher
	if publisher == nil {
		publisher = nop.NewPublisher()
	}

	wp, err := worker.NewPool(&worker.Config{
		Publisher: publisher,
		Logger:    logger,
	})
	if err != nil {
		return nil, fmt.Errorf("could not create worker pool: %w", err)
	}

	mcpServer, err := mcp.NewServer(mcp.Config{
		Provider:  prov,
		Prompts:   prompts,
		Model:     config.Model,
		MaxTokens: config.MaxTokens,
		Noop:      config.DisableMCP,
		Logger:    logger,
	})
	if err != nil {
		return nil, fmt.Errorf("could not create MCP server: %w", err)
	}

	app := fiber.New(fiber.Config{
		// Disable startup message for cleaner logs
		DisableStartupMessage: true,
	})

	baseCtx, stopGenerations := context.WithCancel(context.Background())

	s := &Server{
		config:        config,
		provider:      prov,
		prompts:       prompts,
		workerPool:    wp,
		logger:        logger,
		server:        app,
		headerHandler: header.NewHandler(),

		baseCtx:         baseCtx,
		stopGenerations: stopGenerations,
	}

	app.Use(s.preflightOK)
	app.Use(cors.New(cors.Config{
		AllowOrigins:     strings.Join(config.AllowedOrigins, ","),
		AllowMethods:     "GET,POST,PUT,DELETE,OPTIONS",
		AllowCredentials: true,
		ExposeHeaders:    header.RequestIDHeader,
	}))

	// Compress everything except streamed bodies, which must reach the
	// client one fragment at a time.
	app.Use(compress.New(compress.Config{
		Next: func(c *fiber.Ctx) bool {
			return isStreamingPath(c.Path())
		},
	}))

	app.Get(pingPath, s.handlePing)
	for _, path := range []string{generatePath, legacyGeneratePath} {
		app.Post(path, s.handleGenerate)
		app.Options(path, s.handleOptions)
	}
	app.All(mcpPath, adaptor.HTTPHandler(mcpServer.Handler()))

	return s, nil
}

// Run starts the relay server on the configured listening address
func (s *Server) Run() error {
	s.logger.Info("starting relay server",
		"listen", s.config.ListenAddr,
		"provider", s.provider.Name(),
		"mode", s.config.Mode,
	)

	return s.server.Listen(s.config.ListenAddr)
}

// RunWithListener starts the relay server using the provided listener.
func (s *Server) RunWithListener(listener net.Listener) error {
	s.logger.Info("starting relay server",
		"listen", listener.Addr().String(),
		"provider", s.provider.Name(),
		"mode", s.config.Mode,
	)

	return s.server.Listener(listener)
}

// Handler exposes the relay as a net/http handler. Streamed bodies are
// buffered by the adaptor, so use Run or RunWithListener to serve clients.
func (s *Server) Handler() http.Handler {
	return adaptor.FiberApp(s.server)
}

// Close cancels live generations, stops accepting requests and waits for
// open streams to end, then waits for the worker pool to publish the
// remaining telemetry.
func (s *Server) Close() error {
	s.stopGenerations()
	err := s.server.Shutdown()
	s.streams.Wait()
	if perr := s.workerPool.Close(); perr != nil {
		err = errors.Join(err, perr)
	}
	return err
}

func (s *Server) handlePing(c *fiber.Ctx) error {
	return c.SendString("pong")
}

// handleOptions answers a bare OPTIONS request on the generate routes.
// Preflight requests are answered by the CORS middleware before this.
func (s *Server) handleOptions(c *fiber.Ctx) error {
	c.Status(fiber.StatusOK)
	return nil
}

// preflightOK rewrites the CORS middleware's 204 preflight response to an
// empty 200, which older browser clients expect.
func (s *Server) preflightOK(c *fiber.Ctx) error {
	if c.Method() != fiber.MethodOptions {
		return c.Next()
	}
	if err := c.Next(); err != nil {
		return err
	}
	if c.Response().StatusCode() == fiber.StatusNoContent {
		c.Response().ResetBody()
		c.Status(fiber.StatusOK)
	}
	return nil
}

func isStreamingPath(path string) bool {
	switch path {
	case generatePath, legacyGeneratePath, mcpPath:
		return true
	default:
		return false
	}
}
