// Package servecmder provides the serve command that runs the relay.
package servecmder

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/term"

	"github.com/papercomputeco/scribe/pkg/config"
	"github.com/papercomputeco/scribe/pkg/credentials"
	"github.com/papercomputeco/scribe/pkg/dotdir"
	"github.com/papercomputeco/scribe/pkg/eventstream"
	"github.com/papercomputeco/scribe/pkg/eventstream/kafka"
	"github.com/papercomputeco/scribe/pkg/frame"
	"github.com/papercomputeco/scribe/pkg/llm/provider"
	"github.com/papercomputeco/scribe/pkg/logger"
	"github.com/papercomputeco/scribe/pkg/prompt"
	"github.com/papercomputeco/scribe/relay"
)

type serveCommander struct {
	// flag targets, only read through viper
	flagValues map[string]*string
	maxTokens  int

	configDir  string
	debug      bool
	jsonLogs   bool
	disableMCP bool
	logLevel   string
	logFile    string

	level           slog.Level
	listen          string
	mode            frame.Mode
	allowedOrigins  []string
	upstreamTimeout time.Duration
	providerType    string
	upstream        string
	model           string
	apiKeyEnv       string
	promptPath      string
	brokers         []string
	topic           string

	logger *slog.Logger
}

const serveLongDesc string = `Run the scribe relay.

The relay accepts {"input": "<topic>"} on POST /generate, asks the configured
LLM provider to write an article about it, and streams the text back as it is
produced. Responses are framed as raw text or as text/event-stream, chosen by
--mode and overridable per request with ?mode=.

Settings are read from flags, SCRIBE_* environment variables, and config.toml
in the .scribe/ directory, in that order of precedence.

Supported provider types: anthropic, openai, ollama, lorem, auto`

const serveShortDesc string = "Run the scribe relay"

var stringFlags = []string{
	config.FlagListen,
	config.FlagMode,
	config.FlagAllowedOrigins,
	config.FlagUpstreamTimeout,
	config.FlagProvider,
	config.FlagUpstream,
	config.FlagModel,
	config.FlagAPIKeyEnv,
	config.FlagPrompt,
	config.FlagBrokers,
	config.FlagTopic,
}

func NewServeCmd() *cobra.Command {
	cmder := &serveCommander{flagValues: map[string]*string{}}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: serveShortDesc,
		Long:  serveLongDesc,
		Args:  cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			cmder.configDir, _ = cmd.Flags().GetString("config-dir")

			v, err := config.InitViper(cmder.configDir)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			config.BindRegisteredFlags(v, cmd, config.ServeFlags, config.ServeFlags.Keys())

			return cmder.resolve(v)
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			cmder.debug, err = cmd.Flags().GetBool("debug")
			if err != nil {
				return fmt.Errorf("could not get debug flag: %w", err)
			}

			return cmder.run(cmd.Context())
		},
	}

	for _, key := range stringFlags {
		target := new(string)
		cmder.flagValues[key] = target
		config.AddStringFlag(cmd, config.ServeFlags, key, target)
	}
	config.AddIntFlag(cmd, config.ServeFlags, config.FlagMaxTokens, &cmder.maxTokens)

	cmd.Flags().BoolVar(&cmder.jsonLogs, "log-json", false, "Write JSON logs")
	cmd.Flags().BoolVar(&cmder.disableMCP, "no-mcp", false, "Serve an empty MCP server on /mcp")
	cmd.Flags().StringVar(&cmder.logLevel, "log-level", "info", "Minimum log level (debug, info, warn, error)")
	cmd.Flags().StringVar(&cmder.logFile, "log-file", "", "Also append JSON logs to this file")

	return cmd
}

// resolve reads the effective settings out of v, which already carries the
// flag > env > config file > default precedence chain.
func (c *serveCommander) resolve(v *viper.Viper) error {
	mode, err := frame.ParseMode(v.GetString("server.mode"))
	if err != nil {
		return err
	}
	c.mode = mode

	c.level, err = logger.ParseLevel(c.logLevel)
	if err != nil {
		return err
	}

	if raw := v.GetString("server.upstream_timeout"); raw != "" {
		c.upstreamTimeout, err = time.ParseDuration(raw)
		if err != nil {
			return fmt.Errorf("invalid upstream timeout %q: %w", raw, err)
		}
	}

	c.listen = v.GetString("server.listen")
	c.allowedOrigins = config.GetList(v, "server.allowed_origins")
	c.providerType = v.GetString("upstream.provider")
	c.upstream = v.GetString("upstream.target")
	c.model = v.GetString("upstream.model")
	c.maxTokens = v.GetInt("upstream.max_tokens")
	c.apiKeyEnv = v.GetString("upstream.api_key_env")
	c.promptPath = v.GetString("prompt.path")
	c.brokers = config.GetList(v, "telemetry.brokers")
	c.topic = v.GetString("telemetry.topic")

	if c.maxTokens < 0 {
		return fmt.Errorf("invalid max tokens %d", c.maxTokens)
	}
	return nil
}

func (c *serveCommander) run(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	log, closeLog, err := c.newLogger(os.Stdout, term.IsTerminal(int(os.Stdout.Fd())))
	if err != nil {
		return err
	}
	defer func() {
		_ = closeLog()
	}()
	c.logger = log

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	prov, err := c.newProvider()
	if err != nil {
		return err
	}

	prompts, err := c.newPromptSource(ctx)
	if err != nil {
		return err
	}

	publisher, err := c.newPublisher()
	if err != nil {
		return err
	}

	server, err := relay.New(relay.Config{
		ListenAddr:      c.listen,
		Mode:            c.mode,
		AllowedOrigins:  c.allowedOrigins,
		UpstreamTimeout: c.upstreamTimeout,
		Model:           c.model,
		MaxTokens:       c.maxTokens,
		Prompts:         prompts,
		Publisher:       publisher,
		DisableMCP:      c.disableMCP,
	}, prov, c.logger)
	if err != nil {
		if publisher != nil {
			_ = publisher.Close()
		}
		return fmt.Errorf("creating relay: %w", err)
	}

	errChan := make(chan error, 1)
	go func() {
		errChan <- server.Run()
	}()

	select {
	case err := <-errChan:
		if cerr := server.Close(); cerr != nil {
			c.logger.Warn("closing relay", "error", cerr)
		}
		return err
	case <-ctx.Done():
		c.logger.Info("received signal, shutting down")
		return server.Close()
	}
}

// newLogger builds the console logger. With a log file configured, records
// are also appended to it as JSON with their source location. The returned
// func closes the file.
func (c *serveCommander) newLogger(out io.Writer, terminal bool) (*slog.Logger, func() error, error) {
	level := c.level
	if c.debug {
		level = slog.LevelDebug
	}

	console := logger.New(
		logger.WithLevel(level),
		logger.WithJSON(c.jsonLogs),
		logger.WithPretty(!c.jsonLogs && terminal),
		logger.WithWriter(out),
	)
	if c.logFile == "" {
		return console, func() error { return nil }, nil
	}

	f, err := os.OpenFile(c.logFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("opening log file: %w", err)
	}

	file := logger.New(
		logger.WithLevel(level),
		logger.WithJSON(true),
		logger.WithSource(true),
		logger.WithWriter(f),
	)
	return logger.Multi(console, file), f.Close, nil
}

func (c *serveCommander) newProvider() (provider.Provider, error) {
	providerType := c.providerType
	if providerType == provider.Auto || providerType == "" {
		providerType = provider.Detect(c.model)
	}

	apiKey, err := c.resolveAPIKey(providerType)
	if err != nil {
		return nil, err
	}

	prov, err := provider.New(provider.Options{
		Type:   providerType,
		Model:  c.model,
		Target: c.upstream,
		APIKey: apiKey,
		Logger: c.logger,
	})
	if err != nil {
		return nil, fmt.Errorf("creating provider: %w", err)
	}

	c.logger.Info("using provider",
		"provider", prov.Name(),
		"upstream", c.upstream,
		"model", c.model,
	)
	return prov, nil
}

// resolveAPIKey looks up the key for hosted providers in the environment,
// then in credentials.toml.
func (c *serveCommander) resolveAPIKey(providerType string) (string, error) {
	if !credentials.IsSupportedProvider(providerType) {
		return "", nil
	}

	mgr, err := credentials.NewManager(c.configDir)
	if err != nil {
		return "", fmt.Errorf("loading credentials: %w", err)
	}

	key, source, err := mgr.Resolve(providerType, c.apiKeyEnv)
	if err != nil {
		return "", fmt.Errorf("loading credentials: %w", err)
	}
	if key == "" {
		c.logger.Warn("no api key found", "provider", providerType, "env", c.apiKeyEnv)
		return "", nil
	}

	c.logger.Debug("using api key", "provider", providerType, "source", source)
	return key, nil
}

// newPromptSource returns nil when no prompt file is configured, leaving the
// relay on its built-in prompt. A configured file is followed for edits until
// ctx ends.
func (c *serveCommander) newPromptSource(ctx context.Context) (prompt.Source, error) {
	if c.promptPath == "" {
		return nil, nil
	}

	path, err := dotdir.NewManager().File(c.configDir, c.promptPath)
	if err != nil {
		return nil, fmt.Errorf("resolving prompt path: %w", err)
	}

	w, err := prompt.NewWatcher(path, c.logger)
	if err != nil {
		return nil, fmt.Errorf("loading prompt: %w", err)
	}

	go func() {
		if err := w.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			c.logger.Warn("prompt watcher stopped", "path", path, "error", err)
		}
	}()

	c.logger.Info("using prompt file", "path", path)
	return w, nil
}

func (c *serveCommander) newPublisher() (eventstream.Publisher, error) {
	if len(c.brokers) == 0 {
		return nil, nil
	}

	p, err := kafka.NewPublisher(kafka.Config{
		Brokers: c.brokers,
		Topic:   c.topic,
	})
	if err != nil {
		return nil, fmt.Errorf("creating telemetry publisher: %w", err)
	}

	c.logger.Info("publishing generation events", "brokers", c.brokers, "topic", c.topic)
	return p, nil
}
