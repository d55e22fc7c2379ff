// Package generatecmder provides the generate command, a terminal client for
// a running relay.
package generatecmder

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/papercomputeco/scribe/pkg/client"
	"github.com/papercomputeco/scribe/pkg/cliui"
	"github.com/papercomputeco/scribe/pkg/config"
	"github.com/papercomputeco/scribe/pkg/document"
	"github.com/papercomputeco/scribe/pkg/frame"
	"github.com/papercomputeco/scribe/pkg/logger"
)

type generateCommander struct {
	target   string
	mode     string
	plain    bool
	markdown bool
	debug    bool

	input  string
	logger *slog.Logger
}

const generateLongDesc string = `Stream an article from a running scribe relay.

The topic is sent to the relay and the article is shown as it is written.
On a terminal the text streams into a live view and is rendered as markdown
once complete. Otherwise, or with --plain, increments are written to stdout
as they arrive.

Examples:
  scribe generate cats
  scribe generate "the history of the printing press" --mode event-stream
  scribe generate tides --plain > tides.md`

const generateShortDesc string = "Stream an article from the relay"

func NewGenerateCmd() *cobra.Command {
	cmder := &generateCommander{}

	cmd := &cobra.Command{
		Use:   "generate <topic>",
		Short: generateShortDesc,
		Long:  generateLongDesc,
		Args:  cobra.MinimumNArgs(1),
		PreRunE: func(cmd *cobra.Command, args []string) error {
			configDir, _ := cmd.Flags().GetString("config-dir")
			v, err := config.InitViper(configDir)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			config.BindRegisteredFlags(v, cmd, config.GenerateFlags, []string{config.FlagTarget})

			cmder.target = v.GetString("client.target")
			cmder.input = strings.TrimSpace(strings.Join(args, " "))
			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			cmder.debug, err = cmd.Flags().GetBool("debug")
			if err != nil {
				return fmt.Errorf("could not get debug flag: %w", err)
			}

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			return cmder.run(ctx, cmd.OutOrStdout())
		},
	}

	config.AddStringFlag(cmd, config.GenerateFlags, config.FlagTarget, &cmder.target)
	config.AddStringFlag(cmd, config.GenerateFlags, config.FlagMode, &cmder.mode)
	cmd.Flags().BoolVar(&cmder.plain, "plain", false, "Write increments to stdout without the live view")
	cmd.Flags().BoolVar(&cmder.markdown, "markdown", true, "Render the finished article as markdown on a terminal")

	return cmd
}

func (c *generateCommander) run(ctx context.Context, out io.Writer) error {
	c.logger = logger.New(
		logger.WithDebug(c.debug),
		logger.WithPretty(true),
		logger.WithWriter(os.Stderr),
	)

	cl, err := client.New(client.Config{
		Target: c.target,
		Mode:   frame.Mode(strings.ToLower(strings.TrimSpace(c.mode))),
		Logger: c.logger,
	})
	if err != nil {
		return err
	}

	if c.plain || !isTerminal(out) {
		return c.runPlain(ctx, cl, out)
	}
	return c.runInteractive(ctx, cl, out)
}

// runPlain copies increments to out as they arrive.
func (c *generateCommander) runPlain(ctx context.Context, cl *client.Client, out io.Writer) error {
	stream, err := cl.Generate(ctx, c.input)
	if err != nil {
		return describe(err)
	}

	for text, err := range stream.Increments() {
		if err != nil {
			fmt.Fprintln(out)
			return incomplete(stream.Doc(), err)
		}
		if _, werr := io.WriteString(out, text); werr != nil {
			return werr
		}
	}

	if stream.Document() != "" {
		fmt.Fprintln(out)
	}
	return nil
}

// runInteractive streams into the live view, then prints the finished
// article rendered as markdown.
func (c *generateCommander) runInteractive(ctx context.Context, cl *client.Client, out io.Writer) error {
	width := 80
	if f, ok := out.(*os.File); ok {
		if w, _, err := term.GetSize(int(f.Fd())); err == nil && w > 0 {
			width = w
		}
	}

	final, err := runTUI(ctx, cl, c.input, out)
	if err != nil {
		return err
	}

	text := final.doc.Text()
	if text != "" {
		rendered := text
		if c.markdown {
			if r, rerr := cliui.RenderMarkdown(text, min(width, 100)); rerr == nil {
				rendered = r
			} else {
				c.logger.Debug("rendering markdown", "error", rerr)
			}
		}
		fmt.Fprintln(out, rendered)
	}

	if final.err != nil {
		if final.doc.Fragments() == 0 {
			return describe(final.err)
		}
		return incomplete(final.doc, final.err)
	}
	return nil
}

// describe turns a failure before any text arrived into a short message.
func describe(err error) error {
	var statusErr *client.StatusError
	switch {
	case errors.As(err, &statusErr) && statusErr.Message != "":
		return fmt.Errorf("relay answered %d: %s", statusErr.StatusCode, statusErr.Message)
	case errors.Is(err, frame.ErrTransportFailure):
		return fmt.Errorf("could not reach relay: %w", err)
	default:
		return err
	}
}

func incomplete(doc *document.Document, err error) error {
	if doc.State() == document.Partial {
		return fmt.Errorf("article incomplete after %d fragments: %w", doc.Fragments(), err)
	}
	return describe(err)
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}
