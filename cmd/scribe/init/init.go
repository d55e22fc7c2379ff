// Package initcmder provides the init command for initializing a local .scribe
// directory in the current working directory.
package initcmder

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/scribe/pkg/cliui"
	"github.com/papercomputeco/scribe/pkg/config"
	"github.com/papercomputeco/scribe/pkg/prompt"
)

const (
	dirName        = ".scribe"
	configFile     = "config.toml"
	promptFile     = "article.tmpl"
	presetTimeout  = 10 * time.Second
	maxPresetBytes = 1 << 20
)

type initCommander struct {
	preset string
	prompt bool
}

const initLongDesc string = `Initialize a new .scribe/ directory in the current working directory.

Creates a local .scribe/ directory that takes precedence over the default
~/.scribe/ directory. A config.toml is written when none exists yet, or
whenever --preset is given.

Presets name a provider (anthropic, openai, ollama, lorem) or an http(s) URL
serving a config.toml.

With --prompt the built-in article prompt is copied to .scribe/article.tmpl
and configured as prompt.path, ready to be edited. The relay reloads it on
every save.

Examples:
  scribe init
  scribe init --preset anthropic
  scribe init --preset lorem --prompt
  scribe init --preset https://example.com/scribe/config.toml`

const initShortDesc string = "Initialize a local .scribe/ directory"

func NewInitCmd() *cobra.Command {
	cmder := &initCommander{}

	cmd := &cobra.Command{
		Use:   "init",
		Short: initShortDesc,
		Long:  initLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmder.run(cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVar(&cmder.preset, "preset", "", "Provider preset or URL of a config.toml")
	cmd.Flags().BoolVar(&cmder.prompt, "prompt", false, "Write an editable copy of the built-in prompt")

	return cmd
}

func (c *initCommander) run(out io.Writer) error {
	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("getting current directory: %w", err)
	}
	dir := filepath.Join(cwd, dirName)

	if info, err := os.Stat(dir); err == nil && info.IsDir() {
		fmt.Fprintf(out, "Already initialized: %s\n", dir)
	} else {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating .scribe directory: %w", err)
		}
		fmt.Fprintf(out, "Initialized .scribe directory: %s\n", dir)
	}

	configPath := filepath.Join(dir, configFile)
	cfg, write, err := c.resolveConfig(out, configPath)
	if err != nil {
		return err
	}

	if c.prompt {
		promptPath := filepath.Join(dir, promptFile)
		if _, err := os.Stat(promptPath); errors.Is(err, os.ErrNotExist) {
			if err := os.WriteFile(promptPath, []byte(prompt.DefaultSource()), 0o644); err != nil {
				return fmt.Errorf("writing prompt: %w", err)
			}
			fmt.Fprintf(out, "Wrote prompt: %s\n", promptPath)
		}
		cfg.Prompt.Path = promptFile
		write = true
	}

	if !write {
		return nil
	}

	cfger, err := config.NewConfiger(dir)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if err := cfger.SaveConfig(cfg); err != nil {
		return err
	}
	fmt.Fprintf(out, "Wrote config: %s\n", configPath)
	return nil
}

// resolveConfig returns the config to write and whether it must be written.
// An existing config.toml is kept unless a preset replaces it.
func (c *initCommander) resolveConfig(out io.Writer, configPath string) (*config.Config, bool, error) {
	switch {
	case strings.HasPrefix(c.preset, "http://"), strings.HasPrefix(c.preset, "https://"):
		var cfg *config.Config
		err := cliui.Step(out, "Fetching "+c.preset, func() error {
			var err error
			cfg, err = fetchRemoteConfig(c.preset)
			return err
		})
		return cfg, true, err

	case c.preset != "":
		cfg, err := config.PresetConfig(c.preset)
		return cfg, true, err
	}

	data, err := os.ReadFile(configPath)
	if errors.Is(err, os.ErrNotExist) {
		return config.NewDefaultConfig(), true, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("reading config: %w", err)
	}

	cfg, err := config.ParseConfigTOML(data)
	return cfg, false, err
}

func fetchRemoteConfig(url string) (*config.Config, error) {
	ctx, cancel := context.WithTimeout(context.Background(), presetTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("fetching remote config: %w", err)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching remote config: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetching remote config: HTTP %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxPresetBytes))
	if err != nil {
		return nil, fmt.Errorf("fetching remote config: %w", err)
	}

	return config.ParseConfigTOML(data)
}
