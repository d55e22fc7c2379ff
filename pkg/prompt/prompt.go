// Package prompt renders the system prompt and user message sent upstream
// for a concept. Prompts are text/template sources defining two templates,
// "system" and "user", both executed with the Params of a request.
package prompt

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"
	"text/template"
)

const (
	systemTemplate = "system"
	userTemplate   = "user"
)

//go:embed default.tmpl
var defaultSource string

// ErrMissingUserTemplate is returned when a prompt source does not define
// the "user" template.
var ErrMissingUserTemplate = errors.New(`prompt: missing "user" template`)

// Params are the values available to prompt templates.
type Params struct {
	// UserInput is the concept entered by the user.
	UserInput string
}

// Rendered is a prompt ready to send upstream.
type Rendered struct {
	System string
	User   string
}

// Template is a parsed prompt.
type Template struct {
	name string
	tmpl *template.Template
}

// Parse parses a prompt source. The "system" template is optional.
func Parse(name, source string) (*Template, error) {
	tmpl, err := template.New(name).Option("missingkey=error").Parse(source)
	if err != nil {
		return nil, fmt.Errorf("parse prompt %s: %w", name, err)
	}
	if tmpl.Lookup(userTemplate) == nil {
		return nil, ErrMissingUserTemplate
	}
	return &Template{name: name, tmpl: tmpl}, nil
}

// Load parses the prompt stored at path.
func Load(path string) (*Template, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read prompt: %w", err)
	}
	return Parse(path, string(data))
}

// Default returns the built-in encyclopedia article prompt.
func Default() *Template {
	t, err := Parse("default", defaultSource)
	if err != nil {
		panic(err)
	}
	return t
}

// DefaultSource returns the source of the built-in prompt, as a starting
// point for a custom prompt file.
func DefaultSource() string {
	return defaultSource
}

// Name returns the template name, the file path for loaded prompts.
func (t *Template) Name() string {
	return t.name
}

// Render executes the prompt for p.
func (t *Template) Render(p Params) (Rendered, error) {
	var r Rendered

	if t.tmpl.Lookup(systemTemplate) != nil {
		s, err := t.execute(systemTemplate, p)
		if err != nil {
			return Rendered{}, err
		}
		r.System = s
	}

	u, err := t.execute(userTemplate, p)
	if err != nil {
		return Rendered{}, err
	}
	r.User = u

	return r, nil
}

func (t *Template) execute(name string, p Params) (string, error) {
	var b strings.Builder
	if err := t.tmpl.ExecuteTemplate(&b, name, p); err != nil {
		return "", fmt.Errorf("render %s prompt: %w", name, err)
	}
	return strings.TrimSpace(b.String()), nil
}

// Source hands out the prompt to use for the next request.
type Source interface {
	Current() *Template
}

// Static is a Source that always returns the same template.
type Static struct {
	T *Template
}

func (s Static) Current() *Template {
	return s.T
}
