package generatecmder

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	tea "charm.land/bubbletea/v2"
	"charm.land/lipgloss/v2"
	"github.com/charmbracelet/x/ansi"

	"github.com/papercomputeco/scribe/pkg/client"
	"github.com/papercomputeco/scribe/pkg/cliui"
	"github.com/papercomputeco/scribe/pkg/document"
)

var (
	titleStyle  = lipgloss.NewStyle().Bold(true)
	bannerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("255")).
			Background(lipgloss.Color("160")).
			Padding(0, 1)
)

// errCancelled records a generation stopped from the keyboard.
var errCancelled = errors.New("generation cancelled")

type (
	streamStartedMsg struct{ stream *client.Stream }
	fragmentMsg      struct{ text string }
	streamEndedMsg   struct{ err error }
	tickMsg          time.Time
)

type generateModel struct {
	ctx    context.Context
	cancel context.CancelFunc
	cl     *client.Client
	input  string

	stream  *client.Stream
	doc     *document.Document
	err     error
	done    bool
	started time.Time
	frame   int

	width  int
	height int
}

func newGenerateModel(ctx context.Context, cl *client.Client, input string) generateModel {
	ctx, cancel := context.WithCancel(ctx)
	return generateModel{
		ctx:     ctx,
		cancel:  cancel,
		cl:      cl,
		input:   input,
		doc:     document.New(),
		started: time.Now(),
		width:   80,
		height:  24,
	}
}

func runTUI(ctx context.Context, cl *client.Client, input string, out io.Writer) (generateModel, error) {
	model := newGenerateModel(ctx, cl, input)
	// Cancelling aborts a read still in flight; the stream settles itself
	// once the body fails.
	defer model.cancel()

	program := tea.NewProgram(model,
		tea.WithContext(ctx),
		tea.WithOutput(out),
	)

	final, err := program.Run()
	if err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return model, fmt.Errorf("running generate view: %w", err)
	}

	m, ok := final.(generateModel)
	if !ok {
		return model, nil
	}
	if m.err == nil && !m.done {
		m.err = errCancelled
	}
	return m, nil
}

func (m generateModel) Init() tea.Cmd {
	return tea.Batch(startCmd(m.ctx, m.cl, m.input), tick())
}

func (m generateModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case tea.KeyPressMsg:
		switch msg.String() {
		case "ctrl+c", "q", "esc":
			m.cancel()
			if !m.done {
				m.err = errCancelled
				m.doc.Fail(errCancelled)
			}
			return m, tea.Quit
		}
		return m, nil

	case streamStartedMsg:
		m.stream = msg.stream
		m.doc = msg.stream.Doc()
		return m, nextCmd(msg.stream)

	case fragmentMsg:
		return m, nextCmd(m.stream)

	case streamEndedMsg:
		m.done = true
		m.err = msg.err
		if msg.err != nil && m.stream == nil {
			m.doc.Fail(msg.err)
		}
		return m, tea.Quit

	case tickMsg:
		if m.done {
			return m, nil
		}
		m.frame++
		return m, tick()
	}

	return m, nil
}

func (m generateModel) View() tea.View {
	v := tea.NewView(m.render())
	v.AltScreen = true
	return v
}

// render draws the header and the tail of the article that fits the window.
func (m generateModel) render() string {
	var b strings.Builder

	title := ansi.Truncate(m.input, max(m.width-24, 10), "…")
	elapsed := cliui.StepStyle.Render(fmt.Sprintf("(%s)", cliui.FormatDuration(time.Since(m.started))))

	switch {
	case m.err != nil:
		b.WriteString(bannerStyle.Render(ansi.Truncate("Error: "+m.err.Error(), max(m.width-2, 10), "…")))
	case m.done:
		fmt.Fprintf(&b, "%s %s %s", cliui.SuccessMark, titleStyle.Render(title), elapsed)
	default:
		fmt.Fprintf(&b, "%s Generating… %s %s", cliui.Spinner(m.frame), titleStyle.Render(title), elapsed)
	}
	b.WriteString("\n\n")

	body := lipgloss.NewStyle().Width(max(m.width-2, 10)).Render(m.doc.Text())
	lines := strings.Split(body, "\n")
	if room := max(m.height-4, 1); len(lines) > room {
		lines = lines[len(lines)-room:]
	}
	b.WriteString(strings.Join(lines, "\n"))

	b.WriteString("\n\n")
	b.WriteString(cliui.DimStyle.Render("q quit"))
	return b.String()
}

func startCmd(ctx context.Context, cl *client.Client, input string) tea.Cmd {
	return func() tea.Msg {
		stream, err := cl.Generate(ctx, input)
		if err != nil {
			return streamEndedMsg{err: err}
		}
		return streamStartedMsg{stream: stream}
	}
}

// nextCmd blocks for the next increment. The increment is already in the
// stream's document by the time the message is delivered.
func nextCmd(stream *client.Stream) tea.Cmd {
	return func() tea.Msg {
		if stream.Next() {
			return fragmentMsg{text: stream.Text()}
		}
		return streamEndedMsg{err: stream.Err()}
	}
}

func tick() tea.Cmd {
	return tea.Tick(cliui.SpinnerInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}
