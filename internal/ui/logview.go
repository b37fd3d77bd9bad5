package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// LogSource drains up to max pending bytes from an attached RTT up
// channel. It must never block: zero bytes means nothing new.
type LogSource func(max int) ([]byte, error)

const (
	// logPollInterval is how often the viewer drains the channel. RTT
	// buffers are small, so polling beats the target filling the ring.
	logPollInterval = 50 * time.Millisecond

	// logReadChunk bounds one drain.
	logReadChunk = 4096
)

type pollTickMsg time.Time

// LogViewer is a Bubble Tea model streaming RTT log output into a
// scrollable viewport with a status line.
type LogViewer struct {
	title  string
	source LogSource

	viewport  viewport.Model
	spinner   spinner.Model
	content   strings.Builder
	bytesRead int
	ready     bool
	err       error
}

// NewLogViewer creates a viewer over the given source.
func NewLogViewer(title string, source LogSource) *LogViewer {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(PrimaryColor)
	return &LogViewer{
		title:   title,
		source:  source,
		spinner: sp,
	}
}

// Init implements tea.Model
func (m *LogViewer) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, pollTick())
}

func pollTick() tea.Cmd {
	return tea.Tick(logPollInterval, func(t time.Time) tea.Msg {
		return pollTickMsg(t)
	})
}

// Update implements tea.Model
func (m *LogViewer) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		}

	case tea.WindowSizeMsg:
		statusHeight := 2
		if !m.ready {
			m.viewport = viewport.New(msg.Width, msg.Height-statusHeight)
			m.ready = true
		} else {
			m.viewport.Width = msg.Width
			m.viewport.Height = msg.Height - statusHeight
		}
		m.viewport.SetContent(m.content.String())

	case pollTickMsg:
		data, err := m.source(logReadChunk)
		if err != nil {
			m.err = err
			return m, tea.Quit
		}
		if len(data) > 0 {
			atBottom := m.viewport.AtBottom()
			m.content.Write(data)
			m.bytesRead += len(data)
			m.viewport.SetContent(m.content.String())
			if atBottom {
				m.viewport.GotoBottom()
			}
		}
		return m, pollTick()

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

// View implements tea.Model
func (m *LogViewer) View() string {
	if !m.ready {
		return m.spinner.View() + " waiting for terminal size..."
	}
	status := LogStatusStyle.Render(fmt.Sprintf("%s %s │ %d bytes │ q to quit",
		m.spinner.View(), m.title, m.bytesRead))
	return m.viewport.View() + "\n" + status
}

// Err returns the error that terminated the viewer, if any.
func (m *LogViewer) Err() error {
	return m.err
}

// RunLogViewer streams the source in a full-screen TUI until the user
// quits or the source fails.
func RunLogViewer(title string, source LogSource) error {
	model := NewLogViewer(title, source)
	p := tea.NewProgram(model, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		return err
	}
	return model.Err()
}
