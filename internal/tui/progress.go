package tui

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/vvka-141/pgload/pkg/pgload"
)

// maxRecentFailures is how many failed files the view keeps on screen.
const maxRecentFailures = 5

type batchLoadedMsg struct {
	sourceID string
	rows     int
}

type batchFailedMsg struct {
	sourceID string
	err      error
}

type fileFailedMsg struct {
	path string
	err  error
}

// finishedMsg ends the view once the run has returned.
type finishedMsg struct {
	summary pgload.RunSummary
	err     error
}

// ProgressModel is the bubbletea model behind the live progress view.
type ProgressModel struct {
	title   string
	spinner spinner.Model
	keys    KeyMap
	onStop  func()
	started time.Time

	loaded      int
	failed      int
	parseFailed int
	rows        int64
	lastFile    string
	failures    []string
	stopping    bool
	finished    bool
	summary     pgload.RunSummary
	err         error
	now         func() time.Time
}

// NewProgressModel creates the model. onStop is called once when the user
// presses the quit key; the view keeps running until the run has finished.
func NewProgressModel(title string, onStop func()) ProgressModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = SpinnerStyle

	return ProgressModel{
		title:   title,
		spinner: s,
		keys:    DefaultKeyMap(),
		onStop:  onStop,
		started: time.Now(),
		now:     time.Now,
	}
}

// Init implements tea.Model.
func (m ProgressModel) Init() tea.Cmd {
	return m.spinner.Tick
}

// Update implements tea.Model.
func (m ProgressModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if key.Matches(msg, m.keys.Quit) && !m.stopping {
			m.stopping = true
			if m.onStop != nil {
				m.onStop()
			}
		}
		return m, nil

	case batchLoadedMsg:
		m.loaded++
		m.rows += int64(msg.rows)
		m.lastFile = msg.sourceID
		return m, nil

	case batchFailedMsg:
		m.failed++
		m.pushFailure(msg.sourceID, msg.err)
		return m, nil

	case fileFailedMsg:
		m.parseFailed++
		m.pushFailure(msg.path, msg.err)
		return m, nil

	case finishedMsg:
		m.finished = true
		m.summary = msg.summary
		m.err = msg.err
		return m, tea.Quit

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m *ProgressModel) pushFailure(path string, err error) {
	line := fmt.Sprintf("%s: %v", filepath.Base(path), err)
	if i := strings.IndexByte(line, '\n'); i >= 0 {
		line = line[:i]
	}
	m.failures = append(m.failures, line)
	if len(m.failures) > maxRecentFailures {
		m.failures = m.failures[len(m.failures)-maxRecentFailures:]
	}
}

// View implements tea.Model.
func (m ProgressModel) View() string {
	var b strings.Builder

	switch {
	case m.finished && m.err == nil:
		b.WriteString(SuccessStyle.Render(SymbolCheck+" "+m.title) + "\n")
	case m.finished:
		b.WriteString(ErrorStyle.Render(SymbolCross+" "+m.title) + "\n")
	case m.stopping:
		b.WriteString(m.spinner.View() + " " + WarningStyle.Render("Stopping after in-flight files...") + "\n")
	default:
		b.WriteString(m.spinner.View() + " " + TitleStyle.Render(m.title) + "\n")
	}

	row := func(label, value string) {
		b.WriteString("  " + LabelStyle.Render(label) + value + "\n")
	}
	loaded, rows := int64(m.loaded), m.rows
	if m.finished {
		loaded, rows = m.summary.BatchesLoaded, m.summary.RowsWritten
	}
	row("Loaded", fmt.Sprintf("%d files, %d rows", loaded, rows))
	if m.failed > 0 {
		row("Load failed", ErrorStyle.Render(fmt.Sprintf("%d", m.failed)))
	}
	if m.parseFailed > 0 {
		row("Parse failed", ErrorStyle.Render(fmt.Sprintf("%d", m.parseFailed)))
	}
	if m.finished && m.summary.FilesSkipped > 0 {
		row("Skipped", MutedStyle.Render(fmt.Sprintf("%d", m.summary.FilesSkipped)))
	}
	row("Elapsed", m.now().Sub(m.started).Round(time.Second).String())
	if m.lastFile != "" && !m.finished {
		row("Last", MutedStyle.Render(m.lastFile))
	}

	for _, f := range m.failures {
		b.WriteString("  " + ErrorStyle.Render(SymbolBullet+" "+f) + "\n")
	}

	if m.finished && m.err != nil {
		b.WriteString("\n" + ErrorStyle.Render(m.err.Error()) + "\n")
	}
	if !m.finished && !m.stopping {
		b.WriteString(HelpStyle.Render(m.keys.HelpText()) + "\n")
	}
	return b.String()
}
