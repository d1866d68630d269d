package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"

	"github.com/wippyai/gcroot/gc"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#87CEEB")).
			Width(20)

	countStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#98FB98"))

	doneStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#90EE90"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B"))
)

type keyMap struct {
	Pause key.Binding
	Quit  key.Binding
}

func (k keyMap) ShortHelp() []key.Binding  { return []key.Binding{k.Pause, k.Quit} }
func (k keyMap) FullHelp() [][]key.Binding { return [][]key.Binding{k.ShortHelp()} }

var keys = keyMap{
	Pause: key.NewBinding(key.WithKeys("p", " "), key.WithHelp("p", "pause")),
	Quit:  key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
}

type roundMsg struct {
	err   error
	stats gc.Stats
	round int
}

// dashboard runs workload rounds one command at a time so the runtime is
// only ever touched from a single goroutine.
type dashboard struct {
	err      error
	w        *workload
	bar      progress.Model
	help     help.Model
	stats    gc.Stats
	rounds   int
	done     int
	inFlight bool
	paused   bool
	quitting bool
}

func newDashboard(w *workload, rounds int) *dashboard {
	return &dashboard{
		w:      w,
		bar:    progress.New(progress.WithDefaultGradient()),
		help:   help.New(),
		rounds: rounds,
	}
}

func (m *dashboard) finished() bool { return m.err != nil || m.done >= m.rounds }

func (m *dashboard) step() tea.Msg {
	err := m.w.round()
	return roundMsg{round: m.w.rounds, stats: m.w.rt.Stats(), err: err}
}

func (m *dashboard) next() tea.Cmd {
	if m.inFlight || m.paused || m.finished() {
		return nil
	}
	m.inFlight = true
	return m.step
}

func (m *dashboard) Init() tea.Cmd {
	return m.next()
}

func (m *dashboard) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch {
		case key.Matches(msg, keys.Quit):
			m.quitting = true
			if m.inFlight {
				return m, nil
			}
			return m, tea.Quit
		case key.Matches(msg, keys.Pause):
			m.paused = !m.paused
			return m, m.next()
		}

	case tea.WindowSizeMsg:
		m.bar.Width = max(10, msg.Width-8)
		m.help.Width = msg.Width

	case roundMsg:
		m.inFlight = false
		m.stats = msg.stats
		if msg.err != nil {
			m.err = msg.err
		} else {
			m.done++
		}
		if m.quitting {
			return m, tea.Quit
		}
		return m, m.next()
	}
	return m, nil
}

func (m *dashboard) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("gcstress"))
	b.WriteString(" zeal ")
	b.WriteString(m.w.rt.Zeal().Settings().String())
	b.WriteString("\n\n")

	b.WriteString(m.bar.ViewAs(float64(m.done) / float64(max(1, m.rounds))))
	b.WriteString(fmt.Sprintf("  %d/%d\n\n", m.done, m.rounds))

	st := m.stats
	rows := []struct {
		name string
		n    uint64
	}{
		{"allocations", st.Allocations},
		{"minor collections", st.MinorGCs},
		{"major collections", st.MajorGCs},
		{"compactions", st.Compactions},
		{"slices", st.Slices},
		{"promoted", st.Promoted},
		{"moved", st.Moved},
		{"swept", st.Swept},
		{"weak cleared", st.WeakCleared},
		{"finalized", st.Finalized},
	}
	for _, r := range rows {
		b.WriteString(labelStyle.Render(r.name))
		b.WriteString(countStyle.Render(fmt.Sprint(r.n)))
		b.WriteString("\n")
	}
	b.WriteString("\n")

	switch {
	case m.err != nil:
		b.WriteString(errorStyle.Render(fmt.Sprintf("Error: %v", m.err)))
		b.WriteString("\n")
	case m.finished():
		b.WriteString(doneStyle.Render("All rounds verified."))
		b.WriteString("\n")
	case m.paused:
		b.WriteString("Paused.\n")
	}
	b.WriteString(m.help.View(keys))
	return b.String()
}

func runInteractive(w *workload, rounds int) error {
	if !term.IsTerminal(int(os.Stdout.Fd())) {
		return fmt.Errorf("interactive mode needs a terminal")
	}
	m := newDashboard(w, rounds)
	if _, err := tea.NewProgram(m, tea.WithAltScreen()).Run(); err != nil {
		return err
	}
	return m.err
}
