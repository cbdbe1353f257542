package viz

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/san-kum/pidlab/internal/dynamo"
	"github.com/san-kum/pidlab/internal/sim"
)

var (
	cyan    = lipgloss.NewStyle().Foreground(lipgloss.Color("86"))
	white   = lipgloss.NewStyle().Foreground(lipgloss.Color("255"))
	dim     = lipgloss.NewStyle().Foreground(lipgloss.Color("242"))
	magenta = lipgloss.NewStyle().Foreground(lipgloss.Color("213"))
)

const (
	stateMenu = iota
	stateSim
)

// app shows a preset menu and then hands over to the live model.
type app struct {
	state, cursor int
	presets       []dynamo.Preset
	session       *sim.Session
	live          Model
	err           error
}

// NewInteractiveApp starts on the preset menu. The chosen preset is applied
// to session before the live view takes over.
func NewInteractiveApp(s *sim.Session, presets []dynamo.Preset) tea.Model {
	return app{state: stateMenu, presets: presets, session: s}
}

func (m app) Init() tea.Cmd { return nil }

func (m app) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if m.state == stateSim {
		live, cmd := m.live.Update(msg)
		m.live = live.(Model)
		return m, cmd
	}

	key, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}
	switch key.String() {
	case "q", "ctrl+c":
		return m, tea.Quit
	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}
	case "down", "j":
		if m.cursor < len(m.presets) {
			m.cursor++
		}
	case "enter", " ":
		// the last row keeps the configured gains
		if m.cursor < len(m.presets) {
			if err := m.session.ApplyPreset(m.presets[m.cursor]); err != nil {
				m.err = err
				return m, nil
			}
		}
		m.state = stateSim
		m.live = NewModel(m.session, m.presets)
		return m, m.live.Init()
	}
	return m, nil
}

func (m app) View() string {
	if m.state == stateSim {
		return m.live.View()
	}

	var b strings.Builder
	b.WriteString("\n  " + cyan.Render("pidlab") + dim.Render("  pid cart playground") + "\n\n")
	for i, p := range m.presets {
		b.WriteString(m.row(i, p.Name, fmt.Sprintf("kp %.1f  ki %.2f  kd %.1f  friction %.2f", p.Kp, p.Ki, p.Kd, p.Friction)))
	}
	g := m.session.Gains()
	b.WriteString(m.row(len(m.presets), "custom", fmt.Sprintf("kp %.1f  ki %.2f  kd %.1f", g.Kp, g.Ki, g.Kd)))

	if m.cursor < len(m.presets) {
		b.WriteString("\n  " + dim.Render(m.presets[m.cursor].Expected) + "\n")
	}
	if m.err != nil {
		b.WriteString("\n  " + magenta.Render(m.err.Error()) + "\n")
	}
	b.WriteString("\n  " + dim.Render("↑↓ select  enter start  q quit") + "\n")
	return b.String()
}

func (m app) row(i int, name, detail string) string {
	if i == m.cursor {
		return "  " + magenta.Render("▸ "+name) + "  " + white.Render(detail) + "\n"
	}
	return "    " + white.Render(name) + "  " + dim.Render(detail) + "\n"
}

// RunInteractive opens the preset menu in the alternate screen.
func RunInteractive(s *sim.Session, presets []dynamo.Preset) error {
	_, err := tea.NewProgram(NewInteractiveApp(s, presets), tea.WithAltScreen()).Run()
	return err
}

// RunLive opens the live view directly.
func RunLive(s *sim.Session, presets []dynamo.Preset) error {
	_, err := tea.NewProgram(NewModel(s, presets), tea.WithAltScreen()).Run()
	return err
}
