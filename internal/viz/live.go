package viz

import (
	"fmt"
	"math"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/guptarohit/asciigraph"

	"github.com/san-kum/pidlab/internal/dynamo"
	"github.com/san-kum/pidlab/internal/sim"
)

const (
	canvasWidth  = 60
	canvasHeight = 6
	chartWidth   = 60
	frameRate    = 60

	gainUp       = 1.05
	gainDown     = 0.95
	gainSeed     = 0.01
	frictionStep = 0.05
	targetStep   = 1.0
	targetJump   = 5.0
)

var gainNames = [3]string{"Kp", "Ki", "Kd"}

type TickMsg time.Time

// Model drives a session from the terminal. Each TickMsg admits one tick;
// every key maps to one session command.
type Model struct {
	session  *sim.Session
	presets  []dynamo.Preset
	theme    Theme
	canvas   *Canvas
	selected int
	message  string
	showHelp bool
	width    int
}

// NewModel wraps a session. presets are bound to the keys 1 to 9 in order.
func NewModel(s *sim.Session, presets []dynamo.Preset) Model {
	return Model{
		session: s,
		presets: presets,
		theme:   Themes[0],
		canvas:  NewCanvas(canvasWidth, canvasHeight),
		width:   100,
	}
}

func tick() tea.Cmd {
	return tea.Tick(time.Second/frameRate, func(t time.Time) tea.Msg { return TickMsg(t) })
}

func (m Model) Init() tea.Cmd {
	return tick()
}

// Update handles input events and steps the simulation.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == "q" || msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
		m.handleKey(msg.String())
	case tea.WindowSizeMsg:
		m.width = msg.Width
	case TickMsg:
		m.session.Step()
		return m, tick()
	}
	return m, nil
}

func (m *Model) handleKey(key string) {
	s := m.session
	m.message = ""

	switch key {
	case " ":
		s.Toggle()
	case "r":
		s.Reset()
	case "d":
		s.AddDisturbance(s.DisturbanceForce())
	case "D":
		s.AddDisturbance(-s.DisturbanceForce())
	case "a":
		m.report(s.SetAutoStep(!s.AutoStep()))
	case "left":
		m.nudgeTarget(-targetStep)
	case "right":
		m.nudgeTarget(targetStep)
	case "H":
		m.nudgeTarget(-targetJump)
	case "L":
		m.nudgeTarget(targetJump)
	case "tab":
		m.selected = (m.selected + 1) % len(gainNames)
	case "up", "k":
		m.scaleGain(gainUp)
	case "down", "j":
		m.scaleGain(gainDown)
	case "f":
		m.report(s.SetFriction(math.Max(0, s.Cart().Friction-frictionStep)))
	case "F":
		m.report(s.SetFriction(s.Cart().Friction + frictionStep))
	case "t":
		m.theme = NextTheme(m.theme)
	case "?":
		m.showHelp = !m.showHelp
	default:
		if len(key) == 1 && key[0] >= '1' && key[0] <= '9' {
			idx := int(key[0] - '1')
			if idx < len(m.presets) {
				m.report(s.ApplyPreset(m.presets[idx]))
				if m.message == "" {
					m.message = "preset " + m.presets[idx].Name
				}
			}
		}
	}
}

func (m *Model) report(err error) {
	if err != nil {
		m.message = err.Error()
	}
}

// nudgeTarget moves the target and clamps it to the rail.
func (m *Model) nudgeTarget(delta float64) {
	cart := m.session.Cart()
	target := m.session.Target() + delta
	target = math.Max(cart.MinPosition, math.Min(cart.MaxPosition, target))
	m.report(m.session.SetTarget(target))
}

// scaleGain multiplies the selected gain. A zero gain is seeded with a small
// positive value so it can be raised.
func (m *Model) scaleGain(factor float64) {
	g := m.session.Gains()
	vals := [3]*float64{&g.Kp, &g.Ki, &g.Kd}
	v := vals[m.selected]
	if *v == 0 && factor > 1 {
		*v = gainSeed
	} else {
		*v *= factor
	}
	m.session.SetGains(g)
}

// View renders the TUI interface.
func (m Model) View() string {
	st := m.theme.styles()
	v := m.session.Snapshot()
	cart := m.session.Cart()
	history := m.session.History()

	m.canvas.DrawRail(v.State.Position, v.Target, cart.MinPosition, cart.MaxPosition)

	var left strings.Builder
	left.WriteString(st.header.Render("PID CART") + "\n")
	left.WriteString(st.panel.Render(strings.TrimRight(m.canvas.String(), "\n")) + "\n")
	if len(history) > 1 {
		pos := make([]float64, len(history))
		tgt := make([]float64, len(history))
		errs := make([]float64, len(history))
		for i, smp := range history {
			pos[i], tgt[i], errs[i] = smp.Position, smp.Target, smp.Error
		}
		chart := asciigraph.PlotMany([][]float64{tgt, pos},
			asciigraph.Height(8), asciigraph.Width(chartWidth),
			asciigraph.SeriesColors(asciigraph.Red, asciigraph.Cyan),
			asciigraph.Caption("target / position"))
		left.WriteString(st.graph.Render(chart) + "\n")
		left.WriteString(st.muted.Render("error ") + SparklineChart(errs, chartWidth) + "\n")
	}

	var right strings.Builder
	status := st.running.Render("RUNNING")
	if !v.Running {
		status = st.paused.Render("PAUSED")
	}
	if v.AutoStep {
		status += st.muted.Render("  auto-step")
	}
	right.WriteString(status + "\n\n")

	row := func(label, value string) {
		right.WriteString(st.label.Render(label) + st.value.Render(value) + "\n")
	}
	row("Time", fmt.Sprintf("%.2fs", v.Time))
	row("Target", fmt.Sprintf("%.1f", v.Target))
	row("Position", fmt.Sprintf("%.2f", v.State.Position))
	row("Velocity", fmt.Sprintf("%.2f", v.State.Velocity))
	row("Error", fmt.Sprintf("%.2f", v.Target-v.State.Position))
	row("Disturbance", fmt.Sprintf("%.2f", v.State.Disturbance))
	row("Friction", fmt.Sprintf("%.2f", v.Friction))

	right.WriteString("\n" + st.header.Render("GAINS"))
	for i, g := range []float64{v.Gains.Kp, v.Gains.Ki, v.Gains.Kd} {
		line := fmt.Sprintf("%-4s %.3f", gainNames[i], g)
		if i == m.selected {
			right.WriteString("\n" + st.active.Render("> "+line))
		} else {
			right.WriteString("\n  " + st.value.Render(line))
		}
	}
	right.WriteString("\n\n" + st.header.Render("TERMS"))
	right.WriteString("\n" + fmt.Sprintf("P %7.2f  I %7.2f  D %7.2f", v.Terms.P, v.Terms.I, v.Terms.D))
	right.WriteString("\n" + fmt.Sprintf("out %7.2f ", v.Terms.Output) + SaturationBar(v.Terms.Output, m.session.Controller().Limits.OutputMax, 12))

	right.WriteString("\n\n" + st.header.Render("METRICS") + "\n")
	row("Rise time", v.Metrics.RiseTime.String()+unit(v.Metrics.RiseTime.IsKnown(), "s"))
	row("Settling", v.Metrics.SettlingTime.String()+unit(v.Metrics.SettlingTime.IsKnown(), "s"))
	row("Overshoot", v.Metrics.Overshoot.String()+unit(v.Metrics.Overshoot.IsKnown(), "%"))
	row("SS error", v.Metrics.SteadyStateError.String())

	if m.message != "" {
		right.WriteString("\n" + st.warn.Render(m.message) + "\n")
	}
	right.WriteString(st.muted.Render("\nSP:Pause R:Reset D/d:Kick A:Auto Q:Quit\n←→ H/L:Target Tab ↑↓:Gain f/F:Friction 1-5:Preset ?:Help"))

	main := lipgloss.JoinHorizontal(lipgloss.Top, left.String(), "  ", st.panel.Render(right.String()))
	if m.showHelp {
		return helpText(m.presets) + "\n" + main
	}
	return main
}

func unit(known bool, u string) string {
	if known {
		return u
	}
	return ""
}

func helpText(presets []dynamo.Preset) string {
	var b strings.Builder
	b.WriteString(`Space  pause/resume        r    reset (keeps position)
d / D  kick cart + / -      a    toggle auto-step
← / →  target -1 / +1       H/L  target -5 / +5
Tab    select gain          ↑/↓  gain x1.05 / x0.95
f / F  friction -/+ 0.05    t    cycle theme
q      quit                 ?    toggle this help
`)
	for i, p := range presets {
		if i >= 9 {
			break
		}
		fmt.Fprintf(&b, "%d      %-16s %s\n", i+1, p.Name, p.Expected)
	}
	return b.String()
}
