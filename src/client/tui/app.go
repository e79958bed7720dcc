// Package tui is the interactive session dashboard
package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/oneclickvirt/console/src/monitor"
	"github.com/oneclickvirt/console/src/session"
)

// Dracula colors
var (
	background = lipgloss.Color("#282a36")
	foreground = lipgloss.Color("#f8f8f2")
	selection  = lipgloss.Color("#44475a")
	comment    = lipgloss.Color("#6272a4")
	cyan       = lipgloss.Color("#8be9fd")
	green      = lipgloss.Color("#50fa7b")
	orange     = lipgloss.Color("#ffb86c")
	pink       = lipgloss.Color("#ff79c6")
	purple     = lipgloss.Color("#bd93f9")
	red        = lipgloss.Color("#ff5555")
	yellow     = lipgloss.Color("#f1fa8c")
)

var (
	titleStyle = lipgloss.NewStyle().
			Foreground(purple).
			Bold(true).
			Padding(0, 1)

	panelStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(comment).
			Padding(0, 1)

	labelStyle = lipgloss.NewStyle().
			Foreground(cyan)

	valueStyle = lipgloss.NewStyle().
			Foreground(foreground)

	adminStyle = lipgloss.NewStyle().
			Foreground(pink).
			Bold(true)

	okStyle = lipgloss.NewStyle().
		Foreground(green)

	warnStyle = lipgloss.NewStyle().
			Foreground(orange)

	helpStyle = lipgloss.NewStyle().
			Foreground(comment)

	errorStyle = lipgloss.NewStyle().
			Foreground(red)
)

// Session is what the dashboard reads and changes on the session
type Session interface {
	Snapshot() session.Snapshot
	DisplayName() string
	RoleText() string
	SwitchViewMode(mode session.ViewMode) (bool, error)
	OnChange(fn session.Listener) func()
}

// Monitor is what the dashboard shows and triggers on the status monitor
type Monitor interface {
	Status() monitor.Status
	LastCheck() time.Time
	ForceCheck(ctx context.Context) monitor.Outcome
	OnGainedFocus(ctx context.Context) monitor.Outcome
}

const maxEvents = 200

type model struct {
	ctx      context.Context
	session  Session
	monitor  Monitor
	spinner  spinner.Model
	viewport viewport.Model
	events   []string
	checking bool
	err      error
	width    int
	height   int
	now      func() time.Time
}

type tickMsg time.Time

type checkDoneMsg struct {
	outcome monitor.Outcome
}

// sessionChangedMsg is sent by the session listener
type sessionChangedMsg struct {
	prev, next session.Snapshot
}

func initialModel(ctx context.Context, s Session, m Monitor) model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(purple)

	return model{
		ctx:      ctx,
		session:  s,
		monitor:  m,
		spinner:  sp,
		viewport: viewport.New(60, 8),
		now:      time.Now,
	}
}

func tick() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (m model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, tick())
}

// check runs one monitor trigger off the update loop
func (m model) check(trigger func(context.Context) monitor.Outcome) tea.Cmd {
	ctx := m.ctx
	return func() tea.Msg {
		return checkDoneMsg{outcome: trigger(ctx)}
	}
}

func (m *model) logEvent(format string, args ...any) {
	line := m.now().Format(time.TimeOnly) + "  " + fmt.Sprintf(format, args...)
	m.events = append(m.events, line)
	if len(m.events) > maxEvents {
		m.events = m.events[len(m.events)-maxEvents:]
	}
	m.viewport.SetContent(strings.Join(m.events, "\n"))
	m.viewport.GotoBottom()
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			return m, tea.Quit
		case "r":
			if !m.checking {
				m.checking = true
				return m, m.check(m.monitor.ForceCheck)
			}
		case "v":
			m.toggleView()
		}

	case tea.FocusMsg:
		if !m.checking {
			m.checking = true
			cmds = append(cmds, m.check(m.monitor.OnGainedFocus))
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.viewport.Width = msg.Width - 4
		m.viewport.Height = max(msg.Height-14, 3)

	case checkDoneMsg:
		m.checking = false
		m.logEvent("check: %s", msg.outcome)

	case sessionChangedMsg:
		switch {
		case msg.prev.LoggedIn() && !msg.next.LoggedIn():
			m.logEvent("session ended")
		case msg.prev.ViewMode != msg.next.ViewMode:
			m.logEvent("view mode: %s", msg.next.ViewMode)
		case msg.prev.Role != msg.next.Role:
			m.logEvent("role: %s", msg.next.Role)
		}

	case tickMsg:
		cmds = append(cmds, tick())

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		cmds = append(cmds, cmd)
	}

	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	cmds = append(cmds, cmd)

	return m, tea.Batch(cmds...)
}

func (m *model) toggleView() {
	snap := m.session.Snapshot()
	next := session.ViewAdmin
	if snap.ViewMode == session.ViewAdmin {
		next = session.ViewUser
	}
	_, m.err = m.session.SwitchViewMode(next)
}

func (m model) renderSession() string {
	snap := m.session.Snapshot()
	var sb strings.Builder
	row := func(label, value string) {
		sb.WriteString(labelStyle.Render(fmt.Sprintf("%-10s", label)))
		sb.WriteString(value)
		sb.WriteString("\n")
	}

	if !snap.LoggedIn() {
		row("Session", warnStyle.Render("not logged in"))
		return strings.TrimRight(sb.String(), "\n")
	}
	row("User", valueStyle.Render(m.session.DisplayName()))
	role := valueStyle.Render(m.session.RoleText())
	if snap.Role == session.RoleAdmin {
		role = adminStyle.Render(m.session.RoleText())
	}
	row("Role", role)
	row("View", valueStyle.Render(string(snap.ViewMode)))
	if len(snap.Permissions) > 0 {
		row("Perms", valueStyle.Render(strings.Join(snap.Permissions, ", ")))
	}
	return strings.TrimRight(sb.String(), "\n")
}

func (m model) renderMonitor() string {
	status := warnStyle.Render(string(m.monitor.Status()))
	if m.monitor.Status() == monitor.StatusRunning {
		status = okStyle.Render(string(monitor.StatusRunning))
	}
	last := "never"
	if t := m.monitor.LastCheck(); !t.IsZero() {
		last = m.now().Sub(t).Truncate(time.Second).String() + " ago"
	}
	line := labelStyle.Render(fmt.Sprintf("%-10s", "Monitor")) + status + "  " +
		labelStyle.Render("last check ") + valueStyle.Render(last)
	if m.checking {
		line += "  " + m.spinner.View() + helpStyle.Render("checking")
	}
	return line
}

func (m model) View() string {
	var sb strings.Builder

	sb.WriteString(titleStyle.Render("OneClickVirt Console"))
	sb.WriteString("\n\n")
	sb.WriteString(panelStyle.Render(m.renderSession()))
	sb.WriteString("\n")
	sb.WriteString(m.renderMonitor())
	sb.WriteString("\n\n")
	sb.WriteString(m.viewport.View())
	sb.WriteString("\n")
	if m.err != nil {
		sb.WriteString(errorStyle.Render(fmt.Sprintf("Error: %v", m.err)))
		sb.WriteString("\n")
	}
	sb.WriteString(helpStyle.Render("r: check now • v: switch view • q: quit"))

	return sb.String()
}

// Run starts the dashboard and blocks until the user quits
func Run(ctx context.Context, s Session, m Monitor) error {
	p := tea.NewProgram(initialModel(ctx, s, m), tea.WithAltScreen(), tea.WithReportFocus(), tea.WithContext(ctx))
	unsubscribe := s.OnChange(func(prev, next session.Snapshot) {
		p.Send(sessionChangedMsg{prev: prev, next: next})
	})
	defer unsubscribe()

	_, err := p.Run()
	return err
}
