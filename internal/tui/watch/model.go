// Package watch is a terminal viewer for a user's registered paths, polling
// the depot HTTP API.
package watch

import (
	"fmt"
	"math"
	"path/filepath"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/outpost-sim/depot/internal/registry"
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212"))
	okStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	errStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	helpStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	frameStyle = lipgloss.NewStyle().Margin(1, 2)
)

// HealthState tracks the last /healthz probe.
type HealthState struct {
	Status        string
	UptimeSeconds int64
	Connected     bool
	LastCheck     time.Time
}

// Model is the main BubbleTea model for the watch TUI.
type Model struct {
	apiURL string
	user   string
	token  string

	width  int
	height int

	health    HealthState
	entries   []registry.Entry
	table     table.Model
	spinner   spinner.Model
	lastError string
}

// New creates a new watch TUI model.
func New(apiURL, user, token string) *Model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot

	tbl := table.New(
		table.WithColumns([]table.Column{
			{Title: "Path", Width: 28},
			{Title: "Artifact", Width: 20},
			{Title: "Age", Width: 10},
			{Title: "Holding", Width: 10},
			{Title: "Expires", Width: 10},
		}),
		table.WithFocused(true),
		table.WithHeight(12),
	)

	return &Model{
		apiURL:  apiURL,
		user:    user,
		token:   token,
		table:   tbl,
		spinner: sp,
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(
		m.spinner.Tick,
		func() tea.Msg { return fetchHealth(m.apiURL) },
		func() tea.Msg { return fetchInfos(m.apiURL, m.user, m.token) },
		tea.Tick(time.Second, func(t time.Time) tea.Msg { return tickMsg(t) }),
		tea.EnterAltScreen,
	)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "r":
			return m, func() tea.Msg { return fetchInfos(m.apiURL, m.user, m.token) }
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case tickMsg:
		m.table.SetRows(m.rows())
		return m, tea.Tick(time.Second, func(t time.Time) tea.Msg { return tickMsg(t) })

	case healthMsg:
		m.health.Status = msg.Status
		m.health.UptimeSeconds = msg.UptimeSeconds
		m.health.Connected = true
		m.health.LastCheck = time.Now()
		m.lastError = ""
		return m, tea.Tick(5*time.Second, func(t time.Time) tea.Msg {
			return fetchHealth(m.apiURL)
		})

	case infosMsg:
		m.entries = msg
		m.table.SetRows(m.rows())
		return m, tea.Tick(2*time.Second, func(t time.Time) tea.Msg {
			return fetchInfos(m.apiURL, m.user, m.token)
		})

	case errMsg:
		m.health.Connected = false
		m.lastError = msg.Error()
		return m, tea.Tick(5*time.Second, func(t time.Time) tea.Msg {
			return fetchHealth(m.apiURL)
		})

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

func (m Model) View() string {
	if m.width == 0 {
		return "Connecting to depot..."
	}

	status := errStyle.Render("● disconnected")
	if m.health.Connected {
		status = okStyle.Render(fmt.Sprintf("● %s  up %s", m.health.Status,
			(time.Duration(m.health.UptimeSeconds) * time.Second).String()))
	}

	header := lipgloss.JoinHorizontal(lipgloss.Center,
		titleStyle.Render("depot watch"),
		"  ", m.spinner.View(), " ",
		status,
		helpStyle.Render(fmt.Sprintf("  user=%s paths=%d", m.user, len(m.entries))),
	)

	var errBar string
	if m.lastError != "" {
		errBar = errStyle.Render(" ⚠ " + m.lastError)
	}

	help := helpStyle.Render(" [q] Quit • [r] Refresh • [↑/↓] Navigate")

	parts := []string{header, m.table.View()}
	if errBar != "" {
		parts = append(parts, errBar)
	}
	parts = append(parts, help)

	return frameStyle.Render(lipgloss.JoinVertical(lipgloss.Left, parts...))
}

// rows shapes the current entries into table rows with live age and expiry.
func (m Model) rows() []table.Row {
	now := float64(time.Now().UnixNano()) / 1e9
	rows := make([]table.Row, 0, len(m.entries))
	for _, e := range m.entries {
		rows = append(rows, table.Row{
			e.Path,
			filepath.Base(e.File),
			fmtSeconds(now - e.Created),
			fmtSeconds(e.Holding.Seconds()),
			fmtExpiry(e, now),
		})
	}
	return rows
}

func fmtSeconds(s float64) string {
	if math.IsInf(s, 1) {
		return "inf"
	}
	if s < 0 {
		s = 0
	}
	// Convert after scaling so fractional seconds survive; whole-second
	// durations still display without a fractional tail.
	d := time.Duration(s * float64(time.Second))
	if d >= time.Second {
		d = d.Truncate(time.Second)
	}
	return d.String()
}

func fmtExpiry(e registry.Entry, now float64) string {
	if e.Holding.IsInfinite() {
		return "never"
	}
	left := e.Created + e.Holding.Seconds() - now
	if left <= 0 {
		return "expired"
	}
	return fmtSeconds(left)
}
