package ui

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/muurk/trellis/internal/server"
)

// DefaultRefresh is how often the monitor polls the server.
const DefaultRefresh = time.Second

// StatsSource returns the server's current counters.
type StatsSource func() server.Stats

type tickMsg time.Time

// MonitorModel is a Bubble Tea model showing live server counters. It quits
// on q, esc or ctrl+c and once the server reports it has stopped.
type MonitorModel struct {
	title    string
	source   StatsSource
	interval time.Duration
	started  time.Time

	stats    server.Stats
	workers  progress.Model
	width    int
	quitting bool
}

// NewMonitorModel creates a monitor polling source every interval.
func NewMonitorModel(title string, source StatsSource, interval time.Duration) MonitorModel {
	if interval <= 0 {
		interval = DefaultRefresh
	}
	return MonitorModel{
		title:    title,
		source:   source,
		interval: interval,
		started:  time.Now(),
		stats:    source(),
		workers: progress.New(
			progress.WithDefaultGradient(),
			progress.WithWidth(30),
			progress.WithoutPercentage(),
		),
		width: GetTerminalWidth(),
	}
}

func (m MonitorModel) tick() tea.Cmd {
	return tea.Tick(m.interval, func(t time.Time) tea.Msg { return tickMsg(t) })
}

// Init implements tea.Model
func (m MonitorModel) Init() tea.Cmd {
	return m.tick()
}

// Update implements tea.Model
func (m MonitorModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "esc", "ctrl+c":
			m.quitting = true
			return m, tea.Quit
		}
	case tea.WindowSizeMsg:
		m.width = clampWidth(msg.Width)
	case tickMsg:
		m.stats = m.source()
		if !m.stats.Running {
			m.quitting = true
			return m, tea.Quit
		}
		return m, m.tick()
	}
	return m, nil
}

// Stats returns the most recent snapshot.
func (m MonitorModel) Stats() server.Stats {
	return m.stats
}

// View implements tea.Model
func (m MonitorModel) View() string {
	s := m.stats

	status := StatusRunningStyle.Render(RunningMarker + " running")
	if !s.Running {
		status = StatusStoppedStyle.Render(FailureMarker + " stopped")
	}

	header := NewHeader(m.title, s.Address, nil).SetWidth(m.width).Render()

	occupancy := 0.0
	if s.Workers > 0 {
		occupancy = float64(s.RunningWorkers) / float64(s.Workers)
	}

	rows := [][2]string{
		{"Status", status},
		{"Uptime", time.Since(m.started).Truncate(time.Second).String()},
		{"Connections", fmt.Sprintf("%d open, %d accepted, %d closed", s.ActiveConnections, s.Registered, s.Deregistered)},
		{"Sessions", fmt.Sprintf("%d", s.ClientSessions)},
		{"Pending", fmt.Sprintf("%d tasks", s.PendingTasks)},
		{"Workers", fmt.Sprintf("%s %d/%d", m.workers.ViewAs(occupancy), s.RunningWorkers, s.Workers)},
	}

	var b strings.Builder
	b.WriteString(header)
	b.WriteString("\n\n")
	for _, r := range rows {
		b.WriteString(ResultKeyStyle.Render("  "+r[0]+":") + " " + ResultValueStyle.Render(r[1]) + "\n")
	}
	b.WriteString("\n")
	if m.quitting {
		b.WriteString(HelpStyle.Render("  stopping...") + "\n")
	} else {
		b.WriteString(HelpStyle.Render("  q to stop the server") + "\n")
	}
	return b.String()
}

// RunMonitor shows the monitor until the user quits, the server stops or ctx
// ends. Cancellation of ctx is not an error.
func RunMonitor(ctx context.Context, title string, source StatsSource, out io.Writer) error {
	opts := []tea.ProgramOption{tea.WithContext(ctx)}
	if out != nil {
		opts = append(opts, tea.WithOutput(out))
	}
	p := tea.NewProgram(NewMonitorModel(title, source, DefaultRefresh), opts...)
	_, err := p.Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}
