// Package ui is the live telemetry dashboard spec.md §5 wants wired to a
// real TUI library: a bubbletea model that redraws as sched.Snapshot values
// arrive over a channel, ported from the teacher's build-pipeline progress
// view and repointed at run-queue depth, wait-queue depth, niced-task
// count, and wakeup throughput instead of per-file compile stages.
package ui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	"reactor/internal/clock"
	"reactor/internal/sched"
)

const budgetForDisplay = 200 // mirrors sched's maxBudget; only used to scale the bar

type model struct {
	title   string
	feed    <-chan sched.Snapshot
	spinner spinner.Model
	prog    progress.Model

	latest    sched.Snapshot
	haveFirst bool
	prevTicks uint32
	prevAt    time.Time
	rateHz    float64

	width int
	done  bool
}

type snapshotMsg sched.Snapshot
type doneMsg struct{}

// NewModel returns a Bubble Tea model that renders scheduler telemetry as
// snapshots arrive on feed.
func NewModel(title string, feed <-chan sched.Snapshot) tea.Model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("6"))

	prog := progress.New(progress.WithDefaultGradient())
	prog.Width = 76

	return &model{
		title:   title,
		feed:    feed,
		spinner: sp,
		prog:    prog,
		width:   80,
	}
}

// Run starts a bubbletea program reading from feed until it's closed.
func Run(feed <-chan sched.Snapshot) error {
	_, err := tea.NewProgram(NewModel("reactor", feed)).Run()
	return err
}

func (m *model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.listenForSnapshot())
}

func (m *model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case snapshotMsg:
		cmd := m.applySnapshot(sched.Snapshot(msg))
		return m, tea.Batch(cmd, m.listenForSnapshot())
	case doneMsg:
		m.done = true
		return m, tea.Quit
	case spinner.TickMsg:
		if m.done {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	case tea.WindowSizeMsg:
		if msg.Width > 0 {
			m.width = msg.Width
			m.prog.Width = msg.Width - 4
		}
		return m, nil
	case progress.FrameMsg:
		progModel, cmd := m.prog.Update(msg)
		m.prog = progModel.(progress.Model)
		return m, cmd
	}
	return m, nil
}

func (m *model) View() string {
	if !m.haveFirst {
		return fmt.Sprintf("%s waiting for the first snapshot...\n", m.spinner.View())
	}
	titleStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("7"))
	header := m.title
	if m.done {
		header = fmt.Sprintf("done: %s", header)
	} else {
		header = fmt.Sprintf("%s %s", m.spinner.View(), header)
	}

	labelWidth := 18
	var b strings.Builder
	b.WriteString(titleStyle.Render(header))
	b.WriteString("\n\n")
	b.WriteString(statLine(labelWidth, "run queue depth", fmt.Sprintf("%d", m.latest.RunQueueDepth)))
	b.WriteString(statLine(labelWidth, "wait queue depth", fmt.Sprintf("%d", m.latest.WaitQueueDepth)))
	b.WriteString(statLine(labelWidth, "niced tasks", fmt.Sprintf("%d", m.latest.NiceTasks)))
	b.WriteString(statLine(labelWidth, "live tasks", fmt.Sprintf("%d", m.latest.NbTasks)))
	b.WriteString(statLine(labelWidth, "wakeups/sec", fmt.Sprintf("%.1f", m.rateHz)))
	b.WriteString("\n")

	if m.done {
		b.WriteString(m.prog.ViewAs(1.0))
	} else {
		b.WriteString(m.prog.View())
	}
	b.WriteString("\n")
	return b.String()
}

func statLine(labelWidth int, label, value string) string {
	name := truncate(label, labelWidth)
	styled := lipgloss.NewStyle().Foreground(lipgloss.Color("6")).Render(fmt.Sprintf("%-*s", labelWidth, name))
	return fmt.Sprintf("  %s %s\n", styled, value)
}

func (m *model) listenForSnapshot() tea.Cmd {
	return func() tea.Msg {
		snap, ok := <-m.feed
		if !ok {
			return doneMsg{}
		}
		return snapshotMsg(snap)
	}
}

func (m *model) applySnapshot(snap sched.Snapshot) tea.Cmd {
	now := time.Now()
	if m.haveFirst {
		elapsed := now.Sub(m.prevAt).Seconds()
		if elapsed > 0 {
			delta := int32(snap.RqueueTicks - m.prevTicks)
			if delta >= 0 {
				m.rateHz = float64(delta) / elapsed
			}
		}
	}
	m.prevTicks = snap.RqueueTicks
	m.prevAt = now
	m.latest = snap
	m.haveFirst = true

	pct := float64(snap.RunQueueDepth) / float64(budgetForDisplay)
	if pct > 1 {
		pct = 1
	}
	return m.prog.SetPercent(pct)
}

// FeedSnapshots polls s every interval and sends its telemetry on out,
// closing out when ctx is done. clk is not read: sched.Snapshot carries no
// tick of its own.
func FeedSnapshots(ctx context.Context, s *sched.Scheduler, clk clock.Source, out chan<- sched.Snapshot) {
	defer close(out)
	const interval = 250 * time.Millisecond
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			select {
			case out <- s.TakeSnapshot():
			default:
			}
		}
	}
}

func truncate(value string, width int) string {
	if width <= 0 {
		return value
	}
	if runewidth.StringWidth(value) <= width {
		return value
	}
	if width <= 3 {
		return runewidth.Truncate(value, width, "")
	}
	return runewidth.Truncate(value, width-3, "...")
}
