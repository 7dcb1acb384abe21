package live

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"fsbench/internal/runner"
	"fsbench/internal/tui/components"
	"fsbench/internal/tui/styles"
)

type SlotState int

const (
	SlotPending SlotState = iota
	SlotRunning
	SlotCompleted
	SlotFailed
)

func (s SlotState) String() string {
	switch s {
	case SlotRunning:
		return "running"
	case SlotCompleted:
		return "completed"
	case SlotFailed:
		return "failed"
	default:
		return "pending"
	}
}

type Slot struct {
	UniqueID string
	State    SlotState
	Records  int
	Err      string
}

// Model renders one orchestrated run as it happens.
type Model struct {
	Stats    runner.StatsSnapshot
	State    runner.State
	Slots    []Slot
	Progress progress.Model
	Spinner  spinner.Model

	OpsLine     components.Sparkline
	LatencyLine components.Sparkline

	StartTime  time.Time
	LastUpdate time.Time
	LastOps    uint64

	Width  int
	Height int
}

func NewModel(cfg runner.Config) Model {
	slots := make([]Slot, len(cfg.Workers))
	for i, w := range cfg.Workers {
		slots[i] = Slot{UniqueID: w.UniqueID()}
	}

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = styles.Active

	return Model{
		Slots: slots,
		Progress: progress.New(
			progress.WithGradient("#7D56F4", "#04B575"),
			progress.WithWidth(40),
		),
		Spinner:     sp,
		OpsLine:     components.NewSparkline(40, "Ops/s", "ops/s", styles.Active),
		LatencyLine: components.NewSparkline(40, "Latency P90", "ms", styles.Warn),
		StartTime:   time.Now(),
		LastUpdate:  time.Now(),
	}
}

func (m Model) Init() tea.Cmd {
	return m.Spinner.Tick
}

// Finished reports whether the run reached a terminal state.
func (m Model) Finished() bool {
	return m.State == runner.Merged || m.State == runner.Failed
}

func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case runner.Event:
		return m.applyEvent(msg)

	case tea.WindowSizeMsg:
		m.Width = msg.Width
		m.Height = msg.Height
		m.Progress.Width = msg.Width - 8

		half := (msg.Width / 2) - 8
		if half < 10 {
			half = 10
		}
		m.OpsLine.Width = half
		m.LatencyLine.Width = half
		return m, nil

	case progress.FrameMsg:
		prog, cmd := m.Progress.Update(msg)
		m.Progress = prog.(progress.Model)
		return m, cmd

	case spinner.TickMsg:
		if m.Finished() {
			return m, nil
		}
		var cmd tea.Cmd
		m.Spinner, cmd = m.Spinner.Update(msg)
		return m, cmd
	}

	return m, nil
}

func (m Model) applyEvent(ev runner.Event) (Model, tea.Cmd) {
	m.State = ev.State
	if ev.Slot >= 0 && ev.Slot < len(m.Slots) {
		s := &m.Slots[ev.Slot]
		switch ev.Kind {
		case runner.EventLaunched:
			s.State = SlotRunning
		case runner.EventCompleted:
			s.State = SlotCompleted
			s.Records = ev.Records
		case runner.EventFailed:
			s.State = SlotFailed
			if ev.Err != nil {
				s.Err = ev.Err.Error()
			}
		}
	}

	if ev.Kind != runner.EventProgress {
		return m, m.Progress.SetPercent(m.finishedRatio())
	}

	now := time.Now()
	dt := now.Sub(m.LastUpdate).Seconds()
	if dt < 0.01 {
		dt = 0.01
	}
	ops := ev.Stats.Operations
	delta := uint64(0)
	if ops > m.LastOps {
		delta = ops - m.LastOps
	}
	m.OpsLine.Add(float64(delta) / dt)
	m.LatencyLine.Add(ev.Stats.P90Ms)

	m.Stats = ev.Stats
	m.LastOps = ops
	m.LastUpdate = now
	return m, m.Progress.SetPercent(m.finishedRatio())
}

func (m Model) finishedRatio() float64 {
	if len(m.Slots) == 0 {
		return 0
	}
	done := 0
	for _, s := range m.Slots {
		if s.State == SlotCompleted || s.State == SlotFailed {
			done++
		}
	}
	return float64(done) / float64(len(m.Slots))
}

func (m Model) View() string {
	s := strings.Builder{}

	header := fmt.Sprintf("%s %s  %s", m.Spinner.View(), styles.Title.Render(strings.ToUpper(m.State.String())),
		styles.Subtle.Render(time.Since(m.StartTime).Round(time.Second).String()))
	if m.Finished() {
		header = styles.Title.Render(strings.ToUpper(m.State.String()))
	}
	s.WriteString(header)
	s.WriteString("\n\n")

	// Top Grid: Metrics
	errRate := 0.0
	if m.Stats.Operations > 0 {
		errRate = float64(m.Stats.Fail) / float64(m.Stats.Operations) * 100
	}
	errColor := styles.Active
	if errRate > 5.0 {
		errColor = styles.Error
	} else if errRate > 1.0 {
		errColor = styles.Warn
	}

	col1 := fmt.Sprintf("OPS: %s\nACTIVE: %d", humanize.Comma(int64(m.Stats.Operations)), m.Stats.Active)
	col2 := fmt.Sprintf("ERR: %.2f%%\nFAIL: %d", errRate, m.Stats.Fail)
	col3 := fmt.Sprintf("BYTES: %s\nWORKERS: %d/%d", humanize.IBytes(m.Stats.Bytes), m.Stats.Completed+m.Stats.FailedWorkers, len(m.Slots))

	s.WriteString(lipgloss.JoinHorizontal(lipgloss.Top,
		styles.Box.Render(col1),
		styles.Box.Render(errColor.Render(col2)),
		styles.Box.Render(col3),
	))
	s.WriteString("\n\n")

	s.WriteString(lipgloss.JoinHorizontal(lipgloss.Top,
		styles.Box.Render(m.OpsLine.View()),
		styles.Box.Render(m.LatencyLine.View()),
	))
	s.WriteString("\n\n")

	latencies := fmt.Sprintf(
		"P50: %.2f ms  |  P90: %.2f ms  |  P99: %.2f ms  |  Max: %.2f ms",
		m.Stats.P50Ms, m.Stats.P90Ms, m.Stats.P99Ms, m.Stats.MaxMs,
	)
	s.WriteString(styles.Box.Render(latencies))
	s.WriteString("\n\n")

	s.WriteString(m.slotsView())
	s.WriteString("\n")
	s.WriteString(m.Progress.View())
	return s.String()
}

func (m Model) slotsView() string {
	var b strings.Builder
	for i, slot := range m.Slots {
		st := styles.SlotPending
		switch slot.State {
		case SlotRunning:
			st = styles.SlotRunning
		case SlotCompleted:
			st = styles.SlotCompleted
		case SlotFailed:
			st = styles.SlotFailed
		}
		line := fmt.Sprintf("%3d  %-32s %-10s", i, slot.UniqueID, st.Render(slot.State.String()))
		if slot.State == SlotCompleted {
			line += styles.Subtle.Render(fmt.Sprintf(" %d ops", slot.Records))
		}
		if slot.Err != "" {
			line += " " + styles.Error.Render(slot.Err)
		}
		b.WriteString(line)
		b.WriteString("\n")
	}
	return b.String()
}
