package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"fsbench/internal/runner"
	"fsbench/internal/storage"
	"fsbench/internal/tui/history"
	"fsbench/internal/tui/live"
	"fsbench/internal/tui/styles"
)

type ClearStatusMsg struct{}

func clearStatusCmd() tea.Cmd {
	return tea.Tick(3*time.Second, func(_ time.Time) tea.Msg {
		return ClearStatusMsg{}
	})
}

// View Enum
type ViewID int

const (
	ViewLive ViewID = iota
	ViewHistory
)

type EventMsg runner.Event

type RunDoneMsg struct {
	Dataset *storage.RunDataset
	Err     error
}

// FinishFunc runs once the orchestrator returned, before the history view is
// refreshed. Its message is shown in the status line.
type FinishFunc func(ds *storage.RunDataset, err error) string

type Model struct {
	Orch   *runner.Orchestrator
	Store  *storage.Store
	Finish FinishFunc

	RunCtx    context.Context
	RunCancel context.CancelFunc
	RunActive bool

	Dataset *storage.RunDataset
	Err     error

	Width  int
	Height int

	CurrentView ViewID
	MenuItems   []string

	LiveView    live.Model
	HistoryView history.Model

	StatusMsg string
}

func NewModel(ctx context.Context, o *runner.Orchestrator, store *storage.Store, finish FinishFunc) Model {
	runCtx, cancel := context.WithCancel(ctx)
	return Model{
		Orch:        o,
		Store:       store,
		Finish:      finish,
		RunCtx:      runCtx,
		RunCancel:   cancel,
		RunActive:   true,
		CurrentView: ViewLive,
		MenuItems:   []string{"[1] Live", "[2] History"},
		LiveView:    live.NewModel(o.Cfg),
		HistoryView: history.NewModel(store),
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(
		m.LiveView.Init(),
		runCmd(m.RunCtx, m.Orch),
		waitForUpdate(m.Orch.Updates),
	)
}

func runCmd(ctx context.Context, o *runner.Orchestrator) tea.Cmd {
	return func() tea.Msg {
		ds, err := o.Run(ctx)
		return RunDoneMsg{Dataset: ds, Err: err}
	}
}

func waitForUpdate(sub runner.EventChan) tea.Cmd {
	return func() tea.Msg {
		return EventMsg(<-sub)
	}
}

// Result is the outcome of the run once the program has exited.
func (m Model) Result() (*storage.RunDataset, error) {
	return m.Dataset, m.Err
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case ClearStatusMsg:
		m.StatusMsg = ""
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			m.RunCancel()
			if m.RunActive {
				m.Err = context.Canceled
			}
			return m, tea.Quit

		case "q":
			if !m.RunActive {
				return m, tea.Quit
			}
			m.StatusMsg = "Run in progress, Ctrl+S stops it."
			return m, clearStatusCmd()

		case "ctrl+s":
			if m.RunActive {
				m.RunCancel()
				m.StatusMsg = "Stopping: workers finish their current operation..."
			}
			return m, nil

		case "1":
			m.CurrentView = ViewLive
			return m, nil
		case "2", "ctrl+h":
			m.HistoryView.Refresh()
			m.CurrentView = ViewHistory
			return m, nil
		case "tab":
			m.CurrentView = (m.CurrentView + 1) % 2
			if m.CurrentView == ViewHistory {
				m.HistoryView.Refresh()
			}
			return m, nil
		}

	case tea.WindowSizeMsg:
		m.Width = msg.Width
		m.Height = msg.Height
		inner := tea.WindowSizeMsg{Width: msg.Width - 4, Height: msg.Height - 8}
		m.LiveView, _ = m.LiveView.Update(inner)
		m.HistoryView, _ = m.HistoryView.Update(inner)
		return m, nil

	case EventMsg:
		var c tea.Cmd
		m.LiveView, c = m.LiveView.Update(runner.Event(msg))
		cmds = append(cmds, c, waitForUpdate(m.Orch.Updates))
		return m, tea.Batch(cmds...)

	case RunDoneMsg:
		m.RunActive = false
		m.Dataset, m.Err = msg.Dataset, msg.Err
		m.LiveView, _ = m.LiveView.Update(runner.Event{Kind: runner.EventProgress, State: m.Orch.State(), Slot: -1, Stats: m.Orch.Snapshot()})

		switch {
		case msg.Err == nil:
			m.StatusMsg = "Run merged."
		case errors.Is(msg.Err, runner.ErrWorkersFailed):
			m.StatusMsg = "Run finished with failed workers; dataset is partial."
		default:
			m.StatusMsg = fmt.Sprintf("Run failed: %v", msg.Err)
		}
		if m.Finish != nil {
			if note := m.Finish(msg.Dataset, msg.Err); note != "" {
				m.StatusMsg += " " + note
			}
		}
		m.HistoryView.Refresh()
		return m, nil
	}

	// Forward all other messages (FrameMsg, spinner ticks, table keys)
	var defaultCmd tea.Cmd
	switch m.CurrentView {
	case ViewLive:
		m.LiveView, defaultCmd = m.LiveView.Update(msg)
	case ViewHistory:
		m.HistoryView, defaultCmd = m.HistoryView.Update(msg)
	}
	cmds = append(cmds, defaultCmd)

	return m, tea.Batch(cmds...)
}

func (m Model) View() string {
	if m.Width == 0 {
		return "Loading..."
	}

	nav := strings.Builder{}
	for i, item := range m.MenuItems {
		if ViewID(i) == m.CurrentView {
			nav.WriteString(styles.TabActive.Render(item))
		} else {
			nav.WriteString(styles.TabBase.Render(item))
		}
	}
	navBar := styles.FooterBase.Width(m.Width).Render(nav.String())

	contentStr := ""
	switch m.CurrentView {
	case ViewLive:
		contentStr = m.LiveView.View()
	case ViewHistory:
		contentStr = m.HistoryView.View()
	}
	content := styles.Panel.Width(m.Width - 2).Render(contentStr)

	keys := []string{
		styles.RenderKey("Tab", "View"),
		styles.RenderKey("Ctrl+S", "Stop"),
		styles.RenderKey("q", "Quit when done"),
		styles.RenderKey("Ctrl+C", "Abort"),
	}
	footer := styles.FooterBase.Width(m.Width).Render(strings.Join(keys, "   "))

	if m.StatusMsg != "" {
		status := styles.Box.BorderForeground(styles.ColorHighlight).Render(m.StatusMsg)
		return lipgloss.JoinVertical(lipgloss.Left, navBar, content, status, footer)
	}
	return lipgloss.JoinVertical(lipgloss.Left, navBar, content, footer)
}
