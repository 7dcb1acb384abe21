package history

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"fsbench/internal/storage"
	"fsbench/internal/tui/styles"
)

// Model lists the runs kept in the bbolt index, newest first.
type Model struct {
	Store *storage.Store
	Table table.Model
	Err   error

	Width  int
	Height int
}

func NewModel(store *storage.Store) Model {
	columns := []table.Column{
		{Title: "Started", Width: 20},
		{Title: "Run ID", Width: 28},
		{Title: "Status", Width: 8},
		{Title: "Workers", Width: 8},
		{Title: "Missing", Width: 8},
		{Title: "Ops", Width: 8},
		{Title: "Failed", Width: 8},
	}

	t := table.New(
		table.WithColumns(columns),
		table.WithFocused(true),
		table.WithHeight(10),
	)

	s := table.DefaultStyles()
	s.Header = s.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(styles.ColorBorder).
		BorderBottom(true).
		Bold(true).
		Foreground(styles.ColorPrimary)
	s.Selected = s.Selected.
		Foreground(styles.ColorBg).
		Background(styles.ColorPrimary).
		Bold(true)
	t.SetStyles(s)

	m := Model{
		Store: store,
		Table: t,
	}
	m.Refresh()
	return m
}

func Rows(items []storage.RunSummary) []table.Row {
	rows := make([]table.Row, len(items))
	for i, item := range items {
		rows[i] = table.Row{
			item.StartedAt.Format("2006-01-02 15:04:05"),
			item.RunID,
			item.Status,
			fmt.Sprintf("%d", item.Workers),
			fmt.Sprintf("%d", item.Missing),
			fmt.Sprintf("%d", item.Records),
			fmt.Sprintf("%d", item.Failed),
		}
	}
	return rows
}

func (m *Model) Refresh() {
	if m.Store == nil {
		return
	}
	items, err := m.Store.List()
	m.Err = err
	m.Table.SetRows(Rows(items))
}

func (m Model) Init() tea.Cmd {
	return nil
}

func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	var cmd tea.Cmd
	if msg, ok := msg.(tea.WindowSizeMsg); ok {
		m.Width = msg.Width
		m.Height = msg.Height
		m.Table.SetWidth(msg.Width - 4)
		if msg.Height > 12 {
			m.Table.SetHeight(msg.Height - 8)
		}
	}

	m.Table, cmd = m.Table.Update(msg)
	return m, cmd
}

func (m Model) View() string {
	s := strings.Builder{}
	s.WriteString(styles.Title.Render("📜 Past Runs"))
	s.WriteString("\n\n")

	switch {
	case m.Err != nil:
		s.WriteString(styles.Error.Render(m.Err.Error()))
	case len(m.Table.Rows()) == 0:
		s.WriteString(styles.Subtle.Render("No history found.\nRun a benchmark to generate data."))
	default:
		s.WriteString(styles.Box.Render(m.Table.View()))
	}
	return s.String()
}
