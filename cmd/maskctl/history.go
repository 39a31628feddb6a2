package main

import (
	"context"
	"fmt"
	"strings"

	"garment-studio/internal/taskstore"
	"garment-studio/pkg/ui"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
)

var (
	historyRemote bool
	historyPage   int
	historyLimit  int
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Browse submitted tasks",
	Long: `Without flags, opens the tasks submitted from this machine in an
interactive table; Enter copies the first result URL. With --remote, prints
one page of the account's task history from the service.`,
	Args: cobra.NoArgs,
	RunE: runHistory,
}

func init() {
	historyCmd.Flags().BoolVarP(&historyRemote, "remote", "r", false, "list the service's history instead of the local one")
	historyCmd.Flags().IntVar(&historyPage, "page", 1, "remote history page")
	historyCmd.Flags().IntVar(&historyLimit, "limit", 100, "maximum local records")
}

func runHistory(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	if historyRemote {
		return printRemoteHistory(ctx)
	}

	store, err := openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	records, err := store.List(ctx, historyLimit)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		fmt.Println(ui.FormatInfo("No tasks submitted yet."))
		return nil
	}

	final, err := tea.NewProgram(initialHistoryModel(records)).Run()
	if err != nil {
		return err
	}
	if m := final.(historyModel); m.copied != "" {
		fmt.Println(ui.FormatSuccess("Copied " + m.copied))
	}
	return nil
}

func printRemoteHistory(ctx context.Context) error {
	items, err := newClient().History(ctx, historyPage)
	if err != nil {
		return err
	}
	if len(items) == 0 {
		fmt.Println(ui.FormatInfo(fmt.Sprintf("No tasks on page %d.", historyPage)))
		return nil
	}
	for _, it := range items {
		created := it.CreatedAt
		if t := it.Created(); !t.IsZero() {
			created = t.Format("2006-01-02 15:04")
		}
		status := string(it.Status.Normalize())
		fmt.Printf("%s  %-10s %s  %s\n",
			ui.FormatMuted(created),
			ui.PhaseStyle(status).Render(status),
			it.TenantTaskID,
			it.TaskType)
		for _, u := range it.ImageURLs {
			fmt.Println("    " + ui.FormatURL(u))
		}
		if it.ErrorMessage != nil && *it.ErrorMessage != "" {
			fmt.Println("    " + ui.FormatError(*it.ErrorMessage))
		}
	}
	return nil
}

// --- TUI Model ---

type historyModel struct {
	table   table.Model
	records []*taskstore.Record
	copied  string
	status  string
}

func initialHistoryModel(records []*taskstore.Record) historyModel {
	columns := []table.Column{
		{Title: "Created", Width: 16},
		{Title: "Phase", Width: 10},
		{Title: "Task", Width: 24},
		{Title: "Imgs", Width: 4},
		{Title: "Prompt", Width: 40},
	}

	rows := make([]table.Row, 0, len(records))
	for _, r := range records {
		rows = append(rows, table.Row{
			r.CreatedAt.Local().Format("2006-01-02 15:04"),
			r.Phase,
			truncate(r.TaskID, 24),
			fmt.Sprintf("%d", r.Images),
			truncate(r.Prompt, 40),
		})
	}

	t := table.New(
		table.WithColumns(columns),
		table.WithRows(rows),
		table.WithFocused(true),
		table.WithHeight(12),
	)

	s := table.DefaultStyles()
	s.Header = s.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(ui.ColorMuted).
		BorderBottom(true).
		Bold(true)
	s.Selected = s.Selected.
		Foreground(ui.ColorDefault).
		Background(ui.ColorPrimary).
		Bold(true)
	t.SetStyles(s)

	return historyModel{table: t, records: records}
}

func (m historyModel) Init() tea.Cmd { return nil }

func (m historyModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	if key, ok := msg.(tea.KeyMsg); ok {
		switch key.String() {
		case "q", "esc", "ctrl+c":
			return m, tea.Quit
		case "enter":
			idx := m.table.Cursor()
			if idx < len(m.records) {
				rec := m.records[idx]
				if len(rec.Outputs) == 0 {
					m.status = "This task has no results"
					return m, nil
				}
				if err := clipboard.WriteAll(rec.Outputs[0]); err != nil {
					m.status = "Clipboard unavailable: " + err.Error()
					return m, nil
				}
				m.copied = rec.Outputs[0]
				return m, tea.Quit
			}
		}
	}
	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

func (m historyModel) View() string {
	var b strings.Builder
	b.WriteString("\n" + ui.StyleTitle.Render(" Submitted tasks ") + "\n\n")
	b.WriteString(m.table.View() + "\n\n")
	if idx := m.table.Cursor(); idx < len(m.records) {
		rec := m.records[idx]
		if rec.Error != "" {
			b.WriteString(ui.FormatError(rec.Error) + "\n")
		}
		for _, u := range rec.Outputs {
			b.WriteString("  " + ui.FormatURL(u) + "\n")
		}
	}
	if m.status != "" {
		b.WriteString(ui.FormatWarning(m.status) + "\n")
	}
	b.WriteString(ui.FormatMuted(" [Enter] Copy first URL  [q] Quit") + "\n")
	return b.String()
}

func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	if max <= 1 {
		return string(r[:max])
	}
	return string(r[:max-1]) + "…"
}
