package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"

	"task-gravity-backend/internal/tasks"
)

var (
	inboxStyle     = color.New(color.FgHiBlue).SprintFunc()
	activeStyle    = color.New(color.FgHiYellow).SprintFunc()
	completedStyle = color.New(color.FgHiGreen).SprintFunc()
	archivedStyle  = color.New(color.FgHiBlack).SprintFunc()
	detachedStyle  = color.New(color.FgHiRed).SprintFunc()
)

func colorStatus(s tasks.Status) string {
	switch s {
	case tasks.StatusInbox:
		return inboxStyle(string(s))
	case tasks.StatusActive:
		return activeStyle(string(s))
	case tasks.StatusCompleted:
		return completedStyle(string(s))
	case tasks.StatusArchived:
		return archivedStyle(string(s))
	}
	return string(s)
}

func renderTasks(w io.Writer, list []tasks.Task) {
	if len(list) == 0 {
		fmt.Fprintln(w, "No tasks found.")
		return
	}

	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"ID", "Title", "Status", "Category", "Time cost", "Interest", "Difficulty", "Last touched"})
	for _, task := range list {
		t.AppendRow(table.Row{
			task.ID,
			task.Title,
			colorStatus(task.Status),
			task.Category,
			fmt.Sprintf("%.1f", task.TimeCostX),
			fmt.Sprintf("%.1f", task.InterestY),
			task.Difficulty,
			task.LastTouchedAt.Local().Format("2006-01-02 15:04"),
		})
	}
	t.Render()
}

func renderTree(w io.Writer, forest []*tasks.TaskTree) {
	if len(forest) == 0 {
		fmt.Fprintln(w, "No tasks found.")
		return
	}
	for _, root := range forest {
		renderNode(w, root, 0)
	}
}

func renderNode(w io.Writer, n *tasks.TaskTree, depth int) {
	line := strings.Repeat("  ", depth)
	if depth > 0 {
		line += "└─ "
	}
	line += fmt.Sprintf("%s [%s] %s", n.Title, colorStatus(n.Status), n.ID)
	if n.Detached {
		line += " " + detachedStyle("(detached)")
	}
	fmt.Fprintln(w, line)
	for _, c := range n.Children {
		renderNode(w, c, depth+1)
	}
}

func renderStats(w io.Writer, st tasks.Stats) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Metric", "Value"})
	t.AppendRow(table.Row{"total", st.Total})
	for _, s := range tasks.Statuses() {
		t.AppendRow(table.Row{"status: " + string(s), st.ByStatus[s]})
	}
	for _, c := range tasks.Categories() {
		t.AppendRow(table.Row{"category: " + string(c), st.ByCategory[c]})
	}
	t.AppendRow(table.Row{"focus time (s)", st.TotalFocusTime})
	t.AppendRow(table.Row{"avg difficulty", fmt.Sprintf("%.2f", st.AverageDifficulty)})
	t.Render()
}
