package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"taskdeck/internal/api"
	"taskdeck/internal/config"
	"taskdeck/internal/pipeline"
	"taskdeck/internal/task"
)

const (
	laneWidth    = 22
	calendarDays = 7
)

var (
	titleStyle     = lipgloss.NewStyle().Bold(true)
	laneStyle      = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1).Width(laneWidth)
	laneHeadStyle  = lipgloss.NewStyle().Bold(true)
	selectedStyle  = lipgloss.NewStyle().Reverse(true)
	dimStyle       = lipgloss.NewStyle().Faint(true)
	dayStyle       = lipgloss.NewStyle().Border(lipgloss.NormalBorder()).Padding(0, 1).Width(laneWidth)
	todayHeadStyle = lipgloss.NewStyle().Bold(true).Underline(true)
)

func (m Model) View() string {
	var b strings.Builder

	header := fmt.Sprintf("Taskdeck • %s view • project: %s • sort: %s",
		m.view.name(), m.projectName(), m.sortOpt)
	if m.loading {
		header += " • refreshing"
	}
	b.WriteString(titleStyle.Render(header))
	b.WriteString("\n\n")

	switch m.view {
	case viewKanban:
		b.WriteString(m.renderKanban())
	case viewCalendar:
		b.WriteString(m.renderCalendar())
	default:
		b.WriteString(m.renderList())
	}

	b.WriteString("\n")
	if m.showFeed {
		b.WriteString(m.renderFeed())
		b.WriteString("\n")
	}
	if m.mode == modeSearch {
		b.WriteString("Search: ")
		b.WriteString(m.input.View())
		b.WriteString("\n")
	}
	if m.mode == modeAdd {
		b.WriteString("Add task: ")
		b.WriteString(m.input.View())
		b.WriteString("\n")
	}
	if m.mode == modeComment {
		b.WriteString("Comment: ")
		b.WriteString(m.input.View())
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(m.status)
	b.WriteString("\n")
	b.WriteString(dimStyle.Render(renderHelp(m.cfg.Keys)))
	return b.String()
}

func (m Model) renderList() string {
	visible := m.visible()
	if len(visible) == 0 {
		return dimStyle.Render("No tasks match the current filters.")
	}
	var b strings.Builder
	for i, t := range visible {
		line := fmt.Sprintf("%s %-12s %-8s %s", checkbox(t), t.Status, t.Priority, t.Title)
		if t.DueDate != "" {
			line += dimStyle.Render("  due " + shortDate(t.DueDate))
		}
		if i == m.cursor && m.mode == modeNormal {
			line = selectedStyle.Render(line)
		}
		b.WriteString(line)
		b.WriteString("\n")
	}
	return b.String()
}

func (m Model) renderKanban() string {
	board := pipeline.GroupByStatus(m.visible())

	lanes := make([]string, 0, len(board.Columns)+1)
	for i, col := range board.Columns {
		lanes = append(lanes, m.renderLane(string(col.Status), col.Tasks, i == m.column))
	}
	if len(board.Unrecognized) > 0 || m.column == len(board.Columns) {
		lanes = append(lanes, m.renderLane("unrecognized", board.Unrecognized, m.column == len(board.Columns)))
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, lanes...)
}

func (m Model) renderLane(name string, tasks []task.Task, active bool) string {
	var b strings.Builder
	head := fmt.Sprintf("%s (%d)", name, len(tasks))
	if active {
		head = "› " + head
	}
	b.WriteString(laneHeadStyle.Render(head))
	b.WriteString("\n")
	if len(tasks) == 0 {
		b.WriteString(dimStyle.Render("—"))
	}
	for i, t := range tasks {
		card := truncate(t.Title, laneWidth-4)
		if t.Priority.Rank() >= task.PriorityUrgent.Rank() {
			card = "! " + card
		}
		if active && i == m.cursor && m.mode == modeNormal {
			card = selectedStyle.Render(card)
		}
		b.WriteString(card)
		b.WriteString("\n")
	}
	return laneStyle.Render(b.String())
}

func (m Model) renderCalendar() string {
	days := make([]time.Time, calendarDays)
	for i := range days {
		days[i] = m.anchor.AddDate(0, 0, i)
	}
	buckets := pipeline.BucketByDays(m.visible(), days)

	cells := make([]string, 0, len(buckets))
	for _, bucket := range buckets {
		var b strings.Builder
		head := bucket.Day.Format("Mon 01-02")
		if task.SameDay(bucket.Day, time.Now()) {
			b.WriteString(todayHeadStyle.Render(head))
		} else {
			b.WriteString(laneHeadStyle.Render(head))
		}
		b.WriteString("\n")
		if len(bucket.Tasks) == 0 {
			b.WriteString(dimStyle.Render("—"))
		}
		for _, t := range bucket.Tasks {
			b.WriteString(truncate(t.Title, laneWidth-4))
			b.WriteString("\n")
		}
		cells = append(cells, dayStyle.Render(b.String()))
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, cells...)
}

func (m Model) renderFeed() string {
	var b strings.Builder
	b.WriteString(laneHeadStyle.Render("Recent activity"))
	b.WriteString("\n")
	if len(m.activities) == 0 {
		b.WriteString(dimStyle.Render("No recent activity."))
		b.WriteString("\n")
		return b.String()
	}
	for _, a := range m.activities {
		line := activityLine(a)
		if a.CreatedAt != "" {
			line += dimStyle.Render("  " + shortDate(a.CreatedAt))
		}
		b.WriteString(line)
		b.WriteString("\n")
	}
	return b.String()
}

// activityLine prefers the backend's rendered description and falls back
// to composing one from the entry's parts.
func activityLine(a api.Activity) string {
	if a.Description != "" {
		return a.Description
	}
	who := a.UserName
	if who == "" {
		who = "someone"
	}
	line := fmt.Sprintf("%s %s %s %q", who, a.ActionType, a.EntityType, a.EntityName)
	if a.ProjectName != "" {
		line += " in " + a.ProjectName
	}
	return line
}

func renderHelp(k config.Keymap) string {
	return fmt.Sprintf("%s/%s move • %s view • %s sort • %s filter • %s search • %s project • %s add • %s complete • %s comment • %s activity • %s delete • %s refresh • %s quit",
		k.Up, k.Down, k.NextView, k.CycleSort, k.CycleStatus, k.Search, k.NextProject, k.Add, keyName(k.Complete), k.Comment, k.Activity, k.Delete, k.Refresh, k.Quit)
}

func keyName(k string) string {
	if k == " " {
		return "space"
	}
	return k
}

func checkbox(t task.Task) string {
	if t.Completed || t.Status == task.StatusDone {
		return "[x]"
	}
	return "[ ]"
}

// shortDate trims a timestamp down to its day for display.
func shortDate(s string) string {
	if day, err := task.ResolveDay(s); err == nil {
		return day.Format("2006-01-02")
	}
	return s
}

// truncate shortens a string to n characters, counting runes so a
// multibyte title is never cut mid-character.
func truncate(s string, n int) string {
	if n <= 1 {
		return s
	}
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
