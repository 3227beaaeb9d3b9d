// Package ui is the Bubble Tea program over the view pipeline: a list, a
// kanban board, and a calendar over the same task snapshot. Fetches run as
// asynchronous commands; the model owns the last-known-good snapshot and
// keeps showing it when a refetch fails.
package ui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"taskdeck/internal/api"
	"taskdeck/internal/config"
	"taskdeck/internal/pipeline"
	"taskdeck/internal/store"
	"taskdeck/internal/task"
)

const prefsPage = "tasks"

type viewMode int

const (
	viewList viewMode = iota
	viewKanban
	viewCalendar
)

func (v viewMode) name() string {
	switch v {
	case viewKanban:
		return "kanban"
	case viewCalendar:
		return "calendar"
	}
	return "list"
}

func parseViewMode(s string) viewMode {
	switch s {
	case "kanban":
		return viewKanban
	case "calendar":
		return viewCalendar
	}
	return viewList
}

type mode int

const (
	modeNormal mode = iota
	modeSearch
	modeAdd
	modeComment
)

// tasksMsg carries a completed fetch. Seq fences out stale responses:
// only the message matching the most recently issued fetch may overwrite
// the snapshot.
type tasksMsg struct {
	seq   uint64
	scope string
	tasks []task.Task
	err   error
}

type projectsMsg struct {
	projects []api.Project
	err      error
}

type categoriesMsg struct {
	categories []api.Category
	err        error
}

type activitiesMsg struct {
	activities []api.Activity
	err        error
}

// detailMsg is the fresh single-task fetch, comments included, shown when
// the user opens a task's detail.
type detailMsg struct {
	task     task.Task
	comments []api.Comment
	err      error
}

type signedOutMsg struct{}

// mutatedMsg reports the outcome of a task mutation; a successful one is
// followed by a refetch.
type mutatedMsg struct {
	note string
	err  error
}

type Model struct {
	client *api.Client
	store  *store.Store
	cfg    config.Config

	view  viewMode
	mode  mode
	input textinput.Model

	tasks   []task.Task // snapshot, rebuilt on every successful fetch
	loading bool
	seq     uint64 // sequence of the most recently issued fetch

	projects   []api.Project
	projIdx    int // index into projects; -1 means all projects
	categories []api.Category

	activities []api.Activity
	showFeed   bool

	search    string
	statuses  []task.Status // empty selection falls back to the configured default
	statusIdx int
	sortOpt   pipeline.SortOption

	cursor     int
	column     int // kanban column under the cursor
	anchor     time.Time
	confirmDel bool
	pendingDel *task.Task
	commentFor string // task id the open comment input targets

	status string
	width  int
}

// Run wires the model from stored preferences and the cached snapshot,
// then hands control to Bubble Tea.
func Run(client *api.Client, st *store.Store, cfg config.Config) error {
	m := newModel(client, st, cfg)
	program := tea.NewProgram(m)
	_, err := program.Run()
	return err
}

func newModel(client *api.Client, st *store.Store, cfg config.Config) Model {
	ti := textinput.New()
	ti.Placeholder = "Search"
	ti.CharLimit = 256
	ti.Width = 40

	m := Model{
		client:  client,
		store:   st,
		cfg:     cfg,
		view:    parseViewMode(cfg.DefaultView),
		sortOpt: pipeline.SortOption(cfg.DefaultSort),
		projIdx: -1,
		input:   ti,
		anchor:  today(),
		status:  "Loading tasks...",
		seq:     1, // Init issues fetch #1; refetch bumps from there
		loading: true,
	}
	if !m.sortOpt.Valid() {
		m.sortOpt = pipeline.SortCreatedDesc
	}

	if prefs, ok, err := st.LoadPrefs(prefsPage); err == nil && ok {
		m.view = parseViewMode(prefs.ViewMode)
		if prefs.Sort.Valid() {
			m.sortOpt = prefs.Sort
		}
		m.statuses = prefs.Statuses
	}

	// Show the cached snapshot immediately; the fetch replaces it.
	if cached, fetched, err := st.LoadSnapshot(m.scope()); err == nil && cached != nil {
		m.tasks = cached
		if !fetched.IsZero() {
			m.status = fmt.Sprintf("Cached snapshot from %s, refreshing...", fetched.Local().Format("15:04"))
		}
	}
	return m
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(m.fetchTasksCmd(m.seq, m.scope()), m.fetchProjectsCmd(), m.fetchCategoriesCmd())
}

// scope is the snapshot key: the selected project id, or "" for all.
func (m Model) scope() string {
	if m.projIdx >= 0 && m.projIdx < len(m.projects) {
		return m.projects[m.projIdx].ID
	}
	return ""
}

func (m Model) fetchTasksCmd(seq uint64, scope string) tea.Cmd {
	client := m.client
	timeout := time.Duration(m.cfg.TimeoutSeconds) * time.Second
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		tasks, _, err := client.ListTasks(ctx, api.TaskQuery{ProjectID: scope, Limit: 100})
		return tasksMsg{seq: seq, scope: scope, tasks: tasks, err: err}
	}
}

func (m Model) fetchProjectsCmd() tea.Cmd {
	client := m.client
	timeout := time.Duration(m.cfg.TimeoutSeconds) * time.Second
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		projects, err := client.ListProjects(ctx)
		return projectsMsg{projects: projects, err: err}
	}
}

func (m Model) fetchCategoriesCmd() tea.Cmd {
	client := m.client
	timeout := time.Duration(m.cfg.TimeoutSeconds) * time.Second
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		categories, err := client.ListCategories(ctx)
		return categoriesMsg{categories: categories, err: err}
	}
}

// feedSize caps the activity feed panel; the backend already orders the
// feed newest first.
const feedSize = 5

func (m Model) fetchActivitiesCmd() tea.Cmd {
	client := m.client
	scope := m.scope()
	timeout := time.Duration(m.cfg.TimeoutSeconds) * time.Second
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		activities, err := client.ListActivities(ctx, scope, feedSize)
		return activitiesMsg{activities: activities, err: err}
	}
}

// detailCmd refetches a single task together with its comments so the
// detail line reflects the backend, not the possibly stale snapshot.
func (m Model) detailCmd(id string) tea.Cmd {
	client := m.client
	timeout := time.Duration(m.cfg.TimeoutSeconds) * time.Second
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		t, err := client.GetTask(ctx, id)
		if err != nil {
			return detailMsg{err: err}
		}
		comments, err := client.ListComments(ctx, id)
		return detailMsg{task: t, comments: comments, err: err}
	}
}

func (m Model) signOutCmd() tea.Cmd {
	client := m.client
	timeout := time.Duration(m.cfg.TimeoutSeconds) * time.Second
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		// Local tokens are cleared even if revocation fails.
		client.SignOut(ctx)
		return signedOutMsg{}
	}
}

func (m *Model) refetch() tea.Cmd {
	m.seq++
	m.loading = true
	return m.fetchTasksCmd(m.seq, m.scope())
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.input.Width = msg.Width - 10
		return m, nil

	case tasksMsg:
		return m.applyTasks(msg)

	case projectsMsg:
		if msg.err != nil {
			m.status = fmt.Sprintf("projects unavailable: %v", msg.err)
			return m, nil
		}
		m.projects = msg.projects
		return m, nil

	case categoriesMsg:
		if msg.err == nil {
			m.categories = msg.categories
		}
		return m, nil

	case activitiesMsg:
		return m.applyActivities(msg)

	case detailMsg:
		if msg.err != nil {
			if errors.Is(msg.err, api.ErrUnauthorized) {
				return m.signedOut()
			}
			m.status = fmt.Sprintf("detail fetch failed: %v", msg.err)
			return m, nil
		}
		m.status = m.detailLine(msg.task, msg.comments)
		return m, nil

	case signedOutMsg:
		m.status = "Signed out."
		if err := m.store.SaveSession("", ""); err != nil {
			m.status = fmt.Sprintf("signed out, but the token wipe failed: %v", err)
		}
		return m, tea.Quit

	case mutatedMsg:
		if msg.err != nil {
			if errors.Is(msg.err, api.ErrUnauthorized) {
				return m.signedOut()
			}
			m.status = fmt.Sprintf("request failed: %v", msg.err)
			return m, nil
		}
		m.status = msg.note
		cmd := m.refetch() // bump seq before m is copied into the result
		return m, cmd

	case tea.KeyMsg:
		if m.confirmDel {
			return m.updateDeleteConfirm(msg.String())
		}
		switch m.mode {
		case modeSearch:
			return m.updateSearchMode(msg)
		case modeAdd:
			return m.updateAddMode(msg)
		case modeComment:
			return m.updateCommentMode(msg)
		}
		return m.updateNormalMode(msg.String())
	}
	return m, nil
}

// applyTasks folds a fetch result into the model. Stale responses (an
// older sequence, or a scope the user has already navigated away from)
// are dropped instead of overwriting the snapshot; a failed fetch keeps
// the last-known-good snapshot visible.
func (m Model) applyTasks(msg tasksMsg) (tea.Model, tea.Cmd) {
	if msg.seq != m.seq || msg.scope != m.scope() {
		return m, nil
	}
	m.loading = false
	if msg.err != nil {
		if errors.Is(msg.err, api.ErrUnauthorized) {
			return m.signedOut()
		}
		m.status = fmt.Sprintf("refresh failed: %v (showing last snapshot)", msg.err)
		return m, nil
	}
	m.tasks = msg.tasks
	m.cursor = clampCursor(m.cursor, len(m.visible()))
	m.status = fmt.Sprintf("%d tasks • %s", len(msg.tasks), m.statsLine())
	if err := m.store.SaveSnapshot(msg.scope, msg.tasks); err != nil {
		m.status = fmt.Sprintf("snapshot cache write failed: %v", err)
	}
	return m, nil
}

// applyActivities folds a feed fetch into the model; a failure closes the
// panel so it never shows stale entries without saying so.
func (m Model) applyActivities(msg activitiesMsg) (tea.Model, tea.Cmd) {
	if msg.err != nil {
		if errors.Is(msg.err, api.ErrUnauthorized) {
			return m.signedOut()
		}
		m.showFeed = false
		m.status = fmt.Sprintf("activity unavailable: %v", msg.err)
		return m, nil
	}
	m.activities = msg.activities
	m.status = fmt.Sprintf("%d recent activities", len(msg.activities))
	return m, nil
}

// signedOut clears the session everywhere and quits; the user signs in
// again on the next start.
func (m Model) signedOut() (tea.Model, tea.Cmd) {
	m.status = "Session expired. Run taskdeck again to sign in."
	if err := m.store.SaveSession("", ""); err != nil {
		m.status = fmt.Sprintf("session expired, but the token wipe failed: %v", err)
	}
	return m, tea.Quit
}

func (m Model) filters() pipeline.Filters {
	fallback := make([]task.Status, 0, len(m.cfg.DefaultStatuses))
	for _, s := range m.cfg.DefaultStatuses {
		fallback = append(fallback, task.Status(s))
	}
	return pipeline.Filters{
		ProjectID: m.scope(),
		Search:    m.search,
		Statuses:  m.statuses,
		Fallback:  fallback,
	}
}

// visible runs the pipeline over the snapshot for the current parameters.
func (m Model) visible() []task.Task {
	return pipeline.Apply(m.tasks, m.filters(), m.sortOpt)
}

func (m Model) updateNormalMode(key string) (tea.Model, tea.Cmd) {
	switch key {
	case "ctrl+c", m.cfg.Keys.Quit:
		return m, tea.Quit

	case m.cfg.Keys.Down, "down":
		m.cursor = clampCursor(m.cursor+1, m.cursorSpan())
	case m.cfg.Keys.Up, "up":
		if m.cursor > 0 {
			m.cursor = clampCursor(m.cursor-1, m.cursorSpan())
		}
	case m.cfg.Keys.Left, "left":
		if m.view == viewKanban && m.column > 0 {
			m.column--
			m.cursor = clampCursor(m.cursor, m.cursorSpan())
		} else if m.view == viewCalendar {
			m.anchor = m.anchor.AddDate(0, 0, -7)
		}
	case m.cfg.Keys.Right, "right":
		if m.view == viewKanban && m.column < len(task.KnownStatuses()) {
			m.column++
			m.cursor = clampCursor(m.cursor, m.cursorSpan())
		} else if m.view == viewCalendar {
			m.anchor = m.anchor.AddDate(0, 0, 7)
		}

	case m.cfg.Keys.Refresh:
		m.status = "Refreshing..."
		cmd := m.refetch()
		return m, cmd

	case m.cfg.Keys.Search:
		m.mode = modeSearch
		m.input.Placeholder = "Search"
		m.input.SetValue(m.search)
		m.input.Focus()
		m.status = "Search: type and press Enter, Esc to clear"

	case m.cfg.Keys.NextView:
		m.view = (m.view + 1) % 3
		m.cursor = clampCursor(m.cursor, m.cursorSpan())
		m.savePrefs()
		m.status = "View: " + m.view.name()

	case m.cfg.Keys.CycleSort:
		m.sortOpt = nextSort(m.sortOpt)
		m.savePrefs()
		m.status = "Sort: " + string(m.sortOpt)

	case m.cfg.Keys.CycleStatus:
		m.statusIdx = (m.statusIdx + 1) % len(statusPresets())
		m.statuses = statusPresets()[m.statusIdx].statuses
		m.cursor = clampCursor(m.cursor, m.cursorSpan())
		m.savePrefs()
		m.status = "Status filter: " + statusPresets()[m.statusIdx].label

	case m.cfg.Keys.NextProject:
		if len(m.projects) == 0 {
			m.status = "No projects loaded"
			return m, nil
		}
		m.projIdx++
		if m.projIdx >= len(m.projects) {
			m.projIdx = -1
		}
		m.cursor = 0
		if cached, _, err := m.store.LoadSnapshot(m.scope()); err == nil && cached != nil {
			m.tasks = cached
		} else {
			m.tasks = nil
		}
		m.status = "Project: " + m.projectName()
		cmd := m.refetch()
		return m, cmd

	case m.cfg.Keys.Add:
		m.mode = modeAdd
		m.input.Placeholder = "Task title"
		m.input.SetValue("")
		m.input.Focus()
		m.status = "Add task: type a title and press Enter"

	case m.cfg.Keys.Complete:
		t, ok := m.selected()
		if !ok {
			return m, nil
		}
		id := t.ID
		return m, m.mutateCmd("Completed task", func(ctx context.Context) error {
			_, err := m.client.CompleteTask(ctx, id)
			return err
		})

	case m.cfg.Keys.Delete:
		t, ok := m.selected()
		if !ok {
			return m, nil
		}
		m.confirmDel = true
		sel := t
		m.pendingDel = &sel
		m.status = fmt.Sprintf("Delete %q? y/n", t.Title)

	case m.cfg.Keys.Comment:
		t, ok := m.selected()
		if !ok {
			return m, nil
		}
		m.mode = modeComment
		m.commentFor = t.ID
		m.input.Placeholder = "Comment"
		m.input.SetValue("")
		m.input.Focus()
		m.status = fmt.Sprintf("Comment on %q: type and press Enter", t.Title)

	case m.cfg.Keys.Activity:
		if m.showFeed {
			m.showFeed = false
			return m, nil
		}
		m.showFeed = true
		m.status = "Loading activity..."
		return m, m.fetchActivitiesCmd()

	case m.cfg.Keys.SignOut:
		m.status = "Signing out..."
		return m, m.signOutCmd()

	case m.cfg.Keys.Detail:
		t, ok := m.selected()
		if !ok {
			m.status = "No task selected"
			return m, nil
		}
		m.status = m.detailLine(t, nil)
		return m, m.detailCmd(t.ID)
	}
	return m, nil
}

func (m Model) updateSearchMode(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case m.cfg.Keys.Cancel, "esc":
		m.mode = modeNormal
		m.search = ""
		m.input.Blur()
		m.status = "Search cleared"
		return m, nil
	case m.cfg.Keys.Confirm, "enter":
		m.mode = modeNormal
		m.search = m.input.Value()
		m.input.Blur()
		m.cursor = clampCursor(m.cursor, m.cursorSpan())
		if strings.TrimSpace(m.search) == "" {
			m.status = "Search cleared"
		} else {
			m.status = fmt.Sprintf("Search: %q (%d matches)", m.search, len(m.visible()))
		}
		return m, nil
	default:
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		return m, cmd
	}
}

func (m Model) updateAddMode(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case m.cfg.Keys.Cancel, "esc":
		m.mode = modeNormal
		m.input.Blur()
		m.status = "Cancelled"
		return m, nil
	case m.cfg.Keys.Confirm, "enter":
		title := strings.TrimSpace(m.input.Value())
		if title == "" {
			m.status = "Title cannot be empty"
			return m, nil
		}
		m.mode = modeNormal
		m.input.Blur()
		req := api.TaskCreate{Title: title, ProjectID: m.scope()}
		return m, m.mutateCmd("Added task", func(ctx context.Context) error {
			_, err := m.client.CreateTask(ctx, req)
			return err
		})
	default:
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		return m, cmd
	}
}

func (m Model) updateCommentMode(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case m.cfg.Keys.Cancel, "esc":
		m.mode = modeNormal
		m.input.Blur()
		m.status = "Cancelled"
		return m, nil
	case m.cfg.Keys.Confirm, "enter":
		content := strings.TrimSpace(m.input.Value())
		if content == "" {
			m.status = "Comment cannot be empty"
			return m, nil
		}
		m.mode = modeNormal
		m.input.Blur()
		id := m.commentFor
		m.commentFor = ""
		return m, m.mutateCmd("Comment added", func(ctx context.Context) error {
			_, err := m.client.AddComment(ctx, id, content)
			return err
		})
	default:
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		return m, cmd
	}
}

func (m Model) updateDeleteConfirm(key string) (tea.Model, tea.Cmd) {
	switch key {
	case "n", "N", m.cfg.Keys.Cancel:
		m.confirmDel = false
		m.pendingDel = nil
		m.status = "Delete cancelled"
		return m, nil
	case "y", "Y":
		m.confirmDel = false
		if m.pendingDel == nil {
			m.status = "Nothing to delete"
			return m, nil
		}
		id := m.pendingDel.ID
		m.pendingDel = nil
		return m, m.mutateCmd("Deleted task", func(ctx context.Context) error {
			return m.client.DeleteTask(ctx, id)
		})
	default:
		return m, nil
	}
}

func (m Model) mutateCmd(note string, fn func(context.Context) error) tea.Cmd {
	timeout := time.Duration(m.cfg.TimeoutSeconds) * time.Second
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		return mutatedMsg{note: note, err: fn(ctx)}
	}
}

func (m *Model) savePrefs() {
	prefs := store.Prefs{ViewMode: m.view.name(), Sort: m.sortOpt, Statuses: m.statuses}
	if err := m.store.SavePrefs(prefsPage, prefs); err != nil {
		m.status = fmt.Sprintf("preference save failed: %v", err)
	}
}

// selected resolves the task under the cursor for the active view.
func (m Model) selected() (task.Task, bool) {
	switch m.view {
	case viewKanban:
		lane := m.lane(m.column)
		if m.cursor < len(lane) {
			return lane[m.cursor], true
		}
	default:
		visible := m.visible()
		if m.cursor < len(visible) {
			return visible[m.cursor], true
		}
	}
	return task.Task{}, false
}

// cursorSpan is how far the cursor may travel in the active view.
func (m Model) cursorSpan() int {
	if m.view == viewKanban {
		return len(m.lane(m.column))
	}
	return len(m.visible())
}

// lane returns a kanban column's tasks; the index past the known statuses
// is the unrecognized lane.
func (m Model) lane(col int) []task.Task {
	board := pipeline.GroupByStatus(m.visible())
	if col >= 0 && col < len(board.Columns) {
		return board.Columns[col].Tasks
	}
	return board.Unrecognized
}

func (m Model) projectName() string {
	if m.projIdx >= 0 && m.projIdx < len(m.projects) {
		return m.projects[m.projIdx].Name
	}
	return "all"
}

// statsLine summarizes the snapshot by status for the status bar.
func (m Model) statsLine() string {
	board := pipeline.GroupByStatus(m.tasks)
	parts := make([]string, 0, len(board.Columns)+1)
	for _, col := range board.Columns {
		if len(col.Tasks) > 0 {
			parts = append(parts, fmt.Sprintf("%s:%d", col.Status, len(col.Tasks)))
		}
	}
	if len(board.Unrecognized) > 0 {
		parts = append(parts, fmt.Sprintf("other:%d", len(board.Unrecognized)))
	}
	if len(parts) == 0 {
		return "empty"
	}
	return strings.Join(parts, " ")
}

type statusPreset struct {
	label    string
	statuses []task.Status
}

// statusPresets cycles the status filter. The first entry is the empty
// selection, which the pipeline resolves to the configured default so the
// screen never goes blank without saying why.
func statusPresets() []statusPreset {
	presets := []statusPreset{
		{label: "default (todo+in_progress)", statuses: nil},
		{label: "all", statuses: task.KnownStatuses()},
	}
	for _, s := range task.KnownStatuses() {
		presets = append(presets, statusPreset{label: string(s), statuses: []task.Status{s}})
	}
	return presets
}

func nextSort(opt pipeline.SortOption) pipeline.SortOption {
	options := pipeline.SortOptions()
	for i, o := range options {
		if o == opt {
			return options[(i+1)%len(options)]
		}
	}
	return options[0]
}

func (m Model) detailLine(t task.Task, comments []api.Comment) string {
	info := fmt.Sprintf("Task %s • %s • %s/%s", t.ID, t.Title, t.Status, t.Priority)
	if t.ProjectID != "" {
		info += " • project:" + t.ProjectID
	}
	if t.CategoryID != "" {
		info += " • category:" + m.categoryName(t.CategoryID)
	}
	if len(t.Tags) > 0 {
		info += " • tags:" + strings.Join(t.Tags, ",")
	}
	if t.DueDate != "" {
		info += " • due:" + t.DueDate
	}
	if t.StartDate != "" {
		info += " • start:" + t.StartDate
	}
	if t.Assignee != nil && t.Assignee.Username != "" {
		info += " • @" + t.Assignee.Username
	}
	if len(comments) > 0 {
		last := comments[len(comments)-1]
		info += fmt.Sprintf(" • %d comments, last: %s", len(comments), truncate(last.Content, 40))
	}
	return info
}

func (m Model) categoryName(id string) string {
	for _, c := range m.categories {
		if c.ID == id {
			return c.Name
		}
	}
	return id
}

func today() time.Time {
	now := time.Now()
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.Local)
}

func clampCursor(cur, n int) int {
	if n <= 0 {
		return 0
	}
	if cur < 0 {
		return 0
	}
	if cur >= n {
		return n - 1
	}
	return cur
}
