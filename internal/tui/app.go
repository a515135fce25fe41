package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/lu-zhengda/launchdeck/internal/apps"
	"github.com/lu-zhengda/launchdeck/internal/discovery"
	"github.com/lu-zhengda/launchdeck/internal/i18n"
	"github.com/lu-zhengda/launchdeck/internal/launcher"
	"github.com/lu-zhengda/launchdeck/internal/news"
	"github.com/lu-zhengda/launchdeck/internal/prefs"
	"github.com/lu-zhengda/launchdeck/internal/reconcile"
)

type viewState int

const (
	viewScanning viewState = iota
	viewGrid
	viewGroupEditor
	viewStopConfirm
)

const refreshInterval = time.Second

type progressMsg struct {
	ev apps.ScanProgress
}

type loadDoneMsg struct {
	res discovery.Result
	err error
}

type launchDoneMsg struct {
	app apps.InstalledApp
	out launcher.LaunchOutcome
	err error
}

type stopDoneMsg struct {
	report reconcile.StopReport
}

type newsDoneMsg struct {
	category news.Category
	res      news.Result
	err      error
}

type refreshMsg struct{}

// Options configures the TUI.
type Options struct {
	Columns     int
	NewsVisible bool
}

type Model struct {
	ctx     context.Context
	session *launcher.Session
	keys    KeyMap
	help    help.Model
	spinner spinner.Model
	search  textinput.Model
	columns int

	currentView viewState
	scanning    bool
	progress    apps.ScanProgress
	progressCh  chan apps.ScanProgress
	fromCache   bool
	fallback    bool

	cursor    int
	searching bool

	// Group editor and stop confirmation targets.
	editing     apps.InstalledApp
	groupCursor int
	stopTargets []apps.InstalledApp

	newsVisible  bool
	newsCategory news.Category
	newsItems    []news.Item
	newsNotice   string
	newsLoading  bool

	status     string
	alertTitle string
	alertText  string

	width  int
	height int
}

func New(ctx context.Context, session *launcher.Session, opts Options) Model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(colorPrimary)

	ti := textinput.New()
	ti.Placeholder = "Search apps..."
	ti.CharLimit = 64
	ti.Width = 30
	ti.SetValue(session.Query())

	columns := opts.Columns
	if columns <= 0 {
		columns = 4
	}

	return Model{
		ctx:          ctx,
		session:      session,
		keys:         DefaultKeyMap(),
		help:         help.New(),
		spinner:      sp,
		search:       ti,
		columns:      columns,
		currentView:  viewScanning,
		scanning:     true,
		progress:     apps.NewProgress(apps.PhaseScan, 0, 1, session.Catalog().T(i18n.ScanWaiting)),
		progressCh:   make(chan apps.ScanProgress, 16),
		newsVisible:  opts.NewsVisible,
		newsCategory: news.National,
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.startLoad(m.progressCh, false), listenProgress(m.progressCh),
		m.loadNews(m.newsCategory), refreshTick())
}

// startLoad runs discovery in the background, forwarding progress events
// on ch and closing it when done. Events are dropped rather than blocking
// the scan when the UI falls behind.
func (m Model) startLoad(ch chan apps.ScanProgress, force bool) tea.Cmd {
	session := m.session
	ctx := m.ctx
	return func() tea.Msg {
		res, err := session.Load(ctx, force, func(ev apps.ScanProgress) {
			select {
			case ch <- ev:
			default:
			}
		})
		close(ch)
		return loadDoneMsg{res: res, err: err}
	}
}

func listenProgress(ch chan apps.ScanProgress) tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-ch
		if !ok {
			return nil
		}
		return progressMsg{ev: ev}
	}
}

func (m Model) loadNews(category news.Category) tea.Cmd {
	session := m.session
	ctx := m.ctx
	return func() tea.Msg {
		res, err := session.News(ctx, category)
		return newsDoneMsg{category: category, res: res, err: err}
	}
}

func (m Model) doLaunch(app apps.InstalledApp) tea.Cmd {
	session := m.session
	ctx := m.ctx
	return func() tea.Msg {
		out, err := session.Launch(ctx, app)
		return launchDoneMsg{app: app, out: out, err: err}
	}
}

func (m Model) doStop(targets []apps.InstalledApp) tea.Cmd {
	session := m.session
	ctx := m.ctx
	ids := apps.IDs(targets)
	return func() tea.Msg {
		return stopDoneMsg{report: session.Stop(ctx, ids)}
	}
}

func refreshTick() tea.Cmd {
	return tea.Tick(refreshInterval, func(time.Time) tea.Msg { return refreshMsg{} })
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
		return m, nil

	case spinner.TickMsg:
		if m.scanning || m.newsLoading {
			var cmd tea.Cmd
			m.spinner, cmd = m.spinner.Update(msg)
			return m, cmd
		}
		return m, nil

	case refreshMsg:
		// Runtime badges change underneath us; redraw periodically.
		return m, refreshTick()

	case progressMsg:
		m.progress = msg.ev
		if m.progressCh != nil {
			return m, listenProgress(m.progressCh)
		}
		return m, nil

	case loadDoneMsg:
		m.scanning = false
		m.progressCh = nil
		m.currentView = viewGrid
		if msg.err != nil {
			m.setAlert("Scan failed", msg.err.Error())
			return m, nil
		}
		m.fromCache = msg.res.FromCache
		m.fallback = msg.res.Fallback
		m.cursor = clampCursor(m.cursor, len(m.ordered()))
		return m, nil

	case launchDoneMsg:
		switch {
		case msg.err != nil:
			text := msg.out.Message
			if text == "" {
				text = msg.err.Error()
			}
			m.setAlert("Open failed", text)
		case !msg.out.Launched:
			m.status = msg.out.Message
		default:
			m.status = "Opening " + msg.app.Name
		}
		return m, nil

	case stopDoneMsg:
		if title, text := m.session.StopNotice(msg.report); title != "" {
			m.setAlert(title, text)
		} else if msg.report.Requested > 0 {
			m.status = fmt.Sprintf("Stopped %d app(s)", msg.report.Requested)
		}
		return m, nil

	case newsDoneMsg:
		if msg.category != m.newsCategory {
			return m, nil
		}
		m.newsLoading = false
		m.newsItems = msg.res.Items
		m.newsNotice = m.session.NewsNotice(msg.res, msg.err)
		return m, nil

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
		if m.alertText != "" || m.alertTitle != "" {
			// Any key dismisses the alert.
			m.alertTitle, m.alertText = "", ""
			return m, nil
		}
		if m.searching {
			return m.updateSearch(msg)
		}

		switch m.currentView {
		case viewScanning:
			if key.Matches(msg, m.keys.Quit) {
				return m, tea.Quit
			}
		case viewGrid:
			return m.updateGrid(msg)
		case viewGroupEditor:
			return m.updateGroupEditor(msg)
		case viewStopConfirm:
			return m.updateStopConfirm(msg)
		}

	default:
		if m.searching {
			var cmd tea.Cmd
			m.search, cmd = m.search.Update(msg)
			return m, cmd
		}
	}

	return m, nil
}

func (m *Model) setAlert(title, text string) {
	m.alertTitle = title
	m.alertText = text
}

// ordered is the flat cell order of the current layout.
func (m Model) ordered() []apps.InstalledApp {
	return m.session.Layout().Ordered(m.session.ActiveGroup())
}

func (m Model) selectedApp() (apps.InstalledApp, bool) {
	items := m.ordered()
	if m.cursor < 0 || m.cursor >= len(items) {
		return apps.InstalledApp{}, false
	}
	return items[m.cursor], true
}

// gridColumns shrinks the grid in elderly mode so tiles can grow.
func (m Model) gridColumns() int {
	if m.session.Mode() == apps.ModeElderly {
		return max(m.columns-1, 2)
	}
	return m.columns
}

func (m Model) updateSearch(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.searching = false
		m.search.Blur()
		m.search.SetValue("")
		m.session.SetQuery("")
		m.cursor = 0
		return m, nil
	case "enter":
		m.searching = false
		m.search.Blur()
		return m, nil
	}

	var cmd tea.Cmd
	m.search, cmd = m.search.Update(msg)
	m.session.SetQuery(m.search.Value())
	m.cursor = 0
	return m, cmd
}

func (m Model) updateGrid(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	total := len(m.ordered())
	cols := m.gridColumns()

	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.Up):
		m.cursor = moveCursor(m.cursor, total, cols, -1, 0)
	case key.Matches(msg, m.keys.Down):
		m.cursor = moveCursor(m.cursor, total, cols, 1, 0)
	case key.Matches(msg, m.keys.Left):
		m.cursor = moveCursor(m.cursor, total, cols, 0, -1)
	case key.Matches(msg, m.keys.Right):
		m.cursor = moveCursor(m.cursor, total, cols, 0, 1)

	case key.Matches(msg, m.keys.Launch):
		if app, ok := m.selectedApp(); ok {
			m.status = ""
			return m, m.doLaunch(app)
		}
	case key.Matches(msg, m.keys.Search):
		m.searching = true
		m.search.Focus()
		return m, textinput.Blink
	case key.Matches(msg, m.keys.Pin):
		if app, ok := m.selectedApp(); ok {
			if pinned, err := m.session.TogglePin(app.ID); err == nil {
				m.status = pinStatus(app, pinned)
			}
			m.cursor = clampCursor(m.cursor, len(m.ordered()))
		}
	case key.Matches(msg, m.keys.Group):
		if app, ok := m.selectedApp(); ok {
			m.editing = app
			m.groupCursor = 0
			current := m.session.GroupOf(app)
			for i, g := range apps.Groups {
				if g == current {
					m.groupCursor = i
				}
			}
			m.currentView = viewGroupEditor
		}
	case key.Matches(msg, m.keys.NextGroup), key.Matches(msg, m.keys.PrevGroup):
		step := 1
		if key.Matches(msg, m.keys.PrevGroup) {
			step = -1
		}
		_ = m.session.SetActiveGroup(cycleNav(m.session.ActiveGroup(), step))
		m.cursor = 0
	case key.Matches(msg, m.keys.MoveLeft), key.Matches(msg, m.keys.MoveRight):
		dir := 1
		if key.Matches(msg, m.keys.MoveLeft) {
			dir = -1
		}
		items := m.ordered()
		target := m.cursor + dir
		if m.cursor < len(items) && target >= 0 && target < len(items) {
			if m.session.Move(items[m.cursor].ID, items[target].ID) {
				m.cursor = target
			}
		}
	case key.Matches(msg, m.keys.ResetOrder):
		m.session.ResetOrder()
		m.status = "Order reset"
	case key.Matches(msg, m.keys.Rescan):
		m.scanning = true
		m.currentView = viewScanning
		m.progress = apps.NewProgress(apps.PhaseScan, 0, 1, m.session.Catalog().T(i18n.ScanStarting))
		m.progressCh = make(chan apps.ScanProgress, 16)
		return m, tea.Batch(m.startLoad(m.progressCh, true), listenProgress(m.progressCh), m.spinner.Tick)
	case key.Matches(msg, m.keys.Mode):
		m.status = "Mode: " + string(m.session.CycleMode())
	case key.Matches(msg, m.keys.News):
		m.newsVisible = !m.newsVisible
	case key.Matches(msg, m.keys.NewsTab):
		m.newsCategory = nextCategory(m.newsCategory)
		m.newsLoading = true
		m.newsItems = nil
		m.newsNotice = ""
		return m, tea.Batch(m.loadNews(m.newsCategory), m.spinner.Tick)
	case key.Matches(msg, m.keys.Nav):
		m.session.ToggleNav()
	case key.Matches(msg, m.keys.Stop):
		if !m.session.Loop().Active() {
			m.status = "Stopping apps is only available on desktop"
			return m, nil
		}
		if app, ok := m.selectedApp(); ok {
			m.stopTargets = []apps.InstalledApp{app}
			m.currentView = viewStopConfirm
		}
	case key.Matches(msg, m.keys.StopAll):
		if !m.session.Loop().Active() {
			m.status = "Stopping apps is only available on desktop"
			return m, nil
		}
		if rec := m.session.Recommended(); len(rec) > 0 {
			m.stopTargets = rec
			m.currentView = viewStopConfirm
		} else {
			m.status = "No apps are recommended for closing"
		}
	case key.Matches(msg, m.keys.Help):
		m.help.ShowAll = !m.help.ShowAll
	case msg.String() == "esc":
		if m.session.Query() != "" {
			m.search.SetValue("")
			m.session.SetQuery("")
			m.cursor = 0
		}
	}
	return m, nil
}

func pinStatus(app apps.InstalledApp, pinned bool) string {
	if pinned {
		return "Pinned " + app.Name
	}
	return "Unpinned " + app.Name
}

func nextCategory(c news.Category) news.Category {
	for i, cat := range news.Categories {
		if cat == c {
			return news.Categories[(i+1)%len(news.Categories)]
		}
	}
	return news.National
}

func (m Model) updateGroupEditor(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "up", "k":
		if m.groupCursor > 0 {
			m.groupCursor--
		}
	case "down", "j":
		if m.groupCursor < len(apps.Groups)-1 {
			m.groupCursor++
		}
	case "enter":
		g := apps.Groups[m.groupCursor]
		if err := m.session.SetGroup(m.editing.ID, g); err != nil {
			m.setAlert("Group not changed", err.Error())
		} else {
			m.status = fmt.Sprintf("%s moved to %s", m.editing.Name, g.Label())
		}
		m.currentView = viewGrid
		m.cursor = clampCursor(m.cursor, len(m.ordered()))
	case "x":
		m.session.ClearGroup(m.editing.ID)
		m.status = fmt.Sprintf("%s uses its detected group", m.editing.Name)
		m.currentView = viewGrid
		m.cursor = clampCursor(m.cursor, len(m.ordered()))
	case "esc", "q":
		m.currentView = viewGrid
	}
	return m, nil
}

func (m Model) updateStopConfirm(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "y":
		targets := m.stopTargets
		m.stopTargets = nil
		m.currentView = viewGrid
		m.status = fmt.Sprintf("Stopping %d app(s)...", len(targets))
		return m, m.doStop(targets)
	case "n", "esc", "backspace":
		m.stopTargets = nil
		m.currentView = viewGrid
	}
	return m, nil
}

// --- Views ---

func (m Model) View() string {
	if m.alertTitle != "" || m.alertText != "" {
		return m.viewGrid() + "\n" + alertStyle.Render(m.alertTitle+"\n"+m.alertText) + "\n" +
			renderFooter("press any key")
	}

	switch m.currentView {
	case viewScanning:
		return m.viewScanning()
	case viewGroupEditor:
		return m.viewGroupEditor()
	case viewStopConfirm:
		return m.viewStopConfirm()
	default:
		return m.viewGrid()
	}
}

func (m Model) viewScanning() string {
	s := titleStyle.Render("launchdeck") + "\n\n"
	s += m.spinner.View() + " " + m.progress.Message + "\n\n"
	s += renderProgressBar(m.progress.Percent/100, 40)
	s += fmt.Sprintf(" %3.0f%%\n", m.progress.Percent)
	return s + helpStyle.Render("q quit")
}

func (m Model) viewGrid() string {
	layout := m.session.Layout()
	active := m.session.ActiveGroup()
	mode := m.session.Mode()

	s := renderHeader(navLabel(active))
	if m.searching || m.session.Query() != "" {
		s += m.search.View()
		if layout.Fuzzy {
			s += dimStyle.Render("  (fuzzy)")
		}
		s += "\n"
	}

	navCollapsed := m.session.NavCollapsed()
	nav := renderNav(layout, active, navCollapsed)

	width := m.width
	if width <= 0 {
		width = 120
	}
	gridWidth := width - lipgloss.Width(nav) - 2
	if m.newsVisible {
		gridWidth -= 42
	}
	cols := m.gridColumns()
	cellWidth := max(gridWidth/cols-4, 10)

	grid := m.renderGrid(layout, active, cols, cellWidth, mode == apps.ModeElderly)

	panels := []string{nav, " ", grid}
	if m.newsVisible {
		panels = append(panels, " ", m.viewNews(40))
	}
	s += lipgloss.JoinHorizontal(lipgloss.Top, panels...) + "\n\n"

	s += m.viewStatusBar(mode) + "\n"
	if m.status != "" {
		s += noticeStyle.Render(m.status) + "\n"
	}
	return s + renderFooter(m.help.View(m.keys))
}

func (m Model) renderGrid(layout prefs.Layout, active string, cols, cellWidth int, large bool) string {
	pending := m.session.PendingConfirm()
	index := 0
	cells := func(items []apps.InstalledApp, pinned bool) string {
		var out []string
		for _, app := range items {
			out = append(out, renderCell(cellInfo{
				app:      app,
				stat:     m.session.Runtime(app),
				stopping: m.session.Stopping(app.ID),
				pinned:   pinned,
				selected: index == m.cursor,
				pending:  app.ID == pending,
			}, cellWidth, large))
			index++
		}
		return renderRows(out, cols)
	}

	var sections []string
	if len(layout.Pinned) > 0 {
		sections = append(sections, selectedStyle.Render("Pinned")+"\n"+cells(layout.Pinned, true))
	}
	for _, g := range layout.Visible(active) {
		header := lipgloss.NewStyle().Bold(true).Foreground(groupColor(g)).
			Render(fmt.Sprintf("%s (%d)", g.Label(), len(layout.Groups[g])))
		body := cells(layout.Groups[g], false)
		if len(layout.Groups[g]) == 0 {
			body = dimStyle.Render("  No apps")
		}
		sections = append(sections, header+"\n"+body)
	}
	if len(sections) == 0 {
		return dimStyle.Render("No apps match.")
	}
	return strings.Join(sections, "\n\n")
}

func (m Model) viewNews(width int) string {
	s := titleStyle.Render("News · "+string(m.newsCategory)) + "\n"
	if m.newsLoading {
		return newsPanelStyle.Width(width).Render(s + m.spinner.View() + " loading")
	}
	if m.newsNotice != "" {
		s += dimStyle.Render(m.newsNotice) + "\n"
	}
	for _, item := range m.newsItems {
		s += truncate(item.Title, width-2) + "\n"
		s += dimStyle.Render(truncate(item.Source+" · "+item.PublishedAt, width-2)) + "\n\n"
	}
	return newsPanelStyle.Width(width).Render(strings.TrimRight(s, "\n"))
}

func (m Model) viewStatusBar(mode apps.Mode) string {
	parts := []string{fmt.Sprintf("%d apps", len(m.session.Apps()))}
	if m.session.Loop().Active() {
		sum := m.session.Summary()
		parts = append(parts, fmt.Sprintf("running %d · starting %d · stopped %d", sum.Running, sum.Starting, sum.Stopped))
		if sum.Recommended > 0 {
			parts = append(parts, fmt.Sprintf("%d recommended to close", sum.Recommended))
		}
	}
	parts = append(parts, "mode "+string(mode))
	if m.fromCache {
		parts = append(parts, "cached")
	}
	if m.fallback {
		parts = append(parts, "fallback list")
	}
	return statusBarStyle.Render(strings.Join(parts, " | "))
}

func (m Model) viewGroupEditor() string {
	s := renderHeader("Group", m.editing.Name) + "\n"
	for i, g := range apps.Groups {
		if i == m.groupCursor {
			s += selectedStyle.Render("> "+g.Label()) + "\n"
		} else {
			s += "  " + lipgloss.NewStyle().Foreground(groupColor(g)).Render(g.Label()) + "\n"
		}
	}
	return s + renderFooter("j/k choose | enter set | x use detected | esc cancel")
}

func (m Model) viewStopConfirm() string {
	s := renderHeader("Stop") + "\n"
	s += fmt.Sprintf("Force-stop %d app(s)?\n\n", len(m.stopTargets))
	for _, app := range m.stopTargets {
		stat := m.session.Runtime(app)
		line := "  " + app.Name
		if stat.RecommendationReason != "" {
			line += dimStyle.Render("  " + stat.RecommendationReason)
		}
		s += line + "\n"
	}
	return s + renderFooter("y confirm | n cancel")
}
