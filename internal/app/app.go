// Package app is the orchestrating context: a Bubbletea model that owns
// every Repository record and both cache mappings. Probe workers, debounce
// timers, and the lazygit subprocess all deliver their effects here as
// messages; nothing outside Update ever mutates shared state.
package app

import (
	"context"
	"fmt"
	"os/exec"
	"sort"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/rs/zerolog"
	"github.com/sahilm/fuzzy"

	"github.com/jturner86/lzm/internal/config"
	"github.com/jturner86/lzm/internal/engine"
	"github.com/jturner86/lzm/internal/repo"
	"github.com/jturner86/lzm/internal/store"
	"github.com/jturner86/lzm/internal/watch"
)

// timeNow is swapped out in tests.
var timeNow = time.Now

// SortMode selects the table ordering.
type SortMode int

// Sort modes. Accessed is the default: the repo you worked on last is the
// one you most likely want next.
const (
	SortAccessed SortMode = iota
	SortName
	SortCommit
)

func (s SortMode) String() string {
	switch s {
	case SortName:
		return "name"
	case SortCommit:
		return "last commit"
	default:
		return "last accessed"
	}
}

// ── Messages ────────────────────────────────────────────────────────────────

// engineEventMsg wraps one engine event (BundleDone or BatchDone).
type engineEventMsg struct{ ev any }

// watchEventMsg wraps a debounced filesystem dirty signal.
type watchEventMsg struct{ ev watch.Event }

// probeErrorMsg carries one hard-error report for the error console.
type probeErrorMsg struct{ msg string }

// lazygitDoneMsg signals that the foreground lazygit session ended.
type lazygitDoneMsg struct {
	path string
	err  error
}

// ── Model ───────────────────────────────────────────────────────────────────

// Model is the top-level Bubbletea model.
type Model struct {
	cfg     *config.Config
	log     zerolog.Logger
	st      *store.Store
	eng     *engine.Engine
	watcher *watch.Watcher // nil when the watcher failed to start
	errCh   <-chan string

	repos  []*repo.Repository
	byPath map[string]*repo.Repository

	keys   KeyMap
	styles Styles
	tbl    table.Model
	filter textinput.Model

	filtering  bool
	sortMode   SortMode
	showErrors bool
	errLines   []string

	width  int
	height int
}

// New creates the application model. errCh is the channel the probe
// reporter writes to; watcher may be nil.
func New(cfg *config.Config, log zerolog.Logger, st *store.Store, eng *engine.Engine,
	watcher *watch.Watcher, errCh <-chan string, repos []*repo.Repository) Model {

	byPath := make(map[string]*repo.Repository, len(repos))
	for _, r := range repos {
		byPath[r.Path] = r
	}

	columns := []table.Column{
		{Title: "Repository", Width: 28},
		{Title: "Branch", Width: 18},
		{Title: "Status", Width: 10},
		{Title: "↑↓", Width: 8},
		{Title: "Last Accessed", Width: 17},
		{Title: "Last Commit", Width: 12},
		{Title: "", Width: 2},
	}
	tbl := table.New(
		table.WithColumns(columns),
		table.WithFocused(true),
	)
	ts := table.DefaultStyles()
	ts.Selected = DefaultStyles().Selected
	tbl.SetStyles(ts)

	filter := textinput.New()
	filter.Placeholder = "filter repositories"
	filter.Prompt = "/ "

	m := Model{
		cfg:     cfg,
		log:     log,
		st:      st,
		eng:     eng,
		watcher: watcher,
		errCh:   errCh,
		repos:   repos,
		byPath:  byPath,
		keys:    DefaultKeyMap(),
		styles:  DefaultStyles(),
		tbl:     tbl,
		filter:  filter,
	}
	m.rebuildRows()
	return m
}

// Init kicks off the initial bulk refresh and the message pumps.
func (m Model) Init() tea.Cmd {
	m.eng.RefreshAll(context.Background(), m.repos)
	cmds := []tea.Cmd{m.pumpEngine(), m.pumpErrors()}
	if m.watcher != nil {
		cmds = append(cmds, m.pumpWatcher())
	}
	return tea.Batch(cmds...)
}

// ── Channel pumps ───────────────────────────────────────────────────────────
//
// Each pump blocks on its channel inside a tea.Cmd goroutine and re-arms
// itself from the handler, so external events enter the single-threaded
// Update loop as ordinary messages.

func (m Model) pumpEngine() tea.Cmd {
	ch := m.eng.Events()
	return func() tea.Msg {
		ev, ok := <-ch
		if !ok {
			return nil
		}
		return engineEventMsg{ev: ev}
	}
}

func (m Model) pumpWatcher() tea.Cmd {
	ch := m.watcher.Events()
	return func() tea.Msg {
		ev, ok := <-ch
		if !ok {
			return nil
		}
		return watchEventMsg{ev: ev}
	}
}

func (m Model) pumpErrors() tea.Cmd {
	ch := m.errCh
	return func() tea.Msg {
		msg, ok := <-ch
		if !ok {
			return nil
		}
		return probeErrorMsg{msg: msg}
	}
}

// ── Update ──────────────────────────────────────────────────────────────────

// Update processes messages. This is the only place Repository records and
// the cache mappings are mutated.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.resize()
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case engineEventMsg:
		return m.handleEngineEvent(msg.ev)

	case watchEventMsg:
		r, ok := m.byPath[msg.ev.RepoPath]
		if ok {
			r.Dirty = true
			m.eng.RefreshSubset(context.Background(), []*repo.Repository{r})
			m.rebuildRows()
		}
		return m, m.pumpWatcher()

	case probeErrorMsg:
		m.appendError(msg.msg)
		return m, m.pumpErrors()

	case lazygitDoneMsg:
		if msg.err != nil {
			m.appendError(fmt.Sprintf("lazygit: %v", msg.err))
			m.log.Warn().Err(msg.err).Msg("lazygit exited with error")
		}
		// The session likely changed the repo; refresh it right away.
		if r, ok := m.byPath[msg.path]; ok {
			m.eng.RefreshSubset(context.Background(), []*repo.Repository{r})
		}
		m.rebuildRows()
		return m, nil
	}

	var cmd tea.Cmd
	m.tbl, cmd = m.tbl.Update(msg)
	return m, cmd
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.filtering {
		switch msg.String() {
		case "esc":
			m.filtering = false
			m.filter.SetValue("")
			m.filter.Blur()
			m.rebuildRows()
			return m, nil
		case "enter":
			m.filtering = false
			m.filter.Blur()
			return m, nil
		}
		var cmd tea.Cmd
		m.filter, cmd = m.filter.Update(msg)
		m.rebuildRows()
		return m, cmd
	}

	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit

	case key.Matches(msg, m.keys.Refresh):
		m.eng.RefreshAll(context.Background(), m.repos)
		m.rebuildRows()
		return m, nil

	case key.Matches(msg, m.keys.SortName):
		m.sortMode = SortName
		m.rebuildRows()
		return m, nil

	case key.Matches(msg, m.keys.SortAccessed):
		m.sortMode = SortAccessed
		m.rebuildRows()
		return m, nil

	case key.Matches(msg, m.keys.SortCommit):
		m.sortMode = SortCommit
		m.rebuildRows()
		return m, nil

	case key.Matches(msg, m.keys.Errors):
		m.showErrors = !m.showErrors
		m.resize()
		return m, nil

	case key.Matches(msg, m.keys.Filter):
		m.filtering = true
		return m, m.filter.Focus()

	case key.Matches(msg, m.keys.Back):
		if m.filter.Value() != "" {
			m.filter.SetValue("")
			m.rebuildRows()
		}
		return m, nil

	case key.Matches(msg, m.keys.Enter):
		return m, m.launchSelected()
	}

	var cmd tea.Cmd
	m.tbl, cmd = m.tbl.Update(msg)
	return m, cmd
}

func (m Model) handleEngineEvent(ev any) (tea.Model, tea.Cmd) {
	switch ev := ev.(type) {
	case engine.BundleDone:
		if r, ok := m.byPath[ev.Result.Path]; ok {
			if m.eng.Integrate(r, ev.Result) {
				// The repo changed while this bundle ran; probe it again.
				m.eng.RefreshSubset(context.Background(), []*repo.Repository{r})
			}
		}
		m.rebuildRows()

	case engine.BatchDone:
		if err := m.eng.Flush(); err != nil {
			m.appendError(fmt.Sprintf("saving metadata cache: %v", err))
			m.log.Error().Err(err).Msg("metadata cache save failed")
		}
		m.log.Debug().Int("repos", ev.Count).Bool("targeted", ev.Targeted).Msg("refresh batch finished")
	}
	return m, m.pumpEngine()
}

// launchSelected records the access and swaps lazygit into the foreground.
func (m *Model) launchSelected() tea.Cmd {
	visible := m.visible()
	idx := m.tbl.Cursor()
	if idx < 0 || idx >= len(visible) {
		return nil
	}
	r := visible[idx]

	now := timeNow()
	m.st.RecordAccess(r.Path, now)
	if err := m.st.SaveAccessHistory(); err != nil {
		m.appendError(fmt.Sprintf("saving access history: %v", err))
		m.log.Error().Err(err).Msg("access history save failed")
	}
	ts := now
	r.LastAccessed = &ts
	m.rebuildRows()

	cmd := exec.Command(m.cfg.LazygitCommand)
	cmd.Dir = r.Path
	path := r.Path
	return tea.ExecProcess(cmd, func(err error) tea.Msg {
		return lazygitDoneMsg{path: path, err: err}
	})
}

// ── Presentation ────────────────────────────────────────────────────────────

// visible returns the repositories in display order: fuzzy-filtered when a
// filter is set, otherwise sorted by the active mode.
func (m Model) visible() []*repo.Repository {
	if q := m.filter.Value(); q != "" {
		names := make([]string, len(m.repos))
		for i, r := range m.repos {
			names[i] = r.Name
		}
		matches := fuzzy.Find(q, names)
		out := make([]*repo.Repository, len(matches))
		for i, match := range matches {
			out[i] = m.repos[match.Index]
		}
		return out
	}

	out := make([]*repo.Repository, len(m.repos))
	copy(out, m.repos)
	switch m.sortMode {
	case SortName:
		sort.SliceStable(out, func(i, j int) bool {
			return out[i].SortKeyName() < out[j].SortKeyName()
		})
	case SortCommit:
		sort.SliceStable(out, func(i, j int) bool {
			return out[i].SortKeyCommit().After(out[j].SortKeyCommit())
		})
	default:
		sort.SliceStable(out, func(i, j int) bool {
			return out[i].SortKeyAccessed().After(out[j].SortKeyAccessed())
		})
	}
	return out
}

func (m *Model) rebuildRows() {
	visible := m.visible()
	rows := make([]table.Row, len(visible))
	for i, r := range visible {
		rows[i] = table.Row{
			r.Name,
			branchCell(r),
			statusCell(r),
			trackingCell(r),
			accessedCell(r),
			commitCell(r),
			loadingCell(r),
		}
	}
	m.tbl.SetRows(rows)
	if cur := m.tbl.Cursor(); cur >= len(rows) && len(rows) > 0 {
		m.tbl.SetCursor(len(rows) - 1)
	}
}

func (m *Model) appendError(msg string) {
	m.errLines = append(m.errLines, timestamp(timeNow())+" "+msg)
}

func (m *Model) resize() {
	h := m.height - 3 // title + status bar
	if m.showErrors {
		h -= m.errorPanelHeight()
	}
	if h < 3 {
		h = 3
	}
	m.tbl.SetHeight(h)
	m.tbl.SetWidth(m.width)
}

func (m Model) errorPanelHeight() int {
	h := m.height / 3
	if h < 4 {
		h = 4
	}
	return h
}

// View renders the UI. Pure — no I/O here.
func (m Model) View() string {
	if m.width == 0 || m.height == 0 {
		return ""
	}

	title := m.styles.Title.Render("lzm") + " " +
		m.styles.Subtitle.Render(fmt.Sprintf("· %s · sorted by %s", m.cfg.BaseDir, m.sortMode))

	var body string
	if len(m.repos) == 0 {
		body = m.styles.Muted.Render(fmt.Sprintf("No git repositories found in %s", m.cfg.BaseDir))
	} else {
		body = m.tbl.View()
	}

	sections := []string{title, body}

	if m.showErrors {
		sections = append(sections, m.renderErrorPanel())
	}

	var bar string
	if m.filtering {
		bar = m.filter.View()
	} else {
		bar = m.styles.StatusBar.Render(
			"enter open · r refresh · n/a/c sort · / filter · e errors · q quit")
	}
	sections = append(sections, bar)

	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func (m Model) renderErrorPanel() string {
	h := m.errorPanelHeight() - 1
	lines := m.errLines
	if len(lines) > h {
		lines = lines[len(lines)-h:]
	}
	content := m.styles.Header.Render("Errors")
	for _, l := range lines {
		content += "\n" + m.styles.ErrorText.Render(l)
	}
	if len(lines) == 0 {
		content += "\n" + m.styles.Muted.Render("no errors")
	}
	return m.styles.Panel.Width(m.width).Render(content)
}
