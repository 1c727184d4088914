// Package tui provides a Bubble Tea browser for recorded session timelines.
package tui

import (
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/chronicle-dev/chronicle/internal/report"
	"github.com/chronicle-dev/chronicle/internal/store"
)

// ── Styles ────────────

var (
	// Title bar at the very top
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("15")).
			Background(lipgloss.Color("62")).
			Padding(0, 2)

	// Active tab: bright, underlined
	activeTabStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("15")).
			Background(lipgloss.Color("62")).
			Padding(0, 1)

	// Inactive tab: muted
	inactiveTabStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("245")).
				Background(lipgloss.Color("235")).
				Padding(0, 1)

	// Separator between tabs
	tabSepStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("238")).
			Background(lipgloss.Color("235"))

	// Section heading inside a tab
	sectionHeader = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("86"))

	// Key=value label
	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("33")).
			Bold(true)

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240"))

	timeStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("178"))

	bulletStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("205"))

	kindAddStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("82")).Bold(true)
	kindModifyStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("214")).Bold(true)
	kindDeleteStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	kindVcsStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("39")).Bold(true)

	statusBarStyle = lipgloss.NewStyle().
			Background(lipgloss.Color("235")).
			Foreground(lipgloss.Color("245")).
			Padding(0, 1)
)

// ── Tab definitions ─────────────────

type tabID int

const (
	tabSummary tabID = iota
	tabFiles
	tabGit
	tabTimeline
	tabCount
)

var tabNames = [tabCount]string{
	"Summary", "Files", "Git", "Timeline",
}

// ── Model ────────────────────

// Model is the root Bubble Tea model for the timeline browser.
type Model struct {
	timeline  *report.Timeline
	activeTab tabID
	viewports [tabCount]viewport.Model
	width     int
	height    int
	ready     bool
	sortAsc   bool
}

// New creates a new TUI model for the given timeline.
func New(tl *report.Timeline) Model {
	return Model{
		timeline: tl,
		sortAsc:  true,
	}
}

// ── Bubble Tea interface ───────────────

func (m Model) Init() tea.Cmd { return nil }

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "tab", "l", "right":
			m.activeTab = (m.activeTab + 1) % tabCount
		case "shift+tab", "h", "left":
			m.activeTab = (m.activeTab - 1 + tabCount) % tabCount
		case "1", "2", "3", "4":
			m.activeTab = tabID(msg.String()[0] - '1')
		case "s":
			if m.activeTab == tabTimeline {
				m.sortAsc = !m.sortAsc
				m.rebuildTimelineViewport()
			}
		}
		var cmd tea.Cmd
		m.viewports[m.activeTab], cmd = m.viewports[m.activeTab].Update(msg)
		return m, cmd

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.ready = true
		m.initViewports()
		return m, nil
	}
	return m, nil
}

func (m Model) View() string {
	if !m.ready {
		return "Loading…"
	}

	// ── Row 1: title bar ──────────────────────────────────────────────────────
	title := titleStyle.Width(m.width).Render("  chronicle  " + shortID(m.timeline.Session.ID))

	// ── Row 2: tab bar ────────────────────────────────────────────────────────
	var tabParts []string
	for i := tabID(0); i < tabCount; i++ {
		label := fmt.Sprintf(" %d %s ", i+1, tabNames[i])
		if i == m.activeTab {
			tabParts = append(tabParts, activeTabStyle.Render(label))
		} else {
			tabParts = append(tabParts, inactiveTabStyle.Render(label))
		}
		if i < tabCount-1 {
			tabParts = append(tabParts, tabSepStyle.Render("│"))
		}
	}
	tabRow := lipgloss.NewStyle().
		Background(lipgloss.Color("235")).
		Width(m.width).
		Render(lipgloss.JoinHorizontal(lipgloss.Top, tabParts...))

	// ── Row 3…N-1: scrollable content ────────────────────────────────────────
	content := m.viewports[m.activeTab].View()

	// ── Row N: status / hint bar ──────────────────────────────────────────────
	hint := "  ←/→ tab  ↑/↓ scroll  1-4 jump  q quit"
	if m.activeTab == tabTimeline {
		dir := "oldest first"
		if !m.sortAsc {
			dir = "newest first"
		}
		hint += "  s sort (" + dir + ")"
	}
	// show scroll % on the right
	pct := fmt.Sprintf("%3.0f%%", m.viewports[m.activeTab].ScrollPercent()*100)
	pad := m.width - lipgloss.Width(hint) - len(pct) - 2
	if pad < 1 {
		pad = 1
	}
	statusBar := statusBarStyle.Width(m.width).Render(
		hint + strings.Repeat(" ", pad) + pct,
	)

	return lipgloss.JoinVertical(lipgloss.Left, title, tabRow, content, statusBar)
}

// ── Viewport management ───────────────────────────────────────────────────────

func (m *Model) initViewports() {
	// title(1) + tabRow(1) + statusBar(1) = 3 fixed rows
	vpHeight := m.height - 3
	if vpHeight < 1 {
		vpHeight = 1
	}
	for i := tabID(0); i < tabCount; i++ {
		vp := viewport.New(m.width, vpHeight)
		vp.SetContent(m.renderTab(i))
		m.viewports[i] = vp
	}
}

func (m *Model) rebuildTimelineViewport() {
	m.viewports[tabTimeline].SetContent(m.renderTab(tabTimeline))
	m.viewports[tabTimeline].GotoTop()
}

// ── Tab renderers ─────────────────────────────────────────────────────────────

func (m *Model) renderTab(t tabID) string {
	switch t {
	case tabSummary:
		return m.renderSummary()
	case tabFiles:
		return m.renderFiles()
	case tabGit:
		return m.renderGit()
	case tabTimeline:
		return m.renderTimeline()
	}
	return ""
}

func heading(s string) string {
	return "\n" + sectionHeader.Render("  "+s) + "\n\n"
}

func bullet(text string) string {
	return bulletStyle.Render("  •") + "  " + text + "\n"
}

func (m *Model) renderSummary() string {
	s := m.timeline.Session
	var sb strings.Builder
	sb.WriteString(heading("Session Summary"))

	row := func(label, value string) {
		sb.WriteString(labelStyle.Render(fmt.Sprintf("  %-14s", label)) + "  " + value + "\n")
	}
	row("Session:", s.ID)
	row("Project:", s.ProjectPath)
	row("Status:", s.Status)
	row("Started:", s.StartedAt.Format("2006-01-02 15:04:05 MST"))
	if s.EndedAt != nil {
		row("Ended:", s.EndedAt.Format("2006-01-02 15:04:05 MST"))
	}
	row("Duration:", m.timeline.Duration)

	sb.WriteString("\n")
	sb.WriteString(heading("Counts"))
	row("File Changes:", fmt.Sprintf("%d", len(m.timeline.Snapshots)))
	row("Git Events:", fmt.Sprintf("%d", len(m.timeline.Events)))
	return sb.String()
}

func (m *Model) renderFiles() string {
	var sb strings.Builder
	sb.WriteString(heading(fmt.Sprintf("File Changes (%d)", len(m.timeline.Snapshots))))
	if len(m.timeline.Snapshots) == 0 {
		sb.WriteString(dimStyle.Render("  (none)") + "\n")
		return sb.String()
	}
	for _, s := range m.timeline.Snapshots {
		ts := timeStyle.Render(s.CapturedAt.Format("15:04:05"))
		badge := changeBadge(s.ChangeKind)
		size := ""
		if s.Size != nil {
			size = dimStyle.Render(fmt.Sprintf("  (%d bytes)", *s.Size))
		}
		sb.WriteString(fmt.Sprintf("  %s  %s  %s%s\n", ts, badge, s.Path, size))
	}
	return sb.String()
}

func (m *Model) renderGit() string {
	var sb strings.Builder
	sb.WriteString(heading(fmt.Sprintf("Git Events (%d)", len(m.timeline.Events))))
	if len(m.timeline.Events) == 0 {
		sb.WriteString(dimStyle.Render("  (none)") + "\n")
		return sb.String()
	}
	for _, e := range m.timeline.Events {
		ts := timeStyle.Render(e.OccurredAt.Format("15:04:05"))
		badge := kindVcsStyle.Render(fmt.Sprintf("[%s]", e.Kind))
		text := e.Message
		if e.Kind == store.EventCommit {
			text = shortID(e.CommitHash) + "  " + e.Message
		}
		sb.WriteString(fmt.Sprintf("  %s  %s  %s\n", ts, badge, text))
		for _, f := range e.FilesChanged {
			sb.WriteString(bullet(dimStyle.Render(f.Status) + "  " + f.Path))
		}
		sb.WriteString("\n")
	}
	return sb.String()
}

func (m *Model) renderTimeline() string {
	var sb strings.Builder

	dir := "oldest first"
	if !m.sortAsc {
		dir = "newest first"
	}
	sb.WriteString(heading(fmt.Sprintf("Timeline (%s)", dir)))

	entries := make([]report.Entry, len(m.timeline.Entries))
	copy(entries, m.timeline.Entries)
	if m.sortAsc {
		sort.SliceStable(entries, func(i, j int) bool { return entries[i].Timestamp.Before(entries[j].Timestamp) })
	} else {
		sort.SliceStable(entries, func(i, j int) bool { return entries[i].Timestamp.After(entries[j].Timestamp) })
	}

	if len(entries) == 0 {
		sb.WriteString(dimStyle.Render("  (nothing recorded in this session)") + "\n")
		return sb.String()
	}

	for _, entry := range entries {
		ts := timeStyle.Render(entry.Timestamp.Format("15:04:05"))
		badge := changeBadge(entry.Kind)
		sb.WriteString(ts + "  " + badge + "  " + entry.Text + "\n\n")
	}
	return sb.String()
}

// ── Helpers ───────────────────────────────────────────────────────────────────

// changeBadge picks a colored badge for a snapshot change kind or vcs event kind.
func changeBadge(kind string) string {
	padded := fmt.Sprintf("%-13s", strings.ToUpper(kind))
	switch kind {
	case store.ChangeAdded:
		return kindAddStyle.Render(padded)
	case store.ChangeModified:
		return kindModifyStyle.Render(padded)
	case store.ChangeDeleted:
		return kindDeleteStyle.Render(padded)
	default:
		return kindVcsStyle.Render(padded)
	}
}

// shortID abbreviates a uuid or commit hash for display.
func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// Run starts the TUI for the given timeline.
func Run(tl *report.Timeline) error {
	p := tea.NewProgram(New(tl), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
