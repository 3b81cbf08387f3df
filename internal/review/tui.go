// Package review is the interactive record browser: a split-pane TUI over
// the snapshot store, with a stage-filtered pane and a per-record detail
// view that pulls the record's transition history on demand.
package review

import (
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/khalidmab/jobpress/internal/model"
)

// Lines per record item in the list view (title + subtitle + blank separator).
const recordItemHeight = 3

type viewState int

const (
	viewList viewState = iota
	viewDetail
)

var (
	activeBorderStyle = lipgloss.NewStyle().
				Border(lipgloss.RoundedBorder()).
				BorderForeground(lipgloss.Color("39")) // bright blue

	inactiveBorderStyle = lipgloss.NewStyle().
				Border(lipgloss.RoundedBorder()).
				BorderForeground(lipgloss.Color("240")) // dim gray

	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Padding(0, 1)

	activeHeaderStyle = headerStyle.
				Foreground(lipgloss.Color("39"))

	inactiveHeaderStyle = headerStyle.
				Foreground(lipgloss.Color("240"))

	statusBarStyle = lipgloss.NewStyle().
			Padding(0, 1).
			Foreground(lipgloss.Color("252")).
			Background(lipgloss.Color("236"))

	itemTitleStyle = lipgloss.NewStyle().
			Bold(true)

	itemSubtitleStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("245"))

	selectedItemTitleStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(lipgloss.Color("15")).
				Background(lipgloss.Color("24"))

	selectedItemSubtitleStyle = lipgloss.NewStyle().
					Foreground(lipgloss.Color("252")).
					Background(lipgloss.Color("24"))

	detailLabelStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(lipgloss.Color("39")).
				Width(16)

	detailValueStyle = lipgloss.NewStyle()

	detailTitleStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(lipgloss.Color("15")).
				MarginBottom(1)

	dividerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240"))

	hintStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("245")).
			Italic(true)

	bodyStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("252"))

	warnStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("214"))

	errStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196"))
)

// stageFilters is the cycle order for the right pane's stage filter; the
// left pane always shows every record.
var stageFilters = []model.Stage{
	model.StageFailed,
	model.StageScraped,
	model.StageEnriched,
	model.StageValidated,
	model.StagePublished,
}

// HistoryReader supplies a record's transition history for the detail view.
// May be nil; the detail view then shows the record alone.
type HistoryReader interface {
	RecentFor(identity string, limit int) ([]model.Transition, error)
}

// historyMsg is sent when an async history load completes.
type historyMsg struct {
	identity    string
	transitions []model.Transition
	err         error
}

type reviewModel struct {
	allRecords []model.JobRecord

	filterIdx       int
	filteredRecords []model.JobRecord

	leftViewport  viewport.Model
	rightViewport viewport.Model
	activePane    int // 0=left, 1=right
	leftCursor    int
	rightCursor   int
	width         int
	height        int
	ready         bool

	view           viewState
	detailRecord   model.JobRecord
	detailHistory  []model.Transition
	historyLoading bool
	historyError   string
	detailViewport viewport.Model
	showRaw        bool

	histories HistoryReader
}

func (m reviewModel) Init() tea.Cmd {
	return nil
}

func (m reviewModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.recalcLayout()
		if m.view == viewDetail {
			m.detailViewport.Width = m.width - 4
			m.detailViewport.Height = m.height - 4
			m.detailViewport.SetContent(m.renderDetail())
		}
		return m, nil

	case historyMsg:
		if msg.identity != m.detailRecord.Identity {
			return m, nil
		}
		m.historyLoading = false
		if msg.err != nil {
			m.historyError = fmt.Sprintf("failed to load history: %v", msg.err)
		} else {
			m.historyError = ""
			m.detailHistory = msg.transitions
		}
		m.detailViewport.SetContent(m.renderDetail())
		return m, nil

	case tea.KeyMsg:
		if m.view == viewDetail {
			return m.updateDetailView(msg)
		}
		return m.updateListView(msg)
	}

	return m, nil
}

func (m reviewModel) updateListView(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c", "esc":
		return m, tea.Quit
	case "tab", "left", "right":
		m.activePane = 1 - m.activePane
		m.recalcContent()
		return m, nil
	case "f":
		m.filterIdx = (m.filterIdx + 1) % len(stageFilters)
		m.applyFilter()
		m.rightCursor = 0
		m.recalcContent()
		return m, nil
	case "up", "k":
		m.moveCursor(-1)
		m.recalcContent()
		m.ensureCursorVisible()
		return m, nil
	case "down", "j":
		m.moveCursor(1)
		m.recalcContent()
		m.ensureCursorVisible()
		return m, nil
	case "enter":
		return m.openDetailView()
	}

	// Forward other keys (pgup/pgdn/home/end) to the active viewport.
	var cmd tea.Cmd
	if m.activePane == 0 {
		m.leftViewport, cmd = m.leftViewport.Update(msg)
	} else {
		m.rightViewport, cmd = m.rightViewport.Update(msg)
	}
	return m, cmd
}

func (m reviewModel) updateDetailView(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit
	case "esc", "backspace":
		m.view = viewList
		return m, nil
	case "r":
		if m.detailRecord.Raw.Description != "" {
			m.showRaw = !m.showRaw
			m.detailViewport.SetContent(m.renderDetail())
			m.detailViewport.SetYOffset(0)
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.detailViewport, cmd = m.detailViewport.Update(msg)
	return m, cmd
}

func (m *reviewModel) applyFilter() {
	stage := stageFilters[m.filterIdx]
	m.filteredRecords = m.filteredRecords[:0]
	for _, rec := range m.allRecords {
		if rec.Stage == stage {
			m.filteredRecords = append(m.filteredRecords, rec)
		}
	}
}

func (m *reviewModel) moveCursor(delta int) {
	if m.activePane == 0 {
		m.leftCursor = clamp(m.leftCursor+delta, 0, max(len(m.allRecords)-1, 0))
	} else {
		m.rightCursor = clamp(m.rightCursor+delta, 0, max(len(m.filteredRecords)-1, 0))
	}
}

func (m *reviewModel) ensureCursorVisible() {
	var vp *viewport.Model
	var cursor int
	if m.activePane == 0 {
		vp = &m.leftViewport
		cursor = m.leftCursor
	} else {
		vp = &m.rightViewport
		cursor = m.rightCursor
	}

	cursorTop := cursor * recordItemHeight
	cursorBottom := cursorTop + recordItemHeight - 1

	if cursorTop < vp.YOffset {
		vp.SetYOffset(cursorTop)
	} else if cursorBottom >= vp.YOffset+vp.Height {
		vp.SetYOffset(cursorBottom - vp.Height + 1)
	}
}

func (m reviewModel) openDetailView() (tea.Model, tea.Cmd) {
	records := m.activeRecords()
	cursor := m.activeCursor()
	if len(records) == 0 {
		return m, nil
	}

	m.view = viewDetail
	m.detailRecord = records[cursor]
	m.detailHistory = nil
	m.historyError = ""
	m.showRaw = false
	m.detailViewport = viewport.New(m.width-4, m.height-4)
	m.detailViewport.SetContent(m.renderDetail())

	if m.histories != nil {
		m.historyLoading = true
		return m, m.loadHistoryCmd(m.detailRecord.Identity)
	}
	return m, nil
}

func (m reviewModel) loadHistoryCmd(identity string) tea.Cmd {
	histories := m.histories
	return func() tea.Msg {
		transitions, err := histories.RecentFor(identity, 20)
		return historyMsg{identity: identity, transitions: transitions, err: err}
	}
}

func (m *reviewModel) recalcLayout() {
	// 2 border chars per pane + 1 gap between panes.
	paneWidth := max((m.width-5)/2, 20)

	// Header (1 line) + border top/bottom (2) + status bar (1) = 4 lines overhead.
	paneHeight := max(m.height-4, 5)

	if !m.ready {
		m.leftViewport = viewport.New(paneWidth, paneHeight)
		m.rightViewport = viewport.New(paneWidth, paneHeight)
		m.ready = true
	} else {
		m.leftViewport.Width = paneWidth
		m.leftViewport.Height = paneHeight
		m.rightViewport.Width = paneWidth
		m.rightViewport.Height = paneHeight
	}

	m.recalcContent()
}

func (m *reviewModel) recalcContent() {
	m.leftViewport.SetContent(renderRecords(m.allRecords, m.leftCursor, m.activePane == 0))
	m.rightViewport.SetContent(renderRecords(m.filteredRecords, m.rightCursor, m.activePane == 1))
}

func (m reviewModel) activeRecords() []model.JobRecord {
	if m.activePane == 0 {
		return m.allRecords
	}
	return m.filteredRecords
}

func (m reviewModel) activeCursor() int {
	if m.activePane == 0 {
		return m.leftCursor
	}
	return m.rightCursor
}

func (m reviewModel) View() string {
	if !m.ready {
		return "Initializing..."
	}

	if m.view == viewDetail {
		return m.viewDetail()
	}

	return m.viewList()
}

func (m reviewModel) viewList() string {
	paneWidth := m.leftViewport.Width

	leftHeader := fmt.Sprintf(" All Records (%d)", len(m.allRecords))
	rightHeader := fmt.Sprintf(" Stage: %s (%d)", stageFilters[m.filterIdx], len(m.filteredRecords))

	var leftHeaderRendered, rightHeaderRendered string
	var leftBorder, rightBorder lipgloss.Style

	if m.activePane == 0 {
		leftHeaderRendered = activeHeaderStyle.Render(leftHeader)
		rightHeaderRendered = inactiveHeaderStyle.Render(rightHeader)
		leftBorder = activeBorderStyle.Width(paneWidth)
		rightBorder = inactiveBorderStyle.Width(paneWidth)
	} else {
		leftHeaderRendered = inactiveHeaderStyle.Render(leftHeader)
		rightHeaderRendered = activeHeaderStyle.Render(rightHeader)
		leftBorder = inactiveBorderStyle.Width(paneWidth)
		rightBorder = activeBorderStyle.Width(paneWidth)
	}

	leftPane := leftBorder.Render(m.leftViewport.View())
	rightPane := rightBorder.Render(m.rightViewport.View())

	headerRow := lipgloss.JoinHorizontal(lipgloss.Top,
		lipgloss.NewStyle().Width(paneWidth+2).Render(leftHeaderRendered),
		" ",
		lipgloss.NewStyle().Width(paneWidth+2).Render(rightHeaderRendered),
	)

	panes := lipgloss.JoinHorizontal(lipgloss.Top, leftPane, " ", rightPane)

	statusText := fmt.Sprintf(" %d records    ←/→/Tab switch  f stage filter  ↑/↓ cursor  Enter detail  q quit",
		len(m.allRecords))
	statusBar := statusBarStyle.Width(m.width).Render(statusText)

	return headerRow + "\n" + panes + "\n" + statusBar
}

func (m reviewModel) viewDetail() string {
	title := detailTitleStyle.Render("Record Details")
	if m.historyLoading {
		title += "  (loading history...)"
	}

	border := activeBorderStyle.Width(m.width - 2)
	content := border.Render(m.detailViewport.View())

	statusText := " esc/backspace back  ↑/↓ scroll  q quit"
	if m.detailRecord.Raw.Description != "" {
		statusText = " r raw description  esc/backspace back  ↑/↓ scroll  q quit"
	}
	statusBar := statusBarStyle.Width(m.width).Render(statusText)

	return title + "\n" + content + "\n" + statusBar
}

func (m reviewModel) renderDetail() string {
	rec := m.detailRecord
	var b strings.Builder

	addField := func(label, value string) {
		if value == "" {
			return
		}
		b.WriteString(detailLabelStyle.Render(label))
		b.WriteString(detailValueStyle.Render(value))
		b.WriteByte('\n')
	}

	addField("Identity", rec.Identity)
	addField("Stage", string(rec.Stage))
	addField("Source URL", rec.SourceURL)
	addField("Scraped At", rec.ScrapedAt.Format("2006-01-02 15:04 MST"))
	if rec.EnrichedAt != nil {
		addField("Enriched At", rec.EnrichedAt.Format("2006-01-02 15:04 MST"))
	}
	if rec.PublishedAt != nil {
		addField("Published At", rec.PublishedAt.Format("2006-01-02 15:04 MST"))
	}

	wrapWidth := max(m.width-8, 20)
	divider := func(label string) string {
		fill := strings.Repeat("─", max(wrapWidth-len(label), 3))
		return dividerStyle.Render(label + fill)
	}

	if s := rec.Structured; s != nil {
		b.WriteByte('\n')
		b.WriteString(divider("── Structured ") + "\n\n")
		addField("Title", s.Title)
		addField("Organization", s.Organization)
		addField("Summary", s.Summary)
		if len(s.Categories) > 0 {
			addField("Categories", strings.Join(s.Categories, ", "))
		}
		if len(s.Skills) > 0 {
			addField("Skills", strings.Join(s.Skills, ", "))
		}
		addField("Employment", s.EmploymentType)
		addField("City", s.City)
		addField("Country", s.Country)
		addField("Salary", formatSalary(*s))
		addField("Posted", s.PostedDate)
		addField("Deadline", s.Deadline)
	}

	if loc := rec.Location; loc != nil {
		addField("Geocoded", fmt.Sprintf("%s (%.4f, %.4f)", loc.CanonicalName, loc.Lat, loc.Lon))
	}

	if pub := rec.Publish; pub != nil {
		b.WriteByte('\n')
		addField("Post ID", pub.PostID)
		addField("Permalink", pub.Permalink)
		addField("Published Via", pub.Via)
	}

	if f := rec.Failure; f != nil {
		b.WriteByte('\n')
		b.WriteString(errStyle.Render(fmt.Sprintf("⚠ %s failure at %s (attempt %d): %s",
			f.Kind, f.Stage, f.Attempts, f.Message)) + "\n")
	}

	for _, w := range rec.Warnings {
		b.WriteString(warnStyle.Render("⚠ "+w) + "\n")
	}

	if m.historyError != "" {
		b.WriteByte('\n')
		b.WriteString(errStyle.Render("⚠ "+m.historyError) + "\n")
	}
	if len(m.detailHistory) > 0 {
		b.WriteByte('\n')
		b.WriteString(divider("── History ") + "\n\n")
		for _, t := range m.detailHistory {
			line := fmt.Sprintf("  %s  %s → %s", t.At.Format("2006-01-02 15:04"), t.From, t.To)
			if t.Kind != "" {
				line += fmt.Sprintf(" (%s)", t.Kind)
			}
			b.WriteString(detailValueStyle.Render(line) + "\n")
		}
	}

	if rec.Raw.Description != "" {
		b.WriteByte('\n')
		if m.showRaw {
			b.WriteString(divider("── Raw Description ") + "\n\n")
			b.WriteString(bodyStyle.Render(wordWrap(rec.Raw.Description, wrapWidth)) + "\n")
		} else {
			b.WriteString(hintStyle.Render("  press r to read the raw description") + "\n")
		}
	}

	return b.String()
}

func formatSalary(s model.StructuredFields) string {
	if s.SalaryUnknown {
		return "unknown"
	}
	currency := s.SalaryCurrency
	if currency == "" {
		currency = "AED"
	}
	switch {
	case s.SalaryMin > 0 && s.SalaryMax > 0:
		return fmt.Sprintf("%s %d - %d %s", currency, s.SalaryMin, s.SalaryMax, s.SalaryPeriod)
	case s.SalaryMin > 0:
		return fmt.Sprintf("%s %d+ %s", currency, s.SalaryMin, s.SalaryPeriod)
	case s.SalaryMax > 0:
		return fmt.Sprintf("up to %s %d %s", currency, s.SalaryMax, s.SalaryPeriod)
	}
	return ""
}

func renderRecords(records []model.JobRecord, cursor int, isActive bool) string {
	if len(records) == 0 {
		return "  (no records)"
	}

	var b strings.Builder
	for i, rec := range records {
		isSelected := isActive && i == cursor

		titleSt := itemTitleStyle
		subtitleSt := itemSubtitleStyle
		prefix := "  "
		if isSelected {
			titleSt = selectedItemTitleStyle
			subtitleSt = selectedItemSubtitleStyle
			prefix = "> "
		}

		title := rec.SourceURL
		if rec.Structured != nil && rec.Structured.Title != "" {
			title = rec.Structured.Title
			if rec.Structured.Organization != "" {
				title += " · " + rec.Structured.Organization
			}
		}

		b.WriteString(prefix)
		b.WriteString(titleSt.Render(title))
		b.WriteByte('\n')

		subtitle := fmt.Sprintf("%s · %s · %s", rec.Stage, rec.Identity, rec.ScrapedAt.Format("2006-01-02"))
		if rec.Stage == model.StageFailed && rec.Failure != nil {
			subtitle = fmt.Sprintf("%s (%s) · %s", rec.Stage, rec.Failure.Kind, rec.Identity)
		}
		b.WriteString(prefix)
		b.WriteString(subtitleSt.Render(subtitle))
		b.WriteByte('\n')

		if i < len(records)-1 {
			b.WriteByte('\n')
		}
	}
	return b.String()
}

func sortRecordsByScrapedAt(records []model.JobRecord) {
	sort.Slice(records, func(i, j int) bool {
		if !records[i].ScrapedAt.Equal(records[j].ScrapedAt) {
			return records[i].ScrapedAt.After(records[j].ScrapedAt)
		}
		return records[i].Identity < records[j].Identity
	})
}

func wordWrap(text string, width int) string {
	words := strings.Fields(text)
	if len(words) == 0 {
		return ""
	}
	var lines []string
	line := words[0]
	for _, w := range words[1:] {
		if len(line)+1+len(w) <= width {
			line += " " + w
		} else {
			lines = append(lines, line)
			line = w
		}
	}
	lines = append(lines, line)
	return strings.Join(lines, "\n")
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Run launches the record browser over the given records. histories may be
// nil when the transition log is unavailable.
func Run(records []model.JobRecord, histories HistoryReader) error {
	sortRecordsByScrapedAt(records)

	m := reviewModel{
		allRecords: records,
		histories:  histories,
	}
	m.applyFilter()

	p := tea.NewProgram(m, tea.WithAltScreen())
	_, err := p.Run()
	return err
}
