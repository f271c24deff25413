// Package history is the interactive browser over pipeline_runs: a scrolling
// list of recent runs with a per-run detail view.
package history

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"jobpulse/internal/model"
)

// Lines per run item in the list view (headline + subtitle + blank separator).
const runItemHeight = 3

type viewState int

const (
	viewList viewState = iota
	viewDetail
)

var (
	activeBorderStyle = lipgloss.NewStyle().
				Border(lipgloss.RoundedBorder()).
				BorderForeground(lipgloss.Color("39")) // bright blue

	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Padding(0, 1).
			Foreground(lipgloss.Color("39"))

	statusBarStyle = lipgloss.NewStyle().
			Padding(0, 1).
			Foreground(lipgloss.Color("252")).
			Background(lipgloss.Color("236"))

	runHeadlineStyle = lipgloss.NewStyle().
				Bold(true)

	runSubtitleStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("245"))

	selectedHeadlineStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(lipgloss.Color("15")). // bright white
				Background(lipgloss.Color("24"))  // dark blue bg

	selectedSubtitleStyle = lipgloss.NewStyle().
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

	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))  // green
	failedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("196")) // red
	runningStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("220")) // yellow

	errorBodyStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("252"))
)

type historyModel struct {
	runs     []model.RunRecord
	viewport viewport.Model
	cursor   int
	width    int
	height   int
	ready    bool

	view           viewState
	detailRun      model.RunRecord
	detailViewport viewport.Model
}

func (m historyModel) Init() tea.Cmd {
	return nil
}

func (m historyModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
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

	case tea.KeyMsg:
		if m.view == viewDetail {
			return m.updateDetailView(msg)
		}
		return m.updateListView(msg)
	}

	return m, nil
}

func (m historyModel) updateListView(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c", "esc":
		return m, tea.Quit
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

	// Forward other keys (pgup/pgdn/home/end) to the viewport.
	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

func (m historyModel) updateDetailView(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit
	case "esc", "backspace":
		m.view = viewList
		return m, nil
	}

	var cmd tea.Cmd
	m.detailViewport, cmd = m.detailViewport.Update(msg)
	return m, cmd
}

func (m *historyModel) moveCursor(delta int) {
	m.cursor = clamp(m.cursor+delta, 0, max(len(m.runs)-1, 0))
}

func (m *historyModel) ensureCursorVisible() {
	cursorTop := m.cursor * runItemHeight
	cursorBottom := cursorTop + runItemHeight - 1

	if cursorTop < m.viewport.YOffset {
		m.viewport.SetYOffset(cursorTop)
	} else if cursorBottom >= m.viewport.YOffset+m.viewport.Height {
		m.viewport.SetYOffset(cursorBottom - m.viewport.Height + 1)
	}
}

func (m historyModel) openDetailView() (tea.Model, tea.Cmd) {
	if len(m.runs) == 0 {
		return m, nil
	}

	m.view = viewDetail
	m.detailRun = m.runs[m.cursor]
	m.detailViewport = viewport.New(m.width-4, m.height-4)
	m.detailViewport.SetContent(m.renderDetail())
	return m, nil
}

func (m *historyModel) recalcLayout() {
	paneWidth := max(m.width-2, 20)

	// Header (1 line) + border top/bottom (2) + status bar (1) = 4 lines overhead.
	paneHeight := max(m.height-4, 5)

	if !m.ready {
		m.viewport = viewport.New(paneWidth, paneHeight)
		m.ready = true
	} else {
		m.viewport.Width = paneWidth
		m.viewport.Height = paneHeight
	}

	m.recalcContent()
}

func (m *historyModel) recalcContent() {
	m.viewport.SetContent(renderRuns(m.runs, m.cursor))
}

func (m historyModel) View() string {
	if !m.ready {
		return "Initializing..."
	}

	if m.view == viewDetail {
		return m.viewDetail()
	}

	return m.viewList()
}

func (m historyModel) viewList() string {
	header := headerStyle.Render(fmt.Sprintf(" Pipeline Runs (%d)", len(m.runs)))
	pane := activeBorderStyle.Width(m.viewport.Width).Render(m.viewport.View())

	statusText := " ↑/↓ cursor  Enter detail  q quit"
	statusBar := statusBarStyle.Width(m.width).Render(statusText)

	return header + "\n" + pane + "\n" + statusBar
}

func (m historyModel) viewDetail() string {
	title := detailTitleStyle.Render(fmt.Sprintf("Run #%d", m.detailRun.RunID))

	border := activeBorderStyle.Width(m.width - 2)
	content := border.Render(m.detailViewport.View())

	statusText := " esc/backspace back  ↑/↓ scroll  q quit"
	statusBar := statusBarStyle.Width(m.width).Render(statusText)

	return title + "\n" + content + "\n" + statusBar
}

func (m historyModel) renderDetail() string {
	r := m.detailRun
	var b strings.Builder

	addField := func(label, value string) {
		if value == "" {
			return
		}
		b.WriteString(detailLabelStyle.Render(label))
		b.WriteString(detailValueStyle.Render(value))
		b.WriteByte('\n')
	}

	addField("Pipeline", r.PipelineName)
	addField("Status", statusLabel(r.Status))
	addField("Started At", r.StartedAt.Local().Format("2006-01-02 15:04:05 MST"))
	if r.EndedAt != nil {
		addField("Ended At", r.EndedAt.Local().Format("2006-01-02 15:04:05 MST"))
		addField("Duration", r.EndedAt.Sub(r.StartedAt).Round(time.Second).String())
	}
	addField("Rows", fmt.Sprintf("%d", r.RowsProcessed))

	if r.Error != nil && *r.Error != "" {
		wrapWidth := max(m.width-8, 20)
		b.WriteByte('\n')
		b.WriteString(failedStyle.Render("Error") + "\n")
		b.WriteString(errorBodyStyle.Render(wordWrap(*r.Error, wrapWidth)) + "\n")
	}

	return b.String()
}

func statusLabel(status string) string {
	switch status {
	case model.RunStatusSuccess:
		return successStyle.Render(status)
	case model.RunStatusFailed:
		return failedStyle.Render(status)
	case model.RunStatusRunning:
		return runningStyle.Render(status)
	default:
		return status
	}
}

func renderRuns(runs []model.RunRecord, cursor int) string {
	if len(runs) == 0 {
		return "  (no runs)"
	}

	var b strings.Builder
	for i, r := range runs {
		isSelected := i == cursor

		headlineSt := runHeadlineStyle
		subtitleSt := runSubtitleStyle
		prefix := "  "
		if isSelected {
			headlineSt = selectedHeadlineStyle
			subtitleSt = selectedSubtitleStyle
			prefix = "> "
		}

		b.WriteString(prefix)
		b.WriteString(headlineSt.Render(fmt.Sprintf("#%d %s", r.RunID, r.PipelineName)))
		b.WriteString("  ")
		b.WriteString(statusLabel(r.Status))
		b.WriteByte('\n')

		duration := "running"
		if r.EndedAt != nil {
			duration = r.EndedAt.Sub(r.StartedAt).Round(time.Second).String()
		}
		b.WriteString(prefix)
		b.WriteString(subtitleSt.Render(fmt.Sprintf("%s · %s · %d rows",
			r.StartedAt.Local().Format("2006-01-02 15:04"), duration, r.RowsProcessed)))
		b.WriteByte('\n')

		if i < len(runs)-1 {
			b.WriteByte('\n')
		}
	}
	return b.String()
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

// RunHistoryTUI launches the interactive run browser. Runs are shown newest
// first, as returned by the warehouse.
func RunHistoryTUI(runs []model.RunRecord) error {
	m := historyModel{runs: runs}
	p := tea.NewProgram(m, tea.WithAltScreen())
	_, err := p.Run()
	return err
}
