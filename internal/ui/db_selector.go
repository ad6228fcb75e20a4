package ui

import (
	"errors"
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	"github.com/vietdv277/rdsctl/pkg/types"
)

// DBAction represents the action to take on the selected database.
type DBAction int

const (
	DBActionConnect DBAction = iota
	DBActionStart
	DBActionStop
)

// ErrSelectionCancelled is returned when the user leaves the selector without choosing.
var ErrSelectionCancelled = errors.New("selection cancelled")

const (
	listHeight       = 8
	detailLabelWidth = 12
	minWidth         = 60
	maxWidth         = 120

	dbColWidthID     = 26
	dbColWidthState  = 12
	dbColWidthEngine = 16
	// cursor(3) + ID + sp(2) + State + sp(2) + Engine + sp(2)
	dbFixedWidth = 3 + dbColWidthID + 2 + dbColWidthState + 2 + dbColWidthEngine + 2

	detailRows = 8
)

// DBModel is the bubbletea model for interactive database selection.
type DBModel struct {
	dbs          []types.Database
	filtered     []types.Database
	cursor       int
	offset       int
	search       string
	selected     *types.Database
	action       DBAction
	quitting     bool
	cancelled    bool
	termWidth    int
	contentWidth int
	colWidths    []int // [ID, State, Engine, Endpoint]
}

func newDBModel(dbs []types.Database) DBModel {
	m := DBModel{
		dbs:       dbs,
		filtered:  dbs,
		termWidth: 80,
	}
	m.calculateWidths()
	return m
}

func (m *DBModel) calculateWidths() {
	m.contentWidth = m.termWidth - 2
	if m.contentWidth < minWidth {
		m.contentWidth = minWidth
	}
	if m.contentWidth > maxWidth {
		m.contentWidth = maxWidth
	}

	endpointWidth := m.contentWidth - dbFixedWidth
	if endpointWidth < 10 {
		endpointWidth = 10
	}
	m.colWidths = []int{dbColWidthID, dbColWidthState, dbColWidthEngine, endpointWidth}
}

// Init implements tea.Model.
func (m DBModel) Init() tea.Cmd {
	return tea.WindowSize()
}

// Update implements tea.Model.
func (m DBModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.termWidth = msg.Width
		m.calculateWidths()
		return m, nil

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			m.quitting = true
			m.cancelled = true
			return m, tea.Quit

		case tea.KeyEnter:
			return m.choose(DBActionConnect)

		case tea.KeyCtrlS:
			return m.choose(DBActionStart)

		case tea.KeyCtrlX:
			return m.choose(DBActionStop)

		case tea.KeyUp:
			if m.cursor > 0 {
				m.cursor--
				if m.cursor < m.offset {
					m.offset = m.cursor
				}
			}

		case tea.KeyDown:
			if m.cursor < len(m.filtered)-1 {
				m.cursor++
				if m.cursor >= m.offset+listHeight {
					m.offset = m.cursor - listHeight + 1
				}
			}

		case tea.KeyBackspace:
			if len(m.search) > 0 {
				m.search = m.search[:len(m.search)-1]
				m.filter()
			}

		case tea.KeyRunes:
			m.search += string(msg.Runes)
			m.filter()
		}
	}

	return m, nil
}

func (m DBModel) choose(action DBAction) (tea.Model, tea.Cmd) {
	if len(m.filtered) == 0 {
		return m, nil
	}
	selected := m.filtered[m.cursor]
	m.selected = &selected
	m.action = action
	m.quitting = true
	return m, tea.Quit
}

func (m *DBModel) filter() {
	if m.search == "" {
		m.filtered = m.dbs
	} else {
		query := strings.ToLower(m.search)
		m.filtered = nil
		for _, db := range m.dbs {
			if strings.Contains(strings.ToLower(db.ID), query) ||
				strings.Contains(strings.ToLower(db.Engine), query) ||
				strings.Contains(strings.ToLower(db.State), query) ||
				strings.Contains(strings.ToLower(db.Endpoint), query) {
				m.filtered = append(m.filtered, db)
			}
		}
	}
	if m.cursor >= len(m.filtered) {
		if len(m.filtered) > 0 {
			m.cursor = len(m.filtered) - 1
		} else {
			m.cursor = 0
		}
	}
	m.offset = 0
}

// View implements tea.Model.
func (m DBModel) View() string {
	if m.quitting {
		return ""
	}

	var sb strings.Builder
	w := m.contentWidth

	sb.WriteString(BorderStyle.Render(TopLeft + strings.Repeat(Horizontal, w) + TopRight))
	sb.WriteString("\n")

	sb.WriteString(m.boxLine(NameStyle.Render(padRight(" > "+m.search, w))))
	sb.WriteString(m.blankLine())

	visibleEnd := m.offset + listHeight
	if visibleEnd > len(m.filtered) {
		visibleEnd = len(m.filtered)
	}
	for i := m.offset; i < visibleEnd; i++ {
		sb.WriteString(m.renderRow(i))
	}
	for i := visibleEnd; i < m.offset+listHeight; i++ {
		sb.WriteString(m.blankLine())
	}
	sb.WriteString(m.blankLine())

	sb.WriteString(BorderStyle.Render(LeftT + strings.Repeat(Horizontal, w) + RightT))
	sb.WriteString("\n")

	sb.WriteString(m.renderDetailsPanel())

	sb.WriteString(BorderStyle.Render(BottomLeft + strings.Repeat(Horizontal, w) + BottomRight))
	sb.WriteString("\n")

	sb.WriteString(m.renderStatusBar())

	return sb.String()
}

func (m DBModel) boxLine(content string) string {
	return BorderStyle.Render(Vertical) + content + BorderStyle.Render(Vertical) + "\n"
}

func (m DBModel) blankLine() string {
	return m.boxLine(strings.Repeat(" ", m.contentWidth))
}

func (m DBModel) renderRow(idx int) string {
	db := m.filtered[idx]

	var line strings.Builder
	plainWidth := 0

	if idx == m.cursor {
		line.WriteString(" > ")
	} else {
		line.WriteString("   ")
	}
	plainWidth += 3

	line.WriteString(IDStyle.Render(padRight(db.ID, m.colWidths[0])))
	line.WriteString("  ")
	plainWidth += m.colWidths[0] + 2

	stateText := padRight(stateIndicator(db.State)+" "+db.State, m.colWidths[1])
	line.WriteString(stateStyle(db.State).Render(stateText))
	line.WriteString("  ")
	plainWidth += m.colWidths[1] + 2

	line.WriteString(EngineStyle.Render(padRight(db.Engine, m.colWidths[2])))
	line.WriteString("  ")
	plainWidth += m.colWidths[2] + 2

	line.WriteString(EndpointStyle.Render(padRight(formatOptional(db.Endpoint), m.colWidths[3])))
	plainWidth += m.colWidths[3]

	if plainWidth < m.contentWidth {
		line.WriteString(strings.Repeat(" ", m.contentWidth-plainWidth))
	}

	return m.boxLine(line.String())
}

func (m DBModel) renderDetailsPanel() string {
	var sb strings.Builder
	w := m.contentWidth

	sb.WriteString(m.boxLine(HeaderStyle.Render(padRight(" Instance Details", w))))
	sb.WriteString(m.boxLine(MutedStyle.Render(padRight(" "+strings.Repeat("─", 20), w))))

	if len(m.filtered) == 0 {
		sb.WriteString(m.boxLine(MutedStyle.Render(padRight(" No instances found", w))))
		for i := 0; i < detailRows; i++ {
			sb.WriteString(m.blankLine())
		}
		return sb.String()
	}

	db := m.filtered[m.cursor]

	created := "-"
	if !db.CreatedAt.IsZero() {
		created = db.CreatedAt.Format("2006-01-02 15:04:05")
	}

	details := []struct {
		label string
		value string
		style lipgloss.Style
	}{
		{"ID:", db.ID, IDStyle},
		{"Database:", formatOptional(db.Name), NameStyle},
		{"State:", stateIndicator(db.State) + " " + db.State, stateStyle(db.State)},
		{"Engine:", engineLabel(db), EngineStyle},
		{"Class:", db.Class, ClassStyle},
		{"Zone:", formatOptional(db.Zone), AZStyle},
		{"Endpoint:", formatOptional(db.Address()), EndpointStyle},
		{"Created:", created, MutedStyle},
	}

	for _, d := range details {
		valueText := d.value
		maxValueWidth := w - 1 - detailLabelWidth
		if runewidth.StringWidth(valueText) > maxValueWidth {
			valueText = runewidth.Truncate(valueText, maxValueWidth, "...")
		}

		plainWidth := 1 + detailLabelWidth + runewidth.StringWidth(valueText)
		line := MutedStyle.Render(" "+padRight(d.label, detailLabelWidth)) + d.style.Render(valueText)
		if plainWidth < w {
			line += strings.Repeat(" ", w-plainWidth)
		}
		sb.WriteString(m.boxLine(line))
	}

	sb.WriteString(m.blankLine())

	return sb.String()
}

func (m DBModel) renderStatusBar() string {
	w := m.contentWidth + 2

	countInfo := fmt.Sprintf("  %d/%d instances", len(m.filtered), len(m.dbs))
	hints := "[Enter:connect] [^S:start] [^X:stop] [Esc:quit]"

	padding := w - runewidth.StringWidth(countInfo) - runewidth.StringWidth(hints)
	if padding < 1 {
		padding = 1
	}

	return countInfo + strings.Repeat(" ", padding) + HintStyle.Render(hints) + "\n"
}

// SelectDatabase runs the interactive selector and returns the chosen
// database together with the requested action.
func SelectDatabase(dbs []types.Database) (*types.Database, DBAction, error) {
	if len(dbs) == 0 {
		return nil, DBActionConnect, fmt.Errorf("no instances available")
	}

	p := tea.NewProgram(newDBModel(dbs))

	finalModel, err := p.Run()
	if err != nil {
		return nil, DBActionConnect, fmt.Errorf("error running selector: %w", err)
	}

	result := finalModel.(DBModel)
	if result.cancelled {
		return nil, DBActionConnect, ErrSelectionCancelled
	}

	return result.selected, result.action, nil
}
