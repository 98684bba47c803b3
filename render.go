package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/philtim/mechclock/dial"
)

const selectorMaxVisible = 10

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("205")).
			Padding(1, 0)

	mutedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))

	highlightStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("205")).
			Bold(true)

	barColor = lipgloss.Color("235")
)

// View renders the UI
func (m model) View() string {
	if m.quitting {
		return "Goodbye!\n"
	}

	if !m.ready {
		return "Initializing..."
	}

	if m.selecting {
		return m.renderSelector()
	}
	return m.renderMain()
}

// renderMain renders the main clock view
func (m model) renderMain() string {
	var b strings.Builder
	b.WriteString(m.viewport.View())
	b.WriteString("\n")
	if m.help.ShowAll {
		b.WriteString(m.help.FullHelpView(m.keys.FullHelp()))
		b.WriteString("\n")
	}
	b.WriteString(m.renderCommandBar())
	return b.String()
}

// renderSelector renders the timezone selector for the focused card
func (m model) renderSelector() string {
	var b strings.Builder

	c := m.cards[m.focus]
	b.WriteString(titleStyle.Render("Timezone for " + c.clock.Name))
	b.WriteString("\n\n")

	if m.catalog == nil {
		b.WriteString(fmt.Sprintf("%s Loading...\n\n", m.spinner.View()))
		b.WriteString(mutedStyle.Render("Press ESC to cancel"))
		return b.String()
	}

	b.WriteString(mutedStyle.Render("Current: "))
	b.WriteString(m.catalog.Label(c.clock.Zone))
	b.WriteString("\n\n")
	b.WriteString(m.input.View())
	b.WriteString("\n\n")

	if len(m.results) == 0 {
		b.WriteString(mutedStyle.Render("No timezones match your search."))
	} else {
		b.WriteString(fmt.Sprintf("Timezones (%d):\n", len(m.results)))
		start := 0
		if m.cursor >= selectorMaxVisible {
			start = m.cursor - selectorMaxVisible + 1
		}
		end := start + selectorMaxVisible
		if end > len(m.results) {
			end = len(m.results)
		}

		for i := start; i < end; i++ {
			line := "  " + truncate(m.results[i].DisplayLabel, m.width-4)
			if i == m.cursor {
				line = highlightStyle.Render("> " + line)
			} else {
				line = "  " + line
			}
			b.WriteString(line)
			b.WriteString("\n")
		}
	}

	b.WriteString("\n")
	b.WriteString(m.help.ShortHelpView(m.keys.selectorHelp()))

	return b.String()
}

// truncate shortens s to width cells. Group labels can list hundreds of
// cities.
func truncate(s string, width int) string {
	if width < 4 || lipgloss.Width(s) <= width {
		return s
	}
	r := []rune(s)
	for len(r) > 0 && lipgloss.Width(string(r)) > width-3 {
		r = r[:len(r)-1]
	}
	return string(r) + "..."
}

// renderCommandBar renders the command bar at the bottom
func (m model) renderCommandBar() string {
	leftStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("240")).
		Background(barColor).
		Padding(0, 1)

	rightStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("240")).
		Background(barColor).
		Padding(0, 1)

	leftContent := leftStyle.Render(m.help.ShortHelpView(m.keys.ShortHelp()))
	rightContent := rightStyle.Render(m.status())

	// Calculate spacing to push right content to the right
	spacingWidth := m.width - lipgloss.Width(leftContent) - lipgloss.Width(rightContent)
	if spacingWidth < 0 {
		spacingWidth = 0
	}
	spacing := strings.Repeat(" ", spacingWidth)

	barStyle := lipgloss.NewStyle().Background(barColor)
	return barStyle.Render(leftContent + spacing + rightContent)
}

// status describes the catalog and GeoNames state
func (m model) status() string {
	switch {
	case m.catalog == nil:
		return m.spinner.View() + " Building catalog..."
	case m.geoLoading():
		return m.spinner.View() + " Loading GeoNames..."
	case m.geoErr != nil:
		return "GeoNames: unavailable"
	case m.catalog.Fallback:
		return "Timezones: fallback list"
	case len(m.catalog.Skipped) > 0:
		return fmt.Sprintf("Timezones: %d skipped", len(m.catalog.Skipped))
	}
	return fmt.Sprintf("Timezones: %d groups", len(m.catalog.Groups))
}

// renderCards renders all clock cards in a grid layout
func (m model) renderCards() string {
	if len(m.cards) == 0 {
		return ""
	}

	cols := m.calculateColumns()
	rows := (len(m.cards) + cols - 1) / cols // Ceiling division

	// Each card has: border (2) + padding (4) + margins (1 left + 1 right)
	cardOverhead := 8
	cardWidth := m.width/cols - cardOverhead
	if minWidth := dialWidth(m.face); cardWidth < minWidth {
		cardWidth = minWidth
	}

	var cards []string
	for i := range m.cards {
		cards = append(cards, m.renderCard(i, cardWidth))
	}

	var rowContent []string
	for row := 0; row < rows; row++ {
		var rowCards []string
		for col := 0; col < cols; col++ {
			idx := row*cols + col
			if idx < len(cards) {
				rowCards = append(rowCards, cards[idx])
			}
		}
		if len(rowCards) > 0 {
			rowContent = append(rowContent, lipgloss.JoinHorizontal(lipgloss.Top, rowCards...))
		}
	}

	return strings.Join(rowContent, "\n")
}

// renderCard renders a single clock card: name, analog face, digital time
// and date line.
func (m model) renderCard(idx, width int) string {
	c := m.cards[idx].clock

	center := lipgloss.NewStyle().Align(lipgloss.Center).Width(width)

	nameStyle := center.
		Bold(true).
		Foreground(lipgloss.Color("86")).
		PaddingTop(1).
		PaddingBottom(1)

	timeStyle := center.
		Bold(true).
		Foreground(lipgloss.Color("205")).
		MarginTop(1)

	dateStyle := center.Foreground(lipgloss.Color("241"))

	zoneStyle := center.
		Foreground(lipgloss.Color("240")).
		PaddingBottom(1)

	border := lipgloss.Color("62")
	if idx == m.focus {
		border = lipgloss.Color("205")
	}
	cardStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(border).
		Padding(0, 2).
		Margin(1, 1, 0, 1)

	content := lipgloss.JoinVertical(lipgloss.Left,
		nameStyle.Render(strings.ToUpper(c.Name)),
		center.Render(dial.Render(c.Hands(), m.face)),
		timeStyle.Render(c.FormatTime()),
		dateStyle.Render(c.FormatDateWithOffset()),
		zoneStyle.Render(truncate(c.FormatZone(), width)),
	)

	return cardStyle.Render(content)
}

func dialWidth(opts dial.Options) int {
	r := opts.Radius
	if r < dial.MinRadius {
		r = dial.MinRadius
	}
	if r > dial.MaxRadius {
		r = dial.MaxRadius
	}
	return 4*r + 1
}

// calculateColumns determines the number of columns based on terminal width,
// clock names and the face size
func (m model) calculateColumns() int {
	// Date line is typically ~22 chars: "2025-12-03 - GMT+01:00"
	minContentWidth := 27
	if w := dialWidth(m.face); w > minContentWidth {
		minContentWidth = w
	}
	for _, c := range m.cards {
		if n := lipgloss.Width(c.clock.Name); n > minContentWidth {
			minContentWidth = n
		}
	}

	// Account for: border (2), padding left/right (4), margins left/right (2)
	minCardWidth := minContentWidth + 8

	for _, cols := range []int{4, 3, 2} {
		if len(m.cards) >= cols && m.width >= minCardWidth*cols {
			return cols
		}
	}
	return 1
}
