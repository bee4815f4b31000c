package tui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// AlignColumns renders rows of column data with every column but the last
// padded to the widest entry in that column, producing aligned output.
// styles are applied per column; columns beyond the last style render
// unstyled. Short rows leave their trailing columns empty. indent is
// prepended to every line and gap is the number of spaces between columns.
func AlignColumns(rows [][]string, indent string, gap int, styles ...lipgloss.Style) string {
	if len(rows) == 0 {
		return ""
	}

	// Widest entry per column (visual width, not byte length)
	var widths []int
	for _, row := range rows {
		for i, cell := range row {
			if i >= len(widths) {
				widths = append(widths, 0)
			}
			if w := lipgloss.Width(cell); w > widths[i] {
				widths[i] = w
			}
		}
	}

	styleFor := func(i int) lipgloss.Style {
		if i < len(styles) {
			return styles[i]
		}
		return lipgloss.NewStyle()
	}

	gapStr := strings.Repeat(" ", gap)
	var sb strings.Builder
	for _, row := range rows {
		sb.WriteString(indent)
		for i, cell := range row {
			sb.WriteString(styleFor(i).Render(cell))
			if i < len(row)-1 {
				// Pad the styled cell to align the next column.
				// lipgloss.Width handles ANSI escape codes correctly.
				sb.WriteString(strings.Repeat(" ", widths[i]-lipgloss.Width(cell)))
				sb.WriteString(gapStr)
			}
		}
		sb.WriteByte('\n')
	}
	return sb.String()
}
