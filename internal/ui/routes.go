package ui

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
)

// RouteRow is one line of the route table.
type RouteRow struct {
	Location string
	Kind     string // "http" or "websocket"
	Handler  string
}

// RenderRoutes draws the routing table. An empty table renders a note
// instead of an empty grid.
func RenderRoutes(rows []RouteRow, width int) string {
	if len(rows) == 0 {
		return HelpStyle.Render("No routes configured.")
	}

	cells := make([][]string, 0, len(rows))
	for _, r := range rows {
		cells = append(cells, []string{r.Location, r.Kind, r.Handler})
	}

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(PrimaryColor)).
		Width(clampWidth(width)).
		Headers("LOCATION", "KIND", "HANDLER").
		Rows(cells...).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return TableHeaderStyle
			}
			return TableCellStyle
		})
	return t.Render()
}
