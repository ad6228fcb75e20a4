package ui

import (
	"fmt"
	"io"
	"strings"

	"github.com/vietdv277/rdsctl/pkg/types"
)

var tableHeaders = []string{"ID", "Engine", "State", "Class", "Endpoint", "AZ"}

// Column widths
var columnWidths = []int{26, 16, 12, 16, 40, 16}

// PrintDatabaseTable writes databases as a styled box table followed by a
// one-line state summary.
func PrintDatabaseTable(w io.Writer, dbs []types.Database) {
	var sb strings.Builder

	sb.WriteString(tableBorder(TopLeft, TopT, TopRight))

	// Header row
	sb.WriteString(BorderStyle.Render(Vertical))
	for i, h := range tableHeaders {
		sb.WriteString(HeaderStyle.Render(" " + padRight(h, columnWidths[i]) + " "))
		sb.WriteString(BorderStyle.Render(Vertical))
	}
	sb.WriteString("\n")

	sb.WriteString(tableBorder(LeftT, Cross, RightT))

	for _, db := range dbs {
		sb.WriteString(BorderStyle.Render(Vertical))

		writeCell(&sb, IDStyle.Render, db.ID, columnWidths[0])
		writeCell(&sb, EngineStyle.Render, engineLabel(db), columnWidths[1])

		state := stateIndicator(db.State) + " " + db.State
		writeCell(&sb, stateStyle(db.State).Render, state, columnWidths[2])

		writeCell(&sb, ClassStyle.Render, db.Class, columnWidths[3])
		writeCell(&sb, EndpointStyle.Render, formatOptional(db.Address()), columnWidths[4])
		writeCell(&sb, AZStyle.Render, formatOptional(db.Zone), columnWidths[5])

		sb.WriteString("\n")
	}

	sb.WriteString(tableBorder(BottomLeft, BottomT, BottomRight))

	fmt.Fprint(w, sb.String())
	fmt.Fprintln(w, summaryLine(dbs))
}

func tableBorder(left, join, right string) string {
	var sb strings.Builder
	sb.WriteString(BorderStyle.Render(left))
	for i, w := range columnWidths {
		sb.WriteString(BorderStyle.Render(strings.Repeat(Horizontal, w+2)))
		if i < len(columnWidths)-1 {
			sb.WriteString(BorderStyle.Render(join))
		}
	}
	sb.WriteString(BorderStyle.Render(right))
	sb.WriteString("\n")
	return sb.String()
}

func writeCell(sb *strings.Builder, render func(...string) string, value string, width int) {
	sb.WriteString(render(" " + padRight(value, width) + " "))
	sb.WriteString(BorderStyle.Render(Vertical))
}

func engineLabel(db types.Database) string {
	if db.Version == "" {
		return db.Engine
	}
	return db.Engine + " " + db.Version
}

func summaryLine(dbs []types.Database) string {
	counts := make(map[string]int)
	for _, db := range dbs {
		counts[db.State]++
	}

	var parts []string
	for _, state := range []string{"available", "starting", "stopping", "stopped"} {
		if c := counts[state]; c > 0 {
			parts = append(parts, stateStyle(state).Render(fmt.Sprintf("%d %s", c, state)))
		}
	}

	summary := fmt.Sprintf("  %d instances", len(dbs))
	if len(parts) > 0 {
		summary += " (" + strings.Join(parts, ", ") + ")"
	}
	return summary
}
