// Package export renders a solved schedule for people outside the planner:
// a plain-text roster for chat, CSV rows and an XLSX workbook.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/jakechorley/shiftplanner/pkg/core/assembler"
	"github.com/jakechorley/shiftplanner/pkg/core/model"
)

// Text renders the schedule as a roster grouped by day. Days without any
// slot are left out; understaffed slots show how many heads are missing and
// slots staffed above their headcount show how many are extra.
func Text(schedule assembler.Schedule, title string) string {
	if len(schedule.Slots) == 0 {
		return "No schedule generated.\n"
	}

	var b strings.Builder
	if title != "" {
		fmt.Fprintf(&b, "%s\n\n", title)
	}

	for _, day := range model.HorizonDays(schedule.WeekStart) {
		slots := schedule.Day(day)
		if len(slots) == 0 {
			continue
		}

		fmt.Fprintf(&b, "%s\n", day)
		for _, sa := range slots {
			fmt.Fprintf(&b, "  %s: %s", sa.Slot.Period, staffList(sa))
			if sa.Understaffed() {
				fmt.Fprintf(&b, " [short %d]", sa.Headcount-len(sa.Employees))
			}
			if extra := len(sa.Employees) - sa.Headcount; extra > 0 {
				fmt.Fprintf(&b, " [extra %d]", extra)
			}
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}

	return b.String()
}

// staffList formats the employees of a slot as "Alice (cook), Bob"
func staffList(sa assembler.SlotAssignment) string {
	return formatStaff(sa, func(s string) string { return s })
}

// formatStaff is staffList with every name and role passed through quote
func formatStaff(sa assembler.SlotAssignment, quote func(string) string) string {
	if len(sa.Employees) == 0 {
		return "-"
	}

	names := make([]string, len(sa.Employees))
	for i, emp := range sa.Employees {
		if emp.Role != "" {
			names[i] = fmt.Sprintf("%s (%s)", quote(emp.Name), quote(emp.Role))
		} else {
			names[i] = quote(emp.Name)
		}
	}
	return strings.Join(names, ", ")
}

// rosterHeader is shared by the CSV and XLSX outputs
var rosterHeader = []string{"day", "period", "employee_id", "name", "role"}

// rosterRows flattens the schedule to one row per assignment in horizon order
func rosterRows(schedule assembler.Schedule) [][]string {
	var rows [][]string
	for _, sa := range schedule.Slots {
		for _, emp := range sa.Employees {
			rows = append(rows, []string{
				sa.Slot.Day.String(),
				sa.Slot.Period,
				emp.ID,
				emp.Name,
				emp.Role,
			})
		}
	}
	return rows
}

// WriteCSV writes one row per assignment with a header
func WriteCSV(w io.Writer, schedule assembler.Schedule) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(rosterHeader); err != nil {
		return fmt.Errorf("failed to write csv header: %w", err)
	}
	for _, row := range rosterRows(schedule) {
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("failed to write csv row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}
