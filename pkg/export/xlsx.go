package export

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"github.com/jakechorley/shiftplanner/pkg/core/assembler"
	"github.com/jakechorley/shiftplanner/pkg/core/scorecard"
)

const (
	rosterSheet    = "Roster"
	hoursSheet     = "Hours"
	penaltiesSheet = "Penalties"
)

// WriteXLSX writes a workbook with the roster, per-employee hours and the
// penalty line items. A nil scorecard leaves the last two sheets out.
func WriteXLSX(w io.Writer, schedule assembler.Schedule, card *scorecard.Scorecard) error {
	f := excelize.NewFile()
	defer f.Close()

	// Rename the default sheet so the roster comes first
	if err := f.SetSheetName("Sheet1", rosterSheet); err != nil {
		return fmt.Errorf("failed to name roster sheet: %w", err)
	}
	roster := rosterRows(schedule)
	cells := make([][]any, len(roster))
	for i, row := range roster {
		cells[i] = make([]any, len(row))
		for j, v := range row {
			cells[i][j] = v
		}
	}
	if err := fillSheet(f, rosterSheet, rosterHeader, cells); err != nil {
		return err
	}

	if card != nil {
		hours := make([][]any, 0, len(card.Hours))
		for _, h := range card.Hours {
			var target any
			if h.TargetHours != nil {
				target = *h.TargetHours
			}
			hours = append(hours, []any{h.EmployeeID, h.Name, h.Shifts, h.Hours, target})
		}
		if err := addSheet(f, hoursSheet, []string{"employee_id", "name", "shifts", "hours", "target_hours"}, hours); err != nil {
			return err
		}

		items := make([][]any, 0, len(card.Items))
		for _, item := range card.Items {
			items = append(items, []any{string(item.Category), item.Name, item.Weight, item.Violation, item.Penalty})
		}
		if err := addSheet(f, penaltiesSheet, []string{"category", "name", "weight", "violation", "penalty"}, items); err != nil {
			return err
		}
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

func addSheet(f *excelize.File, name string, header []string, rows [][]any) error {
	if _, err := f.NewSheet(name); err != nil {
		return fmt.Errorf("failed to create sheet %s: %w", name, err)
	}
	return fillSheet(f, name, header, rows)
}

// fillSheet writes the header to row 1 and the rows below it
func fillSheet(f *excelize.File, name string, header []string, rows [][]any) error {
	for i, h := range header {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(name, cell, h); err != nil {
			return fmt.Errorf("failed to set %s header: %w", name, err)
		}
	}
	for r, row := range rows {
		for c, v := range row {
			cell, _ := excelize.CoordinatesToCellName(c+1, r+2)
			if err := f.SetCellValue(name, cell, v); err != nil {
				return fmt.Errorf("failed to set %s!%s: %w", name, cell, err)
			}
		}
	}
	return nil
}
