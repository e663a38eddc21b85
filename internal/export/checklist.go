// Package export renders case records into downloadable office formats.
package export

import (
	"bytes"
	"fmt"

	"github.com/xuri/excelize/v2"

	"github.com/nyaya/caseflow/internal/models"
)

const checklistSheet = "Checklist"

var checklistHeader = []string{"ID", "Section", "Procedure", "Status", "Deadline"}

// ChecklistXLSX renders checklist items into an XLSX workbook, one row per
// item, grouped the way the checklist is ordered.
func ChecklistXLSX(items []*models.ChecklistItem) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	idx, err := f.NewSheet(checklistSheet)
	if err != nil {
		return nil, fmt.Errorf("create checklist sheet: %w", err)
	}
	f.SetActiveSheet(idx)
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return nil, err
	}

	for col, title := range checklistHeader {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			return nil, err
		}
		if err := f.SetCellValue(checklistSheet, cell, title); err != nil {
			return nil, err
		}
	}

	for row, item := range items {
		status := "To-Do"
		if item.Checked {
			status = "Completed"
		}
		deadline := ""
		if item.Deadline != nil {
			deadline = item.Deadline.Format("2006-01-02 15:04")
		}
		values := []any{item.ID, item.Section, item.Text, status, deadline}
		for col, v := range values {
			cell, err := excelize.CoordinatesToCellName(col+1, row+2)
			if err != nil {
				return nil, err
			}
			if err := f.SetCellValue(checklistSheet, cell, v); err != nil {
				return nil, err
			}
		}
	}

	var buf bytes.Buffer
	if _, err := f.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("write checklist workbook: %w", err)
	}
	return buf.Bytes(), nil
}
