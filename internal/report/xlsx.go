package report

import (
	"fmt"

	"github.com/xuri/excelize/v2"

	"github.com/beamphys/beamtune/internal/sim"
	"github.com/beamphys/beamtune/internal/store"
	"github.com/beamphys/beamtune/internal/tune"
)

// WriteXLSX exports a tuning result and its evaluation trace to an Excel
// workbook with a Summary sheet and a Trace sheet.
func WriteXLSX(path string, result *tune.Result, trace []store.TraceEntry) error {
	f := excelize.NewFile()
	defer f.Close()

	summary := "Summary"
	f.SetSheetName("Sheet1", summary)

	f.SetCellValue(summary, "A1", "Goal")
	f.SetCellValue(summary, "B1", string(result.Goal))
	f.SetCellValue(summary, "A2", "Initial objective")
	f.SetCellValue(summary, "B2", result.InitialValue)
	f.SetCellValue(summary, "A3", "Best objective")
	f.SetCellValue(summary, "B3", result.BestValue)
	f.SetCellValue(summary, "A4", "Evaluations")
	f.SetCellValue(summary, "B4", result.Evaluations)

	for i := 0; i < sim.NumQuads; i++ {
		cellA, err := excelize.CoordinatesToCellName(1, 6+i)
		if err != nil {
			return fmt.Errorf("failed to build cell name: %w", err)
		}
		cellB, _ := excelize.CoordinatesToCellName(2, 6+i)
		f.SetCellValue(summary, cellA, fmt.Sprintf("Q%d", i+1))
		f.SetCellValue(summary, cellB, result.BestSettings[i])
	}

	sheet := "Trace"
	if _, err := f.NewSheet(sheet); err != nil {
		return fmt.Errorf("failed to create trace sheet: %w", err)
	}

	f.SetCellValue(sheet, "A1", "Evaluation")
	f.SetCellValue(sheet, "B1", "Objective")
	f.SetCellValue(sheet, "C1", "Timestamp")
	for j := 0; j < sim.NumQuads; j++ {
		cell, _ := excelize.CoordinatesToCellName(4+j, 1)
		f.SetCellValue(sheet, cell, fmt.Sprintf("Q%d", j+1))
	}

	for i, e := range trace {
		row := i + 2
		cell, _ := excelize.CoordinatesToCellName(1, row)
		f.SetCellValue(sheet, cell, e.Evaluation)
		cell, _ = excelize.CoordinatesToCellName(2, row)
		f.SetCellValue(sheet, cell, e.Value)
		cell, _ = excelize.CoordinatesToCellName(3, row)
		f.SetCellValue(sheet, cell, e.Timestamp.Format("2006-01-02 15:04:05"))
		for j, q := range e.Settings {
			cell, _ = excelize.CoordinatesToCellName(4+j, row)
			f.SetCellValue(sheet, cell, q)
		}
	}

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("failed to save workbook: %w", err)
	}
	return nil
}
