package export

import (
	"fmt"

	"github.com/piwi3910/CoilCut/internal/model"
	"github.com/xuri/excelize/v2"
)

// Sheet names of the workbook written by ExportExcel.
const (
	SheetRolls    = "Rolls"
	SheetCoverage = "Coverage"
	SheetStock    = "Stock"
	SheetSummary  = "Summary"
)

// RollColumns is the header of the flat roll listing, shared by the Excel
// and CSV exports.
var RollColumns = []string{
	"Roll", "Stock", "Order", "Cuts", "Cut Width (mm)", "Linear Meters",
	"Allocated kg", "Gross kg", "Stock Width (mm)", "Edge Waste (mm)",
}

func rollRecordRow(r model.RollRecord) []interface{} {
	return []interface{}{
		r.RollID, r.Stock, r.OrderID, r.Cuts, r.CutWidthMM, r.LinearMeters,
		r.AllocatedKg, r.GrossKg, r.StockWidthMM, r.WasteWidthMM,
	}
}

// ExportExcel writes the report to an xlsx workbook with one sheet for the
// roll listing, order coverage, stock usage and the run summary.
func ExportExcel(path string, report model.SolutionReport, params model.Params) error {
	if len(report.Rolls) == 0 {
		return fmt.Errorf("no rolls to export")
	}

	f := excelize.NewFile()
	defer f.Close()

	header, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"E6E6E6"}, Pattern: 1},
	})
	if err != nil {
		return fmt.Errorf("failed to create header style: %w", err)
	}

	if err := f.SetSheetName("Sheet1", SheetRolls); err != nil {
		return err
	}
	for _, name := range []string{SheetCoverage, SheetStock, SheetSummary} {
		if _, err := f.NewSheet(name); err != nil {
			return fmt.Errorf("failed to add sheet %s: %w", name, err)
		}
	}

	w := &sheetWriter{f: f, header: header}

	rolls := [][]interface{}{}
	for _, r := range report.Rows() {
		rolls = append(rolls, rollRecordRow(r))
	}
	w.table(SheetRolls, RollColumns, rolls)

	coverage := [][]interface{}{}
	for _, id := range report.OrderIDs() {
		c := report.Coverage[id]
		coverage = append(coverage, []interface{}{
			c.OrderID, model.Round2(c.RequestedKg), model.Round2(c.AllocatedKg), model.Round2(c.Percent), c.Covered,
		})
	}
	w.table(SheetCoverage, []string{"Order", "Requested kg", "Allocated kg", "Coverage %", "Covered"}, coverage)

	stock := [][]interface{}{}
	for _, u := range report.StockUsage {
		stock = append(stock, []interface{}{
			u.StockID, u.Stock, model.Round2(u.AvailableKg), model.Round2(u.UsedKg),
			model.Round2(u.UsedMeters), model.Round2(u.RemainderKg), model.Round2(u.RemainderM),
		})
	}
	w.table(SheetStock, []string{"Stock ID", "Stock", "Available kg", "Used kg", "Used m", "Remainder kg", "Remainder m"}, stock)

	summary := [][]interface{}{
		{"Run", report.RunID},
		{"Status", string(report.Status)},
		{"Proven Optimal", report.ProvenOptimal},
		{"Rolls", report.NumRolls},
		{"Distinct Setups", report.NumDistinctSetups},
		{"Patterns", report.NumLogicalPatterns},
		{"Total Edge Waste (mm)", report.TotalWasteMM},
		{"Gross kg", model.Round2(report.TotalKg)},
		{"Allocated kg", model.Round2(report.TotalAllocatedKg)},
		{"Fully Valid", report.IsFullyValid},
		{"Solve Time (s)", model.Round2(report.SolveTimeS)},
		{"Edge Waste Window (mm)", fmt.Sprintf("%.0f-%.0f", params.EdgeWasteMinMM, params.EdgeWasteMaxMM)},
		{"Roll Weight Window (kg)", fmt.Sprintf("%.0f-%.0f", params.RollWeightMinKg, params.RollWeightMaxKg)},
		{"Coverage Margin", params.CoverageMargin},
		{"Excess Margin", params.ExcessMarginFactor},
		{"Min Remainder (m)", params.MinRemainderM},
		{"Objective", string(params.Objective)},
	}
	w.table(SheetSummary, []string{"Field", "Value"}, summary)

	if w.err != nil {
		return w.err
	}
	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("failed to save workbook: %w", err)
	}
	return nil
}

// sheetWriter keeps the first error so the table calls read linearly.
type sheetWriter struct {
	f      *excelize.File
	header int
	err    error
}

func (w *sheetWriter) table(sheet string, headers []string, rows [][]interface{}) {
	if w.err != nil {
		return
	}
	head := make([]interface{}, len(headers))
	for i, h := range headers {
		head[i] = h
	}
	if w.err = w.f.SetSheetRow(sheet, "A1", &head); w.err != nil {
		return
	}
	last, err := excelize.CoordinatesToCellName(len(headers), 1)
	if err != nil {
		w.err = err
		return
	}
	if w.err = w.f.SetCellStyle(sheet, "A1", last, w.header); w.err != nil {
		return
	}
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			w.err = err
			return
		}
		if w.err = w.f.SetSheetRow(sheet, cell, &row); w.err != nil {
			return
		}
	}
	lastCol, _ := excelize.ColumnNumberToName(len(headers))
	w.err = w.f.SetColWidth(sheet, "A", lastCol, 16)
}
