// Package export writes slitting plans to PDF, Excel and CSV, and prints
// QR-coded roll labels.
package export

import (
	"fmt"
	"math"
	"sort"

	"github.com/go-pdf/fpdf"
	"github.com/piwi3910/CoilCut/internal/model"
)

// orderColor represents an RGB color for an order's strips.
type orderColor struct {
	R, G, B int
}

var orderColors = []orderColor{
	{R: 76, G: 175, B: 80},  // green
	{R: 33, G: 150, B: 243}, // blue
	{R: 255, G: 152, B: 0},  // orange
	{R: 156, G: 39, B: 176}, // purple
	{R: 0, G: 188, B: 212},  // cyan
	{R: 244, G: 67, B: 54},  // red
	{R: 255, G: 235, B: 59}, // yellow
	{R: 121, G: 85, B: 72},  // brown
}

// Page layout constants (A4 landscape in mm).
const (
	pageWidth    = 297.0
	pageHeight   = 210.0
	marginLeft   = 15.0
	marginRight  = 15.0
	marginTop    = 15.0
	marginBottom = 15.0
	headerHeight = 12.0
	statsHeight  = 10.0
	drawAreaTop  = marginTop + headerHeight + statsHeight + 3.0

	stripHeight  = 10.0 // height of one roll diagram
	rollCaptionH = 5.0
	rollSpacing  = 4.0
	legendHeight = 12.0
)

const footerText = "Generated by CoilCut - Coil Slitting Planner"

// colorIndex assigns each order a stable palette slot by sorted ID.
func colorIndex(report model.SolutionReport) map[string]int {
	ids := report.OrderIDs()
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		seen[id] = true
	}
	for _, r := range report.Rolls {
		for _, a := range r.Allocations {
			if !seen[a.OrderID] {
				seen[a.OrderID] = true
				ids = append(ids, a.OrderID)
			}
		}
	}
	sort.Strings(ids)
	idx := make(map[string]int, len(ids))
	for i, id := range ids {
		idx[id] = i
	}
	return idx
}

// rollsByStock groups the rolls by stock ID, keeping the stock order of the
// usage table and appending stocks that only appear on rolls.
func rollsByStock(report model.SolutionReport) ([]string, map[string][]model.RollInstance) {
	groups := make(map[string][]model.RollInstance)
	for _, r := range report.Rolls {
		groups[r.StockID] = append(groups[r.StockID], r)
	}
	var order []string
	listed := make(map[string]bool)
	for _, u := range report.StockUsage {
		if _, ok := groups[u.StockID]; ok && !listed[u.StockID] {
			order = append(order, u.StockID)
			listed[u.StockID] = true
		}
	}
	for _, r := range report.Rolls {
		if !listed[r.StockID] {
			order = append(order, r.StockID)
			listed[r.StockID] = true
		}
	}
	return order, groups
}

// ExportPDF generates a production plan. Each consumed stock roll gets its
// own page(s) with a slitting diagram per produced roll, followed by a
// summary page with coverage and the parameters of the run.
func ExportPDF(path string, report model.SolutionReport, params model.Params) error {
	if len(report.Rolls) == 0 {
		return fmt.Errorf("no rolls to export")
	}

	pdf := fpdf.New("L", "mm", "A4", "")
	pdf.SetAutoPageBreak(false, marginBottom)
	pdf.SetTitle("Slitting plan "+report.RunID, false)

	colors := colorIndex(report)
	usage := make(map[string]model.StockUsage, len(report.StockUsage))
	for _, u := range report.StockUsage {
		usage[u.StockID] = u
	}

	stockIDs, groups := rollsByStock(report)
	for i, id := range stockIDs {
		renderStockPages(pdf, groups[id], usage[id], colors, i+1)
	}

	pdf.AddPage()
	renderSummaryPage(pdf, report, params)

	return pdf.OutputFileAndClose(path)
}

// renderStockPages draws the rolls slit from one stock roll, adding pages as
// the diagrams run past the bottom margin.
func renderStockPages(pdf *fpdf.Fpdf, rolls []model.RollInstance, u model.StockUsage, colors map[string]int, stockNum int) {
	title := rolls[0].Stock
	if title == "" {
		title = rolls[0].StockID
	}

	page := 0
	y := 0.0
	limit := pageHeight - marginBottom - legendHeight - 6
	for _, roll := range rolls {
		if page == 0 || y+stripHeight+rollCaptionH > limit {
			if page > 0 {
				drawOrderLegend(pdf, rolls, colors, limit+2)
			}
			page++
			pdf.AddPage()
			renderStockHeader(pdf, title, u, len(rolls), stockNum, page)
			y = drawAreaTop
		}
		drawRoll(pdf, roll, colors, y)
		y += stripHeight + rollCaptionH + rollSpacing
	}
	drawOrderLegend(pdf, rolls, colors, limit+2)
}

func renderStockHeader(pdf *fpdf.Fpdf, title string, u model.StockUsage, numRolls, stockNum, page int) {
	pdf.SetFont("Helvetica", "B", 14)
	pdf.SetTextColor(0, 0, 0)
	pdf.SetXY(marginLeft, marginTop)
	heading := fmt.Sprintf("Stock %d: %s", stockNum, title)
	if page > 1 {
		heading += fmt.Sprintf(" (cont. %d)", page)
	}
	pdf.CellFormat(pageWidth-marginLeft-marginRight, headerHeight, heading, "", 0, "L", false, 0, "")

	pdf.SetFont("Helvetica", "", 10)
	pdf.SetXY(marginLeft, marginTop+headerHeight)
	stats := fmt.Sprintf("Rolls: %d  |  Used: %.0f of %.0f kg (%.1f m)  |  Remainder: %.0f kg (%.1f m)",
		numRolls, u.UsedKg, u.AvailableKg, u.UsedMeters, u.RemainderKg, u.RemainderM)
	pdf.CellFormat(pageWidth-marginLeft-marginRight, 6, stats, "", 0, "L", false, 0, "")
}

// drawRoll renders one roll as a strip across the full coil width. Each cut
// is a colored band; the unused edge is hatched.
func drawRoll(pdf *fpdf.Fpdf, roll model.RollInstance, colors map[string]int, y float64) {
	canvasW := pageWidth - marginLeft - marginRight
	width := roll.StockWidthMM
	if width <= 0 {
		width = roll.UsedWidthMM + roll.WasteWidthMM
	}
	if width <= 0 {
		return
	}
	scale := canvasW / width

	pdf.SetDrawColor(0, 0, 0)
	pdf.SetLineWidth(0.4)
	pdf.SetFillColor(240, 240, 240)
	pdf.Rect(marginLeft, y, canvasW, stripHeight, "FD")

	x := marginLeft
	pdf.SetLineWidth(0.2)
	for _, a := range roll.Allocations {
		col := orderColors[colors[a.OrderID]%len(orderColors)]
		w := a.CutWidthMM * scale
		for c := 0; c < a.Cuts; c++ {
			pdf.SetFillColor(col.R, col.G, col.B)
			pdf.SetDrawColor(60, 60, 60)
			pdf.Rect(x, y, w, stripHeight, "FD")

			label := fmt.Sprintf("%s %.0f", a.OrderID, a.CutWidthMM)
			fontSize := labelFontSize(w)
			pdf.SetFont("Helvetica", "", fontSize)
			if pdf.GetStringWidth(label) > w-1 {
				label = a.OrderID
			}
			if pdf.GetStringWidth(label) <= w-1 {
				pdf.SetTextColor(255, 255, 255)
				pdf.SetXY(x, y+(stripHeight-4)/2)
				pdf.CellFormat(w, 4, label, "", 0, "C", false, 0, "")
			}
			x += w
		}
	}

	if waste := marginLeft + canvasW - x; waste > 0.2 {
		drawHatchPattern(pdf, x, y, waste, stripHeight)
	}

	pdf.SetFont("Helvetica", "", 8)
	pdf.SetTextColor(60, 60, 60)
	pdf.SetXY(marginLeft, y+stripHeight+0.5)
	caption := fmt.Sprintf("%s  %s  |  %.1f m  |  %.1f kg gross, %.1f kg to orders  |  edge waste %.0f mm",
		roll.ID, roll.Layout(), roll.LinearMeters, roll.GrossKg, roll.AllocatedKg(), roll.WasteWidthMM)
	pdf.CellFormat(canvasW, 4, caption, "", 0, "L", false, 0, "")
	pdf.SetTextColor(0, 0, 0)
}

// drawHatchPattern draws diagonal lines inside a rectangle to mark waste.
func drawHatchPattern(pdf *fpdf.Fpdf, x, y, w, h float64) {
	pdf.SetDrawColor(200, 0, 0)
	pdf.SetLineWidth(0.15)

	spacing := 2.0
	maxDist := w + h

	for d := spacing; d < maxDist; d += spacing {
		x1 := x + math.Max(0, d-h)
		y1 := y + math.Min(h, d)
		x2 := x + math.Min(w, d)
		y2 := y + math.Max(0, d-w)

		pdf.Line(x1, y1, x2, y2)
	}
}

// drawOrderLegend lists the orders slit from these rolls with their swatch.
func drawOrderLegend(pdf *fpdf.Fpdf, rolls []model.RollInstance, colors map[string]int, startY float64) {
	seen := make(map[string]bool)
	var ids []string
	widths := make(map[string]float64)
	for _, r := range rolls {
		for _, a := range r.Allocations {
			if !seen[a.OrderID] {
				seen[a.OrderID] = true
				ids = append(ids, a.OrderID)
				widths[a.OrderID] = a.CutWidthMM
			}
		}
	}
	if len(ids) == 0 {
		return
	}
	sort.Strings(ids)

	pdf.SetFont("Helvetica", "B", 8)
	pdf.SetTextColor(0, 0, 0)
	pdf.SetXY(marginLeft, startY)
	pdf.CellFormat(20, 4, "Orders:", "", 0, "L", false, 0, "")

	pdf.SetFont("Helvetica", "", 7)
	xPos := marginLeft + 22
	maxX := pageWidth - marginRight

	for _, id := range ids {
		col := orderColors[colors[id]%len(orderColors)]
		label := fmt.Sprintf("%s (%.0f mm)", id, widths[id])
		labelW := pdf.GetStringWidth(label) + 6

		if xPos+labelW > maxX {
			startY += 5
			xPos = marginLeft
		}

		pdf.SetFillColor(col.R, col.G, col.B)
		pdf.Rect(xPos, startY+0.5, 3, 3, "F")

		pdf.SetXY(xPos+4, startY)
		pdf.CellFormat(labelW-4, 4, label, "", 0, "L", false, 0, "")

		xPos += labelW + 2
	}
}

// renderSummaryPage draws the overall statistics, order coverage and the
// parameters of the run.
func renderSummaryPage(pdf *fpdf.Fpdf, report model.SolutionReport, params model.Params) {
	pdf.SetFont("Helvetica", "B", 16)
	pdf.SetTextColor(0, 0, 0)
	pdf.SetXY(marginLeft, marginTop)
	pdf.CellFormat(pageWidth-marginLeft-marginRight, 10, "Slitting Plan Summary", "", 0, "L", false, 0, "")

	pdf.SetDrawColor(0, 0, 0)
	pdf.SetLineWidth(0.5)
	pdf.Line(marginLeft, marginTop+12, pageWidth-marginRight, marginTop+12)

	y := marginTop + 18
	leftX := marginLeft
	rightX := marginLeft + 125

	sectionTitle(pdf, leftX, y, "Overall Statistics")
	status := string(report.Status)
	if !report.ProvenOptimal {
		status += " (not proven optimal)"
	}
	summaryItems := []struct {
		label string
		value string
	}{
		{"Run", report.RunID},
		{"Status", status},
		{"Rolls", fmt.Sprintf("%d", report.NumRolls)},
		{"Distinct Setups", fmt.Sprintf("%d", report.NumDistinctSetups)},
		{"Patterns", fmt.Sprintf("%d", report.NumLogicalPatterns)},
		{"Total Edge Waste", fmt.Sprintf("%.0f mm", report.TotalWasteMM)},
		{"Gross Weight", fmt.Sprintf("%.1f kg", report.TotalKg)},
		{"Allocated Weight", fmt.Sprintf("%.1f kg", report.TotalAllocatedKg)},
		{"Solve Time", fmt.Sprintf("%.1f s", report.SolveTimeS)},
	}
	ly := y + 9
	for _, item := range summaryItems {
		pdf.SetFont("Helvetica", "", 10)
		pdf.SetXY(leftX+5, ly)
		pdf.CellFormat(45, 6, item.label+":", "", 0, "L", false, 0, "")
		pdf.SetFont("Helvetica", "B", 10)
		pdf.CellFormat(60, 6, item.value, "", 0, "L", false, 0, "")
		ly += 6
	}

	sectionTitle(pdf, rightX, y, "Parameters")
	paramItems := []struct {
		label string
		value string
	}{
		{"Edge Waste", fmt.Sprintf("%.0f - %.0f mm", params.EdgeWasteMinMM, params.EdgeWasteMaxMM)},
		{"Roll Weight", fmt.Sprintf("%.0f - %.0f kg", params.RollWeightMinKg, params.RollWeightMaxKg)},
		{"Coverage / Excess", fmt.Sprintf("%.0f%% / %.0f%%", params.CoverageMargin*100, params.ExcessMarginFactor*100)},
		{"Min Run Relaxation", fmt.Sprintf("%.0f%%", params.MinRunRelaxationPct)},
		{"Min Remainder", remainderText(params.MinRemainderM)},
		{"Max Cuts / Orders", fmt.Sprintf("%d / %d", params.MaxCutsPerOrder, params.MaxOrdersPerPattern)},
		{"Objective", string(params.Objective)},
		{"Time Limit", fmt.Sprintf("%d s", params.SolveTimeLimitS)},
	}
	ry := y + 9
	pdf.SetFont("Helvetica", "", 9)
	for _, item := range paramItems {
		pdf.SetXY(rightX+5, ry)
		pdf.CellFormat(40, 5, item.label+":", "", 0, "L", false, 0, "")
		pdf.CellFormat(50, 5, item.value, "", 0, "L", false, 0, "")
		ry += 5
	}

	y = math.Max(ly, ry) + 6
	sectionTitle(pdf, marginLeft, y, "Order Coverage")
	y += 9

	colWidths := []float64{50, 45, 45, 35, 30}
	headers := []string{"Order", "Requested kg", "Allocated kg", "Coverage", "Covered"}
	y = coverageHeader(pdf, colWidths, headers, y)

	pdf.SetFont("Helvetica", "", 9)
	for i, id := range report.OrderIDs() {
		if y+6 > pageHeight-marginBottom-6 {
			renderFooter(pdf)
			pdf.AddPage()
			y = coverageHeader(pdf, colWidths, headers, marginTop)
			pdf.SetFont("Helvetica", "", 9)
		}
		c := report.Coverage[id]
		covered := "yes"
		if !c.Covered {
			covered = "NO"
		}
		rowData := []string{
			id,
			fmt.Sprintf("%.1f", c.RequestedKg),
			fmt.Sprintf("%.1f", c.AllocatedKg),
			fmt.Sprintf("%.1f%%", c.Percent),
			covered,
		}

		if i%2 == 0 {
			pdf.SetFillColor(245, 245, 245)
		} else {
			pdf.SetFillColor(255, 255, 255)
		}
		if !c.Covered {
			pdf.SetTextColor(200, 0, 0)
		}
		xPos := marginLeft
		for j, cell := range rowData {
			pdf.SetXY(xPos, y)
			pdf.CellFormat(colWidths[j], 6, cell, "1", 0, "C", true, 0, "")
			xPos += colWidths[j]
		}
		pdf.SetTextColor(0, 0, 0)
		y += 6
	}

	renderFooter(pdf)
}

func sectionTitle(pdf *fpdf.Fpdf, x, y float64, title string) {
	pdf.SetFont("Helvetica", "B", 12)
	pdf.SetTextColor(0, 0, 0)
	pdf.SetXY(x, y)
	pdf.CellFormat(100, 7, title, "", 0, "L", false, 0, "")
}

func coverageHeader(pdf *fpdf.Fpdf, colWidths []float64, headers []string, y float64) float64 {
	pdf.SetFont("Helvetica", "B", 9)
	pdf.SetFillColor(230, 230, 230)
	xPos := marginLeft
	for i, header := range headers {
		pdf.SetXY(xPos, y)
		pdf.CellFormat(colWidths[i], 6, header, "1", 0, "C", true, 0, "")
		xPos += colWidths[i]
	}
	return y + 6
}

func renderFooter(pdf *fpdf.Fpdf) {
	pdf.SetFont("Helvetica", "I", 8)
	pdf.SetTextColor(120, 120, 120)
	pdf.SetXY(marginLeft, pageHeight-marginBottom)
	pdf.CellFormat(pageWidth-marginLeft-marginRight, 4, footerText, "", 0, "C", false, 0, "")
	pdf.SetTextColor(0, 0, 0)
}

func remainderText(m float64) string {
	if m <= 0 {
		return "off"
	}
	return fmt.Sprintf("%.0f m", m)
}

// labelFontSize returns an appropriate font size for a strip of width w.
func labelFontSize(w float64) float64 {
	switch {
	case w > 40:
		return 8
	case w > 20:
		return 7
	default:
		return 6
	}
}
