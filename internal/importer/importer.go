// Package importer reads stock rolls and orders from CSV and Excel files.
// It supports automatic delimiter detection, flexible column mapping,
// case-insensitive header recognition in English and Spanish, and comma
// decimal separators.
package importer

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/piwi3910/CoilCut/internal/model"
	"github.com/xuri/excelize/v2"
)

// ImportResult holds the results of an import operation. Only the slice of
// the imported kind is populated.
type ImportResult struct {
	Stocks   []model.StockRoll
	Orders   []model.Order
	Errors   []string
	Warnings []string
}

// Kind is the record type of a file.
type Kind int

const (
	KindStock Kind = iota
	KindOrders
)

func (k Kind) String() string {
	if k == KindOrders {
		return "orders"
	}
	return "stock"
}

// Column roles.
const (
	colID        = "id"
	colLabel     = "label"
	colColor     = "color"
	colAlloy     = "alloy"
	colTemper    = "temper"
	colWidth     = "width"
	colThickness = "thickness"
	colKg        = "kg"
	colMinRun    = "min_run"
)

// headerAliases maps column roles to their accepted header names (all
// lowercase, accents removed).
var headerAliases = map[string][]string{
	colID:        {"pedido", "order", "order id", "order_id", "id"},
	colLabel:     {"desarrollo", "label", "name", "coil"},
	colColor:     {"color", "colour"},
	colAlloy:     {"aleacion", "alloy", "grade"},
	colTemper:    {"estado", "temper"},
	colWidth:     {"ancho", "width", "width_mm", "w"},
	colThickness: {"espesor", "thickness", "thickness_mm", "t"},
	colKg:        {"kg", "weight", "weight_kg", "kilos", "available_kg", "requested_kg"},
	colMinRun:    {"ml", "min_run", "min run", "min_run_m", "run_length"},
}

// Positional layouts used when a file has no recognisable header.
var (
	stockPositions = []string{colAlloy, colTemper, colWidth, colThickness, colKg}
	orderPositions = []string{colID, colColor, colAlloy, colTemper, colWidth, colThickness, colKg, colMinRun}
)

var requiredColumns = map[Kind][]string{
	KindStock:  {colWidth, colThickness, colKg, colAlloy, colTemper},
	KindOrders: {colWidth, colThickness, colKg, colAlloy, colTemper},
}

// ColumnMapping maps column roles to their indices in the data.
type ColumnMapping map[string]int

func (m ColumnMapping) index(role string) int {
	if i, ok := m[role]; ok {
		return i
	}
	return -1
}

// DetectCSVDelimiter reads the file content and determines the most likely CSV delimiter.
// It tries comma, semicolon, tab, and pipe. The delimiter that produces the most
// consistent (non-one) column count across lines wins.
func DetectCSVDelimiter(data []byte) rune {
	candidates := []rune{',', ';', '\t', '|'}
	bestDelimiter := ','
	bestScore := 0

	for _, delim := range candidates {
		reader := csv.NewReader(bytes.NewReader(data))
		reader.Comma = delim
		reader.LazyQuotes = true
		reader.FieldsPerRecord = -1

		records, err := reader.ReadAll()
		if err != nil || len(records) < 1 {
			continue
		}

		firstCols := len(records[0])
		if firstCols < 2 {
			continue
		}

		score := 0
		for _, row := range records {
			if len(row) == firstCols {
				score++
			}
		}

		weighted := score*10 + firstCols
		if weighted > bestScore {
			bestScore = weighted
			bestDelimiter = delim
		}
	}

	return bestDelimiter
}

// normalizeHeader lowercases a header cell and strips Spanish accents.
func normalizeHeader(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	return strings.NewReplacer("á", "a", "é", "e", "í", "i", "ó", "o", "ú", "u", "ñ", "n").Replace(s)
}

// DetectColumns examines a header row and returns a ColumnMapping.
// Returns the mapping and true if a header was detected, or the positional
// layout of kind and false otherwise.
func DetectColumns(row []string, kind Kind) (ColumnMapping, bool) {
	mapping := ColumnMapping{}
	for i, cell := range row {
		normalized := normalizeHeader(cell)
		for role, aliases := range headerAliases {
			if _, taken := mapping[role]; taken {
				continue
			}
			for _, alias := range aliases {
				if normalized == alias {
					mapping[role] = i
					break
				}
			}
		}
	}

	if len(mapping) == 0 {
		positions := stockPositions
		if kind == KindOrders {
			positions = orderPositions
		}
		positional := ColumnMapping{}
		for i, role := range positions {
			positional[role] = i
		}
		return positional, false
	}

	return mapping, true
}

// getCell safely retrieves a cell value from a row by column index.
// Returns empty string if the index is out of range or negative.
func getCell(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}

// parseNumber reads a decimal that may use a comma separator. Blank cells
// read as 0; ok is false for text that is not a number.
func parseNumber(s string) (v float64, ok bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, true
	}
	v, err := strconv.ParseFloat(strings.ReplaceAll(s, ",", "."), 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// rowParser accumulates the records of one file.
type rowParser struct {
	kind    Kind
	mapping ColumnMapping
	result  ImportResult
	seenIDs map[string]bool
}

func (p *rowParser) number(row []string, role, rowLabel string) float64 {
	raw := getCell(row, p.mapping.index(role))
	v, ok := parseNumber(raw)
	if !ok {
		p.result.Warnings = append(p.result.Warnings, fmt.Sprintf("%s: invalid %s '%s', read as 0", rowLabel, role, raw))
	}
	return v
}

func (p *rowParser) parseRow(row []string, rowLabel string) {
	width := p.number(row, colWidth, rowLabel)
	thickness := p.number(row, colThickness, rowLabel)
	kg := p.number(row, colKg, rowLabel)
	alloy := getCell(row, p.mapping.index(colAlloy))
	temper := getCell(row, p.mapping.index(colTemper))

	if width <= 0 || thickness <= 0 || kg <= 0 {
		p.result.Warnings = append(p.result.Warnings, fmt.Sprintf("%s: width, thickness and kg must be positive, row dropped", rowLabel))
		return
	}

	if p.kind == KindStock {
		s := model.NewStockRoll(width, thickness, alloy, temper, kg)
		s.ID = fmt.Sprintf("S%02d", len(p.result.Stocks)+1)
		if label := getCell(row, p.mapping.index(colLabel)); label != "" {
			s.Label = label
		}
		p.result.Stocks = append(p.result.Stocks, s)
		return
	}

	id := getCell(row, p.mapping.index(colID))
	if id == "" {
		id = fmt.Sprintf("ORD-%03d", len(p.result.Orders)+1)
	}
	if p.seenIDs[id] {
		p.result.Errors = append(p.result.Errors, fmt.Sprintf("%s: duplicate order '%s'", rowLabel, id))
		return
	}
	p.seenIDs[id] = true

	o := model.NewOrder(id, width, thickness, alloy, temper, kg)
	o.Color = getCell(row, p.mapping.index(colColor))
	if run := p.number(row, colMinRun, rowLabel); run > 0 {
		o.MinRunLengthM = run
	}
	p.result.Orders = append(p.result.Orders, o)
}

// isEmptyRow returns true if the row has no meaningful content.
func isEmptyRow(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}

// Import reads path as CSV or Excel depending on its extension.
func Import(path string, kind Kind) ImportResult {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx", ".xlsm", ".xls":
		return ImportExcel(path, kind)
	default:
		return ImportCSV(path, kind)
	}
}

// ImportCSV imports records from a CSV file.
// It automatically detects the delimiter and maps columns by header names.
// Supports comma, semicolon, tab, and pipe delimiters.
func ImportCSV(path string, kind Kind) ImportResult {
	result := ImportResult{}

	data, err := os.ReadFile(path)
	if err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("Cannot open file: %v", err))
		return result
	}

	if len(bytes.TrimSpace(data)) == 0 {
		result.Errors = append(result.Errors, "File is empty")
		return result
	}

	delimiter := DetectCSVDelimiter(data)
	var warnings []string
	if delimiter != ',' {
		delimName := map[rune]string{';': "semicolon", '\t': "tab", '|': "pipe"}[delimiter]
		warnings = append(warnings, fmt.Sprintf("Detected %s delimiter", delimName))
	}

	records, err := readCSV(bytes.NewReader(data), delimiter)
	if err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("Cannot read CSV: %v", err))
		return result
	}

	return importFromRows(records, kind, "Line", warnings)
}

// ImportCSVFromReader imports records from a CSV reader with a specific
// delimiter.
func ImportCSVFromReader(reader io.Reader, delimiter rune, kind Kind) ImportResult {
	records, err := readCSV(reader, delimiter)
	if err != nil {
		return ImportResult{Errors: []string{fmt.Sprintf("Cannot read CSV: %v", err)}}
	}
	return importFromRows(records, kind, "Line", nil)
}

func readCSV(r io.Reader, delimiter rune) ([][]string, error) {
	csvReader := csv.NewReader(r)
	csvReader.Comma = delimiter
	csvReader.LazyQuotes = true
	csvReader.FieldsPerRecord = -1
	return csvReader.ReadAll()
}

// ImportExcel imports records from an Excel file. Reads the first sheet and
// auto-detects column mapping from headers.
func ImportExcel(path string, kind Kind) ImportResult {
	result := ImportResult{}

	f, err := excelize.OpenFile(path)
	if err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("Cannot open Excel file: %v", err))
		return result
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		result.Errors = append(result.Errors, "Excel file has no sheets")
		return result
	}

	rows, err := f.GetRows(sheets[0])
	if err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("Cannot read Excel data: %v", err))
		return result
	}

	return importFromRows(rows, kind, "Row", nil)
}

// importFromRows is the shared import logic for both CSV and Excel data.
func importFromRows(rows [][]string, kind Kind, rowPrefix string, initialWarnings []string) ImportResult {
	if len(rows) == 0 {
		return ImportResult{Errors: []string{"No data rows found"}, Warnings: initialWarnings}
	}

	mapping, hasHeader := DetectColumns(rows[0], kind)
	p := &rowParser{
		kind:    kind,
		mapping: mapping,
		result:  ImportResult{Warnings: initialWarnings},
		seenIDs: make(map[string]bool),
	}

	startRow := 0
	if hasHeader {
		startRow = 1
		var missing []string
		for _, role := range requiredColumns[kind] {
			if mapping.index(role) == -1 {
				missing = append(missing, role)
			}
		}
		if len(missing) > 0 {
			p.result.Errors = append(p.result.Errors, fmt.Sprintf("Required columns not found in header: %s", strings.Join(missing, ", ")))
			return p.result
		}
	}

	for i := startRow; i < len(rows); i++ {
		row := rows[i]
		if isEmptyRow(row) {
			continue
		}
		p.parseRow(row, fmt.Sprintf("%s %d", rowPrefix, i+1))
	}

	if len(p.result.Stocks)+len(p.result.Orders) == 0 && len(p.result.Errors) == 0 {
		p.result.Errors = append(p.result.Errors, fmt.Sprintf("No valid %s rows found", kind))
	}
	return p.result
}
