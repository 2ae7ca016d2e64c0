package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/piwi3910/CoilCut/internal/model"
)

// ExportCSV writes the flat roll listing of the report to path.
func ExportCSV(path string, report model.SolutionReport) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if err := WriteCSV(f, report); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// WriteCSV writes one line per order per roll, preceded by a header.
func WriteCSV(w io.Writer, report model.SolutionReport) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(RollColumns); err != nil {
		return err
	}
	for _, r := range report.Rows() {
		record := []string{
			r.RollID,
			r.Stock,
			r.OrderID,
			strconv.Itoa(r.Cuts),
			formatFloat(r.CutWidthMM),
			formatFloat(r.LinearMeters),
			formatFloat(r.AllocatedKg),
			formatFloat(r.GrossKg),
			formatFloat(r.StockWidthMM),
			formatFloat(r.WasteWidthMM),
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
