package ledger

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/xuri/excelize/v2"
)

// exportHeaders are the journal columns shared by CSV and XLSX exports
var exportHeaders = []string{
	"取引日",
	"借方勘定科目",
	"貸方勘定科目",
	"摘要",
	"借方金額(円)",
	"貸方金額(円)",
	"税区分",
}

const (
	exportSheetName = "仕訳"
	utf8BOM         = "\ufeff"
)

// ExportFilename returns receipt_data_YYYYMMDD_HHMM with the given extension
func ExportFilename(t time.Time, ext string) string {
	return fmt.Sprintf("receipt_data_%s.%s", t.Format("20060102_1504"), ext)
}

func formatAmount(v float64) string {
	return strconv.FormatFloat(finite(v), 'f', -1, 64)
}

// exportRecord maps a row to export columns; debit and credit carry the same amount
func exportRecord(r *NormalizedRow) []string {
	amount := formatAmount(r.Amount)
	return []string{
		r.Date,
		r.DebitAccountCategory,
		r.CreditAccountCategory,
		r.Description,
		amount,
		amount,
		r.TaxCategory,
	}
}

// WriteCSV writes rows as a BOM-prefixed UTF-8 CSV so spreadsheet apps detect the encoding
func WriteCSV(w io.Writer, rows []*NormalizedRow) error {
	if _, err := io.WriteString(w, utf8BOM); err != nil {
		return fmt.Errorf("writing BOM: %w", err)
	}
	cw := csv.NewWriter(w)
	if err := cw.Write(exportHeaders); err != nil {
		return fmt.Errorf("writing CSV header: %w", err)
	}
	for _, r := range rows {
		if err := cw.Write(exportRecord(r)); err != nil {
			return fmt.Errorf("writing CSV row %s: %w", r.ID, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteXLSX writes rows to a single-sheet workbook
func WriteXLSX(w io.Writer, rows []*NormalizedRow) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", exportSheetName); err != nil {
		return fmt.Errorf("naming sheet: %w", err)
	}

	header := make([]interface{}, len(exportHeaders))
	for i, h := range exportHeaders {
		header[i] = h
	}
	if err := f.SetSheetRow(exportSheetName, "A1", &header); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#E2E8F0"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
	if err != nil {
		return fmt.Errorf("creating header style: %w", err)
	}
	if err := f.SetRowStyle(exportSheetName, 1, 1, headerStyle); err != nil {
		return fmt.Errorf("styling header: %w", err)
	}

	for i, r := range rows {
		amount := finite(r.Amount)
		values := []interface{}{
			r.Date,
			r.DebitAccountCategory,
			r.CreditAccountCategory,
			r.Description,
			amount,
			amount,
			r.TaxCategory,
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(exportSheetName, cell, &values); err != nil {
			return fmt.Errorf("writing row %d: %w", i+2, err)
		}
	}

	f.SetColWidth(exportSheetName, "A", "A", 14)
	f.SetColWidth(exportSheetName, "B", "C", 16)
	f.SetColWidth(exportSheetName, "D", "D", 40)
	f.SetColWidth(exportSheetName, "E", "G", 14)

	if err := f.Write(w); err != nil {
		return fmt.Errorf("writing workbook: %w", err)
	}
	return nil
}

// ExportCSV writes every stored row as CSV
func (s *Service) ExportCSV(w io.Writer) error {
	rows, err := s.ListRows()
	if err != nil {
		return err
	}
	return WriteCSV(w, rows)
}

// ExportXLSX writes every stored row as an Excel workbook
func (s *Service) ExportXLSX(w io.Writer) error {
	rows, err := s.ListRows()
	if err != nil {
		return err
	}
	return WriteXLSX(w, rows)
}

// Now returns the service clock's current time
func (s *Service) Now() time.Time {
	return s.timeSource.Now()
}
