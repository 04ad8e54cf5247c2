package packager

import (
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/lehigh-university-libraries/almaharvest/internal/ledger"
	"github.com/xuri/excelize/v2"
)

// SheetName is the name of the ledger sheet
const SheetName = "Alma"

const maxColumnWidth = 80

// WriteWorkbook writes the ledger rows to an XLSX workbook. The header row is
// bold with a bottom border and NOK statuses are red.
func WriteWorkbook(path string, rows []ledger.Row) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), SheetName); err != nil {
		return fmt.Errorf("failed to name sheet: %w", err)
	}

	widths := make(map[int]int)
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return fmt.Errorf("failed to address row %d: %w", i+1, err)
		}
		values := make([]interface{}, len(row))
		for j, v := range row {
			values[j] = v
			widths[j] = max(widths[j], utf8.RuneCountInString(v))
		}
		if err := f.SetSheetRow(SheetName, cell, &values); err != nil {
			return fmt.Errorf("failed to write row %d: %w", i+1, err)
		}
	}

	if err := styleWorkbook(f, rows, widths); err != nil {
		return err
	}

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("failed to save workbook: %w", err)
	}

	slog.Info("Wrote workbook", "path", path, "rows", len(rows))
	return nil
}

func styleWorkbook(f *excelize.File, rows []ledger.Row, widths map[int]int) error {
	headerStyle, err := f.NewStyle(&excelize.Style{
		Font:   &excelize.Font{Bold: true},
		Border: []excelize.Border{{Type: "bottom", Color: "000000", Style: 2}},
	})
	if err != nil {
		return fmt.Errorf("failed to create header style: %w", err)
	}
	errorStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Color: "FF0000"},
	})
	if err != nil {
		return fmt.Errorf("failed to create error style: %w", err)
	}

	if len(rows) > 0 {
		if err := f.SetRowStyle(SheetName, 1, 1, headerStyle); err != nil {
			return fmt.Errorf("failed to style header: %w", err)
		}
	}

	for i, row := range rows {
		if i == 0 || len(row) < 2 || !strings.HasPrefix(row[1], ledger.StatusNOK) {
			continue
		}
		cell, _ := excelize.CoordinatesToCellName(2, i+1)
		if err := f.SetCellStyle(SheetName, cell, cell, errorStyle); err != nil {
			return fmt.Errorf("failed to style %s: %w", cell, err)
		}
	}

	for col, width := range widths {
		name, err := excelize.ColumnNumberToName(col + 1)
		if err != nil {
			return fmt.Errorf("failed to address column %d: %w", col+1, err)
		}
		if err := f.SetColWidth(SheetName, name, name, float64(min(width+2, maxColumnWidth))); err != nil {
			return fmt.Errorf("failed to size column %s: %w", name, err)
		}
	}
	return nil
}

// ReadWorkbook returns the rows of the first sheet of a workbook
func ReadWorkbook(path string) ([]ledger.Row, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer f.Close()

	cells, err := f.GetRows(f.GetSheetName(0))
	if err != nil {
		return nil, fmt.Errorf("failed to read workbook rows: %w", err)
	}

	rows := make([]ledger.Row, len(cells))
	for i, r := range cells {
		rows[i] = ledger.Row(r)
	}
	return rows, nil
}

// ReadYears maps barcodes to years for every workbook row with a numeric
// year and a barcode
func ReadYears(path string) (map[string]string, error) {
	rows, err := ReadWorkbook(path)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("workbook %s is empty", path)
	}
	return ledger.YearsOf(rows), nil
}
