package exporter

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/xuri/excelize/v2"

	"grainbids/pkg/contracts/domain"
)

const sheetName = "Cash Bids"

// ExcelWriter exports aggregated bid tables as xlsx workbooks.
type ExcelWriter struct {
	dir string
}

// NewExcelWriter creates an Excel writer rooted at the given output
// directory.
func NewExcelWriter(dir string) *ExcelWriter {
	return &ExcelWriter{dir: dir}
}

// WriteTable writes the aggregated table to the named workbook under the
// output directory and returns the full path.
func (w *ExcelWriter) WriteTable(table *domain.AggregatedTable, filename string) (string, error) {
	fullPath := filepath.Join(w.dir, filename)
	if err := os.MkdirAll(filepath.Dir(fullPath), 0755); err != nil {
		return "", fmt.Errorf("failed to create directory: %w", err)
	}

	f, err := buildWorkbook(table)
	if err != nil {
		return "", err
	}
	defer f.Close()

	if err := f.SaveAs(fullPath); err != nil {
		return "", fmt.Errorf("failed to save workbook: %w", err)
	}

	slog.Info("wrote Excel export",
		slog.String("path", fullPath),
		slog.Int("rows", len(table.Rows)))
	return fullPath, nil
}

// WriteTableTo streams the table as an xlsx workbook to any writer.
func (w *ExcelWriter) WriteTableTo(out io.Writer, table *domain.AggregatedTable) error {
	f, err := buildWorkbook(table)
	if err != nil {
		return err
	}
	defer f.Close()

	if _, err := f.WriteTo(out); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

func buildWorkbook(table *domain.AggregatedTable) (*excelize.File, error) {
	f := excelize.NewFile()
	f.SetSheetName(f.GetSheetName(0), sheetName)

	headers := make([]interface{}, len(domain.ExportHeaders))
	for i, h := range domain.ExportHeaders {
		headers[i] = h
	}
	if err := f.SetSheetRow(sheetName, "A1", &headers); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to write header row: %w", err)
	}

	for i, row := range table.Rows {
		record := row.ExportRecord()
		cells := make([]interface{}, len(record))
		for j, cell := range record {
			cells[j] = cell
		}
		addr, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			f.Close()
			return nil, err
		}
		if err := f.SetSheetRow(sheetName, addr, &cells); err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to write row %d: %w", i, err)
		}
	}
	return f, nil
}
