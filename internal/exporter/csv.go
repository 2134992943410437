package exporter

import (
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"grainbids/pkg/contracts/domain"
)

// CSVWriter exports aggregated bid tables as CSV files.
type CSVWriter struct {
	dir string
}

// NewCSVWriter creates a CSV writer rooted at the given output directory.
func NewCSVWriter(dir string) *CSVWriter {
	return &CSVWriter{dir: dir}
}

// WriteTable writes the aggregated table to the named file under the
// output directory and returns the full path.
func (w *CSVWriter) WriteTable(table *domain.AggregatedTable, filename string) (string, error) {
	fullPath := filepath.Join(w.dir, filename)
	if err := os.MkdirAll(filepath.Dir(fullPath), 0755); err != nil {
		return "", fmt.Errorf("failed to create directory: %w", err)
	}

	file, err := os.Create(fullPath)
	if err != nil {
		return "", fmt.Errorf("failed to create file: %w", err)
	}
	defer file.Close()

	if err := WriteTableTo(file, table); err != nil {
		return "", err
	}

	slog.Info("wrote CSV export",
		slog.String("path", fullPath),
		slog.Int("rows", len(table.Rows)))
	return fullPath, nil
}

// WriteTableTo streams the table as CSV to any writer, HTTP responses
// included. A UTF-8 BOM is prefixed so Excel opens the file correctly.
func WriteTableTo(w io.Writer, table *domain.AggregatedTable) error {
	if _, err := w.Write([]byte{0xEF, 0xBB, 0xBF}); err != nil {
		return fmt.Errorf("failed to write BOM: %w", err)
	}

	writer := csv.NewWriter(w)
	if err := writer.Write(domain.ExportHeaders); err != nil {
		return fmt.Errorf("failed to write headers: %w", err)
	}
	for i, row := range table.Rows {
		if err := writer.Write(row.ExportRecord()); err != nil {
			return fmt.Errorf("failed to write record %d: %w", i, err)
		}
	}
	writer.Flush()
	return writer.Error()
}
