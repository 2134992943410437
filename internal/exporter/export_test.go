package exporter

import (
	"bytes"
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"grainbids/pkg/contracts/domain"
)

func sampleTable(t *testing.T) *domain.AggregatedTable {
	t.Helper()
	cash, err := decimal.NewFromString("4.35")
	require.NoError(t, err)
	basis, err := decimal.NewFromString("-0.25")
	require.NoError(t, err)

	return &domain.AggregatedTable{
		RunID:       "test-run",
		GeneratedAt: time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC),
		Rows: []domain.RoutedRow{
			{
				BidRow: domain.BidRow{
					SourceName:     "prairie-coop",
					Location:       "East Elevator",
					Commodity:      domain.CommodityCorn,
					DeliveryPeriod: "Oct 2026",
					CashPrice:      decimal.NullDecimal{Decimal: cash, Valid: true},
					Basis:          decimal.NullDecimal{Decimal: basis, Valid: true},
					Timestamp:      time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC),
				},
				MatchedProcessor: "cargill-east",
			},
			{
				BidRow: domain.BidRow{
					SourceName:     "river-terminal",
					Location:       "river-terminal",
					Commodity:      domain.CommoditySoybeans,
					DeliveryPeriod: "Nearby",
					Timestamp:      time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC),
				},
			},
		},
	}
}

func TestWriteTableTo_CSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteTableTo(&buf, sampleTable(t)))

	raw := buf.Bytes()
	// BOM prefix so Excel detects UTF-8.
	require.True(t, bytes.HasPrefix(raw, []byte{0xEF, 0xBB, 0xBF}))

	records, err := csv.NewReader(bytes.NewReader(raw[3:])).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, domain.ExportHeaders, records[0])
	assert.Equal(t, "prairie-coop", records[1][0])
	assert.Equal(t, "4.35", records[1][4])
	assert.Equal(t, "-0.25", records[1][5])
	// Null prices export as empty cells.
	assert.Equal(t, "", records[2][4])
}

func TestCSVWriter_WriteTable(t *testing.T) {
	dir := t.TempDir()
	writer := NewCSVWriter(dir)

	path, err := writer.WriteTable(sampleTable(t), "bids.csv")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "bids.csv"), path)

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(content), "prairie-coop")
}

func TestCSVWriter_CreatesDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "out")
	_, err := NewCSVWriter(dir).WriteTable(sampleTable(t), "bids.csv")
	require.NoError(t, err)
	_, err = os.Stat(filepath.Join(dir, "bids.csv"))
	assert.NoError(t, err)
}

func TestExcelWriter_WriteTable(t *testing.T) {
	dir := t.TempDir()
	path, err := NewExcelWriter(dir).WriteTable(sampleTable(t), "bids.xlsx")
	require.NoError(t, err)

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows("Cash Bids")
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, domain.ExportHeaders, rows[0])
	assert.Equal(t, "prairie-coop", rows[1][0])
	assert.Equal(t, "4.35", rows[1][4])
}

func TestExcelWriter_WriteTableTo(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewExcelWriter("").WriteTableTo(&buf, sampleTable(t)))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows("Cash Bids")
	require.NoError(t, err)
	assert.Len(t, rows, 3)
}
