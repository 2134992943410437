package domain

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassifyCommodity(t *testing.T) {
	tests := []struct {
		text string
		want Commodity
	}{
		{"Corn", CommodityCorn},
		{"YELLOW CORN #2", CommodityCorn},
		{"Soybeans", CommoditySoybeans},
		{"soybean bid", CommoditySoybeans},
		{"Beans", CommoditySoybeans},
		{"Wheat", CommodityOther},
		{"", CommodityOther},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			assert.Equal(t, tt.want, ClassifyCommodity(tt.text))
		})
	}
}

func TestFuturesOverride_Snapshot(t *testing.T) {
	original := FuturesOverride{CommodityCorn: decimal.NewFromInt(5)}
	snap := original.Snapshot()

	original[CommodityCorn] = decimal.NewFromInt(6)
	original[CommoditySoybeans] = decimal.NewFromInt(11)

	assert.Len(t, snap, 1)
	assert.True(t, snap[CommodityCorn].Equal(decimal.NewFromInt(5)))

	var nilOverride FuturesOverride
	assert.Nil(t, nilOverride.Snapshot())
}

func TestBidRow_HasPrice(t *testing.T) {
	var row BidRow
	assert.False(t, row.HasPrice())

	row.Basis = decimal.NullDecimal{Decimal: decimal.Zero, Valid: true}
	assert.True(t, row.HasPrice())
}

func TestRoutedRow_ExportRecord(t *testing.T) {
	ts := time.Date(2026, 8, 30, 15, 4, 5, 0, time.UTC)
	cash, err := decimal.NewFromString("4.3")
	require.NoError(t, err)

	row := RoutedRow{
		BidRow: BidRow{
			SourceName:     "prairie-coop",
			Location:       "East Elevator",
			Commodity:      CommodityCorn,
			DeliveryPeriod: "Oct 2026",
			CashPrice:      decimal.NullDecimal{Decimal: cash, Valid: true},
			Timestamp:      ts,
		},
		MatchedProcessor: "cargill-east",
	}

	record := row.ExportRecord()
	require.Len(t, record, len(ExportHeaders))
	assert.Equal(t, "prairie-coop", record[0])
	assert.Equal(t, "corn", record[2])
	// Prices export at fixed two decimal places; nulls as empty cells.
	assert.Equal(t, "4.30", record[4])
	assert.Equal(t, "", record[5])
	assert.Equal(t, "", record[6])
	assert.Equal(t, "cargill-east", record[7])
	assert.Equal(t, "2026-08-30T15:04:05Z", record[8])
}
