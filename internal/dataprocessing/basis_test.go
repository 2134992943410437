package dataprocessing

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"grainbids/pkg/contracts/domain"
)

func dec(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(s)
	require.NoError(t, err)
	return d
}

func nullDec(t *testing.T, s string) decimal.NullDecimal {
	t.Helper()
	return decimal.NullDecimal{Decimal: dec(t, s), Valid: true}
}

func routedRow(commodity domain.Commodity, cash, basis, futures decimal.NullDecimal) domain.RoutedRow {
	return domain.RoutedRow{BidRow: domain.BidRow{
		SourceName:   "coop",
		Commodity:    commodity,
		CashPrice:    cash,
		Basis:        basis,
		FuturesPrice: futures,
	}}
}

func TestApplyBasis_SourceBasisWins(t *testing.T) {
	// Source reports basis -0.30; derivation from cash and futures would
	// give -0.25. The source value must survive untouched.
	rows := []domain.RoutedRow{
		routedRow(domain.CommodityCorn,
			nullDec(t, "4.35"), nullDec(t, "-0.30"), nullDec(t, "4.60")),
	}
	out := ApplyBasis(rows, domain.FuturesOverride{
		domain.CommodityCorn: dec(t, "4.60"),
	})
	require.Len(t, out, 1)
	assert.Equal(t, "-0.3", out[0].Basis.Decimal.String())
}

func TestApplyBasis_RowFuturesBeatsOverride(t *testing.T) {
	rows := []domain.RoutedRow{
		routedRow(domain.CommodityCorn,
			nullDec(t, "4.35"), decimal.NullDecimal{}, nullDec(t, "4.50")),
	}
	out := ApplyBasis(rows, domain.FuturesOverride{
		domain.CommodityCorn: dec(t, "4.60"),
	})
	require.Len(t, out, 1)
	require.True(t, out[0].Basis.Valid)
	// 4.35 - 4.50, not 4.35 - 4.60.
	assert.Equal(t, "-0.15", out[0].Basis.Decimal.String())
	assert.Equal(t, "4.5", out[0].FuturesPrice.Decimal.String())
}

func TestApplyBasis_OverrideFillsMissingFutures(t *testing.T) {
	rows := []domain.RoutedRow{
		routedRow(domain.CommodityCorn,
			nullDec(t, "4.35"), decimal.NullDecimal{}, decimal.NullDecimal{}),
		routedRow(domain.CommoditySoybeans,
			nullDec(t, "10.12"), decimal.NullDecimal{}, decimal.NullDecimal{}),
	}
	out := ApplyBasis(rows, domain.FuturesOverride{
		domain.CommodityCorn:     dec(t, "4.60"),
		domain.CommoditySoybeans: dec(t, "10.60"),
	})
	require.Len(t, out, 2)
	assert.Equal(t, "-0.25", out[0].Basis.Decimal.String())
	// The futures price the subtraction used is recorded on the row.
	assert.Equal(t, "4.6", out[0].FuturesPrice.Decimal.String())
	assert.Equal(t, "-0.48", out[1].Basis.Decimal.String())
}

func TestApplyBasis_NullWithoutFutures(t *testing.T) {
	rows := []domain.RoutedRow{
		// Cash but no futures anywhere.
		routedRow(domain.CommodityCorn,
			nullDec(t, "4.35"), decimal.NullDecimal{}, decimal.NullDecimal{}),
		// Futures but no cash.
		routedRow(domain.CommodityCorn,
			decimal.NullDecimal{}, decimal.NullDecimal{}, nullDec(t, "4.60")),
	}
	out := ApplyBasis(rows, nil)
	require.Len(t, out, 2)
	assert.False(t, out[0].Basis.Valid)
	assert.False(t, out[1].Basis.Valid)
}

func TestApplyBasis_NoOverrideForCommodity(t *testing.T) {
	rows := []domain.RoutedRow{
		routedRow(domain.CommodityOther,
			nullDec(t, "6.10"), decimal.NullDecimal{}, decimal.NullDecimal{}),
	}
	out := ApplyBasis(rows, domain.FuturesOverride{
		domain.CommodityCorn: dec(t, "4.60"),
	})
	require.Len(t, out, 1)
	assert.False(t, out[0].Basis.Valid)
	assert.False(t, out[0].FuturesPrice.Valid)
}

func TestApplyBasis_ExactArithmetic(t *testing.T) {
	// 5.20 - 5.00 must be exactly 0.20 every time; float arithmetic would
	// drift on some of the thousand repeats.
	override := domain.FuturesOverride{domain.CommodityCorn: dec(t, "5.00")}
	for i := 0; i < 1000; i++ {
		rows := []domain.RoutedRow{
			routedRow(domain.CommodityCorn,
				nullDec(t, "5.20"), decimal.NullDecimal{}, decimal.NullDecimal{}),
		}
		out := ApplyBasis(rows, override)
		require.True(t, out[0].Basis.Valid)
		require.Equal(t, "0.20", out[0].Basis.Decimal.StringFixed(2))
	}
}

func TestApplyBasis_RoundsToCents(t *testing.T) {
	rows := []domain.RoutedRow{
		routedRow(domain.CommodityCorn,
			nullDec(t, "4.355"), decimal.NullDecimal{}, nullDec(t, "4.60")),
	}
	out := ApplyBasis(rows, nil)
	require.True(t, out[0].Basis.Valid)
	assert.Equal(t, "-0.25", out[0].Basis.Decimal.String())
}

func TestApplyBasis_InputUnmodified(t *testing.T) {
	rows := []domain.RoutedRow{
		routedRow(domain.CommodityCorn,
			nullDec(t, "4.35"), decimal.NullDecimal{}, decimal.NullDecimal{}),
	}
	_ = ApplyBasis(rows, domain.FuturesOverride{
		domain.CommodityCorn: dec(t, "4.60"),
	})
	assert.False(t, rows[0].Basis.Valid)
	assert.False(t, rows[0].FuturesPrice.Valid)
}
