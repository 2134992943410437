package dataprocessing

import (
	"github.com/shopspring/decimal"

	"grainbids/pkg/contracts/domain"
)

// centsPlaces is the price granularity: cents per bushel.
const centsPlaces = 2

// ApplyBasis derives basis for rows that lack a source-reported one.
// Precedence, most specific first:
//
//  1. a source-reported basis is never overwritten;
//  2. the row's own futures price is used for the subtraction when present;
//  3. otherwise the snapshotted per-commodity override fills in.
//
// When no futures price is available from either side and the source basis
// is absent, basis stays null, which is a valid displayable state. All
// arithmetic is decimal; repeated runs over identical inputs produce
// bit-identical results.
func ApplyBasis(rows []domain.RoutedRow, override domain.FuturesOverride) []domain.RoutedRow {
	out := make([]domain.RoutedRow, len(rows))
	for i, row := range rows {
		out[i] = deriveBasis(row, override)
	}
	return out
}

func deriveBasis(row domain.RoutedRow, override domain.FuturesOverride) domain.RoutedRow {
	futures := row.FuturesPrice
	if !futures.Valid && override != nil {
		if price, ok := override[row.Commodity]; ok {
			futures = decimal.NullDecimal{Decimal: price, Valid: true}
		}
	}

	if row.Basis.Valid {
		return row
	}
	if !row.CashPrice.Valid || !futures.Valid {
		return row
	}

	basis := row.CashPrice.Decimal.Sub(futures.Decimal).Round(centsPlaces)
	row.Basis = decimal.NullDecimal{Decimal: basis, Valid: true}
	// Record the futures price the subtraction actually used, so exports
	// show where a derived basis came from.
	row.FuturesPrice = futures
	return row
}
