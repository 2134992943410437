package dataprocessing

import (
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"grainbids/internal/errors"
	"grainbids/pkg/contracts/domain"
)

// AggregateOptions tune the merge step.
type AggregateOptions struct {
	// SuppressEmptyBids drops rows whose price fields are all null.
	// Off by default: an all-null row still documents "no current bid".
	SuppressEmptyBids bool
}

// Aggregate merges per-source row sets into one deterministic table.
// Sources are concatenated without cross-source deduplication (distinct
// sources are distinct physical locations) and sorted case-insensitively
// by (source_name, location, commodity) so output is reproducible and
// diffable. It fails only with a NoDataError when the merge is empty,
// which the caller surfaces as "no bids available" rather than a crash.
func Aggregate(perSource [][]domain.RoutedRow, outcomes []domain.SourceOutcome, opts AggregateOptions, now time.Time) (*domain.AggregatedTable, error) {
	var rows []domain.RoutedRow
	for _, sourceRows := range perSource {
		for _, row := range sourceRows {
			if opts.SuppressEmptyBids && !row.HasPrice() {
				continue
			}
			rows = append(rows, row)
		}
	}

	if len(rows) == 0 {
		return nil, &errors.NoDataError{SourcesTried: len(outcomes)}
	}

	sort.SliceStable(rows, func(i, j int) bool {
		return lessRow(rows[i], rows[j])
	})

	return &domain.AggregatedTable{
		RunID:       uuid.NewString(),
		GeneratedAt: now,
		Rows:        rows,
		Sources:     outcomes,
	}, nil
}

func lessRow(a, b domain.RoutedRow) bool {
	if c := strings.Compare(strings.ToLower(a.SourceName), strings.ToLower(b.SourceName)); c != 0 {
		return c < 0
	}
	if c := strings.Compare(strings.ToLower(a.Location), strings.ToLower(b.Location)); c != 0 {
		return c < 0
	}
	return strings.Compare(string(a.Commodity), string(b.Commodity)) < 0
}
