// Package dataprocessing implements the cash-bid pipeline core: it turns
// heterogeneous co-op HTML tables into one canonical, routed, basis-annotated
// bid table.
//
// # Architecture
//
// The package is organized as a pipeline of four stages:
//
//  1. Extractor: parses raw HTML into raw tables, tolerating broken markup
//  2. Normalizer: maps arbitrary source columns onto canonical bid fields
//  3. Router: classifies rows into named processor buckets, first match wins
//  4. Basis/Aggregator: derives basis from futures overrides and merges all
//     sources into one deterministically sorted table
//
// # Usage
//
// Extract and normalize one page:
//
//	result := dataprocessing.ExtractTables(html, "Dunkerton Coop", pageURL, domain.OriginPage)
//	rows, err := dataprocessing.NormalizeTable(result.Tables[0], time.Now())
//
// Route and derive basis:
//
//	router := dataprocessing.NewRouter(rules, false)
//	routed := dataprocessing.ApplyBasis(router.Route(rows), override.Snapshot())
//
// # Error Handling
//
// The pipeline degrades instead of failing: unparseable cells, missing
// futures prices, and unmatched routing rules are all valid null states.
// Only two conditions are errors, and both are recoverable by the caller:
//
//   - NormalizationError: a table exposed no recognizable columns; that
//     source is skipped and the run continues
//   - NoDataError: every source plus the fallback feed yielded zero rows
//
// # Determinism
//
// Prices are decimal values with cents-per-bushel granularity; two runs
// over identical inputs produce bit-identical output. The aggregator sorts
// by (source_name, location, commodity) so ordering never depends on fetch
// timing.
package dataprocessing
