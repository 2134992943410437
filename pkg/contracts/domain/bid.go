package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Commodity identifies the crop a bid row refers to.
type Commodity string

const (
	CommodityCorn     Commodity = "corn"
	CommoditySoybeans Commodity = "soybeans"
	CommodityOther    Commodity = "other"
)

// ClassifyCommodity maps free-form commodity text from a source table onto
// the fixed commodity set. Anything that is not recognizably corn or
// soybeans is CommodityOther.
func ClassifyCommodity(text string) Commodity {
	lc := strings.ToLower(text)
	switch {
	case strings.Contains(lc, "corn"):
		return CommodityCorn
	case strings.Contains(lc, "soy"), strings.Contains(lc, "bean"):
		return CommoditySoybeans
	default:
		return CommodityOther
	}
}

// TableOrigin records where within a fetched page a raw table came from.
type TableOrigin string

const (
	OriginPage   TableOrigin = "page"
	OriginIframe TableOrigin = "iframe"
	OriginCSV    TableOrigin = "csv"
	OriginManual TableOrigin = "manual"
)

// RawTable is a source table as extracted from markup, before any column
// mapping. Headers are already whitespace-collapsed and de-duplicated;
// every row is padded or truncated to the header width.
type RawTable struct {
	SourceName string      `json:"source_name"`
	Origin     TableOrigin `json:"origin"`
	Headers    []string    `json:"headers"`
	Rows       [][]string  `json:"rows"`
}

// Empty reports whether the table carries no data rows.
func (t RawTable) Empty() bool {
	return len(t.Rows) == 0
}

// BidRow is a single normalized cash bid. Price fields use NullDecimal:
// an unparseable or absent cell is a valid null, never a malformed string.
type BidRow struct {
	SourceName     string              `json:"source_name"`
	Location       string              `json:"location"`
	Commodity      Commodity           `json:"commodity"`
	DeliveryPeriod string              `json:"delivery_period"`
	CashPrice      decimal.NullDecimal `json:"cash_price"`
	Basis          decimal.NullDecimal `json:"basis"`
	FuturesPrice   decimal.NullDecimal `json:"futures_price"`
	Timestamp      time.Time           `json:"timestamp"`
	// Extra holds source columns that matched no canonical field, keyed
	// extra_0, extra_1, ... in source column order. Debug aid only; the
	// router and basis steps never read it.
	Extra map[string]string `json:"extra,omitempty"`
}

// HasPrice reports whether any of the price fields is populated. Rows with
// no price at all represent "no current bid" and are kept by default.
func (r BidRow) HasPrice() bool {
	return r.CashPrice.Valid || r.Basis.Valid || r.FuturesPrice.Valid
}

// ProcessorRule routes bid rows to a named buyer or delivery point. Rules
// are evaluated in configuration order and the first match wins, so the
// order of the rule list is part of the configuration contract.
type ProcessorRule struct {
	Name string `json:"name" yaml:"name" validate:"required"`
	// Patterns are case-insensitive substrings tested against the row's
	// location (and source name when MatchSource is set).
	Patterns []string `json:"patterns" yaml:"patterns" validate:"required,min=1,dive,required"`
	// Commodity narrows the rule to one commodity; empty matches any.
	Commodity Commodity `json:"commodity,omitempty" yaml:"commodity" validate:"omitempty,oneof=corn soybeans other"`
	// MatchSource extends pattern matching to the row's source name.
	MatchSource bool `json:"match_source,omitempty" yaml:"match_source"`
}

// RoutedRow is a BidRow after routing. MatchedProcessor is empty when no
// rule matched; that is a normal outcome, not a failure.
type RoutedRow struct {
	BidRow
	MatchedProcessor string `json:"matched_processor,omitempty"`
}

// FuturesOverride maps a commodity to a user-supplied futures price used
// when the source does not report one. It lives for a single run; callers
// snapshot it once at run start.
type FuturesOverride map[Commodity]decimal.Decimal

// Snapshot returns an independent copy so mid-run mutation by the
// surrounding application cannot skew basis within one output table.
func (o FuturesOverride) Snapshot() FuturesOverride {
	if o == nil {
		return nil
	}
	cp := make(FuturesOverride, len(o))
	for k, v := range o {
		cp[k] = v
	}
	return cp
}

// SourceOutcome summarizes how one configured source fared during a run.
type SourceOutcome struct {
	SourceName string `json:"source_name"`
	URL        string `json:"url,omitempty"`
	Rows       int    `json:"rows"`
	Tables     int    `json:"tables"`
	Error      string `json:"error,omitempty"`
}

// AggregatedTable is the final merged, sorted result of one pipeline run.
type AggregatedTable struct {
	RunID       string          `json:"run_id"`
	GeneratedAt time.Time       `json:"generated_at"`
	Rows        []RoutedRow     `json:"rows"`
	Sources     []SourceOutcome `json:"sources"`
}

// ExportHeaders is the canonical column order for tabular exports.
var ExportHeaders = []string{
	"source_name", "location", "commodity", "delivery_period",
	"cash_price", "basis", "futures_price", "matched_processor", "timestamp",
}

// ExportRecord flattens a routed row into export cell order. Null prices
// become empty cells.
func (r RoutedRow) ExportRecord() []string {
	return []string{
		r.SourceName,
		r.Location,
		string(r.Commodity),
		r.DeliveryPeriod,
		formatNull(r.CashPrice),
		formatNull(r.Basis),
		formatNull(r.FuturesPrice),
		r.MatchedProcessor,
		r.Timestamp.UTC().Format(time.RFC3339),
	}
}

func formatNull(d decimal.NullDecimal) string {
	if !d.Valid {
		return ""
	}
	return d.Decimal.StringFixed(2)
}
