package dataprocessing

import (
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/antzucaro/matchr"
	"github.com/shopspring/decimal"

	"grainbids/internal/errors"
	"grainbids/pkg/contracts/domain"
)

// Canonical bid fields a source column can map onto.
const (
	fieldCommodity     = "commodity"
	fieldDelivery      = "delivery"
	fieldDeliveryStart = "delivery_start"
	fieldDeliveryEnd   = "delivery_end"
	fieldCash          = "cash"
	fieldBasis         = "basis"
	fieldFutures       = "futures"
	fieldLocation      = "location"
)

// synonym binds one source-header term to a canonical field. The table is
// ordered: within each matching pass (exact, then prefix, then substring)
// earlier entries take priority, which makes header matching a data
// artifact rather than scattered string checks. Reordering entries is a
// behavior change and tests pin the current order.
type synonym struct {
	field string
	term  string
}

var headerSynonyms = []synonym{
	{fieldCommodity, "commodity"},
	{fieldCommodity, "product"},
	{fieldCommodity, "crop"},
	{fieldCommodity, "comm"},
	{fieldDeliveryStart, "delivery start"},
	{fieldDeliveryEnd, "delivery end"},
	{fieldDelivery, "delivery"},
	{fieldDelivery, "deliv"},
	{fieldDelivery, "period"},
	{fieldDelivery, "month"},
	{fieldBasis, "basis"},
	{fieldFutures, "futures"},
	{fieldFutures, "cbot"},
	{fieldFutures, "fut"},
	{fieldCash, "cash price"},
	{fieldCash, "cash"},
	{fieldCash, "bid"},
	{fieldCash, "price"},
	{fieldLocation, "location"},
	{fieldLocation, "name"},
	{fieldLocation, "loc"},
}

// fuzzySynonyms are the full canonical names tried with Jaro-Winkler
// similarity as a last resort, to catch source typos like "comodity".
// The floor is deliberately high; fuzzy matching must never beat the
// deterministic passes, it only rescues near-misses.
const fuzzyFloor = 0.90

var fuzzySynonyms = []synonym{
	{fieldCommodity, "commodity"},
	{fieldDelivery, "delivery"},
	{fieldBasis, "basis"},
	{fieldFutures, "futures"},
	{fieldCash, "cash"},
	{fieldLocation, "location"},
}

var (
	headerPunct   = regexp.MustCompile(`[^a-z0-9 ]+`)
	commodityLike = regexp.MustCompile(`(?i)corn|soy|bean`)
	numericToken  = regexp.MustCompile(`[-+]?\d[\d,]*(?:\.\d+)?`)
)

// normalizeHeaderKey computes the matchable form of a raw header: case
// folded, punctuation stripped, whitespace collapsed.
func normalizeHeaderKey(header string) string {
	key := strings.ToLower(header)
	key = headerPunct.ReplaceAllString(key, " ")
	key = innerWhitespace.ReplaceAllString(key, " ")
	return strings.TrimSpace(key)
}

// columnMapping is the resolved layout of one raw table.
type columnMapping struct {
	// fields maps a canonical field to its column index. Each field binds
	// to the first column that matches it; each column binds to at most
	// one field.
	fields map[string]int
	// commodityCols are wide-format price columns named after a commodity
	// ("Corn Bid", "Soybeans"); each becomes one row per input row.
	commodityCols []int
	// extras are unmatched columns, kept in source order under extra_<n>.
	extras []int
}

// mapColumns resolves a header row against the synonym table: an exact
// match beats a prefix match beats a substring match beats a fuzzy match,
// and within one pass earlier synonyms beat later ones.
func mapColumns(headers []string) columnMapping {
	m := columnMapping{fields: make(map[string]int)}
	claimed := make([]bool, len(headers))
	keys := make([]string, len(headers))
	for i, h := range headers {
		keys[i] = normalizeHeaderKey(h)
	}

	// Wide-format tables carry one price column per commodity ("Corn Bid",
	// "Soybeans") instead of a commodity column. Those are claimed before
	// the synonym passes, otherwise "Corn Bid" would bind to the cash
	// field through its "bid" substring; melting takes precedence.
	for i, h := range headers {
		if commodityLike.MatchString(h) {
			m.commodityCols = append(m.commodityCols, i)
			claimed[i] = true
		}
	}

	type matchFn func(key, term string) bool
	passes := []matchFn{
		func(key, term string) bool { return key == term },
		func(key, term string) bool { return strings.HasPrefix(key, term) },
		func(key, term string) bool { return strings.Contains(key, term) },
		func(key, term string) bool { return matchr.JaroWinkler(key, term, false) >= fuzzyFloor },
	}
	tables := [][]synonym{headerSynonyms, headerSynonyms, headerSynonyms, fuzzySynonyms}

	for pass, match := range passes {
		for _, syn := range tables[pass] {
			if _, done := m.fields[syn.field]; done {
				continue
			}
			for i, key := range keys {
				if claimed[i] || key == "" {
					continue
				}
				if match(key, syn.term) {
					m.fields[syn.field] = i
					claimed[i] = true
					break
				}
			}
		}
	}

	for i := range headers {
		if !claimed[i] {
			m.extras = append(m.extras, i)
		}
	}
	return m
}

// recognized reports whether the mapping found anything usable at all.
func (m columnMapping) recognized() bool {
	return len(m.fields) > 0 || len(m.commodityCols) > 0
}

// NormalizeTable maps a raw table onto canonical bid rows. It fails with a
// NormalizationError only when not a single header is recognizable; every
// other defect degrades to null cells or default values. The row count is
// preserved: one output row per input row, times the number of commodity
// price columns for wide-format tables.
func NormalizeTable(t domain.RawTable, now time.Time) ([]domain.BidRow, error) {
	m := mapColumns(t.Headers)
	if !m.recognized() {
		return nil, &errors.NormalizationError{SourceName: t.SourceName, Headers: t.Headers}
	}

	slog.Debug("mapped columns",
		slog.String("source", t.SourceName),
		slog.Any("fields", m.fields),
		slog.Int("commodity_columns", len(m.commodityCols)),
		slog.Int("extra_columns", len(m.extras)))

	rows := make([]domain.BidRow, 0, len(t.Rows))
	for _, raw := range t.Rows {
		if len(m.commodityCols) > 0 {
			for _, col := range m.commodityCols {
				row := buildRow(t, m, raw, now)
				row.Commodity = domain.ClassifyCommodity(t.Headers[col])
				row.CashPrice = parsePrice(cellAt(raw, col))
				rows = append(rows, row)
			}
			continue
		}
		rows = append(rows, buildRow(t, m, raw, now))
	}
	return rows, nil
}

// buildRow fills the shared fields of one normalized row from the mapped
// columns, applying the documented defaults for anything missing.
func buildRow(t domain.RawTable, m columnMapping, raw []string, now time.Time) domain.BidRow {
	row := domain.BidRow{
		SourceName:     t.SourceName,
		Location:       t.SourceName,
		Commodity:      domain.CommodityOther,
		DeliveryPeriod: "Nearby",
		Timestamp:      now,
	}

	if col, ok := m.fields[fieldLocation]; ok {
		if loc := collapseText(cellAt(raw, col)); loc != "" {
			row.Location = loc
		}
	}
	if col, ok := m.fields[fieldCommodity]; ok {
		row.Commodity = domain.ClassifyCommodity(cellAt(raw, col))
	}
	row.DeliveryPeriod = deliveryPeriod(m, raw)

	if col, ok := m.fields[fieldCash]; ok {
		row.CashPrice = parsePrice(cellAt(raw, col))
	}
	if col, ok := m.fields[fieldBasis]; ok {
		row.Basis = parsePrice(cellAt(raw, col))
	}
	if col, ok := m.fields[fieldFutures]; ok {
		row.FuturesPrice = parsePrice(cellAt(raw, col))
	}

	for n, col := range m.extras {
		if val := collapseText(cellAt(raw, col)); val != "" {
			if row.Extra == nil {
				row.Extra = make(map[string]string)
			}
			row.Extra["extra_"+itoa(n)] = val
		}
	}
	return row
}

// deliveryPeriod resolves the delivery column, or combines a start/end
// pair, or defaults to "Nearby".
func deliveryPeriod(m columnMapping, raw []string) string {
	if col, ok := m.fields[fieldDelivery]; ok {
		if period := collapseText(cellAt(raw, col)); period != "" {
			return period
		}
	}
	var start, end string
	if col, ok := m.fields[fieldDeliveryStart]; ok {
		start = collapseText(cellAt(raw, col))
	}
	if col, ok := m.fields[fieldDeliveryEnd]; ok {
		end = collapseText(cellAt(raw, col))
	}
	switch {
	case start != "" && end != "":
		return start + "-" + end
	case start != "":
		return start
	case end != "":
		return end
	}
	return "Nearby"
}

func cellAt(row []string, col int) string {
	if col < 0 || col >= len(row) {
		return ""
	}
	return row[col]
}

// parsePrice extracts a decimal price from a source cell, tolerating
// currency symbols, thousands separators, surrounding text, unit suffixes
// like "per bu", and accounting-style parenthesized negatives. Anything
// unparseable is a null value, never an error: partial rows are valid.
func parsePrice(cell string) decimal.NullDecimal {
	cell = strings.TrimSpace(cell)
	if cell == "" {
		return decimal.NullDecimal{}
	}

	token := numericToken.FindString(cell)
	if token == "" {
		return decimal.NullDecimal{}
	}
	token = strings.ReplaceAll(token, ",", "")

	d, err := decimal.NewFromString(token)
	if err != nil {
		return decimal.NullDecimal{}
	}
	if strings.Contains(cell, "(") && strings.Contains(cell, ")") && !strings.HasPrefix(token, "-") {
		d = d.Neg()
	}
	return decimal.NullDecimal{Decimal: d, Valid: true}
}
