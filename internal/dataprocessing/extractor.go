package dataprocessing

import (
	"log/slog"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"grainbids/pkg/contracts/domain"
)

// FollowUp is a reference discovered inside a page that may lead to more
// bid data: an embedded iframe or a cash-bid CSV download link. The
// extractor only reports them; chasing them is the fetcher's job.
type FollowUp struct {
	URL    string
	Origin domain.TableOrigin
}

// ExtractResult bundles the tables recovered from one document with any
// follow-up references found alongside them.
type ExtractResult struct {
	Tables    []domain.RawTable
	FollowUps []FollowUp
}

var (
	iframeSrcPattern   = regexp.MustCompile(`(?i)(bid|bids|cash|market|quote|grain|table)`)
	csvDownloadPattern = regexp.MustCompile(`(?i)cashbid[-_]download`)
	innerWhitespace    = regexp.MustCompile(`\s+`)
)

// extractStrategy turns raw markup into zero or more tables. Strategies are
// tried in order; the first one yielding a non-empty table wins.
type extractStrategy func(markup string, sourceName string, origin domain.TableOrigin) []domain.RawTable

var extractStrategies = []extractStrategy{
	extractStrict,
	extractPermissive,
}

// ExtractTables parses raw HTML into zero or more raw tables, tolerating
// malformed markup. It never fails: a page with no usable tables yields an
// empty result, which is an expected state for co-op pages between postings.
func ExtractTables(markup, sourceName, baseURL string, origin domain.TableOrigin) ExtractResult {
	var result ExtractResult
	for _, strategy := range extractStrategies {
		tables := strategy(markup, sourceName, origin)
		tables = dedupeTables(tables)
		if len(tables) > 0 {
			result.Tables = tables
			break
		}
	}
	result.FollowUps = findFollowUps(markup, baseURL)

	slog.Debug("table extraction complete",
		slog.String("source", sourceName),
		slog.Int("tables", len(result.Tables)),
		slog.Int("follow_ups", len(result.FollowUps)))
	return result
}

// extractStrict walks well-formed <table> elements with goquery, reading
// headers from thead/th cells and falling back to the first row.
func extractStrict(markup, sourceName string, origin domain.TableOrigin) []domain.RawTable {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return nil
	}

	var tables []domain.RawTable
	doc.Find("table").Each(func(_ int, tbl *goquery.Selection) {
		var headers []string
		var rows [][]string

		tbl.Find("tr").Each(func(_ int, tr *goquery.Selection) {
			// Skip rows belonging to nested tables; they are extracted
			// on their own pass.
			if tr.Closest("table").Get(0) != tbl.Get(0) {
				return
			}
			cells := rowCells(tr)
			if len(cells) == 0 {
				return
			}
			if headers == nil && (tr.Find("th").Length() > 0 || tr.ParentsFiltered("thead").Length() > 0) {
				headers = cells
				return
			}
			rows = append(rows, cells)
		})

		// Tables with no <th> markup promote their first row to headers.
		if headers == nil && len(rows) > 1 {
			headers = rows[0]
			rows = rows[1:]
		}
		if t, ok := buildTable(sourceName, origin, headers, rows); ok {
			tables = append(tables, t)
		}
	})
	return tables
}

// rowCells reads the text of every th/td in a row, repeating cell text
// across colspans so rows stay aligned with the header width.
func rowCells(tr *goquery.Selection) []string {
	var cells []string
	tr.Find("th, td").Each(func(_ int, cell *goquery.Selection) {
		text := collapseText(cell.Text())
		span := 1
		if v, ok := cell.Attr("colspan"); ok {
			if n := parseSpan(v); n > 1 {
				span = n
			}
		}
		for i := 0; i < span; i++ {
			cells = append(cells, text)
		}
	})
	return cells
}

func parseSpan(v string) int {
	n := 0
	for _, r := range v {
		if r < '0' || r > '9' {
			return 0
		}
		n = n*10 + int(r-'0')
	}
	return n
}

// extractPermissive recovers rows from markup too broken for a DOM walk:
// the tokenizer does not care about unclosed tags or stray content, it just
// collects cell text between tr boundaries. The first recovered row becomes
// the header.
func extractPermissive(markup, sourceName string, origin domain.TableOrigin) []domain.RawTable {
	tokenizer := html.NewTokenizer(strings.NewReader(markup))

	var rows [][]string
	var current []string
	var cellDepth int
	var cell strings.Builder
	inRow := false

	flushCell := func() {
		if cellDepth > 0 {
			current = append(current, collapseText(cell.String()))
			cell.Reset()
			cellDepth = 0
		}
	}
	flushRow := func() {
		flushCell()
		if inRow && len(current) > 0 {
			rows = append(rows, current)
		}
		current = nil
		inRow = false
	}

	for {
		tt := tokenizer.Next()
		if tt == html.ErrorToken {
			flushRow()
			break
		}
		switch tt {
		case html.StartTagToken:
			name, _ := tokenizer.TagName()
			switch string(name) {
			case "tr":
				flushRow()
				inRow = true
			case "td", "th":
				flushCell()
				cellDepth = 1
			}
		case html.EndTagToken:
			name, _ := tokenizer.TagName()
			switch string(name) {
			case "tr":
				flushRow()
			case "td", "th":
				flushCell()
			case "table":
				flushRow()
			}
		case html.TextToken:
			if cellDepth > 0 {
				cell.Write(tokenizer.Text())
			}
		}
	}

	if len(rows) < 2 {
		return nil
	}
	t, ok := buildTable(sourceName, origin, rows[0], rows[1:])
	if !ok {
		return nil
	}
	return []domain.RawTable{t}
}

// buildTable cleans and shapes one extracted table: headers are
// de-duplicated, rows padded to the header width, and all-empty rows and
// columns dropped. Returns false for tables with no usable data rows.
func buildTable(sourceName string, origin domain.TableOrigin, headers []string, rows [][]string) (domain.RawTable, bool) {
	if len(headers) == 0 || len(rows) == 0 {
		return domain.RawTable{}, false
	}

	headers = uniqueHeaders(headers)
	width := len(headers)

	var kept [][]string
	for _, row := range rows {
		row = padRow(row, width)
		if rowHasData(row) {
			kept = append(kept, row)
		}
	}
	if len(kept) == 0 {
		return domain.RawTable{}, false
	}

	headers, kept = dropEmptyColumns(headers, kept)
	if len(headers) == 0 {
		return domain.RawTable{}, false
	}

	return domain.RawTable{
		SourceName: sourceName,
		Origin:     origin,
		Headers:    headers,
		Rows:       kept,
	}, true
}

// uniqueHeaders collapses whitespace and suffixes repeated header names
// with _2, _3, ... so duplicate source columns stay addressable.
func uniqueHeaders(headers []string) []string {
	seen := make(map[string]int, len(headers))
	out := make([]string, len(headers))
	for i, h := range headers {
		h = collapseText(h)
		seen[h]++
		if seen[h] > 1 {
			out[i] = h + "_" + itoa(seen[h])
		} else {
			out[i] = h
		}
	}
	return out
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	var b [8]byte
	i := len(b)
	for n > 0 {
		i--
		b[i] = byte('0' + n%10)
		n /= 10
	}
	return string(b[i:])
}

func padRow(row []string, width int) []string {
	if len(row) == width {
		return row
	}
	if len(row) > width {
		return row[:width]
	}
	padded := make([]string, width)
	copy(padded, row)
	return padded
}

func rowHasData(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return true
		}
	}
	return false
}

func dropEmptyColumns(headers []string, rows [][]string) ([]string, [][]string) {
	keep := make([]bool, len(headers))
	for _, row := range rows {
		for i, cell := range row {
			if strings.TrimSpace(cell) != "" {
				keep[i] = true
			}
		}
	}
	// Headerless empty columns only; a named but empty column is still
	// meaningful (it may fill on the next posting).
	for i, h := range headers {
		if h != "" {
			keep[i] = true
		}
	}

	all := true
	for _, k := range keep {
		if !k {
			all = false
			break
		}
	}
	if all {
		return headers, rows
	}

	var outHeaders []string
	for i, h := range headers {
		if keep[i] {
			outHeaders = append(outHeaders, h)
		}
	}
	outRows := make([][]string, len(rows))
	for ri, row := range rows {
		var out []string
		for i, cell := range row {
			if keep[i] {
				out = append(out, cell)
			}
		}
		outRows[ri] = out
	}
	return outHeaders, outRows
}

// dedupeTables removes tables with identical (headers, shape) signatures;
// the strict and nested-table walks can surface the same table twice.
func dedupeTables(tables []domain.RawTable) []domain.RawTable {
	seen := make(map[string]bool, len(tables))
	var out []domain.RawTable
	for _, t := range tables {
		sig := strings.Join(t.Headers, "\x00") + "\x01" + itoa(len(t.Rows))
		if seen[sig] {
			continue
		}
		seen[sig] = true
		out = append(out, t)
	}
	return out
}

// findFollowUps scans a page for embedded iframes that look bid-related and
// for cash-bid CSV download links, resolved against the page URL.
func findFollowUps(markup, baseURL string) []FollowUp {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return nil
	}
	base, _ := url.Parse(baseURL)

	var followUps []FollowUp
	seen := make(map[string]bool)

	add := func(ref string, origin domain.TableOrigin) {
		resolved := resolveRef(base, ref)
		if resolved == "" || seen[resolved] {
			return
		}
		seen[resolved] = true
		followUps = append(followUps, FollowUp{URL: resolved, Origin: origin})
	}

	doc.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
		href, _ := a.Attr("href")
		if csvDownloadPattern.MatchString(href) {
			add(href, domain.OriginCSV)
		}
	})
	doc.Find("iframe[src]").Each(func(_ int, iframe *goquery.Selection) {
		src, _ := iframe.Attr("src")
		if iframeSrcPattern.MatchString(src) {
			add(src, domain.OriginIframe)
		}
	})
	return followUps
}

func resolveRef(base *url.URL, ref string) string {
	parsed, err := url.Parse(strings.TrimSpace(ref))
	if err != nil || parsed.String() == "" {
		return ""
	}
	if base != nil {
		return base.ResolveReference(parsed).String()
	}
	return parsed.String()
}

func collapseText(s string) string {
	return strings.TrimSpace(innerWhitespace.ReplaceAllString(s, " "))
}
