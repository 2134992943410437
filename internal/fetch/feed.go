package fetch

import (
	"context"
	"encoding/csv"
	"fmt"
	"strings"

	"grainbids/pkg/contracts/domain"
)

// ParseCSVFeed parses CSV-shaped feed content into a raw table under the
// given source name. The first record is the header row. Records with a
// deviating field count are kept and padded; encoding/csv is run with
// FieldsPerRecord disabled because co-op CSV exports are frequently ragged.
func ParseCSVFeed(content, sourceName string, origin domain.TableOrigin) (domain.RawTable, error) {
	reader := csv.NewReader(strings.NewReader(content))
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	records, err := reader.ReadAll()
	if err != nil {
		return domain.RawTable{}, fmt.Errorf("parse csv feed for %s: %w", sourceName, err)
	}
	if len(records) < 2 {
		return domain.RawTable{}, fmt.Errorf("csv feed for %s has no data rows", sourceName)
	}

	headers := records[0]
	width := len(headers)
	rows := make([][]string, 0, len(records)-1)
	for _, record := range records[1:] {
		row := make([]string, width)
		copy(row, record)
		rows = append(rows, row)
	}

	return domain.RawTable{
		SourceName: sourceName,
		Origin:     origin,
		Headers:    headers,
		Rows:       rows,
	}, nil
}

// FetchCSVFeed retrieves and parses a URL-sourced CSV feed. Some co-op
// "CSV" endpoints actually return an HTML table; the caller falls back to
// HTML extraction when this returns an error.
func (c *Client) FetchCSVFeed(ctx context.Context, feedURL, sourceName string, origin domain.TableOrigin) (domain.RawTable, error) {
	content, err := c.FetchPage(ctx, feedURL)
	if err != nil {
		return domain.RawTable{}, err
	}
	return ParseCSVFeed(content, sourceName, origin)
}
