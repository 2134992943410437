// Package exporter serializes aggregated bid tables to CSV and Excel.
//
// CSVWriter prefixes a UTF-8 BOM so Excel recognizes the encoding;
// ExcelWriter produces a single-sheet xlsx workbook. Both consume the
// canonical export column order from the domain package and know nothing
// about how the table was produced.
package exporter
