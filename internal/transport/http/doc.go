// Package http contains the chi HTTP handlers for the grain bid dashboard
// API: triggering refresh runs, reading the aggregated bid table, managing
// futures overrides, and downloading CSV/Excel exports. Handlers translate
// pipeline errors into the structured APIError envelope; all business
// logic stays in the services layer.
package http
