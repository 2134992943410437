// Package services implements the business logic layer between the HTTP
// handlers and the dataprocessing pipeline.
//
// BidService owns a refresh run end to end: it snapshots the futures
// override, fetches every configured co-op source concurrently, pushes each
// page through extraction, normalization, routing and basis derivation,
// and aggregates the survivors into one table. Failures are isolated per
// source; only total data absence surfaces as an error.
//
// Services receive their collaborators (fetcher, browser renderer,
// websocket hub, metrics) through constructor injection so tests can swap
// any of them out.
package services
