package services

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"grainbids/internal/config"
	"grainbids/internal/dataprocessing"
	apperrors "grainbids/internal/errors"
	"grainbids/internal/infrastructure"
	"grainbids/internal/websocket"
	"grainbids/pkg/contracts/domain"
)

// maxFollowUps bounds how many iframe/CSV references are chased per page.
const maxFollowUps = 5

// PageFetcher retrieves raw page content. Implemented by fetch.Client.
type PageFetcher interface {
	FetchPage(ctx context.Context, url string) (string, error)
	FetchCSVFeed(ctx context.Context, url, sourceName string, origin domain.TableOrigin) (domain.RawTable, error)
}

// RenderedFetcher retrieves a page after JavaScript has run. Implemented
// by fetch.BrowserFetcher; optional.
type RenderedFetcher interface {
	FetchRendered(ctx context.Context, url string) (string, error)
}

// BidService runs the cash-bid pipeline: fetch each configured source,
// extract and normalize its tables, route rows to processors, derive
// basis, and aggregate everything into one table. Per-source failures are
// isolated; one dead co-op page never blocks the others.
type BidService struct {
	cfg     config.PipelineConfig
	sources *config.Sources
	fetcher PageFetcher
	browser RenderedFetcher
	router  *dataprocessing.Router
	hub     *websocket.Hub
	metrics *infrastructure.Metrics
	logger  *slog.Logger

	mu       sync.RWMutex
	override domain.FuturesOverride
	last     *domain.AggregatedTable
}

// NewBidService wires the pipeline. browser, hub and metrics may be nil;
// the service degrades to static fetching, no progress events and no
// metrics respectively. The configured default futures prices seed the
// override map; SetFuturesOverride replaces them per dashboard session.
func NewBidService(
	cfg config.PipelineConfig,
	sources *config.Sources,
	fetcher PageFetcher,
	browser RenderedFetcher,
	hub *websocket.Hub,
	metrics *infrastructure.Metrics,
	logger *slog.Logger,
) (*BidService, error) {
	if logger == nil {
		logger = slog.Default()
	}
	override, err := sources.FuturesOverride()
	if err != nil {
		return nil, err
	}
	return &BidService{
		cfg:      cfg,
		sources:  sources,
		fetcher:  fetcher,
		browser:  browser,
		router:   dataprocessing.NewRouter(sources.Rules, cfg.DropUnrouted),
		hub:      hub,
		metrics:  metrics,
		logger:   logger.With(slog.String("component", "bid_service")),
		override: override,
	}, nil
}

// SetFuturesOverride replaces the per-commodity futures prices used for
// basis derivation. It affects the next run; a run already in flight keeps
// the snapshot it took at start.
func (s *BidService) SetFuturesOverride(override domain.FuturesOverride) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.override = override.Snapshot()
}

// FuturesOverride returns a copy of the current override map.
func (s *BidService) FuturesOverride() domain.FuturesOverride {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.override.Snapshot()
}

// LastTable returns the most recent aggregated table, if any run has
// completed with data.
func (s *BidService) LastTable() (*domain.AggregatedTable, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.last, s.last != nil
}

// sourceResult carries one source's rows and outcome out of its goroutine.
type sourceResult struct {
	rows    []domain.RoutedRow
	outcome domain.SourceOutcome
}

// Refresh runs the full pipeline once and returns the aggregated table.
// The only error conditions are context cancellation and NoDataError;
// everything else degrades to partial output.
func (s *BidService) Refresh(ctx context.Context) (*domain.AggregatedTable, error) {
	started := time.Now().UTC()
	// One snapshot per run so mid-run override edits cannot produce a
	// table with mixed basis references.
	override := s.FuturesOverride()

	if s.metrics != nil {
		s.metrics.RunsTotal.Inc()
	}
	s.hub.Broadcast(websocket.TypeRunStarted, map[string]interface{}{
		"sources": len(s.sources.Sources),
	})
	s.logger.InfoContext(ctx, "refresh run started",
		slog.Int("sources", len(s.sources.Sources)))

	results := make([]sourceResult, len(s.sources.Sources))
	g, runCtx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.Concurrency)

	for i, src := range s.sources.Sources {
		g.Go(func() error {
			results[i] = s.processSource(runCtx, src, started, override)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	perSource := make([][]domain.RoutedRow, 0, len(results)+1)
	outcomes := make([]domain.SourceOutcome, 0, len(results)+1)
	total := 0
	for _, r := range results {
		perSource = append(perSource, r.rows)
		outcomes = append(outcomes, r.outcome)
		total += len(r.rows)
	}

	fallbackTried := false
	if total == 0 && s.sources.FallbackFeedURL != "" {
		fallbackTried = true
		rows, outcome := s.processFallback(ctx, started, override)
		perSource = append(perSource, rows)
		outcomes = append(outcomes, outcome)
		total += len(rows)
	}

	table, err := dataprocessing.Aggregate(perSource, outcomes, dataprocessing.AggregateOptions{
		SuppressEmptyBids: s.cfg.SuppressEmptyBids,
	}, started)
	if err != nil {
		if errors.Is(err, apperrors.ErrNoData) {
			s.hub.Broadcast(websocket.TypeRunEmpty, nil)
			s.logger.WarnContext(ctx, "refresh run yielded no rows",
				slog.Bool("fallback_tried", fallbackTried))
			return nil, &apperrors.NoDataError{
				SourcesTried: len(s.sources.Sources),
				FallbackUsed: fallbackTried,
			}
		}
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.RowsAggregated.Add(float64(len(table.Rows)))
	}
	s.hub.Broadcast(websocket.TypeRunComplete, map[string]interface{}{
		"run_id": table.RunID,
		"rows":   len(table.Rows),
	})
	s.logger.InfoContext(ctx, "refresh run complete",
		slog.String("run_id", table.RunID),
		slog.Int("rows", len(table.Rows)),
		slog.Duration("elapsed", time.Since(started)))

	s.mu.Lock()
	s.last = table
	s.mu.Unlock()
	return table, nil
}

// processSource runs fetch → extract → normalize → route → basis for one
// source. All failures end in a zero-row result with the error recorded in
// the outcome; they never propagate.
func (s *BidService) processSource(ctx context.Context, src config.Source, now time.Time, override domain.FuturesOverride) sourceResult {
	outcome := domain.SourceOutcome{SourceName: src.Name, URL: src.URL}
	s.hub.Broadcast(websocket.TypeSourceStarted, map[string]string{"source": src.Name})

	tables, fetchErr := s.collectTables(ctx, src)
	if fetchErr != nil {
		s.logger.WarnContext(ctx, "source fetch failed",
			slog.String("source", src.Name),
			slog.String("error", fetchErr.Error()))
		outcome.Error = fetchErr.Error()
		s.recordFailure(src.Name)
		s.hub.Broadcast(websocket.TypeSourceFailed, map[string]string{
			"source": src.Name, "error": outcome.Error,
		})
		return sourceResult{outcome: outcome}
	}
	outcome.Tables = len(tables)

	rows := s.bestRows(ctx, src.Name, tables, now)
	if len(rows) == 0 {
		// An empty page between postings is expected, but still worth a
		// progress event so the dashboard can flag the source.
		s.hub.Broadcast(websocket.TypeSourceFinished, map[string]interface{}{
			"source": src.Name, "rows": 0,
		})
		return sourceResult{outcome: outcome}
	}

	routed := dataprocessing.ApplyBasis(s.router.Route(rows), override)
	outcome.Rows = len(routed)
	s.hub.Broadcast(websocket.TypeSourceFinished, map[string]interface{}{
		"source": src.Name, "rows": len(routed),
	})
	return sourceResult{rows: routed, outcome: outcome}
}

// collectTables fetches a source page and extracts its tables, chasing
// discovered iframe and CSV references, and falling back to a headless
// render when a static page exposes no tables.
func (s *BidService) collectTables(ctx context.Context, src config.Source) ([]domain.RawTable, error) {
	var markup string
	var err error

	useBrowser := src.Browser && s.browser != nil
	if useBrowser {
		markup, err = s.browser.FetchRendered(ctx, src.URL)
	} else {
		markup, err = s.fetcher.FetchPage(ctx, src.URL)
	}
	if err != nil {
		return nil, err
	}

	result := dataprocessing.ExtractTables(markup, src.Name, src.URL, domain.OriginPage)
	tables := result.Tables

	// Static page with no tables: try the rendered DOM once before
	// chasing references, the bids may be script-injected.
	if len(tables) == 0 && !useBrowser && s.browser != nil {
		if rendered, renderErr := s.browser.FetchRendered(ctx, src.URL); renderErr == nil {
			renderedResult := dataprocessing.ExtractTables(rendered, src.Name, src.URL, domain.OriginPage)
			tables = renderedResult.Tables
			if len(result.FollowUps) == 0 {
				result.FollowUps = renderedResult.FollowUps
			}
		}
	}

	followUps := result.FollowUps
	if len(followUps) > maxFollowUps {
		followUps = followUps[:maxFollowUps]
	}
	for _, ref := range followUps {
		tables = append(tables, s.chaseFollowUp(ctx, src, ref)...)
	}
	return tables, nil
}

// chaseFollowUp fetches one discovered reference. CSV links are parsed as
// CSV first; some co-op "CSV" endpoints actually serve an HTML table, so
// extraction is the fallback either way.
func (s *BidService) chaseFollowUp(ctx context.Context, src config.Source, ref dataprocessing.FollowUp) []domain.RawTable {
	if ref.Origin == domain.OriginCSV {
		if table, err := s.fetcher.FetchCSVFeed(ctx, ref.URL, src.Name, domain.OriginCSV); err == nil {
			return []domain.RawTable{table}
		}
	}
	markup, err := s.fetcher.FetchPage(ctx, ref.URL)
	if err != nil {
		s.logger.DebugContext(ctx, "follow-up fetch failed",
			slog.String("source", src.Name),
			slog.String("url", ref.URL),
			slog.String("error", err.Error()))
		return nil
	}
	return dataprocessing.ExtractTables(markup, src.Name, ref.URL, ref.Origin).Tables
}

// bestRows normalizes every candidate table and keeps the one producing
// the most rows. A co-op page typically carries several tables (navigation,
// layout, bids); the bid table is the one with the most recognizable rows.
func (s *BidService) bestRows(ctx context.Context, sourceName string, tables []domain.RawTable, now time.Time) []domain.BidRow {
	var best []domain.BidRow
	recognizedAny := false
	for _, table := range tables {
		rows, err := dataprocessing.NormalizeTable(table, now)
		if err != nil {
			s.logger.DebugContext(ctx, "table not recognizable",
				slog.String("source", sourceName),
				slog.Any("headers", table.Headers))
			continue
		}
		recognizedAny = true
		if len(rows) > len(best) {
			best = rows
		}
	}
	if !recognizedAny && len(tables) > 0 {
		s.logger.WarnContext(ctx, "no recognizable table schema, skipping source",
			slog.String("source", sourceName),
			slog.Int("tables", len(tables)))
		s.recordFailure(sourceName)
	}
	return best
}

// processFallback pulls the manual CSV feed, consulted only when every
// configured source yielded nothing.
func (s *BidService) processFallback(ctx context.Context, now time.Time, override domain.FuturesOverride) ([]domain.RoutedRow, domain.SourceOutcome) {
	outcome := domain.SourceOutcome{
		SourceName: config.ManualFeedSource,
		URL:        s.sources.FallbackFeedURL,
	}
	s.logger.InfoContext(ctx, "all sources empty, trying fallback feed",
		slog.String("url", s.sources.FallbackFeedURL))

	table, err := s.fetcher.FetchCSVFeed(ctx, s.sources.FallbackFeedURL, config.ManualFeedSource, domain.OriginManual)
	if err != nil {
		outcome.Error = err.Error()
		s.recordFailure(config.ManualFeedSource)
		return nil, outcome
	}
	outcome.Tables = 1

	rows, err := dataprocessing.NormalizeTable(table, now)
	if err != nil {
		outcome.Error = err.Error()
		s.recordFailure(config.ManualFeedSource)
		return nil, outcome
	}

	routed := dataprocessing.ApplyBasis(s.router.Route(rows), override)
	outcome.Rows = len(routed)
	return routed, outcome
}

func (s *BidService) recordFailure(sourceName string) {
	if s.metrics != nil {
		s.metrics.SourceFailures.WithLabelValues(sourceName).Inc()
	}
}
