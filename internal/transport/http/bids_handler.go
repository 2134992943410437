package http

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/shopspring/decimal"

	apierrors "grainbids/internal/errors"
	"grainbids/internal/exporter"
	"grainbids/internal/infrastructure"
	"grainbids/pkg/contracts/domain"
)

// BidService is the surface the handler needs from the pipeline service.
type BidService interface {
	Refresh(ctx context.Context) (*domain.AggregatedTable, error)
	LastTable() (*domain.AggregatedTable, bool)
	FuturesOverride() domain.FuturesOverride
	SetFuturesOverride(domain.FuturesOverride)
}

// BidsHandler exposes the bid pipeline over HTTP: trigger refresh runs,
// read the aggregated table, manage futures overrides, download exports.
type BidsHandler struct {
	service BidService
	excel   *exporter.ExcelWriter
	metrics *infrastructure.Metrics
	logger  *slog.Logger
}

// NewBidsHandler creates a bids handler. metrics may be nil.
func NewBidsHandler(service BidService, metrics *infrastructure.Metrics, logger *slog.Logger) *BidsHandler {
	return &BidsHandler{
		service: service,
		excel:   exporter.NewExcelWriter(""),
		metrics: metrics,
		logger:  logger.With(slog.String("component", "bids_handler")),
	}
}

// Routes returns the bid routes.
func (h *BidsHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(render.SetContentType(render.ContentTypeJSON))

	r.Get("/", h.GetBids)
	r.Post("/refresh", h.Refresh)
	r.Get("/export/{format}", h.Export)
	r.Get("/futures", h.GetFutures)
	r.Put("/futures", h.PutFutures)
	return r
}

// bidsResponse wraps an aggregated table for the dashboard.
type bidsResponse struct {
	Success bool                    `json:"success"`
	Table   *domain.AggregatedTable `json:"table"`
}

func (b *bidsResponse) Render(w http.ResponseWriter, r *http.Request) error {
	return nil
}

// GetBids returns the most recent aggregated table, running a refresh
// first when none exists yet.
func (h *BidsHandler) GetBids(w http.ResponseWriter, r *http.Request) {
	table, ok := h.service.LastTable()
	if !ok {
		var err error
		table, err = h.service.Refresh(r.Context())
		if err != nil {
			h.renderRunError(w, r, err)
			return
		}
	}
	render.Render(w, r, &bidsResponse{Success: true, Table: table})
}

// Refresh runs the pipeline and returns the fresh table.
func (h *BidsHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	table, err := h.service.Refresh(r.Context())
	if err != nil {
		h.renderRunError(w, r, err)
		return
	}
	render.Render(w, r, &bidsResponse{Success: true, Table: table})
}

// Export streams the current table as csv or xlsx.
func (h *BidsHandler) Export(w http.ResponseWriter, r *http.Request) {
	format := chi.URLParam(r, "format")

	table, ok := h.service.LastTable()
	if !ok {
		var err error
		table, err = h.service.Refresh(r.Context())
		if err != nil {
			h.renderRunError(w, r, err)
			return
		}
	}

	switch format {
	case "csv":
		w.Header().Set("Content-Type", "text/csv; charset=utf-8")
		w.Header().Set("Content-Disposition", `attachment; filename="cash_bids.csv"`)
		if err := exporter.WriteTableTo(w, table); err != nil {
			h.logger.Error("csv export failed", slog.String("error", err.Error()))
			return
		}
		h.countExport(format)
	case "xlsx":
		w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		w.Header().Set("Content-Disposition", `attachment; filename="cash_bids.xlsx"`)
		if err := h.excel.WriteTableTo(w, table); err != nil {
			h.logger.Error("xlsx export failed", slog.String("error", err.Error()))
			return
		}
		h.countExport(format)
	default:
		render.Render(w, r, apierrors.NewErrorResponse(
			apierrors.NewWithDetails(http.StatusBadRequest, "INVALID_FORMAT", "Unsupported export format", format)))
	}
}

// futuresPayload is the wire form of the override map: commodity name to
// decimal price string, so cents survive JSON round-trips exactly.
type futuresPayload struct {
	Futures map[string]string `json:"futures"`
}

func (p *futuresPayload) Bind(r *http.Request) error {
	if len(p.Futures) == 0 {
		return errors.New("futures map is required")
	}
	return nil
}

func (p *futuresPayload) Render(w http.ResponseWriter, r *http.Request) error {
	return nil
}

// GetFutures returns the current per-commodity futures overrides.
func (h *BidsHandler) GetFutures(w http.ResponseWriter, r *http.Request) {
	override := h.service.FuturesOverride()
	payload := futuresPayload{Futures: make(map[string]string, len(override))}
	for commodity, price := range override {
		payload.Futures[string(commodity)] = price.StringFixed(2)
	}
	render.Render(w, r, &payload)
}

// PutFutures replaces the futures overrides used for basis derivation on
// the next refresh run.
func (h *BidsHandler) PutFutures(w http.ResponseWriter, r *http.Request) {
	var payload futuresPayload
	if err := render.Bind(r, &payload); err != nil {
		render.Render(w, r, apierrors.NewErrorResponse(apierrors.InvalidRequestWithError(err)))
		return
	}

	override := make(domain.FuturesOverride, len(payload.Futures))
	for name, price := range payload.Futures {
		commodity := domain.Commodity(name)
		switch commodity {
		case domain.CommodityCorn, domain.CommoditySoybeans, domain.CommodityOther:
		default:
			render.Render(w, r, apierrors.NewErrorResponse(apierrors.NewWithDetails(
				http.StatusBadRequest, "INVALID_COMMODITY", "Unknown commodity", name)))
			return
		}
		d, err := decimal.NewFromString(price)
		if err != nil {
			render.Render(w, r, apierrors.NewErrorResponse(apierrors.NewWithDetails(
				http.StatusBadRequest, "INVALID_PRICE", "Invalid futures price", price)))
			return
		}
		override[commodity] = d
	}

	h.service.SetFuturesOverride(override)
	render.Status(r, http.StatusNoContent)
	render.NoContent(w, r)
}

func (h *BidsHandler) countExport(format string) {
	if h.metrics != nil {
		h.metrics.ExportsTotal.WithLabelValues(format).Inc()
	}
}

func (h *BidsHandler) renderRunError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, apierrors.ErrNoData) {
		render.Render(w, r, apierrors.NewErrorResponse(apierrors.NoBidsError(err)))
		return
	}
	h.logger.Error("refresh run failed", slog.String("error", err.Error()))
	render.Render(w, r, apierrors.NewErrorResponse(apierrors.RunFailedError(err)))
}
