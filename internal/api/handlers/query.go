// Package handlers implements the dashboard HTTP endpoints.
package handlers

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"

	"github.com/twchip/chipkline/internal/chip"
	"github.com/twchip/chipkline/internal/contracts"
	"github.com/twchip/chipkline/pkg/logger"
)

// QueryService is the pipeline surface the handlers need.
type QueryService interface {
	QueryRanking(ctx context.Context, stockID string, days int) (*chip.RankingView, error)
	QueryBranch(ctx context.Context, stockID, branchName string, days int) (contracts.MergedSeries, error)
	Refresh(ctx context.Context) int64
}

// dayChoices are the selectable trading-day windows, mirroring the
// dashboard's period buttons.
var dayChoices = map[int]bool{
	1: true, 5: true, 10: true, 20: true,
	40: true, 60: true, 120: true, 240: true,
}

const defaultDays = 5

// QueryHandler handles ranking and merged-series queries.
type QueryHandler struct {
	service QueryService
	logger  *logger.Logger
}

// NewQueryHandler creates a new query handler.
func NewQueryHandler(service QueryService, log *logger.Logger) *QueryHandler {
	return &QueryHandler{
		service: service,
		logger:  log,
	}
}

// GetRanking returns the top buyer/seller branch tables.
// GET /api/ranking/{stockID}?days=20
func (h *QueryHandler) GetRanking(w http.ResponseWriter, r *http.Request) {
	stockID, ok := stockIDParam(r)
	if !ok {
		respondError(w, http.StatusBadRequest, "Invalid stock ID")
		return
	}

	days, ok := daysParam(r)
	if !ok {
		respondError(w, http.StatusBadRequest, "Invalid days; choose one of 1,5,10,20,40,60,120,240")
		return
	}

	view, err := h.service.QueryRanking(r.Context(), stockID, days)
	if err != nil {
		h.logger.WithError(err).Error("Ranking query failed")
		respondError(w, http.StatusNotFound, "No ranking data available")
		return
	}

	respondJSON(w, http.StatusOK, view)
}

// GetSeries returns the merged price/flow series for charting. With no
// branch parameter the series is price-only.
// GET /api/series/{stockID}?days=20&branch=富邦建國
func (h *QueryHandler) GetSeries(w http.ResponseWriter, r *http.Request) {
	stockID, ok := stockIDParam(r)
	if !ok {
		respondError(w, http.StatusBadRequest, "Invalid stock ID")
		return
	}

	days, ok := daysParam(r)
	if !ok {
		respondError(w, http.StatusBadRequest, "Invalid days; choose one of 1,5,10,20,40,60,120,240")
		return
	}

	windows, ok := maParam(r)
	if !ok {
		respondError(w, http.StatusBadRequest, "Invalid ma; choose a subset of 5,10,20,60")
		return
	}

	branch := r.URL.Query().Get("branch")

	series, err := h.service.QueryBranch(r.Context(), stockID, branch, days)
	if err != nil {
		h.logger.WithError(err).Error("Series query failed")
		respondError(w, http.StatusNotFound, "No data available")
		return
	}

	filterMAs(&series, windows)
	respondJSON(w, http.StatusOK, series)
}

// Refresh bumps the cache epoch so subsequent queries refetch.
// POST /api/refresh
func (h *QueryHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	epoch := h.service.Refresh(r.Context())
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"status": "ok",
		"epoch":  epoch,
	})
}

// stockIDParam extracts the stock ID path variable. Non-digit characters
// are stripped so inputs like "2330.TW" still resolve; what remains must be
// a plain Taiwan stock ID of 4 to 6 digits.
func stockIDParam(r *http.Request) (string, bool) {
	var digits strings.Builder
	for _, c := range mux.Vars(r)["stockID"] {
		if c >= '0' && c <= '9' {
			digits.WriteRune(c)
		}
	}

	stockID := digits.String()
	if len(stockID) < 4 || len(stockID) > 6 {
		return "", false
	}
	return stockID, true
}

// daysParam extracts the days query parameter, restricted to the dashboard's
// period choices.
func daysParam(r *http.Request) (int, bool) {
	raw := r.URL.Query().Get("days")
	if raw == "" {
		return defaultDays, true
	}
	days, err := strconv.Atoi(raw)
	if err != nil || !dayChoices[days] {
		return 0, false
	}
	return days, true
}

// maParam extracts the ma query parameter as a comma-separated subset of the
// computed windows. Empty means all windows.
func maParam(r *http.Request) (map[int]bool, bool) {
	raw := r.URL.Query().Get("ma")
	if raw == "" {
		return nil, true
	}

	windows := make(map[int]bool)
	for _, part := range strings.Split(raw, ",") {
		w, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil {
			return nil, false
		}
		switch w {
		case 5, 10, 20, 60:
			windows[w] = true
		default:
			return nil, false
		}
	}
	return windows, true
}

// filterMAs drops the moving-average columns the caller did not select.
func filterMAs(series *contracts.MergedSeries, windows map[int]bool) {
	if windows == nil {
		return
	}
	for i := range series.Points {
		if !windows[5] {
			series.Points[i].MA5 = nil
		}
		if !windows[10] {
			series.Points[i].MA10 = nil
		}
		if !windows[20] {
			series.Points[i].MA20 = nil
		}
		if !windows[60] {
			series.Points[i].MA60 = nil
		}
	}
}
