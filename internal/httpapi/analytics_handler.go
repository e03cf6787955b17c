package httpapi

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/render"

	"github.com/mfigueredo/viptier/internal/analytics"
	"github.com/mfigueredo/viptier/internal/logger"
)

// defaultAnalyticsLimit bounds how many raw log entries feed one report.
const defaultAnalyticsLimit = 500

// handleLoginAnalytics processes the GET /api/v1/analytics/logins request.
//
// It reads the shop's recent access log entries (newest first) and collapses
// them into one summary row per customer key: newest snapshot plus a login
// count. The aggregation is recomputed on every request; nothing is stored.
func (a *API) handleLoginAnalytics(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContext(r.Context())

	shop := strings.TrimSpace(r.URL.Query().Get("shop"))
	if shop == "" {
		shop = a.deps.Shop
	}

	limit, err := parseOptionalInt(r, "limit", defaultAnalyticsLimit)
	if err != nil {
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, ErrorResponse{
			Code:    "ERR_INVALID_QUERY_PARAM",
			Message: err.Error(),
		})
		return
	}
	if limit < 1 || limit > 5000 {
		limit = defaultAnalyticsLimit
	}

	entries, err := a.deps.Logs.ListByShop(r.Context(), shop, limit)
	if err != nil {
		log.Error("failed to list access log entries",
			slog.String("shop", shop),
			slog.String("error", err.Error()),
		)
		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, ErrorResponse{
			Code:    "ERR_INTERNAL",
			Message: "Failed to load login analytics",
		})
		return
	}

	render.Status(r, http.StatusOK)
	render.JSON(w, r, map[string]any{
		"shop": shop,
		"data": analytics.Aggregate(entries),
	})
}

// parseOptionalInt extracts an integer from the query string.
// If the parameter is missing, it returns the defaultValue.
// It only returns an error if the parameter is present but malformed.
func parseOptionalInt(r *http.Request, key string, defaultValue int) (int, error) {
	valStr := r.URL.Query().Get(key)
	if valStr == "" {
		return defaultValue, nil
	}
	val, err := strconv.Atoi(valStr)
	if err != nil {
		return 0, fmt.Errorf("parameter '%s' must be an integer", key)
	}
	return val, nil
}
