// handlers_history.go - Conversion history handlers
package api

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/MrUnggoy/ConvertAllHub-sub000/internal/history"
)

// HistoryHandlerImpl implements the HistoryHandler interface
type HistoryHandlerImpl struct {
	store *history.Store
}

// NewHistoryHandler creates a new history handler instance
func NewHistoryHandler(store *history.Store) HistoryHandler {
	return &HistoryHandlerImpl{store: store}
}

// HandleRecentHistory returns the latest recorded conversions.
func (h *HistoryHandlerImpl) HandleRecentHistory(c echo.Context) error {
	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	if limit < 1 || limit > 200 {
		limit = 20
	}

	entries, err := h.store.Recent(limit)
	if err != nil {
		return NewInternalError("failed to query history", err)
	}
	if entries == nil {
		entries = []history.Entry{}
	}
	return c.JSON(http.StatusOK, entries)
}

// HandleHistoryStats returns aggregate counters over the history.
func (h *HistoryHandlerImpl) HandleHistoryStats(c echo.Context) error {
	stats, err := h.store.Stats()
	if err != nil {
		return NewInternalError("failed to compute stats", err)
	}
	return c.JSON(http.StatusOK, stats)
}
