package server

import (
	"net/http"
	"strings"

	"github.com/dagbolade/install-integrity-sidecar/internal/audit"
	"github.com/dagbolade/install-integrity-sidecar/internal/integrity"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"
)

type ReportHandler struct {
	store audit.Store
}

func NewReportHandler(store audit.Store) *ReportHandler {
	return &ReportHandler{store: store}
}

func (h *ReportHandler) GetReports(c echo.Context) error {
	ctx := c.Request().Context()

	entries, err := h.store.GetAll(ctx)
	if err != nil {
		log.Error().Err(err).Str("remote_addr", c.Request().RemoteAddr).Msg("failed to retrieve integrity log")
		return errorResponse(c, http.StatusInternalServerError, "failed to retrieve integrity log")
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"total":   len(entries),
		"entries": entries,
	})
}

// GetSummary returns entry counts keyed by lower-cased response name.
func (h *ReportHandler) GetSummary(c echo.Context) error {
	ctx := c.Request().Context()

	counts, err := h.store.Summary(ctx)
	if err != nil {
		log.Error().Err(err).Msg("failed to summarize integrity log")
		return errorResponse(c, http.StatusInternalServerError, "failed to summarize integrity log")
	}

	summary := map[string]int{}
	for _, resp := range []integrity.Response{
		integrity.ResponseAllowed,
		integrity.ResponseRejected,
		integrity.ResponseForceAllowed,
	} {
		summary[strings.ToLower(resp.String())] = counts[resp]
	}

	return c.JSON(http.StatusOK, summary)
}
