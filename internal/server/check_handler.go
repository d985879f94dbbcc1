package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/dagbolade/install-integrity-sidecar/internal/audit"
	"github.com/dagbolade/install-integrity-sidecar/internal/integrity"
	"github.com/dagbolade/install-integrity-sidecar/internal/rule"
	"github.com/dagbolade/install-integrity-sidecar/internal/telemetry"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"
)

// CheckReporter records the outcome of an integrity check.
type CheckReporter interface {
	Report(ctx context.Context, install telemetry.Install, result integrity.Result) (audit.Entry, error)
}

// CheckRequest is what the install pipeline sends after evaluating rules.
type CheckRequest struct {
	Install telemetry.Install `json:"install"`
	Effect  string            `json:"effect"`
	Rule    json.RawMessage   `json:"rule,omitempty"`
}

type CheckResponse struct {
	ReportID       string           `json:"report_id"`
	Effect         integrity.Effect `json:"effect"`
	Response       string           `json:"response"`
	ResponseCode   int32            `json:"response_code"`
	RuleID         string           `json:"rule_id,omitempty"`
	AppCertCause   bool             `json:"app_cert_cause"`
	InstallerCause bool             `json:"installer_cause"`
}

type CheckHandler struct {
	reporter CheckReporter
}

func NewCheckHandler(reporter CheckReporter) *CheckHandler {
	return &CheckHandler{reporter: reporter}
}

func (h *CheckHandler) HandleCheck(c echo.Context) error {
	ctx := c.Request().Context()

	var req CheckRequest
	if err := c.Bind(&req); err != nil {
		return errorResponse(c, http.StatusBadRequest, "invalid request body")
	}

	result, err := h.buildResult(req)
	if errors.Is(err, integrity.ErrDenyWithoutRule) {
		log.Error().Str("package", req.Install.PackageName).Msg("deny reported without a causing rule")
		return errorResponse(c, http.StatusUnprocessableEntity, err.Error())
	}
	if err != nil {
		return errorResponse(c, http.StatusBadRequest, err.Error())
	}
	if !result.RuleAgrees() {
		log.Warn().
			Str("package", req.Install.PackageName).
			Str("effect", result.Effect().String()).
			Str("rule", result.Rule().ID).
			Str("rule_effect", string(result.Rule().Effect)).
			Msg("outcome effect disagrees with rule effect")
	}

	entry, err := h.reporter.Report(ctx, req.Install, result)
	if errors.Is(err, telemetry.ErrInvalidInstall) {
		return errorResponse(c, http.StatusBadRequest, err.Error())
	}
	if err != nil {
		log.Error().Err(err).Str("package", req.Install.PackageName).Msg("failed to record integrity check")
		return errorResponse(c, http.StatusInternalServerError, "failed to record integrity check")
	}

	return c.JSON(http.StatusCreated, CheckResponse{
		ReportID:       entry.ReportID,
		Effect:         entry.Effect,
		Response:       entry.Response.String(),
		ResponseCode:   int32(entry.Response),
		RuleID:         entry.RuleID,
		AppCertCause:   entry.AppCertCause,
		InstallerCause: entry.InstallerCause,
	})
}

func (h *CheckHandler) buildResult(req CheckRequest) (integrity.Result, error) {
	effect, err := integrity.ParseEffect(req.Effect)
	if err != nil {
		return integrity.Result{}, err
	}

	var r *rule.Rule
	if len(req.Rule) > 0 && string(req.Rule) != "null" {
		r = &rule.Rule{}
		if err := json.Unmarshal(req.Rule, r); err != nil {
			return integrity.Result{}, fmt.Errorf("invalid rule: %w", err)
		}
	}

	return integrity.New(effect, r)
}

func errorResponse(c echo.Context, status int, message string) error {
	return c.JSON(status, map[string]string{
		"error": message,
	})
}
