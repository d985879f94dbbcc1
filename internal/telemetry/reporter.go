// Package telemetry records integrity check outcomes for the metrics pipeline.
package telemetry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dagbolade/install-integrity-sidecar/internal/audit"
	"github.com/dagbolade/install-integrity-sidecar/internal/integrity"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Install is the metadata of the install attempt that was checked.
type Install struct {
	PackageName   string `json:"package_name"`
	VersionCode   int64  `json:"version_code"`
	InstallerName string `json:"installer_name,omitempty"`
}

var ErrInvalidInstall = errors.New("invalid install")

func (i Install) validate() error {
	if i.PackageName == "" {
		return fmt.Errorf("%w: package_name is required", ErrInvalidInstall)
	}
	if i.VersionCode < 0 {
		return fmt.Errorf("%w: version_code cannot be negative", ErrInvalidInstall)
	}
	return nil
}

type Reporter struct {
	store audit.Store
	newID func() string
}

func NewReporter(store audit.Store) *Reporter {
	return &Reporter{
		store: store,
		newID: func() string { return uuid.New().String() },
	}
}

// Report logs the outcome and appends it to the audit store.
func (r *Reporter) Report(ctx context.Context, install Install, result integrity.Result) (audit.Entry, error) {
	if err := install.validate(); err != nil {
		return audit.Entry{}, err
	}

	entry, err := r.buildEntry(install, result)
	if err != nil {
		return audit.Entry{}, err
	}

	logOutcome(entry, result)

	if err := r.store.Log(ctx, entry); err != nil {
		return audit.Entry{}, fmt.Errorf("record outcome: %w", err)
	}

	return entry, nil
}

func (r *Reporter) buildEntry(install Install, result integrity.Result) (audit.Entry, error) {
	entry := audit.Entry{
		ReportID:       r.newID(),
		PackageName:    install.PackageName,
		VersionCode:    install.VersionCode,
		InstallerName:  install.InstallerName,
		Effect:         result.Effect(),
		Response:       result.LoggingResponse(),
		AppCertCause:   result.IsCausedByAppCertRule(),
		InstallerCause: result.IsCausedByInstallerRule(),
	}

	if rule := result.Rule(); rule != nil {
		data, err := json.Marshal(rule)
		if err != nil {
			return audit.Entry{}, fmt.Errorf("marshal rule: %w", err)
		}
		entry.RuleID = rule.ID
		entry.Rule = data
	}

	return entry, nil
}

func logOutcome(entry audit.Entry, result integrity.Result) {
	var event *zerolog.Event
	if entry.Response == integrity.ResponseRejected {
		event = log.Warn()
	} else {
		event = log.Info()
	}

	causes := make([]string, 0, 2)
	for _, c := range result.Causes() {
		causes = append(causes, c.String())
	}

	event.
		Str("report_id", entry.ReportID).
		Str("package", entry.PackageName).
		Int64("version_code", entry.VersionCode).
		Str("installer", entry.InstallerName).
		Str("response", entry.Response.String()).
		Str("rule", entry.RuleID).
		Strs("causes", causes).
		Msg("integrity check reported")
}
