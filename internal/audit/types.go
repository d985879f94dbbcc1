package audit

import (
	"context"
	"encoding/json"
	"time"

	"github.com/dagbolade/install-integrity-sidecar/internal/integrity"
)

// Entry is one recorded integrity check.
type Entry struct {
	ID             int64              `json:"id"`
	ReportID       string             `json:"report_id"`
	Timestamp      time.Time          `json:"timestamp"`
	PackageName    string             `json:"package_name"`
	VersionCode    int64              `json:"version_code"`
	InstallerName  string             `json:"installer_name,omitempty"`
	Effect         integrity.Effect   `json:"effect"`
	Response       integrity.Response `json:"response"`
	RuleID         string             `json:"rule_id,omitempty"`
	Rule           json.RawMessage    `json:"rule,omitempty"`
	AppCertCause   bool               `json:"app_cert_cause"`
	InstallerCause bool               `json:"installer_cause"`
}

type Store interface {
	Log(ctx context.Context, entry Entry) error
	GetAll(ctx context.Context) ([]Entry, error)
	Summary(ctx context.Context) (map[integrity.Response]int, error)
	Close() error
}
