package audit

import (
	"encoding/json"
	"fmt"

	"github.com/dagbolade/install-integrity-sidecar/internal/integrity"
)

func validateEntry(e Entry) error {
	if e.ReportID == "" {
		return fmt.Errorf("report_id cannot be empty")
	}

	if e.PackageName == "" {
		return fmt.Errorf("package_name cannot be empty")
	}

	if !isValidEffect(e.Effect) {
		return fmt.Errorf("invalid effect: %d", int(e.Effect))
	}

	if !e.Response.Valid() {
		return fmt.Errorf("invalid response: %s", e.Response)
	}

	if e.Effect == integrity.EffectDeny && e.RuleID == "" {
		return fmt.Errorf("deny entry must carry a rule_id")
	}

	if len(e.Rule) > 0 && !json.Valid(e.Rule) {
		return fmt.Errorf("rule must be valid JSON")
	}

	return nil
}

func isValidEffect(e integrity.Effect) bool {
	return e == integrity.EffectAllow || e == integrity.EffectDeny
}
