package integrity

import "github.com/dagbolade/install-integrity-sidecar/internal/rule"

// Cause categorizes why a deny rule matched.
type Cause int

const (
	CauseAppCertificate Cause = iota
	CauseInstaller
)

func (c Cause) String() string {
	switch c {
	case CauseAppCertificate:
		return "app_certificate"
	case CauseInstaller:
		return "installer"
	default:
		return "unknown"
	}
}

var (
	appCertKeys   = []rule.Key{rule.KeyAppCertificate}
	installerKeys = []rule.Key{rule.KeyInstallerName, rule.KeyInstallerCertificate}
)

// denyKeys returns the atom keys of the causing rule, or nil when the
// outcome is not a deny.
func (r Result) denyKeys() rule.KeySet {
	if r.effect != EffectDeny || r.rule == nil {
		return nil
	}
	return r.rule.Keys()
}

// IsCausedByAppCertRule reports whether a deny was caused by a rule that
// tests the app's signing certificate.
func (r Result) IsCausedByAppCertRule() bool {
	return r.denyKeys().HasAny(appCertKeys...)
}

// IsCausedByInstallerRule reports whether a deny was caused by a rule that
// tests the installer's name or certificate.
func (r Result) IsCausedByInstallerRule() bool {
	return r.denyKeys().HasAny(installerKeys...)
}

// Causes returns every cause category of a deny. A rule may fall in both
// categories or in neither.
func (r Result) Causes() []Cause {
	keys := r.denyKeys()
	var causes []Cause
	if keys.HasAny(appCertKeys...) {
		causes = append(causes, CauseAppCertificate)
	}
	if keys.HasAny(installerKeys...) {
		causes = append(causes, CauseInstaller)
	}
	return causes
}
