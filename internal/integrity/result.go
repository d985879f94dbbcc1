// Package integrity models the outcome of checking an install against the
// configured integrity rules.
package integrity

import (
	"errors"
	"fmt"
	"strings"

	"github.com/dagbolade/install-integrity-sidecar/internal/rule"
)

// Effect is whether an install may proceed.
type Effect int

const (
	EffectAllow Effect = iota
	EffectDeny
)

func (e Effect) String() string {
	switch e {
	case EffectAllow:
		return "allow"
	case EffectDeny:
		return "deny"
	default:
		return fmt.Sprintf("Effect(%d)", int(e))
	}
}

func (e Effect) MarshalText() ([]byte, error) {
	if e != EffectAllow && e != EffectDeny {
		return nil, fmt.Errorf("marshal effect: invalid effect %d", int(e))
	}
	return []byte(e.String()), nil
}

func (e *Effect) UnmarshalText(text []byte) error {
	parsed, err := ParseEffect(string(text))
	if err != nil {
		return err
	}
	*e = parsed
	return nil
}

// ParseEffect accepts "allow" or "deny", case-insensitively.
func ParseEffect(s string) (Effect, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "allow":
		return EffectAllow, nil
	case "deny":
		return EffectDeny, nil
	default:
		return 0, fmt.Errorf("invalid effect: %q", s)
	}
}

var (
	// ErrDenyWithoutRule means a block was not attributed to the rule causing it.
	ErrDenyWithoutRule = errors.New("integrity: deny result requires a causing rule")
	// ErrMissingRule is returned when a force-allow is built without its rule.
	ErrMissingRule = errors.New("integrity: force-allow result requires a rule")
)

// Result is the outcome of one integrity check. The zero value is Allow().
//
// A Result never changes after construction and may be shared freely. The
// rule it points at belongs to the evaluation engine and is never modified.
type Result struct {
	effect Effect
	rule   *rule.Rule
}

// Allow is the outcome when no rule blocked the install.
func Allow() Result {
	return Result{effect: EffectAllow}
}

// ForceAllow is the outcome when r explicitly allowed an install that would
// otherwise be blocked. It panics if r is nil.
func ForceAllow(r *rule.Rule) Result {
	if r == nil {
		panic(ErrMissingRule)
	}
	return Result{effect: EffectAllow, rule: r}
}

// Deny is the outcome when r blocked the install. It panics if r is nil.
func Deny(r *rule.Rule) Result {
	if r == nil {
		panic(ErrDenyWithoutRule)
	}
	return Result{effect: EffectDeny, rule: r}
}

// New builds a Result from decoded input. A nil rule with EffectAllow is a
// default allow; a nil rule with EffectDeny is rejected, never coerced.
func New(effect Effect, r *rule.Rule) (Result, error) {
	switch effect {
	case EffectAllow:
		if r == nil {
			return Allow(), nil
		}
		return ForceAllow(r), nil
	case EffectDeny:
		if r == nil {
			return Result{}, ErrDenyWithoutRule
		}
		return Deny(r), nil
	default:
		return Result{}, fmt.Errorf("integrity: invalid effect %d", int(effect))
	}
}

func (r Result) Effect() Effect {
	return r.effect
}

// Rule returns the rule that caused the outcome, or nil for a default allow.
func (r Result) Rule() *rule.Rule {
	return r.rule
}

func (r Result) HasRule() bool {
	return r.rule != nil
}

func (r Result) String() string {
	if r.rule == nil {
		return r.effect.String()
	}
	return fmt.Sprintf("%s by rule %s", r.effect, r.rule.ID)
}

// RuleAgrees reports whether the causing rule declares the effect the
// outcome took. A default allow has no rule and always agrees.
func (r Result) RuleAgrees() bool {
	if r.rule == nil {
		return true
	}
	if r.effect == EffectDeny {
		return r.rule.Effect == rule.EffectDeny
	}
	return r.rule.Effect == rule.EffectForceAllow
}
