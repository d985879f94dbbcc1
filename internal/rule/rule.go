package rule

import (
	"errors"
	"fmt"
)

// Effect is what a rule does to an install when its formula matches.
type Effect string

const (
	EffectDeny       Effect = "deny"
	EffectForceAllow Effect = "force_allow"
)

func (e Effect) valid() bool {
	return e == EffectDeny || e == EffectForceAllow
}

// Rule is a formula over install metadata plus the effect it triggers.
// Rules are owned by the evaluation engine; consumers treat them as read-only.
type Rule struct {
	ID      string
	Formula Formula
	Effect  Effect
}

func New(id string, formula Formula, effect Effect) *Rule {
	return &Rule{ID: id, Formula: formula, Effect: effect}
}

var ErrMissingID = errors.New("rule id cannot be empty")

func (r *Rule) Validate() error {
	if r.ID == "" {
		return ErrMissingID
	}
	if !r.Effect.valid() {
		return fmt.Errorf("rule %s: invalid effect: %q", r.ID, r.Effect)
	}
	if err := Validate(r.Formula); err != nil {
		return fmt.Errorf("rule %s: %w", r.ID, err)
	}
	return nil
}

// Keys returns the atom keys referenced by the rule's formula.
func (r *Rule) Keys() KeySet {
	return Keys(r.Formula)
}

func (r *Rule) String() string {
	if r.Formula == nil {
		return fmt.Sprintf("%s[%s]", r.ID, r.Effect)
	}
	return fmt.Sprintf("%s[%s] %s", r.ID, r.Effect, r.Formula)
}
