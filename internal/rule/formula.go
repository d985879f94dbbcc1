package rule

import (
	"errors"
	"fmt"
	"strings"
)

// Formula is a boolean expression over install metadata atoms.
// The only implementations are Atom and Compound.
type Formula interface {
	// walk calls fn for every atom in the tree, depth first.
	walk(fn func(Atom))
	validate() error
	doc() formulaDoc
	String() string
}

var ErrEmptyValue = errors.New("atom value cannot be empty")

// Atom tests a single piece of install metadata.
type Atom struct {
	Key      Key
	Operator Operator
	Value    string
}

// Equals builds an equality atom.
func Equals(key Key, value string) Atom {
	return Atom{Key: key, Operator: OpEQ, Value: value}
}

// Compare builds an ordered comparison atom. Only VERSION_CODE accepts GT and GTE.
func Compare(key Key, op Operator, value string) Atom {
	return Atom{Key: key, Operator: op, Value: value}
}

func (a Atom) walk(fn func(Atom)) { fn(a) }

func (a Atom) validate() error {
	if !a.Key.valid() {
		return fmt.Errorf("atom: unknown key %d", int(a.Key))
	}
	if !a.Operator.valid() {
		return fmt.Errorf("atom %s: unknown operator %q", a.Key, a.Operator)
	}
	if !a.Operator.allowedFor(a.Key) {
		return fmt.Errorf("atom %s: operator %s not allowed", a.Key, a.Operator)
	}
	if a.Value == "" {
		return fmt.Errorf("atom %s: %w", a.Key, ErrEmptyValue)
	}
	return nil
}

func (a Atom) String() string {
	return fmt.Sprintf("%s %s %q", a.Key, a.Operator, a.Value)
}

// Connector joins the operands of a Compound.
type Connector string

const (
	ConnectorAnd Connector = "AND"
	ConnectorOr  Connector = "OR"
	ConnectorNot Connector = "NOT"
)

// Compound combines formulas with a logical connector.
type Compound struct {
	Connector Connector
	Operands  []Formula
}

func And(operands ...Formula) Compound {
	return Compound{Connector: ConnectorAnd, Operands: operands}
}

func Or(operands ...Formula) Compound {
	return Compound{Connector: ConnectorOr, Operands: operands}
}

func Not(operand Formula) Compound {
	return Compound{Connector: ConnectorNot, Operands: []Formula{operand}}
}

func (c Compound) walk(fn func(Atom)) {
	for _, op := range c.Operands {
		if op != nil {
			op.walk(fn)
		}
	}
}

func (c Compound) validate() error {
	switch c.Connector {
	case ConnectorAnd, ConnectorOr:
		if len(c.Operands) < 2 {
			return fmt.Errorf("%s: needs at least 2 operands, got %d", c.Connector, len(c.Operands))
		}
	case ConnectorNot:
		if len(c.Operands) != 1 {
			return fmt.Errorf("NOT: needs exactly 1 operand, got %d", len(c.Operands))
		}
	default:
		return fmt.Errorf("unknown connector: %q", c.Connector)
	}

	for i, op := range c.Operands {
		if op == nil {
			return fmt.Errorf("%s: operand %d is nil", c.Connector, i)
		}
		if err := op.validate(); err != nil {
			return fmt.Errorf("%s operand %d: %w", c.Connector, i, err)
		}
	}
	return nil
}

func (c Compound) String() string {
	parts := make([]string, 0, len(c.Operands))
	for _, op := range c.Operands {
		if op == nil {
			parts = append(parts, "<nil>")
			continue
		}
		parts = append(parts, op.String())
	}
	if c.Connector == ConnectorNot {
		return "NOT (" + strings.Join(parts, "") + ")"
	}
	return "(" + strings.Join(parts, " "+string(c.Connector)+" ") + ")"
}

var ErrNilFormula = errors.New("formula is nil")

// Validate checks the structure of the whole tree.
func Validate(f Formula) error {
	if f == nil {
		return ErrNilFormula
	}
	return f.validate()
}

// Keys collects every atom key in f, including keys under NOT.
func Keys(f Formula) KeySet {
	set := KeySet{}
	if f == nil {
		return set
	}
	f.walk(func(a Atom) {
		set[a.Key] = struct{}{}
	})
	return set
}
