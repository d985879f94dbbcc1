package rule

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// formulaDoc is the tagged wire form of a Formula. A document with a
// connector is a compound, otherwise it is an atom.
type formulaDoc struct {
	Connector Connector    `json:"connector,omitempty"`
	Operands  []formulaDoc `json:"operands,omitempty"`
	Key       string       `json:"key,omitempty"`
	Operator  Operator     `json:"operator,omitempty"`
	Value     string       `json:"value,omitempty"`
}

type ruleDoc struct {
	ID      string      `json:"id"`
	Effect  Effect      `json:"effect"`
	Formula *formulaDoc `json:"formula"`
}

func (a Atom) doc() formulaDoc {
	return formulaDoc{Key: a.Key.String(), Operator: a.Operator, Value: a.Value}
}

func (c Compound) doc() formulaDoc {
	d := formulaDoc{Connector: c.Connector, Operands: make([]formulaDoc, 0, len(c.Operands))}
	for _, op := range c.Operands {
		if op != nil {
			d.Operands = append(d.Operands, op.doc())
		}
	}
	return d
}

var errMixedDoc = errors.New("formula document mixes compound and atom fields")

func fromDoc(doc formulaDoc) (Formula, error) {
	if doc.Connector != "" {
		if doc.Key != "" || doc.Operator != "" || doc.Value != "" {
			return nil, fmt.Errorf("%s: %w", doc.Connector, errMixedDoc)
		}
		c := Compound{Connector: doc.Connector, Operands: make([]Formula, 0, len(doc.Operands))}
		for i, opDoc := range doc.Operands {
			op, err := fromDoc(opDoc)
			if err != nil {
				return nil, fmt.Errorf("%s operand %d: %w", doc.Connector, i, err)
			}
			c.Operands = append(c.Operands, op)
		}
		return c, nil
	}

	if doc.Key == "" {
		return nil, fmt.Errorf("formula needs a connector or a key")
	}
	if doc.Operands != nil {
		return nil, fmt.Errorf("atom %s: %w", doc.Key, errMixedDoc)
	}
	key, err := ParseKey(doc.Key)
	if err != nil {
		return nil, err
	}
	op := Operator(strings.ToUpper(strings.TrimSpace(string(doc.Operator))))
	if op == "" {
		op = OpEQ
	}
	return Atom{Key: key, Operator: op, Value: doc.Value}, nil
}

func (a Atom) MarshalJSON() ([]byte, error) {
	return json.Marshal(a.doc())
}

func (c Compound) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.doc())
}

// ParseFormula decodes and validates a formula document.
func ParseFormula(data []byte) (Formula, error) {
	var doc formulaDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode formula: %w", err)
	}

	f, err := fromDoc(doc)
	if err != nil {
		return nil, fmt.Errorf("decode formula: %w", err)
	}
	if err := Validate(f); err != nil {
		return nil, fmt.Errorf("invalid formula: %w", err)
	}
	return f, nil
}

func (r *Rule) MarshalJSON() ([]byte, error) {
	doc := ruleDoc{ID: r.ID, Effect: r.Effect}
	if r.Formula != nil {
		fd := r.Formula.doc()
		doc.Formula = &fd
	}
	return json.Marshal(doc)
}

// UnmarshalJSON decodes a rule and rejects structurally invalid ones.
func (r *Rule) UnmarshalJSON(data []byte) error {
	var doc ruleDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("decode rule: %w", err)
	}
	if doc.Formula == nil {
		return fmt.Errorf("decode rule %s: %w", doc.ID, ErrNilFormula)
	}

	f, err := fromDoc(*doc.Formula)
	if err != nil {
		return fmt.Errorf("decode rule %s: %w", doc.ID, err)
	}

	decoded := Rule{ID: doc.ID, Formula: f, Effect: doc.Effect}
	if err := decoded.Validate(); err != nil {
		return err
	}
	*r = decoded
	return nil
}
