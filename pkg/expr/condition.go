package expr

import (
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/tombee/actionschema/pkg/errors"
	"github.com/tombee/actionschema/pkg/schema"
)

// Condition gates execution of a job, step, or pre/post script. A
// condition is a boolean literal or expression text: the runner
// evaluates a bare `success()` exactly as it evaluates
// `${{ success() }}`, so any non-boolean scalar is an expression
// whether or not it carries the fence.
type Condition struct {
	// Expression is the raw condition text, fence included when the
	// source had one. Empty when the condition is a boolean literal.
	Expression string

	// Literal is the boolean literal; meaningful only when Expression
	// is empty.
	Literal bool
}

// DecodeCondition classifies a condition scalar. Mappings, sequences,
// and nulls fail with TypeMismatch.
func DecodeCondition(n *yaml.Node) (*Condition, error) {
	s, err := schema.Scalar(n)
	if err != nil {
		return nil, err
	}
	if s.Tag == "!!bool" {
		var b bool
		if err := s.Decode(&b); err != nil {
			return nil, errors.New(errors.TypeMismatch,
				"invalid boolean literal %q", s.Value).
				WithPosition(s.Line, s.Column)
		}
		return &Condition{Literal: b}, nil
	}
	return &Condition{Expression: s.Value}, nil
}

// IsExpr reports whether the condition holds expression text.
func (c *Condition) IsExpr() bool {
	return c.Expression != ""
}

// AsString returns the condition's source text.
func (c *Condition) AsString() string {
	if c.Expression != "" {
		return c.Expression
	}
	return strconv.FormatBool(c.Literal)
}

// MarshalYAML renders the literal or the raw expression text.
func (c *Condition) MarshalYAML() (any, error) {
	if c.Expression != "" {
		return c.Expression, nil
	}
	return c.Literal, nil
}
