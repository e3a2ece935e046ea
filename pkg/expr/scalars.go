package expr

import (
	"gopkg.in/yaml.v3"

	"github.com/tombee/actionschema/pkg/errors"
	"github.com/tombee/actionschema/pkg/schema"
)

// Bool is a boolean-declared field: a boolean literal or an expression.
// The zero value is a false literal, matching the format's defaults for
// fields like `continue-on-error` and `fail-fast`.
type Bool struct {
	// Expr is set when the field holds expression syntax.
	Expr *Expr

	// Literal is the boolean literal; meaningful only when Expr is nil.
	Literal bool
}

// DecodeBool requires a boolean literal or an expression. Any other
// scalar kind fails with TypeMismatch: booleans are not coerced from
// strings or numbers.
func DecodeBool(n *yaml.Node) (Bool, error) {
	s, err := schema.Scalar(n)
	if err != nil {
		return Bool{}, err
	}
	if Contains(s.Value) {
		e, err := Parse(s.Value)
		if err != nil {
			return Bool{}, err
		}
		return Bool{Expr: &e}, nil
	}
	if s.Tag != "!!bool" {
		return Bool{}, errors.New(errors.TypeMismatch,
			"expected a boolean or expression, found %q", s.Value).
			WithPosition(s.Line, s.Column)
	}
	var b bool
	if err := s.Decode(&b); err != nil {
		return Bool{}, errors.New(errors.TypeMismatch,
			"invalid boolean literal %q", s.Value).
			WithPosition(s.Line, s.Column)
	}
	return Bool{Literal: b}, nil
}

// MarshalYAML renders the literal or the fenced expression.
func (b Bool) MarshalYAML() (any, error) {
	if b.Expr != nil {
		return b.Expr.Curly(), nil
	}
	return b.Literal, nil
}

// Int is an integer-declared field: an integer literal or an expression.
type Int struct {
	// Expr is set when the field holds expression syntax.
	Expr *Expr

	// Literal is the integer literal; meaningful only when Expr is nil.
	Literal int64
}

// DecodeInt requires an integer literal or an expression.
func DecodeInt(n *yaml.Node) (Int, error) {
	s, err := schema.Scalar(n)
	if err != nil {
		return Int{}, err
	}
	if Contains(s.Value) {
		e, err := Parse(s.Value)
		if err != nil {
			return Int{}, err
		}
		return Int{Expr: &e}, nil
	}
	if s.Tag != "!!int" {
		return Int{}, errors.New(errors.TypeMismatch,
			"expected an integer or expression, found %q", s.Value).
			WithPosition(s.Line, s.Column)
	}
	var i int64
	if err := s.Decode(&i); err != nil {
		return Int{}, errors.New(errors.TypeMismatch,
			"invalid integer literal %q", s.Value).
			WithPosition(s.Line, s.Column)
	}
	return Int{Literal: i}, nil
}

// MarshalYAML renders the literal or the fenced expression.
func (i Int) MarshalYAML() (any, error) {
	if i.Expr != nil {
		return i.Expr.Curly(), nil
	}
	return i.Literal, nil
}

// DecodeString decodes a loosely-typed string field: YAML strings pass
// through, and boolean or numeric literals are stringified the way the
// runner stringifies them. Mappings, sequences, and nulls fail.
func DecodeString(n *yaml.Node) (string, error) {
	v, err := DecodeValue(n)
	if err != nil {
		return "", err
	}
	return v.AsString(), nil
}

// DecodeStringSeq normalizes a scalar-or-sequence field into a string
// slice, stringifying loosely-typed elements.
func DecodeStringSeq(n *yaml.Node) ([]string, error) {
	elems := schema.ScalarOrSeq(n)
	if len(elems) == 0 {
		return nil, nil
	}
	out := make([]string, 0, len(elems))
	for i, e := range elems {
		s, err := DecodeString(e)
		if err != nil {
			return nil, errors.AtIndex(err, i)
		}
		out = append(out, s)
	}
	return out, nil
}
