package expr

import (
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/tombee/actionschema/pkg/errors"
	"github.com/tombee/actionschema/pkg/schema"
)

// ValueKind classifies a permissive scalar.
type ValueKind int

const (
	// KindString is a plain string literal.
	KindString ValueKind = iota
	// KindInt is an integer literal.
	KindInt
	// KindFloat is a floating-point literal.
	KindFloat
	// KindBool is a boolean literal.
	KindBool
	// KindExpr is a string containing embedded expression syntax.
	KindExpr
)

// Value is a permissive scalar: a literal of its natural YAML type, or
// a string containing embedded expression syntax. Values are
// constructed once during parse and immutable thereafter.
type Value struct {
	kind ValueKind
	s    string
	i    int64
	f    float64
	b    bool
}

// DecodeValue classifies a scalar node following the source format's
// implicit-typing rules. Any scalar whose string form embeds
// `${{ ... }}` is an expression, regardless of the field's declared
// type. Mappings, sequences, and nulls fail with TypeMismatch.
func DecodeValue(n *yaml.Node) (Value, error) {
	s, err := schema.Scalar(n)
	if err != nil {
		return Value{}, err
	}

	if Contains(s.Value) {
		return Value{kind: KindExpr, s: s.Value}, nil
	}

	switch s.Tag {
	case "!!bool":
		var b bool
		if err := s.Decode(&b); err != nil {
			return Value{}, errors.New(errors.TypeMismatch,
				"invalid boolean literal %q", s.Value).
				WithPosition(s.Line, s.Column)
		}
		return Value{kind: KindBool, b: b, s: s.Value}, nil
	case "!!int":
		var i int64
		if err := s.Decode(&i); err != nil {
			return Value{}, errors.New(errors.TypeMismatch,
				"invalid integer literal %q", s.Value).
				WithPosition(s.Line, s.Column)
		}
		return Value{kind: KindInt, i: i, s: s.Value}, nil
	case "!!float":
		var f float64
		if err := s.Decode(&f); err != nil {
			return Value{}, errors.New(errors.TypeMismatch,
				"invalid float literal %q", s.Value).
				WithPosition(s.Line, s.Column)
		}
		return Value{kind: KindFloat, f: f, s: s.Value}, nil
	default:
		return Value{kind: KindString, s: s.Value}, nil
	}
}

// StringValue creates a plain string literal Value. Used when a model
// normalizes a non-string scalar (e.g. `run: true`) into string form.
func StringValue(s string) Value {
	if Contains(s) {
		return Value{kind: KindExpr, s: s}
	}
	return Value{kind: KindString, s: s}
}

// Kind returns the value's classification.
func (v Value) Kind() ValueKind {
	return v.kind
}

// IsExpr reports whether the value embeds expression syntax.
func (v Value) IsExpr() bool {
	return v.kind == KindExpr
}

// Expr returns the value as a fully-fenced expression, when it is one.
// Values that merely embed an expression inside a longer string return
// false.
func (v Value) Expr() (Expr, bool) {
	if v.kind != KindExpr {
		return Expr{}, false
	}
	e, err := Parse(v.s)
	if err != nil {
		return Expr{}, false
	}
	return e, true
}

// Raw returns the value's original string form.
func (v Value) Raw() string {
	return v.s
}

// AsString returns the value stringified the way the runner stringifies
// loosely-typed values (booleans and numbers become their string forms).
func (v Value) AsString() string {
	switch v.kind {
	case KindBool:
		return strconv.FormatBool(v.b)
	case KindInt:
		return strconv.FormatInt(v.i, 10)
	case KindFloat:
		return strconv.FormatFloat(v.f, 'g', -1, 64)
	default:
		return v.s
	}
}

// AsBool returns the boolean literal, when the value is one.
func (v Value) AsBool() (bool, bool) {
	return v.b, v.kind == KindBool
}

// AsInt returns the integer literal, when the value is one.
func (v Value) AsInt() (int64, bool) {
	return v.i, v.kind == KindInt
}

// AsFloat returns the float literal, when the value is one.
func (v Value) AsFloat() (float64, bool) {
	return v.f, v.kind == KindFloat
}

// MarshalYAML renders the value as its underlying literal, or the raw
// string for expressions.
func (v Value) MarshalYAML() (any, error) {
	switch v.kind {
	case KindBool:
		return v.b, nil
	case KindInt:
		return v.i, nil
	case KindFloat:
		return v.f, nil
	default:
		return v.s, nil
	}
}
