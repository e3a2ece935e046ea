// Package expr provides the permissive scalar layer for the document
// models: recognition of `${{ ... }}` expression syntax and the
// literal-or-expression Value types used throughout the workflow and
// action schemas.
//
// Expressions are recognized, never evaluated. A scalar containing
// expression syntax is classified as an expression regardless of the
// field's declared type, since its runtime value cannot be known
// statically.
package expr

import (
	"regexp"
	"strings"

	"github.com/tombee/actionschema/pkg/errors"
)

// fencePattern matches a single non-greedy ${{ ... }} span.
var fencePattern = regexp.MustCompile(`\$\{\{.*?\}\}`)

// Expr is an explicit expression, fenced by `${{` and `}}`.
type Expr struct {
	raw string
}

// Parse requires s (after trimming surrounding whitespace) to be a
// single fully-fenced expression and returns it. Anything else fails
// with TypeMismatch.
func Parse(s string) (Expr, error) {
	trimmed := strings.TrimSpace(s)
	inner, ok := strings.CutPrefix(trimmed, "${{")
	if ok {
		inner, ok = strings.CutSuffix(inner, "}}")
	}
	if !ok || strings.Contains(inner, "}}") {
		return Expr{}, errors.New(errors.TypeMismatch,
			"invalid expression %q: expected '${{' and '}}' delimiters", s)
	}
	return Expr{raw: trimmed}, nil
}

// Contains reports whether s embeds at least one ${{ ... }} span.
func Contains(s string) bool {
	return fencePattern.MatchString(s)
}

// Curly returns the expression in its original fenced form.
func (e Expr) Curly() string {
	return e.raw
}

// Inner returns the expression body with fences and surrounding
// whitespace removed.
func (e Expr) Inner() string {
	inner := strings.TrimPrefix(e.raw, "${{")
	inner = strings.TrimSuffix(inner, "}}")
	return strings.TrimSpace(inner)
}

func (e Expr) String() string {
	return e.raw
}
