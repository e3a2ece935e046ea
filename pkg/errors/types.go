// Copyright 2025 Tom Barlow
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package errors defines the closed error taxonomy for document parsing.
//
// Every parse failure is a *ParseError carrying a Kind from the taxonomy,
// the path from the document root to the offending node, and the source
// position when the underlying YAML tree preserved it. Errors are plain
// values: the parse entry points return them and never panic.
package errors

import (
	"fmt"
	"sort"
	"strings"
)

// Kind identifies a category of parse failure.
type Kind string

const (
	// TypeMismatch indicates a scalar was present but of the wrong kind,
	// or a node had the wrong structure for its declared type.
	TypeMismatch Kind = "type_mismatch"

	// MissingRequiredField indicates a required key was absent after
	// alias resolution.
	MissingRequiredField Kind = "missing_required_field"

	// ConflictingAliases indicates a canonical key and one of its
	// deprecated aliases were both present.
	ConflictingAliases Kind = "conflicting_aliases"

	// UnrecognizedShape indicates a mapping matched no known tagged-union
	// variant.
	UnrecognizedShape Kind = "unrecognized_shape"

	// AmbiguousShape indicates a mapping matched the discriminators of
	// more than one variant. This is surfaced rather than resolved
	// heuristically.
	AmbiguousShape Kind = "ambiguous_shape"

	// UnknownKey indicates a key not recognized by any field or alias.
	// Only produced in strict mode; lenient mode logs and continues.
	UnknownKey Kind = "unknown_key"

	// TooDeeplyNested indicates the input exceeded the recursion-depth
	// guard.
	TooDeeplyNested Kind = "too_deeply_nested"
)

// ParseError is a structured deserialization failure.
type ParseError struct {
	// Kind is the taxonomy category for this failure.
	Kind Kind

	// Path locates the offending node relative to the document root.
	// It grows at the front as the error propagates outward.
	Path Path

	// Line and Column are the 1-based source position of the offending
	// node, or zero when the input tree carried no position.
	Line   int
	Column int

	// Message is the human-readable error description.
	Message string

	// Keys holds the present key set for shape errors, sorted.
	Keys []string
}

// Error implements the error interface.
func (e *ParseError) Error() string {
	var b strings.Builder
	if len(e.Path) > 0 {
		b.WriteString(e.Path.String())
		b.WriteString(": ")
	}
	b.WriteString(e.Message)
	if len(e.Keys) > 0 {
		fmt.Fprintf(&b, " (keys: %s)", strings.Join(e.Keys, ", "))
	}
	if e.Line > 0 {
		fmt.Fprintf(&b, " (line %d, column %d)", e.Line, e.Column)
	}
	return b.String()
}

// New creates a ParseError with the given kind and formatted message.
func New(kind Kind, format string, args ...any) *ParseError {
	return &ParseError{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// WithPosition annotates the error with a source position and returns it.
func (e *ParseError) WithPosition(line, column int) *ParseError {
	e.Line = line
	e.Column = column
	return e
}

// WithKeys annotates the error with the present key set, sorted for
// deterministic diagnostics, and returns it.
func (e *ParseError) WithKeys(keys []string) *ParseError {
	sorted := make([]string, len(keys))
	copy(sorted, keys)
	sort.Strings(sorted)
	e.Keys = sorted
	return e
}

// KindOf returns the taxonomy kind of err, or the empty Kind when no
// ParseError is found in err's tree.
func KindOf(err error) Kind {
	var pe *ParseError
	if As(err, &pe) {
		return pe.Kind
	}
	return ""
}
