// Package schema provides the node-level machinery shared by the typed
// document models: mapping walkers with a strict or lenient unknown-key
// policy, shorthand normalization, deprecated-alias resolution, and the
// tagged-union resolver that discriminates structurally similar variants
// by key presence.
//
// The package operates on the generic *yaml.Node tree produced by
// gopkg.in/yaml.v3 and never mutates it. All failures are *ParseError
// values from pkg/errors.
package schema

import (
	"log/slog"

	"gopkg.in/yaml.v3"

	"github.com/tombee/actionschema/pkg/errors"
)

// DefaultMaxDepth is the recursion-depth guard applied when no explicit
// limit is configured. Real workflow and action documents nest a handful
// of levels deep; the guard exists to reject pathological input before
// it can exhaust the call stack.
const DefaultMaxDepth = 64

// Decoder carries the parse policy. It is immutable after construction
// and safe for concurrent use on independent input trees.
type Decoder struct {
	strict   bool
	logger   *slog.Logger
	maxDepth int
}

// Option configures a Decoder.
type Option func(*Decoder)

// Lenient makes the decoder ignore unknown keys instead of rejecting
// them. Each ignored key is logged as a warning through the given
// logger. A nil logger disables the warnings.
func Lenient(logger *slog.Logger) Option {
	return func(d *Decoder) {
		d.strict = false
		d.logger = logger
	}
}

// WithMaxDepth overrides the recursion-depth guard. Values below 1 are
// ignored.
func WithMaxDepth(n int) Option {
	return func(d *Decoder) {
		if n >= 1 {
			d.maxDepth = n
		}
	}
}

// NewDecoder creates a Decoder. The default policy is strict: unknown
// keys fail with UnknownKey.
func NewDecoder(opts ...Option) *Decoder {
	d := &Decoder{
		strict:   true,
		maxDepth: DefaultMaxDepth,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Strict reports whether unknown keys are rejected.
func (d *Decoder) Strict() bool {
	return d.strict
}

// CheckDepth walks the tree and fails with TooDeeplyNested when the
// nesting depth exceeds the configured guard. The walk itself recurses
// no deeper than the limit, so it is safe on adversarial input.
func (d *Decoder) CheckDepth(n *yaml.Node) error {
	return d.checkDepth(n, 0)
}

func (d *Decoder) checkDepth(n *yaml.Node, depth int) error {
	if n == nil {
		return nil
	}
	if depth > d.maxDepth {
		return errors.New(errors.TooDeeplyNested,
			"input exceeds maximum nesting depth of %d", d.maxDepth).
			WithPosition(n.Line, n.Column)
	}
	for _, child := range n.Content {
		if err := d.checkDepth(child, depth+1); err != nil {
			return err
		}
	}
	return nil
}

// UnknownKey applies the unknown-key policy to a single key. In strict
// mode it returns an UnknownKey error; in lenient mode it logs and
// returns nil. Mapping.Finish uses it for unconsumed keys; decoders with
// value-driven key sets (event names, registry ids) apply it directly.
func (d *Decoder) UnknownKey(key string, keyNode *yaml.Node) error {
	if d.strict {
		return errors.AtKey(
			errors.New(errors.UnknownKey, "unknown key %q", key).
				WithPosition(keyNode.Line, keyNode.Column),
			key)
	}
	if d.logger != nil {
		d.logger.Warn("ignoring unknown key",
			"key", key,
			"line", keyNode.Line,
			"column", keyNode.Column)
	}
	return nil
}
