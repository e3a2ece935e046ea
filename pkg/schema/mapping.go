package schema

import (
	"gopkg.in/yaml.v3"

	"github.com/tombee/actionschema/pkg/errors"
)

// Mapping walks a YAML mapping node in document order, tracking which
// keys have been consumed so that Finish can apply the unknown-key
// policy to the rest.
//
// An explicitly-null value counts as "present": Get and Has see it, and
// the tagged-union resolver counts it as a discriminator. Reading it as
// a declared type still fails with TypeMismatch.
type Mapping struct {
	d        *Decoder
	node     *yaml.Node
	keys     []string
	values   map[string]*yaml.Node
	keyNodes map[string]*yaml.Node
	consumed map[string]bool
}

// Mapping resolves the node and requires it to be a mapping. Duplicate
// keys are rejected.
func (d *Decoder) Mapping(n *yaml.Node) (*Mapping, error) {
	n = Resolve(n)
	if n == nil || n.Kind != yaml.MappingNode {
		return nil, typeMismatch(n, "a mapping")
	}

	m := &Mapping{
		d:        d,
		node:     n,
		values:   make(map[string]*yaml.Node, len(n.Content)/2),
		keyNodes: make(map[string]*yaml.Node, len(n.Content)/2),
		consumed: make(map[string]bool),
	}
	for i := 0; i+1 < len(n.Content); i += 2 {
		keyNode := Resolve(n.Content[i])
		if keyNode == nil || keyNode.Kind != yaml.ScalarNode {
			return nil, errors.New(errors.TypeMismatch,
				"expected a string key, found %s", KindName(keyNode)).
				WithPosition(n.Content[i].Line, n.Content[i].Column)
		}
		key := keyNode.Value
		if _, dup := m.values[key]; dup {
			return nil, errors.New(errors.TypeMismatch, "duplicate key %q", key).
				WithPosition(keyNode.Line, keyNode.Column)
		}
		m.keys = append(m.keys, key)
		m.values[key] = n.Content[i+1]
		m.keyNodes[key] = keyNode
	}
	return m, nil
}

// Node returns the underlying mapping node.
func (m *Mapping) Node() *yaml.Node {
	return m.node
}

// Len returns the number of keys present.
func (m *Mapping) Len() int {
	return len(m.keys)
}

// Keys returns the present keys in document order.
func (m *Mapping) Keys() []string {
	return m.keys
}

// KeyNode returns the key node for a present key, for error positions.
func (m *Mapping) KeyNode(key string) *yaml.Node {
	return m.keyNodes[key]
}

// Has reports whether the key is present, without consuming it.
// Explicit nulls count as present.
func (m *Mapping) Has(key string) bool {
	_, ok := m.values[key]
	return ok
}

// Get returns the value node for the key, marking it consumed. Absent
// keys return nil. Explicit nulls return the null scalar node.
func (m *Mapping) Get(key string) *yaml.Node {
	n, ok := m.values[key]
	if !ok {
		return nil
	}
	m.consumed[key] = true
	return n
}

// Require returns the value node for the key, failing with
// MissingRequiredField when the key is absent or explicitly null.
func (m *Mapping) Require(key string) (*yaml.Node, error) {
	n := m.Get(key)
	if IsNull(n) {
		return nil, errors.New(errors.MissingRequiredField,
			"missing required key %q", key).
			WithPosition(m.node.Line, m.node.Column)
	}
	return n, nil
}

// Alias resolves a canonical key against its deprecated aliases. If the
// canonical key and an alias (or two aliases) are both present, it fails
// with ConflictingAliases. If only an alias is present, its value is
// returned as if it were the canonical field, along with the key that
// actually matched so errors can point at the source text. Returns a
// nil node and empty key when none are present.
func (m *Mapping) Alias(canonical string, deprecated ...string) (string, *yaml.Node, error) {
	found := ""
	var value *yaml.Node
	for _, key := range append([]string{canonical}, deprecated...) {
		if !m.Has(key) {
			continue
		}
		if found != "" {
			return "", nil, errors.AtKey(
				errors.New(errors.ConflictingAliases,
					"%q conflicts with %q: set only %q", key, found, canonical).
					WithPosition(m.keyNodes[key].Line, m.keyNodes[key].Column),
				key)
		}
		found = key
		value = m.Get(key)
	}
	return found, value, nil
}

// Each invokes fn for every key/value pair in document order, marking
// all keys consumed. Errors from fn are annotated with the key and
// returned immediately.
func (m *Mapping) Each(fn func(key string, value *yaml.Node) error) error {
	for _, key := range m.keys {
		m.consumed[key] = true
		if err := fn(key, m.values[key]); err != nil {
			return errors.AtKey(err, key)
		}
	}
	return nil
}

// Finish applies the unknown-key policy to every key that was never
// consumed. It must be called after all fields have been read.
func (m *Mapping) Finish() error {
	for _, key := range m.keys {
		if m.consumed[key] {
			continue
		}
		if err := m.d.UnknownKey(key, m.keyNodes[key]); err != nil {
			return err
		}
	}
	return nil
}
