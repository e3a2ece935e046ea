package schema

import (
	"gopkg.in/yaml.v3"
)

// OrderedMap is an insertion-ordered string-keyed map. The source
// format's mappings are order-significant (job graphs, matrix
// dimensions, input declarations), so the models preserve document
// order rather than using Go's unordered maps.
type OrderedMap[T any] struct {
	keys   []string
	values map[string]T
}

// NewOrderedMap creates an empty OrderedMap.
func NewOrderedMap[T any]() *OrderedMap[T] {
	return &OrderedMap[T]{values: make(map[string]T)}
}

// Set inserts or replaces the value for key. First insertion fixes the
// key's position.
func (m *OrderedMap[T]) Set(key string, value T) {
	if _, ok := m.values[key]; !ok {
		m.keys = append(m.keys, key)
	}
	m.values[key] = value
}

// Get returns the value for key and whether it was present.
func (m *OrderedMap[T]) Get(key string) (T, bool) {
	v, ok := m.values[key]
	return v, ok
}

// Has reports whether key is present.
func (m *OrderedMap[T]) Has(key string) bool {
	_, ok := m.values[key]
	return ok
}

// Keys returns the keys in insertion order. The returned slice must not
// be mutated.
func (m *OrderedMap[T]) Keys() []string {
	if m == nil {
		return nil
	}
	return m.keys
}

// Len returns the number of entries.
func (m *OrderedMap[T]) Len() int {
	if m == nil {
		return 0
	}
	return len(m.keys)
}

// MarshalYAML renders the map as a YAML mapping in insertion order.
func (m *OrderedMap[T]) MarshalYAML() (any, error) {
	node := &yaml.Node{Kind: yaml.MappingNode}
	for _, key := range m.keys {
		keyNode := &yaml.Node{}
		if err := keyNode.Encode(key); err != nil {
			return nil, err
		}
		valueNode := &yaml.Node{}
		if err := valueNode.Encode(m.values[key]); err != nil {
			return nil, err
		}
		node.Content = append(node.Content, keyNode, valueNode)
	}
	return node, nil
}
