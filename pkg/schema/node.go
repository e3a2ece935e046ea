package schema

import (
	"gopkg.in/yaml.v3"

	"github.com/tombee/actionschema/pkg/errors"
)

// Resolve follows alias and document nodes to the underlying value node.
// It returns nil for nil input.
func Resolve(n *yaml.Node) *yaml.Node {
	for n != nil {
		switch n.Kind {
		case yaml.AliasNode:
			n = n.Alias
		case yaml.DocumentNode:
			if len(n.Content) == 0 {
				return nil
			}
			n = n.Content[0]
		default:
			return n
		}
	}
	return nil
}

// IsNull reports whether the node is an explicit YAML null (or absent).
func IsNull(n *yaml.Node) bool {
	n = Resolve(n)
	return n == nil || (n.Kind == yaml.ScalarNode && n.Tag == "!!null")
}

// KindName returns a human-readable name for the node's kind, used in
// TypeMismatch messages.
func KindName(n *yaml.Node) string {
	if n == nil {
		return "nothing"
	}
	switch n.Kind {
	case yaml.ScalarNode:
		if n.Tag == "!!null" {
			return "null"
		}
		return "a scalar"
	case yaml.SequenceNode:
		return "a sequence"
	case yaml.MappingNode:
		return "a mapping"
	case yaml.DocumentNode:
		return "a document"
	case yaml.AliasNode:
		return "an alias"
	default:
		return "an unknown node"
	}
}

// Scalar resolves the node and requires it to be a non-null scalar.
func Scalar(n *yaml.Node) (*yaml.Node, error) {
	n = Resolve(n)
	if n == nil || n.Kind != yaml.ScalarNode || n.Tag == "!!null" {
		return nil, typeMismatch(n, "a scalar")
	}
	return n, nil
}

// Sequence resolves the node and requires it to be a sequence.
func Sequence(n *yaml.Node) (*yaml.Node, error) {
	n = Resolve(n)
	if n == nil || n.Kind != yaml.SequenceNode {
		return nil, typeMismatch(n, "a sequence")
	}
	return n, nil
}

// typeMismatch builds a TypeMismatch error describing what was expected
// and what was found, positioned at the offending node.
func typeMismatch(n *yaml.Node, expected string) *errors.ParseError {
	err := errors.New(errors.TypeMismatch, "expected %s, found %s", expected, KindName(n))
	if n != nil {
		err.WithPosition(n.Line, n.Column)
	}
	return err
}
