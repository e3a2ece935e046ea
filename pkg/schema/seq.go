package schema

import (
	"gopkg.in/yaml.v3"
)

// ScalarOrSeq normalizes the common "single value or list of values"
// shorthand into a canonical slice of element nodes.
//
// A bare scalar or mapping becomes a one-element slice, a sequence
// yields its elements in order, and an explicit null (or absent node)
// yields an empty slice. The normalization is idempotent: a sequence
// passes through unchanged.
func ScalarOrSeq(n *yaml.Node) []*yaml.Node {
	n = Resolve(n)
	if IsNull(n) {
		return nil
	}
	if n.Kind == yaml.SequenceNode {
		return n.Content
	}
	return []*yaml.Node{n}
}
