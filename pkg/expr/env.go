package expr

import (
	"gopkg.in/yaml.v3"

	"github.com/tombee/actionschema/pkg/errors"
	"github.com/tombee/actionschema/pkg/schema"
)

// Vars is an ordered mapping of names to permissive scalar values, used
// for `env:` and `with:` blocks and for workflow-call inputs.
type Vars = schema.OrderedMap[Value]

// DecodeVars decodes a plain name/value mapping. Values are permissive
// scalars; nested structures fail with TypeMismatch.
func DecodeVars(d *schema.Decoder, n *yaml.Node) (*Vars, error) {
	m, err := d.Mapping(n)
	if err != nil {
		return nil, err
	}
	vars := schema.NewOrderedMap[Value]()
	err = m.Each(func(key string, value *yaml.Node) error {
		v, err := DecodeValue(value)
		if err != nil {
			return err
		}
		vars.Set(key, v)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return vars, nil
}

// Env is an environment block that is either a literal variable mapping
// or a whole-block expression.
type Env struct {
	// Expr is set when the entire block is an expression.
	Expr *Expr

	// Vars holds the literal mapping; nil when Expr is set. An absent
	// block decodes to an empty mapping.
	Vars *Vars
}

// DecodeEnv decodes an environment block: a mapping of variables, or a
// single fenced expression standing in for the whole block.
func DecodeEnv(d *schema.Decoder, n *yaml.Node) (Env, error) {
	n = schema.Resolve(n)
	if schema.IsNull(n) {
		return Env{Vars: schema.NewOrderedMap[Value]()}, nil
	}
	if n.Kind == yaml.ScalarNode {
		e, err := Parse(n.Value)
		if err != nil {
			return Env{}, errors.New(errors.TypeMismatch,
				"expected a mapping or expression, found %q", n.Value).
				WithPosition(n.Line, n.Column)
		}
		return Env{Expr: &e}, nil
	}
	vars, err := DecodeVars(d, n)
	if err != nil {
		return Env{}, err
	}
	return Env{Vars: vars}, nil
}

// IsZero reports whether the block is an empty literal mapping, so that
// re-serialization can omit it.
func (e Env) IsZero() bool {
	return e.Expr == nil && e.Vars.Len() == 0
}

// MarshalYAML renders the literal mapping or the fenced expression.
func (e Env) MarshalYAML() (any, error) {
	if e.Expr != nil {
		return e.Expr.Curly(), nil
	}
	return e.Vars, nil
}
