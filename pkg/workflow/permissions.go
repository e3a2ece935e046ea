package workflow

import (
	"gopkg.in/yaml.v3"

	"github.com/tombee/actionschema/pkg/errors"
	"github.com/tombee/actionschema/pkg/expr"
	"github.com/tombee/actionschema/pkg/schema"
)

// Permission is an access level granted to one token scope.
type Permission string

const (
	PermissionNone  Permission = "none"
	PermissionRead  Permission = "read"
	PermissionWrite Permission = "write"
)

// BasePermission is the blanket form of the permissions block.
type BasePermission string

const (
	// BaseNone is the bare `permissions: {}` form: everything off.
	BaseNone BasePermission = ""

	// BaseReadAll is `permissions: read-all`.
	BaseReadAll BasePermission = "read-all"

	// BaseWriteAll is `permissions: write-all`.
	BaseWriteAll BasePermission = "write-all"
)

// Permissions is a workflow- or job-level permissions block: either a
// blanket base grant or per-scope grants, never both.
type Permissions struct {
	// Base is the blanket grant; meaningful only when Scopes is nil.
	Base BasePermission

	// Scopes grants access per scope in source order.
	Scopes *schema.OrderedMap[Permission]
}

// MarshalYAML renders the blanket scalar or the per-scope mapping.
func (p *Permissions) MarshalYAML() (any, error) {
	if p.Scopes != nil {
		return p.Scopes, nil
	}
	if p.Base == BaseNone {
		return map[string]Permission{}, nil
	}
	return string(p.Base), nil
}

func decodePermissions(d *schema.Decoder, n *yaml.Node) (*Permissions, error) {
	if n == nil {
		return nil, nil
	}
	n = schema.Resolve(n)

	// An explicit null is the same as leaving the key out: the platform
	// default applies. Only the empty mapping revokes everything.
	if schema.IsNull(n) {
		return nil, nil
	}

	if n.Kind == yaml.ScalarNode {
		switch BasePermission(n.Value) {
		case BaseReadAll:
			return &Permissions{Base: BaseReadAll}, nil
		case BaseWriteAll:
			return &Permissions{Base: BaseWriteAll}, nil
		default:
			return nil, errors.New(errors.TypeMismatch,
				"expected read-all, write-all, or a scope mapping, found %q", n.Value).
				WithPosition(n.Line, n.Column)
		}
	}

	m, err := d.Mapping(n)
	if err != nil {
		return nil, err
	}
	// The empty mapping is the canonical "revoke everything" form.
	if m.Len() == 0 {
		return &Permissions{}, nil
	}
	p := &Permissions{Scopes: schema.NewOrderedMap[Permission]()}
	for _, scope := range m.Keys() {
		value := m.Get(scope)
		if !knownScopes[scope] {
			if err := d.UnknownKey(scope, m.KeyNode(scope)); err != nil {
				return nil, err
			}
			continue
		}
		level, err := expr.DecodeString(value)
		if err != nil {
			return nil, errors.AtKey(err, scope)
		}
		switch Permission(level) {
		case PermissionNone, PermissionRead, PermissionWrite:
			p.Scopes.Set(scope, Permission(level))
		default:
			return nil, errors.AtKey(
				errors.New(errors.TypeMismatch,
					"expected none, read, or write, found %q", level).
					WithPosition(value.Line, value.Column),
				scope)
		}
	}
	return p, nil
}

// knownScopes is the set of token scopes a permissions block may grant.
var knownScopes = map[string]bool{
	"actions":             true,
	"attestations":        true,
	"checks":              true,
	"contents":            true,
	"deployments":         true,
	"discussions":         true,
	"id-token":            true,
	"issues":              true,
	"models":              true,
	"packages":            true,
	"pages":               true,
	"pull-requests":       true,
	"repository-projects": true,
	"security-events":     true,
	"statuses":            true,
}
