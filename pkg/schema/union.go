package schema

import (
	"github.com/tombee/actionschema/pkg/errors"
)

// Variant declares one candidate shape of a tagged union. A mapping
// matches the variant when every key in Require is present and no key
// in Forbid is present. Presence is judged on the raw key set, so an
// explicitly-null discriminator still selects its variant.
type Variant struct {
	// Name identifies the variant to the caller and in diagnostics.
	Name string

	// Require lists the discriminator keys that must all be present.
	Require []string

	// Forbid lists keys belonging exclusively to mutually-exclusive
	// variants; any of them being present disqualifies this variant.
	Forbid []string
}

// ResolveVariant selects exactly one variant for the mapping's key set.
//
// Zero matches fail with UnrecognizedShape and more than one match
// fails with AmbiguousShape; both carry the present key set for
// diagnostics. The resolver never guesses: when the format's
// discriminators are disjoint, the ambiguous path indicates malformed
// input rather than a routine case.
func ResolveVariant(m *Mapping, what string, variants ...Variant) (string, error) {
	matched := ""
	for _, v := range variants {
		if !v.matches(m) {
			continue
		}
		// Multiple entries may declare the same variant name to give it
		// alternative discriminator sets; only distinct variants conflict.
		if matched == v.Name {
			continue
		}
		if matched != "" {
			return "", errors.New(errors.AmbiguousShape,
				"%s matches both %q and %q shapes", what, matched, v.Name).
				WithKeys(m.Keys()).
				WithPosition(m.node.Line, m.node.Column)
		}
		matched = v.Name
	}
	if matched == "" {
		return "", errors.New(errors.UnrecognizedShape,
			"%s matches no known shape", what).
			WithKeys(m.Keys()).
			WithPosition(m.node.Line, m.node.Column)
	}
	return matched, nil
}

func (v Variant) matches(m *Mapping) bool {
	for _, key := range v.Require {
		if !m.Has(key) {
			return false
		}
	}
	for _, key := range v.Forbid {
		if m.Has(key) {
			return false
		}
	}
	return true
}
