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

package errors

import (
	"fmt"
	"strings"
)

// Accessor is a single step in a document path: either a mapping key or
// a sequence index.
type Accessor struct {
	Key   string
	Index int
	// IsIndex distinguishes a zero index from a key accessor.
	IsIndex bool
}

// Path is a sequence of accessors from the document root.
type Path []Accessor

// String renders the path in dotted form, e.g. "jobs.test.steps[1].run".
func (p Path) String() string {
	var b strings.Builder
	for i, a := range p {
		if a.IsIndex {
			fmt.Fprintf(&b, "[%d]", a.Index)
			continue
		}
		if i > 0 {
			b.WriteByte('.')
		}
		b.WriteString(a.Key)
	}
	return b.String()
}

// AtKey annotates err with a mapping-key accessor as it propagates
// outward. Non-ParseError values pass through unchanged.
func AtKey(err error, key string) error {
	return prepend(err, Accessor{Key: key})
}

// AtIndex annotates err with a sequence-index accessor as it propagates
// outward. Non-ParseError values pass through unchanged.
func AtIndex(err error, index int) error {
	return prepend(err, Accessor{Index: index, IsIndex: true})
}

func prepend(err error, a Accessor) error {
	if err == nil {
		return nil
	}
	var pe *ParseError
	if !As(err, &pe) {
		return err
	}
	pe.Path = append(Path{a}, pe.Path...)
	return err
}
