// Copyright 2026 The Flowd Authors
// SPDX-License-Identifier: Apache-2.0

package memento

import (
	"slices"
	"strings"

	"github.com/flowd-project/flowd/lib/defs"
)

// Filter returns the part of compounds a partial replica mirroring
// only the named suites needs. Node compounds outside those suites are
// dropped; root compounds keep server-level mementos and have their
// suite lists narrowed to the named suites. A nil suites list selects
// everything.
func Filter(compounds []Compound, suites []string) []Compound {
	if suites == nil {
		return compounds
	}
	var kept []Compound
	for _, c := range compounds {
		if !c.IsRoot() {
			if slices.Contains(suites, SuiteOf(c.Path)) {
				kept = append(kept, c)
			}
			continue
		}
		narrowed := Compound{Path: c.Path}
		for _, m := range c.Mementos {
			switch m := m.(type) {
			case Suites:
				m = Suites{
					Old:   keepNames(m.Old, suites),
					Order: keepNames(m.Order, suites),
					Added: slices.DeleteFunc(slices.Clone(m.Added), func(n *defs.Node) bool {
						return !slices.Contains(suites, n.Name)
					}),
				}
				if len(m.Added) == 0 && slices.Equal(m.Old, m.Order) {
					continue
				}
				narrowed.Mementos = append(narrowed.Mementos, m)
			case Order:
				m = Order{Old: keepNames(m.Old, suites), New: keepNames(m.New, suites)}
				if slices.Equal(m.Old, m.New) {
					continue
				}
				narrowed.Mementos = append(narrowed.Mementos, m)
			default:
				narrowed.Mementos = append(narrowed.Mementos, m)
			}
		}
		if len(narrowed.Mementos) > 0 {
			kept = append(kept, narrowed)
		}
	}
	return kept
}

// SuiteOf returns the suite name of an absolute node path, or "" for
// the root.
func SuiteOf(path string) string {
	trimmed := strings.TrimPrefix(path, "/")
	suite, _, _ := strings.Cut(trimmed, "/")
	return suite
}

func keepNames(names, suites []string) []string {
	var kept []string
	for _, name := range names {
		if slices.Contains(suites, name) {
			kept = append(kept, name)
		}
	}
	return kept
}
