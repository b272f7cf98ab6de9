// Copyright 2026 The Flowd Authors
// SPDX-License-Identifier: Apache-2.0

package aspect

import (
	"fmt"
	"math/bits"
	"strings"
)

// Aspect classifies one kind of change.
type Aspect uint8

// The declaration order is the canonical order used by Set.Slice and
// by the memento builder when a node has several aspects recorded.
const (
	State Aspect = iota
	DefStatus
	Suspended
	AddRemoveAttr
	AddRemoveNode
	Order
	NodeVariable
	Meter
	Event
	Label
	Limit
	TriggerExpr
	CompleteExpr
	Repeat
	Late
	Today
	Time
	Day
	Cron
	Date
	Zombie
	Flag
	Submittable
	ServerState
	ServerVariable

	count
)

var names = [count]string{
	State:          "state",
	DefStatus:      "defstatus",
	Suspended:      "suspended",
	AddRemoveAttr:  "add_remove_attr",
	AddRemoveNode:  "add_remove_node",
	Order:          "order",
	NodeVariable:   "node_variable",
	Meter:          "meter",
	Event:          "event",
	Label:          "label",
	Limit:          "limit",
	TriggerExpr:    "trigger_expr",
	CompleteExpr:   "complete_expr",
	Repeat:         "repeat",
	Late:           "late",
	Today:          "today",
	Time:           "time",
	Day:            "day",
	Cron:           "cron",
	Date:           "date",
	Zombie:         "zombie",
	Flag:           "flag",
	Submittable:    "submittable",
	ServerState:    "server_state",
	ServerVariable: "server_variable",
}

// All returns every Aspect in canonical order.
func All() []Aspect {
	all := make([]Aspect, count)
	for i := range all {
		all[i] = Aspect(i)
	}
	return all
}

// Valid reports whether a is a member of the enumeration.
func (a Aspect) Valid() bool { return a < count }

// String returns the wire name of the aspect.
func (a Aspect) String() string {
	if !a.Valid() {
		return fmt.Sprintf("aspect(%d)", uint8(a))
	}
	return names[a]
}

// Parse returns the Aspect with the given wire name.
func Parse(name string) (Aspect, error) {
	for i, candidate := range names {
		if candidate == name {
			return Aspect(i), nil
		}
	}
	return 0, fmt.Errorf("unknown aspect %q", name)
}

// MarshalText implements encoding.TextMarshaler.
func (a Aspect) MarshalText() ([]byte, error) {
	if !a.Valid() {
		return nil, fmt.Errorf("cannot marshal invalid aspect %d", uint8(a))
	}
	return []byte(names[a]), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (a *Aspect) UnmarshalText(text []byte) error {
	parsed, err := Parse(string(text))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

// NodeLevel reports whether the aspect describes a change to a node,
// as opposed to server-level state held on the Defs root.
func (a Aspect) NodeLevel() bool {
	return a != ServerState && a != ServerVariable
}

// Set is a set of Aspects. The zero value is empty.
type Set uint32

// Of returns a Set containing the given aspects.
func Of(aspects ...Aspect) Set {
	var s Set
	for _, a := range aspects {
		s = s.With(a)
	}
	return s
}

// With returns s with a added. Adding a member twice has no effect.
func (s Set) With(a Aspect) Set {
	if !a.Valid() {
		return s
	}
	return s | 1<<a
}

// Add adds a to the set in place.
func (s *Set) Add(a Aspect) { *s = s.With(a) }

// Has reports whether a is in the set.
func (s Set) Has(a Aspect) bool {
	return a.Valid() && s&(1<<a) != 0
}

// Union returns the members of s and other.
func (s Set) Union(other Set) Set { return s | other }

// Empty reports whether the set has no members.
func (s Set) Empty() bool { return s == 0 }

// Len returns the number of members.
func (s Set) Len() int { return bits.OnesCount32(uint32(s)) }

// Slice returns the members in canonical order.
func (s Set) Slice() []Aspect {
	members := make([]Aspect, 0, s.Len())
	for a := Aspect(0); a < count; a++ {
		if s.Has(a) {
			members = append(members, a)
		}
	}
	return members
}

// String returns the members joined with "|", or "none".
func (s Set) String() string {
	if s.Empty() {
		return "none"
	}
	members := s.Slice()
	parts := make([]string, len(members))
	for i, a := range members {
		parts[i] = a.String()
	}
	return strings.Join(parts, "|")
}
