// Copyright 2026 The Flowd Authors
// SPDX-License-Identifier: Apache-2.0

package memento

import (
	"errors"
	"fmt"
	"slices"

	"github.com/flowd-project/flowd/lib/defs"
)

// ErrPathNotFound is returned when a compound, or a structural memento
// inside one, names a node the receiving tree does not have.
var ErrPathNotFound = errors.New("path not found")

// Apply applies c to d. It returns the target node, or nil when c
// targets the root.
func (c Compound) Apply(d *defs.Defs) (*defs.Node, error) {
	if c.IsRoot() {
		for _, m := range c.Mementos {
			if err := applyRoot(d, m); err != nil {
				return nil, fmt.Errorf("applying %s to %s: %w", m.kind(), c.Path, err)
			}
		}
		return nil, nil
	}

	node := d.Find(c.Path)
	if node == nil {
		return nil, fmt.Errorf("%s: %w", c.Path, ErrPathNotFound)
	}
	if c.ClearAttributes {
		node.ClearAttributes()
	}
	for _, m := range c.Mementos {
		if err := applyNode(node, m); err != nil {
			return node, fmt.Errorf("applying %s to %s: %w", m.kind(), c.Path, err)
		}
	}
	return node, nil
}

// applyRoot applies m to the Defs root. Node mementos do not apply to
// the root and are ignored.
func applyRoot(d *defs.Defs, m Memento) error {
	switch m := m.(type) {
	case ServerState:
		d.State = m.New
	case ServerVariables:
		d.Variables = slices.Clone(m.New)
	case Suites:
		suites, err := arrange(d.Suites, m.Order, m.Added)
		if err != nil {
			return err
		}
		d.ReplaceSuites(suites)
	case Order:
		suites, err := arrange(d.Suites, m.New, nil)
		if err != nil {
			return err
		}
		d.ReplaceSuites(suites)
	}
	return nil
}

// applyNode applies m to n. Submission state only applies to tasks and
// aliases, children only to kinds that have them, and root mementos
// never apply to a node.
func applyNode(n *defs.Node, m Memento) error {
	attrs := &n.Attributes
	switch m := m.(type) {
	case State:
		n.Status = m.New
	case DefStatus:
		n.DefStatus = m.New
	case Suspended:
		n.Suspended = m.New
	case Flag:
		n.Flags = m.New
	case Variables:
		attrs.Variables = slices.Clone(m.New)
	case Events:
		attrs.Events = slices.Clone(m.New)
	case Meters:
		attrs.Meters = slices.Clone(m.New)
	case Labels:
		attrs.Labels = slices.Clone(m.New)
	case Limits:
		attrs.Limits = defs.CloneLimits(m.New)
	case Trigger:
		attrs.Trigger = defs.CloneExpression(m.New)
	case Complete:
		attrs.Complete = defs.CloneExpression(m.New)
	case Repeat:
		attrs.Repeat = defs.CloneRepeat(m.New)
	case Late:
		attrs.Late = defs.CloneLate(m.New)
	case Today:
		attrs.Todays = slices.Clone(m.New)
	case Time:
		attrs.Times = slices.Clone(m.New)
	case Day:
		attrs.Days = slices.Clone(m.New)
	case Date:
		attrs.Dates = slices.Clone(m.New)
	case Cron:
		attrs.Crons = slices.Clone(m.New)
	case Zombies:
		attrs.Zombies = slices.Clone(m.New)
	case Submittable:
		if n.Kind.IsSubmittable() {
			n.Submittable = defs.CloneSubmittable(m.New)
		}
	case Children:
		if n.Kind == defs.KindAlias {
			return nil
		}
		children, err := arrange(n.Children, m.Order, m.Added)
		if err != nil {
			return err
		}
		n.ReplaceChildren(children)
	case Order:
		if n.Kind == defs.KindAlias {
			return nil
		}
		children, err := arrange(n.Children, m.New, nil)
		if err != nil {
			return err
		}
		n.ReplaceChildren(children)
	case ServerState, ServerVariables, Suites:
	}
	return nil
}

// arrange builds a sibling list in the given order, taking each name
// from added (copied) or else from existing.
func arrange(existing []*defs.Node, order []string, added []*defs.Node) ([]*defs.Node, error) {
	if len(order) == 0 {
		return nil, nil
	}
	arranged := make([]*defs.Node, 0, len(order))
	for _, name := range order {
		if i := slices.IndexFunc(added, func(n *defs.Node) bool { return n.Name == name }); i >= 0 {
			arranged = append(arranged, added[i].Clone())
			continue
		}
		i := slices.IndexFunc(existing, func(n *defs.Node) bool { return n.Name == name })
		if i < 0 {
			return nil, fmt.Errorf("child %q: %w", name, ErrPathNotFound)
		}
		arranged = append(arranged, existing[i])
	}
	return arranged, nil
}
