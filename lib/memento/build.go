// Copyright 2026 The Flowd Authors
// SPDX-License-Identifier: Apache-2.0

package memento

import (
	"slices"

	"github.com/flowd-project/flowd/lib/aspect"
	"github.com/flowd-project/flowd/lib/change"
	"github.com/flowd-project/flowd/lib/defs"
)

// Build packages what rec recorded against d into compounds, one per
// changed path, in first-touch order. Call it after the command has
// finished mutating d and before the lock on d is released.
//
// The returned compounds share nothing with d.
func Build(d *defs.Defs, rec *change.Recorder) []Compound {
	added := addedNodes(d, rec)

	var compounds []Compound
	for _, entry := range rec.Entries() {
		if entry.Defs != nil {
			if c, ok := buildRoot(d, entry.Defs, added); ok {
				compounds = append(compounds, c)
			}
			continue
		}
		node := entry.Node.Node
		if node.Defs() != d || insideAdded(node, added) {
			continue
		}
		if c, ok := buildNode(node, entry.Node, added); ok {
			compounds = append(compounds, c)
		}
	}
	return compounds
}

// addedNodes returns the nodes this command attached: children present
// now that were not present at the parent's first touch.
func addedNodes(d *defs.Defs, rec *change.Recorder) map[*defs.Node]bool {
	added := make(map[*defs.Node]bool)
	if root := rec.DefsChange(); root != nil && root.Aspects.Has(aspect.AddRemoveNode) {
		for _, suite := range d.Suites {
			if !slices.Contains(root.Before.Suites, suite) {
				added[suite] = true
			}
		}
	}
	for _, nc := range rec.Touched() {
		if !nc.Aspects.Has(aspect.AddRemoveNode) {
			continue
		}
		for _, child := range nc.Node.Children {
			if !slices.Contains(nc.Before.Children, child) {
				added[child] = true
			}
		}
	}
	return added
}

func insideAdded(n *defs.Node, added map[*defs.Node]bool) bool {
	for node := n; node != nil; node = node.Parent() {
		if added[node] {
			return true
		}
	}
	return false
}

func buildRoot(d *defs.Defs, dc *change.DefsChange, added map[*defs.Node]bool) (Compound, bool) {
	c := Compound{Path: defs.RootPath}
	before := dc.Before
	for _, a := range dc.Aspects.Slice() {
		switch a {
		case aspect.ServerState:
			if before.State != d.State {
				c.Mementos = append(c.Mementos, ServerState{Old: before.State, New: d.State})
			}
		case aspect.ServerVariable:
			c.Mementos = append(c.Mementos, ServerVariables{
				Old: slices.Clone(before.Variables),
				New: slices.Clone(d.Variables),
			})
		case aspect.AddRemoveNode:
			c.Mementos = append(c.Mementos, Suites{
				Old:   names(before.Suites),
				Order: names(d.Suites),
				Added: cloneAdded(d.Suites, added),
			})
		case aspect.Order:
			c.Mementos = append(c.Mementos, Order{Old: names(before.Suites), New: names(d.Suites)})
		}
	}
	return c, len(c.Mementos) > 0
}

func buildNode(n *defs.Node, nc *change.NodeChange, added map[*defs.Node]bool) (Compound, bool) {
	c := Compound{Path: n.AbsPath()}
	before := &nc.Before
	now := &n.Attributes

	if nc.Aspects.Has(aspect.AddRemoveAttr) {
		c.ClearAttributes = true
		c.Mementos = append(c.Mementos, attributeMementos(&before.Attributes, now)...)
	}

	for _, a := range nc.Aspects.Slice() {
		var m Memento
		switch a {
		case aspect.State:
			if before.Status != n.Status {
				m = State{Old: before.Status, New: n.Status}
			}
		case aspect.DefStatus:
			if before.DefStatus != n.DefStatus {
				m = DefStatus{Old: before.DefStatus, New: n.DefStatus}
			}
		case aspect.Suspended:
			if before.Suspended != n.Suspended {
				m = Suspended{Old: before.Suspended, New: n.Suspended}
			}
		case aspect.Flag:
			if before.Flags != n.Flags {
				m = Flag{Old: before.Flags, New: n.Flags}
			}
		case aspect.Submittable:
			if n.Kind.IsSubmittable() {
				m = Submittable{
					Old: defs.CloneSubmittable(before.Submittable),
					New: defs.CloneSubmittable(n.Submittable),
				}
			}
		case aspect.AddRemoveNode:
			m = Children{
				Old:   names(before.Children),
				Order: names(n.Children),
				Added: cloneAdded(n.Children, added),
			}
		case aspect.Order:
			m = Order{Old: names(before.Children), New: names(n.Children)}
		case aspect.AddRemoveAttr, aspect.ServerState, aspect.ServerVariable:
		default:
			if !c.ClearAttributes {
				m = attributeMemento(a, &before.Attributes, now)
			}
		}
		if m != nil {
			c.Mementos = append(c.Mementos, m)
		}
	}
	return c, len(c.Mementos) > 0 || c.ClearAttributes
}

// attributeMementos re-sends every attribute after a clear. Empty
// attribute classes are omitted; the clear already removed them.
func attributeMementos(before, now *defs.Attributes) []Memento {
	var mementos []Memento
	for _, a := range []aspect.Aspect{
		aspect.NodeVariable, aspect.Label, aspect.Event, aspect.Meter, aspect.Limit,
		aspect.TriggerExpr, aspect.CompleteExpr, aspect.Repeat, aspect.Late,
		aspect.Today, aspect.Time, aspect.Day, aspect.Date, aspect.Cron, aspect.Zombie,
	} {
		if m := attributeMemento(a, before, now); m != nil && !emptyNew(m) {
			mementos = append(mementos, m)
		}
	}
	return mementos
}

// attributeMemento captures one attribute class, or returns nil when a
// is not an attribute aspect.
func attributeMemento(a aspect.Aspect, before, now *defs.Attributes) Memento {
	switch a {
	case aspect.NodeVariable:
		return Variables{Old: slices.Clone(before.Variables), New: slices.Clone(now.Variables)}
	case aspect.Label:
		return Labels{Old: slices.Clone(before.Labels), New: slices.Clone(now.Labels)}
	case aspect.Event:
		return Events{Old: slices.Clone(before.Events), New: slices.Clone(now.Events)}
	case aspect.Meter:
		return Meters{Old: slices.Clone(before.Meters), New: slices.Clone(now.Meters)}
	case aspect.Limit:
		return Limits{Old: defs.CloneLimits(before.Limits), New: defs.CloneLimits(now.Limits)}
	case aspect.TriggerExpr:
		return Trigger{Old: defs.CloneExpression(before.Trigger), New: defs.CloneExpression(now.Trigger)}
	case aspect.CompleteExpr:
		return Complete{Old: defs.CloneExpression(before.Complete), New: defs.CloneExpression(now.Complete)}
	case aspect.Repeat:
		return Repeat{Old: defs.CloneRepeat(before.Repeat), New: defs.CloneRepeat(now.Repeat)}
	case aspect.Late:
		return Late{Old: defs.CloneLate(before.Late), New: defs.CloneLate(now.Late)}
	case aspect.Today:
		return Today{Old: slices.Clone(before.Todays), New: slices.Clone(now.Todays)}
	case aspect.Time:
		return Time{Old: slices.Clone(before.Times), New: slices.Clone(now.Times)}
	case aspect.Day:
		return Day{Old: slices.Clone(before.Days), New: slices.Clone(now.Days)}
	case aspect.Date:
		return Date{Old: slices.Clone(before.Dates), New: slices.Clone(now.Dates)}
	case aspect.Cron:
		return Cron{Old: slices.Clone(before.Crons), New: slices.Clone(now.Crons)}
	case aspect.Zombie:
		return Zombies{Old: slices.Clone(before.Zombies), New: slices.Clone(now.Zombies)}
	}
	return nil
}

func emptyNew(m Memento) bool {
	switch m := m.(type) {
	case Variables:
		return len(m.New) == 0
	case Labels:
		return len(m.New) == 0
	case Events:
		return len(m.New) == 0
	case Meters:
		return len(m.New) == 0
	case Limits:
		return len(m.New) == 0
	case Trigger:
		return m.New == nil
	case Complete:
		return m.New == nil
	case Repeat:
		return m.New == nil
	case Late:
		return m.New == nil
	case Today:
		return len(m.New) == 0
	case Time:
		return len(m.New) == 0
	case Day:
		return len(m.New) == 0
	case Date:
		return len(m.New) == 0
	case Cron:
		return len(m.New) == 0
	case Zombies:
		return len(m.New) == 0
	}
	return false
}

func names(nodes []*defs.Node) []string {
	if len(nodes) == 0 {
		return nil
	}
	out := make([]string, len(nodes))
	for i, node := range nodes {
		out[i] = node.Name
	}
	return out
}

func cloneAdded(nodes []*defs.Node, added map[*defs.Node]bool) []*defs.Node {
	var clones []*defs.Node
	for _, node := range nodes {
		if added[node] {
			clones = append(clones, node.Clone())
		}
	}
	return clones
}
