// Copyright 2026 The Flowd Authors
// SPDX-License-Identifier: Apache-2.0

package change

import (
	"github.com/flowd-project/flowd/lib/aspect"
	"github.com/flowd-project/flowd/lib/defs"
)

// NodeChange is what one command did to one node.
type NodeChange struct {
	// Node is the live node. It may have been detached from the tree
	// by a later change in the same command.
	Node *defs.Node

	// Path is the node's absolute path at first touch.
	Path string

	// Aspects is the set of aspects touched on this node.
	Aspects aspect.Set

	// Before is the node's state captured before its first change.
	Before defs.NodeState
}

// DefsChange is what one command did to the Defs root.
type DefsChange struct {
	Aspects aspect.Set
	Before  defs.DefsState
}

// step is one first-touch in order, either a node or the root.
type step struct {
	node *defs.Node
	root bool
}

// Recorder accumulates changes for one command. The zero value is
// ready to use.
type Recorder struct {
	aspects aspect.Set

	nodes map[*defs.Node]*NodeChange
	root  *DefsChange
	order []step

	depth int
}

var _ defs.Tracker = (*Recorder)(nil)

// New returns an empty Recorder.
func New() *Recorder {
	return &Recorder{}
}

// Clear discards everything recorded. Inside a nest it does nothing,
// so a sub-command's Clear cannot erase the outer command's changes.
func (r *Recorder) Clear() {
	if r.depth > 0 {
		return
	}
	r.aspects = 0
	r.nodes = nil
	r.root = nil
	r.order = nil
}

// Add records an aspect that is not tied to a node. Adding an aspect
// twice records it once.
func (r *Recorder) Add(a aspect.Aspect) {
	r.aspects.Add(a)
}

// Aspects returns every aspect recorded in this session.
func (r *Recorder) Aspects() aspect.Set {
	return r.aspects
}

// Touch implements defs.Tracker.
func (r *Recorder) Touch(n *defs.Node, a aspect.Aspect) {
	r.aspects.Add(a)
	change, ok := r.nodes[n]
	if !ok {
		if r.nodes == nil {
			r.nodes = make(map[*defs.Node]*NodeChange)
		}
		change = &NodeChange{Node: n, Path: n.AbsPath(), Before: n.Capture()}
		r.nodes[n] = change
		r.order = append(r.order, step{node: n})
	}
	change.Aspects.Add(a)
}

// TouchDefs implements defs.Tracker.
func (r *Recorder) TouchDefs(d *defs.Defs, a aspect.Aspect) {
	r.aspects.Add(a)
	if r.root == nil {
		r.root = &DefsChange{Before: d.Capture()}
		r.order = append(r.order, step{root: true})
	}
	r.root.Aspects.Add(a)
}

// Empty reports whether nothing was recorded.
func (r *Recorder) Empty() bool {
	return r.aspects.Empty() && len(r.order) == 0
}

// Touched returns the changed nodes in first-touch order.
func (r *Recorder) Touched() []*NodeChange {
	changes := make([]*NodeChange, 0, len(r.nodes))
	for _, s := range r.order {
		if !s.root {
			changes = append(changes, r.nodes[s.node])
		}
	}
	return changes
}

// Lookup returns the change recorded for n, or nil.
func (r *Recorder) Lookup(n *defs.Node) *NodeChange {
	return r.nodes[n]
}

// DefsChange returns the change recorded for the root, or nil.
func (r *Recorder) DefsChange() *DefsChange {
	return r.root
}

// Entry is one first-touch: exactly one of Node and Defs is set.
type Entry struct {
	Node *NodeChange
	Defs *DefsChange
}

// Entries returns every changed node and the root, if touched, in
// first-touch order.
func (r *Recorder) Entries() []Entry {
	entries := make([]Entry, 0, len(r.order))
	for _, s := range r.order {
		if s.root {
			entries = append(entries, Entry{Defs: r.root})
		} else {
			entries = append(entries, Entry{Node: r.nodes[s.node]})
		}
	}
	return entries
}

// Nest marks the start of a sub-command that shares this session. The
// returned function ends the nest.
func (r *Recorder) Nest() (end func()) {
	r.depth++
	ended := false
	return func() {
		if !ended {
			ended = true
			r.depth--
		}
	}
}

// Nested reports whether a nest is open.
func (r *Recorder) Nested() bool {
	return r.depth > 0
}

// Scoped returns a new, independent Recorder. Changes recorded on it
// are not seen by r.
func (r *Recorder) Scoped() *Recorder {
	return New()
}

// Rollback restores every captured state in reverse first-touch order,
// undoing the command's changes to d. The recorder is cleared
// afterwards.
func (r *Recorder) Rollback(d *defs.Defs) {
	for i := len(r.order) - 1; i >= 0; i-- {
		s := r.order[i]
		if s.root {
			d.Restore(r.root.Before)
			continue
		}
		change := r.nodes[s.node]
		change.Node.Restore(change.Before)
	}
	depth := r.depth
	r.depth = 0
	r.Clear()
	r.depth = depth
}
