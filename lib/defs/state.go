// Copyright 2026 The Flowd Authors
// SPDX-License-Identifier: Apache-2.0

package defs

import "slices"

// NodeState is a detached copy of one node's own state. Children are
// held by reference: a NodeState records which nodes were children and
// in what order, not their contents.
type NodeState struct {
	Status      Status
	DefStatus   Status
	Suspended   bool
	Flags       Flags
	Attributes  Attributes
	Submittable *Submittable
	Children    []*Node
}

// Capture returns a copy of n's current state.
func (n *Node) Capture() NodeState {
	return NodeState{
		Status:      n.Status,
		DefStatus:   n.DefStatus,
		Suspended:   n.Suspended,
		Flags:       n.Flags,
		Attributes:  n.Attributes.Clone(),
		Submittable: CloneSubmittable(n.Submittable),
		Children:    slices.Clone(n.Children),
	}
}

// Restore sets n's state back to s and relinks the restored children.
// Restoring every touched node in reverse touch order undoes a
// command.
func (n *Node) Restore(s NodeState) {
	n.Status = s.Status
	n.DefStatus = s.DefStatus
	n.Suspended = s.Suspended
	n.Flags = s.Flags
	n.Attributes = s.Attributes.Clone()
	n.Submittable = CloneSubmittable(s.Submittable)
	n.ReplaceChildren(slices.Clone(s.Children))
}

// DefsState is a detached copy of the Defs root's own state.
type DefsState struct {
	State     ServerState
	Variables []Variable
	Suites    []*Node
}

// Capture returns a copy of d's root-level state.
func (d *Defs) Capture() DefsState {
	return DefsState{
		State:     d.State,
		Variables: slices.Clone(d.Variables),
		Suites:    slices.Clone(d.Suites),
	}
}

// Restore sets d's root-level state back to s.
func (d *Defs) Restore(s DefsState) {
	d.State = s.State
	d.Variables = slices.Clone(s.Variables)
	d.ReplaceSuites(slices.Clone(s.Suites))
}
