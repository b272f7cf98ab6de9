// Copyright 2026 The Flowd Authors
// SPDX-License-Identifier: Apache-2.0

package defs

import (
	"fmt"
	"slices"
	"strings"

	"github.com/flowd-project/flowd/lib/aspect"
)

// ValidateName checks a node name: non-empty, starting with a letter,
// digit or underscore, and containing only letters, digits,
// underscores and dots.
func ValidateName(name string) error {
	if name == "" {
		return fmt.Errorf("node name is empty: %w", ErrInvalid)
	}
	for i, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
		case r == '.' && i > 0:
		default:
			return fmt.Errorf("node name %q: character %q not allowed: %w", name, r, ErrInvalid)
		}
	}
	return nil
}

// NewNode returns a detached node of the given kind, queued, with
// submission state when the kind carries it.
func NewNode(kind Kind, name string) *Node {
	node := &Node{Kind: kind, Name: name, Status: StatusQueued, DefStatus: StatusQueued}
	if kind.IsSubmittable() {
		node.Submittable = &Submittable{}
	}
	return node
}

// AddChild attaches a detached node as the last child of n.
func (n *Node) AddChild(t Tracker, child *Node) error {
	if err := checkDetached(child); err != nil {
		return err
	}
	if !n.Kind.canContain(child.Kind) {
		return fmt.Errorf("a %s cannot contain a %s: %w", n.Kind, child.Kind, ErrInvalid)
	}
	if err := ValidateName(child.Name); err != nil {
		return err
	}
	if n.Child(child.Name) != nil {
		return fmt.Errorf("%s/%s: %w", n.AbsPath(), child.Name, ErrExists)
	}
	touch(t, n, aspect.AddRemoveNode)
	n.Children = append(slices.Clone(n.Children), child)
	child.parent = n
	child.defs = nil
	child.linkChildren()
	child.propagateStatus(t)
	return nil
}

// RemoveChild detaches the named child of n.
func (n *Node) RemoveChild(t Tracker, name string) error {
	i := slices.IndexFunc(n.Children, func(c *Node) bool { return c.Name == name })
	if i < 0 {
		return fmt.Errorf("%s/%s: %w", n.AbsPath(), name, ErrNotFound)
	}
	touch(t, n, aspect.AddRemoveNode)
	child := n.Children[i]
	n.Children = slices.Delete(slices.Clone(n.Children), i, i+1)
	child.parent = nil
	if derived := n.derivedStatus(); derived != StatusUnknown && derived != n.Status {
		touch(t, n, aspect.State)
		n.Status = derived
		n.propagateStatus(t)
	}
	return nil
}

// AddSuite attaches a detached suite as the last suite of d.
func (d *Defs) AddSuite(t Tracker, suite *Node) error {
	if err := checkDetached(suite); err != nil {
		return err
	}
	if suite.Kind != KindSuite {
		return fmt.Errorf("only suites may be added to the root, got a %s: %w", suite.Kind, ErrInvalid)
	}
	if err := ValidateName(suite.Name); err != nil {
		return err
	}
	if d.Suite(suite.Name) != nil {
		return fmt.Errorf("/%s: %w", suite.Name, ErrExists)
	}
	touchDefs(t, d, aspect.AddRemoveNode)
	d.Suites = append(slices.Clone(d.Suites), suite)
	suite.parent = nil
	suite.defs = d
	suite.linkChildren()
	return nil
}

// RemoveSuite detaches the named suite from d.
func (d *Defs) RemoveSuite(t Tracker, name string) error {
	i := slices.IndexFunc(d.Suites, func(s *Node) bool { return s.Name == name })
	if i < 0 {
		return fmt.Errorf("/%s: %w", name, ErrNotFound)
	}
	touchDefs(t, d, aspect.AddRemoveNode)
	suite := d.Suites[i]
	d.Suites = slices.Delete(slices.Clone(d.Suites), i, i+1)
	suite.defs = nil
	return nil
}

// Delete removes the node at path from the tree.
func (d *Defs) Delete(t Tracker, path string) error {
	node := d.Find(path)
	if node == nil {
		return fmt.Errorf("%s: %w", path, ErrNotFound)
	}
	if node.parent == nil {
		return d.RemoveSuite(t, node.Name)
	}
	return node.parent.RemoveChild(t, node.Name)
}

func checkDetached(node *Node) error {
	if node == nil {
		return fmt.Errorf("nil node: %w", ErrInvalid)
	}
	if node.parent != nil || node.defs != nil {
		return fmt.Errorf("%s is already attached: %w", node.AbsPath(), ErrInvalid)
	}
	return nil
}

// OrderKind says how Order moves a node among its siblings.
type OrderKind string

const (
	OrderTop    OrderKind = "top"
	OrderBottom OrderKind = "bottom"
	OrderAlpha  OrderKind = "alpha"
	OrderOrder  OrderKind = "order"
	OrderUp     OrderKind = "up"
	OrderDown   OrderKind = "down"
)

// IsKnown reports whether k is one of the defined OrderKind values.
func (k OrderKind) IsKnown() bool {
	switch k {
	case OrderTop, OrderBottom, OrderAlpha, OrderOrder, OrderUp, OrderDown:
		return true
	}
	return false
}

// Order moves the node at path among its siblings. Alpha sorts every
// sibling by name, order sorts in reverse.
func (d *Defs) Order(t Tracker, path string, how OrderKind) error {
	node := d.Find(path)
	if node == nil {
		return fmt.Errorf("%s: %w", path, ErrNotFound)
	}
	if node.parent == nil {
		reordered, err := reorder(d.Suites, node, how)
		if err != nil || reordered == nil {
			return err
		}
		touchDefs(t, d, aspect.Order)
		d.Suites = reordered
		return nil
	}
	parent := node.parent
	reordered, err := reorder(parent.Children, node, how)
	if err != nil || reordered == nil {
		return err
	}
	touch(t, parent, aspect.Order)
	parent.Children = reordered
	return nil
}

// reorder returns the new sibling order, or nil when nothing moves.
func reorder(siblings []*Node, node *Node, how OrderKind) ([]*Node, error) {
	i := slices.Index(siblings, node)
	if i < 0 {
		return nil, fmt.Errorf("%s: %w", node.AbsPath(), ErrNotFound)
	}
	next := slices.Clone(siblings)
	switch how {
	case OrderTop:
		next = slices.Insert(slices.Delete(next, i, i+1), 0, node)
	case OrderBottom:
		next = append(slices.Delete(next, i, i+1), node)
	case OrderUp:
		if i > 0 {
			next[i-1], next[i] = next[i], next[i-1]
		}
	case OrderDown:
		if i < len(next)-1 {
			next[i], next[i+1] = next[i+1], next[i]
		}
	case OrderAlpha:
		slices.SortStableFunc(next, func(a, b *Node) int {
			return strings.Compare(strings.ToLower(a.Name), strings.ToLower(b.Name))
		})
	case OrderOrder:
		slices.SortStableFunc(next, func(a, b *Node) int {
			return strings.Compare(strings.ToLower(b.Name), strings.ToLower(a.Name))
		})
	default:
		return nil, fmt.Errorf("order %q: %w", how, ErrInvalid)
	}
	if slices.Equal(next, siblings) {
		return nil, nil
	}
	return next, nil
}
