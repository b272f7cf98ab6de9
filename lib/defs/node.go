// Copyright 2026 The Flowd Authors
// SPDX-License-Identifier: Apache-2.0

package defs

import (
	"bytes"
	"fmt"
	"slices"
	"strings"

	"github.com/flowd-project/flowd/lib/codec"
)

// RootPath is the path of the Defs root itself.
const RootPath = "/"

// Node is a suite, family, task or alias.
type Node struct {
	Kind        Kind         `json:"kind"`
	Name        string       `json:"name"`
	Status      Status       `json:"status,omitempty"`
	DefStatus   Status       `json:"defstatus,omitempty"`
	Suspended   bool         `json:"suspended,omitempty"`
	Flags       Flags        `json:"flags,omitempty"`
	Attributes  Attributes   `json:"attributes"`
	Submittable *Submittable `json:"submittable,omitempty"`
	Children    []*Node      `json:"children,omitempty"`

	parent *Node
	defs   *Defs
}

// Defs is the root of the tree: the ordered suites plus server-level
// state.
type Defs struct {
	State     ServerState `json:"server_state"`
	Variables []Variable  `json:"server_variables,omitempty"`
	Suites    []*Node     `json:"suites,omitempty"`
}

// New returns an empty Defs with the server halted.
func New() *Defs {
	return &Defs{State: ServerHalted}
}

// Parent returns the containing node, or nil for a suite or a
// detached node.
func (n *Node) Parent() *Node { return n.parent }

// Defs returns the Defs this node is attached to, or nil if the node
// (or one of its ancestors) has been removed from the tree.
func (n *Node) Defs() *Defs {
	top := n
	for top.parent != nil {
		top = top.parent
	}
	return top.defs
}

// AbsPath returns the node's absolute path, computed from its
// ancestors.
func (n *Node) AbsPath() string {
	var names []string
	for node := n; node != nil; node = node.parent {
		names = append(names, node.Name)
	}
	slices.Reverse(names)
	return "/" + strings.Join(names, "/")
}

// Child returns the direct child with the given name, or nil.
func (n *Node) Child(name string) *Node {
	return findNode(n.Children, name)
}

// IsAncestorOf reports whether n is a proper ancestor of other.
func (n *Node) IsAncestorOf(other *Node) bool {
	for node := other.parent; node != nil; node = node.parent {
		if node == n {
			return true
		}
	}
	return false
}

// Walk calls fn for n and its descendants in depth-first order. When
// fn returns false the node's children are skipped.
func (n *Node) Walk(fn func(*Node) bool) {
	if !fn(n) {
		return
	}
	for _, child := range n.Children {
		child.Walk(fn)
	}
}

// ReplaceChildren installs children as n's children and links them.
// Used when applying structural changes on a replica.
func (n *Node) ReplaceChildren(children []*Node) {
	for _, child := range n.Children {
		if !slices.Contains(children, child) {
			child.parent = nil
		}
	}
	n.Children = children
	n.linkChildren()
}

// ClearAttributes removes every attribute from n.
func (n *Node) ClearAttributes() {
	n.Attributes = Attributes{}
}

// Clone returns a deep copy of the subtree rooted at n. The copy is
// detached.
func (n *Node) Clone() *Node {
	clone := &Node{
		Kind:        n.Kind,
		Name:        n.Name,
		Status:      n.Status,
		DefStatus:   n.DefStatus,
		Suspended:   n.Suspended,
		Flags:       n.Flags,
		Attributes:  n.Attributes.Clone(),
		Submittable: CloneSubmittable(n.Submittable),
	}
	if n.Children != nil {
		clone.Children = make([]*Node, len(n.Children))
		for i, child := range n.Children {
			clone.Children[i] = child.Clone()
		}
		clone.linkChildren()
	}
	return clone
}

func (n *Node) linkChildren() {
	for _, child := range n.Children {
		child.parent = n
		child.defs = nil
		child.linkChildren()
	}
}

// Find returns the node at path, or nil. The root path yields nil;
// callers handle the root separately.
func (d *Defs) Find(path string) *Node {
	if !strings.HasPrefix(path, "/") {
		return nil
	}
	trimmed := strings.Trim(path, "/")
	if trimmed == "" {
		return nil
	}
	names := strings.Split(trimmed, "/")
	node := findNode(d.Suites, names[0])
	for _, name := range names[1:] {
		if node == nil {
			return nil
		}
		node = node.Child(name)
	}
	return node
}

// Suite returns the suite with the given name, or nil.
func (d *Defs) Suite(name string) *Node {
	return findNode(d.Suites, name)
}

// Walk calls fn for every node in depth-first order, suites in their
// defined order. When fn returns false the node's children are
// skipped.
func (d *Defs) Walk(fn func(*Node) bool) {
	for _, suite := range d.Suites {
		suite.Walk(fn)
	}
}

// Variable returns the value of the named server variable.
func (d *Defs) Variable(name string) (string, bool) {
	if i := findVariable(d.Variables, name); i >= 0 {
		return d.Variables[i].Value, true
	}
	return "", false
}

// ReplaceSuites installs suites as the Defs' suites and links them.
func (d *Defs) ReplaceSuites(suites []*Node) {
	for _, suite := range d.Suites {
		if !slices.Contains(suites, suite) {
			suite.defs = nil
		}
	}
	d.Suites = suites
	d.Link()
}

// Link rebuilds every parent link. Call it after decoding a Defs.
func (d *Defs) Link() {
	for _, suite := range d.Suites {
		suite.parent = nil
		suite.defs = d
		suite.linkChildren()
	}
}

// Clone returns a deep copy of d.
func (d *Defs) Clone() *Defs {
	clone := &Defs{
		State:     d.State,
		Variables: slices.Clone(d.Variables),
	}
	if d.Suites != nil {
		clone.Suites = make([]*Node, len(d.Suites))
		for i, suite := range d.Suites {
			clone.Suites[i] = suite.Clone()
		}
	}
	clone.Link()
	return clone
}

// Equal reports whether d and other encode identically.
func (d *Defs) Equal(other *Defs) bool {
	return encodedEqual(d, other)
}

// Equal reports whether the subtrees rooted at n and other encode
// identically. Parent links are not compared.
func (n *Node) Equal(other *Node) bool {
	return encodedEqual(n, other)
}

func encodedEqual(a, b any) bool {
	left, err := codec.Marshal(a)
	if err != nil {
		return false
	}
	right, err := codec.Marshal(b)
	if err != nil {
		return false
	}
	return bytes.Equal(left, right)
}

// Decode decodes a CBOR-encoded Defs and links it.
func Decode(data []byte) (*Defs, error) {
	d := new(Defs)
	if err := codec.Unmarshal(data, d); err != nil {
		return nil, fmt.Errorf("decoding defs: %w", err)
	}
	d.Link()
	return d, nil
}

func findNode(nodes []*Node, name string) *Node {
	for _, node := range nodes {
		if node.Name == name {
			return node
		}
	}
	return nil
}

// Encode returns the CBOR encoding of d.
func Encode(d *Defs) ([]byte, error) {
	return codec.Marshal(d)
}

// CloneSuites returns a deep copy of d holding only the named suites,
// in d's order. A nil names list copies every suite.
func (d *Defs) CloneSuites(names []string) *Defs {
	if names == nil {
		return d.Clone()
	}
	clone := &Defs{
		State:     d.State,
		Variables: slices.Clone(d.Variables),
	}
	for _, suite := range d.Suites {
		if slices.Contains(names, suite.Name) {
			clone.Suites = append(clone.Suites, suite.Clone())
		}
	}
	clone.Link()
	return clone
}
