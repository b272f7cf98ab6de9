// Copyright 2026 The Flowd Authors
// SPDX-License-Identifier: Apache-2.0

package defs

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/tidwall/jsonc"
)

// ParseDefinitions strips JSONC comments and trailing commas from data,
// unmarshals the result into a Defs, fills in default statuses, links
// the tree and validates it.
//
// The input is the JSON form of Defs extended with // line comments,
// /* block comments */, and trailing commas:
//
//	{
//	  "server_variables": [{"name": "FLOWD_HOME", "value": "/var/flowd"}],
//	  "suites": [
//	    {"kind": "suite", "name": "daily", "children": [
//	      {"kind": "task", "name": "fetch"}, // runs first
//	    ]},
//	  ],
//	}
func ParseDefinitions(data []byte) (*Defs, error) {
	stripped := jsonc.ToJSON(data)

	d := New()
	if err := json.Unmarshal(stripped, d); err != nil {
		return nil, fmt.Errorf("parsing definitions: %w", err)
	}
	if d.State == "" {
		d.State = ServerHalted
	}
	d.Walk(func(n *Node) bool {
		applyDefaults(n)
		return true
	})
	d.Link()

	if issues := Validate(d); len(issues) > 0 {
		return nil, fmt.Errorf("invalid definitions:\n  %s", strings.Join(issues, "\n  "))
	}
	return d, nil
}

// ReadDefinitions reads and parses a JSONC definitions file.
func ReadDefinitions(path string) (*Defs, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading definitions: %w", err)
	}
	d, err := ParseDefinitions(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return d, nil
}

func applyDefaults(n *Node) {
	if n.DefStatus == "" || n.DefStatus == StatusUnknown {
		n.DefStatus = StatusQueued
	}
	if n.Status == "" {
		n.Status = n.DefStatus
	}
	if n.Kind.IsSubmittable() && n.Submittable == nil {
		n.Submittable = &Submittable{}
	}
	for i := range n.Attributes.Meters {
		meter := &n.Attributes.Meters[i]
		if meter.Value < meter.Min {
			meter.Value = meter.Min
		}
	}
	for i := range n.Attributes.Events {
		event := &n.Attributes.Events[i]
		event.Value = event.Initial
	}
}

// Validate checks a Defs for structural issues. Returns a list of
// human-readable issue descriptions; an empty list means the tree is
// valid.
//
// Checks include:
//   - the server state is known
//   - every top-level node is a suite, and nothing else is
//   - families and tasks live in suites or families, aliases in tasks
//   - node names are valid and unique among siblings
//   - statuses are known
//   - submission state only appears on tasks and aliases
//   - attribute names are unique per kind and meters have a valid range
func Validate(d *Defs) []string {
	var issues []string
	if !d.State.IsKnown() {
		issues = append(issues, fmt.Sprintf("server_state %q is not a known state", d.State))
	}
	issues = append(issues, duplicateNames("server_variables", d.Variables, func(v Variable) string { return v.Name })...)

	seen := make(map[string]bool, len(d.Suites))
	for index, suite := range d.Suites {
		prefix := fmt.Sprintf("suites[%d]", index)
		if suite.Kind != KindSuite {
			issues = append(issues, fmt.Sprintf("%s %q: top-level node is a %q, want suite", prefix, suite.Name, suite.Kind))
		}
		if seen[suite.Name] {
			issues = append(issues, fmt.Sprintf("%s %q: duplicate suite name", prefix, suite.Name))
		}
		seen[suite.Name] = true
		issues = append(issues, validateNode(suite, prefix)...)
	}
	return issues
}

func validateNode(n *Node, prefix string) []string {
	var issues []string
	if err := ValidateName(n.Name); err != nil {
		issues = append(issues, fmt.Sprintf("%s: %v", prefix, err))
	}
	if !n.Kind.IsKnown() {
		issues = append(issues, fmt.Sprintf("%s %q: unknown kind %q", prefix, n.Name, n.Kind))
	}
	if !n.Status.IsKnown() {
		issues = append(issues, fmt.Sprintf("%s %q: unknown status %q", prefix, n.Name, n.Status))
	}
	if !n.DefStatus.IsKnown() {
		issues = append(issues, fmt.Sprintf("%s %q: unknown defstatus %q", prefix, n.Name, n.DefStatus))
	}
	if n.Submittable != nil && !n.Kind.IsSubmittable() {
		issues = append(issues, fmt.Sprintf("%s %q: a %s cannot carry submission state", prefix, n.Name, n.Kind))
	}

	attrs := &n.Attributes
	issues = append(issues, duplicateNames(prefix+" variables", attrs.Variables, func(v Variable) string { return v.Name })...)
	issues = append(issues, duplicateNames(prefix+" labels", attrs.Labels, func(l Label) string { return l.Name })...)
	issues = append(issues, duplicateNames(prefix+" events", attrs.Events, func(e Event) string { return e.Name })...)
	issues = append(issues, duplicateNames(prefix+" meters", attrs.Meters, func(m Meter) string { return m.Name })...)
	issues = append(issues, duplicateNames(prefix+" limits", attrs.Limits, func(l Limit) string { return l.Name })...)
	for _, meter := range attrs.Meters {
		if meter.Min >= meter.Max {
			issues = append(issues, fmt.Sprintf("%s meter %q: min %d must be below max %d", prefix, meter.Name, meter.Min, meter.Max))
		}
	}

	seen := make(map[string]bool, len(n.Children))
	for index, child := range n.Children {
		childPrefix := fmt.Sprintf("%s.children[%d]", prefix, index)
		if !n.Kind.canContain(child.Kind) {
			issues = append(issues, fmt.Sprintf("%s %q: a %s cannot contain a %s", childPrefix, child.Name, n.Kind, child.Kind))
		}
		if seen[child.Name] {
			issues = append(issues, fmt.Sprintf("%s %q: duplicate sibling name", childPrefix, child.Name))
		}
		seen[child.Name] = true
		issues = append(issues, validateNode(child, childPrefix)...)
	}
	return issues
}

func duplicateNames[T any](label string, items []T, key func(T) string) []string {
	var issues []string
	seen := make(map[string]bool, len(items))
	for _, item := range items {
		name := key(item)
		if seen[name] {
			issues = append(issues, fmt.Sprintf("%s: duplicate name %q", label, name))
		}
		seen[name] = true
	}
	return issues
}
