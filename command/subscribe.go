// Copyright 2026 The Flowd Authors
// SPDX-License-Identifier: Apache-2.0

package command

import (
	"fmt"

	"github.com/flowd-project/flowd/lib/authgate"
	"github.com/flowd-project/flowd/lib/defs"
)

// ActionSubscribe opens the change stream. It is served as a stream
// action, never executed.
const ActionSubscribe = "subscribe"

// Subscribe asks for a replica feed of the named suites, or of the
// whole tree when Suites is empty. After is the last sequence the
// caller holds; zero asks for a snapshot.
type Subscribe struct {
	header
	Suites []string `cbor:"suites,omitempty"`
	After  uint64   `cbor:"after,omitempty"`
}

// NewSubscribe returns a subscribe request.
func NewSubscribe(after uint64, suites ...string) *Subscribe {
	return &Subscribe{header: header{Action: ActionSubscribe}, Suites: suites, After: after}
}

func (c *Subscribe) IsWrite() bool                  { return false }
func (c *Subscribe) Equals(o authgate.Command) bool { return sameCommand(c, o) }

func (c *Subscribe) validate() error {
	for _, suite := range c.Suites {
		if err := defs.ValidateName(suite); err != nil {
			return fmt.Errorf("suite %q: %w", suite, err)
		}
	}
	return nil
}

// Paths returns the path of every subscribed suite.
func (c *Subscribe) Paths() []string {
	paths := make([]string, len(c.Suites))
	for i, suite := range c.Suites {
		paths[i] = "/" + suite
	}
	return paths
}

// Filter returns the suite filter for the publisher: nil for the
// whole tree.
func (c *Subscribe) Filter() []string {
	if len(c.Suites) == 0 {
		return nil
	}
	return c.Suites
}
