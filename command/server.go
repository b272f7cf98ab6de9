// Copyright 2026 The Flowd Authors
// SPDX-License-Identifier: Apache-2.0

package command

import (
	"errors"
	"fmt"

	"github.com/flowd-project/flowd/lib/authgate"
	"github.com/flowd-project/flowd/lib/defs"
)

// Action names of query, administrative and server commands.
const (
	ActionGet            = "get"
	ActionWhitelist      = "whitelist"
	ActionReloadList     = "reload-whitelist"
	ActionLoad           = "load"
	ActionServerState    = "server-state"
	ActionServerVariable = "server-variable"
)

// Get reads the tree. With no paths it returns the whole tree.
type Get struct {
	header
	Targets []string `cbor:"paths,omitempty"`
}

// GetResult is the reply to Get. Exactly one field is set.
type GetResult struct {
	Defs  *defs.Defs   `cbor:"defs,omitempty"`
	Nodes []*defs.Node `cbor:"nodes,omitempty"`
}

// NewGet returns a get command.
func NewGet(paths ...string) *Get {
	return &Get{header: header{Action: ActionGet}, Targets: paths}
}

func (c *Get) IsWrite() bool                  { return false }
func (c *Get) Paths() []string                { return c.Targets }
func (c *Get) Equals(o authgate.Command) bool { return sameCommand(c, o) }
func (c *Get) validate() error                { return validatePaths(c.Targets, 0) }

// Query returns deep copies of the requested nodes.
func (c *Get) Query(d *defs.Defs) (any, error) {
	if len(c.Targets) == 0 {
		return &GetResult{Defs: d.Clone()}, nil
	}
	for _, path := range c.Targets {
		if path == defs.RootPath {
			return &GetResult{Defs: d.Clone()}, nil
		}
	}
	resolved, err := nodes(d, c.Targets)
	if err != nil {
		return nil, err
	}
	result := &GetResult{Nodes: make([]*defs.Node, len(resolved))}
	for i, node := range resolved {
		result.Nodes[i] = node.Clone()
	}
	return result, nil
}

// Whitelist returns the access list as text.
type Whitelist struct{ header }

// NewWhitelist returns a whitelist command.
func NewWhitelist() *Whitelist { return &Whitelist{header{Action: ActionWhitelist}} }

func (c *Whitelist) IsWrite() bool                  { return false }
func (c *Whitelist) Paths() []string                { return nil }
func (c *Whitelist) Equals(o authgate.Command) bool { return sameCommand(c, o) }
func (c *Whitelist) validate() error                { return nil }

// Run dumps the current policy.
func (c *Whitelist) Run(ctl Control) (any, error) { return ctl.DumpAccessList(), nil }

// ReloadWhitelist re-reads the access list file.
type ReloadWhitelist struct{ header }

// NewReloadWhitelist returns a reload-whitelist command.
func NewReloadWhitelist() *ReloadWhitelist {
	return &ReloadWhitelist{header{Action: ActionReloadList}}
}

func (c *ReloadWhitelist) IsWrite() bool                  { return true }
func (c *ReloadWhitelist) Paths() []string                { return nil }
func (c *ReloadWhitelist) Equals(o authgate.Command) bool { return sameCommand(c, o) }
func (c *ReloadWhitelist) validate() error                { return nil }

// Run reloads the policy. On failure the previous policy stays.
func (c *ReloadWhitelist) Run(ctl Control) (any, error) {
	if err := ctl.ReloadAccessList(); err != nil {
		return nil, err
	}
	return ctl.DumpAccessList(), nil
}

// Load adds the suites of a JSONC definitions document. Force
// replaces suites that already exist.
type Load struct {
	header
	Definitions string `cbor:"definitions"`
	Force       bool   `cbor:"force,omitempty"`

	parsed *defs.Defs
}

// NewLoad returns a load command for a definitions document.
func NewLoad(definitions []byte, force bool) *Load {
	return &Load{header: header{Action: ActionLoad}, Definitions: string(definitions), Force: force}
}

func (c *Load) IsWrite() bool                  { return true }
func (c *Load) Equals(o authgate.Command) bool { return sameCommand(c, o) }

func (c *Load) validate() error {
	parsed, err := defs.ParseDefinitions([]byte(c.Definitions))
	if err != nil {
		return err
	}
	if len(parsed.Suites) == 0 {
		return errors.New("definitions hold no suites")
	}
	c.parsed = parsed
	return nil
}

// Paths returns the path of every suite being loaded, plus the root
// path when the document also sets server variables.
func (c *Load) Paths() []string {
	if c.parsed == nil {
		return nil
	}
	paths := make([]string, 0, len(c.parsed.Suites)+1)
	for _, suite := range c.parsed.Suites {
		paths = append(paths, "/"+suite.Name)
	}
	if len(c.parsed.Variables) > 0 {
		paths = append(paths, defs.RootPath)
	}
	return paths
}

// Apply attaches copies of the parsed suites and sets the document's
// server variables.
func (c *Load) Apply(d *defs.Defs, t defs.Tracker) error {
	if c.parsed == nil {
		return errors.New("load was not validated")
	}
	for _, suite := range c.parsed.Suites {
		if d.Suite(suite.Name) != nil {
			if !c.Force {
				return fmt.Errorf("/%s: %w", suite.Name, defs.ErrExists)
			}
			if err := d.RemoveSuite(t, suite.Name); err != nil {
				return err
			}
		}
		if err := d.AddSuite(t, suite.Clone()); err != nil {
			return err
		}
	}
	for _, variable := range c.parsed.Variables {
		if err := d.SetServerVariable(t, variable.Name, variable.Value); err != nil {
			return err
		}
	}
	return nil
}

// ServerState changes the scheduling state of the server.
type ServerState struct {
	header
	State defs.ServerState `cbor:"state"`
}

// NewServerState returns a server-state command.
func NewServerState(state defs.ServerState) *ServerState {
	return &ServerState{header: header{Action: ActionServerState}, State: state}
}

func (c *ServerState) IsWrite() bool                  { return true }
func (c *ServerState) Paths() []string                { return nil }
func (c *ServerState) Equals(o authgate.Command) bool { return sameCommand(c, o) }

func (c *ServerState) validate() error {
	if !c.State.IsKnown() {
		return fmt.Errorf("unknown server state %q", c.State)
	}
	return nil
}

// Apply sets the state.
func (c *ServerState) Apply(d *defs.Defs, t defs.Tracker) error {
	d.SetServerState(t, c.State)
	return nil
}

// ServerVariable sets or deletes a server variable.
type ServerVariable struct {
	header
	Delete bool   `cbor:"delete,omitempty"`
	Var    string `cbor:"name"`
	Value  string `cbor:"value,omitempty"`
}

// NewServerVariable returns a command setting name to value.
func NewServerVariable(name, value string) *ServerVariable {
	return &ServerVariable{header: header{Action: ActionServerVariable}, Var: name, Value: value}
}

// NewDeleteServerVariable returns a command deleting name.
func NewDeleteServerVariable(name string) *ServerVariable {
	return &ServerVariable{header: header{Action: ActionServerVariable}, Delete: true, Var: name}
}

func (c *ServerVariable) IsWrite() bool                  { return true }
func (c *ServerVariable) Paths() []string                { return nil }
func (c *ServerVariable) Equals(o authgate.Command) bool { return sameCommand(c, o) }

func (c *ServerVariable) validate() error {
	if c.Var == "" {
		return errors.New("variable name is empty")
	}
	return nil
}

// Apply sets or deletes the variable.
func (c *ServerVariable) Apply(d *defs.Defs, t defs.Tracker) error {
	if c.Delete {
		return d.DeleteServerVariable(t, c.Var)
	}
	return d.SetServerVariable(t, c.Var, c.Value)
}
