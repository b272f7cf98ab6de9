// Copyright 2026 The Flowd Authors
// SPDX-License-Identifier: Apache-2.0

package command

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/flowd-project/flowd/lib/authgate"
	"github.com/flowd-project/flowd/lib/codec"
	"github.com/flowd-project/flowd/lib/defs"
)

// Command is a decoded request.
type Command interface {
	authgate.Command

	// setUser records the identity the server authenticated.
	setUser(user string)

	// validate checks the decoded fields.
	validate() error
}

// Mutation is a command that changes the tree.
type Mutation interface {
	Command

	// Apply performs the change, reporting every touched node to t.
	// Apply may fail part way; the caller rolls back using t.
	Apply(d *defs.Defs, t defs.Tracker) error
}

// Query is a command that reads the tree. The result must not share
// memory with d.
type Query interface {
	Command
	Query(d *defs.Defs) (any, error)
}

// Control is the server surface Admin commands act on.
type Control interface {
	ReloadAccessList() error
	DumpAccessList() string
}

// Admin is a command that acts on the server rather than the tree.
type Admin interface {
	Command
	Run(c Control) (any, error)
}

// header carries the fields every command has.
type header struct {
	Action string `cbor:"action"`
	user   string
}

// Name returns the action name.
func (h *header) Name() string { return h.Action }

// User returns the authenticated user.
func (h *header) User() string { return h.user }

func (h *header) setUser(user string) { h.user = user }

// registry maps action names to constructors of empty commands.
var registry = map[string]func() Command{
	ActionGet:            func() Command { return &Get{} },
	ActionWhitelist:      func() Command { return &Whitelist{} },
	ActionReloadList:     func() Command { return &ReloadWhitelist{} },
	ActionSuspend:        func() Command { return &Suspend{} },
	ActionResume:         func() Command { return &Resume{} },
	ActionForce:          func() Command { return &Force{} },
	ActionAbort:          func() Command { return &Abort{} },
	ActionRequeue:        func() Command { return &Requeue{} },
	ActionFreeDep:        func() Command { return &FreeDep{} },
	ActionDelete:         func() Command { return &Delete{} },
	ActionOrder:          func() Command { return &Order{} },
	ActionAlter:          func() Command { return &Alter{} },
	ActionLoad:           func() Command { return &Load{} },
	ActionServerState:    func() Command { return &ServerState{} },
	ActionServerVariable: func() Command { return &ServerVariable{} },
	ActionSubscribe:      func() Command { return &Subscribe{} },
}

// Actions returns every action name Decode accepts.
func Actions() []string {
	actions := make([]string, 0, len(registry))
	for action := range registry {
		actions = append(actions, action)
	}
	return actions
}

// Decode decodes a raw request and attributes it to user.
func Decode(raw []byte, user string) (Command, error) {
	var head header
	if err := codec.Unmarshal(raw, &head); err != nil {
		return nil, fmt.Errorf("decoding command: %w", err)
	}
	construct, ok := registry[head.Action]
	if !ok {
		return nil, fmt.Errorf("unknown command %q", head.Action)
	}
	cmd := construct()
	if err := codec.Unmarshal(raw, cmd); err != nil {
		return nil, fmt.Errorf("decoding %s: %w", head.Action, err)
	}
	if err := cmd.validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", head.Action, err)
	}
	cmd.setUser(user)
	return cmd, nil
}

// Prepare validates a command built in-process and attributes it to
// user, as Decode does for a received one.
func Prepare(cmd Command, user string) error {
	if err := cmd.validate(); err != nil {
		return fmt.Errorf("%s: %w", cmd.Name(), err)
	}
	cmd.setUser(user)
	return nil
}

// Fields returns cmd as a request field map, without the action key,
// for service.ServiceClient.Call.
func Fields(cmd Command) (map[string]any, error) {
	if err := cmd.validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", cmd.Name(), err)
	}
	data, err := codec.Marshal(cmd)
	if err != nil {
		return nil, err
	}
	var fields map[string]any
	if err := codec.Unmarshal(data, &fields); err != nil {
		return nil, err
	}
	delete(fields, "action")
	return fields, nil
}

// sameCommand implements Equals: same concrete type, same user, same
// encoded fields.
func sameCommand(a Command, b authgate.Command) bool {
	other, ok := b.(Command)
	if !ok || fmt.Sprintf("%T", a) != fmt.Sprintf("%T", other) || a.User() != other.User() {
		return false
	}
	left, err := codec.Marshal(a)
	if err != nil {
		return false
	}
	right, err := codec.Marshal(other)
	if err != nil {
		return false
	}
	return bytes.Equal(left, right)
}

// ValidatePath checks that path is a canonical absolute node path.
func ValidatePath(path string) error {
	if path == defs.RootPath {
		return nil
	}
	if !strings.HasPrefix(path, "/") {
		return fmt.Errorf("path %q is not absolute", path)
	}
	for _, segment := range strings.Split(path[1:], "/") {
		if err := defs.ValidateName(segment); err != nil {
			return fmt.Errorf("path %q: %w", path, err)
		}
	}
	return nil
}

func validatePaths(paths []string, min int) error {
	if len(paths) < min {
		return fmt.Errorf("at least %d path(s) required", min)
	}
	for _, path := range paths {
		if err := ValidatePath(path); err != nil {
			return err
		}
	}
	return nil
}

// nodes resolves every path, failing on the first missing one. The
// root path is not a node and is rejected.
func nodes(d *defs.Defs, paths []string) ([]*defs.Node, error) {
	resolved := make([]*defs.Node, 0, len(paths))
	for _, path := range paths {
		node := d.Find(path)
		if node == nil {
			return nil, fmt.Errorf("%s: %w", path, defs.ErrNotFound)
		}
		resolved = append(resolved, node)
	}
	return resolved, nil
}
