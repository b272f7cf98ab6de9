// Copyright 2026 The Flowd Authors
// SPDX-License-Identifier: Apache-2.0

package command

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/flowd-project/flowd/lib/authgate"
	"github.com/flowd-project/flowd/lib/defs"
)

// Action names of node commands.
const (
	ActionSuspend = "suspend"
	ActionResume  = "resume"
	ActionForce   = "force"
	ActionAbort   = "abort"
	ActionRequeue = "requeue"
	ActionFreeDep = "free-dep"
	ActionDelete  = "delete"
	ActionOrder   = "order"
	ActionAlter   = "alter"
)

// nodeCommand is the common shape of commands that act on a list of
// node paths.
type nodeCommand struct {
	header
	Targets []string `cbor:"paths"`
}

func (c *nodeCommand) IsWrite() bool    { return true }
func (c *nodeCommand) Paths() []string  { return c.Targets }
func (c *nodeCommand) validate() error  { return validatePaths(c.Targets, 1) }
func (c *nodeCommand) each(d *defs.Defs, fn func(*defs.Node) error) error {
	resolved, err := nodes(d, c.Targets)
	if err != nil {
		return err
	}
	for _, node := range resolved {
		if err := fn(node); err != nil {
			return err
		}
	}
	return nil
}

// Suspend stops nodes from being scheduled.
type Suspend struct{ nodeCommand }

// NewSuspend returns a suspend command for paths.
func NewSuspend(paths ...string) *Suspend {
	return &Suspend{nodeCommand{header: header{Action: ActionSuspend}, Targets: paths}}
}

func (c *Suspend) Equals(o authgate.Command) bool { return sameCommand(c, o) }

// Apply suspends every target.
func (c *Suspend) Apply(d *defs.Defs, t defs.Tracker) error {
	return c.each(d, func(n *defs.Node) error {
		n.SetSuspended(t, true)
		return nil
	})
}

// Resume undoes Suspend.
type Resume struct{ nodeCommand }

// NewResume returns a resume command for paths.
func NewResume(paths ...string) *Resume {
	return &Resume{nodeCommand{header: header{Action: ActionResume}, Targets: paths}}
}

func (c *Resume) Equals(o authgate.Command) bool { return sameCommand(c, o) }

// Apply resumes every target.
func (c *Resume) Apply(d *defs.Defs, t defs.Tracker) error {
	return c.each(d, func(n *defs.Node) error {
		n.SetSuspended(t, false)
		return nil
	})
}

// Force sets node status directly.
type Force struct {
	nodeCommand
	Status    defs.Status `cbor:"status"`
	Recursive bool        `cbor:"recursive,omitempty"`
}

// NewForce returns a force command.
func NewForce(status defs.Status, recursive bool, paths ...string) *Force {
	return &Force{
		nodeCommand: nodeCommand{header: header{Action: ActionForce}, Targets: paths},
		Status:      status,
		Recursive:   recursive,
	}
}

func (c *Force) Equals(o authgate.Command) bool { return sameCommand(c, o) }

func (c *Force) validate() error {
	if !c.Status.IsKnown() {
		return fmt.Errorf("unknown status %q", c.Status)
	}
	return c.nodeCommand.validate()
}

// Apply forces every target.
func (c *Force) Apply(d *defs.Defs, t defs.Tracker) error {
	return c.each(d, func(n *defs.Node) error {
		n.Force(t, c.Status, c.Recursive)
		return nil
	})
}

// Abort marks tasks aborted with a reason.
type Abort struct {
	nodeCommand
	Reason string `cbor:"reason,omitempty"`
}

// NewAbort returns an abort command.
func NewAbort(reason string, paths ...string) *Abort {
	return &Abort{nodeCommand: nodeCommand{header: header{Action: ActionAbort}, Targets: paths}, Reason: reason}
}

func (c *Abort) Equals(o authgate.Command) bool { return sameCommand(c, o) }

// Apply aborts every target.
func (c *Abort) Apply(d *defs.Defs, t defs.Tracker) error {
	return c.each(d, func(n *defs.Node) error { return n.Abort(t, c.Reason) })
}

// Requeue resets nodes for another run.
type Requeue struct{ nodeCommand }

// NewRequeue returns a requeue command.
func NewRequeue(paths ...string) *Requeue {
	return &Requeue{nodeCommand{header: header{Action: ActionRequeue}, Targets: paths}}
}

func (c *Requeue) Equals(o authgate.Command) bool { return sameCommand(c, o) }

// Apply requeues every target and its descendants.
func (c *Requeue) Apply(d *defs.Defs, t defs.Tracker) error {
	return c.each(d, func(n *defs.Node) error {
		n.Requeue(t)
		return nil
	})
}

// FreeDep releases dependencies. With no selector set the trigger is
// freed.
type FreeDep struct {
	nodeCommand
	Trigger  bool `cbor:"trigger,omitempty"`
	Complete bool `cbor:"complete,omitempty"`
	Time     bool `cbor:"time,omitempty"`
}

// NewFreeDep returns a free-dep command.
func NewFreeDep(opts defs.FreeOptions, paths ...string) *FreeDep {
	return &FreeDep{
		nodeCommand: nodeCommand{header: header{Action: ActionFreeDep}, Targets: paths},
		Trigger:     opts.Trigger,
		Complete:    opts.Complete,
		Time:        opts.Time,
	}
}

func (c *FreeDep) Equals(o authgate.Command) bool { return sameCommand(c, o) }

// Apply frees the selected dependencies on every target.
func (c *FreeDep) Apply(d *defs.Defs, t defs.Tracker) error {
	opts := defs.FreeOptions{Trigger: c.Trigger, Complete: c.Complete, Time: c.Time}
	if opts == (defs.FreeOptions{}) {
		opts.Trigger = true
	}
	return c.each(d, func(n *defs.Node) error {
		n.FreeDependencies(t, opts)
		return nil
	})
}

// Delete removes nodes and their subtrees.
type Delete struct{ nodeCommand }

// NewDelete returns a delete command.
func NewDelete(paths ...string) *Delete {
	return &Delete{nodeCommand{header: header{Action: ActionDelete}, Targets: paths}}
}

func (c *Delete) Equals(o authgate.Command) bool { return sameCommand(c, o) }

func (c *Delete) validate() error {
	for _, path := range c.Targets {
		if path == defs.RootPath {
			return errors.New("the root cannot be deleted")
		}
	}
	return c.nodeCommand.validate()
}

// Apply deletes every target.
func (c *Delete) Apply(d *defs.Defs, t defs.Tracker) error {
	for _, path := range c.Targets {
		if err := d.Delete(t, path); err != nil {
			return err
		}
	}
	return nil
}

// Order moves one node among its siblings.
type Order struct {
	nodeCommand
	How defs.OrderKind `cbor:"how"`
}

// NewOrder returns an order command.
func NewOrder(how defs.OrderKind, path string) *Order {
	return &Order{nodeCommand: nodeCommand{header: header{Action: ActionOrder}, Targets: []string{path}}, How: how}
}

func (c *Order) Equals(o authgate.Command) bool { return sameCommand(c, o) }

func (c *Order) validate() error {
	if len(c.Targets) != 1 {
		return errors.New("order takes exactly one path")
	}
	if !c.How.IsKnown() {
		return fmt.Errorf("unknown order %q", c.How)
	}
	return c.nodeCommand.validate()
}

// Apply reorders the target.
func (c *Order) Apply(d *defs.Defs, t defs.Tracker) error {
	return d.Order(t, c.Targets[0], c.How)
}

// AlterOp is what Alter does to an attribute.
type AlterOp string

const (
	AlterAdd    AlterOp = "add"
	AlterChange AlterOp = "change"
	AlterDelete AlterOp = "delete"
)

// Kinds Alter accepts besides defs.AttrKind values.
const (
	AlterFlag      = "flag"
	AlterDefStatus = "defstatus"
)

// Alter adds, changes or deletes one attribute on nodes.
type Alter struct {
	nodeCommand
	Op    AlterOp `cbor:"op"`
	Kind  string  `cbor:"kind"`
	Item  string  `cbor:"name,omitempty"`
	Value string  `cbor:"value,omitempty"`
}

// NewAlter returns an alter command.
func NewAlter(op AlterOp, kind, name, value string, paths ...string) *Alter {
	return &Alter{
		nodeCommand: nodeCommand{header: header{Action: ActionAlter}, Targets: paths},
		Op:          op,
		Kind:        kind,
		Item:        name,
		Value:       value,
	}
}

func (c *Alter) Equals(o authgate.Command) bool { return sameCommand(c, o) }

func (c *Alter) validate() error {
	switch c.Op {
	case AlterAdd, AlterChange, AlterDelete:
	default:
		return fmt.Errorf("unknown alter operation %q", c.Op)
	}
	switch c.Kind {
	case AlterFlag:
		if c.Op == AlterAdd {
			return errors.New("flags are changed or deleted, not added")
		}
		if _, err := defs.ParseFlag(c.Item); err != nil {
			return err
		}
	case AlterDefStatus:
		if c.Op != AlterChange {
			return errors.New("defstatus can only be changed")
		}
		if _, err := defs.ParseStatus(c.Value); err != nil {
			return err
		}
	default:
		if !defs.AttrKind(c.Kind).IsKnown() {
			return fmt.Errorf("unknown attribute kind %q", c.Kind)
		}
	}
	return c.nodeCommand.validate()
}

// Apply alters every target.
func (c *Alter) Apply(d *defs.Defs, t defs.Tracker) error {
	return c.each(d, func(n *defs.Node) error {
		switch c.Op {
		case AlterAdd:
			return c.add(n, t)
		case AlterChange:
			return c.change(n, t)
		default:
			if c.Kind == AlterFlag {
				flag, _ := defs.ParseFlag(c.Item)
				n.ClearFlag(t, flag)
				return nil
			}
			return n.DeleteAttribute(t, defs.AttrKind(c.Kind), c.Item)
		}
	})
}

func (c *Alter) add(n *defs.Node, t defs.Tracker) error {
	switch kind := defs.AttrKind(c.Kind); kind {
	case defs.AttrVariable:
		if _, exists := n.Variable(c.Item); exists {
			return fmt.Errorf("variable %q on %s: %w", c.Item, n.AbsPath(), defs.ErrExists)
		}
		return n.SetVariable(t, c.Item, c.Value)
	case defs.AttrLabel:
		return n.AddLabel(t, c.Item, c.Value)
	case defs.AttrEvent:
		return n.AddEvent(t, c.Item, c.Value == "set")
	case defs.AttrMeter:
		low, high, err := parseRange(c.Value)
		if err != nil {
			return err
		}
		return n.AddMeter(t, c.Item, low, high)
	case defs.AttrLimit:
		limit, err := strconv.Atoi(c.Value)
		if err != nil {
			return fmt.Errorf("limit value %q: %w", c.Value, defs.ErrInvalid)
		}
		return n.AddLimit(t, c.Item, limit)
	case defs.AttrTrigger:
		n.SetTrigger(t, c.Value)
		return nil
	case defs.AttrComplete:
		n.SetComplete(t, c.Value)
		return nil
	case defs.AttrToday, defs.AttrTime, defs.AttrDay, defs.AttrDate, defs.AttrCron:
		return n.AddTimeDependency(t, kind, c.Value)
	default:
		return fmt.Errorf("cannot add %s: %w", kind, defs.ErrInvalid)
	}
}

func (c *Alter) change(n *defs.Node, t defs.Tracker) error {
	switch c.Kind {
	case AlterFlag:
		flag, _ := defs.ParseFlag(c.Item)
		n.SetFlag(t, flag)
		return nil
	case AlterDefStatus:
		status, _ := defs.ParseStatus(c.Value)
		n.SetDefStatus(t, status)
		return nil
	}
	switch kind := defs.AttrKind(c.Kind); kind {
	case defs.AttrVariable:
		if _, exists := n.Variable(c.Item); !exists {
			return fmt.Errorf("variable %q on %s: %w", c.Item, n.AbsPath(), defs.ErrNotFound)
		}
		return n.SetVariable(t, c.Item, c.Value)
	case defs.AttrLabel:
		return n.SetLabel(t, c.Item, c.Value)
	case defs.AttrEvent:
		switch c.Value {
		case "set", "":
			return n.SetEvent(t, c.Item, true)
		case "clear":
			return n.SetEvent(t, c.Item, false)
		}
		return fmt.Errorf("event value %q, want set or clear: %w", c.Value, defs.ErrInvalid)
	case defs.AttrMeter:
		value, err := strconv.Atoi(c.Value)
		if err != nil {
			return fmt.Errorf("meter value %q: %w", c.Value, defs.ErrInvalid)
		}
		return n.SetMeter(t, c.Item, value)
	case defs.AttrLimit:
		limit, err := strconv.Atoi(c.Value)
		if err != nil {
			return fmt.Errorf("limit value %q: %w", c.Value, defs.ErrInvalid)
		}
		return n.SetLimitMax(t, c.Item, limit)
	case defs.AttrTrigger:
		n.SetTrigger(t, c.Value)
		return nil
	case defs.AttrComplete:
		n.SetComplete(t, c.Value)
		return nil
	default:
		return fmt.Errorf("cannot change %s: %w", kind, defs.ErrInvalid)
	}
}

// parseRange parses a meter range written "min,max".
func parseRange(text string) (int, int, error) {
	lowText, highText, ok := strings.Cut(text, ",")
	if !ok {
		return 0, 0, fmt.Errorf("meter range %q, want min,max: %w", text, defs.ErrInvalid)
	}
	low, err := strconv.Atoi(strings.TrimSpace(lowText))
	if err != nil {
		return 0, 0, fmt.Errorf("meter minimum %q: %w", lowText, defs.ErrInvalid)
	}
	high, err := strconv.Atoi(strings.TrimSpace(highText))
	if err != nil {
		return 0, 0, fmt.Errorf("meter maximum %q: %w", highText, defs.ErrInvalid)
	}
	return low, high, nil
}
