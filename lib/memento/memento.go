// Copyright 2026 The Flowd Authors
// SPDX-License-Identifier: Apache-2.0

package memento

import (
	"github.com/flowd-project/flowd/lib/aspect"
	"github.com/flowd-project/flowd/lib/defs"
)

// Memento is one captured change. The implementations in this package
// are the only ones.
type Memento interface {
	// Aspect returns the aspect this memento represents.
	Aspect() aspect.Aspect

	// kind returns the wire discriminator.
	kind() string
}

// State is a status transition.
type State struct {
	Old defs.Status `json:"old"`
	New defs.Status `json:"new"`
}

// DefStatus is a change of the status a node requeues to.
type DefStatus struct {
	Old defs.Status `json:"old"`
	New defs.Status `json:"new"`
}

// Suspended is a suspend or resume.
type Suspended struct {
	Old bool `json:"old"`
	New bool `json:"new"`
}

// Flag is a change of the flag set.
type Flag struct {
	Old defs.Flags `json:"old"`
	New defs.Flags `json:"new"`
}

// Variables carries the node's variable list.
type Variables struct {
	Old []defs.Variable `json:"old,omitempty"`
	New []defs.Variable `json:"new,omitempty"`
}

// Events carries the node's event list.
type Events struct {
	Old []defs.Event `json:"old,omitempty"`
	New []defs.Event `json:"new,omitempty"`
}

// Meters carries the node's meter list.
type Meters struct {
	Old []defs.Meter `json:"old,omitempty"`
	New []defs.Meter `json:"new,omitempty"`
}

// Labels carries the node's label list.
type Labels struct {
	Old []defs.Label `json:"old,omitempty"`
	New []defs.Label `json:"new,omitempty"`
}

// Limits carries the node's limit list.
type Limits struct {
	Old []defs.Limit `json:"old,omitempty"`
	New []defs.Limit `json:"new,omitempty"`
}

// Trigger carries the trigger expression.
type Trigger struct {
	Old *defs.Expression `json:"old,omitempty"`
	New *defs.Expression `json:"new,omitempty"`
}

// Complete carries the complete expression.
type Complete struct {
	Old *defs.Expression `json:"old,omitempty"`
	New *defs.Expression `json:"new,omitempty"`
}

// Repeat carries the repeat.
type Repeat struct {
	Old *defs.Repeat `json:"old,omitempty"`
	New *defs.Repeat `json:"new,omitempty"`
}

// Late carries the lateness attribute.
type Late struct {
	Old *defs.Late `json:"old,omitempty"`
	New *defs.Late `json:"new,omitempty"`
}

// Today carries the today dependencies.
type Today struct {
	Old []defs.TimeDependency `json:"old,omitempty"`
	New []defs.TimeDependency `json:"new,omitempty"`
}

// Time carries the time dependencies.
type Time struct {
	Old []defs.TimeDependency `json:"old,omitempty"`
	New []defs.TimeDependency `json:"new,omitempty"`
}

// Day carries the day dependencies.
type Day struct {
	Old []defs.TimeDependency `json:"old,omitempty"`
	New []defs.TimeDependency `json:"new,omitempty"`
}

// Date carries the date dependencies.
type Date struct {
	Old []defs.TimeDependency `json:"old,omitempty"`
	New []defs.TimeDependency `json:"new,omitempty"`
}

// Cron carries the cron dependencies.
type Cron struct {
	Old []defs.TimeDependency `json:"old,omitempty"`
	New []defs.TimeDependency `json:"new,omitempty"`
}

// Zombies carries the zombie handling rules.
type Zombies struct {
	Old []defs.Zombie `json:"old,omitempty"`
	New []defs.Zombie `json:"new,omitempty"`
}

// Submittable carries the submission state of a task or alias.
type Submittable struct {
	Old *defs.Submittable `json:"old,omitempty"`
	New *defs.Submittable `json:"new,omitempty"`
}

// Children is a structural change below a node: Order lists the child
// names after the change, Added holds full copies of the children the
// command created. Every other name in Order refers to a child the
// receiver already has.
type Children struct {
	Old   []string     `json:"old,omitempty"`
	Order []string     `json:"order,omitempty"`
	Added []*defs.Node `json:"added,omitempty"`
}

// Order is a reordering of a node's children, or of the suites when
// sent to the root.
type Order struct {
	Old []string `json:"old,omitempty"`
	New []string `json:"new,omitempty"`
}

// ServerState is a change of the server's scheduling state.
type ServerState struct {
	Old defs.ServerState `json:"old"`
	New defs.ServerState `json:"new"`
}

// ServerVariables carries the server variable list.
type ServerVariables struct {
	Old []defs.Variable `json:"old,omitempty"`
	New []defs.Variable `json:"new,omitempty"`
}

// Suites is a structural change at the root, shaped like Children.
type Suites struct {
	Old   []string     `json:"old,omitempty"`
	Order []string     `json:"order,omitempty"`
	Added []*defs.Node `json:"added,omitempty"`
}

func (State) Aspect() aspect.Aspect           { return aspect.State }
func (DefStatus) Aspect() aspect.Aspect       { return aspect.DefStatus }
func (Suspended) Aspect() aspect.Aspect       { return aspect.Suspended }
func (Flag) Aspect() aspect.Aspect            { return aspect.Flag }
func (Variables) Aspect() aspect.Aspect       { return aspect.NodeVariable }
func (Events) Aspect() aspect.Aspect          { return aspect.Event }
func (Meters) Aspect() aspect.Aspect          { return aspect.Meter }
func (Labels) Aspect() aspect.Aspect          { return aspect.Label }
func (Limits) Aspect() aspect.Aspect          { return aspect.Limit }
func (Trigger) Aspect() aspect.Aspect         { return aspect.TriggerExpr }
func (Complete) Aspect() aspect.Aspect        { return aspect.CompleteExpr }
func (Repeat) Aspect() aspect.Aspect          { return aspect.Repeat }
func (Late) Aspect() aspect.Aspect            { return aspect.Late }
func (Today) Aspect() aspect.Aspect           { return aspect.Today }
func (Time) Aspect() aspect.Aspect            { return aspect.Time }
func (Day) Aspect() aspect.Aspect             { return aspect.Day }
func (Date) Aspect() aspect.Aspect            { return aspect.Date }
func (Cron) Aspect() aspect.Aspect            { return aspect.Cron }
func (Zombies) Aspect() aspect.Aspect         { return aspect.Zombie }
func (Submittable) Aspect() aspect.Aspect     { return aspect.Submittable }
func (Children) Aspect() aspect.Aspect        { return aspect.AddRemoveNode }
func (Order) Aspect() aspect.Aspect           { return aspect.Order }
func (ServerState) Aspect() aspect.Aspect     { return aspect.ServerState }
func (ServerVariables) Aspect() aspect.Aspect { return aspect.ServerVariable }
func (Suites) Aspect() aspect.Aspect          { return aspect.AddRemoveNode }

func (State) kind() string           { return "state" }
func (DefStatus) kind() string       { return "defstatus" }
func (Suspended) kind() string       { return "suspended" }
func (Flag) kind() string            { return "flag" }
func (Variables) kind() string       { return "variables" }
func (Events) kind() string          { return "events" }
func (Meters) kind() string          { return "meters" }
func (Labels) kind() string          { return "labels" }
func (Limits) kind() string          { return "limits" }
func (Trigger) kind() string         { return "trigger" }
func (Complete) kind() string        { return "complete" }
func (Repeat) kind() string          { return "repeat" }
func (Late) kind() string            { return "late" }
func (Today) kind() string           { return "today" }
func (Time) kind() string            { return "time" }
func (Day) kind() string             { return "day" }
func (Date) kind() string            { return "date" }
func (Cron) kind() string            { return "cron" }
func (Zombies) kind() string         { return "zombies" }
func (Submittable) kind() string     { return "submittable" }
func (Children) kind() string        { return "children" }
func (Order) kind() string           { return "order" }
func (ServerState) kind() string     { return "server_state" }
func (ServerVariables) kind() string { return "server_variables" }
func (Suites) kind() string          { return "suites" }
