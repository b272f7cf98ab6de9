// Copyright 2026 The Flowd Authors
// SPDX-License-Identifier: Apache-2.0

package defs

import (
	"errors"
	"fmt"
	"slices"

	"github.com/flowd-project/flowd/lib/aspect"
)

// Tracker is told about every mutation before it happens. The change
// recorder implements it; a nil Tracker records nothing.
type Tracker interface {
	// Touch reports that aspect a of node n is about to change.
	Touch(n *Node, a aspect.Aspect)

	// TouchDefs reports that aspect a of the Defs root is about to
	// change.
	TouchDefs(d *Defs, a aspect.Aspect)
}

var (
	// ErrNotFound is returned when a named node or attribute does not
	// exist.
	ErrNotFound = errors.New("not found")

	// ErrExists is returned when adding a node or attribute whose name
	// is already taken.
	ErrExists = errors.New("already exists")

	// ErrInvalid is returned for arguments that violate the model's
	// rules: bad names, illegal nesting, out-of-range values.
	ErrInvalid = errors.New("invalid argument")
)

func touch(t Tracker, n *Node, a aspect.Aspect) {
	if t != nil {
		t.Touch(n, a)
	}
}

func touchDefs(t Tracker, d *Defs, a aspect.Aspect) {
	if t != nil {
		t.TouchDefs(d, a)
	}
}

// SetStatus changes n's status and re-derives the status of its
// containers. Entering submitted bumps a submittable node's try
// number.
func (n *Node) SetStatus(t Tracker, s Status) {
	n.setStatus(t, s)
	n.propagateStatus(t)
}

func (n *Node) setStatus(t Tracker, s Status) {
	if n.Status == s {
		return
	}
	touch(t, n, aspect.State)
	n.Status = s
	if s == StatusSubmitted && n.Kind.IsSubmittable() {
		touch(t, n, aspect.Submittable)
		if n.Submittable == nil {
			n.Submittable = &Submittable{}
		}
		n.Submittable.TryNo++
	}
}

// propagateStatus re-derives the status of every container above n
// from its children. Aliases do not influence their task.
func (n *Node) propagateStatus(t Tracker) {
	if n.Kind == KindAlias {
		return
	}
	for parent := n.parent; parent != nil; parent = parent.parent {
		derived := parent.derivedStatus()
		if derived == parent.Status {
			return
		}
		touch(t, parent, aspect.State)
		parent.Status = derived
	}
}

func (n *Node) derivedStatus() Status {
	derived := StatusUnknown
	for _, child := range n.Children {
		if child.Kind == KindAlias {
			continue
		}
		if child.Status.rank() > derived.rank() {
			derived = child.Status
		}
	}
	return derived
}

// Force sets n's status, and with recursive every descendant's too,
// then re-derives the containers above n.
func (n *Node) Force(t Tracker, s Status, recursive bool) {
	if recursive {
		n.Walk(func(node *Node) bool {
			node.setStatus(t, s)
			return true
		})
	} else {
		n.setStatus(t, s)
	}
	n.propagateStatus(t)
}

// Abort marks a submittable node aborted with a reason.
func (n *Node) Abort(t Tracker, reason string) error {
	if !n.Kind.IsSubmittable() {
		return fmt.Errorf("%s is a %s: %w", n.AbsPath(), n.Kind, ErrInvalid)
	}
	touch(t, n, aspect.Submittable)
	if n.Submittable == nil {
		n.Submittable = &Submittable{}
	}
	n.Submittable.AbortedReason = reason
	if !n.Flags.Has(FlagTaskAborted) {
		touch(t, n, aspect.Flag)
		n.Flags = n.Flags.With(FlagTaskAborted)
	}
	n.SetStatus(t, StatusAborted)
	return nil
}

// SetDefStatus changes the status n returns to on requeue.
func (n *Node) SetDefStatus(t Tracker, s Status) {
	if n.DefStatus == s {
		return
	}
	touch(t, n, aspect.DefStatus)
	n.DefStatus = s
}

// SetSuspended suspends or resumes n.
func (n *Node) SetSuspended(t Tracker, suspended bool) {
	if n.Suspended == suspended {
		return
	}
	touch(t, n, aspect.Suspended)
	n.Suspended = suspended
}

// SetFlag sets f on n.
func (n *Node) SetFlag(t Tracker, f Flag) {
	if n.Flags.Has(f) {
		return
	}
	touch(t, n, aspect.Flag)
	n.Flags = n.Flags.With(f)
}

// ClearFlag clears f on n.
func (n *Node) ClearFlag(t Tracker, f Flag) {
	if !n.Flags.Has(f) {
		return
	}
	touch(t, n, aspect.Flag)
	n.Flags = n.Flags.Without(f)
}

// Requeue resets n and its descendants for another run: status back to
// the default status, events to their initial values, meters to their
// minimum, labels to their defined text, repeats to the first value,
// freed dependencies re-armed, run flags and submission state cleared.
func (n *Node) Requeue(t Tracker) {
	n.Walk(func(node *Node) bool {
		node.requeue(t)
		return true
	})
	n.propagateStatus(t)
}

const runFlags = Flags(FlagForceAbort | FlagTaskAborted | FlagKilled | FlagLate | FlagByRule | FlagZombie | FlagEditFailed | FlagJobcmdFailed | FlagNoScript)

func (n *Node) requeue(t Tracker) {
	target := n.DefStatus
	if target == "" || target == StatusUnknown || target == StatusComplete {
		target = StatusQueued
	}
	n.setStatus(t, target)

	attrs := &n.Attributes
	for i := range attrs.Events {
		if attrs.Events[i].Value != attrs.Events[i].Initial {
			touch(t, n, aspect.Event)
			attrs.Events[i].Value = attrs.Events[i].Initial
		}
	}
	for i := range attrs.Meters {
		if attrs.Meters[i].Value != attrs.Meters[i].Min {
			touch(t, n, aspect.Meter)
			attrs.Meters[i].Value = attrs.Meters[i].Min
		}
	}
	for i := range attrs.Labels {
		if attrs.Labels[i].NewValue != "" {
			touch(t, n, aspect.Label)
			attrs.Labels[i].NewValue = ""
		}
	}
	if attrs.Repeat != nil && attrs.Repeat.Index != 0 {
		touch(t, n, aspect.Repeat)
		attrs.Repeat.Index = 0
	}
	if attrs.Late != nil && attrs.Late.IsLate {
		touch(t, n, aspect.Late)
		attrs.Late.IsLate = false
	}
	if attrs.Trigger != nil && attrs.Trigger.Free {
		touch(t, n, aspect.TriggerExpr)
		attrs.Trigger.Free = false
	}
	if attrs.Complete != nil && attrs.Complete.Free {
		touch(t, n, aspect.CompleteExpr)
		attrs.Complete.Free = false
	}
	rearm(t, n, aspect.Today, attrs.Todays)
	rearm(t, n, aspect.Time, attrs.Times)
	rearm(t, n, aspect.Day, attrs.Days)
	rearm(t, n, aspect.Date, attrs.Dates)
	rearm(t, n, aspect.Cron, attrs.Crons)

	if cleared := Flags(uint32(n.Flags) &^ uint32(runFlags)); cleared != n.Flags {
		touch(t, n, aspect.Flag)
		n.Flags = cleared
	}
	if n.Submittable != nil && (n.Submittable.TryNo != 0 || n.Submittable.AbortedReason != "" || n.Submittable.ProcessID != "") {
		touch(t, n, aspect.Submittable)
		n.Submittable.TryNo = 0
		n.Submittable.AbortedReason = ""
		n.Submittable.ProcessID = ""
	}
}

func rearm(t Tracker, n *Node, a aspect.Aspect, deps []TimeDependency) {
	for i := range deps {
		if deps[i].Free {
			touch(t, n, a)
			deps[i].Free = false
		}
	}
}

// FreeOptions selects which dependencies FreeDependencies releases.
type FreeOptions struct {
	Trigger  bool
	Complete bool
	Time     bool
}

// FreeDependencies marks the selected dependencies of n as satisfied.
func (n *Node) FreeDependencies(t Tracker, opts FreeOptions) {
	attrs := &n.Attributes
	if opts.Trigger && attrs.Trigger != nil && !attrs.Trigger.Free {
		touch(t, n, aspect.TriggerExpr)
		attrs.Trigger.Free = true
	}
	if opts.Complete && attrs.Complete != nil && !attrs.Complete.Free {
		touch(t, n, aspect.CompleteExpr)
		attrs.Complete.Free = true
	}
	if opts.Time {
		release(t, n, aspect.Today, attrs.Todays)
		release(t, n, aspect.Time, attrs.Times)
		release(t, n, aspect.Day, attrs.Days)
		release(t, n, aspect.Date, attrs.Dates)
		release(t, n, aspect.Cron, attrs.Crons)
	}
}

func release(t Tracker, n *Node, a aspect.Aspect, deps []TimeDependency) {
	for i := range deps {
		if !deps[i].Free {
			touch(t, n, a)
			deps[i].Free = true
		}
	}
}

// SetVariable adds the named variable or changes its value. Adding
// changes the attribute list; changing a value does not.
func (n *Node) SetVariable(t Tracker, name, value string) error {
	if name == "" {
		return fmt.Errorf("variable name is empty: %w", ErrInvalid)
	}
	if i := findVariable(n.Attributes.Variables, name); i >= 0 {
		if n.Attributes.Variables[i].Value == value {
			return nil
		}
		touch(t, n, aspect.NodeVariable)
		n.Attributes.Variables[i].Value = value
		return nil
	}
	touch(t, n, aspect.AddRemoveAttr)
	n.Attributes.Variables = append(n.Attributes.Variables, Variable{Name: name, Value: value})
	return nil
}

// Variable returns the value of n's own variable.
func (n *Node) Variable(name string) (string, bool) {
	if i := findVariable(n.Attributes.Variables, name); i >= 0 {
		return n.Attributes.Variables[i].Value, true
	}
	return "", false
}

// AddLabel adds a label with its defined text.
func (n *Node) AddLabel(t Tracker, name, value string) error {
	if name == "" {
		return fmt.Errorf("label name is empty: %w", ErrInvalid)
	}
	if slices.ContainsFunc(n.Attributes.Labels, func(l Label) bool { return l.Name == name }) {
		return fmt.Errorf("label %q on %s: %w", name, n.AbsPath(), ErrExists)
	}
	touch(t, n, aspect.AddRemoveAttr)
	n.Attributes.Labels = append(n.Attributes.Labels, Label{Name: name, Value: value})
	return nil
}

// SetLabel sets the run-time value of a label.
func (n *Node) SetLabel(t Tracker, name, value string) error {
	i := slices.IndexFunc(n.Attributes.Labels, func(l Label) bool { return l.Name == name })
	if i < 0 {
		return fmt.Errorf("label %q on %s: %w", name, n.AbsPath(), ErrNotFound)
	}
	if n.Attributes.Labels[i].NewValue == value {
		return nil
	}
	touch(t, n, aspect.Label)
	n.Attributes.Labels[i].NewValue = value
	return nil
}

// AddEvent adds an event with its initial value.
func (n *Node) AddEvent(t Tracker, name string, initial bool) error {
	if name == "" {
		return fmt.Errorf("event name is empty: %w", ErrInvalid)
	}
	if slices.ContainsFunc(n.Attributes.Events, func(e Event) bool { return e.Name == name }) {
		return fmt.Errorf("event %q on %s: %w", name, n.AbsPath(), ErrExists)
	}
	touch(t, n, aspect.AddRemoveAttr)
	n.Attributes.Events = append(n.Attributes.Events, Event{Name: name, Value: initial, Initial: initial})
	return nil
}

// SetEvent sets or clears an event.
func (n *Node) SetEvent(t Tracker, name string, value bool) error {
	i := slices.IndexFunc(n.Attributes.Events, func(e Event) bool { return e.Name == name })
	if i < 0 {
		return fmt.Errorf("event %q on %s: %w", name, n.AbsPath(), ErrNotFound)
	}
	if n.Attributes.Events[i].Value == value {
		return nil
	}
	touch(t, n, aspect.Event)
	n.Attributes.Events[i].Value = value
	return nil
}

// AddMeter adds a meter starting at min.
func (n *Node) AddMeter(t Tracker, name string, min, max int) error {
	if name == "" {
		return fmt.Errorf("meter name is empty: %w", ErrInvalid)
	}
	if min >= max {
		return fmt.Errorf("meter %q range [%d, %d]: %w", name, min, max, ErrInvalid)
	}
	if slices.ContainsFunc(n.Attributes.Meters, func(m Meter) bool { return m.Name == name }) {
		return fmt.Errorf("meter %q on %s: %w", name, n.AbsPath(), ErrExists)
	}
	touch(t, n, aspect.AddRemoveAttr)
	n.Attributes.Meters = append(n.Attributes.Meters, Meter{Name: name, Min: min, Max: max, Value: min})
	return nil
}

// SetMeter sets a meter's value, which must lie within its range.
func (n *Node) SetMeter(t Tracker, name string, value int) error {
	i := slices.IndexFunc(n.Attributes.Meters, func(m Meter) bool { return m.Name == name })
	if i < 0 {
		return fmt.Errorf("meter %q on %s: %w", name, n.AbsPath(), ErrNotFound)
	}
	meter := &n.Attributes.Meters[i]
	if value < meter.Min || value > meter.Max {
		return fmt.Errorf("meter %q value %d outside [%d, %d]: %w", name, value, meter.Min, meter.Max, ErrInvalid)
	}
	if meter.Value == value {
		return nil
	}
	touch(t, n, aspect.Meter)
	meter.Value = value
	return nil
}

// AddLimit adds a limit with the given capacity.
func (n *Node) AddLimit(t Tracker, name string, max int) error {
	if name == "" || max < 0 {
		return fmt.Errorf("limit %q max %d: %w", name, max, ErrInvalid)
	}
	if slices.ContainsFunc(n.Attributes.Limits, func(l Limit) bool { return l.Name == name }) {
		return fmt.Errorf("limit %q on %s: %w", name, n.AbsPath(), ErrExists)
	}
	touch(t, n, aspect.AddRemoveAttr)
	n.Attributes.Limits = append(n.Attributes.Limits, Limit{Name: name, Max: max})
	return nil
}

// SetLimitMax changes a limit's capacity.
func (n *Node) SetLimitMax(t Tracker, name string, max int) error {
	i := slices.IndexFunc(n.Attributes.Limits, func(l Limit) bool { return l.Name == name })
	if i < 0 {
		return fmt.Errorf("limit %q on %s: %w", name, n.AbsPath(), ErrNotFound)
	}
	if max < 0 {
		return fmt.Errorf("limit %q max %d: %w", name, max, ErrInvalid)
	}
	if n.Attributes.Limits[i].Max == max {
		return nil
	}
	touch(t, n, aspect.Limit)
	n.Attributes.Limits[i].Max = max
	return nil
}

// SetTrigger replaces the trigger expression. An empty expression
// removes it.
func (n *Node) SetTrigger(t Tracker, expr string) {
	setExpression(t, n, &n.Attributes.Trigger, aspect.TriggerExpr, expr)
}

// SetComplete replaces the complete expression. An empty expression
// removes it.
func (n *Node) SetComplete(t Tracker, expr string) {
	setExpression(t, n, &n.Attributes.Complete, aspect.CompleteExpr, expr)
}

func setExpression(t Tracker, n *Node, slot **Expression, a aspect.Aspect, expr string) {
	current := *slot
	switch {
	case expr == "" && current == nil:
		return
	case expr == "" || current == nil:
		touch(t, n, aspect.AddRemoveAttr)
		if expr == "" {
			*slot = nil
		} else {
			*slot = &Expression{Expr: expr}
		}
	case current.Expr != expr:
		touch(t, n, a)
		*slot = &Expression{Expr: expr}
	}
}

// AddTimeDependency adds a today, time, day, date or cron
// dependency.
func (n *Node) AddTimeDependency(t Tracker, kind AttrKind, spec string) error {
	slot := n.Attributes.timeSlot(kind)
	if slot == nil {
		return fmt.Errorf("%s is not a time dependency: %w", kind, ErrInvalid)
	}
	if spec == "" {
		return fmt.Errorf("empty %s specification: %w", kind, ErrInvalid)
	}
	if slices.ContainsFunc(*slot, func(d TimeDependency) bool { return d.Spec == spec }) {
		return fmt.Errorf("%s %q on %s: %w", kind, spec, n.AbsPath(), ErrExists)
	}
	touch(t, n, aspect.AddRemoveAttr)
	*slot = append(*slot, TimeDependency{Spec: spec})
	return nil
}

func (a *Attributes) timeSlot(kind AttrKind) *[]TimeDependency {
	switch kind {
	case AttrToday:
		return &a.Todays
	case AttrTime:
		return &a.Times
	case AttrDay:
		return &a.Days
	case AttrDate:
		return &a.Dates
	case AttrCron:
		return &a.Crons
	}
	return nil
}

// AttrKind names one class of attribute.
type AttrKind string

const (
	AttrVariable AttrKind = "variable"
	AttrLabel    AttrKind = "label"
	AttrEvent    AttrKind = "event"
	AttrMeter    AttrKind = "meter"
	AttrLimit    AttrKind = "limit"
	AttrTrigger  AttrKind = "trigger"
	AttrComplete AttrKind = "complete"
	AttrRepeat   AttrKind = "repeat"
	AttrLate     AttrKind = "late"
	AttrToday    AttrKind = "today"
	AttrTime     AttrKind = "time"
	AttrDay      AttrKind = "day"
	AttrDate     AttrKind = "date"
	AttrCron     AttrKind = "cron"
	AttrZombie   AttrKind = "zombie"
)

// DeleteAttribute removes the named attribute of the given kind. An
// empty name removes every attribute of that kind. Trigger, complete,
// repeat and late have no name.
func (n *Node) DeleteAttribute(t Tracker, kind AttrKind, name string) error {
	next := n.Attributes.Clone()
	attrs := &next
	var removed bool
	switch kind {
	case AttrVariable:
		attrs.Variables, removed = deleteNamed(attrs.Variables, name, func(v Variable) string { return v.Name })
	case AttrLabel:
		attrs.Labels, removed = deleteNamed(attrs.Labels, name, func(l Label) string { return l.Name })
	case AttrEvent:
		attrs.Events, removed = deleteNamed(attrs.Events, name, func(e Event) string { return e.Name })
	case AttrMeter:
		attrs.Meters, removed = deleteNamed(attrs.Meters, name, func(m Meter) string { return m.Name })
	case AttrLimit:
		attrs.Limits, removed = deleteNamed(attrs.Limits, name, func(l Limit) string { return l.Name })
	case AttrZombie:
		attrs.Zombies, removed = deleteNamed(attrs.Zombies, name, func(z Zombie) string { return z.Type })
	case AttrToday, AttrTime, AttrDay, AttrDate, AttrCron:
		slot := attrs.timeSlot(kind)
		*slot, removed = deleteNamed(*slot, name, func(d TimeDependency) string { return d.Spec })
	case AttrTrigger:
		removed, attrs.Trigger = attrs.Trigger != nil, nil
	case AttrComplete:
		removed, attrs.Complete = attrs.Complete != nil, nil
	case AttrRepeat:
		removed, attrs.Repeat = attrs.Repeat != nil, nil
	case AttrLate:
		removed, attrs.Late = attrs.Late != nil, nil
	default:
		return fmt.Errorf("unknown attribute kind %q: %w", kind, ErrInvalid)
	}
	if !removed {
		if name == "" {
			return nil
		}
		return fmt.Errorf("%s %q on %s: %w", kind, name, n.AbsPath(), ErrNotFound)
	}
	touch(t, n, aspect.AddRemoveAttr)
	n.Attributes = next
	return nil
}

// deleteNamed returns items without the entries matching name, and
// whether anything was removed. items is not modified.
func deleteNamed[T any](items []T, name string, key func(T) string) ([]T, bool) {
	kept := slices.DeleteFunc(slices.Clone(items), func(item T) bool {
		return name == "" || key(item) == name
	})
	if len(kept) == len(items) {
		return items, false
	}
	if len(kept) == 0 {
		kept = nil
	}
	return kept, true
}

// IsKnown reports whether k is one of the defined AttrKind values.
func (k AttrKind) IsKnown() bool {
	switch k {
	case AttrVariable, AttrLabel, AttrEvent, AttrMeter, AttrLimit, AttrTrigger, AttrComplete,
		AttrRepeat, AttrLate, AttrToday, AttrTime, AttrDay, AttrDate, AttrCron, AttrZombie:
		return true
	}
	return false
}

// SetServerState changes the server's scheduling state.
func (d *Defs) SetServerState(t Tracker, s ServerState) {
	if d.State == s {
		return
	}
	touchDefs(t, d, aspect.ServerState)
	d.State = s
}

// SetServerVariable adds or changes a server variable.
func (d *Defs) SetServerVariable(t Tracker, name, value string) error {
	if name == "" {
		return fmt.Errorf("server variable name is empty: %w", ErrInvalid)
	}
	if i := findVariable(d.Variables, name); i >= 0 {
		if d.Variables[i].Value == value {
			return nil
		}
		touchDefs(t, d, aspect.ServerVariable)
		d.Variables[i].Value = value
		return nil
	}
	touchDefs(t, d, aspect.ServerVariable)
	d.Variables = append(d.Variables, Variable{Name: name, Value: value})
	return nil
}

// DeleteServerVariable removes a server variable.
func (d *Defs) DeleteServerVariable(t Tracker, name string) error {
	i := findVariable(d.Variables, name)
	if i < 0 {
		return fmt.Errorf("server variable %q: %w", name, ErrNotFound)
	}
	touchDefs(t, d, aspect.ServerVariable)
	d.Variables = slices.Delete(slices.Clone(d.Variables), i, i+1)
	return nil
}
