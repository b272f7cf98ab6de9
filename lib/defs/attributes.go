// Copyright 2026 The Flowd Authors
// SPDX-License-Identifier: Apache-2.0

package defs

import "slices"

// Variable is a name/value pair. Node variables are inherited by
// descendants; server variables are visible to every node.
type Variable struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// Label is a free-form annotation that jobs update while running.
// Value is the defined text; NewValue is the last value a job set.
type Label struct {
	Name     string `json:"name"`
	Value    string `json:"value"`
	NewValue string `json:"new_value,omitempty"`
}

// Event is a boolean signal raised by a job.
type Event struct {
	Name    string `json:"name"`
	Value   bool   `json:"value,omitempty"`
	Initial bool   `json:"initial,omitempty"`
}

// Meter is a bounded integer progress counter.
type Meter struct {
	Name      string `json:"name"`
	Min       int    `json:"min"`
	Max       int    `json:"max"`
	Threshold int    `json:"threshold,omitempty"`
	Value     int    `json:"value"`
}

// Limit bounds how many tasks consuming it may be active at once.
// Paths lists the tasks currently holding a token.
type Limit struct {
	Name  string   `json:"name"`
	Max   int      `json:"max"`
	Value int      `json:"value,omitempty"`
	Paths []string `json:"paths,omitempty"`
}

// Expression is a trigger or complete expression. The expression
// language is evaluated elsewhere; this package only stores the text
// and whether the dependency has been freed by an operator.
type Expression struct {
	Expr string `json:"expr"`
	Free bool   `json:"free,omitempty"`
}

// Repeat makes a container or task run repeatedly over a sequence.
// Kind is one of "integer", "date", "enumerated", "string" or "day".
// Items holds the values for enumerated and string repeats.
type Repeat struct {
	Kind  string   `json:"kind"`
	Name  string   `json:"name"`
	Start int      `json:"start,omitempty"`
	End   int      `json:"end,omitempty"`
	Step  int      `json:"step,omitempty"`
	Items []string `json:"items,omitempty"`
	Index int      `json:"index,omitempty"`
}

// Late holds the lateness thresholds for a task and whether they were
// exceeded during the current run.
type Late struct {
	Submitted string `json:"submitted,omitempty"`
	Active    string `json:"active,omitempty"`
	Complete  string `json:"complete,omitempty"`
	IsLate    bool   `json:"is_late,omitempty"`
}

// TimeDependency is one calendar dependency: a today, time, day, date
// or cron specification. Spec is stored as written; Free is set when
// the dependency has been satisfied or freed by an operator.
type TimeDependency struct {
	Spec string `json:"spec"`
	Free bool   `json:"free,omitempty"`
}

// Zombie describes how the server treats jobs that talk to it from a
// stale or duplicate process.
type Zombie struct {
	Type     string `json:"type"`
	Action   string `json:"action"`
	Lifetime int    `json:"lifetime,omitempty"`
}

// Attributes is the ordered attribute set of a node.
type Attributes struct {
	Variables []Variable       `json:"variables,omitempty"`
	Labels    []Label          `json:"labels,omitempty"`
	Events    []Event          `json:"events,omitempty"`
	Meters    []Meter          `json:"meters,omitempty"`
	Limits    []Limit          `json:"limits,omitempty"`
	Trigger   *Expression      `json:"trigger,omitempty"`
	Complete  *Expression      `json:"complete,omitempty"`
	Repeat    *Repeat          `json:"repeat,omitempty"`
	Late      *Late            `json:"late,omitempty"`
	Todays    []TimeDependency `json:"todays,omitempty"`
	Times     []TimeDependency `json:"times,omitempty"`
	Days      []TimeDependency `json:"days,omitempty"`
	Dates     []TimeDependency `json:"dates,omitempty"`
	Crons     []TimeDependency `json:"crons,omitempty"`
	Zombies   []Zombie         `json:"zombies,omitempty"`
}

// Empty reports whether no attribute is set.
func (a *Attributes) Empty() bool {
	return len(a.Variables) == 0 && len(a.Labels) == 0 && len(a.Events) == 0 &&
		len(a.Meters) == 0 && len(a.Limits) == 0 && a.Trigger == nil &&
		a.Complete == nil && a.Repeat == nil && a.Late == nil &&
		len(a.Todays) == 0 && len(a.Times) == 0 && len(a.Days) == 0 &&
		len(a.Dates) == 0 && len(a.Crons) == 0 && len(a.Zombies) == 0
}

// Clone returns a deep copy of a.
func (a Attributes) Clone() Attributes {
	clone := Attributes{
		Variables: slices.Clone(a.Variables),
		Labels:    slices.Clone(a.Labels),
		Events:    slices.Clone(a.Events),
		Meters:    slices.Clone(a.Meters),
		Limits:    CloneLimits(a.Limits),
		Trigger:   CloneExpression(a.Trigger),
		Complete:  CloneExpression(a.Complete),
		Repeat:    CloneRepeat(a.Repeat),
		Todays:    slices.Clone(a.Todays),
		Times:     slices.Clone(a.Times),
		Days:      slices.Clone(a.Days),
		Dates:     slices.Clone(a.Dates),
		Crons:     slices.Clone(a.Crons),
		Zombies:   slices.Clone(a.Zombies),
	}
	if a.Late != nil {
		late := *a.Late
		clone.Late = &late
	}
	return clone
}

// CloneLimits returns a deep copy of limits.
func CloneLimits(limits []Limit) []Limit {
	if limits == nil {
		return nil
	}
	clone := make([]Limit, len(limits))
	for i, limit := range limits {
		limit.Paths = slices.Clone(limit.Paths)
		clone[i] = limit
	}
	return clone
}

// CloneExpression returns a copy of e, or nil.
func CloneExpression(e *Expression) *Expression {
	if e == nil {
		return nil
	}
	clone := *e
	return &clone
}

// CloneRepeat returns a deep copy of r, or nil.
func CloneRepeat(r *Repeat) *Repeat {
	if r == nil {
		return nil
	}
	clone := *r
	clone.Items = slices.Clone(r.Items)
	return &clone
}

// CloneLate returns a copy of l, or nil.
func CloneLate(l *Late) *Late {
	if l == nil {
		return nil
	}
	clone := *l
	return &clone
}

// Submittable is the job-submission state carried by tasks and
// aliases.
type Submittable struct {
	TryNo         int    `json:"try_no,omitempty"`
	ProcessID     string `json:"process_id,omitempty"`
	JobsPassword  string `json:"jobs_password,omitempty"`
	AbortedReason string `json:"aborted_reason,omitempty"`
}

// CloneSubmittable returns a copy of s, or nil.
func CloneSubmittable(s *Submittable) *Submittable {
	if s == nil {
		return nil
	}
	clone := *s
	return &clone
}

func findVariable(variables []Variable, name string) int {
	return slices.IndexFunc(variables, func(v Variable) bool { return v.Name == name })
}
