// Copyright 2026 The Flowd Authors
// SPDX-License-Identifier: Apache-2.0

package defs

import (
	"fmt"
	"strings"
)

// Kind is the concrete type of a node.
type Kind string

const (
	KindSuite  Kind = "suite"
	KindFamily Kind = "family"
	KindTask   Kind = "task"
	KindAlias  Kind = "alias"
)

// IsKnown reports whether k is one of the defined Kind values.
func (k Kind) IsKnown() bool {
	switch k {
	case KindSuite, KindFamily, KindTask, KindAlias:
		return true
	}
	return false
}

// IsSubmittable reports whether nodes of this kind run jobs and carry
// submission state.
func (k Kind) IsSubmittable() bool {
	return k == KindTask || k == KindAlias
}

// canContain reports whether a node of kind parent may hold a child of
// kind child. Suites only appear at the top level of a Defs.
func (k Kind) canContain(child Kind) bool {
	switch k {
	case KindSuite, KindFamily:
		return child == KindFamily || child == KindTask
	case KindTask:
		return child == KindAlias
	}
	return false
}

// Status is the execution state of a node.
type Status string

const (
	StatusUnknown   Status = "unknown"
	StatusQueued    Status = "queued"
	StatusSubmitted Status = "submitted"
	StatusRunning   Status = "running"
	StatusComplete  Status = "complete"
	StatusAborted   Status = "aborted"
)

// IsKnown reports whether s is one of the defined Status values.
func (s Status) IsKnown() bool {
	switch s {
	case StatusUnknown, StatusQueued, StatusSubmitted, StatusRunning, StatusComplete, StatusAborted:
		return true
	}
	return false
}

// rank orders statuses by significance when a container's status is
// derived from its children. The most significant child wins.
func (s Status) rank() int {
	switch s {
	case StatusAborted:
		return 5
	case StatusRunning:
		return 4
	case StatusSubmitted:
		return 3
	case StatusQueued:
		return 2
	case StatusComplete:
		return 1
	}
	return 0
}

// ParseStatus returns the Status named by s.
func ParseStatus(s string) (Status, error) {
	status := Status(strings.ToLower(s))
	if !status.IsKnown() {
		return "", fmt.Errorf("unknown status %q", s)
	}
	return status, nil
}

// ServerState is the scheduling state of the server as a whole.
type ServerState string

const (
	ServerHalted   ServerState = "halted"
	ServerShutdown ServerState = "shutdown"
	ServerRunning  ServerState = "running"
)

// IsKnown reports whether s is one of the defined ServerState values.
func (s ServerState) IsKnown() bool {
	switch s {
	case ServerHalted, ServerShutdown, ServerRunning:
		return true
	}
	return false
}

// ParseServerState returns the ServerState named by s.
func ParseServerState(s string) (ServerState, error) {
	state := ServerState(strings.ToLower(s))
	if !state.IsKnown() {
		return "", fmt.Errorf("unknown server state %q", s)
	}
	return state, nil
}

// Flag is one bit of a node's flag set. Flags are advisory markers
// shown to operators; they do not drive scheduling.
type Flag uint32

const (
	FlagForceAbort Flag = 1 << iota
	FlagUserEdit
	FlagTaskAborted
	FlagEditFailed
	FlagJobcmdFailed
	FlagNoScript
	FlagKilled
	FlagLate
	FlagMessage
	FlagByRule
	FlagQueueLimit
	FlagWaitForDependency
	FlagZombie
	FlagArchived
)

var flagNames = []struct {
	flag Flag
	name string
}{
	{FlagForceAbort, "force_abort"},
	{FlagUserEdit, "user_edit"},
	{FlagTaskAborted, "task_aborted"},
	{FlagEditFailed, "edit_failed"},
	{FlagJobcmdFailed, "jobcmd_failed"},
	{FlagNoScript, "no_script"},
	{FlagKilled, "killed"},
	{FlagLate, "late"},
	{FlagMessage, "message"},
	{FlagByRule, "by_rule"},
	{FlagQueueLimit, "queue_limit"},
	{FlagWaitForDependency, "wait_for_dependency"},
	{FlagZombie, "zombie"},
	{FlagArchived, "archived"},
}

// Flags is a set of Flag bits.
type Flags uint32

// Has reports whether f is set.
func (fs Flags) Has(f Flag) bool { return uint32(fs)&uint32(f) != 0 }

// With returns fs with f set.
func (fs Flags) With(f Flag) Flags { return Flags(uint32(fs) | uint32(f)) }

// Without returns fs with f cleared.
func (fs Flags) Without(f Flag) Flags { return Flags(uint32(fs) &^ uint32(f)) }

// String returns the set flag names joined with ",".
func (fs Flags) String() string {
	var names []string
	for _, entry := range flagNames {
		if fs.Has(entry.flag) {
			names = append(names, entry.name)
		}
	}
	return strings.Join(names, ",")
}

// ParseFlag returns the Flag named by name.
func ParseFlag(name string) (Flag, error) {
	for _, entry := range flagNames {
		if entry.name == name {
			return entry.flag, nil
		}
	}
	return 0, fmt.Errorf("unknown flag %q", name)
}
