// Copyright 2026 The Flowd Authors
// SPDX-License-Identifier: Apache-2.0

package authgate

import (
	"fmt"

	"github.com/flowd-project/flowd/lib/accesslist"
)

// Command is what the gate needs to know about a command.
type Command interface {
	// Name is the command's verb, used in errors and logs.
	Name() string

	// User is the acting user, resolved from the OS identity of the
	// connecting principal.
	User() string

	// IsWrite reports whether the command mutates the tree.
	IsWrite() bool

	// Paths are the node paths the command targets. A command that
	// targets the whole server returns none.
	Paths() []string

	// Equals reports whether other is the same command with the same
	// arguments, for deduplicating retries.
	Equals(other Command) bool
}

// Server answers access questions from the policy it holds.
type Server interface {
	AuthenticateReadAccess(user string, paths ...string) bool
	AuthenticateWriteAccess(user string, paths ...string) bool
}

// Code classifies an authentication failure.
type Code string

const (
	EmptyUser     Code = "empty_user"
	NoAccess      Code = "no_access"
	NoWriteAccess Code = "no_write_access"
)

// Error is an authentication failure.
type Error struct {
	Code    Code
	User    string
	Command string
}

func (e *Error) Error() string {
	switch e.Code {
	case EmptyUser:
		return "[ authentication failed ] no user name was supplied."
	case NoWriteAccess:
		return fmt.Sprintf("[ authentication failed ] User %s has no *write* access. Please see your administrator.", e.User)
	default:
		return fmt.Sprintf("[ authentication failed ] User '%s' is not allowed any access.", e.User)
	}
}

// Is matches any *Error with the same code.
func (e *Error) Is(target error) bool {
	other, ok := target.(*Error)
	return ok && other.Code == e.Code
}

// Sentinels for errors.Is.
var (
	ErrEmptyUser     = &Error{Code: EmptyUser}
	ErrNoAccess      = &Error{Code: NoAccess}
	ErrNoWriteAccess = &Error{Code: NoWriteAccess}
)

// Authenticate returns nil if cmd may run against server.
func Authenticate(cmd Command, server Server) error {
	user := cmd.User()
	paths := cmd.Paths()
	if user == "" {
		return &Error{Code: EmptyUser, Command: cmd.Name()}
	}
	if !server.AuthenticateReadAccess(user, paths...) {
		return &Error{Code: NoAccess, User: user, Command: cmd.Name()}
	}
	if cmd.IsWrite() && !server.AuthenticateWriteAccess(user, paths...) {
		return &Error{Code: NoWriteAccess, User: user, Command: cmd.Name()}
	}
	return nil
}

// StoreServer answers access questions from an accesslist.Store.
type StoreServer struct {
	Store *accesslist.Store
}

// AuthenticateReadAccess implements Server.
func (s StoreServer) AuthenticateReadAccess(user string, paths ...string) bool {
	return s.Store.Policy().VerifyReadAccessPaths(user, paths)
}

// AuthenticateWriteAccess implements Server.
func (s StoreServer) AuthenticateWriteAccess(user string, paths ...string) bool {
	return s.Store.Policy().VerifyWriteAccessPaths(user, paths)
}
