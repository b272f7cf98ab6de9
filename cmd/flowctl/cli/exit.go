// Copyright 2026 The Flowd Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import "fmt"

// ExitError ends the process with Code and no further output. Commands
// return it when they have already reported the outcome themselves,
// such as a ping that found no server.
type ExitError struct {
	Code int
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("exit code %d", e.Code)
}

// ExitCode returns the code; see process.ExitCoder.
func (e *ExitError) ExitCode() int { return e.Code }
