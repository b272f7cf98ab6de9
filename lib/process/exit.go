// Copyright 2026 The Flowd Authors
// SPDX-License-Identifier: Apache-2.0

package process

import (
	"errors"
	"fmt"
	"os"
)

// ExitCoder is implemented by errors that carry their own exit code.
// The command has already reported the failure, so Fatal prints
// nothing for them.
type ExitCoder interface {
	ExitCode() int
}

// Fatal writes "error: err" to stderr and exits with code 1, or exits
// silently with the code of an ExitCoder. Use it in main() for errors
// from run(), where the structured logger may not be initialized.
func Fatal(err error) {
	var coder ExitCoder
	if errors.As(err, &coder) {
		os.Exit(coder.ExitCode())
	}
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	os.Exit(1)
}
