// Copyright 2026 The Flowd Authors
// SPDX-License-Identifier: Apache-2.0

package accesslist

import (
	"fmt"
	"os"
	"os/user"
)

// CurrentVersion is written at the top of generated access lists.
const CurrentVersion = "4.4.14"

// CreateWithReadAccess writes an access list at path that gives the
// current OS user read-only access to everything.
func CreateWithReadAccess(path string) error {
	return createFor(path, "-")
}

// CreateWithWriteAccess writes an access list at path that gives the
// current OS user read and write access to everything.
func CreateWithWriteAccess(path string) error {
	return createFor(path, "")
}

func createFor(path, prefix string) error {
	current, err := user.Current()
	if err != nil {
		return fmt.Errorf("resolving current user: %w", err)
	}
	content := fmt.Sprintf("%s\n%s%s\n", CurrentVersion, prefix, current.Username)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return fmt.Errorf("writing access list: %w", err)
	}
	return nil
}
