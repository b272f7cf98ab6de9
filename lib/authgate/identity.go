// Copyright 2026 The Flowd Authors
// SPDX-License-Identifier: Apache-2.0

package authgate

import (
	"fmt"
	"os/user"
	"strconv"
	"sync"
)

var (
	currentOnce sync.Once
	currentName string
	currentErr  error
)

// CurrentUser returns the login name of the user running this process.
// It is resolved once and cached.
func CurrentUser() (string, error) {
	currentOnce.Do(func() {
		u, err := user.Current()
		if err != nil {
			currentErr = fmt.Errorf("could not determine user name: %w", err)
			return
		}
		currentName = u.Username
	})
	return currentName, currentErr
}

var uidNames sync.Map // uint32 -> string

// LookupUID returns the login name for uid, as seen on a peer's
// socket credentials. Successful lookups are cached for the life of
// the process.
func LookupUID(uid uint32) (string, error) {
	if name, ok := uidNames.Load(uid); ok {
		return name.(string), nil
	}
	u, err := user.LookupId(strconv.FormatUint(uint64(uid), 10))
	if err != nil {
		return "", fmt.Errorf("could not determine user name for uid %d: %w", uid, err)
	}
	uidNames.Store(uid, u.Username)
	return u.Username, nil
}
