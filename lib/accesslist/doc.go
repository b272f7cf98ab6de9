// Copyright 2026 The Flowd Authors
// SPDX-License-Identifier: Apache-2.0

// Package accesslist parses the server's access list and answers
// read and write authorization queries.
//
// The file is line oriented. The first content line is a version of
// the form major.minor.patch, at least 4.4.5. Everything after a '#'
// is a comment. Each further line is one rule:
//
//	4.4.14
//	uid1                 # read/write access to everything
//	-fred                # read-only access to everything
//	-*                   # every user may read everything
//	*                    # every user may read and write everything
//	-fred /suiteX        # fred may read /suiteX only
//	bill /suiteX,/suiteB # bill may read and write two suites
//	-* /open             # every user may read /open
//	joe /                # same as "joe" alone
//
// Rules for the same user are additive: paths accumulate and nothing
// is taken away. Once every user has write access, later rules are
// ignored.
//
// A [Policy] with no rules at all lets everyone read and write.
// Write access implies read access. Path restrictions match by string
// prefix: a user allowed "/suiteX" may reach "/suiteX/task1", and also
// "/suiteXX".
//
// A [Policy] is immutable once parsed and safe for concurrent use.
// [Store] holds the current policy and replaces it atomically on
// reload; [Watcher] reloads it when the file changes on disk.
package accesslist
