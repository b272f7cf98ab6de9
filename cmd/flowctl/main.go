// Copyright 2026 The Flowd Authors
// SPDX-License-Identifier: Apache-2.0

// flowctl controls a flowd server: it queries and alters the suite
// tree, manages the access list and follows live changes.
package main

import (
	"os"

	"github.com/flowd-project/flowd/lib/process"
)

func main() {
	if err := run(); err != nil {
		process.Fatal(err)
	}
}

func run() error {
	return root().Execute(os.Args[1:])
}
