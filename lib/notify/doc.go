// Copyright 2026 The Flowd Authors
// SPDX-License-Identifier: Apache-2.0

// Package notify fans change notifications out to observers.
//
// A [Bus] delivers each [Change] to every registered [Observer]
// synchronously, in registration order, on the caller's goroutine. The
// owner of the tree calls [Bus.Notify] while it holds the tree, so no
// two notifications for the same tree are delivered concurrently.
//
// Observers may register or unregister observers, including
// themselves, from inside a notification. Such changes are deferred
// until the outermost Notify returns: an observer registered during
// dispatch does not see the change being dispatched, and an observer
// unregistered during dispatch still receives it.
package notify
