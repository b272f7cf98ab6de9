// Copyright 2026 The Flowd Authors
// SPDX-License-Identifier: Apache-2.0

// Package aspect defines the closed set of change classifications.
//
// Every mutation of a Defs tree is classified by the Aspect it
// touches: a status transition is [State], adding or deleting any
// attribute is [AddRemoveAttr], a change to a server variable is
// [ServerVariable], and so on. The change recorder collects Aspects
// while a command runs; the memento builder turns each recorded Aspect
// into exactly one memento kind; observers receive the Aspects that a
// compound memento represented.
//
// Aspects are plain values. A [Set] is a bitset over them.
package aspect
