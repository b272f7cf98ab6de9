// Copyright 2026 The Flowd Authors
// SPDX-License-Identifier: Apache-2.0

// Package clock provides an injectable time source.
//
// flowd uses time in three places: subscribe-stream heartbeats, the
// periodic Defs checkpoint, and journal row timestamps. Each of those
// components takes a Clock rather than calling the time package, so
// tests drive them with Fake and Advance instead of sleeping.
//
//	c := clock.Fake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
//	go server.runCheckpoints(ctx, c)
//	c.WaitForTimers(1)
//	c.Advance(time.Minute)
package clock
