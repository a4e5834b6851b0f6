// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package clock provides the time source used by the dispatch loop.
//
// The loop never calls time.Sleep or time.After directly. It holds a
// Clock and waits on Clock.After, which lets tests drive poll cycles
// and error back-off deterministically:
//
//	fake := clock.Fake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
//	loop := node.NewLoop(node.LoopConfig{Clock: fake, ...})
//	go loop.Run(ctx)
//	fake.WaitForTimers(1)          // loop is sleeping between cycles
//	fake.Advance(10 * time.Second) // start the next cycle
//
// Production code uses Real.
package clock
