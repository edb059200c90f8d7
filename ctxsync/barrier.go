// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

// Package ctxsync provides context-aware synchronization primitives.
package ctxsync

import (
	"context"
	"fmt"
	"sync"
)

// A Barrier is an n-party countdown rendezvous. Each party signals
// the barrier exactly once; waiters block until every party has
// signaled. Unlike sync.WaitGroup, waiting is context-aware, and the
// barrier may be waited on any number of times after it has opened.
type Barrier struct {
	mu    sync.Mutex
	n     int
	count int
	donec chan struct{}
}

// NewBarrier returns a new Barrier for n parties. NewBarrier panics
// if n is not positive.
func NewBarrier(n int) *Barrier {
	if n <= 0 {
		panic(fmt.Sprintf("ctxsync.NewBarrier: nonpositive party count %d", n))
	}
	return &Barrier{n: n, count: n, donec: make(chan struct{})}
}

// N returns the number of parties the barrier was created with.
func (b *Barrier) N() int { return b.n }

// Signal records the arrival of one party. The barrier opens when
// the last party signals. Signal panics if it is called more than n
// times: a party signaling twice is a usage error on par with a
// negative sync.WaitGroup counter.
func (b *Barrier) Signal() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.count == 0 {
		panic("ctxsync.Barrier: too many signals")
	}
	b.count--
	if b.count == 0 {
		close(b.donec)
	}
}

// Wait blocks until every party has signaled, or until the context
// is complete, in which case the context's error is returned. Once
// the barrier has opened, Wait returns immediately without blocking.
func (b *Barrier) Wait(ctx context.Context) error {
	select {
	case <-b.donec:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
