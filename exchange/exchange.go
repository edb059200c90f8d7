// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

// Package exchange implements barrier-synchronized hash
// repartitioning: n parallel workers, each owning one partition of
// an input sequence, cooperatively redistribute their elements so
// that every worker ends up holding exactly the elements whose key
// hashes to its own partition index. It is the enabling primitive
// for parallel grouping, joining, and aggregation, which require all
// elements sharing a key to reside on one worker.
//
// Data moves through a shared n×n matrix of write-once buffers. Each
// worker scatters its input into a private row, signals a shared
// barrier, and then gathers its column: its own diagonal cell first
// (no synchronization needed), then every peer's cell once the
// barrier has opened. No per-element locking is involved.
//
// Within one matrix cell the order in which the source partition
// produced elements is preserved; no ordering across partitions is
// defined.
package exchange

import (
	"context"
	"fmt"

	"github.com/ikopylov/corefx/ctxsync"
	"github.com/ikopylov/corefx/pairio"
	"golang.org/x/sync/errgroup"
)

// An Exchange coordinates one n-way repartition operation. It owns
// the shared matrix and barrier and mints the n workers that carry
// the operation out, one per partition. The exchange itself does not
// create goroutines; scheduling the workers is the caller's concern
// (but see Gather).
type Exchange[T, K any] struct {
	n        int
	key      func(T) K
	hasher   Hasher[K]
	elemHash Hasher[T] // set iff unkeyed
	barrier  *ctxsync.Barrier
	matrix   *Matrix[T, K]
	minted   []bool
}

// New returns an n-way exchange whose workers route elements by the
// hash of the key derived by the (required) key selector. New panics
// if n is not positive or key or hasher is nil.
func New[T, K any](n int, key func(T) K, hasher Hasher[K]) *Exchange[T, K] {
	if key == nil {
		panic("exchange.New: nil key selector")
	}
	if hasher == nil {
		panic("exchange.New: nil hasher")
	}
	x := &Exchange[T, K]{n: n, key: key, hasher: hasher}
	x.init()
	return x
}

// NewUnkeyed returns an n-way exchange whose workers hash elements
// directly, memoizing no key.
func NewUnkeyed[T any](n int, hasher Hasher[T]) *Exchange[T, NoKey] {
	if hasher == nil {
		panic("exchange.NewUnkeyed: nil hasher")
	}
	x := &Exchange[T, NoKey]{n: n, elemHash: hasher}
	x.init()
	return x
}

func (x *Exchange[T, K]) init() {
	if x.n <= 0 {
		panic(fmt.Sprintf("exchange: nonpositive partition count %d", x.n))
	}
	x.minted = make([]bool, x.n)
	if x.n == 1 {
		// Single partition: pass-through workers, no shared state.
		return
	}
	x.barrier = ctxsync.NewBarrier(x.n)
	x.matrix = NewMatrix[T, K](x.n)
}

// N returns the exchange's partition count.
func (x *Exchange[T, K]) N() int { return x.n }

// Worker mints the worker for the given partition index, assuming
// exclusive ownership of src. Each index's worker is minted at most
// once; every minted worker must be read to EOF or closed.
func (x *Exchange[T, K]) Worker(index int, src pairio.Reader[T]) *Worker[T, K] {
	if index < 0 || index >= x.n {
		panic(fmt.Sprintf("exchange: partition index %d out of range [0,%d)", index, x.n))
	}
	if x.minted[index] {
		panic(fmt.Sprintf("exchange: worker %d minted twice", index))
	}
	x.minted[index] = true
	if x.key != nil {
		return NewWorker(src, index, x.key, x.hasher, x.barrier, x.matrix)
	}
	w := &Worker[T, K]{src: src, elemHash: x.elemHash}
	w.init(index, x.barrier, x.matrix)
	return w
}

// Gather runs one worker per source, each on its own goroutine,
// reading every worker to exhaustion and closing it. It returns the
// pairs gathered by each partition, indexed by partition. If any
// worker fails -- including by cancellation of ctx -- the remaining
// workers are cancelled and the first error is returned; closing the
// failed workers keeps the barrier protocol intact, so no goroutine
// is left behind. Gather is the reference wiring for engines that
// drive the exchange themselves.
func (x *Exchange[T, K]) Gather(ctx context.Context, sources ...pairio.Reader[T]) ([][]Pair[T, K], error) {
	if len(sources) != x.n {
		panic(fmt.Sprintf("exchange: %d sources for %d partitions", len(sources), x.n))
	}
	out := make([][]Pair[T, K], x.n)
	g, ctx := errgroup.WithContext(ctx)
	for i := range sources {
		i := i
		w := x.Worker(i, sources[i])
		g.Go(func() error {
			defer w.Close()
			pairs, err := pairio.ReadAll[Pair[T, K]](ctx, w)
			out[i] = pairs
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}
