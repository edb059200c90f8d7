// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package exchange

import (
	"context"
	"fmt"
	"io"

	"github.com/grailbio/base/log"
	"github.com/ikopylov/corefx/ctxsync"
	"github.com/ikopylov/corefx/pairio"
)

// workerState tracks a worker's progress through the exchange.
type workerState int

const (
	// stateNotStarted: no read has occurred; the source is untouched.
	stateNotStarted workerState = iota
	// stateScattering: the worker is draining its source into private
	// per-destination buffers. A worker is only observed in this state
	// if scatter was aborted (cancellation or a source error).
	stateScattering
	// stateGathering: the row has been published and the barrier
	// signaled; the worker is draining matrix column buffers.
	stateGathering
	// stateDone: EOF has been delivered. Terminal.
	stateDone
)

// A Worker is one partition's participant in an n-way hash
// repartitioning exchange. During scatter it drains its exclusively
// owned source, routing each element by key hash into a private
// buffer per destination partition; it then publishes the buffers
// into its row of the shared matrix and signals the shared barrier.
// During gather it yields its own diagonal buffer, waits for the
// barrier to open, and then yields every foreign buffer in ascending
// partition order. The net effect is that the worker emits exactly
// the pairs whose key hashes to its own partition index.
//
// A Worker implements pairio.Reader. It is owned by a single
// goroutine: Read and Close must not be called concurrently. A
// worker must be read to EOF or closed; abandoning it without either
// can leave peers parked on the barrier forever.
type Worker[T, K any] struct {
	src      pairio.Reader[T]
	key      func(T) K // nil in unkeyed mode
	hasher   Hasher[K]
	elemHash Hasher[T] // set iff unkeyed
	n, index int
	barrier  *ctxsync.Barrier
	matrix   *Matrix[T, K]

	state    workerState
	signaled bool
	closed   bool
	buf      int // partition index of the buffer being gathered
	visited  int // buffers consumed so far, self included
	cur      bufferReader[T, K]
	err      error // sticky: EOF or the first failure
	scratch  []T
}

// NewWorker returns the worker for the given partition index of an
// n-way exchange, where n is the matrix width. The worker assumes
// exclusive ownership of src. The key selector derives each
// element's hash key and is memoized into the emitted pairs; it must
// be non-nil (use NewUnkeyedWorker when there is no meaningful key).
// The barrier must have been initialized to n parties and is
// signaled by this worker exactly once, at scatter completion or on
// early Close.
//
// As a special case, a single-partition exchange (n == 1) passes
// elements straight through and touches no shared state; barrier and
// matrix must then both be nil.
func NewWorker[T, K any](src pairio.Reader[T], index int, key func(T) K, hasher Hasher[K], barrier *ctxsync.Barrier, matrix *Matrix[T, K]) *Worker[T, K] {
	if key == nil {
		panic("exchange.NewWorker: nil key selector")
	}
	w := &Worker[T, K]{src: src, key: key, hasher: hasher}
	w.init(index, barrier, matrix)
	return w
}

// NewUnkeyedWorker returns a worker that hashes elements directly,
// without deriving or memoizing a key: the pairs it emits carry zero
// NoKey keys. Constraints otherwise match NewWorker.
func NewUnkeyedWorker[T any](src pairio.Reader[T], index int, hasher Hasher[T], barrier *ctxsync.Barrier, matrix *Matrix[T, NoKey]) *Worker[T, NoKey] {
	if hasher == nil {
		panic("exchange.NewUnkeyedWorker: nil hasher")
	}
	w := &Worker[T, NoKey]{src: src, elemHash: hasher}
	w.init(index, barrier, matrix)
	return w
}

func (w *Worker[T, K]) init(index int, barrier *ctxsync.Barrier, matrix *Matrix[T, K]) {
	if w.src == nil {
		panic("exchange: nil source")
	}
	if w.key != nil && w.hasher == nil {
		panic("exchange: nil hasher")
	}
	if matrix == nil || barrier == nil {
		if matrix != nil || barrier != nil {
			panic("exchange: barrier and matrix must be supplied together")
		}
		if index != 0 {
			panic(fmt.Sprintf("exchange: partition index %d in a single-partition exchange", index))
		}
		w.n, w.index = 1, 0
		return
	}
	if matrix.N() != barrier.N() {
		panic(fmt.Sprintf("exchange: matrix width %d does not match barrier parties %d", matrix.N(), barrier.N()))
	}
	if index < 0 || index >= matrix.N() {
		panic(fmt.Sprintf("exchange: partition index %d out of range [0,%d)", index, matrix.N()))
	}
	w.n, w.index = matrix.N(), index
	w.barrier, w.matrix = barrier, matrix
}

// Read implements pairio.Reader. The first call triggers the scatter
// phase, draining the source to exhaustion; subsequent calls yield
// gathered pairs. EOF is terminal and sticky, as is any failure.
func (w *Worker[T, K]) Read(ctx context.Context, out []Pair[T, K]) (int, error) {
	if w.err != nil {
		return 0, w.err
	}
	if w.n == 1 {
		return w.readDirect(ctx, out)
	}
	if w.state == stateNotStarted {
		w.state = stateScattering
		if err := w.scatter(ctx); err != nil {
			w.err = err
			return 0, err
		}
		// The diagonal buffer was written by this goroutine just now;
		// reading it needs no barrier.
		w.state = stateGathering
		w.buf = w.index
		w.cur = bufferReader[T, K]{buf: w.matrix.cell(w.index, w.index)}
	}
	for {
		n, err := w.cur.Read(ctx, out)
		switch {
		case err == pairio.EOF:
			w.visited++
			if w.buf == w.index {
				// Own buffer consumed; all further buffers are foreign
				// and may be read only once every peer has scattered.
				// This is the worker's sole suspension point.
				if err := w.barrier.Wait(ctx); err != nil {
					w.err = err
					return 0, err
				}
			}
			if w.visited == w.n {
				w.state = stateDone
				w.err = pairio.EOF
				return 0, pairio.EOF
			}
			w.buf = (w.buf + 1) % w.n
			w.cur = bufferReader[T, K]{buf: w.matrix.cell(w.buf, w.index)}
		case err != nil:
			w.err = err
			return n, err
		case n > 0:
			return n, nil
		default:
			return 0, nil
		}
	}
}

// readDirect is the single-partition fast path: elements stream
// through with keys computed on demand, and no matrix or barrier
// exists to deadlock on.
func (w *Worker[T, K]) readDirect(ctx context.Context, out []Pair[T, K]) (int, error) {
	max := len(out)
	if max > chunkSize {
		max = chunkSize
	}
	if w.scratch == nil {
		w.scratch = make([]T, chunkSize)
	}
	n, err := w.src.Read(ctx, w.scratch[:max])
	for i, v := range w.scratch[:n] {
		out[i] = w.pair(v)
	}
	switch {
	case err == pairio.EOF:
		w.state = stateDone
		w.err = pairio.EOF
	case err != nil:
		w.err = err
	}
	return n, err
}

// scatter drains the source, routing every element into a lazily
// allocated private buffer per destination partition, then publishes
// the full row (nil cells included) and signals the barrier.
func (w *Worker[T, K]) scatter(ctx context.Context) error {
	row := make([]*buffer[T, K], w.n)
	if w.scratch == nil {
		w.scratch = make([]T, chunkSize)
	}
	for {
		// Poll cancellation once per chunk rather than per element to
		// bound the overhead of the check.
		if err := ctx.Err(); err != nil {
			return err
		}
		n, err := w.src.Read(ctx, w.scratch)
		for _, v := range w.scratch[:n] {
			p, h := w.route(v)
			d := int(h % uint32(w.n))
			if row[d] == nil {
				row[d] = new(buffer[T, K])
			}
			row[d].append(p)
		}
		if err == pairio.EOF {
			break
		}
		if err != nil {
			return err
		}
	}
	w.matrix.publish(w.index, row)
	w.barrier.Signal()
	w.signaled = true
	return nil
}

// route computes an element's pair and routing hash.
func (w *Worker[T, K]) route(v T) (Pair[T, K], uint32) {
	if w.key != nil {
		k := w.key(v)
		return Pair[T, K]{Value: v, Key: k}, w.hasher.Hash(k)
	}
	return Pair[T, K]{Value: v}, w.elemHash.Hash(v)
}

func (w *Worker[T, K]) pair(v T) Pair[T, K] {
	if w.key != nil {
		k := w.key(v)
		return Pair[T, K]{Value: v, Key: k}
	}
	return Pair[T, K]{Value: v}
}

// Close disposes the worker. It is idempotent and safe in any state.
// If the worker had not yet signaled the barrier -- it was closed
// before completing its scatter -- Close signals on its behalf so
// that peers blocked on the barrier are never stranded. Close also
// closes the source if it implements io.Closer.
func (w *Worker[T, K]) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true
	if w.barrier != nil && !w.signaled {
		log.Debug.Printf("exchange: partition %d closed before scatter completion", w.index)
		w.barrier.Signal()
		w.signaled = true
	}
	w.barrier = nil
	if w.err == nil {
		w.err = pairio.EOF
	}
	var err error
	if c, ok := w.src.(io.Closer); ok {
		err = c.Close()
	}
	w.src = nil
	return err
}
