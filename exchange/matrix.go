// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package exchange

import "fmt"

// A Matrix is the shared n×n grid of buffer slots that mediates one
// repartition operation. Cell (i, j) holds the pairs that partition
// i routed to partition j; a nil cell holds none. Row i is published
// exactly once, by worker i, before worker i signals the barrier;
// column j is read only by worker j. The diagonal cell is readable
// by its own writer immediately. The matrix takes no locks:
// correctness relies entirely on the write-before-signal,
// signal-before-read ordering established by the barrier, plus
// program order for the diagonal.
type Matrix[T, K any] struct {
	n         int
	cells     []*buffer[T, K]
	published []bool
}

// NewMatrix returns an empty n×n exchange matrix. NewMatrix panics
// if n is not positive.
func NewMatrix[T, K any](n int) *Matrix[T, K] {
	if n <= 0 {
		panic(fmt.Sprintf("exchange.NewMatrix: nonpositive width %d", n))
	}
	return &Matrix[T, K]{
		n:         n,
		cells:     make([]*buffer[T, K], n*n),
		published: make([]bool, n),
	}
}

// N returns the matrix width.
func (m *Matrix[T, K]) N() int { return m.n }

// publish installs row i of the matrix: the per-destination buffers
// produced by worker i's scatter. Rows are write-once; publishing a
// row twice, or with the wrong width, is a defect in the calling
// engine.
func (m *Matrix[T, K]) publish(i int, row []*buffer[T, K]) {
	if len(row) != m.n {
		panic(fmt.Sprintf("exchange.Matrix: published row has width %d, want %d", len(row), m.n))
	}
	if m.published[i] {
		panic(fmt.Sprintf("exchange.Matrix: row %d published twice", i))
	}
	m.published[i] = true
	copy(m.cells[i*m.n:(i+1)*m.n], row)
}

// cell returns the buffer at (i, j). Callers must observe the
// barrier protocol before reading foreign cells.
func (m *Matrix[T, K]) cell(i, j int) *buffer[T, K] {
	return m.cells[i*m.n+j]
}
