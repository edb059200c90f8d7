// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package exchange

import (
	"context"

	"github.com/ikopylov/corefx/pairio"
)

// chunkSize is the capacity of each buffer segment. It also serves
// as the scatter chunk size, and thus bounds the cancellation
// polling interval.
const chunkSize = 128

// A buffer accumulates routed pairs in fixed-capacity segments.
// Growth allocates a fresh segment rather than copying, so append is
// O(1) amortized and previously written pairs are never moved. A
// buffer has exactly one writer; once its row is published into the
// exchange matrix it is read-only.
type buffer[T, K any] struct {
	chunks [][]Pair[T, K]
	total  int
}

func (b *buffer[T, K]) append(p Pair[T, K]) {
	n := len(b.chunks)
	if n == 0 || len(b.chunks[n-1]) == cap(b.chunks[n-1]) {
		b.chunks = append(b.chunks, make([]Pair[T, K], 0, chunkSize))
		n++
	}
	b.chunks[n-1] = append(b.chunks[n-1], p)
	b.total++
}

// Len returns the number of pairs in the buffer. A nil buffer is
// empty.
func (b *buffer[T, K]) len() int {
	if b == nil {
		return 0
	}
	return b.total
}

// A bufferReader reads a buffer's segments in append order. A nil
// buffer reads as an empty one.
type bufferReader[T, K any] struct {
	buf  *buffer[T, K]
	j, k int
}

func (r *bufferReader[T, K]) Read(ctx context.Context, out []Pair[T, K]) (int, error) {
loop:
	for {
		switch {
		case r.buf == nil || r.j == len(r.buf.chunks):
			return 0, pairio.EOF
		case r.k == len(r.buf.chunks[r.j]):
			r.j++
			r.k = 0
		default:
			break loop
		}
	}
	n := copy(out, r.buf.chunks[r.j][r.k:])
	r.k += n
	return n, nil
}
