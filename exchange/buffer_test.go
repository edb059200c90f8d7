// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package exchange

import (
	"context"
	"testing"

	"github.com/ikopylov/corefx/pairio"
)

func TestBuffer(t *testing.T) {
	const N = 1000
	var (
		b   = new(buffer[int, int])
		ctx = context.Background()
	)
	for i := 0; i < N; i++ {
		b.append(Pair[int, int]{Value: i, Key: i * 2})
	}
	if got, want := b.len(), N; got != want {
		t.Fatalf("got %v, want %v", got, want)
	}
	// Segments are fixed-capacity; growth adds segments.
	if got, want := len(b.chunks), (N+chunkSize-1)/chunkSize; got != want {
		t.Errorf("got %v segments, want %v", got, want)
	}
	for _, c := range b.chunks {
		if got, want := cap(c), chunkSize; got != want {
			t.Errorf("got segment cap %v, want %v", got, want)
		}
	}
	// Reads preserve append order across segment boundaries,
	// regardless of the read vector size.
	r := bufferReader[int, int]{buf: b}
	var (
		out  = make([]Pair[int, int], 97)
		seen int
	)
	for {
		n, err := r.Read(ctx, out)
		for _, p := range out[:n] {
			if got, want := p.Value, seen; got != want {
				t.Fatalf("got %v, want %v", got, want)
			}
			if got, want := p.Key, seen*2; got != want {
				t.Fatalf("got key %v, want %v", got, want)
			}
			seen++
		}
		if err == pairio.EOF {
			break
		}
		if err != nil {
			t.Fatal(err)
		}
	}
	if got, want := seen, N; got != want {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestBufferReaderEmpty(t *testing.T) {
	ctx := context.Background()
	for _, r := range []*bufferReader[int, int]{
		{buf: nil},
		{buf: new(buffer[int, int])},
	} {
		n, err := r.Read(ctx, make([]Pair[int, int], 8))
		if got, want := err, pairio.EOF; got != want {
			t.Errorf("got %v, want %v", got, want)
		}
		if got, want := n, 0; got != want {
			t.Errorf("got %v, want %v", got, want)
		}
	}
}
