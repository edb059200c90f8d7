// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package exchange

import (
	"context"
	"sort"
	"testing"

	fuzz "github.com/google/gofuzz"
	"github.com/ikopylov/corefx/pairio"
)

func TestGatherConservation(t *testing.T) {
	const (
		N       = 4
		records = 2000
	)
	var (
		fz  = fuzz.NewWithSeed(12345)
		in  = make([]string, records)
		ctx = context.Background()
	)
	for i := range in {
		fz.Fuzz(&in[i])
	}
	// Split the input unevenly across the N source partitions.
	var (
		sources []pairio.Reader[string]
		bounds  = []int{0, 17, 17, 1200, records}
	)
	for i := 0; i < N; i++ {
		sources = append(sources, pairio.SliceReader(in[bounds[i]:bounds[i+1]]))
	}
	x := NewUnkeyed(N, StringHasher)
	out, err := x.Gather(ctx, sources...)
	if err != nil {
		t.Fatal(err)
	}
	var gathered []string
	for p := range out {
		for _, pair := range out[p] {
			// Every gathered element hashes to its gatherer.
			if d := int(StringHasher.Hash(pair.Value) % N); d != p {
				t.Errorf("%q: gathered by %d, want %d", pair.Value, p, d)
			}
			gathered = append(gathered, pair.Value)
		}
	}
	// No loss, no duplication.
	if got, want := len(gathered), records; got != want {
		t.Fatalf("got %v records, want %v", got, want)
	}
	want := append([]string{}, in...)
	sort.Strings(want)
	sort.Strings(gathered)
	for i := range want {
		if gathered[i] != want[i] {
			t.Fatalf("record %d: got %q, want %q", i, gathered[i], want[i])
		}
	}
}

func TestGatherKeyed(t *testing.T) {
	type record struct {
		User string
		N    int
	}
	var (
		key = func(r record) string { return r.User }
		x   = New(3, key, StringHasher)
		in  = [][]record{
			{{"alice", 1}, {"bob", 2}},
			{{"bob", 3}, {"carol", 4}},
			{{"alice", 5}},
		}
	)
	out, err := x.Gather(context.Background(),
		pairio.SliceReader(in[0]), pairio.SliceReader(in[1]), pairio.SliceReader(in[2]))
	if err != nil {
		t.Fatal(err)
	}
	// All records for a user land on one partition, with the key
	// memoized on each pair.
	owner := make(map[string]int)
	total := 0
	for p := range out {
		for _, pair := range out[p] {
			if got, want := pair.Key, pair.Value.User; got != want {
				t.Errorf("got key %q, want %q", got, want)
			}
			if prev, ok := owner[pair.Key]; ok && prev != p {
				t.Errorf("user %q gathered by partitions %d and %d", pair.Key, prev, p)
			}
			owner[pair.Key] = p
			total++
		}
	}
	if got, want := total, 5; got != want {
		t.Errorf("got %v, want %v", got, want)
	}
	if got, want := len(owner), 3; got != want {
		t.Errorf("got %v users, want %v", got, want)
	}
}

func TestGatherCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	x := New(2, func(v int) int { return v }, identityHasher)
	_, err := x.Gather(ctx, pairio.SliceReader([]int{1}), pairio.SliceReader([]int{2}))
	if got, want := err, context.Canceled; got != want {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestGatherSourceCount(t *testing.T) {
	x := New(2, func(v int) int { return v }, identityHasher)
	mustPanic(t, "source count", func() {
		x.Gather(context.Background(), pairio.SliceReader([]int{1}))
	})
}
