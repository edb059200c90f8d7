// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package exchange

import "github.com/spaolacci/murmur3"

// A Hasher computes the hash code that routes a key (or, for an
// unkeyed worker, an element) to its destination partition. The
// destination is the hash reduced modulo the partition count; since
// hashes are unsigned, the reduction always lands in [0, n).
type Hasher[K any] interface {
	// Hash returns a 32-bit hash of key.
	Hash(key K) uint32
}

// HasherFunc adapts an ordinary function to the Hasher interface.
type HasherFunc[K any] func(K) uint32

// Hash implements Hasher.
func (f HasherFunc[K]) Hash(key K) uint32 { return f(key) }

// Standard hashers for common key types. Callers with their own
// notion of key equality should supply their own Hasher instead.
var (
	StringHasher Hasher[string] = HasherFunc[string](func(s string) uint32 {
		return murmur3.Sum32([]byte(s))
	})
	BytesHasher Hasher[[]byte] = HasherFunc[[]byte](murmur3.Sum32)
	IntHasher   Hasher[int]    = HasherFunc[int](func(x int) uint32 {
		return hash64(uint64(x))
	})
	Int64Hasher Hasher[int64] = HasherFunc[int64](func(x int64) uint32 {
		return hash64(uint64(x))
	})
	Uint64Hasher Hasher[uint64] = HasherFunc[uint64](hash64)
)

// Hash32 is the 32-bit integer hashing function from
// http://burtleburtle.net/bob/hash/integer.html. (Public domain.)
func hash32(x uint32) uint32 {
	x = (x + 0x7ed55d16) + (x << 12)
	x = (x ^ 0xc761c23c) ^ (x >> 19)
	x = (x + 0x165667b1) + (x << 5)
	x = (x + 0xd3a2646c) ^ (x << 9)
	x = (x + 0xfd7046c5) + (x << 3)
	x = (x ^ 0xb55a4f09) ^ (x >> 16)
	return x
}

// Hash64 uses hash32 to compute a 64-bit integer hash.
func hash64(x uint64) uint32 {
	lo := hash32(uint32(x))
	hi := hash32(uint32(x >> 32))
	return lo ^ hi
}
