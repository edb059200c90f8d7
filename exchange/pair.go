// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package exchange

// A Pair carries an element together with its memoized hash key. The
// key is computed once, during the scatter phase, so that downstream
// operators never recompute it.
type Pair[T, K any] struct {
	Value T
	Key   K
}

// NoKey is the key type of unkeyed workers: elements are hashed
// directly and no key is memoized. Pairs produced by an unkeyed
// worker carry a zero NoKey.
type NoKey struct{}
