// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package exchange

import "testing"

func TestMatrixPublish(t *testing.T) {
	m := NewMatrix[int, int](2)
	b := new(buffer[int, int])
	b.append(Pair[int, int]{Value: 1})
	m.publish(0, []*buffer[int, int]{nil, b})
	if got := m.cell(0, 0); got != nil {
		t.Errorf("got %v, want nil", got)
	}
	if got, want := m.cell(0, 1).len(), 1; got != want {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestMatrixInvariants(t *testing.T) {
	mustPanic(t, "nonpositive width", func() { NewMatrix[int, int](0) })
	mustPanic(t, "row width", func() {
		NewMatrix[int, int](2).publish(0, make([]*buffer[int, int], 3))
	})
	mustPanic(t, "double publish", func() {
		m := NewMatrix[int, int](2)
		m.publish(1, make([]*buffer[int, int], 2))
		m.publish(1, make([]*buffer[int, int], 2))
	})
}
