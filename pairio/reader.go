// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

// Package pairio provides pull-based, vectorized record streams used
// to move data between repartitioning operators.
package pairio

import (
	"context"
	"io"

	"github.com/grailbio/base/errors"
)

// DefaultChunksize is the default size used for I/O vectors within the
// pairio package.
const defaultChunksize = 128

// EOF is the error returned by Reader.Read when no more data is
// available. EOF is intended as a sentinel error: it signals a
// graceful end of output. If output terminates unexpectedly, a
// different error should be returned.
var EOF = errors.New("EOF")

// A Reader represents a stateful stream of records of type T. Each
// call to Read reads the next set of available records.
type Reader[T any] interface {
	// Read reads up to len(out) records into out, returning the number
	// of records read, or an error. When no more records are
	// available, Read returns EOF. Read may return EOF when n > 0: in
	// this case, n records were read, but no more are available.
	//
	// Read should not be called concurrently.
	Read(ctx context.Context, out []T) (int, error)
}

type multiReader[T any] struct {
	q   []Reader[T]
	err error
}

// MultiReader returns a Reader that's the logical concatenation of
// the provided input readers. Once every underlying Reader has
// returned EOF, Read will return EOF, too. Non-EOF errors are
// returned immediately.
func MultiReader[T any](readers ...Reader[T]) Reader[T] {
	return &multiReader[T]{q: readers}
}

func (m *multiReader[T]) Read(ctx context.Context, out []T) (n int, err error) {
	if m.err != nil {
		return 0, m.err
	}
	for len(m.q) > 0 {
		n, err := m.q[0].Read(ctx, out)
		switch {
		case err == EOF:
			// Readers may return records along with EOF; surface them
			// before moving on to the next reader.
			m.q = m.q[1:]
			if n > 0 {
				return n, nil
			}
		case err != nil:
			m.err = err
			return n, err
		case n > 0:
			return n, nil
		}
	}
	return 0, EOF
}

type sliceReader[T any] struct {
	rem []T
}

// SliceReader returns a Reader that reads the provided slice to
// completion.
func SliceReader[T any](elems []T) Reader[T] {
	return &sliceReader[T]{elems}
}

func (s *sliceReader[T]) Read(ctx context.Context, out []T) (int, error) {
	n := copy(out, s.rem)
	s.rem = s.rem[n:]
	if len(s.rem) == 0 {
		return n, EOF
	}
	return n, nil
}

// ReadAll reads all elements from reader r into a slice. ReadAll is
// not tuned for performance and is intended for testing purposes.
func ReadAll[T any](ctx context.Context, r Reader[T]) ([]T, error) {
	var (
		all []T
		buf = make([]T, defaultChunksize)
	)
	for {
		n, err := r.Read(ctx, buf)
		all = append(all, buf[:n]...)
		if err == EOF {
			return all, nil
		}
		if err != nil {
			return all, err
		}
	}
}

// An errReader is a reader that only returns errors.
type errReader[T any] struct{ Err error }

// ErrReader returns a reader that returns the provided error
// on every call to read. ErrReader panics if err is nil.
func ErrReader[T any](err error) Reader[T] {
	if err == nil {
		panic("nil error")
	}
	return &errReader[T]{err}
}

func (e *errReader[T]) Read(ctx context.Context, out []T) (int, error) {
	return 0, e.Err
}

// A ClosingReader closes the provided io.Closer when Read returns
// any error.
type ClosingReader[T any] struct {
	Reader[T]
	io.Closer
}

// Read implements pairio.Reader.
func (c *ClosingReader[T]) Read(ctx context.Context, out []T) (int, error) {
	n, err := c.Reader.Read(ctx, out)
	if err != nil && c.Closer != nil {
		c.Closer.Close()
		c.Closer = nil
	}
	return n, err
}

// EmptyReader returns an EOF.
type EmptyReader[T any] struct{}

func (EmptyReader[T]) Read(ctx context.Context, out []T) (int, error) {
	return 0, EOF
}
