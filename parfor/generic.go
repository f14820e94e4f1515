// File: parfor/generic.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Typed helpers over slices: ForEach, ForEachIndex, Map.

package parfor

import (
	"fmt"
	"reflect"

	"github.com/momentics/hioload-parfor/api"
)

// ForEach calls fn with a pointer to every element of items.
func ForEach[T any](p *Pool, items []T, fn func(*T)) error {
	if fn == nil {
		return p.reject(fmt.Errorf("%w: nil callback", api.ErrInvalidArgument))
	}
	return p.run(len(items), strideOf[T](), func(start, end int) {
		for i := start; i < end; i++ {
			fn(&items[i])
		}
	})
}

// ForEachIndex is ForEach that also passes the element index.
func ForEachIndex[T any](p *Pool, items []T, fn func(i int, v *T)) error {
	if fn == nil {
		return p.reject(fmt.Errorf("%w: nil callback", api.ErrInvalidArgument))
	}
	return p.run(len(items), strideOf[T](), func(start, end int) {
		for i := start; i < end; i++ {
			fn(i, &items[i])
		}
	})
}

// Map stores fn(in[i]) into out[i] for every i. out must be at least as
// long as in; the two slices must not overlap unless they are identical.
func Map[In, Out any](p *Pool, in []In, out []Out, fn func(In) Out) error {
	if fn == nil {
		return p.reject(fmt.Errorf("%w: nil callback", api.ErrInvalidArgument))
	}
	if len(out) < len(in) {
		return p.reject(fmt.Errorf("%w: output holds %d elements, need %d", api.ErrInvalidArgument, len(out), len(in)))
	}
	return p.run(len(in), strideOf[In](), func(start, end int) {
		for i := start; i < end; i++ {
			out[i] = fn(in[i])
		}
	})
}

func strideOf[T any]() int {
	return int(reflect.TypeFor[T]().Size())
}
