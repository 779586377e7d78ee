// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package block

import "code.hybscloud.com/atomix"

// RefCounted wraps a heap-owning value T with an atomic reference count and
// a deallocator, for edge types whose values own resources the fan-out
// multiplexer would otherwise have to deep-copy (spec.md §3, "Reference-
// counted value wrapper"). The atomic counter uses code.hybscloud.com/
// atomix's explicit acquire/release primitives, the same package the
// teacher uses for its ring cursors, applied here to a refcount instead.
//
// Producers construct with count = 1. A producer handing one handle to N
// consumers calls Retain(N-1) once at production time, so the count equals
// the number of consumers; each consumer calls Release exactly once after
// its final use. The deallocator runs exactly when the count reaches zero. Cyclic references cannot arise
// because the flow graph is a DAG (spec.md §9).
type RefCounted[T any] struct {
	Value *T

	count atomix.Int64
	free  func(*T)
}

// NewRefCounted constructs a reference-counted handle around value with an
// initial count of 1 and the given deallocator.
func NewRefCounted[T any](value *T, free func(*T)) *RefCounted[T] {
	r := &RefCounted[T]{Value: value, free: free}
	r.count.StoreRelease(1)
	return r
}

// Retain adds n to the reference count, used at fan-out time before the
// same handle becomes visible on n additional downstream edges.
func (r *RefCounted[T]) Retain(n int64) {
	r.count.AddAcqRel(n)
}

// Release decrements the reference count by one and runs the deallocator
// if it reaches zero. Returns true if this call triggered deallocation.
func (r *RefCounted[T]) Release() bool {
	if r.count.AddAcqRel(-1) == 0 {
		if r.free != nil {
			r.free(r.Value)
		}
		return true
	}
	return false
}

// Count returns the current reference count, for tests and debugging.
func (r *RefCounted[T]) Count() int64 {
	return r.count.LoadAcquire()
}
