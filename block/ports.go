// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package block provides the compile-time-introspected block facade
// (spec.md §4.3) and composite facade (§4.4): a user authors a struct
// embedding Base and defining a Process method; Describe walks that
// method's signature via reflection to build a Descriptor the engine can
// drive without knowing the concrete user type.
package block

// In marks a Process parameter as a read-only input port of element type
// E. It is a distinct named generic type (rather than a bare []E) so that
// reflection on Process's signature can tell inputs from outputs by type
// name alone — the Go realization of spec.md §9's "introspection-driven
// port derivation", since Go has no procedural macros to enumerate a
// parameter list's calling convention directly.
//
// Blocks must not retain or mutate a slice received as In[E] beyond the
// Process call that provided it; the underlying memory is reused by the
// ring buffer once the call returns.
type In[E any] []E

// Out marks a Process parameter as a writable output port of element type
// E. The block writes up to len(slice) elements into it; ProcessResult's
// Produced count tells the engine how many of those were valid.
type Out[E any] []E

// ProcessResult is the value a block's Process method returns alongside an
// error: how many elements it consumed from each input, in order, and how
// many it produced into each output, in order (spec.md §3). A block must
// never report consuming more than it was offered or producing more than
// an output slice's length.
type ProcessResult struct {
	Consumed []int
	Produced []int
	// EOS, when true, is the distinguished EndOfStream result: the block
	// has no further output and is finished cleanly. The engine signals
	// EOS downstream and Completed state regardless of Consumed/Produced.
	EOS bool
}

// EndOfStream builds the distinguished terminal ProcessResult for a block
// that has nothing further to produce.
func EndOfStream() ProcessResult {
	return ProcessResult{EOS: true}
}
