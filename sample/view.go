// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package sample

import "unsafe"

// View reinterprets a byte slice as a slice of E without copying, the same
// pointer-arithmetic-over-a-raw-buffer technique the teacher uses in
// spsc.go's SPSCPtr.Enqueue/Dequeue. b's length must already be a multiple
// of sizeof(E); callers get that guarantee from Mux.GetInputBuffer/
// GetOutputBuffer, which align down to the port's element size.
func View[E any](b []byte) []E {
	if len(b) == 0 {
		return nil
	}
	var zero E
	sz := int(unsafe.Sizeof(zero))
	n := len(b) / sz
	return unsafe.Slice((*E)(unsafe.Pointer(&b[0])), n)
}

// Bytes reinterprets a typed slice as its underlying byte representation,
// the inverse of View. Used by tests constructing raw ring payloads from
// typed sample vectors.
func Bytes[E any](s []E) []byte {
	if len(s) == 0 {
		return nil
	}
	var zero E
	sz := int(unsafe.Sizeof(zero))
	return unsafe.Slice((*byte)(unsafe.Pointer(&s[0])), len(s)*sz)
}
