// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

//go:build amd64 || arm64

package accel

import "unsafe"

// available reports whether this build has a real accelerated path.
const available = true

// CopyBulkAccelerated copies 8 bytes at a time via unsafe word stores for
// the bulk of the region, falling back to copy() for the remainder. On
// the word-addressable architectures this targets, it avoids the
// byte-at-a-time bounds-checked loop the portable path would otherwise
// degrade to for sizes the compiler can't prove are memmove-eligible.
func CopyBulkAccelerated(dst, src []byte) int {
	n := len(dst)
	if n > len(src) {
		n = len(src)
	}
	words := n / 8
	if words > 0 {
		ds := unsafe.Slice((*uint64)(unsafe.Pointer(&dst[0])), words)
		ss := unsafe.Slice((*uint64)(unsafe.Pointer(&src[0])), words)
		copy(ds, ss)
	}
	rem := n - words*8
	if rem > 0 {
		copy(dst[words*8:n], src[words*8:n])
	}
	return n
}
