// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package accel

import "sync/atomic"

// name is the library name the platform layer's DISABLE_<LIBRARY> env var
// flag refers to when disabling this package's accelerated path.
const name = "ACCEL"

var disabled atomic.Bool

// Disable turns off the accelerated path for the remainder of the process,
// falling back to CopyBulkGeneric. Called by package platform during
// environment-flag parsing; exported here so platform need not know this
// package's internal layout, only its name via Name().
func Disable() {
	disabled.Store(true)
}

// Name returns the library name used in this package's DISABLE_<LIBRARY>
// environment variable.
func Name() string {
	return name
}

// Available reports whether this build was compiled with a real
// accelerated path (as opposed to the generic stub).
func Available() bool {
	return available
}

// CopyBulkGeneric copies min(len(dst), len(src)) bytes using the portable
// slice copy builtin.
func CopyBulkGeneric(dst, src []byte) int {
	return copy(dst, src)
}

// CopyBulk copies min(len(dst), len(src)) bytes, using the architecture's
// accelerated path unless it has been disabled.
func CopyBulk(dst, src []byte) int {
	if disabled.Load() {
		return CopyBulkGeneric(dst, src)
	}
	return CopyBulkAccelerated(dst, src)
}
