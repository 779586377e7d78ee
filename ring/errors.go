// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package ring

import "code.hybscloud.com/iox"

// ErrWouldBlock is returned by the non-blocking probes TryReadAvailable and
// TryWriteAvailable when the ring cannot satisfy the request immediately.
// It is a control-flow signal meaning "nothing to do yet", not a failure.
//
// This is an alias for [iox.ErrWouldBlock] for ecosystem consistency, the
// same convention the lock-free queue this package is built on uses.
var ErrWouldBlock = iox.ErrWouldBlock

// IsWouldBlock reports whether err indicates an operation would block.
func IsWouldBlock(err error) bool {
	return iox.IsWouldBlock(err)
}

// IsNonFailure reports whether err represents a non-failure condition (nil
// or ErrWouldBlock), letting a caller of the Try* probes tell a backoff
// signal apart from a real error.
func IsNonFailure(err error) bool {
	return iox.IsNonFailure(err)
}
