// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

//go:build !amd64 && !arm64

package accel

// CopyBulkAccelerated is a stub on architectures without a dedicated fast
// path; it falls back to the portable implementation.
func CopyBulkAccelerated(dst, src []byte) int {
	return CopyBulkGeneric(dst, src)
}

// available reports whether this build has a real accelerated path.
const available = false
