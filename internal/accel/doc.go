// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package accel provides the bulk byte-copy used on every ring buffer
// commit, with an architecture-gated fast path and a portable fallback.
//
// Layout contract:
// CopyBulkAccelerated must behave identically to CopyBulkGeneric for every
// input; accel_test.go checks this equivalence directly rather than
// verifying struct offsets, since (unlike the teacher's internal/asm) this
// package has no assembly body whose field offsets need checking.
package accel
