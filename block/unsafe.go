// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package block

import (
	"reflect"
	"unsafe"
)

// ptrOf returns a pointer to buf's backing array, or nil for an empty
// slice. Isolated here so descriptor.go's reflection code stays the only
// caller of the one unsafe conversion this package performs.
func ptrOf(buf []byte) unsafe.Pointer {
	if len(buf) == 0 {
		return nil
	}
	return unsafe.Pointer(&buf[0])
}

// reflectNewAt builds an addressable reflect.Value of type t backed by the
// memory at sh (a *sliceHeader laid out like the runtime's real slice
// header), the same NewAt-over-a-raw-header idiom used to implement
// zero-copy type punning via reflect.
func reflectNewAt(t reflect.Type, sh *sliceHeader) reflect.Value {
	return reflect.NewAt(t, unsafe.Pointer(sh))
}
