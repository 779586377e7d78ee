// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package harness

import "math"

// Tester compares a Fixture's captured output against a reference vector.
// It takes a testing.TB (not imported directly, to keep this package
// usable from benchmarks and fuzz targets too) so failures report at the
// caller's line via Helper.
type Tester struct {
	TB interface {
		Helper()
		Fatalf(format string, args ...any)
	}
}

// AssertFloat32 fails the test unless got and want have the same length
// and every sample is within tol of its reference.
func (r Tester) AssertFloat32(got, want []float32, tol float32) {
	r.TB.Helper()
	if len(got) != len(want) {
		r.TB.Fatalf("harness: got %d samples, want %d", len(got), len(want))
		return
	}
	for i := range want {
		if diff := math.Abs(float64(got[i] - want[i])); diff > float64(tol) {
			r.TB.Fatalf("harness: sample %d = %v, want %v (tolerance %v)", i, got[i], want[i], tol)
		}
	}
}

// AssertFloat64 is AssertFloat32 for float64 samples.
func (r Tester) AssertFloat64(got, want []float64, tol float64) {
	r.TB.Helper()
	if len(got) != len(want) {
		r.TB.Fatalf("harness: got %d samples, want %d", len(got), len(want))
		return
	}
	for i := range want {
		if diff := math.Abs(got[i] - want[i]); diff > tol {
			r.TB.Fatalf("harness: sample %d = %v, want %v (tolerance %v)", i, got[i], want[i], tol)
		}
	}
}

// AssertEqual fails the test unless got and want are identical element for
// element — for integer or other exactly-comparable sample types.
func AssertEqual[E comparable](r Tester, got, want []E) {
	r.TB.Helper()
	if len(got) != len(want) {
		r.TB.Fatalf("harness: got %d samples, want %d", len(got), len(want))
		return
	}
	for i := range want {
		if got[i] != want[i] {
			r.TB.Fatalf("harness: sample %d = %v, want %v", i, got[i], want[i])
		}
	}
}
