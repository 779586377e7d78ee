// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package block_test

import (
	"testing"

	"code.hybscloud.com/flowgraph/block"
	"code.hybscloud.com/flowgraph/sample"
)

type addBlock struct {
	block.Base
	initialized bool
}

func (b *addBlock) Initialize(allocator any) error {
	b.initialized = true
	return nil
}

func (b *addBlock) Process(in1, in2 block.In[float32], out1 block.Out[float32]) (block.ProcessResult, error) {
	n := min(len(in1), len(in2), len(out1))
	for i := 0; i < n; i++ {
		out1[i] = in1[i] + in2[i]
	}
	return block.ProcessResult{Consumed: []int{n, n}, Produced: []int{n}}, nil
}

func (b *addBlock) SetGain(gain float32) error {
	return nil
}

func min(a, b, c int) int {
	if a > b {
		a = b
	}
	if a > c {
		a = c
	}
	return a
}

func TestDescribePortsAndHooks(t *testing.T) {
	blk := &addBlock{}
	d := block.Describe(blk, &blk.Base)

	if len(d.Inputs) != 2 || len(d.Outputs) != 1 {
		t.Fatalf("ports: got %d inputs, %d outputs", len(d.Inputs), len(d.Outputs))
	}
	if d.Inputs[0].Name != "in1" || d.Inputs[1].Name != "in2" || d.Outputs[0].Name != "out1" {
		t.Fatalf("default names: got %+v / %+v", d.Inputs, d.Outputs)
	}
	if !d.HasInitialize {
		t.Fatal("expected HasInitialize")
	}
	if d.HasDeinitialize || d.HasSetRate || d.HasStop {
		t.Fatal("unexpected hook flags set")
	}
	if !d.HasControlMethod("SetGain") {
		t.Fatal("expected SetGain to be a control method")
	}

	if err := d.Initialize(nil); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	if !blk.initialized {
		t.Fatal("Initialize hook did not run")
	}
}

func TestDescribeProcessTrampoline(t *testing.T) {
	blk := &addBlock{}
	d := block.Describe(blk, &blk.Base)

	a := []float32{1, 2, 3}
	b := []float32{10, 20, 30}
	out := make([]float32, 3)

	res, err := d.Process([][]byte{sample.Bytes(a), sample.Bytes(b)}, [][]byte{sample.Bytes(out)})
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if res.Consumed[0] != 3 || res.Consumed[1] != 3 || res.Produced[0] != 3 {
		t.Fatalf("ProcessResult: %+v", res)
	}
	want := []float32{11, 22, 33}
	for i := range want {
		if out[i] != want[i] {
			t.Fatalf("out[%d] = %v, want %v", i, out[i], want[i])
		}
	}
}

func TestCallInvokesControlMethod(t *testing.T) {
	blk := &addBlock{}
	d := block.Describe(blk, &blk.Base)

	_, err := d.Call("SetGain", float32(0.5))
	if err != nil {
		t.Fatalf("Call: %v", err)
	}

	_, err = d.Call("NoSuchMethod")
	if err == nil {
		t.Fatal("expected error for unknown control method")
	}
}

type rateBlock struct {
	block.Base
}

func (b *rateBlock) Process(in1 block.In[float32], out1 block.Out[float32]) (block.ProcessResult, error) {
	return block.EndOfStream(), nil
}

func (b *rateBlock) SetRate(upstream float64) float64 {
	return upstream / 5
}

func TestResolveRate(t *testing.T) {
	blk := &rateBlock{}
	d := block.Describe(blk, &blk.Base)
	if !d.HasSetRate {
		t.Fatal("expected HasSetRate")
	}
	if got := d.ResolveRate(1000); got != 200 {
		t.Fatalf("ResolveRate: got %v, want 200", got)
	}
}

func TestRefCountedReleasesAtZero(t *testing.T) {
	freed := false
	val := 42
	r := block.NewRefCounted(&val, func(v *int) { freed = true })
	r.Retain(2) // simulate fan-out to 2 extra consumers beyond the producer's own reference

	if r.Release() {
		t.Fatal("released too early")
	}
	if r.Release() {
		t.Fatal("released too early")
	}
	if !r.Release() {
		t.Fatal("expected release on final decrement")
	}
	if !freed {
		t.Fatal("deallocator did not run")
	}
}
