// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package flowgraph_test

import (
	"testing"
	"time"

	"code.hybscloud.com/flowgraph"
	"code.hybscloud.com/flowgraph/block"
)

// scaleBlock multiplies its input by a fixed constant.
type scaleBlock struct {
	block.Base
	factor float32
}

func (b *scaleBlock) Process(in1 block.In[float32], out1 block.Out[float32]) (block.ProcessResult, error) {
	n := len(in1)
	if len(out1) < n {
		n = len(out1)
	}
	for i := 0; i < n; i++ {
		out1[i] = in1[i] * b.factor
	}
	return block.ProcessResult{Consumed: []int{n}, Produced: []int{n}}, nil
}

// addThenScale is a two-child composite: it adds its two boundary inputs
// then scales the sum, boundary-aliasing "in1"/"in2"/"out1" onto its
// children's real ports rather than wiring them through a pass-through
// block. Its connect callback captures the Graph it will be registered
// into so it can call Graph.Alias, the only place that method is valid
// (spec.md §6, Graph::alias).
type addThenScale struct {
	block.Composite
}

func newAddThenScale(g *flowgraph.Graph, factor float32) *addThenScale {
	c := &addThenScale{}
	block.InitComposite(&c.Composite, []string{"in1", "in2"}, []string{"out1"}, func(comp *block.Composite) {
		add := &addBlock{}
		scale := &scaleBlock{factor: factor}
		comp.AddChild(add)
		comp.AddChild(scale)
		comp.ConnectPort(add, "out1", scale, "in1")
		g.Alias(comp, "in1", add, "in1")
		g.Alias(comp, "in2", add, "in2")
		g.Alias(comp, "out1", scale, "out1")
	})
	return c
}

// TestCompositeExpansionAndAlias exercises a composite end to end: its
// connect callback runs, its children and internal edge are folded into
// the flattened graph, and edges that named the composite's own boundary
// ports get rewritten onto the aliased child ports (spec.md §4.4,
// "aliasing is a renaming, not a wire").
func TestCompositeExpansionAndAlias(t *testing.T) {
	g := flowgraph.New(nil, flowgraph.Options{})

	src1 := &valueSource{values: []float32{1, 2, 3}}
	src2 := &valueSource{values: []float32{10, 20, 30}}
	root := newAddThenScale(g, 2)
	sink := &captureSink{}

	g.Register(src1)
	g.Register(src2)
	g.Register(root)
	g.Register(sink)

	g.ConnectPort(src1, "out1", root, "in1")
	g.ConnectPort(src2, "out1", root, "in2")
	g.ConnectPort(root, "out1", sink, "in1")

	if err := g.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	ok, err := g.WaitTimeout(2 * time.Second)
	if err != nil || !ok {
		t.Fatalf("wait failed: ok=%v err=%v", ok, err)
	}

	want := []float32{22, 44, 66} // (1+10)*2, (2+20)*2, (3+30)*2
	if len(sink.values) != len(want) {
		t.Fatalf("got %d samples, want %d: %v", len(sink.values), len(want), sink.values)
	}
	for i := range want {
		if sink.values[i] != want[i] {
			t.Fatalf("sample %d = %v, want %v", i, sink.values[i], want[i])
		}
	}
}
