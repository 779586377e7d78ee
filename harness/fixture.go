// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package harness drives a single block through a real Graph in-process,
// feeding it fixed input vectors and capturing its output, so tests can
// exercise a block's Initialize/Process/Deinitialize lifecycle exactly as
// production does without standing up a whole topology.
package harness

import (
	"fmt"

	"code.hybscloud.com/flowgraph"
	"code.hybscloud.com/flowgraph/block"
)

// feeder replays a fixed slice of values into one input port, then signals
// EndOfStream — the same one-shot producer shape as the teacher's pipeline
// example's "Generate" stage.
type feeder[E any] struct {
	block.Base
	values []E
	idx    int
}

func (f *feeder[E]) Process(out1 block.Out[E]) (block.ProcessResult, error) {
	if f.idx >= len(f.values) {
		return block.EndOfStream(), nil
	}
	k := len(f.values) - f.idx
	if k > len(out1) {
		k = len(out1)
	}
	copy(out1, f.values[f.idx:f.idx+k])
	f.idx += k
	return block.ProcessResult{Produced: []int{k}}, nil
}

// capture appends everything it reads from one output port — the
// teacher's pipeline example's "collect results" stage, minus the mutex
// (a capture block is only ever driven by its own worker goroutine).
type capture[E any] struct {
	block.Base
	values []E
}

func (c *capture[E]) Process(in1 block.In[E]) (block.ProcessResult, error) {
	c.values = append(c.values, in1...)
	return block.ProcessResult{Consumed: []int{len(in1)}}, nil
}

// Fixture wires target between one feeder per input port and one capture
// per output port, inside an otherwise-empty Graph, and runs it exactly
// the way the execution engine would inside a larger graph.
type Fixture[E any] struct {
	g        *flowgraph.Graph
	target   any
	feeders  []*feeder[E]
	captures []*capture[E]
}

// NewFixture builds a fixture for target, one inputVectors entry per
// input port in declaration order. target must not be registered with
// any other Graph.
func NewFixture[E any](target any, inputVectors ...[]E) *Fixture[E] {
	g := flowgraph.New(nil, flowgraph.Options{})
	base := g.Register(target)
	desc := base.Descriptor()
	if len(inputVectors) != len(desc.Inputs) {
		panic(fmt.Sprintf("harness: target has %d input port(s), got %d vector(s)", len(desc.Inputs), len(inputVectors)))
	}

	f := &Fixture[E]{g: g, target: target}
	for i, vec := range inputVectors {
		fd := &feeder[E]{values: vec}
		g.Register(fd)
		g.ConnectPort(fd, "out1", target, desc.Inputs[i].Name)
		f.feeders = append(f.feeders, fd)
	}
	for _, p := range desc.Outputs {
		cp := &capture[E]{}
		g.Register(cp)
		g.ConnectPort(target, p.Name, cp, "in1")
		f.captures = append(f.captures, cp)
	}
	return f
}

// Run starts the graph and waits for it to finish, reporting whether
// every block — target included — completed without error.
func (f *Fixture[E]) Run() bool {
	return f.g.Run()
}

// Call forwards an async control call to target, the same path
// production code would use (flowgraph.Graph.Call), useful for exercising
// a block's mutable parameters mid-run.
func (f *Fixture[E]) Call(method string, args ...any) ([]any, error) {
	return f.g.Call(f.target, method, args...)
}

// Output returns everything captured from output port j so far.
func (f *Fixture[E]) Output(j int) []E {
	return f.captures[j].values
}
