// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Command flowdemo builds a tiny flow graph — a cosine source, a
// downsampler, and a sink that prints what it receives — and runs it to
// completion, as a minimal illustration of the public Graph API an
// embedding program uses.
package main

import (
	"fmt"
	"math"
	"os"

	"code.hybscloud.com/flowgraph"
	"code.hybscloud.com/flowgraph/block"
)

type cosineSource struct {
	block.Base
	n, total int
	freq     float64
	rate     float64
}

func (b *cosineSource) SetRate(upstream float64) float64 {
	if b.rate == 0 {
		b.rate = 48000
	}
	return b.rate
}

func (b *cosineSource) Process(out1 block.Out[float32]) (block.ProcessResult, error) {
	if b.n >= b.total {
		return block.EndOfStream(), nil
	}
	k := b.total - b.n
	if k > len(out1) {
		k = len(out1)
	}
	for i := 0; i < k; i++ {
		t := float64(b.n+i) / b.rate
		out1[i] = float32(math.Cos(2 * math.Pi * b.freq * t))
	}
	b.n += k
	return block.ProcessResult{Produced: []int{k}}, nil
}

type downsampler struct {
	block.Base
	factor int
	phase  int
}

func (b *downsampler) SetRate(upstream float64) float64 {
	if b.factor <= 0 {
		b.factor = 1
	}
	return upstream / float64(b.factor)
}

func (b *downsampler) Process(in1 block.In[float32], out1 block.Out[float32]) (block.ProcessResult, error) {
	n := len(in1)
	produced := 0
	for i := 0; i < n && produced < len(out1); i++ {
		if b.phase == 0 {
			out1[produced] = in1[i]
			produced++
		}
		b.phase = (b.phase + 1) % b.factor
	}
	return block.ProcessResult{Consumed: []int{n}, Produced: []int{produced}}, nil
}

type printSink struct {
	block.Base
	count int
}

func (b *printSink) Process(in1 block.In[float32]) (block.ProcessResult, error) {
	for _, v := range in1 {
		fmt.Printf("sample %d: %.4f\n", b.count, v)
		b.count++
	}
	return block.ProcessResult{Consumed: []int{len(in1)}}, nil
}

func main() {
	src := &cosineSource{freq: 440, total: 64}
	ds := &downsampler{factor: 5}
	sink := &printSink{}

	g := flowgraph.New(nil, flowgraph.Options{})
	g.Register(src)
	g.Register(ds)
	g.Register(sink)
	if err := g.Connect(src, ds); err != nil {
		fmt.Fprintln(os.Stderr, "connect src->ds:", err)
		os.Exit(1)
	}
	if err := g.Connect(ds, sink); err != nil {
		fmt.Fprintln(os.Stderr, "connect ds->sink:", err)
		os.Exit(1)
	}

	if !g.Run() {
		fmt.Fprintln(os.Stderr, "flowdemo: graph reported failure")
		os.Exit(1)
	}
}
