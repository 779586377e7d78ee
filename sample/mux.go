// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package sample adapts the byte-granular rings of package ring into the
// typed input/output slices a block's process function expects, tracking
// per-port cursors without ever advancing them itself — only the block's
// explicit Update calls do that (spec.md §4.2, invariant (b)).
package sample

import (
	"time"

	"code.hybscloud.com/flowgraph/platform"
	"code.hybscloud.com/flowgraph/ring"
)

// InputPort binds one consumer-side ring with the element size the block
// expects to read from it.
type InputPort struct {
	Ring      *ring.Ring
	ElemSize  int
	Name      string
}

// OutputPort binds the one or more producer-side rings an output port fans
// out to (fan-out > 1 means several downstream consumers) with the element
// size the block expects to write.
type OutputPort struct {
	Rings    []*ring.Ring
	ElemSize int
	Name     string
}

// Mux is the per-block adapter over its bound input and output ports.
type Mux struct {
	Inputs  []InputPort
	Outputs []OutputPort
}

// alignDown rounds n down to the nearest multiple of size.
func alignDown(n, size int) int {
	if size <= 0 {
		return n
	}
	return (n / size) * size
}

// WaitInputAvailable blocks until at least min elements are ready on input
// i, EOS, broken, or timeout (timeout <= 0 waits indefinitely). Returns
// the number of whole elements available.
func (m *Mux) WaitInputAvailable(i int, min int, timeout time.Duration) (elems int, eos bool, timedOut bool) {
	p := m.Inputs[i]
	minBytes := min * p.ElemSize
	avail, eosFlag, to := p.Ring.WaitReadAvailable(minBytes, timeout)
	return alignDown(avail, p.ElemSize) / p.ElemSize, eosFlag, to
}

// GetInputAvailable returns the number of whole elements immediately ready
// on input i without blocking.
func (m *Mux) GetInputAvailable(i int) int {
	p := m.Inputs[i]
	n, _ := p.Ring.ReadAvailable()
	return alignDown(n, p.ElemSize) / p.ElemSize
}

// GetInputBuffer returns a byte slice over up to n whole elements of input
// i's ready data, aligned down to the element size.
func (m *Mux) GetInputBuffer(i int, n int) []byte {
	p := m.Inputs[i]
	buf := p.Ring.GetReadBuffer(n * p.ElemSize)
	return buf[:alignDown(len(buf), p.ElemSize)]
}

// UpdateInput advances input i's ring cursor by n bytes. The Mux never
// calls it on its own; the engine calls it with the block's returned
// ProcessResult.Consumed count, or with the number of elements offered when
// the result has no entry for input i.
func (m *Mux) UpdateInput(i int, n int) {
	m.Inputs[i].Ring.CommitRead(n)
}

// WaitOutputAvailable blocks until at least min elements of write space are
// free across every ring output j fans out to (so a single write is valid
// for all of them), broken, or timeout.
func (m *Mux) WaitOutputAvailable(j int, min int, timeout time.Duration) (elems int, broken bool, timedOut bool) {
	p := m.Outputs[j]
	minBytes := min * p.ElemSize
	deadline, hasDeadline := deadlineOf(timeout)
	for {
		least := -1
		anyBroken := false
		var tightest *ring.Ring
		for _, rg := range p.Rings {
			n, brk, _ := rg.WaitWriteAvailable(0, 0)
			anyBroken = anyBroken || brk
			if least == -1 || n < least {
				least = n
				tightest = rg
			}
		}
		if anyBroken {
			return alignDown(least, p.ElemSize) / p.ElemSize, true, false
		}
		if least >= minBytes {
			return alignDown(least, p.ElemSize) / p.ElemSize, false, false
		}
		if hasDeadline && !platform.Get().Now().Before(deadline) {
			return alignDown(least, p.ElemSize) / p.ElemSize, false, true
		}
		// Block on whichever ring is tightest; a commit-read on it wakes
		// us to re-check the others.
		waitOn := tightest
		remaining := time.Duration(0)
		if hasDeadline {
			remaining = deadline.Sub(platform.Get().Now())
			if remaining <= 0 {
				return alignDown(least, p.ElemSize) / p.ElemSize, false, true
			}
		} else {
			remaining = 5 * time.Millisecond
		}
		waitOn.WaitWriteAvailable(minBytes, remaining)
	}
}

// GetOutputAvailable returns the number of whole elements immediately
// writable to output j without blocking (the minimum across its fan-out
// rings).
func (m *Mux) GetOutputAvailable(j int) int {
	p := m.Outputs[j]
	least := -1
	for _, rg := range p.Rings {
		n := rg.WriteAvailable()
		if least == -1 || n < least {
			least = n
		}
	}
	if least < 0 {
		least = 0
	}
	return alignDown(least, p.ElemSize) / p.ElemSize
}

// GetOutputBuffer returns a byte slice the block writes into directly; it
// is backed by the first fan-out ring's internal buffer. UpdateOutput
// replicates whatever prefix was written into the remaining fan-out rings.
func (m *Mux) GetOutputBuffer(j int, n int) []byte {
	p := m.Outputs[j]
	buf := p.Rings[0].GetWriteBuffer(n * p.ElemSize)
	return buf[:alignDown(len(buf), p.ElemSize)]
}

// UpdateOutput commits n bytes written into output j's presented buffer,
// replicating the bytes into every other fan-out ring (spec.md §4.2: "the
// multiplexer presents one write buffer but copies to all on commit") and
// committing all of them.
func (m *Mux) UpdateOutput(j int, n int) {
	p := m.Outputs[j]
	if n <= 0 {
		return
	}
	primary := p.Rings[0].GetWriteBuffer(n)[:n]
	for _, rg := range p.Rings[1:] {
		rg.CopyIn(primary)
	}
	p.Rings[0].CommitWrite(n)
}

// SetEOS marks end-of-stream on every output ring.
func (m *Mux) SetEOS() {
	for _, p := range m.Outputs {
		for _, rg := range p.Rings {
			rg.SetEOS()
		}
	}
}

// SetBrokenInputs marks every input ring's consumer side as broken,
// signalling upstream producers to abort.
func (m *Mux) SetBrokenInputs() {
	for _, p := range m.Inputs {
		p.Ring.SetBroken()
	}
}

// deadlineOf computes a wait deadline off the platform's cached clock
// rather than time.Now(), the same reason ring.deadlineOf does (spec.md
// §4.7; SPEC_FULL.md §1.1, go-timecache).
func deadlineOf(timeout time.Duration) (time.Time, bool) {
	if timeout <= 0 {
		return time.Time{}, false
	}
	return platform.Get().Now().Add(timeout), true
}
