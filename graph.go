// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package flowgraph is the runtime engine for a flow-graph of streaming
// signal-processing blocks: it validates the declared topology, resolves
// sample rates, allocates the ring buffers that connect blocks, spawns one
// worker goroutine per block, and routes asynchronous control calls onto
// the right worker between process invocations.
package flowgraph

import (
	"fmt"
	"sync"

	"code.hybscloud.com/flowgraph/block"
	"code.hybscloud.com/flowgraph/platform"
	"code.hybscloud.com/flowgraph/ring"
)

// Options configures a Graph at construction (spec.md §6, Graph::new).
type Options struct {
	// Debug enables a lifecycle log line per block (its exit state and
	// error) through the platform layer's debug log, which is written only
	// when the DEBUG environment variable is set.
	Debug bool
	// RingCapacity overrides the default per-edge ring size in bytes. Zero
	// means ring.DefaultCapacity.
	RingCapacity int
}

// handler is the interface every registered block satisfies by embedding
// block.Base: Handle's address is the block's stable identity throughout
// the graph's lifetime (spec.md §3).
type handler interface {
	Handle() *block.Base
}

// portEdge is a fully resolved edge after composite expansion: a directed
// link from one output port to one input port, plus the element type used
// for compatibility checking and the ring that carries it.
type portEdge struct {
	srcHandle *block.Base
	srcPort   string
	dstHandle *block.Base
	dstPort   string
	capacity  int
	rg        *ring.Ring // allocated by Start, shared by the two endpoints' muxes
}

// Graph is a mapping from block handle to descriptor, a set of directed
// edges, and (after Start) the set of worker goroutines (spec.md §3,
// "Flow-graph").
type Graph struct {
	allocator any
	opts      Options

	mu       sync.Mutex
	entries  map[*block.Base]*blockEntry
	order    []*block.Base // registration order, for deterministic iteration
	edges    []portEdge
	started  bool
	resolved bool
}

// New constructs an empty graph. allocator is passed verbatim to every
// block's Initialize/Deinitialize hook; the engine never inspects it.
func New(allocator any, opts Options) *Graph {
	if opts.RingCapacity <= 0 {
		opts.RingCapacity = ring.DefaultCapacity
	}
	return &Graph{
		allocator: allocator,
		opts:      opts,
		entries:   map[*block.Base]*blockEntry{},
	}
}

// Register describes self (via block.Describe, using its promoted Handle
// method) and adds it to the graph, returning its stable handle. Composite
// blocks are registered the same way; the topology resolver recognizes
// them by the methods block.Composite promotes.
func (g *Graph) Register(self any) *block.Base {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.registerLocked(self)
}

// registerLocked is Register's body, for callers that already hold g.mu —
// namely expandComposites, which registers a composite's children while
// Start is still holding the lock across the whole resolve pass.
func (g *Graph) registerLocked(self any) *block.Base {
	h, ok := self.(handler)
	if !ok {
		panic("flowgraph: Register requires a block embedding block.Base")
	}
	base := h.Handle()
	desc := block.Describe(self, base)

	if _, exists := g.entries[base]; exists {
		return base
	}
	g.entries[base] = &blockEntry{handle: base, self: self, desc: desc}
	g.order = append(g.order, base)
	return base
}

// ConnectPort registers a directed edge from srcPort on the block
// identified by srcHandle to dstPort on dstHandle. srcHandle/dstHandle are
// whatever was returned by Register (or the block itself, since it also
// promotes Handle()).
func (g *Graph) ConnectPort(srcBlock any, srcPort string, dstBlock any, dstPort string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.edges = append(g.edges, portEdge{
		srcHandle: handleOf(srcBlock),
		srcPort:   srcPort,
		dstHandle: handleOf(dstBlock),
		dstPort:   dstPort,
		capacity:  g.opts.RingCapacity,
	})
}

// Connect is shorthand for ConnectPort when both blocks have exactly one
// free output and one free input port (spec.md §6).
func (g *Graph) Connect(srcBlock, dstBlock any) error {
	src := handleOf(srcBlock)
	dst := handleOf(dstBlock)

	g.mu.Lock()
	srcEntry, dstEntry := g.entries[src], g.entries[dst]
	g.mu.Unlock()
	if srcEntry == nil || dstEntry == nil {
		return newTopologyErr("Connect: block not registered")
	}

	srcPort, err := freePort(srcEntry.desc.Outputs, g.outputUses(src))
	if err != nil {
		return err
	}
	dstPort, err := freePort(dstEntry.desc.Inputs, g.inputUses(dst))
	if err != nil {
		return err
	}
	g.ConnectPort(srcBlock, srcPort, dstBlock, dstPort)
	return nil
}

func (g *Graph) outputUses(h *block.Base) map[string]int {
	g.mu.Lock()
	defer g.mu.Unlock()
	uses := map[string]int{}
	for _, e := range g.edges {
		if e.srcHandle == h {
			uses[e.srcPort]++
		}
	}
	return uses
}

func (g *Graph) inputUses(h *block.Base) map[string]int {
	g.mu.Lock()
	defer g.mu.Unlock()
	uses := map[string]int{}
	for _, e := range g.edges {
		if e.dstHandle == h {
			uses[e.dstPort]++
		}
	}
	return uses
}

func freePort(ports []block.PortSpec, uses map[string]int) (string, error) {
	for _, p := range ports {
		if uses[p.Name] == 0 {
			return p.Name, nil
		}
	}
	return "", newTopologyErr("Connect: no free port available")
}

// Alias maps compositeHandle's external port compositePort onto
// child/childPort. Only meaningful while compositeHandle's Connect callback
// is running; it forwards to the composite's own Alias method, which is
// the idiomatic Go equivalent of threading a graph reference through the
// callback closure (spec.md §6, Graph::alias; §4.4).
func (g *Graph) Alias(compositeBlock any, compositePort string, child any, childPort string) {
	c, ok := handleOf(compositeBlock).Descriptor().Self().(interface {
		Alias(string, bool, any, string)
		BoundaryInputs() []string
	})
	if !ok {
		panic("flowgraph: Alias target is not a composite")
	}
	isInput := false
	for _, name := range c.BoundaryInputs() {
		if name == compositePort {
			isInput = true
			break
		}
	}
	c.Alias(compositePort, isInput, child, childPort)
}

func handleOf(v any) *block.Base {
	if h, ok := v.(handler); ok {
		return h.Handle()
	}
	panic(fmt.Sprintf("flowgraph: %T does not embed block.Base", v))
}

func (g *Graph) logf(format string, args ...any) {
	if g.opts.Debug {
		platform.Get().Logf(format, args...)
	}
}
