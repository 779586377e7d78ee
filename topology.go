// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package flowgraph

import (
	"code.hybscloud.com/flowgraph/block"
)

// compositeLike is satisfied by anything embedding block.Composite: its
// methods are promoted onto the user's composite struct, so a plain type
// assertion on the registered block's concrete value is enough for the
// resolver to recognize and expand it (spec.md §4.4).
type compositeLike interface {
	Connect()
	Children() []any
	Aliases() []block.Alias
	Edges() []block.PendingEdge
	BoundaryInputs() []string
	BoundaryOutputs() []string
}

// resolve expands composites, validates the topology, detects cycles, and
// propagates sample rates (spec.md §4.5). It mutates g.entries/g.edges in
// place so Start can allocate rings directly off the result.
func (g *Graph) resolve() error {
	if err := g.expandComposites(); err != nil {
		return err
	}
	if err := g.validatePorts(); err != nil {
		return err
	}
	order, err := g.topoSort()
	if err != nil {
		return err
	}
	if err := g.propagateRates(order); err != nil {
		return err
	}
	g.resolved = true
	return nil
}

// expandComposites runs every registered composite's Connect callback,
// folds its children into the graph, rewrites edges that reference the
// composite's boundary ports to the aliased child port, and removes the
// composite itself from the flattened graph (spec.md §4.5 step 1; §9 Open
// Question (a): composites are compile-time conveniences only).
func (g *Graph) expandComposites() error {
	var composites []*block.Base
	for _, h := range g.order {
		if _, ok := g.entries[h].self.(compositeLike); ok {
			composites = append(composites, h)
		}
	}

	for _, ch := range composites {
		entry := g.entries[ch]
		c := entry.self.(compositeLike)
		c.Connect()

		for _, child := range c.Children() {
			g.registerLocked(child)
		}
		for _, e := range c.Edges() {
			g.edges = append(g.edges, portEdge{
				srcHandle: handleOf(e.SrcBlock),
				srcPort:   e.SrcPort,
				dstHandle: handleOf(e.DstBlock),
				dstPort:   e.DstPort,
				capacity:  g.opts.RingCapacity,
			})
		}

		aliasIn := map[string]block.Alias{}
		aliasOut := map[string]block.Alias{}
		for _, a := range c.Aliases() {
			if a.IsInput {
				aliasIn[a.CompositePort] = a
			} else {
				aliasOut[a.CompositePort] = a
			}
		}

		rewritten := make([]portEdge, 0, len(g.edges))
		for _, e := range g.edges {
			if e.dstHandle == ch {
				a, ok := aliasIn[e.dstPort]
				if !ok {
					return newTopologyErr("composite %s: boundary input %q has no alias", entry.desc.TypeName, e.dstPort)
				}
				e.dstHandle, e.dstPort = handleOf(a.Child), a.ChildPort
			}
			if e.srcHandle == ch {
				a, ok := aliasOut[e.srcPort]
				if !ok {
					return newTopologyErr("composite %s: boundary output %q has no alias", entry.desc.TypeName, e.srcPort)
				}
				e.srcHandle, e.srcPort = handleOf(a.Child), a.ChildPort
			}
			rewritten = append(rewritten, e)
		}
		g.edges = rewritten
		delete(g.entries, ch)
		g.order = removeHandle(g.order, ch)
	}
	return nil
}

func removeHandle(order []*block.Base, h *block.Base) []*block.Base {
	out := order[:0]
	for _, o := range order {
		if o != h {
			out = append(out, o)
		}
	}
	return out
}

// validatePorts checks spec.md §4.5 step 2: every input port referenced by
// exactly one edge, every edge's element types matching, and every
// referenced port name actually existing on its block.
func (g *Graph) validatePorts() error {
	inUse := map[*block.Base]map[string]int{}
	for _, e := range g.edges {
		srcEntry, ok := g.entries[e.srcHandle]
		if !ok {
			return newTopologyErr("edge references unregistered source block")
		}
		dstEntry, ok := g.entries[e.dstHandle]
		if !ok {
			return newTopologyErr("edge references unregistered destination block")
		}
		srcPort := findPort(srcEntry.desc.Outputs, e.srcPort)
		if srcPort == nil {
			return newTopologyErr("unknown output port %q on block %s", e.srcPort, srcEntry.desc.TypeName)
		}
		dstPort := findPort(dstEntry.desc.Inputs, e.dstPort)
		if dstPort == nil {
			return newTopologyErr("unknown input port %q on block %s", e.dstPort, dstEntry.desc.TypeName)
		}
		if srcPort.ElemType != dstPort.ElemType {
			return newTopologyErr("type mismatch: %s.%s (%s) -> %s.%s (%s)",
				srcEntry.desc.TypeName, e.srcPort, srcPort.ElemType,
				dstEntry.desc.TypeName, e.dstPort, dstPort.ElemType)
		}
		if inUse[e.dstHandle] == nil {
			inUse[e.dstHandle] = map[string]int{}
		}
		inUse[e.dstHandle][e.dstPort]++
		if inUse[e.dstHandle][e.dstPort] > 1 {
			return newTopologyErr("input port %q on block %s has more than one edge", e.dstPort, dstEntry.desc.TypeName)
		}
	}
	outUse := map[*block.Base]map[string]int{}
	for _, e := range g.edges {
		if outUse[e.srcHandle] == nil {
			outUse[e.srcHandle] = map[string]int{}
		}
		outUse[e.srcHandle][e.srcPort]++
	}

	for h, entry := range g.entries {
		for _, p := range entry.desc.Inputs {
			if inUse[h][p.Name] == 0 {
				return newTopologyErr("input port %q on block %s is unconnected", p.Name, entry.desc.TypeName)
			}
		}
		for _, p := range entry.desc.Outputs {
			if outUse[h][p.Name] == 0 {
				return newTopologyErr("output port %q on block %s is unconnected", p.Name, entry.desc.TypeName)
			}
		}
	}
	return nil
}

func findPort(ports []block.PortSpec, name string) *block.PortSpec {
	for i := range ports {
		if ports[i].Name == name {
			return &ports[i]
		}
	}
	return nil
}

// topoSort runs Kahn's algorithm over the expanded graph and returns blocks
// in topological order, or a topology error if a cycle remains (spec.md
// §4.5 step 3).
func (g *Graph) topoSort() ([]*block.Base, error) {
	indeg := map[*block.Base]int{}
	adj := map[*block.Base][]*block.Base{}
	for h := range g.entries {
		indeg[h] = 0
	}
	for _, e := range g.edges {
		adj[e.srcHandle] = append(adj[e.srcHandle], e.dstHandle)
		indeg[e.dstHandle]++
	}

	var queue, order []*block.Base
	for _, h := range g.order {
		if _, ok := g.entries[h]; ok && indeg[h] == 0 {
			queue = append(queue, h)
		}
	}
	for len(queue) > 0 {
		h := queue[0]
		queue = queue[1:]
		order = append(order, h)
		for _, next := range adj[h] {
			indeg[next]--
			if indeg[next] == 0 {
				queue = append(queue, next)
			}
		}
	}
	if len(order) != len(g.entries) {
		return nil, newTopologyErr("cycle detected: graph is not a DAG")
	}
	return order, nil
}

// propagateRates walks the topologically sorted blocks and assigns each a
// resolved sample rate (spec.md §4.5 step 4).
func (g *Graph) propagateRates(order []*block.Base) error {
	rateOf := map[*block.Base]map[string]float64{} // block -> input port name -> rate

	for _, h := range order {
		entry := g.entries[h]
		var r float64
		if len(entry.desc.Inputs) == 0 {
			r = entry.desc.ResolveRate(0)
		} else {
			inputs := rateOf[h]
			first := entry.desc.Inputs[0].Name
			r = inputs[first]
			r = entry.desc.ResolveRate(r)
			for _, p := range entry.desc.Inputs[1:] {
				if inputs[p.Name] != inputs[first] {
					return newTopologyErr("rate mismatch at block %s: input %q has rate %v, expected %v",
						entry.desc.TypeName, p.Name, inputs[p.Name], inputs[first])
				}
			}
		}
		entry.desc.Rate = r

		for _, e := range g.edges {
			if e.srcHandle != h {
				continue
			}
			if rateOf[e.dstHandle] == nil {
				rateOf[e.dstHandle] = map[string]float64{}
			}
			rateOf[e.dstHandle][e.dstPort] = r
		}
	}
	return nil
}
