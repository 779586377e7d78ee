// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package block

// Composite is a block whose body is a subgraph plus alias declarations
// (spec.md §3, "Composite block descriptor"; §4.4). It is expanded at
// graph-validation time and never exists as a runtime entity — spec.md §9
// Open Question (a) resolved in favor of "composites are compile-time
// structural conveniences, not runtime entities."
type Composite struct {
	Base

	boundaryInputs  []string
	boundaryOutputs []string
	children        []any
	aliases         []Alias
	edges           []PendingEdge
	connectFn       func(c *Composite)
}

// Alias maps a composite's external port name onto exactly one child's
// port — a renaming, not a wire (spec.md §4.4).
type Alias struct {
	CompositePort string
	IsInput       bool
	Child         any
	ChildPort     string
}

// PendingEdge is an internal edge declared by a composite's Connect
// callback, between two of its children. The topology resolver appends
// these to the flattened edge set when it expands the composite.
type PendingEdge struct {
	SrcBlock any
	SrcPort  string
	DstBlock any
	DstPort  string
}

// InitComposite wires up a Composite's boundary port names and its Connect
// callback, which the topology resolver invokes during graph validation
// (spec.md §4.5 step 1) to register children, internal edges, and
// boundary aliases.
func InitComposite(c *Composite, boundaryInputs, boundaryOutputs []string, connect func(c *Composite)) {
	c.boundaryInputs = boundaryInputs
	c.boundaryOutputs = boundaryOutputs
	c.connectFn = connect
}

// BoundaryInputs returns the composite's declared external input port names.
func (c *Composite) BoundaryInputs() []string { return c.boundaryInputs }

// BoundaryOutputs returns the composite's declared external output port names.
func (c *Composite) BoundaryOutputs() []string { return c.boundaryOutputs }

// AddChild registers a child block, to be expanded into the flattened
// graph by the topology resolver.
func (c *Composite) AddChild(child any) {
	c.children = append(c.children, child)
}

// Children returns the composite's registered children.
func (c *Composite) Children() []any { return c.children }

// Alias maps the composite's external port compositePort onto
// child/childPort. isInput distinguishes which boundary port list
// compositePort belongs to. Only valid while the composite's Connect
// callback is running (spec.md §6, Graph::alias).
func (c *Composite) Alias(compositePort string, isInput bool, child any, childPort string) {
	c.aliases = append(c.aliases, Alias{CompositePort: compositePort, IsInput: isInput, Child: child, ChildPort: childPort})
}

// Aliases returns the alias declarations recorded by Connect.
func (c *Composite) Aliases() []Alias { return c.aliases }

// ConnectPort declares an internal edge between two children, to be
// registered in the flattened graph when this composite is expanded.
func (c *Composite) ConnectPort(srcBlock any, srcPort string, dstBlock any, dstPort string) {
	c.edges = append(c.edges, PendingEdge{SrcBlock: srcBlock, SrcPort: srcPort, DstBlock: dstBlock, DstPort: dstPort})
}

// Edges returns the internal edges recorded by Connect.
func (c *Composite) Edges() []PendingEdge { return c.edges }

// Connect runs the composite's connect callback, which is expected to call
// AddChild and Alias to populate Children/Aliases.
func (c *Composite) Connect() {
	if c.connectFn != nil {
		c.connectFn(c)
	}
}
