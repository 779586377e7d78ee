// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package block

import (
	"fmt"
	"reflect"
	"strings"
)

// PortSpec describes one input or output port: its name and the Go type
// of the elements flowing through it (for edge type-compatibility checks
// during topology validation).
type PortSpec struct {
	Name     string
	ElemType reflect.Type
	ElemSize int
}

// Descriptor is the block facade: everything the engine needs to drive a
// user-authored block without importing its concrete type (spec.md §3,
// "Block descriptor"). Built once, at construction, by Describe.
type Descriptor struct {
	TypeName string
	Inputs   []PortSpec
	Outputs  []PortSpec

	HasInitialize   bool
	HasDeinitialize bool
	HasSetRate      bool
	HasStop         bool

	// Rate is mutable: set by the topology/rate resolver (§4.5), read by
	// the engine and by blocks implementing SetRate.
	Rate float64

	self reflect.Value // the user block, addressable pointer value

	processTrampoline func(inputs, outputs [][]byte) (ProcessResult, error)
	initializeFn      func(allocator any) error
	deinitializeFn    func(allocator any) error
	setRateFn         func(upstream float64) float64
	stopFn            func()

	controlMethods map[string]reflect.Value
}

// Base is the canonical field a block struct embeds. Its address is the
// stable identity spec.md §3 calls "the handle used by all graph APIs";
// Handle returns it.
type Base struct {
	desc *Descriptor
}

// Handle returns the canonical identity of the block this Base is embedded
// in: the address of the Base field itself.
func (b *Base) Handle() *Base { return b }

// Descriptor returns the descriptor built by Describe, or nil if the block
// hasn't been described yet.
func (b *Base) Descriptor() *Descriptor { return b.desc }

// namer is an optional interface a block implements to override the
// default in1..inN/out1..outM port naming (spec.md §4.3 step 2).
type namer interface {
	PortNames() (inputs, outputs []string)
}

// Describe introspects self's Process method and optional hooks, builds a
// Descriptor, and wires it into self's embedded Base so the engine can
// reach it via Handle() without knowing self's concrete type. self must be
// a pointer to a struct embedding Base.
//
// This is the concrete realization of spec.md §4.3: rather than enumerate
// Process's parameter list via macros (Go has none), it enumerates via
// reflect.Type.Method and classifies each parameter by its In[E]/Out[E]
// type name — see ports.go.
func Describe(self any, base *Base) *Descriptor {
	rv := reflect.ValueOf(self)
	if rv.Kind() != reflect.Ptr {
		panic("block: Describe requires a pointer to the block struct")
	}
	rt := rv.Type()

	// A composite has no Process method of its own — it's expanded into
	// its children before the engine ever looks for one (spec.md §4.4;
	// §4.5 step 1). Connect is the method Composite promotes that no leaf
	// block defines, so it's the marker used to tell the two apart without
	// this package importing the topology resolver that does the
	// expanding.
	if _, ok := self.(interface{ Connect() }); ok {
		d := &Descriptor{TypeName: rt.Elem().Name(), self: rv}
		base.desc = d
		return d
	}

	method, ok := rt.MethodByName("Process")
	if !ok {
		panic(fmt.Sprintf("block: %s has no Process method", rt))
	}

	d := &Descriptor{TypeName: rt.Elem().Name(), controlMethods: map[string]reflect.Value{}, self: rv}

	mtype := method.Type // in(0) is the receiver
	var inSpecs, outSpecs []PortSpec
	var inIdx, outIdx []int
	for i := 1; i < mtype.NumIn(); i++ {
		p := mtype.In(i)
		switch portDirection(p) {
		case directionIn:
			inSpecs = append(inSpecs, PortSpec{ElemType: p.Elem(), ElemSize: int(p.Elem().Size())})
			inIdx = append(inIdx, i)
		case directionOut:
			outSpecs = append(outSpecs, PortSpec{ElemType: p.Elem(), ElemSize: int(p.Elem().Size())})
			outIdx = append(outIdx, i)
		default:
			panic(fmt.Sprintf("block: %s.Process parameter %d is neither block.In[E] nor block.Out[E]", rt, i))
		}
	}

	inNames, outNames := defaultNames(len(inSpecs), len(outSpecs))
	if n, ok := self.(namer); ok {
		ins, outs := n.PortNames()
		if len(ins) == len(inSpecs) {
			inNames = ins
		}
		if len(outs) == len(outSpecs) {
			outNames = outs
		}
	}
	for i := range inSpecs {
		inSpecs[i].Name = inNames[i]
	}
	for i := range outSpecs {
		outSpecs[i].Name = outNames[i]
	}
	d.Inputs, d.Outputs = inSpecs, outSpecs

	processM := rv.MethodByName("Process")
	d.processTrampoline = func(inputs, outputs [][]byte) (ProcessResult, error) {
		args := make([]reflect.Value, mtype.NumIn()-1)
		for k, i := range inIdx {
			args[i-1] = bytesToTypedSlice(mtype.In(i), inputs[k])
		}
		for k, i := range outIdx {
			args[i-1] = bytesToTypedSlice(mtype.In(i), outputs[k])
		}
		out := processM.Call(args)
		res, _ := out[0].Interface().(ProcessResult)
		var err error
		if len(out) > 1 && !out[1].IsNil() {
			err, _ = out[1].Interface().(error)
		}
		return res, err
	}

	if m, ok := rt.MethodByName("Initialize"); ok {
		d.HasInitialize = true
		fn := rv.MethodByName("Initialize")
		_ = m
		d.initializeFn = func(allocator any) error {
			out := fn.Call([]reflect.Value{reflect.ValueOf(allocator)})
			if len(out) > 0 && !out[0].IsNil() {
				e, _ := out[0].Interface().(error)
				return e
			}
			return nil
		}
	}
	if _, ok := rt.MethodByName("Deinitialize"); ok {
		d.HasDeinitialize = true
		fn := rv.MethodByName("Deinitialize")
		d.deinitializeFn = func(allocator any) error {
			out := fn.Call([]reflect.Value{reflect.ValueOf(allocator)})
			if len(out) > 0 && !out[0].IsNil() {
				e, _ := out[0].Interface().(error)
				return e
			}
			return nil
		}
	}
	if _, ok := rt.MethodByName("SetRate"); ok {
		d.HasSetRate = true
		fn := rv.MethodByName("SetRate")
		d.setRateFn = func(upstream float64) float64 {
			out := fn.Call([]reflect.Value{reflect.ValueOf(upstream)})
			return out[0].Float()
		}
	}
	if _, ok := rt.MethodByName("Stop"); ok {
		d.HasStop = true
		fn := rv.MethodByName("Stop")
		d.stopFn = func() { fn.Call(nil) }
	}

	reserved := map[string]bool{"Process": true, "Initialize": true, "Deinitialize": true, "SetRate": true, "Stop": true, "Handle": true, "Descriptor": true, "PortNames": true}
	for i := 0; i < rt.NumMethod(); i++ {
		m := rt.Method(i)
		if reserved[m.Name] || strings.HasPrefix(m.Name, "Connect") {
			continue
		}
		d.controlMethods[m.Name] = rv.Method(i)
	}

	base.desc = d
	return d
}

type direction int

const (
	directionNone direction = iota
	directionIn
	directionOut
)

func portDirection(t reflect.Type) direction {
	if t.Kind() != reflect.Slice {
		return directionNone
	}
	name := t.Name()
	switch {
	case strings.HasPrefix(name, "In["):
		return directionIn
	case strings.HasPrefix(name, "Out["):
		return directionOut
	default:
		return directionNone
	}
}

func defaultNames(nIn, nOut int) (ins, outs []string) {
	for i := 1; i <= nIn; i++ {
		ins = append(ins, fmt.Sprintf("in%d", i))
	}
	for j := 1; j <= nOut; j++ {
		outs = append(outs, fmt.Sprintf("out%d", j))
	}
	return ins, outs
}

// Process invokes the block's process trampoline with raw input/output
// byte buffers, reinterpreting them as the block's native typed slices.
func (d *Descriptor) Process(inputs, outputs [][]byte) (ProcessResult, error) {
	return d.processTrampoline(inputs, outputs)
}

// Initialize invokes the block's optional Initialize hook, if present.
func (d *Descriptor) Initialize(allocator any) error {
	if d.initializeFn == nil {
		return nil
	}
	return d.initializeFn(allocator)
}

// Deinitialize invokes the block's optional Deinitialize hook, if present.
func (d *Descriptor) Deinitialize(allocator any) error {
	if d.deinitializeFn == nil {
		return nil
	}
	return d.deinitializeFn(allocator)
}

// ResolveRate computes this block's rate given its first input port's
// rate (ignored for source blocks, which pass 0) per spec.md §4.5 step 4.
func (d *Descriptor) ResolveRate(upstream float64) float64 {
	if d.setRateFn != nil {
		return d.setRateFn(upstream)
	}
	return upstream
}

// Stop invokes the block's optional Stop hook, used by Graph.Stop to ask
// source blocks to set EOS on their own schedule.
func (d *Descriptor) Stop() {
	if d.stopFn != nil {
		d.stopFn()
	}
}

// Call invokes a named async control method with the given arguments,
// returning its results as []any plus an error if the last return value
// was a non-nil error. Dispatched onto the block's worker goroutine by the
// engine between process iterations (spec.md §4.6).
func (d *Descriptor) Call(method string, args ...any) ([]any, error) {
	fn, ok := d.controlMethods[method]
	if !ok {
		return nil, fmt.Errorf("block: %s has no control method %q", d.TypeName, method)
	}
	in := make([]reflect.Value, len(args))
	for i, a := range args {
		in[i] = reflect.ValueOf(a)
	}
	out := fn.Call(in)
	if len(out) == 0 {
		return nil, nil
	}
	last := out[len(out)-1]
	if last.Type().Implements(errorType) {
		var err error
		if !last.IsNil() {
			err = last.Interface().(error)
		}
		results := make([]any, 0, len(out)-1)
		for _, v := range out[:len(out)-1] {
			results = append(results, v.Interface())
		}
		return results, err
	}
	results := make([]any, len(out))
	for i, v := range out {
		results[i] = v.Interface()
	}
	return results, nil
}

// HasControlMethod reports whether method names a callable control method.
func (d *Descriptor) HasControlMethod(method string) bool {
	_, ok := d.controlMethods[method]
	return ok
}

// Self returns the user's concrete block value this descriptor was built
// from, for callers (Graph.Alias) that need to type-assert it against
// optional interfaces like Composite's.
func (d *Descriptor) Self() any {
	return d.self.Interface()
}

var errorType = reflect.TypeOf((*error)(nil)).Elem()

// sliceHeader mirrors the runtime's slice layout, the same technique used
// by cloudwego/gopkg's internal/hack package to reinterpret a byte buffer
// as another slice type without copying.
type sliceHeader struct {
	Data uintptr
	Len  int
	Cap  int
}

// bytesToTypedSlice reinterprets buf as a value of sliceType (which must be
// a named slice type such as block.In[E]/block.Out[E]) with no copy. buf's
// length must already be a multiple of the element size; Mux guarantees
// that by aligning down before handing buffers to the trampoline.
func bytesToTypedSlice(sliceType reflect.Type, buf []byte) reflect.Value {
	elemSize := int(sliceType.Elem().Size())
	n := 0
	if elemSize > 0 {
		n = len(buf) / elemSize
	}
	var sh sliceHeader
	if n > 0 {
		sh = sliceHeader{Data: uintptr(ptrOf(buf)), Len: n, Cap: n}
	}
	return reflectNewAt(sliceType, &sh).Elem()
}
