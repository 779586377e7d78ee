// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package flowgraph

import (
	"context"
	"fmt"
	"sync"
	"time"

	"code.hybscloud.com/atomix"
	"github.com/cloudwego/gopkg/concurrency/gopool"

	"code.hybscloud.com/flowgraph/block"
	"code.hybscloud.com/flowgraph/platform"
	"code.hybscloud.com/flowgraph/ring"
	"code.hybscloud.com/flowgraph/sample"
)

// BlockState is a block's position in the lifecycle spec.md §3 describes:
// constructed -> registered -> rate resolved -> Initialize -> Process loop
// -> Deinitialize -> owned by user again.
type BlockState int32

const (
	StatePending BlockState = iota
	StateRunning
	StateCompleted
	StateFailed
	StateAborted // terminated by a downstream Broken signal, not its own error
)

func (s BlockState) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateRunning:
		return "running"
	case StateCompleted:
		return "completed"
	case StateFailed:
		return "failed"
	case StateAborted:
		return "aborted"
	default:
		return "unknown"
	}
}

// blockEntry is the engine's private bookkeeping for one registered block:
// its descriptor, its multiplexer once Start allocates rings, its control
// queue, and its worker's exit state.
type blockEntry struct {
	handle *block.Base
	self   any
	desc   *block.Descriptor

	mux      *sample.Mux
	controlQ *controlQueue

	state   atomix.Int64
	done    chan struct{}
	procErr error
}

func (e *blockEntry) setState(s BlockState) { e.state.StoreRelease(int64(s)) }
func (e *blockEntry) State() BlockState     { return BlockState(e.state.LoadAcquire()) }

// Start validates the topology, resolves rates, allocates a ring per edge,
// binds each block to a multiplexer, and spawns one worker goroutine per
// block (spec.md §4.6, "Startup").
func (g *Graph) Start() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.started {
		return newTopologyErr("Start: graph already started")
	}
	if err := g.resolve(); err != nil {
		return err
	}

	for i := range g.edges {
		g.edges[i].rg = ring.New(g.edges[i].capacity)
	}

	inputsOf := map[*block.Base][]sample.InputPort{}
	outputsOf := map[*block.Base]map[string][]*ring.Ring{}
	for _, e := range g.edges {
		inputsOf[e.dstHandle] = append(inputsOf[e.dstHandle], sample.InputPort{
			Ring:     e.rg,
			ElemSize: findPort(g.entries[e.dstHandle].desc.Inputs, e.dstPort).ElemSize,
			Name:     e.dstPort,
		})
		if outputsOf[e.srcHandle] == nil {
			outputsOf[e.srcHandle] = map[string][]*ring.Ring{}
		}
		outputsOf[e.srcHandle][e.srcPort] = append(outputsOf[e.srcHandle][e.srcPort], e.rg)
	}

	gopool.SetPanicHandler(func(ctx context.Context, r any) {
		name, _ := ctx.Value(workerNameKey{}).(string)
		platform.Get().Logf("flowgraph: worker %q panicked outside its own recover: %v", name, r)
	})

	for _, h := range g.order {
		entry := g.entries[h]
		var outs []sample.OutputPort
		for _, p := range entry.desc.Outputs {
			outs = append(outs, sample.OutputPort{Rings: outputsOf[h][p.Name], ElemSize: p.ElemSize, Name: p.Name})
		}
		entry.mux = &sample.Mux{Inputs: inputsOf[h], Outputs: outs}
		entry.controlQ = newControlQueue()
		entry.done = make(chan struct{})
		entry.setState(StatePending)

		ctx := context.WithValue(context.Background(), workerNameKey{}, entry.desc.TypeName)
		gopool.CtxGo(ctx, g.workerLoop(entry))
	}

	g.started = true
	return nil
}

type workerNameKey struct{}

// workerLoop returns the per-block main loop spec.md §4.6 describes. It
// recovers its own panics (converting them into a Failed state) rather
// than relying solely on gopool's panic handler, which exists as a
// backstop logger for anything that escapes this recover.
func (g *Graph) workerLoop(entry *blockEntry) func() {
	return func() {
		m := platform.Get().Metrics()
		m.ActiveWorkers.Inc()
		defer m.ActiveWorkers.Dec()
		defer close(entry.done)
		defer g.failRemainingCalls(entry)
		defer func() {
			g.logf("flowgraph: block %s exited: state=%s err=%v", entry.desc.TypeName, entry.State(), entry.procErr)
		}()

		defer func() {
			if r := recover(); r != nil {
				entry.procErr = fmt.Errorf("panic: %v", r)
				entry.setState(StateFailed)
				entry.mux.SetEOS()
				entry.mux.SetBrokenInputs()
				m.BlocksFailed.WithLabelValues(entry.desc.TypeName).Inc()
			}
		}()

		entry.setState(StateRunning)

		if err := entry.desc.Initialize(g.allocator); err != nil {
			entry.procErr = newInitializeErr(entry.desc.TypeName, err)
			entry.setState(StateFailed)
			entry.mux.SetEOS()
			entry.mux.SetBrokenInputs()
			m.BlocksFailed.WithLabelValues(entry.desc.TypeName).Inc()
			entry.desc.Deinitialize(g.allocator)
			return
		}

		g.runProcessLoop(entry, m)
		entry.desc.Deinitialize(g.allocator)
	}
}

func (g *Graph) runProcessLoop(entry *blockEntry, m *platform.Metrics) {
	nIn := len(entry.mux.Inputs)
	nOut := len(entry.mux.Outputs)

	for {
		allEOS := nIn > 0
		for i := range entry.mux.Inputs {
			_, eos, _ := entry.mux.WaitInputAvailable(i, 1, 0)
			if !eos {
				allEOS = false
			}
		}
		if allEOS {
			entry.setState(StateCompleted)
			entry.mux.SetEOS()
			m.BlocksCompleted.WithLabelValues(entry.desc.TypeName).Inc()
			return
		}

		broken := false
		for j := range entry.mux.Outputs {
			_, brk, _ := entry.mux.WaitOutputAvailable(j, 1, 0)
			if brk {
				broken = true
			}
		}
		if broken {
			entry.setState(StateAborted)
			entry.mux.SetBrokenInputs()
			entry.mux.SetEOS()
			return
		}

		g.drainControlCalls(entry, m)

		inputs := make([][]byte, nIn)
		consumedElems := make([]int, nIn)
		for i := range entry.mux.Inputs {
			n := entry.mux.GetInputAvailable(i)
			inputs[i] = entry.mux.GetInputBuffer(i, n)
			consumedElems[i] = n
		}
		outputs := make([][]byte, nOut)
		producedElems := make([]int, nOut)
		for j := range entry.mux.Outputs {
			n := entry.mux.GetOutputAvailable(j)
			outputs[j] = entry.mux.GetOutputBuffer(j, n)
			producedElems[j] = n
		}

		res, err := entry.desc.Process(inputs, outputs)
		if err != nil {
			entry.procErr = newProcessErr(entry.desc.TypeName, err)
			entry.setState(StateFailed)
			entry.mux.SetEOS()
			entry.mux.SetBrokenInputs()
			m.BlocksFailed.WithLabelValues(entry.desc.TypeName).Inc()
			return
		}
		if res.EOS {
			entry.setState(StateCompleted)
			entry.mux.SetEOS()
			m.BlocksCompleted.WithLabelValues(entry.desc.TypeName).Inc()
			return
		}

		for i := range entry.mux.Inputs {
			n := consumedElems[i]
			if i < len(res.Consumed) {
				n = res.Consumed[i]
			}
			entry.mux.UpdateInput(i, n*entry.mux.Inputs[i].ElemSize)
		}
		for j := range entry.mux.Outputs {
			n := producedElems[j]
			if j < len(res.Produced) {
				n = res.Produced[j]
			}
			entry.mux.UpdateOutput(j, n*entry.mux.Outputs[j].ElemSize)
		}
	}
}

// drainControlCalls runs every queued call on this worker, between (not
// during) process invocations — the mutual-exclusion property spec.md §8
// requires (and §4.6 step 2c describes).
func (g *Graph) drainControlCalls(entry *blockEntry, m *platform.Metrics) {
	for _, c := range entry.controlQ.drain() {
		start := platform.Get().Now()
		results, err := entry.desc.Call(c.method, c.args...)
		m.ControlCalls.WithLabelValues(entry.desc.TypeName, c.method).Observe(time.Since(start).Seconds())
		c.reply <- controlReply{results: results, err: err}
	}
}

// failRemainingCalls closes entry's control queue and replies to anything
// still queued with a termination error, so a Call racing with the
// worker's shutdown never blocks forever: the worker's last drain (inside
// runProcessLoop) and this one together guarantee every pushed call gets
// exactly one reply.
func (g *Graph) failRemainingCalls(entry *blockEntry) {
	for _, c := range entry.controlQ.close() {
		c.reply <- controlReply{err: fmt.Errorf("flowgraph: block %s has terminated", entry.desc.TypeName)}
	}
}

// Call enqueues an asynchronous invocation of method on the block
// identified by handle, blocking until its worker drains and runs it
// (spec.md §4.6, "Control calls"; §6, Graph::call). Submitter blocking is
// bounded by the block's process latency, never by the graph's duration.
func (g *Graph) Call(target any, method string, args ...any) ([]any, error) {
	h := handleOf(target)
	g.mu.Lock()
	entry, ok := g.entries[h]
	g.mu.Unlock()
	if !ok {
		return nil, newTopologyErr("Call: block not registered")
	}
	reply := make(chan controlReply, 1)
	if !entry.controlQ.push(controlCall{method: method, args: args, reply: reply}) {
		return nil, fmt.Errorf("flowgraph: block %s has terminated", entry.desc.TypeName)
	}
	r := <-reply
	return r.results, r.err
}

// Wait blocks until every worker has exited, returning true iff no block
// reported a process or initialize error (spec.md §4.6, "Shutdown"; §7).
func (g *Graph) Wait() bool {
	g.mu.Lock()
	entries := make([]*blockEntry, 0, len(g.entries))
	for _, h := range g.order {
		entries = append(entries, g.entries[h])
	}
	g.mu.Unlock()

	var wg sync.WaitGroup
	ok := atomix.Bool{}
	ok.StoreRelease(true)
	wg.Add(len(entries))
	for _, e := range entries {
		go func(e *blockEntry) {
			defer wg.Done()
			<-e.done
			if e.State() == StateFailed {
				ok.StoreRelease(false)
			}
		}(e)
	}
	wg.Wait()
	return ok.LoadAcquire()
}

// WaitTimeout is Wait with a deadline; it returns ErrTimeout if workers
// have not all exited before timeout elapses. Unlike the engine's own
// internal waits, this one is explicitly user-facing (spec.md §5,
// "Timeouts").
func (g *Graph) WaitTimeout(timeout time.Duration) (bool, error) {
	done := make(chan bool, 1)
	go func() { done <- g.Wait() }()
	select {
	case ok := <-done:
		return ok, nil
	case <-time.After(timeout):
		return false, ErrTimeout
	}
}

// Stop asks every source block (one with no input ports) to cease, via its
// optional Stop hook, then lets EOS propagate and collapse the graph
// naturally (spec.md §4.6, "Shutdown"; §5, "Requested").
func (g *Graph) Stop() bool {
	g.mu.Lock()
	var sources []*blockEntry
	for _, h := range g.order {
		e := g.entries[h]
		if len(e.desc.Inputs) == 0 {
			sources = append(sources, e)
		}
	}
	g.mu.Unlock()
	for _, e := range sources {
		e.desc.Stop()
	}
	return g.Wait()
}

// Run is Start followed by Wait, returning the aggregate success result
// directly (spec.md §6, Graph::run).
func (g *Graph) Run() bool {
	if err := g.Start(); err != nil {
		return false
	}
	return g.Wait()
}
