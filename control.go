// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package flowgraph

import "sync"

// controlCall is one async invocation enqueued by Graph.Call, drained by
// its target block's worker between process iterations (spec.md §4.6,
// "Control calls").
type controlCall struct {
	method string
	args   []any
	reply  chan controlReply
}

type controlReply struct {
	results []any
	err     error
}

// controlQueue is an unbounded multi-producer/single-consumer queue: any
// number of goroutines may call push (Graph.Call can be invoked
// concurrently from anywhere), and exactly one worker goroutine calls
// drain. The teacher's lock-free queues are all fixed-capacity, which
// cannot give the unbounded semantics spec.md §4.6 asks for without a
// linked-list node allocator this pack doesn't provide, so this is a plain
// mutex-guarded slice — the same tradeoff ring/cond.go documents for
// condition-variable timeouts.
type controlQueue struct {
	mu     sync.Mutex
	items  []controlCall
	closed bool
}

func newControlQueue() *controlQueue {
	return &controlQueue{}
}

// push enqueues c and reports whether it was accepted. It returns false
// once the owning worker has exited (see close), so a caller racing with
// shutdown gets an immediate answer instead of enqueuing a call nobody
// will ever drain.
func (q *controlQueue) push(c controlCall) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return false
	}
	q.items = append(q.items, c)
	return true
}

// drain removes and returns every call queued so far, without blocking.
// Called by the worker once per loop iteration, never while process is
// running, which is what gives spec.md §8's control-call mutual exclusion
// property.
func (q *controlQueue) drain() []controlCall {
	q.mu.Lock()
	if len(q.items) == 0 {
		q.mu.Unlock()
		return nil
	}
	items := q.items
	q.items = nil
	q.mu.Unlock()
	return items
}

// close marks the queue closed and returns anything still queued, so the
// worker's shutdown path can reply to it with a termination error instead
// of leaving the caller of Call blocked forever.
func (q *controlQueue) close() []controlCall {
	q.mu.Lock()
	q.closed = true
	items := q.items
	q.items = nil
	q.mu.Unlock()
	return items
}
