// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package ring provides the single-producer/single-consumer byte-granular
// ring buffer that underlies every edge of a flow graph.
//
// The cursors are a Lamport ring, the same shape as
// code.hybscloud.com/lfq's SPSC[T] specialized to byte: the non-blocking
// availability queries and buffer views are lock-free atomic loads.
// Blocking waits with an optional timeout are layered on top with a mutex
// and a pair of condition variables; a waiter takes the mutex only after a
// short lock-free spin fails, and commit-write, commit-read, set-eos and
// set-broken take it briefly after advancing the cursor or flag, to
// broadcast to any parked waiter.
package ring

import (
	"sync"
	"time"

	"code.hybscloud.com/atomix"
	"code.hybscloud.com/spin"

	"code.hybscloud.com/flowgraph/internal/accel"
	"code.hybscloud.com/flowgraph/platform"
)

// DefaultCapacity is the default ring size in bytes: one 4 KiB page's worth
// of samples doubled to clear the 8 KiB floor spec.md §4.6 asks for.
const DefaultCapacity = 8192

// spinIters bounds the lock-free spin attempted before a waiter parks on
// its condition variable, mirroring the teacher's spin.Wait{} discipline
// in mpsc.go before falling back to blocking.
const spinIters = 64

// Ring is a fixed-capacity byte FIFO with exactly one producer and exactly
// one consumer. All offsets are in bytes; capacity is rounded up to the
// next power of two so cursors wrap via masking. GetWriteBuffer and
// GetReadBuffer return the contiguous part of a region up to the wrap
// point; the rest is returned by the next call after a commit.
type Ring struct {
	_    pad
	head atomix.Uint64 // consumer's read cursor
	_    pad
	tail atomix.Uint64 // producer's write cursor
	_    pad
	eos    atomix.Bool // producer: no further writes
	broken atomix.Bool // consumer: no further reads will be accepted
	_      pad

	buf  []byte
	mask uint64

	mu       sync.Mutex
	readable sync.Cond // signalled on commit-write, set-eos
	writable sync.Cond // signalled on commit-read, set-broken
}

type pad [64]byte

// New creates a ring buffer of at least capacity bytes, rounded up to the
// next power of two.
func New(capacity int) *Ring {
	if capacity < 2 {
		capacity = DefaultCapacity
	}
	n := roundToPow2(capacity)
	r := &Ring{
		buf:  make([]byte, n),
		mask: uint64(n - 1),
	}
	r.readable.L = &r.mu
	r.writable.L = &r.mu
	return r
}

// Cap returns the ring's capacity in bytes.
func (r *Ring) Cap() int {
	return int(r.mask + 1)
}

// WriteAvailable returns the number of bytes currently free for writing.
func (r *Ring) WriteAvailable() int {
	tail := r.tail.LoadRelaxed()
	head := r.head.LoadAcquire()
	return int(r.mask+1) - int(tail-head)
}

// ReadAvailable returns the number of bytes ready to read. If the producer
// has set EOS and there is nothing pending, ok is false to signal
// EndOfStream; the caller distinguishes "0 bytes, more coming" from
// "0 bytes, stream over" via ok.
func (r *Ring) ReadAvailable() (n int, ok bool) {
	head := r.head.LoadRelaxed()
	tail := r.tail.LoadAcquire()
	avail := int(tail - head)
	if avail > 0 {
		return avail, true
	}
	if r.eos.LoadAcquire() {
		return 0, false
	}
	return 0, true
}

// IsEOS reports whether the producer has signalled end-of-stream and every
// byte written before it has been consumed.
func (r *Ring) IsEOS() bool {
	n, ok := r.ReadAvailable()
	return n == 0 && !ok
}

// IsBroken reports whether the consumer has refused further data.
func (r *Ring) IsBroken() bool {
	return r.broken.LoadAcquire()
}

// GetWriteBuffer returns a contiguous slice at the tail covering up to n
// bytes (less if the contiguous region before wraparound is smaller or the
// ring doesn't have n bytes free). The caller writes into the returned
// slice and calls CommitWrite with however many bytes it actually wrote.
func (r *Ring) GetWriteBuffer(n int) []byte {
	tail := r.tail.LoadRelaxed()
	head := r.head.LoadAcquire()
	free := int(r.mask+1) - int(tail-head)
	if n > free {
		n = free
	}
	if n <= 0 {
		return nil
	}
	pos := tail & r.mask
	contig := int(r.mask+1) - int(pos)
	if n > contig {
		n = contig
	}
	return r.buf[pos : pos+uint64(n)]
}

// GetReadBuffer returns a contiguous slice at the head covering up to n
// bytes of ready data.
func (r *Ring) GetReadBuffer(n int) []byte {
	head := r.head.LoadRelaxed()
	tail := r.tail.LoadAcquire()
	avail := int(tail - head)
	if n > avail {
		n = avail
	}
	if n <= 0 {
		return nil
	}
	pos := head & r.mask
	contig := int(r.mask+1) - int(pos)
	if n > contig {
		n = contig
	}
	return r.buf[pos : pos+uint64(n)]
}

// CommitWrite advances the write cursor by n bytes (producer only) and
// wakes any consumer blocked in WaitReadAvailable.
func (r *Ring) CommitWrite(n int) {
	if n <= 0 {
		return
	}
	tail := r.tail.LoadRelaxed()
	r.tail.StoreRelease(tail + uint64(n))
	r.mu.Lock()
	r.readable.Broadcast()
	r.mu.Unlock()
}

// CommitRead advances the read cursor by n bytes (consumer only) and wakes
// any producer blocked in WaitWriteAvailable.
func (r *Ring) CommitRead(n int) {
	if n <= 0 {
		return
	}
	head := r.head.LoadRelaxed()
	r.head.StoreRelease(head + uint64(n))
	r.mu.Lock()
	r.writable.Broadcast()
	r.mu.Unlock()
}

// CopyIn writes data into the ring's write region via the package's
// optionally-accelerated bulk copy and commits it in one step. It is a
// convenience used by the sample multiplexer's fan-out path, which must
// copy the same bytes into several downstream rings.
func (r *Ring) CopyIn(data []byte) int {
	dst := r.GetWriteBuffer(len(data))
	n := accel.CopyBulk(dst, data[:len(dst)])
	r.CommitWrite(n)
	return n
}

// SetEOS marks the stream as ended (producer only). No further writes may
// occur after this call.
func (r *Ring) SetEOS() {
	r.eos.StoreRelease(true)
	r.mu.Lock()
	r.readable.Broadcast()
	r.mu.Unlock()
}

// SetBroken marks the stream as broken (consumer only): the consumer will
// accept no further data, signalling upstream to abort.
func (r *Ring) SetBroken() {
	r.broken.StoreRelease(true)
	r.mu.Lock()
	r.writable.Broadcast()
	r.mu.Unlock()
}

// WaitReadAvailable blocks until at least min bytes are ready, EOS is
// signalled, the ring is broken, or timeout elapses (timeout <= 0 means
// wait indefinitely). Returns the bytes currently available, whether the
// stream has ended, and whether the wait timed out.
func (r *Ring) WaitReadAvailable(min int, timeout time.Duration) (avail int, eos bool, timedOut bool) {
	sw := spin.Wait{}
	for i := 0; i < spinIters; i++ {
		n, ok := r.ReadAvailable()
		if n >= min || !ok || r.broken.LoadAcquire() {
			return n, !ok, false
		}
		sw.Once()
	}

	deadline, hasDeadline := deadlineOf(timeout)
	r.mu.Lock()
	defer r.mu.Unlock()
	for {
		n, ok := r.ReadAvailable()
		if n >= min || !ok || r.broken.LoadAcquire() {
			return n, !ok, false
		}
		if !hasDeadline {
			r.readable.Wait()
			continue
		}
		remaining := remainingUntil(deadline)
		if remaining <= 0 {
			n, ok = r.ReadAvailable()
			return n, !ok, true
		}
		if !condWaitTimeout(&r.readable, &r.mu, remaining) {
			n, ok = r.ReadAvailable()
			return n, !ok, true
		}
	}
}

// WaitWriteAvailable blocks until at least min bytes are free, the ring is
// broken, or timeout elapses (timeout <= 0 means wait indefinitely).
func (r *Ring) WaitWriteAvailable(min int, timeout time.Duration) (avail int, broken bool, timedOut bool) {
	sw := spin.Wait{}
	for i := 0; i < spinIters; i++ {
		n := r.WriteAvailable()
		if n >= min || r.broken.LoadAcquire() {
			return n, r.broken.LoadAcquire(), false
		}
		sw.Once()
	}

	deadline, hasDeadline := deadlineOf(timeout)
	r.mu.Lock()
	defer r.mu.Unlock()
	for {
		n := r.WriteAvailable()
		if n >= min || r.broken.LoadAcquire() {
			return n, r.broken.LoadAcquire(), false
		}
		if !hasDeadline {
			r.writable.Wait()
			continue
		}
		remaining := remainingUntil(deadline)
		if remaining <= 0 {
			return r.WriteAvailable(), r.broken.LoadAcquire(), true
		}
		if !condWaitTimeout(&r.writable, &r.mu, remaining) {
			return r.WriteAvailable(), r.broken.LoadAcquire(), true
		}
	}
}

// TryReadAvailable is the non-blocking counterpart to WaitReadAvailable: it
// never spins and never touches the mutex. It returns ErrWouldBlock if fewer
// than min bytes are ready and the stream has not ended, so a caller can
// poll several rings in round-robin fashion without parking on any single
// one of them.
func (r *Ring) TryReadAvailable(min int) (avail int, eos bool, err error) {
	n, ok := r.ReadAvailable()
	if n >= min || !ok || r.broken.LoadAcquire() {
		return n, !ok, nil
	}
	return n, false, ErrWouldBlock
}

// TryWriteAvailable is the non-blocking counterpart to WaitWriteAvailable.
func (r *Ring) TryWriteAvailable(min int) (avail int, broken bool, err error) {
	n := r.WriteAvailable()
	brk := r.broken.LoadAcquire()
	if n >= min || brk {
		return n, brk, nil
	}
	return n, false, ErrWouldBlock
}

// deadlineOf computes a wait deadline off the platform's cached clock
// rather than time.Now(), so a worker parked on many ports across many
// iterations doesn't pay a syscall per deadline check (spec.md §4.7;
// SPEC_FULL.md §1.1, go-timecache).
func deadlineOf(timeout time.Duration) (time.Time, bool) {
	if timeout <= 0 {
		return time.Time{}, false
	}
	return platform.Get().Now().Add(timeout), true
}

// remainingUntil is time.Until off the platform's cached clock instead of
// a fresh time.Now(), for the same reason deadlineOf uses it.
func remainingUntil(deadline time.Time) time.Duration {
	return deadline.Sub(platform.Get().Now())
}

// roundToPow2 rounds n up to the next power of 2. Grounded on the
// teacher's options.go helper of the same name.
func roundToPow2(n int) int {
	if n < 2 {
		return 2
	}
	n--
	n |= n >> 1
	n |= n >> 2
	n |= n >> 4
	n |= n >> 8
	n |= n >> 16
	n |= n >> 32
	return n + 1
}
