// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package flowgraph

import (
	"errors"
	"fmt"
)

// Kind classifies a graph-level failure per spec.md §7's error taxonomy.
type Kind int

const (
	// KindTopology: validation rejected the graph before start (unconnected
	// port, type mismatch, cycle, rate mismatch, unknown port name).
	KindTopology Kind = iota
	// KindInitialize: a block's Initialize hook returned an error.
	KindInitialize
	// KindProcess: a block's Process invocation returned an error.
	KindProcess
	// KindTimeout: a user-facing wait exceeded its deadline.
	KindTimeout
)

func (k Kind) String() string {
	switch k {
	case KindTopology:
		return "topology"
	case KindInitialize:
		return "initialize"
	case KindProcess:
		return "process"
	case KindTimeout:
		return "timeout"
	default:
		return "unknown"
	}
}

// Error is the concrete error type returned by topology validation, and
// wrapped around per-block Initialize/Process failures. It carries enough
// context for a caller to log or match on Kind without string parsing.
type Error struct {
	Kind  Kind
	Block string // empty for topology errors not tied to one block
	Err   error
}

func (e *Error) Error() string {
	if e.Block == "" {
		return fmt.Sprintf("flowgraph: %s: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("flowgraph: %s: block %q: %v", e.Kind, e.Block, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

func newTopologyErr(format string, args ...any) *Error {
	return &Error{Kind: KindTopology, Err: fmt.Errorf(format, args...)}
}

func newInitializeErr(block string, err error) *Error {
	return &Error{Kind: KindInitialize, Block: block, Err: err}
}

func newProcessErr(block string, err error) *Error {
	return &Error{Kind: KindProcess, Block: block, Err: err}
}

// ErrTimeout is returned by Graph.WaitTimeout when its deadline elapses
// before every worker has exited.
// The engine's own internal waits never time out (spec.md §5).
var ErrTimeout = errors.New("flowgraph: timeout")

// IsTopologyErr reports whether err is a topology validation failure.
func IsTopologyErr(err error) bool { return isKind(err, KindTopology) }

// IsInitializeErr reports whether err is a block Initialize failure.
func IsInitializeErr(err error) bool { return isKind(err, KindInitialize) }

// IsProcessErr reports whether err is a block Process failure.
func IsProcessErr(err error) bool { return isKind(err, KindProcess) }

func isKind(err error, k Kind) bool {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind == k
	}
	return false
}
