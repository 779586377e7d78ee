// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package platform holds the process-wide state spec.md §4.7 calls the
// Platform Layer: environment-flag parsing, optional-acceleration-library
// discovery with caching, the cross-component debug flag, and interrupt-
// driven shutdown. It is initialized once, on first reference, via the
// same one-shot gate the teacher uses for its build-tag-selected
// RaceEnabled constant (race.go/race_off.go), generalized here from a
// compile-time constant to a sync.Once-guarded runtime probe since
// discovery genuinely depends on the environment, not the build.
package platform

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/agilira/go-timecache"
	"github.com/agilira/lethe"

	"code.hybscloud.com/flowgraph/internal/accel"
)

// State is the process-wide platform singleton. Obtain it via Get.
type State struct {
	debug   bool
	logger  *lethe.Logger
	clock   *timecache.TimeCache
	metrics *Metrics

	disabledMu sync.RWMutex
	disabled   map[string]bool
}

var (
	once  sync.Once
	state *State
)

// Get returns the process-wide platform state, initializing it on first
// call: parsing DEBUG and DISABLE_<LIBRARY> environment variables,
// opening the debug log sink, and registering Prometheus collectors.
func Get() *State {
	once.Do(func() {
		state = newState()
	})
	return state
}

func newState() *State {
	s := &State{
		disabled: map[string]bool{},
		clock:    timecache.NewWithResolution(time.Millisecond),
	}
	s.debug = parseBool(os.Getenv("DEBUG"))

	for _, kv := range os.Environ() {
		k, v, ok := strings.Cut(kv, "=")
		if !ok || !strings.HasPrefix(k, "DISABLE_") {
			continue
		}
		if parseBool(v) {
			lib := strings.TrimPrefix(k, "DISABLE_")
			s.disabled[lib] = true
		}
	}
	if s.disabled[accel.Name()] {
		accel.Disable()
	}

	if s.debug {
		logger, err := lethe.NewWithDefaults("flowgraph-debug.log")
		if err == nil {
			s.logger = logger
		}
	}
	s.metrics = newMetrics()

	if s.debug {
		s.logf("platform: debug=true, disabled=%v, accel.available=%v", s.disabledNames(), accel.Available())
	}
	return s
}

func (s *State) disabledNames() []string {
	s.disabledMu.RLock()
	defer s.disabledMu.RUnlock()
	names := make([]string, 0, len(s.disabled))
	for k := range s.disabled {
		names = append(names, k)
	}
	return names
}

// Debug reports whether the DEBUG environment variable was set truthy at
// process start.
func (s *State) Debug() bool { return s.debug }

// LibraryDisabled reports whether DISABLE_<name> was set truthy, gating an
// optional-acceleration code path at a block's Initialize time (spec.md
// §4.7).
func (s *State) LibraryDisabled(name string) bool {
	s.disabledMu.RLock()
	defer s.disabledMu.RUnlock()
	return s.disabled[name]
}

// Metrics returns the process's Prometheus collectors.
func (s *State) Metrics() *Metrics { return s.metrics }

// Now returns a cached, millisecond-resolution timestamp, avoiding a
// syscall on every debug log line (the same motivation lethe itself gives
// for wrapping go-timecache around its own rotation bookkeeping).
func (s *State) Now() time.Time { return s.clock.CachedTime() }

func (s *State) logf(format string, args ...any) {
	if s.logger == nil {
		return
	}
	line := fmt.Sprintf("%s "+format+"\n", append([]any{s.Now().Format(time.RFC3339Nano)}, args...)...)
	_, _ = s.logger.Write([]byte(line))
}

// Logf writes a line to the debug log if DEBUG is enabled; a no-op
// otherwise. Used by the execution engine to log lifecycle transitions
// without branching on Debug() at every call site.
func (s *State) Logf(format string, args ...any) {
	if !s.debug {
		return
	}
	s.logf(format, args...)
}

func parseBool(v string) bool {
	if v == "" {
		return false
	}
	if b, err := strconv.ParseBool(v); err == nil {
		return b
	}
	switch strings.ToLower(v) {
	case "yes", "y", "on":
		return true
	default:
		return false
	}
}

// reset is test-only: it clears the singleton so tests can re-probe the
// environment under different env vars. Not exported.
func reset() {
	once = sync.Once{}
	state = nil
}
