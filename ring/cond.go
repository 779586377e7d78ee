// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package ring

import (
	"sync"
	"time"
)

// condWaitTimeout waits on c, which must be locked by the caller's mu, for
// at most d. Returns false if the timeout fired before c was signalled.
//
// sync.Cond has no built-in timeout; this is the standard library's
// recommended pattern (a timer that reacquires the lock and broadcasts),
// used here instead of reaching for a third-party wait-with-timeout
// primitive because none of the retrieved pack's dependencies (atomix,
// iox, spin) provide blocking condition variables — they are all
// spin/backoff oriented for non-blocking callers (see ring/ring.go's
// package doc).
func condWaitTimeout(c *sync.Cond, mu *sync.Mutex, d time.Duration) (signalled bool) {
	timedOut := false
	timer := time.AfterFunc(d, func() {
		mu.Lock()
		timedOut = true
		mu.Unlock()
		c.Broadcast()
	})
	c.Wait()
	timer.Stop()
	return !timedOut
}
