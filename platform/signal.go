// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package platform

import (
	"os"
	"os/signal"
	"syscall"
)

// WaitForInterrupt blocks until SIGINT or SIGTERM arrives, then calls stop.
// This is the "simple sigint-wait utility" spec.md §9 describes as layered
// on top of the engine rather than built into it: the engine itself never
// touches POSIX signals, only an embedding program's main() does, by
// calling this helper with Graph.Stop.
func WaitForInterrupt(stop func()) {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	<-ch
	signal.Stop(ch)
	stop()
}
