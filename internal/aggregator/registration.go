package aggregator

import (
	"context"
	"sync"

	"github.com/CNGdrive/CNG-RTK-HUB/internal/fix"
	"github.com/CNGdrive/CNG-RTK-HUB/internal/receiver"
)

// registration holds one receiver's static configuration alongside its
// mutable lifecycle state, guarded by its own mutex so the monitor
// goroutine and control-plane callers never contend on the aggregator's
// registration-set lock.
type registration struct {
	id      string
	variant receiver.Variant
	path    string
	baud    int
	driver  receiver.Driver

	wg sync.WaitGroup

	mu         sync.Mutex
	state      receiver.State
	cancel     context.CancelFunc
	lastFix    fix.Fix
	hasLastFix bool
}

func (r *registration) setState(s receiver.State) {
	r.mu.Lock()
	r.state = s
	r.mu.Unlock()
}

func (r *registration) getState() receiver.State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

func (r *registration) setCancel(c context.CancelFunc) {
	r.mu.Lock()
	r.cancel = c
	r.mu.Unlock()
}

func (r *registration) getCancel() context.CancelFunc {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.cancel
}

// checkAndUpdateFix reports whether f differs (by value) from the last
// fix seen for this receiver, storing f as the new last-seen snapshot
// whenever it does.
func (r *registration) checkAndUpdateFix(f fix.Fix) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.hasLastFix && r.lastFix.Equal(f) {
		return false
	}
	r.lastFix = f
	r.hasLastFix = true
	return true
}
