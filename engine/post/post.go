// Package post implements the "post work back to the loop thread"
// primitive spec.md 5 requires for worker-thread results (disk/network
// cache tiers, expensive listener work) to reach loop-thread-only state
// safely. Adapted from goworld's engine/post, which used a package-level
// singleton queue; worldlink needs one queue per loop (a host may run more
// than one MultiplexedConnection or CacheChain), so it is a constructible
// type instead of global state (see the design note on singletons in
// spec.md 9).
package post

import (
	"sync"

	"github.com/xiaonanln/worldlink/engine/gwutils"
)

// Callback is a function posted to a Queue for later execution on the loop thread.
type Callback func()

// Queue collects callbacks from any goroutine and drains them on the loop thread.
type Queue struct {
	mu        sync.Mutex
	callbacks []Callback
}

// NewQueue creates an empty post queue.
func NewQueue() *Queue {
	return &Queue{}
}

// Post appends a callback to be run on the next Tick. Safe to call from any goroutine.
func (q *Queue) Post(f Callback) {
	q.mu.Lock()
	q.callbacks = append(q.callbacks, f)
	q.mu.Unlock()
}

// Tick runs all callbacks posted so far, including ones posted by callbacks
// that ran earlier in the same Tick, until the queue is empty. Must be
// called from the loop thread.
func (q *Queue) Tick() {
	for {
		q.mu.Lock()
		if len(q.callbacks) == 0 {
			q.mu.Unlock()
			return
		}
		batch := q.callbacks
		q.callbacks = make([]Callback, 0, len(batch))
		q.mu.Unlock()

		for _, f := range batch {
			gwutils.RunPaniclessNamed("post", f)
		}
	}
}

// Pending reports whether any callback is waiting to run.
func (q *Queue) Pending() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.callbacks) > 0
}
