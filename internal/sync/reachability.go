// ABOUTME: In-memory reachability monitor with edge-triggered subscriptions.
// ABOUTME: Resets to optimistic-reachable on process restart; never persisted.
package sync

import "sync"

// Reachability tracks whether the backend is currently reachable. It flips
// to unreachable when a sync cycle fails and back to reachable only after a
// cycle completes cleanly.
type Reachability struct {
	mu     sync.Mutex
	online bool
	subs   map[int]func(bool)
	nextID int
}

// NewReachability creates a monitor in the optimistic reachable state.
func NewReachability() *Reachability {
	return &Reachability{
		online: true,
		subs:   make(map[int]func(bool)),
	}
}

// Online returns the current reachability.
func (r *Reachability) Online() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.online
}

// Set updates reachability, notifying subscribers only on change.
func (r *Reachability) Set(online bool) {
	r.mu.Lock()
	if r.online == online {
		r.mu.Unlock()
		return
	}
	r.online = online
	fns := make([]func(bool), 0, len(r.subs))
	for _, fn := range r.subs {
		fns = append(fns, fn)
	}
	r.mu.Unlock()

	// Callbacks run outside the lock so a subscriber may call Online.
	for _, fn := range fns {
		fn(online)
	}
}

// Subscribe registers fn, delivers the current value immediately, and
// returns a cancel function. After the initial delivery fn fires only on
// state changes.
func (r *Reachability) Subscribe(fn func(bool)) (cancel func()) {
	r.mu.Lock()
	id := r.nextID
	r.nextID++
	r.subs[id] = fn
	current := r.online
	r.mu.Unlock()

	fn(current)

	return func() {
		r.mu.Lock()
		delete(r.subs, id)
		r.mu.Unlock()
	}
}
