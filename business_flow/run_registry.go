package businessflow

import (
	"context"
	"sync"
)

// runRegistry tracks the cancel function of every in-flight delivery run so a
// pause request can reach the goroutine driving it. One run per campaign.
type runRegistry struct {
	mu   sync.Mutex
	runs map[uint]context.CancelFunc
}

func newRunRegistry() *runRegistry {
	return &runRegistry{runs: make(map[uint]context.CancelFunc)}
}

// register derives a cancellable context for a campaign run. A stale entry for
// the same campaign is cancelled first.
func (r *runRegistry) register(campaignID uint, parent context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)
	r.mu.Lock()
	if prev, ok := r.runs[campaignID]; ok {
		prev()
	}
	r.runs[campaignID] = cancel
	r.mu.Unlock()
	return ctx, cancel
}

// cancel stops the run for a campaign if one is in flight
func (r *runRegistry) cancel(campaignID uint) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	cancel, ok := r.runs[campaignID]
	if ok {
		cancel()
		delete(r.runs, campaignID)
	}
	return ok
}

// unregister removes a finished run without cancelling anything else
func (r *runRegistry) unregister(campaignID uint) {
	r.mu.Lock()
	delete(r.runs, campaignID)
	r.mu.Unlock()
}
