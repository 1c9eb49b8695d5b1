package broadcast

import (
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/pollpulse/pollpulse/internal/metrics"
)

// Registry tracks which observers are watching which poll, plus a global
// connected set so observers with zero subscriptions can still be torn down
// cleanly on disconnect. All methods are safe for concurrent use.
type Registry struct {
	mu         sync.RWMutex
	byPoll     map[uuid.UUID]map[*Observer]struct{}
	connected  map[*Observer]map[uuid.UUID]struct{}
	maxPerPoll int
}

// NewRegistry creates a registry. maxPerPoll limits observers per poll
// (prevents resource exhaustion); zero or negative means unlimited.
func NewRegistry(maxPerPoll int) *Registry {
	return &Registry{
		byPoll:     make(map[uuid.UUID]map[*Observer]struct{}),
		connected:  make(map[*Observer]map[uuid.UUID]struct{}),
		maxPerPoll: maxPerPoll,
	}
}

// Connect registers an observer in the connected set before any subscription
// exists. Idempotent.
func (r *Registry) Connect(o *Observer) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.connected[o]; exists {
		return
	}
	r.connected[o] = make(map[uuid.UUID]struct{})
	metrics.ConnectedObservers.Set(float64(len(r.connected)))
}

// Subscribe adds an observer to a poll's set. Re-subscribing the same
// observer to the same poll is a no-op. The observer is added to the
// connected set if Connect was not called first.
func (r *Registry) Subscribe(pollID uuid.UUID, o *Observer) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	polls, exists := r.connected[o]
	if !exists {
		polls = make(map[uuid.UUID]struct{})
		r.connected[o] = polls
		metrics.ConnectedObservers.Set(float64(len(r.connected)))
	}

	if _, subscribed := polls[pollID]; subscribed {
		return nil
	}

	observers, exists := r.byPoll[pollID]
	if exists && r.maxPerPoll > 0 && len(observers) >= r.maxPerPoll {
		return fmt.Errorf("max observers per poll (%d) reached", r.maxPerPoll)
	}
	if !exists {
		observers = make(map[*Observer]struct{})
		r.byPoll[pollID] = observers
	}

	observers[o] = struct{}{}
	polls[pollID] = struct{}{}
	metrics.WatchedPolls.Set(float64(len(r.byPoll)))
	return nil
}

// Unsubscribe removes an observer from one poll's set. Used by the
// broadcaster's lazy cleanup after a failed delivery.
func (r *Registry) Unsubscribe(pollID uuid.UUID, o *Observer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.unsubscribeLocked(pollID, o)
}

// UnsubscribeAll removes an observer from every poll's set and from the
// connected set. Called on disconnect; safe to call multiple times.
func (r *Registry) UnsubscribeAll(o *Observer) {
	r.mu.Lock()
	defer r.mu.Unlock()

	polls, exists := r.connected[o]
	if !exists {
		return
	}
	for pollID := range polls {
		r.unsubscribeLocked(pollID, o)
	}
	delete(r.connected, o)
	metrics.ConnectedObservers.Set(float64(len(r.connected)))
}

// ObserversFor returns a copy of the current observer set for a poll, so
// callers can iterate without holding the registry lock.
func (r *Registry) ObserversFor(pollID uuid.UUID) []*Observer {
	r.mu.RLock()
	defer r.mu.RUnlock()

	observers := r.byPoll[pollID]
	result := make([]*Observer, 0, len(observers))
	for o := range observers {
		result = append(result, o)
	}
	return result
}

// ObserverCount returns the number of observers subscribed to a poll.
func (r *Registry) ObserverCount(pollID uuid.UUID) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byPoll[pollID])
}

// ConnectedCount returns the size of the global connected set.
func (r *Registry) ConnectedCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.connected)
}

// DrainConnected empties the registry and returns every connected observer.
// Used during shutdown so each observer can be closed gracefully.
func (r *Registry) DrainConnected() []*Observer {
	r.mu.Lock()
	defer r.mu.Unlock()

	result := make([]*Observer, 0, len(r.connected))
	for o := range r.connected {
		result = append(result, o)
	}
	r.byPoll = make(map[uuid.UUID]map[*Observer]struct{})
	r.connected = make(map[*Observer]map[uuid.UUID]struct{})
	metrics.ConnectedObservers.Set(0)
	metrics.WatchedPolls.Set(0)
	return result
}

func (r *Registry) unsubscribeLocked(pollID uuid.UUID, o *Observer) {
	observers, exists := r.byPoll[pollID]
	if !exists {
		return
	}
	delete(observers, o)
	if len(observers) == 0 {
		delete(r.byPoll, pollID)
		metrics.WatchedPolls.Set(float64(len(r.byPoll)))
	}
	if polls, ok := r.connected[o]; ok {
		delete(polls, pollID)
	}
}
