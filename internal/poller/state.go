package poller

import (
	"sync"
	"time"

	"github.com/NekoSenseii/casio-watch-notifier/internal/stock"
)

// State is the snapshot exposed to read-only collaborators (health
// endpoint, bot commands). Fields update together under one lock so a
// reader never sees a status from one cycle with a timestamp from another.
type State struct {
	Status     stock.Status
	LastCheck  time.Time
	LastChange time.Time
	Checks     uint64
	StartedAt  time.Time
}

// Uptime is how long the poller has been running at time now.
func (s State) Uptime(now time.Time) time.Duration {
	if s.StartedAt.IsZero() {
		return 0
	}
	return now.Sub(s.StartedAt)
}

// stateCell is the single mutable cell behind State. The poll loop is the
// only writer; everything else goes through Snapshot.
type stateCell struct {
	mu    sync.RWMutex
	state State
}

func newStateCell(now time.Time) *stateCell {
	return &stateCell{state: State{Status: stock.StatusUnknown, StartedAt: now}}
}

func (c *stateCell) Snapshot() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// recordCheck notes a completed classification, updating the status and the
// check timestamp atomically, and returns the status that was stored before
// so the caller can decide on the transition under a single lock
// interaction.
func (c *stateCell) recordCheck(status stock.Status, now time.Time) (previous stock.Status) {
	c.mu.Lock()
	defer c.mu.Unlock()
	previous = c.state.Status
	c.state.Status = status
	c.state.LastCheck = now
	c.state.Checks++
	if previous != status {
		c.state.LastChange = now
	}
	return previous
}
