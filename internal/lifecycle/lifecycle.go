// Package lifecycle holds process-wide run state reported by /health.
package lifecycle

import (
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"
)

// State tracks whether the process is draining and how long it has been up.
// Constructed once in main and injected into the handler.
type State struct {
	shuttingDown atomic.Bool
	clock        clockwork.Clock
	started      time.Time
}

func New(clock clockwork.Clock) *State {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &State{clock: clock, started: clock.Now()}
}

// SetShuttingDown sets the shutdown flag. Call when SIGTERM/SIGINT received.
// Health handler returns 503 with status shutting-down while true.
func (s *State) SetShuttingDown(v bool) {
	s.shuttingDown.Store(v)
}

// IsShuttingDown returns true if the process is draining and should not receive new traffic.
func (s *State) IsShuttingDown() bool {
	return s.shuttingDown.Load()
}

// StartedAt returns the time the state was created.
func (s *State) StartedAt() time.Time {
	return s.started
}

// Uptime returns the time elapsed since start.
func (s *State) Uptime() time.Duration {
	return s.clock.Since(s.started)
}
