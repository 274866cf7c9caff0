// heartbeat/monitor.go
// Copyright(c) 2024-2026 covey contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

// Package heartbeat tracks link liveness from observed client activity.
// A Monitor classifies a link as ok, degraded, or lost purely from the
// time since the last Touch; it never initiates traffic of its own.
package heartbeat

import (
	"sync"
	"time"

	"github.com/covey-uas/covey/log"
)

type State int

const (
	StateOk State = iota
	StateDegraded
	StateLost
)

func (s State) String() string {
	switch s {
	case StateOk:
		return "ok"
	case StateDegraded:
		return "degraded"
	case StateLost:
		return "lost"
	}
	return "invalid"
}

const (
	DefaultDegradedAfter = 5 * time.Second
	DefaultLostAfter     = 10 * time.Second

	// checkInterval bounds how stale a classification can be.
	checkInterval = 500 * time.Millisecond
)

// Monitor watches a single link. The transition callback runs outside the
// Monitor's lock and must not be assumed to run on any particular
// goroutine; it fires on every state change, in both directions.
type Monitor struct {
	mu       sync.Mutex
	link     string
	lastSeen time.Time
	state    State

	degradedAfter time.Duration
	lostAfter     time.Duration

	onTransition func(from, to State)

	now  func() time.Time
	done chan struct{}
	lg   *log.Logger
}

// NewMonitor returns a Monitor for the named link in state ok, as if it
// had just been touched. It does not tick until Start is called; callers
// that drive it manually (or from tests) use Check instead.
func NewMonitor(link string, degradedAfter, lostAfter time.Duration, lg *log.Logger) *Monitor {
	m := &Monitor{
		link:          link,
		degradedAfter: degradedAfter,
		lostAfter:     lostAfter,
		now:           time.Now,
		lg:            lg,
	}
	m.lastSeen = m.now()
	return m
}

// OnTransition registers the state change callback. It must be called
// before Start.
func (m *Monitor) OnTransition(fn func(from, to State)) {
	m.onTransition = fn
}

// Touch records activity on the link. A touch always restores StateOk,
// including from StateLost.
func (m *Monitor) Touch() {
	m.mu.Lock()
	m.lastSeen = m.now()
	from := m.state
	m.state = StateOk
	m.mu.Unlock()

	if from != StateOk {
		m.lg.Infof("%s: link recovered from %s", m.link, from)
		if m.onTransition != nil {
			m.onTransition(from, StateOk)
		}
	}
}

func (m *Monitor) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// SilentFor returns the time since the last observed activity.
func (m *Monitor) SilentFor() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now().Sub(m.lastSeen)
}

// Check reclassifies the link from the current clock and fires the
// transition callback if the state changed. Start calls it periodically;
// it is also safe to call directly.
func (m *Monitor) Check() State {
	m.mu.Lock()
	silent := m.now().Sub(m.lastSeen)
	from := m.state
	to := from
	switch {
	case silent >= m.lostAfter:
		to = StateLost
	case silent >= m.degradedAfter:
		to = StateDegraded
	default:
		to = StateOk
	}
	// Never walk backwards on the clock alone; only Touch recovers.
	if to > from {
		m.state = to
	} else {
		to = from
	}
	m.mu.Unlock()

	if to != from {
		m.lg.Warnf("%s: link %s, silent for %s", m.link, to, silent.Round(time.Millisecond))
		if m.onTransition != nil {
			m.onTransition(from, to)
		}
	}
	return to
}

// Start launches the periodic classification goroutine.
func (m *Monitor) Start() {
	m.mu.Lock()
	if m.done != nil {
		m.mu.Unlock()
		return
	}
	m.done = make(chan struct{})
	done := m.done
	m.mu.Unlock()

	go func() {
		ticker := time.NewTicker(checkInterval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				m.Check()
			}
		}
	}()
}

// Stop halts the classification goroutine. The Monitor can be restarted.
func (m *Monitor) Stop() {
	m.mu.Lock()
	done := m.done
	m.done = nil
	m.mu.Unlock()
	if done != nil {
		close(done)
	}
}
