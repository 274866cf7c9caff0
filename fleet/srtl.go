// fleet/srtl.go
// Copyright(c) 2024-2026 covey contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package fleet

import (
	gomath "math"
	"sync"

	"github.com/covey-uas/covey/math"
)

// MinRecoveryAltitude keeps the smart-return recovery point from being
// armed at ground level.
const MinRecoveryAltitude = 2.0

// ReturnStack records the path flown since the last Reset so the vehicle
// can retrace it backwards: waypoints reached are pushed and the smart
// return pops them newest first, ending at the recovery point captured at
// Reset.
type ReturnStack struct {
	mu          sync.Mutex
	recovery    Waypoint
	hasRecovery bool
	stack       []Waypoint
}

// Reset clears the recorded path and captures the current position as the
// recovery point, with the altitude clamped up to MinRecoveryAltitude.
// Resetting an already-reset stack just recaptures; it is not an error.
func (s *ReturnStack) Reset(pos math.LLA, heading, speed float64) {
	pos.Alt = gomath.Max(pos.Alt, MinRecoveryAltitude)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recovery = Waypoint{Pos: pos, Heading: heading, Speed: speed}
	s.hasRecovery = true
	s.stack = nil
}

// Push records a waypoint the vehicle has reached. Pushes before the
// first Reset are dropped: without a recovery point there is no return
// path to extend.
func (s *ReturnStack) Push(wp Waypoint) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.hasRecovery {
		s.stack = append(s.stack, wp)
	}
}

// Pop removes and returns the most recently recorded waypoint.
func (s *ReturnStack) Pop() (Waypoint, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.stack) == 0 {
		return Waypoint{}, false
	}
	wp := s.stack[len(s.stack)-1]
	s.stack = s.stack[:len(s.stack)-1]
	return wp, true
}

// Recovery returns the recovery point; ok is false before the first
// Reset.
func (s *ReturnStack) Recovery() (Waypoint, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.recovery, s.hasRecovery
}

func (s *ReturnStack) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.stack)
}
