// fleet/srtl_test.go
// Copyright(c) 2024-2026 covey contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package fleet

import (
	"testing"

	"github.com/covey-uas/covey/math"
)

func TestReturnStackResetClampsAltitude(t *testing.T) {
	var s ReturnStack
	s.Reset(math.LLA{Lat: 57.7, Lon: 11.97, Alt: 0.5}, 0, 5)
	rec, ok := s.Recovery()
	if !ok {
		t.Fatal("no recovery point after reset")
	}
	if rec.Pos.Alt != MinRecoveryAltitude {
		t.Errorf("recovery altitude %v, want %v", rec.Pos.Alt, MinRecoveryAltitude)
	}

	s.Reset(math.LLA{Lat: 57.7, Lon: 11.97, Alt: 30}, 0, 5)
	if rec, _ := s.Recovery(); rec.Pos.Alt != 30 {
		t.Errorf("recovery altitude %v, want 30", rec.Pos.Alt)
	}
}

func TestReturnStackPushBeforeResetDropped(t *testing.T) {
	var s ReturnStack
	s.Push(Waypoint{Pos: math.LLA{Alt: 10}})
	if s.Len() != 0 {
		t.Errorf("stack length %d before any reset", s.Len())
	}
}

func TestReturnStackLIFO(t *testing.T) {
	var s ReturnStack
	s.Reset(math.LLA{Alt: 10}, 0, 5)
	for i := range 3 {
		s.Push(Waypoint{Pos: math.LLA{Alt: float64(10 + i)}})
	}
	for want := 12; want >= 10; want-- {
		wp, ok := s.Pop()
		if !ok {
			t.Fatalf("stack empty, expected alt %d", want)
		}
		if wp.Pos.Alt != float64(want) {
			t.Errorf("popped alt %v, want %d", wp.Pos.Alt, want)
		}
	}
	if _, ok := s.Pop(); ok {
		t.Error("pop from empty stack succeeded")
	}
}

func TestReturnStackResetClearsPath(t *testing.T) {
	var s ReturnStack
	s.Reset(math.LLA{Alt: 10}, 0, 5)
	s.Push(Waypoint{Pos: math.LLA{Alt: 11}})
	s.Push(Waypoint{Pos: math.LLA{Alt: 12}})
	s.Reset(math.LLA{Alt: 20}, 0, 5)
	if s.Len() != 0 {
		t.Errorf("stack length %d after reset", s.Len())
	}
}
