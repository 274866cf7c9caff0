// fleet/simflight_test.go
// Copyright(c) 2024-2026 covey contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package fleet

import (
	"context"
	"testing"

	"github.com/covey-uas/covey/math"
)

func TestSimAutopilotModeTransitions(t *testing.T) {
	ap := NewSimAutopilot(math.LLA{Lat: 57.7089, Lon: 11.9746, Alt: 0})
	defer ap.Close()
	ctx := context.Background()

	if got := ap.FlightMode(); got != "hold" {
		t.Errorf("initial mode %q", got)
	}

	if err := ap.ArmAndTakeOff(ctx, 2); err != nil {
		t.Fatalf("take-off: %v", err)
	}
	if !ap.Armed() || !ap.Flying() {
		t.Error("not airborne after take-off")
	}
	if got := ap.FlightMode(); got != "hold" {
		t.Errorf("mode %q after take-off", got)
	}
	if pos, _ := ap.Position(); pos.Alt != 2 {
		t.Errorf("altitude %v after take-off", pos.Alt)
	}

	if err := ap.Land(ctx); err != nil {
		t.Fatalf("land: %v", err)
	}
	if ap.Armed() || ap.Flying() {
		t.Error("still airborne after landing")
	}
	if got := ap.FlightMode(); got != "standby" {
		t.Errorf("mode %q after landing", got)
	}
}
