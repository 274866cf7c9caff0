// fleet/fake_test.go
// Copyright(c) 2024-2026 covey contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package fleet

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/covey-uas/covey/math"
)

// fakeAutopilot teleports instead of flying so tests are deterministic.
type fakeAutopilot struct {
	mu sync.Mutex

	pos      math.LLA
	heading  float64
	navValid bool
	sats     int

	armed  bool
	flying bool
	mode   string

	hasGimbal bool
	gimbalYaw float64

	gotos    []math.LLA
	rtlCount int
	lands    int
	vel      [4]float64
}

func newFakeAutopilot() *fakeAutopilot {
	return &fakeAutopilot{
		pos:      math.LLA{Lat: 57.7089, Lon: 11.9746, Alt: 0},
		navValid: true,
		sats:     10,
		mode:     "standby",
	}
}

func (f *fakeAutopilot) Position() (math.LLA, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.pos, f.navValid
}

func (f *fakeAutopilot) Heading() float64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.heading
}

func (f *fakeAutopilot) GimbalYaw() (float64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.hasGimbal {
		return 0, ErrNoGimbal
	}
	return f.gimbalYaw, nil
}

func (f *fakeAutopilot) NumSatellites() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sats
}

func (f *fakeAutopilot) Battery() float64 { return 95 }

func (f *fakeAutopilot) Armed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.armed
}

func (f *fakeAutopilot) Flying() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.flying
}

func (f *fakeAutopilot) FlightMode() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.mode
}

func (f *fakeAutopilot) ArmAndTakeOff(ctx context.Context, height float64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.armed = true
	f.flying = true
	f.pos.Alt = height
	f.mode = "hold"
	return nil
}

func (f *fakeAutopilot) GotoPosition(ctx context.Context, wp math.LLA, heading float64, course bool, speed float64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pos = wp
	if !course {
		f.heading = heading
	}
	f.gotos = append(f.gotos, wp)
	return nil
}

func (f *fakeAutopilot) ReturnToLaunch(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rtlCount++
	f.armed = false
	f.flying = false
	f.mode = "standby"
	return nil
}

func (f *fakeAutopilot) Land(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lands++
	f.armed = false
	f.flying = false
	f.pos.Alt = 0
	f.mode = "standby"
	return nil
}

func (f *fakeAutopilot) SetVelocity(x, y, z, yawRate float64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.flying {
		return ErrNotFlying
	}
	f.vel = [4]float64{x, y, z, yawRate}
	return nil
}

func (f *fakeAutopilot) SetHeading(heading float64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.heading = heading
	return nil
}

func (f *fakeAutopilot) SetAltitude(alt float64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pos.Alt = alt
	return nil
}

func (f *fakeAutopilot) Stop() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.vel = [4]float64{}
	return nil
}

func (f *fakeAutopilot) gotoCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.gotos)
}

func (f *fakeAutopilot) rtls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.rtlCount
}

// waitFor polls until pred holds or the test deadline is blown.
func waitFor(t *testing.T, what string, pred func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if pred() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}
