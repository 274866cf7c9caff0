// fleet/endpoint_test.go
// Copyright(c) 2024-2026 covey contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package fleet

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/covey-uas/covey/log"
)

func newTestEndpoint(t *testing.T, managed bool, notifier ManagerNotifier) (*Endpoint, *fakeAutopilot) {
	t.Helper()
	ap := newFakeAutopilot()
	e := NewEndpoint(Config{ID: "dss001", DefaultSpeed: 5, Managed: managed}, ap, notifier, log.Discard())
	t.Cleanup(e.Shutdown)
	return e, ap
}

// own transfers the aircraft to app as the manager would.
func own(t *testing.T, e *Endpoint, app string) {
	t.Helper()
	if err := e.SetOwner(ManagerID, app); err != nil {
		t.Fatalf("set owner: %v", err)
	}
}

func TestEndpointOwnerGating(t *testing.T) {
	e, _ := newTestEndpoint(t, false, nil)

	if err := e.HeartBeat("da002"); !errors.Is(err, ErrNotOwner) {
		t.Errorf("heartbeat from non-owner: %v", err)
	}
	if err := e.SetOwner("da002", "da002"); !errors.Is(err, ErrNotOwner) {
		t.Errorf("set owner by non-manager: %v", err)
	}

	own(t, e, "da002")
	if got := e.GetOwner(); got != "da002" {
		t.Errorf("owner %q", got)
	}
	if got := e.WhoControls(); got != AuthorityApplication {
		t.Errorf("authority %s after owner set", got)
	}
	if err := e.HeartBeat("da002"); err != nil {
		t.Errorf("heartbeat from owner: %v", err)
	}
	if err := e.HeartBeat("da003"); !errors.Is(err, ErrNotOwner) {
		t.Errorf("heartbeat from stranger: %v", err)
	}

	// Park it again: flight commands refused.
	own(t, e, ManagerID)
	if err := e.Land("da002"); !errors.Is(err, ErrNotOwner) {
		t.Errorf("land while parked: %v", err)
	}
}

func TestEndpointArmTakeOff(t *testing.T) {
	e, ap := newTestEndpoint(t, false, nil)
	own(t, e, "da002")

	for _, height := range []float64{1, 41, -3} {
		if err := e.ArmTakeOff("da002", height); !errors.Is(err, ErrOutOfRange) {
			t.Errorf("height %v: %v", height, err)
		}
	}

	ap.mu.Lock()
	ap.sats = 5
	ap.mu.Unlock()
	if err := e.ArmTakeOff("da002", 10); !errors.Is(err, ErrNotArmable) {
		t.Errorf("take-off with 5 satellites: %v", err)
	}

	ap.mu.Lock()
	ap.sats = 10
	ap.mu.Unlock()
	if err := e.ArmTakeOff("da002", 10); err != nil {
		t.Fatalf("take-off: %v", err)
	}
	waitFor(t, "take-off", func() bool { return ap.Flying() && e.Idle() })
	if pos, _ := ap.Position(); pos.Alt != 10 {
		t.Errorf("altitude %v after take-off", pos.Alt)
	}

	if err := e.ArmTakeOff("da002", 10); !errors.Is(err, ErrNotArmable) {
		t.Errorf("take-off while flying: %v", err)
	}
}

func TestEndpointMissionFlow(t *testing.T) {
	e, ap := newTestEndpoint(t, false, nil)
	own(t, e, "da002")

	if err := e.SetInitPoint("da002", HeadingRefDrone); err != nil {
		t.Fatalf("set init point: %v", err)
	}
	if err := e.SetInitPoint("da002", HeadingRefDrone); !errors.Is(err, ErrAlreadySet) {
		t.Errorf("second set init point: %v", err)
	}

	spec := MissionSpec{
		"id0": {North: 10, East: 0, Down: -10, Heading: HeadingCourse},
		"id1": {North: 20, East: 5, Down: -12, Heading: HeadingCourse},
	}
	if err := e.Gogo("da002", 0); !errors.Is(err, ErrNotFlying) {
		t.Errorf("gogo on ground: %v", err)
	}

	if err := e.ArmTakeOff("da002", 10); err != nil {
		t.Fatal(err)
	}
	waitFor(t, "take-off", func() bool { return ap.Flying() && e.Idle() })

	if err := e.Gogo("da002", 0); !errors.Is(err, ErrNoMission) {
		t.Errorf("gogo without mission: %v", err)
	}
	if err := e.UploadMission("da002", FrameNED, spec); err != nil {
		t.Fatalf("upload: %v", err)
	}
	if err := e.Gogo("da002", 5); !errors.Is(err, ErrOutOfRange) {
		t.Errorf("gogo past end: %v", err)
	}

	if err := e.Gogo("da002", 0); err != nil {
		t.Fatalf("gogo: %v", err)
	}
	waitFor(t, "mission", func() bool { return e.Idle() && ap.gotoCount() == 2 })
	if e.GetState().NextWP != 2 {
		t.Errorf("next waypoint %d after mission", e.GetState().NextWP)
	}
}

func TestEndpointMalformedUploadKeepsStagedMission(t *testing.T) {
	e, ap := newTestEndpoint(t, false, nil)
	own(t, e, "da002")
	if err := e.SetInitPoint("da002", HeadingRefDrone); err != nil {
		t.Fatal(err)
	}

	good := MissionSpec{"id0": {North: 10, Down: -10, Heading: HeadingCourse}}
	if err := e.UploadMission("da002", FrameNED, good); err != nil {
		t.Fatal(err)
	}

	bad := MissionSpec{"id0": {North: 5000, Down: -10, Heading: HeadingCourse}}
	err := e.UploadMission("da002", FrameNED, bad)
	if !errors.Is(err, ErrMissionMalformed) {
		t.Fatalf("bad upload: %v", err)
	}

	// The previously staged mission is still flyable.
	if err := e.ArmTakeOff("da002", 10); err != nil {
		t.Fatal(err)
	}
	waitFor(t, "take-off", func() bool { return ap.Flying() && e.Idle() })
	if err := e.Gogo("da002", 0); err != nil {
		t.Errorf("gogo after rejected upload: %v", err)
	}
}

func TestEndpointSRTL(t *testing.T) {
	e, ap := newTestEndpoint(t, false, nil)
	own(t, e, "da002")

	if err := e.SRTL("da002", 301); !errors.Is(err, ErrOutOfRange) {
		t.Errorf("hover 301: %v", err)
	}
	if err := e.SRTL("da002", -1); !errors.Is(err, ErrOutOfRange) {
		t.Errorf("hover -1: %v", err)
	}

	ap.mu.Lock()
	ap.flying = true
	ap.mu.Unlock()
	if err := e.SRTL("da002", 0); !errors.Is(err, ErrNotReady) {
		t.Errorf("smart return before reset: %v", err)
	}

	if err := e.ResetSRTL("da002"); err != nil {
		t.Fatal(err)
	}
	wps := []Waypoint{
		{Pos: newFakeAutopilot().pos, Heading: HeadingCourse},
		{Pos: newFakeAutopilot().pos, Heading: HeadingCourse},
	}
	wps[0].Pos.Alt = 11
	wps[1].Pos.Alt = 12
	e.srtl.Push(wps[0])
	e.srtl.Push(wps[1])

	if err := e.SRTL("da002", 0); err != nil {
		t.Fatal(err)
	}
	waitFor(t, "smart return", func() bool { return e.Idle() && !ap.Flying() })

	// Retraced newest first, then the recovery point, then landed.
	ap.mu.Lock()
	defer ap.mu.Unlock()
	if len(ap.gotos) != 3 {
		t.Fatalf("%d gotos", len(ap.gotos))
	}
	if ap.gotos[0].Alt != 12 || ap.gotos[1].Alt != 11 {
		t.Errorf("retrace order: %v then %v", ap.gotos[0].Alt, ap.gotos[1].Alt)
	}
	if ap.gotos[2].Alt != MinRecoveryAltitude {
		t.Errorf("recovery altitude %v", ap.gotos[2].Alt)
	}
	if ap.lands != 1 {
		t.Errorf("%d landings", ap.lands)
	}
}

func TestEndpointSRTLHoverOnceAtRecovery(t *testing.T) {
	e, ap := newTestEndpoint(t, false, nil)
	own(t, e, "da002")

	ap.mu.Lock()
	ap.flying = true
	ap.mu.Unlock()
	if err := e.ResetSRTL("da002"); err != nil {
		t.Fatal(err)
	}
	for _, alt := range []float64{11, 12} {
		wp := Waypoint{Pos: newFakeAutopilot().pos, Heading: HeadingCourse}
		wp.Pos.Alt = alt
		e.srtl.Push(wp)
	}

	const hover = 400 * time.Millisecond
	start := time.Now()
	if err := e.SRTL("da002", hover.Seconds()); err != nil {
		t.Fatal(err)
	}

	// The retrace and the recovery goto run back to back; the single
	// hover sits between the recovery point and the touchdown.
	waitFor(t, "retrace", func() bool { return ap.gotoCount() == 3 })
	if elapsed := time.Since(start); elapsed >= hover {
		t.Errorf("retrace took %v, hovered on the way", elapsed)
	}
	ap.mu.Lock()
	landsEarly := ap.lands
	ap.mu.Unlock()
	if landsEarly != 0 {
		t.Error("landed before the hover")
	}
	waitFor(t, "landing", func() bool { return !ap.Flying() })
	if elapsed := time.Since(start); elapsed < hover {
		t.Errorf("landed after %v, hover skipped", elapsed)
	}
}

func TestEndpointGeofenceCommands(t *testing.T) {
	e, ap := newTestEndpoint(t, false, nil)
	own(t, e, "da002")

	if err := e.SetGeofence("da002", Geofence{HeightLow: 10, HeightHigh: 5, Radius: 100}); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("inverted fence: %v", err)
	}
	if err := e.SetGeofence("da002", Geofence{HeightLow: 2, HeightHigh: 30, Radius: 100}); err != nil {
		t.Fatal(err)
	}

	ap.mu.Lock()
	ap.flying = true
	ap.mu.Unlock()
	if err := e.SetAltitude("da002", 35); !errors.Is(err, ErrGeofenceViolation) {
		t.Errorf("altitude above fence: %v", err)
	}
	if err := e.SetAltitude("da002", 20); err != nil {
		t.Errorf("altitude inside fence: %v", err)
	}
}

func TestEndpointTaskPriorities(t *testing.T) {
	e, ap := newTestEndpoint(t, false, nil)
	own(t, e, "da002")
	ap.mu.Lock()
	ap.flying = true
	ap.mu.Unlock()

	// A max priority task blocks lower-priority commands until done.
	block := make(chan struct{})
	if err := e.startTask("blocker", taskPriorityMax, func(ctx context.Context) { <-block }); err != nil {
		t.Fatal(err)
	}
	if err := e.SetVelocity("da002", 1, 0, 0, 0); !errors.Is(err, ErrTaskBusy) {
		t.Errorf("velocity under max priority task: %v", err)
	}
	close(block)
	waitFor(t, "blocker", e.Idle)
	if err := e.SetVelocity("da002", 1, 0, 0, 0); err != nil {
		t.Errorf("velocity after task done: %v", err)
	}
}

type recordingNotifier struct {
	mu    sync.Mutex
	calls []string
}

func (n *recordingNotifier) AppLost(id string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.calls = append(n.calls, id)
	return nil
}

func (n *recordingNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.calls)
}

func TestEndpointManagedLinkLossFailover(t *testing.T) {
	notifier := &recordingNotifier{}
	ap := newFakeAutopilot()
	ap.flying = true
	e := NewEndpoint(Config{
		ID: "dss001", DefaultSpeed: 5, Managed: true,
		LinkDegraded: 20 * time.Millisecond, LinkLost: 40 * time.Millisecond,
	}, ap, notifier, log.Discard())
	defer e.Shutdown()
	own(t, e, "da002")

	// Owner goes silent: the manager gets exactly one chance to
	// intervene, then the endpoint flies home on its own, once.
	waitFor(t, "app_lost notification", func() bool { return notifier.count() == 1 })
	waitFor(t, "autonomous return", func() bool { return ap.rtls() == 1 })
	time.Sleep(100 * time.Millisecond)
	if n := notifier.count(); n != 1 {
		t.Errorf("%d app_lost notifications", n)
	}
	if n := ap.rtls(); n != 1 {
		t.Errorf("%d returns flown", n)
	}
	if e.WhoControls() != AuthorityAircraft {
		t.Errorf("authority %s after failover", e.WhoControls())
	}
}

func TestEndpointHeartbeatKeepsLinkAlive(t *testing.T) {
	notifier := &recordingNotifier{}
	ap := newFakeAutopilot()
	ap.flying = true
	e := NewEndpoint(Config{
		ID: "dss001", DefaultSpeed: 5, Managed: true,
		LinkDegraded: 200 * time.Millisecond, LinkLost: 2 * time.Second,
	}, ap, notifier, log.Discard())
	defer e.Shutdown()
	own(t, e, "da002")

	for range 10 {
		if err := e.HeartBeat("da002"); err != nil {
			t.Fatal(err)
		}
		time.Sleep(50 * time.Millisecond)
	}
	if notifier.count() != 0 {
		t.Errorf("app_lost fired despite heartbeats")
	}
	if e.WhoControls() != AuthorityApplication {
		t.Errorf("authority %s", e.WhoControls())
	}
}
