// manager/arbiter_test.go
// Copyright(c) 2024-2026 covey contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package manager

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/covey-uas/covey/fleet"
	"github.com/covey-uas/covey/log"
)

// fakeControl stands in for the endpoints' RPC interface: it records
// every proposed ownership change and can be told to refuse them.
type fakeControl struct {
	mu       sync.Mutex
	proposed []string // "addr:owner"
	refuse   map[string]bool
	armed    map[string]bool
}

func newFakeControl() *fakeControl {
	return &fakeControl{refuse: make(map[string]bool), armed: make(map[string]bool)}
}

func (c *fakeControl) SetOwner(ctx context.Context, addr string, port int, newOwner string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.refuse[addr] {
		return ErrEndpointUnreachable
	}
	c.proposed = append(c.proposed, addr+":"+newOwner)
	return nil
}

func (c *fakeControl) Armed(ctx context.Context, addr string, port int) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.armed[addr], nil
}

type recordingPolicy struct {
	mu   sync.Mutex
	lost []string
}

func (p *recordingPolicy) ResourceLost(arb *Arbiter, aircraftID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.lost = append(p.lost, aircraftID)
}

func newTestArbiter(t *testing.T) (*Arbiter, *Registry, *fakeControl, *recordingPolicy, *testClock) {
	t.Helper()
	r, clock := newTestRegistry(t)
	control := newFakeControl()
	policy := &recordingPolicy{}
	return NewArbiter(r, control, policy, log.Discard()), r, control, policy, clock
}

// registerFleet sets up two aircraft and an application and returns their
// ids.
func registerFleet(t *testing.T, r *Registry) (string, string, string) {
	t.Helper()
	dss1, err := r.Register(KindAircraft, "d1", "", []string{"camera"}, "addr1", 5000, "")
	if err != nil {
		t.Fatal(err)
	}
	dss2, err := r.Register(KindAircraft, "d2", "", []string{"camera", "lidar"}, "addr2", 5000, "")
	if err != nil {
		t.Fatal(err)
	}
	app, err := r.Register(KindApplication, "app", "", nil, "addr3", 5001, "")
	if err != nil {
		t.Fatal(err)
	}
	return dss1, dss2, app
}

func TestArbiterAcquireByCapability(t *testing.T) {
	arb, r, _, _, _ := newTestArbiter(t)
	dss1, dss2, app := registerFleet(t, r)

	// Both aircraft have a camera; the earlier registered one wins.
	rec, err := arb.Acquire(app, []string{"camera"}, "")
	if err != nil {
		t.Fatal(err)
	}
	if rec.ID != dss1 {
		t.Errorf("acquired %s, want %s", rec.ID, dss1)
	}
	if got, _ := r.Get(dss1); got.Owner != app {
		t.Errorf("owner %q after acquire", got.Owner)
	}

	// Only the lidar aircraft matches now.
	rec, err = arb.Acquire(app, []string{"lidar"}, "")
	if err != nil {
		t.Fatal(err)
	}
	if rec.ID != dss2 {
		t.Errorf("acquired %s, want %s", rec.ID, dss2)
	}

	if _, err = arb.Acquire(app, []string{"camera"}, ""); !errors.Is(err, ErrNoCapableResource) {
		t.Errorf("acquire with fleet exhausted: %v", err)
	}
}

func TestArbiterAcquireForced(t *testing.T) {
	arb, r, _, _, clock := newTestArbiter(t)
	dss1, dss2, app := registerFleet(t, r)

	rec, err := arb.Acquire(app, nil, dss2)
	if err != nil {
		t.Fatal(err)
	}
	if rec.ID != dss2 {
		t.Errorf("acquired %s", rec.ID)
	}

	// Owned aircraft is busy, even when forced.
	if _, err := arb.Acquire(app, nil, dss2); !errors.Is(err, ErrResourceBusy) {
		t.Errorf("forced acquire of owned aircraft: %v", err)
	}

	// A silent aircraft is not handed out.
	clock.advance(StaleAfter + time.Second)
	r.Touch(app)
	if _, err := arb.Acquire(app, nil, dss1); !errors.Is(err, ErrStaleResource) {
		t.Errorf("forced acquire of silent aircraft: %v", err)
	}

	// Unknown vs retired.
	if _, err := arb.Acquire(app, nil, "dss999"); !errors.Is(err, ErrUnknownClient) {
		t.Errorf("forced acquire of unknown aircraft: %v", err)
	}

	// Forcing an application id is refused.
	if _, err := arb.Acquire(app, nil, app); !errors.Is(err, ErrNotAircraft) {
		t.Errorf("forced acquire of application: %v", err)
	}
}

func TestArbiterTwoPhaseAbort(t *testing.T) {
	arb, r, control, _, _ := newTestArbiter(t)
	dss1, _, app := registerFleet(t, r)

	// The endpoint never acks: the transfer fails and the registry still
	// shows the aircraft parked.
	control.refuse["addr1"] = true
	if _, err := arb.Acquire(app, nil, dss1); !errors.Is(err, ErrEndpointUnreachable) {
		t.Fatalf("acquire with deaf endpoint: %v", err)
	}
	if rec, _ := r.Get(dss1); rec.Owner != fleet.ManagerID {
		t.Errorf("owner %q after aborted transfer", rec.Owner)
	}

	// Capability matching skips the deaf endpoint and finds the next one.
	rec, err := arb.Acquire(app, []string{"camera"}, "")
	if err != nil {
		t.Fatal(err)
	}
	if rec.ID == dss1 {
		t.Error("acquired the deaf endpoint")
	}
}

func TestArbiterRelease(t *testing.T) {
	arb, r, _, _, _ := newTestArbiter(t)
	dss1, _, app := registerFleet(t, r)
	app2, err := r.Register(KindApplication, "app2", "", nil, "addr4", 5001, "")
	if err != nil {
		t.Fatal(err)
	}

	if _, err := arb.Acquire(app, nil, dss1); err != nil {
		t.Fatal(err)
	}
	if err := arb.Release(app2, dss1); !errors.Is(err, ErrNotOwner) {
		t.Errorf("release by non-owner: %v", err)
	}
	if err := arb.Release(app, dss1); err != nil {
		t.Fatal(err)
	}
	if rec, _ := r.Get(dss1); rec.Owner != fleet.ManagerID {
		t.Errorf("owner %q after release", rec.Owner)
	}
}

func TestArbiterHandover(t *testing.T) {
	arb, r, _, _, _ := newTestArbiter(t)
	dss1, _, app := registerFleet(t, r)
	app2, err := r.Register(KindApplication, "app2", "", nil, "addr4", 5001, "")
	if err != nil {
		t.Fatal(err)
	}

	if _, err := arb.Acquire(app, nil, dss1); err != nil {
		t.Fatal(err)
	}
	if err := arb.Handover(app2, dss1, app); !errors.Is(err, ErrNotOwner) {
		t.Errorf("handover by non-owner: %v", err)
	}
	if err := arb.Handover(app, dss1, app2); err != nil {
		t.Fatal(err)
	}
	if rec, _ := r.Get(dss1); rec.Owner != app2 {
		t.Errorf("owner %q after handover", rec.Owner)
	}
}

func TestArbiterHandoverFallbackToManager(t *testing.T) {
	arb, r, _, _, _ := newTestArbiter(t)
	dss1, _, app := registerFleet(t, r)

	if _, err := arb.Acquire(app, nil, dss1); err != nil {
		t.Fatal(err)
	}

	// Handover to an id that does not exist: the aircraft must not stay
	// with a requester who wanted rid of it.
	err := arb.Handover(app, dss1, "da999")
	if !errors.Is(err, ErrUnknownClient) {
		t.Fatalf("handover to unknown client: %v", err)
	}
	if rec, _ := r.Get(dss1); rec.Owner != fleet.ManagerID {
		t.Errorf("owner %q after failed handover, want manager", rec.Owner)
	}
}

func TestArbiterResourceLost(t *testing.T) {
	arb, r, control, policy, _ := newTestArbiter(t)
	dss1, _, app := registerFleet(t, r)
	control.armed["addr1"] = true

	if _, err := arb.Acquire(app, nil, dss1); err != nil {
		t.Fatal(err)
	}
	if err := arb.ResourceLost(dss1); err != nil {
		t.Fatal(err)
	}
	if rec, _ := r.Get(dss1); rec.Owner != fleet.ManagerID {
		t.Errorf("owner %q after reclaim", rec.Owner)
	}
	if len(policy.lost) != 1 || policy.lost[0] != dss1 {
		t.Errorf("recovery policy saw %v", policy.lost)
	}

	// Reclaiming a parked aircraft is a no-op, not an error.
	if err := arb.ResourceLost(dss1); err != nil {
		t.Fatal(err)
	}
	if len(policy.lost) != 1 {
		t.Errorf("recovery policy ran %d times", len(policy.lost))
	}
}

func TestArbiterSingleOwnerUnderContention(t *testing.T) {
	arb, r, _, _, _ := newTestArbiter(t)
	dss1, _, _ := registerFleet(t, r)

	var apps []string
	for range 8 {
		id, err := r.Register(KindApplication, "racer", "", nil, "addrN", 5001, "")
		if err != nil {
			t.Fatal(err)
		}
		apps = append(apps, id)
	}

	var wg sync.WaitGroup
	var mu sync.Mutex
	winners := 0
	for _, app := range apps {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := arb.Acquire(app, nil, dss1); err == nil {
				mu.Lock()
				winners++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if winners != 1 {
		t.Errorf("%d acquires succeeded, want exactly 1", winners)
	}
	rec, err := r.Get(dss1)
	if err != nil {
		t.Fatal(err)
	}
	owner := rec.Owner
	found := false
	for _, app := range apps {
		if owner == app {
			found = true
		}
	}
	if !found {
		t.Errorf("final owner %q is not one of the racers", owner)
	}
}
