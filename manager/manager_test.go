// manager/manager_test.go
// Copyright(c) 2024-2026 covey contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package manager

import (
	"errors"
	"testing"

	"github.com/covey-uas/covey/fleet"
	"github.com/covey-uas/covey/log"
)

func newTestManager(t *testing.T) (*Manager, *Registry, *fakeControl, *recordingPolicy) {
	t.Helper()
	arb, r, control, policy, _ := newTestArbiter(t)
	m := NewManager(r, arb, nil, log.Discard())
	t.Cleanup(m.Shutdown)
	return m, r, control, policy
}

func TestManagerClientLostReclaims(t *testing.T) {
	m, r, _, policy := newTestManager(t)

	app, err := m.Register(KindApplication, "app", "", nil, "", 0, "")
	if err != nil {
		t.Fatal(err)
	}
	dss, err := m.Register(KindAircraft, "d1", "", []string{"camera"}, "10.0.0.1", 5000, "")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := m.GetDrone(app, []string{"camera"}, ""); err != nil {
		t.Fatal(err)
	}

	m.clientLost(app)

	if rec, _ := r.Get(dss); rec.Owner != fleet.ManagerID {
		t.Errorf("owner %s after reclaim", rec.Owner)
	}
	policy.mu.Lock()
	defer policy.mu.Unlock()
	if len(policy.lost) != 1 || policy.lost[0] != dss {
		t.Errorf("recovery policy saw %v", policy.lost)
	}
}

func TestManagerClientLostUnknownCleansUp(t *testing.T) {
	m, _, _, policy := newTestManager(t)

	app, err := m.Register(KindApplication, "app", "", nil, "", 0, "")
	if err != nil {
		t.Fatal(err)
	}
	if err := m.Unregister(app); err != nil {
		t.Fatal(err)
	}

	// Lost transition racing an unregister must be a no-op.
	m.clientLost(app)

	policy.mu.Lock()
	defer policy.mu.Unlock()
	if len(policy.lost) != 0 {
		t.Errorf("recovery policy saw %v", policy.lost)
	}
}

func TestManagerLaunchAppRequiresLauncher(t *testing.T) {
	m, _, _, _ := newTestManager(t)

	app, _ := m.Register(KindApplication, "app", "", nil, "", 0, "")
	dss, _ := m.Register(KindAircraft, "d1", "", nil, "10.0.0.1", 5000, "")

	if _, err := m.LaunchApp(app, "covey-srtl", dss); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("launch without launcher: %v", err)
	}
}
