// manager/manager.go
// Copyright(c) 2024-2026 covey contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package manager

import (
	"runtime/debug"
	"sync"
	"time"

	"github.com/covey-uas/covey/heartbeat"
	"github.com/covey-uas/covey/log"
	"github.com/covey-uas/covey/util"
)

// Manager ties the registry, the arbiter, and the support-app launcher
// together behind the RPC surface.
type Manager struct {
	lg *log.Logger

	registry *Registry
	arbiter  *Arbiter
	launcher AppLauncher

	mu       sync.Mutex
	subs     map[string]*util.EventsSubscription[RegistryEvent]
	monitors map[string]*heartbeat.Monitor

	done chan struct{}
}

// ManagerInfo answers get_info.
type ManagerInfo struct {
	ID      string `msgpack:"id" json:"id"`
	Version string `msgpack:"version" json:"version"`
}

func NewManager(registry *Registry, arbiter *Arbiter, launcher AppLauncher, lg *log.Logger) *Manager {
	m := &Manager{
		lg:       lg,
		registry: registry,
		arbiter:  arbiter,
		launcher: launcher,
		subs:     make(map[string]*util.EventsSubscription[RegistryEvent]),
		monitors: make(map[string]*heartbeat.Monitor),
		done:     make(chan struct{}),
	}
	// Records restored from the store get monitors too; clients that did
	// not survive the restart go lost and age out normally.
	for _, rec := range registry.Query(Filter{}) {
		m.watch(rec.ID)
	}
	go m.sweep()
	return m
}

func (m *Manager) Shutdown() {
	close(m.done)
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, mon := range m.monitors {
		mon.Stop()
	}
}

// watch starts a liveness monitor for the client's link. A lost
// transition reclaims whatever the client owned; the record itself is
// only evicted later by the sweep.
func (m *Manager) watch(id string) {
	mon := heartbeat.NewMonitor(id, heartbeat.DefaultDegradedAfter, heartbeat.DefaultLostAfter, m.lg)
	mon.OnTransition(func(from, to heartbeat.State) {
		if to == heartbeat.StateLost {
			m.clientLost(id)
		}
	})
	mon.Start()

	m.mu.Lock()
	defer m.mu.Unlock()
	if old := m.monitors[id]; old != nil {
		old.Stop()
	}
	m.monitors[id] = mon
}

func (m *Manager) unwatch(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if mon := m.monitors[id]; mon != nil {
		mon.Stop()
		delete(m.monitors, id)
	}
}

func (m *Manager) clientLost(id string) {
	if _, err := m.registry.Get(id); err != nil {
		m.unwatch(id) // record already evicted or replaced
		return
	}
	var owned []string
	for _, c := range m.registry.Query(Filter{Kind: KindAircraft, OwnedBy: id}) {
		owned = append(owned, c.ID)
	}
	if len(owned) > 0 {
		m.lg.Warnf("%s lost, reclaiming %v", id, owned)
		m.arbiter.ReclaimFrom(owned)
	}
}

// sweep periodically evicts silent clients and reclaims whatever they
// owned.
func (m *Manager) sweep() {
	defer m.lg.CatchAndReportCrash()

	ticker := time.NewTicker(SweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-m.done:
			return
		case <-ticker.C:
			m.SweepStale()
		}
	}
}

// SweepStale evicts silent clients now and returns the evicted ids.
func (m *Manager) SweepStale() []string {
	evicted := m.registry.SweepStale()
	var ids []string
	for _, rec := range evicted {
		ids = append(ids, rec.ID)
		if rec.Kind != KindAircraft {
			var owned []string
			for _, c := range m.registry.Query(Filter{Kind: KindAircraft, OwnedBy: rec.ID}) {
				owned = append(owned, c.ID)
			}
			m.arbiter.ReclaimFrom(owned)
		}
		m.dropSubscription(rec.ID)
		m.unwatch(rec.ID)
	}
	return ids
}

func (m *Manager) Register(kind ClientKind, name, desc string, capabilities []string, addr string, port int, boundID string) (string, error) {
	id, err := m.registry.Register(kind, name, desc, capabilities, addr, port, boundID)
	if err == nil {
		m.watch(id)
	}
	return id, err
}

func (m *Manager) Unregister(id string) error {
	owned, err := m.registry.Unregister(id)
	if err != nil {
		return err
	}
	m.arbiter.ReclaimFrom(owned)
	m.dropSubscription(id)
	m.unwatch(id)
	return nil
}

func (m *Manager) GetDrone(requester string, capabilities []string, forced string) (ClientRecord, error) {
	m.touch(requester)
	return m.arbiter.Acquire(requester, capabilities, forced)
}

func (m *Manager) ReleaseDrone(requester, aircraftID string) error {
	m.touch(requester)
	return m.arbiter.Release(requester, aircraftID)
}

func (m *Manager) Handover(requester, aircraftID, newOwner string) error {
	m.touch(requester)
	return m.arbiter.Handover(requester, aircraftID, newOwner)
}

func (m *Manager) Clients(requester string, filter Filter) []ClientRecord {
	m.touch(requester)
	return m.registry.Query(filter)
}

// AppLost handles an endpoint's report that its owner stopped
// heartbeating.
func (m *Manager) AppLost(aircraftID string) error {
	m.touch(aircraftID)
	return m.arbiter.ResourceLost(aircraftID)
}

func (m *Manager) HeartBeat(id string) error {
	m.touchMonitor(id)
	return m.registry.Touch(id)
}

// LaunchApp pre-allocates a support app id and spawns the process; the
// app registers itself under that id once it is up.
func (m *Manager) LaunchApp(requester, app, aircraftID string) (string, error) {
	m.touch(requester)
	if m.launcher == nil {
		return "", ErrInvalidArgument
	}
	if app == "" {
		return "", ErrInvalidArgument
	}
	if _, err := m.registry.Get(aircraftID); err != nil {
		return "", err
	}
	assignedID, err := m.registry.PreAllocate(KindSupport)
	if err != nil {
		return "", err
	}
	if err := m.launcher.Launch(app, assignedID, aircraftID); err != nil {
		return "", err
	}
	return assignedID, nil
}

func (m *Manager) GetInfo(requester string) ManagerInfo {
	m.touch(requester)
	version := "dev"
	if bi, ok := debug.ReadBuildInfo(); ok && bi.Main.Version != "" {
		version = bi.Main.Version
	}
	return ManagerInfo{ID: "crm", Version: version}
}

// GetUpdates drains the caller's registry event subscription, creating it
// on first use.
func (m *Manager) GetUpdates(requester string) []RegistryEvent {
	m.touch(requester)

	m.mu.Lock()
	sub := m.subs[requester]
	if sub == nil {
		sub = m.registry.Subscribe()
		m.subs[requester] = sub
	}
	m.mu.Unlock()
	return sub.Get()
}

func (m *Manager) dropSubscription(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if sub := m.subs[id]; sub != nil {
		sub.Unsubscribe()
		delete(m.subs, id)
	}
}

// touch ignores unknown ids; the operation's own gating reports those.
func (m *Manager) touch(id string) {
	if id != "" {
		m.touchMonitor(id)
		m.registry.Touch(id)
	}
}

func (m *Manager) touchMonitor(id string) {
	m.mu.Lock()
	mon := m.monitors[id]
	m.mu.Unlock()
	if mon != nil {
		mon.Touch()
	}
}
