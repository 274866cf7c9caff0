// fleet/authority.go
// Copyright(c) 2024-2026 covey contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package fleet

import (
	"sync"

	"github.com/covey-uas/covey/log"
)

// Authority says who is flying the aircraft right now.
type Authority string

const (
	// AuthorityPilot: the safety pilot has taken over with the RC
	// transmitter. All remote commands are refused until the pilot gives
	// controls back.
	AuthorityPilot Authority = "PILOT"
	// AuthorityApplication: a remote application owns the aircraft and
	// may command it.
	AuthorityApplication Authority = "APPLICATION"
	// AuthorityAircraft: the aircraft is flying itself, either because no
	// application has taken controls yet or because the owner's link was
	// lost and the endpoint engaged its autonomous return.
	AuthorityAircraft Authority = "AIRCRAFT"
)

// AuthorityMachine tracks control authority for one aircraft and decides
// when a lost owner link turns into an autonomous return. When a fleet
// manager is attached, the first lost transition only asks the manager to
// intervene (it may hand the aircraft to a recovery application); only a
// second lost transition with no recovery in between forces the
// autonomous return. Unmanaged endpoints skip the grace cycle.
type AuthorityMachine struct {
	mu      sync.Mutex
	state   Authority
	managed bool

	// consecutive lost transitions since the last recovery
	lostCount int

	lg *log.Logger
}

func NewAuthorityMachine(managed bool, lg *log.Logger) *AuthorityMachine {
	return &AuthorityMachine{state: AuthorityAircraft, managed: managed, lg: lg}
}

func (a *AuthorityMachine) State() Authority {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

// PilotTakesControls is called when the safety pilot flips the RC
// override.
func (a *AuthorityMachine) PilotTakesControls() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.state != AuthorityPilot {
		a.lg.Warnf("pilot took controls (was %s)", a.state)
		a.state = AuthorityPilot
	}
}

// PilotReleasesControls returns authority to the aircraft; an owning
// application must re-take controls explicitly.
func (a *AuthorityMachine) PilotReleasesControls() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.state == AuthorityPilot {
		a.lg.Infof("pilot released controls")
		a.state = AuthorityAircraft
	}
}

// OwnerTakesControls moves authority to the owning application. It fails
// while the pilot holds the override.
func (a *AuthorityMachine) OwnerTakesControls() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.state == AuthorityPilot {
		return ErrNotInControl
	}
	a.state = AuthorityApplication
	a.lostCount = 0
	return nil
}

// OwnerRecovered is called when the owner's link comes back before the
// machine gave up on it; it re-arms the manager grace cycle.
func (a *AuthorityMachine) OwnerRecovered() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.lostCount = 0
}

// LinkAction is what the endpoint must do after a lost transition on the
// owner link.
type LinkAction int

const (
	// LinkActionNone: nothing to do (pilot flying, or already returned).
	LinkActionNone LinkAction = iota
	// LinkActionNotifyManager: tell the fleet manager the owner is gone
	// and give it one heartbeat cycle to intervene.
	LinkActionNotifyManager
	// LinkActionAutonomousReturn: take authority back and fly the return.
	LinkActionAutonomousReturn
)

// OwnerLinkLost is called on each lost transition of the owner link and
// returns the action to take. LinkActionAutonomousReturn is returned at
// most once per loss episode: repeated lost transitions while already in
// AuthorityAircraft are LinkActionNone.
func (a *AuthorityMachine) OwnerLinkLost() LinkAction {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.state != AuthorityApplication {
		return LinkActionNone
	}
	a.lostCount++
	if a.managed && a.lostCount == 1 {
		a.lg.Warnf("owner link lost, deferring to fleet manager")
		return LinkActionNotifyManager
	}
	a.lg.Warnf("owner link lost, taking controls for autonomous return")
	a.state = AuthorityAircraft
	a.lostCount = 0
	return LinkActionAutonomousReturn
}
