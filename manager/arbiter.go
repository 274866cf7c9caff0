// manager/arbiter.go
// Copyright(c) 2024-2026 covey contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package manager

import (
	"context"
	"sync"
	"time"

	"github.com/covey-uas/covey/fleet"
	"github.com/covey-uas/covey/log"
)

// AckTimeout is how long the arbiter waits for the endpoint to
// acknowledge an ownership change before abandoning the transfer.
const AckTimeout = 2 * time.Second

// EndpointControl is the arbiter's path to an aircraft endpoint.
type EndpointControl interface {
	// SetOwner proposes an ownership change; a nil return is the
	// endpoint's ack, meaning it has committed the new owner.
	SetOwner(ctx context.Context, addr string, port int, newOwner string) error
	// Armed queries whether the vehicle has armed motors, for the
	// recovery decision after a reclaim.
	Armed(ctx context.Context, addr string, port int) (bool, error)
}

// RecoveryPolicy decides what happens to an aircraft after its owner's
// link was lost and ownership has been reclaimed.
type RecoveryPolicy interface {
	ResourceLost(arb *Arbiter, aircraftID string)
}

// Arbiter owns the allocation of aircraft to applications. Ownership
// changes are a two-phase exchange: propose to the endpoint, commit to
// the registry only on the endpoint's ack. An endpoint that does not
// answer within AckTimeout leaves the registry unchanged, so the registry
// never claims an owner the endpoint did not accept.
type Arbiter struct {
	registry *Registry
	control  EndpointControl
	policy   RecoveryPolicy
	lg       *log.Logger

	// per-aircraft transfer locks; transfers for different aircraft
	// proceed in parallel
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewArbiter(registry *Registry, control EndpointControl, policy RecoveryPolicy, lg *log.Logger) *Arbiter {
	return &Arbiter{
		registry: registry,
		control:  control,
		policy:   policy,
		lg:       lg,
		locks:    make(map[string]*sync.Mutex),
	}
}

func (a *Arbiter) transferLock(id string) *sync.Mutex {
	a.mu.Lock()
	defer a.mu.Unlock()
	l, ok := a.locks[id]
	if !ok {
		l = &sync.Mutex{}
		a.locks[id] = l
	}
	return l
}

// propose runs one two-phase ownership change, commit on ack.
func (a *Arbiter) propose(rec ClientRecord, newOwner string) error {
	ctx, cancel := context.WithTimeout(context.Background(), AckTimeout)
	defer cancel()
	if err := a.control.SetOwner(ctx, rec.Addr, rec.Port, newOwner); err != nil {
		a.lg.Warnf("%s: set_owner %s not acknowledged: %v", rec.ID, newOwner, err)
		return ErrEndpointUnreachable
	}
	return a.registry.setOwner(rec.ID, newOwner)
}

// Acquire allocates an aircraft to the requester. With forced set, only
// that aircraft will do; otherwise the first registered available
// aircraft with the requested capabilities wins.
func (a *Arbiter) Acquire(requester string, capabilities []string, forced string) (ClientRecord, error) {
	if _, err := a.registry.Get(requester); err != nil {
		return ClientRecord{}, err
	}

	if forced != "" {
		lock := a.transferLock(forced)
		lock.Lock()
		defer lock.Unlock()

		rec, err := a.registry.Get(forced)
		if err != nil {
			return ClientRecord{}, err
		}
		if rec.Kind != KindAircraft || !rec.Attached() {
			return ClientRecord{}, ErrNotAircraft
		}
		if rec.Owner != fleet.ManagerID {
			return ClientRecord{}, ErrResourceBusy
		}
		if !a.registry.Fresh(rec) {
			return ClientRecord{}, ErrStaleResource
		}
		if err := a.propose(rec, requester); err != nil {
			return ClientRecord{}, err
		}
		rec.Owner = requester
		return rec, nil
	}

	// Earliest registered wins; Query returns registration order.
	for _, rec := range a.registry.Query(Filter{Kind: KindAircraft, Capabilities: capabilities, OwnedBy: fleet.ManagerID}) {
		if !rec.Attached() || !a.registry.Fresh(rec) {
			continue
		}
		lock := a.transferLock(rec.ID)
		lock.Lock()

		// Revalidate under the transfer lock; a parallel acquire may
		// have taken it.
		cur, err := a.registry.Get(rec.ID)
		if err != nil || cur.Owner != fleet.ManagerID {
			lock.Unlock()
			continue
		}
		err = a.propose(cur, requester)
		lock.Unlock()
		if err != nil {
			continue
		}
		cur.Owner = requester
		a.lg.Infof("%s acquired by %s", cur.ID, requester)
		return cur, nil
	}
	return ClientRecord{}, ErrNoCapableResource
}

// Release returns an aircraft to the manager's pool.
func (a *Arbiter) Release(requester, aircraftID string) error {
	lock := a.transferLock(aircraftID)
	lock.Lock()
	defer lock.Unlock()

	rec, err := a.registry.Get(aircraftID)
	if err != nil {
		return err
	}
	if rec.Owner != requester {
		return ErrNotOwner
	}
	if err := a.propose(rec, fleet.ManagerID); err != nil {
		return err
	}
	a.lg.Infof("%s released by %s", aircraftID, requester)
	return nil
}

// Handover moves ownership directly between applications. If the new
// owner is unknown or the endpoint refuses it, ownership falls back to
// the manager rather than staying with a requester who wanted rid of it.
func (a *Arbiter) Handover(requester, aircraftID, newOwner string) error {
	lock := a.transferLock(aircraftID)
	lock.Lock()
	defer lock.Unlock()

	rec, err := a.registry.Get(aircraftID)
	if err != nil {
		return err
	}
	if rec.Owner != requester {
		return ErrNotOwner
	}

	if _, err := a.registry.Get(newOwner); err != nil {
		if perr := a.propose(rec, fleet.ManagerID); perr != nil {
			a.lg.Errorf("%s: fallback to manager failed: %v", aircraftID, perr)
		}
		return err
	}
	if err := a.propose(rec, newOwner); err != nil {
		if perr := a.propose(rec, fleet.ManagerID); perr != nil {
			a.lg.Errorf("%s: fallback to manager failed: %v", aircraftID, perr)
		}
		return err
	}
	a.lg.Infof("%s handed over %s -> %s", aircraftID, requester, newOwner)
	return nil
}

// ResourceLost reclaims an aircraft whose owner's link is gone, then
// hands it to the recovery policy. The endpoint reported the loss, so it
// is reachable; a few proposal attempts cover transient failures.
func (a *Arbiter) ResourceLost(aircraftID string) error {
	lock := a.transferLock(aircraftID)
	lock.Lock()

	rec, err := a.registry.Get(aircraftID)
	if err != nil {
		lock.Unlock()
		return err
	}
	if rec.Owner == fleet.ManagerID {
		lock.Unlock()
		return nil // already parked
	}

	err = nil
	for attempt := 0; attempt < 3; attempt++ {
		if err = a.propose(rec, fleet.ManagerID); err == nil {
			break
		}
	}
	lock.Unlock()
	if err != nil {
		return err
	}

	a.lg.Warnf("%s reclaimed after owner %s was lost", aircraftID, rec.Owner)
	if a.policy != nil {
		a.policy.ResourceLost(a, aircraftID)
	}
	return nil
}

// ReclaimFrom reclaims every aircraft owned by a departed client.
func (a *Arbiter) ReclaimFrom(owned []string) {
	for _, id := range owned {
		if err := a.ResourceLost(id); err != nil {
			a.lg.Errorf("%s: reclaim: %v", id, err)
		}
	}
}

// Registry exposes the registry to recovery policies.
func (a *Arbiter) Registry() *Registry { return a.registry }

// Control exposes the endpoint control path to recovery policies.
func (a *Arbiter) Control() EndpointControl { return a.control }
