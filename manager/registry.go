// manager/registry.go
// Copyright(c) 2024-2026 covey contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

// Package manager implements the fleet manager: the registry of
// applications and aircraft, and the arbiter that allocates aircraft to
// applications and keeps ownership consistent when links fail.
package manager

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/brunoga/deep"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/covey-uas/covey/fleet"
	"github.com/covey-uas/covey/log"
	"github.com/covey-uas/covey/util"
)

// ClientKind doubles as the id prefix, so "dss001" is readable at a
// glance in the logs.
type ClientKind string

const (
	KindAircraft    ClientKind = "dss"
	KindApplication ClientKind = "da"
	KindSupport     ClientKind = "dsa"
)

func (k ClientKind) Valid() bool {
	return k == KindAircraft || k == KindApplication || k == KindSupport
}

const (
	// StaleAfter: a record this silent is not handed out to anyone.
	StaleAfter = 20 * time.Second
	// EvictAfter: a record this silent is removed by the sweep.
	EvictAfter = 30 * time.Second
	// SweepInterval is how often the stale sweep runs.
	SweepInterval = 30 * time.Second

	// retiredIDs bounds the memory of removed ids kept to distinguish
	// "stale" from "never existed".
	retiredIDs = 512
)

// ClientRecord is one registered client as the manager sees it.
type ClientRecord struct {
	ID           string     `msgpack:"id" json:"id"`
	Kind         ClientKind `msgpack:"kind" json:"kind"`
	Name         string     `msgpack:"name" json:"name"`
	Desc         string     `msgpack:"desc" json:"desc"`
	Capabilities []string   `msgpack:"capabilities" json:"capabilities"`
	Addr         string     `msgpack:"addr" json:"addr"` // empty for clients with no RPC interface of their own
	Port         int        `msgpack:"port" json:"port"`
	Owner        string     `msgpack:"owner" json:"owner"`
	Index        int        `msgpack:"index" json:"index"` // registration order
	LastSeen     time.Time  `msgpack:"last_seen" json:"last_seen"`
}

// Attached reports whether a live client is behind this record; false for
// ids pre-allocated by launch_app that have not registered yet.
func (r *ClientRecord) Attached() bool { return r.Addr != "" }

// HasCapabilities reports whether the record covers every requested
// capability.
func (r *ClientRecord) HasCapabilities(want []string) bool {
	for _, c := range want {
		if !slices.Contains(r.Capabilities, c) {
			return false
		}
	}
	return true
}

// RegistryEvent reports a registry change on the manager's event stream.
type RegistryEvent struct {
	Type   string       `msgpack:"type" json:"type"` // "registered", "unregistered", "owner", "evicted"
	Client ClientRecord `msgpack:"client" json:"client"`
}

// Registry holds the client table. All mutation goes through it; the
// arbiter layers ownership logic on top.
type Registry struct {
	mu util.LoggingMutex
	lg *log.Logger

	clients   map[string]*ClientRecord
	nextIndex int
	retired   *lru.Cache[string, time.Time]

	events *util.EventStream[RegistryEvent]
	store  *Store // nil for in-memory only

	now func() time.Time
}

func NewRegistry(store *Store, lg *log.Logger) (*Registry, error) {
	retired, err := lru.New[string, time.Time](retiredIDs)
	if err != nil {
		return nil, err
	}
	r := &Registry{
		lg:        lg,
		clients:   make(map[string]*ClientRecord),
		nextIndex: 1,
		retired:   retired,
		events:    util.NewEventStream[RegistryEvent](lg),
		store:     store,
		now:       time.Now,
	}
	if store != nil {
		clients, nextIndex, err := store.Load()
		if err != nil {
			return nil, fmt.Errorf("loading client table: %w", err)
		}
		r.clients = clients
		if nextIndex > r.nextIndex {
			r.nextIndex = nextIndex
		}
		// Everyone starts parked after a restart; owners re-acquire.
		for _, c := range r.clients {
			c.Owner = fleet.ManagerID
		}
		lg.Infof("restored %d client records", len(clients))
	}
	return r, nil
}

func (r *Registry) Subscribe() *util.EventsSubscription[RegistryEvent] {
	return r.events.Subscribe()
}

func (r *Registry) persist() {
	if r.store != nil {
		if err := r.store.Save(r.clients, r.nextIndex); err != nil {
			r.lg.Errorf("persisting client table: %v", err)
		}
	}
}

// Register adds a client and returns its assigned id. A non-empty boundID
// attaches the caller to an id pre-allocated by launch_app.
func (r *Registry) Register(kind ClientKind, name, desc string, capabilities []string, addr string, port int, boundID string) (string, error) {
	if !kind.Valid() || name == "" || port < 0 || port > 65535 {
		return "", ErrInvalidArgument
	}
	// Aircraft must be dialable for ownership transfers; applications may
	// register without an interface of their own.
	if kind == KindAircraft && (addr == "" || port == 0) {
		return "", ErrInvalidArgument
	}

	r.mu.Lock(r.lg)
	defer r.mu.Unlock(r.lg)

	var rec *ClientRecord
	if boundID != "" {
		var ok bool
		if rec, ok = r.clients[boundID]; !ok {
			return "", ErrUnknownClient
		}
		// A non-empty name marks an id that something already bound to.
		if rec.Name != "" || rec.Kind != kind {
			return "", ErrInvalidArgument
		}
		rec.Name, rec.Desc, rec.Capabilities = name, desc, slices.Clone(capabilities)
		rec.Addr, rec.Port = addr, port
		rec.LastSeen = r.now()
	} else {
		// An aircraft endpoint that crashed and restarted comes back at
		// the same address before its old record ages out; replace the
		// stale record, but refuse to shadow a live one.
		if kind == KindAircraft {
			for id, c := range r.clients {
				if c.Kind != KindAircraft || c.Addr != addr || c.Port != port {
					continue
				}
				if r.now().Sub(c.LastSeen) <= StaleAfter {
					return "", ErrInvalidArgument
				}
				old := *c
				delete(r.clients, id)
				r.retired.Add(id, r.now())
				r.events.Post(RegistryEvent{Type: "evicted", Client: old})
				r.lg.Warnf("replaced stale %s at %s:%d", id, addr, port)
			}
		}
		rec = &ClientRecord{
			ID:           fmt.Sprintf("%s%03d", kind, r.nextIndex),
			Kind:         kind,
			Name:         name,
			Desc:         desc,
			Capabilities: slices.Clone(capabilities),
			Addr:         addr,
			Port:         port,
			Owner:        fleet.ManagerID,
			Index:        r.nextIndex,
			LastSeen:     r.now(),
		}
		r.nextIndex++
		r.clients[rec.ID] = rec
	}

	r.persist()
	r.events.Post(RegistryEvent{Type: "registered", Client: *rec})
	r.lg.Infof("registered %s (%s) at %s:%d", rec.ID, name, addr, port)
	return rec.ID, nil
}

// PreAllocate reserves an id for a client that will register later, the
// way launch_app hands an id to the process it spawns.
func (r *Registry) PreAllocate(kind ClientKind) (string, error) {
	if !kind.Valid() {
		return "", ErrInvalidArgument
	}
	r.mu.Lock(r.lg)
	defer r.mu.Unlock(r.lg)

	rec := &ClientRecord{
		ID:       fmt.Sprintf("%s%03d", kind, r.nextIndex),
		Kind:     kind,
		Owner:    fleet.ManagerID,
		Index:    r.nextIndex,
		LastSeen: r.now(),
	}
	r.nextIndex++
	r.clients[rec.ID] = rec
	r.persist()
	return rec.ID, nil
}

// Unregister removes a client. It returns the ids of any aircraft the
// client still owned so the caller can reclaim them.
func (r *Registry) Unregister(id string) ([]string, error) {
	r.mu.Lock(r.lg)
	defer r.mu.Unlock(r.lg)

	rec, ok := r.clients[id]
	if !ok {
		return nil, r.unknownLocked(id)
	}
	delete(r.clients, id)
	r.retired.Add(id, r.now())

	var owned []string
	for _, c := range r.clients {
		if c.Kind == KindAircraft && c.Owner == id {
			owned = append(owned, c.ID)
		}
	}
	slices.Sort(owned)

	r.persist()
	r.events.Post(RegistryEvent{Type: "unregistered", Client: *rec})
	r.lg.Infof("unregistered %s, owned %v", id, owned)
	return owned, nil
}

// Touch records client liveness.
func (r *Registry) Touch(id string) error {
	r.mu.Lock(r.lg)
	defer r.mu.Unlock(r.lg)
	rec, ok := r.clients[id]
	if !ok {
		return r.unknownLocked(id)
	}
	rec.LastSeen = r.now()
	return nil
}

// unknownLocked distinguishes an id we once knew from one we never did.
func (r *Registry) unknownLocked(id string) error {
	if _, retired := r.retired.Get(id); retired {
		return ErrStaleResource
	}
	return ErrUnknownClient
}

// Get returns a copy of a record.
func (r *Registry) Get(id string) (ClientRecord, error) {
	r.mu.Lock(r.lg)
	defer r.mu.Unlock(r.lg)
	rec, ok := r.clients[id]
	if !ok {
		return ClientRecord{}, r.unknownLocked(id)
	}
	return deep.MustCopy(*rec), nil
}

// Filter selects records for Query; zero fields match everything.
type Filter struct {
	Kind         ClientKind
	ID           string // substring match against the client id
	Capabilities []string
	OwnedBy      string
}

// Query returns deep copies of matching records in registration order.
func (r *Registry) Query(f Filter) []ClientRecord {
	r.mu.Lock(r.lg)
	defer r.mu.Unlock(r.lg)

	var out []ClientRecord
	for _, id := range util.SortedMapKeys(r.clients) {
		c := r.clients[id]
		if f.Kind != "" && c.Kind != f.Kind {
			continue
		}
		if f.ID != "" && !strings.Contains(c.ID, f.ID) {
			continue
		}
		if f.OwnedBy != "" && c.Owner != f.OwnedBy {
			continue
		}
		if !c.HasCapabilities(f.Capabilities) {
			continue
		}
		out = append(out, deep.MustCopy(*c))
	}
	slices.SortFunc(out, func(a, b ClientRecord) int { return a.Index - b.Index })
	return out
}

// Fresh reports whether the record has been seen recently enough to be
// handed out.
func (r *Registry) Fresh(rec ClientRecord) bool {
	return r.now().Sub(rec.LastSeen) <= StaleAfter
}

// setOwner updates the ownership column; only the arbiter calls it, after
// the endpoint has acknowledged.
func (r *Registry) setOwner(id, owner string) error {
	r.mu.Lock(r.lg)
	defer r.mu.Unlock(r.lg)
	rec, ok := r.clients[id]
	if !ok {
		return r.unknownLocked(id)
	}
	rec.Owner = owner
	r.persist()
	r.events.Post(RegistryEvent{Type: "owner", Client: *rec})
	return nil
}

// SweepStale evicts clients not seen for EvictAfter and returns the
// evicted records. Pre-allocated ids that never attached are evicted on
// the same schedule.
func (r *Registry) SweepStale() []ClientRecord {
	r.mu.Lock(r.lg)
	defer r.mu.Unlock(r.lg)

	var evicted []ClientRecord
	for id, c := range r.clients {
		if r.now().Sub(c.LastSeen) > EvictAfter {
			evicted = append(evicted, *c)
			delete(r.clients, id)
			r.retired.Add(id, r.now())
		}
	}
	if evicted == nil {
		return nil
	}
	slices.SortFunc(evicted, func(a, b ClientRecord) int { return a.Index - b.Index })

	r.persist()
	for _, c := range evicted {
		r.events.Post(RegistryEvent{Type: "evicted", Client: c})
		r.lg.Warnf("evicted %s, silent for %s", c.ID, r.now().Sub(c.LastSeen).Round(time.Second))
	}
	return evicted
}
