// client/crm.go
// Copyright(c) 2024-2026 covey contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package client

import (
	"context"

	"github.com/covey-uas/covey/fleet"
	"github.com/covey-uas/covey/log"
	"github.com/covey-uas/covey/manager"
)

// CRM is a connection to the fleet manager. After Register it carries the
// caller's assigned id on every request.
type CRM struct {
	conn
	id string
}

func DialCRM(address string, lg *log.Logger) (*CRM, error) {
	c, err := dialConn(address, lg)
	if err != nil {
		return nil, err
	}
	return &CRM{conn: c}, nil
}

// Register signs this client on and stores the assigned id. addr and port
// are where other parties can reach the caller; boundID attaches to an id
// pre-allocated by LaunchApp.
func (c *CRM) Register(kind manager.ClientKind, name, desc string, capabilities []string, addr string, port int, boundID string) (string, error) {
	args := &manager.RegisterArgs{
		Kind: kind, Name: name, Desc: desc, Capabilities: capabilities,
		Addr: addr, Port: port, BoundID: boundID,
	}
	var id string
	if err := c.callWithTimeout(manager.RegisterRPC, args, &id); err != nil {
		return "", err
	}
	c.id = id
	return id, nil
}

// ID returns the id assigned at registration.
func (c *CRM) ID() string { return c.id }

func (c *CRM) Unregister() error {
	return c.callWithTimeout(manager.UnregisterRPC, &fleet.ClientArgs{ID: c.id}, &struct{}{})
}

func (c *CRM) HeartBeat() error {
	return c.callWithTimeout(manager.HeartBeatRPC, &fleet.ClientArgs{ID: c.id}, &struct{}{})
}

// StartHeartBeat keeps the registration alive until ctx is cancelled.
func (c *CRM) StartHeartBeat(ctx context.Context) {
	go heartBeatLoop(ctx, c.HeartBeat, c.lg)
}

// GetDrone asks the manager for an aircraft. With forced set only that
// aircraft will do; otherwise any available one with the given
// capabilities.
func (c *CRM) GetDrone(capabilities []string, forced string) (manager.ClientRecord, error) {
	args := &manager.GetDroneArgs{
		ClientArgs:   fleet.ClientArgs{ID: c.id},
		Capabilities: capabilities,
		Forced:       forced,
	}
	var rec manager.ClientRecord
	err := c.callWithTimeout(manager.GetDroneRPC, args, &rec)
	return rec, err
}

func (c *CRM) ReleaseDrone(aircraftID string) error {
	args := &manager.ReleaseDroneArgs{ClientArgs: fleet.ClientArgs{ID: c.id}, AircraftID: aircraftID}
	return c.callWithTimeout(manager.ReleaseDroneRPC, args, &struct{}{})
}

func (c *CRM) Handover(aircraftID, newOwner string) error {
	args := &manager.HandoverArgs{ClientArgs: fleet.ClientArgs{ID: c.id}, AircraftID: aircraftID, NewOwner: newOwner}
	return c.callWithTimeout(manager.HandoverRPC, args, &struct{}{})
}

func (c *CRM) Clients(filter manager.Filter) ([]manager.ClientRecord, error) {
	args := &manager.ClientsArgs{ClientArgs: fleet.ClientArgs{ID: c.id}, Filter: filter}
	var recs []manager.ClientRecord
	err := c.callWithTimeout(manager.ClientsRPC, args, &recs)
	return recs, err
}

// AppLost reports that the given aircraft's owner link is gone. It
// implements fleet.ManagerNotifier for endpoints using this connection.
func (c *CRM) AppLost(aircraftID string) error {
	return c.callWithTimeout(manager.AppLostRPC, &fleet.ClientArgs{ID: aircraftID}, &struct{}{})
}

// LaunchApp asks the manager to spawn a support application for an
// aircraft and returns the id it will register under.
func (c *CRM) LaunchApp(app, aircraftID string) (string, error) {
	args := &manager.LaunchAppArgs{ClientArgs: fleet.ClientArgs{ID: c.id}, App: app, AircraftID: aircraftID}
	var assignedID string
	err := c.callWithTimeout(manager.LaunchAppRPC, args, &assignedID)
	return assignedID, err
}

// DelStaleClients triggers an immediate stale sweep and returns the
// evicted ids.
func (c *CRM) DelStaleClients() ([]string, error) {
	var evicted []string
	err := c.callWithTimeout(manager.DelStaleClientsRPC, &fleet.ClientArgs{ID: c.id}, &evicted)
	return evicted, err
}

func (c *CRM) GetInfo() (manager.ManagerInfo, error) {
	var info manager.ManagerInfo
	err := c.callWithTimeout(manager.GetInfoRPC, &fleet.ClientArgs{ID: c.id}, &info)
	return info, err
}

// GetUpdates drains this client's registry event subscription.
func (c *CRM) GetUpdates() ([]manager.RegistryEvent, error) {
	var events []manager.RegistryEvent
	err := c.callWithTimeout(manager.GetUpdatesRPC, &fleet.ClientArgs{ID: c.id}, &events)
	return events, err
}
