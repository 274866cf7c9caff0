// manager/dispatcher.go
// Copyright(c) 2024-2026 covey contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package manager

import "github.com/covey-uas/covey/fleet"

type dispatcher struct {
	m *Manager
}

type RegisterArgs struct {
	Kind         ClientKind
	Name         string
	Desc         string
	Capabilities []string
	Addr         string
	Port         int
	// BoundID attaches to an id pre-allocated by launch_app.
	BoundID string
}

const RegisterRPC = "CRM.Register"

func (d *dispatcher) Register(args *RegisterArgs, id *string) error {
	// As in the endpoint dispatcher: the RPC server runs these on its
	// own goroutines, so catch and report panics here.
	defer d.m.lg.CatchAndReportCrash()

	assigned, err := d.m.Register(args.Kind, args.Name, args.Desc, args.Capabilities, args.Addr, args.Port, args.BoundID)
	if err != nil {
		return err
	}
	*id = assigned
	return nil
}

const UnregisterRPC = "CRM.Unregister"

func (d *dispatcher) Unregister(args *fleet.ClientArgs, _ *struct{}) error {
	defer d.m.lg.CatchAndReportCrash()

	return d.m.Unregister(args.ID)
}

type GetDroneArgs struct {
	fleet.ClientArgs
	Capabilities []string
	// Forced requests one specific aircraft instead of a capability
	// match.
	Forced string
}

const GetDroneRPC = "CRM.GetDrone"

func (d *dispatcher) GetDrone(args *GetDroneArgs, rec *ClientRecord) error {
	defer d.m.lg.CatchAndReportCrash()

	r, err := d.m.GetDrone(args.ID, args.Capabilities, args.Forced)
	if err != nil {
		return err
	}
	*rec = r
	return nil
}

type ReleaseDroneArgs struct {
	fleet.ClientArgs
	AircraftID string
}

const ReleaseDroneRPC = "CRM.ReleaseDrone"

func (d *dispatcher) ReleaseDrone(args *ReleaseDroneArgs, _ *struct{}) error {
	defer d.m.lg.CatchAndReportCrash()

	return d.m.ReleaseDrone(args.ID, args.AircraftID)
}

type HandoverArgs struct {
	fleet.ClientArgs
	AircraftID string
	NewOwner   string
}

const HandoverRPC = "CRM.Handover"

func (d *dispatcher) Handover(args *HandoverArgs, _ *struct{}) error {
	defer d.m.lg.CatchAndReportCrash()

	return d.m.Handover(args.ID, args.AircraftID, args.NewOwner)
}

type ClientsArgs struct {
	fleet.ClientArgs
	Filter Filter
}

const ClientsRPC = "CRM.Clients"

func (d *dispatcher) Clients(args *ClientsArgs, recs *[]ClientRecord) error {
	defer d.m.lg.CatchAndReportCrash()

	*recs = d.m.Clients(args.ID, args.Filter)
	return nil
}

const AppLostRPC = "CRM.AppLost"

// AppLost is called by an aircraft endpoint, with its own id, when its
// owner's link is lost.
func (d *dispatcher) AppLost(args *fleet.ClientArgs, _ *struct{}) error {
	defer d.m.lg.CatchAndReportCrash()

	return d.m.AppLost(args.ID)
}

const HeartBeatRPC = "CRM.HeartBeat"

func (d *dispatcher) HeartBeat(args *fleet.ClientArgs, _ *struct{}) error {
	defer d.m.lg.CatchAndReportCrash()

	return d.m.HeartBeat(args.ID)
}

type LaunchAppArgs struct {
	fleet.ClientArgs
	App        string
	AircraftID string
}

const LaunchAppRPC = "CRM.LaunchApp"

func (d *dispatcher) LaunchApp(args *LaunchAppArgs, assignedID *string) error {
	defer d.m.lg.CatchAndReportCrash()

	id, err := d.m.LaunchApp(args.ID, args.App, args.AircraftID)
	if err != nil {
		return err
	}
	*assignedID = id
	return nil
}

const DelStaleClientsRPC = "CRM.DelStaleClients"

func (d *dispatcher) DelStaleClients(args *fleet.ClientArgs, evicted *[]string) error {
	defer d.m.lg.CatchAndReportCrash()

	d.m.touch(args.ID)
	*evicted = d.m.SweepStale()
	return nil
}

const GetInfoRPC = "CRM.GetInfo"

func (d *dispatcher) GetInfo(args *fleet.ClientArgs, info *ManagerInfo) error {
	defer d.m.lg.CatchAndReportCrash()

	*info = d.m.GetInfo(args.ID)
	return nil
}

const GetUpdatesRPC = "CRM.GetUpdates"

func (d *dispatcher) GetUpdates(args *fleet.ClientArgs, events *[]RegistryEvent) error {
	defer d.m.lg.CatchAndReportCrash()

	*events = d.m.GetUpdates(args.ID)
	return nil
}
