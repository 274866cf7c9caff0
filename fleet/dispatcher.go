// fleet/dispatcher.go
// Copyright(c) 2024-2026 covey contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package fleet

type dispatcher struct {
	ep *Endpoint
}

// ClientArgs is the base of every request: the registered id of the
// caller, assigned by the fleet manager.
type ClientArgs struct {
	ID string
}

const HeartBeatRPC = "DSS.HeartBeat"

func (d *dispatcher) HeartBeat(args *ClientArgs, _ *struct{}) error {
	// The methods in this file are called from the RPC server, which
	// spawns goroutines as needed to handle requests, so if we want to
	// catch and report panics, all of them need to start like this...
	defer d.ep.lg.CatchAndReportCrash()

	return d.ep.HeartBeat(args.ID)
}

const WhoControlsRPC = "DSS.WhoControls"

func (d *dispatcher) WhoControls(args *ClientArgs, authority *Authority) error {
	defer d.ep.lg.CatchAndReportCrash()

	d.ep.touchOwner(args.ID)
	*authority = d.ep.WhoControls()
	return nil
}

const GetOwnerRPC = "DSS.GetOwner"

func (d *dispatcher) GetOwner(args *ClientArgs, owner *string) error {
	defer d.ep.lg.CatchAndReportCrash()

	d.ep.touchOwner(args.ID)
	*owner = d.ep.GetOwner()
	return nil
}

type SetOwnerArgs struct {
	ClientArgs
	NewOwner string
}

const SetOwnerRPC = "DSS.SetOwner"

// SetOwner is the commit point of the manager's two-phase ownership
// transfer: returning nil acknowledges and commits.
func (d *dispatcher) SetOwner(args *SetOwnerArgs, _ *struct{}) error {
	defer d.ep.lg.CatchAndReportCrash()

	return d.ep.SetOwner(args.ID, args.NewOwner)
}

type SetGeofenceArgs struct {
	ClientArgs
	Fence Geofence
}

const SetGeofenceRPC = "DSS.SetGeofence"

func (d *dispatcher) SetGeofence(args *SetGeofenceArgs, _ *struct{}) error {
	defer d.ep.lg.CatchAndReportCrash()

	return d.ep.SetGeofence(args.ID, args.Fence)
}

type SetInitPointArgs struct {
	ClientArgs
	HeadingRef HeadingRef
}

const SetInitPointRPC = "DSS.SetInitPoint"

func (d *dispatcher) SetInitPoint(args *SetInitPointArgs, _ *struct{}) error {
	defer d.ep.lg.CatchAndReportCrash()

	return d.ep.SetInitPoint(args.ID, args.HeadingRef)
}

const ResetSRTLRPC = "DSS.ResetSRTL"

func (d *dispatcher) ResetSRTL(args *ClientArgs, _ *struct{}) error {
	defer d.ep.lg.CatchAndReportCrash()

	return d.ep.ResetSRTL(args.ID)
}

type SRTLArgs struct {
	ClientArgs
	HoverTime float64 // seconds at each retraced waypoint, [0,300]
}

const SRTLRPC = "DSS.SRTL"

func (d *dispatcher) SRTL(args *SRTLArgs, _ *struct{}) error {
	defer d.ep.lg.CatchAndReportCrash()

	return d.ep.SRTL(args.ID, args.HoverTime)
}

type UploadMissionArgs struct {
	ClientArgs
	Mission MissionSpec
}

const UploadMissionLLARPC = "DSS.UploadMissionLLA"

func (d *dispatcher) UploadMissionLLA(args *UploadMissionArgs, _ *struct{}) error {
	defer d.ep.lg.CatchAndReportCrash()

	return d.ep.UploadMission(args.ID, FrameLLA, args.Mission)
}

const UploadMissionNEDRPC = "DSS.UploadMissionNED"

func (d *dispatcher) UploadMissionNED(args *UploadMissionArgs, _ *struct{}) error {
	defer d.ep.lg.CatchAndReportCrash()

	return d.ep.UploadMission(args.ID, FrameNED, args.Mission)
}

const UploadMissionXYZRPC = "DSS.UploadMissionXYZ"

func (d *dispatcher) UploadMissionXYZ(args *UploadMissionArgs, _ *struct{}) error {
	defer d.ep.lg.CatchAndReportCrash()

	return d.ep.UploadMission(args.ID, FrameXYZ, args.Mission)
}

type GogoArgs struct {
	ClientArgs
	NextWP int
}

const GogoRPC = "DSS.Gogo"

func (d *dispatcher) Gogo(args *GogoArgs, _ *struct{}) error {
	defer d.ep.lg.CatchAndReportCrash()

	return d.ep.Gogo(args.ID, args.NextWP)
}

type ArmTakeOffArgs struct {
	ClientArgs
	Height float64 // meters, [2,40]
}

const ArmTakeOffRPC = "DSS.ArmTakeOff"

func (d *dispatcher) ArmTakeOff(args *ArmTakeOffArgs, _ *struct{}) error {
	defer d.ep.lg.CatchAndReportCrash()

	return d.ep.ArmTakeOff(args.ID, args.Height)
}

const LandRPC = "DSS.Land"

func (d *dispatcher) Land(args *ClientArgs, _ *struct{}) error {
	defer d.ep.lg.CatchAndReportCrash()

	return d.ep.Land(args.ID)
}

const RTLRPC = "DSS.RTL"

func (d *dispatcher) RTL(args *ClientArgs, _ *struct{}) error {
	defer d.ep.lg.CatchAndReportCrash()

	return d.ep.RTL(args.ID)
}

type SetVelocityArgs struct {
	ClientArgs
	X, Y, Z float64 // body frame, m/s
	YawRate float64 // deg/s
}

const SetVelocityRPC = "DSS.SetVelocity"

func (d *dispatcher) SetVelocity(args *SetVelocityArgs, _ *struct{}) error {
	defer d.ep.lg.CatchAndReportCrash()

	return d.ep.SetVelocity(args.ID, args.X, args.Y, args.Z, args.YawRate)
}

type SetHeadingArgs struct {
	ClientArgs
	Heading float64
}

const SetHeadingRPC = "DSS.SetHeading"

func (d *dispatcher) SetHeading(args *SetHeadingArgs, _ *struct{}) error {
	defer d.ep.lg.CatchAndReportCrash()

	return d.ep.SetHeading(args.ID, args.Heading)
}

type SetAltitudeArgs struct {
	ClientArgs
	Alt float64
}

const SetAltitudeRPC = "DSS.SetAltitude"

func (d *dispatcher) SetAltitude(args *SetAltitudeArgs, _ *struct{}) error {
	defer d.ep.lg.CatchAndReportCrash()

	return d.ep.SetAltitude(args.ID, args.Alt)
}

type SetDataStreamArgs struct {
	ClientArgs
	Stream Stream
	Enable bool
}

const SetDataStreamRPC = "DSS.SetDataStream"

func (d *dispatcher) SetDataStream(args *SetDataStreamArgs, _ *struct{}) error {
	defer d.ep.lg.CatchAndReportCrash()

	return d.ep.SetDataStream(args.ID, args.Stream, args.Enable)
}

const GetUpdatesRPC = "DSS.GetUpdates"

func (d *dispatcher) GetUpdates(args *ClientArgs, updates *[]StateUpdate) error {
	defer d.ep.lg.CatchAndReportCrash()

	*updates = d.ep.GetUpdates(args.ID)
	return nil
}

const GetStateRPC = "DSS.GetState"

func (d *dispatcher) GetState(args *ClientArgs, state *StateSnapshot) error {
	defer d.ep.lg.CatchAndReportCrash()

	d.ep.touchOwner(args.ID)
	*state = d.ep.GetState()
	return nil
}

const GetIdleRPC = "DSS.GetIdle"

func (d *dispatcher) GetIdle(args *ClientArgs, idle *bool) error {
	defer d.ep.lg.CatchAndReportCrash()

	d.ep.touchOwner(args.ID)
	*idle = d.ep.Idle()
	return nil
}

const DisconnectRPC = "DSS.Disconnect"

func (d *dispatcher) Disconnect(args *ClientArgs, _ *struct{}) error {
	defer d.ep.lg.CatchAndReportCrash()

	d.ep.Disconnect(args.ID)
	return nil
}
