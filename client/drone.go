// client/drone.go
// Copyright(c) 2024-2026 covey contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package client

import (
	"context"

	"github.com/covey-uas/covey/fleet"
	"github.com/covey-uas/covey/log"
)

// Drone is a connection to one aircraft endpoint, bound to the caller's
// registered client id.
type Drone struct {
	conn
	clientID string
}

// DialDrone connects to an aircraft endpoint. clientID is the caller's
// manager-assigned id; ownership gating on the endpoint is keyed to it.
func DialDrone(address, clientID string, lg *log.Logger) (*Drone, error) {
	c, err := dialConn(address, lg)
	if err != nil {
		return nil, err
	}
	return &Drone{conn: c, clientID: clientID}, nil
}

func (d *Drone) args() *fleet.ClientArgs { return &fleet.ClientArgs{ID: d.clientID} }

func (d *Drone) HeartBeat() error {
	return d.callWithTimeout(fleet.HeartBeatRPC, d.args(), &struct{}{})
}

// StartHeartBeat keeps the ownership link alive until ctx is cancelled.
// Owners must run this (or command steadily) or the endpoint will treat
// them as lost.
func (d *Drone) StartHeartBeat(ctx context.Context) {
	go heartBeatLoop(ctx, d.HeartBeat, d.lg)
}

func (d *Drone) WhoControls() (fleet.Authority, error) {
	var a fleet.Authority
	err := d.callWithTimeout(fleet.WhoControlsRPC, d.args(), &a)
	return a, err
}

func (d *Drone) GetOwner() (string, error) {
	var owner string
	err := d.callWithTimeout(fleet.GetOwnerRPC, d.args(), &owner)
	return owner, err
}

func (d *Drone) SetGeofence(fence fleet.Geofence) error {
	args := &fleet.SetGeofenceArgs{ClientArgs: *d.args(), Fence: fence}
	return d.callWithTimeout(fleet.SetGeofenceRPC, args, &struct{}{})
}

func (d *Drone) SetInitPoint(ref fleet.HeadingRef) error {
	args := &fleet.SetInitPointArgs{ClientArgs: *d.args(), HeadingRef: ref}
	return d.callWithTimeout(fleet.SetInitPointRPC, args, &struct{}{})
}

func (d *Drone) ResetSRTL() error {
	return d.callWithTimeout(fleet.ResetSRTLRPC, d.args(), &struct{}{})
}

// SRTL retraces the recorded path home, hovering hoverTime seconds at
// each waypoint.
func (d *Drone) SRTL(hoverTime float64) error {
	args := &fleet.SRTLArgs{ClientArgs: *d.args(), HoverTime: hoverTime}
	return d.callWithTimeout(fleet.SRTLRPC, args, &struct{}{})
}

func (d *Drone) UploadMissionLLA(m fleet.MissionSpec) error {
	args := &fleet.UploadMissionArgs{ClientArgs: *d.args(), Mission: m}
	return d.callWithTimeout(fleet.UploadMissionLLARPC, args, &struct{}{})
}

func (d *Drone) UploadMissionNED(m fleet.MissionSpec) error {
	args := &fleet.UploadMissionArgs{ClientArgs: *d.args(), Mission: m}
	return d.callWithTimeout(fleet.UploadMissionNEDRPC, args, &struct{}{})
}

func (d *Drone) UploadMissionXYZ(m fleet.MissionSpec) error {
	args := &fleet.UploadMissionArgs{ClientArgs: *d.args(), Mission: m}
	return d.callWithTimeout(fleet.UploadMissionXYZRPC, args, &struct{}{})
}

// Gogo starts or resumes the staged mission at waypoint nextWP.
func (d *Drone) Gogo(nextWP int) error {
	args := &fleet.GogoArgs{ClientArgs: *d.args(), NextWP: nextWP}
	return d.callWithTimeout(fleet.GogoRPC, args, &struct{}{})
}

func (d *Drone) ArmTakeOff(height float64) error {
	args := &fleet.ArmTakeOffArgs{ClientArgs: *d.args(), Height: height}
	return d.callWithTimeout(fleet.ArmTakeOffRPC, args, &struct{}{})
}

func (d *Drone) Land() error {
	return d.callWithTimeout(fleet.LandRPC, d.args(), &struct{}{})
}

func (d *Drone) RTL() error {
	return d.callWithTimeout(fleet.RTLRPC, d.args(), &struct{}{})
}

// SetVelocity commands a body-frame velocity in m/s and a yaw rate in
// deg/s.
func (d *Drone) SetVelocity(x, y, z, yawRate float64) error {
	args := &fleet.SetVelocityArgs{ClientArgs: *d.args(), X: x, Y: y, Z: z, YawRate: yawRate}
	return d.callWithTimeout(fleet.SetVelocityRPC, args, &struct{}{})
}

func (d *Drone) SetHeading(heading float64) error {
	args := &fleet.SetHeadingArgs{ClientArgs: *d.args(), Heading: heading}
	return d.callWithTimeout(fleet.SetHeadingRPC, args, &struct{}{})
}

func (d *Drone) SetAltitude(alt float64) error {
	args := &fleet.SetAltitudeArgs{ClientArgs: *d.args(), Alt: alt}
	return d.callWithTimeout(fleet.SetAltitudeRPC, args, &struct{}{})
}

func (d *Drone) SetDataStream(stream fleet.Stream, enable bool) error {
	args := &fleet.SetDataStreamArgs{ClientArgs: *d.args(), Stream: stream, Enable: enable}
	return d.callWithTimeout(fleet.SetDataStreamRPC, args, &struct{}{})
}

// GetUpdates drains the enabled data streams.
func (d *Drone) GetUpdates() ([]fleet.StateUpdate, error) {
	var updates []fleet.StateUpdate
	err := d.callWithTimeout(fleet.GetUpdatesRPC, d.args(), &updates)
	return updates, err
}

func (d *Drone) GetState() (fleet.StateSnapshot, error) {
	var state fleet.StateSnapshot
	err := d.callWithTimeout(fleet.GetStateRPC, d.args(), &state)
	return state, err
}

func (d *Drone) GetIdle() (bool, error) {
	var idle bool
	err := d.callWithTimeout(fleet.GetIdleRPC, d.args(), &idle)
	return idle, err
}

func (d *Drone) Disconnect() error {
	return d.callWithTimeout(fleet.DisconnectRPC, d.args(), &struct{}{})
}
