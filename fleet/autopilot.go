// fleet/autopilot.go
// Copyright(c) 2024-2026 covey contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package fleet

import (
	"context"

	"github.com/covey-uas/covey/math"
)

// Autopilot is the boundary to the flight controller. Blocking calls take
// a Context and return promptly once it is cancelled; the vehicle's own
// behavior after cancellation (holding position, continuing a climb) is
// the implementation's business.
//
// Implementations must be safe for concurrent use: state queries arrive
// from the RPC goroutines while a flight task blocks in GotoPosition or
// ReturnToLaunch.
type Autopilot interface {
	// Position reports the vehicle position with altitude relative to the
	// home point. ok is false until navigation data is valid.
	Position() (p math.LLA, ok bool)
	Heading() float64 // degrees, [0,360)
	// GimbalYaw reports the camera yaw in degrees, or an error if no
	// gimbal is fitted.
	GimbalYaw() (float64, error)
	NumSatellites() int
	// Battery reports remaining battery in percent.
	Battery() float64

	Armed() bool
	Flying() bool
	FlightMode() string

	// ArmAndTakeOff arms and climbs to the given height in meters,
	// returning once the height is reached or ctx is cancelled.
	ArmAndTakeOff(ctx context.Context, height float64) error
	// GotoPosition flies to the waypoint at the given speed in m/s,
	// pointing at heading degrees, or along the course when course is
	// true. Returns once within acceptance radius of the waypoint.
	GotoPosition(ctx context.Context, wp math.LLA, heading float64, course bool, speed float64) error
	// ReturnToLaunch runs the flight controller's native return, blocking
	// until the vehicle has landed and disarmed.
	ReturnToLaunch(ctx context.Context) error
	// Land descends and disarms at the current position.
	Land(ctx context.Context) error

	// SetVelocity commands a body-frame velocity in m/s plus a yaw rate
	// in deg/s. It takes effect immediately and persists until superseded.
	SetVelocity(x, y, z, yawRate float64) error
	SetHeading(heading float64) error
	// SetAltitude commands a climb or descent to alt meters while holding
	// horizontal position.
	SetAltitude(alt float64) error
	// Stop zeroes commanded velocities, holding position.
	Stop() error
}
