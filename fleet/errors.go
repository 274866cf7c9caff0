// fleet/errors.go
// Copyright(c) 2024-2026 covey contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package fleet

import "errors"

var (
	ErrInvalidArgument   = errors.New("invalid argument")
	ErrNotOwner          = errors.New("requester does not own this aircraft")
	ErrNotInControl      = errors.New("application is not in controls")
	ErrNotFlying         = errors.New("aircraft is not flying")
	ErrNotArmable        = errors.New("aircraft is not ready to arm")
	ErrOutOfRange        = errors.New("value out of allowed range")
	ErrAlreadySet        = errors.New("init point has already been set")
	ErrNotReady          = errors.New("navigation data not yet valid")
	ErrInitPointNotSet   = errors.New("init point has not been set")
	ErrGeofenceViolation = errors.New("waypoint violates the geofence")
	ErrMissionMalformed  = errors.New("mission is malformed")
	ErrNoMission         = errors.New("no mission has been uploaded")
	ErrTaskBusy          = errors.New("a higher priority task is running")
	ErrNoGimbal          = errors.New("no gimbal heading available")
	ErrUnsupportedStream = errors.New("unsupported data stream")
)
