// manager/errors.go
// Copyright(c) 2024-2026 covey contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package manager

import (
	"errors"
	"strings"

	"github.com/covey-uas/covey/fleet"
	"github.com/covey-uas/covey/util"
)

var (
	ErrInvalidArgument     = errors.New("invalid argument")
	ErrUnknownClient       = errors.New("no client with that id is registered")
	ErrNotOwner            = errors.New("requester does not own this resource")
	ErrResourceBusy        = errors.New("resource is owned by another client")
	ErrStaleResource       = errors.New("resource record is stale")
	ErrNoCapableResource   = errors.New("no available aircraft has the requested capabilities")
	ErrEndpointUnreachable = errors.New("aircraft endpoint did not acknowledge")
	ErrNotAircraft         = errors.New("client is not an aircraft")
)

// errorStringToError lets the remapped sentinel errors survive the
// net/rpc string round trip, so callers can errors.Is against them.
var errorStringToError = map[string]error{
	ErrInvalidArgument.Error():     ErrInvalidArgument,
	ErrUnknownClient.Error():       ErrUnknownClient,
	ErrNotOwner.Error():            ErrNotOwner,
	ErrResourceBusy.Error():        ErrResourceBusy,
	ErrStaleResource.Error():       ErrStaleResource,
	ErrNoCapableResource.Error():   ErrNoCapableResource,
	ErrEndpointUnreachable.Error(): ErrEndpointUnreachable,
	ErrNotAircraft.Error():         ErrNotAircraft,

	fleet.ErrInvalidArgument.Error():   fleet.ErrInvalidArgument,
	fleet.ErrNotOwner.Error():          fleet.ErrNotOwner,
	fleet.ErrNotInControl.Error():      fleet.ErrNotInControl,
	fleet.ErrNotFlying.Error():         fleet.ErrNotFlying,
	fleet.ErrNotArmable.Error():        fleet.ErrNotArmable,
	fleet.ErrOutOfRange.Error():        fleet.ErrOutOfRange,
	fleet.ErrAlreadySet.Error():        fleet.ErrAlreadySet,
	fleet.ErrNotReady.Error():          fleet.ErrNotReady,
	fleet.ErrInitPointNotSet.Error():   fleet.ErrInitPointNotSet,
	fleet.ErrGeofenceViolation.Error(): fleet.ErrGeofenceViolation,
	fleet.ErrMissionMalformed.Error():  fleet.ErrMissionMalformed,
	fleet.ErrNoMission.Error():         fleet.ErrNoMission,
	fleet.ErrTaskBusy.Error():          fleet.ErrTaskBusy,
	fleet.ErrNoGimbal.Error():          fleet.ErrNoGimbal,
	fleet.ErrUnsupportedStream.Error(): fleet.ErrUnsupportedStream,

	util.ErrRPCTimeout.Error(): util.ErrRPCTimeout,
}

// RemapError restores a sentinel error from its RPC string form. Mission
// validation errors carry per-waypoint detail after the sentinel prefix,
// so those remap on prefix rather than the whole string.
func RemapError(err error) error {
	if err == nil {
		return nil
	}
	if e, ok := errorStringToError[err.Error()]; ok {
		return e
	}
	if strings.HasPrefix(err.Error(), fleet.ErrMissionMalformed.Error()) {
		return &remappedError{msg: err.Error(), sentinel: fleet.ErrMissionMalformed}
	}
	return err
}

// remappedError keeps the detailed message from the wire while remaining
// errors.Is-able against its sentinel.
type remappedError struct {
	msg      string
	sentinel error
}

func (e *remappedError) Error() string { return e.msg }
func (e *remappedError) Unwrap() error { return e.sentinel }
