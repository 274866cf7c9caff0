// fleet/transform.go
// Copyright(c) 2024-2026 covey contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package fleet

import (
	"sync"

	"github.com/covey-uas/covey/math"
)

// HeadingRef selects where the local frame's reference heading comes from
// when the init point is captured.
type HeadingRef string

const (
	HeadingRefDrone  HeadingRef = "drone"
	HeadingRefCamera HeadingRef = "camera"
)

// InitPoint anchors the local NED and XYZ frames: the origin position and
// the reference heading captured at the moment it was set.
type InitPoint struct {
	Origin  math.LLA `msgpack:"origin" json:"origin"`
	Heading float64  `msgpack:"heading" json:"heading"`
}

// Transformer owns the init point and the conversions that depend on it.
// The init point is set once per flight session; a second set is refused
// so that a mid-mission recapture can never silently shift every relative
// waypoint.
type Transformer struct {
	mu  sync.Mutex
	ip  InitPoint
	set bool
}

// Capture fixes the init point from the vehicle's current position and
// the selected heading reference.
func (t *Transformer) Capture(ap Autopilot, ref HeadingRef) error {
	pos, ok := ap.Position()
	if !ok {
		return ErrNotReady
	}

	var heading float64
	switch ref {
	case HeadingRefDrone:
		heading = ap.Heading()
	case HeadingRefCamera:
		var err error
		if heading, err = ap.GimbalYaw(); err != nil {
			return err
		}
	default:
		return ErrInvalidArgument
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.set {
		return ErrAlreadySet
	}
	t.ip = InitPoint{Origin: pos, Heading: math.NormalizeHeading(heading)}
	t.set = true
	return nil
}

func (t *Transformer) IsSet() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.set
}

// InitPoint returns the captured init point; ok is false before Capture.
func (t *Transformer) InitPoint() (InitPoint, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.ip, t.set
}

// NEDToGlobal converts a local position to LLA.
func (t *Transformer) NEDToGlobal(n math.NED) (math.LLA, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.set {
		return math.LLA{}, ErrInitPointNotSet
	}
	return math.NEDToLLA(n, t.ip.Origin), nil
}

// XYZToGlobal converts a body-relative position to LLA.
func (t *Transformer) XYZToGlobal(p math.XYZ) (math.LLA, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.set {
		return math.LLA{}, ErrInitPointNotSet
	}
	return math.NEDToLLA(math.XYZToNED(p, t.ip.Heading), t.ip.Origin), nil
}

// GlobalToNED converts an LLA position to the local frame.
func (t *Transformer) GlobalToNED(p math.LLA) (math.NED, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.set {
		return math.NED{}, ErrInitPointNotSet
	}
	return math.LLAToNED(p, t.ip.Origin), nil
}
