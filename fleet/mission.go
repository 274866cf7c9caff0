// fleet/mission.go
// Copyright(c) 2024-2026 covey contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package fleet

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/covey-uas/covey/math"
	"github.com/covey-uas/covey/util"
)

// Frame identifies the coordinate frame a mission was uploaded in.
type Frame string

const (
	FrameLLA Frame = "LLA"
	FrameNED Frame = "NED"
	FrameXYZ Frame = "XYZ"
)

// HeadingCourse in a waypoint's Heading field makes the vehicle point
// along the direction of travel instead of holding a fixed heading.
const HeadingCourse = -1

// MinWaypointSpeed is the slowest speed a waypoint may command; 0 stands
// for the endpoint's default speed and is exempt.
const MinWaypointSpeed = 0.1

// WaypointSpec is the wire form of one waypoint. Position fields are
// interpreted per the upload's Frame; the others are ignored. Speed 0
// means the endpoint's default speed.
type WaypointSpec struct {
	Lat float64 `msgpack:"lat" json:"lat"`
	Lon float64 `msgpack:"lon" json:"lon"`
	Alt float64 `msgpack:"alt" json:"alt"`

	North float64 `msgpack:"north" json:"north"`
	East  float64 `msgpack:"east" json:"east"`
	Down  float64 `msgpack:"down" json:"down"`

	X float64 `msgpack:"x" json:"x"`
	Y float64 `msgpack:"y" json:"y"`
	Z float64 `msgpack:"z" json:"z"`

	Heading float64 `msgpack:"heading" json:"heading"`
	Speed   float64 `msgpack:"speed" json:"speed"`
	Action  string  `msgpack:"action" json:"action"`
}

// MissionSpec is the wire form of a mission: waypoints keyed "id0",
// "id1", ... with contiguous numbering.
type MissionSpec map[string]WaypointSpec

// Waypoint is a validated waypoint with its position resolved to the
// global frame.
type Waypoint struct {
	Pos     math.LLA
	Heading float64 // degrees, or HeadingCourse
	Speed   float64 // m/s, always positive after validation
	Action  string  // "" for none
}

func (w Waypoint) Course() bool { return w.Heading == HeadingCourse }

// Mission is a validated flight plan, indexed by waypoint number.
type Mission []Waypoint

// supportedActions are the per-waypoint actions the endpoint can carry
// out on arrival.
var supportedActions = map[string]bool{
	"take_photo": true,
}

type ViolationKind string

const (
	ViolationInitPointNotSet ViolationKind = "init point not set"
	ViolationMissingWaypoint ViolationKind = "missing waypoint"
	ViolationGeofence        ViolationKind = "outside geofence"
	ViolationHeading         ViolationKind = "invalid heading"
	ViolationSpeed           ViolationKind = "invalid speed"
	ViolationAction          ViolationKind = "unsupported action"
)

// Violation pins a ViolationKind to the waypoint index it applies to;
// Index is -1 for mission-level violations.
type Violation struct {
	Kind  ViolationKind `msgpack:"kind" json:"kind"`
	Index int           `msgpack:"index" json:"index"`
}

func (v Violation) String() string {
	if v.Index < 0 {
		return string(v.Kind)
	}
	return fmt.Sprintf("id%d: %s", v.Index, v.Kind)
}

// Violations is the non-empty set of violations from the first validation
// category that failed.
type Violations []Violation

func (v Violations) Error() string {
	return ErrMissionMalformed.Error() + ": " +
		strings.Join(util.MapSlice(v, Violation.String), "; ")
}

func (v Violations) Unwrap() error { return ErrMissionMalformed }

// ValidateMission checks a mission spec category by category: init point,
// waypoint numbering, geofence, heading, speed, action. It stops at the
// first category that fails and reports every violation in that category,
// so the caller learns about all geofence breaches at once rather than
// one per upload attempt.
func ValidateMission(spec MissionSpec, frame Frame, tf *Transformer, fence Geofence) (Mission, Violations) {
	ip, ok := tf.InitPoint()
	if !ok {
		return nil, Violations{{Kind: ViolationInitPointNotSet, Index: -1}}
	}

	if len(spec) == 0 {
		return nil, Violations{{Kind: ViolationMissingWaypoint, Index: 0}}
	}
	for i := range len(spec) {
		if _, ok := spec["id"+strconv.Itoa(i)]; !ok {
			return nil, Violations{{Kind: ViolationMissingWaypoint, Index: i}}
		}
	}

	m := make(Mission, len(spec))
	for i := range m {
		ws := spec["id"+strconv.Itoa(i)]
		var pos math.LLA
		switch frame {
		case FrameNED:
			pos = math.NEDToLLA(math.NED{North: ws.North, East: ws.East, Down: ws.Down}, ip.Origin)
		case FrameXYZ:
			pos = math.NEDToLLA(math.XYZToNED(math.XYZ{X: ws.X, Y: ws.Y, Z: ws.Z}, ip.Heading), ip.Origin)
		default:
			pos = math.LLA{Lat: ws.Lat, Lon: ws.Lon, Alt: ws.Alt}
		}
		m[i] = Waypoint{Pos: pos, Heading: ws.Heading, Speed: ws.Speed, Action: ws.Action}
	}

	var violations Violations
	for i, wp := range m {
		if !fence.Contains(wp.Pos, ip.Origin) {
			violations = append(violations, Violation{Kind: ViolationGeofence, Index: i})
		}
	}
	if violations != nil {
		return nil, violations
	}

	for i, wp := range m {
		if wp.Heading != HeadingCourse && (wp.Heading < 0 || wp.Heading >= 360) {
			violations = append(violations, Violation{Kind: ViolationHeading, Index: i})
		}
	}
	if violations != nil {
		return nil, violations
	}

	// Body-frame headings are relative to the init-point heading, like the
	// positions.
	if frame == FrameXYZ {
		for i := range m {
			if !m[i].Course() {
				m[i].Heading = math.NormalizeHeading(m[i].Heading + ip.Heading)
			}
		}
	}

	for i, wp := range m {
		if wp.Speed != 0 && wp.Speed <= MinWaypointSpeed {
			violations = append(violations, Violation{Kind: ViolationSpeed, Index: i})
		}
	}
	if violations != nil {
		return nil, violations
	}

	for i, wp := range m {
		if wp.Action != "" && !supportedActions[wp.Action] {
			violations = append(violations, Violation{Kind: ViolationAction, Index: i})
		}
	}
	if violations != nil {
		return nil, violations
	}

	return m, nil
}
