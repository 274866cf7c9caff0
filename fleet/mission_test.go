// fleet/mission_test.go
// Copyright(c) 2024-2026 covey contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package fleet

import (
	"errors"
	gomath "math"
	"testing"

	"github.com/covey-uas/covey/math"
)

func capturedTransformer(t *testing.T) *Transformer {
	t.Helper()
	ap := newFakeAutopilot()
	tf := &Transformer{}
	if err := tf.Capture(ap, HeadingRefDrone); err != nil {
		t.Fatalf("capture init point: %v", err)
	}
	return tf
}

func TestValidateMissionInitPoint(t *testing.T) {
	spec := MissionSpec{"id0": {Lat: 57.7089, Lon: 11.9746, Alt: 10}}
	_, violations := ValidateMission(spec, FrameLLA, &Transformer{}, DefaultGeofence())
	if len(violations) != 1 || violations[0].Kind != ViolationInitPointNotSet {
		t.Errorf("got %v", violations)
	}
}

func TestValidateMissionNumbering(t *testing.T) {
	tf := capturedTransformer(t)

	for _, tc := range []struct {
		spec MissionSpec
		gap  int
	}{
		{MissionSpec{}, 0},
		{MissionSpec{"id1": {}}, 0},
		{MissionSpec{"id0": {Lat: 57.7089, Lon: 11.9746, Alt: 10}, "id2": {}}, 1},
	} {
		_, violations := ValidateMission(tc.spec, FrameLLA, tf, DefaultGeofence())
		if len(violations) != 1 || violations[0].Kind != ViolationMissingWaypoint || violations[0].Index != tc.gap {
			t.Errorf("%v: got %v, want missing waypoint at %d", tc.spec, violations, tc.gap)
		}
	}
}

func TestValidateMissionGeofence(t *testing.T) {
	tf := capturedTransformer(t)

	// Two geofence breaches plus a bad heading: only the geofence
	// category is reported, and both breaches at once.
	spec := MissionSpec{
		"id0": {North: 10, East: 0, Down: -10, Heading: HeadingCourse},
		"id1": {North: 500, East: 0, Down: -10, Heading: HeadingCourse}, // outside radius
		"id2": {North: 10, East: 0, Down: -100, Heading: 400},           // above ceiling
	}
	_, violations := ValidateMission(spec, FrameNED, tf, DefaultGeofence())
	if len(violations) != 2 {
		t.Fatalf("got %v", violations)
	}
	for i, want := range []int{1, 2} {
		if violations[i].Kind != ViolationGeofence || violations[i].Index != want {
			t.Errorf("violation %d: got %v", i, violations[i])
		}
	}
}

func TestValidateMissionHeading(t *testing.T) {
	tf := capturedTransformer(t)

	spec := MissionSpec{
		"id0": {North: 10, Down: -10, Heading: HeadingCourse},
		"id1": {North: 20, Down: -10, Heading: 359.9},
		"id2": {North: 30, Down: -10, Heading: 360},
	}
	_, violations := ValidateMission(spec, FrameNED, tf, DefaultGeofence())
	if len(violations) != 1 || violations[0].Kind != ViolationHeading || violations[0].Index != 2 {
		t.Errorf("got %v", violations)
	}
}

func TestValidateMissionSpeed(t *testing.T) {
	tf := capturedTransformer(t)

	spec := MissionSpec{
		"id0": {North: 10, Down: -10, Heading: HeadingCourse}, // default speed
		"id1": {North: 20, Down: -10, Heading: HeadingCourse, Speed: 5},
		"id2": {North: 30, Down: -10, Heading: HeadingCourse, Speed: 0.05},
		"id3": {North: 40, Down: -10, Heading: HeadingCourse, Speed: -1},
	}
	_, violations := ValidateMission(spec, FrameNED, tf, DefaultGeofence())
	if len(violations) != 2 {
		t.Fatalf("got %v", violations)
	}
	for i, want := range []int{2, 3} {
		if violations[i].Kind != ViolationSpeed || violations[i].Index != want {
			t.Errorf("violation %d: got %v", i, violations[i])
		}
	}
}

func TestValidateMissionAction(t *testing.T) {
	tf := capturedTransformer(t)

	spec := MissionSpec{
		"id0": {North: 10, Down: -10, Heading: HeadingCourse, Action: "take_photo"},
		"id1": {North: 20, Down: -10, Heading: HeadingCourse, Action: "land_on_moon"},
	}
	_, violations := ValidateMission(spec, FrameNED, tf, DefaultGeofence())
	if len(violations) != 1 || violations[0].Kind != ViolationAction || violations[0].Index != 1 {
		t.Errorf("got %v", violations)
	}
}

func TestValidateMissionFrames(t *testing.T) {
	ap := newFakeAutopilot()
	ap.heading = 90 // local +X is east
	tf := &Transformer{}
	if err := tf.Capture(ap, HeadingRefDrone); err != nil {
		t.Fatal(err)
	}
	origin := ap.pos

	ned := MissionSpec{"id0": {North: 20, East: 0, Down: -10, Heading: HeadingCourse}}
	m, violations := ValidateMission(ned, FrameNED, tf, DefaultGeofence())
	if violations != nil {
		t.Fatalf("NED: %v", violations)
	}
	n := math.LLAToNED(m[0].Pos, origin)
	if gomath.Abs(n.North-20) > 1e-6 || gomath.Abs(n.East) > 1e-6 || gomath.Abs(m[0].Pos.Alt-10) > 1e-6 {
		t.Errorf("NED conversion: %+v", n)
	}

	xyz := MissionSpec{
		"id0": {X: 20, Y: 0, Z: -10, Heading: HeadingCourse},
		"id1": {X: 20, Y: 0, Z: -10, Heading: 300},
	}
	m, violations = ValidateMission(xyz, FrameXYZ, tf, DefaultGeofence())
	if violations != nil {
		t.Fatalf("XYZ: %v", violations)
	}
	n = math.LLAToNED(m[0].Pos, origin)
	// +X at init heading 90 points east
	if gomath.Abs(n.North) > 1e-6 || gomath.Abs(n.East-20) > 1e-6 {
		t.Errorf("XYZ conversion: %+v", n)
	}
	// Body-frame headings rotate with the init point too.
	if m[0].Heading != HeadingCourse {
		t.Errorf("course heading rotated to %v", m[0].Heading)
	}
	if gomath.Abs(m[1].Heading-30) > 1e-6 {
		t.Errorf("heading %v, want 30", m[1].Heading)
	}
}

func TestViolationsUnwrap(t *testing.T) {
	v := Violations{{Kind: ViolationGeofence, Index: 3}}
	if !errors.Is(v, ErrMissionMalformed) {
		t.Error("violations do not unwrap to ErrMissionMalformed")
	}
}
