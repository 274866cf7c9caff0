// math/frames.go
// Copyright(c) 2024-2026 covey contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

// Package math provides the coordinate frames and the small amount of
// spherical-earth geodesy the rest of the system needs: global positions
// (LLA), positions local to a fixed origin (NED), and body-relative
// positions rotated by a reference heading (XYZ).
package math

import (
	gomath "math"
)

// MetersPerDegreeLatitude is the length of one degree of latitude: a
// nautical mile is one minute of arc.
const MetersPerDegreeLatitude = 1852 * 60

// LLA is a global position: latitude and longitude in degrees, altitude in
// meters above the local reference (not AMSL).
type LLA struct {
	Lat float64 `msgpack:"lat" json:"lat"`
	Lon float64 `msgpack:"lon" json:"lon"`
	Alt float64 `msgpack:"alt" json:"alt"`
}

// NED is a position relative to a fixed origin: meters north, east, and
// down. Down is positive toward the ground, so an aircraft 10 m up has
// Down = -10.
type NED struct {
	North float64 `msgpack:"north" json:"north"`
	East  float64 `msgpack:"east" json:"east"`
	Down  float64 `msgpack:"down" json:"down"`
}

// XYZ is a body-relative position: the NED frame rotated so that +X points
// along the reference heading captured when the local origin was fixed.
// Z is down, like NED.
type XYZ struct {
	X float64 `msgpack:"x" json:"x"`
	Y float64 `msgpack:"y" json:"y"`
	Z float64 `msgpack:"z" json:"z"`
}

func Radians(deg float64) float64 { return deg / 180 * gomath.Pi }
func Degrees(rad float64) float64 { return rad / gomath.Pi * 180 }

// NormalizeHeading maps an angle in degrees to [0,360).
func NormalizeHeading(h float64) float64 {
	h = gomath.Mod(h, 360)
	if h < 0 {
		h += 360
	}
	return h
}

// HeadingDifference returns the signed minimum difference b-a in degrees,
// in [-180,180).
func HeadingDifference(b, a float64) float64 {
	return gomath.Mod(b-a+180+360, 360) - 180
}

// LLAToNED converts a global position to the local frame anchored at
// origin, using the flat-earth approximation that is plenty accurate at
// the geofence radii involved here.
func LLAToNED(p, origin LLA) NED {
	return NED{
		North: (p.Lat - origin.Lat) * MetersPerDegreeLatitude,
		East:  (p.Lon - origin.Lon) * MetersPerDegreeLatitude * gomath.Cos(Radians(origin.Lat)),
		Down:  -p.Alt,
	}
}

// NEDToLLA is the inverse of LLAToNED.
func NEDToLLA(n NED, origin LLA) LLA {
	return LLA{
		Lat: origin.Lat + n.North/MetersPerDegreeLatitude,
		Lon: origin.Lon + n.East/(MetersPerDegreeLatitude*gomath.Cos(Radians(origin.Lat))),
		Alt: -n.Down,
	}
}

// NEDToXYZ rotates a local position into the body frame given the
// reference heading in degrees.
func NEDToXYZ(n NED, headingDeg float64) XYZ {
	beta := -Radians(headingDeg)
	return XYZ{
		X: n.North*gomath.Cos(beta) - n.East*gomath.Sin(beta),
		Y: n.North*gomath.Sin(beta) + n.East*gomath.Cos(beta),
		Z: n.Down,
	}
}

// XYZToNED is the inverse of NEDToXYZ.
func XYZToNED(p XYZ, headingDeg float64) NED {
	beta := -Radians(headingDeg)
	return NED{
		North: p.X*gomath.Cos(beta) + p.Y*gomath.Sin(beta),
		East:  -p.X*gomath.Sin(beta) + p.Y*gomath.Cos(beta),
		Down:  p.Z,
	}
}

// Distance2D returns the horizontal distance in meters between two global
// positions.
func Distance2D(a, b LLA) float64 {
	n := LLAToNED(b, a)
	return gomath.Sqrt(n.North*n.North + n.East*n.East)
}

// Distance3D returns the slant distance in meters between two global
// positions.
func Distance3D(a, b LLA) float64 {
	n := LLAToNED(b, a)
	dalt := b.Alt - a.Alt
	return gomath.Sqrt(n.North*n.North + n.East*n.East + dalt*dalt)
}

// Bearing returns the bearing from a to b in degrees, [0,360).
func Bearing(a, b LLA) float64 {
	n := LLAToNED(b, a)
	return NormalizeHeading(Degrees(gomath.Atan2(n.East, n.North)))
}
