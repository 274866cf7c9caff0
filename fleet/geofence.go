// fleet/geofence.go
// Copyright(c) 2024-2026 covey contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package fleet

import "github.com/covey-uas/covey/math"

// Geofence is a cylinder around the init point: waypoints must lie within
// Radius meters horizontally and between HeightLow and HeightHigh meters
// of relative altitude.
type Geofence struct {
	HeightLow  float64 `msgpack:"height_low" json:"height_low"`
	HeightHigh float64 `msgpack:"height_high" json:"height_high"`
	Radius     float64 `msgpack:"radius" json:"radius"`
}

// DefaultGeofence is in force until an owner widens or narrows it.
func DefaultGeofence() Geofence {
	return Geofence{HeightLow: 2, HeightHigh: 50, Radius: 50}
}

// Valid rejects degenerate fences rather than letting them nack every
// subsequent mission upload.
func (g Geofence) Valid() bool {
	return g.Radius > 0 && g.HeightHigh > g.HeightLow
}

// Contains reports whether a global position lies inside the fence
// anchored at origin.
func (g Geofence) Contains(p, origin math.LLA) bool {
	if p.Alt < g.HeightLow || p.Alt > g.HeightHigh {
		return false
	}
	return math.Distance2D(p, origin) <= g.Radius
}
