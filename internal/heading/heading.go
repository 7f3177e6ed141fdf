// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package heading

import (
	"math"
)

// FromField computes the magnetic heading in degrees [0, 360) of a level
// sensor from the horizontal field components, in host axes (x forward,
// y right, z down).
//
//	heading = atan2(-y, x)
func FromField(x, y float64) float64 {
	return normalize(math.Atan2(-y, x) * 180.0 / math.Pi)
}

// TiltCompensated projects the field onto the horizontal plane before
// computing the heading. roll and pitch are in degrees.
func TiltCompensated(x, y, z, rollDeg, pitchDeg float64) float64 {
	roll := rollDeg * math.Pi / 180.0
	pitch := pitchDeg * math.Pi / 180.0

	xh := x*math.Cos(pitch) + y*math.Sin(roll)*math.Sin(pitch) + z*math.Cos(roll)*math.Sin(pitch)
	yh := y*math.Cos(roll) - z*math.Sin(roll)

	return FromField(xh, yh)
}

var cardinals = [...]string{"N", "NE", "E", "SE", "S", "SW", "W", "NW"}

// Cardinal returns the 8-point compass name for a heading in degrees.
func Cardinal(deg float64) string {
	i := int(math.Floor(normalize(deg)/45.0+0.5)) % len(cardinals)
	return cardinals[i]
}

func normalize(deg float64) float64 {
	deg = math.Mod(deg, 360)
	if deg < 0 {
		deg += 360
	}
	return deg
}
