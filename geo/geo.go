// Package geo holds the spherical-earth helpers used by the replay engine.
// Points are orb.Points, i.e. (longitude, latitude) in degrees.
package geo

import (
	"math"

	"github.com/paulmach/orb"
	orbgeo "github.com/paulmach/orb/geo"
	"golang.org/x/exp/constraints"
)

// FeetPerMeter matches the conversion used on object labels.
const FeetPerMeter = 3.28

// Bearing returns the initial great-circle bearing from one point to
// another in degrees, normalized to [0, 360). Identical points give 0.
func Bearing(from, to orb.Point) float64 {
	return NormalizeHeading(orbgeo.Bearing(from, to))
}

// Destination projects p along bearing (degrees) for distance meters and
// returns the resulting point with longitude wrapped to [-180, 180].
func Destination(p orb.Point, distance, bearing float64) orb.Point {
	if distance == 0 {
		return p
	}
	d := orbgeo.PointAtBearingAndDistance(p, bearing, distance)

	lon := d.Lon()
	for lon > 180 {
		lon -= 360
	}
	for lon < -180 {
		lon += 360
	}
	return orb.Point{lon, d.Lat()}
}

// Distance returns the haversine distance between two points in meters.
func Distance(a, b orb.Point) float64 {
	return orbgeo.DistanceHaversine(a, b)
}

// NormalizeHeading maps any angle in degrees to [0, 360).
func NormalizeHeading(h float64) float64 {
	h = math.Mod(h, 360)
	if h < 0 {
		h += 360
	}
	// -1e-15 + 360 rounds to 360.
	if h >= 360 {
		h = 0
	}
	return h
}

// Lerp linearly interpolates between a and b.
func Lerp[F constraints.Float](a, b, ratio F) F {
	return a + ratio*(b-a)
}

// Clamp limits x to [low, high].
func Clamp[T constraints.Ordered](x, low, high T) T {
	if x < low {
		return low
	}
	if x > high {
		return high
	}
	return x
}

// Radians converts degrees to radians.
func Radians(deg float64) float64 {
	return deg * math.Pi / 180
}
