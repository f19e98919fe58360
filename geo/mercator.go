package geo

import (
	"math"

	"github.com/paulmach/orb"
)

// earthCircumference uses the same mean radius as MapLibre so that model
// transforms line up with the basemap.
const earthCircumference = 2 * math.Pi * 6371008.8

// MercatorCoordinate is a position in the unit Web-Mercator square
// (x, y in [0, 1], origin at the north-west corner) with z scaled to the
// same units.
type MercatorCoordinate struct {
	X, Y, Z float64
}

// Mercator projects a (lon, lat) point and altitude in meters.
func Mercator(p orb.Point, altitude float64) MercatorCoordinate {
	lat := p.Lat()
	return MercatorCoordinate{
		X: (180 + p.Lon()) / 360,
		Y: (180 - (180/math.Pi)*math.Log(math.Tan(math.Pi/4+lat*math.Pi/360))) / 360,
		Z: altitude / circumferenceAtLatitude(lat),
	}
}

// MeterInMercatorUnits returns the length of one meter at latitude lat in
// Mercator coordinate units.
func MeterInMercatorUnits(lat float64) float64 {
	return 1 / circumferenceAtLatitude(lat)
}

func circumferenceAtLatitude(lat float64) float64 {
	return earthCircumference * math.Cos(Radians(lat))
}
