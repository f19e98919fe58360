// Package track holds recorded flight tracks: the point model, the
// readers for recorded files, the normalizing parser and the time-based
// interpolator.
package track

import (
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// Point is one recorded sample.
type Point struct {
	Timestamp int64     // epoch seconds
	Coord     orb.Point // (lon, lat) degrees
	Alt       float64   // meters
	HasAlt    bool
}

// Track is a time-ordered sequence of points. Tracks are immutable once
// returned by Parse.
type Track []Point

// State is the derived position of a track at a query time.
type State struct {
	Timestamp float64
	Coord     orb.Point
	Alt       float64
	HasAlt    bool
	Heading   float64 // degrees, [0, 360)
}

// Meta carries the descriptive properties recorded alongside a track.
type Meta struct {
	Type   string `json:"type,omitempty"`
	Tail   string `json:"tail,omitempty"`
	Flight string `json:"flight,omitempty"`
}

// Start returns the first sample time. The track must not be empty.
func (t Track) Start() time.Time { return time.Unix(t[0].Timestamp, 0).UTC() }

// End returns the last sample time. The track must not be empty.
func (t Track) End() time.Time { return time.Unix(t[len(t)-1].Timestamp, 0).UTC() }

// Duration returns the time spanned by the track.
func (t Track) Duration() time.Duration {
	if len(t) == 0 {
		return 0
	}
	return t.End().Sub(t.Start())
}

// LineString returns the 2D path of the track.
func (t Track) LineString() orb.LineString {
	ls := make(orb.LineString, len(t))
	for i, p := range t {
		ls[i] = p.Coord
	}
	return ls
}

// Bound returns the 2D bounding box of the track.
func (t Track) Bound() orb.Bound {
	return t.LineString().Bound()
}

// Path returns the track as a GeoJSON LineString feature, which is what
// map sinks draw as the track-line layer.
func (t Track) Path(id string) *geojson.Feature {
	f := geojson.NewFeature(t.LineString())
	f.ID = id
	return f
}
