// Package camera computes chase-camera targets for a followed aircraft and
// the fixed named viewpoints of the scene.
package camera

import (
	"math"

	"github.com/paulmach/orb"

	"github.com/Bucknalla/go-flight-replay/geo"
	"github.com/Bucknalla/go-flight-replay/track"
)

// Target is a camera placement request.
type Target struct {
	Center  orb.Point
	Zoom    float64
	Pitch   float64
	Bearing float64
}

// Sink moves the camera. JumpTo is immediate and used every frame while
// following; FlyTo is a one-shot animated move to a viewpoint.
type Sink interface {
	JumpTo(t Target)
	FlyTo(t Target)
}

// Params tunes the chase camera.
type Params struct {
	// LookAhead is the forward offset in metres per metre of altitude.
	LookAhead float64 `yaml:"look_ahead" validate:"gte=0"`
	Pitch     float64 `yaml:"pitch" validate:"gte=0,lte=90"`
	BaseZoom  float64 `yaml:"base_zoom" validate:"gt=0"`
	MaxZoom   float64 `yaml:"max_zoom" validate:"gt=0"`
}

// DefaultParams are tuned for an airliner on short final.
func DefaultParams() Params {
	return Params{
		LookAhead: 5.67,
		Pitch:     80,
		BaseZoom:  23.4,
		MaxZoom:   22,
	}
}

// Follow returns the chase-camera target for st: centred on a point ahead
// of the aircraft along its heading, looking down the heading, zooming out
// as altitude grows.
//
// Altitude is floored at 1 m so log2 stays finite, which puts the centre
// LookAhead meters ahead of an aircraft on the ground rather than on it.
// Zoom is clamped to [0, MaxZoom], so every altitude below
// 2^(BaseZoom-MaxZoom) m (about 2.6 m with the defaults) gets MaxZoom.
func Follow(st track.State, p Params) Target {
	alt := max(st.Alt, 1)
	return Target{
		Center:  geo.Destination(st.Coord, alt*p.LookAhead, st.Heading),
		Zoom:    geo.Clamp(p.BaseZoom-math.Log2(alt), 0, p.MaxZoom),
		Pitch:   p.Pitch,
		Bearing: st.Heading,
	}
}
