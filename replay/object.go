package replay

import (
	"fmt"
	"math"

	"github.com/Bucknalla/go-flight-replay/geo"
	"github.com/Bucknalla/go-flight-replay/track"
)

// ModelRef points at the 3D model drawn for an object.
type ModelRef struct {
	Path  string
	Color string
}

// ModelTransform places a 3D model in Mercator space.
type ModelTransform struct {
	Translate geo.MercatorCoordinate
	RotateX   float64 // radians
	RotateY   float64 // radians
	RotateZ   float64 // radians
	Scale     float64
}

// TrackedObject is one replayed aircraft. Identity, track and descriptive
// fields are fixed at registration; Last, Transform and Label are
// re-derived on every update.
type TrackedObject struct {
	ID          string
	Track       track.Track
	Meta        track.Meta
	Color       string
	RenderScale float64
	// Model is nil when no 3D representation is configured.
	Model *ModelRef

	Last      *track.State
	Transform *ModelTransform
	Label     string
}

// Update re-derives the object's per-frame fields at simTime. It returns
// false, leaving the object untouched, when the track is empty.
func (o *TrackedObject) Update(simTime float64) (track.State, bool) {
	st, ok := track.Interpolate(o.Track, simTime)
	if !ok {
		return track.State{}, false
	}
	o.Last = &st
	o.Label = Label(o.Meta, st)
	if o.Model != nil {
		t := Transform(st, o.RenderScale)
		o.Transform = &t
	}
	return st, true
}

// Transform returns the model transform for st: the model is stood up
// with a quarter turn about X and yawed to the heading about Y.
func Transform(st track.State, renderScale float64) ModelTransform {
	merc := geo.Mercator(st.Coord, st.Alt)
	return ModelTransform{
		Translate: merc,
		RotateX:   math.Pi / 2,
		RotateY:   geo.Radians(180 - st.Heading),
		Scale:     geo.MeterInMercatorUnits(st.Coord.Lat()) * renderScale * 100,
	}
}

// Label is the marker text of an object, e.g. "AAL5342 / N709PS @ 400 ft".
func Label(m track.Meta, st track.State) string {
	return fmt.Sprintf("%s / %s @ %d ft", m.Flight, m.Tail, int(math.Round(st.Alt*geo.FeetPerMeter)))
}
