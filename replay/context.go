package replay

import (
	"fmt"
	"time"

	"github.com/Bucknalla/go-flight-replay/camera"
	"github.com/Bucknalla/go-flight-replay/track"
)

// Layers are the visibility toggles passed to sinks. Hidden objects keep
// updating; sinks decide what to draw.
type Layers struct {
	Markers bool   // 2D icon and label markers
	Models  bool   // 3D models
	Tracks  bool   // recorded track lines
	Chart   string // active chart overlay, "" for none
}

// DefaultLayers shows everything except chart overlays.
func DefaultLayers() Layers {
	return Layers{Markers: true, Models: true, Tracks: true}
}

// Context is the state of one replay session: the clock, the registered
// objects in registration order, layer toggles and the camera follow
// state. It is owned by a single driver goroutine.
type Context struct {
	Clock    SimClock
	Layers   Layers
	Location *time.Location // for clock display
	Camera   *camera.Controller

	objects map[string]*TrackedObject
	order   []string

	last     float64
	advanced bool
}

// NewContext returns an empty context on clock.
func NewContext(clock SimClock) *Context {
	return &Context{
		Clock:    clock,
		Layers:   DefaultLayers(),
		Location: time.UTC,
		objects:  make(map[string]*TrackedObject),
	}
}

// Register adds obj to the update loop.
func (c *Context) Register(obj *TrackedObject) error {
	if obj == nil || obj.ID == "" {
		return ErrInvalidObject
	}
	if _, ok := c.objects[obj.ID]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateObject, obj.ID)
	}
	c.objects[obj.ID] = obj
	c.order = append(c.order, obj.ID)
	return nil
}

// Object returns the object registered as id.
func (c *Context) Object(id string) (*TrackedObject, bool) {
	o, ok := c.objects[id]
	return o, ok
}

// Objects returns the registered objects in registration order.
func (c *Context) Objects() []*TrackedObject {
	out := make([]*TrackedObject, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.objects[id])
	}
	return out
}

// Flights returns the flight numbers of the registered objects in
// registration order, skipping objects without one.
func (c *Context) Flights() []string {
	out := make([]string, 0, len(c.order))
	for _, id := range c.order {
		if f := c.objects[id].Meta.Flight; f != "" {
			out = append(out, f)
		}
	}
	return out
}

// Len returns the number of registered objects.
func (c *Context) Len() int { return len(c.order) }

// Has reports whether id is a registered object.
func (c *Context) Has(id string) bool {
	_, ok := c.objects[id]
	return ok
}

// StateOf returns the state of id at the last advanced time, computing it
// if the object has not been updated yet.
func (c *Context) StateOf(id string) (track.State, bool) {
	o, ok := c.objects[id]
	if !ok {
		return track.State{}, false
	}
	if o.Last != nil && c.advanced && o.Last.Timestamp == c.last {
		return *o.Last, true
	}
	return track.Interpolate(o.Track, c.Clock.Now())
}

// Followed returns the id of the followed object, if any.
func (c *Context) Followed() (string, bool) {
	if c.Camera == nil {
		return "", false
	}
	return c.Camera.Followed()
}

// LastTime returns the simulation time of the last update.
func (c *Context) LastTime() (float64, bool) {
	return c.last, c.advanced
}

// ClockString formats the last simulation time in the context's location.
func (c *Context) ClockString() string {
	return FormatClock(c.last, c.Location)
}
