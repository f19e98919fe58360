package camera

import (
	"context"
	"sort"

	"github.com/paulmach/orb"

	"github.com/Bucknalla/go-flight-replay/internal/logging"
	"github.com/Bucknalla/go-flight-replay/track"
)

// Viewpoint is a named fixed camera placement.
type Viewpoint struct {
	Name    string    `yaml:"name" validate:"required"`
	Center  orb.Point `yaml:"center"`
	Zoom    float64   `yaml:"zoom"`
	Pitch   float64   `yaml:"pitch" validate:"gte=0,lte=90"`
	Bearing float64   `yaml:"bearing"`
}

// Target returns the camera placement of v.
func (v Viewpoint) Target() Target {
	return Target{Center: v.Center, Zoom: v.Zoom, Pitch: v.Pitch, Bearing: v.Bearing}
}

// DefaultViewpoints are the scene overview, the tower cab and the
// collision point.
func DefaultViewpoints() []Viewpoint {
	return []Viewpoint{
		{Name: "default", Center: orb.Point{-77.05, 38.84}, Zoom: 11},
		{
			Name:    "tower",
			Center:  orb.Point{-77.0395745296994, 38.8520164066407},
			Zoom:    16.747139236424818,
			Pitch:   82.4710661910424,
			Bearing: 128.7129888402858,
		},
		{
			Name:    "collision",
			Center:  orb.Point{-77.02300585244876, 38.8420350717096},
			Zoom:    16.487554696848527,
			Pitch:   83.4795460372746,
			Bearing: 108.73769153646504,
		},
	}
}

// Objects answers which ids are followable and where they are now.
type Objects interface {
	Has(id string) bool
	StateOf(id string) (track.State, bool)
}

// Controller owns the follow state: at most one followed object, or a
// fixed viewpoint.
type Controller struct {
	params     Params
	viewpoints map[string]Viewpoint
	sink       Sink
	log        logging.Logger

	followed string
}

// NewController returns a controller that drives sink.
func NewController(p Params, viewpoints []Viewpoint, sink Sink, lg logging.Logger) *Controller {
	if lg == nil {
		lg = logging.Noop()
	}
	c := &Controller{
		params:     p,
		viewpoints: make(map[string]Viewpoint, len(viewpoints)),
		sink:       sink,
		log:        lg,
	}
	for _, v := range viewpoints {
		c.viewpoints[v.Name] = v
	}
	return c
}

// Followed returns the followed object id, if any.
func (c *Controller) Followed() (string, bool) {
	return c.followed, c.followed != ""
}

// Viewpoints returns the configured viewpoint names, sorted.
func (c *Controller) Viewpoints() []string {
	names := make([]string, 0, len(c.viewpoints))
	for n := range c.viewpoints {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Select handles a camera selection. A tracked object id starts following
// it and jumps to it straight away. A viewpoint name clears the follow and
// flies to the viewpoint once. Anything else only clears the follow.
func (c *Controller) Select(ctx context.Context, name string, objs Objects) {
	if objs != nil && objs.Has(name) {
		c.followed = name
		c.log.Info(ctx, "following object", logging.String("id", name))
		if st, ok := objs.StateOf(name); ok {
			c.Track(st)
		}
		return
	}

	c.followed = ""
	v, ok := c.viewpoints[name]
	if !ok {
		c.log.Warn(ctx, "unknown camera selection", logging.String("name", name))
		return
	}
	c.log.Info(ctx, "flying to viewpoint", logging.String("name", name))
	if c.sink != nil {
		c.sink.FlyTo(v.Target())
	}
}

// Track moves the camera onto the followed object's current state. The
// driver calls it every update for the followed object only.
func (c *Controller) Track(st track.State) {
	if c.sink != nil {
		c.sink.JumpTo(Follow(st, c.params))
	}
}
