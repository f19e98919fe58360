package replay

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/Bucknalla/go-flight-replay/internal/logging"
	"github.com/Bucknalla/go-flight-replay/internal/metrics"
	"github.com/Bucknalla/go-flight-replay/subtitle"
	"github.com/Bucknalla/go-flight-replay/track"
)

// DefaultFrameRate approximates a display refresh.
const DefaultFrameRate = time.Second / 60

// ObjectSink receives every object's state on every update.
type ObjectSink interface {
	UpdateObject(obj *TrackedObject, st track.State, layers Layers)
}

// ObjectSinks fans an update out to several sinks in order.
type ObjectSinks []ObjectSink

func (s ObjectSinks) UpdateObject(obj *TrackedObject, st track.State, layers Layers) {
	for _, sink := range s {
		sink.UpdateObject(obj, st, layers)
	}
}

// eventSource is implemented by playbacks that announce position changes.
type eventSource interface {
	Events() <-chan float64
}

// ender is implemented by playbacks with a finite length.
type ender interface {
	Ended() bool
}

// Driver keeps all sinks at the simulation time. It has two triggers, a
// position-change event and a per-frame tick, and both funnel into
// AdvanceTo so they cannot diverge.
type Driver struct {
	sim       *Context
	objects   ObjectSink
	subtitles *subtitle.Presenter
	metrics   *metrics.Collector
	log       logging.Logger

	running atomic.Bool
	updates atomic.Int64
}

// Option configures a Driver.
type Option func(*Driver)

// WithObjectSink sets where object states are sent.
func WithObjectSink(s ObjectSink) Option { return func(d *Driver) { d.objects = s } }

// WithSubtitles sets the subtitle presenter.
func WithSubtitles(p *subtitle.Presenter) Option { return func(d *Driver) { d.subtitles = p } }

// WithMetrics sets the metrics collector.
func WithMetrics(c *metrics.Collector) Option { return func(d *Driver) { d.metrics = c } }

// WithLogger sets the logger.
func WithLogger(lg logging.Logger) Option { return func(d *Driver) { d.log = lg } }

// NewDriver returns a driver over sim.
func NewDriver(sim *Context, opts ...Option) *Driver {
	d := &Driver{sim: sim, log: logging.Noop()}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Context returns the driven simulation context.
func (d *Driver) Context() *Context { return d.sim }

// AdvanceTo brings every sink to simTime. Calling it again with the same
// time repeats identical sink writes and changes nothing else.
func (d *Driver) AdvanceTo(ctx context.Context, simTime float64, trigger string) {
	start := time.Now()

	followed, following := d.sim.Followed()
	for _, obj := range d.sim.Objects() {
		st, ok := obj.Update(simTime)
		if !ok {
			continue
		}
		if d.objects != nil {
			d.objects.UpdateObject(obj, st, d.sim.Layers)
		}
		if following && obj.ID == followed {
			d.sim.Camera.Track(st)
		}
	}

	if d.subtitles != nil && d.subtitles.Update(ctx, simTime) {
		d.metrics.SubtitleChanged()
	}

	d.sim.last, d.sim.advanced = simTime, true
	d.updates.Add(1)
	d.metrics.ObserveUpdate(trigger, time.Since(start).Seconds())
}

// OnPositionChanged is the event-driven trigger.
func (d *Driver) OnPositionChanged(ctx context.Context, pos float64) {
	d.AdvanceTo(ctx, d.sim.Clock.At(pos), metrics.TriggerEvent)
}

// Frame is the continuous trigger. It does nothing while playback is
// paused and reports whether it advanced.
func (d *Driver) Frame(ctx context.Context) bool {
	if d.sim.Clock.Playback.Paused() {
		d.metrics.SkipFrame()
		return false
	}
	d.AdvanceTo(ctx, d.sim.Clock.Now(), metrics.TriggerFrame)
	return true
}

// Select changes the camera selection. A newly followed object is framed
// at once from its state at the last update.
func (d *Driver) Select(ctx context.Context, name string) {
	if d.sim.Camera == nil {
		return
	}
	d.sim.Camera.Select(ctx, name, d.sim)
}

// Updates returns the number of AdvanceTo calls so far.
func (d *Driver) Updates() int64 { return d.updates.Load() }

// Run drives the replay until ctx is done, duration elapses (if positive)
// or, when stopAtEnd is set, the media ends. Subtitle highlighting is
// synced to the flights registered when Run starts. Frame ticks and position
// events are serialized on the calling goroutine.
func (d *Driver) Run(ctx context.Context, frameRate, duration time.Duration, stopAtEnd bool) error {
	if !d.running.CompareAndSwap(false, true) {
		return ErrDriverRunning
	}
	defer d.running.Store(false)

	if frameRate <= 0 {
		frameRate = DefaultFrameRate
	}
	ticker := time.NewTicker(frameRate)
	defer ticker.Stop()

	var durationChan <-chan time.Time
	if duration > 0 {
		durationTimer := time.NewTimer(duration)
		durationChan = durationTimer.C
		defer durationTimer.Stop()
	}

	var events <-chan float64
	if src, ok := d.sim.Clock.Playback.(eventSource); ok {
		events = src.Events()
	}

	d.metrics.SetObjects(d.sim.Len())
	if d.subtitles != nil {
		d.subtitles.SetFlights(d.sim.Flights()...)
	}

	// Draw the initial frame even when starting paused.
	d.AdvanceTo(ctx, d.sim.Clock.Now(), metrics.TriggerSeek)
	d.log.Info(ctx, "replay started",
		logging.Int("objects", d.sim.Len()),
		logging.String("clock", d.sim.ClockString()))

	for {
		select {
		case <-ctx.Done():
			d.log.Info(ctx, "replay stopped", logging.String("reason", "cancelled"))
			return nil
		case pos := <-events:
			d.OnPositionChanged(ctx, pos)
		case <-ticker.C:
			d.Frame(ctx)
			if e, ok := d.sim.Clock.Playback.(ender); stopAtEnd && ok && e.Ended() {
				d.AdvanceTo(ctx, d.sim.Clock.Now(), metrics.TriggerFrame)
				d.log.Info(ctx, "replay stopped", logging.String("reason", "ended"))
				return nil
			}
		case <-durationChan:
			d.log.Info(ctx, "replay stopped", logging.String("reason", "duration"))
			return nil
		}
	}
}

// Status is a snapshot of the driver.
type Status struct {
	Running  bool
	Paused   bool
	Position float64
	SimTime  float64
	Clock    string
	Objects  int
	Followed string
	Updates  int64
}

// Status returns the current driver status. Call it from the driver
// goroutine or after Run returns.
func (d *Driver) Status() Status {
	followed, _ := d.sim.Followed()
	simTime, _ := d.sim.LastTime()
	clock := d.sim.ClockString()
	return Status{
		Running:  d.running.Load(),
		Paused:   d.sim.Clock.Playback.Paused(),
		Position: d.sim.Clock.Playback.Position(),
		SimTime:  simTime,
		Clock:    clock,
		Objects:  d.sim.Len(),
		Followed: followed,
		Updates:  d.updates.Load(),
	}
}
