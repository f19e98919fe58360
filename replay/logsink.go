package replay

import (
	"context"
	"time"

	"github.com/Bucknalla/go-flight-replay/camera"
	"github.com/Bucknalla/go-flight-replay/internal/logging"
	"github.com/Bucknalla/go-flight-replay/subtitle"
	"github.com/Bucknalla/go-flight-replay/track"
)

// LogSink is a headless sink that writes object states, subtitles and
// camera moves as structured log lines. Object states are throttled to
// one line per object per Interval of simulation time. Layer toggles pick
// what goes into a line: the label with Markers, the model transform with
// Models, and with Tracks one "track line" per object carrying its path.
// A change of chart overlay is logged once.
type LogSink struct {
	Log      logging.Logger
	Interval float64 // seconds of simulation time

	ctx   context.Context
	last  map[string]float64
	paths map[string]bool
	chart string
}

// NewLogSink returns a log sink throttled to interval.
func NewLogSink(ctx context.Context, lg logging.Logger, interval time.Duration) *LogSink {
	if lg == nil {
		lg = logging.Noop()
	}
	return &LogSink{
		Log:      lg,
		Interval: interval.Seconds(),
		ctx:      ctx,
		last:     make(map[string]float64),
		paths:    make(map[string]bool),
	}
}

var (
	_ ObjectSink    = (*LogSink)(nil)
	_ subtitle.Sink = (*LogSink)(nil)
	_ camera.Sink   = (*LogSink)(nil)
)

func (s *LogSink) UpdateObject(obj *TrackedObject, st track.State, layers Layers) {
	if layers.Chart != s.chart {
		s.chart = layers.Chart
		chart := layers.Chart
		if chart == "" {
			chart = "none"
		}
		s.Log.Info(s.ctx, "chart overlay", logging.String("chart", chart))
	}
	if layers.Tracks && !s.paths[obj.ID] && len(obj.Track) > 0 {
		s.paths[obj.ID] = true
		s.logPath(obj)
	}

	if prev, ok := s.last[obj.ID]; ok && st.Timestamp >= prev && st.Timestamp-prev < s.Interval {
		return
	}
	s.last[obj.ID] = st.Timestamp

	fields := []logging.Field{
		logging.String("id", obj.ID),
		logging.Float("lon", st.Coord.Lon()),
		logging.Float("lat", st.Coord.Lat()),
		logging.Float("heading", st.Heading),
	}
	if st.HasAlt {
		fields = append(fields, logging.Float("alt", st.Alt))
	}
	if layers.Markers {
		fields = append(fields, logging.String("label", obj.Label))
	}
	if layers.Models && obj.Model != nil && obj.Transform != nil {
		fields = append(fields,
			logging.String("model", obj.Model.Path),
			logging.Float("model_yaw", obj.Transform.RotateY),
			logging.Float("model_scale", obj.Transform.Scale))
	}
	s.Log.Info(s.ctx, "object", fields...)
}

func (s *LogSink) logPath(obj *TrackedObject) {
	b := obj.Track.Bound()
	fields := []logging.Field{
		logging.String("id", obj.ID),
		logging.Int("points", len(obj.Track)),
		logging.Any("min", b.Min),
		logging.Any("max", b.Max),
	}
	if data, err := obj.Track.Path(obj.ID).MarshalJSON(); err == nil {
		fields = append(fields, logging.String("geojson", string(data)))
	}
	s.Log.Info(s.ctx, "track line", fields...)
}

func (s *LogSink) ShowSubtitle(d subtitle.Display) {
	s.Log.Info(s.ctx, "subtitle",
		logging.String("heading", d.Heading),
		logging.String("body", d.Body),
		logging.Any("visible", d.Visible))
}

func (s *LogSink) JumpTo(t camera.Target) {
	s.Log.Debug(s.ctx, "camera jump", targetFields(t)...)
}

func (s *LogSink) FlyTo(t camera.Target) {
	s.Log.Info(s.ctx, "camera fly", targetFields(t)...)
}

func targetFields(t camera.Target) []logging.Field {
	return []logging.Field{
		logging.Float("lon", t.Center.Lon()),
		logging.Float("lat", t.Center.Lat()),
		logging.Float("zoom", t.Zoom),
		logging.Float("pitch", t.Pitch),
		logging.Float("bearing", t.Bearing),
	}
}
