package replay

import (
	"context"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/paulmach/orb"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Bucknalla/go-flight-replay/camera"
	"github.com/Bucknalla/go-flight-replay/internal/logging"
	"github.com/Bucknalla/go-flight-replay/internal/metrics"
	"github.com/Bucknalla/go-flight-replay/subtitle"
	"github.com/Bucknalla/go-flight-replay/track"
)

type fakePlayback struct {
	pos    float64
	paused bool
}

func (p *fakePlayback) Position() float64 { return p.pos }
func (p *fakePlayback) Paused() bool      { return p.paused }

type update struct {
	id string
	st track.State
}

type recordingSink struct {
	updates []update
}

func (s *recordingSink) UpdateObject(obj *TrackedObject, st track.State, _ Layers) {
	s.updates = append(s.updates, update{obj.ID, st})
}

type cameraSink struct {
	jumps []camera.Target
	flies []camera.Target
}

func (s *cameraSink) JumpTo(t camera.Target) { s.jumps = append(s.jumps, t) }
func (s *cameraSink) FlyTo(t camera.Target)  { s.flies = append(s.flies, t) }

func testTrack(start int64) track.Track {
	return track.Track{
		{Timestamp: start, Coord: orb.Point{-77.05, 38.84}, Alt: 300, HasAlt: true},
		{Timestamp: start + 10, Coord: orb.Point{-77.04, 38.84}, Alt: 200, HasAlt: true},
		{Timestamp: start + 20, Coord: orb.Point{-77.04, 38.85}, Alt: 100, HasAlt: true},
	}
}

func newTestDriver(t *testing.T, pb *fakePlayback) (*Driver, *recordingSink, *cameraSink, *metrics.Collector) {
	t.Helper()
	sim := NewContext(SimClock{Playback: pb, EpochOffset: DefaultEpochOffset})
	cams := &cameraSink{}
	sim.Camera = camera.NewController(camera.DefaultParams(), camera.DefaultViewpoints(), cams, nil)

	require.NoError(t, sim.Register(&TrackedObject{
		ID: "N709PS", Track: testTrack(DefaultEpochOffset),
		Meta:  track.Meta{Flight: "AAL5342", Tail: "N709PS", Type: "CRJ7"},
		Model: &ModelRef{Path: "CRJ7.stl"}, RenderScale: 1.0 / 300,
	}))
	require.NoError(t, sim.Register(&TrackedObject{
		ID: "AE313D", Track: testTrack(DefaultEpochOffset + 5),
		Meta: track.Meta{Flight: "PAT25", Tail: "AE313D", Type: "UH-60"},
	}))
	require.NoError(t, sim.Register(&TrackedObject{ID: "EMPTY"}))

	col, err := metrics.New(prometheus.NewRegistry())
	require.NoError(t, err)

	entries := []subtitle.Entry{
		{ActivationTime: DefaultEpochOffset + 2, Heading: "TWR", Body: "American 5342 cleared to land"},
		{ActivationTime: DefaultEpochOffset + 12, Heading: "PAT25", Body: "traffic in sight"},
	}
	sink := &recordingSink{}
	d := NewDriver(sim,
		WithObjectSink(sink),
		WithSubtitles(subtitle.NewPresenter(entries, nil, nil, "AAL5342")),
		WithMetrics(col),
	)
	return d, sink, cams, col
}

func TestSimClock(t *testing.T) {
	pb := &fakePlayback{pos: 65}
	c := SimClock{Playback: pb, EpochOffset: DefaultEpochOffset}
	assert.Equal(t, float64(DefaultEpochOffset+65), c.Now())
	assert.Equal(t, float64(DefaultEpochOffset+1), c.At(1))
}

func TestFormatClock(t *testing.T) {
	ny, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)
	assert.Equal(t, "8:45:00 PM", FormatClock(DefaultEpochOffset, ny))
	assert.Equal(t, "1:45:07 AM", FormatClock(DefaultEpochOffset+7.4, nil))
}

func TestAdvanceToUpdatesObjectsInOrder(t *testing.T) {
	d, sink, _, _ := newTestDriver(t, &fakePlayback{})
	d.AdvanceTo(context.Background(), DefaultEpochOffset+5, metrics.TriggerEvent)

	// The empty-track object is skipped.
	require.Len(t, sink.updates, 2)
	assert.Equal(t, "N709PS", sink.updates[0].id)
	assert.Equal(t, "AE313D", sink.updates[1].id)
	assert.InDelta(t, -77.045, sink.updates[0].st.Coord.Lon(), 1e-9)
	assert.InDelta(t, 250, sink.updates[0].st.Alt, 1e-9)

	obj, ok := d.Context().Object("N709PS")
	require.True(t, ok)
	require.NotNil(t, obj.Transform)
	assert.Equal(t, "AAL5342 / N709PS @ 820 ft", obj.Label)

	heli, _ := d.Context().Object("AE313D")
	assert.Nil(t, heli.Transform, "no model configured")
	assert.NotEmpty(t, heli.Label)

	empty, _ := d.Context().Object("EMPTY")
	assert.Nil(t, empty.Last)
}

func TestAdvanceToIdempotent(t *testing.T) {
	d, sink, _, col := newTestDriver(t, &fakePlayback{})
	ctx := context.Background()

	d.AdvanceTo(ctx, DefaultEpochOffset+7.5, metrics.TriggerEvent)
	first := append([]update(nil), sink.updates...)
	obj, _ := d.Context().Object("N709PS")
	label, transform := obj.Label, *obj.Transform

	d.AdvanceTo(ctx, DefaultEpochOffset+7.5, metrics.TriggerFrame)
	assert.Equal(t, first, sink.updates[len(first):])
	assert.Equal(t, label, obj.Label)
	assert.Equal(t, transform, *obj.Transform)

	snap, err := col.Snapshot()
	require.NoError(t, err)
	assert.Equal(t, 1.0, snap["replay_subtitle_changes_total"], "same line is shown once")
}

func TestBothTriggersAgree(t *testing.T) {
	pb := &fakePlayback{pos: 8.25}
	a, sinkA, _, _ := newTestDriver(t, pb)
	b, sinkB, _, _ := newTestDriver(t, pb)
	ctx := context.Background()

	a.OnPositionChanged(ctx, 8.25)
	require.True(t, b.Frame(ctx))
	assert.Equal(t, sinkA.updates, sinkB.updates)
}

func TestFrameSkipsWhilePaused(t *testing.T) {
	pb := &fakePlayback{pos: 3, paused: true}
	d, sink, _, col := newTestDriver(t, pb)
	ctx := context.Background()

	assert.False(t, d.Frame(ctx))
	assert.Empty(t, sink.updates)

	snap, err := col.Snapshot()
	require.NoError(t, err)
	assert.Equal(t, 1.0, snap["replay_frames_skipped_total"])

	// Resuming re-derives from the clock with no saved deltas.
	pb.paused = false
	pb.pos = 12
	require.True(t, d.Frame(ctx))
	simTime, ok := d.Context().LastTime()
	require.True(t, ok)
	assert.Equal(t, float64(DefaultEpochOffset+12), simTime)
}

func TestFollowCamera(t *testing.T) {
	d, _, cams, _ := newTestDriver(t, &fakePlayback{pos: 5})
	ctx := context.Background()

	d.AdvanceTo(ctx, DefaultEpochOffset+5, metrics.TriggerFrame)
	assert.Empty(t, cams.jumps, "nothing followed")

	d.Select(ctx, "N709PS")
	require.Len(t, cams.jumps, 1, "jumps straight away")
	followed, ok := d.Context().Followed()
	require.True(t, ok)
	assert.Equal(t, "N709PS", followed)

	d.AdvanceTo(ctx, DefaultEpochOffset+6, metrics.TriggerFrame)
	require.Len(t, cams.jumps, 2)
	assert.Equal(t, 80.0, cams.jumps[1].Pitch)

	d.Select(ctx, "collision")
	_, ok = d.Context().Followed()
	assert.False(t, ok)
	assert.Len(t, cams.flies, 1)

	d.AdvanceTo(ctx, DefaultEpochOffset+7, metrics.TriggerFrame)
	assert.Len(t, cams.jumps, 2)
}

func TestContextRegister(t *testing.T) {
	sim := NewContext(SimClock{Playback: &fakePlayback{}})
	assert.ErrorIs(t, sim.Register(nil), ErrInvalidObject)
	assert.ErrorIs(t, sim.Register(&TrackedObject{}), ErrInvalidObject)
	require.NoError(t, sim.Register(&TrackedObject{ID: "a"}))
	assert.ErrorIs(t, sim.Register(&TrackedObject{ID: "a"}), ErrDuplicateObject)
	assert.Equal(t, 1, sim.Len())
	assert.True(t, sim.Has("a"))
	_, ok := sim.StateOf("b")
	assert.False(t, ok)
}

func TestTransform(t *testing.T) {
	st := track.State{Coord: orb.Point{0, 0}, Alt: 0, Heading: 90}
	tf := Transform(st, 1)
	assert.InDelta(t, 0.5, tf.Translate.X, 1e-12)
	assert.InDelta(t, 0.5, tf.Translate.Y, 1e-12)
	assert.InDelta(t, math.Pi/2, tf.RotateX, 1e-12)
	assert.InDelta(t, math.Pi/2, tf.RotateY, 1e-12)
	assert.Greater(t, tf.Scale, 0.0)
}

func TestMediaClock(t *testing.T) {
	now := time.Unix(0, 0)
	m := NewMediaClock(30)
	m.SetNow(func() time.Time { return now })

	assert.True(t, m.Paused())
	assert.Equal(t, 0.0, m.Position())

	m.Play()
	now = now.Add(2500 * time.Millisecond)
	assert.InDelta(t, 2.5, m.Position(), 1e-9)
	assert.False(t, m.Paused())

	m.Pause()
	now = now.Add(10 * time.Second)
	assert.InDelta(t, 2.5, m.Position(), 1e-9, "paused position is frozen")

	m.Play()
	now = now.Add(time.Second)
	assert.InDelta(t, 3.5, m.Position(), 1e-9, "resume has no discontinuity")

	now = now.Add(time.Minute)
	assert.Equal(t, 30.0, m.Position())
	assert.True(t, m.Ended())
	assert.True(t, m.Paused())
}

func TestMediaClockEvents(t *testing.T) {
	now := time.Unix(0, 0)
	m := NewMediaClock(0)
	m.SetNow(func() time.Time { return now })

	m.Tick()
	select {
	case <-m.Events():
		t.Fatal("no events while paused")
	default:
	}

	m.Seek(12)
	assert.Equal(t, 12.0, <-m.Events(), "seek emits while paused")

	m.Play()
	now = now.Add(time.Second)
	m.Tick()
	now = now.Add(time.Second)
	m.Tick()
	assert.Equal(t, 14.0, <-m.Events(), "stale positions are replaced")

	m.Seek(-5)
	assert.Equal(t, 0.0, <-m.Events())
}

func TestRunStopsAtDuration(t *testing.T) {
	d, sink, _, _ := newTestDriver(t, &fakePlayback{pos: 4, paused: true})
	err := d.Run(context.Background(), 5*time.Millisecond, 30*time.Millisecond, false)
	require.NoError(t, err)

	// The initial frame is drawn even though playback is paused.
	assert.Len(t, sink.updates, 2)
	assert.False(t, d.Status().Running)
}

func TestRunProcessesEvents(t *testing.T) {
	m := NewMediaClock(0)
	sim := NewContext(SimClock{Playback: m, EpochOffset: DefaultEpochOffset})
	require.NoError(t, sim.Register(&TrackedObject{ID: "N709PS", Track: testTrack(DefaultEpochOffset)}))
	sink := &recordingSink{}
	d := NewDriver(sim, WithObjectSink(sink))

	m.Seek(10)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	require.NoError(t, d.Run(ctx, time.Hour, 0, false))

	require.NotEmpty(t, sink.updates)
	last := sink.updates[len(sink.updates)-1]
	assert.Equal(t, float64(DefaultEpochOffset+10), last.st.Timestamp)
	assert.Equal(t, orb.Point{-77.04, 38.84}, last.st.Coord)
}

func TestRunStopsAtEnd(t *testing.T) {
	m := NewMediaClock(1)
	m.Seek(1)
	<-m.Events()
	sim := NewContext(SimClock{Playback: m, EpochOffset: DefaultEpochOffset})
	d := NewDriver(sim)

	done := make(chan error, 1)
	go func() { done <- d.Run(context.Background(), time.Millisecond, 0, true) }()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("driver did not stop at end of media")
	}
}

func TestRunRejectsConcurrentRun(t *testing.T) {
	d, _, _, _ := newTestDriver(t, &fakePlayback{paused: true})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- d.Run(ctx, time.Millisecond, 0, false) }()

	require.Eventually(t, func() bool { return d.running.Load() }, time.Second, time.Millisecond)
	assert.ErrorIs(t, d.Run(ctx, time.Millisecond, 0, false), ErrDriverRunning)
	cancel()
	assert.NoError(t, <-done)
}

const trackFile = `{
  "type": "FeatureCollection",
  "properties": {"type": "CRJ7", "tail": "N709PS", "flight": "AAL5342"},
  "features": [{
    "type": "Feature",
    "properties": {"timestamps": [1738201500, 1738201510]},
    "geometry": {"type": "LineString", "coordinates": [[-77.05, 38.84, 150], [-77.04, 38.85, 120]]}
  }]
}`

func TestLoadObjects(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "N709PS-track.geojson")
	require.NoError(t, os.WriteFile(good, []byte(trackFile), 0o644))
	empty := filepath.Join(dir, "N941NN-track.geojson")
	require.NoError(t, os.WriteFile(empty, []byte(`{"type":"FeatureCollection","features":[]}`), 0o644))

	specs := []ObjectSpec{
		{ID: "N709PS", Path: good, Color: "#0a84ff", Model: "CRJ7.stl", RenderScale: 1.0 / 300},
		{ID: "N765US", Path: filepath.Join(dir, "missing.geojson")},
		{ID: "N941NN", Path: empty},
	}
	objs := LoadObjects(context.Background(), logging.Noop(), specs)
	require.Len(t, objs, 2)
	assert.Equal(t, "N709PS", objs[0].ID)
	assert.Equal(t, "AAL5342", objs[0].Meta.Flight)
	require.NotNil(t, objs[0].Model)
	assert.Len(t, objs[0].Track, 2)
	assert.Equal(t, "N941NN", objs[1].ID)
	assert.Empty(t, objs[1].Track)

	sim := NewContext(SimClock{Playback: &fakePlayback{}})
	RegisterAll(context.Background(), nil, sim, append(objs, objs[0]))
	assert.Equal(t, 2, sim.Len())
}

func TestLogSinkThrottles(t *testing.T) {
	var lines int
	lg := countingLogger{n: &lines}
	s := NewLogSink(context.Background(), lg, time.Second)
	obj := &TrackedObject{ID: "N709PS"}

	for _, ts := range []float64{100, 100.2, 100.9, 101, 101.5, 99} {
		s.UpdateObject(obj, track.State{Timestamp: ts}, DefaultLayers())
	}
	// 100, 101 and the backwards seek to 99.
	assert.Equal(t, 3, lines)
}

type countingLogger struct{ n *int }

func (l countingLogger) Debug(context.Context, string, ...logging.Field) { *l.n++ }
func (l countingLogger) Info(context.Context, string, ...logging.Field)  { *l.n++ }
func (l countingLogger) Warn(context.Context, string, ...logging.Field)  { *l.n++ }
func (l countingLogger) Error(context.Context, string, ...logging.Field) { *l.n++ }
func (l countingLogger) With(...logging.Field) logging.Logger            { return l }

type logLine struct {
	msg    string
	fields map[string]any
}

type captureLogger struct{ lines *[]logLine }

func (l captureLogger) add(msg string, fields []logging.Field) {
	m := make(map[string]any, len(fields))
	for _, f := range fields {
		m[f.Key] = f.Value
	}
	*l.lines = append(*l.lines, logLine{msg, m})
}

func (l captureLogger) Debug(_ context.Context, msg string, f ...logging.Field) { l.add(msg, f) }
func (l captureLogger) Info(_ context.Context, msg string, f ...logging.Field)  { l.add(msg, f) }
func (l captureLogger) Warn(_ context.Context, msg string, f ...logging.Field)  { l.add(msg, f) }
func (l captureLogger) Error(_ context.Context, msg string, f ...logging.Field) { l.add(msg, f) }
func (l captureLogger) With(...logging.Field) logging.Logger                    { return l }

func messages(lines []logLine, msg string) []logLine {
	var out []logLine
	for _, l := range lines {
		if l.msg == msg {
			out = append(out, l)
		}
	}
	return out
}

func TestLogSinkLayers(t *testing.T) {
	var lines []logLine
	s := NewLogSink(context.Background(), captureLogger{&lines}, time.Second)
	obj := &TrackedObject{
		ID: "N709PS", Track: testTrack(DefaultEpochOffset),
		Meta:  track.Meta{Flight: "AAL5342", Tail: "N709PS"},
		Model: &ModelRef{Path: "CRJ7.stl"}, RenderScale: 1,
	}
	st, ok := obj.Update(DefaultEpochOffset + 5)
	require.True(t, ok)

	layers := Layers{Markers: true, Models: true, Tracks: true, Chart: "tac-chart"}
	s.UpdateObject(obj, st, layers)
	st.Timestamp += 2
	s.UpdateObject(obj, st, layers)

	paths := messages(lines, "track line")
	require.Len(t, paths, 1, "path logged once per object")
	assert.Equal(t, 3, paths[0].fields["points"])
	assert.Equal(t, orb.Point{-77.05, 38.84}, paths[0].fields["min"])
	assert.Equal(t, orb.Point{-77.04, 38.85}, paths[0].fields["max"])
	assert.Contains(t, paths[0].fields["geojson"], `"LineString"`)

	charts := messages(lines, "chart overlay")
	require.Len(t, charts, 1)
	assert.Equal(t, "tac-chart", charts[0].fields["chart"])

	objects := messages(lines, "object")
	require.Len(t, objects, 2)
	assert.Equal(t, "CRJ7.stl", objects[0].fields["model"])
	assert.Equal(t, "AAL5342 / N709PS @ 820 ft", objects[0].fields["label"])

	lines = nil
	st.Timestamp += 2
	s.UpdateObject(obj, st, Layers{})
	require.Len(t, messages(lines, "chart overlay"), 1)
	assert.Equal(t, "none", messages(lines, "chart overlay")[0].fields["chart"])
	objects = messages(lines, "object")
	require.Len(t, objects, 1)
	assert.NotContains(t, objects[0].fields, "model")
	assert.NotContains(t, objects[0].fields, "label")
	assert.Empty(t, messages(lines, "track line"))
}

func TestContextFlights(t *testing.T) {
	sim := NewContext(SimClock{Playback: &fakePlayback{}})
	require.NoError(t, sim.Register(&TrackedObject{ID: "N709PS", Meta: track.Meta{Flight: "AAL5342"}}))
	require.NoError(t, sim.Register(&TrackedObject{ID: "UNKNOWN"}))
	require.NoError(t, sim.Register(&TrackedObject{ID: "AE313D", Meta: track.Meta{Flight: "PAT25"}}))
	assert.Equal(t, []string{"AAL5342", "PAT25"}, sim.Flights())
}

func TestRunHighlightsRegisteredFlights(t *testing.T) {
	sim := NewContext(SimClock{Playback: &fakePlayback{pos: 5, paused: true}, EpochOffset: DefaultEpochOffset})
	var shown []subtitle.Display
	p := subtitle.NewPresenter([]subtitle.Entry{
		{ActivationTime: DefaultEpochOffset + 1, Heading: "TWR", Body: "American 5342 traffic PAT25"},
	}, subtitle.SinkFunc(func(d subtitle.Display) { shown = append(shown, d) }), nil)
	d := NewDriver(sim, WithSubtitles(p))

	// Registered after the presenter was built.
	require.NoError(t, sim.Register(&TrackedObject{
		ID: "N709PS", Track: testTrack(DefaultEpochOffset), Meta: track.Meta{Flight: "AAL5342"},
	}))
	require.NoError(t, d.Run(context.Background(), time.Hour, 10*time.Millisecond, false))

	require.Len(t, shown, 1)
	var flights []string
	for _, seg := range shown[0].Segments {
		if seg.Flight != "" {
			flights = append(flights, seg.Flight)
		}
	}
	assert.Equal(t, []string{"AAL5342"}, flights)
	assert.Equal(t, "1:45:05 AM", d.Status().Clock)
}
