package nmea

import (
	"fmt"
	"math"
	"os"

	"github.com/tkrajina/gpxgo/gpx"

	"github.com/Bucknalla/go-flight-replay/replay"
	"github.com/Bucknalla/go-flight-replay/track"
)

// GPXRecorder records one object's replayed positions, once per second of
// simulation time, and writes them as a GPX track on Close.
type GPXRecorder struct {
	filename string
	id       string
	doc      *gpx.GPX

	prevSec int64
	have    bool
}

var _ replay.ObjectSink = (*GPXRecorder)(nil)

// NewGPXRecorder creates filename and records object id into it.
func NewGPXRecorder(filename, id string) (*GPXRecorder, error) {
	// Fail early on an unwritable path rather than at shutdown.
	f, err := os.Create(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to create GPX file %s: %w", filename, err)
	}
	f.Close()

	return &GPXRecorder{
		filename: filename,
		id:       id,
		doc: &gpx.GPX{
			Version: "1.1",
			Creator: "go-flight-replay",
			Tracks: []gpx.GPXTrack{{
				Name:     id,
				Segments: []gpx.GPXTrackSegment{{}},
			}},
		},
	}, nil
}

func (r *GPXRecorder) UpdateObject(obj *replay.TrackedObject, st track.State, _ replay.Layers) {
	if obj.ID != r.id {
		return
	}
	sec := int64(math.Floor(st.Timestamp))
	if r.have && sec <= r.prevSec {
		return
	}
	r.prevSec, r.have = sec, true

	f := FixFromState(st)
	p := gpx.GPXPoint{
		Point:     gpx.Point{Latitude: f.Lat, Longitude: f.Lon},
		Timestamp: f.Time,
	}
	if st.HasAlt {
		p.Elevation = *gpx.NewNullableFloat64(st.Alt)
	}
	seg := &r.doc.Tracks[0].Segments[0]
	seg.Points = append(seg.Points, p)
}

// Points returns the number of recorded points.
func (r *GPXRecorder) Points() int {
	return len(r.doc.Tracks[0].Segments[0].Points)
}

// Close writes the recorded track to the file.
func (r *GPXRecorder) Close() error {
	data, err := r.doc.ToXml(gpx.ToXmlParams{Version: "1.1", Indent: true})
	if err != nil {
		return fmt.Errorf("failed to encode GPX data: %w", err)
	}
	if err := os.WriteFile(r.filename, data, 0o644); err != nil {
		return fmt.Errorf("failed to write GPX file %s: %w", r.filename, err)
	}
	return nil
}
