package track

import (
	"fmt"
	"io"
	"time"

	"github.com/tkrajina/gpxgo/gpx"
)

// ReadGPX reads the first track (or, failing that, the first route) of a
// GPX document. Points without a timestamp are dropped; a document with
// no timestamps at all yields a geometry without a timestamp array.
func ReadGPX(r io.Reader) (*Recording, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read GPX: %w", err)
	}
	doc, err := gpx.ParseBytes(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse GPX: %w", err)
	}

	var points []gpx.GPXPoint
	if len(doc.Tracks) > 0 {
		for _, seg := range doc.Tracks[0].Segments {
			points = append(points, seg.Points...)
		}
	} else if len(doc.Routes) > 0 {
		points = doc.Routes[0].Points
	}
	if len(points) == 0 {
		return nil, fmt.Errorf("%w: no track points or route points in GPX", ErrNoTrack)
	}

	g := &Geometry{Coordinates: make([][]float64, 0, len(points))}
	for _, p := range points {
		if p.Timestamp.IsZero() {
			continue
		}
		c := []float64{p.Longitude, p.Latitude}
		if p.Elevation.NotNull() {
			c = append(c, p.Elevation.Value())
		}
		g.Coordinates = append(g.Coordinates, c)
		g.Timestamps = append(g.Timestamps, p.Timestamp.Unix())
	}

	meta := Meta{Flight: doc.Name}
	if len(doc.Tracks) > 0 && doc.Tracks[0].Name != "" {
		meta.Flight = doc.Tracks[0].Name
	}
	return &Recording{Meta: meta, Geometry: g}, nil
}

// WriteGPX writes tr as a single-segment GPX 1.1 track called name.
func WriteGPX(w io.Writer, name string, tr Track) error {
	seg := gpx.GPXTrackSegment{Points: make([]gpx.GPXPoint, 0, len(tr))}
	for _, p := range tr {
		pt := gpx.GPXPoint{
			Point: gpx.Point{
				Latitude:  p.Coord.Lat(),
				Longitude: p.Coord.Lon(),
			},
			Timestamp: time.Unix(p.Timestamp, 0).UTC(),
		}
		if p.HasAlt {
			pt.Elevation = *gpx.NewNullableFloat64(p.Alt)
		}
		seg.Points = append(seg.Points, pt)
	}

	doc := &gpx.GPX{
		Version: "1.1",
		Creator: "go-flight-replay",
		Tracks: []gpx.GPXTrack{{
			Name:     name,
			Segments: []gpx.GPXTrackSegment{seg},
		}},
	}
	data, err := doc.ToXml(gpx.ToXmlParams{Version: "1.1", Indent: true})
	if err != nil {
		return fmt.Errorf("failed to encode GPX: %w", err)
	}
	_, err = w.Write(data)
	return err
}
