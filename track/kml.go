package track

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"
)

// ReadKML reads a gx:Track KML export (the flight tracker "Track" layout):
// a sequence of <when> RFC 3339 timestamps followed by the matching
// <gx:coord>"lon lat alt"</gx:coord> elements. Only the first gx:Track in
// the document is read; the placemark name becomes the flight label.
func ReadKML(r io.Reader) (*Recording, error) {
	dec := xml.NewDecoder(r)

	var (
		rec     = &Recording{Geometry: &Geometry{}}
		inTrack bool
		done    bool
		elem    string
	)
	for !done {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to parse KML: %w", err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			elem = t.Name.Local
			if elem == "Track" {
				inTrack = true
			}
		case xml.EndElement:
			if t.Name.Local == "Track" && inTrack {
				done = true
			}
			elem = ""
		case xml.CharData:
			text := strings.TrimSpace(string(t))
			if text == "" {
				continue
			}
			switch {
			case elem == "name" && rec.Meta.Flight == "":
				rec.Meta.Flight = text
			case inTrack && elem == "when":
				ts, err := time.Parse(time.RFC3339Nano, text)
				if err != nil {
					return nil, fmt.Errorf("invalid KML timestamp %q: %w", text, err)
				}
				rec.Geometry.Timestamps = append(rec.Geometry.Timestamps, ts.Unix())
			case inTrack && elem == "coord":
				c, err := parseKMLCoord(text)
				if err != nil {
					return nil, err
				}
				rec.Geometry.Coordinates = append(rec.Geometry.Coordinates, c)
			}
		}
	}

	if !inTrack {
		return nil, fmt.Errorf("%w: no gx:Track element in KML", ErrNoTrack)
	}
	return rec, nil
}

func parseKMLCoord(s string) ([]float64, error) {
	fields := strings.Fields(s)
	if len(fields) < 2 {
		return nil, fmt.Errorf("invalid KML coordinate %q", s)
	}
	c := make([]float64, 0, len(fields))
	for _, f := range fields {
		v, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid KML coordinate %q: %w", s, err)
		}
		c = append(c, v)
	}
	return c, nil
}
