package track

import (
	"encoding/json"
	"fmt"
	"io"
)

// File is the on-disk recorded track: a GeoJSON FeatureCollection whose
// first feature is a LineString with a parallel "timestamps" property.
// Flight metadata sits in a top-level "properties" member.
//
// Coordinates are decoded by hand instead of through orb/geojson because
// orb geometries are 2D and would drop the altitude.
type File struct {
	Type       string        `json:"type"`
	Properties Meta          `json:"properties"`
	Features   []FileFeature `json:"features"`
}

// FileFeature is one feature of a recorded track file.
type FileFeature struct {
	Type       string `json:"type"`
	Properties struct {
		Timestamps []int64 `json:"timestamps"`
	} `json:"properties"`
	Geometry *FileGeometry `json:"geometry"`
}

// FileGeometry is the LineString geometry of a recorded track feature.
type FileGeometry struct {
	Type        string      `json:"type"`
	Coordinates [][]float64 `json:"coordinates"`
}

// Recording is a decoded track file before normalization.
type Recording struct {
	Meta     Meta
	Geometry *Geometry // nil when the file holds no usable geometry
}

// Geometry extracts the raw geometry of the first feature, or nil when the
// file has no features or the feature has no geometry.
func (f *File) Geometry() *Geometry {
	if len(f.Features) == 0 || f.Features[0].Geometry == nil {
		return nil
	}
	ft := f.Features[0]
	return &Geometry{
		Coordinates: ft.Geometry.Coordinates,
		Timestamps:  ft.Properties.Timestamps,
	}
}

// ReadGeoJSON decodes a recorded track file. Only malformed JSON is an
// error; missing features or timestamps come back as a Recording whose
// geometry Parse will turn into an empty track.
func ReadGeoJSON(r io.Reader) (*Recording, error) {
	var f File
	if err := json.NewDecoder(r).Decode(&f); err != nil {
		return nil, fmt.Errorf("failed to decode track GeoJSON: %w", err)
	}
	return &Recording{Meta: f.Properties, Geometry: f.Geometry()}, nil
}

// WriteGeoJSON encodes tr in the recorded track file layout.
func WriteGeoJSON(w io.Writer, meta Meta, tr Track) error {
	ft := FileFeature{
		Type:     "Feature",
		Geometry: &FileGeometry{Type: "LineString", Coordinates: make([][]float64, len(tr))},
	}
	ft.Properties.Timestamps = make([]int64, len(tr))
	for i, p := range tr {
		ft.Properties.Timestamps[i] = p.Timestamp
		if p.HasAlt {
			ft.Geometry.Coordinates[i] = []float64{p.Coord.Lon(), p.Coord.Lat(), p.Alt}
		} else {
			ft.Geometry.Coordinates[i] = []float64{p.Coord.Lon(), p.Coord.Lat()}
		}
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "    ")
	return enc.Encode(File{
		Type:       "FeatureCollection",
		Properties: meta,
		Features:   []FileFeature{ft},
	})
}
