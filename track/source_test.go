package track

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/klauspost/compress/zstd"
	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Bucknalla/go-flight-replay/internal/logging"
)

const sampleKML = `<?xml version="1.0" encoding="UTF-8"?>
<kml xmlns="http://www.opengis.net/kml/2.2" xmlns:gx="http://www.google.com/kml/ext/2.2">
<Document>
  <name>N709PS</name>
  <Placemark>
    <name>Track</name>
    <gx:Track>
      <when>2025-01-30T01:45:00Z</when>
      <when>2025-01-30T01:45:04.500Z</when>
      <gx:coord>-77.05 38.84 150</gx:coord>
      <gx:coord>-77.04 38.85 120</gx:coord>
    </gx:Track>
  </Placemark>
</Document>
</kml>`

const sampleGPX = `<?xml version="1.0" encoding="UTF-8"?>
<gpx version="1.1" creator="test" xmlns="http://www.topografix.com/GPX/1/1">
  <trk>
    <name>PAT25</name>
    <trkseg>
      <trkpt lat="38.85" lon="-77.04"><ele>90</ele><time>2025-01-30T01:45:10Z</time></trkpt>
      <trkpt lat="38.86" lon="-77.03"><time>2025-01-30T01:45:20Z</time></trkpt>
      <trkpt lat="38.87" lon="-77.02"></trkpt>
    </trkseg>
  </trk>
</gpx>`

func TestFormatOf(t *testing.T) {
	tests := map[string]Format{
		"N709PS-track.geojson":     FormatGeoJSON,
		"N709PS-track.json":        FormatGeoJSON,
		"N709PS-track.geojson.zst": FormatGeoJSON,
		"flight.GPX":               FormatGPX,
		"flight.kml.zst":           FormatKML,
		"flight.csv":               FormatUnknown,
	}
	for path, want := range tests {
		assert.Equal(t, want, FormatOf(path), path)
	}
}

func TestReadKML(t *testing.T) {
	rec, err := ReadKML(strings.NewReader(sampleKML))
	require.NoError(t, err)
	assert.Equal(t, "N709PS", rec.Meta.Flight)
	assert.Equal(t, []int64{1738201500, 1738201504}, rec.Geometry.Timestamps)
	assert.Equal(t, [][]float64{{-77.05, 38.84, 150}, {-77.04, 38.85, 120}}, rec.Geometry.Coordinates)
}

func TestReadKMLWithoutTrack(t *testing.T) {
	_, err := ReadKML(strings.NewReader(`<kml><Document><name>x</name></Document></kml>`))
	assert.ErrorIs(t, err, ErrNoTrack)
}

func TestReadKMLBadCoord(t *testing.T) {
	doc := strings.Replace(sampleKML, "-77.05 38.84 150", "west north", 1)
	_, err := ReadKML(strings.NewReader(doc))
	assert.Error(t, err)
}

func TestReadGPX(t *testing.T) {
	rec, err := ReadGPX(strings.NewReader(sampleGPX))
	require.NoError(t, err)
	assert.Equal(t, "PAT25", rec.Meta.Flight)

	// The untimed third point is dropped.
	require.Len(t, rec.Geometry.Coordinates, 2)
	assert.Equal(t, []float64{-77.04, 38.85, 90}, rec.Geometry.Coordinates[0])
	assert.Equal(t, []float64{-77.03, 38.86}, rec.Geometry.Coordinates[1])
	assert.Equal(t, []int64{1738201510, 1738201520}, rec.Geometry.Timestamps)
}

func TestGPXRoundTrip(t *testing.T) {
	tr := Track{pt(1738201500, -77.05, 38.84, 150), pt(1738201504, -77.04, 38.85, 120)}

	var buf bytes.Buffer
	require.NoError(t, WriteGPX(&buf, "N709PS", tr))

	rec, err := ReadGPX(&buf)
	require.NoError(t, err)
	assert.Equal(t, "N709PS", rec.Meta.Flight)

	got := Parse(context.Background(), logging.Noop(), rec.Geometry)
	require.Len(t, got, 2)
	for i := range tr {
		assert.Equal(t, tr[i].Timestamp, got[i].Timestamp)
		assert.InDelta(t, tr[i].Coord.Lon(), got[i].Coord.Lon(), 1e-9)
		assert.InDelta(t, tr[i].Coord.Lat(), got[i].Coord.Lat(), 1e-9)
		assert.InDelta(t, tr[i].Alt, got[i].Alt, 1e-9)
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "N709PS-track.geojson")
	require.NoError(t, os.WriteFile(path, []byte(sampleGeoJSON), 0o644))

	tr, meta, err := Load(context.Background(), logging.Noop(), path)
	require.NoError(t, err)
	assert.Equal(t, "N709PS", meta.Tail)
	assert.Len(t, tr, 2)
}

func TestLoadCompressed(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "N709PS-track.kml.zst")

	enc, err := zstd.NewWriter(nil)
	require.NoError(t, err)
	data := enc.EncodeAll([]byte(sampleKML), nil)
	require.NoError(t, enc.Close())
	require.NoError(t, os.WriteFile(path, data, 0o644))

	tr, _, err := Load(context.Background(), nil, path)
	require.NoError(t, err)
	require.Len(t, tr, 2)
	assert.Equal(t, orb.Point{-77.05, 38.84}, tr[0].Coord)
}

func TestLoadErrors(t *testing.T) {
	dir := t.TempDir()

	_, _, err := Load(context.Background(), nil, filepath.Join(dir, "track.csv"))
	assert.ErrorIs(t, err, ErrUnknownFormat)

	_, _, err = Load(context.Background(), nil, filepath.Join(dir, "missing.geojson"))
	assert.Error(t, err)
}

func TestTrackHelpers(t *testing.T) {
	tr := Track{pt(100, 0, 0, 0), pt(160, 2, 1, 0)}
	assert.Equal(t, int64(60), int64(tr.Duration().Seconds()))
	assert.Equal(t, orb.Bound{Min: orb.Point{0, 0}, Max: orb.Point{2, 1}}, tr.Bound())

	f := tr.Path("N709PS")
	assert.Equal(t, "N709PS", f.ID)
	assert.Equal(t, orb.LineString{{0, 0}, {2, 1}}, f.Geometry)
	assert.Zero(t, Track{}.Duration())
}
