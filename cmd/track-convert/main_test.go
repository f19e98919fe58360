package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Bucknalla/go-flight-replay/internal/logging"
	"github.com/Bucknalla/go-flight-replay/track"
)

const kmlFile = `<?xml version="1.0" encoding="UTF-8"?>
<kml xmlns="http://www.opengis.net/kml/2.2" xmlns:gx="http://www.google.com/kml/ext/2.2">
<Document>
  <name>AAL5342</name>
  <Placemark>
    <gx:Track>
      <when>2025-01-30T01:45:00Z</when>
      <when>2025-01-30T01:45:10Z</when>
      <gx:coord>-77.04 38.85 120</gx:coord>
      <gx:coord>-77.05 38.84 150</gx:coord>
    </gx:Track>
  </Placemark>
</Document>
</kml>`

func writeKML(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "AAL5342.kml")
	require.NoError(t, os.WriteFile(path, []byte(kmlFile), 0o644))
	return path
}

func TestConvert(t *testing.T) {
	in := writeKML(t)
	ctx := context.Background()

	for _, out := range []string{"out.geojson", "out.gpx", "out.geojson.zst", "out.gpx.zst"} {
		t.Run(out, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), out)
			require.NoError(t, convert(ctx, logging.Noop(), in, path, "N709PS"))

			tr, meta, err := track.Load(ctx, logging.Noop(), path)
			require.NoError(t, err)
			require.Len(t, tr, 2)
			assert.Equal(t, int64(1738201500), tr[0].Timestamp)
			assert.Equal(t, int64(1738201510), tr[1].Timestamp)
			assert.InDelta(t, 150.0, tr[1].Alt, 1e-9)
			assert.Equal(t, "N709PS", meta.Flight)
		})
	}
}

func TestConvertErrors(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	err := convert(ctx, logging.Noop(), writeKML(t), filepath.Join(dir, "out.kml"), "")
	assert.ErrorIs(t, err, track.ErrUnknownFormat)

	err = convert(ctx, logging.Noop(), filepath.Join(dir, "missing.gpx"), filepath.Join(dir, "out.gpx"), "")
	assert.Error(t, err)

	err = convert(ctx, logging.Noop(), filepath.Join(dir, "track.csv"), filepath.Join(dir, "out.gpx"), "")
	assert.ErrorIs(t, err, track.ErrUnknownFormat)
}
