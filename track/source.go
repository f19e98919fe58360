package track

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zstd"

	"github.com/Bucknalla/go-flight-replay/internal/logging"
)

// Format identifies a track file encoding.
type Format int

const (
	FormatUnknown Format = iota
	FormatGeoJSON
	FormatGPX
	FormatKML
)

func (f Format) String() string {
	switch f {
	case FormatGeoJSON:
		return "geojson"
	case FormatGPX:
		return "gpx"
	case FormatKML:
		return "kml"
	}
	return "unknown"
}

// FormatOf guesses the encoding of path from its extension, ignoring a
// trailing ".zst".
func FormatOf(path string) Format {
	p := strings.TrimSuffix(strings.ToLower(path), ".zst")
	switch filepath.Ext(p) {
	case ".geojson", ".json":
		return FormatGeoJSON
	case ".gpx":
		return FormatGPX
	case ".kml":
		return FormatKML
	}
	return FormatUnknown
}

// Read decodes r in the given format.
func Read(r io.Reader, f Format) (*Recording, error) {
	switch f {
	case FormatGeoJSON:
		return ReadGeoJSON(r)
	case FormatGPX:
		return ReadGPX(r)
	case FormatKML:
		return ReadKML(r)
	}
	return nil, ErrUnknownFormat
}

// Open reads the track file at path. Files ending in ".zst" are
// decompressed on the fly.
func Open(path string) (*Recording, error) {
	format := FormatOf(path)
	if format == FormatUnknown {
		return nil, fmt.Errorf("%w: %s", ErrUnknownFormat, path)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open track file: %w", err)
	}
	defer f.Close()

	var r io.Reader = f
	if strings.HasSuffix(strings.ToLower(path), ".zst") {
		zr, err := zstd.NewReader(f, zstd.WithDecoderConcurrency(0))
		if err != nil {
			return nil, fmt.Errorf("failed to open zstd stream: %w", err)
		}
		defer zr.Close()
		r = zr
	}

	rec, err := Read(r, format)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return rec, nil
}

// Load opens path and normalizes its geometry. A file that cannot be read
// is an error; a file without usable geometry yields an empty track.
func Load(ctx context.Context, lg logging.Logger, path string) (Track, Meta, error) {
	if lg == nil {
		lg = logging.Noop()
	}
	rec, err := Open(path)
	if err != nil {
		return nil, Meta{}, err
	}
	tr := Parse(ctx, lg.With(logging.String("file", filepath.Base(path))), rec.Geometry)
	lg.Debug(ctx, "track loaded",
		logging.String("file", path),
		logging.String("flight", rec.Meta.Flight),
		logging.Int("points", len(tr)))
	return tr, rec.Meta, nil
}
