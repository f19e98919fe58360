package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strings"

	"github.com/klauspost/compress/zstd"

	"github.com/Bucknalla/go-flight-replay/internal/logging"
	"github.com/Bucknalla/go-flight-replay/track"
)

func main() {
	var in, out, name string
	var quiet bool

	flag.StringVar(&in, "in", "", "Track file to read (.geojson, .gpx or .kml, optionally .zst)")
	flag.StringVar(&out, "out", "-", "Output file; the extension picks GeoJSON or GPX, .zst compresses. \"-\" writes GeoJSON to stdout")
	flag.StringVar(&name, "name", "", "Flight name for the output, defaults to the input's")
	flag.BoolVar(&quiet, "quiet", false, "Suppress info messages")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s -in track.kml [-out track.geojson]\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "\nConverts recorded flight tracks into the replay's track file layout.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	if in == "" {
		flag.Usage()
		os.Exit(2)
	}

	level := "info"
	if quiet {
		level = "error"
	}
	lg := logging.New(logging.Config{Level: level})

	if err := convert(context.Background(), lg, in, out, name); err != nil {
		log.Fatalf("Conversion failed: %v", err)
	}
}

// convert reads the track at in and writes it to out in the format named
// by out's extension.
func convert(ctx context.Context, lg logging.Logger, in, out, name string) error {
	if track.FormatOf(out) == track.FormatKML {
		return fmt.Errorf("%w: KML output is not supported", track.ErrUnknownFormat)
	}
	rec, err := track.Open(in)
	if err != nil {
		return err
	}
	if rec.Geometry == nil {
		return fmt.Errorf("%w: %s", track.ErrNoTrack, in)
	}
	tr := track.Parse(ctx, lg, rec.Geometry)
	if len(tr) == 0 {
		return fmt.Errorf("%w: %s", track.ErrNoTrack, in)
	}

	meta := rec.Meta
	if name != "" {
		meta.Flight = name
	}

	var w io.Writer = os.Stdout
	if out != "-" {
		f, err := os.Create(out)
		if err != nil {
			return fmt.Errorf("failed to create output: %w", err)
		}
		defer f.Close()
		w = f
	}

	if strings.HasSuffix(out, ".zst") {
		enc, err := zstd.NewWriter(w)
		if err != nil {
			return fmt.Errorf("failed to create compressor: %w", err)
		}
		if err := write(enc, out, meta, tr); err != nil {
			enc.Close()
			return err
		}
		if err := enc.Close(); err != nil {
			return fmt.Errorf("failed to compress output: %w", err)
		}
	} else if err := write(w, out, meta, tr); err != nil {
		return err
	}

	lg.Info(ctx, "track converted",
		logging.String("in", in),
		logging.String("out", out),
		logging.String("flight", meta.Flight),
		logging.Int("points", len(tr)),
		logging.String("duration", tr.Duration().String()))
	return nil
}

func write(w io.Writer, out string, meta track.Meta, tr track.Track) error {
	switch track.FormatOf(out) {
	case track.FormatGPX:
		name := meta.Flight
		if name == "" {
			name = meta.Tail
		}
		return track.WriteGPX(w, name, tr)
	default:
		return track.WriteGeoJSON(w, meta, tr)
	}
}
