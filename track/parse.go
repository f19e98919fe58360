package track

import (
	"context"
	"slices"

	"github.com/paulmach/orb"

	"github.com/Bucknalla/go-flight-replay/internal/logging"
)

// Geometry is the raw recorded shape of a track: coordinate tuples
// ([lon, lat] or [lon, lat, alt]) and the parallel array of epoch-second
// timestamps.
type Geometry struct {
	Coordinates [][]float64
	Timestamps  []int64
}

// Parse normalizes a recorded geometry into a Track sorted by timestamp.
//
// Parse never fails: a missing geometry or timestamp array yields an empty
// track and a warning. Coordinate and timestamp arrays of different
// lengths are paired by index up to the shorter one. A tuple with fewer
// than two values is dropped with its timestamp, so the track can be
// shorter than that. A tuple without an altitude gets altitude 0.
func Parse(ctx context.Context, lg logging.Logger, g *Geometry) Track {
	if lg == nil {
		lg = logging.Noop()
	}
	if g == nil || g.Coordinates == nil {
		lg.Warn(ctx, "no geometry found in track data")
		return Track{}
	}
	if g.Timestamps == nil {
		lg.Warn(ctx, "no timestamps found in track data")
		return Track{}
	}

	n := len(g.Coordinates)
	if len(g.Timestamps) != n {
		lg.Warn(ctx, "coordinates and timestamps mismatch",
			logging.Int("coordinates", len(g.Coordinates)),
			logging.Int("timestamps", len(g.Timestamps)))
		n = min(n, len(g.Timestamps))
	}

	tr := make(Track, 0, n)
	for i := 0; i < n; i++ {
		c := g.Coordinates[i]
		if len(c) < 2 {
			lg.Warn(ctx, "skipping short coordinate tuple", logging.Int("index", i))
			continue
		}
		p := Point{
			Timestamp: g.Timestamps[i],
			Coord:     orb.Point{c[0], c[1]},
			HasAlt:    true,
		}
		if len(c) > 2 {
			p.Alt = c[2]
		}
		tr = append(tr, p)
	}

	slices.SortStableFunc(tr, func(a, b Point) int {
		switch {
		case a.Timestamp < b.Timestamp:
			return -1
		case a.Timestamp > b.Timestamp:
			return 1
		}
		return 0
	})
	return tr
}
