package track

import (
	"github.com/paulmach/orb"

	"github.com/Bucknalla/go-flight-replay/geo"
)

// Interpolate returns the state of tr at time t (epoch seconds). The
// boolean is false only when tr is empty.
//
// Before the first sample the first position is held, after the last
// sample the last one is; both take their heading from the adjacent
// segment. Between samples longitude, latitude and altitude are linearly
// interpolated and the heading is the bearing of the enclosing segment,
// so heading changes in steps at sample boundaries.
func Interpolate(tr Track, t float64) (State, bool) {
	n := len(tr)
	if n == 0 {
		return State{}, false
	}

	first, last := tr[0], tr[n-1]
	if t <= float64(first.Timestamp) {
		st := stateAt(first, t)
		if n > 1 {
			st.Heading = geo.Bearing(first.Coord, tr[1].Coord)
		}
		return st, true
	}
	if t >= float64(last.Timestamp) {
		st := stateAt(last, t)
		if n > 1 {
			st.Heading = geo.Bearing(tr[n-2].Coord, last.Coord)
		}
		return st, true
	}

	// With duplicate timestamps the first sample in scan order wins.
	for i, p := range tr {
		if float64(p.Timestamp) == t {
			st := stateAt(p, t)
			if i > 0 && i < n-1 {
				st.Heading = geo.Bearing(tr[i-1].Coord, tr[i+1].Coord)
			}
			return st, true
		}
	}

	i := 0
	for i < n-2 && !(float64(tr[i].Timestamp) <= t && t < float64(tr[i+1].Timestamp)) {
		i++
	}
	prev, next := tr[i], tr[i+1]

	ratio := (t - float64(prev.Timestamp)) / float64(next.Timestamp-prev.Timestamp)
	st := State{
		Timestamp: t,
		Coord: orb.Point{
			geo.Lerp(prev.Coord.Lon(), next.Coord.Lon(), ratio),
			geo.Lerp(prev.Coord.Lat(), next.Coord.Lat(), ratio),
		},
		Heading: geo.Bearing(prev.Coord, next.Coord),
	}
	if prev.HasAlt && next.HasAlt {
		st.Alt = geo.Lerp(prev.Alt, next.Alt, ratio)
		st.HasAlt = true
	}
	return st, true
}

func stateAt(p Point, t float64) State {
	return State{
		Timestamp: t,
		Coord:     p.Coord,
		Alt:       p.Alt,
		HasAlt:    p.HasAlt,
	}
}
