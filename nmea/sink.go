package nmea

import (
	"context"
	"fmt"
	"io"
	"math"
	"strings"
	"time"

	"github.com/paulmach/orb"
	"go.bug.st/serial"

	"github.com/Bucknalla/go-flight-replay/geo"
	"github.com/Bucknalla/go-flight-replay/internal/logging"
	"github.com/Bucknalla/go-flight-replay/replay"
	"github.com/Bucknalla/go-flight-replay/track"
)

// DefaultSatellites is the satellite count reported in GGA and GSA.
const DefaultSatellites = 8

// OpenSerial opens a serial port for NMEA output at 8N1.
func OpenSerial(port string, baud int) (serial.Port, error) {
	mode := &serial.Mode{
		BaudRate: baud,
		Parity:   serial.NoParity,
		DataBits: 8,
		StopBits: serial.OneStopBit,
	}
	p, err := serial.Open(port, mode)
	if err != nil {
		return nil, fmt.Errorf("failed to open serial port %s: %w", port, err)
	}
	return p, nil
}

// Sink writes the followed object's position as NMEA sentences, at most
// once per second of simulation time. Ground speed is derived from the
// previous fix.
type Sink struct {
	w          io.Writer
	id         string
	satellites int
	log        logging.Logger
	ctx        context.Context

	prev    Fix
	prevSec int64
	have    bool
	written int
	failed  bool
}

var _ replay.ObjectSink = (*Sink)(nil)

// NewSink returns a sink writing the object id to w.
func NewSink(ctx context.Context, w io.Writer, id string, lg logging.Logger) *Sink {
	if lg == nil {
		lg = logging.Noop()
	}
	return &Sink{w: w, id: id, satellites: DefaultSatellites, log: lg, ctx: ctx}
}

// Sentences returns how many sentence groups have been written.
func (s *Sink) Sentences() int { return s.written }

func (s *Sink) UpdateObject(obj *replay.TrackedObject, st track.State, _ replay.Layers) {
	if obj.ID != s.id {
		return
	}
	sec := int64(math.Floor(st.Timestamp))
	if s.have && sec == s.prevSec {
		return
	}

	f := FixFromState(st)
	if s.have {
		if dt := st.Timestamp - s.prev.timestamp(); dt > 0 {
			d := geo.Distance(orbPoint(s.prev), orbPoint(f))
			f.Speed = d / dt * knotsPerMeterPerSecond
		}
	}
	s.prev, s.prevSec, s.have = f, sec, true

	if _, err := io.WriteString(s.w, Group(f, s.satellites)); err != nil {
		if !s.failed {
			s.log.Error(s.ctx, "failed to write NMEA", logging.String("id", s.id), logging.Err(err))
		}
		s.failed = true
		return
	}
	s.failed = false
	s.written++
}

// Group returns the sentences written for one fix.
func Group(f Fix, satellites int) string {
	var b strings.Builder
	b.WriteString(GGA(f, satellites))
	b.WriteString(RMC(f))
	b.WriteString(GLL(f))
	b.WriteString(VTG(f))
	if f.Valid {
		b.WriteString(GSA(satellites))
	}
	b.WriteString(ZDA(f.Time))
	return b.String()
}

// FixFromState converts an interpolated state to a fix. Speed is left at
// zero.
func FixFromState(st track.State) Fix {
	sec, frac := math.Modf(st.Timestamp)
	f := Fix{
		Time:   time.Unix(int64(sec), int64(frac*1e9)).UTC(),
		Lat:    st.Coord.Lat(),
		Lon:    st.Coord.Lon(),
		Course: st.Heading,
		Valid:  true,
	}
	if st.HasAlt {
		f.Alt = st.Alt
	}
	return f
}

func (f Fix) timestamp() float64 {
	return float64(f.Time.UnixNano()) / 1e9
}

func orbPoint(f Fix) orb.Point {
	return orb.Point{f.Lon, f.Lat}
}
