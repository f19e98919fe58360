package subtitle

import (
	"context"
	"slices"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/Bucknalla/go-flight-replay/internal/logging"
)

const (
	minVisible     = time.Second
	visiblePerRune = 100 * time.Millisecond
)

// Segment is a run of subtitle text. Flight is set on runs naming a
// tracked flight so sinks can colour them.
type Segment struct {
	Text   string
	Flight string
}

// Display is what a subtitle sink is asked to show.
type Display struct {
	Heading  string
	Body     string
	Segments []Segment
	Visible  time.Duration
}

// Sink shows subtitles.
type Sink interface {
	ShowSubtitle(d Display)
}

// SinkFunc adapts a function to a Sink.
type SinkFunc func(Display)

func (f SinkFunc) ShowSubtitle(d Display) { f(d) }

// telephony maps airline ICAO prefixes to the callsign spoken on frequency.
var telephony = strings.NewReplacer(
	"AAL", "American ",
	"JIA", "Bluestreak ",
)

// Callsign returns the spoken form of a flight number, e.g. "AAL5342"
// becomes "American 5342". Unknown prefixes are returned unchanged.
func Callsign(flight string) string {
	return telephony.Replace(flight)
}

// VisibleFor returns how long body stays on screen: 100ms per character,
// at least one second.
func VisibleFor(body string) time.Duration {
	return max(minVisible, time.Duration(utf8.RuneCountInString(body))*visiblePerRune)
}

// Highlight splits body into segments, marking the first mention of each
// flight's spoken callsign.
func Highlight(body string, flights []string) []Segment {
	type match struct {
		start, end int
		flight     string
	}
	var matches []match
	for _, fl := range flights {
		cs := Callsign(fl)
		if cs == "" {
			continue
		}
		i := strings.Index(body, cs)
		if i < 0 {
			continue
		}
		m := match{start: i, end: i + len(cs), flight: fl}
		overlaps := false
		for _, o := range matches {
			if m.start < o.end && o.start < m.end {
				overlaps = true
				break
			}
		}
		if !overlaps {
			matches = append(matches, m)
		}
	}

	slices.SortFunc(matches, func(a, b match) int { return a.start - b.start })

	segs := make([]Segment, 0, 2*len(matches)+1)
	pos := 0
	for _, m := range matches {
		if m.start > pos {
			segs = append(segs, Segment{Text: body[pos:m.start]})
		}
		segs = append(segs, Segment{Text: body[m.start:m.end], Flight: m.flight})
		pos = m.end
	}
	if pos < len(body) || len(segs) == 0 {
		segs = append(segs, Segment{Text: body[pos:]})
	}
	return segs
}

// Presenter pushes the active subtitle to a sink, skipping updates when
// the shown line has not changed.
type Presenter struct {
	entries []Entry
	flights []string
	sink    Sink
	log     logging.Logger

	last    Entry
	shown   bool
	changes int
}

// NewPresenter returns a presenter over entries. flights are the flight
// numbers whose callsigns are highlighted.
func NewPresenter(entries []Entry, sink Sink, lg logging.Logger, flights ...string) *Presenter {
	if lg == nil {
		lg = logging.Noop()
	}
	return &Presenter{entries: entries, flights: flights, sink: sink, log: lg}
}

// SetFlights replaces the highlighted flights.
func (p *Presenter) SetFlights(flights ...string) {
	p.flights = flights
}

// Update selects the entry active at t and shows it if it differs from
// the last one shown. It reports whether the sink was called.
func (p *Presenter) Update(ctx context.Context, t float64) bool {
	e := Select(p.entries, t)
	if !e.Active() {
		return false
	}
	if p.shown && e.Body == p.last.Body {
		return false
	}

	d := Display{
		Heading:  e.Heading,
		Body:     e.Body,
		Segments: Highlight(e.Body, p.flights),
		Visible:  VisibleFor(e.Body),
	}
	p.last, p.shown = e, true
	p.changes++
	p.log.Debug(ctx, "subtitle changed",
		logging.String("heading", e.Heading),
		logging.Float("time", e.ActivationTime))
	if p.sink != nil {
		p.sink.ShowSubtitle(d)
	}
	return true
}

// Current returns the last entry shown, or the zero Entry.
func (p *Presenter) Current() Entry { return p.last }

// Changes returns how many times the sink has been called.
func (p *Presenter) Changes() int { return p.changes }
