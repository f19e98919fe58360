// Package replay drives tracked objects and the transcript along the
// audio timeline: a playback clock, the simulation context and the frame
// driver that keeps every sink at the current simulation time.
package replay

import (
	"fmt"
	"math"
	"os"
	"sync"
	"time"

	"github.com/tosone/minimp3"
)

// DefaultEpochOffset is the simulation time of audio position zero:
// 2025-01-30 01:45:00 UTC.
const DefaultEpochOffset = 1738201500

// eventInterval paces position events the way media elements pace
// timeupdate.
const eventInterval = 250 * time.Millisecond

// Playback is the audio transport as seen by the driver.
type Playback interface {
	// Position is the playback position in seconds.
	Position() float64
	Paused() bool
}

// SimClock maps playback position to simulation time.
type SimClock struct {
	Playback    Playback
	EpochOffset float64
}

// Now returns the current simulation time in epoch seconds.
func (c SimClock) Now() float64 {
	return c.At(c.Playback.Position())
}

// At returns the simulation time of playback position pos.
func (c SimClock) At(pos float64) float64 {
	return pos + c.EpochOffset
}

// FormatClock renders a simulation time as a wall clock in loc, like
// "8:45:07 PM".
func FormatClock(simTime float64, loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}
	sec, frac := math.Modf(simTime)
	return time.Unix(int64(sec), int64(frac*1e9)).In(loc).Format("3:04:05 PM")
}

// MediaClock is a headless audio transport. Position advances with the
// wall clock while playing and is clamped to the media duration when one
// is known. Position events are delivered on Events while playing, and
// once for every Seek.
type MediaClock struct {
	mu       sync.Mutex
	now      func() time.Time
	duration float64

	base      float64 // position at startedAt
	startedAt time.Time
	playing   bool

	events chan float64
}

// NewMediaClock returns a paused clock at position zero. A zero duration
// means unbounded.
func NewMediaClock(duration float64) *MediaClock {
	return &MediaClock{
		now:      time.Now,
		duration: duration,
		events:   make(chan float64, 1),
	}
}

// OpenMP3 returns a paused clock whose duration is that of the MP3 file
// at path.
func OpenMP3(path string) (*MediaClock, error) {
	d, err := MP3Duration(path)
	if err != nil {
		return nil, err
	}
	return NewMediaClock(d), nil
}

// MP3Duration decodes the MP3 file at path and returns its length in
// seconds.
func MP3Duration(path string) (float64, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("failed to read audio: %w", err)
	}
	dec, pcm, err := minimp3.DecodeFull(data)
	if err != nil {
		return 0, fmt.Errorf("%s: unable to decode mp3: %w", path, err)
	}
	if dec.SampleRate == 0 || dec.Channels == 0 {
		return 0, fmt.Errorf("%s: no audio frames", path)
	}
	// 16-bit samples.
	frames := len(pcm) / (2 * dec.Channels)
	return float64(frames) / float64(dec.SampleRate), nil
}

// SetNow replaces the time source; tests use it to step time.
func (m *MediaClock) SetNow(now func() time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = now
}

// Duration returns the media length in seconds, 0 if unbounded.
func (m *MediaClock) Duration() float64 { return m.duration }

// Position implements Playback.
func (m *MediaClock) Position() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.positionLocked()
}

// Paused implements Playback. A clock that reached the end of the media
// is paused.
func (m *MediaClock) Paused() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return !m.playing || m.endedLocked()
}

// Ended reports whether playback reached the end of the media.
func (m *MediaClock) Ended() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.endedLocked()
}

// Play resumes from the current position.
func (m *MediaClock) Play() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.playing {
		return
	}
	if m.endedLocked() {
		m.base = 0
	}
	m.startedAt = m.now()
	m.playing = true
}

// Pause freezes the position.
func (m *MediaClock) Pause() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.playing {
		return
	}
	m.base = m.positionLocked()
	m.playing = false
}

// Seek moves to pos, clamped to the media, and emits a position event.
func (m *MediaClock) Seek(pos float64) {
	m.mu.Lock()
	pos = max(pos, 0)
	if m.duration > 0 {
		pos = min(pos, m.duration)
	}
	m.base = pos
	m.startedAt = m.now()
	m.mu.Unlock()

	m.emit(pos)
}

// Events returns the position-change notifications.
func (m *MediaClock) Events() <-chan float64 { return m.events }

// Tick emits a position event if playing. Run calls it every
// eventInterval; tests call it directly.
func (m *MediaClock) Tick() {
	if m.Paused() {
		return
	}
	m.emit(m.Position())
}

// Run emits position events while playing until done is closed.
func (m *MediaClock) Run(done <-chan struct{}) {
	t := time.NewTicker(eventInterval)
	defer t.Stop()
	for {
		select {
		case <-done:
			return
		case <-t.C:
			m.Tick()
		}
	}
}

// emit delivers pos, replacing a stale undelivered position.
func (m *MediaClock) emit(pos float64) {
	for {
		select {
		case m.events <- pos:
			return
		default:
		}
		select {
		case <-m.events:
		default:
		}
	}
}

func (m *MediaClock) positionLocked() float64 {
	pos := m.base
	if m.playing {
		pos += m.now().Sub(m.startedAt).Seconds()
	}
	if m.duration > 0 {
		pos = min(pos, m.duration)
	}
	return pos
}

func (m *MediaClock) endedLocked() bool {
	return m.duration > 0 && m.positionLocked() >= m.duration
}
