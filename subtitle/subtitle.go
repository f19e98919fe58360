// Package subtitle selects and presents the transcript line active at a
// simulation time.
package subtitle

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/klauspost/compress/zstd"
)

// Entry is one transcript line. ActivationTime is absolute epoch seconds.
// The zero Entry is the "nothing active" sentinel.
type Entry struct {
	ActivationTime float64 `json:"time"`
	Heading        string  `json:"heading"`
	Body           string  `json:"body"`
}

// Active reports whether e is a real entry rather than the sentinel.
func (e Entry) Active() bool { return e.ActivationTime != 0 }

// Select returns the entry with the largest activation time not after t.
// Entries need not be sorted. Among entries sharing the maximal time the
// first one wins. When nothing qualifies the zero Entry is returned.
func Select(entries []Entry, t float64) Entry {
	var best Entry
	for _, e := range entries {
		if e.ActivationTime <= t && e.ActivationTime > best.ActivationTime {
			best = e
		}
	}
	return best
}

// Load decodes a transcript: a JSON array of {time, heading, body} with
// time in seconds relative to the start of the audio. epochOffset is added
// to every time to make it absolute.
func Load(r io.Reader, epochOffset float64) ([]Entry, error) {
	var entries []Entry
	if err := json.NewDecoder(r).Decode(&entries); err != nil {
		return nil, fmt.Errorf("failed to decode transcript: %w", err)
	}
	for i := range entries {
		entries[i].ActivationTime += epochOffset
	}
	return entries, nil
}

// LoadFile is Load on a file; a ".zst" suffix is decompressed.
func LoadFile(path string, epochOffset float64) ([]Entry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open transcript: %w", err)
	}
	defer f.Close()

	var r io.Reader = f
	if strings.HasSuffix(strings.ToLower(path), ".zst") {
		zr, err := zstd.NewReader(f)
		if err != nil {
			return nil, fmt.Errorf("failed to open zstd stream: %w", err)
		}
		defer zr.Close()
		r = zr
	}
	return Load(r, epochOffset)
}
