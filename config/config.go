// Package config loads and validates the replay scenario.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
	_ "time/tzdata" // display time zones resolve without a system zoneinfo

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/Bucknalla/go-flight-replay/camera"
	"github.com/Bucknalla/go-flight-replay/internal/logging"
	"github.com/Bucknalla/go-flight-replay/replay"
)

// Config holds all configuration options for a replay
type Config struct {
	AssetsDir   string  `yaml:"assets_dir"`
	Audio       string  `yaml:"audio"`      // MP3 driving the timeline; empty = unbounded clock
	Transcript  string  `yaml:"transcript"` // subtitle JSON; empty = no subtitles
	EpochOffset float64 `yaml:"epoch_offset" validate:"gt=0"`
	Timezone    string  `yaml:"timezone"`

	Flights    []Flight           `yaml:"flights" validate:"dive"`
	Camera     camera.Params      `yaml:"camera"`
	Viewpoints []camera.Viewpoint `yaml:"viewpoints" validate:"dive"`
	Follow     string             `yaml:"follow"` // initial camera selection
	Layers     Layers             `yaml:"layers"`

	Playback Playback `yaml:"playback"`
	NMEA     NMEA     `yaml:"nmea"`
	Log      Log      `yaml:"log"`
}

// Flight is one tracked aircraft.
type Flight struct {
	ID    string  `yaml:"id" validate:"required"`
	Track string  `yaml:"track" validate:"required"`
	Color string  `yaml:"color" validate:"omitempty,hexcolor"`
	Model string  `yaml:"model"`
	Scale float64 `yaml:"scale" validate:"gt=0"`
}

// Layers are the initial visibility toggles.
type Layers struct {
	Markers bool   `yaml:"markers"`
	Models  bool   `yaml:"models"`
	Tracks  bool   `yaml:"tracks"`
	Chart   string `yaml:"chart" validate:"omitempty,oneof=tac-chart heli-chart rnav-33 ils-01 none"`
}

// Playback controls the headless transport.
type Playback struct {
	Start     float64       `yaml:"start" validate:"gte=0"` // initial audio position, seconds
	Autoplay  bool          `yaml:"autoplay"`
	FrameRate time.Duration `yaml:"frame_rate" validate:"gt=0"`
	Duration  time.Duration `yaml:"duration" validate:"gte=0"` // 0 = until the media ends or interrupted
	StopAtEnd bool          `yaml:"stop_at_end"`
}

// NMEA configures the NMEA output of one followed object.
type NMEA struct {
	Object     string `yaml:"object"` // empty disables NMEA
	SerialPort string `yaml:"serial_port"`
	BaudRate   int    `yaml:"baud_rate" validate:"gt=0"`
	GPXFile    string `yaml:"gpx_file"`
}

// Log configures logging.
type Log struct {
	Level      string        `yaml:"level" validate:"omitempty,oneof=debug info warn warning error"`
	Format     string        `yaml:"format" validate:"omitempty,oneof=json text"`
	File       string        `yaml:"file"`
	MaxSizeMB  int           `yaml:"max_size_mb" validate:"gte=0"`
	MaxBackups int           `yaml:"max_backups" validate:"gte=0"`
	Interval   time.Duration `yaml:"interval" validate:"gte=0"` // object log throttle
}

// Default returns a configuration with sensible defaults
func Default() Config {
	return Config{
		AssetsDir:   ".",
		EpochOffset: replay.DefaultEpochOffset,
		Timezone:    "America/New_York",
		Camera:      camera.DefaultParams(),
		Viewpoints:  camera.DefaultViewpoints(),
		Layers:      Layers{Markers: true, Models: true, Tracks: true},
		Playback: Playback{
			Autoplay:  true,
			FrameRate: replay.DefaultFrameRate,
			StopAtEnd: true,
		},
		NMEA: NMEA{BaudRate: 9600},
		Log: Log{
			Level:    "info",
			Format:   "text",
			Interval: 5 * time.Second,
		},
	}
}

// DefaultFlights are the four aircraft of the recorded incident.
func DefaultFlights() []Flight {
	return []Flight{
		{ID: "AE313D", Track: "AE313D-track.geojson", Color: "#ff453a", Model: "UH-60.stl", Scale: 1.0 / 1200},
		{ID: "N709PS", Track: "N709PS-track.geojson", Color: "#0a84ff", Model: "CRJ7.stl", Scale: 1.0 / 300},
		{ID: "N765US", Track: "N765US-track.geojson", Color: "#30d158", Model: "CRJ7.stl", Scale: 1.0 / 300},
		{ID: "N941NN", Track: "N941NN-track.geojson", Color: "#bf5af2", Model: "CRJ7.stl", Scale: 1.0 / 300},
	}
}

// Load reads the YAML file at path over the defaults and validates it.
// Flights default to DefaultFlights when the file lists none, and a
// relative assets_dir is taken relative to the file.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if len(cfg.Flights) == 0 {
		cfg.Flights = DefaultFlights()
	}
	if !filepath.IsAbs(cfg.AssetsDir) {
		cfg.AssetsDir = filepath.Join(filepath.Dir(path), cfg.AssetsDir)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks if the configuration is valid and returns an error if not
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return fmt.Errorf("%w: %s failed %q", ErrInvalidConfig, verrs[0].Namespace(), verrs[0].Tag())
		}
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	seen := make(map[string]bool, len(c.Flights))
	for _, f := range c.Flights {
		if seen[f.ID] {
			return fmt.Errorf("%w: %s", ErrDuplicateFlight, f.ID)
		}
		seen[f.ID] = true
	}

	if c.Follow != "" && !seen[c.Follow] && !c.hasViewpoint(c.Follow) {
		return fmt.Errorf("%w: %s", ErrUnknownFollow, c.Follow)
	}
	if c.NMEA.Object != "" && !seen[c.NMEA.Object] {
		return fmt.Errorf("%w: %s", ErrUnknownNMEAObject, c.NMEA.Object)
	}
	if _, err := c.Location(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidTimezone, err)
	}
	return nil
}

func (c *Config) hasViewpoint(name string) bool {
	for _, v := range c.Viewpoints {
		if v.Name == name {
			return true
		}
	}
	return false
}

// Location returns the display time zone.
func (c *Config) Location() (*time.Location, error) {
	if c.Timezone == "" {
		return time.UTC, nil
	}
	return time.LoadLocation(c.Timezone)
}

// Resolve returns path relative to the assets directory unless it is
// absolute.
func (c *Config) Resolve(path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(c.AssetsDir, path)
}

// ObjectSpecs returns the flights as loader specs with resolved paths.
func (c *Config) ObjectSpecs() []replay.ObjectSpec {
	specs := make([]replay.ObjectSpec, 0, len(c.Flights))
	for _, f := range c.Flights {
		spec := replay.ObjectSpec{
			ID:          f.ID,
			Path:        c.Resolve(f.Track),
			Color:       f.Color,
			RenderScale: f.Scale,
		}
		if f.Model != "" {
			spec.Model = c.Resolve(f.Model)
		}
		specs = append(specs, spec)
	}
	return specs
}

// LayerToggles returns the initial layer state.
// "none" and "" both mean no chart overlay.
func (c *Config) LayerToggles() replay.Layers {
	l := replay.Layers{
		Markers: c.Layers.Markers,
		Models:  c.Layers.Models,
		Tracks:  c.Layers.Tracks,
		Chart:   c.Layers.Chart,
	}
	if l.Chart == "none" {
		l.Chart = ""
	}
	return l
}

// Logging returns the logger configuration.
func (c *Config) Logging() logging.Config {
	return logging.Config{
		Level:      c.Log.Level,
		Format:     c.Log.Format,
		File:       c.Log.File,
		MaxSizeMB:  c.Log.MaxSizeMB,
		MaxBackups: c.Log.MaxBackups,
	}
}
