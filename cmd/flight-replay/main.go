package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/goforj/godump"

	"github.com/Bucknalla/go-flight-replay/camera"
	"github.com/Bucknalla/go-flight-replay/config"
	"github.com/Bucknalla/go-flight-replay/internal/logging"
	"github.com/Bucknalla/go-flight-replay/internal/metrics"
	"github.com/Bucknalla/go-flight-replay/nmea"
	"github.com/Bucknalla/go-flight-replay/replay"
	"github.com/Bucknalla/go-flight-replay/subtitle"
)

// Version information - populated at build time via ldflags
var (
	Version   = "dev"     // Will be set to git tag if available, otherwise "dev"
	Commit    = "unknown" // Will be set to git commit hash
	BuildDate = "unknown" // Will be set to build timestamp
)

// options are the command line overrides applied on top of the config file.
type options struct {
	configPath string
	assetsDir  string
	serialPort string
	baudRate   int
	nmeaObject string
	gpxFile    string
	duration   time.Duration
	frameRate  time.Duration
	start      float64
	follow     string
	dump       bool
	logLevel   string
	logFormat  string
}

func main() {
	var opts options
	var showVersion bool

	flag.BoolVar(&showVersion, "version", false, "Show version information and exit")
	flag.StringVar(&opts.configPath, "config", "", "Replay configuration file (YAML). Defaults to the recorded incident")
	flag.StringVar(&opts.assetsDir, "assets", "", "Directory holding tracks, transcript and audio")
	flag.StringVar(&opts.serialPort, "serial", "", "Serial port for NMEA output (e.g., /dev/ttyUSB0, COM1)")
	flag.IntVar(&opts.baudRate, "baud", 0, "Serial port baud rate")
	flag.StringVar(&opts.nmeaObject, "nmea-object", "", "Flight whose position is written as NMEA")
	flag.StringVar(&opts.gpxFile, "gpx", "", "Record the NMEA flight's replayed positions to this GPX file")
	flag.DurationVar(&opts.duration, "duration", 0, "How long to run the replay (e.g., 30s, 5m). Default is until the audio ends")
	flag.DurationVar(&opts.frameRate, "rate", 0, "Frame interval (e.g., 16ms)")
	flag.Float64Var(&opts.start, "start", -1, "Initial audio position in seconds")
	flag.StringVar(&opts.follow, "follow", "", "Flight to follow or viewpoint to fly to")
	flag.BoolVar(&opts.dump, "dump", false, "Dump the final replay state to stderr")
	flag.StringVar(&opts.logLevel, "log-level", "", "Log level (debug, info, warn, error)")
	flag.StringVar(&opts.logFormat, "log-format", "", "Log format (text or json)")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [options]\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "\nFlight Incident Replay\n")
		fmt.Fprintf(os.Stderr, "Replays recorded flight tracks against the ATC audio timeline.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
	}

	flag.Parse()

	if showVersion {
		if Version != "dev" {
			fmt.Printf("v%s\n", Version)
		} else {
			fmt.Printf("%s\n", Commit)
		}
		os.Exit(0)
	}

	cfg, err := loadConfig(opts)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, opts.dump, os.Stderr); err != nil {
		log.Fatalf("Replay failed: %v", err)
	}
}

// loadConfig reads the config file, if any, and applies the flag overrides.
func loadConfig(opts options) (config.Config, error) {
	cfg := config.Default()
	if opts.configPath != "" {
		var err error
		if cfg, err = config.Load(opts.configPath); err != nil {
			return config.Config{}, err
		}
	} else {
		cfg.Flights = config.DefaultFlights()
		cfg.Audio = "atc-audio.mp3"
		cfg.Transcript = "atc-transcript.json"
	}
	applyFlags(&cfg, opts)
	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

func applyFlags(cfg *config.Config, opts options) {
	if opts.assetsDir != "" {
		cfg.AssetsDir = opts.assetsDir
	}
	if opts.serialPort != "" {
		cfg.NMEA.SerialPort = opts.serialPort
	}
	if opts.baudRate > 0 {
		cfg.NMEA.BaudRate = opts.baudRate
	}
	if opts.nmeaObject != "" {
		cfg.NMEA.Object = opts.nmeaObject
	}
	if opts.gpxFile != "" {
		cfg.NMEA.GPXFile = opts.gpxFile
	}
	if opts.duration > 0 {
		cfg.Playback.Duration = opts.duration
	}
	if opts.frameRate > 0 {
		cfg.Playback.FrameRate = opts.frameRate
	}
	if opts.start >= 0 {
		cfg.Playback.Start = opts.start
	}
	if opts.follow != "" {
		cfg.Follow = opts.follow
	}
	if opts.logLevel != "" {
		cfg.Log.Level = opts.logLevel
	}
	if opts.logFormat != "" {
		cfg.Log.Format = opts.logFormat
	}
}

// run wires the replay from cfg and drives it until ctx is done or the
// playback stops.
func run(ctx context.Context, cfg config.Config, dump bool, stderr io.Writer) error {
	lg := logging.NewFromEnv(cfg.Logging())

	loc, err := cfg.Location()
	if err != nil {
		return err
	}

	clock := openClock(ctx, lg, cfg)

	sim := replay.NewContext(replay.SimClock{Playback: clock, EpochOffset: cfg.EpochOffset})
	sim.Layers = cfg.LayerToggles()
	sim.Location = loc

	logSink := replay.NewLogSink(ctx, lg, cfg.Log.Interval)
	sim.Camera = camera.NewController(cfg.Camera, cfg.Viewpoints, logSink, lg)

	replay.RegisterAll(ctx, lg, sim, replay.LoadObjects(ctx, lg, cfg.ObjectSpecs()))
	if sim.Len() == 0 {
		lg.Warn(ctx, "no flights loaded")
	}

	sinks := replay.ObjectSinks{logSink}
	closers, err := nmeaSinks(ctx, lg, cfg, &sinks)
	defer func() {
		for _, c := range closers {
			if err := c(); err != nil {
				lg.Error(ctx, "failed to close output", logging.Err(err))
			}
		}
	}()
	if err != nil {
		return err
	}

	collector, err := metrics.New(nil)
	if err != nil {
		return fmt.Errorf("failed to create metrics: %w", err)
	}

	driverOpts := []replay.Option{
		replay.WithObjectSink(sinks),
		replay.WithMetrics(collector),
		replay.WithLogger(lg),
	}
	if cfg.Transcript != "" {
		entries, err := subtitle.LoadFile(cfg.Resolve(cfg.Transcript), cfg.EpochOffset)
		if err != nil {
			lg.Warn(ctx, "subtitles disabled", logging.Err(err))
		} else {
			driverOpts = append(driverOpts,
				replay.WithSubtitles(subtitle.NewPresenter(entries, logSink, lg)))
		}
	}
	driver := replay.NewDriver(sim, driverOpts...)

	if cfg.Follow != "" {
		driver.Select(ctx, cfg.Follow)
	}

	done := make(chan struct{})
	defer close(done)
	go clock.Run(done)

	clock.Seek(cfg.Playback.Start)
	if cfg.Playback.Autoplay {
		clock.Play()
	}

	runErr := driver.Run(ctx, cfg.Playback.FrameRate, cfg.Playback.Duration, cfg.Playback.StopAtEnd)
	collector.LogSummary(ctx, lg)

	if dump {
		godump.Fdump(stderr, driver.Status(), sim.Layers)
		for _, obj := range sim.Objects() {
			st, _ := sim.StateOf(obj.ID)
			godump.Fdump(stderr, obj.Meta, st)
		}
	}
	return runErr
}

// openClock returns a media clock over the configured audio, or an
// unbounded one when there is none or it cannot be decoded.
func openClock(ctx context.Context, lg logging.Logger, cfg config.Config) *replay.MediaClock {
	if cfg.Audio == "" {
		return replay.NewMediaClock(0)
	}
	path := cfg.Resolve(cfg.Audio)
	clock, err := replay.OpenMP3(path)
	if err != nil {
		lg.Warn(ctx, "audio unavailable, using an unbounded clock",
			logging.String("file", path), logging.Err(err))
		return replay.NewMediaClock(0)
	}
	lg.Info(ctx, "audio loaded",
		logging.String("file", path),
		logging.Float("duration", clock.Duration()))
	return clock
}

// nmeaSinks appends the NMEA and GPX outputs of cfg to sinks and returns
// the functions that close them.
func nmeaSinks(ctx context.Context, lg logging.Logger, cfg config.Config, sinks *replay.ObjectSinks) ([]func() error, error) {
	if cfg.NMEA.Object == "" {
		return nil, nil
	}
	var closers []func() error

	var w io.Writer = os.Stdout
	if cfg.NMEA.SerialPort != "" {
		port, err := nmea.OpenSerial(cfg.NMEA.SerialPort, cfg.NMEA.BaudRate)
		if err != nil {
			return closers, err
		}
		closers = append(closers, port.Close)
		w = port
		lg.Info(ctx, "opened serial port",
			logging.String("port", cfg.NMEA.SerialPort),
			logging.Int("baud", cfg.NMEA.BaudRate))
	}
	*sinks = append(*sinks, nmea.NewSink(ctx, w, cfg.NMEA.Object, lg))

	if cfg.NMEA.GPXFile != "" {
		rec, err := nmea.NewGPXRecorder(cfg.NMEA.GPXFile, cfg.NMEA.Object)
		if err != nil {
			return closers, err
		}
		closers = append(closers, rec.Close)
		*sinks = append(*sinks, rec)
		lg.Info(ctx, "recording GPX", logging.String("file", cfg.NMEA.GPXFile))
	}
	return closers, nil
}
