// Package metrics holds the Prometheus collectors of the frame driver.
package metrics

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"

	"github.com/Bucknalla/go-flight-replay/internal/logging"
)

// Update triggers.
const (
	TriggerEvent = "event"
	TriggerFrame = "frame"
	TriggerSeek  = "seek"
)

// Collector bundles the replay metrics.
type Collector struct {
	gatherer prometheus.Gatherer

	Updates         *prometheus.CounterVec
	FramesSkipped   prometheus.Counter
	SubtitleChanges prometheus.Counter
	Objects         prometheus.Gauge
	AdvanceDuration prometheus.Histogram
}

// New registers the replay metrics against reg. A nil reg gets a private
// registry so several drivers (and tests) never collide.
func New(reg prometheus.Registerer) (*Collector, error) {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	updates, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "replay_updates_total",
		Help: "Number of advance-to-time updates, labeled by trigger.",
	}, []string{"trigger"}), "replay_updates_total")
	if err != nil {
		return nil, err
	}
	skipped, err := registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "replay_frames_skipped_total",
		Help: "Frame ticks skipped because playback was paused.",
	}), "replay_frames_skipped_total")
	if err != nil {
		return nil, err
	}
	changes, err := registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "replay_subtitle_changes_total",
		Help: "Number of times a new subtitle line was shown.",
	}), "replay_subtitle_changes_total")
	if err != nil {
		return nil, err
	}
	objects, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "replay_objects",
		Help: "Current number of registered tracked objects.",
	}), "replay_objects")
	if err != nil {
		return nil, err
	}
	duration, err := registerHistogram(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "replay_advance_duration_seconds",
		Help:    "Time spent in one advance-to-time update.",
		Buckets: []float64{0.00005, 0.0001, 0.00025, 0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025},
	}), "replay_advance_duration_seconds")
	if err != nil {
		return nil, err
	}

	return &Collector{
		gatherer:        gatherer,
		Updates:         updates,
		FramesSkipped:   skipped,
		SubtitleChanges: changes,
		Objects:         objects,
		AdvanceDuration: duration,
	}, nil
}

// ObserveUpdate records one update. Safe on a nil collector.
func (c *Collector) ObserveUpdate(trigger string, seconds float64) {
	if c == nil {
		return
	}
	c.Updates.WithLabelValues(trigger).Inc()
	c.AdvanceDuration.Observe(seconds)
}

// SkipFrame records a paused frame tick. Safe on a nil collector.
func (c *Collector) SkipFrame() {
	if c == nil {
		return
	}
	c.FramesSkipped.Inc()
}

// SubtitleChanged records a subtitle change. Safe on a nil collector.
func (c *Collector) SubtitleChanged() {
	if c == nil {
		return
	}
	c.SubtitleChanges.Inc()
}

// SetObjects sets the registered object gauge. Safe on a nil collector.
func (c *Collector) SetObjects(n int) {
	if c == nil {
		return
	}
	c.Objects.Set(float64(n))
}

// Snapshot gathers the replay_ metric families as flat name{labels} ->
// value pairs. Histograms report their sample count and sum.
func (c *Collector) Snapshot() (map[string]float64, error) {
	if c == nil {
		return nil, nil
	}
	families, err := c.gatherer.Gather()
	if err != nil {
		return nil, fmt.Errorf("failed to gather metrics: %w", err)
	}

	out := make(map[string]float64)
	for _, mf := range families {
		name := mf.GetName()
		if !strings.HasPrefix(name, "replay_") {
			continue
		}
		for _, m := range mf.GetMetric() {
			key := name + labelString(m.GetLabel())
			switch mf.GetType() {
			case dto.MetricType_COUNTER:
				out[key] = m.GetCounter().GetValue()
			case dto.MetricType_GAUGE:
				out[key] = m.GetGauge().GetValue()
			case dto.MetricType_HISTOGRAM:
				out[key+"_count"] = float64(m.GetHistogram().GetSampleCount())
				out[key+"_sum"] = m.GetHistogram().GetSampleSum()
			}
		}
	}
	return out, nil
}

// LogSummary writes the current snapshot as one structured log line.
func (c *Collector) LogSummary(ctx context.Context, lg logging.Logger) {
	snap, err := c.Snapshot()
	if err != nil {
		lg.Warn(ctx, "metrics summary unavailable", logging.Err(err))
		return
	}
	keys := make([]string, 0, len(snap))
	for k := range snap {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	fields := make([]logging.Field, 0, len(keys))
	for _, k := range keys {
		fields = append(fields, logging.Float(k, snap[k]))
	}
	lg.Info(ctx, "replay metrics", fields...)
}

func labelString(labels []*dto.LabelPair) string {
	if len(labels) == 0 {
		return ""
	}
	parts := make([]string, 0, len(labels))
	for _, l := range labels {
		parts = append(parts, fmt.Sprintf("%s=%q", l.GetName(), l.GetValue()))
	}
	return "{" + strings.Join(parts, ",") + "}"
}

func registerCounterVec(reg prometheus.Registerer, vec *prometheus.CounterVec, name string) (*prometheus.CounterVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerCounter(reg prometheus.Registerer, c prometheus.Counter, name string) (prometheus.Counter, error) {
	if err := reg.Register(c); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Counter); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return c, nil
}

func registerGauge(reg prometheus.Registerer, g prometheus.Gauge, name string) (prometheus.Gauge, error) {
	if err := reg.Register(g); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Gauge); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return g, nil
}

func registerHistogram(reg prometheus.Registerer, h prometheus.Histogram, name string) (prometheus.Histogram, error) {
	if err := reg.Register(h); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Histogram); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return h, nil
}
