package replay

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/Bucknalla/go-flight-replay/internal/logging"
	"github.com/Bucknalla/go-flight-replay/track"
)

// maxConcurrentLoads bounds track file decoding at startup.
const maxConcurrentLoads = 4

// ObjectSpec describes an object to load.
type ObjectSpec struct {
	ID          string
	Path        string
	Color       string
	Model       string // 3D model file, "" for none
	RenderScale float64
}

// LoadObjects reads every spec's track concurrently and returns the objects
// that loaded, in spec order. A spec whose file cannot be read is logged
// and skipped; a file without usable geometry still yields an object, one
// that never animates.
func LoadObjects(ctx context.Context, lg logging.Logger, specs []ObjectSpec) []*TrackedObject {
	if lg == nil {
		lg = logging.Noop()
	}

	loaded := make([]*TrackedObject, len(specs))
	var eg errgroup.Group
	eg.SetLimit(maxConcurrentLoads)
	for i, spec := range specs {
		eg.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}
			tr, meta, err := track.Load(ctx, lg, spec.Path)
			if err != nil {
				lg.Error(ctx, "failed to load track",
					logging.String("id", spec.ID),
					logging.String("file", spec.Path),
					logging.Err(err))
				return nil
			}
			obj := &TrackedObject{
				ID:          spec.ID,
				Track:       tr,
				Meta:        meta,
				Color:       spec.Color,
				RenderScale: spec.RenderScale,
			}
			if spec.Model != "" {
				obj.Model = &ModelRef{Path: spec.Model, Color: spec.Color}
			}
			loaded[i] = obj
			return nil
		})
	}
	_ = eg.Wait()

	out := make([]*TrackedObject, 0, len(specs))
	for _, obj := range loaded {
		if obj != nil {
			out = append(out, obj)
		}
	}
	return out
}

// RegisterAll registers objs on c, logging and skipping the ones that
// cannot be registered.
func RegisterAll(ctx context.Context, lg logging.Logger, c *Context, objs []*TrackedObject) {
	if lg == nil {
		lg = logging.Noop()
	}
	for _, obj := range objs {
		if err := c.Register(obj); err != nil {
			lg.Warn(ctx, "skipping object", logging.Err(err))
			continue
		}
		lg.Info(ctx, "object registered",
			logging.String("id", obj.ID),
			logging.String("flight", obj.Meta.Flight),
			logging.Int("points", len(obj.Track)))
	}
}
