package response

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"gonum.org/v1/gonum/mat"

	"github.com/signalsfoundry/gbm-background/core"
	"github.com/signalsfoundry/gbm-background/internal/logging"
	"github.com/signalsfoundry/gbm-background/internal/observability"
	"github.com/signalsfoundry/gbm-background/kb"
	"github.com/signalsfoundry/gbm-background/model"
)

// GridResponses holds one response matrix per direction of a grid, all for
// a single detector and a single (incoming, detected) energy-grid pair.
type GridResponses struct {
	Grid     DirectionGrid
	Detector string
	In, Out  model.EnergyGrid

	matrices []*mat.Dense
}

// NewGridResponses validates that there is one in×out matrix per grid
// point.
func NewGridResponses(grid DirectionGrid, detector string, in, out model.EnergyGrid, matrices []*mat.Dense) (*GridResponses, error) {
	if len(matrices) != grid.Len() {
		return nil, fmt.Errorf("%w: %d matrices for %d grid points", model.ErrMissingResponse, len(matrices), grid.Len())
	}
	for i, m := range matrices {
		if m == nil {
			return nil, fmt.Errorf("%w: %s grid point %d", model.ErrMissingResponse, detector, i)
		}
		if r, c := m.Dims(); r != in.NumBins() || c != out.NumBins() {
			return nil, fmt.Errorf("%w: matrix %d is %dx%d, want %dx%d", model.ErrInconsistentGrid, i, r, c, in.NumBins(), out.NumBins())
		}
	}
	return &GridResponses{Grid: grid, Detector: detector, In: in, Out: out, matrices: matrices}, nil
}

// Len returns the number of grid points.
func (g *GridResponses) Len() int { return len(g.matrices) }

// Matrix returns the response for grid point i. The matrix is shared and
// must not be modified.
func (g *GridResponses) Matrix(i int) *mat.Dense { return g.matrices[i] }

// Require fails with model.ErrInconsistentGrid unless the responses were
// computed for exactly these grids.
func (g *GridResponses) Require(in, out model.EnergyGrid) error {
	if !g.In.Equal(in) || !g.Out.Equal(out) {
		return fmt.Errorf("%w: %s responses are %s -> %s, caller uses %s -> %s",
			model.ErrInconsistentGrid, g.Detector, g.In, g.Out, in, out)
	}
	return nil
}

// Builder batches DRM evaluations over direction sets and memoizes grid
// responses per detector.
type Builder struct {
	drm     DRM
	workers int
	log     logging.Logger
	metrics *observability.ResponseCollector

	mu     sync.Mutex
	stores []*kb.ResponseStore
}

// BuilderOption configures a Builder.
type BuilderOption func(*Builder)

// WithWorkers sets the worker count; <= 0 means GOMAXPROCS.
func WithWorkers(n int) BuilderOption { return func(b *Builder) { b.workers = n } }

// WithLogger sets the builder logger.
func WithLogger(l logging.Logger) BuilderOption { return func(b *Builder) { b.log = l } }

// WithMetrics attaches a Prometheus collector.
func WithMetrics(c *observability.ResponseCollector) BuilderOption {
	return func(b *Builder) { b.metrics = c }
}

// NewBuilder constructs a Builder around drm.
func NewBuilder(drm DRM, opts ...BuilderOption) *Builder {
	b := &Builder{drm: drm, log: logging.Noop()}
	for _, opt := range opts {
		opt(b)
	}
	if b.log == nil {
		b.log = logging.Noop()
	}
	return b
}

// Store returns the memo store for a grid size and energy-grid pair,
// creating it on first use.
func (b *Builder) Store(size int, in, out model.EnergyGrid) *kb.ResponseStore {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, s := range b.stores {
		if s.Size() == size && s.Require(in, out) == nil {
			return s
		}
	}
	s := kb.NewResponseStore(in, out, size)
	s.Subscribe(b.onStoreEvent(size))
	b.stores = append(b.stores, s)
	return s
}

func (b *Builder) onStoreEvent(size int) func(kb.Event) {
	return func(ev kb.Event) {
		if ev.Type != kb.EventDetectorComplete {
			return
		}
		b.metrics.ObserveDetectorComplete()
		b.log.Info(context.Background(), "detector grid responses complete",
			logging.String("detector", ev.Key.Detector),
			logging.Int("grid_points", size),
		)
	}
}

// BuildGrid returns the responses of det for every point of grid, computing
// only the points not cached yet.
func (b *Builder) BuildGrid(ctx context.Context, grid DirectionGrid, det model.Detector, in, out model.EnergyGrid) (*GridResponses, error) {
	ctx, span := observability.Tracer().Start(ctx, "response.BuildGrid")
	defer span.End()
	span.SetAttributes(
		attribute.String("detector", det.Name),
		attribute.Int("grid_points", grid.Len()),
		attribute.Int("in_bins", in.NumBins()),
		attribute.Int("out_bins", out.NumBins()),
	)

	start := time.Now()
	store := b.Store(grid.Len(), in, out)
	missing := store.Missing(det.Name)

	computed, err := ParallelMap(ctx, len(missing), b.workers, func(ctx context.Context, lo, hi int) ([]*mat.Dense, error) {
		local := make([]*mat.Dense, 0, hi-lo)
		for _, idx := range missing[lo:hi] {
			m, err := b.drm.Response(ctx, grid.Point(idx), det, in, out)
			if err != nil {
				return nil, fmt.Errorf("%s grid point %d: %w", det.Name, idx, err)
			}
			local = append(local, m)
		}
		return local, nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	for k, idx := range missing {
		if err := store.Put(det.Name, idx, computed[k]); err != nil {
			return nil, err
		}
	}

	matrices := make([]*mat.Dense, grid.Len())
	for i := range matrices {
		m, ok := store.Get(det.Name, i)
		if !ok {
			return nil, fmt.Errorf("%w: %s grid point %d", model.ErrMissingResponse, det.Name, i)
		}
		matrices[i] = m
	}

	elapsed := time.Since(start)
	hits := grid.Len() - len(missing)
	b.metrics.ObserveBuild(elapsed, len(missing), hits)
	b.log.Debug(ctx, "grid responses ready",
		logging.String("detector", det.Name),
		logging.Int("computed", len(missing)),
		logging.Int("cached", hits),
		logging.Duration("elapsed", elapsed),
	)
	return NewGridResponses(grid, det.Name, in, out, matrices)
}

// BuildDirections evaluates the DRM for an explicit direction list, in
// order, without caching. Point sources use it for their per-time
// directions.
func (b *Builder) BuildDirections(ctx context.Context, dirs []core.Vec3, det model.Detector, in, out model.EnergyGrid) ([]*mat.Dense, error) {
	ctx, span := observability.Tracer().Start(ctx, "response.BuildDirections")
	defer span.End()
	span.SetAttributes(attribute.String("detector", det.Name), attribute.Int("directions", len(dirs)))

	start := time.Now()
	res, err := ParallelMap(ctx, len(dirs), b.workers, func(ctx context.Context, lo, hi int) ([]*mat.Dense, error) {
		local := make([]*mat.Dense, 0, hi-lo)
		for i := lo; i < hi; i++ {
			m, err := b.drm.Response(ctx, dirs[i], det, in, out)
			if err != nil {
				return nil, fmt.Errorf("%s direction %d: %w", det.Name, i, err)
			}
			local = append(local, m)
		}
		return local, nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	b.metrics.ObserveBuild(time.Since(start), len(dirs), 0)
	return res, nil
}

// Load seeds the cache with previously computed responses, for example a
// decoded snapshot.
func (b *Builder) Load(g *GridResponses) error {
	store := b.Store(g.Len(), g.In, g.Out)
	for i := 0; i < g.Len(); i++ {
		if err := store.Put(g.Detector, i, g.Matrix(i)); err != nil {
			return err
		}
	}
	return nil
}
