package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/signalsfoundry/gbm-background/core"
	"github.com/signalsfoundry/gbm-background/internal/background"
	"github.com/signalsfoundry/gbm-background/internal/config"
	"github.com/signalsfoundry/gbm-background/internal/logging"
	"github.com/signalsfoundry/gbm-background/internal/observability"
	"github.com/signalsfoundry/gbm-background/internal/response"
	"github.com/signalsfoundry/gbm-background/internal/source"
	"github.com/signalsfoundry/gbm-background/internal/spectrum"
	"github.com/signalsfoundry/gbm-background/model"
	"github.com/signalsfoundry/gbm-background/timectrl"
)

type deps struct {
	log      logging.Logger
	model    *observability.ModelCollector
	response *observability.ResponseCollector
}

// modelRun is a constructed model with the bins and starting parameters
// it is evaluated at.
type modelRun struct {
	bins   model.TimeBinGrid
	model  *background.Model
	params []float64
}

func buildRun(ctx context.Context, cfg config.Config, d deps) (*modelRun, error) {
	layout, err := cfg.Layout()
	if err != nil {
		return nil, err
	}
	in, err := cfg.IncomingGrid()
	if err != nil {
		return nil, err
	}
	bins, err := cfg.TimeBins()
	if err != nil {
		return nil, err
	}

	times, err := timectrl.Schedule(bins, cfg.Run.MaxGeometrySamples)
	if err != nil {
		return nil, err
	}
	start, stop := bins.Span()
	hist, err := attitudeProvider(cfg.Orbit).History(ctx, start, stop)
	if err != nil {
		return nil, fmt.Errorf("attitude history: %w", err)
	}
	geom, err := hist.Sample(times)
	if err != nil {
		return nil, fmt.Errorf("geometry samples: %w", err)
	}
	d.log.Info(ctx, "geometry sampled",
		logging.Int("samples", geom.Len()),
		logging.Int("bins", bins.Len()),
		logging.Int("stride", timectrl.Stride(bins.Len(), cfg.Run.MaxGeometrySamples)),
	)

	builder := response.NewBuilder(
		response.CosineDRM{Area: cfg.Response.Area, Resolution: cfg.Response.Resolution},
		response.WithWorkers(cfg.Response.Workers),
		response.WithLogger(d.log),
		response.WithMetrics(d.response),
	)
	how := source.Linear
	if cfg.Interpolation == "cubic" {
		how = source.NaturalCubic
	}
	inputs := source.GridInputs{
		Layout:        layout,
		Geometry:      geom,
		Incoming:      in,
		Interpolation: how,
		Workers:       cfg.Response.Workers,
	}

	var (
		comps  []source.Component
		params []float64
	)
	add := func(c source.Component, p []float64) {
		comps = append(comps, c)
		params = append(params, p...)
	}

	src := cfg.Sources
	if src.EarthAlbedo.Enabled || src.CGB.Enabled || src.GC.Enabled || src.GC511.Enabled {
		inputs.Responses, err = gridResponses(ctx, cfg, builder, layout, in, d.log)
		if err != nil {
			return nil, err
		}
	}

	diffuse := []struct {
		cfg    config.DiffuseConfig
		preset spectrum.Shape
		build  func(context.Context, source.GridInputs, source.Spectrum) (*source.ResponseSource, error)
	}{
		{src.EarthAlbedo, spectrum.EarthAlbedo(), source.NewEarthAlbedo},
		{src.CGB, spectrum.CGB(), source.NewCGB},
	}
	for _, dc := range diffuse {
		if !dc.cfg.Enabled {
			continue
		}
		spec, p, err := spectrumFor(dc.cfg.Spectrum, dc.preset)
		if err != nil {
			return nil, err
		}
		c, err := dc.build(ctx, inputs, spec)
		if err != nil {
			return nil, err
		}
		add(c, p)
	}
	if src.GC.Enabled {
		c, err := source.NewGalacticCenter(ctx, inputs)
		if err != nil {
			return nil, err
		}
		add(c, []float64{normOr1(src.GC.Spectrum.Norm)})
	}
	if src.GC511.Enabled {
		c, err := source.NewGalactic511(ctx, inputs)
		if err != nil {
			return nil, err
		}
		add(c, []float64{normOr1(src.GC511.Spectrum.Norm)})
	}
	if src.Sun.Enabled {
		spec, p, err := spectrumFor(src.Sun.Spectrum, nil)
		if err != nil {
			return nil, fmt.Errorf("sun: %w", err)
		}
		c, err := source.NewSunSource(ctx, inputs, builder, spec)
		if err != nil {
			return nil, err
		}
		add(c, p)
	}
	for _, pc := range src.Points {
		spec, p, err := spectrumFor(pc.Spectrum, nil)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", pc.Name, err)
		}
		c, err := source.NewPointSource(ctx, source.PointConfig{
			Name:          pc.Name,
			Layout:        layout,
			Geometry:      geom,
			Incoming:      in,
			Direction:     source.FixedDirection(pc.RA, pc.Dec),
			Builder:       builder,
			Spectrum:      spec,
			Interpolation: how,
		})
		if err != nil {
			return nil, err
		}
		add(c, p)
	}
	for _, cc := range src.Continuum {
		var tmpl source.Template = source.ConstantTemplate{}
		if cc.Template == "orbital" {
			tmpl = source.OrbitalTemplate{Period: cc.Period, Phase: cc.Phase}
		}
		c, err := source.NewContinuumSource(cc.Name, layout, tmpl)
		if err != nil {
			return nil, err
		}
		add(c, repeat(cc.Norm, c.NumParameters()))
	}
	exits := make([]source.SAAExit, len(src.SAA.Exits))
	for i, t := range src.SAA.Exits {
		exits[i] = source.SAAExit{Index: -1, Start: t, Stop: t}
	}
	saas, err := source.NewSAASources("saa", layout, exits)
	if err != nil {
		return nil, err
	}
	for _, s := range saas {
		half := s.NumParameters() / 2
		add(s, append(repeat(src.SAA.Norm, half), repeat(src.SAA.Decay, half)...))
	}

	m, err := background.NewModel(layout, comps, background.WithLogger(d.log), background.WithMetrics(d.model))
	if err != nil {
		return nil, err
	}
	return &modelRun{bins: bins, model: m, params: params}, nil
}

func attitudeProvider(o config.OrbitConfig) core.AttitudeProvider {
	if o.TLE1 != "" {
		return core.NewOrbitalAttitudeProvider(o.TLE1, o.TLE2, o.Step)
	}
	return &core.FixedAttitudeProvider{
		Quaternion: core.Quaternion(o.Quaternion),
		Position:   core.Vec3{X: o.Position[0], Y: o.Position[1], Z: o.Position[2]},
	}
}

// spectrumFor maps a spectrum entry to a fixed preset or a free family and
// returns the starting parameters, norm first.
func spectrumFor(sc config.SpectrumConfig, preset spectrum.Shape) (source.Spectrum, []float64, error) {
	norm := []float64{normOr1(sc.Norm)}
	switch sc.Family {
	case "":
		if preset == nil {
			return source.Spectrum{}, nil, fmt.Errorf("%w: spectrum family required", model.ErrInvalidParameters)
		}
		return source.FixedSpectrum(preset), norm, nil
	case "cgb":
		return source.FixedSpectrum(spectrum.CGB()), norm, nil
	case "earth_albedo":
		return source.FixedSpectrum(spectrum.EarthAlbedo()), norm, nil
	}
	fam, err := spectrum.LookupFamily(sc.Family)
	if err != nil {
		return source.Spectrum{}, nil, err
	}
	if len(sc.Params) != fam.NumParameters() {
		return source.Spectrum{}, nil, fmt.Errorf("%w: %s wants %d starting values %v, got %d",
			model.ErrInvalidParameters, fam.Name, fam.NumParameters(), fam.ParamNames, len(sc.Params))
	}
	return source.FreeSpectrum(fam), append(norm, sc.Params...), nil
}

// gridResponses builds the direction-grid responses of every layout
// detector, reading and refreshing snapshots when a directory is set.
func gridResponses(ctx context.Context, cfg config.Config, b *response.Builder, layout model.Layout, in model.EnergyGrid, log logging.Logger) ([]*response.GridResponses, error) {
	grid, err := response.GenerateDirectionGrid(cfg.Response.GridPoints)
	if err != nil {
		return nil, err
	}
	dir := cfg.Response.Snapshot
	out := make([]*response.GridResponses, 0, layout.NumDetectors())
	for _, name := range layout.Detectors {
		det, err := model.LookupDetector(name)
		if err != nil {
			return nil, err
		}
		path := ""
		if dir != "" {
			path = filepath.Join(dir, name+".pb")
			if err := loadSnapshot(path, b, grid, in, layout.Energy); err != nil {
				log.Warn(ctx, "ignoring response snapshot", logging.String("path", path), logging.Err(err))
			}
		}
		g, err := b.BuildGrid(ctx, grid, det, in, layout.Energy)
		if err != nil {
			return nil, err
		}
		if path != "" {
			if err := saveSnapshot(path, g); err != nil {
				log.Warn(ctx, "response snapshot not written", logging.String("path", path), logging.Err(err))
			}
		}
		out = append(out, g)
	}
	return out, nil
}

func loadSnapshot(path string, b *response.Builder, grid response.DirectionGrid, in, out model.EnergyGrid) error {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	g, err := response.UnmarshalSnapshot(data)
	if err != nil {
		return err
	}
	if g.Len() != grid.Len() {
		return fmt.Errorf("%w: snapshot has %d grid points, run uses %d", model.ErrInconsistentGrid, g.Len(), grid.Len())
	}
	if err := g.Require(in, out); err != nil {
		return err
	}
	return b.Load(g)
}

func saveSnapshot(path string, g *response.GridResponses) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, response.MarshalSnapshot(g), 0o644)
}

func normOr1(v float64) float64 {
	if v == 0 {
		return 1
	}
	return v
}

func repeat(v float64, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = v
	}
	return out
}
