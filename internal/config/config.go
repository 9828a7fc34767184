// Package config loads the YAML run description for a background model.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/signalsfoundry/gbm-background/core"
	"github.com/signalsfoundry/gbm-background/model"
)

// EnvPath names the environment variable consulted when no -config flag is
// given.
const EnvPath = "BKG_CONFIG"

// ErrInvalidConfig wraps every validation failure.
var ErrInvalidConfig = errors.New("invalid config")

// Config is one model run.
type Config struct {
	Run           RunConfig      `yaml:"run"`
	Detectors     []string       `yaml:"detectors"`
	Energy        EnergyConfig   `yaml:"energy"`
	Incoming      IncomingConfig `yaml:"incoming"`
	Response      ResponseConfig `yaml:"response"`
	Orbit         OrbitConfig    `yaml:"orbit"`
	Interpolation string         `yaml:"interpolation"`
	Sources       SourcesConfig  `yaml:"sources"`
}

// RunConfig is the time grid to predict on.
type RunConfig struct {
	Start              time.Time `yaml:"start"`
	BinWidth           float64   `yaml:"bin_width"`
	Bins               int       `yaml:"bins"`
	MaxGeometrySamples int       `yaml:"max_geometry_samples"`
}

// EnergyConfig is the detected energy binning.
type EnergyConfig struct {
	Edges  []float64 `yaml:"edges"`
	Echans []int     `yaml:"echans"`
}

// IncomingConfig is the log-spaced incoming photon grid.
type IncomingConfig struct {
	LoExp float64 `yaml:"lo_exp"`
	HiExp float64 `yaml:"hi_exp"`
	Edges int     `yaml:"edges"`
}

// ResponseConfig controls response precomputation.
type ResponseConfig struct {
	GridPoints int     `yaml:"grid_points"`
	Workers    int     `yaml:"workers"`
	Area       float64 `yaml:"area"`
	Resolution float64 `yaml:"resolution"`
	// Snapshot is a directory of per-detector response snapshots, read
	// when present and written after a build.
	Snapshot string `yaml:"snapshot"`
}

// OrbitConfig selects the attitude provider: a TLE, or a fixed attitude
// when both lines are empty.
type OrbitConfig struct {
	TLE1       string     `yaml:"tle1"`
	TLE2       string     `yaml:"tle2"`
	Step       float64    `yaml:"step"`
	Quaternion [4]float64 `yaml:"quaternion"`
	Position   [3]float64 `yaml:"position"`
}

// SpectrumConfig is a fixed named shape or a free family with starting
// values. Norm is always the first parameter.
type SpectrumConfig struct {
	Family string    `yaml:"family"`
	Norm   float64   `yaml:"norm"`
	Params []float64 `yaml:"params"`
}

// DiffuseConfig toggles a grid-folded source.
type DiffuseConfig struct {
	Enabled  bool           `yaml:"enabled"`
	Spectrum SpectrumConfig `yaml:"spectrum"`
}

// PointConfig is a fixed-direction point source.
type PointConfig struct {
	Name     string         `yaml:"name"`
	RA       float64        `yaml:"ra"`
	Dec      float64        `yaml:"dec"`
	Spectrum SpectrumConfig `yaml:"spectrum"`
}

// ContinuumConfig is a template continuum term.
type ContinuumConfig struct {
	Name     string  `yaml:"name"`
	Template string  `yaml:"template"`
	Period   float64 `yaml:"period"`
	Phase    float64 `yaml:"phase"`
	Norm     float64 `yaml:"norm"`
}

// SAAConfig lists exit epochs (MET) with common starting values.
type SAAConfig struct {
	Exits []float64 `yaml:"exits"`
	Norm  float64   `yaml:"norm"`
	Decay float64   `yaml:"decay"`
}

// SourcesConfig enables components.
type SourcesConfig struct {
	EarthAlbedo DiffuseConfig     `yaml:"earth_albedo"`
	CGB         DiffuseConfig     `yaml:"cgb"`
	GC          DiffuseConfig     `yaml:"gc"`
	GC511       DiffuseConfig     `yaml:"gc_511"`
	Sun         DiffuseConfig     `yaml:"sun"`
	Points      []PointConfig     `yaml:"points"`
	Continuum   []ContinuumConfig `yaml:"continuum"`
	SAA         SAAConfig         `yaml:"saa"`
}

// Default returns a runnable configuration: twelve NaI detectors, the
// CTIME channel edges, and a one-hour window on the example orbit.
func Default() Config {
	return Config{
		Run: RunConfig{
			Start:              time.Date(2021, 10, 2, 0, 0, 0, 0, time.UTC),
			BinWidth:           2.048,
			Bins:               1758,
			MaxGeometrySamples: 800,
		},
		Detectors: []string{"n0", "n1", "n2", "n3", "n4", "n5", "n6", "n7", "n8", "n9", "na", "nb"},
		Energy: EnergyConfig{
			Edges: []float64{4.4, 12.5, 26.6, 50.4, 101.1, 293.4, 538.8, 997.7, 2000},
		},
		Incoming: IncomingConfig{LoExp: 0.5, HiExp: 3.7, Edges: 301},
		Response: ResponseConfig{GridPoints: 4000, Area: 126, Resolution: 0.08},
		Orbit: OrbitConfig{
			TLE1: "1 25544U 98067A   21275.59097222  .00000204  00000-0  10270-4 0  9990",
			TLE2: "2 25544  51.6459 115.9059 0001817  61.3028  35.9198 15.49370953257760",
			Step: 30,
		},
		Interpolation: "linear",
		Sources: SourcesConfig{
			EarthAlbedo: DiffuseConfig{Enabled: true, Spectrum: SpectrumConfig{Family: "earth_albedo", Norm: 1}},
			CGB:         DiffuseConfig{Enabled: true, Spectrum: SpectrumConfig{Family: "cgb", Norm: 1}},
			Continuum: []ContinuumConfig{
				{Name: "constant", Template: "constant", Norm: 1},
			},
			SAA: SAAConfig{Norm: 10, Decay: 0.01},
		},
	}
}

// Load reads path over Default and validates the result.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("%w: parse %s: %v", ErrInvalidConfig, path, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Resolve loads flagPath, else $BKG_CONFIG, else returns Default.
func Resolve(flagPath string) (Config, string, error) {
	path := flagPath
	if path == "" {
		path = os.Getenv(EnvPath)
	}
	if path == "" {
		cfg := Default()
		return cfg, "", cfg.Validate()
	}
	cfg, err := Load(path)
	return cfg, path, err
}

// Validate checks everything that does not need the model packages.
func (c Config) Validate() error {
	var errs []error
	if c.Run.Bins < 1 || !(c.Run.BinWidth > 0) {
		errs = append(errs, fmt.Errorf("run needs bins >= 1 and bin_width > 0, got %d and %v", c.Run.Bins, c.Run.BinWidth))
	}
	if c.Run.MaxGeometrySamples != 0 && c.Run.MaxGeometrySamples < 2 {
		errs = append(errs, fmt.Errorf("max_geometry_samples must be >= 2, got %d", c.Run.MaxGeometrySamples))
	}
	if _, err := c.Layout(); err != nil {
		errs = append(errs, err)
	}
	if _, err := c.IncomingGrid(); err != nil {
		errs = append(errs, err)
	}
	if c.Response.GridPoints < 1 {
		errs = append(errs, fmt.Errorf("response.grid_points must be >= 1, got %d", c.Response.GridPoints))
	}
	if (c.Orbit.TLE1 == "") != (c.Orbit.TLE2 == "") {
		errs = append(errs, errors.New("orbit needs both TLE lines or neither"))
	}
	if c.Orbit.TLE1 == "" && c.Orbit.Quaternion == [4]float64{} {
		errs = append(errs, errors.New("fixed orbit needs a non-zero quaternion"))
	}
	switch c.Interpolation {
	case "", "linear", "cubic":
	default:
		errs = append(errs, fmt.Errorf("interpolation %q is not linear or cubic", c.Interpolation))
	}
	names := map[string]bool{}
	for _, p := range c.Sources.Points {
		if p.Name == "" || names[p.Name] {
			errs = append(errs, fmt.Errorf("point source name %q is empty or repeated", p.Name))
		}
		names[p.Name] = true
		if p.Dec < -90 || p.Dec > 90 {
			errs = append(errs, fmt.Errorf("point source %s dec %v out of range", p.Name, p.Dec))
		}
	}
	for _, cc := range c.Sources.Continuum {
		if cc.Name == "" || names[cc.Name] {
			errs = append(errs, fmt.Errorf("continuum name %q is empty or repeated", cc.Name))
		}
		names[cc.Name] = true
		switch cc.Template {
		case "constant", "orbital":
		default:
			errs = append(errs, fmt.Errorf("continuum %s template %q is not constant or orbital", cc.Name, cc.Template))
		}
	}
	if len(c.Sources.SAA.Exits) > 0 && !(c.Sources.SAA.Decay > 0) {
		errs = append(errs, fmt.Errorf("saa.decay must be positive, got %v", c.Sources.SAA.Decay))
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
	}
	return nil
}

// Layout builds the model layout, checking detector names.
func (c Config) Layout() (model.Layout, error) {
	for _, d := range c.Detectors {
		if _, err := model.LookupDetector(d); err != nil {
			return model.Layout{}, err
		}
	}
	grid, err := model.NewEnergyGrid(c.Energy.Edges)
	if err != nil {
		return model.Layout{}, err
	}
	l := model.Layout{Detectors: c.Detectors, Energy: grid, Echans: c.Energy.Echans}
	if err := l.Validate(); err != nil {
		return model.Layout{}, err
	}
	return l, nil
}

// IncomingGrid builds the incoming photon grid.
func (c Config) IncomingGrid() (model.EnergyGrid, error) {
	return model.LogSpaceEnergyGrid(c.Incoming.LoExp, c.Incoming.HiExp, c.Incoming.Edges)
}

// TimeBins builds the contiguous bin grid starting at Run.Start.
func (c Config) TimeBins() (model.TimeBinGrid, error) {
	return model.ContiguousTimeBins(core.TimeToMET(c.Run.Start), c.Run.BinWidth, c.Run.Bins)
}
