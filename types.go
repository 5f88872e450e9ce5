package graphbo

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"
)

//////
// Const, vars, types.
//////

var (
	// ErrInvalidConfiguration is returned when a caller hands in something that
	// can never be sampled: malformed categories, a partition that does not
	// cover every variable exactly once, a state whose vectors have the wrong
	// length, or a nonsensical sampler configuration.
	//
	// Infeasible-but-well-formed values (a noise variance above the ceiling, an
	// oversized subgraph) are NOT errors; priors report those as -Inf.
	ErrInvalidConfiguration = errors.New("invalid configuration")

	// ErrLikelihood wraps failures of the marginal likelihood collaborator.
	ErrLikelihood = errors.New("likelihood evaluation failed")
)

// Phase names reported through ProgressUpdate.
const (
	PhaseBurnIn   = "BurnIn"
	PhaseSampling = "Sampling"
)

// ProgressUpdate represents the current state of a sampling run.
type ProgressUpdate struct {
	// ChainID identifies the chain emitting the update.
	ChainID string

	// Phase indicates whether we're in burn-in or collecting samples.
	Phase string

	// CurrentIteration is the current sweep number inside the phase.
	CurrentIteration int

	// TotalIterations is the number of sweeps the phase will run.
	TotalIterations int

	// NumSubsets is the number of subgraphs in the current partition.
	NumSubsets int

	// LogPosterior is the unnormalized log posterior of the current state.
	LogPosterior float64

	// AcceptanceRate is the overall acceptance rate so far.
	AcceptanceRate float64
}

// OutputRange is the observed output span used by the constant-mean prior.
type OutputRange struct {
	Min float64 `yaml:"min" json:"min"`
	Max float64 `yaml:"max" json:"max"`
}

// StepSizes holds the standard deviations of the Gaussian random-walk
// proposals for the continuous hyperparameters.
//
// Fields:
// - LogBeta: step for each log edge weight
// - LogAmp: step for the log kernel amplitude
// - LogNoiseVar: step for the log noise variance
// - ConstMean: step for the constant mean; zero means "one tenth of the
// observed output range"
type StepSizes struct {
	LogBeta     float64 `yaml:"log_beta"`
	LogAmp      float64 `yaml:"log_amp"`
	LogNoiseVar float64 `yaml:"log_noise_var"`
	ConstMean   float64 `yaml:"const_mean"`
}

// Moves toggles which parts of the state the sampler updates. Disabled parts
// stay fixed at their initial value.
type Moves struct {
	Partition   bool `yaml:"partition"`
	EdgeWeights bool `yaml:"edge_weights"`
	KernelAmp   bool `yaml:"kernel_amp"`
	NoiseVar    bool `yaml:"noise_var"`
	ConstMean   bool `yaml:"const_mean"`
}

// Config holds all configuration parameters for a sampling run.
//
// Fields explanation:
// - BurnIn: Number of sweeps discarded before samples are collected
// - Thin: Keep one sample every Thin sweeps
// - Seed: Seed of the chain's random source (0 = derived from the clock)
// - Steps: Random-walk proposal widths
// - Moves: Which state components are updated
// - ProgressChan: Optional progress updates
// - Logger: Structured logger, slog.Default() when nil
//
// Usage example:
//
//	config := DefaultConfig()
//	config.BurnIn = 100
//	config.Thin = 5
//	config.Steps.LogBeta = 0.5
//
// Note:
// - Create separate configs for parallel runs that report progress to
// different channels.
type Config struct {
	// BurnIn is the number of sweeps run before any sample is kept.
	// Recommended range: 50-500
	BurnIn int `yaml:"burn_in"`

	// Thin keeps every Thin-th sweep as a sample. Must be at least 1.
	Thin int `yaml:"thin"`

	// Seed seeds the random source. Chains started by RunChains use Seed+i.
	Seed uint64 `yaml:"seed"`

	// Steps holds the proposal widths.
	Steps StepSizes `yaml:"steps"`

	// Moves selects which components are sampled.
	Moves Moves `yaml:"moves"`

	// ProgressChan is used to send progress updates during sampling.
	// If nil, no updates will be sent.
	ProgressChan chan<- ProgressUpdate `yaml:"-"`

	// Logger receives structured run logs.
	Logger *slog.Logger `yaml:"-"`
}

//////
// Methods.
//////

// Validate checks the configuration for values the sampler cannot run with.
func (c Config) Validate() error {
	if c.BurnIn < 0 {
		return fmt.Errorf("%w: burn_in must be >= 0, got %d", ErrInvalidConfiguration, c.BurnIn)
	}

	if c.Thin < 1 {
		return fmt.Errorf("%w: thin must be >= 1, got %d", ErrInvalidConfiguration, c.Thin)
	}

	steps := map[string]float64{
		"log_beta":      c.Steps.LogBeta,
		"log_amp":       c.Steps.LogAmp,
		"log_noise_var": c.Steps.LogNoiseVar,
	}
	for name, step := range steps {
		if !(step > 0) {
			return fmt.Errorf("%w: step %s must be > 0, got %v", ErrInvalidConfiguration, name, step)
		}
	}

	if c.Steps.ConstMean < 0 {
		return fmt.Errorf("%w: step const_mean must be >= 0, got %v", ErrInvalidConfiguration, c.Steps.ConstMean)
	}

	return nil
}

func (c Config) logger() *slog.Logger {
	if c.Logger != nil {
		return c.Logger
	}

	return slog.Default()
}

//////
// Factory.
//////

// DefaultConfig returns a default configuration.
func DefaultConfig() Config {
	return Config{
		BurnIn: 100,
		Thin:   1,
		Steps: StepSizes{
			LogBeta:     0.5,
			LogAmp:      0.3,
			LogNoiseVar: 0.5,
		},
		Moves: Moves{
			Partition:   true,
			EdgeWeights: true,
			KernelAmp:   true,
			NoiseVar:    true,
			ConstMean:   true,
		},
		ProgressChan: nil, // Default to no progress updates.
	}
}

// ParseConfig decodes a YAML document on top of DefaultConfig, so omitted
// keys keep their defaults.
//
// Example document:
//
//	burn_in: 200
//	thin: 2
//	seed: 7
//	steps:
//	  log_beta: 0.4
//	moves:
//	  const_mean: false
func ParseConfig(data []byte) (Config, error) {
	config := DefaultConfig()

	if err := yaml.Unmarshal(data, &config); err != nil {
		return Config{}, fmt.Errorf("%w: decode yaml: %v", ErrInvalidConfiguration, err)
	}

	if err := config.Validate(); err != nil {
		return Config{}, err
	}

	return config, nil
}

// LoadConfig reads and parses a YAML config file.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config %s: %w", path, err)
	}

	return ParseConfig(data)
}
