// Package config loads curvefit settings.  Values are layered: built-in
// defaults, then a .env file, then CURVEFIT_* environment variables, then
// command-line flags.
package config

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"

	"github.com/ahmedtd/curvefit/chart"
	"github.com/ahmedtd/curvefit/points"
	"github.com/ahmedtd/curvefit/session"
	"github.com/ahmedtd/curvefit/toolbox"
)

type Config struct {
	// Data generation
	DataCount int
	Range     float64
	Slope     float64
	Exponent  int

	// Training
	LearningRate       float64
	Epochs             int
	TrainingIterations int
	HiddenUnits        int
	Optimizer          string
	Seed               uint64

	// Point formatting and charts
	Decimals    int
	Scale       float64
	AxisLimit   float64 // symmetric limit for the data chart axes; 0 fits the data
	ChartFormat string

	OutputDir   string
	HistoryPath string // empty disables the run history
	LogEvery    int
}

func Default() *Config {
	return &Config{
		DataCount: 50,
		Range:     0.5,
		Slope:     1,
		Exponent:  1,

		LearningRate:       0.05,
		Epochs:             100,
		TrainingIterations: 10,
		HiddenUnits:        1,
		Optimizer:          toolbox.OptimizerSGD,
		Seed:               1,

		Decimals:    3,
		Scale:       1,
		ChartFormat: "png",

		OutputDir:   ".",
		HistoryPath: "curvefit-history.sqlite3",
		LogEvery:    10,
	}
}

// Load builds a Config from the defaults, envFile (or, if envFile is empty, the
// first .env found in the working directory or up to 4 of its parents), and
// the process environment.  The environment wins over the file.
func Load(envFile string) (*Config, error) {
	if envFile == "" {
		envFile = findEnvFile()
	}

	fileVals := map[string]string{}
	if envFile != "" {
		var err error
		fileVals, err = godotenv.Read(envFile)
		if err != nil {
			return nil, fmt.Errorf("while reading %s: %w", envFile, err)
		}
	}

	lookup := func(key string) (string, bool) {
		if v, ok := os.LookupEnv(key); ok {
			return v, true
		}
		v, ok := fileVals[key]
		return v, ok
	}

	cfg := Default()
	if err := cfg.applyEnv(lookup); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func findEnvFile() string {
	dir, err := os.Getwd()
	if err != nil {
		return ""
	}

	for i := 0; i < 5; i++ {
		envPath := filepath.Join(dir, ".env")
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return ""
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	ints := map[string]*int{
		"CURVEFIT_DATA_COUNT":          &c.DataCount,
		"CURVEFIT_EXPONENT":            &c.Exponent,
		"CURVEFIT_EPOCHS":              &c.Epochs,
		"CURVEFIT_TRAINING_ITERATIONS": &c.TrainingIterations,
		"CURVEFIT_HIDDEN_UNITS":        &c.HiddenUnits,
		"CURVEFIT_DECIMALS":            &c.Decimals,
		"CURVEFIT_LOG_EVERY":           &c.LogEvery,
	}
	floats := map[string]*float64{
		"CURVEFIT_RANGE":         &c.Range,
		"CURVEFIT_SLOPE":         &c.Slope,
		"CURVEFIT_LEARNING_RATE": &c.LearningRate,
		"CURVEFIT_SCALE":         &c.Scale,
		"CURVEFIT_AXIS_LIMIT":    &c.AxisLimit,
	}
	strs := map[string]*string{
		"CURVEFIT_OPTIMIZER":    &c.Optimizer,
		"CURVEFIT_CHART_FORMAT": &c.ChartFormat,
		"CURVEFIT_OUTPUT_DIR":   &c.OutputDir,
		"CURVEFIT_HISTORY":      &c.HistoryPath,
	}

	for key, dst := range ints {
		if v, ok := lookup(key); ok {
			n, err := strconv.Atoi(strings.TrimSpace(v))
			if err != nil {
				return fmt.Errorf("%s: %w", key, err)
			}
			*dst = n
		}
	}
	for key, dst := range floats {
		if v, ok := lookup(key); ok {
			f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
			if err != nil {
				return fmt.Errorf("%s: %w", key, err)
			}
			*dst = f
		}
	}
	for key, dst := range strs {
		if v, ok := lookup(key); ok {
			*dst = strings.TrimSpace(v)
		}
	}
	if v, ok := lookup("CURVEFIT_SEED"); ok {
		seed, err := strconv.ParseUint(strings.TrimSpace(v), 10, 64)
		if err != nil {
			return fmt.Errorf("CURVEFIT_SEED: %w", err)
		}
		c.Seed = seed
	}
	return nil
}

// RegisterFlags binds the hyperparameter flags to c, using the current values
// as defaults.
func (c *Config) RegisterFlags(f *flag.FlagSet) {
	f.IntVar(&c.DataCount, "data-count", c.DataCount, "Number of samples to draw")
	f.Float64Var(&c.Range, "range", c.Range, "Standard deviation of the noise added to y")
	f.Float64Var(&c.Slope, "slope", c.Slope, "Slope of the generating curve")
	f.IntVar(&c.Exponent, "exponent", c.Exponent, "Exponent of x in the generating curve")

	f.Float64Var(&c.LearningRate, "learning-rate", c.LearningRate, "Optimizer learning rate")
	f.IntVar(&c.Epochs, "epochs", c.Epochs, "Full-batch epochs per training run")
	f.IntVar(&c.TrainingIterations, "iterations", c.TrainingIterations, "Training runs performed by the run command")
	f.IntVar(&c.HiddenUnits, "hidden-units", c.HiddenUnits, "Width of the ReLU layer")
	f.StringVar(&c.Optimizer, "optimizer", c.Optimizer, "Optimizer: sgd or adam")
	f.Uint64Var(&c.Seed, "seed", c.Seed, "Seed for data generation and weight initialization")

	f.IntVar(&c.Decimals, "decimals", c.Decimals, "Decimal places kept in chart points")
	f.Float64Var(&c.Scale, "scale", c.Scale, "Factor applied to chart points before rounding")
	f.Float64Var(&c.AxisLimit, "axis-limit", c.AxisLimit, "Symmetric axis limit for the data chart (0 fits the data)")
	f.StringVar(&c.ChartFormat, "chart-format", c.ChartFormat, "Chart output format: png, svg, pdf or json")

	f.StringVar(&c.OutputDir, "output-dir", c.OutputDir, "Directory for data, checkpoints and charts")
	f.StringVar(&c.HistoryPath, "history", c.HistoryPath, "SQLite file recording runs (empty to disable)")
	f.IntVar(&c.LogEvery, "log-every", c.LogEvery, "Log the loss every N epochs (0 to disable)")
}

// Validate verifies the config is runnable.
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("config is nil")
	}
	if c.DataCount < 0 {
		return fmt.Errorf("data count must be >= 0 (got %d)", c.DataCount)
	}
	if c.Range < 0 {
		return fmt.Errorf("range must be >= 0 (got %v)", c.Range)
	}
	if c.Exponent < 0 {
		return fmt.Errorf("exponent must be >= 0 (got %d)", c.Exponent)
	}
	if c.LearningRate <= 0 {
		return fmt.Errorf("learning rate must be > 0 (got %v)", c.LearningRate)
	}
	if c.Epochs <= 0 {
		return fmt.Errorf("epochs must be > 0 (got %d)", c.Epochs)
	}
	if c.TrainingIterations <= 0 {
		return fmt.Errorf("training iterations must be > 0 (got %d)", c.TrainingIterations)
	}
	if c.HiddenUnits <= 0 {
		return fmt.Errorf("hidden units must be > 0 (got %d)", c.HiddenUnits)
	}
	switch strings.ToLower(c.Optimizer) {
	case toolbox.OptimizerSGD, toolbox.OptimizerAdam:
	default:
		return fmt.Errorf("unknown optimizer %q", c.Optimizer)
	}
	if c.Decimals < 0 || c.Decimals > 10 {
		return fmt.Errorf("decimals must be in [0, 10] (got %d)", c.Decimals)
	}
	if c.Scale <= 0 {
		return fmt.Errorf("scale must be > 0 (got %v)", c.Scale)
	}
	if c.AxisLimit < 0 {
		return fmt.Errorf("axis limit must be >= 0 (got %v)", c.AxisLimit)
	}
	switch c.ChartFormat {
	case "png", "svg", "pdf", "json":
	default:
		return fmt.Errorf("unsupported chart format %q", c.ChartFormat)
	}
	return nil
}

func (c *Config) Hyperparameters() session.Hyperparameters {
	return session.Hyperparameters{
		DataCount:          c.DataCount,
		Range:              c.Range,
		Slope:              c.Slope,
		Exponent:           c.Exponent,
		LearningRate:       float32(c.LearningRate),
		Epochs:             c.Epochs,
		TrainingIterations: c.TrainingIterations,
		HiddenUnits:        c.HiddenUnits,
		Optimizer:          strings.ToLower(c.Optimizer),
	}
}

func (c *Config) PointOptions() points.Options {
	return points.Options{Decimals: c.Decimals, Scale: c.Scale}
}

// DataAxes returns the axes for the data chart.
func (c *Config) DataAxes() (x, y chart.Axis) {
	if c.AxisLimit == 0 {
		return chart.Axis{Label: "x"}, chart.Axis{Label: "y"}
	}
	return chart.Limits("x", -c.AxisLimit, c.AxisLimit), chart.Limits("y", -c.AxisLimit, c.AxisLimit)
}

// OutputPath joins name onto OutputDir.
func (c *Config) OutputPath(name string) string {
	return filepath.Join(c.OutputDir, name)
}

// ChartPath is the output path for the chart called name in ChartFormat.
func (c *Config) ChartPath(name string) string {
	return c.OutputPath(name + "." + c.ChartFormat)
}
