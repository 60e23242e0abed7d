// Command curvefit fits a small ReLU network to noisy samples of
// y = slope * x^exponent and charts the result.
//
// Settings come from defaults, a .env file, CURVEFIT_* environment variables
// and per-command flags, in that order.
//
// Generate data:    `go run ./cmd/curvefit randomize -data-count=100`
// Train:            `go run ./cmd/curvefit train -epochs=200`
// Repeated runs:    `go run ./cmd/curvefit run -iterations=20`
// Everything:       `go run ./cmd/curvefit demo -output-dir=out`
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"log"
	"os"
	"os/signal"

	"github.com/google/subcommands"

	"github.com/ahmedtd/curvefit/chart"
	"github.com/ahmedtd/curvefit/config"
	"github.com/ahmedtd/curvefit/dataset"
	"github.com/ahmedtd/curvefit/history"
	"github.com/ahmedtd/curvefit/session"
	"github.com/ahmedtd/curvefit/toolbox"
	"github.com/ahmedtd/curvefit/trainer"
)

const (
	dataFileName       = "data.npz"
	checkpointFileName = "model.safetensors"
)

func main() {
	envFile := flag.String("env-file", "", "Path to a .env file (default: nearest .env in the working directory or its parents)")

	// Commands bind their flags to cfg when they run, after it has been
	// loaded below.
	cfg := config.Default()

	subcommands.Register(subcommands.HelpCommand(), "")
	subcommands.Register(subcommands.FlagsCommand(), "")
	subcommands.Register(subcommands.CommandsCommand(), "")

	subcommands.Register(&RandomizeCommand{cfg: cfg}, "data")
	subcommands.Register(&ResetCommand{cfg: cfg}, "model")
	subcommands.Register(&TrainCommand{cfg: cfg}, "model")
	subcommands.Register(&PredictCommand{cfg: cfg}, "model")
	subcommands.Register(&RunCommand{cfg: cfg}, "model")
	subcommands.Register(&DemoCommand{cfg: cfg}, "")
	subcommands.Register(&HistoryCommand{cfg: cfg}, "")

	flag.Parse()

	loaded, err := config.Load(*envFile)
	if err != nil {
		log.Printf("Error: while loading config: %v", err)
		os.Exit(int(subcommands.ExitFailure))
	}
	*cfg = *loaded

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	os.Exit(int(subcommands.Execute(ctx)))
}

func newSession(cfg *config.Config) *session.Session {
	s := session.New(cfg.Hyperparameters(), cfg.PointOptions(), cfg.Seed)

	logger := trainer.LogObserver{Interval: cfg.LogEvery}
	s.EpochObservers = append(s.EpochObservers, logger)
	s.IterationObservers = append(s.IterationObservers, logger)
	return s
}

func prepareOutputDir(cfg *config.Config) error {
	if err := os.MkdirAll(cfg.OutputDir, 0o755); err != nil {
		return fmt.Errorf("while creating output directory: %w", err)
	}
	return nil
}

// loadData replaces the session's data with the samples at path.  A missing
// file keeps the freshly drawn data.
func loadData(s *session.Session, path string) error {
	ds, err := dataset.LoadNPZ(path)
	if errors.Is(err, fs.ErrNotExist) {
		log.Printf("No data at %s; using %d freshly drawn samples", path, s.Dataset().Len())
		return nil
	}
	if err != nil {
		return fmt.Errorf("while loading data: %w", err)
	}
	s.SetDataset(ds)
	log.Printf("Loaded %d samples from %s", ds.Len(), path)
	return nil
}

// loadCheckpoint restores the session's network, and the optimizer state if
// the checkpoint holds state for the configured optimizer.
func loadCheckpoint(s *session.Session, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("while opening checkpoint file: %w", err)
	}
	defer f.Close()

	tensors, err := toolbox.ReadSafeTensors(f)
	if err != nil {
		return fmt.Errorf("while reading checkpoint tensors: %w", err)
	}

	if err := s.Network().LoadTensors(tensors); err != nil {
		return fmt.Errorf("while restoring network: %w", err)
	}
	if _, ok := tensors[s.Optimizer+".step"]; ok {
		s.ResumeOptimizer(tensors)
	}

	return nil
}

// writeCheckpoint saves the network and, when opt is non-nil, its optimizer
// state.
func writeCheckpoint(path string, net *toolbox.Network, opt toolbox.Optimizer) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("while creating checkpoint file: %w", err)
	}
	defer f.Close()

	tensors := map[string]*toolbox.AF32{}
	net.DumpTensors(tensors)
	if opt != nil {
		opt.DumpTensors(tensors)
	}

	if err := toolbox.WriteSafeTensors(f, tensors); err != nil {
		return fmt.Errorf("while writing checkpoint tensors: %w", err)
	}

	return f.Close()
}

func saveChart(cfg *config.Config, name string, c *chart.Chart) error {
	path := cfg.ChartPath(name)
	if err := chart.Save(path, c); err != nil {
		return fmt.Errorf("while saving %s chart: %w", name, err)
	}
	log.Printf("Wrote %s", path)
	return nil
}

func saveDataChart(cfg *config.Config, s *session.Session) error {
	x, y := cfg.DataAxes()
	return saveChart(cfg, "data", s.DataChart(x, y))
}

// recordRun appends a row to the run history.  It is a no-op when the history
// is disabled.
func recordRun(ctx context.Context, cfg *config.Config, command string, s *session.Session, iterations int, meanCost float32) error {
	if cfg.HistoryPath == "" {
		return nil
	}

	store, err := history.Open(ctx, cfg.HistoryPath)
	if err != nil {
		return fmt.Errorf("while opening run history: %w", err)
	}
	defer store.Close()

	_, err = store.Record(ctx, history.Run{
		Command:      command,
		DataCount:    s.Dataset().Len(),
		Range:        s.Range,
		Slope:        s.Slope,
		Exponent:     s.Exponent,
		LearningRate: float64(s.LearningRate),
		Epochs:       s.Epochs,
		Iterations:   iterations,
		FinalLoss:    float64(s.LastHistory().FinalLoss()),
		TestError:    float64(s.TestError),
		MeanCost:     float64(meanCost),
	})
	if err != nil {
		return fmt.Errorf("while recording run: %w", err)
	}
	return nil
}
