package main

import (
	"context"
	"flag"
	"fmt"
	"log"

	"github.com/google/subcommands"
	"gonum.org/v1/gonum/stat"

	"github.com/ahmedtd/curvefit/config"
	"github.com/ahmedtd/curvefit/dataset"
	"github.com/ahmedtd/curvefit/session"
	"github.com/ahmedtd/curvefit/trainer"
)

type RunCommand struct {
	cfg   *config.Config
	files modelFiles
}

var _ subcommands.Command = (*RunCommand)(nil)

func (*RunCommand) Name() string {
	return "run"
}

func (*RunCommand) Synopsis() string {
	return "Train repeatedly on freshly drawn data"
}

func (*RunCommand) Usage() string {
	return `run [flags]:
  Trains -iterations times, drawing new data before each training run, and
  writes the cost chart (mean loss per run) plus the last loss and data charts.
`
}

func (c *RunCommand) SetFlags(f *flag.FlagSet) {
	c.cfg.RegisterFlags(f)
	f.StringVar(&c.files.fromCheckpointFile, "from-checkpoint", "", "Path to initial weights to load")
	f.StringVar(&c.files.outputWeightFile, "output-weight-file", "", "Path to save weights (default <output-dir>/model.safetensors)")
}

func (c *RunCommand) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if err := c.executeErr(ctx); err != nil {
		log.Printf("Error: %v", err)
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}

func (c *RunCommand) executeErr(ctx context.Context) error {
	if err := c.cfg.Validate(); err != nil {
		return fmt.Errorf("while validating config: %w", err)
	}
	if err := prepareOutputDir(c.cfg); err != nil {
		return err
	}

	s := newSession(c.cfg)
	if c.files.fromCheckpointFile != "" {
		if err := loadCheckpoint(s, c.files.fromCheckpointFile); err != nil {
			return fmt.Errorf("while loading initial checkpoint: %w", err)
		}
	}

	meanCost, err := repeatTraining(ctx, s)
	if err != nil {
		return err
	}

	if err := writeCheckpoint(c.files.outputPath(c.cfg), s.Network(), s.LastHistory().Optimizer); err != nil {
		return fmt.Errorf("while writing checkpoint: %w", err)
	}
	if err := saveRunCharts(c.cfg, s); err != nil {
		return err
	}
	return recordRun(ctx, c.cfg, c.Name(), s, len(s.CostPoints), meanCost)
}

// repeatTraining runs s and returns the mean cost over the iterations that
// trained, or 0 when none did.
func repeatTraining(ctx context.Context, s *session.Session) (float32, error) {
	costs := []float64{}
	collect := trainer.IterationObserverFunc(func(it trainer.Iteration) {
		if it.Trained() {
			costs = append(costs, float64(it.Cost))
		}
	})
	s.IterationObservers = append(s.IterationObservers, collect)

	if err := s.Run(ctx); err != nil {
		return 0, fmt.Errorf("while running %d training iterations: %w", s.TrainingIterations, err)
	}

	mean := 0.0
	if len(costs) > 0 {
		mean = stat.Mean(costs, nil)
	}
	log.Printf("Finished iterations=%d mean-cost=%f test-error=%f", len(costs), mean, s.TestError)
	return float32(mean), nil
}

func saveRunCharts(cfg *config.Config, s *session.Session) error {
	if err := saveChart(cfg, "cost", s.CostChart()); err != nil {
		return err
	}
	if err := saveChart(cfg, "loss", s.LossChart()); err != nil {
		return err
	}
	return saveDataChart(cfg, s)
}

// DemoCommand walks through every step once: draw data, train on it, predict
// it, then run repeated training.
type DemoCommand struct {
	cfg *config.Config
}

var _ subcommands.Command = (*DemoCommand)(nil)

func (*DemoCommand) Name() string {
	return "demo"
}

func (*DemoCommand) Synopsis() string {
	return "Randomize, train, predict and run in one go"
}

func (*DemoCommand) Usage() string {
	return ``
}

func (c *DemoCommand) SetFlags(f *flag.FlagSet) {
	c.cfg.RegisterFlags(f)
}

func (c *DemoCommand) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if err := c.executeErr(ctx); err != nil {
		log.Printf("Error: %v", err)
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}

func (c *DemoCommand) executeErr(ctx context.Context) error {
	if err := c.cfg.Validate(); err != nil {
		return fmt.Errorf("while validating config: %w", err)
	}
	if err := prepareOutputDir(c.cfg); err != nil {
		return err
	}

	s := newSession(c.cfg)
	if err := dataset.SaveNPZ(c.cfg.OutputPath(dataFileName), s.Dataset()); err != nil {
		return fmt.Errorf("while saving data: %w", err)
	}

	if err := s.Train(); err != nil {
		return fmt.Errorf("while training: %w", err)
	}
	s.Predict()
	log.Printf("Single run final-loss=%f test-error=%f", s.LastHistory().FinalLoss(), s.TestError)
	if err := saveChart(c.cfg, "train-loss", s.LossChart()); err != nil {
		return err
	}
	if err := saveChart(c.cfg, "train-data", s.DataChart(c.cfg.DataAxes())); err != nil {
		return err
	}
	if err := recordRun(ctx, c.cfg, "train", s, 1, s.LastHistory().MeanLoss()); err != nil {
		return err
	}

	meanCost, err := repeatTraining(ctx, s)
	if err != nil {
		return err
	}
	if err := writeCheckpoint(c.cfg.OutputPath(checkpointFileName), s.Network(), s.LastHistory().Optimizer); err != nil {
		return fmt.Errorf("while writing checkpoint: %w", err)
	}
	if err := saveRunCharts(c.cfg, s); err != nil {
		return err
	}
	return recordRun(ctx, c.cfg, "run", s, len(s.CostPoints), meanCost)
}
