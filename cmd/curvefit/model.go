package main

import (
	"context"
	"flag"
	"fmt"
	"log"

	"github.com/google/subcommands"

	"github.com/ahmedtd/curvefit/config"
)

// modelFiles are the file flags shared by the commands that read data and a
// checkpoint.  Empty paths resolve inside -output-dir.
type modelFiles struct {
	dataFile           string
	fromCheckpointFile string
	outputWeightFile   string
}

func (m *modelFiles) setFlags(f *flag.FlagSet) {
	f.StringVar(&m.dataFile, "data-file", "", "Path to the samples written by randomize (default <output-dir>/data.npz)")
	f.StringVar(&m.fromCheckpointFile, "from-checkpoint", "", "Path to initial weights to load")
	f.StringVar(&m.outputWeightFile, "output-weight-file", "", "Path to save weights (default <output-dir>/model.safetensors)")
}

func (m *modelFiles) dataPath(cfg *config.Config) string {
	if m.dataFile != "" {
		return m.dataFile
	}
	return cfg.OutputPath(dataFileName)
}

func (m *modelFiles) outputPath(cfg *config.Config) string {
	if m.outputWeightFile != "" {
		return m.outputWeightFile
	}
	return cfg.OutputPath(checkpointFileName)
}

type ResetCommand struct {
	cfg   *config.Config
	files modelFiles
}

var _ subcommands.Command = (*ResetCommand)(nil)

func (*ResetCommand) Name() string {
	return "reset"
}

func (*ResetCommand) Synopsis() string {
	return "Write freshly initialized model weights"
}

func (*ResetCommand) Usage() string {
	return ``
}

func (c *ResetCommand) SetFlags(f *flag.FlagSet) {
	c.cfg.RegisterFlags(f)
	f.StringVar(&c.files.outputWeightFile, "output-weight-file", "", "Path to save weights (default <output-dir>/model.safetensors)")
}

func (c *ResetCommand) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if err := c.executeErr(ctx); err != nil {
		log.Printf("Error: %v", err)
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}

func (c *ResetCommand) executeErr(ctx context.Context) error {
	if err := c.cfg.Validate(); err != nil {
		return fmt.Errorf("while validating config: %w", err)
	}
	if err := prepareOutputDir(c.cfg); err != nil {
		return err
	}

	s := newSession(c.cfg)
	path := c.files.outputPath(c.cfg)
	if err := writeCheckpoint(path, s.Network(), nil); err != nil {
		return fmt.Errorf("while writing checkpoint: %w", err)
	}
	log.Printf("Wrote initial weights hidden-units=%d to %s", s.HiddenUnits, path)
	return nil
}

type TrainCommand struct {
	cfg   *config.Config
	files modelFiles
}

var _ subcommands.Command = (*TrainCommand)(nil)

func (*TrainCommand) Name() string {
	return "train"
}

func (*TrainCommand) Synopsis() string {
	return "Train the model on the current data"
}

func (*TrainCommand) Usage() string {
	return `train [flags]:
  Trains for -epochs full-batch steps on the saved data (or a fresh draw when
  there is none), then writes the weights, the loss chart and the data chart.
`
}

func (c *TrainCommand) SetFlags(f *flag.FlagSet) {
	c.cfg.RegisterFlags(f)
	c.files.setFlags(f)
}

func (c *TrainCommand) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if err := c.executeErr(ctx); err != nil {
		log.Printf("Error: %v", err)
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}

func (c *TrainCommand) executeErr(ctx context.Context) error {
	if err := c.cfg.Validate(); err != nil {
		return fmt.Errorf("while validating config: %w", err)
	}
	if err := prepareOutputDir(c.cfg); err != nil {
		return err
	}

	s := newSession(c.cfg)
	if err := loadData(s, c.files.dataPath(c.cfg)); err != nil {
		return err
	}
	if c.files.fromCheckpointFile != "" {
		if err := loadCheckpoint(s, c.files.fromCheckpointFile); err != nil {
			return fmt.Errorf("while loading initial checkpoint: %w", err)
		}
	}

	if s.Dataset().Empty() {
		log.Printf("No samples; nothing to train")
		return nil
	}

	if err := s.Train(); err != nil {
		return fmt.Errorf("while training: %w", err)
	}
	hist := s.LastHistory()
	log.Printf("Trained epochs=%d final-loss=%f test-error=%f", len(hist.Losses), hist.FinalLoss(), s.TestError)

	if err := writeCheckpoint(c.files.outputPath(c.cfg), s.Network(), hist.Optimizer); err != nil {
		return fmt.Errorf("while writing checkpoint: %w", err)
	}
	if err := saveChart(c.cfg, "loss", s.LossChart()); err != nil {
		return err
	}
	if err := saveDataChart(c.cfg, s); err != nil {
		return err
	}

	return recordRun(ctx, c.cfg, c.Name(), s, 1, hist.MeanLoss())
}

type PredictCommand struct {
	cfg         *config.Config
	files       modelFiles
	weightsFile string
}

var _ subcommands.Command = (*PredictCommand)(nil)

func (*PredictCommand) Name() string {
	return "predict"
}

func (*PredictCommand) Synopsis() string {
	return "Predict the current data with saved weights"
}

func (*PredictCommand) Usage() string {
	return ``
}

func (c *PredictCommand) SetFlags(f *flag.FlagSet) {
	c.cfg.RegisterFlags(f)
	f.StringVar(&c.files.dataFile, "data-file", "", "Path to the samples written by randomize (default <output-dir>/data.npz)")
	f.StringVar(&c.weightsFile, "weights", "", "Path to the weights produced by train (default <output-dir>/model.safetensors)")
}

func (c *PredictCommand) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if err := c.executeErr(ctx); err != nil {
		log.Printf("Error: %v", err)
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}

func (c *PredictCommand) executeErr(ctx context.Context) error {
	if err := c.cfg.Validate(); err != nil {
		return fmt.Errorf("while validating config: %w", err)
	}
	if err := prepareOutputDir(c.cfg); err != nil {
		return err
	}

	s := newSession(c.cfg)
	if err := loadData(s, c.files.dataPath(c.cfg)); err != nil {
		return err
	}

	weights := c.weightsFile
	if weights == "" {
		weights = c.cfg.OutputPath(checkpointFileName)
	}
	if err := loadCheckpoint(s, weights); err != nil {
		return fmt.Errorf("while loading weights: %w", err)
	}

	if s.Dataset().Empty() {
		log.Printf("No samples; nothing to predict")
		return nil
	}

	s.Predict()
	fmt.Printf("samples=%d test-error=%f\n", s.Dataset().Len(), s.TestError)

	if err := saveDataChart(c.cfg, s); err != nil {
		return err
	}
	return recordRun(ctx, c.cfg, c.Name(), s, 0, 0)
}
