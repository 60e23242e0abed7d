package main

import (
	"context"
	"flag"
	"fmt"
	"log"

	"github.com/google/subcommands"

	"github.com/ahmedtd/curvefit/config"
	"github.com/ahmedtd/curvefit/dataset"
)

type RandomizeCommand struct {
	cfg *config.Config
}

var _ subcommands.Command = (*RandomizeCommand)(nil)

func (*RandomizeCommand) Name() string {
	return "randomize"
}

func (*RandomizeCommand) Synopsis() string {
	return "Draw a new noisy dataset"
}

func (*RandomizeCommand) Usage() string {
	return `randomize [flags]:
  Draws -data-count samples of y = slope * x^exponent + noise and writes them
  to <output-dir>/data.npz along with the data chart.
`
}

func (c *RandomizeCommand) SetFlags(f *flag.FlagSet) {
	c.cfg.RegisterFlags(f)
}

func (c *RandomizeCommand) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if err := c.executeErr(ctx); err != nil {
		log.Printf("Error: %v", err)
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}

func (c *RandomizeCommand) executeErr(ctx context.Context) error {
	if err := c.cfg.Validate(); err != nil {
		return fmt.Errorf("while validating config: %w", err)
	}
	if err := prepareOutputDir(c.cfg); err != nil {
		return err
	}

	s := newSession(c.cfg)

	path := c.cfg.OutputPath(dataFileName)
	if err := dataset.SaveNPZ(path, s.Dataset()); err != nil {
		return fmt.Errorf("while saving data: %w", err)
	}
	log.Printf("Wrote %d samples to %s", s.Dataset().Len(), path)

	return saveDataChart(c.cfg, s)
}
