package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"text/tabwriter"

	"github.com/google/subcommands"

	"github.com/ahmedtd/curvefit/config"
	"github.com/ahmedtd/curvefit/history"
)

type HistoryCommand struct {
	cfg   *config.Config
	limit int
}

var _ subcommands.Command = (*HistoryCommand)(nil)

func (*HistoryCommand) Name() string {
	return "history"
}

func (*HistoryCommand) Synopsis() string {
	return "List recent training runs"
}

func (*HistoryCommand) Usage() string {
	return ``
}

func (c *HistoryCommand) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.cfg.HistoryPath, "history", c.cfg.HistoryPath, "SQLite file recording runs")
	f.IntVar(&c.limit, "limit", 10, "Number of runs to list")
}

func (c *HistoryCommand) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if err := c.executeErr(ctx); err != nil {
		log.Printf("Error: %v", err)
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}

func (c *HistoryCommand) executeErr(ctx context.Context) error {
	store, err := history.Open(ctx, c.cfg.HistoryPath)
	if err != nil {
		return fmt.Errorf("while opening run history: %w", err)
	}
	defer store.Close()

	runs, err := store.Recent(ctx, c.limit)
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTIME\tCOMMAND\tN\tRANGE\tSLOPE\tEXP\tLR\tEPOCHS\tITERS\tFINAL LOSS\tTEST ERROR\tMEAN COST")
	for _, r := range runs {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%d\t%g\t%g\t%d\t%g\t%d\t%d\t%.6f\t%.6f\t%.6f\n",
			r.ID,
			r.Time.Format("2006-01-02 15:04:05"),
			r.Command,
			r.DataCount,
			r.Range,
			r.Slope,
			r.Exponent,
			r.LearningRate,
			r.Epochs,
			r.Iterations,
			r.FinalLoss,
			r.TestError,
			r.MeanCost,
		)
	}
	return tw.Flush()
}
