// Package trainer runs full-batch training of the curve-fitting network,
// single-shot prediction, and repeated training runs over freshly drawn data.
package trainer

import (
	"context"
	"fmt"
	"log"
	"math/rand/v2"

	"gonum.org/v1/gonum/stat"

	"github.com/ahmedtd/curvefit/dataset"
	"github.com/ahmedtd/curvefit/toolbox"
)

// NewNetwork builds Linear(1->hidden) with ReLU followed by Linear(hidden->1).
func NewNetwork(hidden int, r *rand.Rand) *toolbox.Network {
	if hidden <= 0 {
		hidden = 1
	}
	return &toolbox.Network{
		LossFunction: toolbox.MeanSquaredError,
		Layers: []*toolbox.Layer{
			toolbox.MakeDense(toolbox.ReLU, 1, hidden, r),
			toolbox.MakeDense(toolbox.Linear, hidden, 1, r),
		},
	}
}

type Config struct {
	LearningRate float32
	Epochs       int
	Optimizer    string // toolbox.OptimizerSGD (default) or toolbox.OptimizerAdam

	// OptimizerState, if set, is loaded into the optimizer before the first
	// epoch.
	OptimizerState map[string]*toolbox.AF32
}

func (c Config) Validate() error {
	if c.LearningRate <= 0 {
		return fmt.Errorf("learning rate must be > 0 (got %v)", c.LearningRate)
	}
	if c.Epochs <= 0 {
		return fmt.Errorf("epochs must be > 0 (got %d)", c.Epochs)
	}
	return nil
}

// History is the outcome of one training run.
type History struct {
	// Losses holds one MSE value per epoch, measured on the forward pass
	// before that epoch's update.
	Losses []float32

	// Optimizer is the optimizer used for the run, so callers can checkpoint
	// its state.  Nil when nothing was trained.
	Optimizer toolbox.Optimizer
}

func (h History) FinalLoss() float32 {
	if len(h.Losses) == 0 {
		return 0
	}
	return h.Losses[len(h.Losses)-1]
}

// MeanLoss is the cost of the run: the mean of the per-epoch losses.
func (h History) MeanLoss() float32 {
	if len(h.Losses) == 0 {
		return 0
	}
	vals := make([]float64, len(h.Losses))
	for i, l := range h.Losses {
		vals[i] = float64(l)
	}
	return float32(stat.Mean(vals, nil))
}

// Train runs cfg.Epochs full-batch steps of cfg.Optimizer over ds, updating
// net in place.  An empty dataset is a no-op that returns an empty History.
func Train(net *toolbox.Network, ds *dataset.Dataset, cfg Config, observers ...EpochObserver) (History, error) {
	if err := cfg.Validate(); err != nil {
		return History{}, err
	}
	if ds.Empty() {
		return History{}, nil
	}

	x, y := ds.Tensors()

	opt, err := net.MakeOptimizer(cfg.Optimizer, cfg.LearningRate, ds.Len())
	if err != nil {
		return History{}, err
	}
	if cfg.OptimizerState != nil {
		if err := opt.LoadTensors(cfg.OptimizerState); err != nil {
			return History{}, fmt.Errorf("while restoring optimizer: %w", err)
		}
	}

	hist := History{
		Losses:    make([]float32, 0, cfg.Epochs),
		Optimizer: opt,
	}
	for epoch := 1; epoch <= cfg.Epochs; epoch++ {
		loss := opt.Step(x, y)
		hist.Losses = append(hist.Losses, loss)
		for _, o := range observers {
			o.OnEpochEnd(epoch, loss)
		}
	}

	timings := opt.StepTimings()
	log.Printf("train samples=%d epochs=%d final-loss=%f timings overall=%.3f forward=%.3f loss=%.3f backprop=%.3f weightupdate=%.3f",
		ds.Len(),
		cfg.Epochs,
		hist.FinalLoss(),
		timings.Overall.Seconds(),
		timings.Forward.Seconds(),
		timings.Loss.Seconds(),
		timings.Backpropagation.Seconds(),
		timings.WeightUpdate.Seconds(),
	)

	return hist, nil
}

type Prediction struct {
	Y   []float32
	MSE float32 // mean squared error against the dataset's y
}

// Predict runs one forward pass over ds.X.  ok is false, and nothing is
// computed, when ds is empty.
func Predict(net *toolbox.Network, ds *dataset.Dataset) (pred Prediction, ok bool) {
	if ds.Empty() {
		return Prediction{}, false
	}

	x, y := ds.Tensors()
	out := net.Apply(x)

	pred.Y = make([]float32, ds.Len())
	copy(pred.Y, out.V)
	pred.MSE = net.Loss(y, out, ds.Len())
	return pred, true
}

type RepeatConfig struct {
	Iterations int
	Data       dataset.Params
	Train      Config

	EpochObservers []EpochObserver
}

func (c RepeatConfig) Validate() error {
	if c.Iterations <= 0 {
		return fmt.Errorf("training iterations must be > 0 (got %d)", c.Iterations)
	}
	return c.Train.Validate()
}

// Iteration describes one finished repetition of Repeat.
type Iteration struct {
	Index   int // 1-based
	Data    *dataset.Dataset
	History History
	Cost    float32 // zero when the run drew no samples
}

// Trained reports whether the run drew samples and trained on them.
func (it Iteration) Trained() bool {
	return len(it.History.Losses) > 0
}

// Repeat trains net cfg.Iterations times, drawing a fresh dataset from src
// before each run, and returns the cost of every run that trained.  A run that
// draws no samples is still reported to observers but has no cost.  The
// network carries over from one run to the next.  Cancelling ctx stops between
// runs.
func Repeat(ctx context.Context, net *toolbox.Network, cfg RepeatConfig, src rand.Source, observers ...IterationObserver) ([]float32, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	costs := make([]float32, 0, cfg.Iterations)
	for i := 1; i <= cfg.Iterations; i++ {
		if err := ctx.Err(); err != nil {
			return costs, err
		}

		ds := dataset.Generate(cfg.Data, src)
		hist, err := Train(net, ds, cfg.Train, cfg.EpochObservers...)
		if err != nil {
			return costs, fmt.Errorf("while training iteration %d: %w", i, err)
		}

		it := Iteration{
			Index:   i,
			Data:    ds,
			History: hist,
			Cost:    hist.MeanLoss(),
		}
		if it.Trained() {
			costs = append(costs, it.Cost)
		}
		for _, o := range observers {
			o.OnIterationEnd(it)
		}
	}

	return costs, nil
}
