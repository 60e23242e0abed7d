// Package session holds the state of one interactive curve-fitting session:
// the hyperparameters, the current dataset and model, and the point
// collections the charts are drawn from.  Its methods are the commands a
// front end invokes.  A Session is not safe for concurrent use.
package session

import (
	"context"
	"math/rand/v2"

	"github.com/ahmedtd/curvefit/dataset"
	"github.com/ahmedtd/curvefit/points"
	"github.com/ahmedtd/curvefit/toolbox"
	"github.com/ahmedtd/curvefit/trainer"
)

type Hyperparameters struct {
	DataCount int
	Range     float64
	Slope     float64
	Exponent  int

	LearningRate       float32
	Epochs             int
	TrainingIterations int

	HiddenUnits int
	Optimizer   string
}

func (h Hyperparameters) dataParams() dataset.Params {
	return dataset.Params{
		Count:    h.DataCount,
		Range:    h.Range,
		Slope:    h.Slope,
		Exponent: h.Exponent,
	}
}

func (h Hyperparameters) trainConfig() trainer.Config {
	return trainer.Config{
		LearningRate: h.LearningRate,
		Epochs:       h.Epochs,
		Optimizer:    h.Optimizer,
	}
}

type Session struct {
	Hyperparameters

	// Format controls rounding and scaling of every point collection.
	Format points.Options

	EpochObservers     []trainer.EpochObserver
	IterationObservers []trainer.IterationObserver

	DataPoints       []points.Point
	PredictionPoints []points.Point
	LossPoints       []points.Point
	CostPoints       []points.Point

	// TestError is the MSE of the last prediction against the current data.
	TestError float32

	// Iteration is the 1-based repetition Run is currently in, and 0 when no
	// run is in progress.
	Iteration int

	rng         *rand.Rand
	data        *dataset.Dataset
	net         *toolbox.Network
	lastHistory trainer.History

	// Loaded into the optimizer by the next Train, then dropped.
	optimizerState map[string]*toolbox.AF32
}

// New creates a session with a freshly initialized model and a first draw of
// data.  All randomness comes from seed.
func New(h Hyperparameters, format points.Options, seed uint64) *Session {
	s := &Session{
		Hyperparameters:  h,
		Format:           format,
		DataPoints:       []points.Point{},
		PredictionPoints: []points.Point{},
		LossPoints:       []points.Point{},
		CostPoints:       []points.Point{},
		rng:              rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
	}
	s.ResetModel()
	s.RandomizeData()
	return s
}

func (s *Session) Dataset() *dataset.Dataset {
	return s.data
}

// SetDataset replaces the current data, e.g. with samples loaded from disk.
// Predictions made for the previous data are dropped.
func (s *Session) SetDataset(ds *dataset.Dataset) {
	if ds == nil {
		ds = &dataset.Dataset{}
	}
	s.data = ds
	s.DataPoints = points.Format(ds.X, ds.Y, s.Format)
	s.PredictionPoints = []points.Point{}
	s.TestError = 0
}

func (s *Session) Network() *toolbox.Network {
	return s.net
}

// SetNetwork replaces the model, e.g. with one restored from a checkpoint.
func (s *Session) SetNetwork(net *toolbox.Network) {
	s.net = net
}

// ResumeOptimizer makes the next Train start its optimizer from state, as
// produced by Optimizer.DumpTensors.
func (s *Session) ResumeOptimizer(state map[string]*toolbox.AF32) {
	s.optimizerState = state
}

// LastHistory is the outcome of the most recent training run.
func (s *Session) LastHistory() trainer.History {
	return s.lastHistory
}

// RandomizeData draws a new dataset from the current hyperparameters.  The
// previous dataset is discarded, not modified.
func (s *Session) RandomizeData() {
	s.SetDataset(dataset.Generate(s.dataParams(), s.rng))
}

// ResetModel discards the current parameters and builds a new network.
func (s *Session) ResetModel() {
	s.net = trainer.NewNetwork(s.HiddenUnits, s.rng)
}

// Train fits the model to the current data and refreshes the loss curve and
// the predictions.  It does nothing when there is no data.
func (s *Session) Train() error {
	if s.data.Empty() {
		return nil
	}

	cfg := s.trainConfig()
	cfg.OptimizerState = s.optimizerState

	hist, err := trainer.Train(s.net, s.data, cfg, s.EpochObservers...)
	if err != nil {
		return err
	}
	s.optimizerState = nil
	s.lastHistory = hist
	s.LossPoints = points.Indexed(hist.Losses, s.Format)

	s.Predict()
	return nil
}

// Predict runs the model over the current data and records the predictions
// and the test error.  It does nothing when there is no data.
func (s *Session) Predict() {
	pred, ok := trainer.Predict(s.net, s.data)
	if !ok {
		return
	}
	s.PredictionPoints = points.Format(s.data.X, pred.Y, s.Format)
	s.TestError = pred.MSE
}

// Run repeats training TrainingIterations times, drawing fresh data before
// each repetition and recording one cost point per repetition that trained.
// A repetition that drew no samples leaves the loss curve untouched and adds
// no cost point.  Iteration is back to 0 when Run returns.
func (s *Session) Run(ctx context.Context) error {
	defer func() { s.Iteration = 0 }()

	s.CostPoints = []points.Point{}
	costs := []float32{}

	track := trainer.IterationObserverFunc(func(it trainer.Iteration) {
		s.Iteration = it.Index
		s.SetDataset(it.Data)
		if !it.Trained() {
			return
		}
		s.lastHistory = it.History
		s.LossPoints = points.Indexed(it.History.Losses, s.Format)
		costs = append(costs, it.Cost)
		s.CostPoints = points.Indexed(costs, s.Format)
	})

	observers := append([]trainer.IterationObserver{track}, s.IterationObservers...)
	cfg := trainer.RepeatConfig{
		Iterations: s.TrainingIterations,
		Data:       s.dataParams(),
		Train:      s.trainConfig(),

		EpochObservers: s.EpochObservers,
	}
	if _, err := trainer.Repeat(ctx, s.net, cfg, s.rng, observers...); err != nil {
		return err
	}

	s.Predict()
	return nil
}
