package trainer

import (
	"context"
	"errors"
	"math/rand/v2"
	"testing"

	"github.com/chewxy/math32"
	"github.com/google/go-cmp/cmp"

	"github.com/ahmedtd/curvefit/dataset"
	"github.com/ahmedtd/curvefit/toolbox"
)

func TestTrainRecordsOneLossPerEpoch(t *testing.T) {
	r := rand.New(rand.NewPCG(1, 2))
	net := NewNetwork(1, r)
	ds := dataset.Generate(dataset.Line(100, 0.1), r)

	var observed []int
	hist, err := Train(net, ds, Config{LearningRate: 0.05, Epochs: 200}, EpochObserverFunc(func(epoch int, loss float32) {
		observed = append(observed, epoch)
	}))
	if err != nil {
		t.Fatalf("Train: %v", err)
	}

	if len(hist.Losses) != 200 {
		t.Fatalf("got %d losses, want 200", len(hist.Losses))
	}
	for i, l := range hist.Losses {
		if l < 0 || math32.IsNaN(l) || math32.IsInf(l, 0) {
			t.Fatalf("loss[%d] = %v, want finite and non-negative", i, l)
		}
	}
	if len(observed) != 200 || observed[0] != 1 || observed[199] != 200 {
		t.Errorf("observer saw epochs %v..., want 1..200", observed[:min(3, len(observed))])
	}
	if hist.FinalLoss() >= hist.Losses[0] {
		t.Errorf("loss did not go down: first=%v final=%v", hist.Losses[0], hist.FinalLoss())
	}
	if hist.Optimizer == nil {
		t.Errorf("History.Optimizer is nil after training")
	}
}

func TestTrainEmptyDatasetIsNoop(t *testing.T) {
	r := rand.New(rand.NewPCG(1, 2))
	net := NewNetwork(1, r)
	before := map[string]*toolbox.AF32{}
	net.DumpTensors(before)
	beforeVals := snapshot(before)

	hist, err := Train(net, dataset.Generate(dataset.Line(0, 0.1), r), Config{LearningRate: 0.05, Epochs: 10})
	if err != nil {
		t.Fatalf("Train: %v", err)
	}
	if len(hist.Losses) != 0 || hist.Optimizer != nil {
		t.Errorf("Train on empty data returned %+v, want empty history", hist)
	}

	after := map[string]*toolbox.AF32{}
	net.DumpTensors(after)
	if diff := cmp.Diff(snapshot(after), beforeVals); diff != "" {
		t.Errorf("Parameters changed on empty dataset; diff (-got +want)\n%s", diff)
	}
}

func snapshot(tensors map[string]*toolbox.AF32) map[string][]float32 {
	out := map[string][]float32{}
	for k, v := range tensors {
		out[k] = append([]float32(nil), v.V...)
	}
	return out
}

func TestConfigValidate(t *testing.T) {
	testCases := []struct {
		desc    string
		cfg     Config
		wantErr bool
	}{
		{"ok", Config{LearningRate: 0.1, Epochs: 1}, false},
		{"zero learning rate", Config{LearningRate: 0, Epochs: 1}, true},
		{"negative learning rate", Config{LearningRate: -1, Epochs: 1}, true},
		{"zero epochs", Config{LearningRate: 0.1, Epochs: 0}, true},
	}
	for _, tc := range testCases {
		t.Run(tc.desc, func(t *testing.T) {
			err := tc.cfg.Validate()
			if (err != nil) != tc.wantErr {
				t.Errorf("Validate() = %v, wantErr %v", err, tc.wantErr)
			}
		})
	}
}

func TestTrainRejectsUnknownOptimizer(t *testing.T) {
	r := rand.New(rand.NewPCG(1, 2))
	net := NewNetwork(1, r)
	ds := dataset.Generate(dataset.Line(10, 0.1), r)
	if _, err := Train(net, ds, Config{LearningRate: 0.1, Epochs: 1, Optimizer: "lbfgs"}); err == nil {
		t.Fatalf("Train accepted an unknown optimizer")
	}
}

func TestPredict(t *testing.T) {
	r := rand.New(rand.NewPCG(3, 4))
	net := NewNetwork(2, r)

	if _, ok := Predict(net, &dataset.Dataset{}); ok {
		t.Errorf("Predict on empty dataset reported ok")
	}

	ds := dataset.Generate(dataset.Line(25, 0.3), r)
	pred, ok := Predict(net, ds)
	if !ok {
		t.Fatalf("Predict on %d samples reported !ok", ds.Len())
	}
	if len(pred.Y) != ds.Len() {
		t.Fatalf("got %d predictions for %d samples", len(pred.Y), ds.Len())
	}

	var want float32
	for k := range ds.Y {
		d := pred.Y[k] - ds.Y[k]
		want += d * d / float32(ds.Len())
	}
	if math32.Abs(pred.MSE-want) > 1e-5 {
		t.Errorf("MSE = %v, want %v", pred.MSE, want)
	}
}

func TestRepeatRecordsOneCostPerIteration(t *testing.T) {
	r := rand.New(rand.NewPCG(5, 6))
	net := NewNetwork(1, r)

	var seen []int
	costs, err := Repeat(context.Background(), net, RepeatConfig{
		Iterations: 4,
		Data:       dataset.Line(30, 0.2),
		Train:      Config{LearningRate: 0.05, Epochs: 20},
	}, r, IterationObserverFunc(func(it Iteration) {
		seen = append(seen, it.Index)
		if it.Data.Len() != 30 {
			t.Errorf("iteration %d trained on %d samples, want 30", it.Index, it.Data.Len())
		}
		if len(it.History.Losses) != 20 {
			t.Errorf("iteration %d recorded %d losses, want 20", it.Index, len(it.History.Losses))
		}
	}))
	if err != nil {
		t.Fatalf("Repeat: %v", err)
	}

	if len(costs) != 4 {
		t.Fatalf("got %d costs, want 4", len(costs))
	}
	for i, c := range costs {
		if c < 0 {
			t.Errorf("cost[%d] = %v, want >= 0", i, c)
		}
	}
	if diff := cmp.Diff(seen, []int{1, 2, 3, 4}); diff != "" {
		t.Errorf("Wrong iteration order; diff (-got +want)\n%s", diff)
	}
}

func TestRepeatStopsOnCancel(t *testing.T) {
	r := rand.New(rand.NewPCG(5, 6))
	net := NewNetwork(1, r)
	ctx, cancel := context.WithCancel(context.Background())

	costs, err := Repeat(ctx, net, RepeatConfig{
		Iterations: 10,
		Data:       dataset.Line(10, 0.2),
		Train:      Config{LearningRate: 0.05, Epochs: 5},
	}, r, IterationObserverFunc(func(it Iteration) {
		if it.Index == 2 {
			cancel()
		}
	}))
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Repeat error = %v, want context.Canceled", err)
	}
	if len(costs) != 2 {
		t.Errorf("got %d costs after cancelling at iteration 2, want 2", len(costs))
	}
}

func TestRepeatEmptyDataHasNoCost(t *testing.T) {
	r := rand.New(rand.NewPCG(7, 8))
	net := NewNetwork(1, r)

	reported := 0
	costs, err := Repeat(context.Background(), net, RepeatConfig{
		Iterations: 3,
		Data:       dataset.Line(0, 0.2),
		Train:      Config{LearningRate: 0.05, Epochs: 5},
	}, r, IterationObserverFunc(func(it Iteration) {
		reported++
		if it.Trained() {
			t.Errorf("iteration %d trained on an empty dataset", it.Index)
		}
	}))
	if err != nil {
		t.Fatalf("Repeat: %v", err)
	}
	if reported != 3 {
		t.Errorf("observers saw %d iterations, want 3", reported)
	}
	if len(costs) != 0 {
		t.Errorf("got costs %v for runs without samples, want none", costs)
	}
}

func TestMeanLoss(t *testing.T) {
	h := History{Losses: []float32{1, 2, 3, 6}}
	if got := h.MeanLoss(); got != 3 {
		t.Errorf("MeanLoss() = %v, want 3", got)
	}
	if got := (History{}).MeanLoss(); got != 0 {
		t.Errorf("empty MeanLoss() = %v, want 0", got)
	}
}
