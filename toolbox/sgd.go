package toolbox

import (
	"fmt"
	"strings"
	"time"
)

// Optimizer updates a network's parameters in place from one full batch.
type Optimizer interface {
	// Step runs a forward and backward pass over (x, y), updates the network
	// parameters, and returns the loss of the forward pass (measured before the
	// update).
	Step(x, y *AF32) float32

	StepTimings() *StepTimings

	DumpTensors(tensors map[string]*AF32)
	LoadTensors(tensors map[string]*AF32) error
}

const (
	OptimizerSGD  = "sgd"
	OptimizerAdam = "adam"
)

// MakeOptimizer builds the optimizer called name for net, sized for batches of
// batchSize samples.
func (net *Network) MakeOptimizer(name string, learningRate float32, batchSize int) (Optimizer, error) {
	switch strings.ToLower(name) {
	case "", OptimizerSGD:
		return net.MakeSGD(learningRate, batchSize), nil
	case OptimizerAdam:
		return net.MakeAdam(learningRate, batchSize), nil
	default:
		return nil, fmt.Errorf("unknown optimizer %q", name)
	}
}

// SGD implements plain gradient descent over the full batch:
//
//	param = param - lr * gradient
type SGD struct {
	net     *Network
	lr      float32
	step    int
	scratch *gradientScratch

	Timings StepTimings
}

var _ Optimizer = (*SGD)(nil)

func (net *Network) MakeSGD(learningRate float32, batchSize int) *SGD {
	return &SGD{
		net:     net,
		lr:      learningRate,
		scratch: net.makeGradientScratch(batchSize),
	}
}

// x is the input.  Shape (batchSize, layers[0].InputSize)
// y is the ground truth output.  Shape (batchSize, layers[last].OutputSize)
func (s *SGD) Step(x, y *AF32) float32 {
	start := time.Now()

	loss := s.net.computeGradients(x, y, s.scratch, &s.Timings)

	weightUpdateStart := time.Now()

	for l, lay := range s.net.Layers {
		for i := 0; i < lay.OutputSize; i++ {
			for j := 0; j < lay.InputSize; j++ {
				lay.W.Set2(i, j, lay.W.At2(i, j)-s.lr*s.scratch.djdw[l].At2(i, j))
			}
			lay.B.Set1(i, lay.B.At1(i)-s.lr*s.scratch.djdb[l].At1(i))
		}
	}

	s.Timings.WeightUpdate += time.Since(weightUpdateStart)
	s.Timings.Overall += time.Since(start)

	s.step++
	return loss
}

func (s *SGD) StepTimings() *StepTimings {
	return &s.Timings
}

func (s *SGD) DumpTensors(tensors map[string]*AF32) {
	tensors["sgd.step"] = MakeScalarAF32(float32(s.step))
	tensors["sgd.lr"] = MakeScalarAF32(s.lr)
}

// LoadTensors restores the step counter.  The learning rate always comes from
// the caller, so a checkpoint can be resumed with a different one.
func (s *SGD) LoadTensors(tensors map[string]*AF32) error {
	step, err := loadIntFromTensor(tensors, "sgd.step")
	if err != nil {
		return err
	}
	s.step = step
	return nil
}
