package toolbox

import (
	"fmt"
	"slices"
	"time"
)

type Network struct {
	LossFunction LossFunctionType
	Layers       []*Layer
}

func (net *Network) LoadTensors(tensors map[string]*AF32) error {
	for l := 0; l < len(net.Layers); l++ {
		weightKey := fmt.Sprintf("net.%d.weights", l)
		weightTensor, ok := tensors[weightKey]
		if !ok {
			return fmt.Errorf("no entry for %s", weightKey)
		}
		wantWeightShape := []int{net.Layers[l].OutputSize, net.Layers[l].InputSize}
		if !slices.Equal(weightTensor.Shape, wantWeightShape) {
			return fmt.Errorf("wrong shape for %s; got %v want %v", weightKey, weightTensor.Shape, wantWeightShape)
		}
		net.Layers[l].W = weightTensor

		biasKey := fmt.Sprintf("net.%d.biases", l)
		biasTensor, ok := tensors[biasKey]
		if !ok {
			return fmt.Errorf("no entry for %s", biasKey)
		}
		wantBiasShape := []int{net.Layers[l].OutputSize}
		if !slices.Equal(biasTensor.Shape, wantBiasShape) {
			return fmt.Errorf("wrong shape for %s; got %v want %v", biasKey, biasTensor.Shape, wantBiasShape)
		}
		net.Layers[l].B = biasTensor
	}

	return nil
}

func (net *Network) DumpTensors(tensors map[string]*AF32) {
	for l := 0; l < len(net.Layers); l++ {
		tensors[fmt.Sprintf("net.%d.weights", l)] = net.Layers[l].W
		tensors[fmt.Sprintf("net.%d.biases", l)] = net.Layers[l].B
	}
}

// x is the input.  Shape (batchSize, layers[0].InputSize)
func (net *Network) Apply(x *AF32) *AF32 {
	batchSize := x.Shape[0]

	// Collect max-sized layer output needed.
	maxOutputSize := x.Shape[1]
	for l := 0; l < len(net.Layers); l++ {
		if net.Layers[l].OutputSize > maxOutputSize {
			maxOutputSize = net.Layers[l].OutputSize
		}
	}

	// Make this in a weird way because we're going to keep resizing them as we
	// move forward through the layers.
	a0 := &AF32{
		V:     make([]float32, 0, batchSize*maxOutputSize),
		Shape: []int{0, 0},
	}
	a1 := &AF32{
		V:     make([]float32, 0, batchSize*maxOutputSize),
		Shape: []int{0, 0},
	}

	// Copy the input into a0
	a0.V = a0.V[:batchSize*x.Shape[1]]
	a0.Shape[0] = batchSize
	a0.Shape[1] = x.Shape[1]
	copy(a0.V, x.V)

	for l := 0; l < len(net.Layers); l++ {
		// Resize our output correctly for this layer.
		a1.V = a1.V[:batchSize*net.Layers[l].OutputSize]
		a1.Shape[0] = batchSize
		a1.Shape[1] = net.Layers[l].OutputSize

		net.Layers[l].Apply(a0, a1, nil) // no need to save activation gradients

		// This layer's output becomes the input for the next layer.
		a0, a1 = a1, a0
	}

	return a0
}

// ys is the ground truth output.  Shape (batchSize, outputSize)
// predictions is the network output.  Shape (batchSize, outputSize)
func (net *Network) Loss(ys, predictions *AF32, totalSamples int) float32 {
	switch net.LossFunction {
	case MeanSquaredError:
		return MeanSquaredErrorLoss(ys, predictions, totalSamples)
	default:
		panic("unimplemented loss function type")
	}
}

// StepTimings accumulates wall time spent in each phase of optimizer steps.
type StepTimings struct {
	Overall         time.Duration
	Forward         time.Duration
	Loss            time.Duration
	Backpropagation time.Duration
	WeightUpdate    time.Duration
}

func (t *StepTimings) Reset() {
	*t = StepTimings{}
}

// gradientScratch holds the per-layer buffers needed to run one
// forward/backward pass over a fixed-size batch.
type gradientScratch struct {
	batchSize int

	xTranspose *AF32
	wTranspose []*AF32

	dadz, a, djda                            []*AF32
	dadzTranspose, aTranspose, djdaTranspose []*AF32

	// The current weight gradients per-layer
	djdw, djdb []*AF32
}

func (net *Network) makeGradientScratch(batchSize int) *gradientScratch {
	gs := &gradientScratch{
		batchSize: batchSize,
	}

	gs.xTranspose = MakeAF32(net.Layers[0].InputSize, batchSize)
	gs.wTranspose = make([]*AF32, len(net.Layers))
	gs.dadz = make([]*AF32, len(net.Layers))
	gs.dadzTranspose = make([]*AF32, len(net.Layers))
	gs.a = make([]*AF32, len(net.Layers))
	gs.aTranspose = make([]*AF32, len(net.Layers))
	gs.djda = make([]*AF32, len(net.Layers))
	gs.djdaTranspose = make([]*AF32, len(net.Layers))
	gs.djdw = make([]*AF32, len(net.Layers))
	gs.djdb = make([]*AF32, len(net.Layers))
	for l := 0; l < len(net.Layers); l++ {
		gs.wTranspose[l] = AF32Copy(net.Layers[l].W)
		gs.dadz[l] = MakeAF32(batchSize, net.Layers[l].OutputSize)
		gs.dadzTranspose[l] = AF32Copy(gs.dadz[l])
		gs.a[l] = MakeAF32(batchSize, net.Layers[l].OutputSize)
		gs.aTranspose[l] = AF32Copy(gs.a[l])
		gs.djda[l] = MakeAF32(batchSize, net.Layers[l].OutputSize)
		gs.djdaTranspose[l] = AF32Copy(gs.djda[l])
		gs.djdw[l] = MakeAF32(net.Layers[l].OutputSize, net.Layers[l].InputSize)
		gs.djdb[l] = MakeAF32(net.Layers[l].OutputSize)
	}

	return gs
}

// computeGradients runs a forward pass over x, then backpropagates the loss
// against y, leaving the parameter gradients in gs.djdw and gs.djdb.  It
// returns the loss of the forward pass.
//
// x is the input.  Shape (batchSize, layers[0].InputSize)
// y is the ground truth output.  Shape (batchSize, layers[last].OutputSize)
func (net *Network) computeGradients(x, y *AF32, gs *gradientScratch, timings *StepTimings) float32 {
	if x.Shape[0] != gs.batchSize {
		panic(fmt.Sprintf("batch size %d does not match optimizer batch size %d", x.Shape[0], gs.batchSize))
	}

	// Transposed copies of djda, dadz, and a/x.  Backprop calculations of djdw
	// and djdb are better with k being the inner dimension.  Backprop
	// calculation of djdx is better with i as the inner dimension.
	AF32Transpose(x, gs.xTranspose)
	for l := 0; l < len(net.Layers); l++ {
		AF32Transpose(net.Layers[l].W, gs.wTranspose[l])
	}

	forwardStart := time.Now()

	// Forward application, saving the activation gradients at each layer.
	net.Layers[0].Apply(x, gs.a[0], gs.dadz[0])
	AF32Transpose(gs.a[0], gs.aTranspose[0])
	AF32Transpose(gs.dadz[0], gs.dadzTranspose[0])
	for l := 1; l < len(net.Layers); l++ {
		net.Layers[l].Apply(gs.a[l-1], gs.a[l], gs.dadz[l])
		AF32Transpose(gs.a[l], gs.aTranspose[l])
		AF32Transpose(gs.dadz[l], gs.dadzTranspose[l])
	}

	timings.Forward += time.Since(forwardStart)

	lossStart := time.Now()

	last := len(net.Layers) - 1
	var loss float32
	switch net.LossFunction {
	case MeanSquaredError:
		loss = MeanSquaredErrorLoss(y, gs.a[last], gs.batchSize)
		MeanSquaredErrorLossGradient(y, gs.a[last], gs.djda[last])
	default:
		panic("unimplemented loss function type")
	}

	timings.Loss += time.Since(lossStart)

	backpropStart := time.Now()

	// Backprop.  djdx of layer l is the djda of layer l-1.
	for l := last; l >= 1; l-- {
		AF32Transpose(gs.djda[l], gs.djdaTranspose[l])

		net.Layers[l].BackpropDjdw(gs.aTranspose[l-1], gs.djdaTranspose[l], gs.dadzTranspose[l], gs.djdw[l])
		net.Layers[l].BackpropDjdb(gs.djdaTranspose[l], gs.dadzTranspose[l], gs.djdb[l])
		net.Layers[l].BackpropDjdx(gs.djda[l], gs.dadz[l], gs.wTranspose[l], gs.djda[l-1])
	}
	AF32Transpose(gs.djda[0], gs.djdaTranspose[0])
	net.Layers[0].BackpropDjdw(gs.xTranspose, gs.djdaTranspose[0], gs.dadzTranspose[0], gs.djdw[0])
	net.Layers[0].BackpropDjdb(gs.djdaTranspose[0], gs.dadzTranspose[0], gs.djdb[0])

	timings.Backpropagation += time.Since(backpropStart)

	return loss
}
