package toolbox

import (
	"fmt"
	"math/rand/v2"
	"slices"
)

type ActivationType int

const (
	ReLU ActivationType = iota
	Linear
)

func (a ActivationType) String() string {
	switch a {
	case ReLU:
		return "relu"
	case Linear:
		return "linear"
	default:
		return fmt.Sprintf("ActivationType(%d)", int(a))
	}
}

type Layer struct {
	Activation ActivationType

	W *AF32 // Shape (OutputSize, InputSize)
	B *AF32 // Shape (OutputSize)

	InputSize  int
	OutputSize int
}

// MakeDense creates a dense layer with weights drawn from N(0, 0.1^2) and
// biases set to 0.1.
func MakeDense(activation ActivationType, inputSize, outputSize int, r *rand.Rand) *Layer {
	l := &Layer{
		Activation: activation,
		InputSize:  inputSize,
		OutputSize: outputSize,
		W:          MakeAF32(outputSize, inputSize),
		B:          MakeAF32(outputSize),
	}

	for i := 0; i < outputSize; i++ {
		for j := 0; j < inputSize; j++ {
			l.W.Set2(i, j, float32(r.NormFloat64())*0.1)
		}
		l.B.Set1(i, 0.1)
	}

	return l
}

// Apply the layer in the forward direction.
//
// x (input) is the layer input.  Shape (batchSize, lay.InputSize)
// a (output) is the layer's forward output.  Shape (batchSize, lay.OutputSize)
// dadz (output, optional) is the derivative of the activated output wrt the linear output.  Shape (batchSize, lay.OutputSize)
func (lay *Layer) Apply(x, a, dadz *AF32) {
	batchSize := x.Shape[0]
	inputSize := lay.InputSize
	outputSize := lay.OutputSize

	if x.Shape[1] != inputSize {
		panic("dimension mismatch")
	}
	_ = x.At2(batchSize-1, inputSize-1)

	if a.Shape[0] != batchSize {
		panic("dimension mismatch")
	}
	if a.Shape[1] != outputSize {
		panic("dimension mismatch")
	}
	_ = a.At2(batchSize-1, outputSize-1)

	if dadz != nil {
		if dadz.Shape[0] != batchSize {
			panic("dimension mismatch")
		}
		if dadz.Shape[1] != outputSize {
			panic("dimension mismatch")
		}
	}

	if lay.W.Shape[0] != outputSize {
		panic("dimension mismatch")
	}
	if lay.W.Shape[1] != inputSize {
		panic("dimension mismatch")
	}

	if !slices.Equal(lay.B.Shape, []int{outputSize}) {
		panic(fmt.Sprintf("lay.B.Shape %v != {outputSize}", lay.B.Shape))
	}

	// Write the linear activations into a.
	for k := 0; k < batchSize; k++ {
		for i := 0; i < outputSize; i++ {
			z := denseDot2(lay.W.V[i*inputSize:i*inputSize+inputSize], x.V[k*inputSize:k*inputSize+inputSize])
			z += lay.B.At1(i)
			a.Set2(k, i, z)
		}
	}

	// Apply activation function to a elementwise.  Store activation gradients
	// in dadz if provided.
	switch lay.Activation {
	case ReLU:
		if dadz != nil {
			reluActivationGradient(a.V, dadz.V)
		}
		reluActivation(a.V)
	case Linear:
		if dadz != nil {
			linearActivationGradient(dadz.V)
		}
		// linear activation is a no-op
	default:
		panic("unhandled activation function")
	}
}

// xT (input) is the layer input.  Shape (lay.InputSize, batchSize)
// djdaT (input) is the gradient of the loss wrt a.  Shape (lay.OutputSize, batchSize)
// dadzT (input) is the gradient of a_ik wrt z_ik.  Shape (lay.OutputSize, batchSize)
// dJdw (output) is the gradient of the loss wrt lay.W.  Shape (lay.OutputSize, lay.InputSize)
func (lay *Layer) BackpropDjdw(xT, djdaT, dadzT, djdw *AF32) {
	batchSize := xT.Shape[1]
	inputSize := lay.InputSize
	outputSize := lay.OutputSize

	for i := 0; i < outputSize; i++ {
		for j := 0; j < inputSize; j++ {
			grad := denseDot3(
				djdaT.V[i*batchSize:i*batchSize+batchSize],
				dadzT.V[i*batchSize:i*batchSize+batchSize],
				xT.V[j*batchSize:j*batchSize+batchSize],
			)
			djdw.Set2(i, j, grad)
		}
	}
}

// djdaT (input) is the gradient of the loss wrt a.  Shape (lay.OutputSize, batchSize)
// dadzT (input) is the gradient of a_ik wrt z_ik.  Shape (lay.OutputSize, batchSize)
// dJdb (output) is the gradient of the loss wrt lay.B.  Shape (lay.OutputSize)
func (lay *Layer) BackpropDjdb(djdaT, dadzT, dJdb *AF32) {
	batchSize := djdaT.Shape[1]
	outputSize := lay.OutputSize

	iBase := 0
	for i := 0; i < outputSize; i++ {
		grad := denseDot2(djdaT.V[iBase:iBase+batchSize], dadzT.V[iBase:iBase+batchSize])
		dJdb.Set1(i, grad)

		iBase += batchSize
	}
}

// dJda (input) is the gradient of the loss wrt a.  Shape (batchSize, lay.OutputSize)
// dadz (input) is the gradient of a_ik wrt z_ik.  Shape (batchSize, lay.OutputSize)
// wT (input) is the layer weights, tranposed.  Shape (inputSize, outputSize)
// dJdx (output) is the gradient of the loss wrt x.  Shape (batchSize, lay.InputSize)
func (lay *Layer) BackpropDjdx(djda, dadz, wT, djdx *AF32) {
	batchSize := djda.Shape[0]
	inputSize := lay.InputSize
	outputSize := lay.OutputSize

	for k := 0; k < batchSize; k++ {
		for j := 0; j < inputSize; j++ {
			grad := denseDot3(
				djda.V[k*outputSize:k*outputSize+outputSize],
				dadz.V[k*outputSize:k*outputSize+outputSize],
				wT.V[j*outputSize:j*outputSize+outputSize],
			)
			djdx.Set2(k, j, grad)
		}
	}
}

// z (input/output)
func reluActivation(z []float32) {
	for i := range z {
		if z[i] < 0 {
			z[i] = 0
		}
	}
}

// reluActivationGradient computes the derivative of the ReLU function.
//
// z (input) is the pre-activation linear output of a layer.
//
// dadz (output) is the derivative of ReLU(z)
func reluActivationGradient(z, dadz []float32) {
	if len(z) != len(dadz) {
		panic("len(z) != len(dadz)")
	}

	for i := 0; i < len(z); i++ {
		if z[i] <= 0 {
			dadz[i] = 0
		} else {
			dadz[i] = 1
		}
	}
}

func linearActivationGradient(dadz []float32) {
	for i := 0; i < len(dadz); i++ {
		dadz[i] = 1
	}
}
