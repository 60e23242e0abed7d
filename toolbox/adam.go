package toolbox

import (
	"fmt"
	"time"

	"github.com/chewxy/math32"
)

type Adam struct {
	net *Network

	step int

	// Adam parameters
	alpha, beta1, beta2, epsilon float32

	// Updated every step
	beta1T, beta2T float32

	scratch *gradientScratch

	// The first moment vectors for each layer
	oldMW []*AF32
	oldMB []*AF32
	newMW []*AF32
	newMB []*AF32

	// The second moment vectors for each layer
	oldVW []*AF32
	oldVB []*AF32
	newVW []*AF32
	newVB []*AF32

	Timings StepTimings
}

var _ Optimizer = (*Adam)(nil)

func (net *Network) MakeAdam(alpha float32, batchSize int) *Adam {
	aep := &Adam{
		net: net,

		alpha:   alpha,
		beta1:   0.9,
		beta2:   0.999,
		epsilon: 1e-7,

		beta1T: 0.9,
		beta2T: 0.999,

		scratch: net.makeGradientScratch(batchSize),
	}

	aep.oldMW = make([]*AF32, len(net.Layers))
	aep.oldVW = make([]*AF32, len(net.Layers))
	aep.oldMB = make([]*AF32, len(net.Layers))
	aep.oldVB = make([]*AF32, len(net.Layers))
	aep.newMW = make([]*AF32, len(net.Layers))
	aep.newVW = make([]*AF32, len(net.Layers))
	aep.newMB = make([]*AF32, len(net.Layers))
	aep.newVB = make([]*AF32, len(net.Layers))
	for l := 0; l < len(net.Layers); l++ {
		aep.oldMW[l] = MakeAF32(net.Layers[l].OutputSize, net.Layers[l].InputSize)
		aep.oldVW[l] = MakeAF32(net.Layers[l].OutputSize, net.Layers[l].InputSize)
		aep.oldMB[l] = MakeAF32(net.Layers[l].OutputSize)
		aep.oldVB[l] = MakeAF32(net.Layers[l].OutputSize)
		aep.newMW[l] = MakeAF32(net.Layers[l].OutputSize, net.Layers[l].InputSize)
		aep.newVW[l] = MakeAF32(net.Layers[l].OutputSize, net.Layers[l].InputSize)
		aep.newMB[l] = MakeAF32(net.Layers[l].OutputSize)
		aep.newVB[l] = MakeAF32(net.Layers[l].OutputSize)
	}

	return aep
}

func (aep *Adam) StepTimings() *StepTimings {
	return &aep.Timings
}

// x is the input.  Shape (batchSize, layers[0].InputSize)
// y is the ground truth output.  Shape (batchSize, layers[last].OutputSize)
func (aep *Adam) Step(x, y *AF32) float32 {
	start := time.Now()
	net := aep.net

	loss := net.computeGradients(x, y, aep.scratch, &aep.Timings)

	weightUpdateStart := time.Now()

	// Compute new Adam moment vectors
	beta1 := aep.beta1
	beta2 := aep.beta2
	for l := 0; l < len(net.Layers); l++ {
		for i := 0; i < net.Layers[l].OutputSize; i++ {
			for j := 0; j < net.Layers[l].InputSize; j++ {
				djdw := aep.scratch.djdw[l].At2(i, j)
				oldmw := aep.oldMW[l].At2(i, j)
				oldvw := aep.oldVW[l].At2(i, j)
				aep.newMW[l].Set2(i, j, beta1*oldmw+(1-beta1)*djdw)
				aep.newVW[l].Set2(i, j, beta2*oldvw+(1-beta2)*djdw*djdw)
			}

			djdb := aep.scratch.djdb[l].At1(i)
			aep.newMB[l].Set1(i, beta1*aep.oldMB[l].At1(i)+(1-beta1)*djdb)
			aep.newVB[l].Set1(i, beta2*aep.oldVB[l].At1(i)+(1-beta2)*djdb*djdb)
		}
	}

	alphaT := aep.alpha * math32.Sqrt(1-aep.beta2T) / (1 - aep.beta1T)

	for l := 0; l < len(net.Layers); l++ {
		for i := 0; i < net.Layers[l].OutputSize; i++ {
			for j := 0; j < net.Layers[l].InputSize; j++ {
				newW := net.Layers[l].W.At2(i, j) - alphaT*aep.newMW[l].At2(i, j)/(math32.Sqrt(aep.newVW[l].At2(i, j))+aep.epsilon)
				net.Layers[l].W.Set2(i, j, newW)
			}

			newB := net.Layers[l].B.At1(i) - alphaT*aep.newMB[l].At1(i)/(math32.Sqrt(aep.newVB[l].At1(i))+aep.epsilon)
			net.Layers[l].B.Set1(i, newB)
		}
	}

	aep.beta1T *= aep.beta1
	aep.beta2T *= aep.beta2

	aep.oldMW, aep.newMW = aep.newMW, aep.oldMW
	aep.oldMB, aep.newMB = aep.newMB, aep.oldMB
	aep.oldVW, aep.newVW = aep.newVW, aep.oldVW
	aep.oldVB, aep.newVB = aep.newVB, aep.oldVB

	aep.Timings.WeightUpdate += time.Since(weightUpdateStart)
	aep.Timings.Overall += time.Since(start)

	aep.step++
	return loss
}

func (aep *Adam) DumpTensors(tensors map[string]*AF32) {
	// This is garbage -- save scalars as {1} tensors
	tensors["adam.step"] = MakeScalarAF32(float32(aep.step))
	tensors["adam.alpha"] = MakeScalarAF32(aep.alpha)
	tensors["adam.beta1"] = MakeScalarAF32(aep.beta1)
	tensors["adam.beta2"] = MakeScalarAF32(aep.beta2)
	tensors["adam.epsilon"] = MakeScalarAF32(aep.epsilon)
	tensors["adam.beta1T"] = MakeScalarAF32(aep.beta1T)
	tensors["adam.beta2T"] = MakeScalarAF32(aep.beta2T)

	// newMW, newVW, newMB, newVB are scratch overwritten at each step.
	for l := 0; l < len(aep.oldMW); l++ {
		tensors[fmt.Sprintf("adam.%d.oldMW", l)] = aep.oldMW[l]
		tensors[fmt.Sprintf("adam.%d.oldVW", l)] = aep.oldVW[l]
		tensors[fmt.Sprintf("adam.%d.oldMB", l)] = aep.oldMB[l]
		tensors[fmt.Sprintf("adam.%d.oldVB", l)] = aep.oldVB[l]
	}
}

// LoadTensors restores moment vectors and step state.  The batch size is not
// part of the saved state; it is fixed when the optimizer is made.
func (aep *Adam) LoadTensors(tensors map[string]*AF32) error {
	var err error
	aep.step, err = loadIntFromTensor(tensors, "adam.step")
	if err != nil {
		return err
	}
	aep.alpha, err = loadFloat32FromTensor(tensors, "adam.alpha")
	if err != nil {
		return err
	}
	aep.beta1, err = loadFloat32FromTensor(tensors, "adam.beta1")
	if err != nil {
		return err
	}
	aep.beta2, err = loadFloat32FromTensor(tensors, "adam.beta2")
	if err != nil {
		return err
	}
	aep.epsilon, err = loadFloat32FromTensor(tensors, "adam.epsilon")
	if err != nil {
		return err
	}
	aep.beta1T, err = loadFloat32FromTensor(tensors, "adam.beta1T")
	if err != nil {
		return err
	}
	aep.beta2T, err = loadFloat32FromTensor(tensors, "adam.beta2T")
	if err != nil {
		return err
	}

	for l := 0; l < len(aep.oldMW); l++ {
		moments := []struct {
			name string
			dst  **AF32
			like *AF32
		}{
			{"oldMW", &aep.oldMW[l], aep.newMW[l]},
			{"oldVW", &aep.oldVW[l], aep.newVW[l]},
			{"oldMB", &aep.oldMB[l], aep.newMB[l]},
			{"oldVB", &aep.oldVB[l], aep.newVB[l]},
		}
		for _, m := range moments {
			key := fmt.Sprintf("adam.%d.%s", l, m.name)
			t, ok := tensors[key]
			if !ok {
				return fmt.Errorf("missing tensor %s", key)
			}
			if len(t.V) != len(m.like.V) {
				return fmt.Errorf("tensor %s has %d values, want %d", key, len(t.V), len(m.like.V))
			}
			*m.dst = AF32Reshape(t, m.like.Shape...)
		}
	}

	return nil
}

func loadIntFromTensor(tensors map[string]*AF32, key string) (int, error) {
	tensor, ok := tensors[key]
	if !ok {
		return 0, fmt.Errorf("missing tensor %s", key)
	}
	return int(tensor.At1(0)), nil
}

func loadFloat32FromTensor(tensors map[string]*AF32, key string) (float32, error) {
	tensor, ok := tensors[key]
	if !ok {
		return 0, fmt.Errorf("missing tensor %s", key)
	}

	return tensor.At1(0), nil
}
