package toolbox

import (
	"math/rand/v2"
	"testing"

	"github.com/chewxy/math32"
)

func TestAgreesWithHandcodedLinreg(t *testing.T) {
	alpha := float32(0.01)
	steps := 2000

	batchSize := 1000
	x, y := generate1DLinRegDataset(batchSize)

	lay := MakeDense(Linear, 1, 1, rand.New(rand.NewPCG(1, 2)))
	lay.W.Set2(0, 0, 0)
	lay.B.Set1(0, 0)
	net := &Network{
		LossFunction: MeanSquaredError,
		Layers:       []*Layer{lay},
	}

	sgd := net.MakeSGD(alpha, batchSize)
	for s := 0; s < steps; s++ {
		sgd.Step(x, y)
	}
	gotM := net.Layers[0].W.At2(0, 0)
	gotB := net.Layers[0].B.At1(0)
	t.Logf("toolkit m=%v b=%v loss=%v", gotM, gotB, lossFn(x, y, gotM, gotB))

	m, b := gradientDescentLinReg(x, y, alpha, steps, float32(0.0), float32(0.0))
	t.Logf("reference m=%v b=%v loss=%v", m, b, lossFn(x, y, m, b))

	if math32.Abs(gotM-m) > 0.001 {
		t.Errorf("Disagreement on m parameter; got %v, want %v", gotM, m)
	}

	if math32.Abs(gotB-b) > 0.001 {
		t.Errorf("Disagreement on b parameter; got %v, want %v", gotB, b)
	}
}

func generate1DLinRegDataset(m int) (x, y *AF32) {
	r := rand.New(rand.NewPCG(12345, 0))

	x = MakeAF32(m, 1)
	y = MakeAF32(m, 1)

	for i := 0; i < m; i++ {
		// Normalization is important --- if I multiply x1 * 1000, the loss is
		// huge and the model blows up with NaNs.
		x1 := r.Float32()
		y1 := 10*x1 + 3

		// Perturb the point a little bit
		y1 += (r.Float32() - 0.5) * 2

		x.Set2(i, 0, x1)
		y.Set2(i, 0, y1)
	}

	return x, y
}

func lossFn(x, y *AF32, m, b float32) float32 {
	n := x.Shape[0]
	loss := float32(0)
	for i := 0; i < n; i++ {
		pred := m*x.At2(i, 0) + b
		loss += (pred - y.At2(i, 0)) * (pred - y.At2(i, 0)) / float32(n)
	}
	return loss
}

func gradientFn(x, y *AF32, m, b float32) (gradM, gradB float32) {
	n := x.Shape[0]
	for i := 0; i < n; i++ {
		pred := m*x.At2(i, 0) + b
		gradM += 2 * (pred - y.At2(i, 0)) * x.At2(i, 0) / float32(n)
		gradB += 2 * (pred - y.At2(i, 0)) / float32(n)
	}
	return gradM, gradB
}

func gradientDescentLinReg(x, y *AF32, learningRate float32, steps int, initM, initB float32) (m, b float32) {
	m = initM
	b = initB
	for i := 0; i < steps; i++ {
		gradM, gradB := gradientFn(x, y, m, b)
		m = m - learningRate*gradM
		b = b - learningRate*gradB
	}
	return m, b
}
