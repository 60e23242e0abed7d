// Package dataset generates the synthetic 1-D regression data the network is
// trained on, and stores it as npz archives.
package dataset

import (
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/stat/distuv"

	"github.com/ahmedtd/curvefit/toolbox"
)

// Params describes the curve the samples are drawn around.
type Params struct {
	Count    int     // number of samples
	Range    float64 // standard deviation of the additive noise
	Slope    float64
	Exponent int
}

// Line is the degenerate y = x + noise case.
func Line(count int, noiseRange float64) Params {
	return Params{
		Count:    count,
		Range:    noiseRange,
		Slope:    1,
		Exponent: 1,
	}
}

// Dataset is an ordered set of (x, y) samples.  X and Y always have the same
// length.
type Dataset struct {
	X []float32
	Y []float32
}

// Generate draws p.Count samples with x ~ N(0, 1) and
//
//	y = Slope * x^Exponent + N(0, 1) * Range
//
// A non-positive count yields an empty dataset.
func Generate(p Params, src rand.Source) *Dataset {
	n := max(p.Count, 0)
	ds := &Dataset{
		X: make([]float32, n),
		Y: make([]float32, n),
	}

	normal := distuv.Normal{Mu: 0, Sigma: 1, Src: src}
	for k := 0; k < n; k++ {
		x := normal.Rand()
		noise := normal.Rand() * p.Range
		ds.X[k] = float32(x)
		ds.Y[k] = float32(p.Slope*math.Pow(x, float64(p.Exponent)) + noise)
	}

	return ds
}

func (ds *Dataset) Len() int {
	if ds == nil {
		return 0
	}
	return len(ds.X)
}

func (ds *Dataset) Empty() bool {
	return ds.Len() == 0
}

// Tensors returns x and y as (Len, 1) tensors sharing storage with ds.  It
// panics on an empty dataset; callers check Empty first.
func (ds *Dataset) Tensors() (x, y *toolbox.AF32) {
	return toolbox.AF32FromSlice(ds.X, ds.Len(), 1), toolbox.AF32FromSlice(ds.Y, ds.Len(), 1)
}
