// Package points turns tensor values into rounded 2-D points for charts.
package points

import "math"

type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Options controls how raw values become display coordinates: each value is
// multiplied by Scale and then rounded to Decimals decimal places.
type Options struct {
	Decimals int
	Scale    float64 // 0 means 1
}

func (o Options) apply(v float32) float64 {
	scale := o.Scale
	if scale == 0 {
		scale = 1
	}
	return Round(float64(v)*scale, o.Decimals)
}

// Round rounds v half away from zero to the given number of decimal places.
// Negative decimals round to tens, hundreds, and so on.
func Round(v float64, decimals int) float64 {
	p := math.Pow(10, float64(decimals))
	return math.Round(v*p) / p
}

// Format pairs xs[i] with ys[i].  Inputs of different lengths produce an
// empty result.
func Format(xs, ys []float32, opts Options) []Point {
	if len(xs) != len(ys) {
		return []Point{}
	}
	out := make([]Point, len(xs))
	for i := range xs {
		out[i] = Point{X: opts.apply(xs[i]), Y: opts.apply(ys[i])}
	}
	return out
}

// Indexed pairs values[i] with x = i+1, for curves over epochs or iterations.
// Only the values are scaled and rounded.
func Indexed(values []float32, opts Options) []Point {
	out := make([]Point, len(values))
	for i, v := range values {
		out[i] = Point{X: float64(i + 1), Y: opts.apply(v)}
	}
	return out
}
