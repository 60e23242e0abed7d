package toolbox

// denseDot2 returns sum_i x[i]*y[i].
func denseDot2(x, y []float32) float32 {
	if len(x) != len(y) {
		panic("mismatched length")
	}
	y = y[:len(x)] // bounds check elimination hint
	var sum float32
	for i := range x {
		sum += x[i] * y[i]
	}
	return sum
}

// denseDot3 returns sum_i x[i]*y[i]*z[i].
func denseDot3(x, y, z []float32) float32 {
	if len(x) != len(y) || len(x) != len(z) {
		panic("all input slices must have the same length")
	}
	y = y[:len(x)]
	z = z[:len(x)]
	var sum float32
	for i := range x {
		sum += x[i] * y[i] * z[i]
	}
	return sum
}
