package geo

// AscentDescent returns the cumulative climb and drop over a sequence of altitudes.
// Both values are non-negative.
func AscentDescent(altitudes []float64) (ascent, descent float64) {
	for i := 1; i < len(altitudes); i++ {
		delta := altitudes[i] - altitudes[i-1]
		if delta > 0 {
			ascent += delta
		} else {
			descent -= delta
		}
	}
	return ascent, descent
}
