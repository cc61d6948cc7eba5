// Package hill accumulates distance per gradient band for both travel directions of a path.
package hill

// Band is a gradient class. Flat covers |g| < 1%.
type Band int

const (
	Flat Band = iota
	Gentle
	Moderate
	Challenging
	Steep
	ExtremelySteep
)

func (b Band) String() string {
	switch b {
	case Flat:
		return "flat"
	case Gentle:
		return "gentle"
	case Moderate:
		return "moderate"
	case Challenging:
		return "challenging"
	case Steep:
		return "steep"
	default:
		return "extremely_steep"
	}
}

// upper bounds (exclusive) of each climbing band, as a fraction of rise over run.
var bandLimits = [...]float64{0.01, 0.03, 0.06, 0.09, 0.15}

// Classify returns the band of a climb with the given (non-negative) gradient.
func Classify(gradient float64) Band {
	for i, limit := range bandLimits {
		if gradient < limit {
			return Band(i)
		}
	}
	return ExtremelySteep
}

// Bands holds the distance, in meters, spent in every gradient band.
type Bands struct {
	Flat           float64
	Gentle         float64
	Moderate       float64
	Challenging    float64
	Steep          float64
	ExtremelySteep float64
}

func (b *Bands) add(band Band, distance float64) {
	switch band {
	case Flat:
		b.Flat += distance
	case Gentle:
		b.Gentle += distance
	case Moderate:
		b.Moderate += distance
	case Challenging:
		b.Challenging += distance
	case Steep:
		b.Steep += distance
	default:
		b.ExtremelySteep += distance
	}
}

// Plus returns the element-wise sum of b and o.
func (b Bands) Plus(o Bands) Bands {
	return Bands{
		Flat:           b.Flat + o.Flat,
		Gentle:         b.Gentle + o.Gentle,
		Moderate:       b.Moderate + o.Moderate,
		Challenging:    b.Challenging + o.Challenging,
		Steep:          b.Steep + o.Steep,
		ExtremelySteep: b.ExtremelySteep + o.ExtremelySteep,
	}
}

func (b Bands) Sum() float64 {
	return b.Flat + b.Gentle + b.Moderate + b.Challenging + b.Steep + b.ExtremelySteep
}

// Profile is the pair of histograms for travelling a path from its first node
// (Forward) and from its last node (Backward). A descent in one direction is a
// climb in the other, so every sloped segment lands in exactly one side while
// flat segments land in both.
type Profile struct {
	Forward  Bands
	Backward Bands
}

// Segment adds one elementary segment of the given length and altitude change.
func (p *Profile) Segment(distance, rise float64) {
	gradient := 0.0
	if distance != 0 {
		gradient = rise / distance
	}

	switch {
	case gradient >= bandLimits[0]:
		p.Forward.add(Classify(gradient), distance)
	case gradient >= -bandLimits[0]:
		p.Forward.Flat += distance
		p.Backward.Flat += distance
	default:
		p.Backward.add(classifyDescent(-gradient), distance)
	}
}

// classifyDescent mirrors Classify for the backward side, where band edges are
// inclusive on the low end (a -3% grade is gentle, not moderate).
func classifyDescent(gradient float64) Band {
	for i, limit := range bandLimits {
		if gradient <= limit {
			return Band(i)
		}
	}
	return ExtremelySteep
}

// Accumulate builds a profile from per-node altitudes and cumulative distances.
// Both slices are indexed by node; extra entries in the longer one are ignored.
func Accumulate(altitudes, distances []float64) Profile {
	var p Profile
	n := min(len(altitudes), len(distances))
	for i := 0; i+1 < n; i++ {
		p.Segment(distances[i+1]-distances[i], altitudes[i+1]-altitudes[i])
	}
	return p
}

// Add sums o into p, both taken in the same orientation.
func (p *Profile) Add(o Profile) {
	p.Forward = p.Forward.Plus(o.Forward)
	p.Backward = p.Backward.Plus(o.Backward)
}

// AddReversed sums o into p after flipping o's orientation.
func (p *Profile) AddReversed(o Profile) {
	p.Add(o.Reversed())
}

// Reversed returns the profile of the same path travelled end to start.
func (p Profile) Reversed() Profile {
	return Profile{Forward: p.Backward, Backward: p.Forward}
}
