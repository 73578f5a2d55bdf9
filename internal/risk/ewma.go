package risk

// ewma is a plain exponentially-weighted moving average, alpha=0.1 per
// spec.md §4.4. No pack library implements a bare scalar EWMA — this is
// a four-line formula, not a concern worth a dependency.
type ewma struct {
	alpha float64
	value float64
}

func newEWMA(alpha, initial float64) *ewma {
	return &ewma{alpha: alpha, value: initial}
}

func (e *ewma) update(obs float64) {
	e.value = e.alpha*obs + (1-e.alpha)*e.value
}
