package risk

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEWMAConvergesTowardRepeatedObservations(t *testing.T) {
	e := newEWMA(0.1, 0.5)
	for i := 0; i < 200; i++ {
		e.update(1.0)
	}
	assert.InDelta(t, 1.0, e.value, 0.01)
}

func TestEWMAFirstUpdateBlendsWithInitial(t *testing.T) {
	e := newEWMA(0.1, 0.5)
	e.update(1.0)
	assert.InDelta(t, 0.55, e.value, 0.0001)
}
