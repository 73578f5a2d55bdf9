package risk

import (
	"github.com/cinar/indicator/v2/volatility"
)

// VolatilityFactor computes a 0-100 risk contribution from a recent price
// series by running a Bollinger Bands pass and normalizing the most
// recent band width: a wide band relative to the middle price means the
// pair has been moving a lot, which increases the odds that a quote is
// already stale by the time a trade executes. Adapted from a
// CalculateBollingerBands-style channel-based
// volatility.NewBollingerBandsWithPeriod usage, repurposed from a
// technical-analysis signal into an execution-risk input.
func VolatilityFactor(prices []float64, period int) float64 {
	if len(prices) < period || period < 2 {
		return 0
	}

	pricesChan := make(chan float64, len(prices))
	for _, p := range prices {
		pricesChan <- p
	}
	close(pricesChan)

	bb := volatility.NewBollingerBandsWithPeriod[float64](period)
	lowerChan, middleChan, upperChan := bb.Compute(pricesChan)

	var lower, middle, upper float64
	for {
		l, lok := <-lowerChan
		m, mok := <-middleChan
		u, uok := <-upperChan
		if !lok || !mok || !uok {
			break
		}
		lower, middle, upper = l, m, u
	}

	if middle == 0 {
		return 0
	}

	widthPct := ((upper - lower) / middle) * 100
	// A 0% band is calm (factor 0); a >=20%-of-middle band is treated as
	// maximally volatile (factor 100) for this normalization.
	factor := widthPct * 5
	if factor < 0 {
		factor = 0
	}
	if factor > 100 {
		factor = 100
	}
	return factor
}
