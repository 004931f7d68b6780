package entropy

import "math"

// RateEstimator is a shadow copy of an adaptive model. Encoder-side
// mode decisions query it for a bit cost and advance it with the same
// transition rule, so the committed models never absorb tentative
// symbols. Estimates are encoder-only and never bitstream observable.
type RateEstimator struct {
	prob uint16
}

// NewRateEstimator shadows the current state of a model.
func NewRateEstimator(m *AdaptiveBitModel) RateEstimator {
	return RateEstimator{prob: m.Prob()}
}

// Sync re-seeds the shadow from the committed model.
func (r *RateEstimator) Sync(m *AdaptiveBitModel) { r.prob = m.Prob() }

// BitCost returns the cost in bits of coding the given bit now.
func (r *RateEstimator) BitCost(bit int) float64 {
	p0 := float64(r.probOrInit()) / 65536.0
	if bit == 0 {
		return -math.Log2(p0)
	}
	return -math.Log2(1 - p0)
}

// Update advances the shadow probability as if the bit were coded.
func (r *RateEstimator) Update(bit int) {
	p := r.probOrInit()
	if bit != 0 {
		p -= probLut[p>>8]
		if p < probMin {
			p = probMin
		}
	} else {
		p += probLut[255-(p>>8)]
		if p > probMax {
			p = probMax
		}
	}
	r.prob = p
}

func (r *RateEstimator) probOrInit() uint16 {
	if r.prob == 0 {
		return probInit
	}
	return r.prob
}
