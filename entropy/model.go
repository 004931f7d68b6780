package entropy

// Probability models for the binary range coder.
//
// A model tracks the probability of symbol 0 as a 16-bit value
// (0x8000 is equiprobable). Adaptation is table driven: coding a 1
// subtracts lut[p>>8], coding a 0 adds lut[255-(p>>8)], so the
// probability decays exponentially toward the observed symbol.

const (
	probInit = 0x8000
	probMin  = 0x0040
	probMax  = 0xFFC0
)

// probLut is the adaptation step per high byte of the probability.
var probLut [256]uint16

func init() {
	for i := range probLut {
		probLut[i] = uint16(i<<3 | 4)
	}
}

// AdaptiveBitModel is a context: one adaptive probability of symbol 0.
type AdaptiveBitModel struct {
	prob uint16
}

// NewAdaptiveBitModel returns a model at the equiprobable state.
func NewAdaptiveBitModel() AdaptiveBitModel {
	return AdaptiveBitModel{prob: probInit}
}

// Reset returns the model to the equiprobable state.
func (m *AdaptiveBitModel) Reset() { m.prob = probInit }

// Seed sets the probability of symbol 0 directly.
func (m *AdaptiveBitModel) Seed(p0 uint16) { m.prob = p0 }

// Prob returns the current probability of symbol 0.
func (m *AdaptiveBitModel) Prob() uint16 {
	if m.prob == 0 {
		return probInit
	}
	return m.prob
}

func (m *AdaptiveBitModel) update(bit int) {
	p := m.Prob()
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
	m.prob = p
}

// UpdateCoderIdx applies the same decay rule to an 8-bit coder index
// as used by the dynamic context maps, clamped away from the ends.
func UpdateCoderIdx(c uint8, bit int) uint8 {
	v := int(c)
	if bit != 0 {
		v -= int(coderLut[v>>4])
		if v < 1 {
			v = 1
		}
	} else {
		v += int(coderLut[15-(v>>4)])
		if v > 254 {
			v = 254
		}
	}
	return uint8(v)
}

// coderLut is the 16-entry nibble-indexed step table for coder
// indices.
var coderLut = [16]uint8{1, 3, 5, 7, 9, 11, 13, 15, 17, 19, 21, 23, 25, 27, 29, 31}

// ResetModels returns every model in the slice to the equiprobable
// state.
func ResetModels(models []AdaptiveBitModel) {
	for i := range models {
		models[i].Reset()
	}
}
