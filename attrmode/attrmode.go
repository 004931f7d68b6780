// Package attrmode codes the per-block prediction mode of the
// attribute layers: Null, Intra or Inter. The encoder buffers its
// decisions and rates them against shadow probabilities, so committed
// models never absorb tentative symbols.
package attrmode

import (
	"math"

	"github.com/cocosip/go-gpcc-codec/entropy"
)

// Mode is a block prediction mode.
type Mode uint8

const (
	// Null predicts nothing.
	Null Mode = iota
	// Intra predicts from the current frame.
	Intra
	// Inter predicts from the reference frame.
	Inter

	numModes
)

// IsNull reports mode Null.
func IsNull(m Mode) bool { return m == Null }

// IsIntra reports mode Intra.
func IsIntra(m Mode) bool { return m == Intra }

// IsInter reports mode Inter.
func IsInter(m Mode) bool { return m == Inter }

// NumLevels is the depth range the level context covers.
const NumLevels = 5

// NumContexts spans mode (3) x depth band (4) x sibling class (3) x
// density class (3).
const NumContexts = 3 * 4 * 3 * 3

// Coder holds the mode contexts shared by both directions.
type Coder struct {
	modeIsNull  [NumContexts]entropy.AdaptiveBitModel
	modeIsIntra [NumContexts]entropy.AdaptiveBitModel
	enableInter bool
}

// Reset seeds the context probabilities.
func (c *Coder) Reset() {
	for i := range c.modeIsNull {
		c.modeIsNull[i].Seed(0xC000)
	}
	for i := range c.modeIsIntra {
		c.modeIsIntra[i].Seed(0xAAAB)
	}
}

// SetInterEnabled toggles the inter branch of the syntax.
func (c *Coder) SetInterEnabled(flag bool) { c.enableInter = flag }

// IsInterEnabled reports the inter toggle.
func (c *Coder) IsInterEnabled() bool { return c.enableInter }

// enableIntra mirrors the context convention: the low trit of the
// context id carries intra availability.
func enableIntra(ctxMode int) bool { return ctxMode%3 > 0 }

// Encoder buffers mode decisions until flush so the rate estimates of
// later blocks see only committed state.
type Encoder struct {
	Coder
	arith      *entropy.Encoder
	buffer     []uint16
	rdoIsNull  [NumContexts]entropy.RateEstimator
	rdoIsIntra [NumContexts]entropy.RateEstimator

	meanDist  float64
	meanRate  float64
	learnRate float64

	// Entropy holds the per-mode bit costs of the last Estimate call.
	Entropy [numModes]float64
}

// NewEncoder binds the mode coder to a slice encoder.
func NewEncoder(arith *entropy.Encoder) *Encoder {
	e := &Encoder{arith: arith, meanRate: 1, learnRate: 1}
	e.Reset()
	return e
}

// Reset reseeds contexts and shadows.
func (e *Encoder) Reset() {
	e.Coder.Reset()
	for i := 0; i < NumContexts; i++ {
		e.rdoIsNull[i].Sync(&e.modeIsNull[i])
		e.rdoIsIntra[i].Sync(&e.modeIsIntra[i])
	}
	e.buffer = e.buffer[:0]
	e.meanDist = 0
	e.meanRate = 1
	e.learnRate = 1
}

// Encode records a mode decision; the bits reach the stream at Flush.
func (e *Encoder) Encode(ctxMode, ctxLevel int, real Mode) {
	e.encode(ctxMode, ctxLevel, real, false)
}

// Flush commits every buffered decision to the arithmetic encoder.
func (e *Encoder) Flush() {
	for _, val := range e.buffer {
		ctxMode, ctxLevel, real := unpack(val)
		e.encode(ctxMode, ctxLevel, real, true)
	}
	e.buffer = e.buffer[:0]
}

// Estimate fills Entropy with the bit cost of each admissible mode
// under the current shadow probabilities.
func (e *Encoder) Estimate(ctxMode, ctxLevel int) *[numModes]float64 {
	for i := range e.Entropy {
		e.Entropy[i] = math.Inf(1)
	}
	intra := enableIntra(ctxMode)
	if !e.enableInter && !intra {
		e.Entropy[Null] = 0
		return &e.Entropy
	}
	e.Entropy[Null] = e.rdoIsNull[ctxMode].BitCost(1)
	notNull := e.rdoIsNull[ctxMode].BitCost(0)
	if !e.enableInter {
		e.Entropy[Intra] = notNull
		return &e.Entropy
	}
	if !intra {
		e.Entropy[Inter] = notNull
		return &e.Entropy
	}
	e.Entropy[Intra] = notNull + e.rdoIsIntra[ctxMode].BitCost(1)
	e.Entropy[Inter] = notNull + e.rdoIsIntra[ctxMode].BitCost(0)
	return &e.Entropy
}

// Update feeds the running distortion/rate means behind the lambda.
func (e *Encoder) Update(dist, rate float64) {
	e.meanDist = e.meanDist*(1-e.learnRate) + dist*e.learnRate
	e.meanRate = e.meanRate*(1-e.learnRate) + rate*e.learnRate
	e.learnRate = e.learnRate*0.98 + 0.001*0.02
}

// Lambda returns the current rate weight.
func (e *Encoder) Lambda(rateWeight float64) float64 {
	return rateWeight * e.meanDist / e.meanRate
}

func (e *Encoder) encode(ctxMode, ctxLevel int, real Mode, writeOut bool) {
	intra := enableIntra(ctxMode)
	if !intra && !e.enableInter {
		return
	}
	if !writeOut {
		e.buffer = append(e.buffer, pack(ctxMode, ctxLevel, real))
	}
	isNull := 0
	if IsNull(real) {
		isNull = 1
	}
	if writeOut {
		e.arith.EncodeBit(&e.modeIsNull[ctxMode], isNull)
	} else {
		e.rdoIsNull[ctxMode].Update(isNull)
	}
	if isNull == 1 || !e.enableInter || !intra {
		return
	}
	isIntra := 0
	if IsIntra(real) {
		isIntra = 1
	}
	if writeOut {
		e.arith.EncodeBit(&e.modeIsIntra[ctxMode], isIntra)
	} else {
		e.rdoIsIntra[ctxMode].Update(isIntra)
	}
}

func pack(ctxMode, ctxLevel int, real Mode) uint16 {
	return uint16(real) + uint16(numModes)*(uint16(ctxLevel)+NumLevels*uint16(ctxMode))
}

func unpack(val uint16) (ctxMode, ctxLevel int, real Mode) {
	real = Mode(val % uint16(numModes))
	val /= uint16(numModes)
	ctxLevel = int(val % NumLevels)
	ctxMode = int(val / NumLevels)
	return ctxMode, ctxLevel, real
}

// Decoder parses mode decisions.
type Decoder struct {
	Coder
	arith *entropy.Decoder
}

// NewDecoder binds the mode coder to a slice decoder.
func NewDecoder(arith *entropy.Decoder) *Decoder {
	d := &Decoder{arith: arith}
	d.Reset()
	return d
}

// Decode parses one mode.
func (d *Decoder) Decode(ctxMode, ctxLevel int) Mode {
	intra := enableIntra(ctxMode)
	if !intra && !d.enableInter {
		return Null
	}
	if d.arith.DecodeBit(&d.modeIsNull[ctxMode]) == 1 {
		return Null
	}
	if !d.enableInter {
		return Intra
	}
	if !intra {
		return Inter
	}
	if d.arith.DecodeBit(&d.modeIsIntra[ctxMode]) == 1 {
		return Intra
	}
	return Inter
}
