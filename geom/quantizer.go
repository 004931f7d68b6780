package geom

// QuantizerGeom scales geometry residuals and position low bits by a
// quantisation parameter. The step size is (8 + qp%8) << (qp/8) in
// units of 1/8, so qp == 0 is the identity.
type QuantizerGeom struct {
	qp int
}

// NewQuantizerGeom returns a quantizer for the given QP. Negative QPs
// clamp to zero.
func NewQuantizerGeom(qp int) QuantizerGeom {
	if qp < 0 {
		qp = 0
	}
	return QuantizerGeom{qp: qp}
}

// QP returns the configured quantisation parameter.
func (q QuantizerGeom) QP() int { return q.qp }

// step returns the step size in eighths.
func (q QuantizerGeom) step() int64 {
	return int64(8+q.qp%8) << uint(q.qp/8)
}

// Quantize maps a value to its quantised index, rounding half away
// from zero.
func (q QuantizerGeom) Quantize(x int64) int64 {
	if q.qp == 0 {
		return x
	}
	s := q.step()
	if x >= 0 {
		return (x*8 + s/2) / s
	}
	return -((-x*8 + s/2) / s)
}

// Unscale reconstructs a value from its quantised index.
func (q QuantizerGeom) Unscale(x int64) int64 {
	if q.qp == 0 {
		return x
	}
	return DivExp2RoundHalfInf(x*q.step(), 3)
}
