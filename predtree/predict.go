package predtree

import "github.com/cocosip/go-gpcc-codec/geom"

// Prediction modes of intra-coded nodes.
const (
	modeZero = iota
	modeDelta
	modeLinear
	modeParabolic
)

// intraPredict evaluates a prediction mode over up to three ancestor
// positions, component-wise. Spherical positions ride in a Vec3 as
// (r, phi, laser).
func intraPredict(mode int, a1, a2, a3 geom.Vec3) geom.Vec3 {
	switch mode {
	case modeDelta:
		return a1
	case modeLinear:
		return a1.Mul(2).Sub(a2)
	case modeParabolic:
		return a1.Mul(3).Sub(a2.Mul(3)).Add(a3)
	}
	return geom.Vec3{}
}

// maxModeFor bounds the mode choice by ancestor availability.
func maxModeFor(depth int) int {
	if depth > modeParabolic {
		return modeParabolic
	}
	return depth
}

func sphToVec(s geom.SphVec) geom.Vec3  { return geom.Vec3{s.R, s.Phi, s.Laser} }
func vecToSph(v geom.Vec3) geom.SphVec  { return geom.SphVec{R: v[0], Phi: v[1], Laser: v[2]} }

// phiStep quantises azimuth residuals by an approximate 1/r factor so
// the coded value tracks arc length rather than angle.
func phiStep(r int32, twoPiLog2 int) int64 {
	rr := int64(r)
	if rr < 1 {
		rr = 1
	}
	step := geom.DivApprox(int64(1)<<uint(twoPiLog2), 8*rr, 0)
	if step < 1 {
		step = 1
	}
	return step
}

func quantizePhi(res int32, step int64) int64 {
	v := int64(res)
	if v >= 0 {
		return (v + step/2) / step
	}
	return -((-v + step/2) / step)
}

func dequantizePhi(q int64, step int64) int32 {
	return int32(q * step)
}
