package predtree

import (
	"github.com/cocosip/go-gpcc-codec/codec"
	"github.com/cocosip/go-gpcc-codec/entropy"
	"github.com/cocosip/go-gpcc-codec/geom"
)

// DecodeForest parses tree after tree until the end-of-trees flag
// reads true, emitting reconstructed points and, for angular slices,
// their spherical positions.
func DecodeForest(d *entropy.Decoder, cx *Contexts, ref *codec.RefFrame, hdr *codec.SliceHeader) (geom.PointCloud, []geom.SphVec, error) {
	if err := ValidateHeader(hdr); err != nil {
		return nil, nil, err
	}
	st := newCoderState(hdr, ref)
	var out geom.PointCloud
	var sph []geom.SphVec

	for d.DecodeBit(&cx.ctxEndOfTrees) == 0 {
		// one tree, depth first; the stack holds pending parent slots
		stack := []int{-1}
		for len(stack) > 0 {
			parent := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			idx, numChildren, err := decodeNode(d, cx, st, hdr, parent, &out, &sph)
			if err != nil {
				return nil, nil, err
			}
			for c := 0; c < numChildren; c++ {
				stack = append(stack, idx)
			}
			if len(out) > hdr.NumPoints() {
				return nil, nil, codec.SyntaxError(d.Pos(), "predictive forest exceeds declared point count")
			}
			if d.Overrun() {
				return nil, nil, codec.SyntaxError(d.Pos(), "truncated geometry payload")
			}
		}
	}
	if !hdr.AngularEnabled {
		sph = nil
	}
	return out, sph, nil
}

func decodeNode(d *entropy.Decoder, cx *Contexts, st *coderState, hdr *codec.SliceHeader,
	parent int, out *geom.PointCloud, sph *[]geom.SphVec) (int, int, error) {

	dupCount := 0
	if !hdr.UniquePoints {
		dupCount = decodeDupCount(d, cx)
	}
	numChildren := d.DecodeBit(&cx.ctxNumChild[0])<<1 | d.DecodeBit(&cx.ctxNumChild[1])

	if hdr.QPOffsetDepth >= 0 && !st.angular {
		st.qpCountdown--
		if st.qpCountdown == 0 {
			st.qpCountdown = 1 << uint(hdr.QPOffsetDepth)
			delta := d.DecodeExpGolombSigned(0, cx.ctxQPDeltaEG[:])
			st.quant = geom.NewQuantizerGeom(int(hdr.SliceQP) + int(delta))
		}
	}

	a1, a2, a3, depth := st.ancestors(parent)
	maxMode := maxModeFor(depth)

	inter := false
	var pred geom.Vec3
	if st.refIdx != nil {
		inter = d.DecodeBit(&cx.ctxInterFlag) == 1
		if inter {
			useNext := d.DecodeBit(&cx.ctxRefNode) == 1
			var s geom.SphVec
			var ok bool
			if useNext {
				s, ok = st.refIdx.getNextClosestPred(st.lastPos[1], st.lastPos[2])
			} else {
				s, ok = st.refIdx.getClosestPred(st.lastPos[1], st.lastPos[2])
			}
			if !ok {
				return 0, 0, codec.SyntaxError(d.Pos(), "inter prediction without reference candidates")
			}
			pred = sphToVec(s)
		}
	}
	if !inter {
		if hdr.AzimuthScaling && st.angular {
			if len(st.ring) > 0 {
				idx := decodeTruncUnary(d, cx.ctxPredIdx[:], len(st.ring)-1)
				pred = st.ring[idx]
			}
		} else {
			mode := d.DecodeBit(&cx.ctxMode[0])<<1 | d.DecodeBit(&cx.ctxMode[1])
			if mode > maxMode {
				return 0, 0, codec.SyntaxError(d.Pos(), "prediction mode %d without %d ancestors", mode, mode)
			}
			pred = intraPredict(mode, a1, a2, a3)
		}
	}

	if st.angular && st.speed > 0 {
		k := int32(d.DecodeExpGolombSigned(1, cx.ctxPhiMulEG[:]))
		pred[1] += k * st.speed
	}

	pos, resR := decodeResidual(d, cx, st, pred, b2i(inter))
	idx := st.record(pos, parent, resR)

	// emit
	var cart geom.Vec3
	if st.angular {
		rec := geom.SphereToCart(vecToSph(pos), &hdr.Angular)
		if !hdr.Residual2Disabled {
			for k := 0; k < 3; k++ {
				rec[k] += decodeRes2Component(d, cx, k)
			}
		}
		cart = rec.MaxV(geom.Vec3{})
	} else {
		cart = pos
	}
	limit := int32(1)<<uint(hdr.MaxRootNodeDimLog2()) - 1
	cart = cart.Clamp(0, limit)
	for i := 0; i <= dupCount; i++ {
		*out = append(*out, cart.Add(hdr.SliceOrigin))
		if st.angular {
			*sph = append(*sph, vecToSph(pos))
		}
	}
	return idx, numChildren, nil
}

// decodeResidual mirrors encodeResidual and returns the reconstructed
// position plus the radial residual feeding the new-object test.
func decodeResidual(d *entropy.Decoder, cx *Contexts, st *coderState, pred geom.Vec3, inter int) (geom.Vec3, int32) {
	pos := pred
	prevSign := 1
	var resR int32
	for k := 0; k < 3; k++ {
		switch {
		case st.angular && st.hdr.AzimuthScaling && k == 1:
			step := phiStep(pos[0], st.hdr.Angular.AzimuthTwoPiLog2)
			q := decodeResComponent(d, cx, k, inter, prevSign)
			pos[k] = pred[k] + dequantizePhi(q, step)
			prevSign = signState(int32(q))
		case !st.angular:
			q := decodeResComponent(d, cx, k, inter, prevSign)
			pos[k] = pred[k] + int32(st.quant.Unscale(q))
			prevSign = signState(int32(q))
		default:
			v := decodeResComponent(d, cx, k, inter, prevSign)
			pos[k] = pred[k] + int32(v)
			prevSign = signState(int32(v))
			if k == 0 {
				resR = int32(v)
			}
		}
	}
	return pos, resR
}

func decodeResComponent(d *entropy.Decoder, cx *Contexts, comp, inter, prevSign int) int64 {
	if d.DecodeBit(&cx.ctxResIsZero[comp][inter]) == 1 {
		return 0
	}
	neg := d.DecodeBit(&cx.ctxResSign[comp][prevSign]) == 1
	var v int64
	if d.DecodeBit(&cx.ctxResIsOne[comp][inter]) == 1 {
		v = 1
	} else if d.DecodeBit(&cx.ctxResIsTwo[comp][inter]) == 1 {
		v = 2
	} else {
		v = 3 + int64(d.DecodeExpGolomb(1, cx.ctxResEG[comp][inter][:]))
	}
	if neg {
		return -v
	}
	return v
}

func decodeRes2Component(d *entropy.Decoder, cx *Contexts, comp int) int32 {
	if d.DecodeBit(&cx.ctxRes2IsZero[comp]) == 1 {
		return 0
	}
	neg := d.DecodeBypass() == 1
	v := int32(d.DecodeExpGolomb(0, cx.ctxRes2EG[comp][:])) + 1
	if neg {
		return -v
	}
	return v
}

func decodeDupCount(d *entropy.Decoder, cx *Contexts) int {
	if d.DecodeBit(&cx.ctxDupGt0) == 0 {
		return 0
	}
	if d.DecodeBit(&cx.ctxDupGt1) == 0 {
		return 1
	}
	return 2 + int(d.DecodeExpGolomb(0, cx.ctxDupEG[:]))
}

func decodeTruncUnary(d *entropy.Decoder, ctx []entropy.AdaptiveBitModel, maxV int) int {
	v := 0
	for v < maxV && d.DecodeBit(&ctx[min(v, len(ctx)-1)]) == 1 {
		v++
	}
	return v
}
