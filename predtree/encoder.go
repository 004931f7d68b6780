package predtree

import (
	"sort"

	"github.com/cocosip/go-gpcc-codec/codec"
	"github.com/cocosip/go-gpcc-codec/entropy"
	"github.com/cocosip/go-gpcc-codec/geom"
)

// treeNode is a built node awaiting encoding: the target position in
// the coding domain (Cartesian, or (r, phi, laser) for angular), the
// original Cartesian point and the duplicate count.
type treeNode struct {
	target   geom.Vec3
	cart     geom.Vec3
	dupCount int
}

// coderState is the evolving state shared by the encode and decode
// walkers: reconstructed node positions, the azimuth prediction ring
// and the quantisation schedule.
type coderState struct {
	hdr     *codec.SliceHeader
	angular bool
	speed   int32

	nodes   []geom.Vec3 // reconstructed positions, coding domain
	parents []int

	ring    []geom.Vec3
	lastPos geom.Vec3

	refIdx *refIndex

	quant       geom.QuantizerGeom
	qpCountdown int
}

func newCoderState(hdr *codec.SliceHeader, ref *codec.RefFrame) *coderState {
	st := &coderState{
		hdr:     hdr,
		angular: hdr.AngularEnabled,
		quant:   geom.NewQuantizerGeom(int(hdr.SliceQP)),
	}
	if st.angular {
		st.speed = hdr.Angular.AzimuthSpeed
	}
	if hdr.QPOffsetDepth >= 0 {
		st.qpCountdown = 1 << uint(hdr.QPOffsetDepth)
	}
	if hdr.InterEnabled && ref != nil && len(ref.Spherical) > 0 && st.angular {
		st.refIdx = newRefIndex(ref.Spherical, hdr.Angular.NumLasers())
	}
	return st
}

// ancestors returns up to three reconstructed ancestor positions of
// the node whose parent index is given, and how many are available.
func (st *coderState) ancestors(parent int) (a1, a2, a3 geom.Vec3, depth int) {
	idx := parent
	for depth < 3 && idx >= 0 {
		switch depth {
		case 0:
			a1 = st.nodes[idx]
		case 1:
			a2 = st.nodes[idx]
		case 2:
			a3 = st.nodes[idx]
		}
		depth++
		idx = st.parents[idx]
	}
	return a1, a2, a3, depth
}

// record appends a reconstructed node and maintains the ring and the
// inter query anchor.
func (st *coderState) record(pos geom.Vec3, parent int, resR int32) int {
	st.nodes = append(st.nodes, pos)
	st.parents = append(st.parents, parent)
	if st.hdr.AzimuthScaling {
		if geom.Abs32(resR) > thObj {
			st.ring = st.ring[:0]
		}
		st.ring = append([]geom.Vec3{pos}, st.ring...)
		if len(st.ring) > NPredDelta {
			st.ring = st.ring[:NPredDelta]
		}
	}
	st.lastPos = pos
	return len(st.nodes) - 1
}

// buildNodes orders the cloud for chaining and folds duplicates.
func buildNodes(cloud geom.PointCloud, hdr *codec.SliceHeader) []treeNode {
	type keyed struct {
		cart   geom.Vec3
		target geom.Vec3
	}
	pts := make([]keyed, len(cloud))
	for i, p := range cloud {
		pts[i] = keyed{cart: p, target: p}
		if hdr.AngularEnabled {
			pts[i].target = sphToVec(geom.CartToSphere(p, &hdr.Angular))
		}
	}
	if hdr.AngularEnabled {
		sort.SliceStable(pts, func(a, b int) bool {
			ta, tb := pts[a].target, pts[b].target
			if ta[2] != tb[2] {
				return ta[2] < tb[2]
			}
			if ta[1] != tb[1] {
				return ta[1] < tb[1]
			}
			return ta[0] < tb[0]
		})
	} else {
		sort.SliceStable(pts, func(a, b int) bool {
			return geom.MortonCode(pts[a].cart) < geom.MortonCode(pts[b].cart)
		})
	}
	var nodes []treeNode
	for _, p := range pts {
		if n := len(nodes); !hdr.UniquePoints && n > 0 && nodes[n-1].cart == p.cart {
			nodes[n-1].dupCount++
			continue
		}
		nodes = append(nodes, treeNode{target: p.target, cart: p.cart})
	}
	return nodes
}

// EncodeForest codes the whole slice body: a chain tree terminated by
// the end-of-trees flag.
func EncodeForest(e *entropy.Encoder, cx *Contexts, cloud geom.PointCloud, ref *codec.RefFrame, hdr *codec.SliceHeader) error {
	if err := ValidateHeader(hdr); err != nil {
		return err
	}
	nodes := buildNodes(cloud, hdr)
	st := newCoderState(hdr, ref)
	if len(nodes) > 0 {
		e.EncodeBit(&cx.ctxEndOfTrees, 0)
		for i, n := range nodes {
			parent := i - 1
			numChildren := 0
			if i < len(nodes)-1 {
				numChildren = 1
			}
			encodeNode(e, cx, st, &n, parent, numChildren)
		}
	}
	e.EncodeBit(&cx.ctxEndOfTrees, 1)
	return nil
}

func encodeNode(e *entropy.Encoder, cx *Contexts, st *coderState, n *treeNode, parent, numChildren int) {
	hdr := st.hdr
	if !hdr.UniquePoints {
		encodeDupCount(e, cx, n.dupCount)
	}
	e.EncodeBit(&cx.ctxNumChild[0], numChildren>>1&1)
	e.EncodeBit(&cx.ctxNumChild[1], numChildren&1)

	if hdr.QPOffsetDepth >= 0 && !st.angular {
		st.qpCountdown--
		if st.qpCountdown == 0 {
			st.qpCountdown = 1 << uint(hdr.QPOffsetDepth)
			e.EncodeExpGolombSigned(0, 0, cx.ctxQPDeltaEG[:])
		}
	}

	// choose the predictor
	a1, a2, a3, depth := st.ancestors(parent)
	maxMode := maxModeFor(depth)
	bestMode, bestPred := bestIntra(st, n.target, a1, a2, a3, maxMode)

	inter := false
	useNext := false
	var interPred geom.Vec3
	if st.refIdx != nil {
		closest, ok1 := st.refIdx.getClosestPred(st.lastPos[1], st.lastPos[2])
		next, ok2 := st.refIdx.getNextClosestPred(st.lastPos[1], st.lastPos[2])
		if ok1 {
			cPred := sphToVec(closest)
			cCost := predCost(st, n.target, cPred)
			if ok2 {
				nPred := sphToVec(next)
				if nCost := predCost(st, n.target, nPred); nCost < cCost {
					cPred, cCost = nPred, nCost
					useNext = true
				}
			}
			if cCost < predCost(st, n.target, bestPred) {
				inter = true
				interPred = cPred
			}
		}
		e.EncodeBit(&cx.ctxInterFlag, b2i(inter))
		if inter {
			e.EncodeBit(&cx.ctxRefNode, b2i(useNext))
		}
	}

	var pred geom.Vec3
	switch {
	case inter:
		pred = interPred
	case hdr.AzimuthScaling && st.angular:
		if len(st.ring) > 0 {
			idx := bestRingIdx(st, n.target)
			encodeTruncUnary(e, cx.ctxPredIdx[:], idx, len(st.ring)-1)
			pred = st.ring[idx]
		}
	default:
		e.EncodeBit(&cx.ctxMode[0], bestMode>>1&1)
		e.EncodeBit(&cx.ctxMode[1], bestMode&1)
		pred = bestPred
	}

	if st.angular && st.speed > 0 {
		k := phiMulFor(n.target[1], pred[1], st.speed)
		e.EncodeExpGolombSigned(int64(k), 1, cx.ctxPhiMulEG[:])
		pred[1] += k * st.speed
	}

	res := n.target.Sub(pred)
	pos := encodeResidual(e, cx, st, res, pred, b2i(inter))
	st.record(pos, parent, res[0])

	if st.angular && !hdr.Residual2Disabled {
		rec := geom.SphereToCart(vecToSph(pos), &hdr.Angular)
		res2 := n.cart.Sub(rec)
		for k := 0; k < 3; k++ {
			encodeRes2Component(e, cx, k, res2[k])
		}
	}
}

// encodeResidual codes the three components with cross-component sign
// contexts and returns the reconstructed position.
func encodeResidual(e *entropy.Encoder, cx *Contexts, st *coderState, res geom.Vec3, pred geom.Vec3, inter int) geom.Vec3 {
	pos := pred
	prevSign := 1
	for k := 0; k < 3; k++ {
		v := int64(res[k])
		var recon int64
		switch {
		case st.angular && st.hdr.AzimuthScaling && k == 1:
			// r is reconstructed before phi, so both sides derive
			// the same arc step
			step := phiStep(pos[0], st.hdr.Angular.AzimuthTwoPiLog2)
			q := quantizePhi(res[1], step)
			encodeResComponent(e, cx, k, inter, prevSign, q)
			recon = int64(dequantizePhi(q, step))
			prevSign = signState(int32(q))
		case !st.angular:
			q := st.quant.Quantize(v)
			encodeResComponent(e, cx, k, inter, prevSign, q)
			recon = st.quant.Unscale(q)
			prevSign = signState(int32(q))
		default:
			encodeResComponent(e, cx, k, inter, prevSign, v)
			recon = v
			prevSign = signState(res[k])
		}
		pos[k] = pred[k] + int32(recon)
	}
	return pos
}

func encodeResComponent(e *entropy.Encoder, cx *Contexts, comp, inter, prevSign int, v int64) {
	if v == 0 {
		e.EncodeBit(&cx.ctxResIsZero[comp][inter], 1)
		return
	}
	e.EncodeBit(&cx.ctxResIsZero[comp][inter], 0)
	neg := 0
	if v < 0 {
		neg = 1
		v = -v
	}
	e.EncodeBit(&cx.ctxResSign[comp][prevSign], neg)
	if v == 1 {
		e.EncodeBit(&cx.ctxResIsOne[comp][inter], 1)
		return
	}
	e.EncodeBit(&cx.ctxResIsOne[comp][inter], 0)
	if v == 2 {
		e.EncodeBit(&cx.ctxResIsTwo[comp][inter], 1)
		return
	}
	e.EncodeBit(&cx.ctxResIsTwo[comp][inter], 0)
	e.EncodeExpGolomb(uint64(v-3), 1, cx.ctxResEG[comp][inter][:])
}

func encodeRes2Component(e *entropy.Encoder, cx *Contexts, comp int, v int32) {
	if v == 0 {
		e.EncodeBit(&cx.ctxRes2IsZero[comp], 1)
		return
	}
	e.EncodeBit(&cx.ctxRes2IsZero[comp], 0)
	if v < 0 {
		e.EncodeBypass(1)
		v = -v
	} else {
		e.EncodeBypass(0)
	}
	e.EncodeExpGolomb(uint64(v-1), 0, cx.ctxRes2EG[comp][:])
}

func encodeDupCount(e *entropy.Encoder, cx *Contexts, n int) {
	gt0 := 0
	if n > 0 {
		gt0 = 1
	}
	e.EncodeBit(&cx.ctxDupGt0, gt0)
	if gt0 == 0 {
		return
	}
	gt1 := 0
	if n > 1 {
		gt1 = 1
	}
	e.EncodeBit(&cx.ctxDupGt1, gt1)
	if gt1 == 1 {
		e.EncodeExpGolomb(uint64(n-2), 0, cx.ctxDupEG[:])
	}
}

func encodeTruncUnary(e *entropy.Encoder, ctx []entropy.AdaptiveBitModel, v, maxV int) {
	for n := 0; n < v; n++ {
		e.EncodeBit(&ctx[min(n, len(ctx)-1)], 1)
	}
	if v < maxV {
		e.EncodeBit(&ctx[min(v, len(ctx)-1)], 0)
	}
}

// bestIntra evaluates the available modes and returns the cheapest,
// ties to the lowest mode number.
func bestIntra(st *coderState, target, a1, a2, a3 geom.Vec3, maxMode int) (int, geom.Vec3) {
	bestMode := 0
	bestPred := intraPredict(0, a1, a2, a3)
	bestCost := predCost(st, target, bestPred)
	for m := 1; m <= maxMode; m++ {
		p := intraPredict(m, a1, a2, a3)
		if c := predCost(st, target, p); c < bestCost {
			bestCost = c
			bestMode = m
			bestPred = p
		}
	}
	return bestMode, bestPred
}

func bestRingIdx(st *coderState, target geom.Vec3) int {
	best := 0
	bestCost := predCost(st, target, st.ring[0])
	for i := 1; i < len(st.ring); i++ {
		if c := predCost(st, target, st.ring[i]); c < bestCost {
			bestCost = c
			best = i
		}
	}
	return best
}

// predCost is the encoder's surrogate rate: the L1 norm of the would-
// be residual, with the azimuth wrapped through the multiplier.
func predCost(st *coderState, target, pred geom.Vec3) int64 {
	d := target.Sub(pred)
	if st.angular && st.speed > 0 {
		k := phiMulFor(target[1], pred[1], st.speed)
		d[1] = target[1] - (pred[1] + k*st.speed)
	}
	return d.Norm1()
}

// phiMulFor rounds the azimuth gap to whole speed steps, half away
// from zero.
func phiMulFor(actual, pred, speed int32) int32 {
	d := int64(actual) - int64(pred)
	s := int64(speed)
	if d >= 0 {
		return int32((d + s/2) / s)
	}
	return int32(-((-d + s/2) / s))
}
