package trisoup

import (
	"github.com/cocosip/go-gpcc-codec/entropy"
	"github.com/cocosip/go-gpcc-codec/obuf"
	"github.com/cocosip/go-gpcc-codec/octree"
)

// map dimensions of the surface contexts
const (
	segS1Bits = 8
	segS2Bits = 4
)

// Contexts is the adaptive state of the surface layer, bundled with
// the octree contexts of the descent above it.
type Contexts struct {
	Oct *octree.Contexts

	mapPresence  *obuf.Map
	bankPresence *obuf.ModelBank
	mapVertex    *obuf.Map
	bankVertex   *obuf.ModelBank

	ctxTempV2   [4]entropy.AdaptiveBitModel
	ctxDrift0   [4][3]entropy.AdaptiveBitModel
	ctxDriftMag [4][3]entropy.AdaptiveBitModel

	// rolling presence bits of the two previously coded segments
	prevMask int
}

// NewContexts returns a fresh bundle.
func NewContexts() *Contexts {
	return &Contexts{
		Oct:          octree.NewContexts(),
		mapPresence:  obuf.New(segS1Bits, segS2Bits, nil),
		bankPresence: obuf.NewModelBank(),
		mapVertex:    obuf.New(segS1Bits, segS2Bits, nil),
		bankVertex:   obuf.NewModelBank(),
	}
}

// interCtxOf classifies the inter prediction of a segment: 0 without a
// reference, otherwise 1 plus the predicted presence.
func interCtxOf(interActive bool, seg *segment) int {
	if !interActive {
		return 0
	}
	if seg.predPresent {
		return 2
	}
	return 1
}

// presenceKey derives the (i, j) pair of the presence bit from the
// touching-leaf count, the mask of previous segments, the direction
// and the inter class.
func (cx *Contexts) presenceKey(seg *segment, interCtx int) (int, int) {
	nc := len(seg.touches) - 1
	if nc > 3 {
		nc = 3
	}
	i := nc<<6 | cx.prevMask<<4 | seg.axis<<2 | interCtx
	j := seg.axis<<2 | interCtx
	return i, j
}

// vertexKey derives the context of one high vertex bit from the
// previously coded bit, the touching-leaf count, the close-segment
// mask, the direction and the inter prediction.
func (cx *Contexts) vertexKey(seg *segment, interCtx, prevBit int) (int, int) {
	predBit := 0
	if seg.predPresent {
		predBit = 1
	}
	nc := len(seg.touches) - 1
	if nc > 3 {
		nc = 3
	}
	i := prevBit<<7 | nc<<5 | cx.prevMask<<3 | seg.axis<<1 | predBit
	j := seg.axis<<2 | interCtx&3
	return i, j
}

// pushPresence rolls the previously-coded-segment mask.
func (cx *Contexts) pushPresence(present bool) {
	cx.prevMask <<= 1
	if present {
		cx.prevMask |= 1
	}
	cx.prevMask &= 3
}

// encodeSegment codes the presence bit and, when present, the vertex
// offset: two OBUF bits, one static-context bit, bypass for the rest.
func encodeSegment(e *entropy.Encoder, cx *Contexts, seg *segment, interActive bool, nbits int) {
	interCtx := interCtxOf(interActive, seg)
	i, j := cx.presenceKey(seg, interCtx)
	obuf.EncodeBit(e, cx.bankPresence, cx.mapPresence, b2i(seg.present), i, j)
	if seg.present {
		v := seg.value
		prevBit := 0
		for b := 0; b < nbits; b++ {
			bit := int(v >> uint(nbits-1-b) & 1)
			switch b {
			case 0, 1:
				vi, vj := cx.vertexKey(seg, interCtx, prevBit)
				obuf.EncodeBit(e, cx.bankVertex, cx.mapVertex, bit, vi, vj)
			case 2:
				e.EncodeBit(&cx.ctxTempV2[prevBit<<1|int(v>>uint(nbits-1)&1)], bit)
			default:
				e.EncodeBypass(bit)
			}
			prevBit = bit
		}
	}
	cx.pushPresence(seg.present)
}

// decodeSegment mirrors encodeSegment.
func decodeSegment(d *entropy.Decoder, cx *Contexts, seg *segment, interActive bool, nbits int) {
	interCtx := interCtxOf(interActive, seg)
	i, j := cx.presenceKey(seg, interCtx)
	seg.present = obuf.DecodeBit(d, cx.bankPresence, cx.mapPresence, i, j) == 1
	if seg.present {
		var v int32
		prevBit := 0
		msb := 0
		for b := 0; b < nbits; b++ {
			var bit int
			switch b {
			case 0, 1:
				vi, vj := cx.vertexKey(seg, interCtx, prevBit)
				bit = obuf.DecodeBit(d, cx.bankVertex, cx.mapVertex, vi, vj)
			case 2:
				bit = d.DecodeBit(&cx.ctxTempV2[prevBit<<1|msb])
			default:
				bit = d.DecodeBypass()
			}
			if b == 0 {
				msb = bit
			}
			v = v<<1 | int32(bit)
			prevBit = bit
		}
		seg.value = v
	}
	cx.pushPresence(seg.present)
}

// DriftPred tags the centroid-drift prediction: intra leaves have no
// predicted value.
type DriftPred struct {
	Inter bool
	Value int32
}

// encodeDrift codes the signed centroid displacement within
// [-bound, bound]: a zero flag, a bypass sign and a unary magnitude
// tail truncated at bound. The range is symmetric, so a nonzero drift
// always carries its sign.
func encodeDrift(e *entropy.Encoder, cx *Contexts, driftQ int32, bound int32, pred DriftPred) {
	ctxMinMax := driftCtxMinMax(bound)
	interCtx := 0
	if pred.Inter {
		interCtx = 1
		if pred.Value != 0 {
			interCtx = 2
		}
	}
	if driftQ == 0 {
		e.EncodeBit(&cx.ctxDrift0[ctxMinMax][interCtx], 1)
		return
	}
	e.EncodeBit(&cx.ctxDrift0[ctxMinMax][interCtx], 0)
	if bound > 0 {
		if driftQ < 0 {
			e.EncodeBypass(1)
		} else {
			e.EncodeBypass(0)
		}
	}
	mag := geom32Abs(driftQ)
	for m := int32(1); m < mag; m++ {
		e.EncodeBit(&cx.ctxDriftMag[minInt(int(m-1), 3)][interCtx], 1)
	}
	if mag < bound {
		e.EncodeBit(&cx.ctxDriftMag[minInt(int(mag-1), 3)][interCtx], 0)
	}
}

// decodeDrift mirrors encodeDrift.
func decodeDrift(d *entropy.Decoder, cx *Contexts, bound int32, pred DriftPred) int32 {
	ctxMinMax := driftCtxMinMax(bound)
	interCtx := 0
	if pred.Inter {
		interCtx = 1
		if pred.Value != 0 {
			interCtx = 2
		}
	}
	if d.DecodeBit(&cx.ctxDrift0[ctxMinMax][interCtx]) == 1 {
		return 0
	}
	neg := false
	if bound > 0 {
		neg = d.DecodeBypass() == 1
	}
	mag := int32(1)
	for mag < bound && d.DecodeBit(&cx.ctxDriftMag[minInt(int(mag-1), 3)][interCtx]) == 1 {
		mag++
	}
	if neg {
		return -mag
	}
	return mag
}

func driftCtxMinMax(bound int32) int {
	c := int(bound >> 2)
	if c > 3 {
		c = 3
	}
	return c
}

func b2i(b bool) int {
	if b {
		return 1
	}
	return 0
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func geom32Abs(v int32) int32 {
	if v < 0 {
		return -v
	}
	return v
}
