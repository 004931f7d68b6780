package motion

import (
	"errors"

	"github.com/cocosip/go-gpcc-codec/entropy"
	"github.com/cocosip/go-gpcc-codec/geom"
)

var (
	errBlockBelowMin = errors.New("motion: block size below minimum PU size")
	errNoSearchRange = errors.New("motion: search range must be positive")
)

// ContextSet holds the entropy contexts of the PU syntax. One set
// lives per slice, shared by all blocks.
type ContextSet struct {
	Split  entropy.AdaptiveBitModel
	Prefix [8]entropy.AdaptiveBitModel
}

// Reset restores the contexts to their initial state.
func (cs *ContextSet) Reset() {
	cs.Split.Reset()
	entropy.ResetModels(cs.Prefix[:])
}

// encodeComponent codes one vector component: truncated-unary prefix
// through contexts, fixed suffix and sign bypassed.
func (cs *ContextSet) encodeComponent(e *entropy.Encoder, v int32, p *Params) {
	mag := int(geom.Abs32(v))
	suffix := DeriveMaxSuffixBits(p.SearchRange)
	maxPrefix := DeriveMaxPrefixBits(p.SearchRange)
	prefix := mag >> uint(suffix)
	for n := 0; n < prefix; n++ {
		e.EncodeBit(&cs.Prefix[min(n, len(cs.Prefix)-1)], 1)
	}
	if prefix < maxPrefix {
		e.EncodeBit(&cs.Prefix[min(prefix, len(cs.Prefix)-1)], 0)
	}
	e.EncodeBypassBits(uint64(mag)&(1<<uint(suffix)-1), suffix)
	if mag > 0 {
		if v < 0 {
			e.EncodeBypass(1)
		} else {
			e.EncodeBypass(0)
		}
	}
}

func (cs *ContextSet) decodeComponent(d *entropy.Decoder, p *Params) int32 {
	suffix := DeriveMaxSuffixBits(p.SearchRange)
	maxPrefix := DeriveMaxPrefixBits(p.SearchRange)
	prefix := 0
	for prefix < maxPrefix && d.DecodeBit(&cs.Prefix[min(prefix, len(cs.Prefix)-1)]) == 1 {
		prefix++
	}
	mag := int32(prefix)<<uint(suffix) | int32(d.DecodeBypassBits(suffix))
	if mag > 0 && d.DecodeBypass() == 1 {
		return -mag
	}
	return mag
}

// EncodeVector codes a motion vector.
func (cs *ContextSet) EncodeVector(e *entropy.Encoder, mv geom.Vec3, p *Params) {
	for k := 0; k < 3; k++ {
		cs.encodeComponent(e, mv[k], p)
	}
}

// DecodeVector parses a motion vector.
func (cs *ContextSet) DecodeVector(d *entropy.Decoder, p *Params) geom.Vec3 {
	return geom.Vec3{
		cs.decodeComponent(d, p),
		cs.decodeComponent(d, p),
		cs.decodeComponent(d, p),
	}
}

// SearchAndEncode runs the PU search for one block, emits the PU tree
// interleaved into the slice stream and returns the compensated
// reference points for the block. cur is the block's working points,
// ref the reference points falling inside the block box.
func SearchAndEncode(e *entropy.Encoder, cs *ContextSet, p *Params,
	origin geom.Vec3, sizeLog2 int, cur, ref geom.PointCloud) geom.PointCloud {

	comp := make(geom.PointCloud, 0, len(ref))
	encodePU(e, cs, p, origin, sizeLog2, cur, ref, &comp)
	return comp
}

func encodePU(e *entropy.Encoder, cs *ContextSet, p *Params,
	origin geom.Vec3, sizeLog2 int, cur, ref geom.PointCloud, comp *geom.PointCloud) {

	if sizeLog2 > p.MinPuSizeLog2 {
		split := len(cur) > 64
		bit := 0
		if split {
			bit = 1
		}
		e.EncodeBit(&cs.Split, bit)
		if split {
			cs2 := sizeLog2 - 1
			for o := 0; o < 8; o++ {
				co := childOrigin(origin, o, cs2)
				encodePU(e, cs, p, co, cs2, filterBox(cur, co, cs2), filterBox(ref, co, cs2), comp)
			}
			return
		}
	}

	mv := searchVector(p, origin, sizeLog2, cur, ref)
	cs.EncodeVector(e, mv, p)
	applyVector(origin, sizeLog2, ref, mv, comp)
}

// DecodeAndApply parses the PU tree of one block and returns the
// compensated reference points.
func DecodeAndApply(d *entropy.Decoder, cs *ContextSet, p *Params,
	origin geom.Vec3, sizeLog2 int, ref geom.PointCloud) geom.PointCloud {

	comp := make(geom.PointCloud, 0, len(ref))
	decodePU(d, cs, p, origin, sizeLog2, ref, &comp)
	return comp
}

func decodePU(d *entropy.Decoder, cs *ContextSet, p *Params,
	origin geom.Vec3, sizeLog2 int, ref geom.PointCloud, comp *geom.PointCloud) {

	if sizeLog2 > p.MinPuSizeLog2 {
		if d.DecodeBit(&cs.Split) == 1 {
			cs2 := sizeLog2 - 1
			for o := 0; o < 8; o++ {
				co := childOrigin(origin, o, cs2)
				decodePU(d, cs, p, co, cs2, filterBox(ref, co, cs2), comp)
			}
			return
		}
	}
	mv := cs.DecodeVector(d, p)
	applyVector(origin, sizeLog2, ref, mv, comp)
}

// searchVector hill-climbs the displacement minimising D + lambda*R
// over the block. Integer cost keeps the choice platform independent,
// though only the coded vector is bitstream visible.
func searchVector(p *Params, origin geom.Vec3, sizeLog2 int, cur, ref geom.PointCloud) geom.Vec3 {
	if len(cur) == 0 || len(ref) == 0 {
		return geom.Vec3{}
	}
	t := NewSearchOctree(ref, sizeLog2+geom.CeilLog2(uint64(p.SearchRange))+1, 0)
	best := geom.Vec3{}
	bestCost := puCost(p, t, cur, best)
	for step := int32(max(1, p.SearchRange/2)); step > 0; step /= 2 {
		improved := true
		for improved {
			improved = false
			for axis := 0; axis < 3; axis++ {
				for _, dir := range [2]int32{-step, step} {
					cand := best
					cand[axis] += dir
					if int(geom.Abs32(cand[axis])) > p.SearchRange {
						continue
					}
					if c := puCost(p, t, cur, cand); c < bestCost {
						bestCost = c
						best = cand
						improved = true
					}
				}
			}
		}
	}
	return best
}

func puCost(p *Params, t *SearchOctree, cur geom.PointCloud, mv geom.Vec3) int64 {
	var dist int64
	for _, pt := range cur {
		dist += t.NearestSq(pt.Sub(mv))
	}
	suffix := DeriveMaxSuffixBits(p.SearchRange)
	var rate int64
	for k := 0; k < 3; k++ {
		mag := int64(geom.Abs32(mv[k]))
		rate += mag>>uint(suffix) + int64(suffix) + 1
		if mag > 0 {
			rate++
		}
	}
	return dist + (p.LambdaQ8*rate)>>8
}

func applyVector(origin geom.Vec3, sizeLog2 int, ref geom.PointCloud, mv geom.Vec3, comp *geom.PointCloud) {
	side := int32(1) << sizeLog2
	hi := origin.Add(geom.Vec3{side - 1, side - 1, side - 1})
	for _, pt := range ref {
		moved := pt.Add(mv)
		// keep the compensated point inside the block so octant
		// partitioning downstream stays well defined
		moved = moved.MaxV(origin).MinV(hi)
		*comp = append(*comp, moved)
	}
}

func filterBox(pts geom.PointCloud, origin geom.Vec3, sizeLog2 int) geom.PointCloud {
	side := int32(1) << sizeLog2
	var out geom.PointCloud
	for _, p := range pts {
		d := p.Sub(origin)
		if d[0] >= 0 && d[1] >= 0 && d[2] >= 0 && d[0] < side && d[1] < side && d[2] < side {
			out = append(out, p)
		}
	}
	return out
}
