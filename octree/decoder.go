package octree

import (
	"github.com/cocosip/go-gpcc-codec/codec"
	"github.com/cocosip/go-gpcc-codec/entropy"
	"github.com/cocosip/go-gpcc-codec/geom"
	"github.com/cocosip/go-gpcc-codec/motion"
	"github.com/cocosip/go-gpcc-codec/obuf"
)

// DecodeTree parses the octree payload down to stopSizeLog2 and
// returns the nodes surviving at the stop level plus every point
// emitted above it (direct-mode points, and unit leaves on a full
// descent). The reference cloud is partitioned in place exactly as the
// encoder partitioned its copy.
func DecodeTree(d *entropy.Decoder, cx *Contexts, refPts geom.PointCloud,
	hdr *codec.SliceHeader, stopSizeLog2 int) ([]Node, geom.PointCloud, error) {

	if err := ValidateHeader(hdr); err != nil {
		return nil, nil, err
	}
	size := hdr.RootSizeLog2
	interActive := hdr.InterEnabled && len(refPts) > 0
	var out geom.PointCloud

	ring := geom.NewRingBuf[Node](64)
	ring.PushBack(Node{
		PredEnd:       len(refPts),
		SiblingsPlus1: 1, QP: int(hdr.SliceQP),
	})
	posCur := map[uint64]bool{packLevelKey(geom.Vec3{}, size): true}
	posNext := map[uint64]bool{}
	lg := deriveLevel(size)
	maxSz := int(max(size[0], max(size[1], size[2])))
	numAtLevel := 1
	depth := 0

	for !ring.Empty() {
		if numAtLevel == 0 {
			size = lg.childSize
			lg = deriveLevel(size)
			maxSz = int(max(size[0], max(size[1], size[2])))
			depth++
			numAtLevel = ring.Len()
			posCur, posNext = posNext, map[uint64]bool{}
		}
		if stopSizeLog2 > 0 && maxSz == stopSizeLog2 {
			break
		}

		node := ring.PopFront()
		numAtLevel--

		if maxSz == 0 {
			decodeLeaf(d, cx, hdr, &node, &out)
			continue
		}

		node.NeighPattern = neighPatternOf(node.Pos, size, posCur)
		nodeInter := interActive && node.PredEnd > node.PredStart

		if hdr.MotionEnabled && nodeInter && maxSz == int(hdr.MotionBlockSizeLog2) {
			mp := motionParams(hdr)
			comp := motion.DecodeAndApply(d, &cx.motion, mp, node.Pos, maxSz,
				refPts[node.PredStart:node.PredEnd])
			copy(refPts[node.PredStart:node.PredEnd], comp)
		}
		if int(hdr.QPOffsetDepth) == depth {
			delta := d.DecodeExpGolombSigned(0, cx.ctxQPOffsetEG[:])
			node.QP = int(hdr.SliceQP) + int(delta)
		}

		var predBounds [9]int
		var predOcc uint8
		if nodeInter {
			predBounds = partitionRange(refPts, node.PredStart, node.PredEnd, node.Pos, &lg)
			predOcc = occupancyOf(predBounds)
		}

		reduced := cx.reducedPattern(node.NeighPattern)
		m, bank := cx.family()
		var occ, partial uint8
		for coded, o := range lg.octants {
			var bit int
			if coded == len(lg.octants)-1 && partial == 0 {
				bit = 1
			} else {
				i, j := occBitCtx(reduced, partial, o, predClass(nodeInter, predOcc, o))
				bit = obuf.DecodeBit(d, bank, m, i, j)
			}
			if bit == 1 {
				occ |= 1 << uint(o)
				partial |= 1 << uint(o)
			}
		}
		if occ == 0 {
			return nil, nil, codec.SyntaxError(d.Pos(), "impossible empty occupancy")
		}
		cx.noteOccupancy(occ)

		sibs := uint8(popcount8(occ))
		childMax := int(max(lg.childSize[0], max(lg.childSize[1], lg.childSize[2])))
		for _, o := range lg.octants {
			if occ>>uint(o)&1 == 0 {
				continue
			}
			child := Node{
				Pos:           lg.childPos(node.Pos, o),
				SiblingsPlus1: sibs,
				QP:            node.QP,
			}
			if nodeInter {
				child.PredStart, child.PredEnd = predBounds[o], predBounds[o+1]
			} else {
				child.PredStart, child.PredEnd = node.PredStart, node.PredStart
			}
			childPredictable := nodeInter && child.PredEnd > child.PredStart
			if childMax > 0 && isDirectModeEligible(int(hdr.IDCMIntensity), childMax, &node, &child, childPredictable) {
				if d.DecodeBit(&cx.ctxIDCMFlag[hdr.IDCMIntensity-1]) == 1 {
					decodeDirectPoints(d, cx, &child, &lg, &out)
					continue
				}
			}
			ring.PushBack(child)
			posNext[packLevelKey(child.Pos, lg.childSize)] = true
		}
		if d.Overrun() {
			return nil, nil, codec.SyntaxError(d.Pos(), "truncated geometry payload")
		}
	}

	if stopSizeLog2 > 0 {
		leaves := make([]Node, 0, ring.Len())
		for !ring.Empty() {
			leaves = append(leaves, ring.PopFront())
		}
		return leaves, out, nil
	}
	return nil, out, nil
}

// decodeLeaf emits a unit node's point and its duplicates.
func decodeLeaf(d *entropy.Decoder, cx *Contexts, hdr *codec.SliceHeader, node *Node, out *geom.PointCloud) {
	*out = append(*out, node.Pos)
	if hdr.UniquePoints {
		return
	}
	if d.DecodeBit(&cx.ctxDupGt0) == 0 {
		return
	}
	n := 1
	if d.DecodeBit(&cx.ctxDupGt1) == 1 {
		n = 2 + int(d.DecodeExpGolomb(0, cx.ctxDupEG[:]))
	}
	for i := 0; i < n; i++ {
		*out = append(*out, node.Pos)
	}
}

// decodeDirectPoints reads up to two verbatim positions.
func decodeDirectPoints(d *entropy.Decoder, cx *Contexts, child *Node, lg *levelGeom, out *geom.PointCloud) {
	n := d.DecodeBit(&cx.ctxIDCMCount) + 1
	q := geom.NewQuantizerGeom(child.QP)
	for i := 0; i < n; i++ {
		var off geom.Vec3
		for k := 0; k < 3; k++ {
			bits := int(lg.childSize[k])
			v := int64(d.DecodeBypassBits(bits))
			r := q.Unscale(v)
			limit := int64(1)<<uint(bits) - 1
			if r > limit {
				r = limit
			}
			off[k] = int32(r)
		}
		*out = append(*out, child.Pos.Add(off))
	}
}
