package octree

import (
	"github.com/cocosip/go-gpcc-codec/codec"
	"github.com/cocosip/go-gpcc-codec/entropy"
	"github.com/cocosip/go-gpcc-codec/geom"
	"github.com/cocosip/go-gpcc-codec/motion"
	"github.com/cocosip/go-gpcc-codec/obuf"
)

// Contexts is the adaptive state of one continuation chain: OBUF maps,
// model banks and the fixed context arrays. Encoder and decoder build
// identical bundles and touch them in identical order.
type Contexts = sliceContexts

// NewContexts returns a fresh context bundle.
func NewContexts() *Contexts { return newSliceContexts() }

// ValidateHeader rejects parameter combinations the octree coder does
// not support, before any payload is touched.
func ValidateHeader(hdr *codec.SliceHeader) error {
	for k := 0; k < 3; k++ {
		if hdr.RootSizeLog2[k] < 0 || hdr.RootSizeLog2[k] > 21 {
			return codec.ConfigError("root size log2 %v out of range", hdr.RootSizeLog2)
		}
	}
	if hdr.IDCMIntensity > 3 {
		return codec.ConfigError("direct mode intensity %d out of range", hdr.IDCMIntensity)
	}
	if hdr.MotionEnabled {
		if !hdr.InterEnabled {
			return codec.ConfigError("motion requires inter prediction")
		}
		p := motionParams(hdr)
		if err := p.Validate(); err != nil {
			return codec.ConfigError("%v", err)
		}
	}
	if int(hdr.QPOffsetDepth) > hdr.MaxRootNodeDimLog2() {
		return codec.ConfigError("qp offset depth %d below leaf level", hdr.QPOffsetDepth)
	}
	return nil
}

func motionParams(hdr *codec.SliceHeader) *motion.Params {
	return &motion.Params{
		BlockSizeLog2: int(hdr.MotionBlockSizeLog2),
		MinPuSizeLog2: int(hdr.MotionMinPuSizeLog2),
		SearchRange:   int(hdr.MotionSearchRange),
		LambdaQ8:      256,
	}
}

// EncodeTree codes the octree down to stopSizeLog2 (zero for a full
// descent to unit nodes) and returns the surviving nodes at the stop
// level. The working and reference clouds are partitioned in place.
func EncodeTree(e *entropy.Encoder, cx *Contexts, pts, refPts geom.PointCloud,
	hdr *codec.SliceHeader, stopSizeLog2 int) ([]Node, error) {

	if err := ValidateHeader(hdr); err != nil {
		return nil, err
	}
	size := hdr.RootSizeLog2
	for _, p := range pts {
		for k := 0; k < 3; k++ {
			if p[k] < 0 || p[k] >= 1<<uint(size[k]) {
				return nil, codec.SemanticError("point %v outside root box", p)
			}
		}
	}
	interActive := hdr.InterEnabled && len(refPts) > 0

	ring := geom.NewRingBuf[Node](64)
	ring.PushBack(Node{
		End: len(pts), PredEnd: len(refPts),
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
			encodeLeaf(e, cx, hdr, &node)
			continue
		}

		node.NeighPattern = neighPatternOf(node.Pos, size, posCur)
		nodeInter := interActive && node.PredEnd > node.PredStart

		if hdr.MotionEnabled && nodeInter && maxSz == int(hdr.MotionBlockSizeLog2) {
			mp := motionParams(hdr)
			comp := motion.SearchAndEncode(e, &cx.motion, mp, node.Pos, maxSz,
				pts[node.Start:node.End], refPts[node.PredStart:node.PredEnd])
			copy(refPts[node.PredStart:node.PredEnd], comp)
		}
		if int(hdr.QPOffsetDepth) == depth {
			// the search for a better per-node QP is an encoder
			// freedom; a zero delta is always legal
			e.EncodeExpGolombSigned(0, 0, cx.ctxQPOffsetEG[:])
		}

		bounds := partitionRange(pts, node.Start, node.End, node.Pos, &lg)
		occ := occupancyOf(bounds)
		var predBounds [9]int
		var predOcc uint8
		if nodeInter {
			predBounds = partitionRange(refPts, node.PredStart, node.PredEnd, node.Pos, &lg)
			predOcc = occupancyOf(predBounds)
		}

		reduced := cx.reducedPattern(node.NeighPattern)
		m, bank := cx.family()
		var partial uint8
		for coded, o := range lg.octants {
			bit := int(occ >> uint(o) & 1)
			if coded == len(lg.octants)-1 && partial == 0 {
				// the last child of an empty prefix is inferred
				continue
			}
			i, j := occBitCtx(reduced, partial, o, predClass(nodeInter, predOcc, o))
			obuf.EncodeBit(e, bank, m, bit, i, j)
			if bit == 1 {
				partial |= 1 << uint(o)
			}
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
				Start:         bounds[o],
				End:           bounds[o+1],
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
				n := child.End - child.Start
				useIDCM := hdr.UniquePoints && n <= 2
				flag := 0
				if useIDCM {
					flag = 1
				}
				e.EncodeBit(&cx.ctxIDCMFlag[hdr.IDCMIntensity-1], flag)
				if useIDCM {
					encodeDirectPoints(e, cx, pts, &child, &lg)
					continue
				}
			}
			ring.PushBack(child)
			posNext[packLevelKey(child.Pos, lg.childSize)] = true
		}
	}

	if stopSizeLog2 > 0 {
		leaves := make([]Node, 0, ring.Len())
		for !ring.Empty() {
			leaves = append(leaves, ring.PopFront())
		}
		return leaves, nil
	}
	return nil, nil
}

// encodeLeaf codes the duplicate count of a unit node.
func encodeLeaf(e *entropy.Encoder, cx *Contexts, hdr *codec.SliceHeader, node *Node) {
	if hdr.UniquePoints {
		return
	}
	n := node.End - node.Start - 1
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

// encodeDirectPoints emits up to two point positions verbatim,
// short-circuiting the child's descent.
func encodeDirectPoints(e *entropy.Encoder, cx *Contexts, pts geom.PointCloud, child *Node, lg *levelGeom) {
	n := child.End - child.Start
	e.EncodeBit(&cx.ctxIDCMCount, n-1)
	q := geom.NewQuantizerGeom(child.QP)
	for pi := child.Start; pi < child.End; pi++ {
		off := pts[pi].Sub(child.Pos)
		for k := 0; k < 3; k++ {
			v := q.Quantize(int64(off[k]))
			e.EncodeBypassBits(uint64(v), int(lg.childSize[k]))
		}
	}
}
