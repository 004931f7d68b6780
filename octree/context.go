package octree

import (
	"github.com/cocosip/go-gpcc-codec/entropy"
	"github.com/cocosip/go-gpcc-codec/motion"
	"github.com/cocosip/go-gpcc-codec/obuf"
)

// occupancy map dimensions: the i key is reduced pattern (4 bits) over
// the partial occupancy byte, the j key is child slot over the inter
// prediction class.
const (
	occS1Bits = 12
	occS2Bits = 5

	// EMA of the occupancy popcount, Q8; above the threshold the
	// dense context family takes over.
	occAvgInit    = 2 << 8
	occAvgShift   = 5
	denseThreshQ8 = 4 << 8
)

// sliceContexts bundles every adaptive state of one continuation
// chain. Encoder and decoder build identical bundles and touch them in
// identical order.
type sliceContexts struct {
	mapSparse  *obuf.Map
	mapDense   *obuf.Map
	bankSparse *obuf.ModelBank
	bankDense  *obuf.ModelBank
	avgOccQ8   int

	ctxIDCMFlag   [3]entropy.AdaptiveBitModel
	ctxIDCMCount  entropy.AdaptiveBitModel
	ctxDupGt0     entropy.AdaptiveBitModel
	ctxDupGt1     entropy.AdaptiveBitModel
	ctxDupEG      [4]entropy.AdaptiveBitModel
	ctxQPOffsetEG [4]entropy.AdaptiveBitModel

	motion motion.ContextSet
}

func newSliceContexts() *sliceContexts {
	return &sliceContexts{
		mapSparse:  obuf.New(occS1Bits, occS2Bits, nil),
		mapDense:   obuf.New(occS1Bits, occS2Bits, nil),
		bankSparse: obuf.NewModelBank(),
		bankDense:  obuf.NewModelBank(),
		avgOccQ8:   occAvgInit,
	}
}

// dense reports which context family codes the next occupancy byte.
func (c *sliceContexts) dense() bool { return c.avgOccQ8 > denseThreshQ8 }

// family returns the active map and bank.
func (c *sliceContexts) family() (*obuf.Map, *obuf.ModelBank) {
	if c.dense() {
		return c.mapDense, c.bankDense
	}
	return c.mapSparse, c.bankSparse
}

// noteOccupancy feeds the popcount EMA after a byte is coded.
func (c *sliceContexts) noteOccupancy(occ uint8) {
	c.avgOccQ8 += (popcount8(occ)<<8 - c.avgOccQ8) >> occAvgShift
}

// reducedPattern folds the neighbour pattern for the active family.
func (c *sliceContexts) reducedPattern(pat uint8) int {
	if c.dense() {
		return int(neighPattern64to6[pat])
	}
	return int(neighPattern64to9[pat])
}

// occBitCtx derives the (i, j) key of one occupancy bit: the already
// coded sibling bits and the reduced neighbour pattern make up i, the
// child slot and inter class make up j.
func occBitCtx(reduced int, partial uint8, slot int, predCtx int) (int, int) {
	return reduced<<8 | int(partial), slot<<2 | predCtx
}

// predClass classifies inter prediction for one child slot: 0 when no
// reference is active, otherwise 1 plus the predicted bit.
func predClass(interActive bool, predOcc uint8, slot int) int {
	if !interActive {
		return 0
	}
	return 1 + int(predOcc>>uint(slot)&1)
}

// isDirectModeEligible gates inferred direct coding: an isolated
// branch in a sparse neighbourhood may short-circuit its remaining
// descent. A predictable occupancy suppresses it unconditionally.
func isDirectModeEligible(intensity int, nodeSizeLog2 int, node, child *Node, occupancyIsPredictable bool) bool {
	if intensity == 0 || occupancyIsPredictable {
		return false
	}
	switch intensity {
	case 1:
		return nodeSizeLog2 >= 2 && node.NeighPattern == 0 &&
			child.SiblingsPlus1 == 1 && node.SiblingsPlus1 <= 2
	case 2:
		return nodeSizeLog2 >= 2 && node.NeighPattern == 0
	case 3:
		return nodeSizeLog2 >= 2 && child.SiblingsPlus1 > 1
	}
	return false
}
