// Package predtree implements the predictive-tree geometry coder: a
// forest of small trees where each node is predicted from its
// ancestors, or from reference-frame points in inter slices, with a
// spherical mode for rotating-LIDAR captures.
package predtree

import "github.com/cocosip/go-gpcc-codec/entropy"

// NPredDelta is the size of the recent-point prediction ring used by
// azimuth-scaled slices.
const NPredDelta = 4

// thObj is the radial jump that flushes the prediction ring: a larger
// |delta r| starts a new object.
const thObj = 1 << 10

// Contexts bundles the adaptive models of one continuation chain. The
// residual contexts are indexed by component, inter flag and the sign
// of the previously coded component.
type Contexts struct {
	ctxEndOfTrees entropy.AdaptiveBitModel
	ctxNumChild   [2]entropy.AdaptiveBitModel
	ctxDupGt0     entropy.AdaptiveBitModel
	ctxDupGt1     entropy.AdaptiveBitModel
	ctxDupEG      [4]entropy.AdaptiveBitModel

	ctxMode    [2]entropy.AdaptiveBitModel
	ctxPredIdx [NPredDelta - 1]entropy.AdaptiveBitModel

	ctxInterFlag entropy.AdaptiveBitModel
	ctxRefNode   entropy.AdaptiveBitModel
	ctxPhiMulEG  [4]entropy.AdaptiveBitModel

	ctxResIsZero [3][2]entropy.AdaptiveBitModel
	ctxResSign   [3][3]entropy.AdaptiveBitModel
	ctxResIsOne  [3][2]entropy.AdaptiveBitModel
	ctxResIsTwo  [3][2]entropy.AdaptiveBitModel
	ctxResEG     [3][2][4]entropy.AdaptiveBitModel

	ctxRes2IsZero [3]entropy.AdaptiveBitModel
	ctxRes2EG     [3][4]entropy.AdaptiveBitModel

	ctxQPDeltaEG [4]entropy.AdaptiveBitModel
}

// NewContexts returns a fresh bundle; the zero value of every model is
// the equiprobable state.
func NewContexts() *Contexts { return &Contexts{} }

// signState folds a residual into the cross-component context class:
// 0 negative, 1 zero, 2 positive.
func signState(v int32) int {
	if v < 0 {
		return 0
	}
	if v == 0 {
		return 1
	}
	return 2
}

func b2i(b bool) int {
	if b {
		return 1
	}
	return 0
}
