package motion

import "github.com/cocosip/go-gpcc-codec/geom"

// Params configures motion compensation for one slice.
type Params struct {
	// BlockSizeLog2 is the octree level at which prediction units
	// are rooted.
	BlockSizeLog2 int
	// MinPuSizeLog2 bounds PU splitting.
	MinPuSizeLog2 int
	// SearchRange is the per-axis displacement bound.
	SearchRange int
	// LambdaQ8 is the rate weight of the encoder cost, in Q8. Not
	// bitstream visible.
	LambdaQ8 int64
}

// Validate rejects unusable parameter combinations.
func (p *Params) Validate() error {
	if p.BlockSizeLog2 < p.MinPuSizeLog2 {
		return errBlockBelowMin
	}
	if p.SearchRange < 1 {
		return errNoSearchRange
	}
	return nil
}

// DeriveMaxSuffixBits returns the fixed suffix width for vector
// magnitudes under the given search range.
func DeriveMaxSuffixBits(searchRange int) int {
	if searchRange < 2 {
		return 0
	}
	return geom.ILog2(uint64(searchRange)) >> 1
}

// DeriveMaxPrefixBits returns the truncated-unary prefix bound.
func DeriveMaxPrefixBits(searchRange int) int {
	return searchRange >> uint(DeriveMaxSuffixBits(searchRange))
}
