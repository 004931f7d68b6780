package codec

import (
	"math/rand"

	"github.com/cocosip/go-gpcc-codec/geom"
)

// CubeCornersCloud returns the eight corners of an axis-aligned cube
// of the given edge length anchored at the origin.
func CubeCornersCloud(edge int32) geom.PointCloud {
	last := edge - 1
	return geom.PointCloud{
		{0, 0, 0}, {last, 0, 0}, {0, last, 0}, {last, last, 0},
		{0, 0, last}, {last, 0, last}, {0, last, last}, {last, last, last},
	}
}

// LineCloud returns n collinear points stepping along the x axis.
func LineCloud(n int) geom.PointCloud {
	pc := make(geom.PointCloud, n)
	for i := range pc {
		pc[i] = geom.Vec3{int32(i), 0, 0}
	}
	return pc
}

// RandomCloud returns n distinct pseudo-random points inside a cube of
// side 1<<dimLog2, deterministic in the seed.
func RandomCloud(n int, dimLog2 int, seed int64) geom.PointCloud {
	rng := rand.New(rand.NewSource(seed))
	mask := int32(1)<<uint(dimLog2) - 1
	seen := make(map[geom.Vec3]bool, n)
	pc := make(geom.PointCloud, 0, n)
	for len(pc) < n {
		p := geom.Vec3{
			rng.Int31() & mask,
			rng.Int31() & mask,
			rng.Int31() & mask,
		}
		if seen[p] {
			continue
		}
		seen[p] = true
		pc = append(pc, p)
	}
	return pc
}

// NewTestHeader returns a header for an intra slice of the given coder
// over a cubic root of the given log2 dimension.
func NewTestHeader(coder CoderID, dimLog2 int32, numPoints int) SliceHeader {
	return SliceHeader{
		Coder:           coder,
		NumPointsMinus1: int32(numPoints) - 1,
		UniquePoints:    true,
		RootSizeLog2:    geom.Vec3{dimLog2, dimLog2, dimLog2},
		QPOffsetDepth:   -1,
	}
}
