package octree

import "github.com/cocosip/go-gpcc-codec/geom"

// Node is one in-flight octree node. The working and reference point
// ranges index caller-owned arrays that the coder partitions in place
// during descent.
type Node struct {
	Pos geom.Vec3

	Start, End         int
	PredStart, PredEnd int

	NeighPattern  uint8
	SiblingsPlus1 uint8
	QP            int
}

// levelGeom captures the per-level split decisions: all nodes of one
// level share their size, the split-axis set and the child size.
type levelGeom struct {
	size      geom.Vec3
	childSize geom.Vec3
	splitMask uint8 // bit per axis
	octants   []int // valid child octants in coding order
}

// deriveLevel computes the split for the current node size: every axis
// at the running maximum splits, which steers non-cubic roots back
// toward cubes (implicit QtBt).
func deriveLevel(size geom.Vec3) levelGeom {
	maxSz := max(size[0], max(size[1], size[2]))
	lg := levelGeom{size: size, childSize: size}
	if maxSz == 0 {
		return lg
	}
	for k := 0; k < 3; k++ {
		if size[k] == maxSz {
			lg.splitMask |= 1 << uint(k)
			lg.childSize[k] = size[k] - 1
		}
	}
	for o := 0; o < 8; o++ {
		if o&octantAxisBit(0) != 0 && lg.splitMask&1 == 0 {
			continue
		}
		if o&octantAxisBit(1) != 0 && lg.splitMask&2 == 0 {
			continue
		}
		if o&octantAxisBit(2) != 0 && lg.splitMask&4 == 0 {
			continue
		}
		lg.octants = append(lg.octants, o)
	}
	return lg
}

// octantAxisBit maps axis k to its bit within an octant index:
// x is the high bit, z the low one.
func octantAxisBit(axis int) int { return 4 >> uint(axis) }

// octantOf returns the child octant of p inside a node at pos.
func (lg *levelGeom) octantOf(p, pos geom.Vec3) int {
	o := 0
	for k := 0; k < 3; k++ {
		if lg.splitMask&(1<<uint(k)) == 0 {
			continue
		}
		if (p[k]-pos[k])>>uint(lg.childSize[k])&1 != 0 {
			o |= octantAxisBit(k)
		}
	}
	return o
}

// childPos returns the origin of the given child octant.
func (lg *levelGeom) childPos(pos geom.Vec3, octant int) geom.Vec3 {
	for k := 0; k < 3; k++ {
		if octant&octantAxisBit(k) != 0 {
			pos[k] += 1 << uint(lg.childSize[k])
		}
	}
	return pos
}

// isLeafLevel reports whether child nodes would have zero volume on
// every axis.
func (lg *levelGeom) isLeafLevel() bool {
	return lg.size == geom.Vec3{}
}

// partitionRange stably reorders pts[start:end) by child octant and
// returns the nine bucket boundaries.
func partitionRange(pts geom.PointCloud, start, end int, pos geom.Vec3, lg *levelGeom) [9]int {
	var counts [8]int
	for i := start; i < end; i++ {
		counts[lg.octantOf(pts[i], pos)]++
	}
	var bounds [9]int
	bounds[0] = start
	for o := 0; o < 8; o++ {
		bounds[o+1] = bounds[o] + counts[o]
	}
	tmp := make(geom.PointCloud, end-start)
	copy(tmp, pts[start:end])
	next := bounds
	for _, p := range tmp {
		o := lg.octantOf(p, pos)
		pts[next[o]] = p
		next[o]++
	}
	return bounds
}

// occupancyOf derives the child-occupancy byte from partition bounds.
func occupancyOf(bounds [9]int) uint8 {
	var occ uint8
	for o := 0; o < 8; o++ {
		if bounds[o+1] > bounds[o] {
			occ |= 1 << uint(o)
		}
	}
	return occ
}

// packLevelKey packs per-axis level coordinates for the neighbour set.
func packLevelKey(pos geom.Vec3, size geom.Vec3) uint64 {
	x := uint64(uint32(pos[0] >> uint(size[0])))
	y := uint64(uint32(pos[1] >> uint(size[1])))
	z := uint64(uint32(pos[2] >> uint(size[2])))
	return x<<42 | y<<21 | z
}

// neighPatternOf reads the six face neighbours of a node out of the
// level position set: bits -x,+x,-y,+y,-z,+z.
func neighPatternOf(pos geom.Vec3, size geom.Vec3, level map[uint64]bool) uint8 {
	var pat uint8
	for k := 0; k < 3; k++ {
		step := int32(1) << uint(size[k])
		lo, hi := pos, pos
		lo[k] -= step
		hi[k] += step
		if lo[k] >= 0 && level[packLevelKey(lo, size)] {
			pat |= 1 << uint(2*k)
		}
		if level[packLevelKey(hi, size)] {
			pat |= 2 << uint(2*k)
		}
	}
	return pat
}
