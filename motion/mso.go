// Package motion supplies compensated reference points to the
// geometry coders. The encoder searches displacement vectors against a
// motion-search octree; the decoder only parses and applies them.
package motion

import (
	"sort"

	"github.com/cocosip/go-gpcc-codec/geom"
)

// SearchOctree indexes a reference cloud for nearest-neighbour
// queries bounded by a descent depth. The tree is implicit: points are
// held sorted in Morton order and nodes are index ranges.
type SearchOctree struct {
	pts      geom.PointCloud
	rootLog2 int
	maxDepth int
}

// NewSearchOctree copies and Morton-sorts the reference cloud.
// maxDepth bounds the descent; below it a range is represented by its
// first point.
func NewSearchOctree(ref geom.PointCloud, rootLog2, maxDepth int) *SearchOctree {
	pts := ref.Clone()
	sort.Slice(pts, func(a, b int) bool {
		return geom.MortonCode(pts[a]) < geom.MortonCode(pts[b])
	})
	for _, p := range pts {
		for k := 0; k < 3; k++ {
			for p[k] >= 1<<rootLog2 {
				rootLog2++
			}
		}
	}
	if maxDepth <= 0 || maxDepth > rootLog2 {
		maxDepth = rootLog2
	}
	return &SearchOctree{pts: pts, rootLog2: rootLog2, maxDepth: maxDepth}
}

// Empty reports whether the tree holds no points.
func (t *SearchOctree) Empty() bool { return len(t.pts) == 0 }

// NearestSq returns the squared distance from q to the closest
// indexed point reachable within the depth bound.
func (t *SearchOctree) NearestSq(q geom.Vec3) int64 {
	if len(t.pts) == 0 {
		return 1 << 40
	}
	best := int64(1) << 62
	t.search(q, 0, len(t.pts), geom.Vec3{}, t.rootLog2, 0, &best)
	return best
}

func (t *SearchOctree) search(q geom.Vec3, start, end int, origin geom.Vec3, sizeLog2, depth int, best *int64) {
	if start >= end {
		return
	}
	if boxDistSq(q, origin, sizeLog2) >= *best {
		return
	}
	if sizeLog2 == 0 || depth >= t.maxDepth {
		d := t.pts[start].Sub(q).Norm2Sq()
		if d < *best {
			*best = d
		}
		return
	}
	cs := sizeLog2 - 1
	// child ranges by binary search on the octant of each point
	bounds := [9]int{}
	bounds[0] = start
	for o := 1; o <= 8; o++ {
		bounds[o] = start + sort.Search(end-start, func(k int) bool {
			return octantOf(t.pts[start+k], origin, cs) >= o
		})
	}
	// visit the octant containing q first
	side := int32(1) << sizeLog2
	clamped := q.MaxV(origin).MinV(origin.Add(geom.Vec3{side - 1, side - 1, side - 1}))
	qo := octantOf(clamped, origin, cs)
	for pass := 0; pass < 8; pass++ {
		o := (qo + pass) % 8
		co := childOrigin(origin, o, cs)
		t.search(q, bounds[o], bounds[o+1], co, cs, depth+1, best)
	}
}

func octantOf(p, origin geom.Vec3, childSizeLog2 int) int {
	d := p.Sub(origin)
	o := 0
	if d[0]>>uint(childSizeLog2) != 0 {
		o |= 4
	}
	if d[1]>>uint(childSizeLog2) != 0 {
		o |= 2
	}
	if d[2]>>uint(childSizeLog2) != 0 {
		o |= 1
	}
	return o
}

func childOrigin(origin geom.Vec3, octant, childSizeLog2 int) geom.Vec3 {
	return origin.Add(geom.Vec3{
		int32(octant>>2&1) << childSizeLog2,
		int32(octant>>1&1) << childSizeLog2,
		int32(octant&1) << childSizeLog2,
	})
}

// boxDistSq is the squared distance from q to the axis-aligned cube at
// origin with side 1<<sizeLog2.
func boxDistSq(q, origin geom.Vec3, sizeLog2 int) int64 {
	var d int64
	side := int32(1) << sizeLog2
	for k := 0; k < 3; k++ {
		var c int64
		if q[k] < origin[k] {
			c = int64(origin[k] - q[k])
		} else if q[k] >= origin[k]+side {
			c = int64(q[k] - origin[k] - side + 1)
		}
		d += c * c
	}
	return d
}
