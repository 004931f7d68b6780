// Package trisoup terminates octree descent with a triangle surface
// layer: leaf edges carry coded vertices, leaves span polygon fans
// around a driftable centroid, and the decoder rasterises the fans
// back to voxels.
package trisoup

import (
	"sort"

	"github.com/cocosip/go-gpcc-codec/geom"
)

// edgeDef enumerates the twelve edges of a cubic leaf: the running
// axis and the fractional corner (0 or 1) on the two fixed axes.
type edgeDef struct {
	axis   int
	u, v   int // the other two axes in ascending order
	cu, cv int32
}

var leafEdges [12]edgeDef

func init() {
	n := 0
	for axis := 0; axis < 3; axis++ {
		u, v := otherAxes(axis)
		for _, cu := range [2]int32{0, 1} {
			for _, cv := range [2]int32{0, 1} {
				leafEdges[n] = edgeDef{axis: axis, u: u, v: v, cu: cu, cv: cv}
				n++
			}
		}
	}
}

func otherAxes(axis int) (int, int) {
	switch axis {
	case 0:
		return 1, 2
	case 1:
		return 0, 2
	}
	return 0, 1
}

// endpoints returns the absolute endpoints of edge e of a leaf.
func (e *edgeDef) endpoints(leafPos geom.Vec3, n int32) (geom.Vec3, geom.Vec3) {
	start := leafPos
	start[e.u] += e.cu * n
	start[e.v] += e.cv * n
	end := start
	end[e.axis] += n
	return start, end
}

// segKey packs both endpoints with 21 bits per axis; segments order
// lexicographically by it.
type segKey struct{ a, b uint64 }

func packPos(v geom.Vec3) uint64 {
	return uint64(uint32(v[0])&0x1FFFFF)<<42 |
		uint64(uint32(v[1])&0x1FFFFF)<<21 |
		uint64(uint32(v[2])&0x1FFFFF)
}

func keyOf(start, end geom.Vec3) segKey {
	return segKey{a: packPos(start), b: packPos(end)}
}

func keyLess(x, y segKey) bool {
	if x.a != y.a {
		return x.a < y.a
	}
	return x.b < y.b
}

// touch records one leaf sharing a segment.
type touch struct {
	leaf int // leaf index
	edge int // 0..11 within that leaf
}

// segment is a unique edge after merging duplicates from neighbouring
// leaves.
type segment struct {
	key        segKey
	start, end geom.Vec3
	axis       int
	touches    []touch
	// neighMask records which touching corner each contributor held
	neighMask uint8

	present bool
	value   int32 // quantised vertex offset along the edge

	predPresent bool
	predValue   int32
}

// buildSegments enumerates and merges the edges of every leaf,
// returning the unique segments in coded order plus, per leaf, the
// indices of its twelve segments.
func buildSegments(leaves []geom.Vec3, n int32) ([]segment, [][12]int) {
	index := make(map[segKey]int)
	var segs []segment
	leafSegs := make([][12]int, len(leaves))

	for li, pos := range leaves {
		for ei := range leafEdges {
			e := &leafEdges[ei]
			start, end := e.endpoints(pos, n)
			k := keyOf(start, end)
			si, ok := index[k]
			if !ok {
				si = len(segs)
				index[k] = si
				segs = append(segs, segment{key: k, start: start, end: end, axis: e.axis})
			}
			segs[si].touches = append(segs[si].touches, touch{leaf: li, edge: ei})
			segs[si].neighMask |= 1 << uint(e.cu<<1|e.cv)
			leafSegs[li][ei] = si
		}
	}

	order := make([]int, len(segs))
	for i := range order {
		order[i] = i
	}
	sort.Slice(order, func(a, b int) bool {
		return keyLess(segs[order[a]].key, segs[order[b]].key)
	})
	sorted := make([]segment, len(segs))
	remap := make([]int, len(segs))
	for newIdx, oldIdx := range order {
		sorted[newIdx] = segs[oldIdx]
		remap[oldIdx] = newIdx
	}
	for li := range leafSegs {
		for ei := range leafSegs[li] {
			leafSegs[li][ei] = remap[leafSegs[li][ei]]
		}
	}
	return sorted, leafSegs
}

// determineVertex votes a vertex onto one edge from the points of the
// contributing leaves: points within one voxel of the edge line pull
// the vertex toward their mean coordinate along the edge. The same
// rule runs on reference points to predict segments of inter slices.
func determineVertex(seg *segment, leaves []geom.Vec3, n int32, pts func(leaf int) geom.PointCloud, nbits int, bitDropped int) (bool, int32) {
	var sum, count int64
	for _, t := range seg.touches {
		e := &leafEdges[t.edge]
		pos := leaves[t.leaf]
		start, _ := e.endpoints(pos, n)
		for _, p := range pts(t.leaf) {
			du := geom.Abs32(p[e.u] - clampFixed(start[e.u], pos[e.u], n))
			dv := geom.Abs32(p[e.v] - clampFixed(start[e.v], pos[e.v], n))
			if du <= 1 && dv <= 1 {
				sum += int64(p[e.axis] - start[e.axis])
				count++
			}
		}
	}
	if count == 0 {
		return false, 0
	}
	m := (sum + count/2) / count
	if m < 0 {
		m = 0
	}
	if m > int64(n-1) {
		m = int64(n - 1)
	}
	v := int32(m >> uint(bitDropped))
	limit := int32(1)<<uint(nbits) - 1
	if v > limit {
		v = limit
	}
	return true, v
}

// clampFixed maps an edge endpoint coordinate (0 or n relative to the
// leaf) onto the nearest voxel coordinate inside the leaf.
func clampFixed(endpoint, leafOrigin int32, n int32) int32 {
	if endpoint-leafOrigin >= n {
		return leafOrigin + n - 1
	}
	return endpoint
}
