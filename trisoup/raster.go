package trisoup

import (
	"sort"

	"github.com/cocosip/go-gpcc-codec/geom"
)

// Rasterisation works in Q8 leaf-local coordinates throughout; only
// the final voxel snap leaves fixed point.

// leafVertices collects the decoded vertices of one leaf in Q8 local
// coordinates, dequantising the dropped low bits to the step centre.
func leafVertices(leafIdx int, leafPos geom.Vec3, segs []segment, leafSegs [][12]int, n int32, bitDropped int) []geom.Vec3 {
	var verts []geom.Vec3
	for ei, si := range leafSegs[leafIdx] {
		if !segs[si].present {
			continue
		}
		e := &leafEdges[ei]
		along := segs[si].value<<uint(bitDropped+geom.FpBits) +
			1<<uint(bitDropped+geom.FpBits)>>1
		var p geom.Vec3
		p[e.axis] = along
		p[e.u] = e.cu * n << geom.FpBits
		p[e.v] = e.cv * n << geom.FpBits
		verts = append(verts, p)
	}
	return verts
}

// centroidOf is the integer mean of the vertices.
func centroidOf(verts []geom.Vec3) geom.Vec3 {
	var s [3]int64
	for _, v := range verts {
		for k := 0; k < 3; k++ {
			s[k] += int64(v[k])
		}
	}
	n := int64(len(verts))
	return geom.Vec3{int32(s[0] / n), int32(s[1] / n), int32(s[2] / n)}
}

// orderVertices sorts the vertices around the centroid in the plane
// perpendicular to the dominant axis: the candidate axis whose
// ordering sweeps the largest projected area wins.
func orderVertices(verts []geom.Vec3, centroid geom.Vec3) ([]geom.Vec3, int) {
	bestAxis := 0
	var bestArea int64 = -1
	var bestOrder []int
	for axis := 0; axis < 3; axis++ {
		u, v := otherAxes(axis)
		order := make([]int, len(verts))
		for i := range order {
			order[i] = i
		}
		angles := make([]int32, len(verts))
		for i, p := range verts {
			angles[i] = geom.IAtan2Turn(int64(p[v]-centroid[v]), int64(p[u]-centroid[u]), 20)
		}
		sort.SliceStable(order, func(a, b int) bool {
			if angles[order[a]] != angles[order[b]] {
				return angles[order[a]] < angles[order[b]]
			}
			return order[a] < order[b]
		})
		var area int64
		for i := range order {
			a := verts[order[i]]
			b := verts[order[(i+1)%len(order)]]
			area += int64(a[u]-centroid[u])*int64(b[v]-centroid[v]) -
				int64(a[v]-centroid[v])*int64(b[u]-centroid[u])
		}
		if area < 0 {
			area = -area
		}
		if area > bestArea {
			bestArea = area
			bestAxis = axis
			bestOrder = order
		}
	}
	out := make([]geom.Vec3, len(verts))
	for i, idx := range bestOrder {
		out[i] = verts[idx]
	}
	return out, bestAxis
}

// polygonNormalQ8 accumulates the fan cross products and scales the
// result to a Q8 unit normal.
func polygonNormalQ8(ordered []geom.Vec3, centroid geom.Vec3) [3]int64 {
	var n [3]int64
	for i := range ordered {
		a := ordered[i].Sub(centroid)
		b := ordered[(i+1)%len(ordered)].Sub(centroid)
		c := a.Cross(b)
		for k := 0; k < 3; k++ {
			n[k] += c[k]
		}
	}
	var mag2 uint64
	for k := 0; k < 3; k++ {
		mag2 += uint64(n[k] * n[k] >> 16)
	}
	mag := int64(geom.ISqrt(mag2)) << 8
	if mag == 0 {
		return [3]int64{}
	}
	for k := 0; k < 3; k++ {
		n[k] = n[k] * 256 / mag
	}
	return n
}

// applyDrift displaces the centroid along the normal by the
// dequantised drift.
func applyDrift(centroid geom.Vec3, normalQ8 [3]int64, driftQ int32, bitDropped int) geom.Vec3 {
	if driftQ == 0 {
		return centroid
	}
	mag := int64(geom32Abs(driftQ)) << uint(bitDropped+6)
	half := int64(1) << uint(bitDropped+5)
	mag -= half / 3
	if driftQ < 0 {
		mag = -mag
	}
	for k := 0; k < 3; k++ {
		centroid[k] += int32(mag * normalQ8[k] >> 6 >> 8)
	}
	return centroid
}

// driftBound is the coded magnitude limit for a leaf of side n.
func driftBound(n int32) int32 {
	b := n >> 1
	if b < 1 {
		b = 1
	}
	return b
}

// estimateDrift projects the mean of the leaf's points onto the
// polygon normal, in coded units.
func estimateDrift(pts geom.PointCloud, leafPos, centroid geom.Vec3, normalQ8 [3]int64, bitDropped int, bound int32) int32 {
	if len(pts) == 0 {
		return 0
	}
	var s [3]int64
	for _, p := range pts {
		for k := 0; k < 3; k++ {
			s[k] += int64(p[k]-leafPos[k]) << geom.FpBits
		}
	}
	var proj int64
	for k := 0; k < 3; k++ {
		mean := s[k] / int64(len(pts))
		proj += (mean - int64(centroid[k])) * normalQ8[k] >> 8
	}
	q := int32(geom.DivExp2RoundHalfInf(proj, geom.FpBits+bitDropped))
	if q > bound {
		q = bound
	}
	if q < -bound {
		q = -bound
	}
	return q
}

// rasterSettings carries the slice parameters the ray caster needs.
type rasterSettings struct {
	n          int32 // leaf side
	sampling   int32
	haloQ8     int64
	fineRay    bool
	rootLimit  geom.Vec3 // exclusive per-axis bound of the slice box
	bitDropped int
}

// rasteriseLeaf tiles the leaf polygon into centroid fans and casts
// integer rays along the two axes the triangle is not parallel to,
// appending fresh voxels to out.
func rasteriseLeaf(leafPos geom.Vec3, ordered []geom.Vec3, centroid geom.Vec3,
	rs *rasterSettings, seen map[geom.Vec3]bool, out *geom.PointCloud) {

	if len(ordered) < 3 {
		return
	}
	emit := func(local geom.Vec3) {
		var p geom.Vec3
		for k := 0; k < 3; k++ {
			vox := (local[k] + geom.FpHalf) >> geom.FpBits
			if vox < 0 {
				vox = 0
			}
			if vox >= rs.n {
				vox = rs.n - 1
			}
			p[k] = leafPos[k] + vox
			if p[k] >= rs.rootLimit[k] {
				p[k] = rs.rootLimit[k] - 1
			}
		}
		if !seen[p] {
			seen[p] = true
			*out = append(*out, p)
		}
	}
	for i := range ordered {
		a := ordered[i]
		b := ordered[(i+1)%len(ordered)]
		rasteriseTriangle(centroid, a, b, rs, emit)
	}
	// the vertices themselves always land
	for _, v := range ordered {
		emit(v)
	}
}

func rasteriseTriangle(a, b, c geom.Vec3, rs *rasterSettings, emit func(geom.Vec3)) {
	normal := b.Sub(a).Cross(c.Sub(a))
	// skip the axis the triangle is closest to parallel with
	skip := 0
	for k := 1; k < 3; k++ {
		if geom.Abs64(normal[k]) < geom.Abs64(normal[skip]) {
			skip = k
		}
	}
	for d := 0; d < 3; d++ {
		if d == skip || normal[d] == 0 {
			continue
		}
		castTriangle(a, b, c, d, rs, emit)
	}
}

// castTriangle walks the sampling grid of the plane perpendicular to
// axis d and intersects each ray with the triangle using edge-function
// barycentrics widened by the halo.
func castTriangle(a, b, c geom.Vec3, d int, rs *rasterSettings, emit func(geom.Vec3)) {
	u, v := otherAxes(d)
	minU := minQ8Floor(a[u], b[u], c[u])
	maxU := maxQ8Ceil(a[u], b[u], c[u], rs.n)
	minV := minQ8Floor(a[v], b[v], c[v])
	maxV := maxQ8Ceil(a[v], b[v], c[v], rs.n)

	offsets := []int32{geom.FpHalf}
	if rs.fineRay {
		offsets = []int32{geom.FpHalf, geom.FpHalf >> 1, geom.FpHalf + geom.FpHalf>>1}
	}
	for gu := minU; gu <= maxU; gu += rs.sampling {
		for gv := minV; gv <= maxV; gv += rs.sampling {
			for _, off := range offsets {
				pu := int64(gu)<<geom.FpBits + int64(off)
				pv := int64(gv)<<geom.FpBits + int64(off)
				wa := cross2(int64(b[u])-pu, int64(b[v])-pv, int64(c[u])-pu, int64(c[v])-pv)
				wb := cross2(int64(c[u])-pu, int64(c[v])-pv, int64(a[u])-pu, int64(a[v])-pv)
				wc := cross2(int64(a[u])-pu, int64(a[v])-pv, int64(b[u])-pu, int64(b[v])-pv)
				sum := wa + wb + wc
				if sum == 0 {
					continue
				}
				sign := int64(1)
				if sum < 0 {
					sign = -1
				}
				slack := rs.haloQ8 * geom.Abs64(sum) >> geom.FpBits
				if wa*sign < -slack || wb*sign < -slack || wc*sign < -slack {
					continue
				}
				dd := (wa*int64(a[d]) + wb*int64(b[d]) + wc*int64(c[d])) / sum
				var local geom.Vec3
				local[u] = int32(pu)
				local[v] = int32(pv)
				local[d] = int32(dd)
				emit(local)
			}
		}
	}
}

func cross2(x1, y1, x2, y2 int64) int64 { return x1*y2 - y1*x2 }

func minQ8Floor(a, b, c int32) int32 {
	m := a
	if b < m {
		m = b
	}
	if c < m {
		m = c
	}
	m >>= geom.FpBits
	if m < 0 {
		m = 0
	}
	return m
}

func maxQ8Ceil(a, b, c, n int32) int32 {
	m := a
	if b > m {
		m = b
	}
	if c > m {
		m = c
	}
	m = m>>geom.FpBits + 1
	if m > n-1 {
		m = n - 1
	}
	return m
}
