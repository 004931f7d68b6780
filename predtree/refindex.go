package predtree

import (
	"sort"

	"github.com/cocosip/go-gpcc-codec/geom"
)

// refIndex answers closest-predecessor queries against the reference
// frame's spherical positions. Both sides of the stream build it from
// the same array, so the query results match exactly.
type refIndex struct {
	// entries sorted by (laser, phi)
	sph []geom.SphVec
	// laserStart[l] is the first entry of laser l
	laserStart []int
}

func newRefIndex(sph []geom.SphVec, numLasers int) *refIndex {
	entries := make([]geom.SphVec, len(sph))
	copy(entries, sph)
	sort.SliceStable(entries, func(a, b int) bool {
		if entries[a].Laser != entries[b].Laser {
			return entries[a].Laser < entries[b].Laser
		}
		return entries[a].Phi < entries[b].Phi
	})
	starts := make([]int, numLasers+1)
	for l, i := 0, 0; l <= numLasers; l++ {
		for i < len(entries) && int(entries[i].Laser) < l {
			i++
		}
		starts[l] = i
	}
	return &refIndex{sph: entries, laserStart: starts}
}

// getClosestPred returns the reference position nearest in azimuth on
// the given laser, and ok=false when the laser is empty.
func (r *refIndex) getClosestPred(phi int32, laser int32) (geom.SphVec, bool) {
	s, ok := r.closest(phi, laser, 0)
	return s, ok
}

// getNextClosestPred returns the second-nearest candidate.
func (r *refIndex) getNextClosestPred(phi int32, laser int32) (geom.SphVec, bool) {
	s, ok := r.closest(phi, laser, 1)
	return s, ok
}

func (r *refIndex) closest(phi int32, laser int32, rank int) (geom.SphVec, bool) {
	if int(laser) >= len(r.laserStart)-1 || laser < 0 {
		return geom.SphVec{}, false
	}
	lo, hi := r.laserStart[laser], r.laserStart[laser+1]
	if lo == hi {
		return geom.SphVec{}, false
	}
	seg := r.sph[lo:hi]
	i := sort.Search(len(seg), func(k int) bool { return seg[k].Phi >= phi })
	// collect up to two candidates around the insertion point
	type cand struct {
		s geom.SphVec
		d int64
	}
	var cands []cand
	for _, k := range [2]int{i - 1, i} {
		if k >= 0 && k < len(seg) {
			d := geom.Abs64(int64(seg[k].Phi) - int64(phi))
			cands = append(cands, cand{seg[k], d})
		}
	}
	if len(cands) == 0 {
		return geom.SphVec{}, false
	}
	if len(cands) == 1 {
		return cands[0].s, rank == 0
	}
	first, second := 0, 1
	if cands[1].d < cands[0].d {
		first, second = 1, 0
	}
	if rank == 0 {
		return cands[first].s, true
	}
	return cands[second].s, true
}
