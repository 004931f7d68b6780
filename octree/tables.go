package octree

// Neighbour pattern reductions. The 6-bit face-neighbour pattern is
// folded to a small class index before it conditions the occupancy
// contexts: nine classes on the sparse path, six on the dense path.

var (
	neighPattern64to9 [64]uint8
	neighPattern64to6 [64]uint8
)

func init() {
	for p := 0; p < 64; p++ {
		neighPattern64to9[p] = reduce9(uint8(p))
		neighPattern64to6[p] = reduce6(uint8(p))
	}
}

// reduce9 classifies a pattern by neighbour count and arrangement:
// 0 empty; 1-3 single neighbour per axis; 4 opposite pair; 5 bent
// pair; 6 three; 7 four; 8 five or six.
func reduce9(p uint8) uint8 {
	n := popcount8(p)
	switch n {
	case 0:
		return 0
	case 1:
		for axis := 0; axis < 3; axis++ {
			if p&(3<<uint(2*axis)) != 0 {
				return uint8(1 + axis)
			}
		}
	case 2:
		for axis := 0; axis < 3; axis++ {
			if p>>uint(2*axis)&3 == 3 {
				return 4
			}
		}
		return 5
	case 3:
		return 6
	case 4:
		return 7
	}
	return 8
}

func reduce6(p uint8) uint8 {
	n := popcount8(p)
	if n > 5 {
		n = 5
	}
	return uint8(n)
}

func popcount8(p uint8) int {
	n := 0
	for ; p != 0; p &= p - 1 {
		n++
	}
	return n
}
