package geom

// MortonCode interleaves the low 21 bits of each component into a
// 63-bit z-order key. Sorting by it groups points by octree cell at
// every depth.
func MortonCode(v Vec3) uint64 {
	return spread(uint64(uint32(v[0])))<<2 |
		spread(uint64(uint32(v[1])))<<1 |
		spread(uint64(uint32(v[2])))
}

// spread spaces the low 21 bits of x three apart.
func spread(x uint64) uint64 {
	x &= 0x1FFFFF
	x = (x | x<<32) & 0x1F00000000FFFF
	x = (x | x<<16) & 0x1F0000FF0000FF
	x = (x | x<<8) & 0x100F00F00F00F00F
	x = (x | x<<4) & 0x10C30C30C30C30C3
	x = (x | x<<2) & 0x1249249249249249
	return x
}
