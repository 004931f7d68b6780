// Package obuf implements the dynamic context map used by the
// occupancy and surface coders. A large context key space (i, j) is
// funnelled onto a small pool of coder indices; the mapping starts
// coarse and refines where traffic concentrates. Encoder and decoder
// run the identical code path, so the map state stays a pure function
// of the observed bit sequence.
package obuf

import "github.com/cocosip/go-gpcc-codec/entropy"

const (
	// LeafDepth is the number of low i bits resolved by a leaf.
	LeafDepth = 4
	// LeafSize is the entry count of one leaf.
	LeafSize = 1 << LeafDepth
	// LeafBufferSize is the fixed leaf pool size per map.
	LeafBufferSize = 20000
	// collisionWindow bounds the reuse scan once the pool wraps.
	collisionWindow = 20

	initialCoderIdx = 127
	// kDownLeaf marks a cell whose state migrated to a leaf.
	kDownLeaf = 0
)

// Map is one dynamic context map of dimensions 2^s1Bits x 2^s2Bits.
type Map struct {
	s1Bits int
	s2     int

	// one cell per (i >> LeafDepth, j); cells with erased i bits
	// share state through their canonical (first) cell
	coder []uint8
	seen  []uint8
	kDown []uint8

	leaves    []uint8
	leafCount int
	leafPtr   int
}

// New builds a map. seed, when non-nil, must hold 2^s2Bits bytes and
// initialises the root cell of every j column; nil seeds every column
// at 127. s1Bits must be at least LeafDepth.
func New(s1Bits, s2Bits int, seed []uint8) *Map {
	rows := 1 << uint(s1Bits-LeafDepth)
	s2 := 1 << uint(s2Bits)
	m := &Map{
		s1Bits: s1Bits,
		s2:     s2,
		coder:  make([]uint8, rows*s2),
		seen:   make([]uint8, rows*s2),
		kDown:  make([]uint8, rows*s2),
		leaves: make([]uint8, LeafBufferSize*LeafSize),
	}
	for c := range m.coder {
		m.coder[c] = initialCoderIdx
	}
	for c := range m.kDown {
		m.kDown[c] = uint8(s1Bits)
	}
	if seed != nil {
		for j := 0; j < s2; j++ {
			m.coder[j] = seed[j]
		}
	}
	return m
}

// Lookup returns the coder index currently mapped to (i, j) without
// touching the map. The caller codes its bit with the corresponding
// model and then reports the outcome through Push.
func (m *Map) Lookup(i, j int) uint8 {
	t := i >> LeafDepth
	idx := t*m.s2 + j
	kd := int(m.kDown[idx])
	if kd == kDownLeaf {
		leaf := int(m.coder[idx])<<8 | int(m.seen[idx])
		return m.leaves[leaf*LeafSize+(i&(LeafSize-1))]
	}
	return m.coder[m.canonical(t, kd)*m.s2+j]
}

// Push records the coded bit for (i, j): the mapped coder index decays
// toward the bit, and once a cell has seen enough traffic it either
// splits its shared group in half or migrates to a pool leaf.
func (m *Map) Push(bit, i, j int) {
	t := i >> LeafDepth
	idx := t*m.s2 + j
	kd := int(m.kDown[idx])
	if kd == kDownLeaf {
		leaf := int(m.coder[idx])<<8 | int(m.seen[idx])
		p := &m.leaves[leaf*LeafSize+(i&(LeafSize-1))]
		*p = entropy.UpdateCoderIdx(*p, bit)
		return
	}

	canon := m.canonical(t, kd)*m.s2 + j
	c := entropy.UpdateCoderIdx(m.coder[canon], bit)
	m.coder[canon] = c
	m.seen[canon]++
	if int(m.seen[canon]) <= seenThreshold(c) {
		return
	}
	m.seen[canon] = 0

	if kd > LeafDepth {
		m.refine(t, j, kd)
		return
	}
	m.migrate(idx, c)
}

// refine splits the shared group of rows in half: the upper half gets
// a copy of the shared state and both halves evolve independently.
func (m *Map) refine(t, j, kd int) {
	shift := kd - LeafDepth
	base := (t >> uint(shift)) << uint(shift)
	rows := 1 << uint(shift)
	for r := base; r < base+rows; r++ {
		m.kDown[r*m.s2+j] = uint8(kd - 1)
	}
	half := rows >> 1
	src := base*m.s2 + j
	dst := (base+half)*m.s2 + j
	m.coder[dst] = m.coder[src]
	m.seen[dst] = 0
}

// migrate hands the cell a 16-entry leaf seeded with the current coder
// index. The leaf id is stuffed across the cell's coder and seen
// bytes.
func (m *Map) migrate(idx int, c uint8) {
	leaf := m.allocLeaf(c)
	for n := 0; n < LeafSize; n++ {
		m.leaves[leaf*LeafSize+n] = c
	}
	m.coder[idx] = uint8(leaf >> 8)
	m.seen[idx] = uint8(leaf)
	m.kDown[idx] = kDownLeaf
}

// allocLeaf returns the next free leaf. Once the pool is exhausted it
// scans the twenty successors of the pointer, reuses the leaf whose
// first entry is nearest the migrating value (ties to the earliest)
// and parks the pointer there.
func (m *Map) allocLeaf(c uint8) int {
	if m.leafCount < LeafBufferSize {
		idx := m.leafCount
		m.leafCount++
		m.leafPtr = idx
		return idx
	}
	best, bestDist := -1, 256
	for s := 1; s <= collisionWindow; s++ {
		cand := (m.leafPtr + s) % LeafBufferSize
		d := int(m.leaves[cand*LeafSize]) - int(c)
		if d < 0 {
			d = -d
		}
		if d < bestDist {
			bestDist = d
			best = cand
		}
	}
	m.leafPtr = best
	return best
}

func (m *Map) canonical(t, kd int) int {
	shift := kd - LeafDepth
	return (t >> uint(shift)) << uint(shift)
}

func seenThreshold(c uint8) int {
	d := int(c) - 127
	if d < 0 {
		d = -d
	}
	return 3 + d/16
}
