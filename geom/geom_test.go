package geom

import (
	"math/rand"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDivExp2RoundHalfInf(t *testing.T) {
	tests := []struct {
		x    int64
		s    int
		want int64
	}{
		{0, 3, 0},
		{4, 3, 1},
		{3, 3, 0},
		{-4, 3, -1},
		{-3, 3, 0},
		{12, 3, 2},
		{-12, 3, -2},
		{5, 0, 5},
	}
	for _, tt := range tests {
		if got := DivExp2RoundHalfInf(tt.x, tt.s); got != tt.want {
			t.Errorf("DivExp2RoundHalfInf(%d, %d) = %d, want %d", tt.x, tt.s, got, tt.want)
		}
	}
}

func TestILog2AndISqrt(t *testing.T) {
	assert.Equal(t, 0, ILog2(1))
	assert.Equal(t, 4, ILog2(16))
	assert.Equal(t, 4, ILog2(31))
	assert.Equal(t, 5, CeilLog2(32))
	assert.Equal(t, 6, CeilLog2(33))
	for _, x := range []uint64{0, 1, 2, 3, 4, 15, 16, 17, 1000000, 1 << 40} {
		r := ISqrt(x)
		if r*r > x || (r+1)*(r+1) <= x {
			t.Errorf("ISqrt(%d) = %d", x, r)
		}
	}
}

func TestRecipApprox(t *testing.T) {
	for _, b := range []int64{1, 3, 7, 100, 12345} {
		recip, shift := RecipApprox(b)
		// a*recip >> shift approximates a/b; recip is floor(2^shift/b),
		// so the error is at most a>>shift plus one for rounding
		approx := DivExp2RoundHalfInf(int64(900000)*recip, shift)
		exact := int64(900000) / b
		tol := int64(900000)>>uint(shift) + 1
		if diff := approx - exact; diff < -tol || diff > tol {
			t.Errorf("recip approx for b=%d: got %d, want ~%d", b, approx, exact)
		}
	}
}

func TestQuantizerIdentityAtQPZero(t *testing.T) {
	q := NewQuantizerGeom(0)
	for _, v := range []int64{-100, -1, 0, 1, 7, 12345} {
		require.Equal(t, v, q.Unscale(q.Quantize(v)))
	}
}

func TestQuantizerCoarseMonotonic(t *testing.T) {
	q := NewQuantizerGeom(16)
	prev := int64(-1 << 40)
	for v := int64(-50); v <= 50; v++ {
		r := q.Unscale(q.Quantize(v))
		if r < prev {
			t.Fatalf("reconstruction not monotonic at %d", v)
		}
		prev = r
	}
}

func TestRingBufOrderAndGrowth(t *testing.T) {
	r := NewRingBuf[int](2)
	for i := 0; i < 100; i++ {
		r.PushBack(i)
	}
	// interleave pushes and pops across the growth boundary
	for i := 100; i < 200; i++ {
		r.PushBack(i)
		got := r.PopFront()
		require.Equal(t, i-100, got)
	}
	require.Equal(t, 100, r.Len())
}

func TestMortonGroupsOctants(t *testing.T) {
	pts := []Vec3{{0, 0, 0}, {7, 7, 7}, {0, 0, 4}, {4, 0, 0}, {3, 3, 3}}
	sort.Slice(pts, func(a, b int) bool { return MortonCode(pts[a]) < MortonCode(pts[b]) })
	// within the sorted order the low octant (all coords < 4) comes first
	for i := 1; i < len(pts); i++ {
		loA := pts[i-1][0] < 4 && pts[i-1][1] < 4 && pts[i-1][2] < 4
		loB := pts[i][0] < 4 && pts[i][1] < 4 && pts[i][2] < 4
		if !loA && loB {
			t.Fatalf("octant ordering violated at %d: %v", i, pts)
		}
	}
}

func TestSphereRoundTripError(t *testing.T) {
	ap := &AngularParams{
		LaserAngle:       []int32{-1 << 16, 0, 1 << 16},
		LaserCorrection:  []int32{0, 0, 0},
		AzimuthTwoPiLog2: 20,
		AzimuthSpeed:     256,
	}
	rng := rand.New(rand.NewSource(3))
	for n := 0; n < 500; n++ {
		p := Vec3{rng.Int31n(4096) + 64, rng.Int31n(4096) + 64, rng.Int31n(256)}
		s := CartToSphere(p, ap)
		back := SphereToCart(s, ap)
		d := p.Sub(back)
		// the secondary cartesian residual absorbs this error; it
		// just has to stay small
		if Abs32(d[0]) > 64 || Abs32(d[1]) > 64 {
			t.Fatalf("xy error too large: %v -> %v -> %v", p, s, back)
		}
	}
}

func TestVecHelpers(t *testing.T) {
	v := Vec3{3, -4, 5}
	assert.Equal(t, Vec3{-3, 4, -5}, v.Neg())
	assert.Equal(t, int64(12), v.Norm1())
	assert.Equal(t, int64(50), v.Norm2Sq())
	assert.Equal(t, Vec3{3, 0, 5}, v.Clamp(0, 10))
	assert.Equal(t, Vec3{1, -4, 2}, v.MinV(Vec3{1, 9, 2}))
}
