package geom

import "math"

// SphVec is a position in the rotating-LIDAR coordinate frame: radial
// distance in the xy plane, azimuth as a fraction of a turn, and the
// laser index in place of elevation.
type SphVec struct {
	R     int32
	Phi   int32
	Laser int32
}

// AngularParams describes the spherical frame of an angular-mode
// slice.
type AngularParams struct {
	Origin Vec3
	// LaserAngle holds tan(theta) per laser in Q18.
	LaserAngle []int32
	// LaserCorrection is the per-laser z offset in position units.
	LaserCorrection []int32
	// AzimuthTwoPiLog2 sets the azimuth resolution: a full turn spans
	// 1 << AzimuthTwoPiLog2 units.
	AzimuthTwoPiLog2 int
	// AzimuthSpeed is the expected azimuth step between successive
	// points of one laser.
	AzimuthSpeed int32
}

// NumLasers returns the laser count.
func (ap *AngularParams) NumLasers() int { return len(ap.LaserAngle) }

const sineTableLog2 = 10

// sineQ15 holds a quarter wave of sin over 2^sineTableLog2 steps in
// Q15, including both endpoints.
var sineQ15 [1<<sineTableLog2 + 1]int32

func init() {
	n := 1 << sineTableLog2
	for i := 0; i <= n; i++ {
		s := math.Sin(math.Pi / 2 * float64(i) / float64(n))
		sineQ15[i] = int32(math.Round(s * 32768))
	}
}

// SinTurn returns sin(phi) in Q15 where phi counts fractions of a
// turn out of 1 << twoPiLog2.
func SinTurn(phi int32, twoPiLog2 int) int32 {
	full := int64(1) << twoPiLog2
	p := int64(phi) % full
	if p < 0 {
		p += full
	}
	quarter := full >> 2
	quad := p / quarter
	frac := p % quarter
	// index into the quarter table with linear interpolation
	idx := frac << sineTableLog2 / quarter
	rem := frac<<sineTableLog2 - idx*quarter
	lookup := func(i int64) int64 { return int64(sineQ15[i]) }
	interp := func(i int64) int32 {
		lo := lookup(i)
		hi := lookup(i + 1)
		return int32(lo + (hi-lo)*rem/quarter)
	}
	switch quad {
	case 0:
		return interp(idx)
	case 1:
		return interp((1 << sineTableLog2) - idx - 1)
	case 2:
		return -interp(idx)
	default:
		return -interp((1 << sineTableLog2) - idx - 1)
	}
}

// CosTurn returns cos(phi) in Q15 for a turn-fraction phi.
func CosTurn(phi int32, twoPiLog2 int) int32 {
	quarter := int32(1) << (twoPiLog2 - 2)
	return SinTurn(phi+quarter, twoPiLog2)
}

// IAtan2Turn returns atan2(y, x) as a signed fraction of a turn in
// [-half, half) with half = 1 << (twoPiLog2-1). The octant kernel is
// the classic first-order polynomial correction evaluated in Q15.
func IAtan2Turn(y, x int64, twoPiLog2 int) int32 {
	if x == 0 && y == 0 {
		return 0
	}
	ax, ay := Abs64(x), Abs64(y)
	quarter := int64(1) << (twoPiLog2 - 2)
	half := quarter << 1
	var a int64
	if ay <= ax {
		a = atanKernel((ay<<15)/ax, twoPiLog2)
	} else {
		a = quarter>>1 + (quarter>>1 - atanKernel((ax<<15)/ay, twoPiLog2))
	}
	if x < 0 {
		a = half - a
	}
	if y < 0 {
		a = -a
	}
	if a >= half {
		a -= half << 1
	}
	return int32(a)
}

// atanKernel maps z in Q15, z in [0,1], to atan(z) as a turn fraction
// in [0, 1/8 << twoPiLog2].
func atanKernel(z int64, twoPiLog2 int) int64 {
	// atan(z)/2pi ~ 0.125*z + 0.04345*z*(1-z); coefficients in Q17
	const c1, c2 = 16384, 5695
	f := (z * (c1 + (c2*((1<<15)-z))>>15)) >> 15
	if twoPiLog2 >= 17 {
		return f << uint(twoPiLog2-17)
	}
	return f >> uint(17-twoPiLog2)
}

// CartToSphere converts a Cartesian position to the spherical frame.
// The laser index is the best match of the elevation against the
// laser table.
func CartToSphere(pos Vec3, ap *AngularParams) SphVec {
	d := pos.Sub(ap.Origin)
	r := int32(ISqrt(uint64(int64(d[0])*int64(d[0]) + int64(d[1])*int64(d[1]))))
	phi := IAtan2Turn(int64(d[1]), int64(d[0]), ap.AzimuthTwoPiLog2)
	best, bestErr := int32(0), int64(math.MaxInt64)
	for l := 0; l < ap.NumLasers(); l++ {
		z := DivExp2RoundHalfInf(int64(r)*int64(ap.LaserAngle[l]), 18) + int64(ap.LaserCorrection[l])
		if e := Abs64(int64(d[2]) - z); e < bestErr {
			bestErr = e
			best = int32(l)
		}
	}
	return SphVec{R: r, Phi: phi, Laser: best}
}

// SphereToCart converts a spherical position back to Cartesian. The
// result is exact enough that the secondary Cartesian residual stays
// small; it is never assumed to invert CartToSphere exactly.
func SphereToCart(s SphVec, ap *AngularParams) Vec3 {
	cos := int64(CosTurn(s.Phi, ap.AzimuthTwoPiLog2))
	sin := int64(SinTurn(s.Phi, ap.AzimuthTwoPiLog2))
	x := DivExp2RoundHalfInf(int64(s.R)*cos, 15)
	y := DivExp2RoundHalfInf(int64(s.R)*sin, 15)
	l := s.Laser
	if l < 0 {
		l = 0
	}
	if int(l) >= ap.NumLasers() {
		l = int32(ap.NumLasers() - 1)
	}
	z := DivExp2RoundHalfInf(int64(s.R)*int64(ap.LaserAngle[l]), 18) + int64(ap.LaserCorrection[l])
	return ap.Origin.Add(Vec3{int32(x), int32(y), int32(z)})
}
