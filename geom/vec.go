package geom

// Vec3 is an integer position or displacement, one component per axis.
type Vec3 [3]int32

// Add returns v + w.
func (v Vec3) Add(w Vec3) Vec3 {
	return Vec3{v[0] + w[0], v[1] + w[1], v[2] + w[2]}
}

// Sub returns v - w.
func (v Vec3) Sub(w Vec3) Vec3 {
	return Vec3{v[0] - w[0], v[1] - w[1], v[2] - w[2]}
}

// Neg returns -v.
func (v Vec3) Neg() Vec3 {
	return Vec3{-v[0], -v[1], -v[2]}
}

// Mul returns v scaled by s.
func (v Vec3) Mul(s int32) Vec3 {
	return Vec3{v[0] * s, v[1] * s, v[2] * s}
}

// ShiftRight shifts every component right by s.
func (v Vec3) ShiftRight(s int) Vec3 {
	return Vec3{v[0] >> s, v[1] >> s, v[2] >> s}
}

// ShiftLeft shifts every component left by s.
func (v Vec3) ShiftLeft(s int) Vec3 {
	return Vec3{v[0] << s, v[1] << s, v[2] << s}
}

// ShiftRightV shifts each component by the matching component of s.
func (v Vec3) ShiftRightV(s Vec3) Vec3 {
	return Vec3{v[0] >> s[0], v[1] >> s[1], v[2] >> s[2]}
}

// Dot returns the 64-bit dot product of v and w.
func (v Vec3) Dot(w Vec3) int64 {
	return int64(v[0])*int64(w[0]) + int64(v[1])*int64(w[1]) + int64(v[2])*int64(w[2])
}

// Cross returns the cross product of v and w in 64-bit components.
func (v Vec3) Cross(w Vec3) [3]int64 {
	return [3]int64{
		int64(v[1])*int64(w[2]) - int64(v[2])*int64(w[1]),
		int64(v[2])*int64(w[0]) - int64(v[0])*int64(w[2]),
		int64(v[0])*int64(w[1]) - int64(v[1])*int64(w[0]),
	}
}

// Norm1 returns the L1 norm of v.
func (v Vec3) Norm1() int64 {
	return int64(Abs32(v[0])) + int64(Abs32(v[1])) + int64(Abs32(v[2]))
}

// Norm2Sq returns the squared euclidean norm of v.
func (v Vec3) Norm2Sq() int64 {
	return v.Dot(v)
}

// Clamp limits every component of v to [lo, hi].
func (v Vec3) Clamp(lo, hi int32) Vec3 {
	var r Vec3
	for k := 0; k < 3; k++ {
		c := v[k]
		if c < lo {
			c = lo
		}
		if c > hi {
			c = hi
		}
		r[k] = c
	}
	return r
}

// MinV returns the component-wise minimum of v and w.
func (v Vec3) MinV(w Vec3) Vec3 {
	return Vec3{min(v[0], w[0]), min(v[1], w[1]), min(v[2], w[2])}
}

// MaxV returns the component-wise maximum of v and w.
func (v Vec3) MaxV(w Vec3) Vec3 {
	return Vec3{max(v[0], w[0]), max(v[1], w[1]), max(v[2], w[2])}
}

// Abs32 returns the absolute value of a 32-bit integer.
func Abs32(x int32) int32 {
	if x < 0 {
		return -x
	}
	return x
}

// Abs64 returns the absolute value of a 64-bit integer.
func Abs64(x int64) int64 {
	if x < 0 {
		return -x
	}
	return x
}

// Sign returns 1 if n >= 0 and -1 otherwise.
func Sign(n int32) int32 {
	if n >= 0 {
		return 1
	}
	return -1
}
