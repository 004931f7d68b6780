package codec

import (
	"encoding/binary"

	"github.com/cocosip/go-gpcc-codec/geom"
)

// SliceHeader carries the per-slice parameters that are bitstream
// visible. The geometry payload that follows it is interpreted by the
// coder the Coder field selects.
type SliceHeader struct {
	Coder               CoderID
	NumPointsMinus1     int32 // -1 declares an empty slice
	EntropyContinuation bool
	UniquePoints        bool
	InterEnabled        bool

	// RootSizeLog2 is the per-axis log2 of the root node; unequal
	// components drive QtBt splitting.
	RootSizeLog2 geom.Vec3
	SliceOrigin  geom.Vec3

	SliceQP       uint8
	QPOffsetDepth int8 // -1 disables per-node QP offsets
	IDCMIntensity uint8

	// Surface layer
	TrisoupNodeSizeLog2 uint8
	BitDropped          uint8
	SamplingValue       uint8
	CentroidDrift       bool
	AdaptiveHalo        bool
	FineRay             bool
	HaloTriangle        uint8 // Q8 intersection slack

	// Angular mode
	AngularEnabled    bool
	AzimuthScaling    bool
	Residual2Disabled bool
	Angular           geom.AngularParams

	// Motion
	MotionEnabled       bool
	MotionBlockSizeLog2 uint8
	MotionMinPuSizeLog2 uint8
	MotionSearchRange   uint8
}

// MaxRootNodeDimLog2 returns the largest per-axis root log2; decoded
// coordinates must lie in [0, 1<<MaxRootNodeDimLog2).
func (h *SliceHeader) MaxRootNodeDimLog2() int {
	return int(max(h.RootSizeLog2[0], max(h.RootSizeLog2[1], h.RootSizeLog2[2])))
}

// NumPoints returns the declared point count.
func (h *SliceHeader) NumPoints() int { return int(h.NumPointsMinus1) + 1 }

const headerVersion = 1

// Marshal serialises the header little endian. The layout is fixed so
// that round-trip tests can frame slices without a host container.
func (h *SliceHeader) Marshal() []byte {
	w := newFieldWriter()
	w.u8(headerVersion)
	w.u8(uint8(h.Coder))
	w.i32(h.NumPointsMinus1)
	w.flags(h.EntropyContinuation, h.UniquePoints, h.InterEnabled,
		h.CentroidDrift, h.AdaptiveHalo, h.FineRay,
		h.AngularEnabled, h.AzimuthScaling)
	w.flags(h.Residual2Disabled, h.MotionEnabled, false, false, false, false, false, false)
	w.vec3(h.RootSizeLog2)
	w.vec3(h.SliceOrigin)
	w.u8(h.SliceQP)
	w.u8(uint8(h.QPOffsetDepth))
	w.u8(h.IDCMIntensity)
	w.u8(h.TrisoupNodeSizeLog2)
	w.u8(h.BitDropped)
	w.u8(h.SamplingValue)
	w.u8(h.HaloTriangle)
	w.u8(h.MotionBlockSizeLog2)
	w.u8(h.MotionMinPuSizeLog2)
	w.u8(h.MotionSearchRange)
	if h.AngularEnabled {
		w.vec3(h.Angular.Origin)
		w.u8(uint8(h.Angular.AzimuthTwoPiLog2))
		w.i32(h.Angular.AzimuthSpeed)
		w.u8(uint8(len(h.Angular.LaserAngle)))
		for i := range h.Angular.LaserAngle {
			w.i32(h.Angular.LaserAngle[i])
			w.i32(h.Angular.LaserCorrection[i])
		}
	}
	return w.buf
}

// Unmarshal parses a header and returns the remaining payload.
func (h *SliceHeader) Unmarshal(data []byte) ([]byte, error) {
	r := &fieldReader{buf: data}
	if v := r.u8(); v != headerVersion {
		return nil, SyntaxError(0, "unsupported header version %d", v)
	}
	h.Coder = CoderID(r.u8())
	h.NumPointsMinus1 = r.i32()
	f0 := r.u8()
	h.EntropyContinuation = f0&1 != 0
	h.UniquePoints = f0&2 != 0
	h.InterEnabled = f0&4 != 0
	h.CentroidDrift = f0&8 != 0
	h.AdaptiveHalo = f0&16 != 0
	h.FineRay = f0&32 != 0
	h.AngularEnabled = f0&64 != 0
	h.AzimuthScaling = f0&128 != 0
	f1 := r.u8()
	h.Residual2Disabled = f1&1 != 0
	h.MotionEnabled = f1&2 != 0
	h.RootSizeLog2 = r.vec3()
	h.SliceOrigin = r.vec3()
	h.SliceQP = r.u8()
	h.QPOffsetDepth = int8(r.u8())
	h.IDCMIntensity = r.u8()
	h.TrisoupNodeSizeLog2 = r.u8()
	h.BitDropped = r.u8()
	h.SamplingValue = r.u8()
	h.HaloTriangle = r.u8()
	h.MotionBlockSizeLog2 = r.u8()
	h.MotionMinPuSizeLog2 = r.u8()
	h.MotionSearchRange = r.u8()
	if h.AngularEnabled {
		h.Angular.Origin = r.vec3()
		h.Angular.AzimuthTwoPiLog2 = int(r.u8())
		h.Angular.AzimuthSpeed = r.i32()
		n := int(r.u8())
		h.Angular.LaserAngle = make([]int32, n)
		h.Angular.LaserCorrection = make([]int32, n)
		for i := 0; i < n; i++ {
			h.Angular.LaserAngle[i] = r.i32()
			h.Angular.LaserCorrection[i] = r.i32()
		}
	}
	if r.truncated {
		return nil, SyntaxError(len(data), "truncated slice header")
	}
	return r.buf[r.pos:], nil
}

type fieldWriter struct{ buf []byte }

func newFieldWriter() *fieldWriter { return &fieldWriter{buf: make([]byte, 0, 64)} }

func (w *fieldWriter) u8(v uint8) { w.buf = append(w.buf, v) }

func (w *fieldWriter) i32(v int32) {
	w.buf = binary.LittleEndian.AppendUint32(w.buf, uint32(v))
}

func (w *fieldWriter) vec3(v geom.Vec3) {
	for k := 0; k < 3; k++ {
		w.i32(v[k])
	}
}

func (w *fieldWriter) flags(bits ...bool) {
	var b uint8
	for i, f := range bits {
		if f {
			b |= 1 << uint(i)
		}
	}
	w.u8(b)
}

type fieldReader struct {
	buf       []byte
	pos       int
	truncated bool
}

func (r *fieldReader) u8() uint8 {
	if r.pos+1 > len(r.buf) {
		r.truncated = true
		return 0
	}
	v := r.buf[r.pos]
	r.pos++
	return v
}

func (r *fieldReader) i32() int32 {
	if r.pos+4 > len(r.buf) {
		r.truncated = true
		return 0
	}
	v := binary.LittleEndian.Uint32(r.buf[r.pos:])
	r.pos += 4
	return int32(v)
}

func (r *fieldReader) vec3() geom.Vec3 {
	return geom.Vec3{r.i32(), r.i32(), r.i32()}
}
