// Package octree implements recursive occupancy coding of a point
// cloud volume: neighbour-conditioned contexts over a dynamic context
// map, QtBt splits, inferred direct coding of isolated points and
// inter prediction from a motion-compensated reference.
package octree

import (
	"github.com/cocosip/go-gpcc-codec/codec"
	"github.com/cocosip/go-gpcc-codec/entropy"
	"github.com/cocosip/go-gpcc-codec/geom"
)

// Codec is the octree geometry codec.
type Codec struct{}

func init() {
	codec.Register(Codec{})
}

// ID returns the header selector for octree coding.
func (Codec) ID() codec.CoderID { return codec.CoderOctree }

// Name returns a human-readable name.
func (Codec) Name() string { return "Octree Geometry" }

// NewEncoderSession creates an encoder session.
func (Codec) NewEncoderSession() codec.EncoderSession { return &encoderSession{} }

// NewDecoderSession creates a decoder session.
func (Codec) NewDecoderSession() codec.DecoderSession { return &decoderSession{} }

type encoderSession struct {
	cx *Contexts
}

// EncodeSlice codes one slice. The header's point count is set from
// the cloud; contexts carry over only when the header requests
// entropy continuation.
func (s *encoderSession) EncodeSlice(cloud geom.PointCloud, ref *codec.RefFrame, hdr *codec.SliceHeader) ([]byte, error) {
	hdr.NumPointsMinus1 = int32(len(cloud)) - 1
	if len(cloud) == 0 {
		return nil, nil
	}
	if s.cx == nil || !hdr.EntropyContinuation {
		s.cx = NewContexts()
	}
	work := shiftedClone(cloud, hdr.SliceOrigin.Neg())
	refPts := refClone(ref, hdr)

	e := entropy.NewEncoder()
	if _, err := EncodeTree(e, s.cx, work, refPts, hdr, 0); err != nil {
		return nil, err
	}
	return e.Flush(), nil
}

type decoderSession struct {
	cx *Contexts
}

// DecodeSlice parses one slice payload back into points.
func (s *decoderSession) DecodeSlice(payload []byte, ref *codec.RefFrame, hdr *codec.SliceHeader) (*codec.DecodeResult, error) {
	if hdr.NumPointsMinus1 < 0 {
		return &codec.DecodeResult{Points: geom.PointCloud{}}, nil
	}
	if s.cx == nil || !hdr.EntropyContinuation {
		s.cx = NewContexts()
	}
	refPts := refClone(ref, hdr)

	d := entropy.NewDecoder(payload)
	_, out, err := DecodeTree(d, s.cx, refPts, hdr, 0)
	if err != nil {
		return nil, err
	}
	if len(out) != hdr.NumPoints() {
		return nil, codec.SemanticError("decoded %d points, header declares %d", len(out), hdr.NumPoints())
	}
	limit := int32(1) << uint(hdr.MaxRootNodeDimLog2())
	for i := range out {
		for k := 0; k < 3; k++ {
			if out[i][k] < 0 || out[i][k] >= limit {
				return nil, codec.SemanticError("point %v outside declared bounds", out[i])
			}
		}
		out[i] = out[i].Add(hdr.SliceOrigin)
	}
	return &codec.DecodeResult{Points: out}, nil
}

// shiftedClone copies a cloud displaced by delta.
func shiftedClone(cloud geom.PointCloud, delta geom.Vec3) geom.PointCloud {
	out := make(geom.PointCloud, len(cloud))
	for i, p := range cloud {
		out[i] = p.Add(delta)
	}
	return out
}

// refClone prepares the mutable reference copy: shifted into slice
// coordinates and clamped into the root box so octant partitioning
// stays defined.
func refClone(ref *codec.RefFrame, hdr *codec.SliceHeader) geom.PointCloud {
	if !hdr.InterEnabled || ref == nil || len(ref.Points) == 0 {
		return nil
	}
	out := make(geom.PointCloud, len(ref.Points))
	var hi geom.Vec3
	for k := 0; k < 3; k++ {
		hi[k] = 1<<uint(hdr.RootSizeLog2[k]) - 1
	}
	for i, p := range ref.Points {
		out[i] = p.Sub(hdr.SliceOrigin).MaxV(geom.Vec3{}).MinV(hi)
	}
	return out
}
