// Package codec defines the shared surface of the geometry codecs:
// the slice header, the coder interfaces, error taxonomy and the
// registry hosts use to select a coder.
package codec

import "github.com/cocosip/go-gpcc-codec/geom"

// CoderID identifies a geometry coder family in the slice header.
type CoderID uint8

const (
	// CoderOctree selects recursive occupancy coding.
	CoderOctree CoderID = iota
	// CoderPredictive selects the predictive-tree coder.
	CoderPredictive
	// CoderTrisoup selects octree coding terminated by a triangle
	// surface layer.
	CoderTrisoup
)

// String returns the canonical coder name.
func (id CoderID) String() string {
	switch id {
	case CoderOctree:
		return "octree"
	case CoderPredictive:
		return "predictive"
	case CoderTrisoup:
		return "trisoup"
	}
	return "unknown"
}

// GeometryCodec is the universal interface for the geometry coders.
// A codec value is stateless; per-slice entropy state lives in the
// sessions it creates.
type GeometryCodec interface {
	// ID returns the coder selector value for the slice header.
	ID() CoderID

	// Name returns a human-readable name.
	Name() string

	// NewEncoderSession creates an encoder whose context state spans
	// the slices fed to it, enabling entropy continuation.
	NewEncoderSession() EncoderSession

	// NewDecoderSession creates the matching decoder.
	NewDecoderSession() DecoderSession
}

// EncoderSession encodes successive slices. Contexts reset at each
// slice unless the header requests entropy continuation.
type EncoderSession interface {
	EncodeSlice(cloud geom.PointCloud, ref *RefFrame, hdr *SliceHeader) ([]byte, error)
}

// DecoderSession decodes successive slices of one continuation chain.
type DecoderSession interface {
	DecodeSlice(payload []byte, ref *RefFrame, hdr *SliceHeader) (*DecodeResult, error)
}

// DecodeResult is the output of decoding one slice.
type DecodeResult struct {
	// Points holds exactly NumPointsMinus1+1 reconstructed points.
	Points geom.PointCloud

	// Spherical carries the intermediate spherical positions of an
	// angular-mode slice for the attribute coders; nil otherwise.
	Spherical []geom.SphVec
}

// RefFrame is the reference handed to inter-coded slices: the decoded
// points of the previous frame plus, for angular slices, their
// spherical positions. It is read-only during geometry coding.
type RefFrame struct {
	Points    geom.PointCloud
	Spherical []geom.SphVec
}
