package predtree

import (
	"github.com/cocosip/go-gpcc-codec/codec"
	"github.com/cocosip/go-gpcc-codec/entropy"
	"github.com/cocosip/go-gpcc-codec/geom"
)

// Codec is the predictive-tree geometry codec.
type Codec struct{}

func init() {
	codec.Register(Codec{})
}

// ID returns the header selector for predictive coding.
func (Codec) ID() codec.CoderID { return codec.CoderPredictive }

// Name returns a human-readable name.
func (Codec) Name() string { return "Predictive Tree Geometry" }

// NewEncoderSession creates an encoder session.
func (Codec) NewEncoderSession() codec.EncoderSession { return &encoderSession{} }

// NewDecoderSession creates a decoder session.
func (Codec) NewDecoderSession() codec.DecoderSession { return &decoderSession{} }

// ValidateHeader rejects combinations the predictive coder cannot
// honour before any payload is touched.
func ValidateHeader(hdr *codec.SliceHeader) error {
	if hdr.AngularEnabled {
		if hdr.Angular.NumLasers() == 0 {
			return codec.ConfigError("angular mode without laser table")
		}
		if len(hdr.Angular.LaserCorrection) != hdr.Angular.NumLasers() {
			return codec.ConfigError("laser correction table length mismatch")
		}
		tpl := hdr.Angular.AzimuthTwoPiLog2
		if tpl < 8 || tpl > 30 {
			return codec.ConfigError("azimuth two-pi log2 %d out of range", tpl)
		}
		if hdr.Angular.AzimuthSpeed < 0 {
			return codec.ConfigError("negative azimuth speed")
		}
	}
	if hdr.AzimuthScaling && !hdr.AngularEnabled {
		return codec.ConfigError("azimuth scaling requires angular mode")
	}
	if hdr.InterEnabled && !hdr.AngularEnabled {
		return codec.ConfigError("predictive inter coding requires angular mode")
	}
	return nil
}

type encoderSession struct {
	cx *Contexts
}

// EncodeSlice codes one slice body. The header's point count is set
// from the cloud.
func (s *encoderSession) EncodeSlice(cloud geom.PointCloud, ref *codec.RefFrame, hdr *codec.SliceHeader) ([]byte, error) {
	hdr.NumPointsMinus1 = int32(len(cloud)) - 1
	if len(cloud) == 0 {
		return nil, nil
	}
	if s.cx == nil || !hdr.EntropyContinuation {
		s.cx = NewContexts()
	}
	work := make(geom.PointCloud, len(cloud))
	for i, p := range cloud {
		work[i] = p.Sub(hdr.SliceOrigin)
	}
	e := entropy.NewEncoder()
	if err := EncodeForest(e, s.cx, work, ref, hdr); err != nil {
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
	d := entropy.NewDecoder(payload)
	out, sph, err := DecodeForest(d, s.cx, ref, hdr)
	if err != nil {
		return nil, err
	}
	if len(out) != hdr.NumPoints() {
		return nil, codec.SemanticError("decoded %d points, header declares %d", len(out), hdr.NumPoints())
	}
	return &codec.DecodeResult{Points: out, Spherical: sph}, nil
}
