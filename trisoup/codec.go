package trisoup

import (
	"github.com/cocosip/go-gpcc-codec/codec"
	"github.com/cocosip/go-gpcc-codec/entropy"
	"github.com/cocosip/go-gpcc-codec/geom"
	"github.com/cocosip/go-gpcc-codec/octree"
)

// Codec is the surface geometry codec: octree descent terminated at
// the trisoup node size, with vertex-coded triangle fans below it.
type Codec struct{}

func init() {
	codec.Register(Codec{})
}

// ID returns the header selector for trisoup coding.
func (Codec) ID() codec.CoderID { return codec.CoderTrisoup }

// Name returns a human-readable name.
func (Codec) Name() string { return "TriSoup Surface Geometry" }

// NewEncoderSession creates an encoder session.
func (Codec) NewEncoderSession() codec.EncoderSession { return &encoderSession{} }

// NewDecoderSession creates a decoder session.
func (Codec) NewDecoderSession() codec.DecoderSession { return &decoderSession{} }

// ValidateHeader rejects combinations the surface coder does not
// support.
func ValidateHeader(hdr *codec.SliceHeader) error {
	ts := int(hdr.TrisoupNodeSizeLog2)
	if ts < 1 {
		return codec.ConfigError("trisoup node size log2 must be at least 1")
	}
	if int(hdr.BitDropped) > ts {
		return codec.ConfigError("bit dropped %d exceeds node size log2 %d", hdr.BitDropped, ts)
	}
	if hdr.MaxRootNodeDimLog2() < ts {
		return codec.ConfigError("root smaller than trisoup node")
	}
	if hdr.SliceQP != 0 || hdr.QPOffsetDepth >= 0 {
		return codec.ConfigError("geometry quantisation is not supported with trisoup")
	}
	if hdr.IDCMIntensity != 0 {
		return codec.ConfigError("direct coding is not supported with trisoup")
	}
	return nil
}

type encoderSession struct {
	cx *Contexts
}

// EncodeSlice codes the octree part, the segment vertices and the
// centroid drifts, then reconstructs the surface exactly as the
// decoder will so the header's point count matches it.
func (s *encoderSession) EncodeSlice(cloud geom.PointCloud, ref *codec.RefFrame, hdr *codec.SliceHeader) ([]byte, error) {
	if err := ValidateHeader(hdr); err != nil {
		return nil, err
	}
	if len(cloud) == 0 {
		hdr.NumPointsMinus1 = -1
		return nil, nil
	}
	if s.cx == nil || !hdr.EntropyContinuation {
		s.cx = NewContexts()
	}
	cx := s.cx
	work := make(geom.PointCloud, len(cloud))
	for i, p := range cloud {
		work[i] = p.Sub(hdr.SliceOrigin)
	}
	refPts := refClone(ref, hdr)

	e := entropy.NewEncoder()
	leaves, err := octree.EncodeTree(e, cx.Oct, work, refPts, hdr, int(hdr.TrisoupNodeSizeLog2))
	if err != nil {
		return nil, err
	}

	n := int32(1) << hdr.TrisoupNodeSizeLog2
	nbits := int(hdr.TrisoupNodeSizeLog2) - int(hdr.BitDropped)
	leafPos := leafPositions(leaves)
	segs, leafSegs := buildSegments(leafPos, n)
	interActive := hdr.InterEnabled && len(refPts) > 0

	curFn := func(li int) geom.PointCloud { return work[leaves[li].Start:leaves[li].End] }
	refFn := func(li int) geom.PointCloud { return refPts[leaves[li].PredStart:leaves[li].PredEnd] }

	for si := range segs {
		seg := &segs[si]
		if interActive {
			seg.predPresent, seg.predValue = determineVertex(seg, leafPos, n, refFn, nbits, int(hdr.BitDropped))
		}
		seg.present, seg.value = determineVertex(seg, leafPos, n, curFn, nbits, int(hdr.BitDropped))
		encodeSegment(e, cx, seg, interActive, nbits)
	}

	drifts := make([]int32, len(leaves))
	if driftActive(hdr) {
		for li := range leaves {
			verts := leafVertices(li, leafPos[li], segs, leafSegs, n, int(hdr.BitDropped))
			if len(verts) <= 3 {
				continue
			}
			ordered, _ := orderVertices(verts, centroidOf(verts))
			centroid := centroidOf(verts)
			normal := polygonNormalQ8(ordered, centroid)
			bound := driftBound(n)
			pred := DriftPred{}
			if interActive {
				pred = DriftPred{Inter: true, Value: estimateDrift(refFn(li), leafPos[li], centroid, normal, int(hdr.BitDropped), bound)}
			}
			q := estimateDrift(curFn(li), leafPos[li], centroid, normal, int(hdr.BitDropped), bound)
			encodeDrift(e, cx, q, bound, pred)
			drifts[li] = q
		}
	}

	out := reconstruct(leafPos, segs, leafSegs, drifts, hdr)
	hdr.NumPointsMinus1 = int32(len(out)) - 1
	return e.Flush(), nil
}

type decoderSession struct {
	cx *Contexts
}

// DecodeSlice parses the octree part and the surface syntax, then
// rasterises the fans back to points.
func (s *decoderSession) DecodeSlice(payload []byte, ref *codec.RefFrame, hdr *codec.SliceHeader) (*codec.DecodeResult, error) {
	if err := ValidateHeader(hdr); err != nil {
		return nil, err
	}
	if hdr.NumPointsMinus1 < 0 {
		return &codec.DecodeResult{Points: geom.PointCloud{}}, nil
	}
	if s.cx == nil || !hdr.EntropyContinuation {
		s.cx = NewContexts()
	}
	cx := s.cx
	refPts := refClone(ref, hdr)

	d := entropy.NewDecoder(payload)
	leaves, _, err := octree.DecodeTree(d, cx.Oct, refPts, hdr, int(hdr.TrisoupNodeSizeLog2))
	if err != nil {
		return nil, err
	}

	n := int32(1) << hdr.TrisoupNodeSizeLog2
	nbits := int(hdr.TrisoupNodeSizeLog2) - int(hdr.BitDropped)
	leafPos := leafPositions(leaves)
	segs, leafSegs := buildSegments(leafPos, n)
	interActive := hdr.InterEnabled && len(refPts) > 0
	refFn := func(li int) geom.PointCloud { return refPts[leaves[li].PredStart:leaves[li].PredEnd] }

	for si := range segs {
		seg := &segs[si]
		if interActive {
			seg.predPresent, seg.predValue = determineVertex(seg, leafPos, n, refFn, nbits, int(hdr.BitDropped))
		}
		decodeSegment(d, cx, seg, interActive, nbits)
	}

	drifts := make([]int32, len(leaves))
	if driftActive(hdr) {
		for li := range leaves {
			verts := leafVertices(li, leafPos[li], segs, leafSegs, n, int(hdr.BitDropped))
			if len(verts) <= 3 {
				continue
			}
			ordered, _ := orderVertices(verts, centroidOf(verts))
			centroid := centroidOf(verts)
			normal := polygonNormalQ8(ordered, centroid)
			bound := driftBound(n)
			pred := DriftPred{}
			if interActive {
				pred = DriftPred{Inter: true, Value: estimateDrift(refFn(li), leafPos[li], centroid, normal, int(hdr.BitDropped), bound)}
			}
			drifts[li] = decodeDrift(d, cx, bound, pred)
		}
	}
	if d.Overrun() {
		return nil, codec.SyntaxError(d.Pos(), "truncated geometry payload")
	}

	out := reconstruct(leafPos, segs, leafSegs, drifts, hdr)
	if len(out) != hdr.NumPoints() {
		return nil, codec.SemanticError("decoded %d points, header declares %d", len(out), hdr.NumPoints())
	}
	for i := range out {
		out[i] = out[i].Add(hdr.SliceOrigin)
	}
	return &codec.DecodeResult{Points: out}, nil
}

// reconstruct rasterises every leaf fan; it is the single code path
// both sides use, which pins the decoded count the encoder writes.
func reconstruct(leafPos []geom.Vec3, segs []segment, leafSegs [][12]int, drifts []int32, hdr *codec.SliceHeader) geom.PointCloud {
	n := int32(1) << hdr.TrisoupNodeSizeLog2
	rs := &rasterSettings{
		n:          n,
		sampling:   int32(max(1, int(hdr.SamplingValue))),
		haloQ8:     int64(hdr.HaloTriangle),
		fineRay:    hdr.FineRay,
		bitDropped: int(hdr.BitDropped),
	}
	if hdr.AdaptiveHalo {
		rs.haloQ8 += int64(rs.sampling-1) << 6
	}
	for k := 0; k < 3; k++ {
		rs.rootLimit[k] = 1 << uint(hdr.RootSizeLog2[k])
	}
	seen := make(map[geom.Vec3]bool)
	var out geom.PointCloud
	for li := range leafPos {
		verts := leafVertices(li, leafPos[li], segs, leafSegs, n, rs.bitDropped)
		if len(verts) < 3 {
			continue
		}
		ordered, _ := orderVertices(verts, centroidOf(verts))
		centroid := centroidOf(verts)
		if len(verts) > 3 && driftActive(hdr) {
			centroid = applyDrift(centroid, polygonNormalQ8(ordered, centroid), drifts[li], rs.bitDropped)
		}
		rasteriseLeaf(leafPos[li], ordered, centroid, rs, seen, &out)
	}
	return out
}

func driftActive(hdr *codec.SliceHeader) bool {
	return hdr.CentroidDrift && hdr.SamplingValue <= 4
}

func leafPositions(leaves []octree.Node) []geom.Vec3 {
	pos := make([]geom.Vec3, len(leaves))
	for i := range leaves {
		pos[i] = leaves[i].Pos
	}
	return pos
}

// refClone prepares the mutable reference copy in slice coordinates.
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
