package trisoup

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cocosip/go-gpcc-codec/codec"
	"github.com/cocosip/go-gpcc-codec/geom"
)

// TestSegmentUniqueness merges the edges of two face-adjacent leaves:
// 24 raw edges collapse to 20 unique segments in strict key order.
func TestSegmentUniqueness(t *testing.T) {
	leaves := []geom.Vec3{{0, 0, 0}, {8, 0, 0}}
	segs, leafSegs := buildSegments(leaves, 8)
	require.Len(t, segs, 20)

	for i := 1; i < len(segs); i++ {
		require.True(t, keyLess(segs[i-1].key, segs[i].key),
			"segments out of order at %d", i)
	}
	shared := 0
	for _, s := range segs {
		require.NotEmpty(t, s.touches)
		if len(s.touches) == 2 {
			shared++
		}
	}
	require.Equal(t, 4, shared, "face-adjacent leaves share four edges")
	// every leaf still addresses its twelve edges
	for li := range leaves {
		seen := map[int]bool{}
		for _, si := range leafSegs[li] {
			seen[si] = true
		}
		require.Len(t, seen, 12)
	}
}

// TestPresenceBitCount pins the presence-bit count of three leaves in
// an L: the segment walkers code exactly one presence bit per unique
// segment, so the count is the unique segment count, 36 raw edges less
// four per shared face (the corner edge touched by all three leaves
// sits in both faces).
func TestPresenceBitCount(t *testing.T) {
	leaves := []geom.Vec3{{0, 0, 0}, {0, 8, 0}, {8, 8, 0}}
	segs, _ := buildSegments(leaves, 8)
	require.Len(t, segs, 12*3-4*2)
}

func trisoupHeader(dim int32, ts uint8) codec.SliceHeader {
	hdr := codec.NewTestHeader(codec.CoderTrisoup, dim, 0)
	hdr.TrisoupNodeSizeLog2 = ts
	hdr.SamplingValue = 1
	hdr.HaloTriangle = 32
	return hdr
}

func roundTrip(t *testing.T, cloud geom.PointCloud, hdr codec.SliceHeader, ref *codec.RefFrame) geom.PointCloud {
	t.Helper()
	enc := Codec{}.NewEncoderSession()
	payload, err := enc.EncodeSlice(cloud, ref, &hdr)
	require.NoError(t, err)

	dec := Codec{}.NewDecoderSession()
	res, err := dec.DecodeSlice(payload, ref, &hdr)
	require.NoError(t, err)
	require.Len(t, res.Points, hdr.NumPoints())
	return res.Points
}

// planeCloud samples the z = level plane over a dim x dim grid.
func planeCloud(dim int32, level int32) geom.PointCloud {
	var pc geom.PointCloud
	for x := int32(0); x < dim; x++ {
		for y := int32(0); y < dim; y++ {
			pc = append(pc, geom.Vec3{x, y, level})
		}
	}
	return pc
}

// TestPlaneSurface encodes an axis-aligned plane through one 16-wide
// leaf: the decoded set stays near the plane and is bounded by the
// leaf's projected pixel area.
func TestPlaneSurface(t *testing.T) {
	cloud := planeCloud(16, 8)
	hdr := trisoupHeader(4, 4)
	got := roundTrip(t, cloud, hdr, nil)
	require.NotEmpty(t, got)
	require.LessOrEqual(t, len(got), 16*16)
	for _, p := range got {
		require.LessOrEqual(t, geom.Abs32(p[2]-8), int32(2),
			"point %v strays from the coded plane", p)
	}
}

// TestDecodedCountMatchesHeader reruns the encoder's reconstruction on
// the decoder side for an irregular cloud.
func TestDecodedCountMatchesHeader(t *testing.T) {
	cloud := codec.RandomCloud(400, 5, 51)
	hdr := trisoupHeader(5, 3)
	got := roundTrip(t, cloud, hdr, nil)
	// all points stay inside the slice box
	for _, p := range got {
		for k := 0; k < 3; k++ {
			require.GreaterOrEqual(t, p[k], int32(0))
			require.Less(t, p[k], int32(32))
		}
	}
	// decoded voxels are unique
	seen := map[geom.Vec3]bool{}
	for _, p := range got {
		require.False(t, seen[p], "duplicate voxel %v", p)
		seen[p] = true
	}
}

// TestCentroidDriftRoundTrip exercises the drift syntax.
func TestCentroidDriftRoundTrip(t *testing.T) {
	cloud := planeCloud(16, 9)
	hdr := trisoupHeader(4, 4)
	hdr.CentroidDrift = true
	got := roundTrip(t, cloud, hdr, nil)
	require.NotEmpty(t, got)
}

// TestFineRayAndSampling covers the ray perturbation and subsampling
// switches.
func TestFineRayAndSampling(t *testing.T) {
	cloud := codec.RandomCloud(300, 5, 53)
	for _, sampling := range []uint8{1, 2, 4} {
		hdr := trisoupHeader(5, 3)
		hdr.SamplingValue = sampling
		hdr.FineRay = true
		hdr.AdaptiveHalo = true
		got := roundTrip(t, cloud, hdr, nil)
		_ = got
	}
}

// TestInterSurfaceRoundTrip conditions the vertex contexts on a
// reference frame; the decoded point count must still match the count
// of the encoder's own reconstruction.
func TestInterSurfaceRoundTrip(t *testing.T) {
	cloud := planeCloud(16, 8)
	ref := &codec.RefFrame{Points: planeCloud(16, 7)}
	hdr := trisoupHeader(4, 4)
	hdr.InterEnabled = true
	hdr.CentroidDrift = true
	got := roundTrip(t, cloud, hdr, ref)
	require.NotEmpty(t, got)
	for _, p := range got {
		require.LessOrEqual(t, geom.Abs32(p[2]-8), int32(3))
	}
}

// TestValidateHeaderRejects covers the configuration category.
func TestValidateHeaderRejects(t *testing.T) {
	hdr := trisoupHeader(5, 0)
	require.ErrorIs(t, ValidateHeader(&hdr), codec.ErrConfig)

	hdr = trisoupHeader(5, 3)
	hdr.BitDropped = 4
	require.ErrorIs(t, ValidateHeader(&hdr), codec.ErrConfig)

	hdr = trisoupHeader(2, 3)
	require.ErrorIs(t, ValidateHeader(&hdr), codec.ErrConfig)

	hdr = trisoupHeader(5, 3)
	hdr.IDCMIntensity = 1
	require.ErrorIs(t, ValidateHeader(&hdr), codec.ErrConfig)
}

// TestVertexOrderingIsStable re-runs the polygon ordering on shuffled
// input and expects the same cycle.
func TestVertexOrderingIsStable(t *testing.T) {
	verts := []geom.Vec3{
		{0, 2048, 2048}, {4096, 2048, 0}, {2048, 0, 2048}, {2048, 4096, 2048},
	}
	c := centroidOf(verts)
	ordered, axis := orderVertices(verts, c)
	require.Len(t, ordered, 4)
	require.GreaterOrEqual(t, axis, 0)
	require.Less(t, axis, 3)

	shuffled := []geom.Vec3{verts[2], verts[0], verts[3], verts[1]}
	ordered2, _ := orderVertices(shuffled, centroidOf(shuffled))
	require.ElementsMatch(t, ordered, ordered2)

	// same cyclic sequence up to rotation
	start := -1
	for i, v := range ordered2 {
		if v == ordered[0] {
			start = i
			break
		}
	}
	require.GreaterOrEqual(t, start, 0)
	for i := range ordered {
		require.Equal(t, ordered[i], ordered2[(start+i)%len(ordered2)])
	}
}
