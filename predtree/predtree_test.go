package predtree

import (
	"sort"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/cocosip/go-gpcc-codec/codec"
	"github.com/cocosip/go-gpcc-codec/entropy"
	"github.com/cocosip/go-gpcc-codec/geom"
)

func sorted(pc geom.PointCloud) geom.PointCloud {
	out := pc.Clone()
	sort.Slice(out, func(a, b int) bool {
		return geom.MortonCode(out[a]) < geom.MortonCode(out[b])
	})
	return out
}

func roundTrip(t *testing.T, cloud geom.PointCloud, hdr codec.SliceHeader, ref *codec.RefFrame) *codec.DecodeResult {
	t.Helper()
	enc := Codec{}.NewEncoderSession()
	payload, err := enc.EncodeSlice(cloud.Clone(), ref, &hdr)
	require.NoError(t, err)

	dec := Codec{}.NewDecoderSession()
	res, err := dec.DecodeSlice(payload, ref, &hdr)
	require.NoError(t, err)
	require.Len(t, res.Points, len(cloud))
	return res
}

// TestLinearChainModeTwo is the collinear five-point chain: after the
// second node the linear predictor leaves zero residuals, and the
// decode is exact.
func TestLinearChainModeTwo(t *testing.T) {
	cloud := geom.PointCloud{{0, 0, 0}, {1, 0, 0}, {2, 0, 0}, {3, 0, 0}, {4, 0, 0}}
	hdr := codec.NewTestHeader(codec.CoderPredictive, 4, len(cloud))

	// the encoder must find zero-cost linear predictions from node 2 on
	st := newCoderState(&hdr, nil)
	st.nodes = []geom.Vec3{{0, 0, 0}, {1, 0, 0}}
	st.parents = []int{-1, 0}
	a1, a2, a3, depth := st.ancestors(1)
	mode, pred := bestIntra(st, geom.Vec3{2, 0, 0}, a1, a2, a3, maxModeFor(depth))
	require.Equal(t, modeLinear, mode)
	require.Equal(t, geom.Vec3{2, 0, 0}, pred)

	res := roundTrip(t, cloud, hdr, nil)
	require.Equal(t, sorted(cloud), sorted(res.Points))
	require.Nil(t, res.Spherical)
}

// TestEmptySlice mirrors the empty-payload contract.
func TestEmptySlice(t *testing.T) {
	hdr := codec.NewTestHeader(codec.CoderPredictive, 4, 0)
	enc := Codec{}.NewEncoderSession()
	payload, err := enc.EncodeSlice(nil, nil, &hdr)
	require.NoError(t, err)
	require.Empty(t, payload)

	dec := Codec{}.NewDecoderSession()
	res, err := dec.DecodeSlice(payload, nil, &hdr)
	require.NoError(t, err)
	require.Empty(t, res.Points)
}

// TestRandomRoundTrip is lossless without quantisation.
func TestRandomRoundTrip(t *testing.T) {
	cloud := codec.RandomCloud(300, 9, 17)
	hdr := codec.NewTestHeader(codec.CoderPredictive, 9, len(cloud))
	res := roundTrip(t, cloud, hdr, nil)
	if diff := cmp.Diff(sorted(cloud), sorted(res.Points)); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}
}

// TestDuplicateRoundTrip folds duplicates into node multiplicities.
func TestDuplicateRoundTrip(t *testing.T) {
	base := codec.RandomCloud(50, 6, 3)
	cloud := append(base.Clone(), base[3], base[3], base[10])
	hdr := codec.NewTestHeader(codec.CoderPredictive, 6, len(cloud))
	hdr.UniquePoints = false
	res := roundTrip(t, cloud, hdr, nil)
	if diff := cmp.Diff(sorted(cloud), sorted(res.Points)); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}
}

func angularHeader(numPoints int) codec.SliceHeader {
	hdr := codec.NewTestHeader(codec.CoderPredictive, 12, numPoints)
	hdr.AngularEnabled = true
	hdr.Angular = geom.AngularParams{
		Origin:           geom.Vec3{2048, 2048, 64},
		LaserAngle:       []int32{-40000, -10000, 10000, 40000},
		LaserCorrection:  []int32{0, 0, 0, 0},
		AzimuthTwoPiLog2: 20,
		AzimuthSpeed:     512,
	}
	return hdr
}

// TestAngularRoundTrip keeps decode exact through the secondary
// Cartesian residual and returns the spherical side array.
func TestAngularRoundTrip(t *testing.T) {
	cloud := codec.RandomCloud(200, 12, 23)
	hdr := angularHeader(len(cloud))
	res := roundTrip(t, cloud, hdr, nil)
	if diff := cmp.Diff(sorted(cloud), sorted(res.Points)); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}
	require.Len(t, res.Spherical, len(cloud))
}

// TestAzimuthScalingRoundTrip enables the 1/r residual scaling and the
// recent-point prediction ring.
func TestAzimuthScalingRoundTrip(t *testing.T) {
	cloud := codec.RandomCloud(200, 12, 29)
	hdr := angularHeader(len(cloud))
	hdr.AzimuthScaling = true
	res := roundTrip(t, cloud, hdr, nil)
	if diff := cmp.Diff(sorted(cloud), sorted(res.Points)); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}
}

// TestAngularInterRoundTrip feeds the previous frame's spherical
// positions as prediction candidates.
func TestAngularInterRoundTrip(t *testing.T) {
	refCloud := codec.RandomCloud(150, 12, 31)
	refHdr := angularHeader(len(refCloud))
	refRes := roundTrip(t, refCloud, refHdr, nil)

	cloud := refCloud.Clone()
	for i := range cloud {
		cloud[i][0] = min(cloud[i][0]+2, 1<<12-1)
	}
	hdr := angularHeader(len(cloud))
	hdr.InterEnabled = true
	ref := &codec.RefFrame{Points: refRes.Points, Spherical: refRes.Spherical}
	res := roundTrip(t, cloud, hdr, ref)
	if diff := cmp.Diff(sorted(cloud), sorted(res.Points)); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}
}

// TestResidual2Disabled decodes onto the spherical reconstruction:
// lossy, but position counts and bounds still hold.
func TestResidual2Disabled(t *testing.T) {
	cloud := codec.RandomCloud(100, 12, 37)
	hdr := angularHeader(len(cloud))
	hdr.Residual2Disabled = true
	res := roundTrip(t, cloud, hdr, nil)
	limit := int32(1) << 12
	for _, p := range res.Points {
		for k := 0; k < 3; k++ {
			require.GreaterOrEqual(t, p[k], int32(0))
			require.Less(t, p[k], limit)
		}
	}
}

// TestForestTermination stops exactly at the end-of-trees flag: bytes
// beyond the payload stay untouched.
func TestForestTermination(t *testing.T) {
	cloud := codec.RandomCloud(40, 6, 41)
	hdr := codec.NewTestHeader(codec.CoderPredictive, 6, len(cloud))
	enc := Codec{}.NewEncoderSession()
	payload, err := enc.EncodeSlice(cloud.Clone(), nil, &hdr)
	require.NoError(t, err)

	cx := NewContexts()
	d := entropy.NewDecoder(payload)
	out, _, err := DecodeForest(d, cx, nil, &hdr)
	require.NoError(t, err)
	require.Len(t, out, len(cloud))
	require.False(t, d.Overrun())
}

// TestValidateHeaderRejects covers the configuration checks.
func TestValidateHeaderRejects(t *testing.T) {
	hdr := codec.NewTestHeader(codec.CoderPredictive, 6, 1)
	hdr.AzimuthScaling = true
	require.ErrorIs(t, ValidateHeader(&hdr), codec.ErrConfig)

	hdr = codec.NewTestHeader(codec.CoderPredictive, 6, 1)
	hdr.AngularEnabled = true // no laser table
	require.ErrorIs(t, ValidateHeader(&hdr), codec.ErrConfig)

	hdr = codec.NewTestHeader(codec.CoderPredictive, 6, 1)
	hdr.InterEnabled = true
	require.ErrorIs(t, ValidateHeader(&hdr), codec.ErrConfig)
}
