package codec

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/cocosip/go-gpcc-codec/geom"
)

// TestHeaderRoundTrip marshals headers with and without the angular
// extension and parses them back.
func TestHeaderRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		hdr  SliceHeader
	}{
		{"octree", SliceHeader{
			Coder:           CoderOctree,
			NumPointsMinus1: 7,
			UniquePoints:    true,
			RootSizeLog2:    geom.Vec3{4, 4, 4},
			SliceOrigin:     geom.Vec3{16, 0, 32},
			QPOffsetDepth:   -1,
			IDCMIntensity:   2,
		}},
		{"trisoup", SliceHeader{
			Coder:               CoderTrisoup,
			NumPointsMinus1:     99,
			RootSizeLog2:        geom.Vec3{6, 6, 5},
			TrisoupNodeSizeLog2: 3,
			BitDropped:          1,
			SamplingValue:       1,
			CentroidDrift:       true,
			FineRay:             true,
			HaloTriangle:        32,
			QPOffsetDepth:       -1,
		}},
		{"angular", SliceHeader{
			Coder:           CoderPredictive,
			NumPointsMinus1: 0,
			RootSizeLog2:    geom.Vec3{12, 12, 10},
			QPOffsetDepth:   -1,
			AngularEnabled:  true,
			AzimuthScaling:  true,
			Angular: geom.AngularParams{
				Origin:           geom.Vec3{100, 100, 8},
				LaserAngle:       []int32{-4000, 0, 4000},
				LaserCorrection:  []int32{1, 0, -1},
				AzimuthTwoPiLog2: 20,
				AzimuthSpeed:     768,
			},
		}},
		{"empty", SliceHeader{
			Coder:           CoderOctree,
			NumPointsMinus1: -1,
			QPOffsetDepth:   -1,
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			payload := []byte{0xAB, 0xCD}
			data := append(tt.hdr.Marshal(), payload...)
			var got SliceHeader
			rest, err := got.Unmarshal(data)
			require.NoError(t, err)
			require.Equal(t, payload, rest)
			if diff := cmp.Diff(tt.hdr, got); diff != "" {
				t.Errorf("header mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

// TestHeaderTruncated rejects cut-off headers with a syntax error.
func TestHeaderTruncated(t *testing.T) {
	hdr := NewTestHeader(CoderOctree, 4, 8)
	data := hdr.Marshal()
	var got SliceHeader
	_, err := got.Unmarshal(data[:5])
	require.Error(t, err)
	require.True(t, errors.Is(err, ErrSyntax))
}

// TestSliceErrorCategories checks errors.Is against the category
// sentinels.
func TestSliceErrorCategories(t *testing.T) {
	err := SyntaxError(12, "bad occupancy")
	require.True(t, errors.Is(err, ErrSyntax))
	require.False(t, errors.Is(err, ErrSemantic))

	var se *SliceError
	require.True(t, errors.As(err, &se))
	require.Equal(t, 12, se.Offset)

	require.True(t, errors.Is(SemanticError("count"), ErrSemantic))
	require.True(t, errors.Is(ConfigError("combo"), ErrConfig))
}

type fakeCodec struct{ id CoderID }

func (f fakeCodec) ID() CoderID                       { return f.id }
func (f fakeCodec) Name() string                      { return "Fake " + f.id.String() }
func (f fakeCodec) NewEncoderSession() EncoderSession { return nil }
func (f fakeCodec) NewDecoderSession() DecoderSession { return nil }

// TestRegistry registers a codec under both keys and lists it once.
func TestRegistry(t *testing.T) {
	r := &Registry{codecs: make(map[string]GeometryCodec)}
	c := fakeCodec{id: CoderPredictive}
	r.Register(c)

	byName, err := r.Get("Fake predictive")
	require.NoError(t, err)
	require.Equal(t, c, byName)

	byID, err := r.Get(CoderPredictive.String())
	require.NoError(t, err)
	require.Equal(t, c, byID)

	_, err = r.Get("nope")
	require.ErrorIs(t, err, ErrCodecNotFound)

	require.Len(t, r.List(), 1)
}

// TestTestHelpers pins the helper cloud shapes.
func TestTestHelpers(t *testing.T) {
	require.Len(t, CubeCornersCloud(4), 8)
	require.Len(t, LineCloud(5), 5)
	pc := RandomCloud(100, 6, 42)
	require.Len(t, pc, 100)
	seen := map[geom.Vec3]bool{}
	for _, p := range pc {
		require.False(t, seen[p], "duplicate point %v", p)
		seen[p] = true
		for k := 0; k < 3; k++ {
			require.Less(t, p[k], int32(64))
		}
	}
	// deterministic in the seed
	require.Equal(t, pc, RandomCloud(100, 6, 42))
}
