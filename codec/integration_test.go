package codec_test

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cocosip/go-gpcc-codec/codec"
	"github.com/cocosip/go-gpcc-codec/geom"
	"github.com/cocosip/go-gpcc-codec/octree"
	"github.com/cocosip/go-gpcc-codec/predtree"
	"github.com/cocosip/go-gpcc-codec/trisoup"
)

func sorted(pc geom.PointCloud) geom.PointCloud {
	out := pc.Clone()
	sort.Slice(out, func(a, b int) bool {
		return geom.MortonCode(out[a]) < geom.MortonCode(out[b])
	})
	return out
}

// TestRegisteredCodecs finds all three coders in the registry.
func TestRegisteredCodecs(t *testing.T) {
	for _, id := range []codec.CoderID{codec.CoderOctree, codec.CoderPredictive, codec.CoderTrisoup} {
		c, err := codec.GetByID(id)
		require.NoError(t, err)
		require.Equal(t, id, c.ID())
	}
	require.IsType(t, octree.Codec{}, mustGet(t, "octree"))
	require.IsType(t, predtree.Codec{}, mustGet(t, "predictive"))
	require.IsType(t, trisoup.Codec{}, mustGet(t, "trisoup"))
}

func mustGet(t *testing.T, id string) codec.GeometryCodec {
	t.Helper()
	c, err := codec.Get(id)
	require.NoError(t, err)
	return c
}

// TestDecodeFramed drives the full framed path: marshal header, append
// payload, decode through the registry.
func TestDecodeFramed(t *testing.T) {
	cloud := codec.RandomCloud(100, 6, 101)
	hdr := codec.NewTestHeader(codec.CoderOctree, 6, len(cloud))
	c := mustGet(t, "octree")
	payload, err := c.NewEncoderSession().EncodeSlice(cloud.Clone(), nil, &hdr)
	require.NoError(t, err)

	res, err := codec.DecodeFramed(append(hdr.Marshal(), payload...), nil)
	require.NoError(t, err)
	require.Equal(t, sorted(cloud), sorted(res.Points))
}

// TestDecodeSlicesParallel decodes independent slices concurrently and
// keeps result order.
func TestDecodeSlicesParallel(t *testing.T) {
	var slices []codec.Slice
	var want []geom.PointCloud
	for i := 0; i < 6; i++ {
		cloud := codec.RandomCloud(80+10*i, 6, int64(200+i))
		hdr := codec.NewTestHeader(codec.CoderOctree, 6, len(cloud))
		c := mustGet(t, "octree")
		payload, err := c.NewEncoderSession().EncodeSlice(cloud.Clone(), nil, &hdr)
		require.NoError(t, err)
		slices = append(slices, codec.Slice{Header: hdr, Payload: payload})
		want = append(want, cloud)
	}
	results, err := codec.DecodeSlices(slices)
	require.NoError(t, err)
	require.Len(t, results, len(slices))
	for i := range results {
		require.Equal(t, sorted(want[i]), sorted(results[i].Points), "slice %d", i)
	}
}

// TestEntropyContinuationChain carries contexts across two slices on
// one session pair.
func TestEntropyContinuationChain(t *testing.T) {
	a := codec.RandomCloud(120, 6, 301)
	b := codec.RandomCloud(120, 6, 302)

	hdrA := codec.NewTestHeader(codec.CoderOctree, 6, len(a))
	hdrB := codec.NewTestHeader(codec.CoderOctree, 6, len(b))
	hdrB.EntropyContinuation = true

	c := mustGet(t, "octree")
	enc := c.NewEncoderSession()
	payloadA, err := enc.EncodeSlice(a.Clone(), nil, &hdrA)
	require.NoError(t, err)
	payloadB, err := enc.EncodeSlice(b.Clone(), nil, &hdrB)
	require.NoError(t, err)

	results, err := codec.DecodeSlices([]codec.Slice{
		{Header: hdrA, Payload: payloadA},
		{Header: hdrB, Payload: payloadB},
	})
	require.NoError(t, err)
	require.Equal(t, sorted(a), sorted(results[0].Points))
	require.Equal(t, sorted(b), sorted(results[1].Points))
}

// TestUnknownCoderRejected surfaces the registry error.
func TestUnknownCoderRejected(t *testing.T) {
	hdr := codec.NewTestHeader(codec.CoderID(9), 4, 1)
	_, err := codec.DecodeSlices([]codec.Slice{{Header: hdr}})
	require.ErrorIs(t, err, codec.ErrCodecNotFound)
}
