package entropy

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"
)

// TestBitRoundTrip drives a mixed symbol stream through the range
// coder and reads it back bit for bit.
func TestBitRoundTrip(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	const n = 20000

	bits := make([]int, n)
	kinds := make([]int, n)
	for i := range bits {
		kinds[i] = rng.Intn(3)
		// skew each stream so the models actually adapt
		switch kinds[i] {
		case 0:
			bits[i] = b(rng.Intn(10) == 0)
		case 1:
			bits[i] = b(rng.Intn(4) != 0)
		default:
			bits[i] = rng.Intn(2)
		}
	}

	e := NewEncoder()
	var m0, m1 AdaptiveBitModel
	for i := range bits {
		switch kinds[i] {
		case 0:
			e.EncodeBit(&m0, bits[i])
		case 1:
			e.EncodeBit(&m1, bits[i])
		default:
			e.EncodeBypass(bits[i])
		}
	}
	data := e.Flush()

	d := NewDecoder(data)
	var n0, n1 AdaptiveBitModel
	for i := range bits {
		var got int
		switch kinds[i] {
		case 0:
			got = d.DecodeBit(&n0)
		case 1:
			got = d.DecodeBit(&n1)
		default:
			got = d.DecodeBypass()
		}
		require.Equal(t, bits[i], got, "symbol %d", i)
	}
	require.False(t, d.Overrun())
}

// TestEncodeDeterminism checks that identical inputs give identical
// payloads.
func TestEncodeDeterminism(t *testing.T) {
	run := func() []byte {
		e := NewEncoder()
		var m AdaptiveBitModel
		for i := 0; i < 5000; i++ {
			e.EncodeBit(&m, i%5/4)
			e.EncodeBypass(i % 2)
		}
		return e.Flush()
	}
	require.Equal(t, run(), run())
}

// TestBypassBits round-trips multi-bit bypass values.
func TestBypassBits(t *testing.T) {
	e := NewEncoder()
	values := []uint64{0, 1, 5, 255, 1023, 0xFFFFF}
	widths := []int{1, 2, 4, 8, 10, 20}
	for i, v := range values {
		e.EncodeBypassBits(v, widths[i])
	}
	d := NewDecoder(e.Flush())
	for i, v := range values {
		if got := d.DecodeBypassBits(widths[i]); got != v {
			t.Errorf("value %d: got %d, want %d", i, got, v)
		}
	}
}

// TestExpGolombRoundTrip covers unsigned and signed values over
// several orders.
func TestExpGolombRoundTrip(t *testing.T) {
	unsigned := []uint64{0, 1, 2, 3, 7, 8, 100, 4095, 1 << 20}
	signed := []int64{0, 1, -1, 2, -2, 63, -64, 100000, -99999}

	for _, k := range []int{0, 1, 2, 4} {
		e := NewEncoder()
		ctx := make([]AdaptiveBitModel, 4)
		for _, v := range unsigned {
			e.EncodeExpGolomb(v, k, ctx)
		}
		for _, v := range signed {
			e.EncodeExpGolombSigned(v, k, ctx)
		}
		d := NewDecoder(e.Flush())
		dctx := make([]AdaptiveBitModel, 4)
		for _, v := range unsigned {
			require.Equal(t, v, d.DecodeExpGolomb(k, dctx), "k=%d unsigned %d", k, v)
		}
		for _, v := range signed {
			require.Equal(t, v, d.DecodeExpGolombSigned(k, dctx), "k=%d signed %d", k, v)
		}
	}
}

// TestTruncatedPayload verifies the overrun flag trips instead of a
// panic when the payload is cut short.
func TestTruncatedPayload(t *testing.T) {
	e := NewEncoder()
	var m AdaptiveBitModel
	for i := 0; i < 1000; i++ {
		e.EncodeBit(&m, i%2)
	}
	data := e.Flush()

	d := NewDecoder(data[:len(data)/4])
	var m2 AdaptiveBitModel
	for i := 0; i < 1000; i++ {
		d.DecodeBit(&m2)
	}
	require.True(t, d.Overrun())
}

// TestModelAdaptationBounds pushes a model to both extremes and keeps
// the probability inside the coding range.
func TestModelAdaptationBounds(t *testing.T) {
	var m AdaptiveBitModel
	for i := 0; i < 100000; i++ {
		m.update(1)
	}
	if m.Prob() < probMin {
		t.Fatalf("probability underflow: %#x", m.Prob())
	}
	for i := 0; i < 100000; i++ {
		m.update(0)
	}
	if m.Prob() > probMax {
		t.Fatalf("probability overflow: %#x", m.Prob())
	}
}

// TestRateEstimatorTracksModel checks the shadow transition matches
// the committed rule.
func TestRateEstimatorTracksModel(t *testing.T) {
	var m AdaptiveBitModel
	r := NewRateEstimator(&m)
	seq := []int{1, 0, 1, 1, 0, 1, 0, 0, 1, 1, 1, 0}
	for _, bit := range seq {
		r.Update(bit)
		m.update(bit)
	}
	require.Equal(t, m.Prob(), r.probOrInit())
}

func b(v bool) int {
	if v {
		return 1
	}
	return 0
}
