package attrmode

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cocosip/go-gpcc-codec/entropy"
)

// TestModeRoundTrip buffers a mixed decision sequence, flushes it and
// decodes the same modes.
func TestModeRoundTrip(t *testing.T) {
	rng := rand.New(rand.NewSource(5))
	type step struct {
		ctxMode, ctxLevel int
		mode              Mode
	}
	var steps []step
	for i := 0; i < 2000; i++ {
		ctxMode := rng.Intn(NumContexts)
		ctxLevel := rng.Intn(NumLevels)
		var mode Mode
		intra := enableIntra(ctxMode)
		switch {
		case !intra:
			mode = Mode(rng.Intn(2)) * 2 // Null or Inter
		default:
			mode = Mode(rng.Intn(3))
		}
		steps = append(steps, step{ctxMode, ctxLevel, mode})
	}

	arith := entropy.NewEncoder()
	enc := NewEncoder(arith)
	enc.SetInterEnabled(true)
	for _, s := range steps {
		enc.Encode(s.ctxMode, s.ctxLevel, s.mode)
	}
	enc.Flush()

	dec := NewDecoder(entropy.NewDecoder(arith.Flush()))
	dec.SetInterEnabled(true)
	for i, s := range steps {
		require.Equal(t, s.mode, dec.Decode(s.ctxMode, s.ctxLevel), "step %d", i)
	}
}

// TestIntraOnlyCollapses skips syntax when neither branch is enabled.
func TestIntraOnlyCollapses(t *testing.T) {
	arith := entropy.NewEncoder()
	enc := NewEncoder(arith)
	// ctxMode 0 has intra disabled, inter is off: nothing is coded
	enc.Encode(0, 0, Null)
	enc.Flush()
	require.Equal(t, 0, arith.Len())

	dec := NewDecoder(entropy.NewDecoder(arith.Flush()))
	require.Equal(t, Null, dec.Decode(0, 0))
}

// TestEstimateShape checks admissibility of the per-mode costs.
func TestEstimateShape(t *testing.T) {
	enc := NewEncoder(entropy.NewEncoder())
	enc.SetInterEnabled(true)

	costs := enc.Estimate(1, 0) // intra enabled
	require.False(t, math.IsInf(costs[Null], 1))
	require.False(t, math.IsInf(costs[Intra], 1))
	require.False(t, math.IsInf(costs[Inter], 1))

	enc.SetInterEnabled(false)
	costs = enc.Estimate(0, 0) // nothing enabled
	require.Equal(t, 0.0, costs[Null])
	require.True(t, math.IsInf(costs[Intra], 1))
}

// TestEstimateUsesShadows confirms tentative updates do not disturb
// the committed context state.
func TestEstimateUsesShadows(t *testing.T) {
	arith := entropy.NewEncoder()
	enc := NewEncoder(arith)
	enc.SetInterEnabled(true)
	before := enc.modeIsNull[5]
	for i := 0; i < 100; i++ {
		enc.Encode(5, 0, Inter) // buffered, shadows advance
	}
	require.Equal(t, before, enc.modeIsNull[5], "committed model moved before flush")
	enc.Flush()
	require.NotEqual(t, before, enc.modeIsNull[5], "flush must commit")
}

// TestPackUnpack round-trips the buffer encoding.
func TestPackUnpack(t *testing.T) {
	for ctxMode := 0; ctxMode < NumContexts; ctxMode += 17 {
		for ctxLevel := 0; ctxLevel < NumLevels; ctxLevel++ {
			for m := Null; m <= Inter; m++ {
				cm, cl, mode := unpack(pack(ctxMode, ctxLevel, m))
				require.Equal(t, ctxMode, cm)
				require.Equal(t, ctxLevel, cl)
				require.Equal(t, m, mode)
			}
		}
	}
}

// TestLambdaLearning tracks the distortion/rate means.
func TestLambdaLearning(t *testing.T) {
	enc := NewEncoder(entropy.NewEncoder())
	enc.Update(100, 10)
	require.InDelta(t, 10.0, enc.Lambda(1.0), 1e-9)
}
