package entropy

// Exp-Golomb coding with escalating order. The prefix bits go through
// a caller supplied context array (the last model absorbs any
// overflow), suffix bits are bypassed.

// EncodeExpGolomb codes an unsigned value with initial order k.
func (e *Encoder) EncodeExpGolomb(v uint64, k int, ctx []AdaptiveBitModel) {
	n := 0
	for v >= 1<<uint(k) {
		e.EncodeBit(prefixCtx(ctx, n), 1)
		v -= 1 << uint(k)
		k++
		n++
	}
	e.EncodeBit(prefixCtx(ctx, n), 0)
	e.EncodeBypassBits(v, k)
}

// DecodeExpGolomb decodes an unsigned value with initial order k.
func (d *Decoder) DecodeExpGolomb(k int, ctx []AdaptiveBitModel) uint64 {
	var base uint64
	n := 0
	for d.DecodeBit(prefixCtx(ctx, n)) == 1 {
		base += 1 << uint(k)
		k++
		n++
		if n > 64 {
			// impossible prefix, leave the caller to detect overrun
			return base
		}
	}
	return base + d.DecodeBypassBits(k)
}

// EncodeExpGolombSigned zigzag maps a signed value and codes it.
func (e *Encoder) EncodeExpGolombSigned(v int64, k int, ctx []AdaptiveBitModel) {
	e.EncodeExpGolomb(zigzag(v), k, ctx)
}

// DecodeExpGolombSigned decodes a zigzag mapped signed value.
func (d *Decoder) DecodeExpGolombSigned(k int, ctx []AdaptiveBitModel) int64 {
	return unzigzag(d.DecodeExpGolomb(k, ctx))
}

func prefixCtx(ctx []AdaptiveBitModel, n int) *AdaptiveBitModel {
	if n >= len(ctx) {
		n = len(ctx) - 1
	}
	return &ctx[n]
}

func zigzag(v int64) uint64 {
	return uint64(v<<1) ^ uint64(v>>63)
}

func unzigzag(u uint64) int64 {
	return int64(u>>1) ^ -int64(u&1)
}
