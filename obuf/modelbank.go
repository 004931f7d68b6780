package obuf

import "github.com/cocosip/go-gpcc-codec/entropy"

// ModelBank is the 256-entry model table a map's coder indices select
// from. Entry c starts at probability (c<<8)|0x80 and keeps adapting,
// identically on both sides of the stream.
type ModelBank struct {
	models [256]entropy.AdaptiveBitModel
}

// NewModelBank seeds the bank.
func NewModelBank() *ModelBank {
	b := &ModelBank{}
	b.Reset()
	return b
}

// Reset reseeds every entry.
func (b *ModelBank) Reset() {
	for c := range b.models {
		b.models[c].Seed(uint16(c)<<8 | 0x80)
	}
}

// Model returns the model for a coder index.
func (b *ModelBank) Model(c uint8) *entropy.AdaptiveBitModel {
	return &b.models[c]
}

// EncodeBit looks up (i, j), codes bit with the selected model and
// pushes the outcome back into the map.
func EncodeBit(e *entropy.Encoder, bank *ModelBank, m *Map, bit, i, j int) {
	c := m.Lookup(i, j)
	e.EncodeBit(bank.Model(c), bit)
	m.Push(bit, i, j)
}

// DecodeBit mirrors EncodeBit.
func DecodeBit(d *entropy.Decoder, bank *ModelBank, m *Map, i, j int) int {
	c := m.Lookup(i, j)
	bit := d.DecodeBit(bank.Model(c))
	m.Push(bit, i, j)
	return bit
}
