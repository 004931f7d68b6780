package codec

import (
	"golang.org/x/sync/errgroup"
)

// Slice is one framed coded unit: a parsed header, its geometry
// payload and the reference frame for inter prediction.
type Slice struct {
	Header  SliceHeader
	Payload []byte
	Ref     *RefFrame
}

// DecodeSlices decodes a sequence of slices. Independent slices run in
// parallel; a slice flagged for entropy continuation decodes on the
// same session as its predecessor, strictly after it. Results keep the
// input order. The first failure is returned; chains already started
// still run to completion and their results are discarded.
func DecodeSlices(slices []Slice) ([]*DecodeResult, error) {
	results := make([]*DecodeResult, len(slices))
	var g errgroup.Group

	for start := 0; start < len(slices); {
		// a chain is a maximal run tied together by continuation
		end := start + 1
		for end < len(slices) && slices[end].Header.EntropyContinuation {
			end++
		}
		chain := slices[start:end]
		out := results[start:end]
		g.Go(func() error {
			return decodeChain(chain, out)
		})
		start = end
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func decodeChain(chain []Slice, out []*DecodeResult) error {
	var session DecoderSession
	var current CoderID
	for i := range chain {
		hdr := &chain[i].Header
		if session == nil || hdr.Coder != current {
			c, err := GetByID(hdr.Coder)
			if err != nil {
				return err
			}
			session = c.NewDecoderSession()
			current = hdr.Coder
		}
		res, err := session.DecodeSlice(chain[i].Payload, chain[i].Ref, hdr)
		if err != nil {
			return err
		}
		out[i] = res
	}
	return nil
}

// DecodeFramed splits a byte-aligned unit into header and payload and
// decodes it on a fresh session.
func DecodeFramed(data []byte, ref *RefFrame) (*DecodeResult, error) {
	var hdr SliceHeader
	payload, err := hdr.Unmarshal(data)
	if err != nil {
		return nil, err
	}
	c, err := GetByID(hdr.Coder)
	if err != nil {
		return nil, err
	}
	return c.NewDecoderSession().DecodeSlice(payload, ref, &hdr)
}
