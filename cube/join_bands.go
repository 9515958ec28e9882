package cube

import "fmt"

// JoinBandsCube concatenates the bands of two cubes with identical
// spatio-temporal references and chunk sizes. Band names are prefixed to
// stay unique across the two inputs.
type JoinBandsCube struct {
	baseCube
	inA     Cube
	inB     Cube
	prefixA string
	prefixB string
}

func NewJoinBandsCube(a, b Cube, prefixA, prefixB string) (*JoinBandsCube, error) {
	if !a.View().STReference.Equal(&b.View().STReference) {
		return nil, fmt.Errorf("join_bands inputs have different spatio-temporal references")
	}
	if a.NominalChunkSize() != b.NominalChunkSize() {
		return nil, fmt.Errorf("join_bands inputs have different chunk sizes")
	}

	c := &JoinBandsCube{
		baseCube: newBaseCube(a.View().Copy()),
		inA:      a,
		inB:      b,
		prefixA:  prefixA,
		prefixB:  prefixB,
	}
	c.chunkSize = a.NominalChunkSize()

	add := func(in Cube, prefix string) error {
		for i := 0; i < in.Bands().Count(); i++ {
			band := in.Bands().Get(i)
			if len(prefix) > 0 {
				band.Name = prefix + "." + band.Name
			}
			if err := c.bands.Add(band); err != nil {
				return err
			}
		}
		return nil
	}
	if err := add(a, prefixA); err != nil {
		return nil, err
	}
	if err := add(b, prefixB); err != nil {
		return nil, err
	}

	a.addChild(c)
	b.addChild(c)
	return c, nil
}

func (c *JoinBandsCube) ReadChunk(id ChunkID) (*ChunkData, error) {
	if !c.validChunk(id) {
		return NewEmptyChunk(c.bands.Count(), 0, 0, 0), nil
	}
	xa, err := c.inA.ReadChunk(id)
	if err != nil {
		return nil, err
	}
	xb, err := c.inB.ReadChunk(id)
	if err != nil {
		return nil, err
	}
	size := c.ChunkSize(id)
	if xa.Empty() && xb.Empty() {
		return NewEmptyChunk(c.bands.Count(), size[0], size[1], size[2]), nil
	}

	// an empty side contributes all-missing planes
	xa.Materialize()
	xb.Materialize()

	out := NewChunkData(c.bands.Count(), size[0], size[1], size[2])
	copy(out.Buf[:len(xa.Buf)], xa.Buf)
	copy(out.Buf[len(xa.Buf):], xb.Buf)
	return out, nil
}

func (c *JoinBandsCube) GraphJSON() (map[string]interface{}, error) {
	a, err := c.inA.GraphJSON()
	if err != nil {
		return nil, err
	}
	b, err := c.inB.GraphJSON()
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{
		"cube_type": "join_bands",
		"A":         a,
		"B":         b,
		"prefix_A":  c.prefixA,
		"prefix_B":  c.prefixB,
	}, nil
}
