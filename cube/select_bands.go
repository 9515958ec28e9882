package cube

import "fmt"

// SelectBandsCube projects the band axis of its input cube. It is
// metadata only; chunk reads copy the selected planes.
type SelectBandsCube struct {
	baseCube
	in       Cube
	selected []string
	indices  []int
}

func NewSelectBandsCube(in Cube, bandNames []string) (*SelectBandsCube, error) {
	if len(bandNames) == 0 {
		return nil, fmt.Errorf("select_bands needs at least one band")
	}
	c := &SelectBandsCube{
		baseCube: newBaseCube(in.View().Copy()),
		in:       in,
		selected: bandNames,
	}
	c.chunkSize = in.NominalChunkSize()
	for _, name := range bandNames {
		idx, ok := in.Bands().GetIndex(name)
		if !ok {
			return nil, fmt.Errorf("input cube has no band %q", name)
		}
		if err := c.bands.Add(in.Bands().Get(idx)); err != nil {
			return nil, err
		}
		c.indices = append(c.indices, idx)
	}
	in.addChild(c)
	return c, nil
}

func (c *SelectBandsCube) ReadChunk(id ChunkID) (*ChunkData, error) {
	if !c.validChunk(id) {
		return NewEmptyChunk(c.bands.Count(), 0, 0, 0), nil
	}
	x, err := c.in.ReadChunk(id)
	if err != nil {
		return nil, err
	}
	size := c.ChunkSize(id)
	if x.Empty() {
		return NewEmptyChunk(c.bands.Count(), size[0], size[1], size[2]), nil
	}

	out := NewChunkData(c.bands.Count(), size[0], size[1], size[2])
	for o, b := range c.indices {
		for t := 0; t < size[0]; t++ {
			copy(out.Slice(o, t), x.Slice(b, t))
		}
	}
	return out, nil
}

func (c *SelectBandsCube) GraphJSON() (map[string]interface{}, error) {
	in, err := c.in.GraphJSON()
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{
		"cube_type": "select_bands",
		"bands":     stringsToJSON(c.selected),
		"in_cube":   in,
	}, nil
}
