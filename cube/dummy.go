package cube

import "fmt"

// DummyCube synthesizes chunks filled with a constant value. It has no
// parents and exists mainly to exercise derived cubes.
type DummyCube struct {
	baseCube
	fill float64
}

func NewDummyCube(v *View, nBands int, fill float64) (*DummyCube, error) {
	if err := v.Validate(); err != nil {
		return nil, err
	}
	if nBands < 1 {
		return nil, fmt.Errorf("dummy cube needs at least one band, got %d", nBands)
	}
	c := &DummyCube{baseCube: newBaseCube(v.Copy()), fill: fill}
	for i := 0; i < nBands; i++ {
		if err := c.bands.Add(NewBand(fmt.Sprintf("band%d", i+1))); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// SetChunkSize adjusts the chunking of the synthesized cube.
func (c *DummyCube) SetChunkSize(ct, cy, cx int) {
	c.chunkSize = [3]int{ct, cy, cx}
}

func (c *DummyCube) ReadChunk(id ChunkID) (*ChunkData, error) {
	if !c.validChunk(id) {
		return NewEmptyChunk(c.bands.Count(), 0, 0, 0), nil
	}
	size := c.ChunkSize(id)
	out := NewChunkData(c.bands.Count(), size[0], size[1], size[2])
	for i := range out.Buf {
		out.Buf[i] = c.fill
	}
	return out, nil
}

func (c *DummyCube) GraphJSON() (map[string]interface{}, error) {
	view, err := viewToJSONObject(c.view)
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{
		"cube_type":  "dummy",
		"view":       view,
		"chunk_size": []interface{}{float64(c.chunkSize[0]), float64(c.chunkSize[1]), float64(c.chunkSize[2])},
		"nbands":     float64(c.bands.Count()),
		"fill":       c.fill,
	}, nil
}
