package cube

import (
	"fmt"
)

// ApplyPixelCube evaluates arithmetic expressions over the bands of its
// input cube, one output band per expression. Besides the band names,
// expressions may reference the array indices ix, iy, it and the world
// coordinates x, y, t, left, right, top, bottom of the pixel.
type ApplyPixelCube struct {
	baseCube
	in    Cube
	exprs []*compiledExpr
	names []string
}

func NewApplyPixelCube(in Cube, exprs []string, bandNames []string) (*ApplyPixelCube, error) {
	if len(exprs) == 0 {
		return nil, fmt.Errorf("apply_pixel needs at least one expression")
	}
	if bandNames == nil {
		bandNames = make([]string, len(exprs))
		for i := range exprs {
			bandNames[i] = fmt.Sprintf("band%d", i+1)
		}
	}
	if len(bandNames) != len(exprs) {
		return nil, fmt.Errorf("got %d band names for %d expressions", len(bandNames), len(exprs))
	}

	c := &ApplyPixelCube{
		baseCube: newBaseCube(in.View().Copy()),
		in:       in,
		names:    bandNames,
	}
	c.chunkSize = in.NominalChunkSize()

	for i, source := range exprs {
		compiled, err := compilePixelExpr(source, in.Bands())
		if err != nil {
			return nil, err
		}
		c.exprs = append(c.exprs, compiled)
		if err := c.bands.Add(NewBand(bandNames[i])); err != nil {
			return nil, err
		}
	}
	in.addChild(c)
	return c, nil
}

func (c *ApplyPixelCube) ReadChunk(id ChunkID) (*ChunkData, error) {
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
	ctx := newExprContext(c.exprs)

	it, iy, ix := c.ChunkCoords(id)
	v := c.view
	bounds := c.BoundsFromChunk(id)
	inBands := c.in.Bands()

	planes := make([][]float64, inBands.Count())
	outPlanes := make([][]float64, len(c.exprs))

	for t := 0; t < size[0]; t++ {
		for b := range planes {
			planes[b] = x.Slice(b, t)
		}
		for e := range outPlanes {
			outPlanes[e] = out.Slice(e, t)
		}
		gt := it*c.chunkSize[0] + t
		ctx.setIfNeeded("it", float64(gt))
		ctx.setIfNeeded("t", float64(bounds.T0.Add(v.DT.Mul(t)).Time().Unix()))

		for py := 0; py < size[1]; py++ {
			gy := iy*c.chunkSize[1] + py
			top := v.Top - float64(gy)*v.DY
			ctx.setIfNeeded("iy", float64(gy))
			ctx.setIfNeeded("y", top-v.DY/2)
			ctx.setIfNeeded("top", top)
			ctx.setIfNeeded("bottom", top-v.DY)

			for px := 0; px < size[2]; px++ {
				gx := ix*c.chunkSize[2] + px
				left := v.Left + float64(gx)*v.DX
				ctx.setIfNeeded("ix", float64(gx))
				ctx.setIfNeeded("x", left+v.DX/2)
				ctx.setIfNeeded("left", left)
				ctx.setIfNeeded("right", left+v.DX)

				ixy := py*size[2] + px
				for b := 0; b < inBands.Count(); b++ {
					name := inBands.Get(b).Name
					if ctx.needs[name] {
						ctx.params[name] = planes[b][ixy]
					}
				}
				for e, expr := range c.exprs {
					outPlanes[e][ixy] = expr.evalNumeric(ctx.params)
				}
			}
		}
	}
	return out, nil
}

func (c *ApplyPixelCube) GraphJSON() (map[string]interface{}, error) {
	in, err := c.in.GraphJSON()
	if err != nil {
		return nil, err
	}
	exprs := make([]interface{}, len(c.exprs))
	for i, e := range c.exprs {
		exprs[i] = e.source
	}
	return map[string]interface{}{
		"cube_type":  "apply_pixel",
		"expr":       exprs,
		"band_names": stringsToJSON(c.names),
		"in_cube":    in,
	}, nil
}
