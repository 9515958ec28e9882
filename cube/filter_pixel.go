package cube

import (
	"fmt"
)

// FilterPixelCube keeps pixels for which a boolean predicate over the
// input bands holds and writes NaN across all bands everywhere else.
type FilterPixelCube struct {
	baseCube
	in        Cube
	predicate *compiledExpr
}

func NewFilterPixelCube(in Cube, predicate string) (*FilterPixelCube, error) {
	if len(predicate) == 0 {
		return nil, fmt.Errorf("filter_pixel needs a predicate")
	}
	compiled, err := compilePixelExpr(predicate, in.Bands())
	if err != nil {
		return nil, err
	}

	c := &FilterPixelCube{
		baseCube:  newBaseCube(in.View().Copy()),
		in:        in,
		predicate: compiled,
	}
	c.chunkSize = in.NominalChunkSize()
	for i := 0; i < in.Bands().Count(); i++ {
		if err := c.bands.Add(in.Bands().Get(i)); err != nil {
			return nil, err
		}
	}
	in.addChild(c)
	return c, nil
}

func (c *FilterPixelCube) ReadChunk(id ChunkID) (*ChunkData, error) {
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
	ctx := newExprContext([]*compiledExpr{c.predicate})

	it, iy, ix := c.ChunkCoords(id)
	v := c.view
	bounds := c.BoundsFromChunk(id)
	nb := c.bands.Count()
	plane := size[1] * size[2]

	for t := 0; t < size[0]; t++ {
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
				for b := 0; b < nb; b++ {
					name := c.bands.Get(b).Name
					if ctx.needs[name] {
						ctx.params[name] = x.Slice(b, t)[ixy]
					}
				}
				if c.predicate.evalPredicate(ctx.params) {
					for b := 0; b < nb; b++ {
						out.Buf[(b*size[0]+t)*plane+ixy] = x.Buf[(b*size[0]+t)*plane+ixy]
					}
				}
			}
		}
	}
	return out, nil
}

func (c *FilterPixelCube) GraphJSON() (map[string]interface{}, error) {
	in, err := c.in.GraphJSON()
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{
		"cube_type": "filter_pixel",
		"predicate": c.predicate.source,
		"in_cube":   in,
	}, nil
}
