package cube

import (
	"fmt"
	"math"
	"sort"
)

// spaceReducer is the pairwise streaming protocol for spatial
// reductions: the output keeps the time axis and collapses (y, x) to a
// single cell, shape (nb, nt, 1, 1).
type spaceReducer interface {
	init(out *ChunkData, bandIn, bandOut int, in Cube)
	combine(out *ChunkData, x *ChunkData, id ChunkID)
	finalize(out *ChunkData)
}

func newSpaceReducer(name string) spaceReducer {
	switch name {
	case "sum":
		return &sumSpaceReducer{}
	case "prod":
		return &prodSpaceReducer{}
	case "count":
		return &countSpaceReducer{}
	case "mean":
		return &meanSpaceReducer{}
	case "min":
		return &minSpaceReducer{}
	case "max":
		return &maxSpaceReducer{}
	case "median":
		return &medianSpaceReducer{}
	case "var":
		return &varSpaceReducer{}
	case "sd":
		return &sdSpaceReducer{}
	default:
		return nil
	}
}

// cell returns the output slot for one time slice; the reduced chunk has
// a 1x1 spatial plane, so the slot is the single element at
// (bandOut, it, 0, 0).
func cell(out *ChunkData, bandOut, it int) *float64 {
	return &out.Buf[(bandOut*out.NT+it)*out.NY*out.NX]
}

type sumSpaceReducer struct {
	bandIn  int
	bandOut int
}

func (r *sumSpaceReducer) init(out *ChunkData, bandIn, bandOut int, in Cube) {
	r.bandIn, r.bandOut = bandIn, bandOut
	for it := 0; it < out.NT; it++ {
		*cell(out, bandOut, it) = 0
	}
}

func (r *sumSpaceReducer) combine(out *ChunkData, x *ChunkData, id ChunkID) {
	if x.Empty() {
		return
	}
	for it := 0; it < x.NT; it++ {
		w := cell(out, r.bandOut, it)
		for _, v := range x.Slice(r.bandIn, it) {
			if !math.IsNaN(v) {
				*w += v
			}
		}
	}
}

func (r *sumSpaceReducer) finalize(out *ChunkData) {}

type prodSpaceReducer struct {
	bandIn  int
	bandOut int
}

func (r *prodSpaceReducer) init(out *ChunkData, bandIn, bandOut int, in Cube) {
	r.bandIn, r.bandOut = bandIn, bandOut
	for it := 0; it < out.NT; it++ {
		*cell(out, bandOut, it) = 1
	}
}

func (r *prodSpaceReducer) combine(out *ChunkData, x *ChunkData, id ChunkID) {
	if x.Empty() {
		return
	}
	for it := 0; it < x.NT; it++ {
		w := cell(out, r.bandOut, it)
		for _, v := range x.Slice(r.bandIn, it) {
			if !math.IsNaN(v) {
				*w *= v
			}
		}
	}
}

func (r *prodSpaceReducer) finalize(out *ChunkData) {}

type countSpaceReducer struct {
	bandIn  int
	bandOut int
}

func (r *countSpaceReducer) init(out *ChunkData, bandIn, bandOut int, in Cube) {
	r.bandIn, r.bandOut = bandIn, bandOut
	for it := 0; it < out.NT; it++ {
		*cell(out, bandOut, it) = 0
	}
}

func (r *countSpaceReducer) combine(out *ChunkData, x *ChunkData, id ChunkID) {
	if x.Empty() {
		return
	}
	for it := 0; it < x.NT; it++ {
		w := cell(out, r.bandOut, it)
		for _, v := range x.Slice(r.bandIn, it) {
			if !math.IsNaN(v) {
				*w++
			}
		}
	}
}

func (r *countSpaceReducer) finalize(out *ChunkData) {}

type meanSpaceReducer struct {
	bandIn  int
	bandOut int
	count   []uint32
}

func (r *meanSpaceReducer) init(out *ChunkData, bandIn, bandOut int, in Cube) {
	r.bandIn, r.bandOut = bandIn, bandOut
	r.count = make([]uint32, out.NT)
	for it := 0; it < out.NT; it++ {
		*cell(out, bandOut, it) = 0
	}
}

func (r *meanSpaceReducer) combine(out *ChunkData, x *ChunkData, id ChunkID) {
	if x.Empty() {
		return
	}
	for it := 0; it < x.NT; it++ {
		w := cell(out, r.bandOut, it)
		for _, v := range x.Slice(r.bandIn, it) {
			if !math.IsNaN(v) {
				*w += v
				r.count[it]++
			}
		}
	}
}

func (r *meanSpaceReducer) finalize(out *ChunkData) {
	for it := 0; it < out.NT; it++ {
		w := cell(out, r.bandOut, it)
		if r.count[it] > 0 {
			*w /= float64(r.count[it])
		} else {
			*w = nan
		}
	}
}

type minSpaceReducer struct {
	bandIn  int
	bandOut int
}

func (r *minSpaceReducer) init(out *ChunkData, bandIn, bandOut int, in Cube) {
	r.bandIn, r.bandOut = bandIn, bandOut
	for it := 0; it < out.NT; it++ {
		*cell(out, bandOut, it) = nan
	}
}

func (r *minSpaceReducer) combine(out *ChunkData, x *ChunkData, id ChunkID) {
	if x.Empty() {
		return
	}
	for it := 0; it < x.NT; it++ {
		w := cell(out, r.bandOut, it)
		for _, v := range x.Slice(r.bandIn, it) {
			if math.IsNaN(v) {
				continue
			}
			if math.IsNaN(*w) || v < *w {
				*w = v
			}
		}
	}
}

func (r *minSpaceReducer) finalize(out *ChunkData) {}

type maxSpaceReducer struct {
	bandIn  int
	bandOut int
}

func (r *maxSpaceReducer) init(out *ChunkData, bandIn, bandOut int, in Cube) {
	r.bandIn, r.bandOut = bandIn, bandOut
	for it := 0; it < out.NT; it++ {
		*cell(out, bandOut, it) = nan
	}
}

func (r *maxSpaceReducer) combine(out *ChunkData, x *ChunkData, id ChunkID) {
	if x.Empty() {
		return
	}
	for it := 0; it < x.NT; it++ {
		w := cell(out, r.bandOut, it)
		for _, v := range x.Slice(r.bandIn, it) {
			if math.IsNaN(v) {
				continue
			}
			if math.IsNaN(*w) || v > *w {
				*w = v
			}
		}
	}
}

func (r *maxSpaceReducer) finalize(out *ChunkData) {}

type medianSpaceReducer struct {
	bandIn  int
	bandOut int
	buckets [][]float64
}

func (r *medianSpaceReducer) init(out *ChunkData, bandIn, bandOut int, in Cube) {
	r.bandIn, r.bandOut = bandIn, bandOut
	r.buckets = make([][]float64, out.NT)
}

func (r *medianSpaceReducer) combine(out *ChunkData, x *ChunkData, id ChunkID) {
	if x.Empty() {
		return
	}
	for it := 0; it < x.NT; it++ {
		for _, v := range x.Slice(r.bandIn, it) {
			if !math.IsNaN(v) {
				r.buckets[it] = append(r.buckets[it], v)
			}
		}
	}
}

func (r *medianSpaceReducer) finalize(out *ChunkData) {
	for it := 0; it < out.NT; it++ {
		w := cell(out, r.bandOut, it)
		values := r.buckets[it]
		if len(values) == 0 {
			*w = nan
			continue
		}
		sort.Float64s(values)
		n := len(values)
		if n%2 == 1 {
			*w = values[n/2]
		} else {
			*w = (values[n/2-1] + values[n/2]) / 2
		}
	}
	r.buckets = nil
}

type varSpaceReducer struct {
	bandIn  int
	bandOut int
	count   []uint32
	mean    []float64
}

func (r *varSpaceReducer) init(out *ChunkData, bandIn, bandOut int, in Cube) {
	r.bandIn, r.bandOut = bandIn, bandOut
	r.count = make([]uint32, out.NT)
	r.mean = make([]float64, out.NT)
	for it := 0; it < out.NT; it++ {
		*cell(out, bandOut, it) = 0
	}
}

func (r *varSpaceReducer) combine(out *ChunkData, x *ChunkData, id ChunkID) {
	if x.Empty() {
		return
	}
	for it := 0; it < x.NT; it++ {
		w := cell(out, r.bandOut, it)
		for _, v := range x.Slice(r.bandIn, it) {
			if math.IsNaN(v) {
				continue
			}
			r.count[it]++
			delta := v - r.mean[it]
			r.mean[it] += delta / float64(r.count[it])
			*w += delta * (v - r.mean[it])
		}
	}
}

func (r *varSpaceReducer) finalize(out *ChunkData) {
	for it := 0; it < out.NT; it++ {
		w := cell(out, r.bandOut, it)
		if r.count[it] > 1 {
			*w /= float64(r.count[it] - 1)
		} else {
			*w = nan
		}
	}
}

type sdSpaceReducer struct {
	varSpaceReducer
}

func (r *sdSpaceReducer) finalize(out *ChunkData) {
	for it := 0; it < out.NT; it++ {
		w := cell(out, r.bandOut, it)
		if r.count[it] > 1 {
			*w = math.Sqrt(*w / float64(r.count[it]-1))
		} else {
			*w = nan
		}
	}
}

// ReduceSpaceCube applies one reducer per (reducer, band) pair over the
// spatial extent, keeping the time axis. The result is a 1x1 pixel cube.
type ReduceSpaceCube struct {
	baseCube
	in           Cube
	reducerBands []ReducerBand
}

func NewReduceSpaceCube(in Cube, reducerBands []ReducerBand) (*ReduceSpaceCube, error) {
	if len(reducerBands) == 0 {
		return nil, fmt.Errorf("reduce_space needs at least one (reducer, band) pair")
	}

	v := in.View().Copy()
	v.DX = v.Right - v.Left
	v.DY = v.Top - v.Bottom

	c := &ReduceSpaceCube{
		baseCube:     newBaseCube(v),
		in:           in,
		reducerBands: reducerBands,
	}
	c.chunkSize = [3]int{in.NominalChunkSize()[0], 1, 1}

	for _, rb := range reducerBands {
		if err := validateReducer(rb.Reducer); err != nil {
			return nil, err
		}
		idx, ok := in.Bands().GetIndex(rb.Band)
		if !ok {
			return nil, fmt.Errorf("input cube has no band %q", rb.Band)
		}
		b := in.Bands().Get(idx)
		b.Name = fmt.Sprintf("%s_%s", rb.Band, rb.Reducer)
		if err := c.bands.Add(b); err != nil {
			return nil, err
		}
	}
	in.addChild(c)
	return c, nil
}

func (c *ReduceSpaceCube) ReadChunk(id ChunkID) (*ChunkData, error) {
	if !c.validChunk(id) {
		return NewEmptyChunk(c.bands.Count(), 0, 0, 0), nil
	}

	// an input that is already spatially reduced passes through
	if c.in.View().NY() == 1 && c.in.View().NX() == 1 && c.in.Bands().Count() == len(c.reducerBands) {
		return c.in.ReadChunk(id)
	}

	size := c.ChunkSize(id)
	out := NewChunkData(len(c.reducerBands), size[0], 1, 1)

	reducers := make([]spaceReducer, len(c.reducerBands))
	for i, rb := range c.reducerBands {
		reducers[i] = newSpaceReducer(rb.Reducer)
		bandIn, _ := c.in.Bands().GetIndex(rb.Band)
		reducers[i].init(out, bandIn, i, c.in)
	}

	// stream every input chunk that shares this temporal range
	it, _, _ := c.ChunkCoords(id)
	for iy := 0; iy < countChunksY(c.in); iy++ {
		for ix := 0; ix < countChunksX(c.in); ix++ {
			x, err := c.in.ReadChunk(chunkIDOf(c.in, it, iy, ix))
			if err != nil {
				return nil, err
			}
			for _, r := range reducers {
				r.combine(out, x, id)
			}
		}
	}
	for _, r := range reducers {
		r.finalize(out)
	}
	return out, nil
}

func (c *ReduceSpaceCube) GraphJSON() (map[string]interface{}, error) {
	in, err := c.in.GraphJSON()
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{
		"cube_type":     "reduce_space",
		"reducer_bands": reducerBandsJSON(c.reducerBands),
		"in_cube":       in,
	}, nil
}
