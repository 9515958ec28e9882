package cube

import (
	"fmt"
	"math"
	"sort"
)

// ReducerBand pairs a reducer name with the input band it applies to.
// Each pair becomes one output band of a reducer cube.
type ReducerBand struct {
	Reducer string
	Band    string
}

var reducerNames = map[string]bool{
	"min": true, "max": true, "mean": true, "median": true,
	"count": true, "var": true, "sd": true, "prod": true, "sum": true,
}

func validateReducer(name string) error {
	if !reducerNames[name] {
		return fmt.Errorf("unknown reducer: %q", name)
	}
	return nil
}

// timeReducer is the pairwise streaming protocol shared by all temporal
// reductions: init prepares one output band, combine folds in one input
// chunk, finalize postprocesses (e.g. divides by n for mean). Reducers
// never materialize the full reduction domain.
type timeReducer interface {
	init(out *ChunkData, bandIn, bandOut int, in Cube)
	combine(out *ChunkData, x *ChunkData, id ChunkID)
	finalize(out *ChunkData)
}

func newTimeReducer(name string) timeReducer {
	switch name {
	case "sum":
		return &sumTimeReducer{}
	case "prod":
		return &prodTimeReducer{}
	case "count":
		return &countTimeReducer{}
	case "mean":
		return &meanTimeReducer{}
	case "min":
		return &minTimeReducer{}
	case "max":
		return &maxTimeReducer{}
	case "median":
		return &medianTimeReducer{}
	case "var":
		return &varTimeReducer{}
	case "sd":
		return &sdTimeReducer{}
	default:
		return nil
	}
}

type sumTimeReducer struct {
	bandIn  int
	bandOut int
}

func (r *sumTimeReducer) init(out *ChunkData, bandIn, bandOut int, in Cube) {
	r.bandIn, r.bandOut = bandIn, bandOut
	plane := out.Slice(bandOut, 0)
	for i := range plane {
		plane[i] = 0
	}
}

func (r *sumTimeReducer) combine(out *ChunkData, x *ChunkData, id ChunkID) {
	if x.Empty() {
		return
	}
	w := out.Slice(r.bandOut, 0)
	for it := 0; it < x.NT; it++ {
		for i, v := range x.Slice(r.bandIn, it) {
			if !math.IsNaN(v) {
				w[i] += v
			}
		}
	}
}

func (r *sumTimeReducer) finalize(out *ChunkData) {}

type prodTimeReducer struct {
	bandIn  int
	bandOut int
}

func (r *prodTimeReducer) init(out *ChunkData, bandIn, bandOut int, in Cube) {
	r.bandIn, r.bandOut = bandIn, bandOut
	plane := out.Slice(bandOut, 0)
	for i := range plane {
		plane[i] = 1
	}
}

func (r *prodTimeReducer) combine(out *ChunkData, x *ChunkData, id ChunkID) {
	if x.Empty() {
		return
	}
	w := out.Slice(r.bandOut, 0)
	for it := 0; it < x.NT; it++ {
		for i, v := range x.Slice(r.bandIn, it) {
			if !math.IsNaN(v) {
				w[i] *= v
			}
		}
	}
}

func (r *prodTimeReducer) finalize(out *ChunkData) {}

type countTimeReducer struct {
	bandIn  int
	bandOut int
}

func (r *countTimeReducer) init(out *ChunkData, bandIn, bandOut int, in Cube) {
	r.bandIn, r.bandOut = bandIn, bandOut
	plane := out.Slice(bandOut, 0)
	for i := range plane {
		plane[i] = 0
	}
}

func (r *countTimeReducer) combine(out *ChunkData, x *ChunkData, id ChunkID) {
	if x.Empty() {
		return
	}
	w := out.Slice(r.bandOut, 0)
	for it := 0; it < x.NT; it++ {
		for i, v := range x.Slice(r.bandIn, it) {
			if !math.IsNaN(v) {
				w[i]++
			}
		}
	}
}

func (r *countTimeReducer) finalize(out *ChunkData) {}

type meanTimeReducer struct {
	bandIn  int
	bandOut int
	count   []uint32
}

func (r *meanTimeReducer) init(out *ChunkData, bandIn, bandOut int, in Cube) {
	r.bandIn, r.bandOut = bandIn, bandOut
	plane := out.Slice(bandOut, 0)
	r.count = make([]uint32, len(plane))
	for i := range plane {
		plane[i] = 0
	}
}

func (r *meanTimeReducer) combine(out *ChunkData, x *ChunkData, id ChunkID) {
	if x.Empty() {
		return
	}
	w := out.Slice(r.bandOut, 0)
	for it := 0; it < x.NT; it++ {
		for i, v := range x.Slice(r.bandIn, it) {
			if !math.IsNaN(v) {
				w[i] += v
				r.count[i]++
			}
		}
	}
}

func (r *meanTimeReducer) finalize(out *ChunkData) {
	w := out.Slice(r.bandOut, 0)
	for i := range w {
		if r.count[i] > 0 {
			w[i] /= float64(r.count[i])
		} else {
			w[i] = nan
		}
	}
}

type minTimeReducer struct {
	bandIn  int
	bandOut int
}

func (r *minTimeReducer) init(out *ChunkData, bandIn, bandOut int, in Cube) {
	r.bandIn, r.bandOut = bandIn, bandOut
	plane := out.Slice(bandOut, 0)
	for i := range plane {
		plane[i] = nan
	}
}

func (r *minTimeReducer) combine(out *ChunkData, x *ChunkData, id ChunkID) {
	if x.Empty() {
		return
	}
	w := out.Slice(r.bandOut, 0)
	for it := 0; it < x.NT; it++ {
		for i, v := range x.Slice(r.bandIn, it) {
			if math.IsNaN(v) {
				continue
			}
			if math.IsNaN(w[i]) || v < w[i] {
				w[i] = v
			}
		}
	}
}

func (r *minTimeReducer) finalize(out *ChunkData) {}

type maxTimeReducer struct {
	bandIn  int
	bandOut int
}

func (r *maxTimeReducer) init(out *ChunkData, bandIn, bandOut int, in Cube) {
	r.bandIn, r.bandOut = bandIn, bandOut
	plane := out.Slice(bandOut, 0)
	for i := range plane {
		plane[i] = nan
	}
}

func (r *maxTimeReducer) combine(out *ChunkData, x *ChunkData, id ChunkID) {
	if x.Empty() {
		return
	}
	w := out.Slice(r.bandOut, 0)
	for it := 0; it < x.NT; it++ {
		for i, v := range x.Slice(r.bandIn, it) {
			if math.IsNaN(v) {
				continue
			}
			if math.IsNaN(w[i]) || v > w[i] {
				w[i] = v
			}
		}
	}
}

func (r *maxTimeReducer) finalize(out *ChunkData) {}

// medianTimeReducer keeps per-pixel buckets; the exact median has a
// strong memory overhead.
type medianTimeReducer struct {
	bandIn  int
	bandOut int
	buckets [][]float64
}

func (r *medianTimeReducer) init(out *ChunkData, bandIn, bandOut int, in Cube) {
	r.bandIn, r.bandOut = bandIn, bandOut
	r.buckets = make([][]float64, out.NY*out.NX)
}

func (r *medianTimeReducer) combine(out *ChunkData, x *ChunkData, id ChunkID) {
	if x.Empty() {
		return
	}
	for it := 0; it < x.NT; it++ {
		for i, v := range x.Slice(r.bandIn, it) {
			if !math.IsNaN(v) {
				r.buckets[i] = append(r.buckets[i], v)
			}
		}
	}
}

func (r *medianTimeReducer) finalize(out *ChunkData) {
	w := out.Slice(r.bandOut, 0)
	for i, values := range r.buckets {
		if len(values) == 0 {
			w[i] = nan
			continue
		}
		sort.Float64s(values)
		n := len(values)
		if n%2 == 1 {
			w[i] = values[n/2]
		} else {
			w[i] = (values[n/2-1] + values[n/2]) / 2
		}
	}
	r.buckets = nil
}

// varTimeReducer uses Welford's online algorithm; the output slot holds
// the running M2 until finalize divides by n-1.
type varTimeReducer struct {
	bandIn  int
	bandOut int
	count   []uint32
	mean    []float64
}

func (r *varTimeReducer) init(out *ChunkData, bandIn, bandOut int, in Cube) {
	r.bandIn, r.bandOut = bandIn, bandOut
	plane := out.Slice(bandOut, 0)
	r.count = make([]uint32, len(plane))
	r.mean = make([]float64, len(plane))
	for i := range plane {
		plane[i] = 0
	}
}

func (r *varTimeReducer) combine(out *ChunkData, x *ChunkData, id ChunkID) {
	if x.Empty() {
		return
	}
	w := out.Slice(r.bandOut, 0)
	for it := 0; it < x.NT; it++ {
		for i, v := range x.Slice(r.bandIn, it) {
			if math.IsNaN(v) {
				continue
			}
			r.count[i]++
			delta := v - r.mean[i]
			r.mean[i] += delta / float64(r.count[i])
			w[i] += delta * (v - r.mean[i])
		}
	}
}

func (r *varTimeReducer) finalize(out *ChunkData) {
	w := out.Slice(r.bandOut, 0)
	for i := range w {
		if r.count[i] > 1 {
			w[i] /= float64(r.count[i] - 1)
		} else {
			w[i] = nan
		}
	}
}

type sdTimeReducer struct {
	varTimeReducer
}

func (r *sdTimeReducer) finalize(out *ChunkData) {
	w := out.Slice(r.bandOut, 0)
	for i := range w {
		if r.count[i] > 1 {
			w[i] = math.Sqrt(w[i] / float64(r.count[i]-1))
		} else {
			w[i] = nan
		}
	}
}

// ReduceTimeCube applies one reducer per (reducer, band) pair over the
// whole time axis. The result has a single temporal slice spanning
// [t0, t1].
type ReduceTimeCube struct {
	baseCube
	in           Cube
	reducerBands []ReducerBand
}

func newReduceTimeCube(in Cube, reducerBands []ReducerBand) (*ReduceTimeCube, error) {
	if len(reducerBands) == 0 {
		return nil, fmt.Errorf("reduce_time needs at least one (reducer, band) pair")
	}

	v := in.View().Copy()
	v.DT = v.T1.Sub(v.T0)
	if v.DT.Count <= 0 {
		v.DT.Count = 1
	}
	v.T1 = v.T0

	c := &ReduceTimeCube{
		baseCube:     newBaseCube(v),
		in:           in,
		reducerBands: reducerBands,
	}
	inSize := in.NominalChunkSize()
	c.chunkSize = [3]int{1, inSize[1], inSize[2]}

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
	return c, nil
}

func NewReduceTimeCube(in Cube, reducerBands []ReducerBand) (*ReduceTimeCube, error) {
	c, err := newReduceTimeCube(in, reducerBands)
	if err != nil {
		return nil, err
	}
	in.addChild(c)
	return c, nil
}

func (c *ReduceTimeCube) ReadChunk(id ChunkID) (*ChunkData, error) {
	if !c.validChunk(id) {
		return NewEmptyChunk(c.bands.Count(), 0, 0, 0), nil
	}
	size := c.ChunkSize(id)
	out := NewChunkData(len(c.reducerBands), size[0], size[1], size[2])

	reducers := make([]timeReducer, len(c.reducerBands))
	for i, rb := range c.reducerBands {
		reducers[i] = newTimeReducer(rb.Reducer)
		bandIn, _ := c.in.Bands().GetIndex(rb.Band)
		reducers[i].init(out, bandIn, i, c.in)
	}

	// stream every input chunk that shares this (iy, ix) footprint
	_, iy, ix := c.ChunkCoords(id)
	for it := 0; it < countChunksT(c.in); it++ {
		x, err := c.in.ReadChunk(chunkIDOf(c.in, it, iy, ix))
		if err != nil {
			return nil, err
		}
		for _, r := range reducers {
			r.combine(out, x, id)
		}
	}
	for _, r := range reducers {
		r.finalize(out)
	}
	return out, nil
}

func (c *ReduceTimeCube) GraphJSON() (map[string]interface{}, error) {
	in, err := c.in.GraphJSON()
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{
		"cube_type":     "reduce_time",
		"reducer_bands": reducerBandsJSON(c.reducerBands),
		"in_cube":       in,
	}, nil
}

func reducerBandsJSON(rb []ReducerBand) []interface{} {
	out := make([]interface{}, len(rb))
	for i, p := range rb {
		out[i] = []interface{}{p.Reducer, p.Band}
	}
	return out
}

// ReduceCube applies a single reducer to every band of the input cube
// over time. It predates ReduceTimeCube and is kept for compatibility
// with serialized graphs.
type ReduceCube struct {
	*ReduceTimeCube
	reducer string
}

func NewReduceCube(in Cube, reducer string) (*ReduceCube, error) {
	if err := validateReducer(reducer); err != nil {
		return nil, err
	}
	pairs := make([]ReducerBand, in.Bands().Count())
	for i := 0; i < in.Bands().Count(); i++ {
		pairs[i] = ReducerBand{Reducer: reducer, Band: in.Bands().Get(i).Name}
	}
	inner, err := newReduceTimeCube(in, pairs)
	if err != nil {
		return nil, err
	}
	if in.View().NT() <= 1 {
		// band names change only if the input is not yet reduced
		bands := NewBandCollection()
		for i := 0; i < in.Bands().Count(); i++ {
			if err := bands.Add(in.Bands().Get(i)); err != nil {
				return nil, err
			}
		}
		inner.bands = bands
	}
	c := &ReduceCube{ReduceTimeCube: inner, reducer: reducer}
	in.addChild(c)
	return c, nil
}

func (c *ReduceCube) GraphJSON() (map[string]interface{}, error) {
	in, err := c.in.GraphJSON()
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{
		"cube_type": "reduce",
		"reducer":   c.reducer,
		"in_cube":   in,
	}, nil
}

// countChunksT returns the number of chunks along the time axis of any
// cube, derived from its view and nominal chunk size.
func countChunksT(c Cube) int {
	return ceilDiv(c.View().NT(), c.NominalChunkSize()[0])
}

func countChunksY(c Cube) int {
	return ceilDiv(c.View().NY(), c.NominalChunkSize()[1])
}

func countChunksX(c Cube) int {
	return ceilDiv(c.View().NX(), c.NominalChunkSize()[2])
}

// chunkIDOf maps chunk grid coordinates of an arbitrary cube to its
// chunk id, row major with t outermost.
func chunkIDOf(c Cube, it, iy, ix int) ChunkID {
	return ChunkID((it*countChunksY(c)+iy)*countChunksX(c) + ix)
}
