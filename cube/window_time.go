package cube

import (
	"fmt"
	"math"
	"sort"
)

// windowFn folds the values of one moving window into one output value.
// NaN inputs are skipped; the contracts match the streaming reducers.
type windowFn func(values []float64) float64

func newWindowFn(name string) windowFn {
	switch name {
	case "sum":
		return func(values []float64) float64 {
			out := 0.0
			for _, v := range values {
				if !math.IsNaN(v) {
					out += v
				}
			}
			return out
		}
	case "prod":
		return func(values []float64) float64 {
			out := 1.0
			for _, v := range values {
				if !math.IsNaN(v) {
					out *= v
				}
			}
			return out
		}
	case "count":
		return func(values []float64) float64 {
			out := 0.0
			for _, v := range values {
				if !math.IsNaN(v) {
					out++
				}
			}
			return out
		}
	case "mean":
		return func(values []float64) float64 {
			sum, n := 0.0, 0
			for _, v := range values {
				if !math.IsNaN(v) {
					sum += v
					n++
				}
			}
			if n == 0 {
				return nan
			}
			return sum / float64(n)
		}
	case "min":
		return func(values []float64) float64 {
			out := nan
			for _, v := range values {
				if math.IsNaN(v) {
					continue
				}
				if math.IsNaN(out) || v < out {
					out = v
				}
			}
			return out
		}
	case "max":
		return func(values []float64) float64 {
			out := nan
			for _, v := range values {
				if math.IsNaN(v) {
					continue
				}
				if math.IsNaN(out) || v > out {
					out = v
				}
			}
			return out
		}
	case "median":
		return func(values []float64) float64 {
			kept := make([]float64, 0, len(values))
			for _, v := range values {
				if !math.IsNaN(v) {
					kept = append(kept, v)
				}
			}
			if len(kept) == 0 {
				return nan
			}
			sort.Float64s(kept)
			n := len(kept)
			if n%2 == 1 {
				return kept[n/2]
			}
			return (kept[n/2-1] + kept[n/2]) / 2
		}
	case "var":
		return windowVar
	case "sd":
		return func(values []float64) float64 {
			return math.Sqrt(windowVar(values))
		}
	default:
		return nil
	}
}

func windowVar(values []float64) float64 {
	var count uint32
	mean, m2 := 0.0, 0.0
	for _, v := range values {
		if math.IsNaN(v) {
			continue
		}
		count++
		delta := v - mean
		mean += delta / float64(count)
		m2 += delta * (v - mean)
	}
	if count <= 1 {
		return nan
	}
	return m2 / float64(count-1)
}

// WindowTimeCube smooths a cube along the time axis with a moving window
// [t-L, t+R]. In reducer mode each (reducer, band) pair becomes one
// output band; in kernel mode a centered dot product with a fixed kernel
// is applied to every input band, dropping NaN slots and the weights
// they would have consumed.
type WindowTimeCube struct {
	baseCube
	in           Cube
	winL         int
	winR         int
	reducerBands []ReducerBand
	kernel       []float64
	fns          []windowFn
	bandIdxIn    []int
}

func newWindowTimeCube(in Cube, winL, winR int) (*WindowTimeCube, error) {
	if winL < 0 || winR < 0 {
		return nil, fmt.Errorf("window sizes must not be negative, got l=%d r=%d", winL, winR)
	}
	ct := in.NominalChunkSize()[0]
	if winL > ct || winR > ct {
		return nil, fmt.Errorf("window sizes (l=%d, r=%d) must not exceed the input's temporal chunk size %d", winL, winR, ct)
	}
	c := &WindowTimeCube{
		baseCube: newBaseCube(in.View().Copy()),
		in:       in,
		winL:     winL,
		winR:     winR,
	}
	c.chunkSize = in.NominalChunkSize()
	return c, nil
}

// NewWindowTimeCubeReduce creates a moving-window cube in reducer mode.
func NewWindowTimeCubeReduce(in Cube, reducerBands []ReducerBand, winL, winR int) (*WindowTimeCube, error) {
	c, err := newWindowTimeCube(in, winL, winR)
	if err != nil {
		return nil, err
	}
	if len(reducerBands) == 0 {
		return nil, fmt.Errorf("window_time needs at least one (reducer, band) pair")
	}
	c.reducerBands = reducerBands
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
		c.fns = append(c.fns, newWindowFn(rb.Reducer))
		c.bandIdxIn = append(c.bandIdxIn, idx)
	}
	in.addChild(c)
	return c, nil
}

// NewWindowTimeCubeKernel creates a moving-window cube in kernel mode;
// the kernel length must be winL + winR + 1.
func NewWindowTimeCubeKernel(in Cube, kernel []float64, winL, winR int) (*WindowTimeCube, error) {
	c, err := newWindowTimeCube(in, winL, winR)
	if err != nil {
		return nil, err
	}
	if len(kernel) != winL+winR+1 {
		return nil, fmt.Errorf("kernel length %d does not match window size %d", len(kernel), winL+winR+1)
	}
	c.kernel = kernel
	for i := 0; i < in.Bands().Count(); i++ {
		if err := c.bands.Add(in.Bands().Get(i)); err != nil {
			return nil, err
		}
		c.bandIdxIn = append(c.bandIdxIn, i)
	}
	in.addChild(c)
	return c, nil
}

func (c *WindowTimeCube) ReadChunk(id ChunkID) (*ChunkData, error) {
	if !c.validChunk(id) {
		return NewEmptyChunk(c.bands.Count(), 0, 0, 0), nil
	}
	size := c.ChunkSize(id)
	out := NewChunkData(c.bands.Count(), size[0], size[1], size[2])

	it, iy, ix := c.ChunkCoords(id)

	// the window reaches at most one chunk to either side
	chunks := map[int]*ChunkData{}
	for n := it - 1; n <= it+1; n++ {
		if n < 0 || n >= countChunksT(c.in) {
			continue
		}
		x, err := c.in.ReadChunk(chunkIDOf(c.in, n, iy, ix))
		if err != nil {
			return nil, err
		}
		chunks[n] = x
	}

	ct := c.chunkSize[0]
	nt := c.view.NT()
	plane := size[1] * size[2]

	// value returns the input pixel at global slice g, NaN outside the
	// cube or inside an empty chunk.
	value := func(bandIn, g, ixy int) float64 {
		if g < 0 || g >= nt {
			return nan
		}
		chunk := chunks[g/ct]
		if chunk == nil || chunk.Empty() {
			return nan
		}
		return chunk.Slice(bandIn, g%ct)[ixy]
	}

	window := make([]float64, c.winL+c.winR+1)
	for ob := 0; ob < c.bands.Count(); ob++ {
		bandIn := c.bandIdxIn[ob]
		for t := 0; t < size[0]; t++ {
			g := it*ct + t
			w := out.Slice(ob, t)
			for ixy := 0; ixy < plane; ixy++ {
				for k := -c.winL; k <= c.winR; k++ {
					window[k+c.winL] = value(bandIn, g+k, ixy)
				}
				if c.kernel != nil {
					w[ixy] = applyKernel(c.kernel, window)
				} else {
					w[ixy] = c.fns[ob](window)
				}
			}
		}
	}
	return out, nil
}

// applyKernel computes the dot product of kernel and window, dropping
// NaN slots together with their weights.
func applyKernel(kernel, window []float64) float64 {
	sum := 0.0
	seen := false
	for i, v := range window {
		if math.IsNaN(v) {
			continue
		}
		sum += kernel[i] * v
		seen = true
	}
	if !seen {
		return nan
	}
	return sum
}

func (c *WindowTimeCube) GraphJSON() (map[string]interface{}, error) {
	in, err := c.in.GraphJSON()
	if err != nil {
		return nil, err
	}
	out := map[string]interface{}{
		"cube_type":  "window_time",
		"win_size_l": float64(c.winL),
		"win_size_r": float64(c.winR),
		"in_cube":    in,
	}
	if c.kernel != nil {
		kernel := make([]interface{}, len(c.kernel))
		for i, v := range c.kernel {
			kernel[i] = v
		}
		out["kernel"] = kernel
	} else {
		out["reducer_bands"] = reducerBandsJSON(c.reducerBands)
	}
	return out, nil
}
