package cube

import (
	"fmt"

	"github.com/maesbri-forks-geo/gdalcubes/collection"
	"github.com/maesbri-forks-geo/gdalcubes/gdal"
	"github.com/maesbri-forks-geo/gdalcubes/metrics"
	"github.com/maesbri-forks-geo/gdalcubes/utils"
)

// Generator builds one cube type from its JSON description.
type Generator func(f *Factory, j map[string]interface{}) (Cube, error)

// Factory reconstructs cube pipelines from their self-describing JSON
// graphs. It carries the engine configuration explicitly so generators
// never consult global state.
type Factory struct {
	cfg        *utils.Config
	logger     metrics.Logger
	generators map[string]Generator
}

func NewFactory(cfg *utils.Config, logger metrics.Logger) *Factory {
	if cfg == nil {
		cfg = utils.DefaultConfig()
	}
	if logger == nil {
		logger = metrics.NewDiscardLogger()
	}
	f := &Factory{
		cfg:        cfg,
		logger:     logger,
		generators: map[string]Generator{},
	}
	f.registerDefaults()
	return f
}

// Register adds or replaces the generator for one cube type.
func (f *Factory) Register(cubeType string, g Generator) {
	f.generators[cubeType] = g
}

// CreateFromJSON builds the cube described by j, recursively creating
// its parents.
func (f *Factory) CreateFromJSON(j map[string]interface{}) (Cube, error) {
	cubeType, err := jsonString(j, "cube_type")
	if err != nil {
		return nil, err
	}
	g, ok := f.generators[cubeType]
	if !ok {
		return nil, fmt.Errorf("unknown cube type: %q", cubeType)
	}
	return g(f, j)
}

// CreateFromJSONBytes parses a serialized graph and builds the cube.
func (f *Factory) CreateFromJSONBytes(data []byte) (Cube, error) {
	var j map[string]interface{}
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("invalid cube graph: %v", err)
	}
	return f.CreateFromJSON(j)
}

// MarshalGraph serializes a cube's construction graph.
func MarshalGraph(c Cube) ([]byte, error) {
	j, err := c.GraphJSON()
	if err != nil {
		return nil, err
	}
	return json.Marshal(j)
}

func (f *Factory) createParent(j map[string]interface{}, key string) (Cube, error) {
	obj, err := jsonObject(j, key)
	if err != nil {
		return nil, err
	}
	return f.CreateFromJSON(obj)
}

func (f *Factory) registerDefaults() {
	f.Register("reduce", func(f *Factory, j map[string]interface{}) (Cube, error) {
		in, err := f.createParent(j, "in_cube")
		if err != nil {
			return nil, err
		}
		reducer, err := jsonString(j, "reducer")
		if err != nil {
			return nil, err
		}
		return NewReduceCube(in, reducer)
	})

	f.Register("reduce_time", func(f *Factory, j map[string]interface{}) (Cube, error) {
		in, err := f.createParent(j, "in_cube")
		if err != nil {
			return nil, err
		}
		rb, err := jsonReducerBands(j)
		if err != nil {
			return nil, err
		}
		return NewReduceTimeCube(in, rb)
	})

	f.Register("reduce_space", func(f *Factory, j map[string]interface{}) (Cube, error) {
		in, err := f.createParent(j, "in_cube")
		if err != nil {
			return nil, err
		}
		rb, err := jsonReducerBands(j)
		if err != nil {
			return nil, err
		}
		return NewReduceSpaceCube(in, rb)
	})

	f.Register("window_time", func(f *Factory, j map[string]interface{}) (Cube, error) {
		in, err := f.createParent(j, "in_cube")
		if err != nil {
			return nil, err
		}
		winL, err := jsonInt(j, "win_size_l")
		if err != nil {
			return nil, err
		}
		winR, err := jsonInt(j, "win_size_r")
		if err != nil {
			return nil, err
		}
		if _, ok := j["kernel"]; ok {
			kernel, err := jsonFloatSlice(j, "kernel")
			if err != nil {
				return nil, err
			}
			return NewWindowTimeCubeKernel(in, kernel, winL, winR)
		}
		rb, err := jsonReducerBands(j)
		if err != nil {
			return nil, err
		}
		return NewWindowTimeCubeReduce(in, rb, winL, winR)
	})

	f.Register("select_bands", func(f *Factory, j map[string]interface{}) (Cube, error) {
		in, err := f.createParent(j, "in_cube")
		if err != nil {
			return nil, err
		}
		bands, err := jsonStringSlice(j, "bands")
		if err != nil {
			return nil, err
		}
		return NewSelectBandsCube(in, bands)
	})

	f.Register("filter_pixel", func(f *Factory, j map[string]interface{}) (Cube, error) {
		in, err := f.createParent(j, "in_cube")
		if err != nil {
			return nil, err
		}
		predicate, err := jsonString(j, "predicate")
		if err != nil {
			return nil, err
		}
		return NewFilterPixelCube(in, predicate)
	})

	f.Register("apply_pixel", func(f *Factory, j map[string]interface{}) (Cube, error) {
		in, err := f.createParent(j, "in_cube")
		if err != nil {
			return nil, err
		}
		exprs, err := jsonStringSlice(j, "expr")
		if err != nil {
			return nil, err
		}
		var names []string
		if _, ok := j["band_names"]; ok {
			names, err = jsonStringSlice(j, "band_names")
			if err != nil {
				return nil, err
			}
		}
		return NewApplyPixelCube(in, exprs, names)
	})

	f.Register("join_bands", func(f *Factory, j map[string]interface{}) (Cube, error) {
		a, err := f.createParent(j, "A")
		if err != nil {
			return nil, err
		}
		b, err := f.createParent(j, "B")
		if err != nil {
			return nil, err
		}
		prefixA, err := jsonString(j, "prefix_A")
		if err != nil {
			return nil, err
		}
		prefixB, err := jsonString(j, "prefix_B")
		if err != nil {
			return nil, err
		}
		return NewJoinBandsCube(a, b, prefixA, prefixB)
	})

	f.Register("stream", func(f *Factory, j map[string]interface{}) (Cube, error) {
		in, err := f.createParent(j, "in_cube")
		if err != nil {
			return nil, err
		}
		command, err := jsonString(j, "command")
		if err != nil {
			return nil, err
		}
		fileStreaming := false
		if _, ok := j["file_streaming"]; ok {
			fileStreaming, err = jsonBool(j, "file_streaming")
			if err != nil {
				return nil, err
			}
		}
		return NewStreamCube(in, command, fileStreaming, f.cfg.TempDir)
	})

	f.Register("dummy", func(f *Factory, j map[string]interface{}) (Cube, error) {
		view, err := jsonView(j)
		if err != nil {
			return nil, err
		}
		nBands, err := jsonInt(j, "nbands")
		if err != nil {
			return nil, err
		}
		fill, err := jsonFloat(j, "fill")
		if err != nil {
			return nil, err
		}
		c, err := NewDummyCube(view, nBands, fill)
		if err != nil {
			return nil, err
		}
		ct, cy, cx, err := jsonChunkSize(j)
		if err != nil {
			return nil, err
		}
		c.SetChunkSize(ct, cy, cx)
		return c, nil
	})

	f.Register("image_collection", func(f *Factory, j map[string]interface{}) (Cube, error) {
		file, err := jsonString(j, "file")
		if err != nil {
			return nil, err
		}
		view, err := jsonView(j)
		if err != nil {
			return nil, err
		}
		coll, err := collection.Open(file, f.cfg.MemcacheAddress)
		if err != nil {
			return nil, err
		}

		c, err := NewImageCollectionCube(coll, view, gdal.NewExecWarper(f.cfg), f.logger)
		if err != nil {
			return nil, err
		}
		ct, cy, cx, err := jsonChunkSize(j)
		if err != nil {
			return nil, err
		}
		c.SetChunkSize(ct, cy, cx)

		if _, ok := j["bands"]; ok {
			bands, err := jsonStringSlice(j, "bands")
			if err != nil {
				return nil, err
			}
			if err := c.SelectBands(bands); err != nil {
				return nil, err
			}
		}

		if _, ok := j["mask"]; ok {
			mask, band, err := f.maskFromJSON(j)
			if err != nil {
				f.logger.Log(metrics.Warn(fmt.Sprintf("invalid mask configuration, mask will be ignored: %v", err)))
			} else {
				c.SetMask(band, mask)
			}
		}

		if _, ok := j["warp_args"]; ok {
			args, err := jsonStringSlice(j, "warp_args")
			if err != nil {
				return nil, err
			}
			if err := c.SetWarpArgs(args); err != nil {
				return nil, err
			}
		}
		return c, nil
	})
}

func (f *Factory) maskFromJSON(j map[string]interface{}) (ImageMask, string, error) {
	band, err := jsonString(j, "mask_band")
	if err != nil {
		return nil, "", err
	}
	obj, err := jsonObject(j, "mask")
	if err != nil {
		return nil, "", err
	}
	maskType, err := jsonString(obj, "mask_type")
	if err != nil {
		return nil, "", fmt.Errorf("missing mask type")
	}
	invert := false
	if _, ok := obj["invert"]; ok {
		invert, err = jsonBool(obj, "invert")
		if err != nil {
			return nil, "", err
		}
	}
	switch maskType {
	case "value_mask":
		values, err := jsonFloatSlice(obj, "values")
		if err != nil {
			return nil, "", err
		}
		return NewValueMask(values, invert), band, nil
	case "range_mask":
		min, err := jsonFloat(obj, "min")
		if err != nil {
			return nil, "", err
		}
		max, err := jsonFloat(obj, "max")
		if err != nil {
			return nil, "", err
		}
		return NewRangeMask(min, max, invert), band, nil
	default:
		return nil, "", fmt.Errorf("invalid mask type %q", maskType)
	}
}

func jsonString(j map[string]interface{}, key string) (string, error) {
	v, ok := j[key]
	if !ok {
		return "", fmt.Errorf("missing %q key", key)
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("%q is not a string", key)
	}
	return s, nil
}

func jsonFloat(j map[string]interface{}, key string) (float64, error) {
	v, ok := j[key]
	if !ok {
		return 0, fmt.Errorf("missing %q key", key)
	}
	f, ok := v.(float64)
	if !ok {
		return 0, fmt.Errorf("%q is not a number", key)
	}
	return f, nil
}

func jsonInt(j map[string]interface{}, key string) (int, error) {
	f, err := jsonFloat(j, key)
	if err != nil {
		return 0, err
	}
	return int(f), nil
}

func jsonBool(j map[string]interface{}, key string) (bool, error) {
	v, ok := j[key]
	if !ok {
		return false, fmt.Errorf("missing %q key", key)
	}
	b, ok := v.(bool)
	if !ok {
		return false, fmt.Errorf("%q is not a boolean", key)
	}
	return b, nil
}

func jsonObject(j map[string]interface{}, key string) (map[string]interface{}, error) {
	v, ok := j[key]
	if !ok {
		return nil, fmt.Errorf("missing %q key", key)
	}
	obj, ok := v.(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("%q is not an object", key)
	}
	return obj, nil
}

func jsonArray(j map[string]interface{}, key string) ([]interface{}, error) {
	v, ok := j[key]
	if !ok {
		return nil, fmt.Errorf("missing %q key", key)
	}
	arr, ok := v.([]interface{})
	if !ok {
		return nil, fmt.Errorf("%q is not an array", key)
	}
	return arr, nil
}

func jsonStringSlice(j map[string]interface{}, key string) ([]string, error) {
	arr, err := jsonArray(j, key)
	if err != nil {
		return nil, err
	}
	out := make([]string, len(arr))
	for i, v := range arr {
		s, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("%q[%d] is not a string", key, i)
		}
		out[i] = s
	}
	return out, nil
}

func jsonFloatSlice(j map[string]interface{}, key string) ([]float64, error) {
	arr, err := jsonArray(j, key)
	if err != nil {
		return nil, err
	}
	out := make([]float64, len(arr))
	for i, v := range arr {
		f, ok := v.(float64)
		if !ok {
			return nil, fmt.Errorf("%q[%d] is not a number", key, i)
		}
		out[i] = f
	}
	return out, nil
}

func jsonReducerBands(j map[string]interface{}) ([]ReducerBand, error) {
	arr, err := jsonArray(j, "reducer_bands")
	if err != nil {
		return nil, err
	}
	out := make([]ReducerBand, len(arr))
	for i, v := range arr {
		pair, ok := v.([]interface{})
		if !ok || len(pair) != 2 {
			return nil, fmt.Errorf("reducer_bands[%d] is not a (reducer, band) pair", i)
		}
		reducer, ok1 := pair[0].(string)
		band, ok2 := pair[1].(string)
		if !ok1 || !ok2 {
			return nil, fmt.Errorf("reducer_bands[%d] is not a (reducer, band) pair", i)
		}
		out[i] = ReducerBand{Reducer: reducer, Band: band}
	}
	return out, nil
}

func jsonView(j map[string]interface{}) (*View, error) {
	obj, err := jsonObject(j, "view")
	if err != nil {
		return nil, err
	}
	data, err := json.Marshal(obj)
	if err != nil {
		return nil, err
	}
	return ReadViewJSON(data)
}

func jsonChunkSize(j map[string]interface{}) (int, int, int, error) {
	sizes, err := jsonFloatSlice(j, "chunk_size")
	if err != nil {
		return 0, 0, 0, err
	}
	if len(sizes) != 3 {
		return 0, 0, 0, fmt.Errorf("chunk_size must have 3 entries, got %d", len(sizes))
	}
	return int(sizes[0]), int(sizes[1]), int(sizes[2]), nil
}
