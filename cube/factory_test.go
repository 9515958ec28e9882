package cube

import (
	"io/ioutil"
	"os"
	"path/filepath"
	"testing"
)

func roundTripGraph(t *testing.T, c Cube) {
	first, err := MarshalGraph(c)
	if err != nil {
		t.Fatalf("failed to marshal graph: %v", err)
	}
	f := NewFactory(nil, nil)
	rebuilt, err := f.CreateFromJSONBytes(first)
	if err != nil {
		t.Fatalf("failed to rebuild cube from graph %s: %v", first, err)
	}
	second, err := MarshalGraph(rebuilt)
	if err != nil {
		t.Fatalf("failed to marshal rebuilt graph: %v", err)
	}
	if string(first) != string(second) {
		t.Errorf("graph changed in round trip:\n%s\n%s", first, second)
	}
}

func TestFactoryRoundTripDummy(t *testing.T) {
	v := newTestView(t, 4, 4, 3)
	c, _ := NewDummyCube(v, 2, 1.5)
	c.SetChunkSize(1, 2, 2)
	roundTripGraph(t, c)
}

func TestFactoryRoundTripDerivedCubes(t *testing.T) {
	v := newTestView(t, 4, 4, 3)
	dummy, _ := NewDummyCube(v, 2, 1.5)

	applied, err := NewApplyPixelCube(dummy, []string{"band1 + band2"}, []string{"s"})
	if err != nil {
		t.Fatalf("failed to create apply_pixel: %v", err)
	}
	roundTripGraph(t, applied)

	filtered, err := NewFilterPixelCube(applied, "s > 2")
	if err != nil {
		t.Fatalf("failed to create filter_pixel: %v", err)
	}
	roundTripGraph(t, filtered)

	reduced, err := NewReduceTimeCube(filtered, []ReducerBand{{"mean", "s"}, {"count", "s"}})
	if err != nil {
		t.Fatalf("failed to create reduce_time: %v", err)
	}
	roundTripGraph(t, reduced)

	legacy, err := NewReduceCube(dummy, "max")
	if err != nil {
		t.Fatalf("failed to create reduce: %v", err)
	}
	roundTripGraph(t, legacy)

	space, err := NewReduceSpaceCube(dummy, []ReducerBand{{"sum", "band1"}})
	if err != nil {
		t.Fatalf("failed to create reduce_space: %v", err)
	}
	roundTripGraph(t, space)

	window, err := NewWindowTimeCubeReduce(dummy, []ReducerBand{{"mean", "band1"}}, 1, 1)
	if err != nil {
		t.Fatalf("failed to create window_time: %v", err)
	}
	roundTripGraph(t, window)

	kernel, err := NewWindowTimeCubeKernel(dummy, []float64{0.25, 0.5, 0.25}, 1, 1)
	if err != nil {
		t.Fatalf("failed to create kernel window_time: %v", err)
	}
	roundTripGraph(t, kernel)

	selected, err := NewSelectBandsCube(dummy, []string{"band2"})
	if err != nil {
		t.Fatalf("failed to create select_bands: %v", err)
	}
	roundTripGraph(t, selected)

	b, _ := NewDummyCube(v, 1, 3.0)
	joined, err := NewJoinBandsCube(dummy, b, "A", "B")
	if err != nil {
		t.Fatalf("failed to create join_bands: %v", err)
	}
	roundTripGraph(t, joined)
}

func TestFactoryRoundTripImageCollection(t *testing.T) {
	dir, err := ioutil.TempDir("", "factory_test_")
	if err != nil {
		t.Fatalf("failed to create temp dir: %v", err)
	}
	defer os.RemoveAll(dir)

	coll := newTestCollection()
	path := filepath.Join(dir, "collection.json")
	if err := coll.Write(path); err != nil {
		t.Fatalf("failed to write collection: %v", err)
	}

	v := newTestView(t, 2, 2, 2)
	v.Aggregation = AggregationMean
	c, err := NewImageCollectionCube(coll, v, newTestWarper(), nil)
	if err != nil {
		t.Fatalf("failed to create image collection cube: %v", err)
	}
	c.SetChunkSize(1, 2, 2)
	c.SetMask("B2", NewValueMask([]float64{1, 2}, false))
	if err := c.SetWarpArgs([]string{"-wm", "512"}); err != nil {
		t.Fatalf("failed to set warp args: %v", err)
	}
	roundTripGraph(t, c)
}

func TestFactorySerializeTemporaryCollection(t *testing.T) {
	v := newTestView(t, 2, 2, 2)
	c, err := NewImageCollectionCube(newTestCollection(), v, newTestWarper(), nil)
	if err != nil {
		t.Fatalf("failed to create cube: %v", err)
	}
	if _, err := MarshalGraph(c); err == nil {
		t.Errorf("expected error when serializing a temporary collection")
	}
}

func TestFactoryUnknownCubeType(t *testing.T) {
	f := NewFactory(nil, nil)
	if _, err := f.CreateFromJSONBytes([]byte(`{"cube_type":"warp_everything"}`)); err == nil {
		t.Errorf("expected error for unknown cube type")
	}
	if _, err := f.CreateFromJSONBytes([]byte(`{"fill":1}`)); err == nil {
		t.Errorf("expected error for missing cube_type")
	}
	if _, err := f.CreateFromJSONBytes([]byte(`not json`)); err == nil {
		t.Errorf("expected error for invalid JSON")
	}
}

func TestFactoryCustomGenerator(t *testing.T) {
	f := NewFactory(nil, nil)
	f.Register("constant", func(f *Factory, j map[string]interface{}) (Cube, error) {
		view, err := jsonView(j)
		if err != nil {
			return nil, err
		}
		return NewDummyCube(view, 1, 42)
	})

	v := newTestView(t, 2, 2, 1)
	dummy, _ := NewDummyCube(v, 1, 42)
	g, err := dummy.GraphJSON()
	if err != nil {
		t.Fatalf("failed to build graph: %v", err)
	}
	g["cube_type"] = "constant"
	c, err := f.CreateFromJSON(g)
	if err != nil {
		t.Fatalf("failed to create registered cube type: %v", err)
	}
	data, _ := c.ReadChunk(0)
	if data.Buf[0] != 42 {
		t.Errorf("expected 42, got %v", data.Buf[0])
	}
}
