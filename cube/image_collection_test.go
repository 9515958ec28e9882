package cube

import (
	"fmt"
	"math"
	"testing"

	"github.com/maesbri-forks-geo/gdalcubes/collection"
	"github.com/maesbri-forks-geo/gdalcubes/gdal"
)

// fakeWarper serves constant planes per (descriptor, band number) and
// records the requested parameters.
type fakeWarper struct {
	values map[string]map[int]float64
	fail   map[string]bool
	calls  int
}

func (w *fakeWarper) Warp(descriptor string, bandNums []int, p gdal.WarpParams) (*gdal.Raster, error) {
	if w.fail[descriptor] {
		return nil, fmt.Errorf("failed to open %s", descriptor)
	}
	w.calls++
	r := &gdal.Raster{Width: p.Width, Height: p.Height}
	for _, bn := range bandNums {
		v, ok := w.values[descriptor][bn]
		if !ok {
			v = math.NaN()
		}
		plane := make([]float64, p.Width*p.Height)
		for i := range plane {
			plane[i] = v
		}
		r.Bands = append(r.Bands, plane)
	}
	return r, nil
}

func newTestCollection() *collection.FileCollection {
	return collection.NewMemoryCollection(collection.Document{
		Bands: []collection.BandsRow{
			{Name: "B1", Type: "int16", Scale: 1, Nodata: "0"},
			{Name: "B2", Type: "int16", Scale: 1, Nodata: "0"},
		},
		Images: []collection.ImageEntry{
			{Descriptor: "img_a", Datetime: "2018-01-01", Left: 0, Right: 2, Bottom: 0, Top: 2,
				Bands: map[string]int{"B1": 1, "B2": 2}},
			{Descriptor: "img_b", Datetime: "2018-01-02", Left: 0, Right: 2, Bottom: 0, Top: 2,
				Bands: map[string]int{"B1": 1}},
			{Descriptor: "img_c", Datetime: "2018-01-01", Left: 0, Right: 2, Bottom: 0, Top: 2,
				Bands: map[string]int{"B1": 1}},
		},
	})
}

func newTestWarper() *fakeWarper {
	return &fakeWarper{
		values: map[string]map[int]float64{
			"img_a": {1: 10, 2: 2},
			"img_b": {1: 30},
			"img_c": {1: 20},
		},
		fail: map[string]bool{},
	}
}

func newCollectionCube(t *testing.T, agg AggregationMethod, w gdal.Warper) *ImageCollectionCube {
	v := newTestView(t, 2, 2, 2)
	v.Aggregation = agg
	c, err := NewImageCollectionCube(newTestCollection(), v, w, nil)
	if err != nil {
		t.Fatalf("failed to create image collection cube: %v", err)
	}
	return c
}

func TestImageCollectionCubeBands(t *testing.T) {
	c := newCollectionCube(t, AggregationNone, newTestWarper())
	if c.Bands().Count() != 2 {
		t.Fatalf("expected 2 bands, got %d", c.Bands().Count())
	}
	if c.Bands().Get(0).Name != "B1" || c.Bands().Get(1).Name != "B2" {
		t.Errorf("unexpected band names: %v", c.Bands().Names())
	}
}

func TestImageCollectionCubeReadNone(t *testing.T) {
	c := newCollectionCube(t, AggregationNone, newTestWarper())
	data, err := c.ReadChunk(0)
	if err != nil {
		t.Fatalf("failed to read chunk: %v", err)
	}
	if data.Size() != [4]int{2, 2, 2, 2} {
		t.Fatalf("unexpected shape %v", data.Size())
	}

	// img_c overwrites img_a in slice 0 under NONE (descriptor order)
	if got := data.At(0, 0, 0, 0); got != 20 {
		t.Errorf("B1 slice 0: expected 20, got %v", got)
	}
	if got := data.At(0, 1, 0, 0); got != 30 {
		t.Errorf("B1 slice 1: expected 30, got %v", got)
	}
	if got := data.At(1, 0, 0, 0); got != 2 {
		t.Errorf("B2 slice 0: expected 2, got %v", got)
	}
	if !math.IsNaN(data.At(1, 1, 0, 0)) {
		t.Errorf("B2 slice 1: expected NaN, got %v", data.At(1, 1, 0, 0))
	}
}

func TestImageCollectionCubeAggregation(t *testing.T) {
	cases := []struct {
		agg  AggregationMethod
		want float64
	}{
		{AggregationMean, 15},
		{AggregationMin, 10},
		{AggregationMax, 20},
		{AggregationMedian, 15},
		{AggregationFirst, 10},
		{AggregationLast, 20},
	}
	for _, cse := range cases {
		c := newCollectionCube(t, cse.agg, newTestWarper())
		data, err := c.ReadChunk(0)
		if err != nil {
			t.Fatalf("%v: failed to read chunk: %v", cse.agg, err)
		}
		if got := data.At(0, 0, 0, 0); !almostEqual(got, cse.want) {
			t.Errorf("%v: B1 slice 0: expected %v, got %v", cse.agg, cse.want, got)
		}
	}
}

func TestImageCollectionCubeSelectBands(t *testing.T) {
	w := newTestWarper()
	c := newCollectionCube(t, AggregationNone, w)
	if err := c.SelectBands([]string{"B2"}); err != nil {
		t.Fatalf("failed to select bands: %v", err)
	}
	data, err := c.ReadChunk(0)
	if err != nil {
		t.Fatalf("failed to read chunk: %v", err)
	}
	if data.NB != 1 {
		t.Fatalf("expected 1 band, got %d", data.NB)
	}
	if got := data.At(0, 0, 0, 0); got != 2 {
		t.Errorf("B2 slice 0: expected 2, got %v", got)
	}
	// only img_a carries B2; the other datasets must not be warped
	if w.calls != 1 {
		t.Errorf("expected 1 warp call, got %d", w.calls)
	}

	if err := c.SelectBands([]string{"nope"}); err == nil {
		t.Errorf("expected error for unknown band")
	}
}

func TestImageCollectionCubeValueMask(t *testing.T) {
	c := newCollectionCube(t, AggregationNone, newTestWarper())
	c.SetMask("B2", NewValueMask([]float64{2}, false))

	if c.Bands().Count() != 1 || c.Bands().Get(0).Name != "B1" {
		t.Fatalf("mask band must leave the band list, got %v", c.Bands().Names())
	}

	data, err := c.ReadChunk(0)
	if err != nil {
		t.Fatalf("failed to read chunk: %v", err)
	}
	// slice 0 is masked everywhere (B2 == 2), slice 1 has no mask data
	if !math.IsNaN(data.At(0, 0, 0, 0)) {
		t.Errorf("slice 0: expected masked NaN, got %v", data.At(0, 0, 0, 0))
	}
	if got := data.At(0, 1, 0, 0); got != 30 {
		t.Errorf("slice 1: expected 30, got %v", got)
	}
}

func TestImageCollectionCubeRangeMaskInverted(t *testing.T) {
	c := newCollectionCube(t, AggregationNone, newTestWarper())
	c.SetMask("B2", NewRangeMask(5, 10, true))

	data, err := c.ReadChunk(0)
	if err != nil {
		t.Fatalf("failed to read chunk: %v", err)
	}
	// B2 == 2 lies outside [5, 10], inverted mask triggers
	if !math.IsNaN(data.At(0, 0, 0, 0)) {
		t.Errorf("slice 0: expected masked NaN, got %v", data.At(0, 0, 0, 0))
	}
}

func TestImageCollectionCubeMaskUnknownBand(t *testing.T) {
	c := newCollectionCube(t, AggregationNone, newTestWarper())
	c.SetMask("QA", NewValueMask([]float64{1}, false))
	if c.Bands().Count() != 2 {
		t.Errorf("unknown mask band must not modify the cube")
	}
}

func TestImageCollectionCubeEmptyQuery(t *testing.T) {
	v := newTestView(t, 2, 2, 2)
	empty := collection.NewMemoryCollection(collection.Document{
		Bands: []collection.BandsRow{{Name: "B1", Scale: 1}},
	})
	c, err := NewImageCollectionCube(empty, v, newTestWarper(), nil)
	if err != nil {
		t.Fatalf("failed to create cube: %v", err)
	}
	data, err := c.ReadChunk(0)
	if err != nil {
		t.Fatalf("failed to read chunk: %v", err)
	}
	if !data.Empty() {
		t.Errorf("expected an empty chunk for an empty query")
	}
	if data.Size() != [4]int{1, 2, 2, 2} {
		t.Errorf("empty chunk must keep its logical shape, got %v", data.Size())
	}
}

func TestImageCollectionCubeOutOfRange(t *testing.T) {
	c := newCollectionCube(t, AggregationNone, newTestWarper())
	data, err := c.ReadChunk(ChunkID(c.CountChunks()))
	if err != nil {
		t.Fatalf("out-of-range chunk must not error: %v", err)
	}
	if !data.Empty() {
		t.Errorf("expected an empty chunk for an out-of-range id")
	}
}

func TestImageCollectionCubeWarpFailure(t *testing.T) {
	w := newTestWarper()
	w.fail["img_b"] = true
	c := newCollectionCube(t, AggregationNone, w)
	if _, err := c.ReadChunk(0); err == nil {
		t.Errorf("expected error when a source raster fails")
	}
}

func TestImageCollectionCubeWarpArgs(t *testing.T) {
	c := newCollectionCube(t, AggregationNone, newTestWarper())
	if err := c.SetWarpArgs([]string{"-wm", "512"}); err != nil {
		t.Errorf("benign warp args rejected: %v", err)
	}
	if err := c.SetWarpArgs([]string{"-t_srs", "EPSG:3857"}); err == nil {
		t.Errorf("expected rejection of reserved warp args")
	}
}
