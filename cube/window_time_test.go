package cube

import (
	"math"
	"testing"
)

func TestWindowTimeMean(t *testing.T) {
	v := newTestView(t, 1, 1, 5)
	c := newSliceCube(t, v, []float64{1, 2, 3, 4, 5})
	c.chunkSize = [3]int{5, 1, 1}

	w, err := NewWindowTimeCubeReduce(c, []ReducerBand{{"mean", "band1"}}, 1, 1)
	if err != nil {
		t.Fatalf("failed to create window_time cube: %v", err)
	}
	if w.Bands().Get(0).Name != "band1_mean" {
		t.Errorf("unexpected band name: %s", w.Bands().Get(0).Name)
	}

	data, err := w.ReadChunk(0)
	if err != nil {
		t.Fatalf("failed to read windowed chunk: %v", err)
	}
	// boundary windows shrink: [1,2], [1,2,3], ..., [4,5]
	want := []float64{1.5, 2, 3, 4, 4.5}
	for i, expected := range want {
		if !almostEqual(data.At(0, i, 0, 0), expected) {
			t.Errorf("slice %d: expected %v, got %v", i, expected, data.At(0, i, 0, 0))
		}
	}
}

func TestWindowTimeAcrossChunks(t *testing.T) {
	v := newTestView(t, 1, 1, 4)
	c := newSliceCube(t, v, []float64{1, 2, 3, 4})
	// one slice per chunk forces neighbor reads

	w, err := NewWindowTimeCubeReduce(c, []ReducerBand{{"sum", "band1"}}, 1, 1)
	if err != nil {
		t.Fatalf("failed to create window_time cube: %v", err)
	}
	want := []float64{3, 6, 9, 7}
	for id := 0; id < w.CountChunks(); id++ {
		data, err := w.ReadChunk(ChunkID(id))
		if err != nil {
			t.Fatalf("failed to read windowed chunk %d: %v", id, err)
		}
		if !almostEqual(data.At(0, 0, 0, 0), want[id]) {
			t.Errorf("slice %d: expected %v, got %v", id, want[id], data.At(0, 0, 0, 0))
		}
	}
}

func TestWindowTimeKernel(t *testing.T) {
	v := newTestView(t, 1, 1, 3)
	c := newSliceCube(t, v, []float64{1, 2, 4})
	c.chunkSize = [3]int{3, 1, 1}

	w, err := NewWindowTimeCubeKernel(c, []float64{0.25, 0.5, 0.25}, 1, 1)
	if err != nil {
		t.Fatalf("failed to create kernel cube: %v", err)
	}
	if w.Bands().Get(0).Name != "band1" {
		t.Errorf("kernel mode must keep band names, got %s", w.Bands().Get(0).Name)
	}

	data, err := w.ReadChunk(0)
	if err != nil {
		t.Fatalf("failed to read kernel chunk: %v", err)
	}
	// slice 0 misses the left neighbor: 0.5*1 + 0.25*2 = 1
	want := []float64{1, 0.25*1 + 0.5*2 + 0.25*4, 0.5*4 + 0.25*2}
	for i, expected := range want {
		if !almostEqual(data.At(0, i, 0, 0), expected) {
			t.Errorf("slice %d: expected %v, got %v", i, expected, data.At(0, i, 0, 0))
		}
	}
}

func TestWindowTimeKernelAllNaN(t *testing.T) {
	v := newTestView(t, 1, 1, 2)
	c := newSliceCube(t, v, []float64{math.NaN(), math.NaN()})
	c.chunkSize = [3]int{2, 1, 1}

	w, _ := NewWindowTimeCubeKernel(c, []float64{1, 1, 1}, 1, 1)
	data, _ := w.ReadChunk(0)
	for i := 0; i < 2; i++ {
		if !math.IsNaN(data.At(0, i, 0, 0)) {
			t.Errorf("slice %d: expected NaN, got %v", i, data.At(0, i, 0, 0))
		}
	}
}

func TestWindowTimeValidation(t *testing.T) {
	v := newTestView(t, 1, 1, 4)
	c := newSliceCube(t, v, []float64{1, 2, 3, 4})
	if _, err := NewWindowTimeCubeReduce(c, []ReducerBand{{"mean", "band1"}}, 2, 0); err == nil {
		t.Errorf("expected error for window larger than temporal chunk size")
	}
	if _, err := NewWindowTimeCubeKernel(c, []float64{1, 1}, 1, 1); err == nil {
		t.Errorf("expected error for kernel length mismatch")
	}
}
