package cube

import (
	"math"
	"testing"
)

func TestSelectBandsProjection(t *testing.T) {
	v := newTestView(t, 3, 2, 2)
	b1, _ := NewDummyCube(v, 1, 1.0)
	b2, _ := NewDummyCube(v, 1, 2.0)
	joined, err := NewJoinBandsCube(b1, b2, "A", "B")
	if err != nil {
		t.Fatalf("failed to join cubes: %v", err)
	}

	selected, err := NewSelectBandsCube(joined, []string{"B.band1"})
	if err != nil {
		t.Fatalf("failed to select bands: %v", err)
	}
	if selected.Bands().Count() != 1 {
		t.Fatalf("expected 1 band, got %d", selected.Bands().Count())
	}

	for id := 0; id < selected.CountChunks(); id++ {
		full, err := joined.ReadChunk(ChunkID(id))
		if err != nil {
			t.Fatalf("failed to read joined chunk %d: %v", id, err)
		}
		proj, err := selected.ReadChunk(ChunkID(id))
		if err != nil {
			t.Fatalf("failed to read selected chunk %d: %v", id, err)
		}
		for tt := 0; tt < proj.NT; tt++ {
			want := full.Slice(1, tt)
			got := proj.Slice(0, tt)
			for i := range got {
				if got[i] != want[i] && !(math.IsNaN(got[i]) && math.IsNaN(want[i])) {
					t.Errorf("chunk %d slice %d pixel %d: expected %v, got %v", id, tt, i, want[i], got[i])
				}
			}
		}
	}
}

func TestSelectBandsUnknownBand(t *testing.T) {
	v := newTestView(t, 2, 2, 1)
	c, _ := NewDummyCube(v, 1, 0)
	if _, err := NewSelectBandsCube(c, []string{"nope"}); err == nil {
		t.Errorf("expected error for unknown band")
	}
}

func TestJoinBandsConcatenation(t *testing.T) {
	v := newTestView(t, 3, 2, 2)
	a, _ := NewDummyCube(v, 2, 1.0)
	b, _ := NewDummyCube(v, 1, 2.0)

	joined, err := NewJoinBandsCube(a, b, "A", "B")
	if err != nil {
		t.Fatalf("failed to join cubes: %v", err)
	}
	wantNames := []string{"A.band1", "A.band2", "B.band1"}
	for i, want := range wantNames {
		if got := joined.Bands().Get(i).Name; got != want {
			t.Errorf("band %d: expected %q, got %q", i, want, got)
		}
	}

	data, err := joined.ReadChunk(0)
	if err != nil {
		t.Fatalf("failed to read joined chunk: %v", err)
	}
	if data.NB != 3 {
		t.Fatalf("expected 3 bands, got %d", data.NB)
	}
	if data.At(0, 0, 0, 0) != 1.0 || data.At(1, 0, 0, 0) != 1.0 || data.At(2, 0, 0, 0) != 2.0 {
		t.Errorf("unexpected joined values: %v %v %v",
			data.At(0, 0, 0, 0), data.At(1, 0, 0, 0), data.At(2, 0, 0, 0))
	}
}

func TestJoinBandsNameCollision(t *testing.T) {
	v := newTestView(t, 2, 2, 1)
	a, _ := NewDummyCube(v, 1, 1.0)
	b, _ := NewDummyCube(v, 1, 2.0)
	if _, err := NewJoinBandsCube(a, b, "", ""); err == nil {
		t.Errorf("expected band name collision error")
	}
}

func TestJoinBandsViewMismatch(t *testing.T) {
	a, _ := NewDummyCube(newTestView(t, 2, 2, 1), 1, 1.0)
	b, _ := NewDummyCube(newTestView(t, 4, 2, 1), 1, 2.0)
	if _, err := NewJoinBandsCube(a, b, "A", "B"); err == nil {
		t.Errorf("expected error for mismatched views")
	}

	c, _ := NewDummyCube(newTestView(t, 2, 2, 1), 1, 1.0)
	d, _ := NewDummyCube(newTestView(t, 2, 2, 1), 1, 2.0)
	d.SetChunkSize(1, 2, 2)
	if _, err := NewJoinBandsCube(c, d, "A", "B"); err == nil {
		t.Errorf("expected error for mismatched chunk sizes")
	}
}
