package collection

import (
	"io/ioutil"
	"os"
	"path/filepath"
	"testing"
)

func testDocument() Document {
	return Document{
		Bands: []BandsRow{
			{Name: "B1", Type: "int16", Scale: 1, Nodata: "0"},
			{Name: "B2", Type: "int16", Scale: 1},
		},
		Images: []ImageEntry{
			{Descriptor: "b.tif", Datetime: "2018-01-02", Left: 0, Right: 10, Bottom: 0, Top: 10,
				Bands: map[string]int{"B1": 1}},
			{Descriptor: "a.tif", Datetime: "2018-01-01", Left: 0, Right: 10, Bottom: 0, Top: 10,
				Bands: map[string]int{"B2": 2, "B1": 1}},
			{Descriptor: "far.tif", Datetime: "2018-01-01", Left: 100, Right: 110, Bottom: 0, Top: 10,
				Bands: map[string]int{"B1": 1}},
			{Descriptor: "late.tif", Datetime: "2019-06-01", Left: 0, Right: 10, Bottom: 0, Top: 10,
				Bands: map[string]int{"B1": 1}},
		},
	}
}

func TestFileCollectionGetBands(t *testing.T) {
	c := NewMemoryCollection(testDocument())
	bands, err := c.GetBands()
	if err != nil {
		t.Fatalf("failed to list bands: %v", err)
	}
	if len(bands) != 2 || bands[0].Name != "B1" || bands[1].Name != "B2" {
		t.Errorf("unexpected bands: %v", bands)
	}
}

func TestFileCollectionFindRangeST(t *testing.T) {
	c := NewMemoryCollection(testDocument())
	rows, err := c.FindRangeST(STQuery{
		Left: 0, Right: 5, Bottom: 0, Top: 5,
		T0: "2018-01-01", T1: "2018-12-31",
	})
	if err != nil {
		t.Fatalf("query failed: %v", err)
	}

	// far.tif is outside the box, late.tif outside the time range
	if len(rows) != 3 {
		t.Fatalf("expected 3 rows, got %d: %v", len(rows), rows)
	}
	// ordered by descriptor, then band number; equal descriptors contiguous
	if rows[0].Descriptor != "a.tif" || rows[0].BandNum != 1 {
		t.Errorf("unexpected first row: %v", rows[0])
	}
	if rows[1].Descriptor != "a.tif" || rows[1].BandNum != 2 {
		t.Errorf("unexpected second row: %v", rows[1])
	}
	if rows[2].Descriptor != "b.tif" {
		t.Errorf("unexpected third row: %v", rows[2])
	}
}

func TestFileCollectionTemporalBoundsInclusive(t *testing.T) {
	c := NewMemoryCollection(testDocument())
	rows, err := c.FindRangeST(STQuery{
		Left: 0, Right: 10, Bottom: 0, Top: 10,
		T0: "2018-01-02", T1: "2018-01-02",
	})
	if err != nil {
		t.Fatalf("query failed: %v", err)
	}
	if len(rows) != 1 || rows[0].Descriptor != "b.tif" {
		t.Errorf("expected only b.tif, got %v", rows)
	}
}

func TestFileCollectionMixedPrecisionDatetimes(t *testing.T) {
	c := NewMemoryCollection(testDocument())
	rows, err := c.FindRangeST(STQuery{
		Left: 0, Right: 10, Bottom: 0, Top: 10,
		T0: "2018-01-01T00:00:00", T1: "2018-01-01T23:59:59",
	})
	if err != nil {
		t.Fatalf("query failed: %v", err)
	}
	if len(rows) != 2 {
		t.Errorf("expected the two a.tif rows, got %v", rows)
	}
}

func TestFileCollectionWriteAndOpen(t *testing.T) {
	dir, err := ioutil.TempDir("", "collection_test_")
	if err != nil {
		t.Fatalf("failed to create temp dir: %v", err)
	}
	defer os.RemoveAll(dir)

	c := NewMemoryCollection(testDocument())
	if !c.IsTemporary() {
		t.Errorf("memory collection must be temporary")
	}

	path := filepath.Join(dir, "collection.json")
	if err := c.Write(path); err != nil {
		t.Fatalf("failed to write collection: %v", err)
	}
	if c.IsTemporary() || c.Filename() != path {
		t.Errorf("written collection must be durable")
	}

	reopened, err := Open(path, "")
	if err != nil {
		t.Fatalf("failed to reopen collection: %v", err)
	}
	bands, err := reopened.GetBands()
	if err != nil || len(bands) != 2 {
		t.Errorf("reopened collection lost bands: %v (%v)", bands, err)
	}
}

func TestOpenUnsupported(t *testing.T) {
	if _, err := Open("ftp://catalog", ""); err == nil {
		t.Errorf("expected error for unsupported collection reference")
	}
}
