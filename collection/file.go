package collection

import (
	"fmt"
	"io/ioutil"
	"sort"
)

// ImageEntry is one source raster in a file collection: its GDAL
// descriptor, acquisition datetime, bounding box and band assignments
// (band name to 1-based band number inside the dataset).
type ImageEntry struct {
	Descriptor string         `json:"descriptor"`
	Datetime   string         `json:"datetime"`
	Left       float64        `json:"left"`
	Right      float64        `json:"right"`
	Bottom     float64        `json:"bottom"`
	Top        float64        `json:"top"`
	Bands      map[string]int `json:"bands"`
}

// Document is the JSON layout of a file collection.
type Document struct {
	Bands  []BandsRow   `json:"bands"`
	Images []ImageEntry `json:"images"`
}

// FileCollection holds a small catalog fully in memory, backed by a JSON
// document. A collection created directly from a Document is temporary
// and cannot be serialized until written to a file.
type FileCollection struct {
	doc      Document
	filename string
}

func OpenFile(path string) (*FileCollection, error) {
	data, err := ioutil.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read image collection %s: %v", path, err)
	}
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse image collection %s: %v", path, err)
	}
	return &FileCollection{doc: doc, filename: path}, nil
}

// NewMemoryCollection wraps an in-memory document, mainly for tests.
func NewMemoryCollection(doc Document) *FileCollection {
	return &FileCollection{doc: doc}
}

// Write stores the collection as a JSON file and makes it durable.
func (c *FileCollection) Write(path string) error {
	data, err := json.MarshalIndent(&c.doc, "", "  ")
	if err != nil {
		return err
	}
	if err := ioutil.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write image collection %s: %v", path, err)
	}
	c.filename = path
	return nil
}

func (c *FileCollection) GetBands() ([]BandsRow, error) {
	out := make([]BandsRow, len(c.doc.Bands))
	copy(out, c.doc.Bands)
	return out, nil
}

func (c *FileCollection) FindRangeST(q STQuery) ([]FindRangeSTRow, error) {
	t0 := normalizeDatetime(q.T0)
	t1 := normalizeDatetime(q.T1)
	var out []FindRangeSTRow
	for _, img := range c.doc.Images {
		if img.Right < q.Left || img.Left > q.Right || img.Top < q.Bottom || img.Bottom > q.Top {
			continue
		}
		dt := normalizeDatetime(img.Datetime)
		if dt < t0 || dt > t1 {
			continue
		}
		for name, num := range img.Bands {
			out = append(out, FindRangeSTRow{
				Descriptor: img.Descriptor,
				Datetime:   img.Datetime,
				BandName:   name,
				BandNum:    num,
			})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Descriptor != out[j].Descriptor {
			return out[i].Descriptor < out[j].Descriptor
		}
		return out[i].BandNum < out[j].BandNum
	})
	return out, nil
}

// normalizeDatetime pads an ISO datetime prefix to full seconds
// precision so datetimes of mixed precision compare lexically.
func normalizeDatetime(s string) string {
	const template = "0001-01-01T00:00:00"
	if len(s) >= len(template) {
		return s[:len(template)]
	}
	return s + template[len(s):]
}

func (c *FileCollection) IsTemporary() bool {
	return len(c.filename) == 0
}

func (c *FileCollection) Filename() string {
	return c.filename
}

func (c *FileCollection) Close() error {
	return nil
}
