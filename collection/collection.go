// Package collection is the engine's interface to an image collection
// catalog: an external store that knows every source raster, its bands
// and its spatio-temporal footprint. The engine makes no assumption
// about how a catalog is materialized; a Postgres index and a plain JSON
// file are provided.
package collection

import (
	"fmt"
	"strings"
)

// BandsRow describes one band of the collection.
type BandsRow struct {
	Name   string  `json:"name"`
	Type   string  `json:"type"`
	Offset float64 `json:"offset"`
	Scale  float64 `json:"scale"`
	Unit   string  `json:"unit"`
	Nodata string  `json:"nodata"`
}

// FindRangeSTRow is one (dataset, band) assignment whose footprint
// intersects a query window. Rows with equal Descriptor belong to the
// same source raster and are returned contiguously so the reader can
// open each dataset once.
type FindRangeSTRow struct {
	Descriptor string `json:"descriptor"`
	Datetime   string `json:"datetime"`
	BandName   string `json:"band_name"`
	BandNum    int    `json:"band_num"`
}

// STQuery is a spatio-temporal query window. The spatial box is
// interpreted in the collection's storage SRS; the temporal interval is
// inclusive on both ends, with ISO datetime strings.
type STQuery struct {
	Left   float64
	Right  float64
	Bottom float64
	Top    float64
	T0     string
	T1     string
}

type Collection interface {
	// GetBands lists the collection bands, ordered and stable.
	GetBands() ([]BandsRow, error)

	// FindRangeST returns every (dataset, band) intersecting q, ordered
	// by descriptor then band number. The order is deterministic per
	// query; FIRST/LAST temporal aggregation depends on it.
	FindRangeST(q STQuery) ([]FindRangeSTRow, error)

	// IsTemporary reports whether the collection has no durable backing
	// and therefore cannot be referenced from a serialized cube graph.
	IsTemporary() bool

	// Filename returns the durable reference used for serialization.
	Filename() string

	Close() error
}

// Open dispatches on the collection URI: postgres DSNs open a catalog
// database, anything ending in .json loads a file collection.
func Open(uri string, memcacheAddr string) (Collection, error) {
	if strings.HasPrefix(uri, "postgres://") || strings.HasPrefix(uri, "postgresql://") {
		return OpenPostgres(uri, memcacheAddr)
	}
	if strings.HasSuffix(uri, ".json") {
		return OpenFile(uri)
	}
	return nil, fmt.Errorf("unsupported image collection reference: %s", uri)
}
