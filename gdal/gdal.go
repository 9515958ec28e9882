// Package gdal is the engine's view of the geospatial backend: opening a
// source raster, cropping it to a target window and warping it onto the
// cube's pixel grid. The engine only depends on the Warper interface;
// the default implementation drives the gdal_translate and gdalwarp
// binaries as external processes.
package gdal

import (
	"fmt"
	"strconv"
)

// Raster holds the warped result: Width x Height pixels of Float64 per
// requested band, row major, NaN where the warp produced no data.
type Raster struct {
	Width  int
	Height int
	Bands  [][]float64
}

// WarpParams describes one warp onto the cube grid.
type WarpParams struct {
	SRS        string
	Extent     [4]float64 // xmin, ymin, xmax, ymax in SRS
	Width      int
	Height     int
	Resampling string
	SrcNodata  string   // per-band nodata values, space separated; empty to omit
	ExtraArgs  []string // user supplied, validated against the reserved flags
}

type Warper interface {
	// Warp opens the source raster identified by descriptor, selects the
	// given 1-based band numbers and warps them onto the target grid.
	Warp(descriptor string, bandNums []int, p WarpParams) (*Raster, error)
}

// reservedWarpFlags are controlled by the engine; user ExtraArgs must not
// override them.
var reservedWarpFlags = map[string]bool{
	"-of":        true,
	"-t_srs":     true,
	"-te":        true,
	"-te_srs":    true,
	"-ts":        true,
	"-r":         true,
	"-srcnodata": true,
	"-dstnodata": true,
	"-ot":        true,
	"-overwrite": true,
}

// ValidateExtraArgs rejects user warp arguments that would override the
// engine controlled parameter set.
func ValidateExtraArgs(args []string) error {
	for _, a := range args {
		if reservedWarpFlags[a] {
			return fmt.Errorf("warp argument %s is controlled by the engine and must not be overridden", a)
		}
	}
	return nil
}

// BuildWarpArgs renders the gdalwarp parameter set for p, excluding the
// source and destination operands.
func BuildWarpArgs(p WarpParams) []string {
	args := []string{
		"-of", "ENVI",
		"-co", "INTERLEAVE=BSQ",
		"-t_srs", p.SRS,
		"-te",
		formatFloat(p.Extent[0]), formatFloat(p.Extent[1]),
		formatFloat(p.Extent[2]), formatFloat(p.Extent[3]),
		"-te_srs", p.SRS,
		"-ts", strconv.Itoa(p.Width), strconv.Itoa(p.Height),
		"-r", p.Resampling,
	}
	if len(p.SrcNodata) > 0 {
		args = append(args, "-srcnodata", p.SrcNodata)
	}
	args = append(args,
		"-dstnodata", "nan",
		"-ot", "Float64",
		"-overwrite",
	)
	args = append(args, p.ExtraArgs...)
	return args
}

// BuildTranslateArgs renders the gdal_translate parameters that crop the
// source to the chunk window as a metadata-only VRT.
func BuildTranslateArgs(bandNums []int, p WarpParams) []string {
	args := []string{"-q", "-of", "VRT"}
	for _, b := range bandNums {
		args = append(args, "-b", strconv.Itoa(b))
	}
	args = append(args,
		"-projwin",
		formatFloat(p.Extent[0]), formatFloat(p.Extent[3]),
		formatFloat(p.Extent[2]), formatFloat(p.Extent[1]),
		"-projwin_srs", p.SRS,
	)
	return args
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
