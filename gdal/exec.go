package gdal

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io/ioutil"
	"math"
	"os"
	"os/exec"

	"github.com/maesbri-forks-geo/gdalcubes/utils"
)

// ExecWarper warps through the gdal_translate and gdalwarp binaries, the
// same external-process arrangement the worker pool uses for tile
// rendering. Each call first composes a cropped VRT (a metadata-only
// step) and then warps it into a raw Float64 ENVI target which is read
// back into memory. All temp files live under TempDir and are removed
// before returning.
type ExecWarper struct {
	TranslateBin string
	WarpBin      string
	TempDir      string
}

func NewExecWarper(cfg *utils.Config) *ExecWarper {
	return &ExecWarper{
		TranslateBin: cfg.TranslateBin,
		WarpBin:      cfg.WarpBin,
		TempDir:      cfg.TempDir,
	}
}

func (w *ExecWarper) Warp(descriptor string, bandNums []int, p WarpParams) (*Raster, error) {
	if len(bandNums) == 0 {
		return nil, fmt.Errorf("no bands requested from %s", descriptor)
	}
	if err := ValidateExtraArgs(p.ExtraArgs); err != nil {
		return nil, err
	}

	vrtFile := utils.TempFilename(w.TempDir, "warp_", ".vrt")
	defer os.Remove(vrtFile)

	args := append(BuildTranslateArgs(bandNums, p), descriptor, vrtFile)
	if err := runTool(w.TranslateBin, args); err != nil {
		return nil, fmt.Errorf("failed to open %s: %v", descriptor, err)
	}

	outFile := utils.TempFilename(w.TempDir, "warp_", ".bsq")
	defer removeENVIOutput(outFile)

	args = append([]string{"-q"}, BuildWarpArgs(p)...)
	args = append(args, vrtFile, outFile)
	if err := runTool(w.WarpBin, args); err != nil {
		return nil, fmt.Errorf("failed to warp %s: %v", descriptor, err)
	}

	return readENVIFloat64(outFile, p.Width, p.Height, len(bandNums))
}

func runTool(bin string, args []string) error {
	cmd := exec.Command(bin, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		msg := stderr.String()
		if len(msg) > 0 {
			return fmt.Errorf("%s: %v: %s", bin, err, msg)
		}
		return fmt.Errorf("%s: %v", bin, err)
	}
	return nil
}

// readENVIFloat64 loads a band-sequential Float64 raster written by
// gdalwarp. ENVI rasters carry host byte order; the engine assumes a
// little-endian host, matching every platform the module targets.
func readENVIFloat64(path string, width, height, nBands int) (*Raster, error) {
	data, err := ioutil.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read warp output %s: %v", path, err)
	}

	nPixels := width * height
	want := nPixels * nBands * 8
	if len(data) != want {
		return nil, fmt.Errorf("warp output %s has %d bytes, expected %d", path, len(data), want)
	}

	out := &Raster{Width: width, Height: height, Bands: make([][]float64, nBands)}
	for b := 0; b < nBands; b++ {
		band := make([]float64, nPixels)
		base := b * nPixels * 8
		for i := 0; i < nPixels; i++ {
			bits := binary.LittleEndian.Uint64(data[base+i*8:])
			band[i] = math.Float64frombits(bits)
		}
		out.Bands[b] = band
	}
	return out, nil
}

func removeENVIOutput(path string) {
	os.Remove(path)
	os.Remove(path + ".hdr")
	os.Remove(path + ".aux.xml")
}
