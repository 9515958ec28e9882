package cube

import (
	"fmt"
	"strings"
	"time"

	"github.com/maesbri-forks-geo/gdalcubes/collection"
	"github.com/maesbri-forks-geo/gdalcubes/gdal"
	"github.com/maesbri-forks-geo/gdalcubes/metrics"
)

// ImageCollectionCube is the leaf cube that reads from an image
// collection. For each chunk it selects the contributing source rasters,
// warps them onto the chunk grid and resolves overlapping acquisitions
// with the view's temporal aggregation method.
type ImageCollectionCube struct {
	baseCube
	collection collection.Collection
	warper     gdal.Warper
	logger     metrics.Logger

	inputBands map[string]collection.BandsRow
	maskBand   string
	mask       ImageMask
	warpArgs   []string
}

func NewImageCollectionCube(coll collection.Collection, v *View, w gdal.Warper, logger metrics.Logger) (*ImageCollectionCube, error) {
	if err := v.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = metrics.NewDiscardLogger()
	}

	rows, err := coll.GetBands()
	if err != nil {
		return nil, fmt.Errorf("failed to list collection bands: %v", err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("image collection has no bands")
	}

	c := &ImageCollectionCube{
		baseCube:   newBaseCube(v.Copy()),
		collection: coll,
		warper:     w,
		logger:     logger,
		inputBands: map[string]collection.BandsRow{},
	}
	for _, r := range rows {
		c.inputBands[r.Name] = r
		if err := c.bands.Add(Band{
			Name: r.Name, Offset: r.Offset, Scale: r.Scale,
			Unit: r.Unit, NoData: r.Nodata, Type: r.Type,
		}); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// SetChunkSize changes the chunking of the leaf cube.
func (c *ImageCollectionCube) SetChunkSize(ct, cy, cx int) {
	c.chunkSize = [3]int{ct, cy, cx}
}

// SelectBands restricts the cube to a subset of the collection bands, in
// the given order.
func (c *ImageCollectionCube) SelectBands(names []string) error {
	selected := NewBandCollection()
	for _, name := range names {
		idx, ok := c.bands.GetIndex(name)
		if !ok {
			return fmt.Errorf("band %q does not exist in image collection", name)
		}
		if err := selected.Add(c.bands.Get(idx)); err != nil {
			return err
		}
	}
	if selected.Count() == 0 {
		return fmt.Errorf("band selection is empty")
	}
	c.bands = selected
	return nil
}

// SetMask configures a per-pixel mask on one collection band. The mask
// band is read internally and removed from the cube's band list. An
// unknown band leaves the mask unchanged and logs an error event.
func (c *ImageCollectionCube) SetMask(band string, mask ImageMask) {
	if _, ok := c.inputBands[band]; !ok {
		c.logger.Log(metrics.Error(fmt.Sprintf("band %q does not exist in image collection, image mask will not be modified", band)))
		return
	}
	c.maskBand = band
	c.mask = mask

	if c.bands.Has(band) {
		remaining := NewBandCollection()
		for i := 0; i < c.bands.Count(); i++ {
			if b := c.bands.Get(i); b.Name != band {
				remaining.Add(b)
			}
		}
		c.bands = remaining
	}
}

// SetWarpArgs stores additional gdalwarp arguments, e.g. overview or
// performance settings. Arguments controlled by the engine are rejected.
func (c *ImageCollectionCube) SetWarpArgs(args []string) error {
	if err := gdal.ValidateExtraArgs(args); err != nil {
		return err
	}
	c.warpArgs = args
	return nil
}

func (c *ImageCollectionCube) ReadChunk(id ChunkID) (*ChunkData, error) {
	start := time.Now()
	nb := c.bands.Count()
	if !c.validChunk(id) {
		return NewEmptyChunk(nb, 0, 0, 0), nil
	}

	size := c.ChunkSize(id)
	bounds := c.BoundsFromChunk(id)

	rows, err := c.collection.FindRangeST(collection.STQuery{
		Left: bounds.S.Left, Right: bounds.S.Right,
		Bottom: bounds.S.Bottom, Top: bounds.S.Top,
		T0: bounds.T0.String(), T1: bounds.T1.String(),
	})
	if err != nil {
		return nil, fmt.Errorf("image query failed for chunk %d: %v", id, err)
	}
	if len(rows) == 0 {
		return NewEmptyChunk(nb, size[0], size[1], size[2]), nil
	}

	// the mask band is carried as one extra plane set past the cube bands
	hasMask := c.mask != nil
	nbFull := nb
	if hasMask {
		nbFull++
	}
	full := NewChunkData(nbFull, size[0], size[1], size[2])
	agg := newAggregationState(c.view.Aggregation)
	warnedUnit := false

	i := 0
	for i < len(rows) {
		descriptor := rows[i].Descriptor
		batchStart := i
		for i < len(rows) && rows[i].Descriptor == descriptor {
			i++
		}
		batch := rows[batchStart:i]

		var bandNums []int
		var targets []int
		var nodata []string
		allNodata := true
		for _, r := range batch {
			target := -1
			if idx, ok := c.bands.GetIndex(r.BandName); ok {
				target = idx
			} else if hasMask && r.BandName == c.maskBand {
				target = nb
			}
			if target < 0 {
				continue
			}
			bandNums = append(bandNums, r.BandNum)
			targets = append(targets, target)
			nd := c.inputBands[r.BandName].Nodata
			if len(nd) == 0 {
				allNodata = false
			}
			nodata = append(nodata, nd)
		}
		if len(bandNums) == 0 {
			continue
		}

		srcNodata := ""
		if allNodata {
			srcNodata = strings.Join(nodata, " ")
		}

		raster, err := c.warper.Warp(descriptor, bandNums, gdal.WarpParams{
			SRS:        c.view.SRS,
			Extent:     [4]float64{bounds.S.Left, bounds.S.Bottom, bounds.S.Right, bounds.S.Top},
			Width:      size[2],
			Height:     size[1],
			Resampling: c.view.Resampling.String(),
			SrcNodata:  srcNodata,
			ExtraArgs:  c.warpArgs,
		})
		if err != nil {
			return nil, fmt.Errorf("chunk %d: %v", id, err)
		}

		// all bands of one dataset share an acquisition datetime
		dt, err := ParseDatetime(batch[0].Datetime)
		if err != nil {
			return nil, fmt.Errorf("chunk %d: image %s: %v", id, descriptor, err)
		}
		if dt.Unit() < c.view.DT.Unit && !warnedUnit {
			c.logger.Log(metrics.Warn(fmt.Sprintf(
				"image datetime unit coarsened from %s to %s", dt.Unit(), c.view.DT.Unit)))
			warnedUnit = true
		}
		diff := dt.WithUnit(c.view.DT.Unit).Sub(bounds.T0)
		slice, err := diff.Div(c.view.DT)
		if err != nil || diff.Count < 0 || slice >= size[0] {
			continue
		}

		for k, target := range targets {
			agg.update(full.Slice(target, slice), raster.Bands[k], target, slice)
		}
	}
	agg.finalize()

	out := full
	if hasMask {
		planes := make([][]float64, nb)
		for t := 0; t < size[0]; t++ {
			for b := 0; b < nb; b++ {
				planes[b] = full.Slice(b, t)
			}
			c.mask.Apply(full.Slice(nb, t), planes)
		}
		out = NewChunkData(nb, size[0], size[1], size[2])
		copy(out.Buf, full.Buf[:len(out.Buf)])
	}

	c.logger.Log(metrics.Info("read_chunk").
		WithChunk("image_collection", int(id)).
		WithDuration(time.Since(start)))
	return out, nil
}

func (c *ImageCollectionCube) GraphJSON() (map[string]interface{}, error) {
	if c.collection.IsTemporary() {
		return nil, fmt.Errorf("image collection is temporary and cannot be serialized, write it to a file first")
	}
	view, err := viewToJSONObject(c.view)
	if err != nil {
		return nil, err
	}
	out := map[string]interface{}{
		"cube_type":  "image_collection",
		"file":       c.collection.Filename(),
		"view":       view,
		"chunk_size": []interface{}{float64(c.chunkSize[0]), float64(c.chunkSize[1]), float64(c.chunkSize[2])},
	}
	if c.mask != nil {
		out["mask"] = c.mask.AsJSON()
		out["mask_band"] = c.maskBand
	}
	if len(c.warpArgs) > 0 {
		args := make([]interface{}, len(c.warpArgs))
		for i, a := range c.warpArgs {
			args[i] = a
		}
		out["warp_args"] = args
	}
	if c.bands.Count() != len(c.inputBands)-maskCount(c) {
		out["bands"] = stringsToJSON(c.bands.Names())
	}
	return out, nil
}

func maskCount(c *ImageCollectionCube) int {
	if c.mask != nil {
		return 1
	}
	return 0
}

func viewToJSONObject(v *View) (map[string]interface{}, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var obj map[string]interface{}
	if err := json.Unmarshal(data, &obj); err != nil {
		return nil, err
	}
	return obj, nil
}

func stringsToJSON(values []string) []interface{} {
	out := make([]interface{}, len(values))
	for i, v := range values {
		out[i] = v
	}
	return out
}
