package cube

// ImageMask decides, per mask-band pixel, whether all bands of that
// pixel are discarded after temporal aggregation.
type ImageMask interface {
	// Apply sets pixelBuf (nb planes of ny*nx) to NaN wherever the mask
	// predicate triggers on maskBuf (one ny*nx plane).
	Apply(maskBuf []float64, pixelBuf [][]float64)

	AsJSON() map[string]interface{}
}

// ValueMask masks pixels whose mask-band value is in Values, or not in
// Values when inverted.
type ValueMask struct {
	Values map[float64]bool
	Invert bool
}

func NewValueMask(values []float64, invert bool) *ValueMask {
	set := make(map[float64]bool, len(values))
	for _, v := range values {
		set[v] = true
	}
	return &ValueMask{Values: set, Invert: invert}
}

func (m *ValueMask) Apply(maskBuf []float64, pixelBuf [][]float64) {
	for i, v := range maskBuf {
		if m.Values[v] != m.Invert {
			for _, plane := range pixelBuf {
				plane[i] = nan
			}
		}
	}
}

func (m *ValueMask) AsJSON() map[string]interface{} {
	values := make([]interface{}, 0, len(m.Values))
	for v := range m.Values {
		values = append(values, v)
	}
	sortJSONNumbers(values)
	return map[string]interface{}{
		"mask_type": "value_mask",
		"values":    values,
		"invert":    m.Invert,
	}
}

// RangeMask masks pixels with min <= v <= max, or outside the range when
// inverted.
type RangeMask struct {
	Min    float64
	Max    float64
	Invert bool
}

func NewRangeMask(min, max float64, invert bool) *RangeMask {
	return &RangeMask{Min: min, Max: max, Invert: invert}
}

func (m *RangeMask) Apply(maskBuf []float64, pixelBuf [][]float64) {
	for i, v := range maskBuf {
		// NaN compares false on both sides and is never masked
		var masked bool
		if m.Invert {
			masked = v < m.Min || v > m.Max
		} else {
			masked = v >= m.Min && v <= m.Max
		}
		if masked {
			for _, plane := range pixelBuf {
				plane[i] = nan
			}
		}
	}
}

func (m *RangeMask) AsJSON() map[string]interface{} {
	return map[string]interface{}{
		"mask_type": "range_mask",
		"min":       m.Min,
		"max":       m.Max,
		"invert":    m.Invert,
	}
}

func sortJSONNumbers(values []interface{}) {
	for i := 1; i < len(values); i++ {
		for j := i; j > 0 && values[j].(float64) < values[j-1].(float64); j-- {
			values[j], values[j-1] = values[j-1], values[j]
		}
	}
}
