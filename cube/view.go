package cube

import (
	"fmt"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// ResamplingMethod selects the gdalwarp resampling kernel.
type ResamplingMethod int

const (
	ResamplingNear ResamplingMethod = iota
	ResamplingBilinear
	ResamplingCubic
	ResamplingCubicSpline
	ResamplingLanczos
	ResamplingAverage
	ResamplingMode
)

var resamplingNames = map[ResamplingMethod]string{
	ResamplingNear:        "near",
	ResamplingBilinear:    "bilinear",
	ResamplingCubic:       "cubic",
	ResamplingCubicSpline: "cubicspline",
	ResamplingLanczos:     "lanczos",
	ResamplingAverage:     "average",
	ResamplingMode:        "mode",
}

func (r ResamplingMethod) String() string {
	return resamplingNames[r]
}

func ParseResampling(s string) (ResamplingMethod, error) {
	for k, v := range resamplingNames {
		if v == s {
			return k, nil
		}
	}
	return ResamplingNear, fmt.Errorf("unknown resampling method: %q", s)
}

// AggregationMethod resolves overlapping acquisitions that fall into the
// same temporal slice.
type AggregationMethod int

const (
	AggregationNone AggregationMethod = iota
	AggregationMin
	AggregationMax
	AggregationMean
	AggregationMedian
	AggregationFirst
	AggregationLast
)

var aggregationNames = map[AggregationMethod]string{
	AggregationNone:   "none",
	AggregationMin:    "min",
	AggregationMax:    "max",
	AggregationMean:   "mean",
	AggregationMedian: "median",
	AggregationFirst:  "first",
	AggregationLast:   "last",
}

func (a AggregationMethod) String() string {
	return aggregationNames[a]
}

func ParseAggregation(s string) (AggregationMethod, error) {
	for k, v := range aggregationNames {
		if v == s {
			return k, nil
		}
	}
	return AggregationNone, fmt.Errorf("unknown aggregation method: %q", s)
}

// View is a cube's spatio-temporal reference plus the resampling and
// temporal aggregation policy used when reading from an image
// collection.
type View struct {
	STReference
	Resampling  ResamplingMethod
	Aggregation AggregationMethod
}

func (v *View) Copy() *View {
	out := *v
	return &out
}

type viewSpaceJSON struct {
	Left   float64 `json:"left"`
	Right  float64 `json:"right"`
	Bottom float64 `json:"bottom"`
	Top    float64 `json:"top"`
	SRS    string  `json:"srs"`
	DX     float64 `json:"dx"`
	DY     float64 `json:"dy"`
}

type viewTimeJSON struct {
	T0 string `json:"t0"`
	T1 string `json:"t1"`
	DT string `json:"dt"`
}

type viewJSON struct {
	Space       viewSpaceJSON `json:"space"`
	Time        viewTimeJSON  `json:"time"`
	Resampling  string        `json:"resampling"`
	Aggregation string        `json:"aggregation"`
}

func (v *View) MarshalJSON() ([]byte, error) {
	return json.Marshal(viewJSON{
		Space: viewSpaceJSON{
			Left: v.Left, Right: v.Right, Bottom: v.Bottom, Top: v.Top,
			SRS: v.SRS, DX: v.DX, DY: v.DY,
		},
		Time: viewTimeJSON{
			T0: v.T0.String(), T1: v.T1.String(), DT: v.DT.String(),
		},
		Resampling:  v.Resampling.String(),
		Aggregation: v.Aggregation.String(),
	})
}

func (v *View) UnmarshalJSON(data []byte) error {
	var j viewJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return err
	}
	parsed, err := viewFromJSON(j)
	if err != nil {
		return err
	}
	*v = *parsed
	return nil
}

func viewFromJSON(j viewJSON) (*View, error) {
	t0, err := ParseDatetime(j.Time.T0)
	if err != nil {
		return nil, fmt.Errorf("invalid view t0: %v", err)
	}
	t1, err := ParseDatetime(j.Time.T1)
	if err != nil {
		return nil, fmt.Errorf("invalid view t1: %v", err)
	}
	dt, err := ParseDuration(j.Time.DT)
	if err != nil {
		return nil, fmt.Errorf("invalid view dt: %v", err)
	}
	resampling, err := ParseResampling(j.Resampling)
	if err != nil {
		return nil, err
	}
	aggregation, err := ParseAggregation(j.Aggregation)
	if err != nil {
		return nil, err
	}

	v := &View{
		STReference: STReference{
			Left: j.Space.Left, Right: j.Space.Right,
			Bottom: j.Space.Bottom, Top: j.Space.Top,
			SRS: j.Space.SRS, DX: j.Space.DX, DY: j.Space.DY,
			T0: t0, T1: t1, DT: dt,
		},
		Resampling:  resampling,
		Aggregation: aggregation,
	}
	if err := v.Validate(); err != nil {
		return nil, err
	}
	return v, nil
}

// ReadViewJSON parses a view from its JSON description.
func ReadViewJSON(data []byte) (*View, error) {
	var v View
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, err
	}
	return &v, nil
}
