// Package cube implements a chunked, lazily evaluated data cube model
// over georeferenced image collections. A cube is a dense 4-dimensional
// array (band, time, y, x) on a regular spatio-temporal grid; derived
// cubes form a DAG evaluated chunk by chunk on demand.
package cube

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// DurationUnit is the granularity of datetimes and durations, ordered
// from finest to coarsest.
type DurationUnit int

const (
	Seconds DurationUnit = iota
	Minutes
	Hours
	Days
	Months
	Years
)

func (u DurationUnit) String() string {
	switch u {
	case Years:
		return "years"
	case Months:
		return "months"
	case Days:
		return "days"
	case Hours:
		return "hours"
	case Minutes:
		return "minutes"
	default:
		return "seconds"
	}
}

// coarserUnit returns the coarser of two units.
func coarserUnit(a, b DurationUnit) DurationUnit {
	if a > b {
		return a
	}
	return b
}

// Duration is a calendar-aware (count, unit) pair.
type Duration struct {
	Count int
	Unit  DurationUnit
}

var isoDurationRe = regexp.MustCompile(`^P(?:(\d+)Y)?(?:(\d+)M)?(?:(\d+)D)?(?:T(?:(\d+)H)?(?:(\d+)M)?(?:(\d+)S)?)?$`)

// ParseDuration parses a single-component ISO-8601 duration string such
// as P1Y, P16D or PT30M.
func ParseDuration(s string) (Duration, error) {
	m := isoDurationRe.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return Duration{}, fmt.Errorf("invalid ISO-8601 duration: %q", s)
	}
	units := []DurationUnit{Years, Months, Days, Hours, Minutes, Seconds}
	var out Duration
	found := 0
	for i, u := range units {
		if len(m[i+1]) == 0 {
			continue
		}
		count, err := strconv.Atoi(m[i+1])
		if err != nil {
			return Duration{}, fmt.Errorf("invalid ISO-8601 duration: %q", s)
		}
		out = Duration{Count: count, Unit: u}
		found++
	}
	if found != 1 {
		return Duration{}, fmt.Errorf("duration %q must have exactly one component", s)
	}
	return out, nil
}

func (d Duration) String() string {
	switch d.Unit {
	case Years:
		return fmt.Sprintf("P%dY", d.Count)
	case Months:
		return fmt.Sprintf("P%dM", d.Count)
	case Days:
		return fmt.Sprintf("P%dD", d.Count)
	case Hours:
		return fmt.Sprintf("PT%dH", d.Count)
	case Minutes:
		return fmt.Sprintf("PT%dM", d.Count)
	default:
		return fmt.Sprintf("PT%dS", d.Count)
	}
}

func (d Duration) IsZero() bool {
	return d.Count == 0
}

func (d Duration) Mul(n int) Duration {
	return Duration{Count: d.Count * n, Unit: d.Unit}
}

// Div returns the integer quotient of two durations of the same unit.
// This is the only way an image is placed on the cube's time axis.
func (d Duration) Div(o Duration) (int, error) {
	if d.Unit != o.Unit {
		return 0, fmt.Errorf("cannot divide %s by %s: unit mismatch", d, o)
	}
	if o.Count == 0 {
		return 0, fmt.Errorf("cannot divide %s by zero duration", d)
	}
	return d.Count / o.Count, nil
}

// Datetime is an ISO-8601 instant carrying the resolution unit it was
// expressed in. Promoting to a coarser unit truncates.
type Datetime struct {
	t    time.Time
	unit DurationUnit
}

var datetimeLayouts = []struct {
	layout string
	unit   DurationUnit
}{
	{"2006-01-02T15:04:05", Seconds},
	{"2006-01-02T15:04", Minutes},
	{"2006-01-02T15", Hours},
	{"2006-01-02", Days},
	{"2006-01", Months},
	{"2006", Years},
}

// ParseDatetime parses an ISO-8601 prefix string; the resolution unit is
// inferred from the shortest layout that matches.
func ParseDatetime(s string) (Datetime, error) {
	clean := strings.TrimSpace(s)
	clean = strings.TrimSuffix(clean, "Z")
	clean = strings.Replace(clean, " ", "T", 1)
	if i := strings.IndexByte(clean, '.'); i >= 0 {
		clean = clean[:i]
	}
	for _, l := range datetimeLayouts {
		if len(clean) != len(l.layout) {
			continue
		}
		t, err := time.Parse(l.layout, clean)
		if err == nil {
			return Datetime{t: t.UTC(), unit: l.unit}, nil
		}
	}
	return Datetime{}, fmt.Errorf("invalid ISO-8601 datetime: %q", s)
}

func NewDatetime(t time.Time, unit DurationUnit) Datetime {
	return Datetime{t: t.UTC(), unit: unit}.truncate(unit)
}

func (d Datetime) Time() time.Time { return d.t }

func (d Datetime) Unit() DurationUnit { return d.unit }

func (d Datetime) IsZero() bool { return d.t.IsZero() }

func (d Datetime) Equal(o Datetime) bool {
	return d.unit == o.unit && d.t.Equal(o.t)
}

func (d Datetime) String() string {
	for _, l := range datetimeLayouts {
		if l.unit == d.unit {
			return d.t.Format(l.layout)
		}
	}
	return d.t.Format(datetimeLayouts[0].layout)
}

func (d Datetime) truncate(u DurationUnit) Datetime {
	t := d.t
	switch u {
	case Years:
		t = time.Date(t.Year(), 1, 1, 0, 0, 0, 0, time.UTC)
	case Months:
		t = time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
	case Days:
		t = time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	case Hours:
		t = time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), 0, 0, 0, time.UTC)
	case Minutes:
		t = time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), 0, 0, time.UTC)
	default:
		t = time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), 0, time.UTC)
	}
	return Datetime{t: t, unit: d.unit}
}

// WithUnit converts the datetime to another resolution unit, truncating
// when the new unit is coarser.
func (d Datetime) WithUnit(u DurationUnit) Datetime {
	out := d
	out.unit = u
	if u > d.unit {
		out = out.truncate(u)
	}
	return out
}

// Add applies a duration with calendar-exact arithmetic.
func (d Datetime) Add(dur Duration) Datetime {
	out := d
	switch dur.Unit {
	case Years:
		out.t = d.t.AddDate(dur.Count, 0, 0)
	case Months:
		out.t = d.t.AddDate(0, dur.Count, 0)
	case Days:
		out.t = d.t.AddDate(0, 0, dur.Count)
	case Hours:
		out.t = d.t.Add(time.Duration(dur.Count) * time.Hour)
	case Minutes:
		out.t = d.t.Add(time.Duration(dur.Count) * time.Minute)
	default:
		out.t = d.t.Add(time.Duration(dur.Count) * time.Second)
	}
	return out
}

// Sub returns the difference d - o as a duration in the coarser unit of
// the two operands.
func (d Datetime) Sub(o Datetime) Duration {
	u := coarserUnit(d.unit, o.unit)
	a := d.truncate(u).t
	b := o.truncate(u).t
	var count int
	switch u {
	case Years:
		count = a.Year() - b.Year()
	case Months:
		count = (a.Year()-b.Year())*12 + int(a.Month()) - int(b.Month())
	case Days:
		count = int(a.Sub(b).Hours() / 24)
	case Hours:
		count = int(a.Sub(b).Hours())
	case Minutes:
		count = int(a.Sub(b).Minutes())
	default:
		count = int(a.Sub(b).Seconds())
	}
	return Duration{Count: count, Unit: u}
}

// Before compares instants regardless of unit.
func (d Datetime) Before(o Datetime) bool {
	return d.t.Before(o.t)
}

// Bounds2D is a rectangular world-coordinate window.
type Bounds2D struct {
	Left   float64
	Right  float64
	Bottom float64
	Top    float64
}

// BoundsST is a spatio-temporal window.
type BoundsST struct {
	S  Bounds2D
	T0 Datetime
	T1 Datetime
}

// CoordsST is one spatio-temporal point.
type CoordsST struct {
	X float64
	Y float64
	T Datetime
}

// STReference defines the cube grid: world window, projection, pixel
// sizes and the time axis. It is immutable after construction.
type STReference struct {
	Left   float64
	Right  float64
	Bottom float64
	Top    float64
	SRS    string
	DX     float64
	DY     float64
	T0     Datetime
	T1     Datetime
	DT     Duration
}

func (s *STReference) Validate() error {
	if s.DX <= 0 || s.DY <= 0 {
		return fmt.Errorf("pixel sizes must be positive, got dx=%v dy=%v", s.DX, s.DY)
	}
	if s.Right <= s.Left {
		return fmt.Errorf("window right (%v) must be greater than left (%v)", s.Right, s.Left)
	}
	if s.Top <= s.Bottom {
		return fmt.Errorf("window top (%v) must be greater than bottom (%v)", s.Top, s.Bottom)
	}
	if s.DT.Count <= 0 {
		return fmt.Errorf("time step must be positive, got %s", s.DT)
	}
	if s.T1.t.Before(s.T0.t) {
		return fmt.Errorf("t1 (%s) must not precede t0 (%s)", s.T1, s.T0)
	}
	if s.NX() <= 0 || s.NY() <= 0 || s.NT() <= 0 {
		return fmt.Errorf("cube has empty extent: nx=%d ny=%d nt=%d", s.NX(), s.NY(), s.NT())
	}
	return nil
}

func (s *STReference) NX() int {
	return int(math.Round((s.Right - s.Left) / s.DX))
}

func (s *STReference) NY() int {
	return int(math.Round((s.Top - s.Bottom) / s.DY))
}

func (s *STReference) NT() int {
	a := s.T0.WithUnit(s.DT.Unit)
	b := s.T1.WithUnit(s.DT.Unit)
	n := b.Sub(a).Count + 1
	if s.DT.Count <= 0 {
		return 0
	}
	return (n + s.DT.Count - 1) / s.DT.Count
}

func (s *STReference) Equal(o *STReference) bool {
	return s.Left == o.Left && s.Right == o.Right &&
		s.Bottom == o.Bottom && s.Top == o.Top &&
		s.SRS == o.SRS && s.DX == o.DX && s.DY == o.DY &&
		s.T0.Equal(o.T0) && s.T1.Equal(o.T1) && s.DT == o.DT
}

func (s *STReference) Copy() *STReference {
	out := *s
	return &out
}
