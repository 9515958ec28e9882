package cube

import (
	"testing"
)

func TestParseDatetimeUnits(t *testing.T) {
	cases := []struct {
		in   string
		unit DurationUnit
		out  string
	}{
		{"2018", Years, "2018"},
		{"2018-03", Months, "2018-03"},
		{"2018-03-05", Days, "2018-03-05"},
		{"2018-03-05T14", Hours, "2018-03-05T14"},
		{"2018-03-05T14:30", Minutes, "2018-03-05T14:30"},
		{"2018-03-05T14:30:15", Seconds, "2018-03-05T14:30:15"},
		{"2018-03-05T14:30:15.000Z", Seconds, "2018-03-05T14:30:15"},
	}
	for _, c := range cases {
		dt, err := ParseDatetime(c.in)
		if err != nil {
			t.Errorf("failed to parse %q: %v", c.in, err)
			continue
		}
		if dt.Unit() != c.unit {
			t.Errorf("%q: expected unit %v, got %v", c.in, c.unit, dt.Unit())
		}
		if dt.String() != c.out {
			t.Errorf("%q: expected string %q, got %q", c.in, c.out, dt.String())
		}
	}

	if _, err := ParseDatetime("not-a-date"); err == nil {
		t.Errorf("expected error for invalid datetime")
	}
}

func TestParseDuration(t *testing.T) {
	cases := []struct {
		in    string
		count int
		unit  DurationUnit
	}{
		{"P1Y", 1, Years},
		{"P2M", 2, Months},
		{"P16D", 16, Days},
		{"PT1H", 1, Hours},
		{"PT30M", 30, Minutes},
		{"PT10S", 10, Seconds},
	}
	for _, c := range cases {
		d, err := ParseDuration(c.in)
		if err != nil {
			t.Errorf("failed to parse %q: %v", c.in, err)
			continue
		}
		if d.Count != c.count || d.Unit != c.unit {
			t.Errorf("%q: expected (%d, %v), got (%d, %v)", c.in, c.count, c.unit, d.Count, d.Unit)
		}
		if d.String() != c.in {
			t.Errorf("%q: round trip produced %q", c.in, d.String())
		}
	}

	if _, err := ParseDuration("P1Y2M"); err == nil {
		t.Errorf("expected error for multi-component duration")
	}
	if _, err := ParseDuration("16 days"); err == nil {
		t.Errorf("expected error for invalid duration")
	}
}

func TestDatetimeSubCoarserUnit(t *testing.T) {
	a, _ := ParseDatetime("2018-03-05T14:30:15")
	b, _ := ParseDatetime("2018-03-01")

	d := a.Sub(b)
	if d.Unit != Days || d.Count != 4 {
		t.Errorf("expected 4 days, got %v", d)
	}

	c, _ := ParseDatetime("2016-05")
	d = a.Sub(c)
	if d.Unit != Months || d.Count != 22 {
		t.Errorf("expected 22 months, got %v", d)
	}
}

func TestDatetimeAdd(t *testing.T) {
	a, _ := ParseDatetime("2018-01-30")
	if got := a.Add(Duration{3, Days}).String(); got != "2018-02-02" {
		t.Errorf("expected 2018-02-02, got %s", got)
	}
	h, _ := ParseDatetime("2018-01-01T23")
	if got := h.Add(Duration{2, Hours}).String(); got != "2018-01-02T01" {
		t.Errorf("expected 2018-01-02T01, got %s", got)
	}
}

func TestDurationDiv(t *testing.T) {
	a := Duration{10, Days}
	b := Duration{3, Days}
	q, err := a.Div(b)
	if err != nil || q != 3 {
		t.Errorf("expected 3, got %d (%v)", q, err)
	}
	if _, err := a.Div(Duration{1, Hours}); err == nil {
		t.Errorf("expected unit mismatch error")
	}
}

func TestSTReferenceSizes(t *testing.T) {
	v := newTestView(t, 10, 6, 4)
	if v.NX() != 10 || v.NY() != 6 || v.NT() != 4 {
		t.Errorf("expected sizes (10, 6, 4), got (%d, %d, %d)", v.NX(), v.NY(), v.NT())
	}
}

func TestSTReferenceNTCoarseStep(t *testing.T) {
	t0, _ := ParseDatetime("2018-01-01")
	t1, _ := ParseDatetime("2018-01-10")
	s := STReference{
		Left: 0, Right: 1, Bottom: 0, Top: 1,
		SRS: "EPSG:4326", DX: 1, DY: 1,
		T0: t0, T1: t1, DT: Duration{4, Days},
	}
	// 10 days fall into slices of 4: [1-4], [5-8], [9-10]
	if s.NT() != 3 {
		t.Errorf("expected nt=3, got %d", s.NT())
	}
}

func TestSTReferenceValidation(t *testing.T) {
	v := newTestView(t, 4, 4, 2)
	bad := *v
	bad.DX = -1
	if err := bad.Validate(); err == nil {
		t.Errorf("expected error for negative dx")
	}
	bad = *v
	bad.Right = bad.Left
	if err := bad.Validate(); err == nil {
		t.Errorf("expected error for empty window")
	}
	bad = *v
	bad.DT = Duration{0, Days}
	if err := bad.Validate(); err == nil {
		t.Errorf("expected error for zero dt")
	}
}

func TestViewJSONRoundTrip(t *testing.T) {
	v := newTestView(t, 4, 4, 2)
	v.Resampling = ResamplingBilinear
	v.Aggregation = AggregationMean

	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("failed to marshal view: %v", err)
	}
	parsed, err := ReadViewJSON(data)
	if err != nil {
		t.Fatalf("failed to parse view: %v", err)
	}
	if !parsed.STReference.Equal(&v.STReference) {
		t.Errorf("st reference changed in round trip")
	}
	if parsed.Resampling != v.Resampling || parsed.Aggregation != v.Aggregation {
		t.Errorf("resampling or aggregation changed in round trip")
	}
}

func TestViewJSONInvalid(t *testing.T) {
	if _, err := ReadViewJSON([]byte(`{"space":{},"time":{"t0":"x","t1":"y","dt":"z"}}`)); err == nil {
		t.Errorf("expected error for invalid view")
	}
}
