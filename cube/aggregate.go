package cube

import (
	"math"
	"sort"
)

var nan = math.NaN()

// aggKey addresses one (target band, time slice) slot of the chunk being
// assembled.
type aggKey struct {
	b int
	t int
}

// aggregationState resolves overlapping acquisitions that land in the
// same temporal slice. update is called once per contributing image with
// the slot plane of the chunk buffer and the freshly warped image plane;
// per-slot state is spawned lazily on first write. NaN inputs are
// ignored everywhere; a slot that only ever saw NaN stays NaN.
type aggregationState interface {
	update(slot, img []float64, b, t int)
	finalize()
}

func newAggregationState(method AggregationMethod) aggregationState {
	switch method {
	case AggregationMin:
		return &aggMin{}
	case AggregationMax:
		return &aggMax{}
	case AggregationMean:
		return &aggMean{counts: map[aggKey][]uint32{}}
	case AggregationMedian:
		return &aggMedian{buckets: map[aggKey][][]float64{}}
	case AggregationFirst:
		return &aggFirst{written: map[aggKey][]bool{}}
	case AggregationLast:
		return &aggLast{}
	default:
		return &aggNone{}
	}
}

type aggNone struct{}

func (a *aggNone) update(slot, img []float64, b, t int) {
	copy(slot, img)
}

func (a *aggNone) finalize() {}

type aggMin struct{}

func (a *aggMin) update(slot, img []float64, b, t int) {
	for i, v := range img {
		if math.IsNaN(v) {
			continue
		}
		if math.IsNaN(slot[i]) || v < slot[i] {
			slot[i] = v
		}
	}
}

func (a *aggMin) finalize() {}

type aggMax struct{}

func (a *aggMax) update(slot, img []float64, b, t int) {
	for i, v := range img {
		if math.IsNaN(v) {
			continue
		}
		if math.IsNaN(slot[i]) || v > slot[i] {
			slot[i] = v
		}
	}
}

func (a *aggMax) finalize() {}

type aggMean struct {
	counts map[aggKey][]uint32
}

func (a *aggMean) update(slot, img []float64, b, t int) {
	key := aggKey{b, t}
	cnt := a.counts[key]
	if cnt == nil {
		cnt = make([]uint32, len(slot))
		a.counts[key] = cnt
	}
	for i, v := range img {
		if math.IsNaN(v) {
			continue
		}
		cnt[i]++
		if cnt[i] == 1 {
			slot[i] = v
		} else {
			slot[i] += (v - slot[i]) / float64(cnt[i])
		}
	}
}

func (a *aggMean) finalize() {}

type aggMedian struct {
	buckets map[aggKey][][]float64
	slots   map[aggKey][]float64
}

func (a *aggMedian) update(slot, img []float64, b, t int) {
	key := aggKey{b, t}
	bucket := a.buckets[key]
	if bucket == nil {
		bucket = make([][]float64, len(slot))
		a.buckets[key] = bucket
		if a.slots == nil {
			a.slots = map[aggKey][]float64{}
		}
		a.slots[key] = slot
	}
	for i, v := range img {
		if math.IsNaN(v) {
			continue
		}
		bucket[i] = append(bucket[i], v)
	}
}

func (a *aggMedian) finalize() {
	for key, bucket := range a.buckets {
		slot := a.slots[key]
		for i, values := range bucket {
			if len(values) == 0 {
				continue
			}
			sort.Float64s(values)
			n := len(values)
			if n%2 == 1 {
				slot[i] = values[n/2]
			} else {
				slot[i] = (values[n/2-1] + values[n/2]) / 2
			}
		}
	}
}

type aggFirst struct {
	written map[aggKey][]bool
}

func (a *aggFirst) update(slot, img []float64, b, t int) {
	key := aggKey{b, t}
	written := a.written[key]
	if written == nil {
		written = make([]bool, len(slot))
		a.written[key] = written
	}
	for i, v := range img {
		if written[i] || math.IsNaN(v) {
			continue
		}
		slot[i] = v
		written[i] = true
	}
}

func (a *aggFirst) finalize() {}

type aggLast struct{}

func (a *aggLast) update(slot, img []float64, b, t int) {
	for i, v := range img {
		if !math.IsNaN(v) {
			slot[i] = v
		}
	}
}

func (a *aggLast) finalize() {}
