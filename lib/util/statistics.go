// Package util
//
// This file implements summary statistics and a histogram over per-document value counts.
// The histogram uses power-of-two buckets so a column with millions of documents is
// summarized in a few dozen counters. It backs the inspect command and the perf tool.
package util

import (
	"math"
	"math/bits"
	"sync"
)

// ----------------------------------------------------------------------------
// Summary statistics
// ----------------------------------------------------------------------------

type Stats struct {
	StdDeviation float64 `json:"std_deviation"`
	Min          float64 `json:"min"`
	Max          float64 `json:"max"`
	Mean         float64 `json:"mean"`
	MinMaxRatio  float64 `json:"min_max_ratio"`
}

// NewStats computes mean, standard deviation, minimum and maximum of the given samples.
func NewStats(values []float64) Stats {
	if len(values) == 0 {
		return Stats{}
	}

	lo, hi := values[0], values[0]
	var sum float64
	for _, v := range values {
		sum += v
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	mean := sum / float64(len(values))

	var sumSquaredDiffs float64
	for _, v := range values {
		diff := v - mean
		sumSquaredDiffs += diff * diff
	}

	minMaxRatio := 1.0
	if hi > 0 {
		minMaxRatio = lo / hi
	}

	return Stats{
		StdDeviation: math.Sqrt(sumSquaredDiffs / float64(len(values))),
		Min:          lo,
		Max:          hi,
		Mean:         mean,
		MinMaxRatio:  minMaxRatio,
	}
}

type DistributionStats struct {
	Stats
	DistributionQuality float64 `json:"distribution_quality"`
}

// NewDistributionStats rates how evenly the samples are spread.
// 1.0 means all samples are equal, values near 0 mean heavy skew.
func NewDistributionStats(samples []float64) DistributionStats {
	stats := NewStats(samples)

	var cv float64
	if stats.Mean > 0 {
		cv = stats.StdDeviation / stats.Mean
	}

	return DistributionStats{
		Stats:               stats,
		DistributionQuality: (1.0-math.Min(1.0, cv))*0.5 + stats.MinMaxRatio*0.5,
	}
}

// ----------------------------------------------------------------------------
// ValueCountHistogram
// ----------------------------------------------------------------------------

// numCountBuckets covers value counts up to 2^31 (bucket 0 holds empty documents).
const numCountBuckets = 33

// ValueCountHistogram tracks how many documents hold how many values.
// Bucket 0 counts empty documents, bucket i > 0 counts documents with
// a value count in [2^(i-1), 2^i).
type ValueCountHistogram struct {
	mutex   sync.RWMutex
	buckets [numCountBuckets]int64
	docs    int64
	values  int64
	max     uint32
}

// NewValueCountHistogram creates an empty histogram.
func NewValueCountHistogram() *ValueCountHistogram {
	return &ValueCountHistogram{}
}

func countBucket(count uint32) int {
	return bits.Len32(count)
}

// BucketBounds returns the inclusive range of value counts held by bucket i.
func BucketBounds(i int) (lo, hi uint32) {
	if i == 0 {
		return 0, 0
	}
	lo = 1 << (i - 1)
	hi = uint32((uint64(1) << i) - 1)
	return lo, hi
}

// AddSample records a document holding count values.
//
// Thread-safe: This method is safe for concurrent use
func (h *ValueCountHistogram) AddSample(count uint32) {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	h.buckets[countBucket(count)]++
	h.docs++
	h.values += int64(count)
	if count > h.max {
		h.max = count
	}
}

// Docs returns the number of recorded documents.
func (h *ValueCountHistogram) Docs() int64 {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return h.docs
}

// Values returns the sum of all recorded value counts.
func (h *ValueCountHistogram) Values() int64 {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return h.values
}

// Max returns the largest recorded value count.
func (h *ValueCountHistogram) Max() uint32 {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return h.max
}

// Average returns the mean value count per document.
func (h *ValueCountHistogram) Average() float64 {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	if h.docs == 0 {
		return 0
	}
	return float64(h.values) / float64(h.docs)
}

// PercentileEstimate returns the upper bound of the bucket holding the given percentile (0-100).
//
// Thread-safe: This method is safe for concurrent use
func (h *ValueCountHistogram) PercentileEstimate(percentile int) uint32 {
	h.mutex.RLock()
	defer h.mutex.RUnlock()

	if h.docs == 0 || percentile < 0 || percentile > 100 {
		return 0
	}

	target := int64(math.Ceil(float64(h.docs) * float64(percentile) / 100.0))
	cumulative := int64(0)
	for i, count := range h.buckets {
		cumulative += count
		if cumulative >= target {
			_, hi := BucketBounds(i)
			if hi > h.max {
				return h.max
			}
			return hi
		}
	}
	return h.max
}

// Distribution returns the share (in percent) of documents per non-empty bucket, keyed by bucket index.
func (h *ValueCountHistogram) Distribution() map[int]float64 {
	h.mutex.RLock()
	defer h.mutex.RUnlock()

	result := make(map[int]float64)
	if h.docs == 0 {
		return result
	}
	for i, count := range h.buckets {
		if count > 0 {
			result[i] = float64(count) * 100.0 / float64(h.docs)
		}
	}
	return result
}

// Reset clears all recorded samples.
func (h *ValueCountHistogram) Reset() {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	h.buckets = [numCountBuckets]int64{}
	h.docs = 0
	h.values = 0
	h.max = 0
}
