package multivalue

import (
	"fmt"
	"io"
	"time"

	"github.com/ValentinKolb/mvattr/lib/attribute"
	"github.com/VictoriaMetrics/metrics"
	gometrics "github.com/rcrowley/go-metrics"
)

// columnMetrics exposes the statistics of one column.
// Gauges read the last computed attribute.Statistics; commit latency and the number of
// changes per commit are sampled with go-metrics.
type columnMetrics struct {
	label string

	set            *metrics.Set
	commitsTotal   *metrics.Counter
	commitFailures *metrics.Counter

	registry      gometrics.Registry
	commitTimer   gometrics.Timer
	commitChanges gometrics.Histogram
}

var commitQuantiles = []float64{0.5, 0.9, 0.99}

func newColumnMetrics[T attribute.Numeric](c *column[T]) *columnMetrics {
	m := &columnMetrics{
		label:    fmt.Sprintf(`column=%q`, c.name),
		set:      metrics.NewSet(),
		registry: gometrics.NewRegistry(),
	}

	gauge := func(name string, value func(s *attribute.Statistics) float64) {
		m.set.NewGauge(fmt.Sprintf("mvattr_column_%s{%s}", name, m.label), func() float64 {
			return value(c.lastStatistics())
		})
	}
	gauge("allocated_bytes", func(s *attribute.Statistics) float64 { return float64(s.AllocatedBytes) })
	gauge("used_bytes", func(s *attribute.Statistics) float64 { return float64(s.UsedBytes) })
	gauge("dead_bytes", func(s *attribute.Statistics) float64 { return float64(s.DeadBytes) })
	gauge("on_hold_bytes", func(s *attribute.Statistics) float64 { return float64(s.AllocatedBytesOnHold) })
	gauge("docs", func(s *attribute.Statistics) float64 { return float64(s.CommittedDocIdLimit) })
	gauge("values", func(s *attribute.Statistics) float64 { return float64(s.TotalValueCount) })
	gauge("max_value_count", func(s *attribute.Statistics) float64 { return float64(s.MaxValueCount) })
	gauge("generation", func(s *attribute.Statistics) float64 { return float64(s.Generation) })
	gauge("oldest_used_generation", func(s *attribute.Statistics) float64 { return float64(s.OldestUsedGeneration) })

	m.commitsTotal = m.set.NewCounter(fmt.Sprintf("mvattr_column_commits_total{%s}", m.label))
	m.commitFailures = m.set.NewCounter(fmt.Sprintf("mvattr_column_commit_failures_total{%s}", m.label))

	m.commitTimer = gometrics.NewRegisteredTimer("commit", m.registry)
	m.commitChanges = gometrics.NewRegisteredHistogram("commit.changes", m.registry, gometrics.NewUniformSample(1028))
	return m
}

func (m *columnMetrics) observeCommit(start time.Time, changes int) {
	m.commitsTotal.Inc()
	m.commitTimer.UpdateSince(start)
	m.commitChanges.Update(int64(changes))
}

// writePrometheus writes the gauges and counters followed by the sampled commit latency quantiles.
func (m *columnMetrics) writePrometheus(w io.Writer) {
	m.set.WritePrometheus(w)

	timer := m.commitTimer.Snapshot()
	for i, q := range timer.Percentiles(commitQuantiles) {
		fmt.Fprintf(w, "mvattr_column_commit_duration_seconds{%s,quantile=\"%g\"} %g\n",
			m.label, commitQuantiles[i], q/float64(time.Second))
	}
	fmt.Fprintf(w, "mvattr_column_commit_duration_seconds_count{%s} %d\n", m.label, timer.Count())

	changes := m.commitChanges.Snapshot()
	fmt.Fprintf(w, "mvattr_column_commit_changes_mean{%s} %g\n", m.label, changes.Mean())
	fmt.Fprintf(w, "mvattr_column_commit_changes_max{%s} %d\n", m.label, changes.Max())
}

func (m *columnMetrics) close() {
	m.registry.UnregisterAll()
}

// WritePrometheus refreshes the statistics and writes the column metrics in Prometheus text format.
func (c *column[T]) WritePrometheus(w io.Writer) {
	c.UpdateStatistics()
	c.metrics.writePrometheus(w)
}
