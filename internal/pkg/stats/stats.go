// Package stats tracks harvesting metrics, exposing them both as a
// snapshot map for end-of-run summaries and as Prometheus metrics.
package stats

import (
	"sync"
	"time"

	"github.com/paulbellamy/ratecounter"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type statistics struct {
	recordsSaved   prometheus.Counter
	recordsDeleted prometheus.Counter
	pagesFetched   prometheus.Counter
	harvestsFailed prometheus.Counter
	harvestsOK     prometheus.Counter
	runningCount   prometheus.Gauge

	recordRate *ratecounter.RateCounter
}

var (
	globalStats *statistics
	initOnce    sync.Once
)

// Init initializes the stats package. Calling it more than once is a
// no-op.
func Init() {
	initOnce.Do(func() {
		globalStats = &statistics{
			recordsSaved: promauto.NewCounter(prometheus.CounterOpts{
				Name: "oaih_records_saved_total",
				Help: "Total number of records written to disk.",
			}),
			recordsDeleted: promauto.NewCounter(prometheus.CounterOpts{
				Name: "oaih_records_deleted_total",
				Help: "Total number of deleted records processed.",
			}),
			pagesFetched: promauto.NewCounter(prometheus.CounterOpts{
				Name: "oaih_pages_fetched_total",
				Help: "Total number of ListRecords pages fetched.",
			}),
			harvestsFailed: promauto.NewCounter(prometheus.CounterOpts{
				Name: "oaih_harvests_failed_total",
				Help: "Total number of harvests that ended in error.",
			}),
			harvestsOK: promauto.NewCounter(prometheus.CounterOpts{
				Name: "oaih_harvests_completed_total",
				Help: "Total number of harvests that completed successfully.",
			}),
			runningCount: promauto.NewGauge(prometheus.GaugeOpts{
				Name: "oaih_harvests_running",
				Help: "Number of harvests currently running.",
			}),
			recordRate: ratecounter.NewRateCounter(time.Second),
		}
	})
}

func RecordSaved() {
	if globalStats == nil {
		return
	}
	globalStats.recordsSaved.Inc()
	globalStats.recordRate.Incr(1)
}

func RecordDeleted() {
	if globalStats == nil {
		return
	}
	globalStats.recordsDeleted.Inc()
	globalStats.recordRate.Incr(1)
}

func PageFetched() {
	if globalStats == nil {
		return
	}
	globalStats.pagesFetched.Inc()
}

func HarvestStarted() {
	if globalStats == nil {
		return
	}
	globalStats.runningCount.Inc()
}

func HarvestFinished(ok bool) {
	if globalStats == nil {
		return
	}
	globalStats.runningCount.Dec()
	if ok {
		globalStats.harvestsOK.Inc()
	} else {
		globalStats.harvestsFailed.Inc()
	}
}

// RecordRate returns the current records-per-second rate.
func RecordRate() int64 {
	if globalStats == nil {
		return 0
	}
	return globalStats.recordRate.Rate()
}
