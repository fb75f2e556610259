package metrics

import (
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
)

// LiveStats provides the collector access to live feed state.
type LiveStats interface {
	SubscriberCount() int
}

// Collector implements prometheus.Collector to read live gauges at scrape time.
type Collector struct {
	pool *pgxpool.Pool
	live LiveStats

	liveSubscribers *prometheus.Desc
	dbTotalConns    *prometheus.Desc
	dbAcquiredConns *prometheus.Desc
	dbIdleConns     *prometheus.Desc
}

// NewCollector creates a collector that reads live state at scrape time.
// pool and live may be nil; their gauges then report 0.
func NewCollector(pool *pgxpool.Pool, live LiveStats) *Collector {
	return &Collector{
		pool: pool,
		live: live,
		liveSubscribers: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "live_subscribers_active"),
			"Current number of live feed subscribers (SSE and websocket).",
			nil, nil,
		),
		dbTotalConns: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "db_pool", "total_conns"),
			"Total database pool connections.",
			nil, nil,
		),
		dbAcquiredConns: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "db_pool", "acquired_conns"),
			"Database pool connections currently in use.",
			nil, nil,
		),
		dbIdleConns: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "db_pool", "idle_conns"),
			"Database pool idle connections.",
			nil, nil,
		),
	}
}

func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.liveSubscribers
	ch <- c.dbTotalConns
	ch <- c.dbAcquiredConns
	ch <- c.dbIdleConns
}

func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	subscribers := 0
	if c.live != nil {
		subscribers = c.live.SubscriberCount()
	}
	ch <- prometheus.MustNewConstMetric(c.liveSubscribers, prometheus.GaugeValue, float64(subscribers))

	var total, acquired, idle float64
	if c.pool != nil {
		stat := c.pool.Stat()
		total = float64(stat.TotalConns())
		acquired = float64(stat.AcquiredConns())
		idle = float64(stat.IdleConns())
	}
	ch <- prometheus.MustNewConstMetric(c.dbTotalConns, prometheus.GaugeValue, total)
	ch <- prometheus.MustNewConstMetric(c.dbAcquiredConns, prometheus.GaugeValue, acquired)
	ch <- prometheus.MustNewConstMetric(c.dbIdleConns, prometheus.GaugeValue, idle)
}
