package metrics

import (
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	poolTotalDesc = prometheus.NewDesc("cinepuma_db_pool_connections",
		"Open connections in the document store pool.", nil, nil)
	poolIdleDesc = prometheus.NewDesc("cinepuma_db_pool_idle_connections",
		"Idle connections in the document store pool.", nil, nil)
	poolInUseDesc = prometheus.NewDesc("cinepuma_db_pool_acquired_connections",
		"Connections currently acquired from the document store pool.", nil, nil)
	poolMaxDesc = prometheus.NewDesc("cinepuma_db_pool_max_connections",
		"Configured pool size.", nil, nil)
)

// PoolCollector reads pool statistics on every scrape. A nil stat from the
// source yields no samples.
type PoolCollector struct {
	stats func() *pgxpool.Stat
}

// NewPoolCollector returns a collector over stats, typically (*store.Store).Stats.
func NewPoolCollector(stats func() *pgxpool.Stat) *PoolCollector {
	return &PoolCollector{stats: stats}
}

func (c *PoolCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- poolTotalDesc
	ch <- poolIdleDesc
	ch <- poolInUseDesc
	ch <- poolMaxDesc
}

func (c *PoolCollector) Collect(ch chan<- prometheus.Metric) {
	st := c.stats()
	if st == nil {
		return
	}
	ch <- prometheus.MustNewConstMetric(poolTotalDesc, prometheus.GaugeValue, float64(st.TotalConns()))
	ch <- prometheus.MustNewConstMetric(poolIdleDesc, prometheus.GaugeValue, float64(st.IdleConns()))
	ch <- prometheus.MustNewConstMetric(poolInUseDesc, prometheus.GaugeValue, float64(st.AcquiredConns()))
	ch <- prometheus.MustNewConstMetric(poolMaxDesc, prometheus.GaugeValue, float64(st.MaxConns()))
}
