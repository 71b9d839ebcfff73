package quiver

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	sourceSQL       = "sql"
	sourceDataFrame = "dataframe"
)

type metrics struct {
	queries       *prometheus.CounterVec
	queryDuration *prometheus.HistogramVec
	rowsScanned   prometheus.Counter
	rowsReturned  prometheus.Counter
	udfCalls      *prometheus.CounterVec
}

func newMetrics(reg prometheus.Registerer) *metrics {
	return &metrics{
		queries: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "quiver_queries_total",
			Help: "Total number of queries run, by source and status.",
		}, []string{"source", "status"}),
		queryDuration: promauto.With(reg).NewHistogramVec(prometheus.HistogramOpts{
			Name:    "quiver_query_duration_seconds",
			Help:    "Time spent running queries, from the first read to the last batch.",
			Buckets: prometheus.DefBuckets,
		}, []string{"source"}),
		rowsScanned: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "quiver_rows_scanned_total",
			Help: "Total number of rows read from tables.",
		}),
		rowsReturned: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "quiver_rows_returned_total",
			Help: "Total number of rows in query results.",
		}),
		udfCalls: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "quiver_udf_calls_total",
			Help: "Total number of user-defined function invocations over a batch, by calling convention.",
		}, []string{"convention"}),
	}
}
