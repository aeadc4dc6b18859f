package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	updatesReceived = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bot_updates_received_total",
			Help: "Inbound updates per bot and ingestion source (webhook/poll).",
		},
		[]string{"bot", "source"},
	)

	updatesHandled = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bot_updates_handled_total",
			Help: "Dispatch outcomes per bot (handled/unhandled/malformed).",
		},
		[]string{"bot", "outcome"},
	)

	apiErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bot_api_errors_total",
			Help: "Remote API failures per bot and method.",
		},
		[]string{"bot", "method"},
	)

	pollBatchSize = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "bot_poll_batch_size",
			Help:    "Number of updates returned per getUpdates cycle.",
			Buckets: []float64{0, 1, 2, 5, 10, 25, 50, 100},
		},
		[]string{"bot"},
	)

	storeOps = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bot_conversation_store_ops_total",
			Help: "Conversation store operations per backend, op and status.",
		},
		[]string{"backend", "op", "status"},
	)
)

// MustRegister registers collectors with the default registry (idempotent).
func MustRegister() {
	once.Do(func() {
		prometheus.MustRegister(
			updatesReceived, updatesHandled, apiErrors,
			pollBatchSize, storeOps,
		)
	})
}

func UpdateReceived(bot, source string) {
	updatesReceived.WithLabelValues(bot, source).Inc()
}

func UpdateHandled(bot, outcome string) {
	updatesHandled.WithLabelValues(bot, outcome).Inc()
}

func APIError(bot, method string) {
	apiErrors.WithLabelValues(bot, method).Inc()
}

func PollBatch(bot string, size int) {
	pollBatchSize.WithLabelValues(bot).Observe(float64(size))
}

func StoreOp(backend, op string, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	storeOps.WithLabelValues(backend, op, status).Inc()
}
