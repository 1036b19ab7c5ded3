// Package metrics exposes Prometheus instrumentation for the stream engine.
// Collectors are registered eagerly; if no endpoint is served the
// registration is harmless.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	EventsIn = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "labelstream_events_in_total",
		Help: "Raw events read from the source connector",
	})
	UnlabeledOut = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "labelstream_unlabeled_triples_total",
		Help: "Triples emitted at arrival time, before the label is known",
	})
	LabeledOut = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "labelstream_labeled_triples_total",
		Help: "Triples emitted with a retrieved label",
	})
	FetchCalls = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "labelstream_fetch_calls_total",
		Help: "Batched label fetch calls issued to the source connector",
	})
	FetchBatchSize = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "labelstream_fetch_batch_size",
		Help:    "Distribution of ids per label fetch call",
		Buckets: []float64{1, 2, 5, 10, 25, 50, 100, 250, 500},
	})
	LabelsDropped = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "labelstream_labels_dropped_total",
		Help: "Requested ids the source had no label for",
	})
	PendingSize = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "labelstream_pending_size",
		Help: "Observations waiting for their due time",
	})
	BufferSize = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "labelstream_buffer_size",
		Help: "Due observations waiting for the next label fetch",
	})
)

func init() {
	prometheus.MustRegister(
		EventsIn, UnlabeledOut, LabeledOut,
		FetchCalls, FetchBatchSize, LabelsDropped,
		PendingSize, BufferSize,
	)
}

// Serve exposes /metrics on addr. Blocks; run it in its own goroutine.
func Serve(addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	return http.ListenAndServe(addr, mux)
}
