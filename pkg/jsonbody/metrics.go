package jsonbody

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	bodyRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "jsonbody_requests_total",
			Help: "Total number of JSON body requests consumed",
		},
		[]string{"handler", "status"},
	)

	bodyBytesBuffered = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "jsonbody_body_chunk_bytes",
			Help:    "Size of accepted body chunks in bytes",
			Buckets: []float64{64, 256, 1024, 4096, 16384},
		},
	)

	bodyChunksDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "jsonbody_body_chunks_dropped_total",
			Help: "Body chunks dropped, by reason",
		},
		[]string{"reason"},
	)

	streamTicksTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "jsonbody_stream_ticks_total",
			Help: "Streaming delivery ticks executed",
		},
	)
)

// Drop reasons for jsonbody_body_chunks_dropped_total.
const (
	dropOutOfBounds = "out_of_bounds"
	dropBusy        = "busy"
)

func dropChunk(reason string) {
	bodyChunksDropped.WithLabelValues(reason).Inc()
}

func observeRequest(handler string, status int) {
	bodyRequestsTotal.WithLabelValues(handler, statusLabel(status)).Inc()
}

func statusLabel(status int) string {
	switch status {
	case 200:
		return "200"
	case 400:
		return "400"
	case 413:
		return "413"
	case 500:
		return "500"
	default:
		return "other"
	}
}
