package sol

import (
	"errors"
	"time"

	"github.com/gagliardetto/solana-go/rpc"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	rpcRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "gemstake",
		Subsystem: "rpc",
		Name:      "requests_total",
		Help:      "Solana RPC requests by method and outcome.",
	}, []string{"method", "status"})

	rpcLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "gemstake",
		Subsystem: "rpc",
		Name:      "request_duration_seconds",
		Help:      "Solana RPC request latency.",
		Buckets:   prometheus.ExponentialBuckets(0.01, 2, 10),
	}, []string{"method"})

	txSubmitted = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "gemstake",
		Subsystem: "tx",
		Name:      "submitted_total",
		Help:      "Transactions submitted by route and outcome.",
	}, []string{"route", "status"})
)

func observeRequest(method string, err error, elapsed time.Duration) {
	status := "ok"
	switch {
	case errors.Is(err, rpc.ErrNotFound):
		status = "not_found"
	case err != nil:
		status = "error"
	}
	rpcRequests.WithLabelValues(method, status).Inc()
	rpcLatency.WithLabelValues(method).Observe(elapsed.Seconds())
}

func observeSubmit(route string, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	txSubmitted.WithLabelValues(route, status).Inc()
}
