// Package metrics holds the process-wide prometheus collectors.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/kefkio/bloc-sacco/internal/domain/apperr"
)

var (
	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sacco_http_requests_total",
		Help: "Total HTTP requests",
	}, []string{"method", "route", "status"})

	HTTPLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "sacco_http_request_duration_seconds",
		Help:    "Request latency",
		Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1},
	}, []string{"method", "route"})

	LoanOps = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sacco_loan_operations_total",
		Help: "Loan operations by outcome; failures are labelled with the error kind",
	}, []string{"operation", "outcome"})

	SettlementMovements = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sacco_settlement_movements_total",
		Help: "Vault movements by kind and outcome",
	}, []string{"kind", "outcome"})

	SettlementVolume = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sacco_settlement_volume_total",
		Help: "Minor units moved through the vault",
	}, []string{"kind", "asset"})

	OutboxPublished = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sacco_outbox_events_total",
		Help: "Outbox publish attempts by outcome",
	}, []string{"outcome"})
)

func outcome(err error) string {
	if err == nil {
		return "ok"
	}
	return string(apperr.KindOf(err))
}

func ObserveHTTP(method, route string, status int, started time.Time) {
	HTTPRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	HTTPLatency.WithLabelValues(method, route).Observe(time.Since(started).Seconds())
}

func ObserveLoanOp(op string, err error) { LoanOps.WithLabelValues(op, outcome(err)).Inc() }

func ObserveSettlement(kind, asset string, amount int64, err error) {
	SettlementMovements.WithLabelValues(kind, outcome(err)).Inc()
	if err == nil && amount > 0 {
		SettlementVolume.WithLabelValues(kind, asset).Add(float64(amount))
	}
}

func ObserveOutbox(err error) { OutboxPublished.WithLabelValues(outcome(err)).Inc() }
