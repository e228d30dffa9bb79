// Package telemetry expone contadores Prometheus del pipeline.
package telemetry

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	once sync.Once

	MessagesIngested  prometheus.Counter
	MessagesDropped   *prometheus.CounterVec
	BroadcastsTotal   prometheus.Counter
	SessionsConnected prometheus.Gauge
)

// Init registra las métricas (idempotente).
func Init() {
	once.Do(func() {
		MessagesIngested = promauto.NewCounter(prometheus.CounterOpts{Name: "groupwire_messages_ingested_total", Help: "Messages persisted from the external source"})
		MessagesDropped = promauto.NewCounterVec(prometheus.CounterOpts{Name: "groupwire_messages_dropped_total", Help: "Source messages dropped before persistence"}, []string{"reason"})
		BroadcastsTotal = promauto.NewCounter(prometheus.CounterOpts{Name: "groupwire_broadcasts_total", Help: "Group broadcasts fanned out"})
		SessionsConnected = promauto.NewGauge(prometheus.GaugeOpts{Name: "groupwire_sessions_connected", Help: "Currently connected gateway sessions"})
	})
}

// IncIngested suma un mensaje persistido.
func IncIngested() {
	if MessagesIngested != nil {
		MessagesIngested.Inc()
	}
}

// IncDropped suma un mensaje descartado con su razón.
func IncDropped(reason string) {
	if MessagesDropped != nil {
		MessagesDropped.WithLabelValues(reason).Inc()
	}
}

// IncBroadcast suma un fan-out de grupo.
func IncBroadcast() {
	if BroadcastsTotal != nil {
		BroadcastsTotal.Inc()
	}
}

// AddSessions ajusta el gauge de sesiones conectadas.
func AddSessions(delta float64) {
	if SessionsConnected != nil {
		SessionsConnected.Add(delta)
	}
}
