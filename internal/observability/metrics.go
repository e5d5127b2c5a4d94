// Package observability registra las métricas Prometheus del libro de recursos de actividades.
package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Resultados de una operación del ciclo de vida.
const (
	OutcomeOK       = "ok"
	OutcomeRejected = "rejected"
	OutcomeNotFound = "not_found"
	OutcomeConflict = "conflict"
	OutcomeInvalid  = "invalid"
	OutcomeError    = "error"
)

var (
	reservationsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "agrosoft",
		Subsystem: "ledger",
		Name:      "reservations_total",
		Help:      "Préstamos creados al reservar stock, por tipo de recurso.",
	}, []string{"resource"})

	rejectionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "agrosoft",
		Subsystem: "ledger",
		Name:      "reservation_rejections_total",
		Help:      "Solicitudes de reserva rechazadas por stock insuficiente o mal formadas.",
	}, []string{"resource"})

	releasesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "agrosoft",
		Subsystem: "ledger",
		Name:      "loans_closed_total",
		Help:      "Préstamos cerrados, por tipo de recurso y motivo (consumed, returned, restocked).",
	}, []string{"resource", "reason"})

	operationsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "agrosoft",
		Subsystem: "actividades",
		Name:      "operations_total",
		Help:      "Operaciones del ciclo de vida de actividades por resultado.",
	}, []string{"operation", "outcome"})

	operationDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "agrosoft",
		Subsystem: "actividades",
		Name:      "operation_duration_seconds",
		Help:      "Duración de las transacciones del ciclo de vida de actividades.",
		Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10),
	}, []string{"operation"})
)

func init() {
	prometheus.MustRegister(reservationsTotal, rejectionsTotal, releasesTotal, operationsTotal, operationDuration)
}

// RecordReservations suma n préstamos creados del recurso indicado.
func RecordReservations(resource string, n int) {
	if n <= 0 {
		return
	}
	reservationsTotal.WithLabelValues(resource).Add(float64(n))
}

// RecordRejection cuenta una solicitud rechazada.
func RecordRejection(resource string) {
	rejectionsTotal.WithLabelValues(resource).Inc()
}

// RecordLoansClosed suma n préstamos cerrados por el motivo indicado.
func RecordLoansClosed(resource, reason string, n int) {
	if n <= 0 {
		return
	}
	releasesTotal.WithLabelValues(resource, reason).Add(float64(n))
}

// ObserveOperation registra el resultado y la duración de una operación.
func ObserveOperation(operation, outcome string, elapsed time.Duration) {
	operationsTotal.WithLabelValues(operation, outcome).Inc()
	operationDuration.WithLabelValues(operation).Observe(elapsed.Seconds())
}

// Collectors expone los collectors para tests con prometheus/testutil.
func Collectors() (reservations, rejections, closed, operations *prometheus.CounterVec) {
	return reservationsTotal, rejectionsTotal, releasesTotal, operationsTotal
}
