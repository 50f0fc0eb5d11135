// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 campusid Contributors

package identity

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/campuslink/campusid/pkg/errutil"
)

// Operation labels used in metrics.
const (
	OpRegister      = "register"
	OpLogin         = "login"
	OpLogout        = "logout"
	OpUpdateProfile = "update_profile"
	OpRestore       = "restore"
)

// Metrics holds the Prometheus collectors for Manager operations. A nil
// *Metrics records nothing.
type Metrics struct {
	Operations    *prometheus.CounterVec
	Duration      *prometheus.HistogramVec
	Authenticated prometheus.Gauge
}

// NewMetrics creates the identity collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Operations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "campusid_identity_operations_total",
				Help: "Total number of identity operations by operation and status",
			},
			[]string{"operation", "status"},
		),
		Duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "campusid_identity_operation_duration_seconds",
				Help:    "Duration of identity operations in seconds",
				Buckets: []float64{.0005, .001, .005, .01, .05, .1, .5, 1},
			},
			[]string{"operation"},
		),
		Authenticated: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "campusid_session_authenticated",
			Help: "1 when a session is active, 0 otherwise",
		}),
	}

	reg.MustRegister(m.Operations)
	reg.MustRegister(m.Duration)
	reg.MustRegister(m.Authenticated)

	return m
}

// observe records one finished operation. status is the error code, or
// "ok" on success.
func (m *Metrics) observe(operation string, start time.Time, err error) {
	if m == nil {
		return
	}
	m.Operations.WithLabelValues(operation, statusOf(err)).Inc()
	m.Duration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}

func (m *Metrics) setAuthenticated(ok bool) {
	if m == nil {
		return
	}
	if ok {
		m.Authenticated.Set(1)
		return
	}
	m.Authenticated.Set(0)
}

func statusOf(err error) string {
	if err == nil {
		return "ok"
	}
	if code := errutil.Code(err); code != "" {
		return code
	}
	return "error"
}
