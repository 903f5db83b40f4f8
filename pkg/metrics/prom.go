// Package metrics records solver outcomes in Prometheus
package metrics

import (
	"time"

	"github.com/jakechorley/shiftplanner/pkg/core/model"
	"github.com/prometheus/client_golang/prometheus"
)

// PromRecorder records solve events in Prometheus metrics.
type PromRecorder struct {
	solves    *prometheus.CounterVec
	duration  *prometheus.HistogramVec
	objective prometheus.Gauge
}

// NewPromRecorder registers solve metrics on the provided Prometheus
// registerer. If reg is nil, the default registerer is used. If the
// collectors are already registered, the existing ones are reused.
func NewPromRecorder(reg prometheus.Registerer) (*PromRecorder, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	solves := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "shiftplanner_solves_total",
		Help: "Total number of schedule solves by status",
	}, []string{"status"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "shiftplanner_solve_duration_seconds",
		Help:    "Wall-clock time spent solving a schedule",
		Buckets: prometheus.DefBuckets,
	}, []string{"status"})
	objective := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "shiftplanner_last_objective",
		Help: "Total penalty of the most recent schedule",
	})

	if err := reg.Register(solves); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			solves = are.ExistingCollector.(*prometheus.CounterVec)
		} else {
			return nil, err
		}
	}
	if err := reg.Register(duration); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			duration = are.ExistingCollector.(*prometheus.HistogramVec)
		} else {
			return nil, err
		}
	}
	if err := reg.Register(objective); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			objective = are.ExistingCollector.(prometheus.Gauge)
		} else {
			return nil, err
		}
	}

	return &PromRecorder{solves: solves, duration: duration, objective: objective}, nil
}

// RecordSolve counts the solve and observes its duration. The objective
// gauge only moves when a schedule was produced.
func (r *PromRecorder) RecordSolve(status model.Status, objective int, elapsed time.Duration) {
	label := status.String()
	r.solves.WithLabelValues(label).Inc()
	r.duration.WithLabelValues(label).Observe(elapsed.Seconds())
	if status.HasSchedule() {
		r.objective.Set(float64(objective))
	}
}

// NopRecorder discards every event
type NopRecorder struct{}

func (NopRecorder) RecordSolve(model.Status, int, time.Duration) {}
