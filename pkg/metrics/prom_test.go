package metrics

import (
	"strings"
	"testing"
	"time"

	"github.com/jakechorley/shiftplanner/pkg/core/model"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPromRecorder_RecordSolve(t *testing.T) {
	reg := prometheus.NewRegistry()
	rec, err := NewPromRecorder(reg)
	require.NoError(t, err)

	rec.RecordSolve(model.StatusOptimal, 120, 150*time.Millisecond)
	rec.RecordSolve(model.StatusOptimal, 80, 20*time.Millisecond)
	rec.RecordSolve(model.StatusInfeasible, 0, 5*time.Millisecond)

	expected := `
# HELP shiftplanner_solves_total Total number of schedule solves by status
# TYPE shiftplanner_solves_total counter
shiftplanner_solves_total{status="INFEASIBLE"} 1
shiftplanner_solves_total{status="OPTIMAL"} 2
`
	assert.NoError(t, testutil.CollectAndCompare(rec.solves, strings.NewReader(expected)))
	assert.Equal(t, 2, testutil.CollectAndCount(rec.duration))

	// Infeasible solves leave the last objective alone
	assert.Equal(t, 80.0, testutil.ToFloat64(rec.objective))
}

func TestNewPromRecorder_ReusesRegisteredCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	first, err := NewPromRecorder(reg)
	require.NoError(t, err)
	second, err := NewPromRecorder(reg)
	require.NoError(t, err)

	first.RecordSolve(model.StatusFeasibleSuboptimal, 10, time.Second)
	second.RecordSolve(model.StatusFeasibleSuboptimal, 10, time.Second)

	assert.Equal(t, 2.0, testutil.ToFloat64(second.solves.WithLabelValues("FEASIBLE_SUBOPTIMAL")))
}
