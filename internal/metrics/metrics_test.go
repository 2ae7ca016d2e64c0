package metrics

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorder_CountsRuns(t *testing.T) {
	r := NewRecorder()
	r.ObserveRun(OutcomeOptimal)
	r.ObserveRun(OutcomeOptimal)
	r.ObserveRun(OutcomeInfeasible)

	assert.Equal(t, 2.0, testutil.ToFloat64(r.runs.WithLabelValues(OutcomeOptimal)))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.runs.WithLabelValues(OutcomeInfeasible)))
}

func TestRecorder_ModelAndSolve(t *testing.T) {
	r := NewRecorder()
	r.ObserveModel(120, 340)
	r.ObserveSolve(1.5, 42)
	r.ObservePatterns(17)
	r.ObserveRolls(3)

	assert.Equal(t, 120.0, testutil.ToFloat64(r.modelVars))
	assert.Equal(t, 340.0, testutil.ToFloat64(r.modelRows))
	assert.Equal(t, 42.0, testutil.ToFloat64(r.nodes))
	assert.Equal(t, 1, testutil.CollectAndCount(r.solveSeconds))
}

func TestRecorder_NilIsNoop(t *testing.T) {
	var r *Recorder
	r.ObserveRun(OutcomeError)
	r.ObservePatterns(1)
	r.ObserveModel(1, 1)
	r.ObserveSolve(1, 1)
	r.ObserveRolls(1)
	assert.Nil(t, r.Registry())
	assert.NoError(t, r.WriteTextfile(filepath.Join(t.TempDir(), "never.prom")))
}

func TestRecorder_WriteTextfile(t *testing.T) {
	r := NewRecorder()
	r.ObserveRun(OutcomeFeasible)

	path := filepath.Join(t.TempDir(), "coilcut.prom")
	require.NoError(t, r.WriteTextfile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(data), `coilcut_runs_total{outcome="feasible"} 1`))
}
