package trainers

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/copyleftdev/EVOLVR/internal/tuning"
)

func candidate(values map[string]any) tuning.Candidate {
	return tuning.Candidate{Values: values}
}

func TestBenchmarkMinima(t *testing.T) {
	tests := []struct {
		name   Benchmark
		values map[string]any
	}{
		{Sphere, map[string]any{"x": 0.0, "y": 0.0}},
		{Rastrigin, map[string]any{"x": 0.0, "y": 0.0}},
		{Rosenbrock, map[string]any{"x": 1.0, "y": 1.0}},
	}

	for _, tt := range tests {
		t.Run(string(tt.name), func(t *testing.T) {
			trainer, err := New(tt.name)
			require.NoError(t, err)

			ev, err := trainer.Evaluate(context.Background(), candidate(tt.values))
			require.NoError(t, err)
			assert.InDelta(t, 0.0, ev.Score, 1e-9, "global minimum should score zero")
			assert.Equal(t, 2.0, ev.Metrics["numeric_dimensions"])
		})
	}
}

func TestSphereScore(t *testing.T) {
	trainer, err := New(Sphere)
	require.NoError(t, err)

	ev, err := trainer.Evaluate(context.Background(), candidate(map[string]any{"a": 3.0, "b": 4}))
	require.NoError(t, err)
	assert.InDelta(t, 25.0, ev.Score, 1e-12, "integer dimensions participate as floats")
}

func TestBenchmarkIgnoresNonNumericDimensions(t *testing.T) {
	trainer, err := New(Sphere)
	require.NoError(t, err)

	ev, err := trainer.Evaluate(context.Background(), candidate(map[string]any{
		"x":        2.0,
		"impurity": "gini",
		"flag":     true,
	}))
	require.NoError(t, err)
	assert.InDelta(t, 4.0, ev.Score, 1e-12)
	assert.Equal(t, 1.0, ev.Metrics["numeric_dimensions"])
}

func TestBenchmarkDeterministic(t *testing.T) {
	trainer, err := New(Rastrigin)
	require.NoError(t, err)

	c := candidate(map[string]any{"a": 0.3, "b": -1.7, "c": 2})
	first, err := trainer.Evaluate(context.Background(), c)
	require.NoError(t, err)
	second, err := trainer.Evaluate(context.Background(), c)
	require.NoError(t, err)
	assert.Equal(t, first.Score, second.Score)
}

func TestNewUnknownBenchmark(t *testing.T) {
	_, err := New("ackley")
	require.Error(t, err)
	cfgErr, ok := tuning.IsConfigError(err)
	require.True(t, ok)
	assert.Equal(t, "trainer", cfgErr.Field)
}
