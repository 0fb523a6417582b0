package batch

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/copyleftdev/EVOLVR/internal/tuning"
	"github.com/copyleftdev/EVOLVR/internal/tuning/mutate"
)

func testConfig() Config {
	return Config{
		Schema: tuning.Schema{
			Family: "test",
			Dimensions: []tuning.Dimension{
				{Name: "x", Kind: tuning.KindContinuous},
				{Name: "y", Kind: tuning.KindContinuous},
			},
		},
		Boundaries: tuning.Boundaries{
			Numeric: map[string]tuning.NumericBounds{
				"x": {Low: -5, High: 5},
				"y": {Low: -5, High: 5},
			},
		},
		Objective:                      tuning.Minimize,
		PointsPerDimension:             5,
		FirstGenerationGenePool:        10,
		NumberOfGenerations:            4,
		NumberOfParentsToRetain:        3,
		NumberOfMutationsPerGeneration: 8,
		Parallelism:                    4,
		GeneticMixing:                  0.7,
		MutationPolicy: mutate.Policy{
			Strategy:  mutate.CountLinear,
			Magnitude: mutate.MagnitudeRandom,
			Decrement: 1,
		},
		Seed: 42,
	}
}

// sphere scores a candidate by x^2 + y^2; the minimum is the origin.
func sphere(_ context.Context, c tuning.Candidate) (tuning.Evaluation, error) {
	x, _ := c.Float("x")
	y, _ := c.Float("y")
	return tuning.Evaluation{Score: x*x + y*y}, nil
}

func TestNewValidatesConfig(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"bad objective", func(c *Config) { c.Objective = "fastest" }, "optimizationStrategy"},
		{"zero gene pool", func(c *Config) { c.FirstGenerationGenePool = 0 }, "firstGenerationGenePool"},
		{"zero generations", func(c *Config) { c.NumberOfGenerations = 0 }, "numberOfGenerations"},
		{"zero parents", func(c *Config) { c.NumberOfParentsToRetain = 0 }, "numberOfParentsToRetain"},
		{"zero mutations", func(c *Config) { c.NumberOfMutationsPerGeneration = 0 }, "numberOfMutationsPerGeneration"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig()
			tt.mutate(&cfg)
			_, err := New(cfg)
			require.Error(t, err)
			cfgErr, ok := tuning.IsConfigError(err)
			require.True(t, ok)
			assert.Equal(t, tt.field, cfgErr.Field)
		})
	}
}

func TestRunPopulationGrowth(t *testing.T) {
	cfg := testConfig()
	s, err := New(cfg)
	require.NoError(t, err)

	rep, err := s.Run(context.Background(), tuning.TrainerFunc(sphere))
	require.NoError(t, err)
	require.NotNil(t, rep.Best)

	// Gene pool plus a fixed child count for each later generation.
	want := cfg.FirstGenerationGenePool + (cfg.NumberOfGenerations-1)*cfg.NumberOfMutationsPerGeneration
	assert.Equal(t, want, s.Population().Len())
	assert.Len(t, rep.Results, want)

	// One stats entry per generation index.
	require.Len(t, rep.Series, cfg.NumberOfGenerations)
	for i, st := range rep.Series {
		assert.Equal(t, i, st.Index)
		if i == 0 {
			assert.Equal(t, cfg.FirstGenerationGenePool, st.Evaluated)
		} else {
			assert.Equal(t, cfg.NumberOfMutationsPerGeneration, st.Evaluated)
		}
	}

	// Minimizing the sphere: the best result carries the lowest score seen.
	for _, r := range rep.Results {
		assert.GreaterOrEqual(t, r.Score, rep.Best.Score)
	}
}

func TestRunDeterministicForSeed(t *testing.T) {
	run := func() ([]tuning.EvaluationResult, float64) {
		s, err := New(testConfig())
		require.NoError(t, err)
		rep, err := s.Run(context.Background(), tuning.TrainerFunc(sphere))
		require.NoError(t, err)
		return s.Population().Snapshot(), rep.Best.Score
	}

	popA, bestA := run()
	popB, bestB := run()
	assert.Equal(t, popA, popB, "identical seed and trainer must replay the identical run")
	assert.Equal(t, bestA, bestB)
}

func TestRunGenerationBarrier(t *testing.T) {
	var mu sync.Mutex
	var started []int

	trainer := tuning.TrainerFunc(func(ctx context.Context, c tuning.Candidate) (tuning.Evaluation, error) {
		mu.Lock()
		started = append(started, c.Generation)
		mu.Unlock()
		return sphere(ctx, c)
	})

	s, err := New(testConfig())
	require.NoError(t, err)
	_, err = s.Run(context.Background(), trainer)
	require.NoError(t, err)

	// No candidate of a later generation may start before every candidate of
	// the current one has been submitted and completed.
	for i := 1; i < len(started); i++ {
		assert.GreaterOrEqual(t, started[i], started[i-1],
			"generation %d started after generation %d", started[i-1], started[i])
	}
}

func TestRunRecordsFailuresWithoutAborting(t *testing.T) {
	var calls int
	var mu sync.Mutex
	trainer := tuning.TrainerFunc(func(ctx context.Context, c tuning.Candidate) (tuning.Evaluation, error) {
		mu.Lock()
		calls++
		n := calls
		mu.Unlock()
		if n%3 == 0 {
			return tuning.Evaluation{}, fmt.Errorf("training diverged")
		}
		return sphere(ctx, c)
	})

	s, err := New(testConfig())
	require.NoError(t, err)
	rep, err := s.Run(context.Background(), trainer)
	require.NoError(t, err)
	require.NotNil(t, rep.Best)

	failed := 0
	for _, r := range rep.Results {
		if r.Failed {
			failed++
			assert.Contains(t, r.FailureReason, "training diverged")
		}
	}
	assert.Greater(t, failed, 0, "trainer failures should be recorded as flagged results")
	assert.False(t, rep.Best.Failed)
}

func TestRunFailsWhenEveryEvaluationFails(t *testing.T) {
	trainer := tuning.TrainerFunc(func(context.Context, tuning.Candidate) (tuning.Evaluation, error) {
		return tuning.Evaluation{}, fmt.Errorf("cluster unavailable")
	})

	cfg := testConfig()
	s, err := New(cfg)
	require.NoError(t, err)

	_, err = s.Run(context.Background(), trainer)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no eligible parents")

	// The population survives the failed run for postmortem inspection.
	assert.Equal(t, cfg.FirstGenerationGenePool, s.Population().Len())
	for _, r := range s.Population().Snapshot() {
		assert.True(t, r.Failed)
	}
}

func TestRunAutoStopsAtScoreThreshold(t *testing.T) {
	cfg := testConfig()
	cfg.AutoStopping = true
	cfg.AutoStoppingScore = 100 // any sphere value in [-5,5]^2 satisfies this

	s, err := New(cfg)
	require.NoError(t, err)
	rep, err := s.Run(context.Background(), tuning.TrainerFunc(sphere))
	require.NoError(t, err)

	// Stopped at the first generation boundary: no children were ever bred.
	assert.Equal(t, cfg.FirstGenerationGenePool, s.Population().Len())
	assert.NotNil(t, rep.Best)
}

func TestRunHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	s, err := New(testConfig())
	require.NoError(t, err)
	_, err = s.Run(ctx, tuning.TrainerFunc(sphere))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRunMaximizeObjective(t *testing.T) {
	cfg := testConfig()
	cfg.Objective = tuning.Maximize

	s, err := New(cfg)
	require.NoError(t, err)
	rep, err := s.Run(context.Background(), tuning.TrainerFunc(sphere))
	require.NoError(t, err)
	require.NotNil(t, rep.Best)

	for _, r := range rep.Results {
		assert.LessOrEqual(t, r.Score, rep.Best.Score)
	}
}
