package mutate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/copyleftdev/EVOLVR/internal/tuning"
)

func testSchema() (tuning.Schema, tuning.Boundaries) {
	schema := tuning.Schema{
		Family: "test",
		Dimensions: []tuning.Dimension{
			{Name: "depth", Kind: tuning.KindInteger},
			{Name: "rate", Kind: tuning.KindContinuous},
			{Name: "reg", Kind: tuning.KindContinuous, Scale: tuning.ScaleLog},
			{Name: "impurity", Kind: tuning.KindCategorical},
			{Name: "intercept", Kind: tuning.KindBoolean},
		},
	}
	bounds := tuning.Boundaries{
		Numeric: map[string]tuning.NumericBounds{
			"depth": {Low: 2, High: 20},
			"rate":  {Low: 0.0, High: 1.0},
			"reg":   {Low: 0.0001, High: 1.0},
		},
		Categorical: map[string][]string{
			"impurity": {"gini", "entropy", "variance"},
		},
	}
	return schema, bounds
}

func parent(depth int, rate, reg float64, impurity string, intercept bool) tuning.Candidate {
	return tuning.Candidate{Values: map[string]any{
		"depth":     depth,
		"rate":      rate,
		"reg":       reg,
		"impurity":  impurity,
		"intercept": intercept,
	}}
}

func TestPolicyBudget(t *testing.T) {
	tests := []struct {
		name       string
		policy     Policy
		generation int
		dims       int
		expected   int
	}{
		{
			name:       "linear decay",
			policy:     Policy{Strategy: CountLinear, Magnitude: MagnitudeFixed, Decrement: 1},
			generation: 2,
			dims:       5,
			expected:   3,
		},
		{
			name:       "linear decay floors at one",
			policy:     Policy{Strategy: CountLinear, Magnitude: MagnitudeFixed, Decrement: 3},
			generation: 4,
			dims:       5,
			expected:   1,
		},
		{
			name:       "fixed ignores generation",
			policy:     Policy{Strategy: CountFixed, Magnitude: MagnitudeFixed, Count: 2},
			generation: 9,
			dims:       5,
			expected:   2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.policy.budget(tt.generation, tt.dims))
		})
	}
}

func TestPolicyValidate(t *testing.T) {
	assert.Error(t, Policy{Strategy: "quadratic", Magnitude: MagnitudeFixed}.Validate(5))
	assert.Error(t, Policy{Strategy: CountFixed, Magnitude: MagnitudeFixed, Count: 0}.Validate(5))
	assert.Error(t, Policy{Strategy: CountFixed, Magnitude: MagnitudeFixed, Count: 6}.Validate(5))
	assert.Error(t, Policy{Strategy: CountLinear, Magnitude: "huge", Decrement: 1}.Validate(5))
	assert.NoError(t, Policy{Strategy: CountLinear, Magnitude: MagnitudeRandom, Decrement: 1}.Validate(5))
}

func TestNewRejectsBadMixRatio(t *testing.T) {
	schema, bounds := testSchema()
	policy := Policy{Strategy: CountFixed, Magnitude: MagnitudeFixed, Count: 1}

	_, err := New(schema, bounds, -0.1, policy, 1)
	require.Error(t, err)
	cfgErr, ok := tuning.IsConfigError(err)
	require.True(t, ok)
	assert.Equal(t, "geneticMixing", cfgErr.Field)

	_, err = New(schema, bounds, 1.1, policy, 1)
	assert.Error(t, err)
}

func TestChildBoundaryContainment(t *testing.T) {
	schema, bounds := testSchema()
	policy := Policy{Strategy: CountLinear, Magnitude: MagnitudeRandom, Decrement: 1}
	m, err := New(schema, bounds, 0.5, policy, 42)
	require.NoError(t, err)

	primary := parent(20, 1.0, 1.0, "gini", true)
	secondary := parent(2, 0.0, 0.0001, "entropy", false)

	for i := 0; i < 500; i++ {
		child := m.Child(primary, secondary, i%4)
		for name, b := range bounds.Numeric {
			v, ok := child.Float(name)
			require.True(t, ok, "missing numeric dimension %s", name)
			assert.GreaterOrEqual(t, v, b.Low, "dimension %s below bound", name)
			assert.LessOrEqual(t, v, b.High, "dimension %s above bound", name)
		}
		assert.Contains(t, bounds.Categorical["impurity"], child.Values["impurity"])
		assert.IsType(t, true, child.Values["intercept"])
		assert.IsType(t, int(0), child.Values["depth"])
	}
}

func TestChildUnmutatedDimensionsCopyPrimary(t *testing.T) {
	schema, bounds := testSchema()
	// Exactly one dimension mutates per child, so four of five must match
	// the primary parent exactly.
	policy := Policy{Strategy: CountFixed, Magnitude: MagnitudeFixed, Count: 1}
	m, err := New(schema, bounds, 0.5, policy, 7)
	require.NoError(t, err)

	primary := parent(13, 0.37, 0.01, "variance", true)
	secondary := parent(2, 0.9, 0.5, "gini", false)

	for i := 0; i < 100; i++ {
		child := m.Child(primary, secondary, 0)
		matches := 0
		for name, v := range primary.Values {
			if child.Values[name] == v {
				matches++
			}
		}
		assert.GreaterOrEqual(t, matches, 4, "more than one dimension changed: %v", child.Values)
	}
}

func TestChildFullMixInheritsSecondaryOnMutatedDims(t *testing.T) {
	schema, bounds := testSchema()
	// mix=1 means a mutated numeric dimension is the secondary parent's
	// value (clamped) and a mutated categorical always inherits.
	policy := Policy{Strategy: CountFixed, Magnitude: MagnitudeFixed, Count: 5}
	m, err := New(schema, bounds, 1.0, policy, 11)
	require.NoError(t, err)

	primary := parent(20, 1.0, 1.0, "gini", true)
	secondary := parent(4, 0.25, 0.001, "entropy", false)

	child := m.Child(primary, secondary, 0)
	assert.Equal(t, 4, child.Values["depth"])
	assert.InDelta(t, 0.25, child.Values["rate"].(float64), 1e-12)
	assert.InDelta(t, 0.001, child.Values["reg"].(float64), 1e-12)
	assert.Equal(t, "entropy", child.Values["impurity"])
	assert.Equal(t, false, child.Values["intercept"])
}

func TestChildDeterministicForSeed(t *testing.T) {
	schema, bounds := testSchema()
	policy := Policy{Strategy: CountLinear, Magnitude: MagnitudeRandom, Decrement: 1}

	primary := parent(13, 0.37, 0.01, "variance", true)
	secondary := parent(2, 0.9, 0.5, "gini", false)

	a, err := New(schema, bounds, 0.5, policy, 123)
	require.NoError(t, err)
	b, err := New(schema, bounds, 0.5, policy, 123)
	require.NoError(t, err)

	for i := 0; i < 20; i++ {
		assert.Equal(t, a.Child(primary, secondary, i), b.Child(primary, secondary, i))
	}
}

func TestRandomStaysInBounds(t *testing.T) {
	schema, bounds := testSchema()
	policy := Policy{Strategy: CountFixed, Magnitude: MagnitudeFixed, Count: 1}
	m, err := New(schema, bounds, 0.5, policy, 5)
	require.NoError(t, err)

	for i := 0; i < 200; i++ {
		c := m.Random()
		for name, b := range bounds.Numeric {
			v, ok := c.Float(name)
			require.True(t, ok)
			assert.GreaterOrEqual(t, v, b.Low)
			assert.LessOrEqual(t, v, b.High)
		}
		assert.Contains(t, bounds.Categorical["impurity"], c.Values["impurity"])
	}
}
