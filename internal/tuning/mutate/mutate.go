// Package mutate produces child candidates from parent material plus
// controlled randomness.
package mutate

import (
	"math"
	"math/rand"

	"github.com/copyleftdev/EVOLVR/internal/tuning"
)

// CountStrategy selects how the per-generation mutation budget is derived.
type CountStrategy string

const (
	// CountLinear shrinks the mutable-dimension budget as generations
	// advance: max(1, D - g*decrement).
	CountLinear CountStrategy = "linear"
	// CountFixed uses the same budget for every generation.
	CountFixed CountStrategy = "fixed"
)

// Magnitude selects how many dimensions inside the budget actually mutate.
type Magnitude string

const (
	// MagnitudeRandom draws the mutation count uniformly from [1, budget].
	MagnitudeRandom Magnitude = "random"
	// MagnitudeFixed mutates exactly the budget.
	MagnitudeFixed Magnitude = "fixed"
)

// Policy is the mutation-count policy for a run.
type Policy struct {
	Strategy  CountStrategy
	Magnitude Magnitude
	// Decrement is the per-generation budget reduction under CountLinear.
	Decrement int
	// Count is the constant budget under CountFixed.
	Count int
}

// Validate checks the policy against the dimension count of the schema.
func (p Policy) Validate(dims int) error {
	switch p.Strategy {
	case CountLinear:
		if p.Decrement < 0 {
			return tuning.NewErrorf("linear mutation decrement must be non-negative, got %d", p.Decrement).
				WithComponent("mutate").WithField("fixedDecrement")
		}
	case CountFixed:
		if p.Count < 1 || p.Count > dims {
			return tuning.NewErrorf("fixed mutation count must be in [1, %d], got %d", dims, p.Count).
				WithComponent("mutate").WithField("fixedMutationValue")
		}
	default:
		return tuning.NewErrorf("unknown mutation strategy %q", p.Strategy).
			WithComponent("mutate").WithField("mutationStrategy")
	}
	switch p.Magnitude {
	case MagnitudeRandom, MagnitudeFixed:
	default:
		return tuning.NewErrorf("unknown mutation magnitude %q", p.Magnitude).
			WithComponent("mutate").WithField("mutationMagnitude")
	}
	return nil
}

// budget returns the maximum mutable dimension count for a generation.
func (p Policy) budget(generation, dims int) int {
	var max int
	switch p.Strategy {
	case CountFixed:
		max = p.Count
	default:
		max = dims - generation*p.Decrement
	}
	if max < 1 {
		max = 1
	}
	if max > dims {
		max = dims
	}
	return max
}

// Mutator builds child candidates for one run. It owns a seeded random
// source and is intended for use from a single scheduler goroutine; it is
// not safe for concurrent use.
type Mutator struct {
	schema tuning.Schema
	bounds tuning.Boundaries
	mix    float64
	policy Policy
	rng    *rand.Rand
}

// New validates the genetic-mixing ratio and mutation policy and returns a
// mutator seeded for reproducible runs.
func New(schema tuning.Schema, bounds tuning.Boundaries, mix float64, policy Policy, seed int64) (*Mutator, error) {
	if mix < 0 || mix > 1 {
		return nil, tuning.NewErrorf("genetic mixing ratio must be in [0, 1], got %v", mix).
			WithComponent("mutate").WithField("geneticMixing")
	}
	if err := policy.Validate(len(schema.Dimensions)); err != nil {
		return nil, err
	}
	if err := schema.Validate(bounds); err != nil {
		return nil, err
	}
	return &Mutator{
		schema: schema,
		bounds: bounds,
		mix:    mix,
		policy: policy,
		rng:    rand.New(rand.NewSource(seed)),
	}, nil
}

// Child produces one child candidate. Dimensions selected for mutation blend
// the secondary parent's value against a fresh random draw; all other
// dimensions copy the primary parent exactly.
func (m *Mutator) Child(primary, secondary tuning.Candidate, generation int) tuning.Candidate {
	dims := len(m.schema.Dimensions)
	budget := m.policy.budget(generation, dims)

	count := budget
	if m.policy.Magnitude == MagnitudeRandom {
		count = 1 + m.rng.Intn(budget)
	}

	mutated := make(map[int]bool, count)
	for _, i := range m.rng.Perm(dims)[:count] {
		mutated[i] = true
	}

	vals := make(map[string]any, dims)
	for i, d := range m.schema.Dimensions {
		if !mutated[i] {
			vals[d.Name] = primary.Values[d.Name]
			continue
		}
		vals[d.Name] = m.mutateDimension(d, secondary.Values[d.Name])
	}
	return tuning.Candidate{Values: vals}
}

// Random returns a candidate drawn uniformly from the boundary ranges, used
// as secondary parent material when only one parent is retained.
func (m *Mutator) Random() tuning.Candidate {
	vals := make(map[string]any, len(m.schema.Dimensions))
	for _, d := range m.schema.Dimensions {
		switch d.Kind {
		case tuning.KindContinuous:
			vals[d.Name] = m.uniform(m.bounds.Numeric[d.Name])
		case tuning.KindInteger:
			b := m.bounds.Numeric[d.Name]
			vals[d.Name] = clampInt(int(math.Round(m.uniform(b))), b)
		case tuning.KindCategorical:
			set := m.bounds.Categorical[d.Name]
			vals[d.Name] = set[m.rng.Intn(len(set))]
		case tuning.KindBoolean:
			vals[d.Name] = m.rng.Intn(2) == 0
		}
	}
	return tuning.Candidate{Values: vals}
}

func (m *Mutator) mutateDimension(d tuning.Dimension, parent any) any {
	switch d.Kind {
	case tuning.KindContinuous:
		b := m.bounds.Numeric[d.Name]
		return clamp(m.blend(asFloat(parent), b), b)
	case tuning.KindInteger:
		b := m.bounds.Numeric[d.Name]
		return clampInt(int(math.Round(m.blend(asFloat(parent), b))), b)
	case tuning.KindCategorical:
		if m.rng.Float64() < m.mix {
			return parent
		}
		set := m.bounds.Categorical[d.Name]
		return set[m.rng.Intn(len(set))]
	case tuning.KindBoolean:
		if m.rng.Float64() < m.mix {
			return parent
		}
		return m.rng.Intn(2) == 0
	}
	return parent
}

// blend mixes the parent value with a uniform draw from the boundary range:
// parent*mix + random*(1-mix).
func (m *Mutator) blend(parent float64, b tuning.NumericBounds) float64 {
	return parent*m.mix + m.uniform(b)*(1-m.mix)
}

func (m *Mutator) uniform(b tuning.NumericBounds) float64 {
	return b.Low + m.rng.Float64()*(b.High-b.Low)
}

func clamp(v float64, b tuning.NumericBounds) float64 {
	return math.Max(b.Low, math.Min(v, b.High))
}

func clampInt(v int, b tuning.NumericBounds) int {
	if lo := int(math.Ceil(b.Low)); v < lo {
		return lo
	}
	if hi := int(math.Floor(b.High)); v > hi {
		return hi
	}
	return v
}

func asFloat(v any) float64 {
	switch x := v.(type) {
	case float64:
		return x
	case int:
		return float64(x)
	}
	return 0
}
