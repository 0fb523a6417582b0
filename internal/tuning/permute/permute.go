// Package permute materializes and subsamples the configuration space of a
// model family.
package permute

import (
	"math/rand"

	"github.com/copyleftdev/EVOLVR/internal/tuning"
	"github.com/copyleftdev/EVOLVR/internal/tuning/space"
)

// BuildFullSpace returns the Cartesian product of every dimension's
// discretized values, walked in schema dimension order. The ordering carries
// no meaning but is deterministic, which keeps seeded sampling reproducible.
func BuildFullSpace(schema tuning.Schema, b tuning.Boundaries, pointsPerDimension int) ([]tuning.Candidate, error) {
	if err := schema.Validate(b); err != nil {
		return nil, err
	}

	axes := make([][]any, len(schema.Dimensions))
	total := 1
	for i, d := range schema.Dimensions {
		vals, err := dimensionValues(d, b, pointsPerDimension)
		if err != nil {
			return nil, err
		}
		if len(vals) == 0 {
			return nil, tuning.NewErrorf("dimension %q discretized to an empty sequence", d.Name).
				WithComponent("permute").WithField(d.Name)
		}
		axes[i] = vals
		total *= len(vals)
	}

	// Odometer walk: the last dimension varies fastest, the first slowest.
	candidates := make([]tuning.Candidate, 0, total)
	idx := make([]int, len(axes))
	for {
		vals := make(map[string]any, len(axes))
		for i, d := range schema.Dimensions {
			vals[d.Name] = axes[i][idx[i]]
		}
		candidates = append(candidates, tuning.Candidate{Values: vals})

		pos := len(idx) - 1
		for pos >= 0 {
			idx[pos]++
			if idx[pos] < len(axes[pos]) {
				break
			}
			idx[pos] = 0
			pos--
		}
		if pos < 0 {
			break
		}
	}
	return candidates, nil
}

// Sample draws a seeded uniform random sample without replacement of size
// min(countTarget, len(full)). When countTarget covers the whole space the
// full space is returned unsampled. The same seed over the same full space
// yields an identical sample.
func Sample(full []tuning.Candidate, countTarget int, seed int64) ([]tuning.Candidate, error) {
	if countTarget < 1 {
		return nil, tuning.NewErrorf("sample size must be positive, got %d", countTarget).
			WithComponent("permute").WithField("countTarget")
	}
	if countTarget >= len(full) {
		out := make([]tuning.Candidate, len(full))
		copy(out, full)
		return out, nil
	}

	rng := rand.New(rand.NewSource(seed))
	picks := rng.Perm(len(full))[:countTarget]
	out := make([]tuning.Candidate, countTarget)
	for i, p := range picks {
		out[i] = full[p]
	}
	return out, nil
}

func dimensionValues(d tuning.Dimension, b tuning.Boundaries, pointsPerDimension int) ([]any, error) {
	switch d.Kind {
	case tuning.KindContinuous, tuning.KindInteger:
		return space.Values(d, b.Numeric[d.Name], pointsPerDimension)
	case tuning.KindCategorical:
		declared := b.Categorical[d.Name]
		vals := make([]any, len(declared))
		for i, v := range declared {
			vals[i] = v
		}
		return vals, nil
	case tuning.KindBoolean:
		return []any{true, false}, nil
	}
	return nil, tuning.NewErrorf("dimension %q has unknown kind %q", d.Name, d.Kind).
		WithComponent("permute").WithField(d.Name)
}
