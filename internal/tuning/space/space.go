// Package space discretizes continuous boundary declarations into finite
// candidate value sequences.
package space

import (
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/copyleftdev/EVOLVR/internal/tuning"
)

// Linear returns n evenly spaced values from b.Low to b.High inclusive.
// A degenerate boundary (Low == High) yields a single-element sequence
// regardless of n.
func Linear(b tuning.NumericBounds, n int) ([]float64, error) {
	if err := check(b, n); err != nil {
		return nil, err
	}
	if b.Low == b.High {
		return []float64{b.Low}, nil
	}
	return floats.Span(make([]float64, n), b.Low, b.High), nil
}

// Log returns n values evenly spaced in log domain between b.Low and b.High,
// exponentiated back to the original domain. Both bounds must be positive.
// Used for dimensions spanning orders of magnitude so the search does not
// over-sample the high end.
func Log(b tuning.NumericBounds, n int) ([]float64, error) {
	if err := check(b, n); err != nil {
		return nil, err
	}
	if b.Low <= 0 {
		return nil, tuning.NewErrorf("log spacing requires positive bounds, got low=%v", b.Low).
			WithComponent("space").WithOperation("log")
	}
	if b.Low == b.High {
		return []float64{b.Low}, nil
	}
	vals := floats.Span(make([]float64, n), math.Log(b.Low), math.Log(b.High))
	for i, v := range vals {
		vals[i] = math.Exp(v)
	}
	// Pin the endpoints so exp(log(x)) round-off cannot leak outside the
	// declared boundary.
	vals[0] = b.Low
	vals[n-1] = b.High
	return vals, nil
}

// Integer returns a linear spacing rounded to the nearest integer. Duplicates
// produced by rounding are collapsed, but never below two elements.
func Integer(b tuning.NumericBounds, n int) ([]int, error) {
	lin, err := Linear(b, n)
	if err != nil {
		return nil, err
	}
	rounded := make([]int, len(lin))
	for i, v := range lin {
		rounded[i] = int(math.Round(v))
	}
	if len(rounded) < 2 {
		return rounded, nil
	}
	collapsed := rounded[:1]
	for _, v := range rounded[1:] {
		if v != collapsed[len(collapsed)-1] {
			collapsed = append(collapsed, v)
		}
	}
	if len(collapsed) < 2 {
		return rounded, nil
	}
	return collapsed, nil
}

// Values discretizes one numeric dimension according to its kind and scale,
// boxing the results for the permutation generator.
func Values(d tuning.Dimension, b tuning.NumericBounds, n int) ([]any, error) {
	switch d.Kind {
	case tuning.KindInteger:
		ints, err := Integer(b, n)
		if err != nil {
			return nil, err
		}
		out := make([]any, len(ints))
		for i, v := range ints {
			out[i] = v
		}
		return out, nil
	case tuning.KindContinuous:
		var (
			vals []float64
			err  error
		)
		if d.Scale == tuning.ScaleLog {
			vals, err = Log(b, n)
		} else {
			vals, err = Linear(b, n)
		}
		if err != nil {
			return nil, err
		}
		out := make([]any, len(vals))
		for i, v := range vals {
			out[i] = v
		}
		return out, nil
	}
	return nil, tuning.NewErrorf("dimension %q is not numeric", d.Name).
		WithComponent("space").WithField(d.Name)
}

func check(b tuning.NumericBounds, n int) error {
	if n < 2 {
		return tuning.NewErrorf("point count must be at least 2, got %d", n).
			WithComponent("space").WithField("pointsPerDimension")
	}
	if b.High < b.Low {
		return tuning.NewErrorf("inverted boundary: low=%v high=%v", b.Low, b.High).
			WithComponent("space").WithField("boundary")
	}
	return nil
}
