// Package trainers provides synthetic benchmark trainers. The server and
// CLI use them in place of a real model-fit pipeline; production callers
// supply their own tuning.Trainer.
package trainers

import (
	"context"
	"math"
	"sort"

	"github.com/copyleftdev/EVOLVR/internal/tuning"
)

// Benchmark names a built-in synthetic objective computed over the numeric
// dimensions of a candidate. Scores are deterministic, so repeated runs with
// a fixed seed reproduce byte-identical results.
type Benchmark string

const (
	// Sphere is sum(x^2); minimum 0 at the origin.
	Sphere Benchmark = "sphere"
	// Rastrigin is the classic multimodal benchmark; minimum 0 at the origin.
	Rastrigin Benchmark = "rastrigin"
	// Rosenbrock is the banana-valley benchmark; minimum 0 at (1, ..., 1).
	Rosenbrock Benchmark = "rosenbrock"
)

// New returns a Trainer evaluating the named benchmark. The score is the
// benchmark value (to be minimized); metrics report the dimension count.
func New(name Benchmark) (tuning.Trainer, error) {
	var fn func(x []float64) float64
	switch name {
	case Sphere:
		fn = sphere
	case Rastrigin:
		fn = rastrigin
	case Rosenbrock:
		fn = rosenbrock
	default:
		return nil, tuning.NewErrorf("unknown benchmark trainer %q", name).
			WithComponent("trainers").WithField("trainer")
	}

	return tuning.TrainerFunc(func(ctx context.Context, c tuning.Candidate) (tuning.Evaluation, error) {
		x := numericVector(c)
		return tuning.Evaluation{
			Score:   fn(x),
			Metrics: map[string]float64{"numeric_dimensions": float64(len(x))},
		}, nil
	}), nil
}

// numericVector extracts the candidate's numeric values in dimension-name
// order, so the benchmark is stable regardless of map iteration.
func numericVector(c tuning.Candidate) []float64 {
	names := make([]string, 0, len(c.Values))
	for name := range c.Values {
		names = append(names, name)
	}
	sort.Strings(names)

	var x []float64
	for _, name := range names {
		if v, ok := c.Float(name); ok {
			x = append(x, v)
		}
	}
	return x
}

func sphere(x []float64) float64 {
	sum := 0.0
	for _, v := range x {
		sum += v * v
	}
	return sum
}

func rastrigin(x []float64) float64 {
	sum := 10.0 * float64(len(x))
	for _, v := range x {
		sum += v*v - 10*math.Cos(2*math.Pi*v)
	}
	return sum
}

func rosenbrock(x []float64) float64 {
	if len(x) < 2 {
		return sphere(x)
	}
	sum := 0.0
	for i := 0; i < len(x)-1; i++ {
		a := x[i+1] - x[i]*x[i]
		b := 1 - x[i]
		sum += 100*a*a + b*b
	}
	return sum
}
