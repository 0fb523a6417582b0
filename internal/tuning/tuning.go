// Package tuning defines the data model and collaborator contracts for the
// evolutionary hyperparameter tuning engine.
package tuning

import (
	"context"
	"sync"
	"sync/atomic"
)

// Kind classifies a hyperparameter dimension.
type Kind string

const (
	// KindContinuous is a real-valued dimension bounded by [low, high].
	KindContinuous Kind = "numeric-continuous"
	// KindInteger is an integer-valued dimension bounded by [low, high].
	KindInteger Kind = "numeric-integer"
	// KindCategorical is a dimension drawn from a declared value set.
	KindCategorical Kind = "categorical"
	// KindBoolean is a two-valued dimension fixed to {true, false}.
	KindBoolean Kind = "boolean"
)

// Scale selects how a numeric dimension is discretized.
type Scale string

const (
	// ScaleLinear spaces candidate values evenly between the bounds.
	ScaleLinear Scale = "linear"
	// ScaleLog spaces candidate values evenly in log domain; used for
	// dimensions spanning orders of magnitude such as regularization
	// strength.
	ScaleLog Scale = "log"
)

// Dimension is one axis of a model family's search space.
type Dimension struct {
	Name  string
	Kind  Kind
	Scale Scale // numeric dimensions only; empty means linear
}

// Schema is the fixed, ordered dimension list of one model family.
// Schemas are immutable and declared once per family; see families.go.
type Schema struct {
	Family     string
	Dimensions []Dimension
}

// NumericBounds is an inclusive [Low, High] range for a numeric dimension.
type NumericBounds struct {
	Low  float64 `yaml:"low" json:"low"`
	High float64 `yaml:"high" json:"high"`
}

// Boundaries maps every schema dimension to its allowed value range or set.
type Boundaries struct {
	Numeric     map[string]NumericBounds `yaml:"numeric" json:"numeric"`
	Categorical map[string][]string      `yaml:"categorical" json:"categorical"`
}

// Validate checks that b covers every dimension of the schema. A missing
// dimension, an empty categorical set, an inverted numeric range, or a
// non-positive bound on a log-scaled dimension is a configuration error.
func (s Schema) Validate(b Boundaries) error {
	for _, d := range s.Dimensions {
		switch d.Kind {
		case KindContinuous, KindInteger:
			nb, ok := b.Numeric[d.Name]
			if !ok {
				return NewErrorf("missing numeric boundary for dimension %q", d.Name).
					WithField(d.Name).WithOperation("validate")
			}
			if nb.High < nb.Low {
				return NewErrorf("boundary for dimension %q is inverted: low=%v high=%v", d.Name, nb.Low, nb.High).
					WithField(d.Name).WithOperation("validate")
			}
			if d.Scale == ScaleLog && nb.Low <= 0 {
				return NewErrorf("log-scaled dimension %q requires a positive lower bound, got %v", d.Name, nb.Low).
					WithField(d.Name).WithOperation("validate")
			}
		case KindCategorical:
			vals, ok := b.Categorical[d.Name]
			if !ok || len(vals) == 0 {
				return NewErrorf("empty allowed-value set for categorical dimension %q", d.Name).
					WithField(d.Name).WithOperation("validate")
			}
		case KindBoolean:
			// Fixed to {true, false}; nothing to declare.
		default:
			return NewErrorf("dimension %q has unknown kind %q", d.Name, d.Kind).
				WithField(d.Name).WithOperation("validate")
		}
	}
	return nil
}

// Candidate is one concrete hyperparameter assignment. Candidates are value
// objects: equality is by assignment, and the Values map is never mutated
// after construction. Seq and Generation tag provenance at submission time.
type Candidate struct {
	Values     map[string]any
	Seq        uint64
	Generation int
}

// Clone returns a copy whose Values map is independent of the receiver's.
func (c Candidate) Clone() Candidate {
	vals := make(map[string]any, len(c.Values))
	for k, v := range c.Values {
		vals[k] = v
	}
	return Candidate{Values: vals, Seq: c.Seq, Generation: c.Generation}
}

// Float returns the value of a numeric dimension as float64. Integer
// dimensions are stored as int and widened here.
func (c Candidate) Float(name string) (float64, bool) {
	switch v := c.Values[name].(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	}
	return 0, false
}

// Evaluation is what a Trainer reports for one candidate: a score, named
// metrics, and an opaque reference to the fitted model artifact.
type Evaluation struct {
	Score    float64
	Metrics  map[string]float64
	Artifact string
}

// Trainer is the external model-fit collaborator. Evaluate is invoked
// concurrently and must be safe for concurrent use; a returned error marks
// the candidate as a failed evaluation without aborting the run. Evaluation
// of a given candidate happens at most once.
type Trainer interface {
	Evaluate(ctx context.Context, c Candidate) (Evaluation, error)
}

// TrainerFunc adapts a plain function to the Trainer interface.
type TrainerFunc func(ctx context.Context, c Candidate) (Evaluation, error)

// Evaluate implements Trainer.
func (f TrainerFunc) Evaluate(ctx context.Context, c Candidate) (Evaluation, error) {
	return f(ctx, c)
}

// EvaluationResult is a Candidate joined with its trainer outcome. Results
// are immutable once recorded into a Population.
type EvaluationResult struct {
	Candidate  Candidate
	Score      float64
	Metrics    map[string]float64
	Artifact   string
	Generation int
	Failed     bool
	// FailureReason holds the trainer error text for a failed evaluation.
	FailureReason string
}

// Objective states whether higher or lower scores win when ranking results.
type Objective string

const (
	Maximize Objective = "maximize"
	Minimize Objective = "minimize"
)

// Valid reports whether o names a known optimization strategy.
func (o Objective) Valid() bool {
	return o == Maximize || o == Minimize
}

// Better reports whether score a strictly beats score b under the objective.
// Ties are not improvements.
func (o Objective) Better(a, b float64) bool {
	if o == Minimize {
		return a < b
	}
	return a > b
}

// Satisfies reports whether score meets the stopping threshold: >= for
// maximize, <= for minimize.
func (o Objective) Satisfies(score, threshold float64) bool {
	if o == Minimize {
		return score <= threshold
	}
	return score >= threshold
}

// Population accumulates every EvaluationResult of a run. It is append-only
// and safe for concurrent use; results are never removed or mutated in place.
type Population struct {
	mu      sync.RWMutex
	results []EvaluationResult
}

// NewPopulation returns an empty population.
func NewPopulation() *Population {
	return &Population{}
}

// Record appends one result.
func (p *Population) Record(r EvaluationResult) {
	p.mu.Lock()
	p.results = append(p.results, r)
	p.mu.Unlock()
}

// Len returns the number of recorded results.
func (p *Population) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.results)
}

// Snapshot returns a copy of all results in record order. Safe to call
// mid-run for progress inspection.
func (p *Population) Snapshot() []EvaluationResult {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]EvaluationResult, len(p.results))
	copy(out, p.results)
	return out
}

// Eligible returns the non-failed results in record order.
func (p *Population) Eligible() []EvaluationResult {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]EvaluationResult, 0, len(p.results))
	for _, r := range p.results {
		if !r.Failed {
			out = append(out, r)
		}
	}
	return out
}

// Sequencer hands out the monotonically increasing sequence ids that tag
// each candidate at submission time.
type Sequencer struct {
	n atomic.Uint64
}

// Next returns the next sequence id, starting from 1.
func (s *Sequencer) Next() uint64 {
	return s.n.Add(1)
}
