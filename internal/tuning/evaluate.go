package tuning

import (
	"context"

	"github.com/copyleftdev/EVOLVR/internal/errors"
)

// SafeEvaluate invokes the trainer for one candidate, converting a returned
// error or a panic into a flagged EvaluationResult instead of aborting the
// run. The candidate's provenance tags carry onto the result.
func SafeEvaluate(ctx context.Context, t Trainer, c Candidate) EvaluationResult {
	var ev Evaluation
	err := errors.WithRecover(func() error {
		var evalErr error
		ev, evalErr = t.Evaluate(ctx, c)
		return evalErr
	})
	if err != nil {
		return EvaluationResult{
			Candidate:     c,
			Generation:    c.Generation,
			Failed:        true,
			FailureReason: err.Error(),
		}
	}
	return EvaluationResult{
		Candidate:  c,
		Score:      ev.Score,
		Metrics:    ev.Metrics,
		Artifact:   ev.Artifact,
		Generation: c.Generation,
	}
}
