// Package report aggregates a population of evaluation results into summary
// statistics. Aggregation is pure over its input and safe to call at any
// point during a run for progress inspection.
package report

import (
	"gonum.org/v1/gonum/stat"

	"github.com/copyleftdev/EVOLVR/internal/tuning"
)

// Stats summarizes the non-failed scores of one generation (batch) or one
// fixed-size completion window (continuous).
type Stats struct {
	Index     int     `json:"index"`
	Evaluated int     `json:"evaluated"`
	Failed    int     `json:"failed"`
	Mean      float64 `json:"mean"`
	StdDev    float64 `json:"stddev"`
	Best      float64 `json:"best"`
}

// Report is the aggregator's output: the flat result log, the per-group
// statistic series, and the single best result by objective.
type Report struct {
	Results []tuning.EvaluationResult `json:"results"`
	Series  []Stats                   `json:"series"`
	Best    *tuning.EvaluationResult  `json:"best,omitempty"`
}

// Aggregate groups results by generation index.
func Aggregate(results []tuning.EvaluationResult, o tuning.Objective) *Report {
	maxGen := -1
	for _, r := range results {
		if r.Generation > maxGen {
			maxGen = r.Generation
		}
	}
	groups := make([][]tuning.EvaluationResult, maxGen+1)
	for _, r := range results {
		groups[r.Generation] = append(groups[r.Generation], r)
	}
	return build(results, groups, o)
}

// AggregateWindows groups results into fixed-size windows in completion
// order, giving continuous runs reporting symmetry with batch generations.
func AggregateWindows(results []tuning.EvaluationResult, windowSize int, o tuning.Objective) *Report {
	if windowSize < 1 {
		windowSize = 1
	}
	var groups [][]tuning.EvaluationResult
	for start := 0; start < len(results); start += windowSize {
		end := start + windowSize
		if end > len(results) {
			end = len(results)
		}
		groups = append(groups, results[start:end])
	}
	return build(results, groups, o)
}

func build(results []tuning.EvaluationResult, groups [][]tuning.EvaluationResult, o tuning.Objective) *Report {
	rep := &Report{Results: results}

	for i, group := range groups {
		if len(group) == 0 {
			continue
		}
		st := Stats{Index: i, Evaluated: len(group)}
		var scores []float64
		for _, r := range group {
			if r.Failed {
				st.Failed++
				continue
			}
			scores = append(scores, r.Score)
			if len(scores) == 1 || o.Better(r.Score, st.Best) {
				st.Best = r.Score
			}
		}
		if len(scores) > 0 {
			st.Mean = stat.Mean(scores, nil)
			if len(scores) > 1 {
				st.StdDev = stat.StdDev(scores, nil)
			}
		}
		rep.Series = append(rep.Series, st)
	}

	for i := range results {
		if results[i].Failed {
			continue
		}
		if rep.Best == nil || o.Better(results[i].Score, rep.Best.Score) {
			kept := results[i]
			rep.Best = &kept
		}
	}
	return rep
}
