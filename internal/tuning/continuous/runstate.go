package continuous

import (
	"sync"

	"github.com/copyleftdev/EVOLVR/internal/tuning"
)

// RunState is the shared mutable state of one continuous run: the current
// best result, submission/completion counters, and a fixed-size rolling
// window of recent score deltas used for stagnation detection. All updates
// are read-modify-write under one mutex; multiple completions race to update
// it. The state lives for exactly one run.
type RunState struct {
	mu        sync.Mutex
	best      *tuning.EvaluationResult
	submitted int
	completed int

	// Ring of improvement deltas for the last windowSize completions. A
	// delta is positive only when the completion strictly improved the best
	// score; ties are non-improving.
	window []float64
	next   int
	filled int
}

// NewRunState returns state with a rolling window of the given size.
func NewRunState(windowSize int) *RunState {
	return &RunState{window: make([]float64, windowSize)}
}

// NoteSubmitted counts one submission and returns the new total.
func (st *RunState) NoteSubmitted() int {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.submitted++
	return st.submitted
}

// Complete records one completed evaluation: updates the best score if
// improved, pushes the score delta into the rolling window, and reports
// whether the result improved the best and whether the window has gone
// stagnant. Failed evaluations count as non-improving completions.
func (st *RunState) Complete(r tuning.EvaluationResult, o tuning.Objective) (improved, stagnant bool) {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.completed++

	var delta float64
	if !r.Failed {
		if st.best == nil {
			improved = true
			delta = 1
		} else if o.Better(r.Score, st.best.Score) {
			improved = true
			if o == tuning.Minimize {
				delta = st.best.Score - r.Score
			} else {
				delta = r.Score - st.best.Score
			}
		}
		if improved {
			kept := r
			st.best = &kept
		}
	}

	st.window[st.next] = delta
	st.next = (st.next + 1) % len(st.window)
	if st.filled < len(st.window) {
		st.filled++
	}

	if st.filled == len(st.window) {
		stagnant = true
		for _, d := range st.window {
			if d > 0 {
				stagnant = false
				break
			}
		}
	}
	return improved, stagnant
}

// Best returns the best result recorded so far.
func (st *RunState) Best() (tuning.EvaluationResult, bool) {
	st.mu.Lock()
	defer st.mu.Unlock()
	if st.best == nil {
		return tuning.EvaluationResult{}, false
	}
	return *st.best, true
}

// Submitted returns the total submission count.
func (st *RunState) Submitted() int {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.submitted
}

// Completed returns the total completion count.
func (st *RunState) Completed() int {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.completed
}
