// Package continuous runs asynchronous evolution: a fixed number of
// evaluations stay in flight, each completion immediately funds one new
// submission, and two independent triggers can stop the run early.
package continuous

import (
	"context"
	"math/rand"

	"go.uber.org/zap"

	"github.com/copyleftdev/EVOLVR/internal/tuning"
	"github.com/copyleftdev/EVOLVR/internal/tuning/mutate"
	"github.com/copyleftdev/EVOLVR/internal/tuning/permute"
	"github.com/copyleftdev/EVOLVR/internal/tuning/report"
)

// Config contains configuration for a continuous evolution run.
type Config struct {
	Schema     tuning.Schema
	Boundaries tuning.Boundaries
	Objective  tuning.Objective

	// PointsPerDimension controls search-space discretization density for
	// the initial random pool.
	PointsPerDimension int

	// Parallelism is the steady-state in-flight evaluation count.
	Parallelism int

	// MaxIterations caps total submissions across the run.
	MaxIterations int

	// RollingImprovementCount is the stagnation window size: the run stops
	// once that many consecutive completions fail to improve the best score.
	RollingImprovementCount int

	// GeneticMixing is the blend weight for mutated dimensions.
	GeneticMixing float64

	// MutationCount is the fixed per-child mutation aggressiveness. There
	// is no generation concept and no decay here.
	MutationCount int

	// StoppingScore, when enabled, ends new submissions as soon as the best
	// score satisfies it directionally.
	StoppingScoreEnabled bool
	StoppingScore        float64

	// Seed drives all randomized sampling and mutation.
	Seed int64

	Logger *zap.Logger
}

// Scheduler drives one continuous evolution run.
type Scheduler struct {
	cfg   Config
	pop   *tuning.Population
	state *RunState
	mut   *mutate.Mutator
	rng   *rand.Rand
	seq   tuning.Sequencer
	log   *zap.Logger
}

// New validates the configuration and returns a scheduler.
func New(cfg Config) (*Scheduler, error) {
	if !cfg.Objective.Valid() {
		return nil, tuning.NewErrorf("unknown optimization strategy %q", cfg.Objective).
			WithComponent("continuous").WithField("optimizationStrategy")
	}
	if cfg.Parallelism < 1 {
		return nil, tuning.NewErrorf("parallelism must be positive, got %d", cfg.Parallelism).
			WithComponent("continuous").WithField("continuousEvolutionParallelism")
	}
	if cfg.MaxIterations < 1 {
		return nil, tuning.NewErrorf("max iterations must be positive, got %d", cfg.MaxIterations).
			WithComponent("continuous").WithField("continuousEvolutionMaxIterations")
	}
	if cfg.RollingImprovementCount < 1 {
		return nil, tuning.NewErrorf("rolling improvement count must be positive, got %d", cfg.RollingImprovementCount).
			WithComponent("continuous").WithField("continuousEvolutionRollingImprovementCount")
	}
	if cfg.PointsPerDimension < 2 {
		cfg.PointsPerDimension = 5
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	policy := mutate.Policy{
		Strategy:  mutate.CountFixed,
		Magnitude: mutate.MagnitudeFixed,
		Count:     cfg.MutationCount,
	}
	mut, err := mutate.New(cfg.Schema, cfg.Boundaries, cfg.GeneticMixing, policy, cfg.Seed+1)
	if err != nil {
		return nil, err
	}

	return &Scheduler{
		cfg:   cfg,
		pop:   tuning.NewPopulation(),
		state: NewRunState(cfg.RollingImprovementCount),
		mut:   mut,
		rng:   rand.New(rand.NewSource(cfg.Seed + 2)),
		log:   cfg.Logger.Named("continuous"),
	}, nil
}

// Population returns the accumulated results; safe to snapshot mid-run.
func (s *Scheduler) Population() *tuning.Population {
	return s.pop
}

// State returns the run's shared mutable state for progress inspection.
func (s *Scheduler) State() *RunState {
	return s.state
}

// Run executes the pipeline until a stop condition fires or the submission
// cap is reached, then drains every in-flight evaluation before returning.
// Results completing after the stopping decision are still recorded.
func (s *Scheduler) Run(ctx context.Context, trainer tuning.Trainer) (*report.Report, error) {
	pool, err := s.seedPool()
	if err != nil {
		return nil, err
	}

	results := make(chan tuning.EvaluationResult)
	inFlight := 0

	submit := func(c tuning.Candidate) {
		c.Seq = s.seq.Next()
		s.state.NoteSubmitted()
		inFlight++
		go func() {
			results <- tuning.SafeEvaluate(ctx, trainer, c)
		}()
	}

	// Initial fill to steady-state concurrency, each candidate mutated from
	// the random pool.
	fill := s.cfg.Parallelism
	if fill > s.cfg.MaxIterations {
		fill = s.cfg.MaxIterations
	}
	for i := 0; i < fill; i++ {
		primary := pool[s.rng.Intn(len(pool))]
		submit(s.mut.Child(primary, s.mut.Random(), 0))
	}
	s.log.Info("initial fill submitted",
		zap.Int("in_flight", inFlight),
		zap.String("family", s.cfg.Schema.Family))

	stopping := false
	for inFlight > 0 {
		r := <-results
		inFlight--
		s.pop.Record(r)

		improved, stagnant := s.state.Complete(r, s.cfg.Objective)
		if improved {
			s.log.Info("new best score",
				zap.Float64("score", r.Score),
				zap.Uint64("seq", r.Candidate.Seq),
				zap.Int("completed", s.state.Completed()))
		}

		if !stopping {
			select {
			case <-ctx.Done():
				// Cancellation stops new submissions; in-flight work is
				// never interrupted, only drained.
				stopping = true
				s.log.Info("stopping: run cancelled", zap.Int("in_flight", inFlight))
			default:
			}
		}

		if !stopping {
			best, ok := s.state.Best()
			switch {
			case ok && s.cfg.StoppingScoreEnabled && s.cfg.Objective.Satisfies(best.Score, s.cfg.StoppingScore):
				stopping = true
				s.log.Info("stopping: score threshold reached",
					zap.Float64("best", best.Score),
					zap.Int("in_flight", inFlight))
			case stagnant:
				stopping = true
				s.log.Info("stopping: no rolling improvement",
					zap.Int("window", s.cfg.RollingImprovementCount),
					zap.Int("in_flight", inFlight))
			}
		}

		if !stopping && s.state.Submitted() < s.cfg.MaxIterations {
			// Replacement scheduling: exactly one new child per completion
			// keeps the in-flight count at steady state.
			parent, ok := s.state.Best()
			primary := parent.Candidate
			if !ok {
				primary = pool[s.rng.Intn(len(pool))]
			}
			submit(s.mut.Child(primary, s.mut.Random(), 0))
		}
	}

	rep := report.AggregateWindows(s.pop.Snapshot(), s.cfg.Parallelism, s.cfg.Objective)
	if rep.Best == nil {
		return rep, tuning.NewError("run produced no successful evaluations").
			WithComponent("continuous").WithOperation("finish")
	}
	return rep, nil
}

func (s *Scheduler) seedPool() ([]tuning.Candidate, error) {
	full, err := permute.BuildFullSpace(s.cfg.Schema, s.cfg.Boundaries, s.cfg.PointsPerDimension)
	if err != nil {
		return nil, err
	}
	size := s.cfg.Parallelism * 2
	if size < 2 {
		size = 2
	}
	return permute.Sample(full, size, s.cfg.Seed)
}
