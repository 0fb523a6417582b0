// Package batch runs generation-synchronous evolution: a full generation is
// evaluated in parallel behind a hard barrier, then the next generation is
// mutated from retained parents.
package batch

import (
	"context"
	"math/rand"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/copyleftdev/EVOLVR/internal/tuning"
	"github.com/copyleftdev/EVOLVR/internal/tuning/mutate"
	"github.com/copyleftdev/EVOLVR/internal/tuning/permute"
	"github.com/copyleftdev/EVOLVR/internal/tuning/report"
)

// Config contains configuration for a batch evolution run.
type Config struct {
	Schema     tuning.Schema
	Boundaries tuning.Boundaries
	Objective  tuning.Objective

	// PointsPerDimension controls search-space discretization density.
	PointsPerDimension int

	// FirstGenerationGenePool is the seeded sample size for generation 0.
	FirstGenerationGenePool int

	// NumberOfGenerations bounds the run.
	NumberOfGenerations int

	// NumberOfParentsToRetain is the top-K parent pool size.
	NumberOfParentsToRetain int

	// NumberOfMutationsPerGeneration is the child count per generation.
	NumberOfMutationsPerGeneration int

	// Parallelism bounds concurrent in-flight evaluations.
	Parallelism int

	// GeneticMixing is the blend weight for mutated dimensions.
	GeneticMixing float64

	// MutationPolicy decides how many dimensions mutate per child.
	MutationPolicy mutate.Policy

	// AutoStopping, when enabled, ends the run at the first generation
	// boundary where the generation's best score meets AutoStoppingScore.
	AutoStopping      bool
	AutoStoppingScore float64

	// Seed drives all randomized sampling and mutation.
	Seed int64

	Logger *zap.Logger
}

// Scheduler drives one batch evolution run.
type Scheduler struct {
	cfg Config
	pop *tuning.Population
	mut *mutate.Mutator
	rng *rand.Rand
	seq tuning.Sequencer
	log *zap.Logger
}

// New validates the configuration and returns a scheduler. Validation runs
// before any evaluation so configuration errors surface synchronously.
func New(cfg Config) (*Scheduler, error) {
	if !cfg.Objective.Valid() {
		return nil, tuning.NewErrorf("unknown optimization strategy %q", cfg.Objective).
			WithComponent("batch").WithField("optimizationStrategy")
	}
	if cfg.FirstGenerationGenePool < 1 {
		return nil, tuning.NewErrorf("gene pool size must be positive, got %d", cfg.FirstGenerationGenePool).
			WithComponent("batch").WithField("firstGenerationGenePool")
	}
	if cfg.NumberOfGenerations < 1 {
		return nil, tuning.NewErrorf("generation count must be positive, got %d", cfg.NumberOfGenerations).
			WithComponent("batch").WithField("numberOfGenerations")
	}
	if cfg.NumberOfParentsToRetain < 1 {
		return nil, tuning.NewErrorf("parent retention must be positive, got %d", cfg.NumberOfParentsToRetain).
			WithComponent("batch").WithField("numberOfParentsToRetain")
	}
	if cfg.NumberOfMutationsPerGeneration < 1 {
		return nil, tuning.NewErrorf("mutation count per generation must be positive, got %d", cfg.NumberOfMutationsPerGeneration).
			WithComponent("batch").WithField("numberOfMutationsPerGeneration")
	}
	if cfg.PointsPerDimension < 2 {
		cfg.PointsPerDimension = 5
	}
	if cfg.Parallelism < 1 {
		cfg.Parallelism = 4
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	mut, err := mutate.New(cfg.Schema, cfg.Boundaries, cfg.GeneticMixing, cfg.MutationPolicy, cfg.Seed+1)
	if err != nil {
		return nil, err
	}

	return &Scheduler{
		cfg: cfg,
		pop: tuning.NewPopulation(),
		mut: mut,
		rng: rand.New(rand.NewSource(cfg.Seed + 2)),
		log: cfg.Logger.Named("batch"),
	}, nil
}

// Population returns the accumulated results. It stays intact for
// postmortem inspection when Run returns an error.
func (s *Scheduler) Population() *tuning.Population {
	return s.pop
}

// Run executes the evolution loop to completion and returns the aggregated
// report. Individual evaluation failures are recorded as flagged results; a
// run with no eligible parents terminates with an error.
func (s *Scheduler) Run(ctx context.Context, trainer tuning.Trainer) (*report.Report, error) {
	full, err := permute.BuildFullSpace(s.cfg.Schema, s.cfg.Boundaries, s.cfg.PointsPerDimension)
	if err != nil {
		return nil, err
	}
	pool, err := permute.Sample(full, s.cfg.FirstGenerationGenePool, s.cfg.Seed)
	if err != nil {
		return nil, err
	}
	s.log.Info("seeded gene pool",
		zap.Int("full_space", len(full)),
		zap.Int("gene_pool", len(pool)),
		zap.String("family", s.cfg.Schema.Family))

	generation := s.tag(pool, 0)

	for g := 0; g < s.cfg.NumberOfGenerations; g++ {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		results := s.evaluateGeneration(ctx, trainer, generation)

		best, ok := generationBest(results, s.cfg.Objective)
		fields := []zap.Field{
			zap.Int("generation", g),
			zap.Int("evaluated", len(results)),
		}
		if ok {
			fields = append(fields, zap.Float64("best_score", best.Score))
		}
		s.log.Info("generation complete", fields...)

		if s.cfg.AutoStopping && ok && s.cfg.Objective.Satisfies(best.Score, s.cfg.AutoStoppingScore) {
			s.log.Info("auto-stopping score reached",
				zap.Int("generation", g),
				zap.Float64("score", best.Score))
			break
		}
		if g == s.cfg.NumberOfGenerations-1 {
			break
		}

		parents := s.retainParents()
		if len(parents) == 0 {
			return nil, tuning.NewError("no eligible parents: every evaluation so far has failed").
				WithComponent("batch").WithOperation("select")
		}
		generation = s.mutateGeneration(parents, g+1)
	}

	rep := report.Aggregate(s.pop.Snapshot(), s.cfg.Objective)
	if rep.Best == nil {
		return rep, tuning.NewError("run produced no successful evaluations").
			WithComponent("batch").WithOperation("finish")
	}
	return rep, nil
}

// tag stamps sequence ids and a generation index onto candidates about to be
// submitted.
func (s *Scheduler) tag(candidates []tuning.Candidate, generation int) []tuning.Candidate {
	out := make([]tuning.Candidate, len(candidates))
	for i, c := range candidates {
		c.Seq = s.seq.Next()
		c.Generation = generation
		out[i] = c
	}
	return out
}

// evaluateGeneration submits every candidate of one generation to the
// trainer, bounded to Parallelism in-flight evaluations, and blocks until
// all have returned. No candidate of the next generation is submitted before
// this returns.
func (s *Scheduler) evaluateGeneration(ctx context.Context, trainer tuning.Trainer, generation []tuning.Candidate) []tuning.EvaluationResult {
	n := len(generation)
	results := make([]tuning.EvaluationResult, n)

	workers := s.cfg.Parallelism
	if workers > n {
		workers = n
	}

	type job struct {
		idx       int
		candidate tuning.Candidate
	}

	jobs := make(chan job, n)
	var wg sync.WaitGroup

	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range jobs {
				results[j.idx] = tuning.SafeEvaluate(ctx, trainer, j.candidate)
			}
		}()
	}

	for i, c := range generation {
		jobs <- job{idx: i, candidate: c}
	}
	close(jobs)
	wg.Wait()

	// Record in submission order so population growth stays deterministic
	// for a fixed seed and deterministic trainer.
	for _, r := range results {
		s.pop.Record(r)
	}
	return results
}

// retainParents ranks every eligible result so far by score, directionally
// per the objective, and keeps the top K.
func (s *Scheduler) retainParents() []tuning.EvaluationResult {
	eligible := s.pop.Eligible()
	sort.SliceStable(eligible, func(i, j int) bool {
		return s.cfg.Objective.Better(eligible[i].Score, eligible[j].Score)
	})
	if len(eligible) > s.cfg.NumberOfParentsToRetain {
		eligible = eligible[:s.cfg.NumberOfParentsToRetain]
	}
	return eligible
}

// mutateGeneration produces the next generation's children, each primary-
// parented by a uniform draw from the retained pool. The secondary parent is
// an independent draw, or fresh random material when only one parent exists.
func (s *Scheduler) mutateGeneration(parents []tuning.EvaluationResult, generation int) []tuning.Candidate {
	children := make([]tuning.Candidate, s.cfg.NumberOfMutationsPerGeneration)
	for i := range children {
		primary := parents[s.rng.Intn(len(parents))].Candidate
		var secondary tuning.Candidate
		if len(parents) > 1 {
			secondary = parents[s.rng.Intn(len(parents))].Candidate
		} else {
			secondary = s.mut.Random()
		}
		children[i] = s.mut.Child(primary, secondary, generation)
	}
	return s.tag(children, generation)
}

func generationBest(results []tuning.EvaluationResult, o tuning.Objective) (tuning.EvaluationResult, bool) {
	var best tuning.EvaluationResult
	found := false
	for _, r := range results {
		if r.Failed {
			continue
		}
		if !found || o.Better(r.Score, best.Score) {
			best = r
			found = true
		}
	}
	return best, found
}
