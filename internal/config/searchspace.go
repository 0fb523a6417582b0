package config

import (
	"os"

	"gopkg.in/yaml.v3"

	"github.com/copyleftdev/EVOLVR/internal/tuning"
	"github.com/copyleftdev/EVOLVR/internal/tuning/batch"
	"github.com/copyleftdev/EVOLVR/internal/tuning/continuous"
	"github.com/copyleftdev/EVOLVR/internal/tuning/mutate"
)

// SearchSpace is the declarative run description: model family, boundaries,
// objective, evolution strategy, and strategy-specific parameters. It is the
// YAML file format for the CLI and the JSON request body for the run API.
type SearchSpace struct {
	Family     string            `yaml:"family" json:"family"`
	Objective  tuning.Objective  `yaml:"objective" json:"objective"`
	Strategy   string            `yaml:"strategy" json:"strategy"`
	Boundaries tuning.Boundaries `yaml:"boundaries" json:"boundaries"`

	PointsPerDimension int     `yaml:"pointsPerDimension" json:"pointsPerDimension"`
	GeneticMixing      float64 `yaml:"geneticMixing" json:"geneticMixing"`
	Seed               int64   `yaml:"seed" json:"seed"`

	// Trainer names the built-in benchmark trainer to use when the caller
	// does not supply its own (server and CLI only).
	Trainer string `yaml:"trainer" json:"trainer"`

	Batch      BatchParams      `yaml:"batch" json:"batch"`
	Continuous ContinuousParams `yaml:"continuous" json:"continuous"`
}

// BatchParams are the generation-synchronous strategy parameters.
type BatchParams struct {
	FirstGenerationGenePool        int     `yaml:"firstGenerationGenePool" json:"firstGenerationGenePool"`
	NumberOfGenerations            int     `yaml:"numberOfGenerations" json:"numberOfGenerations"`
	NumberOfParentsToRetain        int     `yaml:"numberOfParentsToRetain" json:"numberOfParentsToRetain"`
	NumberOfMutationsPerGeneration int     `yaml:"numberOfMutationsPerGeneration" json:"numberOfMutationsPerGeneration"`
	Parallelism                    int     `yaml:"parallelism" json:"parallelism"`
	MutationStrategy               string  `yaml:"mutationStrategy" json:"mutationStrategy"`
	MutationMagnitude              string  `yaml:"mutationMagnitude" json:"mutationMagnitude"`
	FixedDecrement                 int     `yaml:"fixedDecrement" json:"fixedDecrement"`
	FixedMutationValue             int     `yaml:"fixedMutationValue" json:"fixedMutationValue"`
	AutoStopping                   bool    `yaml:"autoStopping" json:"autoStopping"`
	AutoStoppingScore              float64 `yaml:"autoStoppingScore" json:"autoStoppingScore"`
}

// ContinuousParams are the asynchronous strategy parameters.
type ContinuousParams struct {
	Parallelism             int     `yaml:"parallelism" json:"parallelism"`
	MaxIterations           int     `yaml:"maxIterations" json:"maxIterations"`
	RollingImprovementCount int     `yaml:"rollingImprovementCount" json:"rollingImprovementCount"`
	MutationCount           int     `yaml:"mutationCount" json:"mutationCount"`
	StoppingScoreEnabled    bool    `yaml:"stoppingScoreEnabled" json:"stoppingScoreEnabled"`
	StoppingScore           float64 `yaml:"stoppingScore" json:"stoppingScore"`
}

// LoadSearchSpace reads and validates a YAML search-space file.
func LoadSearchSpace(path string) (*SearchSpace, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, tuning.WrapErrorf(err, "reading search-space file %s", path).
			WithComponent("config")
	}
	ss := &SearchSpace{}
	if err := yaml.Unmarshal(data, ss); err != nil {
		return nil, tuning.WrapError(err, "parsing search-space file").
			WithComponent("config")
	}
	if err := ss.Validate(); err != nil {
		return nil, err
	}
	return ss, nil
}

// Validate checks the declaration before any evaluation begins, naming the
// offending field.
func (ss *SearchSpace) Validate() error {
	schema, err := tuning.FamilySchema(ss.Family)
	if err != nil {
		return err
	}
	if err := schema.Validate(ss.Boundaries); err != nil {
		return err
	}
	if !ss.Objective.Valid() {
		return tuning.NewErrorf("optimization strategy must be %q or %q, got %q",
			tuning.Maximize, tuning.Minimize, ss.Objective).
			WithComponent("config").WithField("objective")
	}
	switch ss.Strategy {
	case "batch", "continuous":
	default:
		return tuning.NewErrorf("evolution strategy must be \"batch\" or \"continuous\", got %q", ss.Strategy).
			WithComponent("config").WithField("strategy")
	}
	return nil
}

// BatchConfig converts the declaration into a batch scheduler configuration.
func (ss *SearchSpace) BatchConfig() (batch.Config, error) {
	schema, err := tuning.FamilySchema(ss.Family)
	if err != nil {
		return batch.Config{}, err
	}
	policy := mutate.Policy{
		Strategy:  mutate.CountStrategy(ss.Batch.MutationStrategy),
		Magnitude: mutate.Magnitude(ss.Batch.MutationMagnitude),
		Decrement: ss.Batch.FixedDecrement,
		Count:     ss.Batch.FixedMutationValue,
	}
	if policy.Strategy == "" {
		policy.Strategy = mutate.CountLinear
	}
	if policy.Magnitude == "" {
		policy.Magnitude = mutate.MagnitudeRandom
	}
	return batch.Config{
		Schema:                         schema,
		Boundaries:                     ss.Boundaries,
		Objective:                      ss.Objective,
		PointsPerDimension:             ss.PointsPerDimension,
		FirstGenerationGenePool:        ss.Batch.FirstGenerationGenePool,
		NumberOfGenerations:            ss.Batch.NumberOfGenerations,
		NumberOfParentsToRetain:        ss.Batch.NumberOfParentsToRetain,
		NumberOfMutationsPerGeneration: ss.Batch.NumberOfMutationsPerGeneration,
		Parallelism:                    ss.Batch.Parallelism,
		GeneticMixing:                  ss.GeneticMixing,
		MutationPolicy:                 policy,
		AutoStopping:                   ss.Batch.AutoStopping,
		AutoStoppingScore:              ss.Batch.AutoStoppingScore,
		Seed:                           ss.Seed,
	}, nil
}

// ContinuousConfig converts the declaration into a continuous scheduler
// configuration.
func (ss *SearchSpace) ContinuousConfig() (continuous.Config, error) {
	schema, err := tuning.FamilySchema(ss.Family)
	if err != nil {
		return continuous.Config{}, err
	}
	return continuous.Config{
		Schema:                  schema,
		Boundaries:              ss.Boundaries,
		Objective:               ss.Objective,
		PointsPerDimension:      ss.PointsPerDimension,
		Parallelism:             ss.Continuous.Parallelism,
		MaxIterations:           ss.Continuous.MaxIterations,
		RollingImprovementCount: ss.Continuous.RollingImprovementCount,
		GeneticMixing:           ss.GeneticMixing,
		MutationCount:           ss.Continuous.MutationCount,
		StoppingScoreEnabled:    ss.Continuous.StoppingScoreEnabled,
		StoppingScore:           ss.Continuous.StoppingScore,
		Seed:                    ss.Seed,
	}, nil
}
