package tuning

import (
	"sort"
	"strings"
)

// Statically declared per-family schema table. Dimension order is fixed and
// meaningful for reproducibility: the permutation generator walks dimensions
// in this order when building the full configuration space.
var families = map[string]Schema{
	"randomforest": {
		Family: "randomforest",
		Dimensions: []Dimension{
			{Name: "numTrees", Kind: KindInteger},
			{Name: "maxDepth", Kind: KindInteger},
			{Name: "maxBins", Kind: KindInteger},
			{Name: "minInfoGain", Kind: KindContinuous, Scale: ScaleLog},
			{Name: "subsamplingRate", Kind: KindContinuous},
			{Name: "featureSubsetStrategy", Kind: KindCategorical},
			{Name: "impurity", Kind: KindCategorical},
		},
	},
	"gbt": {
		Family: "gbt",
		Dimensions: []Dimension{
			{Name: "maxIter", Kind: KindInteger},
			{Name: "maxDepth", Kind: KindInteger},
			{Name: "stepSize", Kind: KindContinuous, Scale: ScaleLog},
			{Name: "subsamplingRate", Kind: KindContinuous},
			{Name: "minInstancesPerNode", Kind: KindInteger},
			{Name: "lossType", Kind: KindCategorical},
		},
	},
	"logisticregression": {
		Family: "logisticregression",
		Dimensions: []Dimension{
			{Name: "regParam", Kind: KindContinuous, Scale: ScaleLog},
			{Name: "elasticNetParam", Kind: KindContinuous},
			{Name: "maxIter", Kind: KindInteger},
			{Name: "tolerance", Kind: KindContinuous, Scale: ScaleLog},
			{Name: "fitIntercept", Kind: KindBoolean},
			{Name: "standardization", Kind: KindBoolean},
		},
	},
	"linearregression": {
		Family: "linearregression",
		Dimensions: []Dimension{
			{Name: "regParam", Kind: KindContinuous, Scale: ScaleLog},
			{Name: "elasticNetParam", Kind: KindContinuous},
			{Name: "maxIter", Kind: KindInteger},
			{Name: "tolerance", Kind: KindContinuous, Scale: ScaleLog},
			{Name: "fitIntercept", Kind: KindBoolean},
			{Name: "loss", Kind: KindCategorical},
		},
	},
	"mlp": {
		Family: "mlp",
		Dimensions: []Dimension{
			{Name: "maxIter", Kind: KindInteger},
			{Name: "blockSize", Kind: KindInteger},
			{Name: "stepSize", Kind: KindContinuous, Scale: ScaleLog},
			{Name: "tolerance", Kind: KindContinuous, Scale: ScaleLog},
			{Name: "solver", Kind: KindCategorical},
		},
	},
}

// FamilySchema returns the schema declared for the named model family.
// Family names are case-insensitive.
func FamilySchema(family string) (Schema, error) {
	s, ok := families[strings.ToLower(family)]
	if !ok {
		return Schema{}, NewErrorf("unknown model family %q (available: %s)",
			family, strings.Join(FamilyNames(), ", ")).
			WithField("family").WithComponent("tuning")
	}
	return s, nil
}

// FamilyNames returns the declared family names in sorted order.
func FamilyNames() []string {
	names := make([]string, 0, len(families))
	for name := range families {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
