package ml

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"
	"runtime"

	"golang.org/x/sync/errgroup"

	"goldenbatch/internal/models"
)

// ForestParams mirrors the usual random forest knobs. Zero MaxDepth grows
// trees until leaves are pure.
type ForestParams struct {
	Trees           int    `json:"trees"`
	MaxDepth        int    `json:"max_depth"`
	MinSamplesSplit int    `json:"min_samples_split"`
	Seed            uint64 `json:"seed"`
}

// DefaultForestParams returns 100 fully grown trees seeded with 42.
func DefaultForestParams() ForestParams {
	return ForestParams{Trees: 100, MinSamplesSplit: 2, Seed: 42}
}

// RandomForest is a bagged ensemble of CART trees voting by majority.
type RandomForest struct {
	Features []models.Parameter `json:"features"`
	Classes  int                `json:"classes"`
	Trees    []DecisionTree     `json:"trees"`
}

// TrainRandomForest fits the ensemble. Each tree draws from its own PCG
// stream keyed by (seed, tree index), so results do not depend on how the
// trees are scheduled.
func TrainRandomForest(ctx context.Context, ds Dataset, p ForestParams) (*RandomForest, error) {
	if p.Trees < 1 {
		return nil, fmt.Errorf("trees must be >= 1, got %d", p.Trees)
	}
	if p.MinSamplesSplit < 2 {
		p.MinSamplesSplit = 2
	}
	if len(ds.X) == 0 {
		return nil, fmt.Errorf("%w: no rows", models.ErrTrainingData)
	}

	tp := treeParams{
		maxDepth:        p.MaxDepth,
		minSamplesSplit: p.MinSamplesSplit,
		maxFeatures:     int(math.Max(1, math.Floor(math.Sqrt(float64(len(ds.Features)))))),
	}

	forest := &RandomForest{
		Features: append([]models.Parameter(nil), ds.Features...),
		Classes:  ds.Classes,
		Trees:    make([]DecisionTree, p.Trees),
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	n := len(ds.X)
	for t := 0; t < p.Trees; t++ {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			rng := rand.New(rand.NewPCG(p.Seed, uint64(t)))
			sample := make([]int, n)
			for i := range sample {
				sample[i] = rng.IntN(n)
			}
			forest.Trees[t] = growTree(ds, sample, tp, rng)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return forest, nil
}

// Predict returns the majority vote of the trees.
func (f *RandomForest) Predict(batch models.BatchRecord) int {
	x := batch.Vector(f.Features)
	votes := make([]int, f.Classes)
	for i := range f.Trees {
		votes[f.Trees[i].predict(x)]++
	}
	return majority(votes)
}

func (f *RandomForest) validate() error {
	if f.Classes < 1 {
		return fmt.Errorf("classes must be >= 1")
	}
	if len(f.Trees) == 0 {
		return fmt.Errorf("forest has no trees")
	}
	if err := validateFeatures(f.Features); err != nil {
		return err
	}
	for i := range f.Trees {
		if err := f.Trees[i].validate(len(f.Features), f.Classes); err != nil {
			return fmt.Errorf("tree %d: %w", i, err)
		}
	}
	return nil
}

func validateFeatures(features []models.Parameter) error {
	if len(features) == 0 {
		return fmt.Errorf("no features")
	}
	for _, f := range features {
		if _, ok := models.ParseParameter(string(f)); !ok {
			return fmt.Errorf("unknown feature %q", f)
		}
	}
	return nil
}
