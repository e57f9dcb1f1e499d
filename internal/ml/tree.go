package ml

import (
	"fmt"
	"math/rand/v2"
	"sort"
)

const leafMarker = -1

type treeNode struct {
	Feature   int     `json:"f"`
	Threshold float64 `json:"t"`
	Left      int     `json:"l"`
	Right     int     `json:"r"`
	Class     int     `json:"c"`
}

// DecisionTree is a CART classifier stored as a flat node slice; node 0 is
// the root and leaves have Left == -1.
type DecisionTree struct {
	Nodes []treeNode `json:"nodes"`
}

func (t *DecisionTree) predict(x []float64) int {
	i := 0
	for {
		n := t.Nodes[i]
		if n.Left == leafMarker {
			return n.Class
		}
		if x[n.Feature] <= n.Threshold {
			i = n.Left
		} else {
			i = n.Right
		}
	}
}

func (t *DecisionTree) validate(features, classes int) error {
	if len(t.Nodes) == 0 {
		return fmt.Errorf("empty tree")
	}
	for i, n := range t.Nodes {
		if n.Left == leafMarker {
			if n.Class < 0 || n.Class >= classes {
				return fmt.Errorf("node %d: class %d out of range", i, n.Class)
			}
			continue
		}
		if n.Feature < 0 || n.Feature >= features {
			return fmt.Errorf("node %d: feature %d out of range", i, n.Feature)
		}
		// children always follow their parent, which also rules out cycles
		if n.Left <= i || n.Left >= len(t.Nodes) || n.Right <= i || n.Right >= len(t.Nodes) {
			return fmt.Errorf("node %d: child index out of range", i)
		}
	}
	return nil
}

type treeParams struct {
	maxDepth        int
	minSamplesSplit int
	maxFeatures     int
}

type treeGrower struct {
	ds     Dataset
	params treeParams
	rng    *rand.Rand
	nodes  []treeNode
}

func growTree(ds Dataset, idx []int, params treeParams, rng *rand.Rand) DecisionTree {
	g := &treeGrower{ds: ds, params: params, rng: rng}
	g.grow(idx, 0)
	return DecisionTree{Nodes: g.nodes}
}

func (g *treeGrower) grow(idx []int, depth int) int {
	counts := g.classCounts(idx)
	self := len(g.nodes)
	g.nodes = append(g.nodes, treeNode{Left: leafMarker, Right: leafMarker, Class: majority(counts)})

	if isPure(counts) || len(idx) < g.params.minSamplesSplit ||
		(g.params.maxDepth > 0 && depth >= g.params.maxDepth) {
		return self
	}

	feature, threshold, ok := g.bestSplit(idx)
	if !ok {
		return self
	}

	var left, right []int
	for _, i := range idx {
		if g.ds.X[i][feature] <= threshold {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}

	l := g.grow(left, depth+1)
	r := g.grow(right, depth+1)
	g.nodes[self] = treeNode{Feature: feature, Threshold: threshold, Left: l, Right: r}
	return self
}

// bestSplit scans features in random order. At least maxFeatures are tried;
// scanning continues past that only while no feature could split.
func (g *treeGrower) bestSplit(idx []int) (int, float64, bool) {
	nFeatures := len(g.ds.Features)
	order := g.rng.Perm(nFeatures)

	bestFeature, bestThreshold := -1, 0.0
	bestScore := 0.0
	sorted := make([]int, len(idx))

	for tried, f := range order {
		if tried >= g.params.maxFeatures && bestFeature >= 0 {
			break
		}

		copy(sorted, idx)
		sort.SliceStable(sorted, func(a, b int) bool {
			return g.ds.X[sorted[a]][f] < g.ds.X[sorted[b]][f]
		})

		leftCounts := make([]int, g.ds.Classes)
		rightCounts := g.classCounts(sorted)
		n := len(sorted)

		for pos := 0; pos < n-1; pos++ {
			c := g.ds.Y[sorted[pos]]
			leftCounts[c]++
			rightCounts[c]--

			lo, hi := g.ds.X[sorted[pos]][f], g.ds.X[sorted[pos+1]][f]
			if lo == hi {
				continue
			}
			nl, nr := pos+1, n-pos-1
			score := (float64(nl)*gini(leftCounts, nl) + float64(nr)*gini(rightCounts, nr)) / float64(n)
			if bestFeature < 0 || score < bestScore {
				bestFeature, bestThreshold, bestScore = f, (lo+hi)/2, score
			}
		}
	}
	return bestFeature, bestThreshold, bestFeature >= 0
}

func (g *treeGrower) classCounts(idx []int) []int {
	counts := make([]int, g.ds.Classes)
	for _, i := range idx {
		counts[g.ds.Y[i]]++
	}
	return counts
}

func gini(counts []int, total int) float64 {
	if total == 0 {
		return 0
	}
	sum := 0.0
	for _, c := range counts {
		p := float64(c) / float64(total)
		sum += p * p
	}
	return 1 - sum
}

func isPure(counts []int) bool {
	nonZero := 0
	for _, c := range counts {
		if c > 0 {
			nonZero++
		}
	}
	return nonZero <= 1
}
