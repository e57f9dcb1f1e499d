package service

import (
	"fmt"
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/floats"

	"goldenbatch/internal/models"
)

// KMeans clusters points with k-means++ seeding and Lloyd iterations. The
// best of Restarts runs (lowest inertia) wins. A fixed Seed makes the
// result reproducible.
type KMeans struct {
	K        int
	Seed     uint64
	Restarts int
	MaxIter  int
}

// Clustering is the outcome of one KMeans.Fit call.
type Clustering struct {
	Labels    []int
	Centroids [][]float64
	Inertia   float64
}

// Sizes returns the membership count of each cluster.
func (c Clustering) Sizes() []int {
	sizes := make([]int, len(c.Centroids))
	for _, l := range c.Labels {
		sizes[l]++
	}
	return sizes
}

// Largest returns the most populated cluster, the lower id winning ties.
func (c Clustering) Largest() int {
	sizes := c.Sizes()
	best := 0
	for i := 1; i < len(sizes); i++ {
		if sizes[i] > sizes[best] {
			best = i
		}
	}
	return best
}

// Fit clusters points. It fails with ErrInsufficientData when there are
// fewer points than clusters.
func (km KMeans) Fit(points [][]float64) (Clustering, error) {
	if km.K < 1 {
		return Clustering{}, fmt.Errorf("k must be >= 1, got %d", km.K)
	}
	if len(points) < km.K {
		return Clustering{}, fmt.Errorf("%w: %d rows for %d clusters", models.ErrInsufficientData, len(points), km.K)
	}
	restarts := max(km.Restarts, 1)
	maxIter := km.MaxIter
	if maxIter < 1 {
		maxIter = 300
	}

	rng := rand.New(rand.NewPCG(km.Seed, 0x6b6d65616e73))
	var best Clustering
	for r := 0; r < restarts; r++ {
		c := km.run(points, maxIter, rng)
		if r == 0 || c.Inertia < best.Inertia {
			best = c
		}
	}
	return best, nil
}

func (km KMeans) run(points [][]float64, maxIter int, rng *rand.Rand) Clustering {
	centroids := seedPlusPlus(points, km.K, rng)
	labels := make([]int, len(points))
	for i := range labels {
		labels[i] = -1
	}

	for iter := 0; iter < maxIter; iter++ {
		changed := false
		for i, p := range points {
			l, _ := nearest(p, centroids)
			if l != labels[i] {
				labels[i] = l
				changed = true
			}
		}
		if !changed {
			break
		}
		km.update(points, labels, centroids)
	}

	inertia := 0.0
	for i, p := range points {
		d := floats.Distance(p, centroids[labels[i]], 2)
		inertia += d * d
	}
	return Clustering{Labels: labels, Centroids: centroids, Inertia: inertia}
}

// update recomputes centroids in place. An emptied cluster takes over the
// point farthest from its current centroid.
func (km KMeans) update(points [][]float64, labels []int, centroids [][]float64) {
	dim := len(points[0])
	counts := make([]int, len(centroids))
	for c := range centroids {
		centroids[c] = make([]float64, dim)
	}
	for i, p := range points {
		floats.Add(centroids[labels[i]], p)
		counts[labels[i]]++
	}
	for c := range centroids {
		if counts[c] > 0 {
			floats.Scale(1/float64(counts[c]), centroids[c])
		}
	}
	for c := range centroids {
		if counts[c] > 0 {
			continue
		}
		far, farDist := -1, -1.0
		for i, p := range points {
			if counts[labels[i]] < 2 {
				continue
			}
			if d := floats.Distance(p, centroids[labels[i]], 2); d > farDist {
				far, farDist = i, d
			}
		}
		if far < 0 {
			continue
		}
		counts[labels[far]]--
		labels[far] = c
		counts[c] = 1
		centroids[c] = append([]float64(nil), points[far]...)
	}
}

func seedPlusPlus(points [][]float64, k int, rng *rand.Rand) [][]float64 {
	centroids := make([][]float64, 0, k)
	centroids = append(centroids, append([]float64(nil), points[rng.IntN(len(points))]...))

	d2 := make([]float64, len(points))
	for len(centroids) < k {
		total := 0.0
		for i, p := range points {
			_, d := nearest(p, centroids)
			d2[i] = d * d
			total += d2[i]
		}

		next := rng.IntN(len(points))
		if total > 0 {
			target := rng.Float64() * total
			acc := 0.0
			for i, w := range d2 {
				acc += w
				if acc >= target && w > 0 {
					next = i
					break
				}
			}
		}
		centroids = append(centroids, append([]float64(nil), points[next]...))
	}
	return centroids
}

func nearest(p []float64, centroids [][]float64) (int, float64) {
	best, bestDist := 0, math.Inf(1)
	for c, centroid := range centroids {
		if d := floats.Distance(p, centroid, 2); d < bestDist {
			best, bestDist = c, d
		}
	}
	return best, bestDist
}
