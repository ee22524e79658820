package embedding

import (
	"math"
	"math/rand"
)

const (
	kmeansRestarts = 10
	kmeansMaxIter  = 300
)

// KMeans clusters rows into k groups and returns one label per row. It runs
// several k-means++ seeded restarts from a single seed and keeps the one
// with the lowest inertia, so the result is fixed for a given seed.
func KMeans(rows [][]float64, k int, seed int64) []int {
	if len(rows) == 0 || k <= 0 {
		return nil
	}
	if k > len(rows) {
		k = len(rows)
	}
	rng := rand.New(rand.NewSource(seed))
	var best []int
	bestInertia := math.Inf(1)
	for run := 0; run < kmeansRestarts; run++ {
		labels, inertia := lloyd(rows, seedCentroids(rows, k, rng))
		if inertia < bestInertia {
			best, bestInertia = labels, inertia
		}
	}
	return best
}

// seedCentroids picks k starting centres with k-means++ weighting.
func seedCentroids(rows [][]float64, k int, rng *rand.Rand) [][]float64 {
	centroids := make([][]float64, 0, k)
	centroids = append(centroids, clone(rows[rng.Intn(len(rows))]))
	dist := make([]float64, len(rows))
	for len(centroids) < k {
		total := 0.0
		for i, r := range rows {
			dist[i] = math.Inf(1)
			for _, c := range centroids {
				dist[i] = math.Min(dist[i], sqDist(r, c))
			}
			total += dist[i]
		}
		if total == 0 {
			centroids = append(centroids, clone(rows[rng.Intn(len(rows))]))
			continue
		}
		target := rng.Float64() * total
		pick := len(rows) - 1
		for i, d := range dist {
			target -= d
			if target <= 0 {
				pick = i
				break
			}
		}
		centroids = append(centroids, clone(rows[pick]))
	}
	return centroids
}

func lloyd(rows, centroids [][]float64) ([]int, float64) {
	k := len(centroids)
	labels := make([]int, len(rows))
	for i := range labels {
		labels[i] = -1
	}
	d := len(rows[0])
	for iter := 0; iter < kmeansMaxIter; iter++ {
		changed := false
		for i, r := range rows {
			nearest := nearestCentroid(r, centroids)
			if nearest != labels[i] {
				labels[i] = nearest
				changed = true
			}
		}
		if !changed {
			break
		}
		sums := make([][]float64, k)
		counts := make([]int, k)
		for c := range sums {
			sums[c] = make([]float64, d)
		}
		for i, r := range rows {
			counts[labels[i]]++
			for j, v := range r {
				sums[labels[i]][j] += v
			}
		}
		for c := range centroids {
			if counts[c] == 0 {
				continue // empty cluster keeps its centre
			}
			for j := range centroids[c] {
				centroids[c][j] = sums[c][j] / float64(counts[c])
			}
		}
	}
	inertia := 0.0
	for i, r := range rows {
		inertia += sqDist(r, centroids[labels[i]])
	}
	return labels, inertia
}

func nearestCentroid(r []float64, centroids [][]float64) int {
	best, bestDist := 0, math.Inf(1)
	for c, centroid := range centroids {
		if d := sqDist(r, centroid); d < bestDist {
			best, bestDist = c, d
		}
	}
	return best
}

func sqDist(a, b []float64) float64 {
	s := 0.0
	for i := range a {
		diff := a[i] - b[i]
		s += diff * diff
	}
	return s
}

func clone(v []float64) []float64 {
	out := make([]float64, len(v))
	copy(out, v)
	return out
}
