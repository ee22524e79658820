// Package embedding builds the sonification dataset: a 2D PCA projection of
// a feature table, normalised to [0, 1], with k-means cluster labels.
package embedding

import (
	"github.com/cbegin/sonoscope-go/internal/dataset"
)

type Options struct {
	Clusters int
	Seed     int64
}

func DefaultOptions() Options {
	return Options{Clusters: 4, Seed: 42}
}

// Build standardises the table, projects it onto two principal components,
// rescales the projection to the unit square and clusters the standardised
// features. Point ids follow row order.
func Build(t Table, opts Options) ([]dataset.Point, error) {
	if len(t.Rows) == 0 {
		return nil, ErrEmptyTable
	}
	if len(t.Names) == 0 {
		return nil, ErrNoNumeric
	}
	if opts.Clusters <= 0 {
		opts.Clusters = DefaultOptions().Clusters
	}
	scaled := Standardize(t.Rows)
	emb := MinMax(PCA(scaled, 2))
	labels := KMeans(scaled, opts.Clusters, opts.Seed)

	keys := make([]string, len(t.Names))
	for i, name := range t.Names {
		keys[i] = FeatureKey(name)
	}
	points := make([]dataset.Point, len(t.Rows))
	for i, row := range t.Rows {
		features := make(map[string]float64, len(keys))
		for j, key := range keys {
			features[key] = row[j]
		}
		e := dataset.Embedding{X: emb[i][0]}
		if len(emb[i]) > 1 {
			e.Y = emb[i][1]
		}
		points[i] = dataset.Point{
			ID:        i,
			Features:  features,
			Embedding: e,
			Cluster:   labels[i],
		}
	}
	return points, nil
}
