package dataset

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
)

// Embedding is a 2D projection coordinate, conventionally in [0, 1].
type Embedding struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Point is one row of the sonified dataset.
type Point struct {
	ID        int                `json:"id"`
	Features  map[string]float64 `json:"features"`
	Embedding Embedding          `json:"embedding"`
	Cluster   int                `json:"cluster"`
}

// Response is the payload served by the data endpoint.
type Response struct {
	Points []Point `json:"points"`
}

var (
	ErrMissingPoints   = errors.New("dataset: response has no points array")
	ErrNegativeCluster = errors.New("dataset: negative cluster label")
)

// Decode reads a {"points": [...]} payload. Order is preserved.
func Decode(r io.Reader) ([]Point, error) {
	var raw struct {
		Points *[]Point `json:"points"`
	}
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return nil, fmt.Errorf("dataset: decode: %w", err)
	}
	if raw.Points == nil {
		return nil, ErrMissingPoints
	}
	points := *raw.Points
	for i, p := range points {
		if p.Cluster < 0 {
			return nil, fmt.Errorf("%w: point %d (index %d) has cluster %d", ErrNegativeCluster, p.ID, i, p.Cluster)
		}
	}
	return points, nil
}

// LoadFile decodes a dataset saved to disk in the endpoint's format.
func LoadFile(path string) ([]Point, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("dataset: %w", err)
	}
	defer f.Close()
	return Decode(f)
}
