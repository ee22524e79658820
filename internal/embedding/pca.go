package embedding

import "math"

// Standardize centres every column on 0 and scales it to unit population
// variance. Constant columns are only centred.
func Standardize(rows [][]float64) [][]float64 {
	if len(rows) == 0 {
		return nil
	}
	d := len(rows[0])
	mean := make([]float64, d)
	for _, r := range rows {
		for j, v := range r {
			mean[j] += v
		}
	}
	n := float64(len(rows))
	for j := range mean {
		mean[j] /= n
	}
	std := make([]float64, d)
	for _, r := range rows {
		for j, v := range r {
			diff := v - mean[j]
			std[j] += diff * diff
		}
	}
	for j := range std {
		std[j] = math.Sqrt(std[j] / n)
		if std[j] == 0 {
			std[j] = 1
		}
	}
	out := make([][]float64, len(rows))
	for i, r := range rows {
		out[i] = make([]float64, d)
		for j, v := range r {
			out[i][j] = (v - mean[j]) / std[j]
		}
	}
	return out
}

const (
	powerIterations = 1000
	powerTolerance  = 1e-12
)

// PCA projects rows onto their first k principal components. Components
// come from the covariance matrix by power iteration with deflation; each
// is signed so its largest loading is positive.
func PCA(rows [][]float64, k int) [][]float64 {
	if len(rows) == 0 || k <= 0 {
		return nil
	}
	d := len(rows[0])
	if k > d {
		k = d
	}
	centred := center(rows)
	cov := covariance(centred)
	components := make([][]float64, 0, k)
	for c := 0; c < k; c++ {
		v, lambda := powerIterate(cov)
		flipSign(v)
		components = append(components, v)
		for i := 0; i < d; i++ {
			for j := 0; j < d; j++ {
				cov[i][j] -= lambda * v[i] * v[j]
			}
		}
	}
	out := make([][]float64, len(centred))
	for i, r := range centred {
		out[i] = make([]float64, k)
		for c, comp := range components {
			out[i][c] = dot(r, comp)
		}
	}
	return out
}

func center(rows [][]float64) [][]float64 {
	d := len(rows[0])
	mean := make([]float64, d)
	for _, r := range rows {
		for j, v := range r {
			mean[j] += v
		}
	}
	for j := range mean {
		mean[j] /= float64(len(rows))
	}
	out := make([][]float64, len(rows))
	for i, r := range rows {
		out[i] = make([]float64, d)
		for j, v := range r {
			out[i][j] = v - mean[j]
		}
	}
	return out
}

func covariance(centred [][]float64) [][]float64 {
	d := len(centred[0])
	cov := make([][]float64, d)
	for i := range cov {
		cov[i] = make([]float64, d)
	}
	denom := float64(len(centred) - 1)
	if denom <= 0 {
		denom = 1
	}
	for _, r := range centred {
		for i := 0; i < d; i++ {
			for j := i; j < d; j++ {
				cov[i][j] += r[i] * r[j]
			}
		}
	}
	for i := 0; i < d; i++ {
		for j := i; j < d; j++ {
			cov[i][j] /= denom
			cov[j][i] = cov[i][j]
		}
	}
	return cov
}

func powerIterate(m [][]float64) ([]float64, float64) {
	d := len(m)
	v := make([]float64, d)
	for i := range v {
		v[i] = 1 / float64(i+1)
	}
	normalize(v)
	next := make([]float64, d)
	lambda := 0.0
	for iter := 0; iter < powerIterations; iter++ {
		for i := 0; i < d; i++ {
			next[i] = dot(m[i], v)
		}
		norm := normalize(next)
		if norm == 0 {
			return v, 0
		}
		delta := 0.0
		for i := range v {
			delta = math.Max(delta, math.Abs(next[i]-v[i]))
		}
		copy(v, next)
		lambda = norm
		if delta < powerTolerance {
			break
		}
	}
	return v, lambda
}

func flipSign(v []float64) {
	maxIdx := 0
	for i := range v {
		if math.Abs(v[i]) > math.Abs(v[maxIdx]) {
			maxIdx = i
		}
	}
	if v[maxIdx] < 0 {
		for i := range v {
			v[i] = -v[i]
		}
	}
}

func normalize(v []float64) float64 {
	norm := math.Sqrt(dot(v, v))
	if norm == 0 {
		return 0
	}
	for i := range v {
		v[i] /= norm
	}
	return norm
}

func dot(a, b []float64) float64 {
	s := 0.0
	for i := range a {
		s += a[i] * b[i]
	}
	return s
}

// MinMax rescales every column to [0, 1]. Constant columns become 0.
func MinMax(rows [][]float64) [][]float64 {
	if len(rows) == 0 {
		return nil
	}
	d := len(rows[0])
	lo := make([]float64, d)
	hi := make([]float64, d)
	copy(lo, rows[0])
	copy(hi, rows[0])
	for _, r := range rows[1:] {
		for j, v := range r {
			lo[j] = math.Min(lo[j], v)
			hi[j] = math.Max(hi[j], v)
		}
	}
	out := make([][]float64, len(rows))
	for i, r := range rows {
		out[i] = make([]float64, d)
		for j, v := range r {
			if span := hi[j] - lo[j]; span > 0 {
				out[i][j] = (v - lo[j]) / span
			}
		}
	}
	return out
}
