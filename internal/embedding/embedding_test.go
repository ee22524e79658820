package embedding

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestIrisTable(t *testing.T) {
	tbl := Iris()
	if len(tbl.Rows) != 150 {
		t.Fatalf("rows = %d, want 150", len(tbl.Rows))
	}
	if len(tbl.Names) != 4 {
		t.Fatalf("numeric columns = %v, want 4 (species dropped)", tbl.Names)
	}
	if got := tbl.Rows[0]; got[0] != 5.1 || got[3] != 0.2 {
		t.Fatalf("first row = %v", got)
	}
}

func TestFeatureKey(t *testing.T) {
	for in, want := range map[string]string{
		"sepal length (cm)": "sepal_length_cm",
		"petal width (cm)":  "petal_width_cm",
		"plain":             "plain",
	} {
		if got := FeatureKey(in); got != want {
			t.Errorf("FeatureKey(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestStandardize(t *testing.T) {
	out := Standardize([][]float64{{1, 5}, {3, 5}, {5, 5}})
	var sum, sq float64
	for _, r := range out {
		sum += r[0]
		sq += r[0] * r[0]
		if r[1] != 0 {
			t.Fatalf("constant column should centre to 0, got %v", r[1])
		}
	}
	if math.Abs(sum) > 1e-12 || math.Abs(sq/3-1) > 1e-12 {
		t.Fatalf("column not standardised: sum=%v var=%v", sum, sq/3)
	}
}

func TestPCAFindsDominantAxis(t *testing.T) {
	// Points on the line y = 2x with a little orthogonal noise.
	var rows [][]float64
	for i := -5; i <= 5; i++ {
		x := float64(i)
		n := 0.01 * float64(i%2)
		rows = append(rows, []float64{x - 2*n, 2*x + n})
	}
	proj := PCA(rows, 2)
	var first, second float64
	for _, p := range proj {
		first += p[0] * p[0]
		second += p[1] * p[1]
	}
	if first < 1000*second {
		t.Fatalf("first component should dominate: %v vs %v", first, second)
	}
	// Largest loading is positive, so the biggest x projects positive.
	if proj[len(proj)-1][0] <= 0 {
		t.Fatalf("sign convention violated: %v", proj[len(proj)-1])
	}
}

func TestMinMax(t *testing.T) {
	out := MinMax([][]float64{{-2, 7}, {0, 7}, {2, 7}})
	want := []float64{0, 0.5, 1}
	for i, r := range out {
		if r[0] != want[i] || r[1] != 0 {
			t.Fatalf("row %d = %v", i, r)
		}
	}
}

func TestKMeansSeparatesBlobs(t *testing.T) {
	var rows [][]float64
	for i := 0; i < 20; i++ {
		d := float64(i%5) * 0.01
		rows = append(rows, []float64{d, d}, []float64{10 + d, 10 - d})
	}
	labels := KMeans(rows, 2, 7)
	for i := 0; i < len(rows); i += 2 {
		if labels[i] != labels[0] || labels[i+1] != labels[1] {
			t.Fatalf("blob members split: %v", labels)
		}
	}
	if labels[0] == labels[1] {
		t.Fatalf("blobs share a label")
	}
}

func TestBuildIris(t *testing.T) {
	points, err := Build(Iris(), DefaultOptions())
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if len(points) != 150 {
		t.Fatalf("points = %d", len(points))
	}
	minX, maxX, minY, maxY := 1.0, 0.0, 1.0, 0.0
	seen := map[int]bool{}
	for i, p := range points {
		if p.ID != i {
			t.Fatalf("point %d has id %d", i, p.ID)
		}
		if p.Cluster < 0 || p.Cluster >= 4 {
			t.Fatalf("cluster %d out of range", p.Cluster)
		}
		seen[p.Cluster] = true
		minX, maxX = math.Min(minX, p.Embedding.X), math.Max(maxX, p.Embedding.X)
		minY, maxY = math.Min(minY, p.Embedding.Y), math.Max(maxY, p.Embedding.Y)
	}
	if minX != 0 || maxX != 1 || minY != 0 || maxY != 1 {
		t.Fatalf("embedding range x[%v,%v] y[%v,%v], want unit square", minX, maxX, minY, maxY)
	}
	if len(seen) != 4 {
		t.Fatalf("clusters used = %d, want 4", len(seen))
	}
	if points[0].Features["sepal_length_cm"] != 5.1 {
		t.Fatalf("features = %v", points[0].Features)
	}

	// Setosa (first 50 rows) sits apart from virginica (last 50) on the first axis.
	setosaMax, setosaMin := 0.0, 1.0
	virginicaMax, virginicaMin := 0.0, 1.0
	for _, p := range points[:50] {
		setosaMax = math.Max(setosaMax, p.Embedding.X)
		setosaMin = math.Min(setosaMin, p.Embedding.X)
	}
	for _, p := range points[100:] {
		virginicaMax = math.Max(virginicaMax, p.Embedding.X)
		virginicaMin = math.Min(virginicaMin, p.Embedding.X)
	}
	if !(setosaMax < virginicaMin || virginicaMax < setosaMin) {
		t.Fatalf("species overlap on x: setosa [%v,%v] virginica [%v,%v]", setosaMin, setosaMax, virginicaMin, virginicaMax)
	}
}

func TestBuildIsDeterministic(t *testing.T) {
	a, err := Build(Iris(), DefaultOptions())
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	b, _ := Build(Iris(), DefaultOptions())
	for i := range a {
		if a[i].Cluster != b[i].Cluster || a[i].Embedding != b[i].Embedding {
			t.Fatalf("point %d differs between runs", i)
		}
	}
}

func TestReadCSVErrors(t *testing.T) {
	if _, err := ReadCSV(strings.NewReader("a,b\n")); !errors.Is(err, ErrEmptyTable) {
		t.Fatalf("header only: %v", err)
	}
	if _, err := ReadCSV(strings.NewReader("name\nfoo\n")); !errors.Is(err, ErrNoNumeric) {
		t.Fatalf("text only: %v", err)
	}
	if _, err := ReadCSV(strings.NewReader("a,b\n1,2\nx,3\n")); err == nil {
		t.Fatalf("expected error for non-numeric cell")
	}
	if _, err := Build(Table{}, DefaultOptions()); !errors.Is(err, ErrEmptyTable) {
		t.Fatalf("build empty: %v", err)
	}
}

func TestLoadCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tiny.csv")
	body := "width,height,label\n1,2,a\n3,4,b\n5,9,c\n"
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	tbl, err := LoadCSV(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(tbl.Names) != 2 || len(tbl.Rows) != 3 || tbl.Rows[2][1] != 9 {
		t.Fatalf("table = %+v", tbl)
	}
	points, err := Build(tbl, Options{Clusters: 2, Seed: 1})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if _, ok := points[1].Features["height"]; !ok {
		t.Fatalf("missing feature key: %v", points[1].Features)
	}
}
