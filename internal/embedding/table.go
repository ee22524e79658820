package embedding

import (
	_ "embed"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

//go:embed iris.csv
var irisCSV string

// Table is a numeric feature matrix. Text columns are dropped on read.
type Table struct {
	Names []string
	Rows  [][]float64
}

var (
	ErrEmptyTable = errors.New("embedding: table has no rows")
	ErrNoNumeric  = errors.New("embedding: table has no numeric columns")
)

// Iris returns the 150-row Iris measurements.
func Iris() Table {
	t, err := ReadCSV(strings.NewReader(irisCSV))
	if err != nil {
		panic(fmt.Sprintf("embedding: bundled iris table: %v", err))
	}
	return t
}

// ReadCSV parses a headed CSV. A column is numeric when its first data row
// parses as a float; every later row must then parse too.
func ReadCSV(r io.Reader) (Table, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	records, err := cr.ReadAll()
	if err != nil {
		return Table{}, fmt.Errorf("embedding: read csv: %w", err)
	}
	if len(records) < 2 {
		return Table{}, ErrEmptyTable
	}
	header := records[0]
	var cols []int
	for i := range header {
		if _, err := strconv.ParseFloat(strings.TrimSpace(records[1][i]), 64); err == nil {
			cols = append(cols, i)
		}
	}
	if len(cols) == 0 {
		return Table{}, ErrNoNumeric
	}
	t := Table{Names: make([]string, len(cols))}
	for j, c := range cols {
		t.Names[j] = header[c]
	}
	for line, rec := range records[1:] {
		row := make([]float64, len(cols))
		for j, c := range cols {
			v, err := strconv.ParseFloat(strings.TrimSpace(rec[c]), 64)
			if err != nil {
				return Table{}, fmt.Errorf("embedding: row %d column %q: %w", line+1, header[c], err)
			}
			row[j] = v
		}
		t.Rows = append(t.Rows, row)
	}
	return t, nil
}

func LoadCSV(path string) (Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return Table{}, fmt.Errorf("embedding: open %s: %w", path, err)
	}
	defer f.Close()
	return ReadCSV(f)
}

// FeatureKey turns a column header into a JSON-friendly key:
// "sepal length (cm)" becomes "sepal_length_cm".
func FeatureKey(name string) string {
	return strings.NewReplacer(" ", "_", "(", "", ")", "").Replace(strings.TrimSpace(name))
}
