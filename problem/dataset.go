package problem

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/thalesfsp/graphbo"
)

// Observation pairs a level assignment with its observed output.
type Observation struct {
	Input  []int
	Output float64
}

// Dataset splits observations into training and test sets.
type Dataset struct {
	Train []Observation
	Test  []Observation
}

// Split returns the inputs and outputs as parallel slices.
func Split(obs []Observation) ([][]int, []float64) {
	inputs := make([][]int, len(obs))
	outputs := make([]float64, len(obs))

	for i, o := range obs {
		inputs[i] = o.Input
		outputs[i] = o.Output
	}

	return inputs, outputs
}

// WriteCSV writes one row per observation: the levels, then the output.
func WriteCSV(w io.Writer, obs []Observation) error {
	cw := csv.NewWriter(w)

	for _, o := range obs {
		row := make([]string, 0, len(o.Input)+1)
		for _, level := range o.Input {
			row = append(row, strconv.Itoa(level))
		}

		row = append(row, strconv.FormatFloat(o.Output, 'g', -1, 64))
		if err := cw.Write(row); err != nil {
			return err
		}
	}

	cw.Flush()

	return cw.Error()
}

// ReadCSV parses rows written by WriteCSV. Every row must have the same
// number of columns; a leading row that does not parse is taken as a header
// and skipped.
func ReadCSV(r io.Reader) ([]Observation, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	var obs []Observation
	for line := 1; ; line++ {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}

		if err != nil {
			return nil, fmt.Errorf("%w: csv line %d: %v", graphbo.ErrInvalidConfiguration, line, err)
		}

		o, err := parseRow(row)
		if err != nil {
			if line == 1 {
				continue
			}

			return nil, fmt.Errorf("csv line %d: %w", line, err)
		}

		obs = append(obs, o)
	}

	if len(obs) == 0 {
		return nil, fmt.Errorf("%w: csv has no observations", graphbo.ErrInvalidConfiguration)
	}

	return obs, nil
}

func parseRow(row []string) (Observation, error) {
	if len(row) < 2 {
		return Observation{}, fmt.Errorf("%w: need at least one input and one output column", graphbo.ErrInvalidConfiguration)
	}

	input := make([]int, len(row)-1)
	for i, cell := range row[:len(row)-1] {
		level, err := strconv.Atoi(cell)
		if err != nil {
			return Observation{}, fmt.Errorf("%w: column %d: %v", graphbo.ErrInvalidConfiguration, i, err)
		}

		input[i] = level
	}

	output, err := strconv.ParseFloat(row[len(row)-1], 64)
	if err != nil {
		return Observation{}, fmt.Errorf("%w: output column: %v", graphbo.ErrInvalidConfiguration, err)
	}

	return Observation{Input: input, Output: output}, nil
}

// InferCategories returns, per column, one more than the largest level seen,
// but at least 2.
func InferCategories(obs []Observation) (graphbo.Categories, error) {
	if len(obs) == 0 {
		return graphbo.Categories{}, fmt.Errorf("%w: no observations", graphbo.ErrInvalidConfiguration)
	}

	cards := make([]int, len(obs[0].Input))
	for i, o := range obs {
		if len(o.Input) != len(cards) {
			return graphbo.Categories{}, fmt.Errorf("%w: observation %d has %d inputs, want %d", graphbo.ErrInvalidConfiguration, i, len(o.Input), len(cards))
		}

		for v, level := range o.Input {
			cards[v] = max(cards[v], level+1, 2)
		}
	}

	return graphbo.NewCategories(cards...)
}

// Layout roots every experiment artifact at a directory chosen by the caller.
type Layout struct {
	Root string
}

// DataPath returns Root/data/name.
func (l Layout) DataPath(name string) string { return filepath.Join(l.Root, "data", name) }

// RunPath returns Root/runs/name.
func (l Layout) RunPath(name string) string { return filepath.Join(l.Root, "runs", name) }

// Ensure creates the data and runs directories.
func (l Layout) Ensure() error {
	if l.Root == "" {
		return fmt.Errorf("%w: experiment directory not set", graphbo.ErrInvalidConfiguration)
	}

	for _, dir := range []string{l.DataPath(""), l.RunPath("")} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create %s: %w", dir, err)
		}
	}

	return nil
}
