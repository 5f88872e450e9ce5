package problem

import (
	"bytes"
	"errors"
	"fmt"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thalesfsp/graphbo"
)

func TestHighOrderBinarySizes(t *testing.T) {
	tests := []struct {
		dataType, scale           int
		vars, order, data, trains int
	}{
		{1, 2, 10, 4, 250, 50},
		{2, 1, 15, 5, 500, 50},
		{3, 5, 20, 6, 1000, 500},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("t%d_s%d", tt.dataType, tt.scale), func(t *testing.T) {
			h := HighOrderBinary{DataType: tt.dataType, TrainScale: tt.scale}
			require.NoError(t, h.Validate())

			assert.Equal(t, tt.vars, h.NumVariables())
			assert.Equal(t, tt.order, h.HighestOrder())
			assert.Equal(t, tt.data, h.NumData())
			assert.Equal(t, tt.trains, h.NumTrain())

			cats, err := h.Categories()
			require.NoError(t, err)
			assert.Equal(t, tt.vars, cats.Len())
		})
	}

	for _, bad := range []HighOrderBinary{{DataType: 0, TrainScale: 1}, {DataType: 4, TrainScale: 1}, {DataType: 1, TrainScale: 6}} {
		assert.True(t, errors.Is(bad.Validate(), graphbo.ErrInvalidConfiguration))
	}
}

func TestHighOrderBinaryGenerate(t *testing.T) {
	h := HighOrderBinary{DataType: 1, TrainScale: 2, Seed: 7}

	data, terms, err := h.Generate()
	require.NoError(t, err)

	require.Len(t, data.Train, 50)
	require.Len(t, data.Test, 200)
	assert.Len(t, terms, h.NumVariables()*h.HighestOrder())

	seen := map[string]bool{}
	for _, o := range append(append([]Observation{}, data.Train...), data.Test...) {
		require.Len(t, o.Input, 10)

		key := fmt.Sprint(o.Input)
		assert.False(t, seen[key], "duplicate input %s", key)
		seen[key] = true

		assert.Equal(t, EvaluateInteractions(terms, o.Input), o.Output)
	}

	again, _, err := h.Generate()
	require.NoError(t, err)
	assert.Equal(t, data, again)

	other, _, err := HighOrderBinary{DataType: 1, TrainScale: 2, Seed: 8}.Generate()
	require.NoError(t, err)
	assert.NotEqual(t, data.Train, other.Train)
}

func TestEvaluateInteractions(t *testing.T) {
	terms := []Interaction{
		{Variables: []int{0}, Coefficient: 2},
		{Variables: []int{0, 1}, Coefficient: -1},
	}

	// Level 1 is spin +1, level 0 is spin -1.
	assert.Equal(t, 2.0-1.0, EvaluateInteractions(terms, []int{1, 1}))
	assert.Equal(t, 2.0+1.0, EvaluateInteractions(terms, []int{1, 0}))
	assert.Equal(t, -2.0-1.0, EvaluateInteractions(terms, []int{0, 0}))
}

func TestUniqueBinaryInputsExhaustsSmallSpaces(t *testing.T) {
	inputs := uniqueBinaryInputs(rand.New(rand.NewPCG(1, 1)), 8, 3)
	require.Len(t, inputs, 8)

	seen := map[string]bool{}
	for _, x := range inputs {
		seen[fmt.Sprint(x)] = true
	}

	assert.Len(t, seen, 8)
}

func TestCSVRoundTrip(t *testing.T) {
	obs := []Observation{
		{Input: []int{0, 1, 2}, Output: 1.5},
		{Input: []int{1, 0, 0}, Output: -0.25},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, obs))

	got, err := ReadCSV(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	assert.Equal(t, obs, got)

	withHeader := "x0,x1,x2,y\n" + buf.String()
	got, err = ReadCSV(strings.NewReader(withHeader))
	require.NoError(t, err)
	assert.Equal(t, obs, got)

	_, err = ReadCSV(strings.NewReader("0,1,2\n0,x,1\n"))
	assert.True(t, errors.Is(err, graphbo.ErrInvalidConfiguration))

	_, err = ReadCSV(strings.NewReader("a,b\n"))
	assert.True(t, errors.Is(err, graphbo.ErrInvalidConfiguration))

	inputs, outputs := Split(obs)
	assert.Equal(t, [][]int{{0, 1, 2}, {1, 0, 0}}, inputs)
	assert.Equal(t, []float64{1.5, -0.25}, outputs)
}

func TestInferCategories(t *testing.T) {
	cats, err := InferCategories([]Observation{
		{Input: []int{0, 0, 4}},
		{Input: []int{0, 2, 1}},
	})
	require.NoError(t, err)
	assert.Equal(t, []int{2, 3, 5}, cats.Values())

	_, err = InferCategories(nil)
	assert.True(t, errors.Is(err, graphbo.ErrInvalidConfiguration))

	_, err = InferCategories([]Observation{{Input: []int{0, 1}}, {Input: []int{0}}})
	assert.True(t, errors.Is(err, graphbo.ErrInvalidConfiguration))
}

func TestKinds(t *testing.T) {
	for _, k := range []Kind{KindHighOrderBinary, KindCustom} {
		parsed, err := ParseKind(k.String())
		require.NoError(t, err)
		assert.Equal(t, k, parsed)
	}

	_, err := ParseKind("ising")
	assert.True(t, errors.Is(err, graphbo.ErrInvalidConfiguration))

	var inst Instance = Custom{Cards: []int{2, 4}}
	assert.Equal(t, KindCustom, inst.Kind())
	assert.Equal(t, "custom", inst.Name())

	cats, err := inst.Categories()
	require.NoError(t, err)
	assert.Equal(t, []int{2, 4}, cats.Values())

	inst = HighOrderBinary{DataType: 2, TrainScale: 3, Seed: 1}
	assert.Equal(t, KindHighOrderBinary, inst.Kind())
	assert.Equal(t, "highorder_binary_t2_s3_seed1", inst.Name())
}

func TestLayout(t *testing.T) {
	root := t.TempDir()
	l := Layout{Root: root}

	require.NoError(t, l.Ensure())
	assert.DirExists(t, filepath.Join(root, "data"))
	assert.DirExists(t, filepath.Join(root, "runs"))
	assert.Equal(t, filepath.Join(root, "runs", "a.jsonl"), l.RunPath("a.jsonl"))

	require.NoError(t, os.WriteFile(l.DataPath("x.csv"), []byte("0,1\n"), 0o644))
	assert.FileExists(t, l.DataPath("x.csv"))

	assert.True(t, errors.Is(Layout{}.Ensure(), graphbo.ErrInvalidConfiguration))
}
