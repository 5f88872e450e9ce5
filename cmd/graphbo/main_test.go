package main

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thalesfsp/graphbo"
	"github.com/thalesfsp/graphbo/problem"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)

	err := rootCmd.Execute()

	return out.String(), err
}

func TestVersion(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Equal(t, version+"\n", out)
}

func TestSynthThenSample(t *testing.T) {
	dir := t.TempDir()
	train := filepath.Join(dir, "train.csv")
	test := filepath.Join(dir, "test.csv")

	_, err := execute(t, "synth", "--log-level", "error",
		"--data-type", "1", "--scale", "1", "--seed", "4",
		"--out", train, "--test-out", test)
	require.NoError(t, err)

	f, err := os.Open(train)
	require.NoError(t, err)
	obs, err := problem.ReadCSV(f)
	f.Close()
	require.NoError(t, err)
	assert.Len(t, obs, 25)
	assert.FileExists(t, test)

	config := filepath.Join(dir, "sampler.yaml")
	require.NoError(t, os.WriteFile(config, []byte("burn_in: 2\nthin: 1\nseed: 9\n"), 0o644))

	out := filepath.Join(dir, "samples.jsonl")
	_, err = execute(t, "sample", "--log-level", "error",
		"--data", train, "--categories", "", "--config", config,
		"--chains", "2", "--samples", "3", "--seed", "0",
		"--out", out, "--experiment-dir", "", "--timeout", "0")
	require.NoError(t, err)

	samples, err := os.Open(out)
	require.NoError(t, err)
	defer samples.Close()

	cats, err := problem.InferCategories(obs)
	require.NoError(t, err)

	chains := map[string]int{}
	scanner := bufio.NewScanner(samples)
	for scanner.Scan() {
		var s graphbo.Sample
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &s))
		require.NoError(t, s.State.Validate(cats))
		chains[s.ChainID]++
	}
	require.NoError(t, scanner.Err())

	assert.Len(t, chains, 2)
	for _, n := range chains {
		assert.Equal(t, 3, n)
	}
}

func TestSampleRequiresData(t *testing.T) {
	_, err := execute(t, "sample", "--data", filepath.Join(t.TempDir(), "missing.csv"))
	assert.Error(t, err)
}

func TestResolveCategories(t *testing.T) {
	obs := []problem.Observation{{Input: []int{0, 2}}, {Input: []int{1, 0}}}

	cats, err := resolveCategories("", obs)
	require.NoError(t, err)
	assert.Equal(t, []int{2, 3}, cats.Values())

	cats, err = resolveCategories("4, 5", obs)
	require.NoError(t, err)
	assert.Equal(t, []int{4, 5}, cats.Values())

	_, err = resolveCategories("4,x", obs)
	assert.True(t, errors.Is(err, graphbo.ErrInvalidConfiguration))

	_, err = resolveCategories("4,1", obs)
	assert.True(t, errors.Is(err, graphbo.ErrInvalidConfiguration))
}

func TestNewLogger(t *testing.T) {
	for _, format := range []string{"text", "json", "JSON"} {
		logger, err := newLogger("debug", format)
		require.NoError(t, err)
		assert.NotNil(t, logger)
	}

	_, err := newLogger("loud", "text")
	assert.Error(t, err)

	_, err = newLogger("info", "xml")
	assert.Error(t, err)
}
