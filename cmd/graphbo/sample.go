package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/thalesfsp/graphbo"
	"github.com/thalesfsp/graphbo/graphgp"
	"github.com/thalesfsp/graphbo/problem"
)

var (
	sampleData          string
	sampleCategories    string
	sampleConfig        string
	sampleChains        int
	sampleCount         int
	sampleSeed          uint64
	sampleOut           string
	sampleExperimentDir string
	sampleTimeout       time.Duration
	sampleCacheSize     int
)

var sampleCmd = &cobra.Command{
	Use:   "sample",
	Short: "Sample graph decompositions and GP hyperparameters",
	Long: `Fit the graph GP surrogate to a CSV of observations (levels, then output)
and draw posterior samples of the decomposition and hyperparameters.

Samples are written as JSON lines, one per sample.

Examples:
  graphbo sample --data train.csv --samples 200
  graphbo sample --data train.csv --categories 2,2,3,3 --config sampler.yaml --chains 4
  graphbo sample --data train.csv --experiment-dir /scratch/gdbo --out run1.jsonl`,
	Args: cobra.NoArgs,
	RunE: runSample,
}

func init() {
	f := sampleCmd.Flags()
	f.StringVar(&sampleData, "data", "", "CSV of observations (required)")
	f.StringVar(&sampleCategories, "categories", "", "comma-separated cardinalities; inferred from data when empty")
	f.StringVar(&sampleConfig, "config", "", "YAML sampler config")
	f.IntVar(&sampleChains, "chains", 1, "number of independent chains")
	f.IntVar(&sampleCount, "samples", 100, "samples per chain")
	f.Uint64Var(&sampleSeed, "seed", 0, "seed override (0 keeps the config value)")
	f.StringVar(&sampleOut, "out", "-", "JSON-lines output path, - for stdout")
	f.StringVar(&sampleExperimentDir, "experiment-dir", "", "root for data/ and runs/; relative paths resolve under it")
	f.DurationVar(&sampleTimeout, "timeout", 0, "wall-clock cap for sampling, 0 for none")
	f.IntVar(&sampleCacheSize, "gram-cache", graphgp.DefaultCacheSize, "cached per-subset Gram matrices")

	_ = sampleCmd.MarkFlagRequired("data")
}

func runSample(cmd *cobra.Command, args []string) error {
	layout := problem.Layout{Root: sampleExperimentDir}
	dataPath, outPath := sampleData, sampleOut

	if layout.Root != "" {
		if err := layout.Ensure(); err != nil {
			return err
		}

		if !filepath.IsAbs(dataPath) {
			dataPath = layout.DataPath(dataPath)
		}

		if outPath != "-" && !filepath.IsAbs(outPath) {
			outPath = layout.RunPath(outPath)
		}
	}

	config := graphbo.DefaultConfig()
	if sampleConfig != "" {
		loaded, err := graphbo.LoadConfig(sampleConfig)
		if err != nil {
			return err
		}

		config = loaded
	}

	if sampleSeed != 0 {
		config.Seed = sampleSeed
	}

	config.Logger = slog.Default()

	obs, err := readObservations(dataPath)
	if err != nil {
		return err
	}

	categories, err := resolveCategories(sampleCategories, obs)
	if err != nil {
		return err
	}

	inputs, outputs := problem.Split(obs)

	surrogate, err := graphgp.New(categories, inputs, outputs,
		graphgp.WithCacheSize(sampleCacheSize),
		graphgp.WithLogger(slog.Default()),
	)
	if err != nil {
		return err
	}

	outputRange := surrogate.OutputRange()

	seed := config.Seed
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}

	rng := rand.New(rand.NewPCG(seed, ^seed))

	initial := make([]*graphbo.State, sampleChains)
	for i := range initial {
		if initial[i], err = graphbo.RandomState(rng, categories, outputRange); err != nil {
			return err
		}
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	if sampleTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, sampleTimeout)
		defer cancel()
	}

	results, runErr := graphbo.RunChains(ctx, config, categories, surrogate, outputRange, initial, sampleCount)

	if err := writeSamples(cmd.OutOrStdout(), outPath, graphbo.Flatten(results)); err != nil {
		return err
	}

	for _, r := range results {
		slog.Info("chain summary",
			slog.String("chain", r.ChainID),
			slog.Int("samples", len(r.Samples)),
			slog.Float64("acceptance_rate", r.Stats.AcceptanceRate()),
			slog.Any("final_partition", r.Final.Partition),
		)
	}

	return runErr
}

func readObservations(path string) ([]problem.Observation, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open data: %w", err)
	}
	defer f.Close()

	return problem.ReadCSV(f)
}

func resolveCategories(flag string, obs []problem.Observation) (graphbo.Categories, error) {
	if flag == "" {
		return problem.InferCategories(obs)
	}

	parts := strings.Split(flag, ",")
	cards := make([]int, len(parts))

	for i, p := range parts {
		c, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return graphbo.Categories{}, fmt.Errorf("%w: --categories entry %d: %v", graphbo.ErrInvalidConfiguration, i, err)
		}

		cards[i] = c
	}

	return problem.Custom{Cards: cards}.Categories()
}

func writeSamples(stdout io.Writer, path string, samples []graphbo.Sample) error {
	w := stdout
	if path != "-" {
		f, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("create %s: %w", path, err)
		}
		defer f.Close()

		w = f
	}

	enc := json.NewEncoder(w)
	for _, s := range samples {
		if err := enc.Encode(s); err != nil {
			return fmt.Errorf("encode sample: %w", err)
		}
	}

	return nil
}
