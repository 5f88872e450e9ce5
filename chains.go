package graphbo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
)

// ChainResult is the outcome of one chain started by RunChains.
type ChainResult struct {
	ChainID string   `json:"chain_id"`
	Samples []Sample `json:"samples"`
	Stats   Stats    `json:"stats"`
	Final   *State   `json:"final"`
}

// RunChains runs independent chains concurrently and returns their results in
// chain order.
//
// Parameters:
// - ctx: Cancels every chain between sweeps
// - config: Shared configuration; chain i is seeded with config.Seed+i (or
// from the clock when config.Seed is 0)
// - categories: Read-only category model shared by every chain
// - likelihood: Must be safe for concurrent use
// - outputRange: Observed output range
// - initial: One starting state per chain; each is cloned
// - n: Samples to collect per chain
//
// Returns:
// - []ChainResult: One entry per chain, samples gathered before a failure are
// kept
// - error: Joined errors of all chains that failed
//
// Thread safety:
// - Chains share no mutable state; each owns its Sampler and random source
// - Progress updates from all chains go to config.ProgressChan
func RunChains(
	ctx context.Context,
	config Config,
	categories Categories,
	likelihood Likelihood,
	outputRange OutputRange,
	initial []*State,
	n int,
) ([]ChainResult, error) {
	if len(initial) == 0 {
		return nil, fmt.Errorf("%w: no chains requested", ErrInvalidConfiguration)
	}

	samplers := make([]*Sampler, len(initial))
	for i, init := range initial {
		chainConfig := config
		if config.Seed != 0 {
			chainConfig.Seed = config.Seed + uint64(i)
		}

		s, err := NewSampler(chainConfig, categories, likelihood, outputRange, init)
		if err != nil {
			return nil, fmt.Errorf("chain %d: %w", i, err)
		}

		samplers[i] = s
	}

	results := make([]ChainResult, len(samplers))
	errs := make([]error, len(samplers))

	var wg sync.WaitGroup
	for i, s := range samplers {
		wg.Add(1)

		go func(i int, s *Sampler) {
			defer wg.Done()

			samples, err := s.Run(ctx, n)
			if err != nil {
				errs[i] = fmt.Errorf("chain %s: %w", s.ID(), err)
			}

			results[i] = ChainResult{
				ChainID: s.ID(),
				Samples: samples,
				Stats:   s.Stats(),
				Final:   s.State(),
			}
		}(i, s)
	}

	wg.Wait()

	config.logger().Info("chains finished",
		slog.Int("chains", len(samplers)),
		slog.Int("samples_per_chain", n),
	)

	return results, errors.Join(errs...)
}

// Flatten concatenates the samples of every chain.
func Flatten(results []ChainResult) []Sample {
	total := 0
	for _, r := range results {
		total += len(r.Samples)
	}

	out := make([]Sample, 0, total)
	for _, r := range results {
		out = append(out, r.Samples...)
	}

	return out
}
