// Package graphgp provides the Gaussian-process surrogate that scores
// graphbo states: an additive-over-subgraphs, product-within-subgraph
// diffusion kernel on categorical inputs, its marginal likelihood and
// posterior predictions.
//
// Surrogate satisfies graphbo.Likelihood and is safe for concurrent use, so a
// single instance can back every chain of graphbo.RunChains.
package graphgp
