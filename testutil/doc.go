// Package testutil provides testing utilities for arriba.
//
// This package is intended for use in tests and benchmarks only.
// It provides a deterministic RNG and generators for data blocks.
//
// # Random Rows
//
//	rng := testutil.NewRNG(seed)
//	b := rng.Bugs(1, 10_000)         // IDs 1..10000
//	owners := rng.Zipf(len(names), 1.5) // skewed choice
//
// # Schema
//
//	for _, d := range testutil.BugDetails() {
//	    _ = table.AddColumn(d)
//	}
package testutil
