// Package testutil provides helpers for tests and benchmarks: a seeded,
// thread-safe RNG and generators for realistic tig layouts and placements.
package testutil
