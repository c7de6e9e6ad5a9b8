// Package resource provides memory, concurrency, and IO budgets shared by
// the store's block cache and its offline operations (archive, compaction).
package resource
