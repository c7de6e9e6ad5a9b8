// Package archive copies tig store versions to and from a blobstore
// backend, compressing files in flight. A version's archive is its metadata
// index plus every data file it references, sealed by a manifest written
// last; an optional ledger gives concurrent archivers first-writer-wins
// commits.
package archive
