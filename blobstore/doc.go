// Package blobstore abstracts immutable blob storage for store archives.
//
// Backends: local disk (mmap-backed reads), in-memory (tests), and the
// object-store implementations in the minio and s3 subpackages.
package blobstore
