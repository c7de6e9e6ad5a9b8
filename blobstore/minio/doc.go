// Package minio provides a blobstore.BlobStore backed by MinIO or any
// S3-compatible object store, for archiving tig stores off the assembly
// machine.
package minio
