// Package s3 provides a blobstore.BlobStore backed by Amazon S3, plus a
// DynamoDB ledger giving archive commits the compare-and-swap semantics S3
// lacks.
package s3
