// Package blobstore abstracts where media bytes live. The final store is
// either a directory tree (FSStore) or an S3 bucket (S3Store); the staging
// area holding uploads awaiting processing is always an FSStore. Keys are
// slash separated and never escape the store root.
package blobstore
