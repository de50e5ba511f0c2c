// Package s3 provides a small client for S3-compatible object storage such as
// Hetzner Object Storage.
//
// The descriptor store keeps one YAML object per descriptor reference in a
// bucket; this package only knows about buckets and keys.
package s3
