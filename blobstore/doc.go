// Package blobstore provides the storage abstraction tables are saved to and
// loaded from.
//
// A Store holds named blobs. Names are slash separated ("Tables/bugs/01.bin")
// regardless of the backend. A blob being written through Create becomes
// visible under its name only when Close succeeds; Abort discards it and a
// reader never observes a partially written blob.
//
// # Built-in Implementations
//
//   - LocalStore: local filesystem, writing to a ".new" sibling that is
//     renamed over the target on Close
//   - MemoryStore: in-memory, for tests
//   - CachingStore: LRU read cache in front of another Store
//   - s3.Store, s3.DDBCommitStore: Amazon S3 with optional DynamoDB commit log
//   - minio.Store: MinIO and other S3-compatible services
//
// # Custom Implementations
//
// Implement Store to support other backends:
//
//	type Store interface {
//	    Create(ctx, name) (WritableBlob, error)
//	    Open(ctx, name) (io.ReadCloser, error)
//	    List(ctx, prefix) ([]string, error)
//	    Delete(ctx, name) error
//	}
//
// Backends that can serialize writers implement Locker; backends that can
// detect concurrent savers implement Committer.
package blobstore
