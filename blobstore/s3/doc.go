// Package s3 provides an Amazon S3 implementation of blobstore.Store.
//
// # Usage
//
//	store, err := s3.New(ctx, "my-bucket",
//	    s3.WithPrefix("arriba/"),
//	    s3.WithRegion("eu-central-1"),
//	)
//
//	t := arriba.New("bugs", 100_000, arriba.WithStore(store))
//
// Blobs are buffered in memory and uploaded through the SDK upload manager
// when the writer is closed, so an aborted or failed save never leaves a
// partial object behind.
//
// DDBCommitStore adds a DynamoDB commit log on top of Store. It implements
// blobstore.Committer, which tables use to detect two processes saving the
// same table concurrently.
package s3
