// Package minio provides a blobstore.Store implementation using the MinIO client.
//
// MinIO is a high-performance, S3-compatible object storage system. This package
// uses the official MinIO Go client library, which also works against Ceph,
// SeaweedFS, Garage and other S3-compatible services.
//
// # Basic Usage
//
//	client, err := minio.New("localhost:9000", &minio.Options{
//	    Creds:  credentials.NewStaticV4("minioadmin", "minioadmin", ""),
//	    Secure: false,
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	store := minioblob.NewStore(client, "my-bucket", "arriba/")
//	t := arriba.New("bugs", 100_000, arriba.WithStore(store))
//
// Writes stream to the server while the partition is encoded. Abort cancels
// the upload, so the object is only created when Close succeeds.
package minio
