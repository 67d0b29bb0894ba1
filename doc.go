// Package arriba provides an embedded, partitioned, in-memory columnar table
// for Go.
//
// A Table stores rows column-wise in up to 2^16 partitions. Each row is routed
// to the partition whose mask matches the top bits of the hash of its ID, so
// lookups by ID touch one partition while queries and deletes fan out over
// all of them in parallel and merge the partial results pairwise.
//
// # Quick Start
//
//	ctx := context.Background()
//	t := arriba.New("bugs", 250_000, arriba.WithDirectory("./data"))
//
//	_ = t.AddColumn(column.Details{Name: "ID", Kind: value.KindInt, IsPrimaryKey: true})
//	_ = t.AddColumn(column.Details{Name: "Title", Kind: value.KindString})
//	_ = t.AddColumn(column.Details{Name: "Priority", Kind: value.KindInt, Indexed: true})
//
//	rows, _ := block.FromRows(
//	    []block.ColumnSpec{{Name: "ID"}, {Name: "Title"}, {Name: "Priority"}},
//	    [][]any{{1, "crash on start", 0}, {2, "typo in menu", 3}},
//	)
//	_ = t.AddOrUpdate(ctx, rows, partition.Options{})
//
//	count, _ := arriba.Query(ctx, t, query.CountQuery{Where: query.Equal("Priority", 3)})
//	fmt.Println(count.Count)
//
//	_, _ = t.Delete(ctx, query.Equal("ID", 2))
//
// # Persistence
//
// Save writes one file per partition to Tables/<name>/<mask>.bin in the
// configured store plus a JSON manifest; Load reads them back. Files are
// written under a temporary name and renamed into place, so an interrupted
// Save never damages the previous version of a file. Stores for the local
// file system, S3 (with an optional DynamoDB commit log) and MinIO live in
// package blobstore.
//
//	t := arriba.New("bugs", 0, arriba.WithDirectory("./data"), arriba.WithCompression(arriba.CompressionZSTD))
//	...
//	err := t.Save(ctx)
//
//	loaded, err := arriba.Load(ctx, "bugs", arriba.WithDirectory("./data"))
//
// # Concurrency
//
// Queries and Save share a read lock. AddOrUpdate, Delete, schema changes and
// Load take the write lock. Results returned from the query cache
// (WithQueryCache) are shared and must be treated as read-only.
package arriba
