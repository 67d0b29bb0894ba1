// Package resource bounds the IO a table performs while saving and loading
// partitions.
//
// A Controller combines three limits:
//
//   - Concurrency: how many partition files are read or written at once
//   - Buffers: how many bytes of encoded partitions may be held in memory
//   - Throughput: a token bucket over bytes read and written
//
// All methods are safe for concurrent use and a nil *Controller is valid:
// every method becomes a no-op.
//
//	rc := resource.NewController(resource.Config{
//	    MaxConcurrentIO:    4,
//	    IOLimitBytesPerSec: 64 << 20,
//	})
//	if err := rc.AcquireIO(ctx); err != nil {
//	    return err
//	}
//	defer rc.ReleaseIO()
//	w := resource.NewRateLimitedWriter(ctx, file, rc)
package resource
