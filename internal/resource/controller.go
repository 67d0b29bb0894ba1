package resource

import (
	"context"
	"sync/atomic"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

// Config holds resource limits.
type Config struct {
	// MaxConcurrentIO is the maximum number of partition files processed at
	// once. If 0, defaults to 1.
	MaxConcurrentIO int64

	// BufferLimitBytes caps the encoded partition bytes held in memory at
	// once. If 0, buffers are only tracked.
	BufferLimitBytes int64

	// IOLimitBytesPerSec is the maximum read plus write throughput.
	// If 0, unlimited.
	IOLimitBytesPerSec int64
}

// Controller enforces a Config.
type Controller struct {
	cfg Config

	ioSem *semaphore.Weighted

	bufSem  *semaphore.Weighted // nil if unlimited
	bufUsed atomic.Int64

	ioLimiter *rate.Limiter
	ioBytes   atomic.Int64
}

// NewController creates a new resource controller.
func NewController(cfg Config) *Controller {
	if cfg.MaxConcurrentIO <= 0 {
		cfg.MaxConcurrentIO = 1
	}

	c := &Controller{
		cfg:   cfg,
		ioSem: semaphore.NewWeighted(cfg.MaxConcurrentIO),
	}

	if cfg.BufferLimitBytes > 0 {
		c.bufSem = semaphore.NewWeighted(cfg.BufferLimitBytes)
	}

	if cfg.IOLimitBytesPerSec > 0 {
		c.ioLimiter = rate.NewLimiter(rate.Limit(cfg.IOLimitBytesPerSec), int(cfg.IOLimitBytesPerSec))
	}

	return c
}

// Config returns the effective configuration.
func (c *Controller) Config() Config {
	if c == nil {
		return Config{}
	}
	return c.cfg
}

// AcquireIO reserves an IO slot, blocking until one is free or ctx is done.
func (c *Controller) AcquireIO(ctx context.Context) error {
	if c == nil {
		return ctx.Err()
	}
	return c.ioSem.Acquire(ctx, 1)
}

// ReleaseIO releases a slot reserved by AcquireIO.
func (c *Controller) ReleaseIO() {
	if c == nil {
		return
	}
	c.ioSem.Release(1)
}

// AcquireBuffer reserves bytes of buffer memory and returns the amount that
// must later be passed to ReleaseBuffer. Requests larger than the limit are
// clamped to it so a single oversized partition cannot deadlock.
func (c *Controller) AcquireBuffer(ctx context.Context, bytes int64) (int64, error) {
	if c == nil || bytes <= 0 {
		return 0, nil
	}
	if c.bufSem != nil {
		bytes = min(bytes, c.cfg.BufferLimitBytes)
		if err := c.bufSem.Acquire(ctx, bytes); err != nil {
			return 0, err
		}
	}
	c.bufUsed.Add(bytes)
	return bytes, nil
}

// ReleaseBuffer releases bytes reserved by AcquireBuffer.
func (c *Controller) ReleaseBuffer(bytes int64) {
	if c == nil || bytes <= 0 {
		return
	}
	if c.bufSem != nil {
		c.bufSem.Release(bytes)
	}
	c.bufUsed.Add(-bytes)
}

// BufferUsage returns the currently reserved buffer bytes.
func (c *Controller) BufferUsage() int64 {
	if c == nil {
		return 0
	}
	return c.bufUsed.Load()
}

// WaitIO blocks until the throughput limit admits n bytes. Requests larger
// than the bucket are admitted in bucket-sized steps.
func (c *Controller) WaitIO(ctx context.Context, n int) error {
	if c == nil || n <= 0 {
		return nil
	}
	c.ioBytes.Add(int64(n))
	if c.ioLimiter == nil {
		return nil
	}
	burst := c.ioLimiter.Burst()
	for n > 0 {
		step := min(n, burst)
		if err := c.ioLimiter.WaitN(ctx, step); err != nil {
			return err
		}
		n -= step
	}
	return nil
}

// IOBytes returns the total number of bytes passed through WaitIO.
func (c *Controller) IOBytes() int64 {
	if c == nil {
		return 0
	}
	return c.ioBytes.Load()
}
