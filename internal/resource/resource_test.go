package resource

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNilControllerIsNoop(t *testing.T) {
	var c *Controller
	require.NoError(t, c.AcquireIO(t.Context()))
	c.ReleaseIO()
	n, err := c.AcquireBuffer(t.Context(), 10)
	require.NoError(t, err)
	assert.Zero(t, n)
	c.ReleaseBuffer(10)
	require.NoError(t, c.WaitIO(t.Context(), 1<<20))
	assert.Zero(t, c.IOBytes())
	assert.Zero(t, c.BufferUsage())
}

func TestIOSlots(t *testing.T) {
	c := NewController(Config{MaxConcurrentIO: 2})
	require.NoError(t, c.AcquireIO(t.Context()))
	require.NoError(t, c.AcquireIO(t.Context()))

	ctx, cancel := context.WithTimeout(t.Context(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, c.AcquireIO(ctx), context.DeadlineExceeded)

	c.ReleaseIO()
	require.NoError(t, c.AcquireIO(t.Context()))
}

func TestDefaultConfig(t *testing.T) {
	c := NewController(Config{})
	assert.Equal(t, int64(1), c.Config().MaxConcurrentIO)
}

func TestBuffers(t *testing.T) {
	c := NewController(Config{BufferLimitBytes: 100})

	n, err := c.AcquireBuffer(t.Context(), 60)
	require.NoError(t, err)
	assert.Equal(t, int64(60), n)
	assert.Equal(t, int64(60), c.BufferUsage())

	ctx, cancel := context.WithTimeout(t.Context(), 20*time.Millisecond)
	defer cancel()
	_, err = c.AcquireBuffer(ctx, 50)
	assert.Error(t, err)

	c.ReleaseBuffer(60)

	// Oversized requests are clamped to the limit.
	n, err = c.AcquireBuffer(t.Context(), 500)
	require.NoError(t, err)
	assert.Equal(t, int64(100), n)
	c.ReleaseBuffer(n)
	assert.Zero(t, c.BufferUsage())
}

func TestWaitIOLargerThanBurst(t *testing.T) {
	c := NewController(Config{IOLimitBytesPerSec: 1 << 20})
	require.NoError(t, c.WaitIO(t.Context(), 1<<20+10))
	assert.Equal(t, int64(1<<20+10), c.IOBytes())
}

func TestRateLimitedReaderWriter(t *testing.T) {
	c := NewController(Config{IOLimitBytesPerSec: 1 << 20})

	var buf bytes.Buffer
	w := NewRateLimitedWriter(t.Context(), &buf, c)
	_, err := io.Copy(w, strings.NewReader("partition"))
	require.NoError(t, err)

	r := NewRateLimitedReader(t.Context(), &buf, c)
	got, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, "partition", string(got))
	assert.Equal(t, int64(18), c.IOBytes())
}

func TestRateLimitedReaderCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(t.Context())
	cancel()
	r := NewRateLimitedReader(ctx, strings.NewReader("x"), NewController(Config{}))
	_, err := r.Read(make([]byte, 1))
	assert.ErrorIs(t, err, context.Canceled)
}
