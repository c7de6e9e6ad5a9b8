package resource

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryBudget(t *testing.T) {
	c := NewController(Config{MemoryLimitBytes: 100})

	assert.True(t, c.TryAcquireMemory(60))
	assert.True(t, c.TryAcquireMemory(40))
	assert.False(t, c.TryAcquireMemory(1), "budget exhausted")
	assert.Equal(t, int64(100), c.MemoryUsage())

	c.ReleaseMemory(40)
	assert.True(t, c.TryAcquireMemory(30))
	assert.Equal(t, int64(90), c.MemoryUsage())
}

func TestMemoryUnlimitedStillTracks(t *testing.T) {
	c := NewController(Config{})

	assert.True(t, c.TryAcquireMemory(1<<40))
	assert.Equal(t, int64(1<<40), c.MemoryUsage())
	c.ReleaseMemory(1 << 40)
	assert.Zero(t, c.MemoryUsage())
}

func TestNilControllerIsNoop(t *testing.T) {
	var c *Controller

	assert.True(t, c.TryAcquireMemory(10))
	c.ReleaseMemory(10)
	assert.Zero(t, c.MemoryUsage())
	assert.NoError(t, c.AcquireIO(context.Background(), 1<<20))
}

func TestBackgroundWorkerSlots(t *testing.T) {
	c := NewController(Config{MaxBackgroundWorkers: 2})
	ctx := context.Background()

	require.NoError(t, c.AcquireBackground(ctx))
	require.NoError(t, c.AcquireBackground(ctx))

	// Third acquire blocks; a cancelled context returns its error.
	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	assert.Error(t, c.AcquireBackground(cancelled))

	c.ReleaseBackground()
	require.NoError(t, c.AcquireBackground(ctx))
}

func TestRateLimitedWriterCopies(t *testing.T) {
	c := NewController(Config{IOLimitBytesPerSec: 1 << 20})

	var buf bytes.Buffer
	w := NewRateLimitedWriter(context.Background(), &buf, c)

	n, err := w.Write([]byte("throttled bytes"))
	require.NoError(t, err)
	assert.Equal(t, 15, n)
	assert.Equal(t, "throttled bytes", buf.String())
}

func TestRateLimitedReaderCopies(t *testing.T) {
	c := NewController(Config{IOLimitBytesPerSec: 1 << 20})

	r := NewRateLimitedReader(context.Background(), bytes.NewReader([]byte("payload")), c)

	buf := make([]byte, 7)
	n, err := r.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, 7, n)
	assert.Equal(t, "payload", string(buf))
}
