package archive

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/tigstore/blobstore"
	"github.com/hupe1980/tigstore/resource"
)

func noop() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.Level(1000),
	}))
}

// writeStoreFiles fabricates the on-disk shape of a store at the given
// version: one index plus a data file per version up to it.
func writeStoreFiles(t *testing.T, dir string, version uint32) map[string][]byte {
	t.Helper()

	files := map[string][]byte{}
	idx := fmt.Sprintf("seqDB.v%03d.tig", version)
	files[idx] = []byte("tgStore1 index payload for version test")
	for v := uint32(1); v <= version; v++ {
		name := fmt.Sprintf("seqDB.v%03d.dat", v)
		data := make([]byte, 1024)
		for i := range data {
			data[i] = byte(v) // compressible, version-distinct
		}
		files[name] = data
	}
	for name, data := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), data, 0o600))
	}
	return files
}

func TestArchiveRestoreRoundTrip(t *testing.T) {
	for _, compression := range []Compression{CompressionNone, CompressionZstd, CompressionLZ4} {
		t.Run(compression.String(), func(t *testing.T) {
			ctx := context.Background()
			src := t.TempDir()
			files := writeStoreFiles(t, src, 2)

			blobs := blobstore.NewMemoryStore()
			a := New(blobs, WithCompression(compression), WithLogger(noop()))

			require.NoError(t, a.Archive(ctx, src, 2))

			dst := t.TempDir()
			require.NoError(t, a.Restore(ctx, dst, 2))

			for name, want := range files {
				got, err := os.ReadFile(filepath.Join(dst, name))
				require.NoError(t, err, name)
				assert.Equal(t, want, got, name)
			}
		})
	}
}

func TestArchiveIncludesEarlierDataFiles(t *testing.T) {
	ctx := context.Background()
	src := t.TempDir()
	writeStoreFiles(t, src, 3)

	blobs := blobstore.NewMemoryStore()
	a := New(blobs, WithLogger(noop()))
	require.NoError(t, a.Archive(ctx, src, 3))

	names, err := blobs.List(ctx, "v003/")
	require.NoError(t, err)
	assert.Equal(t, []string{
		"v003/MANIFEST",
		"v003/seqDB.v001.dat",
		"v003/seqDB.v002.dat",
		"v003/seqDB.v003.dat",
		"v003/seqDB.v003.tig",
	}, names)
}

func TestArchiveMissingIndexFails(t *testing.T) {
	a := New(blobstore.NewMemoryStore(), WithLogger(noop()))
	err := a.Archive(context.Background(), t.TempDir(), 1)
	assert.Error(t, err)
}

func TestRestoreMissingVersionFails(t *testing.T) {
	a := New(blobstore.NewMemoryStore(), WithLogger(noop()))
	err := a.Restore(context.Background(), t.TempDir(), 7)
	assert.ErrorIs(t, err, blobstore.ErrNotFound)
}

func TestRestoreWithoutVersionNeedsLedger(t *testing.T) {
	a := New(blobstore.NewMemoryStore(), WithLogger(noop()))
	err := a.Restore(context.Background(), t.TempDir(), 0)
	assert.Error(t, err)
}

// memLedger is an in-memory Ledger for tests.
type memLedger struct {
	mu        sync.Mutex
	manifests map[uint32]string
	latest    uint32
}

func newMemLedger() *memLedger {
	return &memLedger{manifests: make(map[uint32]string)}
}

func (l *memLedger) Commit(_ context.Context, version uint32, manifest string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.manifests[version]; ok {
		return fmt.Errorf("version %d already archived", version)
	}
	l.manifests[version] = manifest
	if version > l.latest {
		l.latest = version
	}
	return nil
}

func (l *memLedger) LatestVersion(_ context.Context) (uint32, string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.latest, l.manifests[l.latest], nil
}

func TestRestoreLatestViaLedger(t *testing.T) {
	ctx := context.Background()
	blobs := blobstore.NewMemoryStore()
	ledger := newMemLedger()
	a := New(blobs, WithLedger(ledger), WithLogger(noop()))

	src1 := t.TempDir()
	writeStoreFiles(t, src1, 1)
	require.NoError(t, a.Archive(ctx, src1, 1))

	src2 := t.TempDir()
	writeStoreFiles(t, src2, 2)
	require.NoError(t, a.Archive(ctx, src2, 2))

	dst := t.TempDir()
	require.NoError(t, a.Restore(ctx, dst, 0))

	_, err := os.Stat(filepath.Join(dst, "seqDB.v002.tig"))
	assert.NoError(t, err, "latest archived version restored")
}

func TestVersionsListing(t *testing.T) {
	ctx := context.Background()
	blobs := blobstore.NewMemoryStore()
	a := New(blobs, WithLogger(noop()))

	for _, v := range []uint32{1, 2} {
		src := t.TempDir()
		writeStoreFiles(t, src, v)
		require.NoError(t, a.Archive(ctx, src, v))
	}

	versions, err := a.Versions(ctx)
	require.NoError(t, err)
	assert.Equal(t, []uint32{1, 2}, versions)
}

func TestDeleteRemovesVersion(t *testing.T) {
	ctx := context.Background()
	blobs := blobstore.NewMemoryStore()
	a := New(blobs, WithLogger(noop()))

	src := t.TempDir()
	writeStoreFiles(t, src, 1)
	require.NoError(t, a.Archive(ctx, src, 1))
	require.NoError(t, a.Delete(ctx, 1))

	names, err := blobs.List(ctx, "")
	require.NoError(t, err)
	assert.Empty(t, names)
}

func TestArchiveWithThrottleAndWorkers(t *testing.T) {
	ctx := context.Background()
	src := t.TempDir()
	files := writeStoreFiles(t, src, 2)

	rc := resource.NewController(resource.Config{
		IOLimitBytesPerSec:   1 << 22,
		MaxBackgroundWorkers: 2,
	})

	blobs := blobstore.NewMemoryStore()
	a := New(blobs, WithWorkers(2), WithResources(rc), WithLogger(noop()))

	require.NoError(t, a.Archive(ctx, src, 2))

	dst := t.TempDir()
	require.NoError(t, a.Restore(ctx, dst, 2))

	for name, want := range files {
		got, err := os.ReadFile(filepath.Join(dst, name))
		require.NoError(t, err, name)
		assert.Equal(t, want, got, name)
	}
}

func TestRestoreRejectsCorruptBlob(t *testing.T) {
	ctx := context.Background()
	src := t.TempDir()
	writeStoreFiles(t, src, 1)

	blobs := blobstore.NewMemoryStore()
	a := New(blobs, WithLogger(noop()))
	require.NoError(t, a.Archive(ctx, src, 1))

	// Flip the magic on one member blob.
	b, err := blobs.Open(ctx, "v001/seqDB.v001.dat")
	require.NoError(t, err)
	raw := make([]byte, b.Size())
	_, err = b.ReadAt(ctx, raw, 0)
	require.NoError(t, err)
	require.NoError(t, b.Close())
	raw[0] ^= 0xFF
	require.NoError(t, blobs.Put(ctx, "v001/seqDB.v001.dat", raw))

	err = a.Restore(ctx, t.TempDir(), 1)
	assert.ErrorContains(t, err, "magic")
}
