package datafile

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/tigstore/internal/fs"
)

func trimFile(path string, size int64) error {
	return os.Truncate(path, size)
}

func openTemp(t *testing.T, writable bool) *File {
	t.Helper()
	path := filepath.Join(t.TempDir(), "seqDB.v001.dat")
	d, err := Open(fs.Default, path, writable)
	require.NoError(t, err)
	t.Cleanup(func() { _ = d.Close() })
	return d
}

func TestAppendAndReadBack(t *testing.T) {
	d := openTemp(t, true)

	off1, err := d.Append([]byte("first record"))
	require.NoError(t, err)
	assert.Equal(t, uint64(0), off1)

	off2, err := d.Append([]byte("second"))
	require.NoError(t, err)
	assert.Equal(t, uint64(RecordSize(len("first record"))), off2)

	got, err := d.ReadRecordAt(off1)
	require.NoError(t, err)
	assert.Equal(t, []byte("first record"), got)

	got, err = d.ReadRecordAt(off2)
	require.NoError(t, err)
	assert.Equal(t, []byte("second"), got)
}

func TestAppendAfterReadRepositions(t *testing.T) {
	d := openTemp(t, true)

	off1, err := d.Append([]byte("aaaa"))
	require.NoError(t, err)

	// A read moves the cursor; the next append must still land at EOF.
	_, err = d.ReadRecordAt(off1)
	require.NoError(t, err)

	off2, err := d.Append([]byte("bbbb"))
	require.NoError(t, err)
	assert.Equal(t, uint64(RecordSize(4)), off2)

	got, err := d.ReadRecordAt(off2)
	require.NoError(t, err)
	assert.Equal(t, []byte("bbbb"), got)
}

func TestSizeAccountsForFraming(t *testing.T) {
	d := openTemp(t, true)

	total := int64(0)
	for i := 0; i < 10; i++ {
		payload := make([]byte, 100+i)
		_, err := d.Append(payload)
		require.NoError(t, err)
		total += RecordSize(len(payload))
	}
	assert.Equal(t, total, d.Size())
}

func TestReadPastEOF(t *testing.T) {
	d := openTemp(t, true)

	_, err := d.Append([]byte("abc"))
	require.NoError(t, err)

	_, err = d.ReadRecordAt(uint64(d.Size()))
	assert.ErrorIs(t, err, ErrShortRecord)
}

func TestTruncatedTailDetected(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seqDB.v001.dat")

	d, err := Open(fs.Default, path, true)
	require.NoError(t, err)
	off, err := d.Append(make([]byte, 64))
	require.NoError(t, err)
	require.NoError(t, d.Close())

	// Reopen a copy with the tail cut off mid-record.
	fi, err := fs.Default.Stat(path)
	require.NoError(t, err)
	require.NoError(t, trimFile(path, fi.Size()-10))

	d, err = Open(fs.Default, path, false)
	require.NoError(t, err)
	defer d.Close()

	_, err = d.ReadRecordAt(off)
	assert.ErrorIs(t, err, ErrShortRecord)
}

func TestAppendReadOnly(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seqDB.v001.dat")
	d, err := Open(fs.Default, path, true)
	require.NoError(t, err)
	_, err = d.Append([]byte("x"))
	require.NoError(t, err)
	require.NoError(t, d.Close())

	ro, err := Open(fs.Default, path, false)
	require.NoError(t, err)
	defer ro.Close()

	_, err = ro.Append([]byte("y"))
	assert.ErrorIs(t, err, ErrReadOnly)
}

func TestAppendFaultSurfaces(t *testing.T) {
	ffs := fs.NewFaultyFS(nil)
	ffs.AddRule(".dat", fs.Fault{FailAfterBytes: 8})

	path := filepath.Join(t.TempDir(), "seqDB.v001.dat")
	d, err := Open(ffs, path, true)
	require.NoError(t, err)
	defer d.Close()

	_, err = d.Append([]byte("0123"))
	require.NoError(t, err)

	_, err = d.Append([]byte("this one is too long"))
	assert.ErrorIs(t, err, fs.ErrInjected)
}
