package archive

import (
	"bufio"
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/tigstore/blobstore"
	"github.com/hupe1980/tigstore/resource"
)

// Blob layout: each archived store file becomes one blob under a per-version
// prefix, framed with a small header so Restore can pick the right codec:
//
//	[Magic:8 "tgarch01"][Compression:1][OrigSize:8]
//	[compressed stream]
//
// A MANIFEST blob per version lists the member blobs; the manifest is
// written last, so a version is restorable exactly when its manifest exists.
const (
	blobMagic      = "tgarch01"
	blobHeaderSize = 8 + 1 + 8

	manifestName   = "MANIFEST"
	manifestHeader = "tgarchive 1"
)

// Ledger records archive commits externally, giving concurrent archivers
// first-writer-wins semantics. Satisfied by the s3 package's ArchiveLedger.
type Ledger interface {
	Commit(ctx context.Context, version uint32, manifest string) error
	LatestVersion(ctx context.Context) (version uint32, manifest string, err error)
}

// Options configure an Archiver.
type Options struct {
	// Compression selects the blob codec. Defaults to zstd.
	Compression Compression

	// Workers caps concurrent uploads and downloads. Defaults to 4.
	Workers int

	// Resources optionally throttles file IO against a shared budget.
	Resources *resource.Controller

	// Ledger, when set, records each archived version after its manifest is
	// written.
	Ledger Ledger

	// Logger receives operation logs. Defaults to slog.Default().
	Logger *slog.Logger
}

// Archiver copies store versions to and from a blob store.
type Archiver struct {
	blobs blobstore.BlobStore
	opts  Options
}

// New creates an Archiver on top of a blob store.
func New(blobs blobstore.BlobStore, optFns ...func(*Options)) *Archiver {
	opts := Options{
		Compression: CompressionZstd,
		Workers:     4,
		Logger:      slog.Default(),
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	return &Archiver{blobs: blobs, opts: opts}
}

// WithCompression selects the blob codec.
func WithCompression(c Compression) func(*Options) {
	return func(o *Options) {
		o.Compression = c
	}
}

// WithWorkers caps transfer concurrency.
func WithWorkers(n int) func(*Options) {
	return func(o *Options) {
		o.Workers = n
	}
}

// WithResources attaches an IO throttle.
func WithResources(rc *resource.Controller) func(*Options) {
	return func(o *Options) {
		o.Resources = rc
	}
}

// WithLedger attaches an archive commit ledger.
func WithLedger(l Ledger) func(*Options) {
	return func(o *Options) {
		o.Ledger = l
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) func(*Options) {
	return func(o *Options) {
		if l != nil {
			o.Logger = l
		}
	}
}

func versionPrefix(version uint32) string {
	return fmt.Sprintf("v%03d", version)
}

// manifestEntry is one archived file: blob name relative to the version
// prefix, codec, and the file's original size.
type manifestEntry struct {
	name        string
	compression Compression
	origSize    int64
}

// Archive uploads the store files a version needs: its index plus every
// data file up to that version. Uploads run in parallel; the manifest is
// written only after all members are durable.
func (a *Archiver) Archive(ctx context.Context, dir string, version uint32) error {
	if !a.opts.Compression.valid() {
		return fmt.Errorf("invalid compression %d", a.opts.Compression)
	}

	files := []string{fmt.Sprintf("seqDB.v%03d.tig", version)}
	for v := uint32(1); v <= version; v++ {
		name := fmt.Sprintf("seqDB.v%03d.dat", v)
		if _, err := os.Stat(filepath.Join(dir, name)); err == nil {
			files = append(files, name)
		}
	}
	if _, err := os.Stat(filepath.Join(dir, files[0])); err != nil {
		return fmt.Errorf("archive version %d: index file missing: %w", version, err)
	}

	prefix := versionPrefix(version)
	entries := make([]manifestEntry, len(files))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.opts.Workers)
	for i, name := range files {
		g.Go(func() error {
			entry, err := a.uploadFile(gctx, filepath.Join(dir, name), prefix+"/"+name)
			if err != nil {
				return fmt.Errorf("upload %s: %w", name, err)
			}
			entries[i] = entry
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	manifest := a.encodeManifest(version, entries)
	manifestBlob := prefix + "/" + manifestName
	if err := a.blobs.Put(ctx, manifestBlob, manifest); err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}

	if a.opts.Ledger != nil {
		if err := a.opts.Ledger.Commit(ctx, version, manifestBlob); err != nil {
			return fmt.Errorf("commit archive: %w", err)
		}
	}

	a.opts.Logger.Info("archived store version",
		"dir", dir, "version", version, "files", len(files),
		"compression", a.opts.Compression.String())
	return nil
}

// Restore downloads an archived version into dir. Pass version 0 with a
// ledger attached to restore the latest archived version. Files land via
// temp-and-rename, so an interrupted restore leaves no partial store files.
func (a *Archiver) Restore(ctx context.Context, dir string, version uint32) error {
	manifestBlob := ""
	switch {
	case version > 0:
		manifestBlob = versionPrefix(version) + "/" + manifestName
	case a.opts.Ledger != nil:
		var err error
		version, manifestBlob, err = a.opts.Ledger.LatestVersion(ctx)
		if err != nil {
			return fmt.Errorf("resolve latest archive: %w", err)
		}
		if version == 0 {
			return fmt.Errorf("restore: nothing archived yet: %w", blobstore.ErrNotFound)
		}
	default:
		return fmt.Errorf("restore: version required without a ledger")
	}

	raw, err := a.readBlob(ctx, manifestBlob)
	if err != nil {
		return fmt.Errorf("read manifest: %w", err)
	}
	gotVersion, entries, err := a.decodeManifest(raw)
	if err != nil {
		return err
	}
	if gotVersion != version {
		return fmt.Errorf("manifest is for version %d, expected %d", gotVersion, version)
	}

	if err := os.MkdirAll(dir, 0o750); err != nil {
		return err
	}

	prefix := versionPrefix(version)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.opts.Workers)
	for _, entry := range entries {
		g.Go(func() error {
			if err := a.downloadFile(gctx, prefix+"/"+entry.name, filepath.Join(dir, entry.name), entry); err != nil {
				return fmt.Errorf("restore %s: %w", entry.name, err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	a.opts.Logger.Info("restored store version",
		"dir", dir, "version", version, "files", len(entries))
	return nil
}

// Versions lists the archived versions, ascending.
func (a *Archiver) Versions(ctx context.Context) ([]uint32, error) {
	names, err := a.blobs.List(ctx, "")
	if err != nil {
		return nil, err
	}
	var versions []uint32
	for _, name := range names {
		if !strings.HasSuffix(name, "/"+manifestName) {
			continue
		}
		var v uint32
		if _, err := fmt.Sscanf(name, "v%03d/", &v); err == nil {
			versions = append(versions, v)
		}
	}
	return versions, nil
}

// Delete removes an archived version's blobs, and its ledger entry when a
// ledger is attached. The manifest goes first, so a failed delete never
// leaves a restorable manifest over missing members.
func (a *Archiver) Delete(ctx context.Context, version uint32) error {
	prefix := versionPrefix(version)
	if err := a.blobs.Delete(ctx, prefix+"/"+manifestName); err != nil {
		return err
	}
	names, err := a.blobs.List(ctx, prefix+"/")
	if err != nil {
		return err
	}
	for _, name := range names {
		if err := a.blobs.Delete(ctx, name); err != nil {
			return err
		}
	}
	if forgetter, ok := a.opts.Ledger.(interface {
		Forget(ctx context.Context, version uint32) error
	}); ok && a.opts.Ledger != nil {
		return forgetter.Forget(ctx, version)
	}
	return nil
}

func (a *Archiver) uploadFile(ctx context.Context, path, blobName string) (manifestEntry, error) {
	f, err := os.Open(path)
	if err != nil {
		return manifestEntry{}, err
	}
	defer f.Close()

	st, err := f.Stat()
	if err != nil {
		return manifestEntry{}, err
	}

	var src io.Reader = f
	if a.opts.Resources != nil {
		src = resource.NewRateLimitedReader(ctx, f, a.opts.Resources)
	}

	w, err := a.blobs.Create(ctx, blobName)
	if err != nil {
		return manifestEntry{}, err
	}

	var header [blobHeaderSize]byte
	copy(header[0:8], blobMagic)
	header[8] = byte(a.opts.Compression)
	binary.LittleEndian.PutUint64(header[9:17], uint64(st.Size()))
	if _, err := w.Write(header[:]); err != nil {
		_ = w.Close()
		return manifestEntry{}, err
	}

	cw, err := a.opts.Compression.compressor(w)
	if err != nil {
		_ = w.Close()
		return manifestEntry{}, err
	}
	if _, err := io.Copy(cw, src); err != nil {
		_ = cw.Close()
		_ = w.Close()
		return manifestEntry{}, err
	}
	if err := cw.Close(); err != nil {
		_ = w.Close()
		return manifestEntry{}, err
	}
	if err := w.Close(); err != nil {
		return manifestEntry{}, err
	}

	return manifestEntry{
		name:        filepath.Base(path),
		compression: a.opts.Compression,
		origSize:    st.Size(),
	}, nil
}

func (a *Archiver) downloadFile(ctx context.Context, blobName, path string, entry manifestEntry) error {
	b, err := a.blobs.Open(ctx, blobName)
	if err != nil {
		return err
	}
	defer b.Close()

	br := bufio.NewReader(&blobReader{ctx: ctx, blob: b})

	var header [blobHeaderSize]byte
	if _, err := io.ReadFull(br, header[:]); err != nil {
		return fmt.Errorf("short blob header: %w", err)
	}
	if string(header[0:8]) != blobMagic {
		return fmt.Errorf("bad blob magic %q", header[0:8])
	}
	compression := Compression(header[8])
	if !compression.valid() {
		return fmt.Errorf("unknown compression tag %d", header[8])
	}
	origSize := int64(binary.LittleEndian.Uint64(header[9:17]))
	if origSize != entry.origSize {
		return fmt.Errorf("blob header says %d bytes, manifest says %d", origSize, entry.origSize)
	}

	dr, err := compression.decompressor(br)
	if err != nil {
		return err
	}
	defer dr.Close()

	tmp := path + ".restore"
	f, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return err
	}

	var dst io.Writer = f
	if a.opts.Resources != nil {
		dst = resource.NewRateLimitedWriter(ctx, f, a.opts.Resources)
	}

	n, err := io.Copy(dst, dr)
	if err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return err
	}
	if n != origSize {
		_ = f.Close()
		_ = os.Remove(tmp)
		return fmt.Errorf("decompressed to %d bytes, expected %d", n, origSize)
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, path)
}

func (a *Archiver) encodeManifest(version uint32, entries []manifestEntry) []byte {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "%s %d\n", manifestHeader, version)
	for _, e := range entries {
		fmt.Fprintf(&buf, "%s %d %d\n", e.name, e.compression, e.origSize)
	}
	return buf.Bytes()
}

func (a *Archiver) decodeManifest(raw []byte) (uint32, []manifestEntry, error) {
	lines := strings.Split(strings.TrimRight(string(raw), "\n"), "\n")
	if len(lines) == 0 {
		return 0, nil, fmt.Errorf("empty manifest")
	}

	var version uint32
	if _, err := fmt.Sscanf(lines[0], manifestHeader+" %d", &version); err != nil {
		return 0, nil, fmt.Errorf("bad manifest header %q", lines[0])
	}

	entries := make([]manifestEntry, 0, len(lines)-1)
	for _, line := range lines[1:] {
		fields := strings.Fields(line)
		if len(fields) != 3 {
			return 0, nil, fmt.Errorf("bad manifest line %q", line)
		}
		compression, err := strconv.ParseUint(fields[1], 10, 8)
		if err != nil {
			return 0, nil, fmt.Errorf("bad compression in manifest line %q", line)
		}
		origSize, err := strconv.ParseInt(fields[2], 10, 64)
		if err != nil {
			return 0, nil, fmt.Errorf("bad size in manifest line %q", line)
		}
		entries = append(entries, manifestEntry{
			name:        fields[0],
			compression: Compression(compression),
			origSize:    origSize,
		})
	}
	return version, entries, nil
}

// readBlob fetches a whole blob into memory. Only used for manifests, which
// are tiny.
func (a *Archiver) readBlob(ctx context.Context, name string) ([]byte, error) {
	b, err := a.blobs.Open(ctx, name)
	if err != nil {
		return nil, err
	}
	defer b.Close()

	buf := make([]byte, b.Size())
	if _, err := io.ReadFull(&blobReader{ctx: ctx, blob: b}, buf); err != nil {
		return nil, err
	}
	return buf, nil
}

// blobReader adapts a blobstore.Blob to io.Reader.
type blobReader struct {
	ctx  context.Context
	blob blobstore.Blob
	off  int64
}

func (r *blobReader) Read(p []byte) (int, error) {
	n, err := r.blob.ReadAt(r.ctx, p, r.off)
	r.off += int64(n)
	return n, err
}
