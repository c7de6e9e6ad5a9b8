package tigstore

import (
	"github.com/hupe1980/tigstore/internal/fs"
	"github.com/hupe1980/tigstore/resource"
)

// Options configure Open behavior.
type Options struct {
	// Logger receives structured operation logs. Defaults to a text logger
	// at Info level.
	Logger *Logger

	// FS is the file system the store operates on. Defaults to the local
	// disk. Tests inject a fault-wrapped file system here.
	FS fs.FileSystem

	// SyncOnFlush forces an fsync of the data file at flush boundaries
	// (FlushDisk, NextVersion, Close). Off by default; the index rename is
	// the durability point most callers care about.
	SyncOnFlush bool

	// BlockCacheBytes enables an LRU cache of raw payload records, keyed by
	// (version, offset), in front of data-file reads. 0 disables it.
	BlockCacheBytes int64

	// Resources optionally charges the block cache against a shared memory
	// budget and throttles compaction IO.
	Resources *resource.Controller
}

// WithLogger sets the logger.
func WithLogger(l *Logger) func(*Options) {
	return func(o *Options) {
		if l != nil {
			o.Logger = l
		}
	}
}

// WithFS sets the file system implementation.
func WithFS(fsys fs.FileSystem) func(*Options) {
	return func(o *Options) {
		if fsys != nil {
			o.FS = fsys
		}
	}
}

// WithSyncOnFlush enables fsync at flush boundaries.
func WithSyncOnFlush() func(*Options) {
	return func(o *Options) {
		o.SyncOnFlush = true
	}
}

// WithBlockCache enables the payload block cache with the given capacity in
// bytes.
func WithBlockCache(capacityBytes int64) func(*Options) {
	return func(o *Options) {
		o.BlockCacheBytes = capacityBytes
	}
}

// WithResources attaches a resource controller.
func WithResources(rc *resource.Controller) func(*Options) {
	return func(o *Options) {
		o.Resources = rc
	}
}

func defaultOptions() Options {
	return Options{
		Logger: NewLogger(nil),
		FS:     fs.Default,
	}
}
