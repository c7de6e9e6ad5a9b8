package cache

// BlockKey addresses one payload record. Payload bytes at a given
// (version, offset) are immutable within a session, which is what makes
// caching them safe.
type BlockKey struct {
	Version uint32
	Offset  uint64
}

// BlockCache caches raw payload records by (version, offset).
type BlockCache interface {
	Get(key BlockKey) ([]byte, bool)
	Set(key BlockKey, b []byte)
	// InvalidateVersion drops all blocks belonging to a version. Used when a
	// version's data file is rewritten by compaction.
	InvalidateVersion(version uint32)
	Size() int64
	Close() error
}
