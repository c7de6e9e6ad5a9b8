// Package tig defines the tig record model and its binary codec.
//
// A tig is one assembled contig: a small header of scalar attributes plus a
// variable-length list of children, the reads that were placed into the
// contig. The codec produces a self-describing little-endian encoding that is
// a compatibility surface; the layout constants in codec.go are fixed and
// must not change between releases.
package tig
