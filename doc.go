// Package tigstore is a versioned, disk-resident object store for tigs:
// assembled contig records built from placed sequencing reads.
//
// A store is a directory of paired files per version: a metadata index
// (seqDB.vNNN.tig) holding one fixed-size slot per tig identifier, and an
// append-only data file (seqDB.vNNN.dat) holding encoded payloads. Versions
// form a linear history; each version's index references payloads in its own
// data file and in earlier ones, so a version is a complete, self-contained
// snapshot that never changes once written.
//
// Identifiers are dense and permanent. Scalar attributes live in the index
// slots and can be changed without rewriting payloads; payload reads overlay
// the slot scalars so the index always wins.
//
// Stores are opened in one of five modes (create, read-only, write, append,
// modify) controlling which version is read and which is written. See Open.
//
// The store is not safe for concurrent use.
package tigstore
