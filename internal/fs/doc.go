// Package fs abstracts file system access for the store and provides a
// fault-injecting wrapper for tests.
package fs
