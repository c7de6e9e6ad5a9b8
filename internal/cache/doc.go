// Package cache provides the optional payload block cache used in front of
// data-file reads.
package cache
