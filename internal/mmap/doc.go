// Package mmap provides read-only memory mapping, used for index-file loads
// and local blob access.
package mmap
