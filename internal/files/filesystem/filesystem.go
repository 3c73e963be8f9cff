package filesystem

import (
	"io"
	"io/fs"
)

// FileInfo is an alias for fs.FileInfo from the standard library.
// This provides compatibility with the fs.FS ecosystem while maintaining
// a stable local type for our abstraction layer.
type FileInfo = fs.FileInfo

// FileSystemProvider is the view of the source tree used by the scanner and
// record sources: listing, reading and removing consumed files.
//
// Thread-Safety: implementations must be safe for concurrent use.
type FileSystemProvider interface {
	// OpenFile opens a file for streaming reads.
	// Caller must close the returned reader.
	OpenFile(path string) (io.ReadCloser, error)

	// ReadFile reads a specific file at the given path
	ReadFile(path string) ([]byte, error)

	// ReadDir returns the entries of the directory at path sorted by name.
	ReadDir(path string) ([]FileInfo, error)

	// Stat returns file information for the given path
	Stat(path string) (FileInfo, error)

	// Remove deletes a file or an empty directory.
	// Removing a non-empty directory fails.
	Remove(path string) error
}
