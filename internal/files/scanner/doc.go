// Package scanner provides the ingestion scanner: a pool of workers that
// claim files from a directory tree, parse them through a record source and
// enqueue the resulting batches.
//
// The scanner is responsible for:
//   - Selecting files depth-first (files before subdirectories, by name)
//   - Claiming each file exactly once per run
//   - Throttling itself while the queue is above a threshold
//   - Deleting loaded files and their emptied parent directories
//
// The scanner is filesystem-agnostic through the filesystem.FileSystemProvider
// interface, enabling both production use with the OS filesystem and
// testing with in-memory filesystems.
package scanner
