// Package filesystem provides filesystem abstraction interfaces and implementations.
//
// The scanner walks the source tree one directory listing at a time, reads
// claimed files through a record source and removes them once their batch
// has been written. All of that goes through FileSystemProvider so the
// pipeline can be tested against an in-memory tree.
//
// Implementations:
//   - OSFileSystem: Production implementation using the OS filesystem
//   - MemoryFileSystem: In-memory implementation for testing
package filesystem
