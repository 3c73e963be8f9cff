// Package logging provides concrete implementations of the pgload.Logger interface.
//
// Available implementations:
//   - ConsoleLogger: Writes formatted messages to stderr with thread-safe output
//   - NullLogger: Discards all messages (useful for testing)
//
// Notifier adapts a Logger to pgload.Notifier so per-file outcomes show up
// in the log stream.
//
// All logger implementations are safe for concurrent use by multiple goroutines.
package logging
