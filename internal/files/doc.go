// Package files groups the file-side stages of the loader:
//   - filesystem: filesystem abstraction (OS and in-memory) shared by the other stages
//   - scanner: concurrent claim-parse-enqueue workers and post-load cleanup
//   - source: the XML attribute record source that turns one file into records
package files
