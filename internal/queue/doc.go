// Package queue provides the work queue between the scanner and the load
// dispatcher.
//
// The queue is an explicit instance handed to both sides at construction.
// Its length is advisory: the scanner compares it against a threshold to
// throttle itself, but Enqueue never blocks and never drops a batch.
package queue
