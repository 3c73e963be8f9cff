// Package dispatcher drains the batch queue into the database writer.
//
// A fixed pool of workers dequeues batches and applies one write strategy,
// Bulk-Append or Merge-Upsert, chosen when the dispatcher is started. A
// worker exits once its producer (the scanner) has stopped and the queue is
// empty, so the producer must be started first. While the queue is empty
// and the producer is still running, idle workers block on the queue's
// signal with a bounded wait instead of spinning.
//
// Failures are never retried or re-enqueued. Each batch is reported exactly
// once through the pgload.Notifier and its records are released afterwards.
package dispatcher
