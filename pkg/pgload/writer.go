package pgload

import "context"

// BatchWriter applies one write strategy to a batch.
// Implementations must be safe for concurrent use by multiple goroutines.
type BatchWriter interface {
	// Append streams all records of the batch through one bulk load.
	// The batch is committed as a unit; any error aborts all of it.
	Append(ctx context.Context, batch *Batch) error

	// Merge inserts or updates each record on its key field.
	Merge(ctx context.Context, batch *Batch) error
}

// Write applies the writer strategy selected by mode.
func Write(ctx context.Context, w BatchWriter, mode LoadMode, batch *Batch) error {
	if mode == ModeMerge {
		return w.Merge(ctx, batch)
	}
	return w.Append(ctx, batch)
}
