package pgload

// Notifier receives per-file and per-batch outcomes from the pipeline.
// Each enqueued batch produces exactly one BatchLoaded or BatchLoadFailed call.
// Implementations must be safe for concurrent use by multiple goroutines.
type Notifier interface {
	// BatchLoaded is called after the batch from sourceID was written.
	BatchLoaded(sourceID string, rows int)

	// BatchLoadFailed is called after writing the batch from sourceID failed.
	BatchLoadFailed(sourceID string, err error)

	// FileClaimFailed is called when a claimed file could not be parsed.
	// The file stays claimed for the rest of the run.
	FileClaimFailed(path string, err error)
}

// Notifiers fans out every notification to each contained Notifier in order.
type Notifiers []Notifier

func (n Notifiers) BatchLoaded(sourceID string, rows int) {
	for _, x := range n {
		x.BatchLoaded(sourceID, rows)
	}
}

func (n Notifiers) BatchLoadFailed(sourceID string, err error) {
	for _, x := range n {
		x.BatchLoadFailed(sourceID, err)
	}
}

func (n Notifiers) FileClaimFailed(path string, err error) {
	for _, x := range n {
		x.FileClaimFailed(path, err)
	}
}

// NopNotifier ignores all notifications.
type NopNotifier struct{}

func (NopNotifier) BatchLoaded(string, int)       {}
func (NopNotifier) BatchLoadFailed(string, error) {}
func (NopNotifier) FileClaimFailed(string, error) {}
