package logging

import "github.com/vvka-141/pgload/pkg/pgload"

// Notifier reports pipeline outcomes through a Logger.
type Notifier struct {
	logger pgload.Logger
}

// NewNotifier creates a Notifier that logs to logger.
func NewNotifier(logger pgload.Logger) *Notifier {
	return &Notifier{logger: logger}
}

func (n *Notifier) BatchLoaded(sourceID string, rows int) {
	n.logger.Info("✓ %s (%d rows)", sourceID, rows)
}

func (n *Notifier) BatchLoadFailed(sourceID string, err error) {
	n.logger.Error("load failed for %s: %v", sourceID, err)
}

func (n *Notifier) FileClaimFailed(path string, err error) {
	n.logger.Error("parse failed for %s: %v", path, err)
}

var _ pgload.Notifier = (*Notifier)(nil)
