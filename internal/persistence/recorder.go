package persistence

import "maker-vol-bot-go/internal/models"

// Recorder defines the interface for the analytics sink.
// It abstracts the underlying storage mechanism from the strategy,
// which only emits status snapshots and order action records.
type Recorder interface {
	// RecordStatus persists one per-bar status snapshot.
	RecordStatus(status *models.StatusRecord) error

	// RecordAction persists one order lifecycle action record.
	RecordAction(action *models.ActionRecord) error

	// Close gracefully closes the connection to the storage.
	Close() error
}
