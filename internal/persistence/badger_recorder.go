package persistence

import (
	"encoding/binary"
	"encoding/json"

	"maker-vol-bot-go/internal/models"

	"github.com/dgraph-io/badger/v3"
)

// badgerRecorder is the BadgerDB implementation of the Recorder.
// Records are stored as JSON values under monotonically increasing keys,
// one key space per record kind.
type badgerRecorder struct {
	db        *badger.DB
	statusSeq *badger.Sequence
	actionSeq *badger.Sequence
}

// NewBadgerRecorder creates and returns a new recorder instance connected to a BadgerDB database.
func NewBadgerRecorder(dbPath string) (Recorder, error) {
	opts := badger.DefaultOptions(dbPath)
	// Badger's own logging is disabled to keep the app's logs clean.
	// Errors are still returned from DB operations.
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, err
	}

	statusSeq, err := db.GetSequence([]byte("seq_status"), 128)
	if err != nil {
		db.Close()
		return nil, err
	}
	actionSeq, err := db.GetSequence([]byte("seq_action"), 128)
	if err != nil {
		statusSeq.Release()
		db.Close()
		return nil, err
	}

	return &badgerRecorder{
		db:        db,
		statusSeq: statusSeq,
		actionSeq: actionSeq,
	}, nil
}

func (r *badgerRecorder) RecordStatus(status *models.StatusRecord) error {
	return r.record("status/", r.statusSeq, status)
}

func (r *badgerRecorder) RecordAction(action *models.ActionRecord) error {
	return r.record("action/", r.actionSeq, action)
}

// record marshals the value to JSON and stores it under prefix + next sequence number.
func (r *badgerRecorder) record(prefix string, seq *badger.Sequence, value interface{}) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	n, err := seq.Next()
	if err != nil {
		return err
	}

	key := make([]byte, len(prefix)+8)
	copy(key, prefix)
	binary.BigEndian.PutUint64(key[len(prefix):], n)

	return r.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key, data)
	})
}

// Close releases the sequences and closes the database.
func (r *badgerRecorder) Close() error {
	r.statusSeq.Release()
	r.actionSeq.Release()
	return r.db.Close()
}
