// Package bbolt provides a BBolt-backed security event journal.
package bbolt

import (
	"encoding/json"
	"fmt"

	"github.com/fyshare/fyshare/internal/uuid"
	"github.com/fyshare/fyshare/storage"
	"go.etcd.io/bbolt"
)

var eventsBucket = []byte("events")

// Journal implements storage.Journal backed by a BBolt database. Keys are
// time-ordered UUIDs, so cursor order is append order.
type Journal struct {
	db *bbolt.DB
}

var _ storage.Journal = (*Journal)(nil)

// NewJournal returns a Journal backed by the given BBolt database.
func NewJournal(db *bbolt.DB) (*Journal, error) {
	if db.IsReadOnly() {
		return &Journal{db: db}, nil
	}
	err := db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(eventsBucket)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("creating events bucket: %w", err)
	}
	return &Journal{db: db}, nil
}

// NewJournalFromFile opens a BBolt database at the given path and returns a new Journal.
func NewJournalFromFile(path string, options *bbolt.Options) (*Journal, error) {
	db, err := bbolt.Open(path, 0600, options)
	if err != nil {
		return nil, fmt.Errorf("opening bbolt db: %w", err)
	}
	j, err := NewJournal(db)
	if err != nil {
		db.Close()
		return nil, err
	}
	return j, nil
}

// Close closes the underlying BBolt database.
func (j *Journal) Close() error {
	return j.db.Close()
}

func (j *Journal) Append(evt storage.Event) error {
	if evt.ID == "" {
		id, err := uuid.NewOrdered()
		if err != nil {
			return err
		}
		evt.ID = id
	}
	data, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("encoding event: %w", err)
	}
	return j.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(eventsBucket)
		if b == nil {
			return bbolt.ErrBucketNotFound
		}
		return b.Put([]byte(evt.ID), data)
	})
}

func (j *Journal) List(limit int) ([]storage.Event, error) {
	var events []storage.Event
	err := j.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(eventsBucket)
		if b == nil {
			return nil
		}
		c := b.Cursor()
		for k, v := c.Last(); k != nil; k, v = c.Prev() {
			if limit > 0 && len(events) >= limit {
				break
			}
			var evt storage.Event
			if err := json.Unmarshal(v, &evt); err != nil {
				return fmt.Errorf("decoding event %s: %w", k, err)
			}
			events = append(events, evt)
		}
		return nil
	})
	return events, err
}
