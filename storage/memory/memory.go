// Package memory provides a thread-safe in-memory implementation of storage.Journal.
package memory

import (
	"maps"
	"sync"

	"github.com/fyshare/fyshare/internal/uuid"
	"github.com/fyshare/fyshare/storage"
)

// Journal is a thread-safe in-memory implementation of storage.Journal.
// Suitable for testing and for runs without a journal file.
type Journal struct {
	mu     sync.RWMutex
	events []storage.Event
}

var _ storage.Journal = (*Journal)(nil)

// NewJournal creates a new empty in-memory Journal.
func NewJournal() *Journal {
	return &Journal{}
}

func cloneEvent(evt storage.Event) storage.Event {
	if evt.Attrs != nil {
		evt.Attrs = maps.Clone(evt.Attrs)
	}
	return evt
}

func (j *Journal) Append(evt storage.Event) error {
	if evt.ID == "" {
		id, err := uuid.NewOrdered()
		if err != nil {
			return err
		}
		evt.ID = id
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	j.events = append(j.events, cloneEvent(evt))
	return nil
}

func (j *Journal) List(limit int) ([]storage.Event, error) {
	j.mu.RLock()
	defer j.mu.RUnlock()
	n := len(j.events)
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]storage.Event, 0, n)
	for i := len(j.events) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, cloneEvent(j.events[i]))
	}
	return out, nil
}

// Len reports the number of stored events.
func (j *Journal) Len() int {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return len(j.events)
}
