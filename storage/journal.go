package storage

import "time"

// Event is one persisted security event.
type Event struct {
	ID      string            `json:"id"`
	Type    string            `json:"type"`
	Level   string            `json:"level"`
	Address string            `json:"address,omitempty"`
	Attrs   map[string]string `json:"attrs,omitempty"`
	Time    time.Time         `json:"time"`
}

// Journal is an append-only store of security events.
type Journal interface {
	// Append stores evt. Implementations assign evt.ID when it is empty.
	Append(evt Event) error
	// List returns up to limit events, newest first. limit <= 0 returns all.
	List(limit int) ([]Event, error)
}
