// Package uuid wraps github.com/google/uuid for identifier generation.
package uuid

import (
	"fmt"

	"github.com/google/uuid"
)

// NewOrdered returns a time-ordered (version 7) UUID string. Lexical order
// of the results follows creation order, which makes them usable as
// sortable storage keys.
func NewOrdered() (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("generating ordered id: %w", err)
	}
	return id.String(), nil
}
