package vault

import "errors"

var (
	// ErrDestroyed indicates the vault has been destroyed and holds no credential.
	ErrDestroyed = errors.New("vault destroyed")
)
