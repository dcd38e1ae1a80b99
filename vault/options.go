package vault

import (
	"time"

	"github.com/fyshare/fyshare/internal/audit"
)

// Option configures a Vault.
type Option func(*Vault)

// WithClock sets the time source used for issue timestamps.
// Default: time.Now.
func WithClock(now func() time.Time) Option {
	return func(v *Vault) {
		v.now = now
	}
}

// WithAudit sets the audit logger that receives credential_rotated events.
func WithAudit(al *audit.Logger) Option {
	return func(v *Vault) {
		v.audit = al
	}
}

// WithOnRotate registers a hook invoked after every rotation, including the
// initial credential issued by New.
func WithOnRotate(fn func(Rotation)) Option {
	return func(v *Vault) {
		v.onRotate = append(v.onRotate, fn)
	}
}
