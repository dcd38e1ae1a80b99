// Package vault holds the single shared one-time passcode of a running
// server. The passcode is kept in a memguard Enclave and only decrypted
// transiently for comparison or display.
package vault

import (
	"context"
	"crypto/subtle"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/awnumar/memguard"
	"github.com/fyshare/fyshare/internal/audit"
	"github.com/fyshare/fyshare/internal/util"
)

// PasscodeLength is the number of decimal digits in a passcode.
const PasscodeLength = 6

// Rotation reasons used by the server.
const (
	ReasonStartup  = "startup"
	ReasonExpired  = "expired"
	ReasonFailures = "too many failed attempts"
)

// Rotation describes a completed credential rotation.
type Rotation struct {
	Reason   string
	IssuedAt time.Time
}

// Vault owns the current credential and the server-wide failed login
// counter. All methods are safe for concurrent use.
type Vault struct {
	mu        sync.Mutex
	passcode  *memguard.Enclave
	issuedAt  time.Time
	failures  int
	destroyed bool

	now      func() time.Time
	audit    *audit.Logger
	onRotate []func(Rotation)
}

// New creates a Vault and issues its first credential with reason "startup".
func New(opts ...Option) (*Vault, error) {
	v := &Vault{now: time.Now}
	for _, opt := range opts {
		opt(v)
	}
	if err := v.Rotate(ReasonStartup); err != nil {
		return nil, err
	}
	return v, nil
}

// randomPasscode draws the digits straight into a byte slice so the
// plaintext never exists as an immutable string.
func randomPasscode() ([]byte, error) {
	code := make([]byte, PasscodeLength)
	for i := range code {
		n, err := util.RandomIntn(10)
		if err != nil {
			util.WipeBytes(code)
			return nil, err
		}
		code[i] = byte('0' + n)
	}
	return code, nil
}

// Rotate replaces the current credential with a fresh one that differs
// from the previous passcode. Existing sessions are unaffected.
func (v *Vault) Rotate(reason string) error {
	v.mu.Lock()
	if v.destroyed {
		v.mu.Unlock()
		return ErrDestroyed
	}
	var code []byte
	for {
		var err error
		if code, err = randomPasscode(); err != nil {
			v.mu.Unlock()
			return fmt.Errorf("generating passcode: %w", err)
		}
		if !v.isCurrent(code) {
			break
		}
		util.WipeBytes(code)
	}
	// NewEnclave wipes code.
	v.passcode = memguard.NewEnclave(code)
	v.issuedAt = v.now()
	rot := Rotation{Reason: reason, IssuedAt: v.issuedAt}
	hooks := slices.Clone(v.onRotate)
	v.mu.Unlock()

	v.audit.Info(context.Background(), audit.CredentialRotated, "", slog.String("reason", reason))
	for _, fn := range hooks {
		fn(rot)
	}
	return nil
}

// isCurrent reports whether code equals the current passcode. v.mu must
// be held.
func (v *Vault) isCurrent(code []byte) bool {
	if v.passcode == nil {
		return false
	}
	buf, err := v.passcode.Open()
	if err != nil {
		return false
	}
	defer buf.Destroy()
	return subtle.ConstantTimeCompare(buf.Bytes(), code) == 1
}

// OnRotate registers a hook invoked after every subsequent rotation.
func (v *Vault) OnRotate(fn func(Rotation)) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.onRotate = append(v.onRotate, fn)
}

// CurrentPasscode decrypts and returns the current passcode for display.
func (v *Vault) CurrentPasscode() (string, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.destroyed {
		return "", ErrDestroyed
	}
	buf, err := v.passcode.Open()
	if err != nil {
		return "", fmt.Errorf("opening passcode enclave: %w", err)
	}
	defer buf.Destroy()
	return string(buf.Bytes()), nil
}

// Matches reports whether candidate equals the current passcode, in
// constant time.
func (v *Vault) Matches(candidate string) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.destroyed {
		return false
	}
	buf, err := v.passcode.Open()
	if err != nil {
		return false
	}
	defer buf.Destroy()
	return subtle.ConstantTimeCompare(buf.Bytes(), []byte(candidate)) == 1
}

// IssuedAt returns when the current credential was issued.
func (v *Vault) IssuedAt() time.Time {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.issuedAt
}

// RecordFailure increments the server-wide failed login counter and
// returns the new total.
func (v *Vault) RecordFailure() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.failures++
	return v.failures
}

// Failures returns the server-wide failed login count.
func (v *Vault) Failures() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.failures
}

// Destroy drops the credential. Every later Matches fails and
// CurrentPasscode and Rotate return ErrDestroyed.
func (v *Vault) Destroy() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.passcode = nil
	v.destroyed = true
}
