package vault

import (
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var passcodeRE = regexp.MustCompile(`^\d{6}$`)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestVault(t *testing.T, opts ...Option) (*Vault, *fakeClock) {
	t.Helper()
	clock := &fakeClock{now: time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC)}
	v, err := New(append([]Option{WithClock(clock.Now)}, opts...)...)
	require.NoError(t, err)
	t.Cleanup(v.Destroy)
	return v, clock
}

func TestNewIssuesStartupCredential(t *testing.T) {
	var rotations []Rotation
	v, clock := newTestVault(t, WithOnRotate(func(r Rotation) {
		rotations = append(rotations, r)
	}))

	code, err := v.CurrentPasscode()
	require.NoError(t, err)
	assert.Regexp(t, passcodeRE, code)
	assert.True(t, v.Matches(code))
	assert.Equal(t, clock.Now(), v.IssuedAt())

	require.Len(t, rotations, 1)
	assert.Equal(t, ReasonStartup, rotations[0].Reason)
	assert.Equal(t, clock.Now(), rotations[0].IssuedAt)
}

func TestMatches(t *testing.T) {
	v, _ := newTestVault(t)
	code, err := v.CurrentPasscode()
	require.NoError(t, err)

	assert.True(t, v.Matches(code))
	assert.False(t, v.Matches(""))
	assert.False(t, v.Matches(code+"0"))
	assert.False(t, v.Matches(code[:5]))
}

func TestRotate(t *testing.T) {
	var reasons []string
	v, clock := newTestVault(t)
	v.OnRotate(func(r Rotation) { reasons = append(reasons, r.Reason) })

	old, err := v.CurrentPasscode()
	require.NoError(t, err)
	clock.Advance(31 * time.Minute)
	require.NoError(t, v.Rotate(ReasonExpired))
	cur, err := v.CurrentPasscode()
	require.NoError(t, err)

	assert.False(t, v.Matches(old), "old passcode must be invalid after rotation")
	assert.True(t, v.Matches(cur))
	assert.Equal(t, clock.Now(), v.IssuedAt())
	assert.Equal(t, []string{ReasonExpired}, reasons)
}

func TestRotateAlwaysChangesPasscode(t *testing.T) {
	v, _ := newTestVault(t)
	var hooks int
	v.OnRotate(func(Rotation) { hooks++ })
	v.OnRotate(func(Rotation) { hooks++ })

	prev, err := v.CurrentPasscode()
	require.NoError(t, err)
	for i := 0; i < 200; i++ {
		require.NoError(t, v.Rotate(ReasonFailures))
		cur, err := v.CurrentPasscode()
		require.NoError(t, err)
		require.NotEqual(t, prev, cur)
		prev = cur
	}
	assert.Equal(t, 400, hooks)
}

func TestRotateDoesNotResetFailures(t *testing.T) {
	v, _ := newTestVault(t)
	assert.Equal(t, 1, v.RecordFailure())
	assert.Equal(t, 2, v.RecordFailure())
	require.NoError(t, v.Rotate(ReasonFailures))
	assert.Equal(t, 2, v.Failures())
}

func TestRecordFailureConcurrent(t *testing.T) {
	v, _ := newTestVault(t)
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v.RecordFailure()
			v.Matches("000000")
		}()
	}
	wg.Wait()
	assert.Equal(t, 50, v.Failures())
}

func TestDestroy(t *testing.T) {
	v, _ := newTestVault(t)
	code, err := v.CurrentPasscode()
	require.NoError(t, err)

	v.Destroy()

	assert.False(t, v.Matches(code))
	_, err = v.CurrentPasscode()
	assert.ErrorIs(t, err, ErrDestroyed)
	assert.ErrorIs(t, v.Rotate(ReasonExpired), ErrDestroyed)
}
