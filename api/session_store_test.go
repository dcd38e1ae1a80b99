package api

import (
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyshare/fyshare/internal/audit"
	"github.com/fyshare/fyshare/storage/memory"
)

var epoch = time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)

// sessionStoreTests runs the common suite against any SessionStore implementation.
func sessionStoreTests(t *testing.T, store SessionStore) {
	t.Helper()

	t.Run("AddAndGet", func(t *testing.T) {
		store.Add("tok-1", "10.0.0.1", epoch.Add(time.Minute))
		got, ok := store.Get("tok-1", epoch)
		require.True(t, ok)
		assert.Equal(t, Session{Token: "tok-1", Address: "10.0.0.1", ExpiresAt: epoch.Add(time.Minute)}, got)
	})

	t.Run("GetMissing", func(t *testing.T) {
		_, ok := store.Get("no-such-token", epoch)
		assert.False(t, ok)
	})

	t.Run("GetAtExpiry", func(t *testing.T) {
		store.Add("tok-exp", "10.0.0.1", epoch.Add(time.Minute))
		_, ok := store.Get("tok-exp", epoch.Add(time.Minute-time.Nanosecond))
		assert.True(t, ok)
		_, ok = store.Get("tok-exp", epoch.Add(time.Minute))
		assert.False(t, ok, "a session is invalid at its expiry instant")
		store.Remove("tok-exp")
	})

	t.Run("Remove", func(t *testing.T) {
		store.Add("tok-del", "10.0.0.2", epoch.Add(time.Hour))
		store.Remove("tok-del")
		_, ok := store.Get("tok-del", epoch)
		assert.False(t, ok)
	})

	t.Run("RemoveMissing", func(t *testing.T) {
		assert.NotPanics(t, func() { store.Remove("never-existed") })
	})

	t.Run("RemoveByAddress", func(t *testing.T) {
		store.Add("tok-a1", "10.0.0.3", epoch.Add(time.Hour))
		store.Add("tok-a2", "10.0.0.3", epoch.Add(time.Hour))
		store.Add("tok-b", "10.0.0.4", epoch.Add(time.Hour))
		assert.Equal(t, 2, store.RemoveByAddress("10.0.0.3"))
		_, ok := store.Get("tok-b", epoch)
		assert.True(t, ok)
		assert.Zero(t, store.RemoveByAddress("10.0.0.3"))
		store.Remove("tok-b")
	})
}

func TestMemorySessionStore(t *testing.T) {
	sessionStoreTests(t, NewMemorySessionStore(nil))
}

func TestMemorySessionStoreCleanExpired(t *testing.T) {
	journal := memory.NewJournal()
	store := NewMemorySessionStore(audit.New(slog.New(slog.DiscardHandler), journal))

	store.Add("short", "10.0.0.1", epoch.Add(time.Minute))
	store.Add("edge", "10.0.0.2", epoch.Add(2*time.Minute))
	store.Add("long", "10.0.0.3", epoch.Add(time.Hour))
	require.Equal(t, 3, store.Len())

	store.CleanExpired(epoch.Add(2 * time.Minute))
	assert.Equal(t, 1, store.Len())
	_, ok := store.Get("long", epoch.Add(2*time.Minute))
	assert.True(t, ok)

	events, err := journal.List(0)
	require.NoError(t, err)
	require.Len(t, events, 2)
	addrs := []string{events[0].Address, events[1].Address}
	assert.ElementsMatch(t, []string{"10.0.0.1", "10.0.0.2"}, addrs)
	for _, evt := range events {
		assert.Equal(t, string(audit.SessionExpired), evt.Type)
		assert.Len(t, evt.Attrs["token_id"], 16)
		assert.NotContains(t, evt.Attrs["token_id"], "short")
	}
}

func TestMemorySessionStoreConcurrent(t *testing.T) {
	store := NewMemorySessionStore(nil)
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			token := string(rune('a' + i))
			store.Add(token, "10.0.0.1", epoch.Add(time.Minute))
			store.Get(token, epoch)
			store.CleanExpired(epoch)
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 20, store.Len())
}
