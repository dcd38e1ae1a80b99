package memory

import (
	"testing"
	"time"

	"github.com/fyshare/fyshare/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJournal(t *testing.T) {
	j := NewJournal()

	t.Run("EmptyList", func(t *testing.T) {
		events, err := j.List(0)
		require.NoError(t, err)
		assert.Empty(t, events)
	})

	t.Run("AppendAssignsID", func(t *testing.T) {
		require.NoError(t, j.Append(storage.Event{Type: "login_failure", Address: "10.0.0.1", Time: time.Now()}))
		require.NoError(t, j.Append(storage.Event{ID: "fixed", Type: "login_success"}))
		require.NoError(t, j.Append(storage.Event{Type: "logout"}))
		assert.Equal(t, 3, j.Len())

		events, err := j.List(0)
		require.NoError(t, err)
		require.Len(t, events, 3)
		assert.NotEmpty(t, events[2].ID)
		assert.Equal(t, "fixed", events[1].ID)
	})

	t.Run("NewestFirst", func(t *testing.T) {
		events, err := j.List(0)
		require.NoError(t, err)
		assert.Equal(t, "logout", events[0].Type)
		assert.Equal(t, "login_failure", events[2].Type)
	})

	t.Run("Limit", func(t *testing.T) {
		events, err := j.List(2)
		require.NoError(t, err)
		require.Len(t, events, 2)
		assert.Equal(t, "logout", events[0].Type)
		assert.Equal(t, "login_success", events[1].Type)
	})

	t.Run("AttrsAreCopied", func(t *testing.T) {
		attrs := map[string]string{"reason": "startup"}
		require.NoError(t, j.Append(storage.Event{Type: "credential_rotated", Attrs: attrs}))
		attrs["reason"] = "mutated"

		events, err := j.List(1)
		require.NoError(t, err)
		assert.Equal(t, "startup", events[0].Attrs["reason"])

		events[0].Attrs["reason"] = "changed"
		again, err := j.List(1)
		require.NoError(t, err)
		assert.Equal(t, "startup", again[0].Attrs["reason"])
	})
}
