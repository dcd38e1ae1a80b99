package audit

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/fyshare/fyshare/storage"
	"github.com/fyshare/fyshare/storage/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingJournal struct{}

func (failingJournal) Append(storage.Event) error        { return errors.New("disk full") }
func (failingJournal) List(int) ([]storage.Event, error) { return nil, nil }

func newBufferLogger(buf *bytes.Buffer) *slog.Logger {
	return slog.New(slog.NewTextHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

func TestLoggerWritesLogAndJournal(t *testing.T) {
	var buf bytes.Buffer
	journal := memory.NewJournal()
	al := New(newBufferLogger(&buf), journal)

	al.Warn(context.Background(), AddressBlocked, "10.0.0.9", slog.Int("attempts", 10))

	out := buf.String()
	assert.Contains(t, out, "component=audit")
	assert.Contains(t, out, "event=address_blocked")
	assert.Contains(t, out, "remote_addr=10.0.0.9")
	assert.Contains(t, out, "attempts=10")
	assert.Contains(t, out, "level=WARN")

	events, err := journal.List(0)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "address_blocked", events[0].Type)
	assert.Equal(t, "WARN", events[0].Level)
	assert.Equal(t, "10.0.0.9", events[0].Address)
	assert.Equal(t, "10", events[0].Attrs["attempts"])
	assert.False(t, events[0].Time.IsZero())
}

func TestLoggerOmitsEmptyAddress(t *testing.T) {
	var buf bytes.Buffer
	al := New(newBufferLogger(&buf), nil)
	al.Info(context.Background(), CredentialRotated, "", slog.String("reason", "expired"))
	assert.NotContains(t, buf.String(), "remote_addr")
	assert.Contains(t, buf.String(), "reason=expired")
}

func TestLoggerJournalFailureIsLogged(t *testing.T) {
	var buf bytes.Buffer
	al := New(newBufferLogger(&buf), failingJournal{})
	al.Info(context.Background(), Logout, "10.0.0.1")
	assert.Contains(t, buf.String(), "journal append failed")
	assert.Contains(t, buf.String(), "disk full")
}

func TestNilLogger(t *testing.T) {
	var al *Logger
	assert.NotPanics(t, func() {
		al.Info(context.Background(), Logout, "10.0.0.1")
	})
}
