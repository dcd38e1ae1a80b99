package api

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/fyshare/fyshare/internal/audit"
)

const (
	defaultLoginFailureWindow    = 1 * time.Minute
	defaultLoginFailureThreshold = 50
)

// metricsCollector tracks a sliding window of failed logins across all
// addresses and raises a login_failure_spike event when it fills up.
type metricsCollector struct {
	mu sync.Mutex

	loginFailures  []time.Time
	loginWindow    time.Duration
	loginThreshold int

	audit *audit.Logger
}

func newMetricsCollector(al *audit.Logger) *metricsCollector {
	return &metricsCollector{
		loginWindow:    defaultLoginFailureWindow,
		loginThreshold: defaultLoginFailureThreshold,
		audit:          al,
	}
}

func (m *metricsCollector) recordLoginFailure(now time.Time) {
	if m == nil {
		return
	}
	m.mu.Lock()
	m.loginFailures = append(m.loginFailures, now)
	m.loginFailures = trimWindow(m.loginFailures, now, m.loginWindow)
	count := len(m.loginFailures)
	spike := count >= m.loginThreshold
	if spike {
		// Reset to avoid repeated alerts within the same spike.
		m.loginFailures = m.loginFailures[:0]
	}
	m.mu.Unlock()

	if spike {
		m.audit.Warn(context.Background(), audit.LoginFailureSpike, "",
			slog.Int("count", count),
			slog.Int("threshold", m.loginThreshold),
			slog.Duration("window", m.loginWindow),
		)
	}
}

// trimWindow removes entries older than (now - window) from the sorted slice.
func trimWindow(times []time.Time, now time.Time, window time.Duration) []time.Time {
	cutoff := now.Add(-window)
	start := 0
	for start < len(times) && times[start].Before(cutoff) {
		start++
	}
	return times[start:]
}
