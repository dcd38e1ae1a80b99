package config

import (
	"errors"
	"fmt"
	"net/netip"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ErrInvalid is wrapped by every validation failure.
var ErrInvalid = errors.New("invalid configuration")

// Config is the complete server configuration.
type Config struct {
	RootDirectory  string `yaml:"root_directory"`
	Port           int    `yaml:"port"`
	MaxUsers       int    `yaml:"max_users"`
	IdleTimeoutMin int    `yaml:"idle_timeout_minutes"`
	// RefreshSeconds is the maintenance tick of the server loop.
	RefreshSeconds      float64 `yaml:"refresh_time_seconds"`
	MaxAttemptsPerIP    int     `yaml:"max_attempts_per_ip"`
	MaxTotalAttempts    int     `yaml:"max_total_attempts_per_ip"`
	CooldownSeconds     int     `yaml:"cooldown_seconds"`
	BlockTimeMin        int     `yaml:"block_time_minutes"`
	CleanupTimeoutMin   int     `yaml:"cleanup_timeout_minutes"`
	CacheSeconds        float64 `yaml:"default_cache_time_out_seconds"`
	SessionDurationsMin []int   `yaml:"session_durations_minutes"`

	// RotateAfterFailures rotates the passcode every time the server-wide
	// failed login count reaches a multiple of this value. 0 means
	// MaxUsers*10.
	RotateAfterFailures int `yaml:"rotate_after_failures"`
	// ShutdownAfterFailures stops the server once the server-wide failed
	// login count exceeds this value. 0 means MaxUsers*100.
	ShutdownAfterFailures int `yaml:"shutdown_after_failures"`

	SingleSessionPerAddress bool     `yaml:"single_session_per_address"`
	TrustedProxies          []string `yaml:"trusted_proxies"`
	StaticDirectory         string   `yaml:"static_directory"`
	JournalPath             string   `yaml:"journal_path"`

	Logging LoggingConfig `yaml:"logging"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	File   string `yaml:"file"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		RootDirectory:       "~",
		Port:                0,
		MaxUsers:            5,
		IdleTimeoutMin:      10,
		RefreshSeconds:      1,
		MaxAttemptsPerIP:    3,
		MaxTotalAttempts:    10,
		CooldownSeconds:     30,
		BlockTimeMin:        10,
		CleanupTimeoutMin:   30,
		CacheSeconds:        3600,
		SessionDurationsMin: []int{5, 15, 30, 60, 120},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load reads the configuration at path on top of the defaults, applies
// environment overrides and validates the result. A missing file is not an
// error when path is empty.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		if err := yaml.Unmarshal([]byte(expandEnvVars(string(data))), cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.normalize(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// expandEnvVars replaces ${VAR_NAME} patterns with the corresponding
// environment variable values. Unset variables expand to "".
func expandEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		return os.Getenv(envVarPattern.FindStringSubmatch(match)[1])
	})
}

func applyEnvOverrides(cfg *Config) {
	if root := os.Getenv("FYSHARE_ROOT"); root != "" {
		cfg.RootDirectory = root
	}
	if port := os.Getenv("FYSHARE_PORT"); port != "" {
		if val, err := strconv.Atoi(port); err == nil {
			cfg.Port = val
		}
	}
	if level := os.Getenv("FYSHARE_LOG_LEVEL"); level != "" {
		cfg.Logging.Level = level
	}
}

func (c *Config) normalize() error {
	var err error
	if c.RootDirectory, err = ExpandPath(c.RootDirectory); err != nil {
		return err
	}
	if c.StaticDirectory, err = ExpandPath(c.StaticDirectory); err != nil {
		return err
	}
	if c.JournalPath, err = ExpandPath(c.JournalPath); err != nil {
		return err
	}
	if c.Logging.File, err = ExpandPath(c.Logging.File); err != nil {
		return err
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	slices.Sort(c.SessionDurationsMin)
	c.SessionDurationsMin = slices.Compact(c.SessionDurationsMin)
	return nil
}

// ExpandPath trims p and expands a leading "~" to the home directory.
// The empty string is returned unchanged.
func ExpandPath(p string) (string, error) {
	p = strings.TrimSpace(p)
	if p != "~" && !strings.HasPrefix(p, "~/") {
		return p, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("expanding %q: %w", p, err)
	}
	return filepath.Join(home, strings.TrimPrefix(p, "~")), nil
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalid, fmt.Sprintf(format, args...))
}

// Validate checks every numeric range and cross-field constraint.
// Returns an error describing the first validation failure encountered.
func (c *Config) Validate() error {
	if c.RootDirectory == "" {
		return invalid("'root_directory' is required")
	}
	if c.Port < 0 || c.Port > 65535 {
		return invalid("'port' must be 0 (random) or between 1 and 65535")
	}
	if c.MaxUsers < 1 || c.MaxUsers > 100 {
		return invalid("'max_users' must be a natural number from 1 to 100")
	}
	if c.IdleTimeoutMin < 1 || c.IdleTimeoutMin > 1440 {
		return invalid("'idle_timeout_minutes' must be between 1 and 1440 minutes")
	}
	if c.RefreshSeconds <= 0 || c.RefreshSeconds > 5 {
		return invalid("'refresh_time_seconds' must be between 0 and 5 seconds (excluding 0)")
	}
	if c.MaxAttemptsPerIP < 1 || c.MaxAttemptsPerIP >= c.MaxTotalAttempts {
		return invalid("'max_attempts_per_ip' must be between 1 and 'max_total_attempts_per_ip'")
	}
	if c.MaxTotalAttempts > 50 {
		return invalid("'max_total_attempts_per_ip' can't be more than 50")
	}
	if c.CooldownSeconds < 0 || c.CooldownSeconds >= c.BlockTimeMin*60 {
		return invalid("'cooldown_seconds' must be between 0 and 'block_time_minutes'")
	}
	if c.BlockTimeMin > c.CleanupTimeoutMin {
		return invalid("'block_time_minutes' can't be more than 'cleanup_timeout_minutes'")
	}
	if c.CleanupTimeoutMin < 10 || c.CleanupTimeoutMin > 120 {
		return invalid("'cleanup_timeout_minutes' must be between 10 and 120 minutes")
	}
	if c.CacheSeconds < 0 || c.CacheSeconds > 86400 {
		return invalid("'default_cache_time_out_seconds' must be between 0 and 86400")
	}
	if len(c.SessionDurationsMin) == 0 {
		return invalid("'session_durations_minutes' needs at least one entry")
	}
	for _, m := range c.SessionDurationsMin {
		if m < 1 || m > 1440 {
			return invalid("'session_durations_minutes' entries must be between 1 and 1440")
		}
	}
	if c.RotateAfterFailures < 0 || c.ShutdownAfterFailures < 0 {
		return invalid("failure thresholds can't be negative")
	}
	if c.ShutdownAfter() <= c.RotateAfter() {
		return invalid("'shutdown_after_failures' must be greater than 'rotate_after_failures'")
	}
	if _, err := c.TrustedPrefixes(); err != nil {
		return err
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return invalid("invalid log level: %s", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "text", "json":
	default:
		return invalid("invalid log format: %s", c.Logging.Format)
	}
	return nil
}

func (c *Config) IdleTimeout() time.Duration {
	return time.Duration(c.IdleTimeoutMin) * time.Minute
}

func (c *Config) RefreshInterval() time.Duration {
	return time.Duration(c.RefreshSeconds * float64(time.Second))
}

func (c *Config) Cooldown() time.Duration {
	return time.Duration(c.CooldownSeconds) * time.Second
}

func (c *Config) BlockTime() time.Duration {
	return time.Duration(c.BlockTimeMin) * time.Minute
}

func (c *Config) CleanupTimeout() time.Duration {
	return time.Duration(c.CleanupTimeoutMin) * time.Minute
}

func (c *Config) CacheDuration() time.Duration {
	return time.Duration(c.CacheSeconds * float64(time.Second))
}

// SessionDurations returns the allowed session lengths, ascending.
func (c *Config) SessionDurations() []time.Duration {
	out := make([]time.Duration, len(c.SessionDurationsMin))
	for i, m := range c.SessionDurationsMin {
		out[i] = time.Duration(m) * time.Minute
	}
	return out
}

// RotateAfter returns the effective failed-login rotation multiple.
func (c *Config) RotateAfter() int {
	if c.RotateAfterFailures > 0 {
		return c.RotateAfterFailures
	}
	return c.MaxUsers * 10
}

// ShutdownAfter returns the effective emergency shutdown threshold.
func (c *Config) ShutdownAfter() int {
	if c.ShutdownAfterFailures > 0 {
		return c.ShutdownAfterFailures
	}
	return c.MaxUsers * 100
}

// TrustedPrefixes parses TrustedProxies. Bare addresses are accepted as
// single-host prefixes.
func (c *Config) TrustedPrefixes() ([]netip.Prefix, error) {
	var out []netip.Prefix
	for _, raw := range c.TrustedProxies {
		raw = strings.TrimSpace(raw)
		if p, err := netip.ParsePrefix(raw); err == nil {
			out = append(out, p.Masked())
			continue
		}
		addr, err := netip.ParseAddr(raw)
		if err != nil {
			return nil, invalid("invalid trusted proxy %q", raw)
		}
		out = append(out, netip.PrefixFrom(addr, addr.BitLen()))
	}
	return out, nil
}

// WriteDefault writes the default configuration to path. An existing file
// is only replaced when force is set.
func WriteDefault(path string, force bool) error {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("%s already exists (use --force to overwrite)", path)
		}
	}
	data, err := yaml.Marshal(Default())
	if err != nil {
		return fmt.Errorf("encoding default config: %w", err)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}
