package relay

import (
	"fmt"
	"strings"
	"time"
)

// DefaultListenTimeout is the confirmation-wait window in relay time units.
const DefaultListenTimeout = 100

// Config holds relay connection and proof-wait settings. Both endpoints are
// required external configuration; construction fails without them.
type Config struct {
	// LiveEndpoint is the WebSocket URL answering confirmation-wait requests
	// for recent messages.
	LiveEndpoint string `yaml:"live_endpoint"`
	// ArchiveEndpoint is the WebSocket URL answering point-in-time proof
	// queries, used by the polling fallback.
	ArchiveEndpoint string `yaml:"archive_endpoint"`
	// ListenTimeout is the confirmation-wait window, expressed in the relay's
	// own time unit.
	ListenTimeout uint64 `yaml:"listen_timeout"`
	// PollInterval is the sleep between fallback proof queries.
	PollInterval time.Duration `yaml:"poll_interval"`
	// MaxPollWait bounds the fallback polling loop. Zero disables the bound
	// and polls until the context is done.
	MaxPollWait time.Duration `yaml:"max_poll_wait"`
}

// DefaultConfig returns production defaults. Endpoints must still be set.
func DefaultConfig() Config {
	return Config{
		ListenTimeout: DefaultListenTimeout,
		PollInterval:  time.Second,
		MaxPollWait:   5 * time.Minute,
	}
}

// Validate checks config invariants.
func (c Config) Validate() error {
	if strings.TrimSpace(c.LiveEndpoint) == "" {
		return fmt.Errorf("live_endpoint is required")
	}
	if strings.TrimSpace(c.ArchiveEndpoint) == "" {
		return fmt.Errorf("archive_endpoint is required")
	}
	if c.ListenTimeout == 0 {
		return fmt.Errorf("listen_timeout must be positive")
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("poll_interval must be positive")
	}
	if c.MaxPollWait < 0 {
		return fmt.Errorf("max_poll_wait cannot be negative")
	}
	return nil
}
