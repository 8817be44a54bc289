package stageship

import (
	"fmt"
	"strings"
	"time"

	"github.com/bft-labs/stageship/internal/domain"
)

// Default configuration values.
const (
	DefaultRoot         = "out"
	DefaultPrefix       = domain.DefaultPrefix
	DefaultMaxRows      = 10
	DefaultPollInterval = 10 * time.Second
	DefaultHTTPTimeout  = 30 * time.Second
)

// Config configures a Sender.
type Config struct {
	// Root is the directory holding staging/, pending/ and archived/.
	// Default: "out"
	Root string

	// Prefix starts every batch file name. Default: "out"
	Prefix string

	// StreamName is the destination stream. Required.
	StreamName string

	// ServiceURL is the base URL of the ingestion service. Required unless
	// a sink is injected with WithSink.
	ServiceURL string

	// AuthKey is sent as a bearer token.
	AuthKey string

	// MaxRows is the row count at which a staging batch is promoted.
	// Default: 10
	MaxRows int

	// RemoveOnSend deletes delivered batches instead of archiving them.
	RemoveOnSend bool

	// Structured ships only the complete records of each batch.
	// Use NewConfig to get it enabled; the zero value ships raw payloads.
	Structured bool

	// PollInterval is the pause between delivery cycles. Default: 10s
	PollInterval time.Duration

	// HTTPTimeout bounds each request to the ingestion service. Default: 30s
	HTTPTimeout time.Duration
}

// NewConfig returns a Config for stream with every default applied,
// including structured payloads.
func NewConfig(stream string) Config {
	cfg := Config{StreamName: stream, Structured: true}
	cfg.SetDefaults()
	return cfg
}

// SetDefaults fills zero-valued fields with their defaults.
func (c *Config) SetDefaults() {
	if c.Root == "" {
		c.Root = DefaultRoot
	}
	if c.Prefix == "" {
		c.Prefix = DefaultPrefix
	}
	if c.MaxRows == 0 {
		c.MaxRows = DefaultMaxRows
	}
	if c.PollInterval == 0 {
		c.PollInterval = DefaultPollInterval
	}
	if c.HTTPTimeout == 0 {
		c.HTTPTimeout = DefaultHTTPTimeout
	}
	c.ServiceURL = strings.TrimRight(c.ServiceURL, "/")
}

// Validate reports the first invalid field, wrapped in ErrInvalidConfig.
func (c *Config) Validate() error {
	switch {
	case c.StreamName == "":
		return fmt.Errorf("%w: stream name is required", ErrInvalidConfig)
	case c.MaxRows < 1:
		return fmt.Errorf("%w: max rows must be at least 1, got %d", ErrInvalidConfig, c.MaxRows)
	case c.PollInterval < 0:
		return fmt.Errorf("%w: poll interval must be positive", ErrInvalidConfig)
	case c.HTTPTimeout < 0:
		return fmt.Errorf("%w: http timeout must be positive", ErrInvalidConfig)
	case strings.ContainsAny(c.Prefix, `/\`):
		return fmt.Errorf("%w: prefix %q must not contain path separators", ErrInvalidConfig, c.Prefix)
	}
	return nil
}
