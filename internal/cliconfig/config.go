package cliconfig

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/bft-labs/stageship/internal/domain"
)

// DefaultServiceURL is the default endpoint of the stream-ingestion service.
const DefaultServiceURL = "http://localhost:4567"

// Config holds CLI configuration for stageship.
type Config struct {
	Root       string
	Prefix     string
	StreamName string

	ServiceURL string
	AuthKey    string

	MaxRows      int
	RemoveOnSend bool
	Structured   bool

	PollInterval time.Duration
	HTTPTimeout  time.Duration

	LogLevel string
	Once     bool
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() Config {
	return Config{
		Root:         "out",
		Prefix:       domain.DefaultPrefix,
		ServiceURL:   DefaultServiceURL,
		MaxRows:      10,
		Structured:   true,
		PollInterval: 10 * time.Second,
		HTTPTimeout:  30 * time.Second,
		LogLevel:     "info",
	}
}

// Validate checks the settings every command shares.
func (c *Config) Validate() error {
	if c.Root == "" {
		return fmt.Errorf("root is required")
	}
	if c.Prefix == "" {
		c.Prefix = domain.DefaultPrefix
	}
	if c.MaxRows < 1 {
		return fmt.Errorf("max-rows must be at least 1, got %d", c.MaxRows)
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("poll interval must be positive")
	}

	// Ensure no trailing slash
	c.ServiceURL = strings.TrimRight(c.ServiceURL, "/")
	if c.ServiceURL == "" {
		c.ServiceURL = DefaultServiceURL
	}
	return nil
}

// ValidateDelivery additionally checks what the delivery commands need.
func (c *Config) ValidateDelivery() error {
	if err := c.Validate(); err != nil {
		return err
	}
	if c.StreamName == "" {
		return fmt.Errorf("stream is required")
	}
	if c.HTTPTimeout <= 0 {
		return fmt.Errorf("http timeout must be positive")
	}
	return nil
}

// MaskedAuthKey returns the auth key with all but its last four characters hidden.
func (c Config) MaskedAuthKey() string {
	if len(c.AuthKey) <= 4 {
		return strings.Repeat("*", len(c.AuthKey))
	}
	return strings.Repeat("*", len(c.AuthKey)-4) + c.AuthKey[len(c.AuthKey)-4:]
}

// configSetter applies configuration values while respecting flag precedence.
// It only applies values if the corresponding flag hasn't been explicitly set.
type configSetter struct {
	changed map[string]bool
}

func newConfigSetter(changed map[string]bool) *configSetter {
	return &configSetter{changed: changed}
}

func (s *configSetter) setString(flag, value string, dst *string) {
	if value == "" || s.changed[flag] {
		return
	}
	*dst = value
}

func (s *configSetter) setInt(flag string, value int, dst *int) {
	if value <= 0 || s.changed[flag] {
		return
	}
	*dst = value
}

func (s *configSetter) setDuration(flag, value string, dst *time.Duration) error {
	if value == "" || s.changed[flag] {
		return nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fmt.Errorf("parse %s: %w", flag, err)
	}
	*dst = d
	return nil
}

func (s *configSetter) setBool(flag string, value *bool, dst *bool) {
	if value == nil || s.changed[flag] {
		return
	}
	*dst = *value
}

// setIntFromString parses an environment value; non-positive values are ignored.
func (s *configSetter) setIntFromString(flag, value string, dst *int) error {
	if value == "" || s.changed[flag] {
		return nil
	}
	i, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("parse %s: %w", flag, err)
	}
	if i <= 0 {
		return nil
	}
	*dst = i
	return nil
}

// setBoolFromString accepts anything strconv.ParseBool does.
func (s *configSetter) setBoolFromString(flag, value string, dst *bool) error {
	if value == "" || s.changed[flag] {
		return nil
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		return fmt.Errorf("parse %s: %w", flag, err)
	}
	*dst = b
	return nil
}
