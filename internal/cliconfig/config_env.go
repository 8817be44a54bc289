package cliconfig

import "os"

// EnvPrefix is prepended to every environment variable the CLI reads.
const EnvPrefix = "STAGESHIP_"

// ApplyEnvConfig applies configuration from environment variables (STAGESHIP_*).
// It respects flags that have been explicitly set (changed map).
// Returns error if any environment variable has an invalid format.
func ApplyEnvConfig(cfg *Config, changed map[string]bool) error {
	s := newConfigSetter(changed)
	env := func(name string) string { return os.Getenv(EnvPrefix + name) }

	s.setString("root", env("ROOT"), &cfg.Root)
	s.setString("prefix", env("PREFIX"), &cfg.Prefix)
	s.setString("stream", env("STREAM"), &cfg.StreamName)
	s.setString("service-url", env("SERVICE_URL"), &cfg.ServiceURL)
	s.setString("auth-key", env("AUTH_KEY"), &cfg.AuthKey)
	s.setString("log-level", env("LOG_LEVEL"), &cfg.LogLevel)

	if err := s.setDuration("poll", env("POLL_INTERVAL"), &cfg.PollInterval); err != nil {
		return err
	}
	if err := s.setDuration("timeout", env("HTTP_TIMEOUT"), &cfg.HTTPTimeout); err != nil {
		return err
	}

	if err := s.setIntFromString("max-rows", env("MAX_ROWS"), &cfg.MaxRows); err != nil {
		return err
	}

	if err := s.setBoolFromString("remove-on-send", env("REMOVE_ON_SEND"), &cfg.RemoveOnSend); err != nil {
		return err
	}
	if err := s.setBoolFromString("structured", env("STRUCTURED"), &cfg.Structured); err != nil {
		return err
	}

	return nil
}
