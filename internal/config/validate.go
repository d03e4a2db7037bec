package config

import (
	"errors"
	"fmt"
	"maps"
	"net/url"
	"slices"
	"strings"
)

var knownStatuses = []string{"Submitted", "On Hold", "Running", "Aborting", "Aborted", "Failed", "Succeeded"}

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateEngine(); err != nil {
		return err
	}
	if err := c.validateAuth(); err != nil {
		return err
	}
	if err := c.validateDiscovery(); err != nil {
		return err
	}
	if err := c.validateDispatch(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validateEngine() error {
	if c.Engine.URL == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			defaultPath = "~/.config/falcon/config.toml"
		}
		return fmt.Errorf("engine.url is required. Set CROMWELL_URL env var or edit %s (create with 'falcon config init')", defaultPath)
	}
	parsed, err := url.Parse(c.Engine.URL)
	if err != nil {
		return fmt.Errorf("engine.url is invalid: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("engine.url must use http or https, got %q", parsed.Scheme)
	}
	if parsed.Host == "" {
		return errors.New("engine.url must include a host")
	}
	if c.Engine.RequestTimeout <= 0 {
		return errors.New("engine.request_timeout must be positive (seconds)")
	}
	if c.Engine.MaxRequestsPerSecond < 0 {
		return errors.New("engine.max_requests_per_second must not be negative")
	}
	return nil
}

func (c *Config) validateAuth() error {
	switch c.Engine.AuthMode {
	case AuthModeBasic:
		if (c.Engine.Username == "") != (c.Engine.Password == "") {
			return errors.New("engine.username and engine.password must be set together")
		}
	case AuthModeServiceAccount:
		if c.Engine.CollectionName == "" {
			return errors.New("engine.collection_name must be set when engine.auth_mode is service_account")
		}
		if c.Engine.ServiceAccountKey == "" {
			return errors.New("engine.service_account_key must be set when engine.auth_mode is service_account (or export CAAS_KEY)")
		}
	default:
		return fmt.Errorf("engine.auth_mode must be %q or %q, got %q", AuthModeBasic, AuthModeServiceAccount, c.Engine.AuthMode)
	}
	return nil
}

func (c *Config) validateDiscovery() error {
	if !slices.Contains(knownStatuses, c.Discovery.Status) {
		return fmt.Errorf("discovery.status %q is not a workflow status (one of %s)", c.Discovery.Status, strings.Join(knownStatuses, ", "))
	}
	for key := range c.Discovery.Labels {
		if key == "" {
			return errors.New("discovery.labels keys must not be empty")
		}
		if strings.Contains(key, ":") {
			return fmt.Errorf("discovery.labels key %q must not contain ':'", key)
		}
	}
	return ensurePositiveMap(map[string]int{
		"discovery.queue_update_interval": c.Discovery.QueueUpdateInterval,
	})
}

func (c *Config) validateDispatch() error {
	if err := ensurePositiveMap(map[string]int{
		"dispatch.igniters":                c.Dispatch.Igniters,
		"dispatch.workflow_start_interval": c.Dispatch.WorkflowStartInterval,
	}); err != nil {
		return err
	}
	if c.Dispatch.QueueMaxSize < 0 {
		return errors.New("dispatch.queue_max_size must not be negative (0 means unbounded)")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format must be console or json, got %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be debug, info, warn, or error, got %q", c.Logging.Level)
	}
	return nil
}

func ensurePositiveMap(values map[string]int) error {
	for _, key := range slices.Sorted(maps.Keys(values)) {
		if values[key] <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
