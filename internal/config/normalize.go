package config

import (
	"fmt"
	"os"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

func (c *Config) normalize() error {
	if err := c.normalizeEngine(); err != nil {
		return err
	}
	c.normalizeDiscovery()
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizeEngine() error {
	c.Engine.URL = strings.TrimSpace(c.Engine.URL)
	if c.Engine.URL == "" {
		if value, ok := os.LookupEnv("CROMWELL_URL"); ok {
			c.Engine.URL = strings.TrimSpace(value)
		}
	}
	c.Engine.URL = strings.TrimRight(c.Engine.URL, "/")

	c.Engine.AuthMode = strings.ToLower(strings.TrimSpace(c.Engine.AuthMode))
	switch c.Engine.AuthMode {
	case "":
		c.Engine.AuthMode = defaultAuthMode
	case "caas", "service-account", "serviceaccount":
		c.Engine.AuthMode = AuthModeServiceAccount
	}

	if c.Engine.Username == "" {
		if value, ok := os.LookupEnv("CROMWELL_USER"); ok {
			c.Engine.Username = strings.TrimSpace(value)
		}
	}
	if c.Engine.Password == "" {
		if value, ok := os.LookupEnv("CROMWELL_PASSWORD"); ok {
			c.Engine.Password = value
		}
	}
	c.Engine.Username = strings.TrimSpace(c.Engine.Username)
	c.Engine.CollectionName = strings.TrimSpace(c.Engine.CollectionName)

	c.Engine.ServiceAccountKey = strings.TrimSpace(c.Engine.ServiceAccountKey)
	if c.Engine.ServiceAccountKey == "" {
		if value, ok := os.LookupEnv("caas_key"); ok && strings.TrimSpace(value) != "" {
			c.Engine.ServiceAccountKey = strings.TrimSpace(value)
		} else if value, ok := os.LookupEnv("CAAS_KEY"); ok {
			c.Engine.ServiceAccountKey = strings.TrimSpace(value)
		}
	}
	if c.Engine.ServiceAccountKey != "" && !isInlineKey(c.Engine.ServiceAccountKey) {
		expanded, err := expandPath(c.Engine.ServiceAccountKey)
		if err != nil {
			return fmt.Errorf("engine.service_account_key: %w", err)
		}
		c.Engine.ServiceAccountKey = expanded
	}
	return nil
}

func (c *Config) normalizeDiscovery() {
	c.Discovery.Status = CanonicalStatus(c.Discovery.Status)
	if c.Discovery.Status == "" {
		c.Discovery.Status = defaultDiscoveryStatus
	}
	if len(c.Discovery.Labels) == 0 {
		c.Discovery.Labels = nil
		return
	}
	labels := make(map[string]string, len(c.Discovery.Labels))
	for key, value := range c.Discovery.Labels {
		labels[strings.TrimSpace(key)] = strings.TrimSpace(value)
	}
	c.Discovery.Labels = labels
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	if c.Logging.RetentionDays < 0 {
		c.Logging.RetentionDays = 0
	}
}

// CanonicalStatus returns the Cromwell spelling of a workflow status, so
// "on hold" and "ON HOLD" both become "On Hold". Unknown values are title
// cased and left for Validate to reject.
func CanonicalStatus(value string) string {
	fields := strings.Fields(strings.ReplaceAll(value, "_", " "))
	if len(fields) == 0 {
		return ""
	}
	caser := cases.Title(language.English)
	return caser.String(strings.Join(fields, " "))
}
