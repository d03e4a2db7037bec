package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

//go:embed sample_config.toml
var sampleConfig string

// Auth modes accepted by engine.auth_mode.
const (
	AuthModeBasic          = "basic"
	AuthModeServiceAccount = "service_account"
)

// Engine contains connection settings for the Cromwell workflow engine.
type Engine struct {
	URL                  string  `toml:"url" yaml:"url"`
	AuthMode             string  `toml:"auth_mode" yaml:"auth_mode"`
	Username             string  `toml:"username" yaml:"username"`
	Password             string  `toml:"password" yaml:"password"`
	ServiceAccountKey    string  `toml:"service_account_key" yaml:"service_account_key"`
	CollectionName       string  `toml:"collection_name" yaml:"collection_name"`
	RequestTimeout       int     `toml:"request_timeout" yaml:"request_timeout"`
	MaxRequestsPerSecond float64 `toml:"max_requests_per_second" yaml:"max_requests_per_second"`
}

// Discovery contains the workflow filter and polling cadence of the queue handler.
type Discovery struct {
	Status              string            `toml:"status" yaml:"status"`
	Labels              map[string]string `toml:"labels" yaml:"labels"`
	IncludeSubworkflows bool              `toml:"include_subworkflows" yaml:"include_subworkflows"`
	QueueUpdateInterval int               `toml:"queue_update_interval" yaml:"queue_update_interval"`
}

// Dispatch contains igniter pool sizing and throttling.
type Dispatch struct {
	Igniters              int `toml:"igniters" yaml:"igniters"`
	WorkflowStartInterval int `toml:"workflow_start_interval" yaml:"workflow_start_interval"`
	QueueMaxSize          int `toml:"queue_max_size" yaml:"queue_max_size"`
}

// Paths contains directory configuration.
type Paths struct {
	LogDir string `toml:"log_dir" yaml:"log_dir"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format        string `toml:"format" yaml:"format"`
	Level         string `toml:"level" yaml:"level"`
	RetentionDays int    `toml:"retention_days" yaml:"retention_days"`
}

// Config encapsulates all configuration values for falcon.
//
// Configuration sections by subsystem:
//   - Engine: Cromwell URL, authentication and transport limits
//   - Discovery: which workflows the queue handler looks for and how often
//   - Dispatch: igniter count, start throttle, and work queue bound
//   - Paths: log and lock file location
//   - Logging: log format, level, and retention
type Config struct {
	Engine    Engine    `toml:"engine" yaml:"engine"`
	Discovery Discovery `toml:"discovery" yaml:"discovery"`
	Dispatch  Dispatch  `toml:"dispatch" yaml:"dispatch"`
	Paths     Paths     `toml:"paths" yaml:"paths"`
	Logging   Logging   `toml:"logging" yaml:"logging"`
}

// PollInterval returns the delay between discovery cycles.
func (d Discovery) PollInterval() time.Duration {
	return time.Duration(d.QueueUpdateInterval) * time.Second
}

// StartInterval returns the minimum delay between two start attempts of one igniter.
func (d Dispatch) StartInterval() time.Duration {
	return time.Duration(d.WorkflowStartInterval) * time.Second
}

// Timeout returns the per-request HTTP timeout for engine calls.
func (e Engine) Timeout() time.Duration {
	return time.Duration(e.RequestTimeout) * time.Second
}

// UsesServiceAccount reports whether engine calls authenticate with a service account token.
func (e Engine) UsesServiceAccount() bool {
	return e.AuthMode == AuthModeServiceAccount
}

// ServiceAccountKeyJSON returns the service account key document. The setting
// holds either a path to the key file or the JSON document itself.
func (e Engine) ServiceAccountKeyJSON() ([]byte, error) {
	value := strings.TrimSpace(e.ServiceAccountKey)
	if value == "" {
		return nil, errors.New("engine.service_account_key is not set")
	}
	if isInlineKey(value) {
		return []byte(value), nil
	}
	data, err := os.ReadFile(value)
	if err != nil {
		return nil, fmt.Errorf("read service account key: %w", err)
	}
	return data, nil
}

// LockPath returns the single-instance lock file used by the dispatcher.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.LogDir, "falcon.lock")
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/falcon/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		if err := decodeFile(resolvedPath, &cfg); err != nil {
			return nil, "", false, err
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func decodeFile(path string, cfg *Config) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		decoder := yaml.NewDecoder(file)
		decoder.KnownFields(true)
		if err := decoder.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
			return fmt.Errorf("parse config: %w", err)
		}
	default:
		decoder := toml.NewDecoder(file)
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(cfg); err != nil {
			return fmt.Errorf("parse config: %w", err)
		}
	}
	return nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path == "" {
		if value, ok := os.LookupEnv("CONFIG_PATH"); ok {
			path = strings.TrimSpace(value)
		}
	}
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("falcon.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates required directories for daemon operation.
func (c *Config) EnsureDirectories() error {
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		return nil
	}
	if err := os.MkdirAll(c.Paths.LogDir, 0o755); err != nil {
		return fmt.Errorf("create directory %q: %w", c.Paths.LogDir, err)
	}
	return nil
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

func isInlineKey(value string) bool {
	return strings.HasPrefix(strings.TrimSpace(value), "{")
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
