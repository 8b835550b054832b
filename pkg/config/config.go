// Package config loads the surf service configuration from a YAML file,
// applying defaults for anything the file omits.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the full service configuration.
type Config struct {
	// Listen is the HTTP listen address, e.g. ":8001".
	Listen string `yaml:"listen"`

	// StateDir holds service-owned state such as log files. Session state
	// and downloads have their own roots so deployments can mount them on
	// persistent volumes independently.
	StateDir string `yaml:"state_dir"`

	// AuthStorageDir is the root for per-identity session state
	// (storage_state.json / session_storage.json).
	AuthStorageDir string `yaml:"auth_storage_dir"`

	// DownloadsDir is the root under which per-task download directories
	// are created; reported file paths are relative to it.
	DownloadsDir string `yaml:"downloads_dir"`

	// ConversationsDir is the root for saved agent conversations.
	ConversationsDir string `yaml:"conversations_dir"`

	// ScratchGlob matches the driver's uncontrollable download scratch
	// directories under the system temp root.
	ScratchGlob string `yaml:"scratch_glob"`

	// TaskRetention is how long terminal task records stay queryable in
	// the registry before the sweeper removes them.
	TaskRetention time.Duration `yaml:"task_retention"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	base := filepath.Join(home, ".surf")
	return &Config{
		Listen:           ":8001",
		StateDir:         base,
		AuthStorageDir:   filepath.Join(base, "auth"),
		DownloadsDir:     filepath.Join(base, "downloads"),
		ConversationsDir: filepath.Join(base, "conversations"),
		ScratchGlob:      "browser_agent_*/agent_data",
		TaskRetention:    time.Hour,
	}
}

// Load reads the configuration at path, layering it over the defaults. A
// missing file is not an error; the defaults are returned unchanged.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration in %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks the configuration for values no component can work with.
func (c *Config) Validate() error {
	if c.Listen == "" {
		return fmt.Errorf("listen address must not be empty")
	}
	if c.StateDir == "" {
		return fmt.Errorf("state_dir must not be empty")
	}
	if c.AuthStorageDir == "" {
		return fmt.Errorf("auth_storage_dir must not be empty")
	}
	if c.DownloadsDir == "" {
		return fmt.Errorf("downloads_dir must not be empty")
	}
	if c.ConversationsDir == "" {
		return fmt.Errorf("conversations_dir must not be empty")
	}
	if c.ScratchGlob == "" {
		return fmt.Errorf("scratch_glob must not be empty")
	}
	if c.TaskRetention <= 0 {
		return fmt.Errorf("task_retention must be positive, got %s", c.TaskRetention)
	}
	return nil
}

// LogDir returns the directory log files are written to.
func (c *Config) LogDir() string {
	return filepath.Join(c.StateDir, "logs")
}
