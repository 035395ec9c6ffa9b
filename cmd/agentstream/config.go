package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// duration accepts Go duration strings ("90s", "2m") in YAML.
type duration time.Duration

func (d *duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("bad duration %q: %w", s, err)
	}
	*d = duration(v)
	return nil
}

// Config is the optional on-disk configuration. Flags override it.
type Config struct {
	WatchRoots   []string `yaml:"watch_roots"`
	IdleWindow   duration `yaml:"idle_window"`
	ScanInterval duration `yaml:"scan_interval"`
	BufferCap    int      `yaml:"buffer_cap"`
	LogFile      string   `yaml:"log_file"`
}

// defaultConfigPath is where loadConfig looks when no --config is given.
func defaultConfigPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "agentstream", "config.yaml")
}

// loadConfig reads path, or the default location when path is empty. A
// missing default file is not an error; a missing explicit file is.
func loadConfig(path string) (Config, error) {
	var cfg Config
	explicit := path != ""
	if !explicit {
		path = defaultConfigPath()
		if path == "" {
			return cfg, nil
		}
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if !explicit && os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}
